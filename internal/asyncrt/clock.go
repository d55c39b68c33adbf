package asyncrt

import (
	"sync"
	"sync/atomic"
	"time"

	"fortio.org/safecast"
)

// monotonicMs holds the runtime's shared millisecond clock cell. A single
// daemon goroutine started by StartClockDaemon advances it; schedulers read
// it racily via NowMs — torn reads are acceptable, per spec.md §5, because
// jitter of a few milliseconds is within semantics.
var monotonicMs atomic.Int64

var clockStart = time.Now()

var clockDaemonOnce sync.Once

// ensureClockDaemon starts the process-wide clock daemon on its first call,
// matching spec.md §2/§6's "one daemon OS thread (clock) started at first
// scheduler init" and original_source's single update_clock() thread.
// Subsequent calls (one per additional Scheduler in the same process) are
// no-ops.
func ensureClockDaemon(tick time.Duration) {
	clockDaemonOnce.Do(func() {
		StartClockDaemon(tick)
	})
}

// NowMs returns the current value of the shared monotonic millisecond
// clock. Safe to call from any goroutine without synchronization.
func NowMs() int64 {
	return monotonicMs.Load()
}

// StartClockDaemon launches the background goroutine that advances the
// monotonic clock cell roughly once per tick. It is not idempotent — calling
// it more than once starts additional redundant daemons — which is why
// every asyncrt call site goes through ensureClockDaemon instead, matching
// original_source's single `update_clock()` thread started at first
// scheduler init.
func StartClockDaemon(tick time.Duration) (stop func()) {
	if tick <= 0 {
		tick = time.Millisecond
	}
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(tick)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				elapsed := time.Since(clockStart)
				ms, err := safecast.Conv[int64](elapsed.Milliseconds())
				if err != nil {
					continue
				}
				monotonicMs.Store(ms)
			case <-done:
				return
			}
		}
	}()
	return func() { close(done) }
}

// nowTime reconstructs a time.Time from the shared monotonic clock cell, so
// every deadline comparison in the scheduler is measured against the same
// daemon-maintained clock rather than each caller's own time.Now(), per
// spec.md §2/§6.
func nowTime() time.Time {
	return clockStart.Add(time.Duration(NowMs()) * time.Millisecond)
}

// deadlineFromMs converts a relative millisecond timeout (as accepted by
// Select) into an absolute deadline. The deadline is counted from the
// current time rather than from the shared clock cell, which lags real time
// by up to a tick; since expiry is then checked against that lagging cell
// (nowTime), a timeout never fires before timeoutMs has elapsed.
func deadlineFromMs(timeoutMs int64) time.Time {
	return time.Now().Add(time.Duration(timeoutMs) * time.Millisecond)
}
