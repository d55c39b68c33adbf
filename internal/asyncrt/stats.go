package asyncrt

import "sync"

// StatsSnapshot is a point-in-time copy of a Scheduler's table sizes,
// published for out-of-band observers (the watch TUI) that must not touch
// the scheduler's own tables directly — those are owned by the goroutine
// driving Run.
type StatsSnapshot struct {
	ThreadID        uint64
	TaskCount       int
	ReadyCount      int
	WaitFDCount     int
	WaitStreamCount int
	MailboxLen      int
	MailboxCap      int
	Stopped         int
}

// statsHolder's mu guards snap, written once per Run loop iteration by the
// scheduler's own goroutine and read from any goroutine via Stats.
type statsHolder struct {
	mu   sync.Mutex
	snap StatsSnapshot
}

func (s *Scheduler) publishStats() {
	s.stats.mu.Lock()
	s.stats.snap = StatsSnapshot{
		ThreadID:        s.threadID,
		TaskCount:       len(s.tasks),
		ReadyCount:      len(s.ready),
		WaitFDCount:     len(s.waitFD),
		WaitStreamCount: len(s.waitStream),
		MailboxLen:      s.mailbox.Len(),
		MailboxCap:      s.mailbox.capacity,
		Stopped:         len(s.stopped),
	}
	s.stats.mu.Unlock()
}

// Stats returns the most recently published StatsSnapshot. Safe to call
// from any goroutine.
func (s *Scheduler) Stats() StatsSnapshot {
	s.stats.mu.Lock()
	defer s.stats.mu.Unlock()
	return s.stats.snap
}
