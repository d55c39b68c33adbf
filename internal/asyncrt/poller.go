package asyncrt

// readinessEvent is one event reported by the platform poller: either a
// real fd registration firing, or the mailbox notification pipe becoming
// readable (identified by isMailbox).
type readinessEvent struct {
	Key       WaitKey
	Flags     uint32
	Data      int64
	isMailbox bool
}

// poller is the scheduler's readiness handle, implemented by the
// edge-triggered epoll backend (Linux) and the level-triggered kqueue
// backend (BSD/Darwin). Exactly one of these exists per Scheduler.
type poller interface {
	// register adds interest in key. Idempotent additions for a second
	// filter on the same fd must not clobber an existing registration for
	// the other filter.
	register(key WaitKey) error
	// unregister removes interest in key. If other interest remains on the
	// same fd, the backend downgrades rather than fully removing.
	unregister(key WaitKey) error
	// registerMailboxPipe registers the mailbox's notification pipe read fd
	// for read-readiness, tagging delivered events as mailbox wakeups.
	registerMailboxPipe(fd int) error
	unregisterMailboxPipe(fd int) error
	// wait blocks until at least one event is ready or timeoutMs elapses.
	// timeoutMs < 0 means block indefinitely.
	wait(timeoutMs int64) ([]readinessEvent, error)
	close() error
}
