package asyncrt

import "time"

// TaskID is a positive 64-bit identifier unique within a Scheduler.
type TaskID uint64

// State is a bitset describing a Task's current standing with its owning
// Scheduler. Exactly one of {Running, Stop, Suspending} or a nonempty
// Waiting* subset is set at any instant; Ready is a transient flavor of
// Suspending assigned at spawn time.
type State uint32

const (
	StateReady State = 1 << iota
	StateRunning
	StateSuspending
	StateWaitingFD
	StateWaitingStream
	StateWaitingThreadQueue
	StateWaitingTimeout
	StateStop
)

func (s State) String() string {
	names := []struct {
		bit  State
		name string
	}{
		{StateReady, "READY"},
		{StateRunning, "RUNNING"},
		{StateSuspending, "SUSPENDING"},
		{StateWaitingFD, "WAITING_FD"},
		{StateWaitingStream, "WAITING_STREAM"},
		{StateWaitingThreadQueue, "WAITING_THQ"},
		{StateWaitingTimeout, "WAITING_TIMEOUT"},
		{StateStop, "STOP"},
	}
	out := ""
	for _, n := range names {
		if s&n.bit != 0 {
			if out != "" {
				out += "|"
			}
			out += n.name
		}
	}
	if out == "" {
		return "NONE"
	}
	return out
}

// WaitKey identifies one fd readiness registration. For the epoll backend
// Filter is either FilterRead or FilterWrite, never the union; for the
// kqueue backend it mirrors (ident, filter) directly.
type WaitKey struct {
	FD     int
	Filter Filter
}

// Filter distinguishes read-readiness from write-readiness interest.
type Filter uint8

const (
	FilterRead Filter = iota
	FilterWrite
)

// FiredFD is one readiness event delivered to a task that had registered
// for it, carrying enough of the raw kevent/epoll_event payload for the
// caller to interpret what happened.
type FiredFD struct {
	Key   WaitKey
	Flags uint32
	Data  int64
}

// Task represents one cooperative green thread. The scheduler owns every
// Task by id; nothing outside the owning scheduler is allowed to reach into
// a Task's tables directly.
type Task struct {
	ID    TaskID
	state State

	// StackBase/StackSize are never set by the scheduler and stay zero:
	// weave tasks run on real goroutines, so there is no user-addressable
	// stack to protect with a guard page. The fields are kept distinct
	// (rather than folded into one value) because original_source keeps them
	// distinct too, and a future native backend could repurpose them directly.
	StackBase uintptr
	StackSize int

	waitFD     []WaitKey
	waitStream []*RingIdentity

	FiredFD          []FiredFD
	FiredStream      []*RingIdentity
	FiredThreadQueue bool
	FiredTimeout     bool

	deadline    time.Time
	hasDeadline bool

	// resume/yield hand off control between the scheduler's driver goroutine
	// and the task's own goroutine. See DESIGN.md / SPEC_FULL.md §4.1: this
	// is weave's stand-in for the spec's register-snapshot save/restore —
	// at most one side runs at a time, and each channel is used exactly
	// once per suspend/resume pair.
	resume chan struct{}
	yield  chan struct{}

	entry func(*Task)
	arg   any

	started bool

	sched *Scheduler
}

func newTask(id TaskID, entry func(*Task), arg any) *Task {
	return &Task{
		ID:     id,
		state:  StateReady,
		entry:  entry,
		arg:    arg,
		resume: make(chan struct{}),
		yield:  make(chan struct{}),
	}
}

// State returns the task's current state bitset.
func (t *Task) State() State { return t.state }

// GetFDsReady returns the fired-fd list accumulated since the last Select.
func (t *Task) GetFDsReady() []FiredFD { return t.FiredFD }

// GetStreamsReady returns the fired-stream list accumulated since the last
// Select.
func (t *Task) GetStreamsReady() []*RingIdentity { return t.FiredStream }

// IsTimeout reports whether the task's most recent wakeup was a timeout.
func (t *Task) IsTimeout() bool { return t.FiredTimeout }

// IsReadyThreadQueue reports whether the task's mailbox became readable.
func (t *Task) IsReadyThreadQueue() bool { return t.FiredThreadQueue }

func (t *Task) clearFired() {
	t.FiredFD = nil
	t.FiredStream = nil
	t.FiredThreadQueue = false
	t.FiredTimeout = false
}
