package asyncrt

import "fmt"

// Select suspends the calling task, registering a composite wait over zero
// or more fd registrations, zero or more stream identities, optionally the
// mailbox, and optionally a timeout. It wakes as soon as any one of the
// registered wakeups fires; the others are cleared on dispatch by the
// scheduler (spec.md §4.2 step 4). timeoutMs == 0 means no timeout.
//
// Must be called from the task's own goroutine (i.e. from within the
// EntryFunc passed to Spawn, or something it calls synchronously) — the
// mutual exclusion between the scheduler's driver loop and exactly one
// running task's goroutine is what makes it safe for Select to touch
// scheduler tables directly.
func (t *Task) Select(fds []WaitKey, streams []*RingIdentity, waitThreadQueue bool, timeoutMs int64) {
	s := t.sched

	t.clearFired()
	t.state = 0

	if len(fds) == 0 && len(streams) == 0 && !waitThreadQueue && timeoutMs == 0 {
		// A bare yield: no registrations, suspend and go straight to the
		// back of the ready deque.
		t.state = StateSuspending
		s.ready = append(s.ready, t)
		t.park()
		return
	}

	for _, key := range fds {
		t.waitFD = append(t.waitFD, key)
		set, ok := s.waitFD[key]
		if !ok {
			set = make(map[TaskID]*Task)
			s.waitFD[key] = set
			_ = s.pl.register(key)
		}
		set[t.ID] = t
		t.state |= StateWaitingFD
	}

	for _, ring := range streams {
		// spec.md §7: two readers waiting on one stream is a programmer
		// contract error, not something to auto-recover from. The original
		// (lunar_green_thread.cpp's m_wait_stream.insert) resolves this
		// first-wins/no-op-on-duplicate; we assert instead of silently
		// evicting the first reader's registration.
		if existing, ok := s.waitStream[ring]; ok && existing != t {
			panic(fmt.Sprintf("asyncrt: stream already has a waiting reader (task %d); task %d cannot register a second", existing.ID, t.ID))
		}
		t.waitStream = append(t.waitStream, ring)
		s.waitStream[ring] = t
		t.state |= StateWaitingStream
	}

	if waitThreadQueue {
		s.mailboxWaiter = t
		t.state |= StateWaitingThreadQueue
	}

	if timeoutMs > 0 {
		t.hasDeadline = true
		t.deadline = deadlineFromMs(timeoutMs)
		s.timeouts.add(t, t.deadline)
		t.state |= StateWaitingTimeout
	}

	if t.state == 0 {
		t.state = StateSuspending
		s.ready = append(s.ready, t)
	}

	t.park()
}

// Yield is sugar for Select with no registrations: suspend and go to the
// back of the ready deque.
func (t *Task) Yield() {
	t.Select(nil, nil, false, 0)
}

// park hands control back to the scheduler and blocks until the scheduler
// resumes this task. This is the task-goroutine side of the "stack switch"
// described in SPEC_FULL.md §4.1.
func (t *Task) park() {
	t.yield <- struct{}{}
	<-t.resume
}
