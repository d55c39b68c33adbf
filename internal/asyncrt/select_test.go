package asyncrt

import (
	"testing"
	"time"

	"golang.org/x/sys/unix"
)

// TestFDReadyBeatsTimeout covers spec scenario 5: a task registers a pipe
// read fd plus a long timeout; a write on the pipe arrives well before the
// deadline, so the task resumes with a fired fd and no timeout.
func TestFDReadyBeatsTimeout(t *testing.T) {
	s := newTestScheduler(t)

	fds := make([]int, 2)
	if err := unix.Pipe2(fds, unix.O_NONBLOCK); err != nil {
		t.Fatalf("pipe2: %v", err)
	}
	readFD, writeFD := fds[0], fds[1]
	t.Cleanup(func() {
		_ = unix.Close(readFD)
		_ = unix.Close(writeFD)
	})

	var timedOut bool
	var fired int

	s.Spawn(func(task *Task, _ any) {
		key := WaitKey{FD: readFD, Filter: FilterRead}
		task.Select([]WaitKey{key}, nil, false, 500)
		timedOut = task.IsTimeout()
		fired = len(task.GetFDsReady())
	}, nil)

	go func() {
		time.Sleep(50 * time.Millisecond)
		_, _ = unix.Write(writeFD, []byte{1})
	}()

	if err := s.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if timedOut {
		t.Fatalf("expected the fd readiness to win the race, got timeout")
	}
	if fired != 1 {
		t.Fatalf("fired fd events = %d, want 1", fired)
	}
	if len(s.waitFD) != 0 {
		t.Fatalf("waitFD not cleared after dispatch: %v", s.waitFD)
	}
}

// TestCompositeWakeStreamOnly covers spec scenario 6: a composite Select
// over an fd that never fires, a stream that does, and a timeout far beyond
// either. Only the stream wakeup should fire; the fd's boundary property
// (wait-fd cleared post-dispatch, no fired-fd entries) must hold too.
func TestCompositeWakeStreamOnly(t *testing.T) {
	s := newTestScheduler(t)

	fds := make([]int, 2)
	if err := unix.Pipe2(fds, unix.O_NONBLOCK); err != nil {
		t.Fatalf("pipe2: %v", err)
	}
	readFD, writeFD := fds[0], fds[1]
	t.Cleanup(func() {
		_ = unix.Close(readFD)
		_ = unix.Close(writeFD)
	})
	_ = writeFD // never written in this scenario; the fd must not fire

	w, r := NewStream[string](s, 1)

	s.Spawn(func(task *Task, _ any) {
		task.Select(nil, nil, false, 50)
		_ = w.Push("tick")
		w.PushEOF()
		w.CloseWrite()
	}, nil)

	var fdsFired, streamsFired int
	var timedOut bool
	var popped string

	s.Spawn(func(task *Task, _ any) {
		key := WaitKey{FD: readFD, Filter: FilterRead}
		task.Select([]WaitKey{key}, []*RingIdentity{r.Identity()}, false, 1000)

		fdsFired = len(task.GetFDsReady())
		streamsFired = len(task.GetStreamsReady())
		timedOut = task.IsTimeout()

		if v, err := r.Pop(); err == nil {
			popped = v
		}
		r.CloseRead()
	}, nil)

	if err := s.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if fdsFired != 0 {
		t.Fatalf("fired fd events = %d, want 0 (the pipe was never written)", fdsFired)
	}
	if streamsFired != 1 {
		t.Fatalf("fired stream events = %d, want 1", streamsFired)
	}
	if timedOut {
		t.Fatalf("expected the stream wakeup to win, got timeout")
	}
	if popped != "tick" {
		t.Fatalf("popped %q, want %q", popped, "tick")
	}
	if len(s.waitFD) != 0 {
		t.Fatalf("waitFD not cleared after dispatch: %v", s.waitFD)
	}
	if len(s.waitStream) != 0 {
		t.Fatalf("waitStream not cleared after dispatch: %v", s.waitStream)
	}
}
