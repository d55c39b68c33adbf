package asyncrt

import (
	"testing"
	"time"
)

func newTestScheduler(t *testing.T) *Scheduler {
	t.Helper()
	id := nextTestThreadID()
	s, err := Init(id, Config{})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	t.Cleanup(func() { _ = s.Deregister() })
	return s
}

var testThreadID uint64

func nextTestThreadID() uint64 {
	testThreadID++
	return 1_000_000 + testThreadID
}

// TestRoundRobin covers spec scenario 1: three tasks looping print(i);
// yield() interleave strictly in spawn order.
func TestRoundRobin(t *testing.T) {
	s := newTestScheduler(t)
	var seq []int

	for i := 1; i <= 3; i++ {
		id := i
		s.Spawn(func(t *Task, _ any) {
			for round := 0; round < 3; round++ {
				seq = append(seq, id)
				t.Yield()
			}
		}, nil)
	}

	if err := s.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := []int{1, 2, 3, 1, 2, 3, 1, 2, 3}
	if len(seq) != len(want) {
		t.Fatalf("got %v, want %v", seq, want)
	}
	for i := range want {
		if seq[i] != want[i] {
			t.Fatalf("got %v, want %v", seq, want)
		}
	}
}

// TestTimeout covers spec scenario 2: a bare-timeout select fires
// IsTimeout and resumes after roughly the requested duration.
func TestTimeout(t *testing.T) {
	s := newTestScheduler(t)
	var elapsed time.Duration
	var timedOut bool

	s.Spawn(func(t *Task, _ any) {
		start := time.Now()
		t.Select(nil, nil, false, 200)
		elapsed = time.Since(start)
		timedOut = t.IsTimeout()
	}, nil)

	if err := s.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if !timedOut {
		t.Fatalf("expected timeout flag set")
	}
	if elapsed < 200*time.Millisecond {
		t.Fatalf("resumed too early: %s", elapsed)
	}
	if elapsed >= 250*time.Millisecond {
		t.Fatalf("resumed too late: %s", elapsed)
	}
}

// TestInitRejectsMismatchedPollerBackend covers the [poller].backend
// override in weave.toml: a backend name that doesn't match this build's
// compiled-in poller is a misconfiguration, not something Init silently
// ignores.
func TestInitRejectsMismatchedPollerBackend(t *testing.T) {
	id := nextTestThreadID()
	_, err := Init(id, Config{PollerBackend: "not-" + backendName})
	if err == nil {
		t.Fatalf("expected an error for a mismatched poller backend")
	}
}

// TestTaskStoppedReleasedBeforeRunReturns covers the §8 universal
// invariant that a stopped task's id-table entry is gone once Run returns.
func TestTaskStoppedReleasedBeforeRunReturns(t *testing.T) {
	s := newTestScheduler(t)
	id := s.Spawn(func(t *Task, _ any) {}, nil)

	if err := s.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if _, ok := s.tasks[id]; ok {
		t.Fatalf("task %d still present after Run returned", id)
	}
}
