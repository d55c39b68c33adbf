package asyncrt

import (
	"errors"
	"testing"
)

// TestStreamFlow covers spec scenario 3: a writer pushes 0..9 into a
// capacity-4 stream then EOF; the reader observes 0..9 then CLOSED.
func TestStreamFlow(t *testing.T) {
	s := newTestScheduler(t)
	w, r := NewStream[int](s, 4)

	var got []int
	var sawClosed bool

	s.Spawn(func(t *Task, _ any) {
		for i := 0; i < 10; i++ {
			for {
				err := w.Push(i)
				if err == nil {
					break
				}
				if errors.Is(err, ErrNoVacancy) {
					t.Yield()
					continue
				}
				return
			}
		}
		w.PushEOF()
		w.CloseWrite()
	}, nil)

	s.Spawn(func(t *Task, _ any) {
		for {
			v, err := r.Pop()
			if err == nil {
				got = append(got, v)
				continue
			}
			if errors.Is(err, ErrNoMoreData) {
				t.Select(nil, []*RingIdentity{r.Identity()}, false, 0)
				continue
			}
			if errors.Is(err, ErrClosed) {
				sawClosed = true
				r.CloseRead()
				return
			}
			return
		}
	}, nil)

	if err := s.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
	if !sawClosed {
		t.Fatalf("expected CLOSED after EOF drained")
	}
}

// TestStreamRoundTrip covers the §8 round-trip property: pushing n<=C
// items and popping n yields the original sequence, with no scheduler
// involved (both endpoints accessed synchronously).
func TestStreamRoundTrip(t *testing.T) {
	s := newTestScheduler(t)
	w, r := NewStream[string](s, 8)

	in := []string{"a", "b", "c", "d", "e"}
	for _, v := range in {
		if err := w.Push(v); err != nil {
			t.Fatalf("Push(%q): %v", v, err)
		}
	}

	for _, want := range in {
		got, err := r.Pop()
		if err != nil {
			t.Fatalf("Pop: %v", err)
		}
		if got != want {
			t.Fatalf("got %q, want %q", got, want)
		}
	}
}

// TestStreamPushAfterEOF covers the §8 idempotence clause: push after EOF
// returns CLOSED, and once the items pushed before EOF are drained, pop
// returns CLOSED.
func TestStreamPushAfterEOF(t *testing.T) {
	s := newTestScheduler(t)
	w, r := NewStream[int](s, 2)

	if err := w.Push(1); err != nil {
		t.Fatalf("Push: %v", err)
	}
	w.PushEOF()

	if err := w.Push(2); !errors.Is(err, ErrClosed) {
		t.Fatalf("push after EOF: got %v, want ErrClosed", err)
	}

	if _, err := r.Pop(); err != nil {
		t.Fatalf("Pop first item: %v", err)
	}
	if _, err := r.Pop(); !errors.Is(err, ErrClosed) {
		t.Fatalf("pop after EOF drained: got %v, want ErrClosed", err)
	}
}

// TestStreamBoundaryFull covers the §8 boundary behavior: a full ring
// returns NoVacancy, never suspending the writer.
func TestStreamBoundaryFull(t *testing.T) {
	s := newTestScheduler(t)
	w, r := NewStream[int](s, 1)

	if err := w.Push(1); err != nil {
		t.Fatalf("Push: %v", err)
	}
	if err := w.Push(2); !errors.Is(err, ErrNoVacancy) {
		t.Fatalf("got %v, want ErrNoVacancy", err)
	}
	_, _ = r.Pop()
}
