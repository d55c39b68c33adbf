package asyncrt

import "sync"

// endpointState is the monotone state machine of one Stream endpoint, per
// spec.md §4.5: {OPEN, CLOSED_READ, CLOSED_WRITE, EOF}.
type endpointState uint8

const (
	endpointOpen endpointState = iota
	endpointClosedRead
	endpointClosedWrite
	endpointEOF
)

// RingIdentity is the wait-stream table key: a pointer-like identity for a
// shared ring, independent of its element type. The scheduler never needs
// to know what T is — per spec.md §9's "the scheduler does not need to know
// element types, it only identifies rings by pointer-like identity."
type RingIdentity struct {
	owner any // *streamCore[T], opaque to the scheduler
}

// streamCore is the reference-counted shared block behind a Stream[T]'s two
// endpoints: the ring buffer itself, the EOF flag, and per-endpoint closed
// flags. Grounded on lunar_shared_stream.hpp's shared_data_t (flag bits,
// refcnt, spin_lock). ENABLE_MT/SHARED_MT from the original collapse to a
// compile-time false here because weave streams are strictly single-OS-
// thread (spec.md §3): the mutex below exists for the rare multi-writer
// case within one thread (writers never block, so contention is brief), not
// for cross-thread safety.
type streamCore[T any] struct {
	mu sync.Mutex

	buf      []T
	cap      int
	head     int
	len      int
	eof      bool
	closedR  bool
	closedW  int // count of writer endpoints still open
	refcount int

	identity *RingIdentity

	scheduler *Scheduler
}

// Stream is the writable or readable endpoint of an intra-OS-thread typed
// bounded ring buffer with an explicit EOF marker. Create a pair with
// NewStream; only methods appropriate to the endpoint's role should be
// called (Push/PushN/PushEOF/CloseWrite on the writer, Pop/PopN/CloseRead
// on the reader) — calling the wrong side is a programmer-contract error
// per spec.md §7 and is not guarded against beyond what the type system
// already prevents.
type Stream[T any] struct {
	core *streamCore[T]
}

// WriteEndpoint and ReadEndpoint distinguish the two Stream handles so
// callers and the scheduler's wait-stream table cannot mix them up.
type WriteEndpoint[T any] struct{ Stream[T] }
type ReadEndpoint[T any] struct{ Stream[T] }

// NewStream creates a bounded ring of the given capacity over element type
// T and returns its write and read endpoints, owned by sched for wait-table
// registration.
func NewStream[T any](sched *Scheduler, capacity int) (WriteEndpoint[T], ReadEndpoint[T]) {
	core := &streamCore[T]{
		buf:       make([]T, capacity),
		cap:       capacity,
		closedW:   1,
		refcount:  2,
		scheduler: sched,
	}
	core.identity = &RingIdentity{owner: core}
	s := Stream[T]{core: core}
	return WriteEndpoint[T]{s}, ReadEndpoint[T]{s}
}

// Identity returns the wait-stream table key for this ring, shared by both
// endpoints.
func (s Stream[T]) Identity() *RingIdentity { return s.core.identity }

// Push appends one item to the ring. Returns ErrClosed if the read side is
// closed or EOF was already pushed. On success, if a reader is currently
// registered in the wait-stream table for this ring, it is woken.
func (w WriteEndpoint[T]) Push(v T) error {
	c := w.core
	c.mu.Lock()
	if c.closedR || c.eof {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.len == c.cap {
		c.mu.Unlock()
		// spec.md §5: push never suspends the writer; a full ring is the
		// writer's problem to retry (by yielding), not the stream's.
		return ErrNoVacancy
	}
	tail := (c.head + c.len) % c.cap
	c.buf[tail] = v
	c.len++
	c.mu.Unlock()

	if c.scheduler != nil {
		c.scheduler.wakeStreamReader(c.identity)
	}
	return nil
}

// PushN appends multiple items; it is not atomic across a full ring, and
// stops (returning the count actually pushed and the first error) on the
// first element that fails.
func (w WriteEndpoint[T]) PushN(vs []T) (int, error) {
	for i, v := range vs {
		if err := w.Push(v); err != nil {
			return i, err
		}
	}
	return len(vs), nil
}

// PushEOF marks the ring EOF; if a reader is registered, it is woken.
func (w WriteEndpoint[T]) PushEOF() {
	c := w.core
	c.mu.Lock()
	c.eof = true
	c.mu.Unlock()
	if c.scheduler != nil {
		c.scheduler.wakeStreamReader(c.identity)
	}
}

// CloseWrite closes this writer endpoint, decrementing the open-writer
// count and the shared refcount — mirroring lunar_shared_stream.hpp's
// refcounted teardown (SPEC_FULL.md supplemented feature #2). Nothing is
// freed explicitly when the refcount reaches zero; the ring is reclaimed by
// the garbage collector once no endpoint references it.
func (w WriteEndpoint[T]) CloseWrite() {
	c := w.core
	c.mu.Lock()
	c.closedW--
	c.refcount--
	c.mu.Unlock()
}

// Pop removes and returns the oldest item. Returns ErrNoMoreData if the
// ring is empty and not yet EOF, or ErrClosed if empty and EOF has been
// observed and drained.
func (r ReadEndpoint[T]) Pop() (T, error) {
	c := r.core
	c.mu.Lock()
	defer c.mu.Unlock()
	var zero T
	if c.len == 0 {
		if c.eof {
			return zero, ErrClosed
		}
		return zero, ErrNoMoreData
	}
	v := c.buf[c.head]
	c.buf[c.head] = zero
	c.head = (c.head + 1) % c.cap
	c.len--
	return v, nil
}

// PopN drains up to max items, stopping early on an empty ring.
func (r ReadEndpoint[T]) PopN(max int) ([]T, error) {
	out := make([]T, 0, max)
	for len(out) < max {
		v, err := r.Pop()
		if err != nil {
			if len(out) > 0 {
				return out, nil
			}
			return out, err
		}
		out = append(out, v)
	}
	return out, nil
}

// CloseRead closes the reader endpoint. Subsequent writer Push calls
// observe ErrClosed.
func (r ReadEndpoint[T]) CloseRead() {
	c := r.core
	c.mu.Lock()
	c.closedR = true
	c.refcount--
	c.mu.Unlock()
}

// Len reports the number of buffered-but-unread items.
func (r ReadEndpoint[T]) Len() int {
	c := r.core
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.len
}
