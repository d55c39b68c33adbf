package asyncrt

import (
	"fmt"
	"sync"

	"golang.org/x/sys/unix"
)

// waitMode is the mailbox consumer's current wakeup arbitration: NONE while
// nothing is blocked on it, COND when the consumer parked on the condition
// variable (no other wait reason competing), PIPE when the consumer is
// blocking in the scheduler's readiness handle alongside fd/timeout waits.
type waitMode uint8

const (
	waitModeNone waitMode = iota
	waitModeCond
	waitModePipe
)

// defaultMailboxSpinCount is the bounded spin count pop() performs before
// giving up on an empty mailbox, resolving spec.md §9's open question by
// making it a Config field (Config.MailboxSpinCount) instead of a literal.
const defaultMailboxSpinCount = 1000

// Mailbox is the cross-thread MPSC bounded queue ("thread-queue") that is
// the sole channel other OS threads use to reach a Scheduler. Grounded on
// lunar_green_thread.hpp's nested threadq class: a spinlock-guarded ring of
// fixed-width entries plus a mutex/condvar pair and a notification pipe for
// the two wait modes the consumer may arbitrate between.
type Mailbox struct {
	spin sync.Mutex // stands in for the spin lock guarding ring + notify state

	entrySize int
	capacity  int
	buf       [][]byte
	head      int
	tail      int
	length    int
	closed    bool

	mode waitMode

	condMu sync.Mutex
	cond   *sync.Cond

	pipeR, pipeW int // notification pipe fds; -1 until lazily created

	spinCount int
}

// NewMailbox creates a bounded mailbox holding up to capacity entries of
// entrySize bytes each. capacity == 0 is legal and causes every push to
// return ErrNoVacancy, per spec.md §8's boundary behavior.
func NewMailbox(capacity, entrySize int, spinCount int) *Mailbox {
	if spinCount <= 0 {
		spinCount = defaultMailboxSpinCount
	}
	m := &Mailbox{
		entrySize: entrySize,
		capacity:  capacity,
		buf:       make([][]byte, capacity),
		pipeR:     -1,
		pipeW:     -1,
		spinCount: spinCount,
	}
	m.cond = sync.NewCond(&m.condMu)
	return m
}

// Push copies entry (truncated/padded to entrySize) into the ring. Called
// from any OS thread. Returns ErrNoVacancy if full, ErrClosed if closed.
func (m *Mailbox) Push(entry []byte) error {
	m.spin.Lock()
	if m.closed {
		m.spin.Unlock()
		return ErrClosed
	}
	if m.length == m.capacity {
		m.spin.Unlock()
		return ErrNoVacancy
	}

	slot := make([]byte, m.entrySize)
	copy(slot, entry)
	m.buf[m.tail] = slot
	m.tail = (m.tail + 1) % m.capacity
	wasEmpty := m.length == 0
	m.length++
	mode := m.mode
	if wasEmpty {
		m.mode = waitModeNone
	}
	m.spin.Unlock()

	if !wasEmpty {
		return nil
	}
	switch mode {
	case waitModeCond:
		m.condMu.Lock()
		m.cond.Signal()
		m.condMu.Unlock()
	case waitModePipe:
		if m.pipeW >= 0 {
			_, _ = unix.Write(m.pipeW, []byte{1})
		}
	case waitModeNone:
	}
	return nil
}

// Pop is consumer-side only (the owning Scheduler). It spins up to
// spinCount iterations on an empty mailbox before reporting ErrNoMoreData,
// matching original_source's bounded busy-wait before the caller falls
// back to select().
func (m *Mailbox) Pop() ([]byte, error) {
	for i := 0; i < m.spinCount; i++ {
		m.spin.Lock()
		if m.closed && m.length == 0 {
			m.spin.Unlock()
			return nil, ErrClosed
		}
		if m.length > 0 {
			entry := m.buf[m.head]
			m.buf[m.head] = nil
			m.head = (m.head + 1) % m.capacity
			m.length--
			m.spin.Unlock()
			return entry, nil
		}
		m.spin.Unlock()
	}
	return nil, ErrNoMoreData
}

// Len reports the current queue length under the spin lock.
func (m *Mailbox) Len() int {
	m.spin.Lock()
	defer m.spin.Unlock()
	return m.length
}

// snapshot reports length and closed-ness together, avoiding a second lock
// acquisition between the two checks.
func (m *Mailbox) snapshot() (length int, closed bool) {
	m.spin.Lock()
	defer m.spin.Unlock()
	return m.length, m.closed
}

// Close marks the mailbox closed; further pushes fail with ErrClosed, but
// entries already queued may still be drained by Pop.
func (m *Mailbox) Close() {
	m.spin.Lock()
	m.closed = true
	m.spin.Unlock()
	m.condMu.Lock()
	m.cond.Broadcast()
	m.condMu.Unlock()
}

// arbitrateWait decides, under the spin lock, which wait mode the consumer
// should enter. If content is already present it returns (waitModeNone,
// true) meaning "do not block, go dispatch." hasOtherWait indicates whether
// the scheduler already has fd waits or timeouts pending in this tick.
func (m *Mailbox) arbitrateWait(hasOtherWait bool) (waitMode, bool) {
	m.spin.Lock()
	defer m.spin.Unlock()
	if m.length > 0 || m.closed {
		m.mode = waitModeNone
		return waitModeNone, true
	}
	if !hasOtherWait {
		m.mode = waitModeCond
		return waitModeCond, false
	}
	if err := m.ensurePipeLocked(); err != nil {
		// Kernel-fatal per spec.md §7: pipe setup failure is not a
		// condition the scheduler can recover from.
		panic(fmt.Errorf("mailbox: ensure notification pipe: %w", err))
	}
	m.mode = waitModePipe
	return waitModePipe, false
}

// waitCond blocks on the condition variable until the mailbox is non-empty
// or closed, rechecking length under the mutex to close the
// check-then-block race spec.md §9 warns about.
func (m *Mailbox) waitCond() {
	m.condMu.Lock()
	for {
		m.spin.Lock()
		empty := m.length == 0 && !m.closed
		m.spin.Unlock()
		if !empty {
			break
		}
		m.cond.Wait()
	}
	m.condMu.Unlock()
}

// ensurePipeLocked lazily creates the notification pipe and sets both ends
// nonblocking, mirroring original_source's threadq constructor FIONBIO
// call. Must be called with m.spin held.
func (m *Mailbox) ensurePipeLocked() error {
	if m.pipeR >= 0 {
		return nil
	}
	fds := make([]int, 2)
	if err := unix.Pipe2(fds, unix.O_NONBLOCK); err != nil {
		return fmt.Errorf("pipe2: %w", err)
	}
	m.pipeR, m.pipeW = fds[0], fds[1]
	return nil
}

// notificationPipeReadFD returns the read end of the lazily-created
// notification pipe, or -1 if it has never been created.
func (m *Mailbox) notificationPipeReadFD() int {
	m.spin.Lock()
	defer m.spin.Unlock()
	return m.pipeR
}

// drainPipe reads and discards up to n bytes from the notification pipe,
// nonblocking, stopping on EAGAIN. The scheduler always passes 1: Push
// writes at most one byte per PIPE-mode wait, because it resets the mode
// to NONE when it notifies.
func (m *Mailbox) drainPipe(n int) {
	if m.pipeR < 0 || n <= 0 {
		return
	}
	buf := make([]byte, n)
	remaining := n
	for remaining > 0 {
		k, err := unix.Read(m.pipeR, buf[:remaining])
		if err == unix.EINTR {
			continue
		}
		if err != nil || k <= 0 {
			return
		}
		remaining -= k
	}
}

func (m *Mailbox) resetModeLocked() {
	m.spin.Lock()
	m.mode = waitModeNone
	m.spin.Unlock()
}
