package asyncrt

import (
	"errors"
	"fmt"
	"sync"
	"testing"
)

// TestMailboxZeroCapacityAlwaysFull covers the §8 boundary behavior: a
// thread-queue with capacity 0 returns NoVacancy on every push.
func TestMailboxZeroCapacityAlwaysFull(t *testing.T) {
	m := NewMailbox(0, 8, 0)
	if err := m.Push([]byte("x")); !errors.Is(err, ErrNoVacancy) {
		t.Fatalf("got %v, want ErrNoVacancy", err)
	}
}

// TestMailboxMultiProducerNoLoss covers N producers pushing M entries each
// into a capacity-K queue: the consumer observes exactly N*M entries with
// no loss and no duplication (order across producers is not asserted, only
// completeness).
func TestMailboxMultiProducerNoLoss(t *testing.T) {
	const producers = 4
	const perProducer = 250
	const capacity = 16

	m := NewMailbox(capacity, 8, 0)
	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				entry := []byte(fmt.Sprintf("%d-%d", p, i))
				for {
					if err := m.Push(entry); err == nil {
						break
					}
				}
			}
		}(p)
	}

	seen := make(map[string]bool)
	count := 0
	for count < producers*perProducer {
		raw, err := m.Pop()
		if err != nil {
			continue
		}
		key := string(raw)
		if seen[key] {
			t.Fatalf("duplicate entry %q", key)
		}
		seen[key] = true
		count++
	}
	wg.Wait()
}

// TestMailboxPopEmptyThenClosed covers Pop's two-phase close signal: an
// empty open mailbox returns NoMoreData, an empty closed one returns
// Closed.
func TestMailboxPopEmptyThenClosed(t *testing.T) {
	m := NewMailbox(4, 8, 4)
	if _, err := m.Pop(); !errors.Is(err, ErrNoMoreData) {
		t.Fatalf("got %v, want ErrNoMoreData", err)
	}
	m.Close()
	if _, err := m.Pop(); !errors.Is(err, ErrClosed) {
		t.Fatalf("got %v, want ErrClosed", err)
	}
}

// TestMailboxCrossThreadScenario covers spec scenario 4: a consumer task
// blocks in Select(wait-thq=true) while a separate goroutine (standing in
// for a second OS thread) pushes 1000 entries; the consumer observes all
// 1000 in FIFO order.
func TestMailboxCrossThreadScenario(t *testing.T) {
	const n = 1000
	s, err := Init(nextTestThreadID(), Config{QueueCapacity: 64, EntrySize: 8})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	t.Cleanup(func() { _ = s.Deregister() })
	mbox := s.Mailbox()

	go func() {
		for i := 0; i < n; i++ {
			entry := []byte{byte(i), byte(i >> 8)}
			for {
				if err := mbox.Push(entry); err == nil {
					break
				}
			}
		}
		mbox.Close()
	}()

	received := 0
	outOfOrder := false
	s.Spawn(func(task *Task, _ any) {
		for {
			raw, err := mbox.Pop()
			if err == nil {
				want := received
				got := int(raw[0]) | int(raw[1])<<8
				if got != want {
					outOfOrder = true
					return
				}
				received++
				if received == n {
					return
				}
				continue
			}
			if errors.Is(err, ErrNoMoreData) {
				task.Select(nil, nil, true, 0)
				continue
			}
			return
		}
	}, nil)

	if err := s.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if outOfOrder {
		t.Fatalf("entries arrived out of order")
	}
	if received != n {
		t.Fatalf("received %d, want %d", received, n)
	}
}
