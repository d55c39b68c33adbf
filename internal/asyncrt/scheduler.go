package asyncrt

import (
	"fmt"
	"sync"
	"time"

	"weave/internal/trace"
)

// Config tunes one Scheduler instance, usually populated from
// internal/config's TOML file. Init fills a zero MailboxSpinCount, Tracer
// or ClockTick with a default; a zero QueueCapacity gives a mailbox on
// which every push returns ErrNoVacancy.
type Config struct {
	QueueCapacity    int
	EntrySize        int
	MailboxSpinCount int
	Tracer           trace.Tracer
	ClockTick        time.Duration
	// PollerBackend, if non-empty, must name this build's compiled-in
	// readiness backend ("epoll" or "kqueue"). weave never switches
	// backends at runtime, so a mismatch here is a misconfiguration — Init
	// fails rather than silently picking a different backend than the
	// operator expected.
	PollerBackend string
}

// EntryFunc is the body of a spawned task. It receives the task's own
// handle (to call Select/Yield on) and its spawn argument.
type EntryFunc func(t *Task, arg any)

// Scheduler is the thread-local singleton driving green threads for one OS
// thread, per spec.md §2. It owns every table a task can be found in: the
// ready deque, the wait-fd and wait-stream tables, the timeout index, the
// stopped list, and the single mailbox waiter slot.
type Scheduler struct {
	threadID uint64

	tasks  map[TaskID]*Task
	nextID TaskID

	ready []*Task

	waitFD     map[WaitKey]map[TaskID]*Task
	waitStream map[*RingIdentity]*Task

	timeouts *timeoutIndex

	mailbox       *Mailbox
	mailboxWaiter *Task

	stopped []*Task

	running *Task

	pl poller

	cfg    Config
	tracer trace.Tracer

	stats statsHolder
}

// Init creates the scheduler for threadID and registers it globally.
// Fails if a scheduler already exists for threadID, matching spec.md
// §4.2's "fails if one already exists or if the id is already registered."
func Init(threadID uint64, cfg Config) (*Scheduler, error) {
	if cfg.MailboxSpinCount <= 0 {
		cfg.MailboxSpinCount = defaultMailboxSpinCount
	}
	if cfg.Tracer == nil {
		cfg.Tracer = trace.Nop
	}

	if cfg.PollerBackend != "" && cfg.PollerBackend != backendName {
		return nil, fmt.Errorf("asyncrt: init scheduler %d: configured poller backend %q does not match this build's compiled-in %q", threadID, cfg.PollerBackend, backendName)
	}

	pl, err := newPoller()
	if err != nil {
		return nil, fmt.Errorf("asyncrt: init scheduler %d: %w", threadID, err)
	}

	ensureClockDaemon(cfg.ClockTick)

	s := &Scheduler{
		threadID:   threadID,
		tasks:      make(map[TaskID]*Task),
		waitFD:     make(map[WaitKey]map[TaskID]*Task),
		waitStream: make(map[*RingIdentity]*Task),
		timeouts:   newTimeoutIndex(),
		mailbox:    NewMailbox(cfg.QueueCapacity, cfg.EntrySize, cfg.MailboxSpinCount),
		pl:         pl,
		cfg:        cfg,
		tracer:     cfg.Tracer,
	}

	if err := registerScheduler(threadID, s); err != nil {
		_ = pl.close()
		return nil, err
	}
	return s, nil
}

// Mailbox returns the scheduler's cross-thread mailbox, the handle other OS
// threads push into via Mailbox.Push.
func (s *Scheduler) Mailbox() *Mailbox { return s.mailbox }

// Spawn creates a READY task running entry(t, arg) and appends it to the
// ready deque. Never suspends the caller.
func (s *Scheduler) Spawn(entry EntryFunc, arg any) TaskID {
	s.nextID++
	id := s.nextID
	t := newTask(id, nil, arg)
	t.entry = func(self *Task) { entry(self, self.arg) }
	t.sched = s
	s.tasks[id] = t
	s.ready = append(s.ready, t)
	span := trace.Begin(s.tracer, trace.ScopeTask, "spawn", 0)
	span.WithExtra("task_id", fmt.Sprint(id)).End("")
	return id
}

// dispatch runs one task to its next suspension point, performing the
// spawn trampoline for a never-started task or resuming a parked one.
// This is weave's stand-in for spec.md §4.1's register-snapshot save and
// restore: control is hedged entirely through the task's resume/yield
// channels, so "save" is just "the previous running task is now blocked on
// <-task.yield" and "restore" is "send on task.resume."
func (s *Scheduler) dispatch(t *Task) {
	s.running = t
	t.state = StateRunning

	if !t.started {
		t.started = true
		go func() {
			t.entry(t)
			t.state = StateStop
			t.yield <- struct{}{}
		}()
	} else {
		t.resume <- struct{}{}
	}

	<-t.yield

	if t.state == StateStop {
		s.stopped = append(s.stopped, t)
	}
	s.running = nil
}

// Run drives the main loop (spec.md §4.2) until there is no remaining task,
// no pending fd wait, no pending timeout, and no outstanding mailbox
// waiter.
func (s *Scheduler) Run() error {
	for {
		s.publishStats()

		// Step 1 is folded into dispatch: a task that yields is appended to
		// the ready deque by Select/Yield itself before handing control
		// back here, and a task that stops is moved to s.stopped by
		// dispatch above. Step 1's bookkeeping therefore already happened
		// by the time Run observes it.

		// Step 2: drain expired timeouts.
		for _, t := range s.timeouts.drainExpired(nowTime()) {
			t.FiredTimeout = true
			s.wakeTask(t)
		}

		// Step 3: thread-queue content (or closure) with a NONE-mode waiter.
		if s.mailboxWaiter != nil {
			if length, closed := s.mailbox.snapshot(); length > 0 || closed {
				w := s.mailboxWaiter
				s.mailboxWaiter = nil
				w.FiredThreadQueue = true
				s.wakeTask(w)
			}
		}

		// Drain the stopped list (reaping) before dispatch, per spec.md
		// §3's lifecycle: "the stopped list is drained ... at each return
		// to the scheduler root frame."
		s.reapStopped()

		// Step 4: dispatch the ready deque head.
		if len(s.ready) > 0 {
			t := s.ready[0]
			s.ready = s.ready[1:]
			s.clearWaitRegistrations(t)
			s.dispatch(t)
			continue
		}

		// Step 5: thread-queue wait path.
		if s.mailboxWaiter != nil {
			if s.mailboxWait() {
				continue
			}
		}

		// Step 6: block in the readiness handle if anything warrants it.
		if len(s.waitFD) > 0 || !s.timeouts.empty() {
			if err := s.pollOnce(); err != nil {
				return err
			}
			continue
		}

		// Step 7: no remaining task, no pending fd wait, no pending
		// timeout, and no outstanding mailbox waiter — return to run()'s
		// root frame.
		return nil
	}
}

// reapStopped releases every task on the stopped list: removes it from the
// id table (its stack is just a goroutine, already exited, so there is no
// memory to free beyond what the Go runtime reclaims on its own).
func (s *Scheduler) reapStopped() {
	for _, t := range s.stopped {
		delete(s.tasks, t.ID)
	}
	s.stopped = s.stopped[:0]
}

// clearWaitRegistrations implements spec.md §4.2 step 4's cleanup for a
// non-READY task about to be dispatched: remove it from both wait tables,
// the timeout index, and cancel any mailbox waiter registration, draining
// residual notification-pipe bytes.
func (s *Scheduler) clearWaitRegistrations(t *Task) {
	if t.state == StateReady {
		return
	}
	for _, key := range t.waitFD {
		if set, ok := s.waitFD[key]; ok {
			delete(set, t.ID)
			if len(set) == 0 {
				delete(s.waitFD, key)
				_ = s.pl.unregister(key)
			}
		}
	}
	t.waitFD = nil

	for _, ring := range t.waitStream {
		if s.waitStream[ring] == t {
			delete(s.waitStream, ring)
		}
	}
	t.waitStream = nil

	s.timeouts.remove(t.ID)

	if s.mailboxWaiter == t {
		s.mailboxWaiter = nil
		if fd := s.mailbox.notificationPipeReadFD(); fd >= 0 {
			_ = s.pl.unregisterMailboxPipe(fd)
			s.mailbox.drainPipe(1)
		}
		s.mailbox.resetModeLocked()
	}
}

// wakeTask transitions a waiting task to SUSPENDING and appends it to the
// ready deque if it is not already there.
func (s *Scheduler) wakeTask(t *Task) {
	if t.state&StateSuspending != 0 {
		return
	}
	t.state = StateSuspending
	s.ready = append(s.ready, t)
}

// mailboxWait implements the thread-queue wait path of §4.2 step 5 /
// §4.3's wait-mode arbitration. Returns true if the caller should loop
// back to the top of Run (because content arrived or a different wakeup
// happened), false if it should fall through.
func (s *Scheduler) mailboxWait() bool {
	hasOtherWait := len(s.waitFD) > 0 || !s.timeouts.empty()
	mode, ready := s.mailbox.arbitrateWait(hasOtherWait)
	if ready {
		w := s.mailboxWaiter
		s.mailboxWaiter = nil
		w.FiredThreadQueue = true
		s.wakeTask(w)
		return true
	}
	switch mode {
	case waitModeCond:
		s.mailbox.waitCond()
		return true
	case waitModePipe:
		fd := s.mailbox.notificationPipeReadFD()
		_ = s.pl.registerMailboxPipe(fd)
		return false
	}
	return false
}

// pollOnce implements §4.2 step 6 / §4.4: block in the readiness handle for
// at most the time remaining until the earliest timeout, then distribute
// events to waiters.
func (s *Scheduler) pollOnce() error {
	timeoutMs := int64(-1)
	if deadline, ok := s.timeouts.nextDeadline(); ok {
		remaining := deadline.Sub(nowTime())
		if remaining < 0 {
			remaining = 0
		}
		timeoutMs = remaining.Milliseconds()
	}

	events, err := s.pl.wait(timeoutMs)
	if err != nil {
		// Kernel-fatal per spec.md §7: any non-EINTR failure from
		// epoll_wait/kevent ends the loop, and Run returns the wrapped
		// error to its caller. EINTR is already retried inside the poller
		// implementations.
		return fmt.Errorf("asyncrt: readiness wait failed: %w", err)
	}

	for _, ev := range events {
		if ev.isMailbox {
			if s.mailboxWaiter != nil {
				w := s.mailboxWaiter
				s.mailboxWaiter = nil
				w.FiredThreadQueue = true
				s.wakeTask(w)
				if fd := s.mailbox.notificationPipeReadFD(); fd >= 0 {
					_ = s.pl.unregisterMailboxPipe(fd)
				}
				s.mailbox.resetModeLocked()
				s.mailbox.drainPipe(1)
			}
			continue
		}
		set, ok := s.waitFD[ev.Key]
		if !ok {
			continue
		}
		delete(s.waitFD, ev.Key)
		_ = s.pl.unregister(ev.Key)
		for _, t := range set {
			t.FiredFD = append(t.FiredFD, FiredFD{Key: ev.Key, Flags: ev.Flags, Data: ev.Data})
			s.wakeTask(t)
		}
	}
	return nil
}

// wakeStreamReader looks up identity in the wait-stream table and wakes the
// single registered reader, if any. Called by Stream[T].Push/PushEOF.
func (s *Scheduler) wakeStreamReader(identity *RingIdentity) {
	t, ok := s.waitStream[identity]
	if !ok {
		return
	}
	delete(s.waitStream, identity)
	t.FiredStream = append(t.FiredStream, identity)
	s.wakeTask(t)
}

// --- global registry -------------------------------------------------

var (
	registryMu sync.RWMutex
	registry   = make(map[uint64]*Scheduler)
)

// registerScheduler is spec.md §2's global registry: a lock (a plain
// sync.RWMutex here — see SPEC_FULL.md §5 expansion on why no HTM
// substitute was sought) mapping a thread id to its Scheduler.
func registerScheduler(threadID uint64, s *Scheduler) error {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, exists := registry[threadID]; exists {
		return fmt.Errorf("asyncrt: scheduler already registered for thread %d", threadID)
	}
	registry[threadID] = s
	return nil
}

// Lookup returns the scheduler registered for threadID, if any.
func Lookup(threadID uint64) (*Scheduler, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	s, ok := registry[threadID]
	return s, ok
}

// Deregister removes threadID's scheduler from the global registry and
// closes its readiness handle. Callers should do this once Run returns.
func (s *Scheduler) Deregister() error {
	registryMu.Lock()
	delete(registry, s.threadID)
	registryMu.Unlock()
	return s.pl.close()
}
