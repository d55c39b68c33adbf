//go:build darwin || freebsd || netbsd || openbsd

package asyncrt

import (
	"fmt"

	"golang.org/x/sys/unix"

	"fortio.org/safecast"
)

// kqueuePoller is weave's level-triggered readiness backend. Grounded on
// the joeycumines-go-utilpkg eventloop's poller_darwin.go (kqueue/kevent
// shape) and on original_source's select_fd() KQUEUE branch, which batches
// EV_DELETE kevents on cancellation rather than epoll's interest-downgrade
// dance.
type kqueuePoller struct {
	fd        int
	mailboxFD int
}

// backendName identifies this build's compiled-in poller backend, so
// Init can assert it against Config.PollerBackend when weave.toml's
// [poller].backend names one explicitly.
const backendName = "kqueue"

func newPoller() (poller, error) {
	fd, err := unix.Kqueue()
	if err != nil {
		return nil, fmt.Errorf("kqueue: %w", err)
	}
	return &kqueuePoller{fd: fd, mailboxFD: -1}, nil
}

func kqFilter(f Filter) int16 {
	if f == FilterWrite {
		return unix.EVFILT_WRITE
	}
	return unix.EVFILT_READ
}

func (p *kqueuePoller) changeOne(ident int, filter int16, flags uint16) error {
	kev := unix.Kevent_t{
		Ident:  uint64(ident),
		Filter: filter,
		Flags:  flags,
	}
	_, err := unix.Kevent(p.fd, []unix.Kevent_t{kev}, nil, nil)
	return err
}

func (p *kqueuePoller) register(key WaitKey) error {
	if err := p.changeOne(key.FD, kqFilter(key.Filter), unix.EV_ADD|unix.EV_ENABLE); err != nil {
		return fmt.Errorf("kevent add: %w", err)
	}
	return nil
}

func (p *kqueuePoller) unregister(key WaitKey) error {
	// EV_DELETE on a filter not currently registered returns ENOENT, which
	// is harmless here: the task may be cancelling a wait that already
	// fired and was implicitly consumed.
	if err := p.changeOne(key.FD, kqFilter(key.Filter), unix.EV_DELETE); err != nil && err != unix.ENOENT {
		return fmt.Errorf("kevent delete: %w", err)
	}
	return nil
}

func (p *kqueuePoller) registerMailboxPipe(fd int) error {
	p.mailboxFD = fd
	return p.changeOne(fd, unix.EVFILT_READ, unix.EV_ADD|unix.EV_ENABLE)
}

func (p *kqueuePoller) unregisterMailboxPipe(fd int) error {
	err := p.changeOne(fd, unix.EVFILT_READ, unix.EV_DELETE)
	p.mailboxFD = -1
	if err != nil && err != unix.ENOENT {
		return fmt.Errorf("kevent delete mailbox: %w", err)
	}
	return nil
}

func (p *kqueuePoller) wait(timeoutMs int64) ([]readinessEvent, error) {
	var ts *unix.Timespec
	if timeoutMs >= 0 {
		ns, err := safecast.Conv[int64](timeoutMs * int64(1_000_000))
		if err != nil {
			return nil, fmt.Errorf("timeout conversion: %w", err)
		}
		spec := unix.NsecToTimespec(ns)
		ts = &spec
	}

	events := make([]unix.Kevent_t, 64)
	var n int
	var err error
	for {
		n, err = unix.Kevent(p.fd, nil, events, ts)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("kevent wait: %w", err)
		}
		break
	}

	out := make([]readinessEvent, 0, n)
	for i := 0; i < n; i++ {
		kev := events[i]
		fd := int(kev.Ident)
		if fd == p.mailboxFD {
			out = append(out, readinessEvent{isMailbox: true, Flags: uint32(kev.Flags), Data: kev.Data})
			continue
		}
		filter := FilterRead
		if kev.Filter == unix.EVFILT_WRITE {
			filter = FilterWrite
		}
		out = append(out, readinessEvent{
			Key:   WaitKey{FD: fd, Filter: filter},
			Flags: uint32(kev.Flags),
			Data:  kev.Data,
		})
	}
	return out, nil
}

func (p *kqueuePoller) close() error {
	for {
		err := unix.Close(p.fd)
		if err == unix.EINTR {
			continue
		}
		return err
	}
}
