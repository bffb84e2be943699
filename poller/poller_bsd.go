//go:build darwin || dragonfly || freebsd || netbsd || openbsd

// File: poller/poller_bsd.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// kqueue(2) backend for Darwin and the BSDs. Read and write filters are
// added together and toggled with EV_ENABLE/EV_DISABLE so Mod is a
// single kevent call; a self-pipe implements Wake.

package poller

import (
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

// kqueuePoller implements Poller on top of kqueue.
type kqueuePoller struct {
	kq    int
	wakeR int
	wakeW int
	raw   []unix.Kevent_t
}

// New constructs the platform poller.
func New() (Poller, error) {
	kq, err := unix.Kqueue()
	if err != nil {
		return nil, fmt.Errorf("kqueue: %w", err)
	}
	var pipefds [2]int
	if err := unix.Pipe(pipefds[:]); err != nil {
		unix.Close(kq)
		return nil, fmt.Errorf("wake pipe: %w", err)
	}
	for _, fd := range pipefds {
		unix.SetNonblock(fd, true)
		unix.CloseOnExec(fd)
	}
	p := &kqueuePoller{kq: kq, wakeR: pipefds[0], wakeW: pipefds[1]}

	var ev unix.Kevent_t
	unix.SetKevent(&ev, p.wakeR, unix.EVFILT_READ, unix.EV_ADD|unix.EV_ENABLE)
	if _, err := unix.Kevent(kq, []unix.Kevent_t{ev}, nil, nil); err != nil {
		p.Close()
		return nil, fmt.Errorf("kevent add wake pipe: %w", err)
	}
	return p, nil
}

// Add registers fd with the given interest.
func (p *kqueuePoller) Add(fd int, interest EventType) error {
	return p.apply(fd, interest)
}

// Mod replaces the interest set of fd.
func (p *kqueuePoller) Mod(fd int, interest EventType) error {
	return p.apply(fd, interest)
}

// apply installs both filters with the enable bit matching interest.
// EV_ADD on an existing filter only updates its flags, so Add and Mod
// share this path.
func (p *kqueuePoller) apply(fd int, interest EventType) error {
	changes := make([]unix.Kevent_t, 2)
	unix.SetKevent(&changes[0], fd, unix.EVFILT_READ, unix.EV_ADD|enableBit(interest&EventRead != 0))
	unix.SetKevent(&changes[1], fd, unix.EVFILT_WRITE, unix.EV_ADD|enableBit(interest&EventWrite != 0))
	if _, err := unix.Kevent(p.kq, changes, nil, nil); err != nil {
		return fmt.Errorf("kevent apply: %w", err)
	}
	return nil
}

// Del removes both filters for fd.
func (p *kqueuePoller) Del(fd int) error {
	for _, filter := range []int{unix.EVFILT_READ, unix.EVFILT_WRITE} {
		var ev unix.Kevent_t
		unix.SetKevent(&ev, fd, filter, unix.EV_DELETE)
		if _, err := unix.Kevent(p.kq, []unix.Kevent_t{ev}, nil, nil); err != nil && err != unix.ENOENT {
			return fmt.Errorf("kevent delete: %w", err)
		}
	}
	return nil
}

// Wait blocks for readiness up to timeout and translates kevents.
func (p *kqueuePoller) Wait(events []Event, timeout time.Duration) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}
	if cap(p.raw) < len(events) {
		p.raw = make([]unix.Kevent_t, len(events))
	}
	raw := p.raw[:len(events)]

	var ts *unix.Timespec
	if timeout >= 0 {
		t := unix.NsecToTimespec(int64(timeout))
		ts = &t
	}

	n, err := unix.Kevent(p.kq, nil, raw, ts)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, fmt.Errorf("kevent wait: %w", err)
	}

	out := 0
	for i := 0; i < n; i++ {
		ev := raw[i]
		fd := int(ev.Ident)
		if fd == p.wakeR {
			p.drainWake()
			continue
		}
		var t EventType
		switch ev.Filter {
		case unix.EVFILT_READ:
			t |= EventRead
		case unix.EVFILT_WRITE:
			t |= EventWrite
		}
		if ev.Flags&unix.EV_ERROR != 0 {
			t |= EventError
		}
		events[out] = Event{FD: fd, Type: t}
		out++
	}
	return out, nil
}

// Wake writes a byte into the self-pipe.
func (p *kqueuePoller) Wake() error {
	_, err := unix.Write(p.wakeW, []byte{0})
	if err == unix.EAGAIN {
		return nil // pipe full, wakeup already pending
	}
	return err
}

func (p *kqueuePoller) drainWake() {
	var buf [64]byte
	for {
		if _, err := unix.Read(p.wakeR, buf[:]); err != nil {
			return
		}
	}
}

// Close releases the kqueue and the wake pipe.
func (p *kqueuePoller) Close() error {
	unix.Close(p.wakeR)
	unix.Close(p.wakeW)
	return unix.Close(p.kq)
}

func enableBit(on bool) int {
	if on {
		return unix.EV_ENABLE
	}
	return unix.EV_DISABLE
}
