// File: reactor/reactor.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Core event loop: readiness dispatch, handler registry, shutdown.

package reactor

import (
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/momentics/twine/api"
	"github.com/momentics/twine/poller"
	"github.com/momentics/twine/transport"
)

const defaultMaxEvents = 128

// fdHandler is the dispatch surface of everything the loop registers
// with the multiplexer: established connections, listeners and
// pending outbound attempts.
type fdHandler interface {
	OnReadable()
	OnWritable()
	OnError()

	// Abort tears the handler down immediately during loop shutdown.
	Abort(reason error)
}

var (
	_ fdHandler = (*transport.Connection)(nil)
	_ fdHandler = (*Listener)(nil)
	_ fdHandler = (*connector)(nil)

	_ transport.EventLoop = (*Reactor)(nil)
)

// Config carries the reactor construction parameters. The zero value
// selects a discarding logger, the wall clock and the transport
// default watermarks.
type Config struct {
	// Logger receives reactor and transport diagnostics.
	Logger api.Logger

	// TimeNow supplies the loop clock, for tests.
	TimeNow func() time.Time

	// MaxEvents bounds the readiness batch collected per iteration.
	MaxEvents int

	// WriteHighWatermark and WriteLowWatermark configure producer flow
	// control on every connection the reactor creates, in bytes.
	WriteHighWatermark int
	WriteLowWatermark  int
}

// Reactor is a single-threaded event loop. All methods except Stop
// must run on the loop goroutine, or before Run starts.
type Reactor struct {
	log api.Logger
	now func() time.Time
	mux poller.Poller

	handlers map[int]fdHandler
	timers   timerQueue
	timerSeq uint64
	events   []poller.Event

	highWater int
	lowWater  int

	stopping atomic.Bool
	running  bool
}

// New creates a reactor over the platform readiness multiplexer.
func New(cfg Config) (*Reactor, error) {
	mux, err := poller.New()
	if err != nil {
		return nil, fmt.Errorf("reactor: %w", err)
	}
	maxEvents := cfg.MaxEvents
	if maxEvents <= 0 {
		maxEvents = defaultMaxEvents
	}
	r := &Reactor{
		log:       api.ValidLoggerOrDefault(cfg.Logger),
		now:       cfg.TimeNow,
		mux:       mux,
		handlers:  make(map[int]fdHandler),
		events:    make([]poller.Event, maxEvents),
		highWater: cfg.WriteHighWatermark,
		lowWater:  cfg.WriteLowWatermark,
	}
	if r.now == nil {
		r.now = time.Now
	}
	return r, nil
}

// Run executes the loop on the calling goroutine until Stop is called
// or no handlers and no timers remain. On exit every registered
// handler is aborted with api.ErrReactorStopped and the multiplexer
// is closed; a Reactor runs at most once.
//
// Each iteration waits for readiness no longer than the earliest
// timer deadline, dispatches the collected socket events, then fires
// due timers.
func (r *Reactor) Run() error {
	if r.running {
		return fmt.Errorf("reactor: already running")
	}
	r.running = true
	defer r.shutdown()
	r.log.Info("reactor: running")

	for {
		if r.stopping.Load() {
			r.log.Debug("reactor: stop requested")
			return nil
		}
		if len(r.handlers) == 0 && r.timers.Len() == 0 {
			r.log.Debug("reactor: nothing left to wait for")
			return nil
		}
		n, err := r.mux.Wait(r.events, r.nextTimeout())
		if err != nil {
			return fmt.Errorf("reactor: wait: %w", err)
		}
		for i := 0; i < n; i++ {
			r.dispatch(r.events[i])
		}
		r.fireDueTimers()
	}
}

// Stop requests loop exit from any goroutine. The iteration in
// progress finishes its dispatch and timer work first. Calling Stop
// more than once, or before Run, is harmless.
func (r *Reactor) Stop() {
	if !r.stopping.CompareAndSwap(false, true) {
		return
	}
	if err := r.mux.Wake(); err != nil {
		r.log.Warnf("reactor: wake: %v", err)
	}
}

// nextTimeout derives the multiplexer wait bound from the timer
// queue: indefinite when empty, zero when a timer is already due.
func (r *Reactor) nextTimeout() time.Duration {
	when, ok := r.timers.peekWhen()
	if !ok {
		return -1
	}
	d := when.Sub(r.now())
	if d < 0 {
		d = 0
	}
	return d
}

// dispatch routes one readiness event. Readable is handled first so
// that inbound data buffered by the kernel reaches the protocol
// before an error-path teardown. A handler may tear down (or be
// replaced on a reused descriptor) mid-event, so the registry entry
// is re-checked between phases.
func (r *Reactor) dispatch(ev poller.Event) {
	h, ok := r.handlers[ev.FD]
	if !ok {
		return
	}
	if ev.Type&poller.EventRead != 0 {
		h.OnReadable()
	}
	if ev.Type&poller.EventWrite != 0 && r.handlers[ev.FD] == h {
		h.OnWritable()
	}
	if ev.Type&poller.EventError != 0 && r.handlers[ev.FD] == h {
		h.OnError()
	}
}

func (r *Reactor) shutdown() {
	hs := make([]fdHandler, 0, len(r.handlers))
	for _, h := range r.handlers {
		hs = append(hs, h)
	}
	for _, h := range hs {
		h.Abort(api.ErrReactorStopped)
	}
	if err := r.mux.Close(); err != nil {
		r.log.Warnf("reactor: close multiplexer: %v", err)
	}
	r.log.Info("reactor: stopped")
}

// attach registers an established socket, wraps it in a Connection
// and delivers ConnectionMade. The caller still owns fd on error.
func (r *Reactor) attach(fd int, peer net.Addr, proto api.Protocol) error {
	if err := r.mux.Add(fd, poller.EventRead); err != nil {
		return fmt.Errorf("register fd %d: %w", fd, err)
	}
	conn := transport.NewConnection(r, fd, peer, proto, r.highWater, r.lowWater)
	r.handlers[fd] = conn
	conn.Established()
	return nil
}

// Interest replaces the readiness interest set for fd. Part of the
// transport.EventLoop contract; not for application use.
func (r *Reactor) Interest(fd int, interest poller.EventType) error {
	return r.mux.Mod(fd, interest)
}

// Detach removes fd from the registry and the multiplexer. Part of
// the transport.EventLoop contract; not for application use.
func (r *Reactor) Detach(fd int) {
	if _, ok := r.handlers[fd]; !ok {
		return
	}
	delete(r.handlers, fd)
	if err := r.mux.Del(fd); err != nil {
		r.log.Debugf("reactor: detach fd %d: %v", fd, err)
	}
}

// Logger returns the reactor logger. Part of the transport.EventLoop
// contract.
func (r *Reactor) Logger() api.Logger { return r.log }
