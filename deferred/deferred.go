// File: deferred/deferred.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// The Deferred engine: registration-ordered (callback, errback) pairs
// walked iteratively with a current value and a mode decided by that
// value's type. No coroutine machinery; scheduling future work is the
// reactor's job, so the walk is a plain loop.

package deferred

import (
	"github.com/pkg/errors"

	"github.com/momentics/twine/api"
	"github.com/momentics/twine/metrics"
)

// Callback is a success-path handler. Its return value becomes the new
// chain value; returning an error or *Failure switches the chain to the
// failure path, returning a *Deferred pauses the chain until it fires.
type Callback func(result any) any

// Errback is a failure-path handler. Returning a non-error value
// switches the chain back to the success path; returning the failure
// (or any error) propagates it downstream.
type Errback func(f *Failure) any

// pair is one chain position. A nil side passes the value through.
type pair struct {
	cb Callback
	eb Errback
}

// Deferred is a one-shot result cell. Create with New, hand it out, and
// fire it exactly once via Callback or Errback; handlers added before or
// after firing run in registration order. All methods must be called
// from the goroutine that owns the deferred (the reactor goroutine).
type Deferred struct {
	chain    []pair
	index    int  // next pair to run
	fired    bool // Callback/Errback happened
	result   any  // current chain value; *Failure while in failure mode
	paused   int  // >0 while waiting on a chained deferred
	running  bool // guards re-entrant walks
	reported bool // unhandled failure already reported once
}

// New creates a pending Deferred.
func New() *Deferred {
	return &Deferred{}
}

// Succeed returns a Deferred that has already fired with result.
func Succeed(result any) *Deferred {
	d := New()
	d.fired = true
	d.result = lift(result)
	return d
}

// Fail returns a Deferred that has already fired with a failure.
func Fail(err error) *Deferred {
	d := New()
	d.fired = true
	d.result = NewFailure(err)
	return d
}

// Callback fires the deferred with result and runs the chain. Firing a
// second time returns api.ErrAlreadyCalled; firing with a *Deferred
// returns api.ErrNestedDeferred. An error (or *Failure) result starts
// the chain on the failure path.
func (d *Deferred) Callback(result any) error {
	return d.fire(result)
}

// Errback fires the deferred with a failure and runs the chain. A nil
// err produces a generic failure. Firing a second time returns
// api.ErrAlreadyCalled.
func (d *Deferred) Errback(err error) error {
	return d.fire(NewFailure(err))
}

// Fired reports whether the deferred has been fired.
func (d *Deferred) Fired() bool { return d.fired }

// AddCallbacks registers a success handler and a failure handler at the
// same chain position. They are siblings: a failure produced by cb is
// seen only by errbacks at later positions, never by eb. Either side may
// be nil to pass the value through. If the deferred has already fired
// the chain advances synchronously.
func (d *Deferred) AddCallbacks(cb Callback, eb Errback) *Deferred {
	d.chain = append(d.chain, pair{cb: cb, eb: eb})
	if d.fired {
		d.run()
	}
	return d
}

// AddCallback registers a success handler; failures pass through it.
func (d *Deferred) AddCallback(cb Callback) *Deferred {
	return d.AddCallbacks(cb, nil)
}

// AddErrback registers a failure handler; successes pass through it.
func (d *Deferred) AddErrback(eb Errback) *Deferred {
	return d.AddCallbacks(nil, eb)
}

// AddBoth registers fn on both sides of the same position; on the
// failure path fn receives the *Failure as its argument.
func (d *Deferred) AddBoth(fn Callback) *Deferred {
	return d.AddCallbacks(fn, func(f *Failure) any { return fn(f) })
}

func (d *Deferred) fire(result any) error {
	if d.fired {
		return api.ErrAlreadyCalled
	}
	if _, ok := result.(*Deferred); ok {
		return api.ErrNestedDeferred
	}
	d.fired = true
	d.result = lift(result)
	d.run()
	return nil
}

// run walks the chain from where it left off. It is a no-op while an
// outer invocation is already walking or while paused on a chained
// deferred; the loop condition re-checks both after every handler.
func (d *Deferred) run() {
	if d.running {
		return
	}
	d.running = true
	defer func() { d.running = false }()

	for d.paused == 0 && d.index < len(d.chain) {
		p := d.chain[d.index]
		d.index++

		if f, failed := d.result.(*Failure); failed {
			if p.eb == nil {
				continue
			}
			d.result = lift(invokeErrback(p.eb, f))
		} else {
			if p.cb == nil {
				continue
			}
			d.result = lift(invokeCallback(p.cb, d.result))
		}

		if inner, ok := d.result.(*Deferred); ok {
			d.pauseOn(inner)
		}
	}

	if d.paused == 0 && d.index >= len(d.chain) {
		if f, failed := d.result.(*Failure); failed && !d.reported {
			d.reported = true
			reportUnhandled(f)
		}
	}
}

// pauseOn suspends the chain until inner fires. The inner deferred's
// result is handed over to this chain and consumed, so a failure
// travelling through a chained deferred is reported at most once.
func (d *Deferred) pauseOn(inner *Deferred) {
	d.paused++
	inner.AddBoth(func(result any) any {
		d.paused--
		d.result = lift(result)
		d.run()
		return nil
	})
}

// lift normalizes a handler return or fire value: errors become
// Failures, everything else passes through unchanged.
func lift(v any) any {
	switch x := v.(type) {
	case *Failure:
		return x
	case error:
		return NewFailure(x)
	default:
		return v
	}
}

// invokeCallback runs cb, converting a panic into a Failure so a broken
// handler cannot take down the reactor loop.
func invokeCallback(cb Callback, v any) (out any) {
	defer func() {
		if r := recover(); r != nil {
			out = panicFailure(r)
		}
	}()
	return cb(v)
}

// invokeErrback runs eb with the same panic containment.
func invokeErrback(eb Errback, f *Failure) (out any) {
	defer func() {
		if r := recover(); r != nil {
			out = panicFailure(r)
		}
	}()
	return eb(f)
}

func panicFailure(r any) *Failure {
	if err, ok := r.(error); ok {
		return NewFailure(errors.Wrap(err, "panic in deferred handler"))
	}
	return NewFailure(errors.Errorf("panic in deferred handler: %v", r))
}

// pkgLogger receives unhandled-failure warnings; discarding by default.
var pkgLogger = api.DiscardLogger

// SetLogger routes unhandled-failure reports to l. Intended to be set
// once during program initialization.
func SetLogger(l api.Logger) {
	pkgLogger = api.ValidLoggerOrDefault(l)
}

// unhandledHandler is invoked the first time a chain runs dry while
// carrying a failure. The failure stays stored, so an errback added
// later still receives it; the report flags the moment nothing was
// there to catch it.
var unhandledHandler = func(f *Failure) {
	pkgLogger.Warnf("deferred: unhandled failure: %+v", f)
}

// SetUnhandledHandler replaces the unhandled-failure hook. A nil fn
// restores nothing; the metrics counter is bumped regardless of the
// installed hook.
func SetUnhandledHandler(fn func(f *Failure)) {
	if fn != nil {
		unhandledHandler = fn
	}
}

func reportUnhandled(f *Failure) {
	metrics.DeferredUnhandledTotal.Inc()
	unhandledHandler(f)
}
