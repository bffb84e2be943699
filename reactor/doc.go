// File: reactor/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Package reactor provides the single-threaded event loop that drives
// listeners, outbound connections, established transports and timers.
//
// A Reactor owns a readiness multiplexer (package poller) and a timer
// queue. Run executes the loop on the calling goroutine: it waits for
// readiness with a timeout derived from the earliest timer, dispatches
// socket events to the registered handlers, then fires due timers.
// Control returns to the loop between callbacks; a callback that never
// returns starves the whole reactor.
//
// Everything except Stop must be called from the loop goroutine (or
// before Run starts). Stop is safe from any goroutine and wakes the
// multiplexer.
package reactor
