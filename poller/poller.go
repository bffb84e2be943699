// File: poller/poller.go
// Author: momentics <momentics@gmail.com>
//
// Platform-neutral readiness multiplexer interface.

package poller

import "time"

// EventType is a bitmask of readiness conditions. The same mask doubles
// as the interest set when registering a descriptor.
type EventType uint32

const (
	// EventRead signals the descriptor has data to read (or a pending
	// accept, or EOF).
	EventRead EventType = 1 << iota

	// EventWrite signals the descriptor accepts writes without blocking.
	EventWrite

	// EventError signals an error or hangup condition on the
	// descriptor. Readable data may still be pending and should be
	// drained before teardown.
	EventError
)

// Event is one readiness notification returned by Wait.
type Event struct {
	FD   int
	Type EventType
}

// Poller is the readiness multiplexer owned by a reactor. All methods
// except Wake must be called from the loop goroutine.
type Poller interface {
	// Add registers a descriptor with the given interest set.
	Add(fd int, interest EventType) error

	// Mod replaces the interest set of a registered descriptor.
	Mod(fd int, interest EventType) error

	// Del removes a descriptor from the watch set.
	Del(fd int) error

	// Wait blocks until readiness events arrive, the timeout elapses,
	// or Wake is called, and fills events. A negative timeout blocks
	// indefinitely. Interrupted waits return (0, nil). Any error
	// returned is fatal to the multiplexer.
	Wait(events []Event, timeout time.Duration) (int, error)

	// Wake makes a concurrent Wait return early. The only
	// goroutine-safe method.
	Wake() error

	// Close releases the underlying mechanism.
	Close() error
}
