// Package api
// Author: momentics <momentics@gmail.com>
//
// Common error values shared across the twine packages. Connection
// teardown reasons, deferred misuse errors, and platform support errors
// all live here so callers can match them with errors.Is.

package api

import "fmt"

// Sentinel errors used across the library.
var (
	// ErrConnectionDone is the teardown reason for a connection that was
	// closed cleanly, either by LoseConnection or by an orderly remote
	// shutdown.
	ErrConnectionDone = fmt.Errorf("connection closed cleanly")

	// ErrConnectionLost is the teardown reason for a connection that
	// went away non-cleanly (reset, I/O error). Wrapped with the
	// underlying cause where one exists.
	ErrConnectionLost = fmt.Errorf("connection lost in a non-clean fashion")

	// ErrConnectionRefused reports an outbound attempt rejected by the
	// remote end.
	ErrConnectionRefused = fmt.Errorf("connection refused")

	// ErrReactorStopped is the teardown reason delivered to transports
	// still registered when the reactor exits its run loop.
	ErrReactorStopped = fmt.Errorf("reactor stopped")

	// ErrListenerClosed reports operations on a listener after
	// StopListening.
	ErrListenerClosed = fmt.Errorf("listener is closed")

	// ErrAlreadyCalled reports a second fire of a Deferred.
	ErrAlreadyCalled = fmt.Errorf("deferred has already been fired")

	// ErrNestedDeferred reports firing a Deferred with another Deferred
	// as its result, which is a programming error; chain handlers may
	// return Deferreds, fire sites may not.
	ErrNestedDeferred = fmt.Errorf("deferred result must not be a deferred")

	// ErrNotSupported reports a platform without a poller backend.
	ErrNotSupported = fmt.Errorf("operation not supported on this platform")
)
