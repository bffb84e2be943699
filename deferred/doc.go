// Package deferred
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// One-shot, chainable result cells for sequencing asynchronous work on a
// single-threaded reactor. A Deferred accumulates (callback, errback)
// pairs, fires exactly once with a value or a Failure, and walks the
// chain synchronously: each pair contributes the handler matching the
// current mode, the handler's return value becomes the next value, and
// returning an error (or panicking) transfers control to the next
// errback downstream. A handler returning another Deferred pauses the
// chain until the inner one fires.
//
// Nothing here is goroutine-safe; a Deferred belongs to the reactor
// goroutine that fires it, which is what makes synchronous chain
// execution sound.

package deferred
