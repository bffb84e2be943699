// File: transport/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Package transport implements the stream connection transport driven
// by the event loop.
//
// A Connection owns one non-blocking socket. The loop notifies it of
// readiness through OnReadable, OnWritable and OnError; the protocol
// writes through the api.Transport interface. All writes are buffered
// in user space and flushed opportunistically, so Write never blocks
// and never fails. Teardown is delivered to the protocol exactly once
// via ConnectionLost.
//
// Connections are confined to the loop goroutine and perform no
// internal locking.
package transport
