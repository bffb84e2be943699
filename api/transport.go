// File: api/transport.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Transport abstraction: the per-connection write side handed to a
// Protocol. Implementations buffer writes and perform socket I/O from
// the reactor loop, never from the caller.

package api

import "net"

// Transport is the per-connection I/O handle bound to exactly one
// Protocol. Write and WriteSequence append to an outgoing buffer and
// never block; the actual socket write happens on the next writable
// event in the loop, so a slow consumer backs data up in the transport
// rather than stalling the reactor.
type Transport interface {
	// Write queues data for delivery. The slice is copied; the caller
	// may reuse it immediately.
	Write(data []byte)

	// WriteSequence queues each chunk in order, equivalent to calling
	// Write per chunk. Chunks from one WriteSequence are never
	// interleaved with writes from other transports.
	WriteSequence(chunks [][]byte)

	// LoseConnection flushes pending output, then closes the
	// descriptor and deregisters it exactly once. ConnectionLost is
	// delivered to the protocol exactly once afterwards. Safe to call
	// more than once.
	LoseConnection()

	// Peer returns the remote address captured when the connection was
	// established. Immutable.
	Peer() net.Addr
}

// Producer is an optional capability a Protocol may implement to take
// part in write-side backpressure. When the transport's pending output
// crosses its high watermark the reactor calls PauseProducing; when it
// drains below the low watermark it calls ResumeProducing. Protocols
// that do not implement Producer get unbounded buffering.
type Producer interface {
	PauseProducing()
	ResumeProducing()
}
