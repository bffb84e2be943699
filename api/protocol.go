// File: api/protocol.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Protocol and factory contracts: per-connection application logic and
// the per-listener object that produces it.

package api

import "net"

// Protocol is the per-connection application callback set. The reactor
// invokes it from the loop goroutine only, in this order: ConnectionMade
// once, DataReceived zero or more times in network arrival order, then
// ConnectionLost exactly once. After ConnectionLost no further calls of
// any kind are made.
type Protocol interface {
	// ConnectionMade is called once when the connection is established,
	// before any data is delivered. The transport is valid from this
	// point until ConnectionLost.
	ConnectionMade(t Transport)

	// DataReceived delivers raw bytes as they arrive. No framing is
	// implied; the buffer is only valid for the duration of the call
	// and must be copied if retained.
	DataReceived(data []byte)

	// ConnectionLost is called exactly once, with the reason the
	// connection went away. Terminal.
	ConnectionLost(reason error)
}

// Factory produces Protocol instances, one per connection, and is the
// place for state that outlives any single connection (rosters, shared
// counters). All invocations happen on the reactor goroutine, so factory
// state needs no locking as long as it is touched only from protocol
// callbacks and timers.
type Factory interface {
	// BuildProtocol returns the protocol for a new connection to peer.
	// Returning nil refuses the connection: the socket is closed and no
	// lifecycle callback fires.
	BuildProtocol(peer net.Addr) Protocol
}

// ClientFactory extends Factory for outbound connections.
type ClientFactory interface {
	Factory

	// ConnectionFailed is called when an outbound connection attempt
	// fails before being established. Mutually exclusive with
	// ConnectionMade for a given attempt.
	ConnectionFailed(reason error)
}

// FactoryFunc adapts a plain function to the Factory interface.
type FactoryFunc func(peer net.Addr) Protocol

// BuildProtocol implements Factory.
func (f FactoryFunc) BuildProtocol(peer net.Addr) Protocol { return f(peer) }

// BaseProtocol is an embeddable no-op Protocol that remembers its
// transport. Concrete protocols embed it and override what they need.
type BaseProtocol struct {
	Transport Transport
}

// ConnectionMade stores the transport.
func (p *BaseProtocol) ConnectionMade(t Transport) { p.Transport = t }

// DataReceived discards the data.
func (p *BaseProtocol) DataReceived(data []byte) {}

// ConnectionLost clears the transport reference.
func (p *BaseProtocol) ConnectionLost(reason error) { p.Transport = nil }
