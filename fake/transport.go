// File: fake/transport.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// In-memory api.Transport that records writes instead of performing
// socket I/O.

package fake

import (
	"net"
	"sync"

	"github.com/google/uuid"

	"github.com/momentics/twine/api"
)

// Transport implements api.Transport against memory. Every chunk
// passed to Write or WriteSequence is copied and recorded in call
// order. The mutex only guards test-side inspection; protocols under
// test drive it from a single goroutine like the real transport.
type Transport struct {
	mu     sync.Mutex
	id     uuid.UUID
	peer   net.Addr
	chunks [][]byte
	closed bool
}

var _ api.Transport = (*Transport)(nil)

// NewTransport returns an open fake transport with a loopback peer.
func NewTransport() *Transport {
	return &Transport{
		id:   uuid.New(),
		peer: &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0},
	}
}

// SetPeer overrides the address reported by Peer.
func (t *Transport) SetPeer(addr net.Addr) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.peer = addr
}

// ID returns the transport identifier, mirroring the real connection
// transport.
func (t *Transport) ID() uuid.UUID { return t.id }

// Write records a copy of data. Writes after LoseConnection are
// dropped, like the real transport.
func (t *Transport) Write(data []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed || len(data) == 0 {
		return
	}
	t.chunks = append(t.chunks, append([]byte(nil), data...))
}

// WriteSequence records each chunk in order.
func (t *Transport) WriteSequence(chunks [][]byte) {
	for _, chunk := range chunks {
		t.Write(chunk)
	}
}

// LoseConnection marks the transport closed. There is no buffer to
// drain, so it takes effect immediately.
func (t *Transport) LoseConnection() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
}

// Peer returns the configured peer address.
func (t *Transport) Peer() net.Addr {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.peer
}

// Closed reports whether LoseConnection was called.
func (t *Transport) Closed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

// Written returns the recorded chunks in write order.
func (t *Transport) Written() [][]byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([][]byte, len(t.chunks))
	copy(out, t.chunks)
	return out
}

// Concatenated returns every written byte in order, the view a peer
// would observe.
func (t *Transport) Concatenated() []byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []byte
	for _, chunk := range t.chunks {
		out = append(out, chunk...)
	}
	return out
}

// Reset forgets recorded chunks and reopens the transport.
func (t *Transport) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.chunks = nil
	t.closed = false
}
