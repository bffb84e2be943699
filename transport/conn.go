// File: transport/conn.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Stream connection transport: buffered writes, readiness handlers,
// watermark-based producer flow control, exactly-once teardown.

package transport

import (
	"fmt"
	"net"

	"github.com/eapache/queue"
	"github.com/google/uuid"
	"golang.org/x/sys/unix"

	"github.com/momentics/twine/api"
	"github.com/momentics/twine/metrics"
	"github.com/momentics/twine/pool"
	"github.com/momentics/twine/poller"
)

// Default write-buffer watermarks, in bytes. When the amount of
// buffered outgoing data crosses the high watermark a protocol that
// implements api.Producer is paused; once the buffer drains below the
// low watermark it is resumed.
const (
	DefaultHighWatermark = 64 * 1024
	DefaultLowWatermark  = 16 * 1024
)

// EventLoop is the narrow surface of the event loop a Connection
// drives. It is implemented by reactor.Reactor; the indirection keeps
// this package independent of the loop implementation.
type EventLoop interface {
	// Interest replaces the readiness interest set for fd.
	Interest(fd int, interest poller.EventType) error
	// Detach deregisters fd from the loop after the descriptor owner
	// has torn down.
	Detach(fd int)
	// Logger returns the loop logger.
	Logger() api.Logger
}

// Connection is a stream socket bound to a protocol instance. It
// implements api.Transport for the protocol side and the readiness
// handlers called by the event loop.
type Connection struct {
	loop  EventLoop
	fd    int
	id    uuid.UUID
	peer  net.Addr
	proto api.Protocol

	out     *queue.Queue // FIFO of []byte chunks awaiting the socket
	headOff int          // bytes of the head chunk already written
	pending int          // total buffered bytes

	highWater int
	lowWater  int
	paused    bool // producer paused above the high watermark

	disconnecting bool // LoseConnection called, draining
	closed        bool // torn down, ConnectionLost delivered

	bufs *pool.BytePool
}

var _ api.Transport = (*Connection)(nil)

// NewConnection wraps an established non-blocking socket. The
// descriptor must already be registered with the loop for read
// readiness. Watermarks at or below zero select the defaults.
func NewConnection(loop EventLoop, fd int, peer net.Addr, proto api.Protocol, highWater, lowWater int) *Connection {
	if highWater <= 0 {
		highWater = DefaultHighWatermark
	}
	if lowWater <= 0 || lowWater >= highWater {
		lowWater = highWater / 4
	}
	return &Connection{
		loop:      loop,
		fd:        fd,
		id:        uuid.New(),
		peer:      peer,
		proto:     proto,
		out:       queue.New(),
		highWater: highWater,
		lowWater:  lowWater,
		bufs:      pool.Default(),
	}
}

// ID returns the connection identifier assigned at construction.
func (c *Connection) ID() uuid.UUID { return c.id }

// Peer returns the remote address captured when the connection was
// established.
func (c *Connection) Peer() net.Addr { return c.peer }

// Established delivers ConnectionMade to the protocol. The loop calls
// it once, after registering the descriptor.
func (c *Connection) Established() {
	metrics.ConnectionsActive.Inc()
	c.loop.Logger().Debugf("transport %s: established peer=%v", c.id, c.peer)
	defer func() {
		if r := recover(); r != nil {
			c.loop.Logger().Warnf("transport %s: panic in ConnectionMade: %v", c.id, r)
			c.teardown(fmt.Errorf("%w: panic in ConnectionMade: %v", api.ErrConnectionLost, r))
		}
	}()
	c.proto.ConnectionMade(c)
}

// Write copies data into the outgoing buffer and requests write
// readiness. Writes after LoseConnection or teardown are dropped.
func (c *Connection) Write(data []byte) {
	if c.disconnecting || c.closed {
		c.loop.Logger().Debugf("transport %s: dropped %d byte write after close", c.id, len(data))
		return
	}
	if len(data) == 0 {
		return
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	c.out.Add(buf)
	c.pending += len(buf)
	c.updateInterest()
	c.checkHighWater()
}

// WriteSequence queues each chunk in order, equivalent to calling
// Write per chunk.
func (c *Connection) WriteSequence(chunks [][]byte) {
	for _, chunk := range chunks {
		c.Write(chunk)
	}
}

// LoseConnection closes the connection after the outgoing buffer has
// drained. No further data is read or accepted for writing.
func (c *Connection) LoseConnection() {
	if c.disconnecting || c.closed {
		return
	}
	c.disconnecting = true
	if c.out.Length() == 0 {
		c.teardown(api.ErrConnectionDone)
		return
	}
	// Stop reading, keep flushing; teardown happens in OnWritable
	// once the buffer empties.
	c.updateInterest()
}

// Abort tears the connection down immediately, discarding any
// buffered outgoing data.
func (c *Connection) Abort(reason error) {
	c.teardown(reason)
}

// OnReadable drains the socket and delivers the data to the protocol.
func (c *Connection) OnReadable() {
	buf := c.bufs.Get()
	defer c.bufs.Put(buf)
	for !c.closed && !c.disconnecting {
		n, err := unix.Read(c.fd, buf)
		switch {
		case n > 0:
			metrics.BytesReceivedTotal.Add(float64(n))
			if !c.deliver(buf[:n]) {
				return
			}
			// Keep reading after a short read: an EOF queued behind
			// the data surfaces in this pass, not the next one.
		case err == unix.EINTR:
			continue
		case err == unix.EAGAIN:
			return
		case err != nil:
			c.teardown(fmt.Errorf("%w: read: %v", api.ErrConnectionLost, err))
			return
		default:
			// n == 0, err == nil: remote closed its side.
			c.teardown(api.ErrConnectionDone)
			return
		}
	}
}

// deliver hands one chunk to the protocol. A panic in DataReceived
// tears down this connection only; the loop keeps running. Reports
// whether the connection is still up.
func (c *Connection) deliver(data []byte) (alive bool) {
	defer func() {
		if r := recover(); r != nil {
			c.loop.Logger().Warnf("transport %s: panic in DataReceived: %v", c.id, r)
			c.teardown(fmt.Errorf("%w: panic in DataReceived: %v", api.ErrConnectionLost, r))
			alive = false
		}
	}()
	c.proto.DataReceived(data)
	return !c.closed
}

// OnWritable flushes buffered chunks until the socket would block or
// the buffer empties. The low-water check runs on every exit, not just
// a full drain, so a paused producer resumes as soon as enough pending
// bytes have left the buffer.
func (c *Connection) OnWritable() {
	for !c.closed && c.out.Length() > 0 {
		head := c.out.Peek().([]byte)
		chunk := head[c.headOff:]
		n, err := unix.Write(c.fd, chunk)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			if err == unix.EAGAIN {
				break
			}
			c.teardown(fmt.Errorf("%w: write: %v", api.ErrConnectionLost, err))
			return
		}
		metrics.BytesSentTotal.Add(float64(n))
		c.pending -= n
		if n < len(chunk) {
			// Kernel buffer full; keep the remainder at the head.
			c.headOff += n
			break
		}
		c.headOff = 0
		c.out.Remove()
	}
	if c.closed {
		return
	}
	if c.disconnecting {
		if c.out.Length() == 0 {
			c.teardown(api.ErrConnectionDone)
		}
		return
	}
	c.checkLowWater()
	c.updateInterest()
}

// OnError resolves the pending socket error and tears down.
func (c *Connection) OnError() {
	if c.closed {
		return
	}
	reason := error(api.ErrConnectionLost)
	if soerr, err := unix.GetsockoptInt(c.fd, unix.SOL_SOCKET, unix.SO_ERROR); err == nil && soerr != 0 {
		reason = fmt.Errorf("%w: %v", api.ErrConnectionLost, unix.Errno(soerr))
	}
	c.teardown(reason)
}

// updateInterest recomputes the readiness interest set from the
// connection state.
func (c *Connection) updateInterest() {
	if c.closed {
		return
	}
	var interest poller.EventType
	if !c.disconnecting {
		interest |= poller.EventRead
	}
	if c.out.Length() > 0 {
		interest |= poller.EventWrite
	}
	if err := c.loop.Interest(c.fd, interest); err != nil {
		c.teardown(fmt.Errorf("%w: interest: %v", api.ErrConnectionLost, err))
	}
}

func (c *Connection) checkHighWater() {
	if c.paused || c.pending <= c.highWater {
		return
	}
	if p, ok := c.proto.(api.Producer); ok {
		c.paused = true
		c.loop.Logger().Debugf("transport %s: buffer above high watermark, pausing producer", c.id)
		p.PauseProducing()
	}
}

func (c *Connection) checkLowWater() {
	if !c.paused || c.pending > c.lowWater {
		return
	}
	if p, ok := c.proto.(api.Producer); ok {
		c.paused = false
		c.loop.Logger().Debugf("transport %s: buffer below low watermark, resuming producer", c.id)
		p.ResumeProducing()
	}
}

// teardown closes the descriptor, detaches from the loop and delivers
// ConnectionLost. Safe to call more than once; only the first call
// acts.
func (c *Connection) teardown(reason error) {
	if c.closed {
		return
	}
	c.closed = true
	c.disconnecting = true
	c.loop.Detach(c.fd)
	if err := unix.Close(c.fd); err != nil {
		c.loop.Logger().Debugf("transport %s: close: %v", c.id, err)
	}
	metrics.ConnectionsActive.Dec()
	c.loop.Logger().Debugf("transport %s: closed peer=%v reason=%v", c.id, c.peer, reason)
	c.notifyLost(reason)
}

func (c *Connection) notifyLost(reason error) {
	defer func() {
		if r := recover(); r != nil {
			c.loop.Logger().Warnf("transport %s: panic in ConnectionLost: %v", c.id, r)
		}
	}()
	c.proto.ConnectionLost(reason)
}
