// File: reactor/connect.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Outbound TCP: non-blocking connect tracked until the socket turns
// writable, then resolved through SO_ERROR.

package reactor

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"

	"github.com/momentics/twine/api"
	"github.com/momentics/twine/metrics"
	"github.com/momentics/twine/poller"
)

// connector tracks one in-progress connection attempt.
type connector struct {
	r       *Reactor
	fd      int
	peer    net.Addr
	factory api.ClientFactory
}

// Connect starts a TCP connection attempt to address and reports the
// outcome through factory: BuildProtocol and ConnectionMade on
// success, ConnectionFailed otherwise. network must be "tcp", "tcp4"
// or "tcp6". Failures detected before the attempt leaves this call
// are reported synchronously.
func (r *Reactor) Connect(network, address string, factory api.ClientFactory) {
	tcpAddr, err := net.ResolveTCPAddr(network, address)
	if err != nil {
		r.connectFailed(factory, fmt.Errorf("reactor: connect %s: %w", address, err))
		return
	}
	sa, family, err := tcpSockaddr(tcpAddr)
	if err != nil {
		r.connectFailed(factory, fmt.Errorf("reactor: connect %s: %w", address, err))
		return
	}
	fd, err := newSocket(family)
	if err != nil {
		r.connectFailed(factory, fmt.Errorf("reactor: connect %s: %w", address, err))
		return
	}
	c := &connector{r: r, fd: fd, peer: tcpAddr, factory: factory}
	switch err := unix.Connect(fd, sa); err {
	case nil:
		// Loopback fast path: connected before returning.
		c.establish()
	case unix.EINPROGRESS:
		if err := r.mux.Add(fd, poller.EventWrite); err != nil {
			unix.Close(fd)
			r.connectFailed(factory, fmt.Errorf("reactor: connect %s: %w", address, err))
			return
		}
		r.handlers[fd] = c
	default:
		unix.Close(fd)
		r.connectFailed(factory, connectError(tcpAddr, err))
	}
}

// connectError maps a kernel connect failure onto the exported
// sentinel where one exists.
func connectError(peer net.Addr, err error) error {
	if err == unix.ECONNREFUSED {
		return fmt.Errorf("%w: %v", api.ErrConnectionRefused, peer)
	}
	return fmt.Errorf("reactor: connect %v: %w", peer, err)
}

// connectFailed reports one failed attempt, guarding against factory
// panics.
func (r *Reactor) connectFailed(factory api.ClientFactory, reason error) {
	metrics.ConnectionsFailedTotal.Inc()
	r.log.Debugf("reactor: %v", reason)
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Warnf("reactor: panic in ConnectionFailed: %v", rec)
		}
	}()
	factory.ConnectionFailed(reason)
}

// OnWritable resolves the attempt: writable with no pending socket
// error means connected.
func (c *connector) OnWritable() {
	c.r.Detach(c.fd)
	soerr, err := unix.GetsockoptInt(c.fd, unix.SOL_SOCKET, unix.SO_ERROR)
	if err != nil {
		unix.Close(c.fd)
		c.r.connectFailed(c.factory, fmt.Errorf("reactor: connect %v: %w", c.peer, err))
		return
	}
	if soerr != 0 {
		unix.Close(c.fd)
		c.r.connectFailed(c.factory, connectError(c.peer, unix.Errno(soerr)))
		return
	}
	c.establish()
}

func (c *connector) establish() {
	proto := c.buildProtocol()
	if proto == nil {
		unix.Close(c.fd)
		c.r.connectFailed(c.factory, fmt.Errorf("reactor: connect %v: factory built no protocol", c.peer))
		return
	}
	if err := c.r.attach(c.fd, c.peer, proto); err != nil {
		unix.Close(c.fd)
		c.r.connectFailed(c.factory, fmt.Errorf("reactor: connect %v: %w", c.peer, err))
		return
	}
}

func (c *connector) buildProtocol() (p api.Protocol) {
	defer func() {
		if rec := recover(); rec != nil {
			c.r.log.Warnf("reactor: panic in BuildProtocol: %v", rec)
			p = nil
		}
	}()
	return c.factory.BuildProtocol(c.peer)
}

func (c *connector) OnReadable() {}

// OnError resolves the attempt the same way as writability; a failed
// connect reports both together and the registry identity check in
// dispatch keeps this from running twice.
func (c *connector) OnError() {
	c.OnWritable()
}

// Abort fails the pending attempt during loop shutdown.
func (c *connector) Abort(reason error) {
	c.r.Detach(c.fd)
	unix.Close(c.fd)
	c.r.connectFailed(c.factory, reason)
}
