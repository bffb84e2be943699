// File: reactor/listen.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// TCP listener: binds a socket, accepts until the queue drains and
// hands every accepted connection a factory-built protocol.

package reactor

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"

	"github.com/momentics/twine/api"
	"github.com/momentics/twine/deferred"
	"github.com/momentics/twine/metrics"
	"github.com/momentics/twine/poller"
)

// Listener is a bound, accepting TCP socket registered with the loop.
type Listener struct {
	r       *Reactor
	fd      int
	addr    net.Addr
	factory api.Factory
	closed  bool
}

// Listen binds address and starts accepting. Every accepted
// connection gets a protocol built by factory; a nil protocol refuses
// the connection. network must be "tcp", "tcp4" or "tcp6". Port zero
// selects an ephemeral port, readable from Addr afterwards.
func (r *Reactor) Listen(network, address string, factory api.Factory) (*Listener, error) {
	tcpAddr, err := net.ResolveTCPAddr(network, address)
	if err != nil {
		return nil, fmt.Errorf("reactor: listen %s: %w", address, err)
	}
	sa, family, err := tcpSockaddr(tcpAddr)
	if err != nil {
		return nil, fmt.Errorf("reactor: listen %s: %w", address, err)
	}
	fd, err := newSocket(family)
	if err != nil {
		return nil, fmt.Errorf("reactor: listen %s: %w", address, err)
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("reactor: listen %s: %w", address, err)
	}
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("reactor: bind %s: %w", address, err)
	}
	if err := unix.Listen(fd, unix.SOMAXCONN); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("reactor: listen %s: %w", address, err)
	}
	bound, err := unix.Getsockname(fd)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("reactor: listen %s: %w", address, err)
	}
	ln := &Listener{r: r, fd: fd, addr: tcpAddrOf(bound), factory: factory}
	if err := r.mux.Add(fd, poller.EventRead); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("reactor: listen %s: %w", address, err)
	}
	r.handlers[fd] = ln
	r.log.Infof("reactor: listening on %v", ln.addr)
	return ln, nil
}

// Addr returns the bound local address.
func (ln *Listener) Addr() net.Addr { return ln.addr }

// StopListening closes the listening socket; established connections
// are unaffected. The returned deferred fires with the listener once
// the port is released, or fails with api.ErrListenerClosed when it
// already was.
func (ln *Listener) StopListening() *deferred.Deferred {
	d := deferred.New()
	if ln.closed {
		_ = d.Errback(api.ErrListenerClosed)
		return d
	}
	ln.close()
	_ = d.Callback(ln)
	return d
}

func (ln *Listener) close() {
	ln.closed = true
	ln.r.Detach(ln.fd)
	if err := unix.Close(ln.fd); err != nil {
		ln.r.log.Debugf("reactor: close listener %v: %v", ln.addr, err)
	}
	ln.r.log.Infof("reactor: stopped listening on %v", ln.addr)
}

// OnReadable accepts connections until the backlog drains.
func (ln *Listener) OnReadable() {
	for !ln.closed {
		nfd, sa, err := acceptSocket(ln.fd)
		if err != nil {
			switch err {
			case unix.EAGAIN:
				return
			case unix.EINTR, unix.ECONNABORTED:
				continue
			default:
				// Includes descriptor exhaustion; the backlog entry
				// stays queued and is retried on the next readiness
				// notification.
				ln.r.log.Warnf("reactor: accept on %v: %v", ln.addr, err)
				return
			}
		}
		ln.accepted(nfd, sa)
	}
}

func (ln *Listener) accepted(nfd int, sa unix.Sockaddr) {
	peer := tcpAddrOf(sa)
	proto := ln.buildProtocol(peer)
	if proto == nil {
		unix.Close(nfd)
		ln.r.log.Debugf("reactor: refused connection from %v", peer)
		return
	}
	if err := ln.r.attach(nfd, peer, proto); err != nil {
		unix.Close(nfd)
		ln.r.log.Warnf("reactor: accept on %v: %v", ln.addr, err)
		return
	}
	metrics.ConnectionsAcceptedTotal.Inc()
}

// buildProtocol guards the factory call; a panic refuses the single
// connection instead of unwinding the loop.
func (ln *Listener) buildProtocol(peer net.Addr) (p api.Protocol) {
	defer func() {
		if rec := recover(); rec != nil {
			ln.r.log.Warnf("reactor: panic in BuildProtocol: %v", rec)
			p = nil
		}
	}()
	return ln.factory.BuildProtocol(peer)
}

func (ln *Listener) OnWritable() {}

func (ln *Listener) OnError() {
	ln.r.log.Warnf("reactor: error event on listener %v", ln.addr)
}

// Abort closes the listener during loop shutdown.
func (ln *Listener) Abort(reason error) {
	if ln.closed {
		return
	}
	ln.close()
}
