// File: reactor/sock.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Sockaddr conversions shared by the listen and connect paths.

package reactor

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"
)

// tcpSockaddr converts a resolved TCP address into a kernel sockaddr
// plus its address family. A nil IP selects the IPv4 wildcard.
func tcpSockaddr(a *net.TCPAddr) (unix.Sockaddr, int, error) {
	ip := a.IP
	if ip == nil || ip.To4() != nil {
		sa := &unix.SockaddrInet4{Port: a.Port}
		if ip4 := ip.To4(); ip4 != nil {
			copy(sa.Addr[:], ip4)
		}
		return sa, unix.AF_INET, nil
	}
	if ip16 := ip.To16(); ip16 != nil {
		sa := &unix.SockaddrInet6{Port: a.Port}
		copy(sa.Addr[:], ip16)
		return sa, unix.AF_INET6, nil
	}
	return nil, 0, fmt.Errorf("unsupported address %v", a)
}

// tcpAddrOf converts a kernel sockaddr back into net.Addr form.
func tcpAddrOf(sa unix.Sockaddr) net.Addr {
	switch a := sa.(type) {
	case *unix.SockaddrInet4:
		return &net.TCPAddr{IP: append(net.IP(nil), a.Addr[:]...), Port: a.Port}
	case *unix.SockaddrInet6:
		return &net.TCPAddr{IP: append(net.IP(nil), a.Addr[:]...), Port: a.Port}
	default:
		return &net.TCPAddr{}
	}
}
