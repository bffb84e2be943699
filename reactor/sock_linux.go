// File: reactor/sock_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

//go:build linux

package reactor

import "golang.org/x/sys/unix"

// newSocket opens a non-blocking, close-on-exec TCP socket.
func newSocket(family int) (int, error) {
	return unix.Socket(family, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
}

// acceptSocket accepts one connection with the non-blocking and
// close-on-exec flags applied atomically.
func acceptSocket(fd int) (int, unix.Sockaddr, error) {
	return unix.Accept4(fd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
}
