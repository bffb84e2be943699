//go:build !linux && !darwin && !dragonfly && !freebsd && !netbsd && !openbsd

// File: poller/poller_stub.go
// Author: momentics <momentics@gmail.com>
//
// Stub for platforms without a readiness backend.

package poller

import "github.com/momentics/twine/api"

// New returns an error on unsupported platforms.
func New() (Poller, error) {
	return nil, api.ErrNotSupported
}
