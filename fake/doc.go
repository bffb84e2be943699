// File: fake/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Package fake provides deterministic stand-ins for protocol and timer
// tests: an in-memory Transport that records what was written to it,
// and a manually advanced Clock to plug into reactor.Config.TimeNow.
// Nothing here touches sockets or the real clock.
package fake
