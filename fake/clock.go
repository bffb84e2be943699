// File: fake/clock.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Manually advanced clock for timer tests.

package fake

import (
	"sync"
	"time"
)

// Clock is a manual clock. Its Now method fits
// reactor.Config.TimeNow, so timer deadlines can be crossed by
// calling Advance instead of sleeping.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock starts a clock at the given instant.
func NewClock(start time.Time) *Clock {
	return &Clock{now: start}
}

// Now returns the current fake instant.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
