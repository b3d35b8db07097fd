package testutil

import (
	"sync"
	"time"
)

// Clock is a settable time source. Pass its Now method wherever a
// constructor accepts a clock function.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock starts at FixedTime unless a start time is given.
func NewClock(start ...time.Time) *Clock {
	c := &Clock{now: FixedTime}
	if len(start) > 0 {
		c.now = start[0]
	}
	return c
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d and returns the new time.
func (c *Clock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}
