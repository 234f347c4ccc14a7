package testutil

import (
	"sync"
	"time"
)

// Epoch is the default start time of a FixedClock: 2025-01-02 03:04:05 UTC.
var Epoch = time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

// FixedClock provides a thread-safe, manually advanced wall clock for tests.
//
// Implements engine.Clock. Unlike engine.SystemClock, FixedClock only moves
// when Advance is called, so every timestamp a run writes is reproducible.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type FixedClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewFixedClock creates a clock frozen at start. A zero start uses Epoch.
func NewFixedClock(start time.Time) *FixedClock {
	if start.IsZero() {
		start = Epoch
	}
	return &FixedClock{now: start.UTC()}
}

// Now returns the frozen time.
func (c *FixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d and returns the new time.
func (c *FixedClock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}

// Reset moves the clock back to start. A zero start uses Epoch.
func (c *FixedClock) Reset(start time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if start.IsZero() {
		start = Epoch
	}
	c.now = start.UTC()
}
