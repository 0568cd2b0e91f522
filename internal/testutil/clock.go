package testutil

import "sync"

// ManualClock is a tick source whose time tests set by hand. It satisfies
// TickSource, so a Recorder can stamp frames without a scheduler.
//
// Thread-safety: all methods are safe for concurrent use via internal mutex.
type ManualClock struct {
	mu   sync.Mutex
	tick int64
}

// NewManualClock creates a clock at tick 0.
func NewManualClock() *ManualClock {
	return &ManualClock{}
}

// Now returns the current tick.
func (c *ManualClock) Now() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tick
}

// Advance moves the clock forward by n ticks and returns the new tick.
// Negative n is ignored.
func (c *ManualClock) Advance(n int64) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n > 0 {
		c.tick += n
	}
	return c.tick
}

// Set jumps to tick. Going backwards is allowed so a clock can be reused
// between subtests.
func (c *ManualClock) Set(tick int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tick = tick
}
