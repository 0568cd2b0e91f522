package engine

import "sync/atomic"

// Clock is the virtual clock of one scheduler. Only the scheduler advances
// it; everything else reads Now.
//
// Thread-safety: reads are atomic, so observers on other goroutines see a
// consistent tick, but the drain itself is single-threaded.
type Clock struct {
	tick atomic.Int64
}

// NewClock creates a clock at tick 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock at a specific tick.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.tick.Store(start)
	return c
}

// Now returns the current tick.
func (c *Clock) Now() int64 {
	return c.tick.Load()
}

// advanceTo moves the clock forward. Moving backwards is a no-op.
func (c *Clock) advanceTo(tick int64) {
	for {
		cur := c.tick.Load()
		if tick <= cur || c.tick.CompareAndSwap(cur, tick) {
			return
		}
	}
}
