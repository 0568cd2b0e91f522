package testutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestManualClock_StartsAtZero(t *testing.T) {
	assert.Equal(t, int64(0), NewManualClock().Now())
}

func TestManualClock_Advance(t *testing.T) {
	c := NewManualClock()

	assert.Equal(t, int64(3), c.Advance(3))
	assert.Equal(t, int64(3), c.Advance(-1), "negative advance is ignored")
	assert.Equal(t, int64(10), c.Advance(7))
	assert.Equal(t, int64(10), c.Now())
}

func TestManualClock_Set(t *testing.T) {
	c := NewManualClock()
	c.Set(500)
	assert.Equal(t, int64(500), c.Now())

	c.Set(0)
	assert.Equal(t, int64(0), c.Now())
}

func TestManualClock_ThreadSafe(t *testing.T) {
	c := NewManualClock()
	const goroutines = 50
	const callsPerGoroutine = 100

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < callsPerGoroutine; j++ {
				c.Advance(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(goroutines*callsPerGoroutine), c.Now())
}
