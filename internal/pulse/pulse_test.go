package pulse_test

import (
	"sync"
	"testing"
	"time"

	"codeberg.org/mutker/windmon/internal/pulse"
	"github.com/stretchr/testify/assert"
)

func TestCountsSpacedEdges(t *testing.T) {
	c := pulse.NewCounter(time.Millisecond)
	base := time.Unix(1000, 0)

	for i := 0; i < 5; i++ {
		c.OnEdge(base.Add(time.Duration(i) * 10 * time.Millisecond))
	}

	assert.Equal(t, int64(5), c.TakeAndReset())
	assert.Equal(t, int64(0), c.Bounced())
}

func TestDebounceRejectsCloseEdges(t *testing.T) {
	c := pulse.NewCounter(time.Millisecond)
	base := time.Unix(1000, 0)

	c.OnEdge(base)
	c.OnEdge(base.Add(200 * time.Microsecond)) // bounce
	c.OnEdge(base.Add(2 * time.Millisecond))

	assert.Equal(t, int64(2), c.TakeAndReset())
	assert.Equal(t, int64(1), c.Bounced())
}

func TestTakeAndResetZeroes(t *testing.T) {
	c := pulse.NewCounter(time.Millisecond)
	c.OnEdge(time.Unix(1000, 0))

	assert.Equal(t, int64(1), c.TakeAndReset())
	assert.Equal(t, int64(0), c.TakeAndReset())
}

func TestConcurrentEdgesAreNotLost(t *testing.T) {
	c := pulse.NewCounter(time.Millisecond)

	// Widely spaced synthetic timestamps so debounce never triggers
	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				c.OnEdge(time.Unix(int64(g*1000+i), 0))
			}
		}(g)
	}
	wg.Wait()

	total := c.TakeAndReset() + c.Bounced()
	assert.Equal(t, int64(400), total)
}
