// Package pulse captures rotation-sensor edges. OnEdge is the only entry
// point in the system invoked outside the cooperative main loop; it is
// constant-time and lock-free so an interrupt-style event source can call
// it safely. TakeAndReset is the single required mutual-exclusion point:
// an atomic exchange that is indivisible with respect to OnEdge.
package pulse

import (
	"sync/atomic"
	"time"
)

// DefaultDebounce rejects mechanical and electrical bounce; a reed switch
// on a sub-1000 RPM rotor cannot produce genuine edges 1 ms apart.
const DefaultDebounce = time.Millisecond

// Counter accumulates debounced edges between main-loop ticks.
type Counter struct {
	count    atomic.Int64
	lastEdge atomic.Int64 // unix nanos of last accepted edge
	bounced  atomic.Int64
	debounce int64
}

// NewCounter creates a counter with the given debounce window.
// A non-positive debounce falls back to DefaultDebounce.
func NewCounter(debounce time.Duration) *Counter {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	return &Counter{debounce: int64(debounce)}
}

// OnEdge records one sensor edge at time now. Edges closer than the
// debounce window to the last accepted edge are silently ignored.
func (c *Counter) OnEdge(now time.Time) {
	ns := now.UnixNano()

	for {
		last := c.lastEdge.Load()
		if ns-last < c.debounce {
			c.bounced.Add(1)
			return
		}
		if c.lastEdge.CompareAndSwap(last, ns) {
			c.count.Add(1)
			return
		}
	}
}

// TakeAndReset atomically reads and zeroes the accumulated count.
func (c *Counter) TakeAndReset() int64 {
	return c.count.Swap(0)
}

// Bounced returns the number of edges rejected by debouncing. Diagnostic
// only; it is never reset.
func (c *Counter) Bounced() int64 {
	return c.bounced.Load()
}
