// Package ring provides a fixed-capacity circular buffer used for the
// aggregation window and the persistence buffer. Capacity is fixed at
// construction; once full, Push overwrites the oldest slot and the
// overwrite is counted so silent loss never goes unflagged.
package ring

// Buffer is a fixed-capacity ring. The zero value is not usable; use New.
type Buffer[T any] struct {
	slots   []T
	start   int
	size    int
	dropped uint64
}

// New creates a ring buffer holding at most capacity elements.
// It panics if capacity is not positive; capacity is a construction-time
// constant in this system, never derived from runtime input.
func New[T any](capacity int) *Buffer[T] {
	if capacity <= 0 {
		panic("ring: capacity must be positive")
	}

	return &Buffer[T]{slots: make([]T, capacity)}
}

// Push appends v, overwriting the oldest element once full.
// Returns true if an element was evicted.
func (b *Buffer[T]) Push(v T) bool {
	if b.size < len(b.slots) {
		b.slots[(b.start+b.size)%len(b.slots)] = v
		b.size++
		return false
	}

	b.slots[b.start] = v
	b.start = (b.start + 1) % len(b.slots)
	b.dropped++

	return true
}

// Len returns the number of elements currently held.
func (b *Buffer[T]) Len() int {
	return b.size
}

// Cap returns the fixed capacity.
func (b *Buffer[T]) Cap() int {
	return len(b.slots)
}

// Full reports whether the next Push would evict.
func (b *Buffer[T]) Full() bool {
	return b.size == len(b.slots)
}

// Dropped returns the number of elements overwritten before being read.
func (b *Buffer[T]) Dropped() uint64 {
	return b.dropped
}

// At returns the i-th element, oldest first. It panics on out-of-range i.
func (b *Buffer[T]) At(i int) T {
	if i < 0 || i >= b.size {
		panic("ring: index out of range")
	}

	return b.slots[(b.start+i)%len(b.slots)]
}

// Do calls fn for each held element, oldest first.
func (b *Buffer[T]) Do(fn func(T)) {
	for i := 0; i < b.size; i++ {
		fn(b.slots[(b.start+i)%len(b.slots)])
	}
}

// Drain returns all held elements, oldest first, and empties the buffer.
// The drop counter is preserved.
func (b *Buffer[T]) Drain() []T {
	if b.size == 0 {
		return nil
	}

	out := make([]T, 0, b.size)
	b.Do(func(v T) { out = append(out, v) })
	b.Reset()

	return out
}

// Reset empties the buffer without touching the drop counter.
func (b *Buffer[T]) Reset() {
	var zero T
	for i := range b.slots {
		b.slots[i] = zero
	}
	b.start = 0
	b.size = 0
}
