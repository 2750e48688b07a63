package ring_test

import (
	"testing"

	"codeberg.org/mutker/windmon/internal/ring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPushUntilFull(t *testing.T) {
	buf := ring.New[int](3)

	assert.False(t, buf.Push(1))
	assert.False(t, buf.Push(2))
	assert.False(t, buf.Push(3))

	assert.Equal(t, 3, buf.Len())
	assert.True(t, buf.Full())
	assert.Equal(t, uint64(0), buf.Dropped())
}

func TestPushEvictsOldest(t *testing.T) {
	buf := ring.New[int](3)
	for i := 1; i <= 3; i++ {
		buf.Push(i)
	}

	// One past capacity evicts exactly the oldest element
	assert.True(t, buf.Push(4))
	assert.Equal(t, 3, buf.Len())
	assert.Equal(t, uint64(1), buf.Dropped())
	assert.Equal(t, 2, buf.At(0))
	assert.Equal(t, 4, buf.At(2))
}

func TestDoOrdersOldestFirst(t *testing.T) {
	buf := ring.New[string](2)
	buf.Push("a")
	buf.Push("b")
	buf.Push("c")

	var got []string
	buf.Do(func(v string) { got = append(got, v) })
	assert.Equal(t, []string{"b", "c"}, got)
}

func TestDrain(t *testing.T) {
	buf := ring.New[int](4)
	buf.Push(10)
	buf.Push(20)

	got := buf.Drain()
	require.Equal(t, []int{10, 20}, got)
	assert.Equal(t, 0, buf.Len())

	assert.Nil(t, buf.Drain())
}

func TestResetPreservesDropCount(t *testing.T) {
	buf := ring.New[int](1)
	buf.Push(1)
	buf.Push(2)
	require.Equal(t, uint64(1), buf.Dropped())

	buf.Reset()
	assert.Equal(t, 0, buf.Len())
	assert.Equal(t, uint64(1), buf.Dropped())
}

func TestNewPanicsOnInvalidCapacity(t *testing.T) {
	assert.Panics(t, func() { ring.New[int](0) })
}
