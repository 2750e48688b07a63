package health_test

import (
	"testing"

	"codeberg.org/mutker/windmon/internal/health"
	"github.com/stretchr/testify/assert"
)

func TestTakeSnapshot(t *testing.T) {
	probe := health.NewProbe(t.TempDir())

	snap := probe.Take(7)

	assert.Positive(t, snap.FreeMemoryBytes)
	assert.Positive(t, snap.StorageFreeBytes)
	assert.GreaterOrEqual(t, snap.UptimeHours, 0.0)
	assert.Equal(t, uint64(7), snap.DroppedRecords)
}

func TestMissingStoragePath(t *testing.T) {
	probe := health.NewProbe("/nonexistent/windmon")

	snap := probe.Take(0)

	// Stat failure degrades to a zero reading, never an error
	assert.Zero(t, snap.StorageFreeBytes)
}
