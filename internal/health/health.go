// Package health snapshots process and host resources for the summary
// telemetry's system block.
package health

import (
	"runtime"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sys/unix"

	"codeberg.org/mutker/windmon/internal/logger"
)

// Snapshot is the system health block attached to each window summary.
type Snapshot struct {
	FreeMemoryBytes  uint64  `json:"free_memory_bytes"`
	UptimeHours      float64 `json:"uptime_hours"`
	StorageFreeBytes uint64  `json:"storage_free"`
	DroppedRecords   uint64  `json:"dropped_records,omitempty"`
}

// Probe collects health snapshots for one storage path.
type Probe struct {
	storagePath string
	started     time.Time
}

func NewProbe(storagePath string) *Probe {
	return &Probe{
		storagePath: storagePath,
		started:     time.Now(),
	}
}

// Take collects a snapshot. Failures to stat the filesystem leave
// storage-free at zero; health reporting never fails the pipeline.
func (p *Probe) Take(droppedRecords uint64) Snapshot {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	snap := Snapshot{
		// Heap still available to the process without growing the sys
		// reservation; the closest portable analogue to free heap.
		FreeMemoryBytes: mem.HeapSys - mem.HeapAlloc,
		UptimeHours:     time.Since(p.started).Hours(),
		DroppedRecords:  droppedRecords,
	}

	var fs unix.Statfs_t
	if err := unix.Statfs(p.storagePath, &fs); err == nil {
		snap.StorageFreeBytes = fs.Bavail * uint64(fs.Bsize)
	} else {
		logger.Debug().Err(err).Str("path", p.storagePath).Msg("Failed to stat storage filesystem")
	}

	return snap
}

// LogSnapshot emits the snapshot at debug level with humanized sizes.
func LogSnapshot(snap Snapshot) {
	logger.Debug().
		Str("free_memory", humanize.IBytes(snap.FreeMemoryBytes)).
		Str("storage_free", humanize.IBytes(snap.StorageFreeBytes)).
		Float64("uptime_hours", snap.UptimeHours).
		Uint64("dropped_records", snap.DroppedRecords).
		Msg("System health snapshot")
}
