// Package faults tracks per-subsystem failure flags. A single Monitor
// instance is shared by reference with every component; flags are set by
// the owning subsystem and cleared only after an explicit successful
// operation on that subsystem, never by timeout.
package faults

import "sync/atomic"

// Flag identifies one subsystem failure mode. One bit each.
type Flag uint32

const (
	SensorWind Flag = 1 << iota
	SensorRotation
	SensorPower
	SensorEnv
	Storage
	Network
)

const sensorMask = SensorWind | SensorRotation | SensorPower | SensorEnv

// DegradedModeSet is the coarse view components consult before
// attempting operations that are pointless in a known-bad state.
type DegradedModeSet struct {
	StorageDegraded bool
	NetworkDegraded bool
	SensorDegraded  bool
}

// Monitor owns the process-wide error-flag bitmask.
type Monitor struct {
	flags atomic.Uint32
}

func NewMonitor() *Monitor {
	return &Monitor{}
}

// Set raises the given flag. Idempotent.
func (m *Monitor) Set(f Flag) {
	for {
		old := m.flags.Load()
		if old&uint32(f) == uint32(f) {
			return
		}
		if m.flags.CompareAndSwap(old, old|uint32(f)) {
			return
		}
	}
}

// Clear lowers the given flag. Idempotent.
func (m *Monitor) Clear(f Flag) {
	for {
		old := m.flags.Load()
		if old&uint32(f) == 0 {
			return
		}
		if m.flags.CompareAndSwap(old, old&^uint32(f)) {
			return
		}
	}
}

// IsSet reports whether the given flag is currently raised.
func (m *Monitor) IsSet(f Flag) bool {
	return m.flags.Load()&uint32(f) != 0
}

// Flags returns the raw bitmask snapshot.
func (m *Monitor) Flags() Flag {
	return Flag(m.flags.Load())
}

// DegradedMode returns the coarse degradation view.
func (m *Monitor) DegradedMode() DegradedModeSet {
	flags := Flag(m.flags.Load())

	return DegradedModeSet{
		StorageDegraded: flags&Storage != 0,
		NetworkDegraded: flags&Network != 0,
		SensorDegraded:  flags&sensorMask != 0,
	}
}

// Healthy reports whether no flag is raised.
func (m *Monitor) Healthy() bool {
	return m.flags.Load() == 0
}
