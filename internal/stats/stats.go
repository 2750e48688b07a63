// Package stats maintains the rolling window of derived records and
// produces per-interval summary statistics.
//
// Windowing policy is tumbling: CloseWindow computes over the records
// currently held and the caller resets the window at each interval
// boundary, so each summary covers a non-overlapping interval. Energy is
// integrated rectangularly with the configured sampling period as Δt; a
// tick delayed by a slow write slightly understates energy, which is
// acceptable at monitoring-grade accuracy.
package stats

import (
	"math"
	"time"

	"codeberg.org/mutker/windmon/internal/derive"
	"codeberg.org/mutker/windmon/internal/health"
	"codeberg.org/mutker/windmon/internal/ring"
)

const secondsPerHour = 3600

// Aggregator owns the fixed-capacity window. Not safe for concurrent
// use; all calls happen on the cooperative main loop.
type Aggregator struct {
	win          *ring.Buffer[derive.Record]
	deviceID     string
	samplePeriod time.Duration
}

func NewAggregator(deviceID string, capacity int, samplePeriod time.Duration) *Aggregator {
	return &Aggregator{
		win:          ring.New[derive.Record](capacity),
		deviceID:     deviceID,
		samplePeriod: samplePeriod,
	}
}

// Add pushes a record, overwriting the oldest slot once the window is
// full.
func (a *Aggregator) Add(rec derive.Record) {
	a.win.Push(rec)
}

// Len returns the number of records currently held.
func (a *Aggregator) Len() int {
	return a.win.Len()
}

// Reset clears the window; called by the loop after each CloseWindow for
// tumbling-interval semantics.
func (a *Aggregator) Reset() {
	a.win.Reset()
}

// CloseWindow computes summary statistics over exactly the records
// currently held. It does not clear the window.
func (a *Aggregator) CloseWindow(at time.Time, system health.Snapshot) Summary {
	var (
		wind     channelAgg
		rpm      channelAgg
		power    channelAgg
		temp     channelAgg
		pressure channelAgg
		humidity channelAgg
		cp       channelAgg
		lambda   channelAgg
		energyWs float64
	)

	dt := a.samplePeriod.Seconds()

	a.win.Do(func(rec derive.Record) {
		wind.add(rec.WindSpeed.V, rec.WindSpeed.Valid)
		rpm.add(rec.RotorRPM.V, rec.RotorRPM.Valid)
		power.add(rec.Power.V, rec.Power.Valid)
		temp.add(rec.AmbientTemp.V, rec.AmbientTemp.Valid)
		pressure.add(rec.AmbientPressure.V, rec.AmbientPressure.Valid)
		humidity.add(rec.AmbientHumidity.V, rec.AmbientHumidity.Valid)

		// Records flagged invalid by derivation stay in the raw-channel
		// statistics but are excluded from the performance means.
		cp.add(rec.PowerCoefficient.V, rec.PowerCoefficient.Valid)
		lambda.add(rec.TipSpeedRatio.V, rec.TipSpeedRatio.Valid)

		if rec.Power.Valid {
			energyWs += rec.Power.V * dt
		}
	})

	return Summary{
		DeviceID:        a.deviceID,
		Timestamp:       at.UTC(),
		IntervalMinutes: float64(a.win.Len()) * dt / 60,
		SampleCount:     a.win.Len(),
		WindSpeedMS: DistributionStats{
			Min: wind.minOrZero(), Max: wind.maxOrZero(),
			Mean: wind.mean(), Std: wind.std(),
		},
		RotorRPM: RangeStats{
			Min: rpm.minOrZero(), Max: rpm.maxOrZero(), Mean: rpm.mean(),
		},
		PowerW: PowerStats{
			Min: power.minOrZero(), Max: power.maxOrZero(), Mean: power.mean(),
			EnergyWh: energyWs / secondsPerHour,
		},
		Performance: PerformanceStats{
			CpMean:     cp.mean(),
			LambdaMean: lambda.mean(),
		},
		Environment: EnvironmentStats{
			TempC:       temp.mean(),
			PressureHPa: pressure.mean(),
			HumidityPct: humidity.mean(),
		},
		System: system,
	}
}

// channelAgg accumulates one channel's min/max/mean/population-std.
type channelAgg struct {
	min, max, sum, sumSq float64
	n                    int
}

func (c *channelAgg) add(v float64, valid bool) {
	if !valid {
		return
	}

	if c.n == 0 || v < c.min {
		c.min = v
	}
	if c.n == 0 || v > c.max {
		c.max = v
	}
	c.sum += v
	c.sumSq += v * v
	c.n++
}

func (c *channelAgg) minOrZero() float64 {
	if c.n == 0 {
		return 0
	}
	return c.min
}

func (c *channelAgg) maxOrZero() float64 {
	if c.n == 0 {
		return 0
	}
	return c.max
}

func (c *channelAgg) mean() float64 {
	if c.n == 0 {
		return 0
	}
	return c.sum / float64(c.n)
}

// std is the population standard deviation.
func (c *channelAgg) std() float64 {
	if c.n == 0 {
		return 0
	}

	mean := c.sum / float64(c.n)
	variance := c.sumSq/float64(c.n) - mean*mean
	if variance < 0 {
		// numeric noise from the sum-of-squares form
		variance = 0
	}

	return math.Sqrt(variance)
}
