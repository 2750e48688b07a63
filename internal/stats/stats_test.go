package stats_test

import (
	"math"
	"testing"
	"time"

	"codeberg.org/mutker/windmon/internal/derive"
	"codeberg.org/mutker/windmon/internal/health"
	"codeberg.org/mutker/windmon/internal/sensor"
	"codeberg.org/mutker/windmon/internal/stats"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(wind, power float64) derive.Record {
	return derive.Record{
		Reading: sensor.Reading{WindSpeed: sensor.Ok(wind)},
		Power:   sensor.Ok(power),
	}
}

func TestEnergyIntegration(t *testing.T) {
	agg := stats.NewAggregator("turbine-001", 300, time.Second)

	// 300 samples at a steady 100 W over one second each: 30 kJ ≈ 8.33 Wh
	for i := 0; i < 300; i++ {
		agg.Add(record(5, 100))
	}

	s := agg.CloseWindow(time.Now(), health.Snapshot{})
	assert.Equal(t, 300, s.SampleCount)
	assert.InDelta(t, 5.0, s.IntervalMinutes, 1e-9)
	assert.InDelta(t, 100.0, s.PowerW.Mean, 1e-9)
	assert.InDelta(t, 8.3333, s.PowerW.EnergyWh, 0.001)
}

func TestDistributionStats(t *testing.T) {
	agg := stats.NewAggregator("turbine-001", 10, time.Second)
	for _, v := range []float64{2, 4, 6} {
		agg.Add(record(v, 0))
	}

	s := agg.CloseWindow(time.Now(), health.Snapshot{})
	assert.InDelta(t, 2.0, s.WindSpeedMS.Min, 1e-9)
	assert.InDelta(t, 6.0, s.WindSpeedMS.Max, 1e-9)
	assert.InDelta(t, 4.0, s.WindSpeedMS.Mean, 1e-9)
	assert.InDelta(t, math.Sqrt(8.0/3.0), s.WindSpeedMS.Std, 1e-9)
}

func TestInvalidSamplesAreExcluded(t *testing.T) {
	agg := stats.NewAggregator("turbine-001", 10, time.Second)

	valid := record(5, 100)
	valid.PowerCoefficient = sensor.Ok(0.4)
	agg.Add(valid)
	agg.Add(valid)

	// A Betz-flagged record keeps its raw channels but contributes
	// nothing to the performance means.
	flagged := record(8, 800)
	flagged.BetzExceeded = true
	agg.Add(flagged)

	s := agg.CloseWindow(time.Now(), health.Snapshot{})
	assert.Equal(t, 3, s.SampleCount)
	assert.InDelta(t, 0.4, s.Performance.CpMean, 1e-9)
	assert.InDelta(t, 6.0, s.WindSpeedMS.Mean, 1e-9)
	assert.InDelta(t, 1000.0/3.0, s.PowerW.Mean, 1e-9)
}

func TestInvalidPowerExcludedFromEnergy(t *testing.T) {
	agg := stats.NewAggregator("turbine-001", 10, time.Second)

	agg.Add(record(5, 3600))
	broken := record(5, 0)
	broken.Power = sensor.Invalid()
	agg.Add(broken)

	s := agg.CloseWindow(time.Now(), health.Snapshot{})
	assert.InDelta(t, 1.0, s.PowerW.EnergyWh, 1e-9)
}

func TestWindowOverflowEvictsOldest(t *testing.T) {
	agg := stats.NewAggregator("turbine-001", 3, time.Second)
	for _, v := range []float64{1, 2, 3, 4} {
		agg.Add(record(v, 0))
	}

	s := agg.CloseWindow(time.Now(), health.Snapshot{})
	assert.Equal(t, 3, s.SampleCount)
	assert.InDelta(t, 2.0, s.WindSpeedMS.Min, 1e-9)
	assert.InDelta(t, 4.0, s.WindSpeedMS.Max, 1e-9)
}

func TestEmptyWindow(t *testing.T) {
	agg := stats.NewAggregator("turbine-001", 10, time.Second)

	s := agg.CloseWindow(time.Now(), health.Snapshot{})
	assert.Equal(t, 0, s.SampleCount)
	assert.Zero(t, s.IntervalMinutes)
	assert.Zero(t, s.WindSpeedMS.Mean)
	assert.Zero(t, s.PowerW.EnergyWh)
}

func TestResetGivesTumblingWindows(t *testing.T) {
	agg := stats.NewAggregator("turbine-001", 10, time.Second)
	agg.Add(record(5, 100))

	first := agg.CloseWindow(time.Now(), health.Snapshot{})
	require.Equal(t, 1, first.SampleCount)
	agg.Reset()

	agg.Add(record(7, 200))
	second := agg.CloseWindow(time.Now(), health.Snapshot{})
	assert.Equal(t, 1, second.SampleCount)
	assert.InDelta(t, 7.0, second.WindSpeedMS.Mean, 1e-9)
}
