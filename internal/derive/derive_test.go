package derive_test

import (
	"testing"
	"time"

	"codeberg.org/mutker/windmon/internal/derive"
	"codeberg.org/mutker/windmon/internal/sensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCalculator() *derive.Calculator {
	return derive.NewCalculator(derive.Config{
		RotorRadiusM: 0.6,
		SweptAreaM2:  1.8,
	})
}

func TestAirDensityFromAmbient(t *testing.T) {
	calc := newCalculator()

	rec := calc.Derive(sensor.Reading{
		Timestamp:       time.Now(),
		WindSpeed:       sensor.Ok(5),
		AmbientTemp:     sensor.Ok(20),
		AmbientPressure: sensor.Ok(1013.25),
	})

	require.True(t, rec.AirDensity.Valid)
	// 101325 Pa / (287.05 J/(kg·K) × 293.15 K)
	assert.InDelta(t, 1.2041, rec.AirDensity.V, 0.001)
}

func TestAirDensityFallsBackWithoutAmbient(t *testing.T) {
	calc := newCalculator()

	rec := calc.Derive(sensor.Reading{WindSpeed: sensor.Ok(5)})

	require.True(t, rec.AirDensity.Valid)
	assert.InDelta(t, derive.FallbackAirDensity, rec.AirDensity.V, 1e-9)
}

func TestCalmWindPinsRatiosToZero(t *testing.T) {
	calc := newCalculator()

	// Wind below the minimum threshold with the rotor still turning:
	// ratios are degenerate zero, not division blow-ups and not invalid.
	rec := calc.Derive(sensor.Reading{
		WindSpeed: sensor.Ok(0.3),
		RotorRPM:  sensor.Ok(50),
	})

	require.True(t, rec.TipSpeedRatio.Valid)
	assert.Zero(t, rec.TipSpeedRatio.V)
	require.True(t, rec.PowerCoefficient.Valid)
	assert.Zero(t, rec.PowerCoefficient.V)
	assert.False(t, rec.BetzExceeded)
}

func TestNominalDerivation(t *testing.T) {
	calc := newCalculator()

	rec := calc.Derive(sensor.Reading{
		WindSpeed:  sensor.Ok(8),
		RotorRPM:   sensor.Ok(200),
		BusVoltage: sensor.Ok(20),
		BusCurrent: sensor.Ok(5),
	})

	require.True(t, rec.Power.Valid)
	assert.InDelta(t, 100.0, rec.Power.V, 1e-9)

	// λ = ωR/v with ω = 200 rpm
	require.True(t, rec.TipSpeedRatio.Valid)
	assert.InDelta(t, 1.5708, rec.TipSpeedRatio.V, 0.001)

	// Cp = P / (½ × 1.225 × 1.8 × 8³)
	require.True(t, rec.PowerCoefficient.Valid)
	assert.InDelta(t, 0.1772, rec.PowerCoefficient.V, 0.001)
	assert.False(t, rec.BetzExceeded)
}

func TestBetzViolationInvalidatesDerivedFields(t *testing.T) {
	calc := newCalculator()

	// 800 W out of ~564 W of available wind power is impossible; the
	// record is flagged and the derived fields invalidated, not clamped.
	rec := calc.Derive(sensor.Reading{
		WindSpeed:  sensor.Ok(8),
		RotorRPM:   sensor.Ok(200),
		BusVoltage: sensor.Ok(40),
		BusCurrent: sensor.Ok(20),
	})

	assert.True(t, rec.BetzExceeded)
	assert.False(t, rec.PowerCoefficient.Valid)
	assert.False(t, rec.TipSpeedRatio.Valid)

	// The raw electrical power is a real measurement and stays valid
	require.True(t, rec.Power.Valid)
	assert.InDelta(t, 800.0, rec.Power.V, 1e-9)
}

func TestInvalidWindInvalidatesRatios(t *testing.T) {
	calc := newCalculator()

	rec := calc.Derive(sensor.Reading{
		RotorRPM:   sensor.Ok(100),
		BusVoltage: sensor.Ok(12),
		BusCurrent: sensor.Ok(2),
	})

	assert.False(t, rec.TipSpeedRatio.Valid)
	assert.False(t, rec.PowerCoefficient.Valid)
}

func TestInvalidPowerChannelInvalidatesCp(t *testing.T) {
	calc := newCalculator()

	rec := calc.Derive(sensor.Reading{
		WindSpeed: sensor.Ok(6),
		RotorRPM:  sensor.Ok(150),
	})

	assert.False(t, rec.Power.Valid)
	assert.False(t, rec.PowerCoefficient.Valid)
	assert.True(t, rec.TipSpeedRatio.Valid)
}
