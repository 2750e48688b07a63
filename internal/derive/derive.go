// Package derive converts raw sensor readings into turbine performance
// quantities. Out-of-range physics is a data-quality signal, not an
// error: impossible values are flagged invalid on the record, never
// clamped and never raised as an error.
package derive

import (
	"math"

	"codeberg.org/mutker/windmon/internal/sensor"
)

const (
	// RSpecificAir is the specific gas constant of dry air, J/(kg·K).
	RSpecificAir = 287.05

	// FallbackAirDensity is ISA sea-level density, used when ambient
	// temperature or pressure is unavailable.
	FallbackAirDensity = 1.225

	// DefaultBetzLimit is the theoretical maximum power coefficient.
	DefaultBetzLimit = 0.593

	// DefaultMinWind is the wind speed below which tip-speed ratio is
	// pinned to zero instead of dividing by a near-zero wind.
	DefaultMinWind = 0.5

	kelvinOffset = 273.15
	hPaToPa      = 100
	radPerRPM    = 2 * math.Pi / 60
)

// Record is a Reading plus the derived performance quantities.
// Created once per tick, persisted and aggregated, then discarded.
type Record struct {
	sensor.Reading

	AirDensity       sensor.Value // kg/m³
	Power            sensor.Value // W, electrical
	TipSpeedRatio    sensor.Value // λ
	PowerCoefficient sensor.Value // Cp

	// BetzExceeded marks a physically impossible Cp. The derived fields
	// are invalidated, and downstream can tell this apart from a
	// genuinely low or zero coefficient.
	BetzExceeded bool
}

// Config fixes the rotor geometry and validation bounds at construction.
type Config struct {
	RotorRadiusM float64
	SweptAreaM2  float64
	MinWindMS    float64
	BetzLimit    float64
}

// Calculator derives performance quantities for one rotor geometry.
type Calculator struct {
	cfg Config
}

func NewCalculator(cfg Config) *Calculator {
	if cfg.MinWindMS <= 0 {
		cfg.MinWindMS = DefaultMinWind
	}
	if cfg.BetzLimit <= 0 {
		cfg.BetzLimit = DefaultBetzLimit
	}

	return &Calculator{cfg: cfg}
}

// Derive computes air density, tip-speed ratio, power coefficient and
// electrical power for one reading.
func (c *Calculator) Derive(r sensor.Reading) Record {
	rec := Record{Reading: r}

	rec.AirDensity = c.airDensity(r)
	rec.Power = r.ElectricalPower()
	rec.TipSpeedRatio = c.tipSpeedRatio(r)
	rec.PowerCoefficient = c.powerCoefficient(r, rec.AirDensity, rec.Power)

	if rec.PowerCoefficient.Valid && rec.PowerCoefficient.V > c.cfg.BetzLimit {
		rec.BetzExceeded = true
		rec.PowerCoefficient = sensor.Invalid()
		rec.TipSpeedRatio = sensor.Invalid()
	}

	return rec
}

// airDensity applies the ideal gas law, falling back to ISA density when
// ambient channels are unavailable. The fallback is a valid value: it is
// good enough for monitoring-grade wind power estimates.
func (c *Calculator) airDensity(r sensor.Reading) sensor.Value {
	if !r.AmbientTemp.Valid || !r.AmbientPressure.Valid {
		return sensor.Ok(FallbackAirDensity)
	}

	kelvin := r.AmbientTemp.V + kelvinOffset
	if kelvin <= 0 {
		return sensor.Ok(FallbackAirDensity)
	}

	return sensor.Ok(r.AmbientPressure.V * hPaToPa / (RSpecificAir * kelvin))
}

// tipSpeedRatio is λ = ωR/v. Below the minimum wind threshold λ is
// pinned to zero (degenerate but valid) instead of blowing up.
func (c *Calculator) tipSpeedRatio(r sensor.Reading) sensor.Value {
	if !r.WindSpeed.Valid {
		return sensor.Invalid()
	}
	if r.WindSpeed.V < c.cfg.MinWindMS {
		return sensor.Ok(0)
	}
	if !r.RotorRPM.Valid {
		return sensor.Invalid()
	}

	omega := r.RotorRPM.V * radPerRPM

	return sensor.Ok(omega * c.cfg.RotorRadiusM / r.WindSpeed.V)
}

// powerCoefficient is Cp = P/(½ρAv³), zero-guarded: no wind power means
// Cp 0, degenerate but valid.
func (c *Calculator) powerCoefficient(r sensor.Reading, density, power sensor.Value) sensor.Value {
	if !r.WindSpeed.Valid || !density.Valid {
		return sensor.Invalid()
	}

	windPower := 0.5 * density.V * c.cfg.SweptAreaM2 * math.Pow(r.WindSpeed.V, 3)
	if windPower <= 0 || r.WindSpeed.V < c.cfg.MinWindMS {
		return sensor.Ok(0)
	}
	if !power.Valid {
		return sensor.Invalid()
	}

	return sensor.Ok(power.V / windPower)
}
