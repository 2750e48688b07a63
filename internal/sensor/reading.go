package sensor

import "time"

// Value is a sentinel-tagged measurement. Invalid values keep their zero
// payload and are never NaN; validity travels with the value instead of
// being encoded into it.
type Value struct {
	V     float64
	Valid bool
}

// Ok wraps v as a valid value.
func Ok(v float64) Value {
	return Value{V: v, Valid: true}
}

// Invalid returns the invalid sentinel value.
func Invalid() Value {
	return Value{}
}

// Or returns the payload when valid, otherwise the given fallback.
func (v Value) Or(fallback float64) float64 {
	if v.Valid {
		return v.V
	}

	return fallback
}

// Reading is one full sensor sweep, produced once per sampling tick.
// Immutable once constructed; a failed channel yields an invalid field,
// never an aborted reading.
type Reading struct {
	Timestamp       time.Time
	WindSpeed       Value // m/s
	RotorRPM        Value // rev/min, from the pulse counter
	PulseCount      int64 // raw debounced pulses this tick
	BusVoltage      Value // V
	BusCurrent      Value // A
	AmbientTemp     Value // °C
	AmbientPressure Value // hPa
	AmbientHumidity Value // %RH
}

// ElectricalPower returns V×I when both channels are valid.
func (r Reading) ElectricalPower() Value {
	if !r.BusVoltage.Valid || !r.BusCurrent.Valid {
		return Invalid()
	}

	return Ok(r.BusVoltage.V * r.BusCurrent.V)
}
