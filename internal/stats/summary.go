package stats

import (
	"time"

	"codeberg.org/mutker/windmon/internal/health"
)

// Summary is one closed aggregation window, serialized verbatim onto the
// telemetry wire. Immutable once produced; it is handed to the publisher
// and discarded whether or not transmission succeeds.
type Summary struct {
	DeviceID        string            `json:"device_id"`
	Timestamp       time.Time         `json:"timestamp"`
	IntervalMinutes float64           `json:"interval_minutes"`
	SampleCount     int               `json:"sample_count"`
	WindSpeedMS     DistributionStats `json:"wind_speed_ms"`
	RotorRPM        RangeStats        `json:"rotor_rpm"`
	PowerW          PowerStats        `json:"power_w"`
	Performance     PerformanceStats  `json:"performance"`
	Environment     EnvironmentStats  `json:"environment"`
	System          health.Snapshot   `json:"system"`
}

// DistributionStats carries min/max/mean/std for one channel.
type DistributionStats struct {
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	Mean float64 `json:"mean"`
	Std  float64 `json:"std"`
}

// RangeStats carries min/max/mean for one channel.
type RangeStats struct {
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	Mean float64 `json:"mean"`
}

// PowerStats adds integrated energy to the power channel.
type PowerStats struct {
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`
	Mean     float64 `json:"mean"`
	EnergyWh float64 `json:"energy_wh"`
}

// PerformanceStats carries the derived-quantity means, excluding records
// invalidated by the Betz-limit check.
type PerformanceStats struct {
	CpMean     float64 `json:"cp_mean"`
	LambdaMean float64 `json:"lambda_mean"`
}

// EnvironmentStats carries ambient means.
type EnvironmentStats struct {
	TempC       float64 `json:"temp_c"`
	PressureHPa float64 `json:"pressure_hpa"`
	HumidityPct float64 `json:"humidity_pct"`
}
