package main

import (
	"codeberg.org/mutker/windmon/internal/config"
	"codeberg.org/mutker/windmon/internal/errors"
	"codeberg.org/mutker/windmon/internal/sensor"
)

// newDrivers selects the sensor backends. The stock build carries only
// the simulated rig; hardware deployments supply their bus drivers
// through a build-tagged variant of this file.
func newDrivers(cfg *config.Config) (
	sensor.AnemometerDriver,
	sensor.PowerMeterDriver,
	sensor.EnvironmentDriver,
	*sensor.SimulatedRig,
	error,
) {
	if !cfg.Simulate.Enabled {
		return nil, nil, nil, nil, errors.New().WithMessage(errors.ErrInitFailed,
			"no hardware sensor drivers in this build; run with -simulate")
	}

	rig := sensor.NewSimulatedRig(sensor.Calibration{
		AnemometerOffsetV:   cfg.Calibration.AnemometerOffsetV,
		AnemometerScaleV:    cfg.Calibration.AnemometerScaleV,
		VoltageDividerRatio: cfg.Calibration.VoltageDividerRatio,
	}, cfg.Simulate.Seed)

	return rig, rig, rig, rig, nil
}
