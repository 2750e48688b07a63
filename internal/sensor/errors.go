package sensor

import "errors"

// ErrSimulatedFailure is returned by the simulated rig when a channel is
// forced into failure for bench testing of degraded modes.
var ErrSimulatedFailure = errors.New("simulated sensor failure")
