package sensor

import (
	"time"

	"codeberg.org/mutker/windmon/internal/faults"
	"codeberg.org/mutker/windmon/internal/logger"
	"codeberg.org/mutker/windmon/internal/pulse"
)

const secondsPerMinute = 60

// Config tunes the sampler. Zero values fall back to usable defaults.
type Config struct {
	SubSamples         int // sub-reads averaged per noisy analog channel
	PulsesPerRev       int
	MaxChannelFailures int // consecutive failures before a channel is parked
	ProbeEvery         int // ticks between probes of a parked channel
}

func (c *Config) applyDefaults() {
	if c.SubSamples <= 0 {
		c.SubSamples = 10
	}
	if c.PulsesPerRev <= 0 {
		c.PulsesPerRev = 1
	}
	if c.MaxChannelFailures <= 0 {
		c.MaxChannelFailures = 5
	}
	if c.ProbeEvery <= 0 {
		c.ProbeEvery = 30
	}
}

// channel tracks consecutive failures for one driver channel so a dead
// sensor stops consuming the sampling period. A parked channel is probed
// every ProbeEvery ticks; one successful read restores it.
type channel struct {
	name       string
	flag       faults.Flag
	failures   int
	sinceProbe int
}

func (ch *channel) parked(maxFailures int) bool {
	return ch.failures >= maxFailures
}

// shouldRead reports whether the channel should be attempted this tick.
func (ch *channel) shouldRead(cfg *Config) bool {
	if !ch.parked(cfg.MaxChannelFailures) {
		return true
	}

	ch.sinceProbe++
	if ch.sinceProbe >= cfg.ProbeEvery {
		ch.sinceProbe = 0
		return true
	}

	return false
}

func (ch *channel) onSuccess(monitor *faults.Monitor) {
	if ch.failures > 0 {
		ch.failures = 0
		monitor.Clear(ch.flag)
	}
}

func (ch *channel) onFailure(cfg *Config, monitor *faults.Monitor, err error) {
	ch.failures++
	if ch.failures == cfg.MaxChannelFailures {
		monitor.Set(ch.flag)
		logger.Warn().
			Str("channel", ch.name).
			Int("failures", ch.failures).
			Err(err).
			Msg("Sensor channel parked after consecutive failures")
	}
}

// Sampler reads every sensor channel once per tick and assembles a
// Reading. Partial data is preferable to no data: a failed channel only
// invalidates its own field.
type Sampler struct {
	anemometer AnemometerDriver
	power      PowerMeterDriver
	env        EnvironmentDriver
	pulses     *pulse.Counter
	monitor    *faults.Monitor
	cfg        Config

	wind     channel
	bus      channel
	ambient  channel
	lastTake time.Time
}

func NewSampler(
	anemometer AnemometerDriver,
	power PowerMeterDriver,
	env EnvironmentDriver,
	pulses *pulse.Counter,
	monitor *faults.Monitor,
	cfg Config,
) *Sampler {
	cfg.applyDefaults()

	return &Sampler{
		anemometer: anemometer,
		power:      power,
		env:        env,
		pulses:     pulses,
		monitor:    monitor,
		cfg:        cfg,
		wind:       channel{name: "wind", flag: faults.SensorWind},
		bus:        channel{name: "power", flag: faults.SensorPower},
		ambient:    channel{name: "environment", flag: faults.SensorEnv},
	}
}

// Sample reads all channels and consumes the pulse counter. The only
// side effect is the atomic take-and-reset of the counter.
func (s *Sampler) Sample(now time.Time) Reading {
	reading := Reading{Timestamp: now}

	if s.wind.shouldRead(&s.cfg) {
		reading.WindSpeed = s.averaged(s.anemometer.ReadWindSpeed, &s.wind)
	}

	if s.bus.shouldRead(&s.cfg) {
		voltage := s.averaged(s.power.ReadBusVoltage, &s.bus)
		reading.BusVoltage = voltage
		if voltage.Valid {
			reading.BusCurrent = s.averaged(s.power.ReadBusCurrent, &s.bus)
		}
	}

	if s.ambient.shouldRead(&s.cfg) {
		reading.AmbientTemp = s.readOnce(s.env.ReadTemperature, &s.ambient)
		reading.AmbientPressure = s.readOnce(s.env.ReadPressure, &s.ambient)
		reading.AmbientHumidity = s.readOnce(s.env.ReadHumidity, &s.ambient)
	}

	reading.PulseCount = s.pulses.TakeAndReset()
	reading.RotorRPM = s.rotorRPM(reading.PulseCount, now)
	s.lastTake = now

	return reading
}

// averaged takes SubSamples sub-reads and averages the successful ones.
// All sub-reads failing counts as one channel failure.
func (s *Sampler) averaged(read func() (float64, error), ch *channel) Value {
	var sum float64
	var good int
	var lastErr error

	for i := 0; i < s.cfg.SubSamples; i++ {
		v, err := read()
		if err != nil {
			lastErr = err
			continue
		}
		sum += v
		good++
	}

	if good == 0 {
		ch.onFailure(&s.cfg, s.monitor, lastErr)
		return Invalid()
	}

	ch.onSuccess(s.monitor)

	return Ok(sum / float64(good))
}

func (s *Sampler) readOnce(read func() (float64, error), ch *channel) Value {
	v, err := read()
	if err != nil {
		ch.onFailure(&s.cfg, s.monitor, err)
		return Invalid()
	}

	ch.onSuccess(s.monitor)

	return Ok(v)
}

// rotorRPM converts the pulse count into rotational speed over the
// elapsed time since the previous take. The first tick has no baseline
// and yields an invalid RPM.
func (s *Sampler) rotorRPM(pulses int64, now time.Time) Value {
	if s.lastTake.IsZero() {
		return Invalid()
	}

	elapsed := now.Sub(s.lastTake).Seconds()
	if elapsed <= 0 {
		return Invalid()
	}

	revs := float64(pulses) / float64(s.cfg.PulsesPerRev)

	return Ok(revs / elapsed * secondsPerMinute)
}
