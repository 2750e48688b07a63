package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"codeberg.org/mutker/windmon/internal/alert"
	"codeberg.org/mutker/windmon/internal/archive"
	"codeberg.org/mutker/windmon/internal/config"
	"codeberg.org/mutker/windmon/internal/derive"
	"codeberg.org/mutker/windmon/internal/faults"
	"codeberg.org/mutker/windmon/internal/health"
	"codeberg.org/mutker/windmon/internal/logger"
	"codeberg.org/mutker/windmon/internal/pid"
	"codeberg.org/mutker/windmon/internal/publisher"
	"codeberg.org/mutker/windmon/internal/pulse"
	"codeberg.org/mutker/windmon/internal/sensor"
	"codeberg.org/mutker/windmon/internal/stats"
	"codeberg.org/mutker/windmon/internal/storelog"
)

const (
	publishTimeout   = 10 * time.Second
	alertSendTimeout = 5 * time.Second
)

var (
	cfg     *config.Config
	monitor *faults.Monitor
	counter *pulse.Counter
	rig     *sensor.SimulatedRig
	sampler *sensor.Sampler
	calc    *derive.Calculator
	store   *storelog.Log
	arch    *archive.Archive
	agg     *stats.Aggregator
	probe   *health.Probe
	pub     *publisher.Publisher
	alerts  alert.Sink

	windowDeadline   time.Time
	nextReconnect    time.Time
	betzAlerted      bool
	overspeedAlerted bool
	sensorAlerted    bool
	overflowAlerted  bool
	lastDropped      uint64
)

func init() {
	var err error
	cfg, err = config.Load()
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.Debug, cfg.Verbose, logger.IsService())
	logger.Debug().Msg("Config loaded")

	if err := pid.Write(); err != nil {
		logger.Fatal().Err(err).Msg("failed to acquire PID file")
	}

	monitor = faults.NewMonitor()
	counter = pulse.NewCounter(cfg.Sampling.Debounce)

	anemometer, power, env, simRig, err := newDrivers(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize sensor drivers")
	}
	rig = simRig

	sampler = sensor.NewSampler(anemometer, power, env, counter, monitor, sensor.Config{
		SubSamples:         cfg.Sampling.SubSamples,
		PulsesPerRev:       cfg.Rotor.PulsesPerRev,
		MaxChannelFailures: cfg.Sampling.MaxChannelFailures,
		ProbeEvery:         cfg.Sampling.ProbeEvery,
	})

	calc = derive.NewCalculator(derive.Config{
		RotorRadiusM: cfg.Rotor.RadiusM,
		SweptAreaM2:  cfg.Rotor.SweptAreaM2,
		MinWindMS:    cfg.Rotor.MinWindMS,
		BetzLimit:    cfg.Rotor.BetzLimit,
	})

	arch, err = archive.New(cfg.Storage.ArchivePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open archive")
	}

	if cfg.Telemetry.Enabled {
		transport := publisher.NewMQTTTransport(publisher.MQTTConfig{
			Broker:         cfg.Telemetry.Broker,
			Port:           cfg.Telemetry.Port,
			ClientID:       cfg.ClientID(),
			Username:       cfg.Telemetry.Username,
			Password:       cfg.Telemetry.Password,
			KeepAlive:      cfg.Telemetry.KeepAlive,
			ConnectTimeout: cfg.Telemetry.ConnectTimeout,
		})
		pub = publisher.New(transport, monitor, publisher.Config{
			DeviceID:  cfg.DeviceID,
			Namespace: cfg.Telemetry.Namespace,
			MaxRetry:  cfg.Telemetry.MaxRetry,
		})
	}

	// Local-first ordering: the archive sink runs before any transmission
	alerts = alert.Fanout{arch.Sink(), networkSink()}

	store, err = storelog.New(storelog.Config{
		Dir:              cfg.Storage.LogDir,
		FlushInterval:    cfg.Storage.FlushInterval,
		BufferSize:       cfg.Storage.BufferSize,
		MaxWriteFailures: cfg.Storage.MaxWriteFailures,
	}, monitor, alerts)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize sample log")
	}

	agg = stats.NewAggregator(cfg.DeviceID, cfg.Sampling.WindowSamples, cfg.Sampling.Period)
	probe = health.NewProbe(cfg.Storage.LogDir)
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go handleSignals(cancel)

	if rig != nil {
		go rig.DriveRotor(ctx, counter, cfg.Rotor.RadiusM)
	}

	if err := loop(ctx); err != nil {
		logger.Error().Err(err).Msg("error in main loop")
	}
	cleanup()
}

func loop(ctx context.Context) error {
	ticker := time.NewTicker(cfg.Sampling.Period)
	defer ticker.Stop()

	windowDuration := cfg.Sampling.Period * time.Duration(cfg.Sampling.WindowSamples)
	windowDeadline = time.Now().Add(windowDuration)

	logger.Info().
		Str("device_id", cfg.DeviceID).
		Dur("period", cfg.Sampling.Period).
		Dur("window", windowDuration).
		Bool("simulate", cfg.Simulate.Enabled).
		Msg("Monitoring started")

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			tick(ctx, now, windowDuration)
		}
	}
}

// tick runs one pass of the cooperative pipeline: sample, derive,
// persist, aggregate, then housekeeping. Everything here runs on the
// single loop goroutine.
func tick(ctx context.Context, now time.Time, windowDuration time.Duration) {
	rec := calc.Derive(sampler.Sample(now))

	checkAnomalies(rec)

	store.Append(rec)
	agg.Add(rec)
	store.Tick(now)

	checkFaults(now)
	maintainUplink(ctx, now)

	if !now.Before(windowDeadline) {
		closeWindow(ctx, now)
		windowDeadline = windowDeadline.Add(windowDuration)
		betzAlerted = false
		overspeedAlerted = false
		overflowAlerted = false
	}

	logRecord(rec)
}

// checkAnomalies raises alerts on derived-data anomalies, at most once
// per aggregation window per type to keep a sustained condition from
// flooding the event log.
func checkAnomalies(rec derive.Record) {
	if rec.BetzExceeded && !betzAlerted {
		betzAlerted = true
		alerts.Dispatch(alert.New(alert.TypeBetzExceeded,
			"power coefficient above the Betz limit; derived fields invalidated",
			alert.SeverityWarning, rec.Timestamp))
	}

	if cfg.Rotor.MaxRPM > 0 && rec.RotorRPM.Valid && rec.RotorRPM.V > cfg.Rotor.MaxRPM && !overspeedAlerted {
		overspeedAlerted = true
		alerts.Dispatch(alert.New(alert.TypeOverspeed,
			fmt.Sprintf("rotor at %.0f rpm exceeds the %.0f rpm bound", rec.RotorRPM.V, cfg.Rotor.MaxRPM),
			alert.SeverityCritical, rec.Timestamp))
	}
}

// checkFaults raises alerts on subsystem degradation detected since the
// previous tick. Sensor faults alert on the rising edge only; buffer
// overflow alerts at most once per window while drops keep accruing.
func checkFaults(now time.Time) {
	mode := monitor.DegradedMode()
	if mode.SensorDegraded && !sensorAlerted {
		sensorAlerted = true
		alerts.Dispatch(alert.New(alert.TypeSensorFault,
			"one or more sensor channels parked after repeated failures",
			alert.SeverityWarning, now))
	}
	if !mode.SensorDegraded {
		sensorAlerted = false
	}

	if d := store.Dropped(); d > lastDropped {
		if !overflowAlerted {
			overflowAlerted = true
			alerts.Dispatch(alert.New(alert.TypeBufferOverflow,
				fmt.Sprintf("%d records dropped from the persistence buffer", d-lastDropped),
				alert.SeverityWarning, now))
		}
		lastDropped = d
	}
}

// maintainUplink attempts one reconnect per cadence interval while the
// broker connection is down. Connect never sleeps, so a refused broker
// costs at most one dial timeout per attempt.
func maintainUplink(ctx context.Context, now time.Time) {
	if pub == nil || pub.IsConnected() || now.Before(nextReconnect) {
		return
	}
	nextReconnect = now.Add(cfg.Telemetry.ReconnectEvery)

	ctx, cancel := context.WithTimeout(ctx, cfg.Telemetry.ConnectTimeout)
	defer cancel()

	if err := pub.Connect(ctx); err != nil {
		logger.Warn().Err(err).Msg("Broker connection attempt failed")
	}
}

// closeWindow finalizes the current aggregation interval: archive the
// summary locally, then attempt transmission. An undeliverable summary
// is abandoned; the archive keeps the durable copy.
func closeWindow(ctx context.Context, now time.Time) {
	snap := probe.Take(store.Dropped())
	health.LogSnapshot(snap)

	summary := agg.CloseWindow(now, snap)
	agg.Reset()

	if err := arch.RecordSummary(summary); err != nil {
		logger.Error().Err(err).Msg("Failed to archive window summary")
	}

	if pub != nil && pub.IsConnected() {
		ctx, cancel := context.WithTimeout(ctx, publishTimeout)
		defer cancel()

		if err := pub.PublishSummary(ctx, summary); err != nil {
			logger.Warn().Err(err).Msg("Window summary not delivered")
		}
	}

	logger.Info().
		Int("samples", summary.SampleCount).
		Float64("wind_mean_ms", summary.WindSpeedMS.Mean).
		Float64("power_mean_w", summary.PowerW.Mean).
		Float64("energy_wh", summary.PowerW.EnergyWh).
		Msg("Window closed")
}

// networkSink forwards alerts to the broker, best-effort. The archive
// sink has already recorded the event by the time this runs.
func networkSink() alert.Sink {
	return alert.SinkFunc(func(e alert.Event) {
		if pub == nil || !pub.IsConnected() {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), alertSendTimeout)
		defer cancel()

		if err := pub.SendAlert(ctx, e); err != nil {
			logger.Debug().Err(err).Str("type", e.Type).Msg("Alert transmission failed")
		}
	})
}

func logRecord(rec derive.Record) {
	if cfg.Debug {
		logger.Debug().
			Float64("wind_ms", rec.WindSpeed.Or(0)).
			Bool("wind_valid", rec.WindSpeed.Valid).
			Float64("rotor_rpm", rec.RotorRPM.Or(0)).
			Int64("pulses", rec.PulseCount).
			Float64("bus_voltage", rec.BusVoltage.Or(0)).
			Float64("bus_current", rec.BusCurrent.Or(0)).
			Float64("power_w", rec.Power.Or(0)).
			Float64("air_density", rec.AirDensity.Or(0)).
			Float64("lambda", rec.TipSpeedRatio.Or(0)).
			Float64("cp", rec.PowerCoefficient.Or(0)).
			Bool("betz_exceeded", rec.BetzExceeded).
			Uint32("fault_flags", uint32(monitor.Flags())).
			Msg("")
	} else if cfg.Verbose {
		logger.Info().
			Float64("wind_ms", rec.WindSpeed.Or(0)).
			Float64("rotor_rpm", rec.RotorRPM.Or(0)).
			Float64("power_w", rec.Power.Or(0)).
			Msg("")
	}
}

func handleSignals(cancel context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	logger.Info().Msg("Received termination signal.")
	cancel()
}

func cleanup() {
	if err := store.Flush(); err != nil {
		logger.Error().Err(err).Msg("final flush failed")
	}

	if pub != nil {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		if err := pub.Close(ctx); err != nil {
			logger.Error().Err(err).Msg("failed to close broker connection")
		}
		cancel()
	}

	if err := arch.Close(); err != nil {
		logger.Error().Err(err).Msg("failed to close archive")
	}

	if err := pid.Remove(); err != nil {
		logger.Error().Err(err).Msg("failed to remove PID file")
	}

	logger.Info().Msg("Exiting...")
}
