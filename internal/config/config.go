package config

import (
	"flag"
	"io"
	"os"
	"strings"
	"time"

	"codeberg.org/mutker/windmon/internal/errors"
	"github.com/spf13/viper"
)

const (
	DefaultLogLevel = "info"

	defaultSamplingPeriod   = time.Second
	defaultSubSamples       = 10
	defaultWindowSamples    = 300
	defaultDebounce         = time.Millisecond
	defaultFlushInterval    = 10 * time.Second
	defaultBufferSize       = 50
	defaultMaxWriteFailures = 10
	defaultMaxRetry         = 3
	defaultConnectTimeout   = 10 * time.Second
	defaultReconnectEvery   = 30 * time.Second
	defaultKeepAlive        = 30 * time.Second
)

// Config materialises the full daemon configuration. The core components
// receive this struct at construction and never read files themselves.
type Config struct {
	DeviceID string `mapstructure:"device_id"`
	LogLevel string `mapstructure:"log_level"`
	Debug    bool   `mapstructure:"debug"`
	Verbose  bool   `mapstructure:"verbose"`

	Sampling    SamplingConfig    `mapstructure:"sampling"`
	Rotor       RotorConfig       `mapstructure:"rotor"`
	Calibration CalibrationConfig `mapstructure:"calibration"`
	Storage     StorageConfig     `mapstructure:"storage"`
	Telemetry   TelemetryConfig   `mapstructure:"telemetry"`
	Simulate    SimulateConfig    `mapstructure:"simulate"`
}

// SamplingConfig governs the cooperative tick cadence.
type SamplingConfig struct {
	Period             time.Duration `mapstructure:"period"`
	SubSamples         int           `mapstructure:"sub_samples"`
	WindowSamples      int           `mapstructure:"window_samples"`
	Debounce           time.Duration `mapstructure:"debounce"`
	MaxChannelFailures int           `mapstructure:"max_channel_failures"`
	ProbeEvery         int           `mapstructure:"probe_every"`
}

// RotorConfig describes turbine geometry and derived-value bounds.
type RotorConfig struct {
	RadiusM      float64 `mapstructure:"radius_m"`
	SweptAreaM2  float64 `mapstructure:"swept_area_m2"`
	PulsesPerRev int     `mapstructure:"pulses_per_rev"`
	MinWindMS    float64 `mapstructure:"min_wind_ms"`
	BetzLimit    float64 `mapstructure:"betz_limit"`
	MaxRPM       float64 `mapstructure:"max_rpm"`
}

// CalibrationConfig carries analog front-end calibration constants.
type CalibrationConfig struct {
	AnemometerOffsetV   float64 `mapstructure:"anemometer_offset_v"`
	AnemometerScaleV    float64 `mapstructure:"anemometer_scale_v_per_ms"`
	VoltageDividerRatio float64 `mapstructure:"voltage_divider_ratio"`
}

// StorageConfig covers the local sample log and the sqlite archive.
type StorageConfig struct {
	LogDir           string        `mapstructure:"log_dir"`
	ArchivePath      string        `mapstructure:"archive_path"`
	FlushInterval    time.Duration `mapstructure:"flush_interval"`
	BufferSize       int           `mapstructure:"buffer_size"`
	MaxWriteFailures int           `mapstructure:"max_write_failures"`
}

// TelemetryConfig covers the MQTT uplink.
type TelemetryConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	Broker         string        `mapstructure:"broker"`
	Port           int           `mapstructure:"port"`
	ClientID       string        `mapstructure:"client_id"`
	Namespace      string        `mapstructure:"namespace"`
	Username       string        `mapstructure:"username"`
	Password       string        `mapstructure:"password"`
	KeepAlive      time.Duration `mapstructure:"keep_alive"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	MaxRetry       int           `mapstructure:"max_retry"`
	ReconnectEvery time.Duration `mapstructure:"reconnect_every"`
}

// SimulateConfig enables the bench rig instead of real drivers.
type SimulateConfig struct {
	Enabled bool  `mapstructure:"enabled"`
	Seed    int64 `mapstructure:"seed"`
}

// Load builds configuration from flags, environment, and the config file.
// Precedence: flags > WINDMON_* environment > file > defaults.
func Load() (*Config, error) {
	errFactory := errors.New()

	fs := flag.NewFlagSet("windmon", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	configPath := fs.String("config", "", "Path to config file")
	debugFlag := fs.Bool("debug", false, "Enable debugging mode")
	verboseFlag := fs.Bool("verbose", false, "Enable verbose logging")
	simulateFlag := fs.Bool("simulate", false, "Use the simulated sensor rig")
	logLevelFlag := fs.String("log-level", "", "Log level (debug, info, warning, error)")
	// Unknown flags (e.g. test harness flags) are ignored rather than fatal
	_ = fs.Parse(os.Args[1:])

	v := viper.New()
	v.SetEnvPrefix("WINDMON")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	switch {
	case *configPath != "":
		v.SetConfigFile(*configPath)
	case os.Getenv("WINDMON_CONFIG") != "":
		v.SetConfigFile(os.Getenv("WINDMON_CONFIG"))
	default:
		v.SetConfigName("windmon")
		v.SetConfigType("toml")
		v.AddConfigPath("/etc")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		_, notFound := err.(viper.ConfigFileNotFoundError)
		if !notFound && !os.IsNotExist(err) {
			return nil, errFactory.WithMessage(errors.ErrReadConfig, "Failed to read config file: "+err.Error())
		}
	}

	// Flags win over file and environment
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "debug":
			v.Set("debug", *debugFlag)
		case "verbose":
			v.Set("verbose", *verboseFlag)
		case "simulate":
			v.Set("simulate.enabled", *simulateFlag)
		case "log-level":
			v.Set("log_level", *logLevelFlag)
		}
	})

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("device_id", "turbine-001")
	v.SetDefault("log_level", DefaultLogLevel)
	v.SetDefault("debug", false)
	v.SetDefault("verbose", false)

	v.SetDefault("sampling.period", defaultSamplingPeriod)
	v.SetDefault("sampling.sub_samples", defaultSubSamples)
	v.SetDefault("sampling.window_samples", defaultWindowSamples)
	v.SetDefault("sampling.debounce", defaultDebounce)
	v.SetDefault("sampling.max_channel_failures", 5)
	v.SetDefault("sampling.probe_every", 30)

	// Geometry defaults match the reference 600 mm rotor
	v.SetDefault("rotor.radius_m", 0.60)
	v.SetDefault("rotor.swept_area_m2", 1.80)
	v.SetDefault("rotor.pulses_per_rev", 1)
	v.SetDefault("rotor.min_wind_ms", 0.5)
	v.SetDefault("rotor.betz_limit", 0.593)
	v.SetDefault("rotor.max_rpm", 500.0)

	v.SetDefault("calibration.anemometer_offset_v", 0.4)
	v.SetDefault("calibration.anemometer_scale_v_per_ms", 0.2)
	v.SetDefault("calibration.voltage_divider_ratio", 2.0)

	v.SetDefault("storage.log_dir", "/var/lib/windmon/log")
	v.SetDefault("storage.archive_path", "/var/lib/windmon/archive.db")
	v.SetDefault("storage.flush_interval", defaultFlushInterval)
	v.SetDefault("storage.buffer_size", defaultBufferSize)
	v.SetDefault("storage.max_write_failures", defaultMaxWriteFailures)

	v.SetDefault("telemetry.enabled", true)
	v.SetDefault("telemetry.broker", "broker.hivemq.com")
	v.SetDefault("telemetry.port", 1883)
	v.SetDefault("telemetry.namespace", "windmon")
	v.SetDefault("telemetry.keep_alive", defaultKeepAlive)
	v.SetDefault("telemetry.connect_timeout", defaultConnectTimeout)
	v.SetDefault("telemetry.max_retry", defaultMaxRetry)
	v.SetDefault("telemetry.reconnect_every", defaultReconnectEvery)

	v.SetDefault("simulate.enabled", false)
	v.SetDefault("simulate.seed", int64(1))
}

// Validate performs sanity checks on the configuration values.
func (c *Config) Validate() error {
	errFactory := errors.New()

	if !LogLevel(c.LogLevel).IsValid() {
		return errFactory.WithData(errors.ErrInvalidLogLevel, c.LogLevel)
	}
	if c.DeviceID == "" {
		return errFactory.WithMessage(errors.ErrInvalidConfig, "device_id must not be empty")
	}
	if c.Sampling.Period <= 0 {
		return errFactory.WithData(errors.ErrInvalidInterval, c.Sampling.Period)
	}
	if c.Sampling.SubSamples <= 0 || c.Sampling.WindowSamples <= 0 {
		return errFactory.WithMessage(errors.ErrInvalidConfig, "sampling counts must be positive")
	}
	if c.Rotor.RadiusM <= 0 || c.Rotor.SweptAreaM2 <= 0 || c.Rotor.PulsesPerRev <= 0 {
		return errFactory.WithMessage(errors.ErrInvalidConfig, "rotor geometry must be positive")
	}
	if c.Rotor.BetzLimit <= 0 || c.Rotor.BetzLimit > 1 {
		return errFactory.WithData(errors.ErrInvalidConfig, c.Rotor.BetzLimit)
	}
	if c.Storage.BufferSize <= 0 || c.Storage.FlushInterval <= 0 {
		return errFactory.WithMessage(errors.ErrInvalidConfig, "storage buffering must be positive")
	}
	if c.Telemetry.Enabled {
		if c.Telemetry.Broker == "" || c.Telemetry.Port <= 0 {
			return errFactory.WithMessage(errors.ErrInvalidConfig, "telemetry broker and port are required")
		}
		if c.Telemetry.MaxRetry < 0 {
			return errFactory.WithMessage(errors.ErrInvalidConfig, "telemetry max_retry cannot be negative")
		}
	}

	return nil
}

// ClientID returns the configured MQTT client id, derived from the
// device id when not set explicitly.
func (c *Config) ClientID() string {
	if c.Telemetry.ClientID != "" {
		return c.Telemetry.ClientID
	}

	return "windmon-" + c.DeviceID
}
