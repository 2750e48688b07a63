package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"codeberg.org/mutker/windmon/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) {
	t.Helper()

	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "windmon.toml")
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0o600))
	t.Setenv("WINDMON_CONFIG", configPath)
}

func TestLoad(t *testing.T) {
	writeConfig(t, `
device_id = "turbine-042"
log_level = "debug"

[sampling]
period = "2s"
window_samples = 60

[rotor]
radius_m = 0.8
swept_area_m2 = 2.0

[storage]
log_dir = "/tmp/windmon-test/log"

[telemetry]
broker = "mqtt.example.net"
port = 8883
max_retry = 5
`)

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "turbine-042", cfg.DeviceID)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 2*time.Second, cfg.Sampling.Period)
	assert.Equal(t, 60, cfg.Sampling.WindowSamples)
	assert.InDelta(t, 0.8, cfg.Rotor.RadiusM, 1e-9)
	assert.InDelta(t, 2.0, cfg.Rotor.SweptAreaM2, 1e-9)
	assert.Equal(t, "/tmp/windmon-test/log", cfg.Storage.LogDir)
	assert.Equal(t, "mqtt.example.net", cfg.Telemetry.Broker)
	assert.Equal(t, 8883, cfg.Telemetry.Port)
	assert.Equal(t, 5, cfg.Telemetry.MaxRetry)
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("WINDMON_CONFIG", "")

	cfg, err := config.Load()
	require.NoError(t, err, "Failed to load config")

	assert.Equal(t, "turbine-001", cfg.DeviceID)
	assert.Equal(t, config.DefaultLogLevel, cfg.LogLevel)
	assert.Equal(t, time.Second, cfg.Sampling.Period)
	assert.Equal(t, 10, cfg.Sampling.SubSamples)
	assert.Equal(t, 300, cfg.Sampling.WindowSamples)
	assert.InDelta(t, 0.60, cfg.Rotor.RadiusM, 1e-9)
	assert.InDelta(t, 1.80, cfg.Rotor.SweptAreaM2, 1e-9)
	assert.InDelta(t, 0.593, cfg.Rotor.BetzLimit, 1e-9)
	assert.Equal(t, 10*time.Second, cfg.Storage.FlushInterval)
	assert.Equal(t, 50, cfg.Storage.BufferSize)
	assert.Equal(t, 10, cfg.Storage.MaxWriteFailures)
	assert.True(t, cfg.Telemetry.Enabled)
	assert.Equal(t, 3, cfg.Telemetry.MaxRetry)
	assert.Equal(t, 30*time.Second, cfg.Telemetry.ReconnectEvery)
	assert.False(t, cfg.Simulate.Enabled)
}

func TestLoadConfigFileInvalidFormat(t *testing.T) {
	writeConfig(t, `
This is not a valid TOML file
`)

	_, err := config.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Failed to read config file")
}

func TestInvalidLogLevel(t *testing.T) {
	writeConfig(t, `
log_level = "invalid"
`)

	_, err := config.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid")
}

func TestInvalidSamplingPeriod(t *testing.T) {
	writeConfig(t, `
[sampling]
period = "0s"
`)

	_, err := config.Load()
	require.Error(t, err)
}

func TestInvalidRotorGeometry(t *testing.T) {
	writeConfig(t, `
[rotor]
radius_m = -1.0
`)

	_, err := config.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rotor geometry")
}

func TestLogLevelFlag(t *testing.T) {
	// Save original args and restore after test
	oldArgs := os.Args
	defer func() { os.Args = oldArgs }()

	os.Args = []string{"cmd", "--log-level", "debug"}

	t.Setenv("WINDMON_CONFIG", "")
	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel, "Expected LogLevel to be set by flag")
}

func TestSimulateFlag(t *testing.T) {
	oldArgs := os.Args
	defer func() { os.Args = oldArgs }()

	os.Args = []string{"cmd", "--simulate"}

	t.Setenv("WINDMON_CONFIG", "")
	cfg, err := config.Load()
	require.NoError(t, err)
	assert.True(t, cfg.Simulate.Enabled)
}

func TestClientIDDerivedFromDeviceID(t *testing.T) {
	t.Setenv("WINDMON_CONFIG", "")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "windmon-turbine-001", cfg.ClientID())

	cfg.Telemetry.ClientID = "bench-rig"
	assert.Equal(t, "bench-rig", cfg.ClientID())
}
