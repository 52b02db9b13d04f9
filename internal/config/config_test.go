package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/nightlight/internal/logic"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "nightlight.yaml", `
serial:
  port: /dev/ttyUSB0
timing:
  tick_period: 500us
  dwell_timeout_ticks: 1000
thresholds:
  als_low: 10
  als_high: 20
sensors:
  ambient_address: 0x61
storage:
  backend: sqlite
  path: /tmp/nl.db
mqtt:
  enabled: true
  broker: tcp://broker:1883
log:
  level: debug
device:
  config_word: 0x1234
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/dev/ttyUSB0", cfg.Serial.Port)
	assert.Equal(t, 38400, cfg.Serial.Baud, "unset keys keep defaults")
	assert.Equal(t, 500*time.Microsecond, cfg.Timing.TickPeriod.Duration())
	assert.Equal(t, uint32(1000), cfg.Timing.DwellTimeoutTicks)
	assert.Equal(t, uint32(10), cfg.Timing.FadeStepTicks)
	assert.Equal(t, uint16(10), cfg.Thresholds.ALSLow)
	assert.Equal(t, uint16(7), cfg.Thresholds.PSHigh)
	assert.Equal(t, uint16(0x61), cfg.Sensors.AmbientAddress)
	assert.Equal(t, BackendSQLite, cfg.Storage.Backend)
	assert.True(t, cfg.MQTT.Enabled)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, uint16(0x1234), cfg.Device.ConfigWord)
}

func TestLoadTOML(t *testing.T) {
	path := writeFile(t, "nightlight.toml", `
[timing]
tick_period = "1ms"
fade_step_ticks = 4

[calibration]
samples = 16
settle = "250ms"

[storage]
backend = "memory"
path = ""

[http]
addr = ""
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, time.Millisecond, cfg.Timing.TickPeriod.Duration())
	assert.Equal(t, uint32(4), cfg.Timing.FadeStepTicks)
	assert.Equal(t, 16, cfg.Calibration.Samples)
	assert.Equal(t, 250*time.Millisecond, cfg.Calibration.Settle.Duration())
	assert.Equal(t, BackendMemory, cfg.Storage.Backend)
	assert.Empty(t, cfg.HTTP.Addr)
}

func TestLoadExpandsEnv(t *testing.T) {
	t.Setenv("NL_BROKER", "tcp://10.0.0.5:1883")
	path := writeFile(t, "nightlight.yml", `
mqtt:
  enabled: true
  broker: ${NL_BROKER}
  prefix: ${NL_PREFIX:lab/nightlight}
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "tcp://10.0.0.5:1883", cfg.MQTT.Broker)
	assert.Equal(t, "lab/nightlight", cfg.MQTT.Prefix)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadBadDuration(t *testing.T) {
	path := writeFile(t, "bad.yaml", "timing:\n  tick_period: soon\n")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero tick period", func(c *Config) { c.Timing.TickPeriod = 0 }},
		{"zero fade step", func(c *Config) { c.Timing.FadeStepTicks = 0 }},
		{"zero dwell", func(c *Config) { c.Timing.DwellTimeoutTicks = 0 }},
		{"als band inverted", func(c *Config) { c.Thresholds.ALSLow = 9 }},
		{"ps band inverted", func(c *Config) { c.Thresholds.PSHigh = 1 }},
		{"no calibration samples", func(c *Config) { c.Calibration.Samples = 0 }},
		{"unknown backend", func(c *Config) { c.Storage.Backend = "flash" }},
		{"file without path", func(c *Config) { c.Storage.Path = "" }},
		{"mqtt without broker", func(c *Config) { c.MQTT.Enabled = true; c.MQTT.Broker = "" }},
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }},
	}

	base := Default()
	require.NoError(t, base.Validate())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLogicConversions(t *testing.T) {
	cfg := Default()
	assert.Equal(t, logic.DefaultThresholds(), cfg.LogicThresholds())
	assert.Equal(t, logic.DefaultTiming(), cfg.LogicTiming())
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("NL_SET", "value")
	tests := []struct {
		in, want string
	}{
		{"${NL_SET}", "value"},
		{"${NL_SET:fallback}", "value"},
		{"${NL_UNSET_VAR:fallback}", "fallback"},
		{"${NL_UNSET_VAR}", ""},
		{"plain", "plain"},
		{"a ${NL_SET} b", "a value b"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, expandEnvVars(tt.in), tt.in)
	}
}
