// Package config loads the nightlight daemon configuration from a YAML or
// TOML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/sweeney/nightlight/internal/logic"
)

// Config represents the application configuration
type Config struct {
	Serial      SerialConfig      `yaml:"serial" toml:"serial"`
	Timing      TimingConfig      `yaml:"timing" toml:"timing"`
	Thresholds  ThresholdsConfig  `yaml:"thresholds" toml:"thresholds"`
	Calibration CalibrationConfig `yaml:"calibration" toml:"calibration"`
	Sensors     SensorsConfig     `yaml:"sensors" toml:"sensors"`
	LED         LEDConfig         `yaml:"led" toml:"led"`
	Storage     StorageConfig     `yaml:"storage" toml:"storage"`
	MQTT        MQTTConfig        `yaml:"mqtt" toml:"mqtt"`
	HTTP        HTTPConfig        `yaml:"http" toml:"http"`
	Log         LogConfig         `yaml:"log" toml:"log"`
	Device      DeviceConfig      `yaml:"device" toml:"device"`
}

// SerialConfig is the host link. An empty port runs without one.
type SerialConfig struct {
	Port string `yaml:"port" toml:"port"`
	Baud int    `yaml:"baud" toml:"baud"`
}

// TimingConfig sets the tick cadence and the divisors derived from it.
type TimingConfig struct {
	TickPeriod        Duration `yaml:"tick_period" toml:"tick_period"`
	LoopPeriod        Duration `yaml:"loop_period" toml:"loop_period"` // foreground idle wait
	FadeStepTicks     uint32   `yaml:"fade_step_ticks" toml:"fade_step_ticks"`
	DwellTimeoutTicks uint32   `yaml:"dwell_timeout_ticks" toml:"dwell_timeout_ticks"`
}

// ThresholdsConfig holds the hysteresis bands.
type ThresholdsConfig struct {
	ALSLow  uint16 `yaml:"als_low" toml:"als_low"`
	ALSHigh uint16 `yaml:"als_high" toml:"als_high"`
	PSLow   uint16 `yaml:"ps_low" toml:"ps_low"`
	PSHigh  uint16 `yaml:"ps_high" toml:"ps_high"`
}

// CalibrationConfig controls proximity offset calibration.
type CalibrationConfig struct {
	Samples int      `yaml:"samples" toml:"samples"`
	Settle  Duration `yaml:"settle" toml:"settle"`
}

// SensorsConfig locates the sensors and the interrupt line.
type SensorsConfig struct {
	Bus            string `yaml:"bus" toml:"bus"` // periph bus name, "" for the first bus
	AmbientAddress uint16 `yaml:"ambient_address" toml:"ambient_address"`
	ClimateAddress uint16 `yaml:"climate_address" toml:"climate_address"`
	InterruptChip  string `yaml:"interrupt_chip" toml:"interrupt_chip"`
	InterruptLine  int    `yaml:"interrupt_line" toml:"interrupt_line"` // negative disables
}

// LEDConfig names the PWM pin.
type LEDConfig struct {
	Pin         string `yaml:"pin" toml:"pin"`
	FrequencyHz int    `yaml:"frequency_hz" toml:"frequency_hz"`
}

// StorageConfig selects the settings backend.
type StorageConfig struct {
	Backend string `yaml:"backend" toml:"backend"` // file, sqlite or memory
	Path    string `yaml:"path" toml:"path"`
}

// MQTTConfig contains broker settings
type MQTTConfig struct {
	Enabled    bool   `yaml:"enabled" toml:"enabled"`
	Broker     string `yaml:"broker" toml:"broker"`
	Prefix     string `yaml:"prefix" toml:"prefix"`
	ClientID   string `yaml:"client_id" toml:"client_id"`
	BufferSize int    `yaml:"buffer_size" toml:"buffer_size"`
	// Heartbeat is the interval between HEARTBEAT status events, 0 disables.
	Heartbeat Duration `yaml:"heartbeat" toml:"heartbeat"`
}

// HTTPConfig contains status server settings. An empty address disables it.
type HTTPConfig struct {
	Addr           string   `yaml:"addr" toml:"addr"`
	StreamInterval Duration `yaml:"stream_interval" toml:"stream_interval"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level  string `yaml:"level" toml:"level"`
	JSON   bool   `yaml:"json" toml:"json"`
	Colors bool   `yaml:"colors" toml:"colors"`
}

// DeviceConfig holds identity values written to storage at first boot.
type DeviceConfig struct {
	ConfigWord uint16 `yaml:"config_word" toml:"config_word"`
}

// Storage backends.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// Default returns the configuration used for keys a file leaves out.
func Default() Config {
	th := logic.DefaultThresholds()
	tm := logic.DefaultTiming()
	return Config{
		Serial: SerialConfig{Port: "/dev/ttyAMA0", Baud: 38400},
		Timing: TimingConfig{
			TickPeriod:        Duration(400 * time.Microsecond),
			LoopPeriod:        Duration(time.Millisecond),
			FadeStepTicks:     tm.FadeStepTicks,
			DwellTimeoutTicks: tm.DwellTimeoutTicks,
		},
		Thresholds: ThresholdsConfig{
			ALSLow: th.ALSLow, ALSHigh: th.ALSHigh,
			PSLow: th.PSLow, PSHigh: th.PSHigh,
		},
		Calibration: CalibrationConfig{
			Samples: tm.CalibrationSamples,
			Settle:  Duration(tm.CalibrationSettle),
		},
		Sensors: SensorsConfig{
			AmbientAddress: 0x60,
			ClimateAddress: 0x76,
			InterruptChip:  "gpiochip0",
			InterruptLine:  17,
		},
		LED:     LEDConfig{Pin: "GPIO18", FrequencyHz: 2000},
		Storage: StorageConfig{Backend: BackendFile, Path: "/var/lib/nightlight/eeprom.bin"},
		MQTT: MQTTConfig{
			Broker:     "tcp://localhost:1883",
			Prefix:     "home/nightlight",
			ClientID:   "nightlight",
			BufferSize: 256,
			Heartbeat:  Duration(15 * time.Minute),
		},
		HTTP: HTTPConfig{Addr: ":8080", StreamInterval: Duration(time.Second)},
		Log:  LogConfig{Level: "info", Colors: true},
	}
}

// Duration is a wrapper around time.Duration that decodes from strings such
// as "400us" in YAML and TOML.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	return d.UnmarshalText([]byte(s))
}

// UnmarshalText implements encoding.TextUnmarshaler, used by the TOML decoder.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Load reads and parses the configuration file. Files ending in .toml are
// decoded as TOML, anything else as YAML.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables
	expanded := expandEnvVars(string(data))

	cfg := Default()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(expanded, &cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	default:
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = BackendFile
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the values Load cannot default.
func (c *Config) Validate() error {
	var errs []error
	if c.Timing.TickPeriod <= 0 {
		errs = append(errs, errors.New("timing.tick_period must be positive"))
	}
	if c.Timing.LoopPeriod <= 0 {
		errs = append(errs, errors.New("timing.loop_period must be positive"))
	}
	if c.Timing.FadeStepTicks == 0 {
		errs = append(errs, errors.New("timing.fade_step_ticks must be positive"))
	}
	if c.Timing.DwellTimeoutTicks == 0 {
		errs = append(errs, errors.New("timing.dwell_timeout_ticks must be positive"))
	}
	if c.Thresholds.ALSLow > c.Thresholds.ALSHigh {
		errs = append(errs, fmt.Errorf("thresholds: als_low %d above als_high %d", c.Thresholds.ALSLow, c.Thresholds.ALSHigh))
	}
	if c.Thresholds.PSLow > c.Thresholds.PSHigh {
		errs = append(errs, fmt.Errorf("thresholds: ps_low %d above ps_high %d", c.Thresholds.PSLow, c.Thresholds.PSHigh))
	}
	if c.Calibration.Samples <= 0 {
		errs = append(errs, errors.New("calibration.samples must be positive"))
	}
	switch c.Storage.Backend {
	case BackendFile, BackendSQLite:
		if c.Storage.Path == "" {
			errs = append(errs, fmt.Errorf("storage.path required for %s backend", c.Storage.Backend))
		}
	case BackendMemory:
	default:
		errs = append(errs, fmt.Errorf("storage.backend %q unknown", c.Storage.Backend))
	}
	if c.MQTT.Enabled && c.MQTT.Broker == "" {
		errs = append(errs, errors.New("mqtt.broker required when mqtt is enabled"))
	}
	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	return errors.Join(errs...)
}

// LogicThresholds returns the hysteresis bands for the control core.
func (c *Config) LogicThresholds() logic.Thresholds {
	return logic.Thresholds{
		ALSLow:  c.Thresholds.ALSLow,
		ALSHigh: c.Thresholds.ALSHigh,
		PSLow:   c.Thresholds.PSLow,
		PSHigh:  c.Thresholds.PSHigh,
	}
}

// LogicTiming returns the scheduler divisors and calibration parameters.
func (c *Config) LogicTiming() logic.Timing {
	return logic.Timing{
		FadeStepTicks:      c.Timing.FadeStepTicks,
		DwellTimeoutTicks:  c.Timing.DwellTimeoutTicks,
		CalibrationSamples: c.Calibration.Samples,
		CalibrationSettle:  c.Calibration.Settle.Duration(),
	}
}

var envPattern = regexp.MustCompile(`\$\{([^}:]+)(?::([^}]*))?\}`)

// expandEnvVars expands environment variables in the format ${VAR} or ${VAR:default}
func expandEnvVars(input string) string {
	return envPattern.ReplaceAllStringFunc(input, func(match string) string {
		parts := envPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		varName := parts[1]
		defaultVal := ""
		if len(parts) >= 3 {
			defaultVal = parts[2]
		}

		if val := os.Getenv(varName); val != "" {
			return val
		}
		return defaultVal
	})
}
