// Package logic contains the night-light control core: the persisted
// settings record, the sensor snapshot, the LED state machine and the
// tick-driven task scheduler.
// This package has NO hardware dependencies. Sensors, the LED output and
// storage are reached through the small interfaces declared here.
package logic

import (
	"fmt"
	"time"
)

// Mode selects how the LED target level is derived. Values are part of the
// wire protocol.
type Mode uint8

const (
	ModeRestorePending Mode = 0
	ModeALS            Mode = 1
	ModePS             Mode = 2
	ModeALSPS          Mode = 3
	ModeBreathe        Mode = 4
	ModeCommand        Mode = 5
	ModeOff            Mode = 6
)

// Valid reports whether m is one of the enumerated modes.
func (m Mode) Valid() bool {
	return m <= ModeOff
}

func (m Mode) String() string {
	switch m {
	case ModeRestorePending:
		return "RESTORE"
	case ModeALS:
		return "ALS"
	case ModePS:
		return "PS"
	case ModeALSPS:
		return "ALS_PS"
	case ModeBreathe:
		return "BREATHE"
	case ModeCommand:
		return "COMMAND"
	case ModeOff:
		return "OFF"
	}
	return fmt.Sprintf("MODE(%d)", uint8(m))
}

// Task is the scheduler's single pending/active task slot.
type Task uint8

const (
	TaskDefault Task = iota
	TaskPushData
	TaskNightlightEvaluate
	TaskSaveSettings
	TaskCalibrate

	taskCount
)

func (t Task) String() string {
	switch t {
	case TaskDefault:
		return "DEFAULT"
	case TaskPushData:
		return "PUSH_DATA"
	case TaskNightlightEvaluate:
		return "NIGHTLIGHT_EVALUATE"
	case TaskSaveSettings:
		return "SAVE_SETTINGS"
	case TaskCalibrate:
		return "CALIBRATE"
	}
	return fmt.Sprintf("TASK(%d)", uint8(t))
}

// Level bounds on the 0..100 brightness scale.
const (
	MinLevel uint8 = 0
	MaxLevel uint8 = 100
)

// Settings is the persisted behaviour record.
type Settings struct {
	PushEnabled         bool
	PushIntervalTicks   uint32
	Mode                Mode
	FadeFloor           uint8
	FadeCeiling         uint8
	ProximityCalibrated bool
	ProximityOffset     uint16
}

// DefaultSettings returns the compiled-in first-boot record.
func DefaultSettings() Settings {
	return Settings{
		PushEnabled:       true,
		PushIntervalTicks: 20000,
		Mode:              ModeALSPS,
		FadeFloor:         MinLevel,
		FadeCeiling:       MaxLevel,
	}
}

// Valid reports whether s satisfies the record invariants.
func (s Settings) Valid() bool {
	return s.PushIntervalTicks > 0 &&
		s.Mode.Valid() &&
		s.FadeCeiling <= MaxLevel &&
		s.FadeFloor <= s.FadeCeiling
}

// Reading is one sensor value and whether the last read succeeded. After a
// failed read Value keeps the last good reading and Stale is set.
type Reading[T any] struct {
	Value T
	Valid bool
	Stale bool
}

// Last returns the most recent good value and whether there has been one.
func (r Reading[T]) Last() (T, bool) {
	return r.Value, r.Valid || r.Stale
}

// Snapshot holds the latest polled readings.
type Snapshot struct {
	Lux         Reading[uint16]
	Proximity   Reading[uint16]
	Temperature Reading[float64] // °C
	Humidity    Reading[float64] // %RH
	Pressure    Reading[uint32]  // Pa

	// Ready is set once the default task has sampled at least once.
	Ready bool
	// Pushed is cleared at every push boundary and set once telemetry for
	// the interval has been sent.
	Pushed bool
}

// Thresholds are the hysteresis bands for ambient light and proximity.
type Thresholds struct {
	ALSLow  uint16
	ALSHigh uint16
	PSLow   uint16
	PSHigh  uint16
}

// DefaultThresholds returns the stock trigger levels.
func DefaultThresholds() Thresholds {
	return Thresholds{ALSLow: 5, ALSHigh: 7, PSLow: 5, PSHigh: 7}
}

// Timing holds the tick divisors and calibration parameters.
type Timing struct {
	FadeStepTicks      uint32
	DwellTimeoutTicks  uint32
	CalibrationSamples int
	CalibrationSettle  time.Duration
}

// DefaultTiming returns the stock cadence for a 400µs tick.
func DefaultTiming() Timing {
	return Timing{
		FadeStepTicks:      10,
		DwellTimeoutTicks:  30000,
		CalibrationSamples: 8,
		CalibrationSettle:  500 * time.Millisecond,
	}
}

// AmbientSensor is the ambient-light/proximity sensor.
type AmbientSensor interface {
	Lux() (uint16, error)
	Proximity() (uint16, error)
	SetProximityOffset(offset uint16) error
	// ArmInterrupt rewrites the proximity interrupt thresholds.
	ArmInterrupt() error
	// ClearInterrupt acknowledges a proximity interrupt.
	ClearInterrupt() error
}

// ClimateSensor is the temperature/humidity/pressure sensor.
type ClimateSensor interface {
	Temperature() (float64, error)
	Humidity() (float64, error)
	Pressure() (uint32, error)
}

// Output drives the LED at a level on the 0..100 scale.
type Output interface {
	SetBrightness(level uint8) error
}

// Saver persists the settings record.
type Saver interface {
	Save(s Settings) error
}
