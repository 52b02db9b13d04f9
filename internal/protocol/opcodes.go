// Package protocol defines the night-light command protocol: opcode and
// status schema, records with typed argument access, the CmdMessenger text
// framing, and the transport used to move records over a serial link.
//
// Opcode and mode numbers are a wire schema shared with deployed hosts.
// Never renumber them; append only.
package protocol

import "fmt"

// Opcode identifies a command or response record.
type Opcode uint8

// Q* are host queries, S* are host set/trigger commands, R* are device
// responses.
const (
	QStatus         Opcode = 0
	RStatus         Opcode = 1
	QDeviceInfo     Opcode = 2
	RDeviceInfo     Opcode = 3
	SSaveSettings   Opcode = 4
	SPushMode       Opcode = 5
	QPushMode       Opcode = 6
	RPushMode       Opcode = 7
	SPushInterval   Opcode = 8
	QPushInterval   Opcode = 9
	RPushInterval   Opcode = 10
	QTemperature    Opcode = 11
	RTemperature    Opcode = 12
	QHumidity       Opcode = 13
	RHumidity       Opcode = 14
	QPressure       Opcode = 15
	RPressure       Opcode = 16
	QLux            Opcode = 17
	RLux            Opcode = 18
	QProximity      Opcode = 19
	RProximity      Opcode = 20
	SLedMode        Opcode = 21
	QLedMode        Opcode = 22
	RLedMode        Opcode = 23
	SLedModeRestore Opcode = 24
	SFadeLimits     Opcode = 25
	QFadeLimits     Opcode = 26
	RFadeLimits     Opcode = 27
	SFadeTo         Opcode = 28
	SCalibrate      Opcode = 29
	RCalibrate      Opcode = 30
	SReset          Opcode = 31
)

var opcodeNames = [...]string{
	QStatus:         "query_status",
	RStatus:         "status",
	QDeviceInfo:     "query_device_info",
	RDeviceInfo:     "device_info",
	SSaveSettings:   "save_settings",
	SPushMode:       "set_push_mode",
	QPushMode:       "query_push_mode",
	RPushMode:       "push_mode",
	SPushInterval:   "set_push_interval",
	QPushInterval:   "query_push_interval",
	RPushInterval:   "push_interval",
	QTemperature:    "query_temperature",
	RTemperature:    "temperature",
	QHumidity:       "query_humidity",
	RHumidity:       "humidity",
	QPressure:       "query_pressure",
	RPressure:       "pressure",
	QLux:            "query_lux",
	RLux:            "lux",
	QProximity:      "query_proximity",
	RProximity:      "proximity",
	SLedMode:        "set_led_mode",
	QLedMode:        "query_led_mode",
	RLedMode:        "led_mode",
	SLedModeRestore: "restore_led_mode",
	SFadeLimits:     "set_fade_limits",
	QFadeLimits:     "query_fade_limits",
	RFadeLimits:     "fade_limits",
	SFadeTo:         "fade_to",
	SCalibrate:      "calibrate_proximity",
	RCalibrate:      "calibration",
	SReset:          "reset",
}

// String returns the snake_case name used in logs and MQTT payloads.
func (o Opcode) String() string {
	if int(o) < len(opcodeNames) {
		return opcodeNames[o]
	}
	return fmt.Sprintf("opcode_%d", uint8(o))
}

// Known reports whether o is part of the schema.
func (o Opcode) Known() bool {
	return int(o) < len(opcodeNames)
}

// IsResponse reports whether o is a device-to-host response opcode.
func (o Opcode) IsResponse() bool {
	switch o {
	case RStatus, RDeviceInfo, RPushMode, RPushInterval, RTemperature,
		RHumidity, RPressure, RLux, RProximity, RLedMode, RFadeLimits, RCalibrate:
		return true
	}
	return false
}

// Status is a 16-bit status code carried by RStatus and RCalibrate.
type Status uint16

const (
	StatusOK                Status = 0x090d
	StatusSettingsSaved     Status = 0x055d
	StatusSettingsSaveFail  Status = 0x05fc
	StatusNoClimate         Status = 0x2bad
	StatusNoALS             Status = 0x3bad
	StatusNoSensors         Status = 0xabad
	StatusProxCalibrated    Status = 0x355c
	StatusProxCalibrateFail Status = 0x35fc
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusSettingsSaved:
		return "SETTINGS_SAVED"
	case StatusSettingsSaveFail:
		return "SETTINGS_SAVE_FAILED"
	case StatusNoClimate:
		return "NO_CLIMATE"
	case StatusNoALS:
		return "NO_ALS"
	case StatusNoSensors:
		return "NO_SENSORS"
	case StatusProxCalibrated:
		return "PS_CALIBRATED"
	case StatusProxCalibrateFail:
		return "PS_CALIBRATE_FAIL"
	}
	return fmt.Sprintf("0x%04x", uint16(s))
}

// Degraded reports whether s is a boot status naming a missing sensor.
func (s Status) Degraded() bool {
	return s == StatusNoClimate || s == StatusNoALS || s == StatusNoSensors
}
