package status

import (
	"encoding/json"
	"time"

	"github.com/sweeney/nightlight/internal/logic"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	Boot          string       `json:"boot"`
	BootCode      uint16       `json:"boot_code"`
	Ready         bool         `json:"ready"`
	Light         LightJSON    `json:"light"`
	Readings      ReadingsJSON `json:"readings"`
	Settings      SettingsJSON `json:"settings"`
	Task          string       `json:"task"`
	Ticks         uint64       `json:"ticks"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Config        ConfigJSON   `json:"config"`
}

// LightJSON is the JSON representation of the LED state machine.
type LightJSON struct {
	Mode          string `json:"mode"`
	Level         uint8  `json:"level"`
	Target        uint8  `json:"target"`
	DwellArmed    bool   `json:"dwell_armed"`
	DwellTimedOut bool   `json:"dwell_timed_out"`
	RestoreMode   string `json:"restore_mode"`
	PollALS       bool   `json:"poll_als"`
	PollPS        bool   `json:"poll_ps"`
}

// ReadingsJSON holds the latest readings. Invalid readings are null.
type ReadingsJSON struct {
	Lux         *uint16  `json:"lux"`
	Proximity   *uint16  `json:"proximity"`
	Temperature *float64 `json:"temperature"`
	Humidity    *float64 `json:"humidity"`
	Pressure    *uint32  `json:"pressure"`
}

// SettingsJSON is the JSON representation of the persisted settings.
type SettingsJSON struct {
	PushEnabled         bool   `json:"push_enabled"`
	PushIntervalTicks   uint32 `json:"push_interval_ticks"`
	FadeFloor           uint8  `json:"fade_floor"`
	FadeCeiling         uint8  `json:"fade_ceiling"`
	ProximityCalibrated bool   `json:"proximity_calibrated"`
	ProximityOffset     uint16 `json:"proximity_offset"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	Version      string `json:"version"`
	Serial       string `json:"serial"`
	TickPeriodUs int64  `json:"tick_period_us"`
	Broker       string `json:"broker"`
	HTTPAddr     string `json:"http_addr"`
	Storage      string `json:"storage"`
}

func valid[T any](r logic.Reading[T]) *T {
	if !r.Valid {
		return nil
	}
	v := r.Value
	return &v
}

func buildInner(snap Snapshot) StatusInner {
	boot := "BOOTING"
	if snap.Booted {
		boot = snap.BootStatus.String()
	}
	st := snap.Settings

	return StatusInner{
		Boot:     boot,
		BootCode: uint16(snap.BootStatus),
		Ready:    snap.Readings.Ready,
		Light: LightJSON{
			Mode:          st.Mode.String(),
			Level:         snap.Light.Current,
			Target:        snap.Light.Target,
			DwellArmed:    snap.Light.DwellArmed,
			DwellTimedOut: snap.Light.DwellTimedOut,
			RestoreMode:   snap.Light.RestoreMode.String(),
			PollALS:       snap.Light.PollALS,
			PollPS:        snap.Light.PollPS,
		},
		Readings: ReadingsJSON{
			Lux:         valid(snap.Readings.Lux),
			Proximity:   valid(snap.Readings.Proximity),
			Temperature: valid(snap.Readings.Temperature),
			Humidity:    valid(snap.Readings.Humidity),
			Pressure:    valid(snap.Readings.Pressure),
		},
		Settings: SettingsJSON{
			PushEnabled:         st.PushEnabled,
			PushIntervalTicks:   st.PushIntervalTicks,
			FadeFloor:           st.FadeFloor,
			FadeCeiling:         st.FadeCeiling,
			ProximityCalibrated: st.ProximityCalibrated,
			ProximityOffset:     st.ProximityOffset,
		},
		Task:          snap.Task.String(),
		Ticks:         snap.Ticks,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Config: ConfigJSON{
			Version:      snap.Config.Version,
			Serial:       snap.Config.Serial,
			TickPeriodUs: snap.Config.TickPeriod.Microseconds(),
			Broker:       snap.Config.Broker,
			HTTPAddr:     snap.Config.HTTPAddr,
			Storage:      snap.Config.Storage,
		},
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatCompact returns the single-line JSON status used by the live stream.
func FormatCompact(snap Snapshot) []byte {
	data, _ := json.Marshal(StatusJSON{Status: buildInner(snap)})
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
