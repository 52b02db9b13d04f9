// Package status provides a thread-safe status tracker for the nightlight daemon.
// It is written by the foreground loop and read by HTTP handlers and the
// MQTT event publisher.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/nightlight/internal/logic"
	"github.com/sweeney/nightlight/internal/protocol"
)

// Device is the control core's state as seen at the end of a foreground
// iteration.
type Device struct {
	BootStatus protocol.Status
	Settings   logic.Settings
	Light      logic.LightState
	Readings   logic.Snapshot
	Task       logic.Task
	Ticks      uint64
}

// Config contains daemon configuration for display.
type Config struct {
	Version    string
	Serial     string
	TickPeriod time.Duration
	Broker     string
	HTTPAddr   string
	Storage    string
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type and stays valid after the lock is released.
type Snapshot struct {
	Device
	Booted        bool
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// Update records the device state. Called from the foreground loop.
func (t *Tracker) Update(d Device) {
	t.mu.Lock()
	t.snap.Device = d
	t.snap.Booted = true
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
