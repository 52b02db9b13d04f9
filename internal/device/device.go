// Package device assembles the control core: it owns the settings record,
// the light controller, the scheduler and the command router, runs the boot
// sequence and executes one foreground iteration at a time.
package device

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sweeney/nightlight/internal/command"
	"github.com/sweeney/nightlight/internal/logic"
	"github.com/sweeney/nightlight/internal/protocol"
	"github.com/sweeney/nightlight/internal/status"
)

// Store is the settings persistence used at boot and by the save task.
type Store interface {
	logic.Saver
	Load() (logic.Settings, error)
	ConfigWord() (uint16, error)
	EnsureConfigWord(w uint16) error
}

// Config holds the fixed parameters of the core.
type Config struct {
	Thresholds logic.Thresholds
	Timing     logic.Timing
	Version    string
	// ConfigWord is written to storage at first boot.
	ConfigWord uint16
}

// Hardware are the collaborators outside the core.
type Hardware struct {
	Ambient logic.AmbientSensor
	Climate logic.ClimateSensor
	Output  logic.Output
	Store   Store
	// Out receives every outbound record.
	Out protocol.Sink
	// BootStatus is the result of the sensor presence test.
	BootStatus protocol.Status
	// Sleep waits out the calibration settle time; time.Sleep when nil.
	Sleep func(time.Duration)
}

// Device is the night-light. Boot must complete before Tick is called from
// the timer goroutine; every other method belongs to the foreground loop.
type Device struct {
	cfg Config
	hw  Hardware

	settings logic.Settings
	light    *logic.Light
	sched    *logic.Scheduler
	router   *command.Router

	resetRequested bool
}

// New creates an unbooted device.
func New(cfg Config, hw Hardware) *Device {
	return &Device{cfg: cfg, hw: hw}
}

// Boot loads the settings, re-applies a stored proximity calibration and
// announces the boot status.
func (d *Device) Boot() {
	st, err := d.hw.Store.Load()
	if err != nil {
		log.Error().Err(err).Msg("device: settings load failed, using defaults")
	}
	d.settings = st

	if err := d.hw.Store.EnsureConfigWord(d.cfg.ConfigWord); err != nil {
		log.Warn().Err(err).Msg("device: config word write failed")
	}
	word, err := d.hw.Store.ConfigWord()
	if err != nil {
		log.Warn().Err(err).Msg("device: config word read failed")
	}

	d.light = logic.NewLight(&d.settings, d.cfg.Thresholds, d.hw.Output)
	d.sched = logic.NewScheduler(d.cfg.Timing, logic.SchedulerDeps{
		Settings: &d.settings,
		Light:    d.light,
		Ambient:  d.hw.Ambient,
		Climate:  d.hw.Climate,
		Store:    d.hw.Store,
		Out:      d.hw.Out,
		Sleep:    d.hw.Sleep,
	})
	d.router = command.NewRouter(command.Deps{
		Settings:  &d.settings,
		Light:     d.light,
		Scheduler: d.sched,
		Ambient:   d.hw.Ambient,
		Info:      command.Info{Version: d.cfg.Version, ConfigWord: word},
		Status:    func() protocol.Status { return d.hw.BootStatus },
		Reset:     func() { d.resetRequested = true },
	})

	if d.settings.ProximityCalibrated {
		if err := d.hw.Ambient.SetProximityOffset(d.settings.ProximityOffset); err != nil {
			log.Warn().Err(err).Msg("device: restoring proximity offset failed")
		}
	}

	log.Info().
		Stringer("boot", d.hw.BootStatus).
		Stringer("mode", d.settings.Mode).
		Bool("push", d.settings.PushEnabled).
		Uint32("push_interval", d.settings.PushIntervalTicks).
		Bool("calibrated", d.settings.ProximityCalibrated).
		Msg("device: booted")
	d.send(protocol.New(protocol.RStatus, protocol.Uint(uint16(d.hw.BootStatus))))
}

// Tick is the timer entry point.
func (d *Device) Tick() {
	d.sched.Tick()
}

// ProximityInterrupt is the interrupt-line entry point.
func (d *Device) ProximityInterrupt() {
	d.sched.RaiseProximityInterrupt()
}

// Iterate runs one foreground iteration: handle inbound records, run a fade
// step if one is due, then run exactly one scheduler task.
func (d *Device) Iterate(in []protocol.Record) {
	for _, rec := range in {
		for _, resp := range d.router.Handle(rec) {
			d.send(resp)
		}
	}
	d.light.Service(d.sched.TakeFadeStep())
	d.sched.RunPendingTask()
}

// ResetRequested reports whether a reset command has been received.
func (d *Device) ResetRequested() bool {
	return d.resetRequested
}

// Settings returns a copy of the current settings.
func (d *Device) Settings() logic.Settings {
	return d.settings
}

// State returns the core state for the status tracker.
func (d *Device) State() status.Device {
	return status.Device{
		BootStatus: d.hw.BootStatus,
		Settings:   d.settings,
		Light:      d.light.State(),
		Readings:   d.sched.Snapshot(),
		Task:       d.sched.Task(),
		Ticks:      d.sched.Ticks(),
	}
}

func (d *Device) send(rec protocol.Record) {
	if d.hw.Out == nil {
		return
	}
	if err := d.hw.Out.Send(rec); err != nil {
		log.Warn().Err(err).Stringer("record", rec).Msg("device: send failed")
	}
}
