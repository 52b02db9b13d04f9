package logic

import (
	"github.com/rs/zerolog/log"

	"github.com/sweeney/nightlight/internal/mathx"
)

// LightState is the transient state of the LED state machine.
type LightState struct {
	Current       uint8
	Target        uint8
	DwellArmed    bool
	DwellTimedOut bool
	RestoreMode   Mode
	PollALS       bool
	PollPS        bool
}

// Light converts snapshots and the configured mode into a target level and
// fades the output towards it one unit per fade step.
type Light struct {
	settings *Settings
	th       Thresholds
	out      Output
	state    LightState
	written  int // last level written to out, -1 before the first write

	// clock reads the tick counter; armedAt is its value when the dwell
	// timer was last armed.
	clock   func() uint64
	armedAt uint64
}

// NewLight creates a light controller reading mode and fade limits from
// settings. The output starts at level 0 with both sensors polled.
func NewLight(settings *Settings, th Thresholds, out Output) *Light {
	return &Light{
		settings: settings,
		th:       th,
		out:      out,
		written:  -1,
		clock:    func() uint64 { return 0 },
		state: LightState{
			RestoreMode: settings.Mode,
			PollALS:     true,
			PollPS:      true,
		},
	}
}

// State returns a copy of the current state.
func (l *Light) State() LightState {
	return l.state
}

// PollALS reports whether the ambient light reading should be refreshed.
func (l *Light) PollALS() bool { return l.state.PollALS }

// PollPS reports whether the proximity reading should be refreshed.
func (l *Light) PollPS() bool { return l.state.PollPS }

// Evaluate applies the per-mode transition rule to a fresh snapshot.
func (l *Light) Evaluate(snap Snapshot) {
	switch l.settings.Mode {
	case ModeOff:
		l.state.Target = 0
	case ModeALS:
		l.state.PollALS = true
		if !snap.Lux.Valid {
			return
		}
		if snap.Lux.Value <= l.th.ALSLow {
			l.state.Target = l.settings.FadeCeiling
		} else if snap.Lux.Value >= l.th.ALSHigh {
			l.state.Target = l.settings.FadeFloor
		}
	case ModePS:
		l.proximityRule(snap)
	case ModeALSPS:
		if l.dark(snap) {
			l.proximityRule(snap)
		}
	case ModeBreathe, ModeCommand, ModeRestorePending:
	}
}

// ProximityTriggered handles a proximity interrupt: in PS mode, or ALS_PS
// mode while dark, the light goes to the ceiling and the dwell timer is
// armed.
func (l *Light) ProximityTriggered(snap Snapshot) {
	switch l.settings.Mode {
	case ModePS:
		l.hold()
	case ModeALSPS:
		if l.dark(snap) {
			l.hold()
		}
	case ModeOff, ModeALS, ModeBreathe, ModeCommand, ModeRestorePending:
	}
}

// DwellElapsed is called with the tick number of a dwell-timeout boundary.
// A timer armed before that tick times out; an unarmed timer, or one armed
// at or after the boundary, is left alone.
func (l *Light) DwellElapsed(boundary uint64) {
	if l.state.DwellArmed && boundary > l.armedAt {
		l.state.DwellArmed = false
		l.state.DwellTimedOut = true
	}
}

func (l *Light) dark(snap Snapshot) bool {
	return snap.Lux.Valid && snap.Lux.Value <= l.th.ALSLow
}

func (l *Light) hold() {
	l.state.PollALS = false
	l.state.Target = l.settings.FadeCeiling
	l.arm()
}

func (l *Light) arm() {
	l.state.DwellArmed = true
	l.state.DwellTimedOut = false
	l.armedAt = l.clock()
}

// proximityRule keeps the light up while someone is near and for at least
// one dwell period after they leave. The offset is only trusted once
// calibrated, so an uncalibrated sensor never drives the light.
func (l *Light) proximityRule(snap Snapshot) {
	if !l.settings.ProximityCalibrated || !snap.Proximity.Valid {
		return
	}
	ps := snap.Proximity.Value
	switch {
	case ps >= l.th.PSHigh:
		l.hold()
	case ps <= l.th.PSLow && l.state.DwellTimedOut:
		l.state.Target = l.settings.FadeFloor
		l.state.PollALS = true
	default:
		l.arm()
	}
}

// Service runs once per foreground iteration: one fade step when due, then
// the breathe waveform turnaround.
func (l *Light) Service(fadeDue bool) {
	if fadeDue {
		l.Step()
	}
	if l.settings.Mode == ModeBreathe {
		if l.state.Current == 0 {
			l.state.Target = l.settings.FadeCeiling
		}
		if l.state.Current >= l.settings.FadeCeiling {
			l.state.Target = 0
		}
	}
}

// Step moves the current level one unit towards the target and writes it,
// clamped to the fade band, to the output.
func (l *Light) Step() {
	switch {
	case l.state.Current < l.state.Target:
		l.state.Current++
	case l.state.Current > l.state.Target:
		l.state.Current--
	}
	l.apply()
}

func (l *Light) apply() {
	level := mathx.Clamp(l.state.Current, l.settings.FadeFloor, l.settings.FadeCeiling)
	if int(level) == l.written {
		return
	}
	if err := l.out.SetBrightness(level); err != nil {
		log.Warn().Err(err).Uint8("level", level).Msg("light: set brightness failed")
		return
	}
	l.written = int(level)
}

// SetMode switches to m. Entering Command mode remembers the previous mode
// for Restore; requesting RestorePending performs the restore. Returns false
// and changes nothing when m is not an enumerated mode.
func (l *Light) SetMode(m Mode) bool {
	if !m.Valid() {
		return false
	}
	if m == ModeRestorePending {
		l.Restore()
		return true
	}
	prev := l.settings.Mode
	if m == ModeCommand && prev != ModeCommand {
		l.state.RestoreMode = prev
	}
	l.settings.Mode = m
	if m == ModeALSPS {
		l.state.Target = l.settings.FadeFloor
		l.state.PollALS = true
	}
	log.Info().Stringer("from", prev).Stringer("to", m).Msg("light: mode changed")
	return true
}

// Restore returns to the mode saved on entry to Command mode and clears the
// polling overrides.
func (l *Light) Restore() {
	if l.state.RestoreMode.Valid() && l.state.RestoreMode != ModeRestorePending {
		l.settings.Mode = l.state.RestoreMode
	}
	l.state.PollALS = true
	l.state.PollPS = true
	log.Info().Stringer("mode", l.settings.Mode).Msg("light: mode restored")
}

// SetLimits validates and applies a new fade band. Each value must be in
// 0..100 and the resulting band must keep floor <= ceiling; a value that
// fails is left unchanged. Reports whether anything changed.
func (l *Light) SetLimits(floor, ceiling uint16) bool {
	f, c := l.settings.FadeFloor, l.settings.FadeCeiling
	floorOK := floor <= uint16(MaxLevel)
	ceilOK := ceiling <= uint16(MaxLevel)

	switch {
	case floorOK && ceilOK && floor <= ceiling:
		f, c = uint8(floor), uint8(ceiling)
	case floorOK && !ceilOK && uint8(floor) <= c:
		f = uint8(floor)
	case ceilOK && !floorOK && f <= uint8(ceiling):
		c = uint8(ceiling)
	}

	if f == l.settings.FadeFloor && c == l.settings.FadeCeiling {
		return false
	}
	l.settings.FadeFloor, l.settings.FadeCeiling = f, c
	l.apply()
	return true
}

// FadeTo sets the target level directly. Levels above 100 are ignored.
func (l *Light) FadeTo(level uint16) bool {
	if level > uint16(MaxLevel) {
		return false
	}
	l.state.Target = uint8(level)
	return true
}
