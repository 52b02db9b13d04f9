// Package command maps inbound protocol records to actions on the control
// core and builds the response records.
package command

import (
	"github.com/rs/zerolog/log"

	"github.com/sweeney/nightlight/internal/logic"
	"github.com/sweeney/nightlight/internal/protocol"
)

// Info is the static identity reported by the device-info query.
type Info struct {
	Version    string
	ConfigWord uint16
}

// Deps are the components the router acts on. All of them belong to the
// foreground loop; Handle must be called from it.
type Deps struct {
	Settings  *logic.Settings
	Light     *logic.Light
	Scheduler *logic.Scheduler
	Ambient   logic.AmbientSensor
	Info      Info
	// Status returns the boot status code.
	Status func() protocol.Status
	// Reset restarts the process. No response is sent.
	Reset func()
}

// Router dispatches records. It keeps no state of its own.
type Router struct {
	d Deps
}

// NewRouter creates a router.
func NewRouter(d Deps) *Router {
	return &Router{d: d}
}

// Handle executes rec and returns the responses to send, if any. Unknown
// opcodes and response opcodes are ignored. Arguments that fail to parse or
// are out of range leave the state unchanged; set commands still echo the
// current value.
func (r *Router) Handle(rec protocol.Record) []protocol.Record {
	st := r.d.Settings
	switch rec.Op {
	case protocol.QStatus:
		return one(protocol.RStatus, protocol.Uint(uint16(r.d.Status())))

	case protocol.QDeviceInfo:
		return one(protocol.RDeviceInfo, r.d.Info.Version, protocol.Uint(r.d.Info.ConfigWord))

	case protocol.SSaveSettings:
		r.d.Scheduler.Request(logic.TaskSaveSettings)
		return nil

	case protocol.SPushMode:
		if v, err := rec.Bool(0); err == nil {
			r.d.Scheduler.SetPush(v, st.PushIntervalTicks)
		} else {
			invalid(rec, err)
		}
		return r.pushMode()
	case protocol.QPushMode:
		return r.pushMode()

	case protocol.SPushInterval:
		if v, err := rec.DoubleAsUint32(0); err == nil && v > 0 {
			r.d.Scheduler.SetPush(st.PushEnabled, v)
		} else {
			invalid(rec, err)
		}
		return r.pushInterval()
	case protocol.QPushInterval:
		return r.pushInterval()

	// Climate queries answer with the last good sample, stale or not.
	case protocol.QTemperature:
		t, ok := r.d.Scheduler.Snapshot().Temperature.Last()
		if !ok {
			return r.unavailable(protocol.StatusNoClimate)
		}
		return one(protocol.RTemperature, protocol.Float(t))
	case protocol.QHumidity:
		h, ok := r.d.Scheduler.Snapshot().Humidity.Last()
		if !ok {
			return r.unavailable(protocol.StatusNoClimate)
		}
		return one(protocol.RHumidity, protocol.Float(h))
	case protocol.QPressure:
		p, ok := r.d.Scheduler.Snapshot().Pressure.Last()
		if !ok {
			return r.unavailable(protocol.StatusNoClimate)
		}
		return one(protocol.RPressure, protocol.Uint(p))

	case protocol.QLux:
		v, err := r.d.Ambient.Lux()
		if err != nil {
			log.Debug().Err(err).Msg("command: lux query")
			return r.unavailable(protocol.StatusNoALS)
		}
		return one(protocol.RLux, protocol.Uint(v))
	case protocol.QProximity:
		v, err := r.d.Ambient.Proximity()
		if err != nil {
			log.Debug().Err(err).Msg("command: proximity query")
			return r.unavailable(protocol.StatusNoALS)
		}
		return one(protocol.RProximity, protocol.Uint(v))

	case protocol.SLedMode:
		v, err := rec.Uint16(0)
		if err != nil || v > 0xFF || !r.d.Light.SetMode(logic.Mode(v)) {
			invalid(rec, err)
		}
		return r.ledMode()
	case protocol.QLedMode:
		return r.ledMode()
	case protocol.SLedModeRestore:
		r.d.Light.Restore()
		return r.ledMode()

	case protocol.SFadeLimits:
		floor, ferr := rec.Uint16(0)
		ceiling, cerr := rec.Uint16(1)
		switch {
		case ferr == nil && cerr == nil:
			r.d.Light.SetLimits(floor, ceiling)
		case ferr == nil:
			r.d.Light.SetLimits(floor, 0xFFFF)
		case cerr == nil:
			r.d.Light.SetLimits(0xFFFF, ceiling)
		default:
			invalid(rec, ferr)
		}
		return r.fadeLimits()
	case protocol.QFadeLimits:
		return r.fadeLimits()

	case protocol.SFadeTo:
		v, err := rec.Uint16(0)
		if err != nil || !r.d.Light.FadeTo(v) {
			invalid(rec, err)
		}
		return nil

	case protocol.SCalibrate:
		r.d.Scheduler.Request(logic.TaskCalibrate)
		return nil

	case protocol.SReset:
		log.Warn().Msg("command: reset requested")
		if r.d.Reset != nil {
			r.d.Reset()
		}
		return nil
	}

	log.Debug().Stringer("record", rec).Msg("command: ignored")
	return nil
}

func (r *Router) pushMode() []protocol.Record {
	return one(protocol.RPushMode, protocol.Bool(r.d.Settings.PushEnabled))
}

func (r *Router) pushInterval() []protocol.Record {
	return one(protocol.RPushInterval, protocol.Uint(r.d.Settings.PushIntervalTicks))
}

func (r *Router) ledMode() []protocol.Record {
	return one(protocol.RLedMode, protocol.Uint(uint8(r.d.Settings.Mode)))
}

func (r *Router) fadeLimits() []protocol.Record {
	return one(protocol.RFadeLimits,
		protocol.Uint(r.d.Settings.FadeFloor),
		protocol.Uint(r.d.Settings.FadeCeiling))
}

func (r *Router) unavailable(s protocol.Status) []protocol.Record {
	return one(protocol.RStatus, protocol.Uint(uint16(s)))
}

func one(op protocol.Opcode, args ...string) []protocol.Record {
	return []protocol.Record{protocol.New(op, args...)}
}

func invalid(rec protocol.Record, err error) {
	ev := log.Debug().Stringer("record", rec)
	if err != nil {
		ev = ev.Err(err)
	}
	ev.Msg("command: argument rejected")
}
