package logic

import (
	"errors"
	"time"
)

var errBus = errors.New("i2c: nack")

type recordingOutput struct {
	levels []uint8
	err    error
}

func (o *recordingOutput) SetBrightness(level uint8) error {
	if o.err != nil {
		return o.err
	}
	o.levels = append(o.levels, level)
	return nil
}

type stubAmbient struct {
	lux, prox       uint16
	luxErr, proxErr error
	offsets         []uint16
	// offsetErrAt fails the n-th (1-based) SetProximityOffset call.
	offsetErrAt int
	proxReads   int
	// onProximity runs inside each Proximity read.
	onProximity func()
	armed       int
	cleared     int
}

func (s *stubAmbient) Lux() (uint16, error) { return s.lux, s.luxErr }

func (s *stubAmbient) Proximity() (uint16, error) {
	s.proxReads++
	if s.onProximity != nil {
		s.onProximity()
	}
	return s.prox, s.proxErr
}

func (s *stubAmbient) SetProximityOffset(v uint16) error {
	if s.offsetErrAt == len(s.offsets)+1 {
		s.offsets = append(s.offsets, v)
		return errBus
	}
	s.offsets = append(s.offsets, v)
	return nil
}

func (s *stubAmbient) ArmInterrupt() error {
	s.armed++
	return nil
}

func (s *stubAmbient) ClearInterrupt() error {
	s.cleared++
	return nil
}

type stubClimate struct {
	temp, hum float64
	press     uint32
	err       error
}

func (c *stubClimate) Temperature() (float64, error) { return c.temp, c.err }
func (c *stubClimate) Humidity() (float64, error)    { return c.hum, c.err }
func (c *stubClimate) Pressure() (uint32, error)     { return c.press, c.err }

type countingSaver struct {
	saved []Settings
	err   error
}

func (s *countingSaver) Save(st Settings) error {
	if s.err != nil {
		return s.err
	}
	s.saved = append(s.saved, st)
	return nil
}

func noSleep(time.Duration) {}

func luxSnap(lux uint16) Snapshot {
	return Snapshot{Lux: Reading[uint16]{Value: lux, Valid: true}, Ready: true}
}

func psSnap(lux, ps uint16) Snapshot {
	s := luxSnap(lux)
	s.Proximity = Reading[uint16]{Value: ps, Valid: true}
	return s
}
