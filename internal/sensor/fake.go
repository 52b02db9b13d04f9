package sensor

import (
	"errors"
	"sync"
)

// ErrFakeBus is the error injected by the fakes.
var ErrFakeBus = errors.New("fake bus error")

// FakeAmbient is an in-memory AmbientDevice. Failures counts down the next
// transactions that fail.
type FakeAmbient struct {
	mu       sync.Mutex
	lux      uint16
	prox     uint16
	offset   uint16
	failures int
	offsets  []uint16

	thdHigh, thdLow uint16
	flagReads       int
}

// NewFakeAmbient returns a fake reading lux and prox.
func NewFakeAmbient(lux, prox uint16) *FakeAmbient {
	return &FakeAmbient{lux: lux, prox: prox}
}

// Set changes the readings.
func (f *FakeAmbient) Set(lux, prox uint16) {
	f.mu.Lock()
	f.lux, f.prox = lux, prox
	f.mu.Unlock()
}

// Fail makes the next n transactions fail.
func (f *FakeAmbient) Fail(n int) {
	f.mu.Lock()
	f.failures = n
	f.mu.Unlock()
}

// Offsets returns every offset written.
func (f *FakeAmbient) Offsets() []uint16 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]uint16(nil), f.offsets...)
}

func (f *FakeAmbient) fail() bool {
	if f.failures > 0 {
		f.failures--
		return true
	}
	return false
}

func (f *FakeAmbient) Lux() (uint16, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail() {
		return 0, ErrFakeBus
	}
	return f.lux, nil
}

// Proximity returns the configured reading minus the cancellation offset.
func (f *FakeAmbient) Proximity() (uint16, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail() {
		return 0, ErrFakeBus
	}
	if f.prox < f.offset {
		return 0, nil
	}
	return f.prox - f.offset, nil
}

func (f *FakeAmbient) SetProximityOffset(level uint16) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail() {
		return ErrFakeBus
	}
	f.offset = level
	f.offsets = append(f.offsets, level)
	return nil
}

// SetProximityThresholds records the interrupt thresholds.
func (f *FakeAmbient) SetProximityThresholds(high, low uint16) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail() {
		return ErrFakeBus
	}
	f.thdHigh, f.thdLow = high, low
	return nil
}

// InterruptFlags counts flag reads and reports no flags.
func (f *FakeAmbient) InterruptFlags() (uint16, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail() {
		return 0, ErrFakeBus
	}
	f.flagReads++
	return 0, nil
}

// Thresholds returns the last interrupt thresholds written.
func (f *FakeAmbient) Thresholds() (high, low uint16) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.thdHigh, f.thdLow
}

// FlagReads returns how many times the interrupt flags were read.
func (f *FakeAmbient) FlagReads() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.flagReads
}

// FakeClimate is an in-memory ClimateDevice using driver units.
type FakeClimate struct {
	mu       sync.Mutex
	milliC   int32
	centiRH  int32
	milliPa  int32
	failures int
}

// NewFakeClimate returns a fake reading tempC °C, rh %RH and pa Pa.
func NewFakeClimate(tempC, rh float64, pa int32) *FakeClimate {
	f := &FakeClimate{}
	f.Set(tempC, rh, pa)
	return f
}

// Set changes the readings.
func (f *FakeClimate) Set(tempC, rh float64, pa int32) {
	f.mu.Lock()
	f.milliC = int32(tempC * 1000)
	f.centiRH = int32(rh * 100)
	f.milliPa = pa * 1000
	f.mu.Unlock()
}

// Fail makes the next n transactions fail.
func (f *FakeClimate) Fail(n int) {
	f.mu.Lock()
	f.failures = n
	f.mu.Unlock()
}

func (f *FakeClimate) read(v *int32) (int32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures > 0 {
		f.failures--
		return 0, ErrFakeBus
	}
	return *v, nil
}

func (f *FakeClimate) ReadTemperature() (int32, error) { return f.read(&f.milliC) }
func (f *FakeClimate) ReadHumidity() (int32, error)    { return f.read(&f.centiRH) }
func (f *FakeClimate) ReadPressure() (int32, error)    { return f.read(&f.milliPa) }
