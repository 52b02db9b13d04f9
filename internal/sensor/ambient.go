package sensor

import (
	"github.com/rs/zerolog/log"

	"github.com/sweeney/nightlight/internal/sensor/vcnl4040"
)

// AmbientDevice is the driver surface used by Ambient. *vcnl4040.Device
// implements it.
type AmbientDevice interface {
	Lux() (uint16, error)
	Proximity() (uint16, error)
	SetProximityOffset(level uint16) error
	SetProximityThresholds(high, low uint16) error
	InterruptFlags() (uint16, error)
}

var _ AmbientDevice = (*vcnl4040.Device)(nil)

// Ambient is the ambient light/proximity sensor with retries. A nil device
// means the sensor failed the boot test; every call reports ErrUnavailable.
type Ambient struct {
	dev AmbientDevice
	irq *ProximityInterrupt
}

// ProximityInterrupt holds the thresholds that drive the INT pin.
type ProximityInterrupt struct {
	High, Low uint16
}

// NewAmbient wraps dev, which may be nil.
func NewAmbient(dev AmbientDevice) *Ambient {
	return &Ambient{dev: dev}
}

// SetInterrupt records the interrupt thresholds. A nil irq means the INT pin
// is not wired and interrupt calls do nothing.
func (a *Ambient) SetInterrupt(irq *ProximityInterrupt) {
	a.irq = irq
}

// ProbeAmbient configures the VCNL4040, and its proximity interrupt when irq
// is non-nil. It returns nil when the sensor does not answer or reports the
// wrong id. A failed interrupt setup only logs; polling still works.
func ProbeAmbient(d *vcnl4040.Device, irq *ProximityInterrupt) AmbientDevice {
	err := retryErr("vcnl4040 configure", d.Configure)
	if err != nil {
		log.Warn().Err(err).Msg("sensor: ambient light sensor not found")
		return nil
	}
	if irq != nil {
		err := retryErr("vcnl4040 interrupt", func() error { return d.EnableProximityInterrupt(irq.High, irq.Low) })
		if err != nil {
			log.Warn().Err(err).Msg("sensor: proximity interrupt setup failed")
		}
	}
	log.Info().Bool("interrupt", irq != nil).Msg("sensor: ambient light sensor configured")
	return d
}

// Present reports whether the sensor passed the boot test.
func (a *Ambient) Present() bool {
	return a.dev != nil
}

// Lux returns the ambient light level in lux.
func (a *Ambient) Lux() (uint16, error) {
	if a.dev == nil {
		return 0, ErrUnavailable
	}
	return retry("lux", a.dev.Lux)
}

// Proximity returns the proximity count after offset cancellation.
func (a *Ambient) Proximity() (uint16, error) {
	if a.dev == nil {
		return 0, ErrUnavailable
	}
	return retry("proximity", a.dev.Proximity)
}

// SetProximityOffset writes the proximity cancellation level.
func (a *Ambient) SetProximityOffset(level uint16) error {
	if a.dev == nil {
		return ErrUnavailable
	}
	return retryErr("proximity offset", func() error { return a.dev.SetProximityOffset(level) })
}

// ArmInterrupt rewrites the interrupt thresholds. It does nothing when no
// interrupt is configured.
func (a *Ambient) ArmInterrupt() error {
	if a.irq == nil {
		return nil
	}
	if a.dev == nil {
		return ErrUnavailable
	}
	return retryErr("proximity thresholds", func() error {
		return a.dev.SetProximityThresholds(a.irq.High, a.irq.Low)
	})
}

// ClearInterrupt reads the interrupt flags, releasing the INT pin. It does
// nothing when no interrupt is configured.
func (a *Ambient) ClearInterrupt() error {
	if a.irq == nil {
		return nil
	}
	if a.dev == nil {
		return ErrUnavailable
	}
	_, err := retry("interrupt flags", a.dev.InterruptFlags)
	return err
}
