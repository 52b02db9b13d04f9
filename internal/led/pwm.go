package led

import (
	"fmt"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"
)

// DefaultFrequency is the PWM carrier frequency.
const DefaultFrequency = 2 * physic.KiloHertz

// PWM drives the LED from a hardware PWM pin.
type PWM struct {
	pin  gpio.PinOut
	freq physic.Frequency
}

// OpenPWM initialises the host drivers and looks up the named pin, such as
// "GPIO18".
func OpenPWM(name string, freq physic.Frequency) (*PWM, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("host init: %w", err)
	}
	pin := gpioreg.ByName(name)
	if pin == nil {
		return nil, fmt.Errorf("pwm pin %q not found", name)
	}
	if freq <= 0 {
		freq = DefaultFrequency
	}
	return NewPWM(pin, freq), nil
}

// NewPWM drives pin at freq.
func NewPWM(pin gpio.PinOut, freq physic.Frequency) *PWM {
	return &PWM{pin: pin, freq: freq}
}

// SetBrightness implements logic.Output.
func (p *PWM) SetBrightness(level uint8) error {
	d := gpio.Duty(Duty(level) * float64(gpio.DutyMax))
	if err := p.pin.PWM(d, p.freq); err != nil {
		return fmt.Errorf("pwm %s: %w", p.pin, err)
	}
	return nil
}

// Off drives the pin low.
func (p *PWM) Off() error {
	return p.pin.Out(gpio.Low)
}
