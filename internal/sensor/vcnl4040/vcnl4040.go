// Package vcnl4040 drives the Vishay VCNL4040 ambient light and proximity
// sensor over I²C. All registers are 16 bits wide, little-endian.
package vcnl4040

import (
	"errors"
	"fmt"

	"tinygo.org/x/drivers"
)

// Address is the fixed 7-bit I²C address.
const Address = 0x60

// Registers.
const (
	RegALSConf   = 0x00
	RegPSConf12  = 0x03
	RegPSConf3MS = 0x04
	RegPSCanc    = 0x05
	RegPSThdL    = 0x06
	RegPSThdH    = 0x07
	RegPSData    = 0x08
	RegALSData   = 0x09
	RegIntFlag   = 0x0B
	RegID        = 0x0C
)

// DeviceID is the low byte of the ID register.
const DeviceID = 0x86

// Default configuration written by Configure.
const (
	DefaultALSConf = 0x4C
	DefaultPSConf1 = 0x0E
	DefaultPSConf2 = 0x08
	DefaultPSConf3 = 0x00
	DefaultPSMS    = 0x07
)

// PS_INT field of PS_CONF2: interrupt on both closing and away events.
const PSIntBoth = 0x03

// countsPerLux converts raw ALS counts with the default integration time.
const countsPerLux = 20

// ErrWrongID is returned by Configure when the ID register does not match.
var ErrWrongID = errors.New("vcnl4040: unexpected device id")

// Device is a VCNL4040 on a bus.
type Device struct {
	bus     drivers.I2C
	Address uint16

	buf [3]byte
}

// New returns a device at the default address. It does not touch the bus.
func New(bus drivers.I2C) *Device {
	return &Device{bus: bus, Address: Address}
}

// Configure checks the device id and writes the ambient light and proximity
// configuration.
func (d *Device) Configure() error {
	id, err := d.ID()
	if err != nil {
		return err
	}
	if id != DeviceID {
		return fmt.Errorf("%w: 0x%02x", ErrWrongID, id)
	}
	if err := d.write(RegALSConf, DefaultALSConf); err != nil {
		return err
	}
	return d.ConfigureProximity(DefaultPSConf1, DefaultPSConf2, DefaultPSConf3, DefaultPSMS)
}

// ConfigureProximity writes the two proximity configuration registers.
func (d *Device) ConfigureProximity(conf1, conf2, conf3, ms uint8) error {
	if err := d.write(RegPSConf12, uint16(conf2)<<8|uint16(conf1)); err != nil {
		return err
	}
	return d.write(RegPSConf3MS, uint16(ms)<<8|uint16(conf3))
}

// EnableProximityInterrupt writes the proximity thresholds and turns on the
// INT pin for both threshold crossings. The pin stays asserted until
// InterruptFlags is read.
func (d *Device) EnableProximityInterrupt(high, low uint16) error {
	if err := d.SetProximityThresholds(high, low); err != nil {
		return err
	}
	return d.ConfigureProximity(DefaultPSConf1, DefaultPSConf2|PSIntBoth, DefaultPSConf3, DefaultPSMS)
}

// ID returns the low byte of the ID register.
func (d *Device) ID() (uint8, error) {
	v, err := d.read(RegID)
	return uint8(v), err
}

// Lux returns the ambient light level.
func (d *Device) Lux() (uint16, error) {
	v, err := d.read(RegALSData)
	if err != nil {
		return 0, err
	}
	return v / countsPerLux, nil
}

// Proximity returns the raw proximity count, after cancellation.
func (d *Device) Proximity() (uint16, error) {
	return d.read(RegPSData)
}

// SetProximityOffset writes the proximity cancellation level.
func (d *Device) SetProximityOffset(level uint16) error {
	return d.write(RegPSCanc, level)
}

// SetProximityThresholds writes the interrupt thresholds.
func (d *Device) SetProximityThresholds(high, low uint16) error {
	if err := d.write(RegPSThdH, high); err != nil {
		return err
	}
	return d.write(RegPSThdL, low)
}

// InterruptFlags reads and clears the interrupt flag register.
func (d *Device) InterruptFlags() (uint16, error) {
	return d.read(RegIntFlag)
}

func (d *Device) read(reg uint8) (uint16, error) {
	d.buf[0] = reg
	if err := d.bus.Tx(d.Address, d.buf[:1], d.buf[1:3]); err != nil {
		return 0, fmt.Errorf("vcnl4040: read 0x%02x: %w", reg, err)
	}
	return uint16(d.buf[1]) | uint16(d.buf[2])<<8, nil
}

func (d *Device) write(reg uint8, v uint16) error {
	d.buf[0], d.buf[1], d.buf[2] = reg, byte(v), byte(v>>8)
	if err := d.bus.Tx(d.Address, d.buf[:3], nil); err != nil {
		return fmt.Errorf("vcnl4040: write 0x%02x: %w", reg, err)
	}
	return nil
}
