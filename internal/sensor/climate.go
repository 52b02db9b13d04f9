package sensor

import (
	"github.com/rs/zerolog/log"
	"tinygo.org/x/drivers"
	"tinygo.org/x/drivers/bme280"
)

// ClimateAddress is the BME280 address with SDO tied low.
const ClimateAddress = 0x76

// ClimateDevice is the driver surface used by Climate. *bme280.Device
// implements it. Units are those of the driver: milli-°C, milli-Pa and
// hundredths of a percent.
type ClimateDevice interface {
	ReadTemperature() (int32, error)
	ReadPressure() (int32, error)
	ReadHumidity() (int32, error)
}

var _ ClimateDevice = (*bme280.Device)(nil)

// Climate is the temperature/humidity/pressure sensor with retries. A nil
// device means the sensor failed the boot test.
type Climate struct {
	dev ClimateDevice
}

// NewClimate wraps dev, which may be nil.
func NewClimate(dev ClimateDevice) *Climate {
	return &Climate{dev: dev}
}

// ProbeClimate looks for a BME280 at addr and configures it. It returns nil
// when the sensor is not connected.
func ProbeClimate(bus drivers.I2C, addr uint16) ClimateDevice {
	d := bme280.New(bus)
	d.Address = addr
	if !d.Connected() && !d.Connected() {
		log.Warn().Uint16("addr", addr).Msg("sensor: climate sensor not found")
		return nil
	}
	d.Configure()
	log.Info().Uint16("addr", addr).Msg("sensor: climate sensor configured")
	return &d
}

// Present reports whether the sensor passed the boot test.
func (c *Climate) Present() bool {
	return c.dev != nil
}

// Temperature returns °C.
func (c *Climate) Temperature() (float64, error) {
	if c.dev == nil {
		return 0, ErrUnavailable
	}
	v, err := retry("temperature", c.dev.ReadTemperature)
	return float64(v) / 1000, err
}

// Humidity returns %RH.
func (c *Climate) Humidity() (float64, error) {
	if c.dev == nil {
		return 0, ErrUnavailable
	}
	v, err := retry("humidity", c.dev.ReadHumidity)
	return float64(v) / 100, err
}

// Pressure returns Pa.
func (c *Climate) Pressure() (uint32, error) {
	if c.dev == nil {
		return 0, ErrUnavailable
	}
	v, err := retry("pressure", c.dev.ReadPressure)
	if err != nil {
		return 0, err
	}
	if v < 0 {
		v = 0
	}
	return uint32(v / 1000), nil
}
