package logic

import (
	"errors"
	"fmt"
	"time"
)

// ErrCalibrationFailed is returned when the proximity offset could not be
// written to the sensor.
var ErrCalibrationFailed = errors.New("proximity calibration failed")

// CalibrateProximity zeroes the sensor's cancellation register, waits for
// the reading to settle, averages samples proximity readings and writes the
// average back as the new offset. Failed samples are skipped; if every
// sample fails the calibration fails.
func CalibrateProximity(s AmbientSensor, samples int, settle time.Duration, sleep func(time.Duration)) (uint16, error) {
	if samples <= 0 {
		samples = 1
	}
	if err := s.SetProximityOffset(0); err != nil {
		return 0, fmt.Errorf("%w: zero offset: %w", ErrCalibrationFailed, err)
	}
	if sleep != nil && settle > 0 {
		sleep(settle)
	}

	var sum uint32
	var n uint32
	for i := 0; i < samples; i++ {
		v, err := s.Proximity()
		if err != nil {
			continue
		}
		sum += uint32(v)
		n++
	}
	if n == 0 {
		return 0, fmt.Errorf("%w: no proximity samples", ErrCalibrationFailed)
	}

	offset := uint16(sum / n)
	if err := s.SetProximityOffset(offset); err != nil {
		return 0, fmt.Errorf("%w: apply offset %d: %w", ErrCalibrationFailed, offset, err)
	}
	return offset, nil
}
