// Package sensor adapts the ambient light/proximity and climate sensor
// drivers to the control core. Every read is retried a bounded number of
// times; a read that still fails reports ErrUnavailable and the caller
// treats the value as missing for that cycle.
package sensor

import (
	"errors"
	"fmt"

	"github.com/sweeney/nightlight/internal/protocol"
)

// ErrUnavailable means a sensor transaction failed after all retries, or
// the sensor was absent at boot.
var ErrUnavailable = errors.New("sensor unavailable")

// Attempts is the number of tries per sensor transaction.
const Attempts = 2

func retry[T any](what string, f func() (T, error)) (T, error) {
	var v T
	var err error
	for i := 0; i < Attempts; i++ {
		if v, err = f(); err == nil {
			return v, nil
		}
	}
	return v, fmt.Errorf("%w: %s: %w", ErrUnavailable, what, err)
}

func retryErr(what string, f func() error) error {
	_, err := retry(what, func() (struct{}, error) { return struct{}{}, f() })
	return err
}

// BootStatus maps the boot presence test to a status code.
func BootStatus(ambientOK, climateOK bool) protocol.Status {
	switch {
	case ambientOK && climateOK:
		return protocol.StatusOK
	case !ambientOK && !climateOK:
		return protocol.StatusNoSensors
	case !ambientOK:
		return protocol.StatusNoALS
	default:
		return protocol.StatusNoClimate
	}
}
