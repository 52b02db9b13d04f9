//go:build linux

package gpio

import (
	"errors"
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// RealWatcher watches an interrupt line using the Linux GPIO character device.
type RealWatcher struct {
	chip *gpiocdev.Chip
	line *gpiocdev.Line
}

// NewRealWatcher requests offset on chip as a pulled-up input and calls h on
// every falling edge.
func NewRealWatcher(chip string, offset int, h Handler) (*RealWatcher, error) {
	c, err := gpiocdev.NewChip(chip)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	// The sensor's INT output is open drain and pulls the line low.
	line, err := c.RequestLine(offset,
		gpiocdev.AsInput,
		gpiocdev.WithPullUp,
		gpiocdev.WithFallingEdge,
		gpiocdev.WithEventHandler(func(evt gpiocdev.LineEvent) {
			if evt.Type == gpiocdev.LineEventFallingEdge {
				h()
			}
		}))
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("request INT pin %d: %w", offset, err)
	}

	return &RealWatcher{chip: c, line: line}, nil
}

// Close releases the line and the chip.
func (w *RealWatcher) Close() error {
	var errs []error
	if w.line != nil {
		if err := w.line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close INT pin: %w", err))
		}
	}
	if w.chip != nil {
		if err := w.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}
	return errors.Join(errs...)
}
