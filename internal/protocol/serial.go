package protocol

import (
	"fmt"
	"io"

	serial "github.com/tarm/goserial"
)

// DefaultBaud is the link speed hosts expect.
const DefaultBaud = 38400

// OpenSerial opens the named serial device for the command link.
func OpenSerial(name string, baud int) (io.ReadWriteCloser, error) {
	if baud <= 0 {
		baud = DefaultBaud
	}
	port, err := serial.OpenPort(&serial.Config{Name: name, Baud: baud})
	if err != nil {
		return nil, fmt.Errorf("open serial %s: %w", name, err)
	}
	return port, nil
}
