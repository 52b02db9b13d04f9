// Package gpio watches the proximity sensor's interrupt line.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

// Handler is called on each falling edge of the interrupt line. It runs on
// the watcher's event goroutine and must not block.
type Handler func()

// Watcher delivers interrupt edges until closed.
type Watcher interface {
	// Close stops event delivery and releases GPIO resources.
	Close() error
}

// Defaults for a Raspberry Pi (BCM numbering).
const (
	DefaultChip = "gpiochip0"
	PinINT      = 17 // VCNL4040 INT, open drain, active low
)
