package settings

import (
	"errors"
	"fmt"
	"sync"
)

// Size is the size of the non-volatile image in bytes.
const Size = 1024

// erased is the value of a byte that has never been written.
const erased = 0xFF

var (
	// ErrOutOfRange is returned for offsets outside the image.
	ErrOutOfRange = errors.New("offset out of range")
	// ErrPowerLoss is returned by FakeMemory once its write budget is spent.
	ErrPowerLoss = errors.New("power lost")
)

// Memory is byte-addressed non-volatile storage. UpdateByteAt only writes
// when the stored value differs.
type Memory interface {
	ReadByteAt(off int) (byte, error)
	UpdateByteAt(off int, v byte) error
}

func checkOffset(off int) error {
	if off < 0 || off >= Size {
		return fmt.Errorf("%w: %d", ErrOutOfRange, off)
	}
	return nil
}

func erasedImage() []byte {
	img := make([]byte, Size)
	for i := range img {
		img[i] = erased
	}
	return img
}

// FakeMemory is an in-memory image for tests. It counts physical writes and
// can simulate a power cut after a number of writes.
type FakeMemory struct {
	mu        sync.Mutex
	img       []byte
	writes    int
	failAfter int // -1 disables
}

// NewFakeMemory returns an erased image.
func NewFakeMemory() *FakeMemory {
	return &FakeMemory{img: erasedImage(), failAfter: -1}
}

// ReadByteAt implements Memory.
func (m *FakeMemory) ReadByteAt(off int) (byte, error) {
	if err := checkOffset(off); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.img[off], nil
}

// UpdateByteAt implements Memory.
func (m *FakeMemory) UpdateByteAt(off int, v byte) error {
	if err := checkOffset(off); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.img[off] == v {
		return nil
	}
	if m.failAfter == 0 {
		return ErrPowerLoss
	}
	if m.failAfter > 0 {
		m.failAfter--
	}
	m.img[off] = v
	m.writes++
	return nil
}

// Writes returns the number of bytes physically written.
func (m *FakeMemory) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

// FailAfter lets n more writes succeed; every later write fails with
// ErrPowerLoss. A negative n removes the limit.
func (m *FakeMemory) FailAfter(n int) {
	m.mu.Lock()
	m.failAfter = n
	m.mu.Unlock()
}
