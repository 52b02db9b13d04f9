package settings

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
)

// FileMemory keeps the image in a fixed-size file. Each changed byte is
// written in place and synced.
type FileMemory struct {
	mu  sync.Mutex
	f   *os.File
	img []byte
}

// OpenFile opens or creates the image file at path. A new or short file is
// padded with erased bytes.
func OpenFile(path string) (*FileMemory, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}
	img := erasedImage()
	n, err := f.ReadAt(img, 0)
	if err != nil && !errors.Is(err, io.EOF) {
		f.Close()
		return nil, fmt.Errorf("read image: %w", err)
	}
	if n < Size {
		if _, err := f.WriteAt(img[n:], int64(n)); err != nil {
			f.Close()
			return nil, fmt.Errorf("pad image: %w", err)
		}
		if err := f.Sync(); err != nil {
			f.Close()
			return nil, fmt.Errorf("sync image: %w", err)
		}
	}
	return &FileMemory{f: f, img: img}, nil
}

// ReadByteAt implements Memory.
func (m *FileMemory) ReadByteAt(off int) (byte, error) {
	if err := checkOffset(off); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.img[off], nil
}

// UpdateByteAt implements Memory.
func (m *FileMemory) UpdateByteAt(off int, v byte) error {
	if err := checkOffset(off); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.img[off] == v {
		return nil
	}
	if _, err := m.f.WriteAt([]byte{v}, int64(off)); err != nil {
		return fmt.Errorf("write image: %w", err)
	}
	if err := m.f.Sync(); err != nil {
		return fmt.Errorf("sync image: %w", err)
	}
	m.img[off] = v
	return nil
}

// Close closes the image file.
func (m *FileMemory) Close() error {
	return m.f.Close()
}
