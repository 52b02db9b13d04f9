package led

import "sync"

// FakeOutput records every level written.
type FakeOutput struct {
	mu     sync.Mutex
	levels []uint8
	err    error
}

// SetBrightness implements logic.Output.
func (f *FakeOutput) SetBrightness(level uint8) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.levels = append(f.levels, level)
	return nil
}

// SetError makes subsequent writes fail with err (nil to clear).
func (f *FakeOutput) SetError(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

// Levels returns the written levels.
func (f *FakeOutput) Levels() []uint8 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]uint8(nil), f.levels...)
}

// Last returns the last level written and whether any was.
func (f *FakeOutput) Last() (uint8, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.levels) == 0 {
		return 0, false
	}
	return f.levels[len(f.levels)-1], true
}
