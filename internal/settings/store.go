// Package settings persists the behaviour record to a fixed flat layout in
// byte-addressed non-volatile memory.
package settings

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/sweeney/nightlight/internal/logic"
)

// Layout offsets. Words are little-endian; the push interval spans two
// words, low word first.
const (
	OffsetMarker         = 0
	OffsetPushMode       = 4
	OffsetPushInterval   = 6
	OffsetLEDMode        = 10
	OffsetFadeFloor      = 12
	OffsetFadeCeiling    = 14
	OffsetProxCalibrated = 16
	OffsetProxOffset     = 18
	OffsetConfigWord     = 64
)

const (
	markerPresent byte = 1
	markerCleared byte = 0
)

// ErrWriteFailed wraps any storage failure during Save.
var ErrWriteFailed = errors.New("settings write failed")

// Store is a typed view over Memory.
type Store struct {
	mem Memory

	// last record known to be fully persisted
	last  logic.Settings
	known bool
}

// NewStore wraps mem.
func NewStore(mem Memory) *Store {
	return &Store{mem: mem}
}

// Load reads the record. When the presence marker is absent or the stored
// record is not valid, the defaults are returned and persisted. On a read
// error the defaults are returned along with the error.
func (s *Store) Load() (logic.Settings, error) {
	marker, err := s.mem.ReadByteAt(OffsetMarker)
	if err != nil {
		return logic.DefaultSettings(), fmt.Errorf("read marker: %w", err)
	}
	if marker != markerPresent {
		log.Info().Msg("settings: no stored record, writing defaults")
		return s.bootstrap()
	}

	st, err := s.read()
	if err != nil {
		return logic.DefaultSettings(), err
	}
	if !st.Valid() {
		log.Warn().Interface("stored", st).Msg("settings: stored record invalid, writing defaults")
		return s.bootstrap()
	}
	s.last, s.known = st, true
	return st, nil
}

func (s *Store) bootstrap() (logic.Settings, error) {
	def := logic.DefaultSettings()
	s.known = false
	if err := s.Save(def); err != nil {
		return def, err
	}
	return def, nil
}

func (s *Store) read() (logic.Settings, error) {
	var st logic.Settings
	var errs []error
	b := func(off int) byte {
		v, err := s.mem.ReadByteAt(off)
		errs = append(errs, err)
		return v
	}
	w := func(off int) uint16 {
		return uint16(b(off)) | uint16(b(off+1))<<8
	}

	st.PushEnabled = b(OffsetPushMode) != 0
	st.PushIntervalTicks = uint32(w(OffsetPushInterval)) | uint32(w(OffsetPushInterval+2))<<16
	st.Mode = logic.Mode(b(OffsetLEDMode))
	st.FadeFloor = b(OffsetFadeFloor)
	st.FadeCeiling = b(OffsetFadeCeiling)
	st.ProximityCalibrated = b(OffsetProxCalibrated) == 1
	st.ProximityOffset = w(OffsetProxOffset)

	if err := errors.Join(errs...); err != nil {
		return st, fmt.Errorf("read settings: %w", err)
	}
	return st, nil
}

// Save persists st. Only changed bytes are written. The presence marker is
// cleared before the first field write and set again after the last, so an
// interrupted save reads back as absent. Saving an unchanged record writes
// nothing.
func (s *Store) Save(st logic.Settings) error {
	if s.known && st == s.last {
		return nil
	}

	if err := s.updateByte(OffsetMarker, markerCleared); err != nil {
		return err
	}
	s.known = false

	ops := []func() error{
		func() error { return s.updateByte(OffsetPushMode, boolByte(st.PushEnabled)) },
		func() error { return s.updateWord(OffsetPushInterval, uint16(st.PushIntervalTicks)) },
		func() error { return s.updateWord(OffsetPushInterval+2, uint16(st.PushIntervalTicks>>16)) },
		func() error { return s.updateByte(OffsetLEDMode, byte(st.Mode)) },
		func() error { return s.updateByte(OffsetFadeFloor, st.FadeFloor) },
		func() error { return s.updateByte(OffsetFadeCeiling, st.FadeCeiling) },
		func() error { return s.updateByte(OffsetProxCalibrated, boolByte(st.ProximityCalibrated)) },
		func() error { return s.updateWord(OffsetProxOffset, st.ProximityOffset) },
	}
	for _, op := range ops {
		if err := op(); err != nil {
			return err
		}
	}

	if err := s.updateByte(OffsetMarker, markerPresent); err != nil {
		return err
	}
	s.last, s.known = st, true
	return nil
}

// ConfigWord returns the device configuration word stored outside the
// settings record.
func (s *Store) ConfigWord() (uint16, error) {
	lo, err := s.mem.ReadByteAt(OffsetConfigWord)
	if err != nil {
		return 0, err
	}
	hi, err := s.mem.ReadByteAt(OffsetConfigWord + 1)
	if err != nil {
		return 0, err
	}
	return uint16(lo) | uint16(hi)<<8, nil
}

// EnsureConfigWord writes w when no config word has been written yet.
func (s *Store) EnsureConfigWord(w uint16) error {
	cur, err := s.ConfigWord()
	if err != nil {
		return err
	}
	if cur != 0xFFFF {
		return nil
	}
	return s.updateWord(OffsetConfigWord, w)
}

func (s *Store) updateByte(off int, v byte) error {
	if err := s.mem.UpdateByteAt(off, v); err != nil {
		return fmt.Errorf("%w: offset %d: %w", ErrWriteFailed, off, err)
	}
	return nil
}

func (s *Store) updateWord(off int, v uint16) error {
	if err := s.updateByte(off, byte(v)); err != nil {
		return err
	}
	return s.updateByte(off+1, byte(v>>8))
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}
