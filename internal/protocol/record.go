package protocol

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrInvalidArgument is returned by the typed accessors when an argument is
// missing or outside the range of the requested type.
var ErrInvalidArgument = errors.New("invalid argument")

// Record is one parsed protocol message: an opcode and its arguments in
// their text form.
type Record struct {
	Op   Opcode
	Args []string
}

// New builds a record from pre-formatted arguments.
func New(op Opcode, args ...string) Record {
	return Record{Op: op, Args: args}
}

// String renders the record for logs.
func (r Record) String() string {
	if len(r.Args) == 0 {
		return r.Op.String()
	}
	return r.Op.String() + "(" + strings.Join(r.Args, ", ") + ")"
}

// Uint formats an unsigned argument.
func Uint[T ~uint8 | ~uint16 | ~uint32 | ~uint64](v T) string {
	return strconv.FormatUint(uint64(v), 10)
}

// Bool formats a boolean argument as 1 or 0.
func Bool(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// Float formats a real-valued argument with two decimals.
func Float(f float64) string {
	return strconv.FormatFloat(f, 'f', 2, 64)
}

func (r Record) arg(i int) (string, error) {
	if i < 0 || i >= len(r.Args) {
		return "", fmt.Errorf("%s arg %d: %w", r.Op, i, ErrInvalidArgument)
	}
	return strings.TrimSpace(r.Args[i]), nil
}

// Uint16 parses argument i as a 16-bit unsigned integer.
func (r Record) Uint16(i int) (uint16, error) {
	s, err := r.arg(i)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseUint(s, 10, 16)
	if err != nil {
		return 0, fmt.Errorf("%s arg %d %q: %w", r.Op, i, s, ErrInvalidArgument)
	}
	return uint16(v), nil
}

// Bool parses argument i as a boolean. Any integer other than 0 is true.
func (r Record) Bool(i int) (bool, error) {
	s, err := r.arg(i)
	if err != nil {
		return false, err
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b, nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return false, fmt.Errorf("%s arg %d %q: %w", r.Op, i, s, ErrInvalidArgument)
	}
	return v != 0, nil
}

// DoubleAsUint32 parses argument i as a real number and truncates it to a
// 32-bit unsigned integer. NaN and values outside the uint32 range are
// rejected.
func (r Record) DoubleAsUint32(i int) (uint32, error) {
	s, err := r.arg(i)
	if err != nil {
		return 0, err
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || f < 0 || f > math.MaxUint32 {
		return 0, fmt.Errorf("%s arg %d %q: %w", r.Op, i, s, ErrInvalidArgument)
	}
	return uint32(f), nil
}

// Str returns argument i verbatim.
func (r Record) Str(i int) (string, error) {
	return r.arg(i)
}
