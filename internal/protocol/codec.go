package protocol

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// CmdMessenger framing characters.
const (
	FieldSeparator   = ','
	CommandSeparator = ';'
	EscapeCharacter  = '/'
)

// ErrMalformed is returned by Decoder.Next for a frame whose opcode field is
// not a number. The decoder stays usable after it.
var ErrMalformed = errors.New("malformed record")

// maxFrame bounds a single frame so a missing separator cannot grow the
// buffer without limit.
const maxFrame = 512

// Encoder writes records in CmdMessenger text form, one per line.
type Encoder struct {
	w io.Writer
}

// NewEncoder returns an encoder writing to w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

// Encode writes rec followed by the command separator and CR LF.
func (e *Encoder) Encode(rec Record) error {
	_, err := io.WriteString(e.w, Marshal(rec))
	return err
}

// Marshal renders rec as a complete frame including the trailing CR LF.
func Marshal(rec Record) string {
	var b strings.Builder
	b.WriteString(strconv.Itoa(int(rec.Op)))
	for _, a := range rec.Args {
		b.WriteByte(FieldSeparator)
		escapeTo(&b, a)
	}
	b.WriteByte(CommandSeparator)
	b.WriteString("\r\n")
	return b.String()
}

func escapeTo(b *strings.Builder, s string) {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == FieldSeparator || c == CommandSeparator || c == EscapeCharacter {
			b.WriteByte(EscapeCharacter)
		}
		b.WriteByte(c)
	}
}

// Decoder reads CmdMessenger frames from a byte stream.
type Decoder struct {
	r *bufio.Reader
}

// NewDecoder returns a decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: bufio.NewReader(r)}
}

// Next returns the next complete record. It returns io.EOF when the stream
// ends between frames and io.ErrUnexpectedEOF when it ends inside one.
func (d *Decoder) Next() (Record, error) {
	var (
		fields   []string
		cur      strings.Builder
		escaped  bool
		started  bool
		overflow bool
		size     int
	)
	for {
		c, err := d.r.ReadByte()
		if err != nil {
			if errors.Is(err, io.EOF) && started {
				return Record{}, io.ErrUnexpectedEOF
			}
			return Record{}, err
		}
		if !started && !escaped && (c == '\r' || c == '\n' || c == ' ' || c == '\t') {
			continue
		}
		started = true
		size++
		if size > maxFrame {
			overflow = true
		}
		switch {
		case escaped:
			if !overflow {
				cur.WriteByte(c)
			}
			escaped = false
		case c == EscapeCharacter:
			escaped = true
		case c == CommandSeparator:
			if overflow {
				return Record{}, fmt.Errorf("frame exceeds %d bytes: %w", maxFrame, ErrMalformed)
			}
			fields = append(fields, cur.String())
			return parseFields(fields)
		case overflow:
		case c == FieldSeparator:
			fields = append(fields, cur.String())
			cur.Reset()
		default:
			cur.WriteByte(c)
		}
	}
}

// Unmarshal decodes every complete frame in data. Malformed frames are
// skipped and reported through the returned error after the good records.
func Unmarshal(data []byte) ([]Record, error) {
	dec := NewDecoder(bytes.NewReader(data))
	var (
		out  []Record
		errs []error
	)
	for {
		rec, err := dec.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return out, errors.Join(errs...)
			}
			if errors.Is(err, ErrMalformed) {
				errs = append(errs, err)
				continue
			}
			return out, errors.Join(append(errs, err)...)
		}
		out = append(out, rec)
	}
}

func parseFields(fields []string) (Record, error) {
	head := strings.TrimSpace(fields[0])
	op, err := strconv.ParseUint(head, 10, 8)
	if err != nil {
		return Record{}, fmt.Errorf("opcode %q: %w", head, ErrMalformed)
	}
	rec := Record{Op: Opcode(op)}
	if len(fields) > 1 {
		rec.Args = fields[1:]
	}
	return rec, nil
}
