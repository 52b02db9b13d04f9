package protocol

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/rs/zerolog/log"
)

// Sink accepts outbound records.
type Sink interface {
	Send(rec Record) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(rec Record) error

// Send calls f(rec).
func (f SinkFunc) Send(rec Record) error { return f(rec) }

// MultiSink fans a record out to every sink. All sinks are attempted; the
// errors are joined.
func MultiSink(sinks ...Sink) Sink {
	return SinkFunc(func(rec Record) error {
		var errs []error
		for _, s := range sinks {
			if s == nil {
				continue
			}
			if err := s.Send(rec); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	})
}

// Recorder is a Sink that keeps every record it is given. Safe for
// concurrent use.
type Recorder struct {
	mu      sync.Mutex
	records []Record
}

// Send appends rec.
func (r *Recorder) Send(rec Record) error {
	r.mu.Lock()
	r.records = append(r.records, rec)
	r.mu.Unlock()
	return nil
}

// Records returns a copy of everything recorded so far.
func (r *Recorder) Records() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Record(nil), r.records...)
}

// Take returns and clears the recorded records.
func (r *Recorder) Take() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.records
	r.records = nil
	return out
}

// Conn moves records over a byte stream such as a serial port.
type Conn struct {
	mu  sync.Mutex
	enc *Encoder
	dec *Decoder
}

// NewConn wraps rw.
func NewConn(rw io.ReadWriter) *Conn {
	return &Conn{
		enc: NewEncoder(rw),
		dec: NewDecoder(rw),
	}
}

// Send encodes rec onto the stream. Safe for concurrent use.
func (c *Conn) Send(rec Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enc.Encode(rec)
}

// ReadRecords decodes frames until the stream ends or ctx is cancelled and
// delivers them to out. Malformed frames are logged and skipped. A clean end
// of stream returns nil.
func (c *Conn) ReadRecords(ctx context.Context, out chan<- Record) error {
	for {
		rec, err := c.dec.Next()
		if err != nil {
			if errors.Is(err, ErrMalformed) {
				log.Warn().Err(err).Msg("protocol: dropping frame")
				continue
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		select {
		case out <- rec:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
