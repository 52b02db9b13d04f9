package mqtt

import (
	"sync"
	"time"

	"github.com/sweeney/nightlight/internal/protocol"
)

// FakePublisher records published records and events for test assertions.
type FakePublisher struct {
	mu sync.Mutex

	// Records contains all records that were sent.
	Records []protocol.Record

	// Payloads contains the JSON payloads of the sent records.
	Payloads [][]byte

	// SystemEvents contains all system events that were published.
	SystemEvents []SystemEvent

	// SystemPayloads contains the JSON payloads for system events.
	SystemPayloads [][]byte

	// SendError, if set, will be returned by Send.
	SendError error

	// PublishSystemError, if set, will be returned by PublishSystem.
	PublishSystemError error

	// Closed tracks if Close was called.
	Closed bool

	// Connected controls the return value of IsConnected.
	Connected bool

	// Now stamps record payloads; time.Now when nil.
	Now func() time.Time
}

// NewFakePublisher creates a FakePublisher for testing.
func NewFakePublisher() *FakePublisher {
	return &FakePublisher{}
}

// Send records the record.
func (f *FakePublisher) Send(rec protocol.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SendError != nil {
		return f.SendError
	}

	now := time.Now
	if f.Now != nil {
		now = f.Now
	}
	payload, err := FormatRecordPayload(rec, now())
	if err != nil {
		return err
	}
	f.Records = append(f.Records, rec)
	f.Payloads = append(f.Payloads, payload)
	return nil
}

// PublishSystem records the system event.
func (f *FakePublisher) PublishSystem(event SystemEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PublishSystemError != nil {
		return f.PublishSystemError
	}

	payload, err := FormatSystemPayload(event)
	if err != nil {
		return err
	}
	f.SystemEvents = append(f.SystemEvents, event)
	f.SystemPayloads = append(f.SystemPayloads, payload)
	return nil
}

// Sent returns a copy of the sent records.
func (f *FakePublisher) Sent() []protocol.Record {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]protocol.Record(nil), f.Records...)
}

// Close marks the publisher as closed.
func (f *FakePublisher) Close() error {
	f.mu.Lock()
	f.Closed = true
	f.mu.Unlock()
	return nil
}

// IsConnected reports whether the fake publisher is "connected".
func (f *FakePublisher) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Connected
}

// Reset clears recorded records and events.
func (f *FakePublisher) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Records = nil
	f.Payloads = nil
	f.SystemEvents = nil
	f.SystemPayloads = nil
	f.Closed = false
	f.SendError = nil
	f.PublishSystemError = nil
	f.Connected = false
}
