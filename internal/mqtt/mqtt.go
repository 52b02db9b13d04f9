// Package mqtt mirrors the device's outbound records to an MQTT broker and
// accepts command frames on a command topic.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/nightlight/internal/protocol"
)

// DefaultPrefix is the topic prefix when none is configured.
const DefaultPrefix = "home/nightlight"

// Topics are the topics used under one prefix.
type Topics struct {
	Records string // every outbound record
	System  string // lifecycle events and the will message
	Command string // inbound command frames
}

// NewTopics derives the topics from prefix.
func NewTopics(prefix string) Topics {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return Topics{
		Records: prefix + "/records",
		System:  prefix + "/system",
		Command: prefix + "/cmd",
	}
}

// Publisher publishes records and system events.
type Publisher interface {
	// Send publishes an outbound record. Implements protocol.Sink.
	Send(rec protocol.Record) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "RESET"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// RecordPayload is the JSON form of an outbound record.
type RecordPayload struct {
	Record RecordInner `json:"record"`
}

// RecordInner contains the record details.
type RecordInner struct {
	Timestamp string   `json:"timestamp"`
	Opcode    uint8    `json:"opcode"`
	Name      string   `json:"name"`
	Args      []string `json:"args"`
}

// FormatRecordPayload creates the JSON payload for a record.
func FormatRecordPayload(rec protocol.Record, at time.Time) ([]byte, error) {
	args := rec.Args
	if args == nil {
		args = []string{}
	}
	return json.Marshal(RecordPayload{
		Record: RecordInner{
			Timestamp: at.UTC().Format(time.RFC3339),
			Opcode:    uint8(rec.Op),
			Name:      rec.Op.String(),
			Args:      args,
		},
	})
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}

// DecodeCommands parses a command-topic payload: one or more protocol
// frames such as "21,5;". Malformed frames are skipped and reported in err.
func DecodeCommands(payload []byte) ([]protocol.Record, error) {
	return protocol.Unmarshal(payload)
}
