package mqtt

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/sweeney/nightlight/internal/protocol"
)

func TestNewTopics(t *testing.T) {
	got := NewTopics("lab/nl1")
	if got.Records != "lab/nl1/records" {
		t.Errorf("records topic = %q", got.Records)
	}
	if got.System != "lab/nl1/system" {
		t.Errorf("system topic = %q", got.System)
	}
	if got.Command != "lab/nl1/cmd" {
		t.Errorf("command topic = %q", got.Command)
	}
}

func TestNewTopicsDefaultPrefix(t *testing.T) {
	if got := NewTopics("").Records; got != DefaultPrefix+"/records" {
		t.Errorf("records topic = %q", got)
	}
}

func TestFormatRecordPayload(t *testing.T) {
	at := time.Date(2026, 2, 2, 22, 18, 12, 0, time.UTC)
	rec := protocol.New(protocol.RTemperature, "21.50")

	payload, err := FormatRecordPayload(rec, at)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := `{"record":{"timestamp":"2026-02-02T22:18:12Z","opcode":12,"name":"temperature","args":["21.50"]}}`
	if string(payload) != want {
		t.Errorf("payload mismatch\ngot:  %s\nwant: %s", payload, want)
	}
}

func TestFormatRecordPayloadEmptyArgs(t *testing.T) {
	payload, err := FormatRecordPayload(protocol.New(protocol.QStatus), time.Unix(0, 0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var parsed RecordPayload
	if err := json.Unmarshal(payload, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.Record.Args == nil || len(parsed.Record.Args) != 0 {
		t.Errorf("args should be an empty array, got %v", parsed.Record.Args)
	}
}

func TestFormatRecordPayloadTimezoneConversion(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	at := time.Date(2026, 2, 3, 0, 18, 12, 0, loc)

	payload, err := FormatRecordPayload(protocol.New(protocol.RLux, "12"), at)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var parsed RecordPayload
	if err := json.Unmarshal(payload, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.Record.Timestamp != "2026-02-02T22:18:12Z" {
		t.Errorf("timestamp should be UTC, got %s", parsed.Record.Timestamp)
	}
}

func TestFormatSystemPayloadExactJSON(t *testing.T) {
	event := SystemEvent{
		Timestamp: time.Date(2026, 2, 2, 22, 18, 12, 0, time.UTC),
		Event:     "SHUTDOWN",
		Reason:    "SIGTERM",
	}
	payload, err := FormatSystemPayload(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := `{"system":{"timestamp":"2026-02-02T22:18:12Z","event":"SHUTDOWN","reason":"SIGTERM"}}`
	if string(payload) != want {
		t.Errorf("payload mismatch\ngot:  %s\nwant: %s", payload, want)
	}
}

func TestFormatSystemPayloadOmitsEmptyReason(t *testing.T) {
	payload, err := FormatSystemPayload(SystemEvent{Timestamp: time.Unix(0, 0), Event: "RECONNECTED"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var raw map[string]map[string]any
	if err := json.Unmarshal(payload, &raw); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if _, ok := raw["system"]["reason"]; ok {
		t.Error("reason should be omitted when empty")
	}
}

func TestFormatSystemPayloadRaw(t *testing.T) {
	raw := []byte(`{"status":{"event":"STARTUP"}}`)
	payload, err := FormatSystemPayload(SystemEvent{Event: "STARTUP", RawPayload: raw})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(payload) != string(raw) {
		t.Errorf("raw payload not passed through: %s", payload)
	}
}

func TestDecodeCommands(t *testing.T) {
	recs, err := DecodeCommands([]byte("21,5;26;"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	if recs[0].Op != protocol.SLedMode || len(recs[0].Args) != 1 || recs[0].Args[0] != "5" {
		t.Errorf("first record = %v", recs[0])
	}
	if recs[1].Op != protocol.QFadeLimits {
		t.Errorf("second record = %v", recs[1])
	}
}

func TestDecodeCommandsSkipsMalformed(t *testing.T) {
	recs, err := DecodeCommands([]byte("led,1;22;"))
	if err == nil {
		t.Error("expected an error for the malformed frame")
	}
	if len(recs) != 1 || recs[0].Op != protocol.QLedMode {
		t.Errorf("good frame should survive, got %v", recs)
	}
}

func TestFakePublisher(t *testing.T) {
	pub := NewFakePublisher()
	pub.Now = func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }

	var sink protocol.Sink = pub
	if err := sink.Send(protocol.New(protocol.RLedMode, "1")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sent := pub.Sent()
	if len(sent) != 1 || sent[0].Op != protocol.RLedMode {
		t.Fatalf("unexpected records: %v", sent)
	}
	want := `{"record":{"timestamp":"2026-01-01T00:00:00Z","opcode":23,"name":"led_mode","args":["1"]}}`
	if string(pub.Payloads[0]) != want {
		t.Errorf("payload = %s", pub.Payloads[0])
	}
}

func TestFakePublisherError(t *testing.T) {
	pub := NewFakePublisher()
	pub.SendError = errors.New("broker down")

	if err := pub.Send(protocol.New(protocol.RStatus, "2317")); err == nil {
		t.Error("expected error")
	}
	if len(pub.Sent()) != 0 {
		t.Error("failed send should not be recorded")
	}
}

func TestFakePublisherSystemEvents(t *testing.T) {
	pub := NewFakePublisher()
	events := []SystemEvent{
		{Timestamp: time.Unix(0, 0), Event: "STARTUP", Retained: true},
		{Timestamp: time.Unix(1, 0), Event: "RESET"},
		{Timestamp: time.Unix(2, 0), Event: "SHUTDOWN", Reason: "SIGINT"},
	}
	for _, e := range events {
		if err := pub.PublishSystem(e); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if len(pub.SystemEvents) != 3 || len(pub.SystemPayloads) != 3 {
		t.Fatalf("expected 3 events, got %d", len(pub.SystemEvents))
	}
	for i, e := range events {
		if pub.SystemEvents[i].Event != e.Event {
			t.Errorf("event %d = %s, want %s", i, pub.SystemEvents[i].Event, e.Event)
		}
	}
	if !pub.SystemEvents[0].Retained {
		t.Error("retained flag lost")
	}

	pub.PublishSystemError = errors.New("timeout")
	if err := pub.PublishSystem(events[0]); err == nil {
		t.Error("expected error")
	}
}

func TestFakePublisherReset(t *testing.T) {
	pub := NewFakePublisher()
	pub.Connected = true
	_ = pub.Send(protocol.New(protocol.RLux, "3"))
	_ = pub.PublishSystem(SystemEvent{Event: "STARTUP"})
	_ = pub.Close()

	pub.Reset()

	if len(pub.Records) != 0 || len(pub.Payloads) != 0 || len(pub.SystemEvents) != 0 {
		t.Error("reset should clear recorded data")
	}
	if pub.Closed || pub.IsConnected() {
		t.Error("reset should clear closed and connected")
	}
	if err := pub.Send(protocol.New(protocol.RLux, "4")); err != nil {
		t.Errorf("send after reset: %v", err)
	}
}

func TestFakePublisherImplementsInterfaces(t *testing.T) {
	var _ Publisher = NewFakePublisher()
	var _ ConnectionStatus = NewFakePublisher()
	var _ Publisher = (*RealPublisher)(nil)
	var _ ConnectionStatus = (*RealPublisher)(nil)
}
