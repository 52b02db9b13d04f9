package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/sweeney/nightlight/internal/config"
	"github.com/sweeney/nightlight/internal/device"
	"github.com/sweeney/nightlight/internal/led"
	"github.com/sweeney/nightlight/internal/logic"
	"github.com/sweeney/nightlight/internal/mqtt"
	"github.com/sweeney/nightlight/internal/protocol"
	"github.com/sweeney/nightlight/internal/sensor"
	"github.com/sweeney/nightlight/internal/settings"
	"github.com/sweeney/nightlight/internal/status"
)

// fakeClock returns a function that yields start, start+step, start+2*step, ...
// on successive calls. Only called from runLoop's goroutine.
func fakeClock(start time.Time, step time.Duration) func() time.Time {
	n := 0
	return func() time.Time {
		t := start.Add(time.Duration(n) * step)
		n++
		return t
	}
}

type loopRig struct {
	dev       *device.Device
	out       *protocol.Recorder
	pub       *mqtt.FakePublisher
	tracker   *status.Tracker
	inbound   chan protocol.Record
	loop      chan time.Time
	heartbeat chan time.Time
	sig       chan os.Signal
	errCh     chan error
}

func startLoop(t *testing.T) *loopRig {
	t.Helper()
	r := &loopRig{
		out:       &protocol.Recorder{},
		pub:       mqtt.NewFakePublisher(),
		tracker:   status.NewTracker(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), status.Config{Version: version}),
		inbound:   make(chan protocol.Record),
		loop:      make(chan time.Time),
		heartbeat: make(chan time.Time),
		sig:       make(chan os.Signal, 1),
		errCh:     make(chan error, 1),
	}
	r.pub.Connected = true
	r.dev = device.New(device.Config{
		Thresholds: logic.DefaultThresholds(),
		Timing:     logic.DefaultTiming(),
		Version:    version,
	}, device.Hardware{
		Ambient:    sensor.NewAmbient(sensor.NewFakeAmbient(40, 0)),
		Climate:    sensor.NewClimate(sensor.NewFakeClimate(18, 60, 100000)),
		Output:     &led.FakeOutput{},
		Store:      settings.NewStore(settings.NewFakeMemory()),
		Out:        r.out,
		BootStatus: protocol.StatusOK,
		Sleep:      func(time.Duration) {},
	})
	r.dev.Boot()
	r.out.Take()

	clock := fakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), time.Second)
	go func() {
		r.errCh <- runLoop(r.dev, r.pub, r.pub, r.tracker, r.inbound, r.loop, r.heartbeat, r.sig, clock)
	}()
	return r
}

func (r *loopRig) stop(t *testing.T, s os.Signal) error {
	t.Helper()
	r.sig <- s
	select {
	case err := <-r.errCh:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("runLoop did not return")
		return nil
	}
}

func TestRunLoopShutdownEvent(t *testing.T) {
	for _, tc := range []struct {
		sig  os.Signal
		want string
	}{
		{syscall.SIGTERM, "SIGTERM"},
		{syscall.SIGINT, "SIGINT"},
	} {
		r := startLoop(t)
		if err := r.stop(t, tc.sig); err != nil {
			t.Fatalf("runLoop returned error: %v", err)
		}

		if len(r.pub.SystemEvents) != 1 {
			t.Fatalf("expected 1 system event, got %d", len(r.pub.SystemEvents))
		}
		ev := r.pub.SystemEvents[0]
		if ev.Event != "SHUTDOWN" || ev.Reason != tc.want || !ev.Retained {
			t.Errorf("unexpected shutdown event: %+v", ev)
		}

		var parsed status.StatusJSON
		if err := json.Unmarshal(r.pub.SystemPayloads[0], &parsed); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if parsed.Status.Reason != tc.want {
			t.Errorf("payload reason: got %q, want %q", parsed.Status.Reason, tc.want)
		}
		if !parsed.Status.MQTT.Connected {
			t.Error("payload should report mqtt connected")
		}
	}
}

func TestRunLoopHandlesInbound(t *testing.T) {
	r := startLoop(t)
	r.inbound <- protocol.New(protocol.QLedMode)
	r.inbound <- protocol.New(protocol.SFadeLimits, "5", "50")
	if err := r.stop(t, syscall.SIGTERM); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	recs := r.out.Records()
	want := []protocol.Record{
		protocol.New(protocol.RLedMode, "3"),
		protocol.New(protocol.RFadeLimits, "5", "50"),
	}
	if len(recs) != len(want) {
		t.Fatalf("expected %d records, got %v", len(want), recs)
	}
	for i := range want {
		if recs[i].String() != want[i].String() {
			t.Errorf("record %d: got %v, want %v", i, recs[i], want[i])
		}
	}
}

func TestRunLoopUpdatesTracker(t *testing.T) {
	r := startLoop(t)
	r.loop <- time.Time{}
	r.loop <- time.Time{}
	if err := r.stop(t, syscall.SIGTERM); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	snap := r.tracker.Snapshot()
	if !snap.Booted {
		t.Error("tracker should be booted")
	}
	if !snap.Readings.Ready {
		t.Error("readings should be ready after a default task")
	}
	if !snap.Readings.Lux.Valid || snap.Readings.Lux.Value != 40 {
		t.Errorf("lux: got %+v", snap.Readings.Lux)
	}
	if !snap.MQTTConnected {
		t.Error("mqtt status should be copied to the tracker")
	}
}

func TestRunLoopHeartbeat(t *testing.T) {
	r := startLoop(t)
	r.heartbeat <- time.Time{}
	if err := r.stop(t, syscall.SIGTERM); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	if len(r.pub.SystemEvents) != 2 {
		t.Fatalf("expected HEARTBEAT and SHUTDOWN, got %d events", len(r.pub.SystemEvents))
	}
	if r.pub.SystemEvents[0].Event != "HEARTBEAT" {
		t.Errorf("first event: got %q, want HEARTBEAT", r.pub.SystemEvents[0].Event)
	}
	if r.pub.SystemEvents[0].Retained {
		t.Error("heartbeat should not be retained")
	}
}

func TestRunLoopResetRestarts(t *testing.T) {
	r := startLoop(t)
	r.inbound <- protocol.New(protocol.SReset)

	select {
	case err := <-r.errCh:
		if !errors.Is(err, errRestart) {
			t.Fatalf("expected errRestart, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("runLoop did not return after reset")
	}

	if len(r.pub.SystemEvents) != 1 || r.pub.SystemEvents[0].Event != "RESET" {
		t.Errorf("expected a RESET event, got %+v", r.pub.SystemEvents)
	}
	if n := len(r.out.Records()); n != 0 {
		t.Errorf("reset should send no response, got %d records", n)
	}
}

func TestRunLoopWithoutMQTT(t *testing.T) {
	r := startLoop(t)
	// Replace the running loop with one that has no publisher.
	r.sig <- syscall.SIGTERM
	<-r.errCh

	sig := make(chan os.Signal, 1)
	errCh := make(chan error, 1)
	hb := make(chan time.Time)
	go func() {
		errCh <- runLoop(r.dev, nil, nil, r.tracker, nil, nil, hb, sig, time.Now)
	}()
	hb <- time.Time{}
	sig <- syscall.SIGINT
	if err := <-errCh; err != nil {
		t.Errorf("runLoop returned error: %v", err)
	}
}

func TestDrain(t *testing.T) {
	in := make(chan protocol.Record, 3)
	in <- protocol.New(protocol.QStatus)
	in <- protocol.New(protocol.QLux)

	got := drain([]protocol.Record{protocol.New(protocol.QPushMode)}, in)
	if len(got) != 3 {
		t.Fatalf("expected 3 records, got %d", len(got))
	}
	if got[2].Op != protocol.QLux {
		t.Errorf("order not preserved: %v", got)
	}
}

func TestFormatSettings(t *testing.T) {
	st := logic.DefaultSettings()
	st.ProximityCalibrated = true
	st.ProximityOffset = 14

	got := formatSettings(st, 0x00ab)
	for _, want := range []string{
		"mode: ALS_PS",
		"push: on every 20000 ticks",
		"fade: 0..100",
		"calibrated: yes (offset 14)",
		"config word: 0x00ab",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("missing %q in:\n%s", want, got)
		}
	}
}

func TestPrintStored(t *testing.T) {
	for _, backend := range []string{config.BackendFile, config.BackendSQLite, config.BackendMemory} {
		t.Run(backend, func(t *testing.T) {
			c := config.StorageConfig{Backend: backend, Path: filepath.Join(t.TempDir(), "eeprom")}
			var buf bytes.Buffer
			if err := printStored(&buf, c); err != nil {
				t.Fatalf("printStored: %v", err)
			}
			if !strings.Contains(buf.String(), "mode: ALS_PS") {
				t.Errorf("unexpected output:\n%s", buf.String())
			}
		})
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := loadConfig("")
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Timing.TickPeriod.Duration() != 400*time.Microsecond {
		t.Errorf("tick period: got %v", cfg.Timing.TickPeriod.Duration())
	}
}
