// Command nightlight runs the night-light controller: it samples the ambient
// and climate sensors, drives the LED and answers the host over a serial
// link, mirroring records to MQTT.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"periph.io/x/conn/v3/physic"

	"github.com/sweeney/nightlight/internal/config"
	"github.com/sweeney/nightlight/internal/device"
	"github.com/sweeney/nightlight/internal/gpio"
	"github.com/sweeney/nightlight/internal/led"
	"github.com/sweeney/nightlight/internal/logic"
	"github.com/sweeney/nightlight/internal/mqtt"
	"github.com/sweeney/nightlight/internal/protocol"
	"github.com/sweeney/nightlight/internal/sensor"
	"github.com/sweeney/nightlight/internal/sensor/vcnl4040"
	"github.com/sweeney/nightlight/internal/settings"
	"github.com/sweeney/nightlight/internal/status"
	"github.com/sweeney/nightlight/internal/web"
)

// version is reported by the device-info query.
var version = "1.4.0"

// errRestart asks main to re-exec the process.
var errRestart = errors.New("restart requested")

func main() {
	configPath := flag.String("config", "", "Path to a YAML or TOML config file (defaults when empty)")
	printSettings := flag.Bool("print-settings", false, "Print the stored settings and exit")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	setupLogging(cfg.Log.Level, cfg.Log.JSON, cfg.Log.Colors)

	if *printSettings {
		if err := printStored(os.Stdout, cfg.Storage); err != nil {
			log.Fatal().Err(err).Msg("print settings")
		}
		return
	}

	err = run(cfg)
	if errors.Is(err, errRestart) {
		log.Warn().Msg("restarting")
		err = restart()
	}
	if err != nil {
		log.Fatal().Err(err).Msg("fatal")
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		cfg := config.Default()
		return &cfg, cfg.Validate()
	}
	return config.Load(path)
}

func setupLogging(level string, useJSON bool, colors bool) {
	// ISO 8601 format with timezone
	zerolog.TimeFieldFormat = time.RFC3339

	if useJSON {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	} else {
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: "2006-01-02T15:04:05.000Z07:00",
			NoColor:    !colors,
		})
	}

	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
}

// openStorage opens the configured settings backend.
func openStorage(c config.StorageConfig) (settings.Memory, io.Closer, error) {
	switch c.Backend {
	case config.BackendSQLite:
		m, err := settings.OpenSQLite(c.Path)
		if err != nil {
			return nil, nil, err
		}
		return m, m, nil
	case config.BackendMemory:
		return settings.NewFakeMemory(), io.NopCloser(nil), nil
	default:
		m, err := settings.OpenFile(c.Path)
		if err != nil {
			return nil, nil, err
		}
		return m, m, nil
	}
}

func printStored(w io.Writer, c config.StorageConfig) error {
	mem, closer, err := openStorage(c)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer closer.Close()

	store := settings.NewStore(mem)
	st, err := store.Load()
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	word, err := store.ConfigWord()
	if err != nil {
		return fmt.Errorf("read config word: %w", err)
	}
	fmt.Fprint(w, formatSettings(st, word))
	return nil
}

func formatSettings(st logic.Settings, word uint16) string {
	push := "off"
	if st.PushEnabled {
		push = "on"
	}
	cal := "no"
	if st.ProximityCalibrated {
		cal = fmt.Sprintf("yes (offset %d)", st.ProximityOffset)
	}
	return fmt.Sprintf("mode: %s\npush: %s every %d ticks\nfade: %d..%d\ncalibrated: %s\nconfig word: 0x%04x\n",
		st.Mode, push, st.PushIntervalTicks, st.FadeFloor, st.FadeCeiling, cal, word)
}

// sensors opens the I²C bus and probes both sensors. A missing bus leaves
// both sensors absent. The proximity interrupt is set up only when an
// interrupt line is configured.
func sensors(c config.SensorsConfig, th config.ThresholdsConfig) (*sensor.Ambient, *sensor.Climate, func()) {
	bus, err := sensor.OpenBus(c.Bus)
	if err != nil {
		log.Error().Err(err).Msg("i2c bus unavailable")
		return sensor.NewAmbient(nil), sensor.NewClimate(nil), func() {}
	}
	vcnl := vcnl4040.New(bus)
	vcnl.Address = c.AmbientAddress
	var irq *sensor.ProximityInterrupt
	if c.InterruptLine >= 0 {
		irq = &sensor.ProximityInterrupt{High: th.PSHigh, Low: th.PSLow}
	}
	amb := sensor.NewAmbient(sensor.ProbeAmbient(vcnl, irq))
	amb.SetInterrupt(irq)
	clim := sensor.NewClimate(sensor.ProbeClimate(bus, c.ClimateAddress))
	return amb, clim, func() { bus.Close() }
}

func run(cfg *config.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mem, closer, err := openStorage(cfg.Storage)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer closer.Close()

	ambient, climate, closeBus := sensors(cfg.Sensors, cfg.Thresholds)
	defer closeBus()
	bootStatus := sensor.BootStatus(ambient.Present(), climate.Present())

	pwm, err := led.OpenPWM(cfg.LED.Pin, physic.Frequency(cfg.LED.FrequencyHz)*physic.Hertz)
	if err != nil {
		return fmt.Errorf("init led: %w", err)
	}
	defer pwm.Off()

	tracker := status.NewTracker(time.Now(), status.Config{
		Version:    version,
		Serial:     cfg.Serial.Port,
		TickPeriod: cfg.Timing.TickPeriod.Duration(),
		Broker:     cfg.MQTT.Broker,
		HTTPAddr:   cfg.HTTP.Addr,
		Storage:    cfg.Storage.Backend,
	})

	inbound := make(chan protocol.Record, 32)
	var sinks []protocol.Sink

	if cfg.Serial.Port != "" {
		port, err := protocol.OpenSerial(cfg.Serial.Port, cfg.Serial.Baud)
		if err != nil {
			return err
		}
		defer port.Close()
		conn := protocol.NewConn(port)
		sinks = append(sinks, conn)
		go func() {
			if err := conn.ReadRecords(ctx, inbound); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("serial read stopped")
			}
		}()
		log.Info().Str("port", cfg.Serial.Port).Int("baud", cfg.Serial.Baud).Msg("serial link open")
	}

	var (
		publisher  mqtt.Publisher
		mqttStatus mqtt.ConnectionStatus
	)
	if cfg.MQTT.Enabled {
		p, err := mqtt.NewRealPublisher(mqtt.Options{
			Broker:     cfg.MQTT.Broker,
			ClientID:   cfg.MQTT.ClientID,
			Prefix:     cfg.MQTT.Prefix,
			BufferSize: cfg.MQTT.BufferSize,
			OnCommand: func(rec protocol.Record) {
				select {
				case inbound <- rec:
				default:
					log.Warn().Stringer("record", rec).Msg("inbound queue full, dropping mqtt command")
				}
			},
			OnConnectionChange: tracker.SetMQTTConnected,
		})
		if err != nil {
			log.Error().Err(err).Str("broker", cfg.MQTT.Broker).Msg("mqtt unavailable")
		} else {
			defer p.Close()
			publisher, mqttStatus = p, p
			sinks = append(sinks, p)
		}
	}

	dev := device.New(device.Config{
		Thresholds: cfg.LogicThresholds(),
		Timing:     cfg.LogicTiming(),
		Version:    version,
		ConfigWord: cfg.Device.ConfigWord,
	}, device.Hardware{
		Ambient:    ambient,
		Climate:    climate,
		Output:     pwm,
		Store:      settings.NewStore(mem),
		Out:        protocol.MultiSink(sinks...),
		BootStatus: bootStatus,
	})
	dev.Boot()
	tracker.Update(dev.State())

	if cfg.Sensors.InterruptLine >= 0 && ambient.Present() {
		w, err := gpio.NewRealWatcher(cfg.Sensors.InterruptChip, cfg.Sensors.InterruptLine, dev.ProximityInterrupt)
		if err != nil {
			log.Warn().Err(err).Msg("proximity interrupt unavailable")
		} else {
			defer w.Close()
		}
	}

	go tickLoop(ctx, dev, cfg.Timing.TickPeriod.Duration())

	if cfg.HTTP.Addr != "" {
		srv := web.New(cfg.HTTP.Addr, tracker, cfg.HTTP.StreamInterval.Duration())
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error().Err(err).Msg("http server error")
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Info().Str("addr", cfg.HTTP.Addr).Msg("http status server listening")
	}

	if publisher != nil {
		snap := tracker.Snapshot()
		publishSystem(publisher, mqtt.SystemEvent{
			Timestamp:  snap.Now,
			Event:      "STARTUP",
			Retained:   true,
			RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
		})
	}

	loop := time.NewTicker(cfg.Timing.LoopPeriod.Duration())
	defer loop.Stop()

	var heartbeat <-chan time.Time
	if hb := cfg.MQTT.Heartbeat.Duration(); hb > 0 && publisher != nil {
		t := time.NewTicker(hb)
		defer t.Stop()
		heartbeat = t.C
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	log.Info().
		Dur("tick", cfg.Timing.TickPeriod.Duration()).
		Str("storage", cfg.Storage.Backend).
		Stringer("boot", bootStatus).
		Msg("started")

	return runLoop(dev, publisher, mqttStatus, tracker, inbound, loop.C, heartbeat, sigCh, time.Now)
}

// tickLoop drives the scheduler's tick from a ticker until ctx ends.
func tickLoop(ctx context.Context, dev *device.Device, period time.Duration) {
	t := time.NewTicker(period)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			dev.Tick()
		}
	}
}

// runLoop is the foreground loop. Each wakeup runs one device iteration with
// whatever records have arrived. It returns nil on a shutdown signal and
// errRestart after a reset command.
func runLoop(dev *device.Device, publisher mqtt.Publisher, mqttStatus mqtt.ConnectionStatus, tracker *status.Tracker, inbound <-chan protocol.Record, loop, heartbeat <-chan time.Time, sig <-chan os.Signal, now func() time.Time) error {
	refresh := func() status.Snapshot {
		tracker.Update(dev.State())
		if mqttStatus != nil {
			tracker.SetMQTTConnected(mqttStatus.IsConnected())
		}
		return tracker.Snapshot()
	}

	for {
		var batch []protocol.Record
		select {
		case s := <-sig:
			log.Info().Stringer("signal", s).Msg("shutting down")
			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}
			if publisher != nil {
				publishSystem(publisher, mqtt.SystemEvent{
					Timestamp:  now(),
					Event:      "SHUTDOWN",
					Reason:     signalName,
					Retained:   true,
					RawPayload: status.FormatStatusEvent(refresh(), "SHUTDOWN", signalName),
				})
			}
			return nil

		case <-heartbeat:
			snap := refresh()
			log.Info().Uint64("ticks", snap.Ticks).Stringer("mode", snap.Settings.Mode).Msg("heartbeat")
			if publisher != nil {
				publishSystem(publisher, mqtt.SystemEvent{
					Timestamp:  now(),
					Event:      "HEARTBEAT",
					RawPayload: status.FormatStatusEvent(snap, "HEARTBEAT", ""),
				})
			}
			continue

		case rec := <-inbound:
			batch = append(batch, rec)
			batch = drain(batch, inbound)

		case <-loop:
		}

		dev.Iterate(batch)
		snap := refresh()

		if dev.ResetRequested() {
			if publisher != nil {
				publishSystem(publisher, mqtt.SystemEvent{
					Timestamp:  now(),
					Event:      "RESET",
					Retained:   true,
					RawPayload: status.FormatStatusEvent(snap, "RESET", "command"),
				})
			}
			return errRestart
		}
	}
}

// drain appends every record already queued on in.
func drain(batch []protocol.Record, in <-chan protocol.Record) []protocol.Record {
	for {
		select {
		case rec := <-in:
			batch = append(batch, rec)
		default:
			return batch
		}
	}
}

func publishSystem(p mqtt.Publisher, e mqtt.SystemEvent) {
	if err := p.PublishSystem(e); err != nil {
		log.Warn().Err(err).Str("event", e.Event).Msg("failed to publish system event")
		return
	}
	log.Info().Str("event", e.Event).Msg("published system event")
}
