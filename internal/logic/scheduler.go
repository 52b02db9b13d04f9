package logic

import (
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sweeney/nightlight/internal/protocol"
)

// Scheduler is the tick-driven cooperative task selector.
//
// Tick runs in the timer context and only touches the atomic fields below:
// it increments the counter and raises single-slot pulses that the
// foreground consumes. Everything else is owned by the foreground, which
// calls RunPendingTask once per loop iteration.
type Scheduler struct {
	counter atomic.Uint64

	// Written by the foreground, read by Tick.
	pushEnabled  atomic.Bool
	pushInterval atomic.Uint32

	// Raised by Tick or the interrupt handler, consumed by the foreground.
	fadeDue atomic.Bool
	pushDue atomic.Bool
	proxIRQ atomic.Bool

	// Tick number of the latest unconsumed dwell boundary, 0 when none.
	dwellBoundary atomic.Uint64

	timing   Timing
	settings *Settings
	light    *Light
	ambient  AmbientSensor
	climate  ClimateSensor
	store    Saver
	out      protocol.Sink
	sleep    func(time.Duration)

	task      Task
	requested [taskCount]bool
	snap      Snapshot
}

// SchedulerDeps are the collaborators the scheduler drives.
type SchedulerDeps struct {
	Settings *Settings
	Light    *Light
	Ambient  AmbientSensor
	Climate  ClimateSensor
	Store    Saver
	Out      protocol.Sink
	// Sleep is used for the calibration settle delay. Defaults to time.Sleep.
	Sleep func(time.Duration)
}

// NewScheduler creates a scheduler and copies the push settings into the
// tick-visible fields.
func NewScheduler(timing Timing, deps SchedulerDeps) *Scheduler {
	if timing.FadeStepTicks == 0 {
		timing.FadeStepTicks = DefaultTiming().FadeStepTicks
	}
	if timing.DwellTimeoutTicks == 0 {
		timing.DwellTimeoutTicks = DefaultTiming().DwellTimeoutTicks
	}
	s := &Scheduler{
		timing:   timing,
		settings: deps.Settings,
		light:    deps.Light,
		ambient:  deps.Ambient,
		climate:  deps.Climate,
		store:    deps.Store,
		out:      deps.Out,
		sleep:    deps.Sleep,
	}
	if s.sleep == nil {
		s.sleep = time.Sleep
	}
	if s.light != nil {
		s.light.clock = s.Ticks
	}
	s.SyncPush()
	return s
}

// Tick is the timer handler. It must stay minimal: no I/O, no logging.
func (s *Scheduler) Tick() {
	n := s.counter.Add(1)
	if n%uint64(s.timing.FadeStepTicks) == 0 {
		s.fadeDue.Store(true)
	}
	if s.pushEnabled.Load() {
		if iv := s.pushInterval.Load(); iv > 0 && n%uint64(iv) == 0 {
			s.pushDue.Store(true)
		}
	}
	if n%uint64(s.timing.DwellTimeoutTicks) == 0 {
		s.dwellBoundary.Store(n)
	}
}

// Ticks returns the number of ticks seen so far.
func (s *Scheduler) Ticks() uint64 {
	return s.counter.Load()
}

// RaiseProximityInterrupt records a proximity interrupt. Safe to call from
// any goroutine.
func (s *Scheduler) RaiseProximityInterrupt() {
	s.proxIRQ.Store(true)
}

// TakeFadeStep consumes the fade-step pulse.
func (s *Scheduler) TakeFadeStep() bool {
	return s.fadeDue.Swap(false)
}

// SyncPush publishes the current push settings to the tick context.
func (s *Scheduler) SyncPush() {
	s.pushInterval.Store(s.settings.PushIntervalTicks)
	s.pushEnabled.Store(s.settings.PushEnabled)
}

// SetPush updates the push settings. A zero interval is rejected and leaves
// the interval unchanged.
func (s *Scheduler) SetPush(enabled bool, interval uint32) {
	s.settings.PushEnabled = enabled
	if interval > 0 {
		s.settings.PushIntervalTicks = interval
	}
	s.SyncPush()
}

// Request asks for t to run. Requests are remembered until they execute; a
// request for a task that is already pending is a no-op.
func (s *Scheduler) Request(t Task) {
	if t == TaskDefault || t >= taskCount {
		return
	}
	s.requested[t] = true
}

// Task returns the task that will run on the next iteration.
func (s *Scheduler) Task() Task {
	if s.task != TaskDefault {
		return s.task
	}
	return s.next()
}

// Snapshot returns the latest readings.
func (s *Scheduler) Snapshot() Snapshot {
	return s.snap
}

// taskPriority lists request tasks from highest to lowest priority.
var taskPriority = [...]Task{TaskCalibrate, TaskSaveSettings, TaskNightlightEvaluate, TaskPushData}

func (s *Scheduler) next() Task {
	for _, t := range taskPriority {
		if s.requested[t] {
			return t
		}
	}
	return TaskDefault
}

// collect turns pulses raised since the last iteration into state changes
// and requests.
func (s *Scheduler) collect() {
	if b := s.dwellBoundary.Swap(0); b != 0 {
		s.light.DwellElapsed(b)
	}
	if s.pushDue.Swap(false) {
		s.snap.Pushed = false
		s.Request(TaskPushData)
	}
	if s.proxIRQ.Swap(false) {
		s.Request(TaskNightlightEvaluate)
	}
}

// RunPendingTask runs exactly one task. Only the default slot is ever
// replaced by a request; a chained task (calibrate -> save) occupies the
// slot until it has run.
func (s *Scheduler) RunPendingTask() {
	s.collect()
	if s.task == TaskDefault {
		s.task = s.next()
	}
	task := s.task
	s.requested[task] = false

	switch task {
	case TaskDefault:
		s.sample()
		s.light.Evaluate(s.snap)
	case TaskPushData:
		s.push()
		s.task = TaskDefault
	case TaskNightlightEvaluate:
		if err := s.ambient.ClearInterrupt(); err != nil {
			log.Warn().Err(err).Msg("proximity interrupt not acknowledged")
		}
		s.light.ProximityTriggered(s.snap)
		s.task = TaskDefault
	case TaskSaveSettings:
		s.save()
		s.task = TaskDefault
	case TaskCalibrate:
		s.task = s.calibrate()
	default:
		s.task = TaskDefault
	}
}

func (s *Scheduler) sample() {
	if s.light.PollALS() {
		v, err := s.ambient.Lux()
		s.snap.Lux = reading(s.snap.Lux, v, err, "lux")
	}
	if s.light.PollPS() {
		v, err := s.ambient.Proximity()
		s.snap.Proximity = reading(s.snap.Proximity, v, err, "proximity")
	}
	t, err := s.climate.Temperature()
	s.snap.Temperature = reading(s.snap.Temperature, t, err, "temperature")
	h, err := s.climate.Humidity()
	s.snap.Humidity = reading(s.snap.Humidity, h, err, "humidity")
	p, err := s.climate.Pressure()
	s.snap.Pressure = reading(s.snap.Pressure, p, err, "pressure")
	s.snap.Ready = true
}

// reading folds one read into prev. A failed read keeps the last good value
// as stale.
func reading[T any](prev Reading[T], v T, err error, name string) Reading[T] {
	if err != nil {
		log.Debug().Err(err).Str("reading", name).Msg("sensor unavailable this cycle")
		_, ok := prev.Last()
		return Reading[T]{Value: prev.Value, Stale: ok}
	}
	return Reading[T]{Value: v, Valid: true}
}

func (s *Scheduler) push() {
	if s.snap.Pushed || !s.snap.Ready {
		return
	}
	s.snap.Pushed = true
	for _, rec := range Telemetry(s.snap, s.settings.ProximityCalibrated) {
		s.emit(rec)
	}
}

// Telemetry renders the valid readings of snap as response records.
// Proximity is included only when calibrated.
func Telemetry(snap Snapshot, calibrated bool) []protocol.Record {
	var recs []protocol.Record
	if snap.Temperature.Valid {
		recs = append(recs, protocol.New(protocol.RTemperature, protocol.Float(snap.Temperature.Value)))
	}
	if snap.Humidity.Valid {
		recs = append(recs, protocol.New(protocol.RHumidity, protocol.Float(snap.Humidity.Value)))
	}
	if snap.Pressure.Valid {
		recs = append(recs, protocol.New(protocol.RPressure, protocol.Uint(snap.Pressure.Value)))
	}
	if snap.Lux.Valid {
		recs = append(recs, protocol.New(protocol.RLux, protocol.Uint(snap.Lux.Value)))
	}
	if calibrated && snap.Proximity.Valid {
		recs = append(recs, protocol.New(protocol.RProximity, protocol.Uint(snap.Proximity.Value)))
	}
	return recs
}

func (s *Scheduler) save() {
	if err := s.store.Save(*s.settings); err != nil {
		log.Error().Err(err).Msg("settings save failed")
		s.emit(protocol.New(protocol.RStatus, protocol.Uint(uint16(protocol.StatusSettingsSaveFail))))
		return
	}
	log.Info().Msg("settings saved")
	s.emit(protocol.New(protocol.RStatus, protocol.Uint(uint16(protocol.StatusSettingsSaved))))
}

func (s *Scheduler) calibrate() Task {
	s.settings.ProximityCalibrated = false
	offset, err := CalibrateProximity(s.ambient, s.timing.CalibrationSamples, s.timing.CalibrationSettle, s.sleep)
	if err != nil {
		log.Warn().Err(err).Msg("proximity calibration failed")
		s.emit(protocol.New(protocol.RCalibrate, protocol.Uint(uint16(protocol.StatusProxCalibrateFail))))
		return TaskDefault
	}
	s.settings.ProximityOffset = offset
	s.settings.ProximityCalibrated = true
	if err := s.ambient.ArmInterrupt(); err != nil {
		log.Warn().Err(err).Msg("proximity interrupt thresholds not rewritten")
	}
	log.Info().Uint16("offset", offset).Msg("proximity calibrated")
	s.emit(protocol.New(protocol.RCalibrate, protocol.Uint(uint16(protocol.StatusProxCalibrated))))
	return TaskSaveSettings
}

func (s *Scheduler) emit(rec protocol.Record) {
	if s.out == nil {
		return
	}
	if err := s.out.Send(rec); err != nil {
		log.Warn().Err(err).Stringer("record", rec).Msg("send failed")
	}
}
