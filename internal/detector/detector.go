package detector

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/oszuidwest/zwfm-soundguard/internal/alarm"
	"github.com/oszuidwest/zwfm-soundguard/internal/audio"
	"github.com/oszuidwest/zwfm-soundguard/internal/peripheral"
)

var (
	// ErrSessionRunning is returned when Run is called on a detector that is already running.
	ErrSessionRunning = errors.New("detector session already running")
	// ErrMissingPeripheral is returned when a peripheral of the set is nil.
	ErrMissingPeripheral = errors.New("missing peripheral")
)

// Config holds the detection parameters of a session.
type Config struct {
	Thresholds     audio.Thresholds
	ClapWindow     int
	NoiseWindow    int
	MinClapGap     time.Duration
	MaxClapGap     time.Duration
	NoiseDebounce  time.Duration
	ToggleHold     time.Duration
	PollInterval   time.Duration
	SampleInterval time.Duration
	ADCFullScale   uint16
	DisplayColor   peripheral.RGB
	Alarm          alarm.Config
}

// Detector runs the listen, classify and respond loop over a set of peripherals.
type Detector struct {
	cfg       Config
	dev       peripheral.Set
	queue     *Queue
	observe   Observer
	estimator *audio.Estimator
	alarm     *alarm.Sequence
	state     DetectorState
	running   atomic.Bool
}

// New creates a detector. A nil observer discards events.
func New(cfg Config, dev peripheral.Set, queue *Queue, observe Observer) (*Detector, error) {
	if dev.Pixels == nil || dev.Tone == nil || dev.Samples == nil || dev.Clock == nil {
		return nil, ErrMissingPeripheral
	}
	if queue == nil {
		queue = NewQueue(DefaultQueueCapacity)
	}
	if observe == nil {
		observe = func(Event) {}
	}
	return &Detector{
		cfg:       cfg,
		dev:       dev,
		queue:     queue,
		observe:   observe,
		estimator: audio.NewEstimator(dev.Samples, dev.Clock, cfg.ADCFullScale, cfg.SampleInterval),
		alarm:     alarm.NewSequence(dev.Pixels, dev.Tone, dev.Clock),
		state:     initialState(),
	}, nil
}

// Queue returns the command queue of the session.
func (d *Detector) Queue() *Queue {
	return d.queue
}

// Current returns a copy of the detector state. It must only be called from
// the session goroutine or when the session is not running.
func (d *Detector) Current() DetectorState {
	return d.state
}

// Run clears the matrix and polls until Exit is received or ctx is cancelled.
// Cancellation is observed between cycles only. On return the buzzer is
// silenced and the matrix cleared.
func (d *Detector) Run(ctx context.Context) error {
	if !d.running.CompareAndSwap(false, true) {
		return ErrSessionRunning
	}
	defer d.running.Store(false)

	d.state = initialState()
	d.warn("clear pixels", d.dev.Pixels.ClearAll())
	slog.Info("detector session started", "state", d.state.State())
	d.emit(Event{Type: EventStateChanged})

	err := d.loop(ctx)
	d.shutdown(err)
	return err
}

func (d *Detector) loop(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !d.Poll() {
			return nil
		}
		d.dev.Clock.Sleep(d.cfg.PollInterval)
	}
}

func (d *Detector) shutdown(err error) {
	d.warn("stop tone", d.dev.Tone.Stop())
	d.warn("clear pixels", d.dev.Pixels.ClearAll())
	d.state.DisplayOn = false
	d.state.AlarmActive = false
	slog.Info("detector session ended", "reason", sessionEndReason(err))
	d.emit(Event{Type: EventSessionEnded, Err: err})
}

func sessionEndReason(err error) string {
	if err != nil {
		return err.Error()
	}
	return "exit"
}

// Poll runs one cycle: it applies at most one queued command and, while
// listening, classifies one noise window and possibly one clap window.
// It returns false when the session should end.
func (d *Detector) Poll() bool {
	if cmd, ok := d.queue.next(); ok {
		if !d.apply(cmd) {
			return false
		}
	}
	if !d.state.Listening {
		return true
	}

	noise := d.estimator.EstimateLoudness(d.cfg.NoiseWindow)
	peak := d.estimator.Peak()
	if d.cfg.Thresholds.IsIntrusion(noise) {
		d.levels(noise, 0, peak)
		d.intrusion(noise)
		return true
	}

	clap := d.estimator.EstimateLoudness(d.cfg.ClapWindow)
	peak = max(peak, d.estimator.Peak())
	d.levels(noise, clap, peak)
	if d.cfg.Thresholds.IsClap(clap) {
		d.clap(clap)
	}
	return true
}

func (d *Detector) apply(cmd Command) bool {
	slog.Debug("detector command", "type", cmd.Type)
	switch cmd.Type {
	case CommandPause:
		d.setListening(false)
	case CommandResume:
		d.setListening(true)
	case CommandToggle:
		d.setListening(!d.state.Listening)
	case CommandTestAlarm:
		cfg := d.cfg.Alarm
		if cmd.Cycles > 0 {
			cfg.Cycles = cmd.Cycles
		}
		d.runAlarm(cfg)
	case CommandExit:
		return false
	}
	return true
}

func (d *Detector) setListening(on bool) {
	if d.state.Listening == on {
		return
	}
	d.state.Listening = on
	slog.Info("detector state changed", "state", d.state.State())
	d.emit(Event{Type: EventStateChanged})
}

func (d *Detector) intrusion(noise audio.Loudness) {
	now := d.dev.Clock.Now()
	if !d.state.LastAlarm.IsZero() && now.Sub(d.state.LastAlarm) < d.cfg.NoiseDebounce {
		slog.Debug("intrusion within debounce window", "loudness", float64(noise))
		return
	}
	slog.Info("intrusion detected", "loudness", float64(noise), "threshold", d.cfg.Thresholds.NoiseThreshold)
	d.runAlarm(d.cfg.Alarm)
}

func (d *Detector) runAlarm(cfg alarm.Config) {
	d.state.AlarmActive = true
	slog.Info("alarm started", "cycles", cfg.Cycles)
	d.emit(Event{Type: EventAlarmStarted, Cycles: cfg.Cycles})
	d.emit(Event{Type: EventStateChanged})

	d.playAlarm(cfg)

	slog.Info("alarm finished", "state", d.state.State())
	d.emit(Event{Type: EventAlarmFinished, Cycles: cfg.Cycles})
	d.emit(Event{Type: EventStateChanged})
}

// playAlarm runs the sequence and leaves AlarmActive cleared even if it panics.
func (d *Detector) playAlarm(cfg alarm.Config) {
	defer func() {
		d.state.AlarmActive = false
		d.state.LastAlarm = d.dev.Clock.Now()
	}()
	d.alarm.Run(cfg)
}

func (d *Detector) clap(clap audio.Loudness) {
	now := d.dev.Clock.Now()
	elapsed := now.Sub(d.state.LastClap)
	d.emit(Event{Type: EventClap, Clap: clap})

	if elapsed > d.cfg.MinClapGap && elapsed < d.cfg.MaxClapGap {
		slog.Info("double clap", "gap", elapsed)
		d.toggleDisplay()
		if d.cfg.ToggleHold > 0 {
			d.dev.Clock.Sleep(d.cfg.ToggleHold)
		}
		return
	}
	slog.Debug("clap", "loudness", float64(clap))
	d.state.LastClap = now
}

func (d *Detector) toggleDisplay() {
	d.state.DisplayOn = !d.state.DisplayOn
	color := peripheral.Black
	if d.state.DisplayOn {
		color = d.cfg.DisplayColor
	}
	d.warn("fill", peripheral.Fill(d.dev.Pixels, color))
	slog.Info("display toggled", "on", d.state.DisplayOn)
	d.emit(Event{Type: EventDisplayToggled})
}

func (d *Detector) levels(noise, clap audio.Loudness, peak float64) {
	slog.Debug("loudness", "noise", float64(noise), "clap", float64(clap), "peak", peak)
	d.emit(Event{Type: EventLevels, Noise: noise, Clap: clap, Peak: peak})
}

func (d *Detector) emit(e Event) {
	e.Time = d.dev.Clock.Now()
	e.State = d.state.State()
	e.DisplayOn = d.state.DisplayOn
	d.observe(e)
}

func (d *Detector) warn(op string, err error) {
	if err != nil {
		slog.Warn("detector output failed", "op", op, "error", err)
	}
}
