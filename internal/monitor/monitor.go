// Package monitor runs detector sessions and publishes their status to the console.
package monitor

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/oszuidwest/zwfm-soundguard/internal/alarm"
	"github.com/oszuidwest/zwfm-soundguard/internal/audio"
	"github.com/oszuidwest/zwfm-soundguard/internal/config"
	"github.com/oszuidwest/zwfm-soundguard/internal/detector"
	"github.com/oszuidwest/zwfm-soundguard/internal/peripheral"
	"github.com/oszuidwest/zwfm-soundguard/internal/types"
	"github.com/oszuidwest/zwfm-soundguard/internal/util"
)

// ErrNotRunning is returned when a command is submitted while no session runs.
var ErrNotRunning = errors.New("monitor not running")

// Monitor owns the detector session and a thread-safe view of its progress.
type Monitor struct {
	config     *config.Config
	dev        peripheral.Set
	peakHolder *audio.PeakHolder

	mu        sync.RWMutex
	running   bool
	queue     *detector.Queue // Per session, nil while stopped
	cancel    context.CancelFunc
	done      chan struct{}
	startTime time.Time
	state     types.MonitorState
	displayOn bool
	claps     int
	toggles   int
	alarms    int
	lastClap  time.Time
	lastAlarm time.Time
	lastError string
	ended     bool
	levels    types.Levels
}

// New creates a monitor driving the given peripherals.
func New(cfg *config.Config, dev peripheral.Set) *Monitor {
	return &Monitor{
		config:     cfg,
		dev:        dev,
		peakHolder: audio.NewPeakHolder(),
		state:      types.MonitorStopped,
	}
}

// Start launches a detector session in the background.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return detector.ErrSessionRunning
	}

	cfg, err := SessionConfig(m.config.Snapshot())
	if err != nil {
		return err
	}
	queue := detector.NewQueue(detector.DefaultQueueCapacity)
	det, err := detector.New(cfg, m.dev, queue, m.handleEvent)
	if err != nil {
		return util.WrapError("create detector", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	m.running = true
	m.queue = queue
	m.cancel = cancel
	m.done = make(chan struct{})
	m.startTime = m.dev.Clock.Now()
	m.ended = false
	m.lastError = ""
	m.peakHolder.Reset()

	go m.run(ctx, det, m.done)
	return nil
}

func (m *Monitor) run(ctx context.Context, det *detector.Detector, done chan struct{}) {
	defer close(done)

	err := det.Run(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.running = false
	m.queue = nil
	m.state = types.MonitorStopped
	m.displayOn = false
	m.ended = true
	m.levels = types.Levels{}
	if err != nil && !errors.Is(err, context.Canceled) {
		m.lastError = err.Error()
		slog.Error("detector session failed", "error", err)
	}
}

// Stop ends the running session after its current cycle and waits for it.
func (m *Monitor) Stop() error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return nil
	}
	cancel, done := m.cancel, m.done
	m.mu.Unlock()

	cancel()
	<-done
	return nil
}

// Done is closed when the current session ends. It returns nil when no
// session was ever started.
func (m *Monitor) Done() <-chan struct{} {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.done
}

// Submit queues an operator command for the running session.
func (m *Monitor) Submit(cmd detector.Command) error {
	m.mu.RLock()
	queue := m.queue
	m.mu.RUnlock()
	if queue == nil {
		return ErrNotRunning
	}
	return queue.Submit(cmd)
}

// IsRunning reports whether a session is active.
func (m *Monitor) IsRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.running
}

// Status returns the current session status.
func (m *Monitor) Status() types.MonitorStatus {
	now := m.dev.Clock.Now()

	m.mu.RLock()
	defer m.mu.RUnlock()

	uptime := ""
	if m.running {
		uptime = util.FormatDuration(now.Sub(m.startTime))
	}

	return types.MonitorStatus{
		State:          m.state,
		DisplayOn:      m.displayOn,
		AlarmActive:    m.state == types.MonitorAlarmActive,
		Uptime:         uptime,
		Claps:          m.claps,
		Toggles:        m.toggles,
		Alarms:         m.alarms,
		LastClap:       util.Ago(m.lastClap, now),
		LastAlarm:      util.Ago(m.lastAlarm, now),
		QueuedCommands: m.queuedLocked(),
		LastError:      m.lastError,
		SessionEnded:   m.ended,
	}
}

func (m *Monitor) queuedLocked() int {
	if m.queue == nil {
		return 0
	}
	return m.queue.Len()
}

// Levels returns the most recent loudness readings.
func (m *Monitor) Levels() types.Levels {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.levels
}

// handleEvent runs on the session goroutine and must not block.
func (m *Monitor) handleEvent(e detector.Event) {
	if e.Type == detector.EventLevels {
		held := m.peakHolder.Update(e.Peak, e.Time)
		m.mu.Lock()
		m.levels = types.Levels{Noise: float64(e.Noise), Clap: float64(e.Clap), Peak: held}
		m.mu.Unlock()
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.state = monitorState(e.State)
	m.displayOn = e.DisplayOn
	switch e.Type {
	case detector.EventClap:
		m.claps++
		m.lastClap = e.Time
	case detector.EventDisplayToggled:
		m.toggles++
	case detector.EventAlarmStarted:
		m.alarms++
	case detector.EventAlarmFinished:
		m.lastAlarm = e.Time
	case detector.EventSessionEnded:
		m.state = types.MonitorStopped
		m.displayOn = false
	}
}

func monitorState(s detector.State) types.MonitorState {
	switch s {
	case detector.StateIdle:
		return types.MonitorIdle
	case detector.StateAlarmActive:
		return types.MonitorAlarmActive
	default:
		return types.MonitorListening
	}
}

// SessionConfig converts a configuration snapshot into detector parameters.
func SessionConfig(snap config.Snapshot) (detector.Config, error) {
	alertColor, err := util.ParseHexColor(snap.AlertColor)
	if err != nil {
		return detector.Config{}, util.WrapError("parse alert color", err)
	}
	displayColor, err := util.ParseHexColor(snap.DisplayColor)
	if err != nil {
		return detector.Config{}, util.WrapError("parse display color", err)
	}

	return detector.Config{
		Thresholds: audio.Thresholds{
			ClapThreshold:  snap.ClapThreshold,
			ClapBandWidth:  snap.ClapBandWidth,
			NoiseThreshold: snap.NoiseThreshold,
		},
		ClapWindow:     snap.ClapWindowSamples,
		NoiseWindow:    snap.NoiseWindowSamples,
		MinClapGap:     snap.MinClapGap,
		MaxClapGap:     snap.MaxClapGap,
		NoiseDebounce:  snap.NoiseDebounce,
		ToggleHold:     snap.ToggleHold,
		PollInterval:   snap.PollInterval,
		SampleInterval: snap.SampleInterval,
		ADCFullScale:   snap.ADCFullScale,
		DisplayColor:   displayColor,
		Alarm: alarm.Config{
			Cycles: snap.AlarmCycles,
			Hold:   snap.AlarmHold,
			ToneHz: snap.AlarmToneHz,
			Color:  alertColor,
		},
	}, nil
}
