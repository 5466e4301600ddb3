package detector

import (
	"time"

	"github.com/oszuidwest/zwfm-soundguard/internal/audio"
)

// EventType identifies a detector notification.
type EventType string

// Detector notifications.
const (
	EventStateChanged   EventType = "state_changed"
	EventClap           EventType = "clap"
	EventDisplayToggled EventType = "display_toggled"
	EventAlarmStarted   EventType = "alarm_started"
	EventAlarmFinished  EventType = "alarm_finished"
	EventLevels         EventType = "levels"
	EventSessionEnded   EventType = "session_ended"
)

// Event is emitted synchronously from the session goroutine.
type Event struct {
	Type      EventType
	Time      time.Time
	State     State
	DisplayOn bool
	Noise     audio.Loudness
	Clap      audio.Loudness
	Peak      float64
	Cycles    int
	Err       error
}

// Observer receives detector events. It must not block.
type Observer func(Event)
