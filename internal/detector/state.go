// Package detector classifies microphone loudness into claps and intrusions
// and drives the display toggle and alarm responses.
package detector

import "time"

// State is the externally visible detector state.
type State string

// Detector states.
const (
	StateIdle        State = "idle"
	StateListening   State = "listening"
	StateAlarmActive State = "alarm_active"
)

// DetectorState is the mutable state of one session. It is owned by the
// session goroutine.
type DetectorState struct {
	Listening   bool
	LastClap    time.Time // zero until the first unpaired clap
	DisplayOn   bool
	AlarmActive bool
	LastAlarm   time.Time // end of the last alarm sequence
}

// State derives the state machine position from the flags.
func (s DetectorState) State() State {
	switch {
	case s.AlarmActive:
		return StateAlarmActive
	case s.Listening:
		return StateListening
	default:
		return StateIdle
	}
}

func initialState() DetectorState {
	return DetectorState{Listening: true}
}
