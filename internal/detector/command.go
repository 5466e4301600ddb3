package detector

import (
	"errors"
	"fmt"
)

// DefaultQueueCapacity is the number of commands that may wait for the detector.
const DefaultQueueCapacity = 8

// ErrQueueFull is returned when the command queue has no free slot.
var ErrQueueFull = errors.New("command queue full")

// CommandType identifies an operator command.
type CommandType string

// Operator commands.
const (
	CommandPause     CommandType = "pause"
	CommandResume    CommandType = "resume"
	CommandToggle    CommandType = "toggle"
	CommandExit      CommandType = "exit"
	CommandTestAlarm CommandType = "test_alarm"
)

// Command is a request for the detector, applied between poll cycles.
type Command struct {
	Type CommandType
	// Cycles overrides the configured alarm cycles for CommandTestAlarm.
	Cycles int
}

// Queue is a bounded, non-blocking command channel into a detector session.
type Queue struct {
	ch chan Command
}

// NewQueue creates a queue holding up to capacity commands.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	return &Queue{ch: make(chan Command, capacity)}
}

// Submit enqueues cmd without blocking.
func (q *Queue) Submit(cmd Command) error {
	switch cmd.Type {
	case CommandPause, CommandResume, CommandToggle, CommandExit, CommandTestAlarm:
	default:
		return fmt.Errorf("unknown command %q", cmd.Type)
	}
	select {
	case q.ch <- cmd:
		return nil
	default:
		return ErrQueueFull
	}
}

// Len returns the number of waiting commands.
func (q *Queue) Len() int {
	return len(q.ch)
}

func (q *Queue) next() (Command, bool) {
	select {
	case cmd := <-q.ch:
		return cmd, true
	default:
		return Command{}, false
	}
}
