// Package alarm drives the flashing-light and buzzer alarm sequence.
package alarm

import (
	"log/slog"
	"time"

	"github.com/oszuidwest/zwfm-soundguard/internal/peripheral"
)

// Default alarm parameters.
const (
	DefaultCycles = 15
	DefaultHold   = 200 * time.Millisecond
	DefaultToneHz = 477
)

// DefaultColor is the dimmed red shown while the alarm flashes.
var DefaultColor = peripheral.RGB{R: 25}

// Config describes one alarm sequence.
type Config struct {
	Cycles int
	Hold   time.Duration
	ToneHz uint
	Color  peripheral.RGB
}

// Sequence plays alarm sequences on a pixel and tone sink.
type Sequence struct {
	pixels peripheral.PixelSink
	tone   peripheral.ToneSink
	clock  peripheral.Clock
}

// NewSequence creates a sequence bound to the given peripherals.
func NewSequence(pixels peripheral.PixelSink, tone peripheral.ToneSink, clock peripheral.Clock) *Sequence {
	return &Sequence{pixels: pixels, tone: tone, clock: clock}
}

// Run flashes and sounds cfg.Cycles times and blocks until done. The buzzer is
// always silenced and the matrix cleared on return, including on panic.
func (s *Sequence) Run(cfg Config) {
	defer s.finish()

	for i := range cfg.Cycles {
		s.warn("fill", peripheral.Fill(s.pixels, cfg.Color), "cycle", i)
		s.warn("play tone", s.tone.PlayTone(cfg.ToneHz, cfg.Hold), "cycle", i)
		s.warn("fill", peripheral.Fill(s.pixels, peripheral.Black), "cycle", i)
		s.warn("stop tone", s.tone.Stop(), "cycle", i)
		s.clock.Sleep(cfg.Hold)
	}
}

func (s *Sequence) finish() {
	s.warn("stop tone", s.tone.Stop())
	s.warn("clear pixels", s.pixels.ClearAll())
}

func (s *Sequence) warn(op string, err error, args ...any) {
	if err == nil {
		return
	}
	slog.Warn("alarm output failed", append([]any{"op", op, "error", err}, args...)...)
}
