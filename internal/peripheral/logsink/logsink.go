// Package logsink provides pixel and tone sinks that log instead of driving
// hardware, for hosts without an LED matrix or buzzer.
package logsink

import (
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/oszuidwest/zwfm-soundguard/internal/peripheral"
	"github.com/oszuidwest/zwfm-soundguard/internal/util"
)

// Matrix is a pixel sink that logs each changed frame.
type Matrix struct {
	mu      sync.Mutex
	pending []peripheral.RGB
	shown   []peripheral.RGB
	logger  *slog.Logger
}

// NewMatrix creates a logging matrix with n pixels.
func NewMatrix(n int, logger *slog.Logger) *Matrix {
	if logger == nil {
		logger = slog.Default()
	}
	return &Matrix{
		pending: make([]peripheral.RGB, n),
		shown:   make([]peripheral.RGB, n),
		logger:  logger.With("sink", "matrix"),
	}
}

// SetPixel buffers a color. Out-of-range indices are ignored.
func (m *Matrix) SetPixel(index int, c peripheral.RGB) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if index < 0 || index >= len(m.pending) {
		return
	}
	m.pending[index] = c
}

// Flush logs the buffered frame when it differs from the shown one.
func (m *Matrix) Flush() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if slices.Equal(m.pending, m.shown) {
		return nil
	}
	copy(m.shown, m.pending)
	m.logger.Info("matrix frame", "pixels", summarize(m.shown))
	return nil
}

// ClearAll switches every pixel off.
func (m *Matrix) ClearAll() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clear(m.pending)
	if !slices.ContainsFunc(m.shown, func(c peripheral.RGB) bool { return c != peripheral.Black }) {
		return nil
	}
	clear(m.shown)
	m.logger.Info("matrix cleared")
	return nil
}

// Len returns the pixel count.
func (m *Matrix) Len() int {
	return len(m.pending)
}

// Frame returns a copy of the shown frame.
func (m *Matrix) Frame() []peripheral.RGB {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.shown)
}

// summarize renders a uniform frame as one color and mixed frames per pixel.
func summarize(px []peripheral.RGB) any {
	if len(px) > 0 && !slices.ContainsFunc(px, func(c peripheral.RGB) bool { return c != px[0] }) {
		return util.FormatHexColor(px[0])
	}
	out := make([]string, len(px))
	for i, c := range px {
		out[i] = util.FormatHexColor(c)
	}
	return out
}

// Buzzer is a tone sink that logs tones and blocks on the clock.
type Buzzer struct {
	clock  peripheral.Clock
	logger *slog.Logger
}

// NewBuzzer creates a logging buzzer.
func NewBuzzer(clock peripheral.Clock, logger *slog.Logger) *Buzzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Buzzer{clock: clock, logger: logger.With("sink", "buzzer")}
}

// PlayTone logs the tone and blocks for d.
func (b *Buzzer) PlayTone(freqHz uint, d time.Duration) error {
	b.logger.Debug("tone", "freq_hz", freqHz, "duration", d)
	b.clock.Sleep(d)
	return nil
}

// Stop is a no-op.
func (b *Buzzer) Stop() error {
	return nil
}
