// Package peripheral defines the hardware collaborators driven by the monitor:
// the LED matrix, the buzzer, the microphone ADC and the clock.
package peripheral

import (
	"errors"
	"time"
)

// DefaultPixelCount is the size of the 5x5 LED matrix.
const DefaultPixelCount = 25

// ResetGap is the minimum low time after a pixel frame before the next one
// is accepted by WS2812-style LEDs.
const ResetGap = 100 * time.Microsecond

// ErrPortClosed is returned when writing to a peripheral link that has been closed.
var ErrPortClosed = errors.New("peripheral link closed")

// RGB is a pixel color with 8 bits per channel.
type RGB struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
}

// Black switches a pixel off.
var Black = RGB{}

// PixelSink buffers pixel colors and pushes them to the LED matrix.
type PixelSink interface {
	// SetPixel buffers a color. Out-of-range indices are ignored.
	SetPixel(index int, c RGB)
	// Flush pushes the buffer to the hardware and blocks for the reset gap.
	Flush() error
	// ClearAll switches every pixel off and pushes the result.
	ClearAll() error
	// Len returns the number of addressable pixels.
	Len() int
}

// ToneSink drives the buzzer.
type ToneSink interface {
	// PlayTone sounds freqHz for d, blocking until the tone is silenced.
	PlayTone(freqHz uint, d time.Duration) error
	// Stop silences the buzzer immediately.
	Stop() error
}

// SampleSource returns the latest converted microphone sample.
// ReadRawSample must not block.
type SampleSource interface {
	ReadRawSample() uint16
}

// Clock is a monotonic time source with a blocking sleep.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

// SystemClock is the wall clock of the host.
type SystemClock struct{}

// Now returns time.Now, which carries a monotonic reading.
func (SystemClock) Now() time.Time { return time.Now() }

// Sleep blocks for d.
func (SystemClock) Sleep(d time.Duration) { time.Sleep(d) }

// Set groups the collaborators a detector session needs.
type Set struct {
	Pixels  PixelSink
	Tone    ToneSink
	Samples SampleSource
	Clock   Clock
}

// Fill sets every pixel to c and flushes the matrix.
func Fill(p PixelSink, c RGB) error {
	for i := range p.Len() {
		p.SetPixel(i, c)
	}
	return p.Flush()
}
