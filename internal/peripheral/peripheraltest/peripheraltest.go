// Package peripheraltest provides in-memory peripherals for tests.
package peripheraltest

import (
	"fmt"
	"sync"
	"time"

	"github.com/oszuidwest/zwfm-soundguard/internal/peripheral"
)

// Clock is a manual clock. Sleep advances Now instantly.
type Clock struct {
	mu      sync.Mutex
	now     time.Time
	slept   time.Duration
	OnSleep func(d time.Duration)
}

// NewClock returns a clock starting at start.
func NewClock(start time.Time) *Clock {
	return &Clock{now: start}
}

// Now returns the current fake time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Sleep advances the clock by d.
func (c *Clock) Sleep(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.slept += d
	hook := c.OnSleep
	c.mu.Unlock()
	if hook != nil {
		hook(d)
	}
}

// Advance moves the clock forward without counting as a sleep.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Slept returns the total duration passed to Sleep.
func (c *Clock) Slept() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.slept
}

// Source replays queued raw samples and then returns Default.
type Source struct {
	mu      sync.Mutex
	queue   []uint16
	reads   int
	Default uint16
}

// Push queues n copies of v.
func (s *Source) Push(v uint16, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for range n {
		s.queue = append(s.queue, v)
	}
}

// ReadRawSample pops the next queued sample.
func (s *Source) ReadRawSample() uint16 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	if len(s.queue) == 0 {
		return s.Default
	}
	v := s.queue[0]
	s.queue = s.queue[1:]
	return v
}

// Reads returns how many samples were read.
func (s *Source) Reads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads
}

// Pending returns how many queued samples have not been read.
func (s *Source) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Recorder is a shared operation log for pixel and tone sinks, so tests can
// assert the interleaving between them.
type Recorder struct {
	mu  sync.Mutex
	ops []string
}

func (r *Recorder) add(op string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = append(r.ops, op)
}

// Ops returns a copy of the operation log.
func (r *Recorder) Ops() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.ops...)
}

// Count returns how many times op was recorded.
func (r *Recorder) Count(op string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, o := range r.ops {
		if o == op {
			n++
		}
	}
	return n
}

// Reset clears the log.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = nil
}

// Pixels is an in-memory pixel sink. Flush records "fill:#rrggbb" when all
// pixels share one color and "flush" otherwise; ClearAll records "clear".
type Pixels struct {
	rec     *Recorder
	mu      sync.Mutex
	pending []peripheral.RGB
	shown   []peripheral.RGB
	Err     error
}

// NewPixels returns a sink with n pixels logging to rec.
func NewPixels(n int, rec *Recorder) *Pixels {
	return &Pixels{
		rec:     rec,
		pending: make([]peripheral.RGB, n),
		shown:   make([]peripheral.RGB, n),
	}
}

// SetPixel buffers c at index.
func (p *Pixels) SetPixel(index int, c peripheral.RGB) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if index < 0 || index >= len(p.pending) {
		return
	}
	p.pending[index] = c
}

// Flush copies the buffer to the shown frame.
func (p *Pixels) Flush() error {
	p.mu.Lock()
	copy(p.shown, p.pending)
	op := "flush"
	if c, ok := uniform(p.shown); ok {
		op = fmt.Sprintf("fill:#%02x%02x%02x", c.R, c.G, c.B)
	}
	p.mu.Unlock()
	p.rec.add(op)
	return p.Err
}

// ClearAll switches every pixel off.
func (p *Pixels) ClearAll() error {
	p.mu.Lock()
	clear(p.pending)
	clear(p.shown)
	p.mu.Unlock()
	p.rec.add("clear")
	return p.Err
}

// Len returns the pixel count.
func (p *Pixels) Len() int {
	return len(p.pending)
}

// Shown returns the last flushed frame.
func (p *Pixels) Shown() []peripheral.RGB {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]peripheral.RGB(nil), p.shown...)
}

// Lit reports whether any pixel of the shown frame is on.
func (p *Pixels) Lit() bool {
	for _, c := range p.Shown() {
		if c != peripheral.Black {
			return true
		}
	}
	return false
}

func uniform(px []peripheral.RGB) (peripheral.RGB, bool) {
	if len(px) == 0 {
		return peripheral.Black, false
	}
	for _, c := range px[1:] {
		if c != px[0] {
			return peripheral.Black, false
		}
	}
	return px[0], true
}

// Tone is an in-memory tone sink. PlayTone sleeps on the clock when one is set.
type Tone struct {
	rec   *Recorder
	clock peripheral.Clock
	Err   error
}

// NewTone returns a tone sink logging to rec.
func NewTone(rec *Recorder, clock peripheral.Clock) *Tone {
	return &Tone{rec: rec, clock: clock}
}

// PlayTone records "tone:<hz>" and blocks for d on the clock.
func (t *Tone) PlayTone(freqHz uint, d time.Duration) error {
	t.rec.add(fmt.Sprintf("tone:%d", freqHz))
	if t.clock != nil {
		t.clock.Sleep(d)
	}
	return t.Err
}

// Stop records "stop".
func (t *Tone) Stop() error {
	t.rec.add("stop")
	return t.Err
}
