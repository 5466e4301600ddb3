package serial

import (
	"bytes"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/oszuidwest/zwfm-soundguard/internal/audio"
	"github.com/oszuidwest/zwfm-soundguard/internal/peripheral"
	"github.com/oszuidwest/zwfm-soundguard/internal/peripheral/peripheraltest"
)

// mockPort is an in-memory serial port. Reads return io.EOF when no data is buffered.
type mockPort struct {
	mu     sync.Mutex
	rx     bytes.Buffer
	tx     bytes.Buffer
	closed bool
}

func (m *mockPort) Read(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rx.Read(p)
}

func (m *mockPort) Write(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tx.Write(p)
}

func (m *mockPort) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *mockPort) feed(p []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rx.Write(p)
}

func (m *mockPort) written() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.tx.Bytes())
}

func newBridge(t *testing.T, pixels int) (*Bridge, *mockPort, *peripheraltest.Clock) {
	t.Helper()
	port := &mockPort{}
	clock := peripheraltest.NewClock(time.Unix(0, 0))
	b := NewBridge(port, pixels, clock)
	t.Cleanup(func() { _ = b.Close() })
	return b, port, clock
}

func sampleFrame(v uint16) []byte {
	return []byte{FramePreamble, FramePreamble, CmdSample, byte(v >> 8), byte(v), FrameEnd}
}

func TestFlush(t *testing.T) {
	b, port, clock := newBridge(t, 2)

	b.SetPixel(0, peripheral.RGB{R: 1, G: 2, B: 3})
	b.SetPixel(1, peripheral.RGB{R: 4, G: 5, B: 6})
	b.SetPixel(2, peripheral.RGB{R: 9, G: 9, B: 9})
	if err := b.Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}

	want := []byte{0xFE, 0xFE, 0x01, 0x02, 1, 2, 3, 4, 5, 6, 0xFD}
	if got := port.written(); !bytes.Equal(got, want) {
		t.Errorf("frame = % X, want % X", got, want)
	}
	if clock.Slept() != peripheral.ResetGap {
		t.Errorf("slept %v, want reset gap %v", clock.Slept(), peripheral.ResetGap)
	}
}

func TestClearAll(t *testing.T) {
	b, port, _ := newBridge(t, 3)
	b.SetPixel(1, peripheral.RGB{R: 7})

	if err := b.ClearAll(); err != nil {
		t.Fatalf("ClearAll() error = %v", err)
	}
	if err := b.Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}

	want := []byte{0xFE, 0xFE, 0x02, 0xFD, 0xFE, 0xFE, 0x01, 0x03, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0xFD}
	if got := port.written(); !bytes.Equal(got, want) {
		t.Errorf("frames = % X, want % X", got, want)
	}
}

func TestPlayTone(t *testing.T) {
	b, port, clock := newBridge(t, 1)

	if err := b.PlayTone(477, 200*time.Millisecond); err != nil {
		t.Fatalf("PlayTone() error = %v", err)
	}

	want := []byte{0xFE, 0xFE, 0x03, 0x01, 0xDD, 0x00, 0xC8, 0xFD, 0xFE, 0xFE, 0x04, 0xFD}
	if got := port.written(); !bytes.Equal(got, want) {
		t.Errorf("frames = % X, want % X", got, want)
	}
	if clock.Slept() != 200*time.Millisecond {
		t.Errorf("slept %v, want 200ms", clock.Slept())
	}
}

func TestReadRawSample(t *testing.T) {
	b, port, _ := newBridge(t, 1)

	if got := b.ReadRawSample(); got != 0 {
		t.Errorf("initial sample = %d, want 0", got)
	}

	frames := append(sampleFrame(100), sampleFrame(0x0FFD)...)
	port.feed(frames[:4])
	port.feed(frames[4:])

	deadline := time.Now().Add(2 * time.Second)
	for b.Received() < 2 {
		if time.Now().After(deadline) {
			t.Fatalf("received %d frames, want 2", b.Received())
		}
		time.Sleep(time.Millisecond)
	}
	if got := b.ReadRawSample(); got != 0x0FFD {
		t.Errorf("ReadRawSample() = %#x, want 0xffd", got)
	}
}

func TestClose(t *testing.T) {
	b, port, _ := newBridge(t, 1)

	if err := b.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := b.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	port.mu.Lock()
	closed := port.closed
	port.mu.Unlock()
	if !closed {
		t.Error("port not closed")
	}
	if err := b.Flush(); !errors.Is(err, peripheral.ErrPortClosed) {
		t.Errorf("Flush() after close error = %v, want %v", err, peripheral.ErrPortClosed)
	}
}

func TestDecodeFrames(t *testing.T) {
	tests := []struct {
		name        string
		in          []byte
		wantSamples []uint16
		wantRest    []byte
	}{
		{
			name:        "single frame",
			in:          sampleFrame(4095),
			wantSamples: []uint16{4095},
		},
		{
			name:        "leading garbage",
			in:          append([]byte{0x00, 0xFD, 0x42}, sampleFrame(7)...),
			wantSamples: []uint16{7},
		},
		{
			name:        "partial frame",
			in:          append(sampleFrame(1), 0xFE, 0xFE, 0x10, 0x00),
			wantSamples: []uint16{1},
			wantRest:    []byte{0xFE, 0xFE, 0x10, 0x00},
		},
		{
			name:     "trailing preamble",
			in:       []byte{0x01, 0xFE, 0xFE},
			wantRest: []byte{0xFE, 0xFE},
		},
		{
			name:        "bad terminator resyncs",
			in:          append([]byte{0xFE, 0xFE, 0x10, 0x00, 0x01, 0x00}, sampleFrame(9)...),
			wantSamples: []uint16{9},
		},
		{
			name:        "payload contains end byte",
			in:          sampleFrame(0xFDFD),
			wantSamples: []uint16{0xFDFD},
		},
		{
			name: "other command ignored",
			in:   []byte{0xFE, 0xFE, 0x20, 0x01, 0xFD},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			samples, rest := decodeFrames(tt.in)
			if !slices.Equal(samples, tt.wantSamples) {
				t.Errorf("samples = %v, want %v", samples, tt.wantSamples)
			}
			if !bytes.Equal(rest, tt.wantRest) {
				t.Errorf("rest = % X, want % X", rest, tt.wantRest)
			}
		})
	}
}

func TestEstimatorWindowSeesDistinctSamples(t *testing.T) {
	b, port, clock := newBridge(t, 1)

	stream := []uint16{0, 4095, 0, 4095}
	next := 0
	deliver := func() {
		port.feed(sampleFrame(stream[next]))
		next++
		deadline := time.Now().Add(2 * time.Second)
		for b.Received() < uint64(next) {
			if time.Now().After(deadline) {
				t.Fatalf("received %d frames, want %d", b.Received(), next)
			}
			time.Sleep(time.Millisecond)
		}
	}

	// Each inter-sample sleep stands in for one device frame period.
	deliver()
	clock.OnSleep = func(time.Duration) { deliver() }

	est := audio.NewEstimator(b, clock, 4095, time.Millisecond)
	if got := est.EstimateLoudness(len(stream)); got != 0.5 {
		t.Errorf("EstimateLoudness() = %v, want 0.5 from alternating samples", got)
	}
	if got := clock.Slept(); got != 3*time.Millisecond {
		t.Errorf("slept %v, want 3ms", got)
	}
}
