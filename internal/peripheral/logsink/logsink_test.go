package logsink

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/oszuidwest/zwfm-soundguard/internal/peripheral"
	"github.com/oszuidwest/zwfm-soundguard/internal/peripheral/peripheraltest"
)

func TestMatrix(t *testing.T) {
	var buf bytes.Buffer
	m := NewMatrix(4, slog.New(slog.NewTextHandler(&buf, nil)))

	if err := peripheral.Fill(m, peripheral.RGB{R: 0x19}); err != nil {
		t.Fatalf("Fill() error = %v", err)
	}
	if !strings.Contains(buf.String(), "pixels=#190000") {
		t.Errorf("log = %q, want uniform frame color", buf.String())
	}

	buf.Reset()
	if err := peripheral.Fill(m, peripheral.RGB{R: 0x19}); err != nil {
		t.Fatalf("Fill() error = %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("unchanged frame logged: %q", buf.String())
	}

	if err := m.ClearAll(); err != nil {
		t.Fatalf("ClearAll() error = %v", err)
	}
	if !strings.Contains(buf.String(), "matrix cleared") {
		t.Errorf("log = %q, want clear message", buf.String())
	}
	for i, c := range m.Frame() {
		if c != peripheral.Black {
			t.Errorf("pixel %d = %+v after clear", i, c)
		}
	}

	m.SetPixel(-1, peripheral.RGB{G: 1})
	m.SetPixel(4, peripheral.RGB{G: 1})
	m.SetPixel(1, peripheral.RGB{G: 1})
	buf.Reset()
	if err := m.Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	if !strings.Contains(buf.String(), "#000100") {
		t.Errorf("log = %q, want per-pixel frame", buf.String())
	}
}

func TestBuzzer(t *testing.T) {
	clock := peripheraltest.NewClock(time.Unix(0, 0))
	b := NewBuzzer(clock, nil)

	if err := b.PlayTone(477, 200*time.Millisecond); err != nil {
		t.Fatalf("PlayTone() error = %v", err)
	}
	if clock.Slept() != 200*time.Millisecond {
		t.Errorf("slept %v, want 200ms", clock.Slept())
	}
	if err := b.Stop(); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
}
