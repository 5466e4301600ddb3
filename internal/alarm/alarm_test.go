package alarm

import (
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/oszuidwest/zwfm-soundguard/internal/peripheral/peripheraltest"
)

func newSequence(t *testing.T) (*Sequence, *peripheraltest.Recorder, *peripheraltest.Clock) {
	t.Helper()
	rec := &peripheraltest.Recorder{}
	clock := peripheraltest.NewClock(time.Unix(0, 0))
	seq := NewSequence(peripheraltest.NewPixels(25, rec), peripheraltest.NewTone(rec, clock), clock)
	return seq, rec, clock
}

func TestRun(t *testing.T) {
	seq, rec, clock := newSequence(t)

	seq.Run(Config{Cycles: 15, Hold: DefaultHold, ToneHz: DefaultToneHz, Color: DefaultColor})

	ops := rec.Ops()
	if got := rec.Count("fill:#190000"); got != 15 {
		t.Errorf("alert flashes = %d, want 15", got)
	}
	if got := rec.Count("fill:#000000"); got != 15 {
		t.Errorf("dark frames = %d, want 15", got)
	}
	if got := rec.Count("tone:477"); got != 15 {
		t.Errorf("tones = %d, want 15", got)
	}
	if got := ops[len(ops)-1]; got != "clear" {
		t.Errorf("last op = %q, want clear", got)
	}
	if got := clock.Slept(); got != 15*2*DefaultHold {
		t.Errorf("sequence took %v, want %v", got, 15*2*DefaultHold)
	}

	want := []string{"fill:#190000", "tone:477", "fill:#000000", "stop"}
	if !slices.Equal(ops[:4], want) {
		t.Errorf("first cycle = %v, want %v", ops[:4], want)
	}
}

func TestRunZeroCycles(t *testing.T) {
	seq, rec, _ := newSequence(t)

	seq.Run(Config{Cycles: 0, Hold: DefaultHold, ToneHz: DefaultToneHz, Color: DefaultColor})

	if got, want := rec.Ops(), []string{"stop", "clear"}; !slices.Equal(got, want) {
		t.Errorf("ops = %v, want %v", got, want)
	}
}

func TestRunSinkErrors(t *testing.T) {
	rec := &peripheraltest.Recorder{}
	clock := peripheraltest.NewClock(time.Unix(0, 0))
	pixels := peripheraltest.NewPixels(4, rec)
	pixels.Err = errors.New("write failed")
	seq := NewSequence(pixels, peripheraltest.NewTone(rec, clock), clock)

	seq.Run(Config{Cycles: 3, Hold: time.Millisecond, ToneHz: 1000, Color: DefaultColor})

	if got := rec.Count("tone:1000"); got != 3 {
		t.Errorf("tones = %d, want 3", got)
	}
}

func TestRunClearsOnPanic(t *testing.T) {
	rec := &peripheraltest.Recorder{}
	clock := peripheraltest.NewClock(time.Unix(0, 0))
	clock.OnSleep = func(time.Duration) { panic("boom") }
	seq := NewSequence(peripheraltest.NewPixels(4, rec), peripheraltest.NewTone(rec, nil), clock)

	func() {
		defer func() { _ = recover() }()
		seq.Run(Config{Cycles: 3, Hold: time.Millisecond, ToneHz: 1000, Color: DefaultColor})
	}()

	ops := rec.Ops()
	if got := ops[len(ops)-1]; got != "clear" {
		t.Errorf("last op = %q, want clear", got)
	}
}
