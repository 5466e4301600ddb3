package audio

import (
	"time"

	"github.com/oszuidwest/zwfm-soundguard/internal/peripheral"
)

// Estimator reads bursts of raw samples and reduces them to a loudness value.
// It is not safe for concurrent use.
type Estimator struct {
	src       peripheral.SampleSource
	clock     peripheral.Clock
	fullScale uint16
	interval  time.Duration
	data      LevelData
}

// NewEstimator creates an estimator reading from src. A non-zero interval is
// slept between consecutive samples of a window.
func NewEstimator(src peripheral.SampleSource, clock peripheral.Clock, fullScale uint16, interval time.Duration) *Estimator {
	return &Estimator{
		src:       src,
		clock:     clock,
		fullScale: fullScale,
		interval:  interval,
	}
}

// EstimateLoudness reads n samples and returns their mean squared ratio.
// A non-positive n returns 0 without touching the source.
func (e *Estimator) EstimateLoudness(n int) Loudness {
	e.data.Reset()
	for i := range n {
		if i > 0 && e.interval > 0 {
			e.clock.Sleep(e.interval)
		}
		e.data.Add(Normalize(e.src.ReadRawSample(), e.fullScale))
	}
	return e.data.Loudness()
}

// Peak returns the highest sample ratio seen in the last window.
func (e *Estimator) Peak() float64 {
	return e.data.Peak
}
