// Package audio converts raw microphone samples into loudness levels and classifies them.
package audio

// LevelData holds raw sample accumulator data for a loudness window.
type LevelData struct {
	SumSquares  float64
	Peak        float64
	SampleCount int
}

// Add accumulates one normalized sample ratio in [0,1].
func (d *LevelData) Add(ratio float64) {
	d.SumSquares += ratio * ratio
	if ratio > d.Peak {
		d.Peak = ratio
	}
	d.SampleCount++
}

// Loudness returns the mean squared ratio of the accumulated samples.
func (d *LevelData) Loudness() Loudness {
	if d.SampleCount == 0 {
		return 0
	}
	return Loudness(min(d.SumSquares/float64(d.SampleCount), 1))
}

// Reset resets accumulators for the next measurement window.
func (d *LevelData) Reset() {
	d.SumSquares = 0
	d.Peak = 0
	d.SampleCount = 0
}

// Normalize converts a raw ADC reading to a ratio of full scale, clamped to [0,1].
func Normalize(raw, fullScale uint16) float64 {
	if fullScale == 0 {
		return 0
	}
	return min(float64(raw)/float64(fullScale), 1)
}
