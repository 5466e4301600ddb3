package audio

// Thresholds define the clap band and the intrusion level.
type Thresholds struct {
	ClapThreshold  float64
	ClapBandWidth  float64
	NoiseThreshold float64
}

// IsIntrusion reports whether l is above the noise threshold.
func (t Thresholds) IsIntrusion(l Loudness) bool {
	return float64(l) > t.NoiseThreshold
}

// IsClap reports whether l lies strictly inside the clap band.
func (t Thresholds) IsClap(l Loudness) bool {
	v := float64(l)
	return v > t.ClapThreshold && v < t.ClapThreshold+t.ClapBandWidth
}

// Classify maps a loudness reading to an event class. Intrusion wins over clap.
func (t Thresholds) Classify(l Loudness) EventClass {
	switch {
	case t.IsIntrusion(l):
		return Intrusion
	case t.IsClap(l):
		return Clap
	default:
		return Silence
	}
}
