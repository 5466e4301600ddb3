package audio

// Loudness is the mean squared normalized amplitude of a sample window, in [0,1].
type Loudness float64

// EventClass is the classification of a single loudness reading.
type EventClass string

// Event classes.
const (
	Silence   EventClass = "silence"
	Clap      EventClass = "clap"
	Intrusion EventClass = "intrusion"
)
