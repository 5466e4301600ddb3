package config

import "time"

// Snapshot is a point-in-time copy of the configuration.
type Snapshot struct {
	// System
	WebPort  int
	LogLevel string

	// Hardware
	Driver        string
	SerialPort    string
	BaudRate      int
	CaptureDevice string
	PixelCount    int
	ADCFullScale  uint16

	// Detection
	ClapThreshold      float64
	ClapBandWidth      float64
	NoiseThreshold     float64
	ClapWindowSamples  int
	NoiseWindowSamples int
	MinClapGap         time.Duration
	MaxClapGap         time.Duration
	NoiseDebounce      time.Duration
	ToggleHold         time.Duration
	PollInterval       time.Duration
	SampleInterval     time.Duration

	// Alarm
	AlarmCycles int
	AlarmHold   time.Duration
	AlarmToneHz uint
	AlertColor  string

	// Display
	DisplayColor string
}

// Snapshot returns a point-in-time copy of the configuration.
func (c *Config) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return Snapshot{
		// System
		WebPort:  c.System.Port,
		LogLevel: c.System.LogLevel,

		// Hardware
		Driver:        c.Hardware.Driver,
		SerialPort:    c.Hardware.SerialPort,
		BaudRate:      c.Hardware.BaudRate,
		CaptureDevice: c.Hardware.CaptureDevice,
		PixelCount:    c.Hardware.PixelCount,
		ADCFullScale:  uint16(c.Hardware.ADCFullScale), //nolint:gosec // Validated to 1-65535

		// Detection
		ClapThreshold:      c.Detection.ClapThreshold,
		ClapBandWidth:      c.Detection.ClapBandWidth,
		NoiseThreshold:     c.Detection.NoiseThreshold,
		ClapWindowSamples:  c.Detection.ClapWindowSamples,
		NoiseWindowSamples: c.Detection.NoiseWindowSamples,
		MinClapGap:         ms(c.Detection.MinClapGapMs),
		MaxClapGap:         ms(c.Detection.MaxClapGapMs),
		NoiseDebounce:      ms(c.Detection.NoiseDebounceMs),
		ToggleHold:         ms(c.Detection.ToggleHoldMs),
		PollInterval:       ms(c.Detection.PollIntervalMs),
		SampleInterval:     ms(c.Detection.SampleIntervalMs),

		// Alarm
		AlarmCycles: c.Alarm.Cycles,
		AlarmHold:   ms(c.Alarm.HoldMs),
		AlarmToneHz: uint(c.Alarm.ToneHz), //nolint:gosec // Validated to 1-20000
		AlertColor:  c.Alarm.Color,

		// Display
		DisplayColor: c.Display.Color,
	}
}

// Public returns the configuration as served to the operator console, with
// the API key removed.
func (c *Config) Public() *Config {
	c.mu.RLock()
	defer c.mu.RUnlock()

	pub := &Config{
		System:    c.System,
		Hardware:  c.Hardware,
		Detection: c.Detection,
		Alarm:     c.Alarm,
		Display:   c.Display,
		filePath:  c.filePath,
	}
	pub.System.APIKey = ""
	return pub
}

func ms(v int) time.Duration {
	return time.Duration(v) * time.Millisecond
}
