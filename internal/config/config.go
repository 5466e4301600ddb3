// Package config provides application configuration management.
package config

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/oszuidwest/zwfm-soundguard/internal/types"
	"github.com/oszuidwest/zwfm-soundguard/internal/util"
	"gopkg.in/yaml.v3"
)

// Configuration defaults are used when values are not specified.
const (
	DefaultWebPort            = 8080
	DefaultLogLevel           = "info"
	DefaultDriver             = DriverSerial
	DefaultSerialPort         = "/dev/ttyACM0"
	DefaultBaudRate           = 115200
	DefaultPixelCount         = 25
	DefaultADCFullScale       = 4095 // 12-bit ADC
	DefaultClapThreshold      = 0.30
	DefaultClapBandWidth      = 0.20
	DefaultNoiseThreshold     = 0.70
	DefaultClapWindowSamples  = 10
	DefaultNoiseWindowSamples = 25
	DefaultMinClapGapMs       = 200
	DefaultMaxClapGapMs       = 1000
	DefaultNoiseDebounceMs    = 300
	DefaultToggleHoldMs       = 1000
	DefaultPollIntervalMs     = 10
	DefaultSampleIntervalMs   = 1 // Sources must stream at 1 kHz or faster
	DefaultAlarmCycles        = 15
	DefaultAlarmHoldMs        = 200
	DefaultAlarmToneHz        = 477
	DefaultAlertColor         = "#190000"
	DefaultDisplayColor       = "#191919"
)

// Hardware drivers.
const (
	DriverSerial = "serial"
	DriverHost   = "host"
)

// ErrInvalidConfig is returned when a loaded configuration fails validation.
var ErrInvalidConfig = errors.New("invalid configuration")

var validate = util.NewValidator()

// SystemConfig holds process-level settings that require restart.
type SystemConfig struct {
	Port     int    `json:"port" yaml:"port" validate:"gte=1,lte=65535"`                       // HTTP server port
	LogLevel string `json:"log_level" yaml:"log_level" validate:"oneof=debug info warn error"` // Minimum log level
	APIKey   string `json:"api_key" yaml:"api_key"`                                            // Console API key, generated when empty
}

// HardwareConfig selects and configures the peripheral driver.
type HardwareConfig struct {
	Driver        string `json:"driver" yaml:"driver" validate:"oneof=serial host"`                   // serial or host
	SerialPort    string `json:"serial_port" yaml:"serial_port" validate:"required_if=Driver serial"` // Serial device of the microcontroller bridge
	BaudRate      int    `json:"baud_rate" yaml:"baud_rate" validate:"gte=1200,lte=4000000"`          // Serial link speed
	CaptureDevice string `json:"capture_device" yaml:"capture_device"`                                // Host microphone name (empty = default)
	PixelCount    int    `json:"pixel_count" yaml:"pixel_count" validate:"gte=1,lte=255"`             // Number of addressable LEDs
	ADCFullScale  int    `json:"adc_full_scale" yaml:"adc_full_scale" validate:"gte=1,lte=65535"`     // Largest raw sample value
}

// DetectionConfig holds the loudness thresholds and timing of the classifier.
type DetectionConfig struct {
	ClapThreshold      float64 `json:"clap_threshold" yaml:"clap_threshold" validate:"gte=0,lt=1"`                   // Lower edge of the clap band
	ClapBandWidth      float64 `json:"clap_band_width" yaml:"clap_band_width" validate:"gt=0,lte=1"`                 // Width of the clap band
	NoiseThreshold     float64 `json:"noise_threshold" yaml:"noise_threshold" validate:"gt=0,lte=1"`                 // Intrusion level
	ClapWindowSamples  int     `json:"clap_window_samples" yaml:"clap_window_samples" validate:"gte=1,lte=100000"`   // Samples per clap window
	NoiseWindowSamples int     `json:"noise_window_samples" yaml:"noise_window_samples" validate:"gte=1,lte=100000"` // Samples per noise window
	MinClapGapMs       int     `json:"min_clap_gap_ms" yaml:"min_clap_gap_ms" validate:"gte=0"`                      // Shortest double-clap gap (exclusive)
	MaxClapGapMs       int     `json:"max_clap_gap_ms" yaml:"max_clap_gap_ms" validate:"gt=0"`                       // Longest double-clap gap (exclusive)
	NoiseDebounceMs    int     `json:"noise_debounce_ms" yaml:"noise_debounce_ms" validate:"gte=0"`                  // Quiet time after an alarm
	ToggleHoldMs       int     `json:"toggle_hold_ms" yaml:"toggle_hold_ms" validate:"gte=0"`                        // Pause after a display toggle
	PollIntervalMs     int     `json:"poll_interval_ms" yaml:"poll_interval_ms" validate:"gte=0"`                    // Sleep between poll cycles
	SampleIntervalMs   int     `json:"sample_interval_ms" yaml:"sample_interval_ms" validate:"gte=0,lte=100"`        // Sleep between samples of a window
}

// AlarmConfig holds the alarm sequence settings.
type AlarmConfig struct {
	Cycles int    `json:"cycles" yaml:"cycles" validate:"gte=1,lte=100"`     // Flash/silence pairs per alarm
	HoldMs int    `json:"hold_ms" yaml:"hold_ms" validate:"gte=1"`           // Duration of each flash and each pause
	ToneHz int    `json:"tone_hz" yaml:"tone_hz" validate:"gte=1,lte=20000"` // Buzzer frequency
	Color  string `json:"color" yaml:"color"`                                // Flash color (#RRGGBB)
}

// DisplayConfig holds the LED matrix settings.
type DisplayConfig struct {
	Color string `json:"color" yaml:"color"` // Color shown when the display is toggled on (#RRGGBB)
}

// Config holds all application configuration. It is safe for concurrent use.
type Config struct {
	System    SystemConfig    `json:"system" yaml:"system"`
	Hardware  HardwareConfig  `json:"hardware" yaml:"hardware"`
	Detection DetectionConfig `json:"detection" yaml:"detection"`
	Alarm     AlarmConfig     `json:"alarm" yaml:"alarm"`
	Display   DisplayConfig   `json:"display" yaml:"display"`

	mu       sync.RWMutex
	filePath string
}

// New creates a new Config with default values.
func New(filePath string) *Config {
	return &Config{
		System: SystemConfig{
			Port:     DefaultWebPort,
			LogLevel: DefaultLogLevel,
		},
		Hardware: HardwareConfig{
			Driver:       DefaultDriver,
			SerialPort:   DefaultSerialPort,
			BaudRate:     DefaultBaudRate,
			PixelCount:   DefaultPixelCount,
			ADCFullScale: DefaultADCFullScale,
		},
		Detection: DetectionConfig{
			ClapThreshold:      DefaultClapThreshold,
			ClapBandWidth:      DefaultClapBandWidth,
			NoiseThreshold:     DefaultNoiseThreshold,
			ClapWindowSamples:  DefaultClapWindowSamples,
			NoiseWindowSamples: DefaultNoiseWindowSamples,
			MinClapGapMs:       DefaultMinClapGapMs,
			MaxClapGapMs:       DefaultMaxClapGapMs,
			NoiseDebounceMs:    DefaultNoiseDebounceMs,
			ToggleHoldMs:       DefaultToggleHoldMs,
			PollIntervalMs:     DefaultPollIntervalMs,
			SampleIntervalMs:   DefaultSampleIntervalMs,
		},
		Alarm: AlarmConfig{
			Cycles: DefaultAlarmCycles,
			HoldMs: DefaultAlarmHoldMs,
			ToneHz: DefaultAlarmToneHz,
			Color:  DefaultAlertColor,
		},
		Display: DisplayConfig{
			Color: DefaultDisplayColor,
		},
		filePath: filePath,
	}
}

// Load reads config from file, creating a default if none exists.
// Files ending in .yaml or .yml are parsed as YAML, everything else as JSON.
func (c *Config) Load() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := os.ReadFile(c.filePath)
	if os.IsNotExist(err) {
		if err := c.ensureAPIKey(); err != nil {
			return err
		}
		return c.saveLocked()
	}
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}

	if c.isYAML() {
		err = yaml.Unmarshal(data, c)
	} else {
		err = json.Unmarshal(data, c)
	}
	if err != nil {
		return util.WrapError("parse config", err)
	}

	c.applyDefaults()

	if err := c.validate(); err != nil {
		return err
	}

	if c.System.APIKey == "" {
		if err := c.ensureAPIKey(); err != nil {
			return err
		}
		return c.saveLocked()
	}
	return nil
}

// validate checks all configuration fields for correctness.
func (c *Config) validate() error {
	verr := types.NewValidationError()
	if err := validate.Struct(c); err != nil {
		verr = util.ToValidationError(err)
	}

	d := c.Detection
	if d.ClapThreshold+d.ClapBandWidth > d.NoiseThreshold {
		verr.Add("detection.clap_band_width",
			fmt.Sprintf("clap band ends at %.2f, above noise_threshold %.2f", d.ClapThreshold+d.ClapBandWidth, d.NoiseThreshold),
			d.ClapBandWidth)
	}
	if d.MinClapGapMs >= d.MaxClapGapMs {
		verr.Add("detection.min_clap_gap_ms", "must be less than max_clap_gap_ms", d.MinClapGapMs)
	}
	if !util.IsHexColor(c.Alarm.Color) {
		verr.Add("alarm.color", "must be hex format (#RRGGBB)", c.Alarm.Color)
	}
	if !util.IsHexColor(c.Display.Color) {
		verr.Add("display.color", "must be hex format (#RRGGBB)", c.Display.Color)
	}

	if verr.HasErrors() {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, verr)
	}
	return nil
}

// applyDefaults sets default values for empty string fields.
func (c *Config) applyDefaults() {
	if c.System.LogLevel == "" {
		c.System.LogLevel = DefaultLogLevel
	}
	if c.Hardware.Driver == "" {
		c.Hardware.Driver = DefaultDriver
	}
	if c.Alarm.Color == "" {
		c.Alarm.Color = DefaultAlertColor
	}
	if c.Display.Color == "" {
		c.Display.Color = DefaultDisplayColor
	}
}

func (c *Config) ensureAPIKey() error {
	if c.System.APIKey != "" {
		return nil
	}
	key, err := GenerateAPIKey()
	if err != nil {
		return util.WrapError("generate api key", err)
	}
	c.System.APIKey = key
	return nil
}

func (c *Config) isYAML() bool {
	switch strings.ToLower(filepath.Ext(c.filePath)) {
	case ".yaml", ".yml":
		return true
	default:
		return false
	}
}

// saveLocked persists configuration. Caller must hold c.mu.
func (c *Config) saveLocked() error {
	var data []byte
	var err error
	if c.isYAML() {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return util.WrapError("marshal config", err)
	}

	dir := filepath.Dir(c.filePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return util.WrapError("create config directory", err)
	}

	if err := os.WriteFile(c.filePath, data, 0o600); err != nil {
		return util.WrapError("write config", err)
	}

	return nil
}

// FilePath returns the path the configuration is loaded from.
func (c *Config) FilePath() string {
	return c.filePath
}

// APIKey returns the console API key.
func (c *Config) APIKey() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.System.APIKey
}

// --- Utility functions ---

// GenerateAPIKey generates a new random 32-character alphanumeric API key.
func GenerateAPIKey() (string, error) {
	const chars = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	const length = 32
	result := make([]byte, length)
	for i := range result {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(chars))))
		if err != nil {
			return "", err
		}
		result[i] = chars[n.Int64()]
	}
	return string(result), nil
}
