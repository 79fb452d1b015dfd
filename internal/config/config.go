// Package config loads and saves the handchord configuration file.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ayusman/handchord/internal/engine"
	"github.com/ayusman/handchord/internal/slot"
)

// Duration is a time.Duration that reads and writes as a string like "2s".
type Duration time.Duration

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", b, err)
	}
	*d = Duration(v)
	return nil
}

// CameraConfig selects and orients the camera.
type CameraConfig struct {
	ID int `json:"id"`
	// Mirror flips frames horizontally before detection.
	Mirror          bool    `json:"mirror"`
	MotionThreshold float64 `json:"motionThreshold"`
}

// DetectorConfig locates the hand landmark service.
type DetectorConfig struct {
	// Script is the service script. Empty searches the install locations.
	Script string `json:"script,omitempty"`
	// Python is the interpreter. Empty prefers a venv under the data dir.
	Python        string  `json:"python,omitempty"`
	MinConfidence float64 `json:"minConfidence"`
}

// MIDIConfig selects the MIDI output.
type MIDIConfig struct {
	// Port is matched against output port names. Empty selects the first port.
	Port string `json:"port,omitempty"`
	// Channel is 1-based, as shown by synths.
	Channel int `json:"channel"`
}

// PlayConfig tunes the instrument. Its fields override the loaded preset:
// a zero Sustain keeps the preset's, and the flags can only switch features
// on.
type PlayConfig struct {
	// Preset is the name of the preset loaded at startup.
	Preset            string   `json:"preset"`
	Sustain           Duration `json:"sustain,omitempty"`
	VelocityShaping   bool     `json:"velocityShaping"`
	MinVelocityFactor float64  `json:"minVelocityFactor"`
	// MirroredHands swaps the detector's Left and Right labels.
	MirroredHands bool `json:"mirroredHands"`
}

// Apply merges the play settings into an engine configuration and hand
// mapping built from a preset.
func (p PlayConfig) Apply(ec *engine.Config, mapping *slot.Mapping) {
	if p.Sustain > 0 {
		ec.Sustain = time.Duration(p.Sustain)
	}
	if p.VelocityShaping {
		ec.VelocityShaping = true
	}
	if p.MinVelocityFactor > 0 {
		ec.MinVelocityFactor = p.MinVelocityFactor
	}
	if p.MirroredHands {
		mapping.Mirrored = true
	}
}

// CalibrationConfig controls the baseline calibration at startup.
type CalibrationConfig struct {
	Samples int      `json:"samples"`
	Timeout Duration `json:"timeout"`
}

// Config is the main configuration structure.
type Config struct {
	DataDir     string            `json:"dataDir"`
	HTTPAddr    string            `json:"httpAddr"`
	Camera      CameraConfig      `json:"camera"`
	Detector    DetectorConfig    `json:"detector"`
	MIDI        MIDIConfig        `json:"midi"`
	Play        PlayConfig        `json:"play"`
	Calibration CalibrationConfig `json:"calibration"`
}

// DefaultPreset is the name of the built-in preset.
const DefaultPreset = "d-major"

// DefaultDir returns ~/.handchord.
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".handchord"), nil
}

// DefaultPath returns the path of the config file in DefaultDir.
func DefaultPath() (string, error) {
	dir, err := DefaultDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// Default returns a config with sensible defaults.
func Default() *Config {
	dir, err := DefaultDir()
	if err != nil {
		dir = ".handchord"
	}
	return &Config{
		DataDir:  dir,
		HTTPAddr: ":8080",
		Camera: CameraConfig{
			Mirror:          true,
			MotionThreshold: 1.0,
		},
		Detector: DetectorConfig{MinConfidence: 0.8},
		MIDI:     MIDIConfig{Channel: 1},
		Play: PlayConfig{
			Preset:            DefaultPreset,
			MinVelocityFactor: engine.DefaultMinVelocityFactor,
		},
		Calibration: CalibrationConfig{
			Samples: engine.DefaultCalibrationSamples,
			Timeout: Duration(10 * time.Second),
		},
	}
}

// Load reads the config at path over the defaults. A missing file yields
// the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the config to path, creating its directory.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.MIDI.Channel < 1 || c.MIDI.Channel > 16 {
		return fmt.Errorf("midi channel must be 1-16, got %d", c.MIDI.Channel)
	}
	if c.Play.Sustain < 0 {
		return fmt.Errorf("sustain must not be negative, got %v", time.Duration(c.Play.Sustain))
	}
	if c.Play.MinVelocityFactor < 0 || c.Play.MinVelocityFactor > 1 {
		return fmt.Errorf("min velocity factor must be within [0, 1], got %v", c.Play.MinVelocityFactor)
	}
	if c.Calibration.Samples < 0 {
		return fmt.Errorf("calibration samples must not be negative, got %d", c.Calibration.Samples)
	}
	if c.Calibration.Timeout < 0 {
		return fmt.Errorf("calibration timeout must not be negative, got %v", time.Duration(c.Calibration.Timeout))
	}
	if c.Detector.MinConfidence < 0 || c.Detector.MinConfidence > 1 {
		return fmt.Errorf("detector confidence must be within [0, 1], got %v", c.Detector.MinConfidence)
	}
	if c.Camera.ID < 0 {
		return fmt.Errorf("camera id must not be negative, got %d", c.Camera.ID)
	}
	return nil
}

// DBPath returns the preset database location inside DataDir.
func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, "handchord.db")
}

// MIDIChannel returns the zero-based MIDI channel.
func (c *Config) MIDIChannel() uint8 {
	return uint8(c.MIDI.Channel - 1)
}
