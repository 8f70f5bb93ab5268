package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete hooksdemo configuration.
type Config struct {
	Surface SurfaceConfig `yaml:"surface"`
	Capture CaptureConfig `yaml:"capture"`
	MQTT    MQTTConfig    `yaml:"mqtt"`
}

// SurfaceConfig describes the synthetic render target.
type SurfaceConfig struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
	FPS    int `yaml:"fps"`
}

// CaptureConfig selects and parameterizes the hook to run.
type CaptureConfig struct {
	// Mode is one of: screenshot, sequence, grab, portal, pipeline.
	Mode string `yaml:"mode"`

	// Path is the output file for screenshot mode.
	Path string `yaml:"path"`

	// Dir and Template drive sequence mode. Template contains a run of
	// '#' placeholders, e.g. "frame-####.bmp".
	Dir      string `yaml:"dir"`
	Template string `yaml:"template"`

	// PeriodMS is the minimum interval between captures, milliseconds.
	PeriodMS int `yaml:"period_ms"`

	// Start shifts sequence numbering; -1 numbers by raw frame count.
	Start int64 `yaml:"start"`

	// Limit is the number of frames to capture (sequence, grab, pipeline).
	Limit int `yaml:"limit"`

	// BatchSize is the frames-per-block for pipeline mode.
	BatchSize int `yaml:"batch_size"`

	// FrameRate is the portal's target display rate, frames per second.
	FrameRate float64 `yaml:"frame_rate"`

	// TimeLimitS bounds the portal's lifetime in seconds. 0 = unlimited.
	TimeLimitS int `yaml:"time_limit_s"`
}

// MQTTConfig describes the portal's broker target.
type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"client_id"`
	Topic    string `yaml:"topic"`
	QoS      byte   `yaml:"qos"`
}

// Period returns the capture throttle period.
func (c CaptureConfig) Period() time.Duration {
	return time.Duration(c.PeriodMS) * time.Millisecond
}

// TimeLimit returns the portal lifetime bound.
func (c CaptureConfig) TimeLimit() time.Duration {
	return time.Duration(c.TimeLimitS) * time.Second
}

// LoadConfig reads and validates a YAML configuration file.
func LoadConfig(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := defaultConfig()
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Surface: SurfaceConfig{Width: 640, Height: 480, FPS: 30},
		Capture: CaptureConfig{
			Mode:      "grab",
			Template:  "frame-####.bmp",
			Start:     -1,
			Limit:     10,
			BatchSize: 4,
			FrameRate: 5,
		},
	}
}

// Validate fails fast on configuration the hooks would reject later.
func (c *Config) Validate() error {
	if c.Surface.Width <= 0 || c.Surface.Height <= 0 {
		return fmt.Errorf("config: invalid surface dimensions %dx%d", c.Surface.Width, c.Surface.Height)
	}
	if c.Surface.FPS <= 0 {
		return fmt.Errorf("config: surface fps must be positive, got %d", c.Surface.FPS)
	}

	switch c.Capture.Mode {
	case "screenshot":
		if c.Capture.Path == "" {
			return fmt.Errorf("config: screenshot mode requires capture.path")
		}
	case "sequence":
		if c.Capture.Template == "" {
			return fmt.Errorf("config: sequence mode requires capture.template")
		}
		if c.Capture.Limit <= 0 {
			return fmt.Errorf("config: sequence mode requires a positive capture.limit")
		}
	case "grab", "pipeline":
		if c.Capture.Limit <= 0 {
			return fmt.Errorf("config: %s mode requires a positive capture.limit", c.Capture.Mode)
		}
		if c.Capture.Mode == "pipeline" && c.Capture.BatchSize <= 0 {
			return fmt.Errorf("config: pipeline mode requires a positive capture.batch_size")
		}
	case "portal":
		if c.MQTT.Broker == "" || c.MQTT.Topic == "" {
			return fmt.Errorf("config: portal mode requires mqtt.broker and mqtt.topic")
		}
		if c.MQTT.ClientID == "" {
			return fmt.Errorf("config: portal mode requires mqtt.client_id")
		}
	default:
		return fmt.Errorf("config: unknown capture mode %q", c.Capture.Mode)
	}
	return nil
}
