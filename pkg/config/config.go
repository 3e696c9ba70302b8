// Package config holds the acquisition tool's YAML configuration.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/herlein/gohama/pkg/acquisition"
	"github.com/herlein/gohama/pkg/detector"
)

// Duration is a time.Duration written as a Go duration string, e.g. "100ms"
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	duration, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("config.Duration: failed to parse: %s", err)
	}

	*d = Duration(duration)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Config is the complete file layout
type Config struct {
	Settings    Settings    `yaml:"settings"`
	Device      Device      `yaml:"device"`
	Acquisition Acquisition `yaml:"acquisition"`
	Logging     Logging     `yaml:"logging"`
	Storage     Storage     `yaml:"storage"`
}

// Settings holds process-wide options
type Settings struct {
	LogLevel string `yaml:"log_level"` // debug, info, warn, error
}

// Device selects and prepares the detector
type Device struct {
	Selector   string `yaml:"selector,omitempty"`
	Simulate   bool   `yaml:"simulate"`
	ResetCount int    `yaml:"reset_count"`
	PowerCycle bool   `yaml:"power_cycle"`
	HubPort    string `yaml:"hub_port,omitempty"` // uhubctl "location:port", derived from the device path when empty
	SimSeed    int64  `yaml:"sim_seed,omitempty"`
}

// Acquisition tunes the engine
type Acquisition struct {
	PollInterval     Duration `yaml:"poll_interval"`
	ReadTimeout      Duration `yaml:"read_timeout"`
	ReconnectBackoff Duration `yaml:"reconnect_backoff"`
	StopTimeout      Duration `yaml:"stop_timeout"`
	BinFactor        uint16   `yaml:"bin_factor"`
	RateWindow       Duration `yaml:"rate_window"`
	MaxResync        int      `yaml:"max_resync"`
}

// Logging configures the periodic snapshot recorder
type Logging struct {
	BaseName  string   `yaml:"base_name,omitempty"` // Empty disables logging
	Interval  Duration `yaml:"interval"`
	TotalTime Duration `yaml:"total_time"` // Zero logs until stopped
}

// Storage configures the optional SQLite sink
type Storage struct {
	SQLitePath string `yaml:"sqlite_path,omitempty"`
}

// Default returns a Config with default values
func Default() *Config {
	engine := acquisition.DefaultConfig()
	return &Config{
		Settings: Settings{LogLevel: "info"},
		Device: Device{
			ResetCount: detector.DefaultResetCount,
		},
		Acquisition: Acquisition{
			PollInterval:     Duration(engine.PollInterval),
			ReadTimeout:      Duration(engine.ReadTimeout),
			ReconnectBackoff: Duration(engine.ReconnectBackoff),
			StopTimeout:      Duration(engine.StopTimeout),
			BinFactor:        engine.BinFactor,
			RateWindow:       Duration(engine.RateWindow),
		},
		Logging: Logging{
			Interval: Duration(10 * time.Second),
		},
	}
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	var errs []error

	if _, err := c.Settings.Level(); err != nil {
		errs = append(errs, err)
	}

	if c.Device.ResetCount < 0 {
		errs = append(errs, fmt.Errorf("device.reset_count must not be negative: %d", c.Device.ResetCount))
	}
	if c.Device.HubPort != "" {
		if _, err := detector.ParseHubPort(c.Device.HubPort); err != nil {
			errs = append(errs, fmt.Errorf("device.hub_port: %w", err))
		}
	}

	if err := c.Engine().Validate(); err != nil {
		errs = append(errs, err)
	}

	if c.Logging.Interval <= 0 {
		errs = append(errs, fmt.Errorf("logging.interval must be positive: %s", time.Duration(c.Logging.Interval)))
	}
	if c.Logging.TotalTime < 0 {
		errs = append(errs, fmt.Errorf("logging.total_time must not be negative: %s", time.Duration(c.Logging.TotalTime)))
	}

	return errors.Join(errs...)
}

// Engine converts the acquisition section to the engine's runtime config
func (c *Config) Engine() *acquisition.Config {
	cfg := acquisition.DefaultConfig()
	cfg.PollInterval = time.Duration(c.Acquisition.PollInterval)
	cfg.ReadTimeout = time.Duration(c.Acquisition.ReadTimeout)
	cfg.ReconnectBackoff = time.Duration(c.Acquisition.ReconnectBackoff)
	cfg.StopTimeout = time.Duration(c.Acquisition.StopTimeout)
	cfg.BinFactor = c.Acquisition.BinFactor
	cfg.RateWindow = time.Duration(c.Acquisition.RateWindow)
	cfg.MaxResync = c.Acquisition.MaxResync
	return cfg
}

// Level parses LogLevel
func (s Settings) Level() (slog.Level, error) {
	switch strings.ToLower(s.LogLevel) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("settings.log_level: unknown level %q", s.LogLevel)
}
