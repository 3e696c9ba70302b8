package acquisition

import (
	"fmt"
	"time"

	"github.com/herlein/gohama/pkg/frame"
	"github.com/herlein/gohama/pkg/spectrum"
)

// Default timing
const (
	DefaultPollInterval     = 100 * time.Millisecond
	DefaultReconnectBackoff = 2 * time.Second
	DefaultStopTimeout      = 3 * time.Second
	DefaultSnapshotGrace    = 500 * time.Millisecond
)

// Config defines engine runtime parameters
type Config struct {
	PollInterval     time.Duration // Sleep before each frame read
	ReadTimeout      time.Duration // Per-packet read timeout
	ReconnectBackoff time.Duration // Wait after a failed open or a lost session
	StopTimeout      time.Duration // Bound on joining the acquisition goroutine
	SnapshotGrace    time.Duration // Wait after Snapshot auto-starts the engine

	BinFactor  uint16
	RateWindow time.Duration

	// MaxResync bounds packets skipped looking for a header, 0 = unbounded
	MaxResync int
}

// DefaultConfig returns a Config with default values
func DefaultConfig() *Config {
	return &Config{
		PollInterval:     DefaultPollInterval,
		ReadTimeout:      frame.DefaultReadTimeout,
		ReconnectBackoff: DefaultReconnectBackoff,
		StopTimeout:      DefaultStopTimeout,
		SnapshotGrace:    DefaultSnapshotGrace,
		BinFactor:        spectrum.DefaultBinFactor,
		RateWindow:       spectrum.DefaultRateWindow,
	}
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	if c.PollInterval < 0 {
		return fmt.Errorf("%w: poll interval %v", ErrInvalidConfig, c.PollInterval)
	}
	if c.ReadTimeout <= 0 {
		return fmt.Errorf("%w: read timeout %v", ErrInvalidConfig, c.ReadTimeout)
	}
	if c.ReconnectBackoff < 0 {
		return fmt.Errorf("%w: reconnect backoff %v", ErrInvalidConfig, c.ReconnectBackoff)
	}
	if c.StopTimeout <= 0 {
		return fmt.Errorf("%w: stop timeout %v", ErrInvalidConfig, c.StopTimeout)
	}
	if c.SnapshotGrace < 0 {
		return fmt.Errorf("%w: snapshot grace %v", ErrInvalidConfig, c.SnapshotGrace)
	}
	if c.MaxResync < 0 {
		return fmt.Errorf("%w: max resync %d", ErrInvalidConfig, c.MaxResync)
	}
	if err := spectrum.ValidateFactor(c.BinFactor); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if c.RateWindow <= 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, spectrum.ErrInvalidWindow)
	}
	return nil
}
