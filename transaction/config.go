package transaction

import (
	"fmt"
	"time"
)

// Config bounds a unit of work and its deadlock retries.
type Config struct {
	// Timeout bounds the unit-of-work function.
	Timeout time.Duration `mapstructure:"timeout"`
	// MaxRetries is the total number of runs WithRetryableTransaction makes.
	MaxRetries int `mapstructure:"max_retries"`
	// BaseDelay is the backoff before the second run.
	BaseDelay time.Duration `mapstructure:"base_delay"`
	// MaxDelay caps the backoff.
	MaxDelay time.Duration `mapstructure:"max_delay"`
}

// DefaultConfig returns 30s, 3 runs, 100ms base and 2s max delay.
func DefaultConfig() Config {
	return Config{
		Timeout:    30 * time.Second,
		MaxRetries: 3,
		BaseDelay:  100 * time.Millisecond,
		MaxDelay:   2 * time.Second,
	}
}

// ApplyDefaults fills zero-valued fields from DefaultConfig.
func (c *Config) ApplyDefaults() {
	d := DefaultConfig()
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = d.MaxRetries
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = d.BaseDelay
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = d.MaxDelay
	}
}

// Validate checks the config after defaults are applied.
func (c *Config) Validate() error {
	if c.MaxDelay < c.BaseDelay {
		return fmt.Errorf("transaction max_delay (%s) must be >= base_delay (%s)", c.MaxDelay, c.BaseDelay)
	}
	return nil
}
