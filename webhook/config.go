package webhook

import (
	"fmt"
	"net/url"
	"time"
)

// Config configures outbound webhook notifications.
type Config struct {
	// Enabled controls whether notifications are sent.
	Enabled bool `mapstructure:"enabled"`
	// URL is the endpoint events are POSTed to.
	URL string `mapstructure:"url"`
	// Timeout bounds a single HTTP attempt.
	Timeout time.Duration `mapstructure:"timeout"`
	// Headers are added to every request.
	Headers map[string]string `mapstructure:"headers"`

	// MaxAttempts, BaseDelay and MaxDelay shape the retry policy.
	MaxAttempts int           `mapstructure:"max_attempts"`
	BaseDelay   time.Duration `mapstructure:"base_delay"`
	MaxDelay    time.Duration `mapstructure:"max_delay"`
	// RetryStatuses overrides the retryable HTTP statuses.
	RetryStatuses []int `mapstructure:"retry_statuses"`

	// MaxConcurrent caps in-flight notifications.
	MaxConcurrent int `mapstructure:"max_concurrent"`
	// MaxWait is how long a notification queues for a slot.
	MaxWait time.Duration `mapstructure:"max_wait"`
}

// ApplyDefaults sets sensible defaults for zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = 200 * time.Millisecond
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 5 * time.Second
	}
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = 10
	}
}

// Validate checks the endpoint when notifications are enabled.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.URL == "" {
		return fmt.Errorf("webhook url is required")
	}
	u, err := url.Parse(c.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("webhook url %q must be an absolute http(s) URL", c.URL)
	}
	if c.MaxDelay < c.BaseDelay {
		return fmt.Errorf("webhook max_delay (%s) must be >= base_delay (%s)", c.MaxDelay, c.BaseDelay)
	}
	return nil
}
