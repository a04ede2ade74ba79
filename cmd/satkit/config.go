package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/kbukum/satkit/cache"
	"github.com/kbukum/satkit/config"
	"github.com/kbukum/satkit/database"
	"github.com/kbukum/satkit/logger"
	"github.com/kbukum/satkit/observability"
	"github.com/kbukum/satkit/redis"
	"github.com/kbukum/satkit/resilience"
	"github.com/kbukum/satkit/server"
	"github.com/kbukum/satkit/transaction"
	"github.com/kbukum/satkit/validation"
	"github.com/kbukum/satkit/webhook"
)

// BreakerConfig sets the defaults every named breaker is created with.
type BreakerConfig struct {
	FailureThreshold int           `mapstructure:"failure_threshold" validate:"gte=0"`
	OpenDuration     time.Duration `mapstructure:"open_duration" validate:"gte=0"`
}

// AppConfig is the full service configuration.
type AppConfig struct {
	config.BaseConfig `mapstructure:"base"`

	Logging     logger.Config              `mapstructure:"logging"`
	Server      server.Config              `mapstructure:"server"`
	Database    database.Config            `mapstructure:"database"`
	Redis       redis.Config               `mapstructure:"redis"`
	Cache       cache.Config               `mapstructure:"cache"`
	Breakers    BreakerConfig              `mapstructure:"breakers"`
	Webhook     webhook.Config             `mapstructure:"webhook"`
	Transaction transaction.Config         `mapstructure:"transaction"`
	Metrics     observability.MeterConfig  `mapstructure:"metrics"`
	Tracing     observability.TracerConfig `mapstructure:"tracing"`
}

// ApplyDefaults fills every section.
func (c *AppConfig) ApplyDefaults() {
	c.BaseConfig.ApplyDefaults()
	c.Logging.ApplyDefaults()
	c.Logging.ApplyDebug(c.Debug)
	c.Server.ApplyDefaults()
	c.Database.ApplyDefaults()
	c.Redis.ApplyDefaults()
	c.Cache.ApplyDefaults()
	c.Webhook.ApplyDefaults()
	c.Transaction.ApplyDefaults()

	if c.Breakers.FailureThreshold == 0 {
		c.Breakers.FailureThreshold = 5
	}
	if c.Breakers.OpenDuration == 0 {
		c.Breakers.OpenDuration = 30 * time.Second
	}
	for _, svc := range []*string{&c.Metrics.ServiceName, &c.Tracing.ServiceName} {
		if *svc == "" {
			*svc = c.Name
		}
	}
	for _, v := range []*string{&c.Metrics.ServiceVersion, &c.Tracing.ServiceVersion} {
		if *v == "" {
			*v = c.Version
		}
	}
	for _, env := range []*string{&c.Metrics.Environment, &c.Tracing.Environment} {
		if *env == "" {
			*env = c.Environment
		}
	}
}

// Validate runs the struct tags first, then each section's own checks.
func (c *AppConfig) Validate() error {
	if err := validation.Validate(c); err != nil {
		return err
	}

	checks := []struct {
		section string
		check   func() error
	}{
		{"logging", c.Logging.Validate},
		{"server", c.Server.Validate},
		{"database", c.Database.Validate},
		{"redis", c.Redis.Validate},
		{"cache", c.Cache.Validate},
		{"webhook", c.Webhook.Validate},
		{"transaction", c.Transaction.Validate},
	}
	var errs []error
	for _, ch := range checks {
		if err := ch.check(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", ch.section, err))
		}
	}
	return errors.Join(errs...)
}

// BreakerDefaults converts the breaker section for the registry.
func (c *AppConfig) BreakerDefaults() resilience.CircuitBreakerConfig {
	return resilience.CircuitBreakerConfig{
		FailureThreshold: c.Breakers.FailureThreshold,
		OpenDuration:     c.Breakers.OpenDuration,
	}
}
