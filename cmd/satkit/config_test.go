package main

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/kbukum/satkit/config"
	"github.com/kbukum/satkit/logger"
	"github.com/kbukum/satkit/resilience"
)

func TestAppConfig_LoadsShippedFile(t *testing.T) {
	var cfg AppConfig
	if err := config.LoadConfig(serviceName, &cfg, config.WithConfigFile("config.yml")); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected shipped config to validate, got %v", err)
	}

	if cfg.Name != "satkit" {
		t.Errorf("expected name satkit, got %q", cfg.Name)
	}
	if cfg.Cache.DefaultTTL != 5*time.Minute {
		t.Errorf("expected 5m default ttl, got %s", cfg.Cache.DefaultTTL)
	}
	if cfg.Breakers.OpenDuration != 30*time.Second {
		t.Errorf("expected 30s open duration, got %s", cfg.Breakers.OpenDuration)
	}
	if cfg.Metrics.ServiceName != "satkit" {
		t.Errorf("expected metrics service name to follow base name, got %q", cfg.Metrics.ServiceName)
	}
}

func TestAppConfig_EnvOverride(t *testing.T) {
	t.Setenv("SATKIT_REDIS_ADDR", "cache:6379")
	t.Setenv("SATKIT_BASE_DEBUG", "true")

	var cfg AppConfig
	if err := config.LoadConfig(serviceName, &cfg, config.WithConfigFile("config.yml"), config.WithEnvPrefix("SATKIT")); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	cfg.ApplyDefaults()

	if cfg.Redis.Addr != "cache:6379" {
		t.Errorf("expected env override, got %q", cfg.Redis.Addr)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected debug level, got %q", cfg.Logging.Level)
	}
}

func TestAppConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*AppConfig)
		errMsg string
	}{
		{"missing name", func(c *AppConfig) { c.Name = "" }, "base.name"},
		{"bad environment", func(c *AppConfig) { c.Environment = "qa" }, "base.environment"},
		{"webhook without url", func(c *AppConfig) { c.Webhook.Enabled = true }, "webhook"},
		{"database without dsn", func(c *AppConfig) { c.Database.Enabled = true }, "database"},
		{"negative threshold", func(c *AppConfig) { c.Breakers.FailureThreshold = -1 }, "breakers.failure_threshold"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := AppConfig{}
			cfg.Name = "satkit"
			cfg.ApplyDefaults()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("expected error containing %q, got %q", tt.errMsg, err.Error())
			}
		})
	}
}

func TestBreakerDefaults_ReportsTransitions(t *testing.T) {
	cfg := AppConfig{Breakers: BreakerConfig{FailureThreshold: 1, OpenDuration: time.Minute}}
	logger.Register(logger.ComponentBreaker, logger.Nop())
	var seen []string
	defaults := breakerDefaults(&cfg, nil)
	inner := defaults.OnStateChange
	defaults.OnStateChange = func(name string, from, to resilience.State) {
		inner(name, from, to)
		seen = append(seen, name+":"+to.String())
	}

	reg := resilience.NewBreakerRegistry(defaults)
	_ = reg.Execute("database", func() error { return errors.New("boom") })

	if len(seen) != 1 || seen[0] != "database:open" {
		t.Errorf("expected one open transition, got %v", seen)
	}
}
