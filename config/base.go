package config

import (
	"fmt"
	"slices"
)

var environments = []string{"development", "staging", "production"}

// BaseConfig holds the identity of the running service.
type BaseConfig struct {
	Name        string `yaml:"name" mapstructure:"name" validate:"required"`
	Environment string `yaml:"environment" mapstructure:"environment" validate:"oneof=development staging production"`
	Version     string `yaml:"version" mapstructure:"version"`
	// Debug lowers the log level to debug.
	Debug bool `yaml:"debug" mapstructure:"debug"`
}

// ApplyDefaults fills the environment. Debug is left as configured.
func (c *BaseConfig) ApplyDefaults() {
	if c.Environment == "" {
		c.Environment = "development"
	}
	if c.Version == "" {
		c.Version = "dev"
	}
}

// Validate validates base configuration.
func (c *BaseConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("base.name is required")
	}
	if !slices.Contains(environments, c.Environment) {
		return fmt.Errorf("base.environment must be one of %v (got: %s)", environments, c.Environment)
	}
	return nil
}

// IsProduction reports whether the service runs in production.
func (c *BaseConfig) IsProduction() bool {
	return c.Environment == "production"
}

// GetBaseConfig exposes the embedded base section to lifecycle code.
func (c *BaseConfig) GetBaseConfig() *BaseConfig { return c }
