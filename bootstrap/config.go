package bootstrap

import (
	"github.com/kbukum/satkit/config"
)

// Config is the constraint for application configuration types. A struct
// embedding config.BaseConfig satisfies GetBaseConfig through promotion.
//
//	type AppConfig struct {
//	    config.BaseConfig `mapstructure:",squash"`
//	    Database database.Config `mapstructure:"database"`
//	}
type Config interface {
	GetBaseConfig() *config.BaseConfig
	ApplyDefaults()
	Validate() error
}
