// Package validation checks configuration structs and request inputs.
//
// Struct tags are checked with go-playground/validator and reported with
// config key names:
//
//	type RedisConfig struct {
//	    Addr string `mapstructure:"addr" validate:"required_if=Enabled true"`
//	}
//	err := validation.Validate(cfg)
//
// Inputs without a struct are checked programmatically:
//
//	v := validation.New().Required("name", name).MaxLength("name", name, 128)
//	if err := v.Validate(); err != nil { ... }
package validation
