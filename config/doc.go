// Package config loads service configuration with Viper.
//
// LoadConfig reads cmd/<service>/config.yml (or an explicit file), loads a
// .env file with godotenv, and lets environment variables override any key:
//
//	var cfg AppConfig
//	if err := config.LoadConfig("satkit", &cfg); err != nil {
//	    log.Fatal(err)
//	}
//
// REDIS_ENABLED=true overrides redis.enabled. Config structs follow the
// ApplyDefaults/Validate convention and are validated after loading.
package config
