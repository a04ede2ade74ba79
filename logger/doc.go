// Package logger provides structured logging for satkit using zerolog.
//
// Components receive a *Logger at construction and tag it with their own
// component name; a nil *Logger is replaced by the component logger
// registered under that name, so library callers never have to wire one.
// Startup code seeds the registry with RegisterDefaults after Init.
//
// # Configuration
//
//	logging:
//	  level: "info"
//	  format: "json"
//
// # Usage
//
//	log := logger.Get("cache")
//	log.Warn("remote read failed", logger.Fields("key", key, "error", err.Error()))
package logger
