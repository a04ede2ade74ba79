// Package server provides the admin HTTP server: a Gin engine behind h2c
// with recovery, request ID and request logging middleware.
//
// Admin routes:
//
//   - GET /health: component health, degraded while any breaker is open
//   - GET /breakers: circuit breaker snapshots
//   - POST /breakers/:name/reset: force a breaker closed
//   - GET /cache/stats: local cache tier statistics
package server
