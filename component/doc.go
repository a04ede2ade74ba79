// Package component defines the lifecycle contract for infrastructure
// dependencies (database, remote cache) and a Registry that starts them in
// order and stops them in reverse.
package component
