// Package webhook delivers outbound event notifications over HTTP.
//
// Every notification is isolated by a bulkhead, guarded by the endpoint's
// circuit breaker from a shared resilience.BreakerRegistry, and retried on
// transient network failures and 408/429/5xx responses. When the breaker is
// open the endpoint is not contacted and Notify returns a CIRCUIT_OPEN
// AppError; NotifyBestEffort swallows that case for non-critical events.
package webhook
