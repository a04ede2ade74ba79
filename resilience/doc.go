// Package resilience provides the fault-tolerance primitives used by satkit.
//
// This package includes:
//   - Retry: retries failed operations with exponential backoff, jitter and a
//     per-attempt timeout
//   - CircuitBreaker: fails fast once a dependency has failed too often
//   - BreakerRegistry: one breaker per dependency name for the process lifetime
//   - Bulkhead: limits concurrent calls to a dependency
//
// The patterns compose; an outbound call typically looks like:
//
//	breakers := resilience.NewBreakerRegistry(resilience.DefaultCircuitBreakerConfig(""))
//	bh := resilience.NewBulkhead(resilience.BulkheadConfig{Name: "webhook", MaxConcurrent: 10})
//
//	err := bh.Execute(ctx, func(ctx context.Context) error {
//	    return breakers.Execute("webhook:api.example.com", func() error {
//	        return resilience.RetryFunc(ctx, retryCfg, send)
//	    })
//	})
package resilience
