package resilience

import (
	"sort"
	"sync"
)

// BreakerRegistry hands out one CircuitBreaker per dependency name. Build one
// at startup and inject it into every component that calls out.
type BreakerRegistry struct {
	defaults CircuitBreakerConfig

	mu       sync.RWMutex
	breakers map[string]*CircuitBreaker
}

// NewBreakerRegistry creates a registry whose breakers are built from
// defaults, with Name replaced per dependency.
func NewBreakerRegistry(defaults CircuitBreakerConfig) *BreakerRegistry {
	return &BreakerRegistry{
		defaults: defaults,
		breakers: make(map[string]*CircuitBreaker),
	}
}

// Get returns the breaker for name, creating it on first use.
func (r *BreakerRegistry) Get(name string) *CircuitBreaker {
	return r.GetWith(name, nil)
}

// GetWith is Get with configure applied to the registry defaults when the
// breaker is created. An existing breaker is returned unchanged.
func (r *BreakerRegistry) GetWith(name string, configure func(*CircuitBreakerConfig)) *CircuitBreaker {
	r.mu.RLock()
	cb, ok := r.breakers[name]
	r.mu.RUnlock()
	if ok {
		return cb
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if cb, ok := r.breakers[name]; ok {
		return cb
	}
	cfg := r.defaults
	if configure != nil {
		configure(&cfg)
	}
	cfg.Name = name
	cb = NewCircuitBreaker(cfg)
	r.breakers[name] = cb
	return cb
}

// Execute runs fn through the breaker registered under name.
func (r *BreakerRegistry) Execute(name string, fn func() error) error {
	return r.Get(name).Execute(fn)
}

// Reset resets the named breaker. It reports false if no such breaker exists.
func (r *BreakerRegistry) Reset(name string) bool {
	r.mu.RLock()
	cb, ok := r.breakers[name]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	cb.Reset()
	return true
}

// Snapshots returns the state of every breaker, sorted by name.
func (r *BreakerRegistry) Snapshots() []BreakerSnapshot {
	r.mu.RLock()
	list := make([]*CircuitBreaker, 0, len(r.breakers))
	for _, cb := range r.breakers {
		list = append(list, cb)
	}
	r.mu.RUnlock()

	out := make([]BreakerSnapshot, 0, len(list))
	for _, cb := range list {
		out = append(out, cb.Snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// AnyOpen reports whether any breaker is not closed.
func (r *BreakerRegistry) AnyOpen() bool {
	for _, s := range r.Snapshots() {
		if s.State != StateClosed {
			return true
		}
	}
	return false
}
