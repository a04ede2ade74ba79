package resilience

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// State represents the circuit breaker state.
type State int

const (
	// StateClosed allows requests to pass through.
	StateClosed State = iota
	// StateOpen blocks all requests until the open period elapses.
	StateOpen
	// StateHalfOpen admits a single trial request.
	StateHalfOpen
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// MarshalText renders the state by name in JSON snapshots.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ErrCircuitOpen is returned without invoking the wrapped call while a
// breaker is open or its half-open trial is in flight.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreakerConfig configures a circuit breaker.
type CircuitBreakerConfig struct {
	// Name identifies the protected dependency.
	Name string
	// FailureThreshold is the failure count that opens the circuit.
	FailureThreshold int
	// OpenDuration is how long the circuit stays open before admitting a trial.
	OpenDuration time.Duration
	// IsFailure decides whether an error counts against the breaker.
	// Defaults to every non-nil error.
	IsFailure func(error) bool
	// OnStateChange is called, under the breaker lock, when state changes.
	OnStateChange func(name string, from, to State)
	// Now is the clock. Defaults to time.Now.
	Now func() time.Time
}

// DefaultCircuitBreakerConfig returns sensible defaults.
func DefaultCircuitBreakerConfig(name string) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:             name,
		FailureThreshold: 5,
		OpenDuration:     30 * time.Second,
	}
}

// BreakerSnapshot is a point-in-time copy of a breaker's state.
type BreakerSnapshot struct {
	Name             string        `json:"name"`
	State            State         `json:"state"`
	FailureCount     int           `json:"failure_count"`
	FailureThreshold int           `json:"failure_threshold"`
	OpenDuration     time.Duration `json:"open_duration"`
	LastFailureTime  *time.Time    `json:"last_failure_time,omitempty"`
	NextAttemptTime  *time.Time    `json:"next_attempt_time,omitempty"`
}

// CircuitBreaker implements the circuit breaker pattern.
//
// States:
//   - Closed: calls pass through; successes decay the failure count, failures
//     grow it until FailureThreshold opens the circuit
//   - Open: calls fail with ErrCircuitOpen until NextAttemptTime
//   - Half-Open: exactly one trial call is in flight; its outcome closes or
//     re-opens the circuit
//
// All transitions happen under one mutex so a burst of callers at
// NextAttemptTime admits a single trial.
type CircuitBreaker struct {
	config CircuitBreakerConfig

	mu              sync.Mutex
	state           State
	failureCount    int
	lastFailureTime time.Time
	nextAttemptTime time.Time
	trialInFlight   bool
}

// NewCircuitBreaker creates a new circuit breaker.
func NewCircuitBreaker(config CircuitBreakerConfig) *CircuitBreaker {
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 5
	}
	if config.OpenDuration <= 0 {
		config.OpenDuration = 30 * time.Second
	}
	if config.IsFailure == nil {
		config.IsFailure = func(err error) bool { return err != nil }
	}
	if config.Now == nil {
		config.Now = time.Now
	}

	return &CircuitBreaker{
		config: config,
		state:  StateClosed,
	}
}

// Name returns the dependency name.
func (cb *CircuitBreaker) Name() string {
	return cb.config.Name
}

// Execute runs fn through the circuit breaker. It returns an error wrapping
// ErrCircuitOpen, without calling fn, when the call is not admitted.
func (cb *CircuitBreaker) Execute(fn func() error) (err error) {
	trial, admitErr := cb.admit()
	if admitErr != nil {
		return admitErr
	}

	completed := false
	defer func() {
		if !completed {
			// fn panicked; count it so a trial cannot wedge the breaker.
			cb.record(trial, fmt.Errorf("panic in %s call", cb.config.Name))
		}
	}()

	err = fn()
	completed = true
	cb.record(trial, err)
	return err
}

// ExecuteWithResult runs a function that returns a value through cb.
func ExecuteWithResult[T any](cb *CircuitBreaker, fn func() (T, error)) (T, error) {
	var result T
	err := cb.Execute(func() error {
		var fnErr error
		result, fnErr = fn()
		return fnErr
	})
	return result, err
}

// State returns the current circuit breaker state.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Failures returns the current failure count.
func (cb *CircuitBreaker) Failures() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.failureCount
}

// Snapshot returns a copy of the breaker's state.
func (cb *CircuitBreaker) Snapshot() BreakerSnapshot {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	s := BreakerSnapshot{
		Name:             cb.config.Name,
		State:            cb.state,
		FailureCount:     cb.failureCount,
		FailureThreshold: cb.config.FailureThreshold,
		OpenDuration:     cb.config.OpenDuration,
	}
	if !cb.lastFailureTime.IsZero() {
		t := cb.lastFailureTime
		s.LastFailureTime = &t
	}
	if !cb.nextAttemptTime.IsZero() {
		t := cb.nextAttemptTime
		s.NextAttemptTime = &t
	}
	return s
}

// Reset returns the breaker to its initial closed state.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.toState(StateClosed)
	cb.failureCount = 0
	cb.lastFailureTime = time.Time{}
	cb.nextAttemptTime = time.Time{}
	cb.trialInFlight = false
}

// admit decides whether a call may proceed and whether it is the half-open trial.
func (cb *CircuitBreaker) admit() (trial bool, err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return false, nil
	case StateOpen:
		if cb.config.Now().Before(cb.nextAttemptTime) {
			return false, cb.openError()
		}
		cb.toState(StateHalfOpen)
		cb.trialInFlight = true
		return true, nil
	case StateHalfOpen:
		if cb.trialInFlight {
			return false, cb.openError()
		}
		cb.trialInFlight = true
		return true, nil
	default:
		return false, cb.openError()
	}
}

// record applies the outcome of an admitted call.
func (cb *CircuitBreaker) record(trial bool, err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	failed := err != nil && cb.config.IsFailure(err)

	if trial {
		cb.trialInFlight = false
		if cb.state != StateHalfOpen {
			// Reset while the trial was running.
			return
		}
		if failed {
			cb.lastFailureTime = cb.config.Now()
			cb.open()
			return
		}
		cb.failureCount = 0
		cb.toState(StateClosed)
		return
	}

	// Results of calls admitted while closed only count while still closed.
	if cb.state != StateClosed {
		return
	}
	if !failed {
		if cb.failureCount > 0 {
			cb.failureCount--
		}
		return
	}

	cb.failureCount++
	cb.lastFailureTime = cb.config.Now()
	if cb.failureCount >= cb.config.FailureThreshold {
		cb.open()
	}
}

func (cb *CircuitBreaker) open() {
	cb.nextAttemptTime = cb.config.Now().Add(cb.config.OpenDuration)
	cb.toState(StateOpen)
}

func (cb *CircuitBreaker) openError() error {
	return fmt.Errorf("%w: %s", ErrCircuitOpen, cb.config.Name)
}

// toState transitions to a new state.
func (cb *CircuitBreaker) toState(to State) {
	if cb.state == to {
		return
	}

	from := cb.state
	cb.state = to

	if to == StateClosed {
		cb.nextAttemptTime = time.Time{}
	}

	if cb.config.OnStateChange != nil {
		cb.config.OnStateChange(cb.config.Name, from, to)
	}
}
