package resilience

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/kbukum/satkit/logger"
)

// ErrAttemptTimeout is returned for an attempt that did not finish within
// RetryConfig.Timeout. It wraps context.DeadlineExceeded and counts as an
// ordinary failed attempt.
var ErrAttemptTimeout = errors.New("attempt timed out")

const jitterFraction = 0.1

// RetryConfig configures retry behavior. It is passed by value and never mutated.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts (including the first).
	MaxAttempts int
	// BaseDelay is the delay before the first retry.
	BaseDelay time.Duration
	// MaxDelay caps the exponential delay.
	MaxDelay time.Duration
	// ExponentialBase is the multiplier applied per attempt.
	ExponentialBase float64
	// Jitter perturbs each delay by up to ±10%.
	Jitter bool
	// Timeout bounds a single attempt. Zero means the attempt is only bounded by ctx.
	Timeout time.Duration
	// RetryIf determines if an error should be retried.
	RetryIf func(error) bool
	// OnRetry is called before sleeping ahead of the next attempt.
	// attempt is the 1-based number of the attempt that just failed.
	OnRetry func(attempt int, err error, delay time.Duration)
	// OnRecovered is called when an attempt succeeds after at least one failure.
	OnRecovered func(attempts int)
	// Operation names the retried call in log entries.
	Operation string
	// Logger, when set, receives a debug entry per retry and an info entry on recovery.
	Logger *logger.Logger
}

// DefaultRetryConfig returns sensible defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:     3,
		BaseDelay:       100 * time.Millisecond,
		MaxDelay:        10 * time.Second,
		ExponentialBase: 2.0,
		Jitter:          true,
		Timeout:         30 * time.Second,
		RetryIf:         DefaultRetryIf,
	}
}

// DefaultRetryIf retries everything except caller cancellation.
func DefaultRetryIf(err error) bool {
	return !errors.Is(err, context.Canceled)
}

func (c RetryConfig) withDefaults() RetryConfig {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.BaseDelay < 0 {
		c.BaseDelay = 0
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 10 * time.Second
	}
	if c.ExponentialBase <= 0 {
		c.ExponentialBase = 2.0
	}
	if c.RetryIf == nil {
		c.RetryIf = DefaultRetryIf
	}
	return c
}

// Backoff returns the delay to wait after the failed 0-based attempt:
// min(BaseDelay * ExponentialBase^attempt, MaxDelay), perturbed by ±10% when
// Jitter is set, never negative.
func Backoff(attempt int, cfg RetryConfig) time.Duration {
	cfg = cfg.withDefaults()
	if attempt < 0 {
		attempt = 0
	}

	delay := float64(cfg.BaseDelay) * math.Pow(cfg.ExponentialBase, float64(attempt))
	if delay > float64(cfg.MaxDelay) || math.IsInf(delay, 1) {
		delay = float64(cfg.MaxDelay)
	}

	if cfg.Jitter {
		delay += (rand.Float64()*2 - 1) * delay * jitterFraction
	}

	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}

// Retry executes fn up to cfg.MaxAttempts times and returns its first
// successful result, or the error of the last attempt.
//
// Each attempt runs under cfg.Timeout; fn receives the attempt context and
// should honor it, but an attempt that ignores it is abandoned once the
// timeout fires. A failed attempt is retried only if it was not the last one
// and cfg.RetryIf reports it as retryable.
func Retry[T any](ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error
	cfg = cfg.withDefaults()

	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return zero, lastErr
			}
			return zero, err
		}

		result, err := runAttempt(ctx, cfg.Timeout, fn)
		if err == nil {
			if attempt > 0 {
				if cfg.Logger != nil {
					cfg.Logger.Info("operation recovered after retry", map[string]interface{}{
						logger.FieldOperation: cfg.Operation,
						"attempts":            attempt + 1,
					})
				}
				if cfg.OnRecovered != nil {
					cfg.OnRecovered(attempt + 1)
				}
			}
			return result, nil
		}
		lastErr = err

		if ctx.Err() != nil || attempt == cfg.MaxAttempts-1 || !cfg.RetryIf(err) {
			return zero, err
		}

		delay := Backoff(attempt, cfg)
		if cfg.Logger != nil {
			cfg.Logger.Debug("retrying operation", map[string]interface{}{
				logger.FieldOperation: cfg.Operation,
				logger.FieldAttempt:   attempt + 1,
				logger.FieldError:     err.Error(),
				"delay_ms":            delay.Milliseconds(),
			})
		}
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt+1, err, delay)
		}

		if err := sleep(ctx, delay); err != nil {
			return zero, lastErr
		}
	}

	return zero, lastErr
}

// RetryFunc executes a function that returns only an error.
func RetryFunc(ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) error) error {
	_, err := Retry(ctx, cfg, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

type attemptResult[T any] struct {
	value T
	err   error
}

// runAttempt races fn against timeout. There is no way to stop an in-flight
// call that ignores its context; the caller simply stops waiting for it.
func runAttempt[T any](ctx context.Context, timeout time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		return fn(ctx)
	}

	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan attemptResult[T], 1)
	go func() {
		v, err := fn(attemptCtx)
		done <- attemptResult[T]{value: v, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil && errors.Is(r.err, context.DeadlineExceeded) && ctx.Err() == nil {
			return r.value, fmt.Errorf("%w after %s: %w", ErrAttemptTimeout, timeout, r.err)
		}
		return r.value, r.err
	case <-attemptCtx.Done():
		var zero T
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		return zero, fmt.Errorf("%w after %s: %w", ErrAttemptTimeout, timeout, context.DeadlineExceeded)
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
