package transaction

import (
	"context"
	"fmt"
	"time"

	"github.com/kbukum/satkit/database"
	apperrors "github.com/kbukum/satkit/errors"
	"github.com/kbukum/satkit/logger"
	"github.com/kbukum/satkit/resilience"
)

// Func is a unit of work. It prepares statements on tx and returns a result;
// the statements are sent only if it returns nil.
type Func[T any] func(ctx context.Context, tx *Tx) (T, error)

type outcome[T any] struct {
	value T
	err   error
	panic any
}

// WithTransaction begins a Tx on conn, runs fn under cfg.Timeout and commits.
// On any failure, from fn, the timeout or the commit, it rolls back, logs the
// rollback outcome separately, and returns a DB_TRANSACTION_FAILED AppError
// whose Cause is the original error. A panic in fn is re-raised after rollback.
func WithTransaction[T any](ctx context.Context, conn Conn, fn Func[T], cfg Config, opts ...Option) (T, error) {
	cfg.ApplyDefaults()
	var zero T

	tx := New(conn, opts...)
	if err := tx.Begin(); err != nil {
		return zero, err
	}

	value, err := runBounded(ctx, tx, fn, cfg.Timeout)
	if err == nil {
		err = tx.Commit(ctx)
	}
	if err == nil {
		return value, nil
	}

	return zero, tx.fail(ctx, err)
}

// runBounded races fn against timeout. A unit of work that outlives the
// timeout is abandoned; its later calls on tx fail once tx is rolled back.
func runBounded[T any](ctx context.Context, tx *Tx, fn Func[T], timeout time.Duration) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan outcome[T], 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome[T]{panic: r}
			}
		}()
		v, err := fn(ctx, tx)
		done <- outcome[T]{value: v, err: err}
	}()

	select {
	case o := <-done:
		if o.panic != nil {
			_ = tx.Rollback()
			tx.log.Error("transaction rolled back due to panic", map[string]interface{}{
				"transaction_id": tx.ID(),
				"panic":          fmt.Sprintf("%v", o.panic),
			})
			panic(o.panic)
		}
		return o.value, o.err
	case <-ctx.Done():
		var zero T
		return zero, fmt.Errorf("transaction timed out after %s: %w", timeout, ctx.Err())
	}
}

// fail rolls tx back and builds the wrapped error.
func (tx *Tx) fail(ctx context.Context, cause error) error {
	duration := tx.Duration()
	fields := map[string]interface{}{
		"transaction_id":     tx.ID(),
		logger.FieldDuration: duration.Milliseconds(),
	}

	if rbErr := tx.Rollback(); rbErr != nil {
		tx.log.WithContext(ctx).Error("transaction rollback failed", logger.Fields(
			"transaction_id", tx.ID(),
			logger.FieldError, rbErr.Error(),
		))
	} else {
		tx.log.WithContext(ctx).Warn("transaction rolled back", fields)
	}

	fields[logger.FieldError] = cause.Error()
	tx.log.WithContext(ctx).Error("transaction failed", fields)

	return apperrors.TransactionFailed(cause).WithDetails(map[string]any{
		"original_message": database.OriginalMessage(cause),
		"duration_ms":      duration.Milliseconds(),
		"transaction_id":   tx.ID(),
	})
}

// WithRetryableTransaction runs WithTransaction up to cfg.MaxRetries times,
// each with a fresh Tx, retrying only failures classified as deadlocks.
// Backoff between runs is exponential from cfg.BaseDelay to cfg.MaxDelay.
func WithRetryableTransaction[T any](ctx context.Context, conn Conn, fn Func[T], cfg Config, opts ...Option) (T, error) {
	cfg.ApplyDefaults()
	backoff := resilience.RetryConfig{
		BaseDelay:       cfg.BaseDelay,
		MaxDelay:        cfg.MaxDelay,
		ExponentialBase: 2,
		Jitter:          true,
	}

	log := loggerFrom(opts)

	var zero T
	var lastErr error
	for attempt := 0; attempt < cfg.MaxRetries; attempt++ {
		value, err := WithTransaction(ctx, conn, fn, cfg, opts...)
		if err == nil {
			return value, nil
		}
		lastErr = err
		if !database.IsDeadlock(err) || attempt == cfg.MaxRetries-1 {
			break
		}

		delay := resilience.Backoff(attempt, backoff)
		log.Warn("transaction deadlocked, retrying", map[string]interface{}{
			logger.FieldAttempt: attempt + 1,
			logger.FieldError:   err.Error(),
			"delay_ms":          delay.Milliseconds(),
		})

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, lastErr
		case <-timer.C:
		}
	}
	return zero, lastErr
}

func loggerFrom(opts []Option) *logger.Logger {
	scratch := &Tx{log: logger.Get(logger.ComponentTransaction)}
	for _, opt := range opts {
		opt(scratch)
	}
	return scratch.log
}
