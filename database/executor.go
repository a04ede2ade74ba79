package database

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"

	apperrors "github.com/kbukum/satkit/errors"
	"github.com/kbukum/satkit/logger"
	"github.com/kbukum/satkit/observability"
	"github.com/kbukum/satkit/resilience"
)

const defaultHealthTimeout = 5 * time.Second

// ExecutorConfig configures an Executor.
type ExecutorConfig struct {
	// Retry is the per-operation retry policy. RetryIf is always replaced
	// by the error-class rule.
	Retry resilience.RetryConfig
	// Metrics is optional.
	Metrics *observability.ResilienceMetrics
}

// DefaultExecutorConfig returns 3 attempts, 100ms base delay, 30s per attempt.
func DefaultExecutorConfig() ExecutorConfig {
	return ExecutorConfig{Retry: resilience.DefaultRetryConfig()}
}

// Executor runs database operations with classification-driven retries.
// Only connection and timeout failures are retried.
type Executor struct {
	cfg ExecutorConfig
	log *logger.Logger
}

// NewExecutor creates an executor.
func NewExecutor(cfg ExecutorConfig, log *logger.Logger) *Executor {
	return &Executor{cfg: cfg, log: logger.For(log, logger.ComponentDBExecutor)}
}

// Once returns a copy of e that makes exactly one attempt. Used for sends
// that must never be repeated, such as a transaction commit.
func (e *Executor) Once() *Executor {
	cp := *e
	cp.cfg.Retry.MaxAttempts = 1
	return &cp
}

// Execute runs fn against conn under the executor's retry policy.
//
// A final failure is logged once at error level and returned as an AppError
// with code DB_CONNECTION_FAILED (connection or timeout class) or
// DB_QUERY_FAILED, carrying the original message, error class, attempt count
// and operation name. The original error is kept as Cause.
func Execute[T any](ctx context.Context, e *Executor, conn Connection, operation string, fn func(ctx context.Context, conn Connection) (T, error)) (T, error) {
	ctx, op := observability.StartOperation(ctx, observability.SpanDBExecute, operation)

	var counter atomic.Int32
	rc := e.cfg.Retry
	rc.RetryIf = IsRetryable
	rc.Operation = operation
	rc.Logger = e.log
	rc.OnRetry = func(int, error, time.Duration) {
		e.cfg.Metrics.RecordRetry(ctx, operation, "retried")
	}
	rc.OnRecovered = func(int) {
		e.cfg.Metrics.RecordRetry(ctx, operation, "recovered")
	}

	result, err := resilience.Retry(ctx, rc, func(ctx context.Context) (T, error) {
		counter.Add(1)
		return fn(ctx, conn)
	})
	attempts := int(counter.Load())

	op.SetAttributes(attribute.Int(observability.AttrAttempts, attempts))
	if err == nil {
		duration := op.End("ok", nil)
		e.cfg.Metrics.RecordDBOperation(ctx, "none", "ok", duration)
		return result, nil
	}

	class := Classify(err)
	op.SetAttributes(attribute.String(observability.AttrErrorClass, string(class)))
	duration := op.End("error", err)
	e.cfg.Metrics.RecordDBOperation(ctx, string(class), "error", duration)

	e.log.WithContext(ctx).Error("database operation failed", map[string]interface{}{
		logger.FieldOperation:  operation,
		logger.FieldAttempt:    attempts,
		logger.FieldErrorClass: string(class),
		logger.FieldError:      err.Error(),
		logger.FieldDuration:   duration.Milliseconds(),
	})

	var zero T
	return zero, finalError(err, class, attempts, operation)
}

func finalError(err error, class ErrorClass, attempts int, operation string) *apperrors.AppError {
	var appErr *apperrors.AppError
	if class.Retryable() {
		appErr = apperrors.DBConnectionFailed(err)
	} else {
		appErr = apperrors.DBQueryFailed(err)
	}
	return appErr.WithDetails(map[string]any{
		"original_message": OriginalMessage(err),
		"error_class":      string(class),
		"attempts":         attempts,
		"operation":        operation,
	})
}

// OriginalMessage returns the driver-level message of err, looking through
// AppError causes and *Error wrappers.
func OriginalMessage(err error) string {
	for {
		var dbErr *Error
		if errors.As(err, &dbErr) && dbErr.Err != nil {
			return dbErr.Err.Error()
		}
		appErr, ok := apperrors.AsAppError(err)
		if !ok || appErr.Cause == nil {
			return err.Error()
		}
		err = appErr.Cause
	}
}

// HealthCheck runs a trivial query and reports whether it succeeded. It never
// returns an error; failures are logged. The query is abandoned after the
// retry policy's per-attempt timeout, or defaultHealthTimeout when unset.
func (e *Executor) HealthCheck(ctx context.Context, conn Connection) bool {
	timeout := e.cfg.Retry.Timeout
	if timeout <= 0 {
		timeout = defaultHealthTimeout
	}
	found, err := resilience.Retry(ctx, resilience.RetryConfig{MaxAttempts: 1, Timeout: timeout},
		func(ctx context.Context) (bool, error) {
			var one int
			return conn.Prepare("SELECT 1").First(ctx, &one)
		})
	if err != nil {
		e.log.WithContext(ctx).Warn("database health check failed", map[string]interface{}{
			logger.FieldErrorClass: string(Classify(err)),
			logger.FieldError:      err.Error(),
		})
		return false
	}
	return found
}
