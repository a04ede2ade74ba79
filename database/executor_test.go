package database

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	apperrors "github.com/kbukum/satkit/errors"
	"github.com/kbukum/satkit/logger"
	"github.com/kbukum/satkit/resilience"
)

type fakeStmt struct {
	sql   string
	args  []any
	first func(dest any) (bool, error)
}

func (s *fakeStmt) Bind(args ...any) Statement { return &fakeStmt{sql: s.sql, args: args, first: s.first} }
func (s *fakeStmt) First(_ context.Context, dest any) (bool, error) {
	return s.first(dest)
}
func (s *fakeStmt) All(context.Context, any) error      { return nil }
func (s *fakeStmt) Run(context.Context) (Result, error) { return Result{}, nil }
func (s *fakeStmt) SQL() string                         { return s.sql }
func (s *fakeStmt) Args() []any                         { return s.args }

type fakeConn struct {
	first func(dest any) (bool, error)
}

func (c *fakeConn) Prepare(sql string) Statement { return &fakeStmt{sql: sql, first: c.first} }

func testExecutor(buf *bytes.Buffer) *Executor {
	log := logger.NewWithWriter(buf, &logger.Config{Level: "info", Format: "json"}, "test")
	return NewExecutor(ExecutorConfig{Retry: resilience.RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		MaxDelay:    5 * time.Millisecond,
	}}, log)
}

func TestExecuteRetriesConnectionFailures(t *testing.T) {
	var buf bytes.Buffer
	exec := testExecutor(&buf)

	calls := 0
	got, err := Execute(context.Background(), exec, &fakeConn{}, "balances.get",
		func(ctx context.Context, conn Connection) (int, error) {
			calls++
			if calls < 3 {
				return 0, &Error{Class: ClassConnection, Err: errors.New("connection reset")}
			}
			return 42, nil
		})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 42 || calls != 3 {
		t.Errorf("expected 42 after 3 calls, got %d after %d", got, calls)
	}
	if !strings.Contains(buf.String(), "operation recovered after retry") {
		t.Error("expected a recovery log entry")
	}
}

func TestExecuteDoesNotRetryConstraintFailures(t *testing.T) {
	var buf bytes.Buffer
	exec := testExecutor(&buf)

	calls := 0
	_, err := Execute(context.Background(), exec, &fakeConn{}, "users.insert",
		func(ctx context.Context, conn Connection) (Result, error) {
			calls++
			return Result{}, NewError("run", errors.New("UNIQUE constraint failed: users.email"))
		})
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}

	appErr, ok := apperrors.AsAppError(err)
	if !ok {
		t.Fatalf("expected AppError, got %T", err)
	}
	if appErr.Code != apperrors.ErrCodeDBQueryFailed {
		t.Errorf("expected %s, got %s", apperrors.ErrCodeDBQueryFailed, appErr.Code)
	}
	want := map[string]any{
		"original_message": "UNIQUE constraint failed: users.email",
		"error_class":      "constraint",
		"attempts":         1,
		"operation":        "users.insert",
	}
	for k, v := range want {
		if appErr.Details[k] != v {
			t.Errorf("detail %s: expected %v, got %v", k, v, appErr.Details[k])
		}
	}
	if strings.Count(buf.String(), `"level":"error"`) != 1 {
		t.Errorf("expected exactly one error log entry, got:\n%s", buf.String())
	}
}

func TestExecuteExhaustedConnectionFailure(t *testing.T) {
	var buf bytes.Buffer
	exec := testExecutor(&buf)

	cause := &Error{Class: ClassConnection, Err: errors.New("connection refused")}
	calls := 0
	_, err := Execute(context.Background(), exec, &fakeConn{}, "ledger.list",
		func(ctx context.Context, conn Connection) ([]int, error) {
			calls++
			return nil, cause
		})
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}

	appErr, ok := apperrors.AsAppError(err)
	if !ok {
		t.Fatalf("expected AppError, got %T", err)
	}
	if appErr.Code != apperrors.ErrCodeDBConnectionFailed || !appErr.Retryable {
		t.Errorf("expected retryable %s, got %s", apperrors.ErrCodeDBConnectionFailed, appErr.Code)
	}
	if appErr.Details["attempts"] != 3 {
		t.Errorf("expected attempts 3, got %v", appErr.Details["attempts"])
	}
	if !errors.Is(err, cause) {
		t.Error("expected the original error to be preserved as cause")
	}
}

func TestExecuteOnceMakesSingleAttempt(t *testing.T) {
	var buf bytes.Buffer
	exec := testExecutor(&buf).Once()

	calls := 0
	_, _ = Execute(context.Background(), exec, &fakeConn{}, "commit",
		func(ctx context.Context, conn Connection) (int, error) {
			calls++
			return 0, &Error{Class: ClassTimeout, Err: context.DeadlineExceeded}
		})
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestHealthCheck(t *testing.T) {
	var buf bytes.Buffer
	exec := testExecutor(&buf)

	ok := exec.HealthCheck(context.Background(), &fakeConn{first: func(dest any) (bool, error) {
		*dest.(*int) = 1
		return true, nil
	}})
	if !ok {
		t.Error("expected healthy")
	}

	ok = exec.HealthCheck(context.Background(), &fakeConn{first: func(any) (bool, error) {
		return false, errors.New("connection refused")
	}})
	if ok {
		t.Error("expected unhealthy")
	}
	if !strings.Contains(buf.String(), "database health check failed") {
		t.Error("expected the failure to be logged")
	}
}

func TestHealthCheckAbandonsHungQuery(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewWithWriter(&buf, &logger.Config{Level: "info", Format: "json"}, "test")
	exec := NewExecutor(ExecutorConfig{Retry: resilience.RetryConfig{Timeout: 20 * time.Millisecond}}, log)

	hang := make(chan struct{})
	defer close(hang)

	start := time.Now()
	ok := exec.HealthCheck(context.Background(), &fakeConn{first: func(any) (bool, error) {
		<-hang
		return true, nil
	}})
	if ok {
		t.Error("expected a hung query to report unhealthy")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("expected health check to give up after its timeout, took %s", elapsed)
	}
	if !strings.Contains(buf.String(), "database health check failed") {
		t.Error("expected the timeout to be logged")
	}
}
