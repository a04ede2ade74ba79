package database

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"testing"

	"gorm.io/gorm"

	"github.com/kbukum/satkit/resilience"
)

type timeoutNetErr struct{ timeout bool }

func (e timeoutNetErr) Error() string   { return "dial tcp 10.0.0.1:5432: i/o" }
func (e timeoutNetErr) Timeout() bool   { return e.timeout }
func (e timeoutNetErr) Temporary() bool { return false }

var _ net.Error = timeoutNetErr{}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorClass
	}{
		{"nil", nil, ClassUnknown},
		{"typed error wins over message", &Error{Class: ClassConstraint, Err: errors.New("connection refused")}, ClassConstraint},
		{"wrapped typed error", fmt.Errorf("outer: %w", &Error{Class: ClassTimeout, Err: errors.New("x")}), ClassTimeout},
		{"deadline", context.DeadlineExceeded, ClassTimeout},
		{"attempt timeout", fmt.Errorf("%w: slow", resilience.ErrAttemptTimeout), ClassTimeout},
		{"bad conn", driver.ErrBadConn, ClassConnection},
		{"net timeout", timeoutNetErr{timeout: true}, ClassTimeout},
		{"net failure", timeoutNetErr{}, ClassConnection},
		{"duplicated key", gorm.ErrDuplicatedKey, ClassConstraint},
		{"foreign key", gorm.ErrForeignKeyViolated, ClassConstraint},
		{"keyword connection", errors.New("dial: connection refused"), ClassConnection},
		{"keyword timeout", errors.New("query timed out"), ClassTimeout},
		{"keyword constraint", errors.New("UNIQUE constraint failed: users.email"), ClassConstraint},
		{"keyword syntax", errors.New(`near "SELEC": syntax error`), ClassSyntax},
		{"missing table", errors.New("no such table: ledgers"), ClassSyntax},
		{"unknown", errors.New("something odd"), ClassUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestErrorClassRetryable(t *testing.T) {
	retryable := map[ErrorClass]bool{
		ClassConnection: true,
		ClassTimeout:    true,
		ClassConstraint: false,
		ClassSyntax:     false,
		ClassUnknown:    false,
	}
	for class, want := range retryable {
		if got := class.Retryable(); got != want {
			t.Errorf("%s: expected retryable=%v, got %v", class, want, got)
		}
	}
}

func TestNewError(t *testing.T) {
	if NewError("run", nil) != nil {
		t.Fatal("expected nil for nil error")
	}

	err := NewError("run", errors.New("connection reset by peer"))
	var dbErr *Error
	if !errors.As(err, &dbErr) {
		t.Fatalf("expected *Error, got %T", err)
	}
	if dbErr.Class != ClassConnection || dbErr.Op != "run" {
		t.Errorf("unexpected error %+v", dbErr)
	}

	again := NewError("batch", err)
	if again != err {
		t.Error("expected an already classified error to be returned unchanged")
	}
}

func TestIsDeadlock(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("deadlock detected"), true},
		{errors.New("database is locked"), true},
		{errors.New("SQLITE_BUSY: busy"), true},
		{errors.New("UNIQUE constraint failed"), false},
		{&Error{Class: ClassUnknown, Err: errors.New("Deadlock found when trying to get lock")}, true},
	}
	for _, tt := range tests {
		if got := IsDeadlock(tt.err); got != tt.want {
			t.Errorf("IsDeadlock(%v): expected %v, got %v", tt.err, tt.want, got)
		}
	}
}
