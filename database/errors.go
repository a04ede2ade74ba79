package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strings"

	"gorm.io/gorm"

	"github.com/kbukum/satkit/resilience"
)

// ErrorClass is the coarse category of a database failure.
type ErrorClass string

const (
	ClassConnection ErrorClass = "connection"
	ClassTimeout    ErrorClass = "timeout"
	ClassConstraint ErrorClass = "constraint"
	ClassSyntax     ErrorClass = "syntax"
	ClassUnknown    ErrorClass = "unknown"
)

// Retryable reports whether failures of this class may succeed on retry.
func (c ErrorClass) Retryable() bool {
	return c == ClassConnection || c == ClassTimeout
}

// Error is a classified database failure produced by an adapter at the point
// of origin.
type Error struct {
	Class ErrorClass
	Op    string
	Err   error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("database %s error: %v", e.Class, e.Err)
	}
	return fmt.Sprintf("database %s error in %s: %v", e.Class, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError classifies err and wraps it for op. A nil err returns nil.
func NewError(op string, err error) error {
	if err == nil {
		return nil
	}
	var dbErr *Error
	if errors.As(err, &dbErr) {
		return err
	}
	return &Error{Class: Classify(err), Op: op, Err: err}
}

// Classify returns the class of err. Typed errors are matched first; errors
// that crossed an untyped boundary fall back to message keywords, which is a
// best-effort heuristic.
func Classify(err error) ErrorClass {
	if err == nil {
		return ClassUnknown
	}

	var dbErr *Error
	if errors.As(err, &dbErr) {
		return dbErr.Class
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, resilience.ErrAttemptTimeout):
		return ClassTimeout
	case errors.Is(err, driver.ErrBadConn), errors.Is(err, sql.ErrConnDone):
		return ClassConnection
	case errors.Is(err, gorm.ErrDuplicatedKey),
		errors.Is(err, gorm.ErrForeignKeyViolated),
		errors.Is(err, gorm.ErrCheckConstraintViolated):
		return ClassConstraint
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return ClassTimeout
		}
		return ClassConnection
	}

	return classifyMessage(err.Error())
}

var classKeywords = []struct {
	class    ErrorClass
	keywords []string
}{
	{ClassTimeout, []string{"timeout", "timed out", "deadline exceeded"}},
	{ClassConnection, []string{
		"connection refused", "connection reset", "connection closed", "connection lost",
		"bad connection", "broken pipe", "no route to host", "network", "econnrefused",
		"too many connections", "database is closed", "unable to open database",
	}},
	{ClassConstraint, []string{"constraint", "unique", "duplicate", "foreign key", "not null"}},
	{ClassSyntax, []string{"syntax error", "no such table", "no such column", "near \"", "incomplete input"}},
}

func classifyMessage(msg string) ErrorClass {
	msg = strings.ToLower(msg)
	for _, group := range classKeywords {
		for _, kw := range group.keywords {
			if strings.Contains(msg, kw) {
				return group.class
			}
		}
	}
	return ClassUnknown
}

// IsRetryable reports whether err is in a retryable class.
func IsRetryable(err error) bool {
	return err != nil && Classify(err).Retryable()
}

var deadlockKeywords = []string{
	"deadlock",
	"database is locked",
	"database table is locked",
	"sqlite_busy",
	"lock wait timeout",
	"could not serialize access",
}

// IsDeadlock reports whether err signals lock contention that a fresh
// transaction attempt may resolve.
func IsDeadlock(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, kw := range deadlockKeywords {
		if strings.Contains(msg, kw) {
			return true
		}
	}
	return false
}

// IsNotFound reports whether err is GORM's record-not-found error.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
