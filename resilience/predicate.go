package resilience

import (
	"context"
	"errors"
	"net"
	"strings"
)

// DefaultRetryableStatuses are the HTTP statuses worth retrying for
// outbound network and service calls.
var DefaultRetryableStatuses = []int{408, 429, 500, 502, 503, 504}

// StatusCoder is implemented by errors that carry an HTTP status code.
type StatusCoder interface {
	StatusCode() int
}

var networkKeywords = []string{
	"timeout",
	"timed out",
	"connection",
	"network",
	"econnreset",
	"econnrefused",
	"broken pipe",
	"no such host",
	"temporarily unavailable",
}

// IsRetryableNetworkError reports whether err from a network or service call
// is transient. Status-carrying errors are judged by statuses alone; other
// errors are judged by type and then by message keywords. Caller
// cancellation is never retryable.
func IsRetryableNetworkError(err error, statuses []int) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}

	var sc StatusCoder
	if errors.As(err, &sc) {
		code := sc.StatusCode()
		for _, s := range statuses {
			if s == code {
				return true
			}
		}
		return false
	}

	if errors.Is(err, ErrAttemptTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, kw := range networkKeywords {
		if strings.Contains(msg, kw) {
			return true
		}
	}
	return false
}

// NetworkRetryIf returns a RetryIf predicate for network calls. With no
// statuses given it uses DefaultRetryableStatuses.
func NetworkRetryIf(statuses ...int) func(error) bool {
	if len(statuses) == 0 {
		statuses = DefaultRetryableStatuses
	}
	set := append([]int(nil), statuses...)
	return func(err error) bool {
		return IsRetryableNetworkError(err, set)
	}
}
