package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Connection/Availability errors (retryable)
const (
	// ErrCodeServiceUnavailable indicates the service is temporarily unavailable.
	ErrCodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
	// ErrCodeCircuitOpen indicates a dependency is short-circuited by an open breaker.
	ErrCodeCircuitOpen ErrorCode = "CIRCUIT_OPEN"
	// ErrCodeTimeout indicates the request timed out.
	ErrCodeTimeout ErrorCode = "TIMEOUT"
	// ErrCodeRateLimited indicates the client is rate limited.
	ErrCodeRateLimited ErrorCode = "RATE_LIMITED"
	// ErrCodeRetriesExhausted indicates every retry attempt against a dependency failed.
	ErrCodeRetriesExhausted ErrorCode = "RETRIES_EXHAUSTED"
)

// Database errors
const (
	// ErrCodeDBConnectionFailed indicates the database could not be reached
	// (connection or timeout class) after all retries.
	ErrCodeDBConnectionFailed ErrorCode = "DB_CONNECTION_FAILED"
	// ErrCodeDBQueryFailed indicates a query failed for a non-transient reason.
	ErrCodeDBQueryFailed ErrorCode = "DB_QUERY_FAILED"
	// ErrCodeDBTransactionFailed indicates a unit of work was rolled back.
	ErrCodeDBTransactionFailed ErrorCode = "DB_TRANSACTION_FAILED"
)

// Resource and validation errors
const (
	// ErrCodeNotFound indicates the requested resource was not found.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
	// ErrCodeAlreadyExists indicates the resource already exists.
	ErrCodeAlreadyExists ErrorCode = "ALREADY_EXISTS"
	// ErrCodeInvalidInput indicates the input is invalid.
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
)

// Internal errors
const (
	// ErrCodeInternal indicates an internal server error.
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
	// ErrCodeExternalService indicates an error from an external service.
	ErrCodeExternalService ErrorCode = "EXTERNAL_SERVICE_ERROR"
)

var retryableCodes = map[ErrorCode]bool{
	ErrCodeServiceUnavailable: true,
	ErrCodeCircuitOpen:        true,
	ErrCodeTimeout:            true,
	ErrCodeRateLimited:        true,
	ErrCodeRetriesExhausted:   true,
	ErrCodeDBConnectionFailed: true,
	ErrCodeExternalService:    true,
	ErrCodeDBQueryFailed:      false,
	ErrCodeInternal:           false,
}

// IsRetryableCode returns true if the error code indicates a retryable error.
func IsRetryableCode(code ErrorCode) bool {
	return retryableCodes[code]
}
