package errors

import (
	stderrors "errors"
)

// Error classes reported to clients so they can decide between retrying,
// degrading and giving up without parsing codes.
const (
	ClassCircuitOpen = "circuit_open"
	ClassTransaction = "transaction"
	ClassTransient   = "transient"
	ClassApplication = "application"
)

// ErrorResponse is the JSON envelope written for a failed request.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// ErrorBody is the machine-readable part of ErrorResponse. Details carries
// per-code context such as the dependency name and attempt count.
type ErrorBody struct {
	Code       ErrorCode      `json:"code"`
	ErrorClass string         `json:"error_class"`
	Message    string         `json:"message"`
	Retryable  bool           `json:"retryable"`
	Status     int            `json:"status"`
	Details    map[string]any `json:"details,omitempty"`
}

// Class groups the error for callers: a fail-fast breaker rejection, a
// failed unit of work, a transient failure worth retrying later, or an
// application error that will not succeed on retry.
func (e *AppError) Class() string {
	switch {
	case e.Code == ErrCodeCircuitOpen:
		return ClassCircuitOpen
	case e.Code == ErrCodeDBTransactionFailed:
		return ClassTransaction
	case e.Retryable:
		return ClassTransient
	default:
		return ClassApplication
	}
}

// ToResponse builds the client body. Details are copied so later mutation of
// the error does not leak into a response being encoded.
func (e *AppError) ToResponse() ErrorResponse {
	var details map[string]any
	if len(e.Details) > 0 {
		details = make(map[string]any, len(e.Details))
		for k, v := range e.Details {
			details[k] = v
		}
	}
	return ErrorResponse{
		Error: ErrorBody{
			Code:       e.Code,
			ErrorClass: e.Class(),
			Message:    e.Message,
			Retryable:  e.Retryable,
			Status:     e.HTTPStatus,
			Details:    details,
		},
	}
}

// IsAppError reports whether err has an AppError in its chain.
func IsAppError(err error) bool {
	_, ok := AsAppError(err)
	return ok
}

// AsAppError returns the first AppError in err's chain.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}
