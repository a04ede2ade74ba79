// Package errors provides the structured application error used across satkit.
// Every failure that crosses a package boundary toward a request handler is an
// *AppError carrying a stable code, an HTTP status and retryability, so that
// handlers can pattern-match on the code instead of on error text.
package errors
