package webhook

import "fmt"

const maxErrorBody = 512

// StatusError is a non-2xx response from the webhook endpoint.
type StatusError struct {
	Status int
	Body   []byte
}

func (e *StatusError) Error() string {
	if len(e.Body) == 0 {
		return fmt.Sprintf("webhook: HTTP %d", e.Status)
	}
	return fmt.Sprintf("webhook: HTTP %d: %s", e.Status, e.Body)
}

// StatusCode returns the HTTP status, which drives retry classification.
func (e *StatusError) StatusCode() int { return e.Status }
