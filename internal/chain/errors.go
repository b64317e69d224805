package chain

import (
	"context"
	"errors"
	"net"
	"net/http"
)

// HTTPError carries the response status from a failed chain call so
// IsRetryable can classify it without string-matching.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return http.StatusText(e.StatusCode) + ": " + e.Body
}

// IsRetryable classifies a chain adapter error the way the Batch
// Submitter and Derived-State Orchestrator need to: transport-level
// failures and 5xx responses are worth a future retry (the record
// stays pending and is picked up on the next batch run); 4xx and
// protocol errors are not, since they will fail identically again.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode >= 500
	}
	return false
}
