package model

import (
	"fmt"
	"time"
)

// HTTPError wraps an HTTP status code from an external service so retry logic
// can inspect it.
type HTTPError struct {
	Service    string        // "provider", "openai", "slack", ...
	StatusCode int
	RetryAfter time.Duration // from Retry-After header, zero if absent
	Err        error
}

func (e *HTTPError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: HTTP %d: %v", e.Service, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: HTTP %d", e.Service, e.StatusCode)
}

func (e *HTTPError) Unwrap() error {
	return e.Err
}

// Transient reports whether the status is worth retrying (429 or 5xx).
func (e *HTTPError) Transient() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}
