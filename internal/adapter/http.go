package adapter

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// maxRetryAfter caps how long the provider may ask a search to back off.
const maxRetryAfter = 5 * time.Minute

// parseRetryAfter parses the Retry-After header value into a duration.
func parseRetryAfter(value string) time.Duration {
	return retryAfterAt(value, time.Now())
}

// retryAfterAt accepts both delta-seconds ("120") and an HTTP-date. Dates in
// the past, negative or unparseable values yield zero; anything beyond
// maxRetryAfter is capped.
func retryAfterAt(value string, now time.Time) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}

	var d time.Duration
	if seconds, err := strconv.Atoi(value); err == nil {
		d = time.Duration(seconds) * time.Second
	} else if at, err := http.ParseTime(value); err == nil {
		d = at.Sub(now).Round(time.Second)
	}

	if d <= 0 {
		return 0
	}
	return min(d, maxRetryAfter)
}
