package request

import (
	"errors"
	"fmt"
	"net"
)

// StatusError is a non-2xx response from a provider.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("api error: status %d", e.Code)
	}
	return fmt.Sprintf("api error: status %d: %s", e.Code, e.Body)
}

// IsRetryable reports whether an error is worth retrying: network errors,
// timeouts, rate limits and server-side failures. Client errors (bad
// request, auth, missing resource) are permanent.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return retryableStatus(statusErr.Code)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	// The client wraps exhausted retries around the last cause; treat the
	// chain as retryable when the cause was.
	return false
}
