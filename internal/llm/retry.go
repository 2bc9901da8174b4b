package llm

import (
	"context"
	"errors"
	"net"

	"google.golang.org/api/googleapi"
)

// IsRetryable reports whether a provider error is transient: rate limits,
// server-side failures, and network timeouts qualify. Context cancellation
// and client-side errors do not.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == 429 || apiErr.Code >= 500
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}

	var opErr *net.OpError
	return errors.As(err, &opErr)
}
