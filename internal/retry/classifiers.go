package retry

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
)

// StatusError is a non-200 reply from the coordinator or the vision
// API, kept as an error so classifiers can see the status code.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return http.StatusText(e.StatusCode) + ": " + e.Body
}

// ClassifyHTTP classifies errors by HTTP status code
func ClassifyHTTP(statusCode int) ErrorType {
	switch {
	case statusCode == http.StatusTooManyRequests:
		return RateLimited
	case statusCode == http.StatusRequestTimeout,
		statusCode == http.StatusGatewayTimeout:
		return Retryable
	case statusCode >= 500 && statusCode < 600:
		// Server errors are generally retryable
		return Retryable
	case statusCode >= 400 && statusCode < 500:
		// Client errors (except 429) are permanent
		return Permanent
	default:
		return Permanent
	}
}

// ClassifyTransient classifies errors from coordinator round-trips.
// Network hiccups and server-side failures are transient; anything the
// coordinator rejected deliberately is permanent.
func ClassifyTransient(err error) ErrorType {
	if err == nil {
		return Permanent
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return ClassifyHTTP(statusErr.StatusCode)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return Retryable
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return Retryable
	}

	errStr := strings.ToLower(err.Error())

	if strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "too many requests") {
		return RateLimited
	}

	if strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "no such host") ||
		strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "timed out") ||
		strings.Contains(errStr, "temporary failure") ||
		strings.Contains(errStr, "unexpected eof") ||
		strings.Contains(errStr, "broken pipe") {
		return Retryable
	}

	return Permanent
}
