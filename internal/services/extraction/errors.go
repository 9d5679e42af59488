package extraction

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/openai/openai-go/v3"
)

// ErrNoChoicesInResponse is returned when a completion carries no choices
var ErrNoChoicesInResponse = errors.New("no choices in response")

// APIError represents a non-success response from an extraction backend
type APIError struct {
	Backend    string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s error (status %d): %s", e.Backend, e.StatusCode, e.Message)
}

// IsRateLimitError checks if an error is a rate limit error
func IsRateLimitError(err error) bool {
	if err == nil {
		return false
	}

	if status, ok := statusCode(err); ok {
		return status == http.StatusTooManyRequests
	}

	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "too many requests")
}

// IsTimeout checks if an error came from a deadline or network timeout
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// ErrorKind labels an extraction failure for logs and traces
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.Canceled):
		return "canceled"
	case IsTimeout(err):
		return "timeout"
	case IsRateLimitError(err):
		return "rate_limited"
	}
	if _, ok := statusCode(err); ok {
		return "status_error"
	}
	return "transport"
}

// statusCode reports the HTTP status carried by an extraction service
// APIError or an OpenAI SDK error.
func statusCode(err error) (int, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode, true
	}
	var oaErr *openai.Error
	if errors.As(err, &oaErr) {
		return oaErr.StatusCode, true
	}
	return 0, false
}
