package providers

import (
	"fmt"
	"net/http"
	"strings"
)

// ProviderError is a failure reported by the completion endpoint, either as
// a non-200 response or as an error object inside the event stream.
type ProviderError struct {
	StatusCode int
	Type       string
	Message    string
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("provider: HTTP %d: %s", e.StatusCode, e.Message)
	}
	if e.Type != "" {
		return fmt.Sprintf("provider: %s: %s", e.Type, e.Message)
	}
	return "provider: " + e.Message
}

// Retryable reports whether the same request may succeed later.
func (e *ProviderError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

func friendlyHTTPError(code int, body []byte) string {
	if code == http.StatusTooManyRequests {
		return "rate limit exceeded"
	}
	s := strings.TrimSpace(string(body))
	if len(s) > 300 {
		s = s[:300]
	}
	return s
}
