package ouro

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/crystaldolphin/hermes/internal/schema"
)

// ErrNotFound is matched by errors.Is for 404 responses.
var ErrNotFound = schema.ErrNotFound

// APIError is a failure reported by the backend.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("ouro: %s %s: HTTP %d: %s", e.Method, e.Path, e.StatusCode, e.Message)
}

// Is makes errors.Is(err, ErrNotFound) true for 404 responses.
func (e *APIError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

func newAPIError(method, path string, status int, errField json.RawMessage, raw []byte) *APIError {
	return &APIError{
		Method:     method,
		Path:       path,
		StatusCode: status,
		Message:    errorMessage(errField, raw),
	}
}

// errorMessage extracts a readable message from the envelope's error field,
// which the backend sends either as a string or as an object with a message.
func errorMessage(errField json.RawMessage, raw []byte) string {
	if hasValue(errField) {
		var s string
		if json.Unmarshal(errField, &s) == nil {
			return s
		}
		var obj struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(errField, &obj) == nil && obj.Message != "" {
			return obj.Message
		}
		return string(errField)
	}
	s := strings.TrimSpace(string(raw))
	if len(s) > 300 {
		s = s[:300]
	}
	return s
}
