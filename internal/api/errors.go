package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// APIError is returned for any non-2xx response from the backend.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (HTTP %d)", e.Message, e.Status)
}

// IsNotFound reports whether err is an APIError with status 404.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// ErrorText reads a non-2xx response body as plain text, unchanged. Only an
// empty body falls back to the HTTP status text.
func ErrorText(resp *http.Response) string {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if len(body) == 0 {
		return http.StatusText(resp.StatusCode)
	}
	return string(body)
}

// newAPIError unwraps a {"detail": "..."} body when present. Validation
// errors carry a list in detail, which is kept as raw text.
func newAPIError(resp *http.Response) *APIError {
	text := strings.TrimSpace(ErrorText(resp))
	if text == "" {
		text = http.StatusText(resp.StatusCode)
	}
	var body struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal([]byte(text), &body); err == nil && len(body.Detail) > 0 {
		var detail string
		if json.Unmarshal(body.Detail, &detail) == nil && detail != "" {
			text = detail
		}
	}
	return &APIError{Status: resp.StatusCode, Message: text}
}
