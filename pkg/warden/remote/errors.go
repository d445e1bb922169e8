package remote

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrUnauthorized matches APIErrors with status 401 or 403.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNotFound matches APIErrors with status 404.
	ErrNotFound = errors.New("not found")

	// ErrIDMismatch is returned when an update names a different policy
	// than the one it carries.
	ErrIDMismatch = errors.New("policy id does not match request id")
)

// APIError is a non-2xx response from the authority.
type APIError struct {
	// Method and Path identify the failed request.
	Method string
	Path   string

	// StatusCode is the HTTP status of the response.
	StatusCode int

	// Message is the best human readable explanation found in the body.
	Message string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("warden %s %s: status %d: %s", e.Method, e.Path, e.StatusCode, msg)
}

// Is lets errors.Is match the status class sentinels.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	}
	return false
}

// Temporary reports whether retrying the request may succeed.
func (e *APIError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}
