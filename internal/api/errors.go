package api

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrTransport marks every failure that happened before a well-formed
// envelope could be read: network errors, timeouts, non-2xx statuses and
// undecodable bodies.
var ErrTransport = errors.New("transport error")

// HTTPError is returned for any non-2xx response. Callers treat 4xx and 5xx
// alike; the accessors exist for logging.
type HTTPError struct {
	Method     string
	Path       string
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s %s: HTTP error! status: %d: %s", e.Method, e.Path, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s %s: HTTP error! status: %d", e.Method, e.Path, e.StatusCode)
}

func (e *HTTPError) Is(target error) bool {
	return target == ErrTransport
}

func (e *HTTPError) ClientError() bool {
	return e.StatusCode >= http.StatusBadRequest && e.StatusCode < http.StatusInternalServerError
}

func (e *HTTPError) ServerError() bool {
	return e.StatusCode >= http.StatusInternalServerError
}

// Unauthorized reports a rejected or expired session.
func (e *HTTPError) Unauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized
}

// DomainError is a well-formed envelope with success=false.
type DomainError struct {
	Message string
}

func (e *DomainError) Error() string {
	if e.Message == "" {
		return "request rejected"
	}
	return e.Message
}

// IsUnauthorized reports whether err is a 401 from the backend.
func IsUnauthorized(err error) bool {
	var httpErr *HTTPError
	return errors.As(err, &httpErr) && httpErr.Unauthorized()
}
