package api

import (
	"errors"
	"fmt"
	"time"
)

// APIError represents a non-2xx response from the platform backend.
type APIError struct {
	StatusCode int            `json:"-"`
	Detail     string         `json:"detail,omitempty"`
	Raw        map[string]any `json:"-"`
	RequestID  string         `json:"-"`
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		if e.RequestID != "" {
			return fmt.Sprintf("api error: status=%d request_id=%s detail=%s", e.StatusCode, e.RequestID, e.Detail)
		}
		return fmt.Sprintf("api error: status=%d detail=%s", e.StatusCode, e.Detail)
	}
	if e.RequestID != "" {
		return fmt.Sprintf("api error: status=%d request_id=%s", e.StatusCode, e.RequestID)
	}
	return fmt.Sprintf("api error: status=%d", e.StatusCode)
}

// NameConflictError indicates a 409, e.g. a dataset name already used in the session.
type NameConflictError struct{ *APIError }

func (e *NameConflictError) Error() string { return fmt.Sprintf("name conflict: %s", e.APIError.Error()) }
func (e *NameConflictError) Unwrap() error { return e.APIError }

// NotFoundError indicates a 404 for a session, dataset or user.
type NotFoundError struct{ *APIError }

func (e *NotFoundError) Error() string { return fmt.Sprintf("not found: %s", e.APIError.Error()) }
func (e *NotFoundError) Unwrap() error { return e.APIError }

// BadRequestError indicates malformed input rejected by the server (400/422).
type BadRequestError struct{ *APIError }

func (e *BadRequestError) Error() string { return fmt.Sprintf("bad request: %s", e.APIError.Error()) }
func (e *BadRequestError) Unwrap() error { return e.APIError }

// AuthError indicates authentication/authorization failures (401/403).
type AuthError struct{ *APIError }

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed: %s", e.APIError.Error())
}
func (e *AuthError) Unwrap() error { return e.APIError }

// RateLimitError indicates 429 responses and may include a Retry-After.
type RateLimitError struct {
	*APIError
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited: wait about %ds before retrying: %s", int(e.RetryAfter.Seconds()), e.APIError.Error())
	}
	return fmt.Sprintf("rate limited: %s", e.APIError.Error())
}
func (e *RateLimitError) Unwrap() error { return e.APIError }

// ServerError indicates 5xx errors from the backend.
type ServerError struct{ *APIError }

func (e *ServerError) Error() string { return fmt.Sprintf("server error: %s", e.APIError.Error()) }
func (e *ServerError) Unwrap() error { return e.APIError }

// UnreachableError indicates the backend could not be reached at all.
type UnreachableError struct {
	Host string
	Err  error
}

func (e *UnreachableError) Error() string {
	if e == nil {
		return "unreachable"
	}
	if e.Host != "" {
		return fmt.Sprintf("backend unreachable at %s: %v", e.Host, e.Err)
	}
	return fmt.Sprintf("backend unreachable: %v", e.Err)
}

func (e *UnreachableError) Unwrap() error { return e.Err }

// StatusOf returns the HTTP status carried by err, if any.
func StatusOf(err error) (int, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr != nil {
		return apiErr.StatusCode, true
	}
	return 0, false
}

// DetailOf returns the server-supplied human-readable detail carried by err.
func DetailOf(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr != nil {
		return apiErr.Detail
	}
	return ""
}
