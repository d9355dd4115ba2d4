package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/pkg/errors"
)

// Error codes mirrored from the service's error envelope. Status 0 marks a
// transport-level failure that never produced an HTTP response.
const (
	CodeNetwork         = "NETWORK_ERROR"
	CodeSessionNotFound = "SESSION_NOT_FOUND"
	CodeSessionExpired  = "SESSION_EXPIRED"
	CodeInvalidMessage  = "INVALID_MESSAGE"
	CodeBriefNotFound   = "BRIEF_NOT_FOUND"
	CodeValidation      = "VALIDATION_ERROR"
	CodeRateLimited     = "RATE_LIMIT_EXCEEDED"
)

// Error is a classified request failure. Every failed call of the client
// returns one of these (possibly wrapped), so callers can branch on
// Retryable and SessionGone without string matching.
type Error struct {
	Status  int
	Code    string
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("request failed: %s", e.Message)
	}
	if e.Code != "" {
		return fmt.Sprintf("service error [%d %s]: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("service error [%d]: %s", e.Status, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// Retryable reports whether a retry of the same request can reasonably
// succeed: network failures, timeouts, 5xx and rate limiting qualify, any
// other 4xx does not.
func (e *Error) Retryable() bool {
	if e.Status == 0 {
		return true
	}
	return e.Status >= http.StatusInternalServerError || e.Status == http.StatusTooManyRequests
}

// SessionGone reports whether the server says the session can no longer be
// used at all.
func (e *Error) SessionGone() bool {
	switch e.Code {
	case CodeSessionNotFound, CodeSessionExpired:
		return true
	}
	return e.Status == http.StatusGone
}

// IsRetryable reports whether err is (or wraps) a retryable request failure.
func IsRetryable(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Retryable()
}

// IsSessionGone reports whether err indicates the session is expired or
// unknown to the server.
func IsSessionGone(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.SessionGone()
}

func networkError(err error) *Error {
	return &Error{Status: 0, Code: CodeNetwork, Message: err.Error(), cause: err}
}

// errorEnvelope matches the service's structured error body. FastAPI-style
// plain HTTP errors only carry "detail".
type errorEnvelope struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Detail  string `json:"detail"`
}

func statusError(status int, body []byte) *Error {
	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err == nil {
		msg := env.Message
		if msg == "" {
			msg = env.Detail
		}
		if msg != "" || env.Error != "" {
			return &Error{Status: status, Code: env.Error, Message: msg}
		}
	}
	return &Error{Status: status, Message: string(body)}
}
