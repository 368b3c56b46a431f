package apperr

import (
	"errors"
	"net/http"
)

// Error codes for the failure classes the push subsystem distinguishes.
// Transport errors are recoverable by the reconnect loop, protocol errors
// terminate the offending connection, auth failures must not be retried
// with the same token, and fetch failures leave local state stale until
// the next reconciliation attempt.
const (
	CodeTransport   = "transport_error"
	CodeProtocol    = "protocol_error"
	CodeAuthFailed  = "auth_failed"
	CodeFetchFailed = "fetch_failed"
	CodeNotFound    = "not_found"
	CodeBadRequest  = "bad_request"
	CodeInternal    = "internal_error"
)

type Error struct {
	Code       string
	Message    string
	StatusCode int
	Cause      error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func Unauthorized(code, message string) *Error {
	return &Error{Code: code, Message: message, StatusCode: http.StatusUnauthorized}
}

func BadRequest(code, message string) *Error {
	return &Error{Code: code, Message: message, StatusCode: http.StatusBadRequest}
}

func NotFound(code, message string) *Error {
	return &Error{Code: code, Message: message, StatusCode: http.StatusNotFound}
}

func Internal(code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, StatusCode: http.StatusInternalServerError, Cause: cause}
}

func Protocol(message string) *Error {
	return &Error{Code: CodeProtocol, Message: message, StatusCode: http.StatusBadRequest}
}

func AuthFailed(message string) *Error {
	return &Error{Code: CodeAuthFailed, Message: message, StatusCode: http.StatusUnauthorized}
}

func AsError(err error) *Error {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return nil
}

// IsAuthFailed reports whether err carries the auth_failed code. The client
// session uses this to stop reconnecting instead of looping with a token
// the hub has already rejected.
func IsAuthFailed(err error) bool {
	appErr := AsError(err)
	return appErr != nil && appErr.Code == CodeAuthFailed
}

func IsProtocol(err error) bool {
	appErr := AsError(err)
	return appErr != nil && appErr.Code == CodeProtocol
}
