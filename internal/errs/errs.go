package errs

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for API responses and retry decisions.
type Kind string

const (
	PathNotFound         Kind = "PATH_NOT_FOUND"
	PathForbidden        Kind = "PATH_FORBIDDEN"
	InvalidOrUnsafePath  Kind = "INVALID_OR_UNSAFE_PATH"
	ValidationError      Kind = "VALIDATION_ERROR"
	Unauthorized         Kind = "UNAUTHORIZED"
	InvalidToken         Kind = "INVALID_TOKEN"
	TokenExpired         Kind = "TOKEN_EXPIRED"
	InvalidQuery         Kind = "INVALID_QUERY"
	SearchUnavailable    Kind = "SEARCH_UNAVAILABLE"
	AIQuotaExceeded      Kind = "AI_QUOTA_EXCEEDED"
	SettingsUpdateFailed Kind = "SETTINGS_UPDATE_FAILED"
	Internal             Kind = "INTERNAL_ERROR"
	SQLiteBusy           Kind = "SQLITE_BUSY"
	SQLiteTimeout        Kind = "SQLITE_TIMEOUT"
)

// Error carries a Kind, a user-facing message, and an optional cause.
// The cause is for logs only; messages sent to clients come from Message.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// E constructs an Error. The cause may be nil.
func E(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

// Ef constructs an Error with a formatted message and no cause.
func Ef(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf extracts the Kind from an error chain. Errors that never received
// a kind classify as Internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// MessageOf returns the user-facing message for an error chain. Unknown
// errors get a generic message so internal details never leak to clients.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return "internal server error"
}

// Is reports whether the error chain carries the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// HTTPStatus maps a Kind to its response status code. The mapping is a
// pure function so handlers and middleware agree on it.
func HTTPStatus(kind Kind) int {
	switch kind {
	case PathNotFound:
		return http.StatusNotFound
	case PathForbidden:
		return http.StatusForbidden
	case InvalidOrUnsafePath, ValidationError, InvalidQuery:
		return http.StatusBadRequest
	case Unauthorized, InvalidToken, TokenExpired:
		return http.StatusUnauthorized
	case SearchUnavailable:
		return http.StatusServiceUnavailable
	case AIQuotaExceeded:
		return http.StatusTooManyRequests
	case SettingsUpdateFailed:
		return http.StatusBadGateway
	case SQLiteBusy:
		return http.StatusServiceUnavailable
	case SQLiteTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
