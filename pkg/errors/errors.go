package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness. Codes are part of
// the API contract and must stay stable across releases.
type Error struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Status  int                    `json:"status"`
	Details map[string]interface{} `json:"details,omitempty"`
	Err     error                  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Predefined errors covering the clock state machine outcomes.
var (
	ErrValidation          = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrAlreadyClockedIn    = New("ALREADY_CLOCKED_IN", http.StatusConflict, "student already has an active attendance session")
	ErrNoActiveSession     = New("NO_ACTIVE_SESSION", http.StatusConflict, "no active attendance session for student")
	ErrLocationTooFar      = New("LOCATION_TOO_FAR", http.StatusUnprocessableEntity, "location is outside the site geofence")
	ErrLocationAccuracyLow = New("LOCATION_ACCURACY_TOO_LOW", http.StatusUnprocessableEntity, "location fix is too coarse to validate")
	ErrFutureTimestamp     = New("FUTURE_TIMESTAMP", http.StatusBadRequest, "timestamp is in the future")
	ErrSessionTooShort     = New("SESSION_TOO_SHORT", http.StatusUnprocessableEntity, "session duration below minimum")
	ErrSessionTooLong      = New("SESSION_TOO_LONG", http.StatusUnprocessableEntity, "session duration above maximum")
	ErrDatabase            = New("DATABASE_ERROR", http.StatusInternalServerError, "datastore operation failed")
	ErrServiceUnavailable  = New("SERVICE_UNAVAILABLE", http.StatusServiceUnavailable, "service temporarily unavailable")
	ErrNotFound            = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrUnauthorized        = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrForbidden           = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrCacheMiss           = New("CACHE_MISS", http.StatusNotFound, "cache miss")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrDatabase.Code, ErrDatabase.Status, ErrDatabase.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}

// WithDetails returns a copy of the error carrying structured details, e.g.
// the measured geofence distance or the offending field.
func WithDetails(err *Error, details map[string]interface{}) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	clone.Details = details
	return &clone
}

// IsCode reports whether err carries the given stable code.
func IsCode(err error, code string) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}
