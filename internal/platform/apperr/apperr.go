// Package apperr defines the error taxonomy shared by every domain service.
// Services return *Error values; the HTTP layer maps them to status codes.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an application error.
type Kind string

const (
	KindValidation      Kind = "VALIDATION_ERROR"
	KindInvalidSchedule Kind = "INVALID_SCHEDULE"
	KindSlotTaken       Kind = "SLOT_TAKEN"
	KindInvalidDoctor   Kind = "INVALID_DOCTOR"
	KindNotFound        Kind = "NOT_FOUND"
	KindUnauthenticated Kind = "UNAUTHENTICATED"
	KindForbidden       Kind = "FORBIDDEN"
	KindStore           Kind = "STORE_ERROR"
)

// Sentinels usable with errors.Is.
var (
	ErrValidation      = &Error{Kind: KindValidation}
	ErrInvalidSchedule = &Error{Kind: KindInvalidSchedule}
	ErrSlotTaken       = &Error{Kind: KindSlotTaken}
	ErrInvalidDoctor   = &Error{Kind: KindInvalidDoctor}
	ErrNotFound        = &Error{Kind: KindNotFound}
	ErrUnauthenticated = &Error{Kind: KindUnauthenticated}
	ErrForbidden       = &Error{Kind: KindForbidden}
	ErrStore           = &Error{Kind: KindStore}
)

// Error is an application error with a kind, a human-readable message and,
// for validation failures, the offending field.
type Error struct {
	Kind    Kind
	Field   string
	Message string
	Err     error

	// RequiresRegistration marks an anonymous caller that must sign up first.
	// RedirectTo, when set, is where the client should send the user next.
	RequiresRegistration bool
	RedirectTo           string
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Field != "" {
		msg = e.Field + ": " + msg
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// WithRedirect returns a copy of e pointing the client at path.
func (e *Error) WithRedirect(path string) *Error {
	cp := *e
	cp.RedirectTo = path
	return &cp
}

// Is matches any *Error of the same kind, so errors.Is(err, ErrSlotTaken) works
// for every slot-taken error regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Validation reports malformed input on a single field.
func Validation(field, message string) *Error {
	return &Error{Kind: KindValidation, Field: field, Message: message}
}

// InvalidSchedule reports a date or time that cannot be parsed.
func InvalidSchedule(message string) *Error {
	return &Error{Kind: KindInvalidSchedule, Message: message}
}

// SlotTaken reports that the requested slot collides with an existing booking.
func SlotTaken() *Error {
	return &Error{Kind: KindSlotTaken, Message: "That time slot just became unavailable. Please choose another."}
}

// InvalidDoctor reports a doctor that does not exist or is not bookable.
func InvalidDoctor(id string) *Error {
	return &Error{Kind: KindInvalidDoctor, Message: fmt.Sprintf("doctor %s is not available for booking", id)}
}

// NotFound reports a missing entity.
func NotFound(resource, id string) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf("%s %s not found", resource, id)}
}

// Unauthenticated reports a missing caller identity.
func Unauthenticated(message string) *Error {
	return &Error{Kind: KindUnauthenticated, Message: message}
}

// RegistrationRequired reports an anonymous caller attempting a write.
func RegistrationRequired(message string) *Error {
	return &Error{Kind: KindUnauthenticated, Message: message, RequiresRegistration: true}
}

// Forbidden reports a caller without access to the entity.
func Forbidden(message string) *Error {
	return &Error{Kind: KindForbidden, Message: message}
}

// Store wraps a backend failure. The message shown to callers stays generic.
func Store(op string, err error) *Error {
	return &Error{Kind: KindStore, Message: "Something went wrong on our side. Please try again.", Err: fmt.Errorf("%s: %w", op, err)}
}

// KindOf returns the kind of err, or "" when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// HTTPStatus maps an error to its HTTP status code.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation, KindInvalidSchedule:
		return http.StatusBadRequest
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound, KindInvalidDoctor:
		return http.StatusNotFound
	case KindSlotTaken:
		return http.StatusConflict
	case KindStore:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
