// Package apperrors defines the closed error taxonomy shared by every
// domain operation. Handlers convert these to the response envelope in
// exactly one place; domain code never touches HTTP status codes.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind discriminates the taxonomy. New kinds require a Status mapping.
type Kind int

const (
	KindInternal Kind = iota
	KindInvalidUUID
	KindValidation
	KindInvalidToken
	KindInvalidCredentials
	KindInvalidMfaCode
	KindMfaRequired
	KindUnauthorized
	KindForbidden
	KindUserDisabled
	KindSystemUserModification
	KindNotFound
	KindNoUpdatesApplied
	KindDatabase
)

// Error is the single error shape crossing package boundaries.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Status maps the kind to its HTTP status. NoUpdatesApplied is a 200
// on purpose: an empty PATCH diff is a success with a distinct message.
func (e *Error) Status() int {
	switch e.Kind {
	case KindInvalidUUID, KindValidation:
		return http.StatusBadRequest
	case KindInvalidToken, KindInvalidCredentials, KindInvalidMfaCode, KindMfaRequired, KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden, KindUserDisabled, KindSystemUserModification:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindNoUpdatesApplied:
		return http.StatusOK
	default:
		return http.StatusInternalServerError
	}
}

func InvalidUUID(raw string) *Error {
	return &Error{Kind: KindInvalidUUID, Message: fmt.Sprintf("Invalid UUID: %s", raw)}
}

func Validation(message string) *Error {
	return &Error{Kind: KindValidation, Message: message}
}

func InvalidToken(message string) *Error {
	return &Error{Kind: KindInvalidToken, Message: message}
}

func InvalidCredentials() *Error {
	return &Error{Kind: KindInvalidCredentials, Message: "Invalid credentials!"}
}

func InvalidMfaCode() *Error {
	return &Error{Kind: KindInvalidMfaCode, Message: "Invalid MFA code!"}
}

func MfaRequired(message string) *Error {
	return &Error{Kind: KindMfaRequired, Message: message}
}

func Unauthorized(message string) *Error {
	return &Error{Kind: KindUnauthorized, Message: message}
}

func Forbidden(message string) *Error {
	return &Error{Kind: KindForbidden, Message: message}
}

func UserDisabled() *Error {
	return &Error{Kind: KindUserDisabled, Message: "User is disabled!"}
}

func SystemUserModification() *Error {
	return &Error{Kind: KindSystemUserModification, Message: "System user cannot be modified!"}
}

func NotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

func NoUpdatesApplied() *Error {
	return &Error{Kind: KindNoUpdatesApplied, Message: "No updates applied."}
}

func Database(err error) *Error {
	return &Error{Kind: KindDatabase, Message: "Database error", Err: err}
}

func Internal(message string, err error) *Error {
	return &Error{Kind: KindInternal, Message: message, Err: err}
}

// From normalizes any error to an *Error, wrapping unknown errors as
// internal so no raw error text leaks into responses.
func From(err error) *Error {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return &Error{Kind: KindInternal, Message: "Internal server error", Err: err}
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var appErr *Error
	return errors.As(err, &appErr) && appErr.Kind == kind
}
