// internal/matching/errors.go
// Typed, user-facing errors of the matching engine

package matching

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a domain error for callers and the HTTP layer
type ErrorKind string

const (
	KindNotFound     ErrorKind = "NOT_FOUND"
	KindConflict     ErrorKind = "CONFLICT"
	KindExpired      ErrorKind = "OFFER_EXPIRED"
	KindValidation   ErrorKind = "VALIDATION"
	KindUnauthorized ErrorKind = "UNAUTHORIZED"
)

// Error is a domain error with a kind and a user-facing message
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error with the same kind and message, so wrapped
// copies of a sentinel still satisfy errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Message == t.Message
}

var (
	ErrRequestNotFound    = &Error{Kind: KindNotFound, Message: "match request not found"}
	ErrTutorNotFound      = &Error{Kind: KindNotFound, Message: "tutor not found"}
	ErrParentNotFound     = &Error{Kind: KindNotFound, Message: "parent not found"}
	ErrSessionNotFound    = &Error{Kind: KindNotFound, Message: "session not found"}
	ErrCurriculumNotFound = &Error{Kind: KindNotFound, Message: "subject or grade not found"}

	ErrOfferTaken       = &Error{Kind: KindConflict, Message: "match request is no longer available"}
	ErrNotMatched       = &Error{Kind: KindConflict, Message: "no tutor has been matched yet"}
	ErrAlreadyConfirmed = &Error{Kind: KindConflict, Message: "match request is already confirmed"}
	ErrNotCancellable   = &Error{Kind: KindConflict, Message: "match request can no longer be cancelled"}
	ErrOfferExpired     = &Error{Kind: KindExpired, Message: "match request has expired"}

	ErrNotOwner         = &Error{Kind: KindUnauthorized, Message: "match request belongs to another parent"}
	ErrTutorNotEligible = &Error{Kind: KindUnauthorized, Message: "tutor is not eligible for this request"}

	ErrStudentNotOwned = &Error{Kind: KindValidation, Message: "student does not belong to this parent"}
)

// NewValidationError wraps a payload problem
func NewValidationError(message string) *Error {
	return &Error{Kind: KindValidation, Message: message}
}

// KindOf returns the kind of a domain error, or "" for anything else
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsNotFound reports whether err is a NotFound domain error
func IsNotFound(err error) bool {
	return KindOf(err) == KindNotFound
}

// IsConflict reports whether err is a Conflict, including its Expired specialization
func IsConflict(err error) bool {
	k := KindOf(err)
	return k == KindConflict || k == KindExpired
}

// IsExpired reports whether err is an Expired domain error
func IsExpired(err error) bool {
	return KindOf(err) == KindExpired
}

// IsValidation reports whether err is a Validation domain error
func IsValidation(err error) bool {
	return KindOf(err) == KindValidation
}

// IsUnauthorized reports whether err is an Unauthorized domain error
func IsUnauthorized(err error) bool {
	return KindOf(err) == KindUnauthorized
}

func errInvalidState(msg string) error {
	return fmt.Errorf("invalid match request state: %s", msg)
}
