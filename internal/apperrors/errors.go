// Package apperrors defines the error kinds returned by the social core.
//
// Every service operation fails with an *Error whose Kind is one of the
// sentinels below, so callers can branch with errors.Is and read the
// machine-readable Reason with errors.As.
package apperrors

import (
	"errors"
	"fmt"
)

// Kind classifies an error for callers.
type Kind string

const (
	KindNotFound       Kind = "not_found"
	KindSelfReference  Kind = "self_reference"
	KindConflict       Kind = "conflict"
	KindInvalidState   Kind = "invalid_state"
	KindStorageFailure Kind = "storage_failure"
)

// Sentinels for errors.Is.
var (
	ErrNotFound       = &Error{Kind: KindNotFound}
	ErrSelfReference  = &Error{Kind: KindSelfReference}
	ErrConflict       = &Error{Kind: KindConflict}
	ErrInvalidState   = &Error{Kind: KindInvalidState}
	ErrStorageFailure = &Error{Kind: KindStorageFailure}
)

// Reasons carried by Conflict and InvalidState errors.
const (
	ReasonPending          = "pending"
	ReasonAlreadyFriends   = "already-friends"
	ReasonBlocked          = "blocked"
	ReasonAlreadyFollowing = "already-following"
	ReasonAlreadyLiked     = "already-liked"
	ReasonNotMember        = "not-member"
	ReasonNotPending       = "not-pending"
	ReasonNotBlocker       = "not-blocker"
	ReasonNotFriends       = "not-friends"
	ReasonBadCursor        = "bad-cursor"
)

// Error is the typed error returned across the service boundary.
type Error struct {
	Kind      Kind
	Reason    string
	Message   string
	Retryable bool
	Err       error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Reason != "" {
		msg += "(" + e.Reason + ")"
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same kind. A target with a
// Reason only matches errors carrying that reason.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Reason == "" || t.Reason == e.Reason
}

// NotFound reports a missing entity.
func NotFound(format string, args ...any) error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// SelfReference reports an operation aimed at the acting user.
func SelfReference(format string, args ...any) error {
	return &Error{Kind: KindSelfReference, Message: fmt.Sprintf(format, args...)}
}

// Conflict reports a uniqueness or state invariant violation.
func Conflict(reason, format string, args ...any) error {
	return &Error{Kind: KindConflict, Reason: reason, Message: fmt.Sprintf(format, args...)}
}

// InvalidState reports an operation attempted from a state that does not permit it.
func InvalidState(reason, format string, args ...any) error {
	return &Error{Kind: KindInvalidState, Reason: reason, Message: fmt.Sprintf(format, args...)}
}

// Storage wraps a backing store failure.
func Storage(err error, retryable bool, op string) error {
	return &Error{Kind: KindStorageFailure, Message: op, Retryable: retryable, Err: err}
}

// KindOf returns the kind of err, or "" when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// ReasonOf returns the reason attached to err, if any.
func ReasonOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Reason
	}
	return ""
}

// IsRetryable reports whether err is a transient storage failure.
func IsRetryable(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == KindStorageFailure && e.Retryable
}
