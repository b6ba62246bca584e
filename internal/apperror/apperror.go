// Package apperror defines the error taxonomy shared across the store, the
// retry controller, the worker runtime, and the REST surface, so each layer
// reacts to the same kinds instead of inspecting ad-hoc error strings.
package apperror

import (
	"errors"
	"fmt"
)

// Kind is one of the error categories from the propagation policy: callers
// branch on Kind, not on the wrapped message.
type Kind string

const (
	// KindValidation covers bad input: invalid cron expression, unknown
	// job_type, missing payload fields. Surfaced to REST callers as 400.
	KindValidation Kind = "validation"

	// KindNotFound covers a missing entity. 404 for REST; internal
	// handling drops the message and ACKs.
	KindNotFound Kind = "not_found"

	// KindInvalidTransition covers an attempted illegal state change.
	// 400 for REST, logged and dropped for workers.
	KindInvalidTransition Kind = "invalid_transition"

	// KindTransient covers broker/store connectivity blips, retried with
	// backoff inside adapters and never surfaced as a job failure.
	KindTransient Kind = "transient"

	// KindHandlerFailure covers an error raised by opaque handler code,
	// captured with message (and traceback, where available) and fed to
	// the retry controller.
	KindHandlerFailure Kind = "handler_failure"

	// KindPoison covers an unparseable broker message: NACK-no-requeue,
	// counted, never retried.
	KindPoison Kind = "poison"
)

// Error is a typed application error carrying one of the Kind values above.
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

func (e *Error) Unwrap() error { return e.Err }

// New builds a typed Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds a typed Error of the given kind around a cause.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind == kind
	}
	return false
}

// KindOf extracts the Kind of err, if any, and whether one was found.
func KindOf(err error) (Kind, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind, true
	}
	return "", false
}
