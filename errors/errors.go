// Package errors defines the error taxonomy shared across sqskit components.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind classifies an Error for upstream routing decisions.
type Kind string

// Error kinds recognized by the container, ack processor and send template.
const (
	KindConfiguration     Kind = "configuration_error"
	KindQueueNotFound     Kind = "queue_not_found"
	KindSerialization     Kind = "serialization_error"
	KindDeserialization   Kind = "deserialization_error"
	KindListener          Kind = "listener_error"
	KindTransientService  Kind = "transient_service_error"
	KindFatalService      Kind = "fatal_service_error"
)

// Error is a typed, wrapped error carrying a Kind for classification.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the wrapped cause for errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates a new Error of the given kind wrapping cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// Configuration creates a configuration_error.
func Configuration(format string, args ...interface{}) *Error {
	return New(KindConfiguration, fmt.Sprintf(format, args...))
}

// QueueNotFound creates a queue_not_found error.
func QueueNotFound(queue string) *Error {
	return New(KindQueueNotFound, fmt.Sprintf("queue not found: %s", queue))
}

// Serialization wraps a serialization failure.
func Serialization(cause error) *Error {
	return Wrap(KindSerialization, "failed to serialize payload", cause)
}

// Deserialization wraps a deserialization failure.
func Deserialization(cause error) *Error {
	return Wrap(KindDeserialization, "failed to deserialize payload", cause)
}

// Listener wraps a handler panic or returned error.
func Listener(cause error) *Error {
	return Wrap(KindListener, "listener invocation failed", cause)
}

// TransientService wraps a retryable queue-service error.
func TransientService(cause error) *Error {
	return Wrap(KindTransientService, "transient queue service error", cause)
}

// FatalService wraps a non-retryable queue-service error (auth, permission).
func FatalService(cause error) *Error {
	return Wrap(KindFatalService, "fatal queue service error", cause)
}
