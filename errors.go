// Package fortitude defines the shared error taxonomy used across every
// component of the proactive research engine.
package fortitude

import (
	"errors"
	"fmt"
	"time"
)

// ErrorKind classifies failures so callers can switch on behavior instead of
// string-matching messages.
type ErrorKind string

const (
	ErrInvalidInput       ErrorKind = "InvalidInput"
	ErrQueryConstruction  ErrorKind = "QueryConstruction"
	ErrQueueFull          ErrorKind = "QueueFull"
	ErrBackpressure       ErrorKind = "Backpressure"
	ErrRateLimitExceeded  ErrorKind = "RateLimitExceeded"
	ErrTimeout            ErrorKind = "Timeout"
	ErrServiceUnavailable ErrorKind = "ServiceUnavailable"
	ErrUnhealthy          ErrorKind = "Unhealthy"
	ErrAuthenticationFail ErrorKind = "AuthenticationFailed"
	ErrQuotaExceeded      ErrorKind = "QuotaExceeded"
	ErrQueryFailed        ErrorKind = "QueryFailed"
	ErrInvalidTransition  ErrorKind = "InvalidTransition"
	ErrNotInitialized     ErrorKind = "NotInitialized"
	ErrShutdownTimeout    ErrorKind = "ShutdownTimeout"
	ErrStorageError       ErrorKind = "StorageError"
	ErrCancelled          ErrorKind = "Cancelled"
)

// Error is the single error type surfaced across component boundaries.
type Error struct {
	Kind       ErrorKind
	Message    string
	Provider   string
	Code       string
	RetryAfter time.Duration
	cause      error
}

func (e *Error) Error() string {
	if e.Provider != "" {
		return fmt.Sprintf("%s: %s (provider=%s)", e.Kind, e.Message, e.Provider)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// Is allows errors.Is(err, &Error{Kind: X}) style comparisons against kind alone.
func (e *Error) Is(target error) bool {
	var te *Error
	if errors.As(target, &te) {
		return te.Kind == e.Kind
	}
	return false
}

// New constructs an *Error with the given kind and formatted message.
func New(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap constructs an *Error that preserves the original error via Unwrap.
func Wrap(kind ErrorKind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), cause: cause}
}

// WithProvider attaches a provider name, returning the same error for chaining.
func (e *Error) WithProvider(name string) *Error {
	e.Provider = name
	return e
}

// WithRetryAfter attaches a retry-after hint, returning the same error for chaining.
func (e *Error) WithRetryAfter(d time.Duration) *Error {
	e.RetryAfter = d
	return e
}

// Retryable reports whether the error kind is one that the local retry
// policies in §7 are expected to handle automatically.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case ErrTimeout, ErrServiceUnavailable, ErrUnhealthy, ErrRateLimitExceeded:
		return true
	default:
		return false
	}
}

// KindOf extracts the ErrorKind from err if it is (or wraps) a *Error.
func KindOf(err error) (ErrorKind, bool) {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind, true
	}
	return "", false
}
