package core

import (
	"errors"
	"fmt"
)

// ValidationError indicates malformed input. Never retried.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// NewValidationError creates a validation error with a formatted message
func NewValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// StateConflictError indicates an operation that is invalid for the
// payment's current state. Distinct from ValidationError so callers can
// branch on "wrong state" vs "bad input". Never retried.
type StateConflictError struct {
	Op    Operation
	State PaymentState
	Hint  string
}

func (e *StateConflictError) Error() string {
	msg := fmt.Sprintf("operation %s not allowed in state %s", e.Op, e.State)
	if e.Hint != "" {
		msg += ": " + e.Hint
	}
	return msg
}

// NotFoundError indicates the local order reference has no matching payment
type NotFoundError struct {
	LocalOrderRef string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("payment %s not found", e.LocalOrderRef)
}

// ErrConcurrentUpdate signals that a conditional ledger update lost its
// race against a concurrent write. The operation is retried with a fresh
// state read; it is never surfaced to the caller as-is.
var ErrConcurrentUpdate = errors.New("concurrent payment update detected")

// ProviderErrorKind classifies gateway failures
type ProviderErrorKind string

const (
	// ProviderDeclined is a card or business-rule rejection. Not retryable.
	ProviderDeclined ProviderErrorKind = "DECLINED"
	// ProviderTransient is a 5xx/timeout. Safe to retry the same operation.
	ProviderTransient ProviderErrorKind = "TRANSIENT"
	// ProviderAuthError is a credential misconfiguration. Fatal to the
	// process, not per-request.
	ProviderAuthError ProviderErrorKind = "AUTH_ERROR"
)

// ProviderError wraps a gateway call failure mapped from provider-specific
// error codes at the adapter boundary.
type ProviderError struct {
	Kind ProviderErrorKind
	Code string // provider error code, opaque
	Msg  string
	Err  error
}

func (e *ProviderError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("provider error (%s, code=%s): %s", e.Kind, e.Code, e.Msg)
	}
	return fmt.Sprintf("provider error (%s): %s", e.Kind, e.Msg)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Retryable reports whether the same operation may safely be reissued
func (e *ProviderError) Retryable() bool {
	return e.Kind == ProviderTransient
}

// IsRetryable reports whether err is eligible for bounded automatic retry
// with a fresh state re-validation before each attempt.
func IsRetryable(err error) bool {
	if errors.Is(err, ErrConcurrentUpdate) {
		return true
	}
	var perr *ProviderError
	if errors.As(err, &perr) {
		return perr.Retryable()
	}
	return false
}
