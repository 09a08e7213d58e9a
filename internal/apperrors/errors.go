// Package apperrors defines the error taxonomy shared by the stores, the
// gateway client and the reconciliation engine, so HTTP handlers can map
// failures to responses with errors.Is / errors.As instead of string checks.
package apperrors

import (
	"errors"
	"fmt"
)

// ErrNotFound marks a lookup for a reference or user that does not exist.
var ErrNotFound = errors.New("not found")

// ErrInsufficientCredits marks a wallet change that would drive the balance
// negative.
var ErrInsufficientCredits = errors.New("insufficient credits")

// ValidationError reports malformed or missing input. Not retryable as-is.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s %s", e.Field, e.Reason)
}

func Validation(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// GatewayError reports a failure talking to the payment provider. Transient
// failures (timeouts, 5xx) may be retried by the caller; permanent ones
// (4xx, unknown reference) may not.
type GatewayError struct {
	Code       string
	Message    string
	StatusCode int // HTTP status from the provider, 0 when the call never completed
	Transient  bool
	Err        error
}

func (e *GatewayError) Error() string {
	kind := "permanent"
	if e.Transient {
		kind = "transient"
	}
	if e.Err != nil {
		return fmt.Sprintf("gateway %s: %s: %v", kind, e.Message, e.Err)
	}
	return fmt.Sprintf("gateway %s: %s", kind, e.Message)
}

func (e *GatewayError) Unwrap() error { return e.Err }

func GatewayTransient(message string, statusCode int, err error) *GatewayError {
	return &GatewayError{Code: "gateway_unavailable", Message: message, StatusCode: statusCode, Transient: true, Err: err}
}

func GatewayPermanent(code, message string, statusCode int) *GatewayError {
	return &GatewayError{Code: code, Message: message, StatusCode: statusCode}
}

// StorageError wraps a database or cache failure. Always retryable: the
// engine retries a bounded number of times and then surfaces it so the
// webhook sender redelivers or the client retries verification.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func Storage(op string, err error) *StorageError {
	return &StorageError{Op: op, Err: err}
}

// IsStorage reports whether err is (or wraps) a StorageError.
func IsStorage(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}
