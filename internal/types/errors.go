package types

import (
	"errors"
	"fmt"
	"maps"
)

// ErrorCode is the stable, log-friendly classification of an AppError.
type ErrorCode string

const (
	ErrCodeValidationWorkItem  ErrorCode = "validation_work_item"
	ErrCodeValidationTimestamp ErrorCode = "validation_invalid_timestamp"

	ErrCodeInternalStateStore ErrorCode = "internal_state_store"
	ErrCodeInternalDB         ErrorCode = "internal_database_error"
	ErrCodeInternalQueue      ErrorCode = "internal_queue_error"
	ErrCodeInternalUnexpected ErrorCode = "internal_unexpected_error"

	// The state store circuit breaker is open.
	ErrCodeUpstreamUnavailable ErrorCode = "upstream_unavailable"
)

// AppError is returned by the infrastructure adapters (queue, state stores,
// run history). The driver wraps it with the activity name and the entrypoint
// logs its code and details.
type AppError struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Err     error          `json:"-"`
	Details map[string]any `json:"details,omitempty"`
}

func NewAppError(code ErrorCode, message string, err error) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}

func (e *AppError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
}

func (e *AppError) Unwrap() error { return e.Err }

// Is matches any AppError with the same code, so callers can test
// errors.Is(err, &AppError{Code: ErrCodeInternalQueue}).
func (e *AppError) Is(target error) bool {
	var t *AppError
	if !errors.As(target, &t) || t == nil {
		return false
	}
	return t.Code == e.Code && (t.Message == "" || t.Message == e.Message)
}

// WithDetails returns a copy with details merged over the existing ones.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	merged := make(map[string]any, len(e.Details)+len(details))
	maps.Copy(merged, e.Details)
	maps.Copy(merged, details)
	return &AppError{Code: e.Code, Message: e.Message, Err: e.Err, Details: merged}
}

// CodeOf returns the code of the first AppError in err's chain, or
// ErrCodeInternalUnexpected.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrCodeInternalUnexpected
}

// DetailsOf returns the details of the first AppError in err's chain.
func DetailsOf(err error) map[string]any {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Details
	}
	return nil
}
