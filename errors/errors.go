package errors

import (
	stderrors "errors"
	"fmt"
)

// AppError is the unified application error type.
type AppError struct {
	// Code is a machine-readable error code.
	Code ErrorCode `json:"code"`
	// Message is a human-readable error message.
	Message string `json:"message"`
	// Retryable indicates if the operation can be retried.
	Retryable bool `json:"retryable"`
	// Details contains additional context for the error.
	Details map[string]any `json:"details,omitempty"`
	// Cause is the underlying error that caused this error.
	Cause error `json:"-"`
}

// Error returns the string representation of the error.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause of the error.
func (e *AppError) Unwrap() error { return e.Cause }

// Is reports whether target is an AppError with the same code, so that
// errors.Is(err, errors.New(code, "")) matches on code alone.
func (e *AppError) Is(target error) bool {
	var t *AppError
	if !stderrors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// WithCause sets the underlying cause of the error and returns the receiver.
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithDetails merges the provided details into the error and returns the receiver.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	for k, v := range details {
		e.Details[k] = v
	}
	return e
}

// WithDetail sets a single detail key-value pair and returns the receiver.
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// New creates a new AppError with automatic retryable detection.
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:      code,
		Message:   message,
		Retryable: IsRetryableCode(code),
	}
}

// --- Constructors ---

// ConnectionFailed creates an error for a device that cannot be reached.
func ConnectionFailed(target string, cause error) *AppError {
	return &AppError{
		Code: ErrCodeConnectionFailed, Message: fmt.Sprintf("unable to reach device %s", target),
		Retryable: true, Details: map[string]any{"target": target}, Cause: cause,
	}
}

// Timeout creates an error for a device request that timed out.
func Timeout(operation string) *AppError {
	return &AppError{
		Code: ErrCodeTimeout, Message: fmt.Sprintf("%s timed out", operation),
		Retryable: true, Details: map[string]any{"operation": operation},
	}
}

// DeviceUnavailable creates an error for a device that is refusing requests,
// for example while a circuit breaker is open.
func DeviceUnavailable(target string) *AppError {
	return &AppError{
		Code: ErrCodeDeviceUnavailable, Message: fmt.Sprintf("device %s is temporarily unavailable", target),
		Retryable: true, Details: map[string]any{"target": target},
	}
}

// DecodeFailed creates an error for raw content that cannot be decoded.
func DecodeFailed(input, reason string) *AppError {
	return &AppError{
		Code: ErrCodeDecodeFailed, Message: fmt.Sprintf("cannot decode %q: %s", input, reason),
		Retryable: false, Details: map[string]any{"input": input},
	}
}

// IndexOutOfRange creates an error for a field access past the end of a record.
func IndexOutOfRange(index, length int) *AppError {
	return &AppError{
		Code: ErrCodeIndexOutOfRange, Message: fmt.Sprintf("index %d out of range for record of length %d", index, length),
		Retryable: false, Details: map[string]any{"index": index, "length": length},
	}
}

// CountMismatch creates an error for a record whose length differs from the requested count.
func CountMismatch(item string, want, got int) *AppError {
	return &AppError{
		Code: ErrCodeCountMismatch, Message: fmt.Sprintf("item %s: expected %d values, got %d", item, want, got),
		Retryable: false, Details: map[string]any{"item": item, "want": want, "got": got},
	}
}

// Saturated creates an error for a fan-out stage whose channels are all full.
func Saturated(channels int) *AppError {
	return &AppError{
		Code: ErrCodeSaturated, Message: fmt.Sprintf("all %d channels are saturated", channels),
		Retryable: true, Details: map[string]any{"channels": channels},
	}
}

// Closed creates an error for an operation on a stopped component.
func Closed(what string) *AppError {
	return &AppError{
		Code: ErrCodeClosed, Message: fmt.Sprintf("%s is closed", what),
		Retryable: false,
	}
}

// InvalidAddress creates an error for a malformed address spec or descriptor.
func InvalidAddress(spec, reason string) *AppError {
	return &AppError{
		Code: ErrCodeInvalidAddress, Message: fmt.Sprintf("invalid address %q: %s", spec, reason),
		Retryable: false, Details: map[string]any{"address": spec},
	}
}

// NotFound creates an error for a missing named item.
func NotFound(resource, id string) *AppError {
	details := map[string]any{"resource": resource}
	if id != "" {
		details["id"] = id
	}
	return &AppError{
		Code: ErrCodeNotFound, Message: fmt.Sprintf("%s %q not found", resource, id),
		Retryable: false, Details: details,
	}
}

// InvalidInput creates a new AppError for invalid input.
func InvalidInput(field, reason string) *AppError {
	details := make(map[string]any)
	if field != "" {
		details["field"] = field
	}
	return &AppError{
		Code: ErrCodeInvalidInput, Message: fmt.Sprintf("invalid input: %s", reason),
		Retryable: false, Details: details,
	}
}

// Validation creates a new AppError for validation errors.
func Validation(message string) *AppError {
	return &AppError{
		Code: ErrCodeInvalidInput, Message: message,
		Retryable: false,
	}
}

// Internal creates a new AppError for an unexpected internal error.
func Internal(cause error) *AppError {
	return &AppError{
		Code: ErrCodeInternal, Message: "an unexpected error occurred",
		Retryable: false, Cause: cause,
	}
}

// --- Inspection ---

// AsAppError converts an error to an AppError if possible.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsCode reports whether err is, or wraps, an AppError with the given code.
func IsCode(err error, code ErrorCode) bool {
	appErr, ok := AsAppError(err)
	return ok && appErr.Code == code
}

// IsRetryable reports whether err is, or wraps, a retryable AppError.
func IsRetryable(err error) bool {
	appErr, ok := AsAppError(err)
	return ok && appErr.Retryable
}

// Wrap converts any error into an AppError. AppErrors pass through
// unchanged; other errors become INTERNAL_ERROR with the original as cause.
func Wrap(err error) *AppError {
	if err == nil {
		return nil
	}
	if appErr, ok := AsAppError(err); ok {
		return appErr
	}
	return Internal(err)
}
