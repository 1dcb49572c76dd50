package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Device errors (retryable)
const (
	// ErrCodeConnectionFailed indicates the device is unreachable or protocol negotiation failed.
	ErrCodeConnectionFailed ErrorCode = "CONNECTION_FAILED"
	// ErrCodeTimeout indicates a device request timed out.
	ErrCodeTimeout ErrorCode = "TIMEOUT"
	// ErrCodeDeviceUnavailable indicates the device is temporarily refusing requests.
	ErrCodeDeviceUnavailable ErrorCode = "DEVICE_UNAVAILABLE"
)

// Data errors
const (
	// ErrCodeDecodeFailed indicates malformed or short raw register content.
	ErrCodeDecodeFailed ErrorCode = "DECODE_FAILED"
	// ErrCodeIndexOutOfRange indicates a stage inspected a field a record does not have.
	ErrCodeIndexOutOfRange ErrorCode = "INDEX_OUT_OF_RANGE"
	// ErrCodeCountMismatch indicates a record length differs from the requested register count.
	ErrCodeCountMismatch ErrorCode = "COUNT_MISMATCH"
)

// Flow errors
const (
	// ErrCodeSaturated indicates every fan-out channel queue is full.
	ErrCodeSaturated ErrorCode = "CHANNEL_SATURATED"
	// ErrCodeClosed indicates an operation on a stopped stage.
	ErrCodeClosed ErrorCode = "CLOSED"
)

// Validation errors
const (
	// ErrCodeInvalidInput indicates the input is invalid.
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
	// ErrCodeInvalidAddress indicates a malformed address spec or connection descriptor.
	ErrCodeInvalidAddress ErrorCode = "INVALID_ADDRESS"
	// ErrCodeNotFound indicates a named request item does not exist.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
)

// Internal errors
const (
	// ErrCodeInternal indicates an unexpected internal error.
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

var retryableCodes = map[ErrorCode]bool{
	ErrCodeConnectionFailed:  true,
	ErrCodeTimeout:           true,
	ErrCodeDeviceUnavailable: true,
	ErrCodeSaturated:         true,
	ErrCodeInternal:          false,
}

// IsRetryableCode returns true if the error code indicates a retryable error.
func IsRetryableCode(code ErrorCode) bool {
	return retryableCodes[code]
}
