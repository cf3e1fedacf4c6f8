package utils

import (
	"errors"
	"fmt"
)

// ErrorCode classifies pipeline failures.
type ErrorCode int

const (
	// ErrUnknown represents an unknown error
	ErrUnknown ErrorCode = iota

	// ErrInvalidConfig represents an invalid configuration error
	ErrInvalidConfig

	// ErrInvalidInput represents a malformed input bundle or argument
	ErrInvalidInput

	// ErrGuestAbort means the guest program or its domain logic rejected the
	// input. Terminal for that input.
	ErrGuestAbort

	// ErrProvingFailure is a transient failure while sealing a run. Retryable.
	ErrProvingFailure

	// ErrImageLoad means the guest image is missing, corrupt or links an
	// unknown module. Terminal.
	ErrImageLoad

	// ErrTimeout means the run exceeded the host deadline. No receipt.
	ErrTimeout

	// ErrVerificationRejected is an ordinary negative verification outcome.
	ErrVerificationRejected
)

var codeNames = map[ErrorCode]string{
	ErrUnknown:              "unknown",
	ErrInvalidConfig:        "invalid config",
	ErrInvalidInput:         "invalid input",
	ErrGuestAbort:           "guest abort",
	ErrProvingFailure:       "proving failure",
	ErrImageLoad:            "image load",
	ErrTimeout:              "timeout",
	ErrVerificationRejected: "verification rejected",
}

// String returns the human readable code name.
func (c ErrorCode) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("code(%d)", int(c))
}

// Error is a typed pipeline error.
type Error struct {
	Code    ErrorCode
	Message string
	Cause   error
}

// NewError creates an Error with a formatted message.
func NewError(code ErrorCode, cause error, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// Error returns the error message
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("vybium-fleet-zkvm %s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("vybium-fleet-zkvm %s: %s", e.Code, e.Message)
}

// Unwrap returns the cause of the error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches any *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// Sentinels for errors.Is checks.
var (
	GuestAbort           = &Error{Code: ErrGuestAbort}
	ProvingFailure       = &Error{Code: ErrProvingFailure}
	ImageLoadError       = &Error{Code: ErrImageLoad}
	Timeout              = &Error{Code: ErrTimeout}
	VerificationRejected = &Error{Code: ErrVerificationRejected}
	InvalidInput         = &Error{Code: ErrInvalidInput}
	InvalidConfig        = &Error{Code: ErrInvalidConfig}
)

// CodeOf returns the code of the first *Error in err's chain.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ErrUnknown
}

// Retryable reports whether the host may retry after err.
func Retryable(err error) bool {
	return CodeOf(err) == ErrProvingFailure
}
