package vybiumfleetzkvm

import "github.com/vybium/vybium-fleet-zkvm/internal/vybium-fleet-zkvm/utils"

// ErrorCode classifies pipeline failures
type ErrorCode = utils.ErrorCode

// Error is a typed pipeline error
type Error = utils.Error

// Error codes
const (
	CodeUnknown              = utils.ErrUnknown
	CodeInvalidConfig        = utils.ErrInvalidConfig
	CodeInvalidInput         = utils.ErrInvalidInput
	CodeGuestAbort           = utils.ErrGuestAbort
	CodeProvingFailure       = utils.ErrProvingFailure
	CodeImageLoad            = utils.ErrImageLoad
	CodeTimeout              = utils.ErrTimeout
	CodeVerificationRejected = utils.ErrVerificationRejected
)

// Sentinels for errors.Is
var (
	ErrGuestAbort           = utils.GuestAbort
	ErrProvingFailure       = utils.ProvingFailure
	ErrImageLoad            = utils.ImageLoadError
	ErrTimeout              = utils.Timeout
	ErrVerificationRejected = utils.VerificationRejected
	ErrInvalidInput         = utils.InvalidInput
	ErrInvalidConfig        = utils.InvalidConfig
)

// CodeOf returns the code of the first pipeline error in err's chain
func CodeOf(err error) ErrorCode {
	return utils.CodeOf(err)
}

// Retryable reports whether the host may retry after err
func Retryable(err error) bool {
	return utils.Retryable(err)
}
