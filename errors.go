package satsave

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// DriverError is the error type returned across the engine boundary. Errors
// are chained so that errors.Is can match both the broad category (e.g.
// [ErrCorrupted]) and the specific cause (e.g. [ErrBlocksOutOfOrder]).
type DriverError interface {
	error
	WithMessage(message string) DriverError
	Wrap(err error) DriverError
}

type baseSaveError string

const rootError = baseSaveError("")

var ErrInvalidArgument = rootError.WithMessage("Invalid argument")
var ErrArgumentOutOfRange = rootError.WithMessage("Numerical argument out of domain")
var ErrNotFound = rootError.WithMessage("No such save")
var ErrExists = rootError.WithMessage("Save already exists")
var ErrBufferTooSmall = rootError.WithMessage("Supplied buffer is too small")
var ErrNoSpaceOnDevice = rootError.WithMessage("No space left on device")
var ErrNotSupported = rootError.WithMessage("Operation not supported")
var ErrNotFormatted = rootError.WithMessage("Medium is not formatted")
var ErrDeviceNotPresent = rootError.WithMessage("Backup device is not present")
var ErrInvalidDevice = rootError.WithMessage("Invalid backup device")

// Corruption errors. Every specific cause chains back to ErrCorrupted.
var ErrCorrupted = rootError.WithMessage("Partition structure needs cleaning")
var ErrInvalidTag = ErrCorrupted.WithMessage("invalid block tag")
var ErrBlocksOutOfOrder = ErrCorrupted.WithMessage("allocation chain entries out of order")
var ErrChainLengthMismatch = ErrCorrupted.WithMessage("allocation chain length mismatch")
var ErrSaveTooLarge = ErrCorrupted.WithMessage("save exceeds partition capacity")
var ErrUnsupportedCompression = ErrCorrupted.WithMessage("unsupported compression format")
var ErrCorruptCompressionHeader = ErrCorrupted.WithMessage("compression header is corrupt")
var ErrPartitionTooLarge = ErrCorrupted.WithMessage("decompressed partition is too large")

func (e baseSaveError) Error() string {
	return string(e)
}

func (e baseSaveError) WithMessage(message string) DriverError {
	return customSaveError{
		message:       message,
		originalError: e,
	}
}

func (e baseSaveError) Wrap(err error) DriverError {
	return customSaveError{
		message:       fmt.Sprintf("%s: %s", e.Error(), err.Error()),
		originalError: multierror.Append(e, err),
	}
}

// -----------------------------------------------------------------------------

type customSaveError struct {
	message       string
	originalError error
}

// Error implements the `error` object interface. When called, it returns a
// string describing the error.
func (e customSaveError) Error() string {
	return e.message
}

func (e customSaveError) WithMessage(message string) DriverError {
	return customSaveError{
		message:       fmt.Sprintf("%s: %s", e.message, message),
		originalError: e,
	}
}

func (e customSaveError) Wrap(err error) DriverError {
	return customSaveError{
		message:       fmt.Sprintf("%s: %s", e.Error(), err.Error()),
		originalError: multierror.Append(e, err),
	}
}

func (e customSaveError) Unwrap() error {
	return e.originalError
}
