package satsave_test

import (
	"errors"
	"testing"

	satsave "github.com/sgc-tools/satsave"
	"github.com/stretchr/testify/assert"
)

func TestSaveErrorWithMessage(t *testing.T) {
	newErr := satsave.ErrNoSpaceOnDevice.WithMessage("asdfqwerty")
	assert.Equal(
		t, "No space left on device: asdfqwerty", newErr.Error(), "error message is wrong")
	assert.ErrorIs(t, newErr, satsave.ErrNoSpaceOnDevice)
}

func TestSaveErrorWrap(t *testing.T) {
	originalErr := errors.New("original error")
	newErr := satsave.ErrExists.Wrap(originalErr)
	expectedMessage := "Save already exists: original error"

	assert.EqualValues(t, expectedMessage, newErr.Error(), "error message is wrong")
	assert.ErrorIs(t, newErr, originalErr, "original error not set as parent")
	assert.ErrorIs(t, newErr, satsave.ErrExists, "sentinel not set as parent")
}

// Specific corruption causes must also match the broad category so callers
// can test for corruption without enumerating every cause.
func TestCorruptionCausesChainToCategory(t *testing.T) {
	causes := []satsave.DriverError{
		satsave.ErrInvalidTag,
		satsave.ErrBlocksOutOfOrder,
		satsave.ErrChainLengthMismatch,
		satsave.ErrSaveTooLarge,
		satsave.ErrUnsupportedCompression,
		satsave.ErrCorruptCompressionHeader,
		satsave.ErrPartitionTooLarge,
	}
	for _, cause := range causes {
		assert.ErrorIs(t, cause, satsave.ErrCorrupted, "cause: %s", cause.Error())
	}
	assert.NotErrorIs(t, satsave.ErrNotFound, satsave.ErrCorrupted)
}
