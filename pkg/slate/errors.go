package slate

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	// ErrZeroAmount ...
	ErrZeroAmount = errors.New("slate amount must not be zero")
	// ErrEmptyInputs ...
	ErrEmptyInputs = errors.New("input list must not be empty")
	// ErrUnexpectedState ...
	ErrUnexpectedState = errors.New("slate is not in the expected protocol state")
	// ErrMissingParticipant ...
	ErrMissingParticipant = errors.New("slate is missing a participant entry")
	// ErrMissingPartialSignature ...
	ErrMissingPartialSignature = errors.New("counterpart partial signature is missing")
	// ErrInsufficientFee ...
	ErrInsufficientFee = errors.New("slate fee is below the required transaction weight fee")
	// ErrInsufficientInputs ...
	ErrInsufficientInputs = errors.New("selected inputs do not cover amount plus fee")
)

// SlateIDMismatchError protects against cross-wiring two unrelated
// exchanges.
type SlateIDMismatchError struct {
	Expected uuid.UUID
	Actual   uuid.UUID
}

func (e *SlateIDMismatchError) Error() string {
	return fmt.Sprintf(
		"slate id mismatch: expected %s, got %s", e.Expected, e.Actual,
	)
}

// KernelIncompleteError reports that finalization succeeded structurally but
// the resulting kernel does not verify. A slate failing this way must never
// be broadcast.
type KernelIncompleteError struct {
	Reason string
}

func (e *KernelIncompleteError) Error() string {
	return fmt.Sprintf("kernel incomplete: %s", e.Reason)
}
