package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrNotOwner            = errors.New("caller is not the bet creator")
	ErrBetNotOpen          = errors.New("bet is not open")
	ErrBetClosed           = errors.New("bet is closed for wagering")
	ErrBetNotClosed        = errors.New("bet close time has not passed")
	ErrAlreadyPlaced       = errors.New("wager already placed on this bet")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInvalidOption       = errors.New("option index out of range")
	ErrRateLimited         = errors.New("rate limited")
	ErrLockHeld            = errors.New("lock already held")
)

// ValidationError reports a malformed create/update payload. It is raised
// before any storage call and is never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Validation builds a ValidationError for the given field.
func Validation(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsStateConflict reports whether err is one of the lifecycle conflicts that
// map to a user-facing 409: acting on a non-open bet, wagering on a closed
// bet, settling before close, double placement, or insufficient balance.
func IsStateConflict(err error) bool {
	return errors.Is(err, ErrBetNotOpen) ||
		errors.Is(err, ErrBetClosed) ||
		errors.Is(err, ErrBetNotClosed) ||
		errors.Is(err, ErrAlreadyPlaced) ||
		errors.Is(err, ErrInsufficientBalance)
}
