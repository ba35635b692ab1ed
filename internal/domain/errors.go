package domain

import (
	"errors"
	"fmt"
)

var (
	ErrValidation           = errors.New("validation failed")
	ErrUnauthorized         = errors.New("unauthorized")
	ErrNotFound             = errors.New("not found")
	ErrInsufficientBalance  = errors.New("insufficient balance")
	ErrAlreadyActionedToday = errors.New("already actioned today")
	ErrUnknownVariant       = errors.New("unknown resonance variant")
	ErrInternal             = errors.New("internal error")

	ErrAlreadyCheckedInToday = fmt.Errorf("already checked in today: %w", ErrAlreadyActionedToday)
	ErrAlreadySharedToday    = fmt.Errorf("already shared today: %w", ErrAlreadyActionedToday)
)

// InsufficientBalanceError reports the energy available when a spend was refused.
type InsufficientBalanceError struct {
	Current  int
	Required int
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: have %d, need %d", e.Current, e.Required)
}

// Is lets errors.Is match the ErrInsufficientBalance sentinel.
func (e *InsufficientBalanceError) Is(target error) bool {
	return target == ErrInsufficientBalance
}

// Validationf builds an error wrapping ErrValidation.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
