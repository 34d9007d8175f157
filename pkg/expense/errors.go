package expense

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation is matched by every ValidationError.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidAmount is returned when the converted amount is not a
	// positive finite number.
	ErrInvalidAmount = errors.New("invalid expense amount after conversion")

	// ErrAmountTooLarge is returned when the converted amount exceeds
	// MaxBaseAmount.
	ErrAmountTooLarge = errors.New("expense amount is too large")
)

// ValidationError describes a rejected input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Is makes every ValidationError match ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func missing(field string) error {
	return &ValidationError{Field: field, Message: "is required"}
}
