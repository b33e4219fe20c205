package reservations

import "errors"

var (
	// ErrSlotConflict means a live reservation already holds the requested slot.
	ErrSlotConflict    = errors.New("slot is no longer available")
	ErrProductNotFound = errors.New("product not found")
	ErrNotFound        = errors.New("reservation not found")
)

// ValidationError is a rejected request that will not succeed until the input changes.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func invalid(field, msg string) *ValidationError {
	return &ValidationError{Field: field, Message: msg}
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
