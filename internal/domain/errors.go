package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyInput is returned when a merge is requested with no series.
	ErrEmptyInput = errors.New("no series provided for merging")

	// ErrMissingField is matched by every *MissingFieldError via errors.Is.
	ErrMissingField = errors.New("missing field")
)

// MissingFieldError reports that the designated timestamp field is not part
// of a series schema.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("timestamp column %q not found in series", e.Field)
}

func (e *MissingFieldError) Is(target error) bool { return target == ErrMissingField }
