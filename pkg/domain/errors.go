package domain

import "fmt"

// ErrNotFound is returned when an operation targets an unknown record.
type ErrNotFound struct {
	ID string
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("record %s not found", e.ID)
}

// ErrInvalidInput is returned when a caller supplies a value outside its domain.
type ErrInvalidInput struct {
	Field  string
	Value  string
	Reason string
}

func (e ErrInvalidInput) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}
