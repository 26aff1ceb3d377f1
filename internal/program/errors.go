package program

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	// ErrPreconditionViolation marks a program model that breaks the loader
	// contract, such as an unaddressable module or section.
	ErrPreconditionViolation = errors.New("program model precondition violated")

	// ErrMissingAuxData marks an absent aux table, or an entity absent from a
	// table that is present.
	ErrMissingAuxData = errors.New("missing aux data")
)

// AuxDataError reports which table and entity failed to resolve.
type AuxDataError struct {
	Table  string
	Entity string
	ID     uuid.UUID
}

func (e *AuxDataError) Error() string {
	if e.Entity == "" {
		return fmt.Sprintf("missing %s AuxData table", e.Table)
	}
	return fmt.Sprintf("%s %s missing from %s AuxData table", e.Entity, e.ID, e.Table)
}

func (e *AuxDataError) Unwrap() error {
	return ErrMissingAuxData
}

// Preconditionf builds an error wrapping ErrPreconditionViolation.
func Preconditionf(format string, args ...interface{}) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrPreconditionViolation)
}
