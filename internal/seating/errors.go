package seating

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrValidation classifies rejected input such as an empty table name.
	ErrValidation = errors.New("seating: validation failed")
	// ErrNotFound classifies references to tables or seats missing from the snapshot.
	ErrNotFound = errors.New("seating: not found")
	// ErrDragInProgress indicates that a drag gesture is already active.
	ErrDragInProgress = errors.New("seating: drag in progress")
	// ErrInvariantViolated classifies table states that break the seating invariants.
	ErrInvariantViolated = errors.New("seating: invariant violated")
)

const (
	resourceTable = "table"
	resourceSeat  = "seat"
)

// ValidationError reports a rejected parameter.
type ValidationError struct {
	Field  string
	Reason string
}

func newValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrValidation.Error(), e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// NotFoundError reports a table or seat id absent from the current tables.
type NotFoundError struct {
	Kind string
	ID   string
}

func newNotFoundError(kind, id string) error {
	return &NotFoundError{Kind: kind, ID: id}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s: %s %q", ErrNotFound.Error(), e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// InvariantError lists every violation found by CheckInvariants.
type InvariantError struct {
	Violations []string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("%s: %s", ErrInvariantViolated.Error(), strings.Join(e.Violations, "; "))
}

func (e *InvariantError) Unwrap() error {
	return ErrInvariantViolated
}
