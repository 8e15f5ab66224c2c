package appointments

import (
	"fmt"

	"clinicdesk/backend/internal/store"
)

// ValidationError reports a missing or structurally invalid field.
type ValidationError struct {
	Field string
	msg   string
}

func (e *ValidationError) Error() string {
	return e.msg
}

func validationError(field, msg string) error {
	return &ValidationError{Field: field, msg: msg}
}

// ParseError reports a date or time that was supplied but could not be
// parsed.
type ParseError struct {
	Field string
	Value string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid %s format: %q", e.Field, e.Value)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ConflictError reports that the requested slot overlaps an existing
// non-cancelled appointment of the same doctor. ExistingID is empty when the
// overlap was detected by the backing store rather than by the service.
type ConflictError struct {
	DoctorName string
	Date       string
	Time       string
	ExistingID string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("time conflict detected for %s at %s on %s", e.DoctorName, e.Time, e.Date)
}

func (e *ConflictError) Unwrap() error {
	return store.ErrConflict
}

type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("appointment %q not found", e.ID)
}

func (e *NotFoundError) Unwrap() error {
	return store.ErrNotFound
}

type VersionMismatchError struct {
	ID       string
	Expected int
}

func (e *VersionMismatchError) Error() string {
	return fmt.Sprintf("appointment %q was modified since version %d", e.ID, e.Expected)
}

func (e *VersionMismatchError) Unwrap() error {
	return store.ErrVersionMismatch
}
