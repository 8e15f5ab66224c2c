package store

import "errors"

var (
	ErrConflict            = errors.New("conflict")
	ErrNotFound            = errors.New("not found")
	ErrDuplicateID         = errors.New("duplicate id")
	ErrIdempotencyConflict = errors.New("idempotency key conflict")
	ErrVersionMismatch     = errors.New("version mismatch")
)
