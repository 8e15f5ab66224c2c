package store

import (
	"context"

	"clinicdesk/backend/internal/domain"
)

// AppointmentRepository is the authoritative appointment collection. Reads
// observe a consistent snapshot; every mutation is serialized.
type AppointmentRepository interface {
	List(ctx context.Context, filter domain.Filter) ([]domain.Appointment, error)
	GetByID(ctx context.Context, id string) (domain.Appointment, error)
	// UpdateStatus bumps Version. A positive expectedVersion makes the update
	// conditional: ErrVersionMismatch when the stored version differs.
	UpdateStatus(ctx context.Context, id string, status domain.Status, expectedVersion int) (domain.Appointment, error)
	Delete(ctx context.Context, id string) (bool, error)

	// InDoctorTransaction runs fn exclusively with respect to every other
	// mutation touching doctorName's schedule. Writes made through tx become
	// visible only if fn returns nil.
	InDoctorTransaction(ctx context.Context, doctorName string, fn func(ctx context.Context, tx BookingTx) error) error
}

type BookingTx interface {
	ListAppointments(ctx context.Context, filter domain.Filter) ([]domain.Appointment, error)
	GetAppointment(ctx context.Context, id string) (domain.Appointment, error)
	InsertAppointment(ctx context.Context, appt domain.Appointment) (domain.Appointment, error)
}
