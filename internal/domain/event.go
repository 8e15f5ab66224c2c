package domain

import "time"

type EventKind string

const (
	EventCreated       EventKind = "appointment.created"
	EventStatusChanged EventKind = "appointment.status_changed"
	EventDeleted       EventKind = "appointment.deleted"
)

// AppointmentEvent describes a committed change. For EventDeleted the
// Appointment carries only the ID.
type AppointmentEvent struct {
	Kind        EventKind   `json:"kind"`
	Appointment Appointment `json:"appointment"`
	OccurredAt  time.Time   `json:"occurredAt"`
}
