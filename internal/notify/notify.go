package notify

import (
	"context"
	"errors"
	"log/slog"

	"clinicdesk/backend/internal/domain"
)

type Notifier interface {
	Notify(ctx context.Context, ev domain.AppointmentEvent) error
}

type multi []Notifier

// Multi delivers each event to every notifier, even when an earlier one
// fails. The returned error joins all failures.
func Multi(notifiers ...Notifier) Notifier {
	out := make(multi, 0, len(notifiers))
	for _, n := range notifiers {
		if n != nil {
			out = append(out, n)
		}
	}
	return out
}

func (m multi) Notify(ctx context.Context, ev domain.AppointmentEvent) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Log writes every event to a structured logger.
type Log struct {
	log *slog.Logger
}

func NewLog(log *slog.Logger) *Log {
	if log == nil {
		log = slog.Default()
	}
	return &Log{log: log.With(slog.String("component", "notify.log"))}
}

func (l *Log) Notify(ctx context.Context, ev domain.AppointmentEvent) error {
	l.log.InfoContext(
		ctx,
		"appointment event",
		slog.String("kind", string(ev.Kind)),
		slog.String("appointment_id", ev.Appointment.ID),
		slog.String("doctor_name", ev.Appointment.DoctorName),
		slog.String("status", string(ev.Appointment.Status)),
	)
	return nil
}
