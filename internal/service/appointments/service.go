package appointments

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"clinicdesk/backend/internal/domain"
	"clinicdesk/backend/internal/store"
)

const (
	maxDurationMinutes   = 24 * 60
	maxIdempotencyKeyLen = 256
)

// Notifier receives committed changes. Delivery guarantees are the
// notifier's concern; a failure never undoes the change.
type Notifier interface {
	Notify(ctx context.Context, ev domain.AppointmentEvent) error
}

type Recorder interface {
	CreateAttempt(outcome string)
	StatusUpdated(status domain.Status)
	Deleted(removed bool)
	NotifyFailed(kind domain.EventKind)
}

const (
	OutcomeCreated   = "created"
	OutcomeReplayed  = "replayed"
	OutcomeConflict  = "conflict"
	OutcomeInvalid   = "invalid"
	OutcomeFailed    = "failed"
	OutcomeKeyReused = "idempotency_conflict"
)

type Service struct {
	repo     store.AppointmentRepository
	notifier Notifier
	recorder Recorder
	log      *slog.Logger
	now      func() time.Time
}

type Option func(*Service)

func WithNotifier(n Notifier) Option {
	return func(s *Service) {
		s.notifier = n
	}
}

func WithRecorder(r Recorder) Option {
	return func(s *Service) {
		s.recorder = r
	}
}

func WithLogger(log *slog.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func NewService(repo store.AppointmentRepository, opts ...Option) *Service {
	s := &Service{
		repo: repo,
		log:  slog.Default(),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With(slog.String("component", "service.appointments"))
	return s
}

type CreateInput struct {
	PatientName    string
	Date           string
	Time           string
	Duration       int
	DoctorName     string
	Mode           domain.Mode
	Status         domain.Status
	Type           string
	IdempotencyKey string
}

func (s *Service) Create(ctx context.Context, in CreateInput) (domain.Appointment, error) {
	appt, slot, keyed, err := s.prepare(in)
	if err != nil {
		s.observeCreate(OutcomeInvalid)
		return domain.Appointment{}, err
	}

	var (
		out      domain.Appointment
		replayed bool
	)
	err = s.repo.InDoctorTransaction(ctx, appt.DoctorName, func(ctx context.Context, tx store.BookingTx) error {
		if keyed {
			existing, err := tx.GetAppointment(ctx, appt.ID)
			switch {
			case err == nil:
				if !existing.SameBooking(appt) {
					return store.ErrIdempotencyConflict
				}
				out = existing
				replayed = true
				return nil
			case !errors.Is(err, store.ErrNotFound):
				return err
			}
		}

		date, doctor := appt.Date, appt.DoctorName
		sameDay, err := tx.ListAppointments(ctx, domain.Filter{Date: &date, DoctorName: &doctor})
		if err != nil {
			return err
		}
		clash, found, err := domain.FindConflict(slot, sameDay)
		if err != nil {
			return err
		}
		if found {
			return &ConflictError{
				DoctorName: appt.DoctorName,
				Date:       appt.Date,
				Time:       appt.Time,
				ExistingID: clash.ID,
			}
		}

		inserted, err := tx.InsertAppointment(ctx, appt)
		if err != nil {
			return err
		}
		out = inserted
		return nil
	})
	if err != nil {
		var cErr *ConflictError
		switch {
		case errors.As(err, &cErr):
			s.observeCreate(OutcomeConflict)
			return domain.Appointment{}, err
		case errors.Is(err, store.ErrConflict):
			s.observeCreate(OutcomeConflict)
			return domain.Appointment{}, &ConflictError{DoctorName: appt.DoctorName, Date: appt.Date, Time: appt.Time}
		case errors.Is(err, store.ErrIdempotencyConflict):
			s.observeCreate(OutcomeKeyReused)
			return domain.Appointment{}, err
		case keyed && errors.Is(err, store.ErrDuplicateID):
			// Same key booked concurrently under another doctor's lock.
			existing, getErr := s.repo.GetByID(ctx, appt.ID)
			if getErr == nil {
				if !existing.SameBooking(appt) {
					s.observeCreate(OutcomeKeyReused)
					return domain.Appointment{}, store.ErrIdempotencyConflict
				}
				s.observeCreate(OutcomeReplayed)
				return existing, nil
			}
		}
		s.observeCreate(OutcomeFailed)
		return domain.Appointment{}, fmt.Errorf("creating appointment: %w", err)
	}

	if replayed {
		s.observeCreate(OutcomeReplayed)
		return out, nil
	}

	s.observeCreate(OutcomeCreated)
	s.notify(ctx, domain.EventCreated, out)
	return out, nil
}

func (s *Service) prepare(in CreateInput) (appt domain.Appointment, slot domain.Interval, keyed bool, err error) {
	patient := strings.TrimSpace(in.PatientName)
	date := strings.TrimSpace(in.Date)
	clock := strings.TrimSpace(in.Time)
	doctor := strings.TrimSpace(in.DoctorName)

	switch {
	case patient == "":
		return appt, slot, false, validationError("patientName", "missing required field: patientName")
	case date == "":
		return appt, slot, false, validationError("date", "missing required field: date")
	case clock == "":
		return appt, slot, false, validationError("time", "missing required field: time")
	case in.Duration == 0:
		return appt, slot, false, validationError("duration", "missing required field: duration")
	case doctor == "":
		return appt, slot, false, validationError("doctorName", "missing required field: doctorName")
	case in.Mode == "":
		return appt, slot, false, validationError("mode", "missing required field: mode")
	}

	if in.Duration < 0 {
		return appt, slot, false, validationError("duration", "duration must be positive")
	}
	if in.Duration > maxDurationMinutes {
		return appt, slot, false, validationError("duration", "duration too long")
	}
	if !in.Mode.IsValid() {
		return appt, slot, false, validationError("mode", "mode must be one of In-Person, Video, Phone")
	}

	status := in.Status
	if status == "" {
		status = domain.StatusScheduled
	}
	if !status.IsValid() {
		return appt, slot, false, validationError("status", fmt.Sprintf("unknown status %q", in.Status))
	}

	kind := strings.TrimSpace(in.Type)
	if kind == "" {
		kind = domain.DefaultType
	}

	slot, err = domain.ParseSlot(date, clock, in.Duration)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidDate):
			return appt, slot, false, &ParseError{Field: "date", Value: date, Err: err}
		case errors.Is(err, domain.ErrInvalidTime):
			return appt, slot, false, &ParseError{Field: "time", Value: clock, Err: err}
		}
		return appt, slot, false, validationError("duration", err.Error())
	}

	key := strings.TrimSpace(in.IdempotencyKey)
	var id uuid.UUID
	if key != "" {
		if len(key) > maxIdempotencyKeyLen {
			return appt, slot, false, validationError("idempotencyKey", "idempotency_key too long")
		}
		id = uuid.NewSHA1(uuid.NameSpaceOID, []byte("clinicdesk:create_appointment:"+key))
		keyed = true
	} else {
		id, err = uuid.NewV7()
		if err != nil {
			return appt, slot, false, fmt.Errorf("generating id: %w", err)
		}
	}

	appt = domain.Appointment{
		ID:          id.String(),
		PatientName: patient,
		Date:        slot.Start.Format(domain.DateLayout),
		Time:        slot.Start.Format(domain.TimeLayout),
		Duration:    in.Duration,
		DoctorName:  doctor,
		Status:      status,
		Mode:        in.Mode,
		Type:        kind,
	}
	return appt, slot, keyed, nil
}

func (s *Service) List(ctx context.Context, filter domain.Filter) ([]domain.Appointment, error) {
	return s.repo.List(ctx, filter)
}

func (s *Service) Get(ctx context.Context, id string) (domain.Appointment, error) {
	appt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Appointment{}, &NotFoundError{ID: id}
		}
		return domain.Appointment{}, err
	}
	return appt, nil
}

type UpdateOption func(*updateOptions)

type updateOptions struct {
	expectedVersion int
	conditional     bool
}

// IfVersion makes the update fail with *VersionMismatchError unless the
// stored appointment is still at version v.
func IfVersion(v int) UpdateOption {
	return func(o *updateOptions) {
		o.expectedVersion = v
		o.conditional = true
	}
}

func (s *Service) UpdateStatus(ctx context.Context, id string, status domain.Status, opts ...UpdateOption) (domain.Appointment, error) {
	var o updateOptions
	for _, opt := range opts {
		opt(&o)
	}

	if strings.TrimSpace(id) == "" {
		return domain.Appointment{}, validationError("id", "missing required field: id")
	}
	if !status.IsValid() {
		return domain.Appointment{}, validationError("status", fmt.Sprintf("unknown status %q", status))
	}
	if o.conditional && o.expectedVersion <= 0 {
		return domain.Appointment{}, validationError("version", "version must be positive")
	}

	appt, err := s.repo.UpdateStatus(ctx, id, status, o.expectedVersion)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			return domain.Appointment{}, &NotFoundError{ID: id}
		case errors.Is(err, store.ErrVersionMismatch):
			return domain.Appointment{}, &VersionMismatchError{ID: id, Expected: o.expectedVersion}
		case errors.Is(err, store.ErrConflict):
			cErr := &ConflictError{}
			if existing, getErr := s.repo.GetByID(ctx, id); getErr == nil {
				cErr.DoctorName, cErr.Date, cErr.Time = existing.DoctorName, existing.Date, existing.Time
			}
			return domain.Appointment{}, cErr
		}
		return domain.Appointment{}, fmt.Errorf("updating appointment status: %w", err)
	}

	if s.recorder != nil {
		s.recorder.StatusUpdated(appt.Status)
	}
	s.notify(ctx, domain.EventStatusChanged, appt)
	return appt, nil
}

func (s *Service) Delete(ctx context.Context, id string) (bool, error) {
	if strings.TrimSpace(id) == "" {
		return false, nil
	}

	removed, err := s.repo.Delete(ctx, id)
	if err != nil {
		return false, fmt.Errorf("deleting appointment: %w", err)
	}
	if s.recorder != nil {
		s.recorder.Deleted(removed)
	}
	if removed {
		s.notify(ctx, domain.EventDeleted, domain.Appointment{ID: id})
	}
	return removed, nil
}

func (s *Service) observeCreate(outcome string) {
	if s.recorder != nil {
		s.recorder.CreateAttempt(outcome)
	}
}

func (s *Service) notify(ctx context.Context, kind domain.EventKind, appt domain.Appointment) {
	if s.notifier == nil {
		return
	}
	ev := domain.AppointmentEvent{
		Kind:        kind,
		Appointment: appt,
		OccurredAt:  s.now().UTC(),
	}
	if err := s.notifier.Notify(ctx, ev); err != nil {
		s.log.Warn(
			"appointment notification failed",
			slog.Any("err", err),
			slog.String("kind", string(kind)),
			slog.String("appointment_id", appt.ID),
		)
		if s.recorder != nil {
			s.recorder.NotifyFailed(kind)
		}
	}
}
