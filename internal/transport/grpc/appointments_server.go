package grpc

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"clinicdesk/backend/internal/domain"
	"clinicdesk/backend/internal/service/appointments"
	"clinicdesk/backend/internal/store"
)

type AppointmentsServer struct {
	svc appointmentsService
	log *slog.Logger
}

var _ AppointmentsServiceServer = (*AppointmentsServer)(nil)

type appointmentsService interface {
	Create(ctx context.Context, in appointments.CreateInput) (domain.Appointment, error)
	Get(ctx context.Context, id string) (domain.Appointment, error)
	List(ctx context.Context, filter domain.Filter) ([]domain.Appointment, error)
	UpdateStatus(ctx context.Context, id string, status domain.Status, opts ...appointments.UpdateOption) (domain.Appointment, error)
	Delete(ctx context.Context, id string) (bool, error)
}

func NewAppointmentsServer(svc appointmentsService, log *slog.Logger) *AppointmentsServer {
	if log == nil {
		log = slog.Default()
	}
	return &AppointmentsServer{
		svc: svc,
		log: log.With(slog.String("component", "grpc.appointments")),
	}
}

func (s *AppointmentsServer) CreateAppointment(ctx context.Context, req *CreateAppointmentRequest) (*CreateAppointmentResponse, error) {
	log := s.log.With(slog.String("rpc", "CreateAppointment"))

	if req == nil {
		log.Warn("invalid request", slog.String("reason", "nil_request"))
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}

	appt, err := s.svc.Create(ctx, appointments.CreateInput{
		PatientName:    req.PatientName,
		Date:           req.Date,
		Time:           req.Time,
		Duration:       req.Duration,
		DoctorName:     req.DoctorName,
		Mode:           domain.Mode(req.Mode),
		Status:         domain.Status(req.Status),
		Type:           req.Type,
		IdempotencyKey: idempotencyKey(ctx),
	})
	if err != nil {
		return nil, statusFromError(log, err,
			slog.String("doctor_name", req.DoctorName),
			slog.String("date", req.Date),
			slog.String("time", req.Time),
		)
	}

	log.Info(
		"appointment created",
		slog.String("appointment_id", appt.ID),
		slog.String("doctor_name", appt.DoctorName),
		slog.String("date", appt.Date),
		slog.String("time", appt.Time),
		slog.Int("duration", appt.Duration),
	)

	return &CreateAppointmentResponse{Appointment: appt}, nil
}

func idempotencyKey(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	values := md.Get("idempotency-key")
	if len(values) == 0 {
		values = md.Get("x-idempotency-key")
	}
	if len(values) == 0 {
		return ""
	}
	return strings.TrimSpace(values[0])
}

func (s *AppointmentsServer) GetAppointment(ctx context.Context, req *GetAppointmentRequest) (*GetAppointmentResponse, error) {
	log := s.log.With(slog.String("rpc", "GetAppointment"))

	if req == nil || strings.TrimSpace(req.ID) == "" {
		log.Warn("invalid request", slog.String("reason", "missing_id"))
		return nil, status.Error(codes.InvalidArgument, "id is required")
	}

	appt, err := s.svc.Get(ctx, req.ID)
	if err != nil {
		return nil, statusFromError(log, err, slog.String("appointment_id", req.ID))
	}
	return &GetAppointmentResponse{Appointment: appt}, nil
}

func (s *AppointmentsServer) ListAppointments(ctx context.Context, req *ListAppointmentsRequest) (*ListAppointmentsResponse, error) {
	log := s.log.With(slog.String("rpc", "ListAppointments"))

	var filter domain.Filter
	if req != nil {
		filter.Date = req.Date
		filter.DoctorName = req.DoctorName
		if req.Status != nil {
			st := domain.Status(*req.Status)
			if !st.IsValid() {
				log.Warn("invalid request", slog.String("reason", "unknown_status"), slog.String("status", *req.Status))
				return nil, status.Errorf(codes.InvalidArgument, "unknown status %q", *req.Status)
			}
			filter.Status = &st
		}
	}

	appts, err := s.svc.List(ctx, filter)
	if err != nil {
		return nil, statusFromError(log, err)
	}

	log.Debug("appointments listed", slog.Int("count", len(appts)))

	return &ListAppointmentsResponse{Appointments: appts}, nil
}

func (s *AppointmentsServer) UpdateAppointmentStatus(ctx context.Context, req *UpdateAppointmentStatusRequest) (*UpdateAppointmentStatusResponse, error) {
	log := s.log.With(slog.String("rpc", "UpdateAppointmentStatus"))

	if req == nil {
		log.Warn("invalid request", slog.String("reason", "nil_request"))
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}

	var opts []appointments.UpdateOption
	if req.ExpectedVersion != nil {
		opts = append(opts, appointments.IfVersion(*req.ExpectedVersion))
	}

	appt, err := s.svc.UpdateStatus(ctx, req.ID, domain.Status(req.Status), opts...)
	if err != nil {
		return nil, statusFromError(log, err,
			slog.String("appointment_id", req.ID),
			slog.String("status", req.Status),
		)
	}

	log.Info("appointment status updated", slog.String("appointment_id", appt.ID), slog.String("status", string(appt.Status)))
	return &UpdateAppointmentStatusResponse{Appointment: appt}, nil
}

func (s *AppointmentsServer) DeleteAppointment(ctx context.Context, req *DeleteAppointmentRequest) (*DeleteAppointmentResponse, error) {
	log := s.log.With(slog.String("rpc", "DeleteAppointment"))

	if req == nil {
		log.Warn("invalid request", slog.String("reason", "nil_request"))
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}

	deleted, err := s.svc.Delete(ctx, req.ID)
	if err != nil {
		return nil, statusFromError(log, err, slog.String("appointment_id", req.ID))
	}

	log.Info("appointment delete", slog.String("appointment_id", req.ID), slog.Bool("deleted", deleted))
	return &DeleteAppointmentResponse{Deleted: deleted}, nil
}

// statusFromError maps service errors to gRPC status codes and logs them at
// the level their cause deserves.
func statusFromError(log *slog.Logger, err error, attrs ...any) error {
	var (
		vErr *appointments.ValidationError
		pErr *appointments.ParseError
		cErr *appointments.ConflictError
		nErr *appointments.NotFoundError
		mErr *appointments.VersionMismatchError
	)
	switch {
	case errors.As(err, &vErr):
		log.Warn("invalid request", append([]any{slog.Any("err", err), slog.String("field", vErr.Field)}, attrs...)...)
		return status.Error(codes.InvalidArgument, vErr.Error())
	case errors.As(err, &pErr):
		log.Warn("invalid request", append([]any{slog.Any("err", err), slog.String("field", pErr.Field)}, attrs...)...)
		return status.Error(codes.InvalidArgument, pErr.Error())
	case errors.As(err, &cErr):
		log.Info("appointment conflict", append([]any{slog.String("existing_id", cErr.ExistingID)}, attrs...)...)
		return status.Error(codes.FailedPrecondition, cErr.Error())
	case errors.Is(err, store.ErrIdempotencyConflict):
		log.Info("idempotency key reused", attrs...)
		return status.Error(codes.FailedPrecondition, "This request key was already used for a different appointment. Try again.")
	case errors.As(err, &mErr):
		log.Info("appointment version mismatch", append([]any{slog.Int("expected", mErr.Expected)}, attrs...)...)
		return status.Error(codes.Aborted, mErr.Error())
	case errors.As(err, &nErr):
		log.Info("appointment not found", attrs...)
		return status.Error(codes.NotFound, nErr.Error())
	case errors.Is(err, context.DeadlineExceeded):
		log.Warn("request deadline exceeded", attrs...)
		return status.Error(codes.DeadlineExceeded, "deadline exceeded")
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, "request canceled")
	}
	log.Error("request failed", append([]any{slog.Any("err", err)}, attrs...)...)
	return status.Error(codes.Internal, "internal error")
}
