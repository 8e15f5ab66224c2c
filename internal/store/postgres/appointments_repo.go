package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/uptrace/bun"

	"clinicdesk/backend/internal/domain"
	"clinicdesk/backend/internal/store"
)

const (
	pgUniqueViolation    = "23505"
	pgExclusionViolation = "23P01"

	overlapConstraint = "appointments_no_overlap"
)

type appointmentRow struct {
	bun.BaseModel `bun:"table:appointments"`

	ID          string    `bun:"id,pk"`
	Seq         int64     `bun:"seq,scanonly"`
	PatientName string    `bun:"patient_name,notnull"`
	Date        string    `bun:"appointment_date,notnull"`
	Time        string    `bun:"appointment_time,notnull"`
	Duration    int       `bun:"duration_minutes,notnull"`
	DoctorName  string    `bun:"doctor_name,notnull"`
	Status      string    `bun:"status,notnull"`
	Mode        string    `bun:"mode,notnull"`
	Type        string    `bun:"type,notnull"`
	Version     int       `bun:"version,notnull"`
	StartsAt    time.Time `bun:"starts_at,notnull"`
	EndsAt      time.Time `bun:"ends_at,notnull"`
	CreatedAt   time.Time `bun:"created_at,notnull"`
	UpdatedAt   time.Time `bun:"updated_at,notnull"`
}

func newAppointmentRow(appt domain.Appointment) (appointmentRow, error) {
	slot, err := appt.Slot()
	if err != nil {
		return appointmentRow{}, err
	}
	return appointmentRow{
		ID:          appt.ID,
		PatientName: appt.PatientName,
		Date:        appt.Date,
		Time:        appt.Time,
		Duration:    appt.Duration,
		DoctorName:  appt.DoctorName,
		Status:      string(appt.Status),
		Mode:        string(appt.Mode),
		Type:        appt.Type,
		Version:     appt.Version,
		StartsAt:    slot.Start,
		EndsAt:      slot.End,
		CreatedAt:   appt.CreatedAt,
		UpdatedAt:   appt.UpdatedAt,
	}, nil
}

func (r appointmentRow) toDomain() domain.Appointment {
	return domain.Appointment{
		ID:          r.ID,
		PatientName: r.PatientName,
		Date:        r.Date,
		Time:        r.Time,
		Duration:    r.Duration,
		DoctorName:  r.DoctorName,
		Status:      domain.Status(r.Status),
		Mode:        domain.Mode(r.Mode),
		Type:        r.Type,
		Version:     r.Version,
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
}

type AppointmentRepo struct {
	db  *bun.DB
	now func() time.Time
}

func NewAppointmentRepo(db *bun.DB) *AppointmentRepo {
	return &AppointmentRepo{db: db, now: time.Now}
}

type bookingTx struct {
	tx  bun.Tx
	now func() time.Time
}

func (r *AppointmentRepo) List(ctx context.Context, filter domain.Filter) ([]domain.Appointment, error) {
	return listAppointments(ctx, r.db, filter)
}

func (r *AppointmentRepo) GetByID(ctx context.Context, id string) (domain.Appointment, error) {
	return getAppointment(ctx, r.db, id)
}

func (r *AppointmentRepo) UpdateStatus(ctx context.Context, id string, status domain.Status, expectedVersion int) (domain.Appointment, error) {
	var row appointmentRow
	q := r.db.NewUpdate().
		Model(&row).
		Set("status = ?", string(status)).
		Set("version = version + 1").
		Set("updated_at = ?", r.now().UTC()).
		Where("id = ?", id)
	if expectedVersion > 0 {
		q = q.Where("version = ?", expectedVersion)
	}
	res, err := q.Returning("*").Exec(ctx)
	if err != nil {
		return domain.Appointment{}, mapWriteError(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.Appointment{}, err
	}
	if affected == 0 {
		if expectedVersion > 0 {
			if _, err := getAppointment(ctx, r.db, id); err == nil {
				return domain.Appointment{}, store.ErrVersionMismatch
			}
		}
		return domain.Appointment{}, store.ErrNotFound
	}
	return row.toDomain(), nil
}

func (r *AppointmentRepo) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.db.NewDelete().
		Model((*appointmentRow)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// InDoctorTransaction runs fn in a database transaction holding a
// transaction-scoped advisory lock on the doctor's name, so concurrent
// bookings for one doctor serialize across processes.
func (r *AppointmentRepo) InDoctorTransaction(ctx context.Context, doctorName string, fn func(ctx context.Context, tx store.BookingTx) error) error {
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := lockDoctorSchedule(ctx, tx, doctorName); err != nil {
			return err
		}
		return fn(ctx, bookingTx{tx: tx, now: r.now})
	})
}

func lockDoctorSchedule(ctx context.Context, tx bun.Tx, doctorName string) error {
	_, err := tx.NewRaw("SELECT pg_advisory_xact_lock(hashtext(?))", doctorName).Exec(ctx)
	return err
}

func (t bookingTx) ListAppointments(ctx context.Context, filter domain.Filter) ([]domain.Appointment, error) {
	return listAppointments(ctx, t.tx, filter)
}

func (t bookingTx) GetAppointment(ctx context.Context, id string) (domain.Appointment, error) {
	return getAppointment(ctx, t.tx, id)
}

func (t bookingTx) InsertAppointment(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
	now := t.now().UTC()
	appt.CreatedAt = now
	appt.UpdatedAt = now
	if appt.Version == 0 {
		appt.Version = 1
	}

	row, err := newAppointmentRow(appt)
	if err != nil {
		return domain.Appointment{}, err
	}
	if _, err := t.tx.NewInsert().Model(&row).Exec(ctx); err != nil {
		return domain.Appointment{}, mapWriteError(err)
	}
	return row.toDomain(), nil
}

func listAppointments(ctx context.Context, db bun.IDB, filter domain.Filter) ([]domain.Appointment, error) {
	var rows []appointmentRow
	q := db.NewSelect().Model(&rows)
	if filter.Date != nil {
		q = q.Where("appointment_date = ?", *filter.Date)
	}
	if filter.Status != nil {
		q = q.Where("status = ?", string(*filter.Status))
	}
	if filter.DoctorName != nil {
		q = q.Where("doctor_name = ?", *filter.DoctorName)
	}
	if err := q.OrderExpr("seq ASC").Scan(ctx); err != nil {
		return nil, err
	}

	out := make([]domain.Appointment, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

func getAppointment(ctx context.Context, db bun.IDB, id string) (domain.Appointment, error) {
	var row appointmentRow
	err := db.NewSelect().
		Model(&row).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Appointment{}, store.ErrNotFound
		}
		return domain.Appointment{}, err
	}
	return row.toDomain(), nil
}

func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch {
	case pgErr.Code == pgExclusionViolation && pgErr.ConstraintName == overlapConstraint:
		return store.ErrConflict
	case pgErr.Code == pgUniqueViolation && pgErr.ConstraintName == "appointments_pkey":
		return store.ErrDuplicateID
	}
	return err
}
