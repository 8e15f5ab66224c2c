package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"clinicdesk/backend/internal/domain"
	"clinicdesk/backend/internal/store"
)

// AppointmentRepo keeps appointments in process memory. Writers hold mu and
// publish a fresh immutable snapshot; readers load the current snapshot
// without locking.
type AppointmentRepo struct {
	mu    sync.Mutex
	state atomic.Pointer[snapshot]
	now   func() time.Time
}

type Option func(*AppointmentRepo)

// WithClock overrides the time source used for CreatedAt/UpdatedAt.
func WithClock(now func() time.Time) Option {
	return func(r *AppointmentRepo) {
		r.now = now
	}
}

func NewAppointmentRepo(opts ...Option) *AppointmentRepo {
	r := &AppointmentRepo{now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	r.state.Store(&snapshot{index: map[string]int{}})
	return r
}

func (r *AppointmentRepo) List(ctx context.Context, filter domain.Filter) ([]domain.Appointment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return r.state.Load().list(filter), nil
}

func (r *AppointmentRepo) GetByID(ctx context.Context, id string) (domain.Appointment, error) {
	if err := ctx.Err(); err != nil {
		return domain.Appointment{}, err
	}
	appt, ok := r.state.Load().get(id)
	if !ok {
		return domain.Appointment{}, store.ErrNotFound
	}
	return appt, nil
}

func (r *AppointmentRepo) UpdateStatus(ctx context.Context, id string, status domain.Status, expectedVersion int) (domain.Appointment, error) {
	if err := ctx.Err(); err != nil {
		return domain.Appointment{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cur := r.state.Load()
	i, ok := cur.index[id]
	if !ok {
		return domain.Appointment{}, store.ErrNotFound
	}
	appt := cur.items[i]
	if expectedVersion > 0 && appt.Version != expectedVersion {
		return domain.Appointment{}, store.ErrVersionMismatch
	}
	appt.Status = status
	appt.Version++
	appt.UpdatedAt = r.now().UTC()

	r.state.Store(cur.withReplaced(i, appt))
	return appt, nil
}

func (r *AppointmentRepo) Delete(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cur := r.state.Load()
	i, ok := cur.index[id]
	if !ok {
		return false, nil
	}
	r.state.Store(cur.without(i))
	return true, nil
}

// InDoctorTransaction serializes on a single store-wide lock regardless of
// doctorName.
func (r *AppointmentRepo) InDoctorTransaction(ctx context.Context, doctorName string, fn func(ctx context.Context, tx store.BookingTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	base := r.state.Load()
	tx := &bookingTx{snap: base, now: r.now}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if tx.snap != base {
		r.state.Store(tx.snap)
	}
	return nil
}

// Len reports the number of stored appointments.
func (r *AppointmentRepo) Len() int {
	return len(r.state.Load().items)
}

type bookingTx struct {
	snap *snapshot
	now  func() time.Time
}

func (t *bookingTx) ListAppointments(ctx context.Context, filter domain.Filter) ([]domain.Appointment, error) {
	return t.snap.list(filter), nil
}

func (t *bookingTx) GetAppointment(ctx context.Context, id string) (domain.Appointment, error) {
	appt, ok := t.snap.get(id)
	if !ok {
		return domain.Appointment{}, store.ErrNotFound
	}
	return appt, nil
}

func (t *bookingTx) InsertAppointment(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
	if _, exists := t.snap.index[appt.ID]; exists {
		return domain.Appointment{}, store.ErrDuplicateID
	}
	now := t.now().UTC()
	if appt.Version == 0 {
		appt.Version = 1
	}
	if appt.CreatedAt.IsZero() {
		appt.CreatedAt = now
	}
	if appt.UpdatedAt.IsZero() {
		appt.UpdatedAt = now
	}
	t.snap = t.snap.withInserted(appt)
	return appt, nil
}

// snapshot is never mutated after publication.
type snapshot struct {
	items []domain.Appointment
	index map[string]int
}

func (s *snapshot) list(filter domain.Filter) []domain.Appointment {
	out := make([]domain.Appointment, 0, len(s.items))
	for _, a := range s.items {
		if filter.Matches(a) {
			out = append(out, a)
		}
	}
	return out
}

func (s *snapshot) get(id string) (domain.Appointment, bool) {
	i, ok := s.index[id]
	if !ok {
		return domain.Appointment{}, false
	}
	return s.items[i], true
}

func (s *snapshot) withInserted(appt domain.Appointment) *snapshot {
	items := make([]domain.Appointment, len(s.items), len(s.items)+1)
	copy(items, s.items)
	items = append(items, appt)

	index := make(map[string]int, len(items))
	for k, v := range s.index {
		index[k] = v
	}
	index[appt.ID] = len(items) - 1
	return &snapshot{items: items, index: index}
}

func (s *snapshot) withReplaced(i int, appt domain.Appointment) *snapshot {
	items := make([]domain.Appointment, len(s.items))
	copy(items, s.items)
	items[i] = appt
	return &snapshot{items: items, index: s.index}
}

func (s *snapshot) without(i int) *snapshot {
	items := make([]domain.Appointment, 0, len(s.items)-1)
	items = append(items, s.items[:i]...)
	items = append(items, s.items[i+1:]...)

	index := make(map[string]int, len(items))
	for j, a := range items {
		index[a.ID] = j
	}
	return &snapshot{items: items, index: index}
}
