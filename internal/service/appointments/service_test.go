package appointments

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"clinicdesk/backend/internal/domain"
	"clinicdesk/backend/internal/store"
	"clinicdesk/backend/internal/store/memory"
)

type fakeRepo struct {
	listFn         func(ctx context.Context, filter domain.Filter) ([]domain.Appointment, error)
	getFn          func(ctx context.Context, id string) (domain.Appointment, error)
	updateStatusFn func(ctx context.Context, id string, status domain.Status, expectedVersion int) (domain.Appointment, error)
	deleteFn       func(ctx context.Context, id string) (bool, error)
	txFn           func(ctx context.Context, doctorName string, fn func(ctx context.Context, tx store.BookingTx) error) error
}

func (f *fakeRepo) List(ctx context.Context, filter domain.Filter) ([]domain.Appointment, error) {
	if f.listFn == nil {
		panic("List not configured")
	}
	return f.listFn(ctx, filter)
}

func (f *fakeRepo) GetByID(ctx context.Context, id string) (domain.Appointment, error) {
	if f.getFn == nil {
		panic("GetByID not configured")
	}
	return f.getFn(ctx, id)
}

func (f *fakeRepo) UpdateStatus(ctx context.Context, id string, status domain.Status, expectedVersion int) (domain.Appointment, error) {
	if f.updateStatusFn == nil {
		panic("UpdateStatus not configured")
	}
	return f.updateStatusFn(ctx, id, status, expectedVersion)
}

func (f *fakeRepo) Delete(ctx context.Context, id string) (bool, error) {
	if f.deleteFn == nil {
		panic("Delete not configured")
	}
	return f.deleteFn(ctx, id)
}

func (f *fakeRepo) InDoctorTransaction(ctx context.Context, doctorName string, fn func(ctx context.Context, tx store.BookingTx) error) error {
	if f.txFn == nil {
		panic("InDoctorTransaction not configured")
	}
	return f.txFn(ctx, doctorName, fn)
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []domain.AppointmentEvent
	err    error
}

func (n *recordingNotifier) Notify(ctx context.Context, ev domain.AppointmentEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
	return n.err
}

func (n *recordingNotifier) kinds() []domain.EventKind {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]domain.EventKind, 0, len(n.events))
	for _, ev := range n.events {
		out = append(out, ev.Kind)
	}
	return out
}

type countingRecorder struct {
	mu       sync.Mutex
	outcomes map[string]int
	failed   int
}

func (r *countingRecorder) CreateAttempt(outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.outcomes == nil {
		r.outcomes = map[string]int{}
	}
	r.outcomes[outcome]++
}

func (r *countingRecorder) StatusUpdated(status domain.Status) {}
func (r *countingRecorder) Deleted(removed bool)               {}

func (r *countingRecorder) NotifyFailed(kind domain.EventKind) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed++
}

func validInput() CreateInput {
	return CreateInput{
		PatientName: "Test Patient",
		Date:        "2025-12-25",
		Time:        "10:00",
		Duration:    30,
		DoctorName:  "Dr. Sarah Johnson",
		Mode:        domain.ModeInPerson,
	}
}

func at(clock string, duration int) CreateInput {
	in := validInput()
	in.Time = clock
	in.Duration = duration
	return in
}

func TestServiceCreate_ValidationErrorNamesField(t *testing.T) {
	svc := NewService(&fakeRepo{})

	tests := []struct {
		name      string
		mutate    func(in *CreateInput)
		wantField string
	}{
		{name: "missing patient", mutate: func(in *CreateInput) { in.PatientName = "  " }, wantField: "patientName"},
		{name: "missing date", mutate: func(in *CreateInput) { in.Date = "" }, wantField: "date"},
		{name: "missing time", mutate: func(in *CreateInput) { in.Time = "" }, wantField: "time"},
		{name: "missing duration", mutate: func(in *CreateInput) { in.Duration = 0 }, wantField: "duration"},
		{name: "negative duration", mutate: func(in *CreateInput) { in.Duration = -15 }, wantField: "duration"},
		{name: "duration too long", mutate: func(in *CreateInput) { in.Duration = 24*60 + 1 }, wantField: "duration"},
		{name: "missing doctor", mutate: func(in *CreateInput) { in.DoctorName = "" }, wantField: "doctorName"},
		{name: "missing mode", mutate: func(in *CreateInput) { in.Mode = "" }, wantField: "mode"},
		{name: "unknown mode", mutate: func(in *CreateInput) { in.Mode = "Telepathy" }, wantField: "mode"},
		{name: "unknown status", mutate: func(in *CreateInput) { in.Status = "Pending" }, wantField: "status"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validInput()
			tt.mutate(&in)

			_, err := svc.Create(context.Background(), in)
			var vErr *ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("error type = %T (%v), want *ValidationError", err, err)
			}
			if vErr.Field != tt.wantField {
				t.Fatalf("field = %q, want %q", vErr.Field, tt.wantField)
			}
		})
	}
}

func TestServiceCreate_ParseError(t *testing.T) {
	svc := NewService(&fakeRepo{})

	tests := []struct {
		name      string
		date      string
		clock     string
		wantField string
	}{
		{name: "malformed date", date: "25/12/2025", clock: "10:00", wantField: "date"},
		{name: "impossible date", date: "2025-13-01", clock: "10:00", wantField: "date"},
		{name: "malformed time", date: "2025-12-25", clock: "ten", wantField: "time"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validInput()
			in.Date = tt.date
			in.Time = tt.clock

			_, err := svc.Create(context.Background(), in)
			var pErr *ParseError
			if !errors.As(err, &pErr) {
				t.Fatalf("error type = %T (%v), want *ParseError", err, err)
			}
			if pErr.Field != tt.wantField {
				t.Fatalf("field = %q, want %q", pErr.Field, tt.wantField)
			}
		})
	}
}

func TestServiceCreate_DefaultsAndNormalization(t *testing.T) {
	svc := NewService(memory.NewAppointmentRepo())

	in := validInput()
	in.Time = "9:05"
	in.PatientName = "  Test Patient "

	got, err := svc.Create(context.Background(), in)
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if got.ID == "" {
		t.Fatalf("expected generated id")
	}
	if got.Status != domain.StatusScheduled {
		t.Fatalf("status = %q, want %q", got.Status, domain.StatusScheduled)
	}
	if got.Type != "General Consultation" {
		t.Fatalf("type = %q, want %q", got.Type, "General Consultation")
	}
	if got.Time != "09:05" {
		t.Fatalf("time = %q, want %q", got.Time, "09:05")
	}
	if got.PatientName != "Test Patient" {
		t.Fatalf("patientName = %q, want %q", got.PatientName, "Test Patient")
	}

	stored, err := svc.Get(context.Background(), got.ID)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if stored.ID != got.ID {
		t.Fatalf("stored id = %q, want %q", stored.ID, got.ID)
	}
}

func TestServiceCreate_ExplicitStatusAndType(t *testing.T) {
	svc := NewService(memory.NewAppointmentRepo())

	in := validInput()
	in.Status = domain.StatusUpcoming
	in.Type = "Follow-up"

	got, err := svc.Create(context.Background(), in)
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if got.Status != domain.StatusUpcoming || got.Type != "Follow-up" {
		t.Fatalf("got status=%q type=%q", got.Status, got.Type)
	}
}

func TestServiceCreate_OverlapRules(t *testing.T) {
	tests := []struct {
		name         string
		first        CreateInput
		cancelFirst  bool
		second       CreateInput
		wantConflict bool
	}{
		{name: "partial overlap after", first: at("10:00", 30), second: at("10:15", 30), wantConflict: true},
		{name: "partial overlap before", first: at("10:15", 30), second: at("10:00", 30), wantConflict: true},
		{name: "contained", first: at("10:00", 60), second: at("10:30", 30), wantConflict: true},
		{name: "adjacent", first: at("10:00", 30), second: at("10:30", 30)},
		{name: "cancelled slot is free", first: at("10:00", 30), cancelFirst: true, second: at("10:00", 30)},
		{
			name:  "different doctor",
			first: at("10:00", 30),
			second: func() CreateInput {
				in := at("10:00", 30)
				in.DoctorName = "Dr. Michael Chen"
				return in
			}(),
		},
		{
			name:  "different date",
			first: at("10:00", 30),
			second: func() CreateInput {
				in := at("10:00", 30)
				in.Date = "2025-12-26"
				return in
			}(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(memory.NewAppointmentRepo())
			ctx := context.Background()

			first, err := svc.Create(ctx, tt.first)
			if err != nil {
				t.Fatalf("first Create error: %v", err)
			}
			if tt.cancelFirst {
				if _, err := svc.UpdateStatus(ctx, first.ID, domain.StatusCancelled); err != nil {
					t.Fatalf("UpdateStatus error: %v", err)
				}
			}

			_, err = svc.Create(ctx, tt.second)
			if !tt.wantConflict {
				if err != nil {
					t.Fatalf("second Create error: %v", err)
				}
				return
			}

			var cErr *ConflictError
			if !errors.As(err, &cErr) {
				t.Fatalf("error type = %T (%v), want *ConflictError", err, err)
			}
			if !errors.Is(err, store.ErrConflict) {
				t.Fatalf("ConflictError must unwrap to store.ErrConflict")
			}
			if cErr.DoctorName != tt.second.DoctorName || cErr.Time != tt.second.Time {
				t.Fatalf("conflict = %+v, want doctor %q time %q", cErr, tt.second.DoctorName, tt.second.Time)
			}
			if cErr.ExistingID != first.ID {
				t.Fatalf("existing id = %q, want %q", cErr.ExistingID, first.ID)
			}
		})
	}
}

func TestServiceCreate_ConcurrentIdenticalSlot(t *testing.T) {
	const attempts = 16

	for round := 0; round < 20; round++ {
		svc := NewService(memory.NewAppointmentRepo())

		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			successes int
			conflicts int
			others    []error
		)
		start := make(chan struct{})
		for i := 0; i < attempts; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				_, err := svc.Create(context.Background(), at("10:00", 30))

				mu.Lock()
				defer mu.Unlock()
				var cErr *ConflictError
				switch {
				case err == nil:
					successes++
				case errors.As(err, &cErr):
					conflicts++
				default:
					others = append(others, err)
				}
			}()
		}
		close(start)
		wg.Wait()

		if len(others) > 0 {
			t.Fatalf("unexpected errors: %v", others)
		}
		if successes != 1 || conflicts != attempts-1 {
			t.Fatalf("round %d: successes=%d conflicts=%d, want 1 and %d", round, successes, conflicts, attempts-1)
		}
	}
}

func TestServiceCreate_IdempotencyKey(t *testing.T) {
	t.Run("replay returns stored appointment", func(t *testing.T) {
		notifier := &recordingNotifier{}
		svc := NewService(memory.NewAppointmentRepo(), WithNotifier(notifier))

		in := validInput()
		in.IdempotencyKey = "k1"

		first, err := svc.Create(context.Background(), in)
		if err != nil {
			t.Fatalf("Create error: %v", err)
		}
		second, err := svc.Create(context.Background(), in)
		if err != nil {
			t.Fatalf("replayed Create error: %v", err)
		}
		if first.ID != second.ID {
			t.Fatalf("ids differ: %s vs %s", first.ID, second.ID)
		}
		if got := len(notifier.kinds()); got != 1 {
			t.Fatalf("notifications = %d, want 1", got)
		}
	})

	t.Run("same key different payload", func(t *testing.T) {
		svc := NewService(memory.NewAppointmentRepo())

		in := validInput()
		in.IdempotencyKey = "k1"
		if _, err := svc.Create(context.Background(), in); err != nil {
			t.Fatalf("Create error: %v", err)
		}

		in.Time = "15:00"
		_, err := svc.Create(context.Background(), in)
		if !errors.Is(err, store.ErrIdempotencyConflict) {
			t.Fatalf("err = %v, want %v", err, store.ErrIdempotencyConflict)
		}
	})

	t.Run("different keys different ids", func(t *testing.T) {
		svc := NewService(memory.NewAppointmentRepo())

		a := at("10:00", 30)
		a.IdempotencyKey = "k1"
		b := at("11:00", 30)
		b.IdempotencyKey = "k2"

		first, err := svc.Create(context.Background(), a)
		if err != nil {
			t.Fatalf("Create error: %v", err)
		}
		second, err := svc.Create(context.Background(), b)
		if err != nil {
			t.Fatalf("Create error: %v", err)
		}
		if first.ID == second.ID {
			t.Fatalf("expected different ids, got %s", first.ID)
		}
	})
}

func TestServiceCreate_PropagatesStoreErrors(t *testing.T) {
	boom := errors.New("boom")
	svc := NewService(&fakeRepo{
		txFn: func(ctx context.Context, doctorName string, fn func(ctx context.Context, tx store.BookingTx) error) error {
			return boom
		},
	})

	_, err := svc.Create(context.Background(), validInput())
	if !errors.Is(err, boom) {
		t.Fatalf("error = %v, want %v", err, boom)
	}
}

func TestServiceCreate_StoreConflictBecomesConflictError(t *testing.T) {
	svc := NewService(&fakeRepo{
		txFn: func(ctx context.Context, doctorName string, fn func(ctx context.Context, tx store.BookingTx) error) error {
			return store.ErrConflict
		},
	})

	_, err := svc.Create(context.Background(), validInput())
	var cErr *ConflictError
	if !errors.As(err, &cErr) {
		t.Fatalf("error type = %T, want *ConflictError", err)
	}
	if cErr.DoctorName != "Dr. Sarah Johnson" || cErr.Time != "10:00" {
		t.Fatalf("conflict = %+v", cErr)
	}
}

func TestServiceCreate_KeyedDuplicateIDResolvedFromStoredRow(t *testing.T) {
	stored := func(doctor string) func(ctx context.Context, id string) (domain.Appointment, error) {
		return func(ctx context.Context, id string) (domain.Appointment, error) {
			return domain.Appointment{
				ID:          id,
				PatientName: "Test Patient",
				Date:        "2025-12-25",
				Time:        "10:00",
				Duration:    30,
				DoctorName:  doctor,
				Status:      domain.StatusScheduled,
				Mode:        domain.ModeInPerson,
				Type:        domain.DefaultType,
				Version:     1,
			}, nil
		}
	}
	duplicate := func(ctx context.Context, doctorName string, fn func(ctx context.Context, tx store.BookingTx) error) error {
		return fmt.Errorf("insert appointment: %w", store.ErrDuplicateID)
	}

	t.Run("same booking replays", func(t *testing.T) {
		rec := &countingRecorder{}
		notifier := &recordingNotifier{}
		svc := NewService(&fakeRepo{txFn: duplicate, getFn: stored("Dr. Sarah Johnson")},
			WithRecorder(rec), WithNotifier(notifier))

		in := validInput()
		in.IdempotencyKey = "booking-1"
		got, err := svc.Create(context.Background(), in)
		if err != nil {
			t.Fatalf("Create error: %v", err)
		}
		if got.DoctorName != "Dr. Sarah Johnson" || got.Version != 1 {
			t.Fatalf("replay = %+v", got)
		}
		if rec.outcomes[OutcomeReplayed] != 1 {
			t.Fatalf("outcomes = %v, want one replay", rec.outcomes)
		}
		if len(notifier.kinds()) != 0 {
			t.Fatalf("replay must not notify, got %v", notifier.kinds())
		}
	})

	t.Run("different doctor is a key conflict", func(t *testing.T) {
		svc := NewService(&fakeRepo{txFn: duplicate, getFn: stored("Dr. Michael Chen")})

		in := validInput()
		in.IdempotencyKey = "booking-1"
		if _, err := svc.Create(context.Background(), in); !errors.Is(err, store.ErrIdempotencyConflict) {
			t.Fatalf("err = %v, want %v", err, store.ErrIdempotencyConflict)
		}
	})

	t.Run("unkeyed duplicate stays an internal error", func(t *testing.T) {
		svc := NewService(&fakeRepo{txFn: duplicate})

		_, err := svc.Create(context.Background(), validInput())
		if !errors.Is(err, store.ErrDuplicateID) {
			t.Fatalf("err = %v, want %v", err, store.ErrDuplicateID)
		}
	})
}

func TestServiceCreate_MidnightCrossingIsCheckedPerDate(t *testing.T) {
	svc := NewService(memory.NewAppointmentRepo())

	late := validInput()
	late.Time = "23:50"
	late.Duration = 30
	if _, err := svc.Create(context.Background(), late); err != nil {
		t.Fatalf("late Create error: %v", err)
	}

	early := validInput()
	early.Date = "2025-12-26"
	early.Time = "00:00"
	if _, err := svc.Create(context.Background(), early); err != nil {
		t.Fatalf("next-day Create err = %v, want nil", err)
	}
}

func TestServiceCreate_LocksCandidateDoctor(t *testing.T) {
	var locked string
	svc := NewService(&fakeRepo{
		txFn: func(ctx context.Context, doctorName string, fn func(ctx context.Context, tx store.BookingTx) error) error {
			locked = doctorName
			return nil
		},
	})

	in := validInput()
	in.DoctorName = " Dr. Michael Chen "
	if _, err := svc.Create(context.Background(), in); err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if locked != "Dr. Michael Chen" {
		t.Fatalf("locked doctor = %q, want %q", locked, "Dr. Michael Chen")
	}
}

func TestServiceUpdateStatus(t *testing.T) {
	t.Run("any transition allowed", func(t *testing.T) {
		svc := NewService(memory.NewAppointmentRepo())
		created, err := svc.Create(context.Background(), validInput())
		if err != nil {
			t.Fatalf("Create error: %v", err)
		}

		for _, st := range []domain.Status{domain.StatusCompleted, domain.StatusScheduled, domain.StatusCancelled, domain.StatusUpcoming} {
			got, err := svc.UpdateStatus(context.Background(), created.ID, st)
			if err != nil {
				t.Fatalf("UpdateStatus(%s) error: %v", st, err)
			}
			if got.Status != st {
				t.Fatalf("status = %q, want %q", got.Status, st)
			}
		}
	})

	t.Run("unknown id", func(t *testing.T) {
		svc := NewService(memory.NewAppointmentRepo())
		_, err := svc.UpdateStatus(context.Background(), "missing", domain.StatusConfirmed)
		var nErr *NotFoundError
		if !errors.As(err, &nErr) {
			t.Fatalf("error type = %T, want *NotFoundError", err)
		}
		if nErr.ID != "missing" {
			t.Fatalf("id = %q, want %q", nErr.ID, "missing")
		}
		if !errors.Is(err, store.ErrNotFound) {
			t.Fatalf("NotFoundError must unwrap to store.ErrNotFound")
		}
	})

	t.Run("unknown status", func(t *testing.T) {
		svc := NewService(memory.NewAppointmentRepo())
		_, err := svc.UpdateStatus(context.Background(), "x", "Postponed")
		var vErr *ValidationError
		if !errors.As(err, &vErr) || vErr.Field != "status" {
			t.Fatalf("err = %v, want status ValidationError", err)
		}
	})

	t.Run("version precondition", func(t *testing.T) {
		svc := NewService(memory.NewAppointmentRepo())
		created, err := svc.Create(context.Background(), validInput())
		if err != nil {
			t.Fatalf("Create error: %v", err)
		}

		confirmed, err := svc.UpdateStatus(context.Background(), created.ID, domain.StatusConfirmed, IfVersion(created.Version))
		if err != nil {
			t.Fatalf("UpdateStatus error: %v", err)
		}
		if confirmed.Version != created.Version+1 {
			t.Fatalf("version = %d, want %d", confirmed.Version, created.Version+1)
		}

		_, err = svc.UpdateStatus(context.Background(), created.ID, domain.StatusCancelled, IfVersion(created.Version))
		var mErr *VersionMismatchError
		if !errors.As(err, &mErr) {
			t.Fatalf("err = %v, want *VersionMismatchError", err)
		}
		if mErr.ID != created.ID || mErr.Expected != created.Version {
			t.Fatalf("mismatch = %+v", mErr)
		}
		if !errors.Is(err, store.ErrVersionMismatch) {
			t.Fatalf("VersionMismatchError must unwrap to store.ErrVersionMismatch")
		}
	})

	t.Run("non-positive version", func(t *testing.T) {
		svc := NewService(memory.NewAppointmentRepo())
		_, err := svc.UpdateStatus(context.Background(), "x", domain.StatusConfirmed, IfVersion(0))
		var vErr *ValidationError
		if !errors.As(err, &vErr) || vErr.Field != "version" {
			t.Fatalf("err = %v, want version ValidationError", err)
		}
	})
}

func TestServiceDelete_Idempotent(t *testing.T) {
	svc := NewService(memory.NewAppointmentRepo())
	created, err := svc.Create(context.Background(), validInput())
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}

	removed, err := svc.Delete(context.Background(), created.ID)
	if err != nil || !removed {
		t.Fatalf("first Delete = %v, %v; want true, nil", removed, err)
	}
	removed, err = svc.Delete(context.Background(), created.ID)
	if err != nil || removed {
		t.Fatalf("second Delete = %v, %v; want false, nil", removed, err)
	}

	if _, err := svc.Get(context.Background(), created.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("Get err = %v, want not found", err)
	}
}

func TestServiceList_FilterConjunction(t *testing.T) {
	svc := NewService(memory.NewAppointmentRepo())
	ctx := context.Background()

	mk := func(date, clock string, status domain.Status, doctor string) {
		in := validInput()
		in.Date, in.Time, in.Status, in.DoctorName = date, clock, status, doctor
		if _, err := svc.Create(ctx, in); err != nil {
			t.Fatalf("Create error: %v", err)
		}
	}
	mk("2025-11-06", "09:00", domain.StatusUpcoming, "Dr. Sarah Johnson")
	mk("2025-11-06", "09:30", domain.StatusUpcoming, "Dr. Michael Chen")
	mk("2025-11-06", "10:00", domain.StatusCompleted, "Dr. Sarah Johnson")
	mk("2025-11-07", "14:00", domain.StatusUpcoming, "Dr. Sarah Johnson")

	date := "2025-11-06"
	upcoming := domain.StatusUpcoming
	got, err := svc.List(ctx, domain.Filter{Date: &date, Status: &upcoming})
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	for _, a := range got {
		if a.Date != date || a.Status != upcoming {
			t.Fatalf("unexpected appointment %+v", a)
		}
	}
	if got[0].Time != "09:00" || got[1].Time != "09:30" {
		t.Fatalf("order = %s,%s, want insertion order", got[0].Time, got[1].Time)
	}

	all, err := svc.List(ctx, domain.Filter{})
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("len = %d, want 4", len(all))
	}
}

func TestService_NotifiesCommittedChanges(t *testing.T) {
	notifier := &recordingNotifier{}
	fixed := time.Date(2025, 11, 6, 8, 0, 0, 0, time.UTC)
	svc := NewService(memory.NewAppointmentRepo(), WithNotifier(notifier), WithClock(func() time.Time { return fixed }))
	ctx := context.Background()

	created, err := svc.Create(ctx, at("10:00", 30))
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if _, err := svc.Create(ctx, at("10:15", 30)); err == nil {
		t.Fatalf("expected conflict")
	}
	if _, err := svc.UpdateStatus(ctx, created.ID, domain.StatusConfirmed); err != nil {
		t.Fatalf("UpdateStatus error: %v", err)
	}
	if _, err := svc.UpdateStatus(ctx, "missing", domain.StatusConfirmed); err == nil {
		t.Fatalf("expected not found")
	}
	if _, err := svc.Delete(ctx, created.ID); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if _, err := svc.Delete(ctx, created.ID); err != nil {
		t.Fatalf("Delete error: %v", err)
	}

	want := []domain.EventKind{domain.EventCreated, domain.EventStatusChanged, domain.EventDeleted}
	got := notifier.kinds()
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("events = %v, want %v", got, want)
		}
	}
	if !notifier.events[0].OccurredAt.Equal(fixed) {
		t.Fatalf("occurredAt = %v, want %v", notifier.events[0].OccurredAt, fixed)
	}
	if notifier.events[1].Appointment.Status != domain.StatusConfirmed {
		t.Fatalf("status event carries %q", notifier.events[1].Appointment.Status)
	}
}

func TestService_NotifierFailureDoesNotFailOperation(t *testing.T) {
	notifier := &recordingNotifier{err: errors.New("broker down")}
	recorder := &countingRecorder{}
	svc := NewService(memory.NewAppointmentRepo(), WithNotifier(notifier), WithRecorder(recorder))

	got, err := svc.Create(context.Background(), validInput())
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if _, err := svc.Get(context.Background(), got.ID); err != nil {
		t.Fatalf("appointment not committed: %v", err)
	}
	if recorder.failed != 1 {
		t.Fatalf("notify failures = %d, want 1", recorder.failed)
	}
	if recorder.outcomes[OutcomeCreated] != 1 {
		t.Fatalf("outcomes = %v", recorder.outcomes)
	}
}
