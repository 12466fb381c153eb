package appointment

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"

	"github.com/carelink/telehealth/internal/domain/doctor"
	"github.com/carelink/telehealth/internal/platform/apperr"
	"github.com/carelink/telehealth/internal/platform/auth"
	"github.com/carelink/telehealth/internal/platform/cache"
	"github.com/carelink/telehealth/internal/platform/events"
	"github.com/carelink/telehealth/internal/platform/telemetry"
)

// -- Mock Repository --

// mockRepo enforces the same one-live-booking-per-slot rule as the
// partial unique index.
type mockRepo struct {
	mu    sync.Mutex
	appts map[uuid.UUID]*Appointment

	// hideDay makes ListForDoctorBetween return nothing, simulating a
	// concurrent insert that the advisory check did not see.
	hideDay   bool
	listErr   error
	createErr error
	lists     int
}

func newMockRepo() *mockRepo {
	return &mockRepo{appts: make(map[uuid.UUID]*Appointment)}
}

func (m *mockRepo) Create(_ context.Context, a *Appointment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	for _, e := range m.appts {
		if e.DoctorID == a.DoctorID && e.ScheduledAt.Equal(a.ScheduledAt) && e.Status != StatusCancelled {
			return ErrSlotConflict
		}
	}
	a.ID = uuid.New()
	a.CreatedAt = time.Now()
	a.UpdatedAt = a.CreatedAt
	cp := *a
	m.appts[a.ID] = &cp
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appts[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *mockRepo) ListForDoctorBetween(_ context.Context, doctorID uuid.UUID, from, to time.Time) ([]*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lists++
	if m.listErr != nil {
		return nil, m.listErr
	}
	if m.hideDay {
		return nil, nil
	}
	var out []*Appointment
	for _, a := range m.appts {
		if a.DoctorID == doctorID && !a.ScheduledAt.Before(from) && a.ScheduledAt.Before(to) {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockRepo) list(match func(*Appointment) bool, limit, offset int) ([]*Appointment, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Appointment
	for _, a := range m.appts {
		if match(a) {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledAt.Before(out[j].ScheduledAt) })
	total := len(out)
	if offset >= total {
		return nil, total
	}
	out = out[offset:]
	if limit < len(out) {
		out = out[:limit]
	}
	return out, total
}

func (m *mockRepo) ListByPatient(_ context.Context, patientID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	items, total := m.list(func(a *Appointment) bool { return a.PatientID == patientID }, limit, offset)
	return items, total, nil
}

func (m *mockRepo) ListByDoctor(_ context.Context, doctorID uuid.UUID, f ListFilter, limit, offset int) ([]*Appointment, int, error) {
	items, total := m.list(func(a *Appointment) bool {
		if a.DoctorID != doctorID {
			return false
		}
		for _, s := range f.ExcludeStatuses {
			if a.Status == s {
				return false
			}
		}
		return true
	}, limit, offset)
	return items, total, nil
}

func (m *mockRepo) Transition(_ context.Context, id uuid.UUID, to Status, notes *string) (*Appointment, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appts[id]
	if !ok || a.Status != StatusConfirmed {
		return nil, false, nil
	}
	a.Status = to
	if notes != nil {
		a.Notes = *notes
	}
	a.UpdatedAt = time.Now()
	cp := *a
	return &cp, true, nil
}

func (m *mockRepo) seed(a *Appointment) *Appointment {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	cp := *a
	m.appts[a.ID] = &cp
	return a
}

// -- Mock doctor lookup --

type mockDoctors struct {
	byID map[uuid.UUID]*doctor.Doctor
	err  error
}

func newMockDoctors(docs ...*doctor.Doctor) *mockDoctors {
	m := &mockDoctors{byID: make(map[uuid.UUID]*doctor.Doctor)}
	for _, d := range docs {
		m.byID[d.ID] = d
	}
	return m
}

func (m *mockDoctors) Lookup(_ context.Context, id uuid.UUID) (*doctor.Doctor, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.byID[id], nil
}

func (m *mockDoctors) ForUser(_ context.Context, userID uuid.UUID) (*doctor.Doctor, error) {
	if m.err != nil {
		return nil, m.err
	}
	for _, d := range m.byID {
		if d.UserID == userID {
			return d, nil
		}
	}
	return nil, nil
}

type testEnv struct {
	svc     *Service
	repo    *mockRepo
	doc     *doctor.Doctor
	events  *events.Recorder
	cache   *cache.Memory
	metrics *telemetry.Metrics
}

func newTestEnv() *testEnv {
	doc := bookableDoctor()
	repo := newMockRepo()
	rec := &events.Recorder{}
	mem := cache.NewMemory()
	m := telemetry.NewMetrics("test", prometheus.NewRegistry())
	svc := NewService(repo, newMockDoctors(doc), newTestValidator(), zerolog.Nop(),
		WithCache(mem, time.Minute), WithPublisher(rec), WithMetrics(m))
	return &testEnv{svc: svc, repo: repo, doc: doc, events: rec, cache: mem, metrics: m}
}

func (e *testEnv) doctorCaller() auth.Identity {
	return auth.Identity{ID: e.doc.UserID, Name: e.doc.Name, Role: auth.RoleDoctor}
}

func (e *testEnv) confirmed(patientID uuid.UUID, hour int) *Appointment {
	return e.repo.seed(&Appointment{
		PatientID: patientID, DoctorID: e.doc.ID,
		ScheduledAt: at(hour, 0), Status: StatusConfirmed, Notes: "Initial consult",
	})
}

// -- Book --

func TestService_Book(t *testing.T) {
	env := newTestEnv()
	caller := patientCaller()
	ctx := context.Background()

	a, err := env.svc.Book(ctx, caller, validRequest(env.doc.ID))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.ID == uuid.Nil || a.Status != StatusConfirmed || a.PatientID != caller.ID {
		t.Errorf("unexpected appointment %+v", a)
	}
	if got := env.events.Types(); len(got) != 1 || got[0] != events.AppointmentBooked {
		t.Errorf("expected one booked event, got %v", got)
	}
	if v := testutil.ToFloat64(env.metrics.BookingsTotal.WithLabelValues("booked")); v != 1 {
		t.Errorf("expected booked counter 1, got %v", v)
	}
}

func TestService_Book_SlotTaken(t *testing.T) {
	env := newTestEnv()
	env.confirmed(uuid.New(), 14)

	req := validRequest(env.doc.ID)
	req.Time = "14:00"
	_, err := env.svc.Book(context.Background(), patientCaller(), req)
	if !errors.Is(err, apperr.ErrSlotTaken) {
		t.Fatalf("expected slot taken, got %v", err)
	}
	if len(env.events.Events()) != 0 {
		t.Error("no event expected on rejection")
	}
	if v := testutil.ToFloat64(env.metrics.BookingsTotal.WithLabelValues(string(apperr.KindSlotTaken))); v != 1 {
		t.Errorf("expected slot-taken counter 1, got %v", v)
	}
}

func TestService_Book_StoreUniquenessIsFinal(t *testing.T) {
	env := newTestEnv()
	env.confirmed(uuid.New(), 15)
	env.repo.hideDay = true

	_, err := env.svc.Book(context.Background(), patientCaller(), validRequest(env.doc.ID))
	if !errors.Is(err, apperr.ErrSlotTaken) {
		t.Fatalf("expected slot taken from store conflict, got %v", err)
	}
}

func TestService_Book_ConcurrentSameSlot(t *testing.T) {
	env := newTestEnv()
	env.repo.hideDay = true

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = env.svc.Book(context.Background(), patientCaller(), validRequest(env.doc.ID))
		}(i)
	}
	wg.Wait()

	var ok, taken int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, apperr.ErrSlotTaken):
			taken++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if ok != 1 || taken != n-1 {
		t.Errorf("expected 1 success and %d conflicts, got %d and %d", n-1, ok, taken)
	}
}

func TestService_Book_RebookAfterCancel(t *testing.T) {
	env := newTestEnv()
	env.repo.seed(&Appointment{PatientID: uuid.New(), DoctorID: env.doc.ID, ScheduledAt: at(15, 0), Status: StatusCancelled})

	if _, err := env.svc.Book(context.Background(), patientCaller(), validRequest(env.doc.ID)); err != nil {
		t.Fatalf("cancelled slot should be bookable: %v", err)
	}
}

func TestService_Book_UnknownDoctor(t *testing.T) {
	env := newTestEnv()
	_, err := env.svc.Book(context.Background(), patientCaller(), validRequest(uuid.New()))
	if !errors.Is(err, apperr.ErrInvalidDoctor) {
		t.Fatalf("expected invalid doctor, got %v", err)
	}
}

func TestService_Book_ValidationSkipsStore(t *testing.T) {
	env := newTestEnv()
	req := validRequest(env.doc.ID)
	req.Notes = "hi"
	_, err := env.svc.Book(context.Background(), patientCaller(), req)
	requireAppErr(t, err, apperr.KindValidation, "notes")
	if env.repo.lists != 0 {
		t.Error("store should not be read for invalid input")
	}
}

func TestService_Book_StoreErrors(t *testing.T) {
	env := newTestEnv()
	env.repo.listErr = errors.New("connection reset")
	_, err := env.svc.Book(context.Background(), patientCaller(), validRequest(env.doc.ID))
	if !errors.Is(err, apperr.ErrStore) {
		t.Fatalf("expected store error on listing, got %v", err)
	}

	env.repo.listErr = nil
	env.repo.createErr = errors.New("disk full")
	_, err = env.svc.Book(context.Background(), patientCaller(), validRequest(env.doc.ID))
	if !errors.Is(err, apperr.ErrStore) {
		t.Fatalf("expected store error on insert, got %v", err)
	}

	env.repo.createErr = ErrUnknownDoctor
	_, err = env.svc.Book(context.Background(), patientCaller(), validRequest(env.doc.ID))
	if !errors.Is(err, apperr.ErrInvalidDoctor) {
		t.Fatalf("expected invalid doctor on dangling reference, got %v", err)
	}
}

func TestService_Book_PublishFailureKeepsBooking(t *testing.T) {
	env := newTestEnv()
	env.events.Err = errors.New("broker down")

	a, err := env.svc.Book(context.Background(), patientCaller(), validRequest(env.doc.ID))
	if err != nil {
		t.Fatalf("publish failure must not fail the booking: %v", err)
	}
	if _, err := env.repo.GetByID(context.Background(), a.ID); err != nil {
		t.Errorf("appointment should be stored: %v", err)
	}
	if v := testutil.ToFloat64(env.metrics.EventsPublished.WithLabelValues(events.AppointmentBooked, "error")); v != 1 {
		t.Errorf("expected failed publish counter 1, got %v", v)
	}
}

// -- Complete --

func TestService_Complete(t *testing.T) {
	env := newTestEnv()
	appt := env.confirmed(uuid.New(), 11)

	a, err := env.svc.Complete(context.Background(), env.doctorCaller(), appt.ID, "  Prescribed rest  ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Status != StatusCompleted || a.Notes != "Prescribed rest" {
		t.Errorf("unexpected result %+v", a)
	}
	if got := env.events.Types(); len(got) != 1 || got[0] != events.AppointmentCompleted {
		t.Errorf("expected completed event, got %v", got)
	}
}

func TestService_Complete_Idempotent(t *testing.T) {
	env := newTestEnv()
	appt := env.confirmed(uuid.New(), 11)
	ctx := context.Background()

	if _, err := env.svc.Complete(ctx, env.doctorCaller(), appt.ID, "First notes"); err != nil {
		t.Fatal(err)
	}
	a, err := env.svc.Complete(ctx, env.doctorCaller(), appt.ID, "Second notes")
	if err != nil {
		t.Fatalf("second complete should succeed: %v", err)
	}
	if a.Status != StatusCompleted || a.Notes != "First notes" {
		t.Errorf("second complete should not change the record: %+v", a)
	}
	if len(env.events.Events()) != 1 {
		t.Errorf("expected a single event, got %v", env.events.Types())
	}
}

func TestService_Complete_CancelledStaysCancelled(t *testing.T) {
	env := newTestEnv()
	appt := env.repo.seed(&Appointment{PatientID: uuid.New(), DoctorID: env.doc.ID, ScheduledAt: at(11, 0), Status: StatusCancelled})

	a, err := env.svc.Complete(context.Background(), env.doctorCaller(), appt.ID, "Late notes")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Status != StatusCancelled {
		t.Errorf("expected cancelled, got %s", a.Status)
	}
}

func TestService_Complete_Authorization(t *testing.T) {
	env := newTestEnv()
	patientID := uuid.New()
	appt := env.confirmed(patientID, 11)
	ctx := context.Background()

	otherDoctor := auth.Identity{ID: uuid.New(), Role: auth.RoleDoctor}
	if _, err := env.svc.Complete(ctx, otherDoctor, appt.ID, "Notes here"); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("non-assigned doctor: expected forbidden, got %v", err)
	}
	patient := auth.Identity{ID: patientID, Role: auth.RolePatient}
	if _, err := env.svc.Complete(ctx, patient, appt.ID, "Notes here"); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("patient: expected forbidden, got %v", err)
	}
	if _, err := env.svc.Complete(ctx, auth.Identity{}, appt.ID, "Notes here"); !errors.Is(err, apperr.ErrUnauthenticated) {
		t.Errorf("no caller: expected unauthenticated, got %v", err)
	}

	admin := auth.Identity{ID: uuid.New(), Role: auth.RoleAdmin}
	a, err := env.svc.Complete(ctx, admin, appt.ID, "Closed by admin")
	if err != nil || a.Status != StatusCompleted {
		t.Errorf("admin should complete: %v %+v", err, a)
	}
}

func TestService_Complete_NotFoundAndBlankNotes(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	if _, err := env.svc.Complete(ctx, env.doctorCaller(), uuid.New(), "Notes"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}

	appt := env.confirmed(uuid.New(), 12)
	_, err := env.svc.Complete(ctx, env.doctorCaller(), appt.ID, "   ")
	requireAppErr(t, err, apperr.KindValidation, "notes")
}

// -- Cancel --

func TestService_Cancel(t *testing.T) {
	env := newTestEnv()
	patient := patientCaller()
	appt := env.confirmed(patient.ID, 15)
	ctx := context.Background()

	a, err := env.svc.Cancel(ctx, patient, appt.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Status != StatusCancelled || a.Notes != "Initial consult" {
		t.Errorf("unexpected result %+v", a)
	}

	again, err := env.svc.Cancel(ctx, patient, appt.ID)
	if err != nil || again.Status != StatusCancelled {
		t.Errorf("second cancel should be a no-op: %v %+v", err, again)
	}
	if got := env.events.Types(); len(got) != 1 || got[0] != events.AppointmentCancelled {
		t.Errorf("expected one cancelled event, got %v", got)
	}

	if _, err := env.svc.Book(ctx, patientCaller(), validRequest(env.doc.ID)); err != nil {
		t.Errorf("slot should be free after cancel: %v", err)
	}
}

func TestService_Cancel_CompletedIsNoop(t *testing.T) {
	env := newTestEnv()
	appt := env.repo.seed(&Appointment{PatientID: uuid.New(), DoctorID: env.doc.ID, ScheduledAt: at(11, 0), Status: StatusCompleted, Notes: "done"})

	a, err := env.svc.Cancel(context.Background(), env.doctorCaller(), appt.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Status != StatusCompleted {
		t.Errorf("completed appointment must stay completed, got %s", a.Status)
	}
}

func TestService_Cancel_Forbidden(t *testing.T) {
	env := newTestEnv()
	appt := env.confirmed(uuid.New(), 11)
	_, err := env.svc.Cancel(context.Background(), patientCaller(), appt.ID)
	if !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("expected forbidden, got %v", err)
	}
}

// -- Reads --

func TestService_ListMine(t *testing.T) {
	env := newTestEnv()
	patient := patientCaller()
	env.confirmed(patient.ID, 11)
	env.confirmed(uuid.New(), 12)
	ctx := context.Background()

	items, total, err := env.svc.ListMine(ctx, patient, 20, 0)
	if err != nil || total != 1 || len(items) != 1 {
		t.Errorf("patient should see one appointment: %v %d", err, total)
	}

	items, total, err = env.svc.ListMine(ctx, env.doctorCaller(), 20, 0)
	if err != nil || total != 2 || len(items) != 2 {
		t.Errorf("doctor should see both appointments: %v %d", err, total)
	}
}

func TestService_Get_Participants(t *testing.T) {
	env := newTestEnv()
	patient := patientCaller()
	appt := env.confirmed(patient.ID, 11)
	ctx := context.Background()

	if _, err := env.svc.Get(ctx, patient, appt.ID); err != nil {
		t.Errorf("patient: %v", err)
	}
	if _, err := env.svc.Get(ctx, env.doctorCaller(), appt.ID); err != nil {
		t.Errorf("doctor: %v", err)
	}
	if _, err := env.svc.Get(ctx, patientCaller(), appt.ID); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("stranger: expected forbidden, got %v", err)
	}
}

func TestService_Availability(t *testing.T) {
	env := newTestEnv()
	env.confirmed(uuid.New(), 14)
	env.repo.seed(&Appointment{PatientID: uuid.New(), DoctorID: env.doc.ID, ScheduledAt: at(16, 0), Status: StatusCancelled})
	ctx := context.Background()

	av, err := env.svc.Availability(ctx, env.doc.ID, "2025-06-10")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(av.Slots) != 10 {
		t.Fatalf("expected 10 slots, got %d", len(av.Slots))
	}
	for _, s := range av.Slots {
		if want := s.Time == "14:00"; s.Taken != want {
			t.Errorf("slot %s: taken=%v", s.Time, s.Taken)
		}
	}

	if _, err := env.svc.Availability(ctx, env.doc.ID, "2025-06-10"); err != nil {
		t.Fatal(err)
	}
	if env.repo.lists != 1 {
		t.Errorf("second lookup should be served from cache, store read %d times", env.repo.lists)
	}
	if v := testutil.ToFloat64(env.metrics.CacheLookups.WithLabelValues("hit")); v != 1 {
		t.Errorf("expected one cache hit, got %v", v)
	}
}

func TestService_Availability_InvalidatedByBooking(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	if _, err := env.svc.Availability(ctx, env.doc.ID, "2025-06-10"); err != nil {
		t.Fatal(err)
	}
	if _, err := env.svc.Book(ctx, patientCaller(), validRequest(env.doc.ID)); err != nil {
		t.Fatal(err)
	}
	av, err := env.svc.Availability(ctx, env.doc.ID, "2025-06-10")
	if err != nil {
		t.Fatal(err)
	}
	for _, s := range av.Slots {
		if s.Time == "15:00" && !s.Taken {
			t.Error("15:00 should be taken after booking")
		}
	}
}

func TestService_Availability_Errors(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	if _, err := env.svc.Availability(ctx, uuid.New(), "2025-06-10"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
	if _, err := env.svc.Availability(ctx, env.doc.ID, "tomorrow"); !errors.Is(err, apperr.ErrInvalidSchedule) {
		t.Errorf("expected invalid schedule, got %v", err)
	}
}
