package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"github.com/carelink/telehealth/internal/domain/doctor"
	"github.com/carelink/telehealth/internal/platform/apperr"
	"github.com/carelink/telehealth/internal/platform/auth"
	"github.com/carelink/telehealth/internal/platform/cache"
	"github.com/carelink/telehealth/internal/platform/events"
	"github.com/carelink/telehealth/internal/platform/telemetry"
)

// DoctorLookup resolves doctors for booking and authorization. Both methods
// return nil, nil when the doctor does not exist.
type DoctorLookup interface {
	Lookup(ctx context.Context, id uuid.UUID) (*doctor.Doctor, error)
	ForUser(ctx context.Context, userID uuid.UUID) (*doctor.Doctor, error)
}

type Service struct {
	repo      Repository
	doctors   DoctorLookup
	validator *Validator
	logger    zerolog.Logger

	cache    cache.Cache
	cacheTTL time.Duration
	events   events.Publisher
	metrics  *telemetry.Metrics
}

type Option func(*Service)

// WithCache enables the availability cache.
func WithCache(c cache.Cache, ttl time.Duration) Option {
	return func(s *Service) {
		s.cache = c
		s.cacheTTL = ttl
	}
}

func WithPublisher(p events.Publisher) Option {
	return func(s *Service) { s.events = p }
}

func WithMetrics(m *telemetry.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func NewService(repo Repository, doctors DoctorLookup, v *Validator, logger zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		repo:      repo,
		doctors:   doctors,
		validator: v,
		logger:    logger.With().Str("component", "appointment").Logger(),
		cacheTTL:  time.Minute,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Service) Validator() *Validator { return s.validator }

// -- Booking --

// Book validates req for caller and inserts the appointment. The advisory
// conflict check runs first; the store's unique index has the final say.
func (s *Service) Book(ctx context.Context, caller auth.Identity, req BookingRequest) (*Appointment, error) {
	ctx, span := telemetry.StartSpan(ctx, "appointment.Book", attribute.String("doctor_id", req.DoctorID))
	a, err := s.book(ctx, caller, req)
	telemetry.EndSpan(span, err)

	if s.metrics != nil {
		s.metrics.BookingsTotal.WithLabelValues(outcome(err, "booked")).Inc()
	}
	return a, err
}

func (s *Service) book(ctx context.Context, caller auth.Identity, req BookingRequest) (*Appointment, error) {
	cmd, err := s.validator.Parse(caller, req)
	if err != nil {
		return nil, err
	}

	doc, err := s.doctors.Lookup(ctx, cmd.DoctorID)
	if err != nil {
		return nil, err
	}

	from, to := s.validator.DayBounds(cmd.ScheduledAt)
	existing, err := s.repo.ListForDoctorBetween(ctx, cmd.DoctorID, from, to)
	if err != nil {
		s.logger.Error().Err(err).Str("doctor_id", cmd.DoctorID.String()).Msg("list day appointments failed")
		return nil, apperr.Store("list appointments", err)
	}

	a, err := s.validator.Build(cmd, doc, existing)
	if err != nil {
		return nil, err
	}

	switch err := s.repo.Create(ctx, a); {
	case err == nil:
	case errors.Is(err, ErrSlotConflict):
		return nil, apperr.SlotTaken()
	case errors.Is(err, ErrUnknownDoctor):
		return nil, apperr.InvalidDoctor(cmd.DoctorID.String())
	default:
		s.logger.Error().Err(err).Str("doctor_id", cmd.DoctorID.String()).Msg("insert appointment failed")
		return nil, apperr.Store("insert appointment", err)
	}

	s.logger.Info().
		Str("appointment_id", a.ID.String()).
		Str("doctor_id", a.DoctorID.String()).
		Time("scheduled_at", a.ScheduledAt).
		Msg("appointment booked")

	s.invalidate(ctx, a)
	s.publish(ctx, events.AppointmentBooked, a)
	return a, nil
}

// -- Transitions --

// Complete marks a confirmed appointment completed with the doctor's notes.
// Only the assigned doctor or an admin may do this. Completing an appointment
// that is already completed or cancelled returns it unchanged.
func (s *Service) Complete(ctx context.Context, caller auth.Identity, id uuid.UUID, notes string) (*Appointment, error) {
	ctx, span := telemetry.StartSpan(ctx, "appointment.Complete", attribute.String("appointment_id", id.String()))
	a, err := s.complete(ctx, caller, id, notes)
	telemetry.EndSpan(span, err)
	s.observeTransition(StatusCompleted, err)
	return a, err
}

func (s *Service) complete(ctx context.Context, caller auth.Identity, id uuid.UUID, notes string) (*Appointment, error) {
	if !caller.IsAuthenticated() {
		return nil, apperr.Unauthenticated("You must be signed in to complete an appointment.")
	}
	a, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	ok, err := s.isAssignedDoctor(ctx, caller, a)
	if err != nil {
		return nil, err
	}
	if !ok && !caller.IsAdmin() {
		return nil, apperr.Forbidden("Only the assigned doctor can complete this appointment.")
	}

	notes = strings.TrimSpace(notes)
	if notes == "" {
		return nil, apperr.Validation("notes", "Consultation notes are required.")
	}
	if a.Status.Terminal() {
		return a, nil
	}
	return s.transition(ctx, a, StatusCompleted, &notes, events.AppointmentCompleted)
}

// Cancel cancels a confirmed appointment. The booking patient, the assigned
// doctor or an admin may cancel. Terminal appointments are returned unchanged.
func (s *Service) Cancel(ctx context.Context, caller auth.Identity, id uuid.UUID) (*Appointment, error) {
	ctx, span := telemetry.StartSpan(ctx, "appointment.Cancel", attribute.String("appointment_id", id.String()))
	a, err := s.cancel(ctx, caller, id)
	telemetry.EndSpan(span, err)
	s.observeTransition(StatusCancelled, err)
	return a, err
}

func (s *Service) cancel(ctx context.Context, caller auth.Identity, id uuid.UUID) (*Appointment, error) {
	if !caller.IsAuthenticated() {
		return nil, apperr.Unauthenticated("You must be signed in to cancel an appointment.")
	}
	a, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeParticipant(ctx, caller, a); err != nil {
		return nil, err
	}
	if a.Status.Terminal() {
		return a, nil
	}
	return s.transition(ctx, a, StatusCancelled, nil, events.AppointmentCancelled)
}

func (s *Service) transition(ctx context.Context, a *Appointment, to Status, notes *string, eventType string) (*Appointment, error) {
	updated, ok, err := s.repo.Transition(ctx, a.ID, to, notes)
	if err != nil {
		s.logger.Error().Err(err).Str("appointment_id", a.ID.String()).Str("to", string(to)).Msg("transition failed")
		return nil, apperr.Store("update appointment", err)
	}
	if !ok {
		// Another request moved it out of confirmed first.
		return s.load(ctx, a.ID)
	}
	s.logger.Info().Str("appointment_id", a.ID.String()).Str("status", string(to)).Msg("appointment updated")
	s.invalidate(ctx, updated)
	s.publish(ctx, eventType, updated)
	return updated, nil
}

// -- Reads --

// Get returns an appointment visible to caller.
func (s *Service) Get(ctx context.Context, caller auth.Identity, id uuid.UUID) (*Appointment, error) {
	if !caller.IsAuthenticated() {
		return nil, apperr.Unauthenticated("You must be signed in to view appointments.")
	}
	a, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeParticipant(ctx, caller, a); err != nil {
		return nil, err
	}
	return a, nil
}

// ListMine lists the caller's appointments: as the treating doctor when the
// caller owns a doctor profile, otherwise as the patient.
func (s *Service) ListMine(ctx context.Context, caller auth.Identity, limit, offset int) ([]*Appointment, int, error) {
	if !caller.IsAuthenticated() {
		return nil, 0, apperr.Unauthenticated("You must be signed in to view appointments.")
	}
	if caller.HasRole(auth.RoleDoctor) {
		doc, err := s.doctors.ForUser(ctx, caller.ID)
		if err != nil {
			return nil, 0, err
		}
		if doc != nil {
			items, total, err := s.repo.ListByDoctor(ctx, doc.ID, ListFilter{}, limit, offset)
			if err != nil {
				return nil, 0, apperr.Store("list appointments", err)
			}
			return items, total, nil
		}
	}
	items, total, err := s.repo.ListByPatient(ctx, caller.ID, limit, offset)
	if err != nil {
		return nil, 0, apperr.Store("list appointments", err)
	}
	return items, total, nil
}

// Availability returns the booking menu for doctorID on date with taken
// slots flagged.
func (s *Service) Availability(ctx context.Context, doctorID uuid.UUID, date string) (*Availability, error) {
	day, err := s.validator.ParseDate(date)
	if err != nil {
		return nil, err
	}
	doc, err := s.doctors.Lookup(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, apperr.NotFound("doctor", doctorID.String())
	}

	key := availabilityKey(doctorID, day)
	if av, ok := s.cachedAvailability(ctx, key); ok {
		return av, nil
	}

	from, to := s.validator.DayBounds(day)
	existing, err := s.repo.ListForDoctorBetween(ctx, doctorID, from, to)
	if err != nil {
		return nil, apperr.Store("list appointments", err)
	}

	policy := s.validator.Policy()
	taken := make(map[string]bool)
	for _, t := range TakenTimes(existing, policy.Location) {
		taken[t] = true
	}
	av := &Availability{
		DoctorID: doctorID,
		Date:     day.Format(dateLayout),
		Timezone: policy.Location.String(),
	}
	for _, t := range policy.Menu() {
		av.Slots = append(av.Slots, Slot{Time: t, Taken: taken[t]})
	}

	if s.cache != nil {
		if raw, err := json.Marshal(av); err == nil {
			if err := s.cache.Set(ctx, key, raw, s.cacheTTL); err != nil {
				s.logger.Warn().Err(err).Str("key", key).Msg("availability cache write failed")
			}
		}
	}
	return av, nil
}

func (s *Service) cachedAvailability(ctx context.Context, key string) (*Availability, bool) {
	if s.cache == nil {
		return nil, false
	}
	raw, ok, err := s.cache.Get(ctx, key)
	result := "miss"
	switch {
	case err != nil:
		result = "error"
		s.logger.Warn().Err(err).Str("key", key).Msg("availability cache read failed")
	case ok:
		result = "hit"
	}
	if s.metrics != nil {
		s.metrics.CacheLookups.WithLabelValues(result).Inc()
	}
	if result != "hit" {
		return nil, false
	}
	var av Availability
	if err := json.Unmarshal(raw, &av); err != nil {
		return nil, false
	}
	return &av, true
}

// -- helpers --

func (s *Service) load(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	a, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, apperr.NotFound("appointment", id.String())
	}
	if err != nil {
		return nil, apperr.Store("get appointment", err)
	}
	return a, nil
}

func (s *Service) isAssignedDoctor(ctx context.Context, caller auth.Identity, a *Appointment) (bool, error) {
	doc, err := s.doctors.ForUser(ctx, caller.ID)
	if err != nil {
		return false, err
	}
	return doc != nil && doc.ID == a.DoctorID, nil
}

func (s *Service) authorizeParticipant(ctx context.Context, caller auth.Identity, a *Appointment) error {
	if caller.IsAdmin() || a.IsPatient(caller.ID) {
		return nil
	}
	ok, err := s.isAssignedDoctor(ctx, caller, a)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.Forbidden("You do not have access to this appointment.")
	}
	return nil
}

func availabilityKey(doctorID uuid.UUID, day time.Time) string {
	return "availability:" + doctorID.String() + ":" + day.Format(dateLayout)
}

func (s *Service) invalidate(ctx context.Context, a *Appointment) {
	if s.cache == nil {
		return
	}
	day := a.ScheduledAt.In(s.validator.Policy().Location)
	key := availabilityKey(a.DoctorID, day)
	if err := s.cache.Delete(ctx, key); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("availability cache invalidation failed")
	}
}

func (s *Service) publish(ctx context.Context, eventType string, a *Appointment) {
	if s.events == nil {
		return
	}
	evt, err := events.New(eventType, a.ID.String(), a)
	if err == nil {
		err = s.events.Publish(ctx, evt)
	}
	result := "ok"
	if err != nil {
		result = "error"
		s.logger.Warn().Err(err).Str("event_type", eventType).Str("appointment_id", a.ID.String()).Msg("publish event failed")
	}
	if s.metrics != nil {
		s.metrics.EventsPublished.WithLabelValues(eventType, result).Inc()
	}
}

func (s *Service) observeTransition(to Status, err error) {
	if s.metrics != nil {
		s.metrics.TransitionsTotal.WithLabelValues(string(to), outcome(err, "ok")).Inc()
	}
}

// outcome is the metric label for err: success when nil, otherwise the
// error kind.
func outcome(err error, success string) string {
	if err == nil {
		return success
	}
	if k := apperr.KindOf(err); k != "" {
		return string(k)
	}
	return "error"
}
