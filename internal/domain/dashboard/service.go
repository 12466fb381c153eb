package dashboard

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/carelink/telehealth/internal/domain/appointment"
	"github.com/carelink/telehealth/internal/domain/doctor"
	"github.com/carelink/telehealth/internal/domain/prescription"
	"github.com/carelink/telehealth/internal/platform/apperr"
	"github.com/carelink/telehealth/internal/platform/auth"
)

// queueLimit bounds the doctor's queue listing.
const queueLimit = 100

type AppointmentLister interface {
	ListByDoctor(ctx context.Context, doctorID uuid.UUID, f appointment.ListFilter, limit, offset int) ([]*appointment.Appointment, int, error)
}

type PrescriptionLister interface {
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*prescription.Prescription, error)
}

type DoctorResolver interface {
	ForUser(ctx context.Context, userID uuid.UUID) (*doctor.Doctor, error)
}

type Service struct {
	repo          Repository
	appointments  AppointmentLister
	prescriptions PrescriptionLister
	doctors       DoctorResolver
	validator     *appointment.Validator
	logger        zerolog.Logger
	now           func() time.Time
}

func NewService(repo Repository, appts AppointmentLister, rx PrescriptionLister, doctors DoctorResolver, v *appointment.Validator, logger zerolog.Logger) *Service {
	return &Service{
		repo:          repo,
		appointments:  appts,
		prescriptions: rx,
		doctors:       doctors,
		validator:     v,
		logger:        logger.With().Str("component", "dashboard").Logger(),
		now:           time.Now,
	}
}

// Patient returns the caller's appointments, prescriptions and up to three
// refill reminders.
func (s *Service) Patient(ctx context.Context, caller auth.Identity) (*PatientView, error) {
	if !caller.IsAuthenticated() {
		return nil, apperr.Unauthenticated("You must be signed in to view your dashboard.")
	}
	appts, err := s.repo.PatientAppointments(ctx, caller.ID)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", caller.ID.String()).Msg("load patient appointments failed")
		return nil, apperr.Store("list appointments", err)
	}
	rx, err := s.prescriptions.ListByPatient(ctx, caller.ID)
	if err != nil {
		return nil, apperr.Store("list prescriptions", err)
	}

	view := &PatientView{
		Appointments:    appts,
		Prescriptions:   rx,
		RefillReminders: []*prescription.Prescription{},
	}
	if view.Appointments == nil {
		view.Appointments = []*AppointmentView{}
	}
	if view.Prescriptions == nil {
		view.Prescriptions = []*prescription.Prescription{}
	}
	for _, p := range rx {
		if len(view.RefillReminders) == maxRefillReminders {
			break
		}
		if p.Refillable() {
			view.RefillReminders = append(view.RefillReminders, p)
		}
	}
	return view, nil
}

// Doctor returns today's schedule and the open queue for the caller's
// doctor profile.
func (s *Service) Doctor(ctx context.Context, caller auth.Identity) (*DoctorView, error) {
	if !caller.IsAuthenticated() {
		return nil, apperr.Unauthenticated("You must be signed in to view your dashboard.")
	}
	doc, err := s.doctors.ForUser(ctx, caller.ID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, apperr.Forbidden("Doctor profile not found")
	}

	from, to := s.validator.DayBounds(s.now())
	today, _, err := s.appointments.ListByDoctor(ctx, doc.ID, appointment.ListFilter{From: from, To: to}, queueLimit, 0)
	if err != nil {
		return nil, apperr.Store("list today", err)
	}
	queue, _, err := s.appointments.ListByDoctor(ctx, doc.ID, appointment.ListFilter{
		ExcludeStatuses: []appointment.Status{appointment.StatusCompleted},
	}, queueLimit, 0)
	if err != nil {
		return nil, apperr.Store("list queue", err)
	}

	view := &DoctorView{Doctor: doc, Today: today, Queue: queue}
	if view.Today == nil {
		view.Today = []*appointment.Appointment{}
	}
	if view.Queue == nil {
		view.Queue = []*appointment.Appointment{}
	}
	return view, nil
}

// ForCaller picks the doctor view for callers owning a doctor profile and
// the patient view otherwise.
func (s *Service) ForCaller(ctx context.Context, caller auth.Identity) (interface{}, error) {
	if caller.HasRole(auth.RoleDoctor) {
		doc, err := s.doctors.ForUser(ctx, caller.ID)
		if err != nil {
			return nil, err
		}
		if doc != nil {
			return s.Doctor(ctx, caller)
		}
	}
	return s.Patient(ctx, caller)
}
