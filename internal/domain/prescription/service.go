package prescription

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/carelink/telehealth/internal/domain/appointment"
	"github.com/carelink/telehealth/internal/domain/doctor"
	"github.com/carelink/telehealth/internal/platform/apperr"
	"github.com/carelink/telehealth/internal/platform/auth"
	"github.com/carelink/telehealth/internal/platform/events"
)

const (
	maxMedicationLength   = 200
	maxDosageLength       = 200
	maxInstructionsLength = 2000
	maxRefillNoteLength   = 500
)

// DoctorResolver maps a user to the doctor profile it owns.
type DoctorResolver interface {
	ForUser(ctx context.Context, userID uuid.UUID) (*doctor.Doctor, error)
}

// AppointmentFinder loads appointments a prescription may reference.
type AppointmentFinder interface {
	GetByID(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error)
}

type Service struct {
	repo         Repository
	doctors      DoctorResolver
	appointments AppointmentFinder
	events       events.Publisher
	logger       zerolog.Logger
}

func NewService(repo Repository, doctors DoctorResolver, appts AppointmentFinder, pub events.Publisher, logger zerolog.Logger) *Service {
	return &Service{
		repo:         repo,
		doctors:      doctors,
		appointments: appts,
		events:       pub,
		logger:       logger.With().Str("component", "prescription").Logger(),
	}
}

// Create issues a prescription written by the caller's doctor profile.
func (s *Service) Create(ctx context.Context, caller auth.Identity, req CreateRequest) (*Prescription, error) {
	if !caller.IsAuthenticated() {
		return nil, apperr.Unauthenticated("Not authenticated")
	}
	doc, err := s.doctors.ForUser(ctx, caller.ID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, apperr.Forbidden("Doctor profile not found")
	}

	patientID, err := uuid.Parse(strings.TrimSpace(req.PatientID))
	if err != nil {
		return nil, apperr.Validation("patientId", "Patient id is not valid.")
	}
	p := &Prescription{
		PatientID:        patientID,
		DoctorID:         doc.ID,
		MedicationName:   strings.TrimSpace(req.MedicationName),
		Dosage:           strings.TrimSpace(req.Dosage),
		Instructions:     strings.TrimSpace(req.Instructions),
		Status:           StatusActive,
		RefillsRemaining: DefaultRefills,
	}
	if err := checkLength("medicationName", p.MedicationName, 1, maxMedicationLength); err != nil {
		return nil, err
	}
	if err := checkLength("dosage", p.Dosage, 1, maxDosageLength); err != nil {
		return nil, err
	}
	if err := checkLength("instructions", p.Instructions, 0, maxInstructionsLength); err != nil {
		return nil, err
	}

	if raw := strings.TrimSpace(req.AppointmentID); raw != "" {
		apptID, err := uuid.Parse(raw)
		if err != nil {
			return nil, apperr.Validation("appointmentId", "Appointment id is not valid.")
		}
		if err := s.checkAppointment(ctx, apptID, doc.ID, patientID); err != nil {
			return nil, err
		}
		p.AppointmentID = &apptID
	}

	if err := s.repo.Create(ctx, p); err != nil {
		s.logger.Error().Err(err).Str("doctor_id", doc.ID.String()).Msg("create prescription failed")
		return nil, apperr.Store("create prescription", err)
	}
	s.logger.Info().Str("prescription_id", p.ID.String()).Str("doctor_id", doc.ID.String()).Msg("prescription issued")
	s.publish(ctx, events.PrescriptionIssued, p.ID, p)
	return p, nil
}

func (s *Service) checkAppointment(ctx context.Context, apptID, doctorID, patientID uuid.UUID) error {
	a, err := s.appointments.GetByID(ctx, apptID)
	if errors.Is(err, appointment.ErrNotFound) {
		return apperr.NotFound("appointment", apptID.String())
	}
	if err != nil {
		return apperr.Store("get appointment", err)
	}
	if a.DoctorID != doctorID {
		return apperr.Forbidden("You can only prescribe for your own appointments.")
	}
	if a.PatientID != patientID {
		return apperr.Validation("patientId", "Patient does not match the appointment.")
	}
	return nil
}

// ListForPatient returns the caller's prescriptions, newest first.
func (s *Service) ListForPatient(ctx context.Context, caller auth.Identity) ([]*Prescription, error) {
	if !caller.IsAuthenticated() {
		return nil, apperr.Unauthenticated("You must be signed in to view prescriptions.")
	}
	items, err := s.repo.ListByPatient(ctx, caller.ID)
	if err != nil {
		return nil, apperr.Store("list prescriptions", err)
	}
	return items, nil
}

// RequestRefill files a refill request on one of the caller's prescriptions.
func (s *Service) RequestRefill(ctx context.Context, caller auth.Identity, in RefillInput) (*RefillRequest, error) {
	if !caller.IsAuthenticated() {
		return nil, apperr.Unauthenticated("You must be signed in to perform this action.")
	}
	rxID, err := uuid.Parse(strings.TrimSpace(in.PrescriptionID))
	if err != nil {
		return nil, apperr.Validation("prescriptionId", "Missing prescription id.")
	}
	note := strings.TrimSpace(in.Note)
	if utf8.RuneCountInString(note) > maxRefillNoteLength {
		return nil, apperr.Validation("note", "Note is too long.")
	}

	p, err := s.repo.GetByID(ctx, rxID)
	if errors.Is(err, ErrNotFound) {
		return nil, apperr.NotFound("prescription", rxID.String())
	}
	if err != nil {
		return nil, apperr.Store("get prescription", err)
	}
	if p.PatientID != caller.ID {
		return nil, apperr.Forbidden("You can only request refills for your own prescriptions.")
	}
	if !p.Refillable() {
		return nil, apperr.Validation("prescriptionId", "This prescription has no refills remaining.")
	}

	r := &RefillRequest{PrescriptionID: rxID, PatientID: caller.ID, Status: "pending"}
	if note != "" {
		r.Note = &note
	}
	if err := s.repo.CreateRefillRequest(ctx, r); err != nil {
		s.logger.Error().Err(err).Str("prescription_id", rxID.String()).Msg("create refill request failed")
		return nil, apperr.Store("create refill request", err)
	}
	s.publish(ctx, events.RefillRequested, rxID, r)
	return r, nil
}

func (s *Service) publish(ctx context.Context, eventType string, aggregate uuid.UUID, payload interface{}) {
	if s.events == nil {
		return
	}
	evt, err := events.New(eventType, aggregate.String(), payload)
	if err == nil {
		err = s.events.Publish(ctx, evt)
	}
	if err != nil {
		s.logger.Warn().Err(err).Str("event_type", eventType).Msg("publish event failed")
	}
}

func checkLength(field, v string, min, max int) error {
	n := utf8.RuneCountInString(v)
	if n < min {
		return apperr.Validation(field, field+" is required.")
	}
	if n > max {
		return apperr.Validation(field, field+" is too long.")
	}
	return nil
}
