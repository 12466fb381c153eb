package workflow

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/carelink/telehealth/internal/domain/appointment"
	"github.com/carelink/telehealth/internal/domain/doctor"
	"github.com/carelink/telehealth/internal/platform/apperr"
	"github.com/carelink/telehealth/internal/platform/auth"
)

type AppointmentFinder interface {
	GetByID(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error)
}

type DoctorResolver interface {
	ForUser(ctx context.Context, userID uuid.UUID) (*doctor.Doctor, error)
}

// Participants decides whether a caller takes part in an appointment: its
// patient, its doctor, or an admin.
type Participants struct {
	appointments AppointmentFinder
	doctors      DoctorResolver
}

func NewParticipants(appts AppointmentFinder, doctors DoctorResolver) *Participants {
	return &Participants{appointments: appts, doctors: doctors}
}

// Check loads the appointment and returns it when caller participates.
func (p *Participants) Check(ctx context.Context, caller auth.Identity, appointmentID uuid.UUID) (*appointment.Appointment, error) {
	a, err := p.appointments.GetByID(ctx, appointmentID)
	if errors.Is(err, appointment.ErrNotFound) {
		return nil, apperr.NotFound("appointment", appointmentID.String())
	}
	if err != nil {
		return nil, apperr.Store("get appointment", err)
	}
	if caller.IsAdmin() || a.IsPatient(caller.ID) {
		return a, nil
	}
	doc, err := p.doctors.ForUser(ctx, caller.ID)
	if err != nil {
		return nil, err
	}
	if doc == nil || doc.ID != a.DoctorID {
		return nil, apperr.Forbidden("You are not part of this appointment.")
	}
	return a, nil
}
