package dashboard

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	// PatientAppointments returns the patient's appointments with doctor
	// details, earliest first.
	PatientAppointments(ctx context.Context, patientID uuid.UUID) ([]*AppointmentView, error)
}
