package prescription

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// DefaultRefills is the refill allowance of a new prescription.
const DefaultRefills = 3

type Prescription struct {
	ID               uuid.UUID  `json:"id"`
	PatientID        uuid.UUID  `json:"patient_id"`
	DoctorID         uuid.UUID  `json:"doctor_id"`
	AppointmentID    *uuid.UUID `json:"appointment_id,omitempty"`
	MedicationName   string     `json:"medication_name"`
	Dosage           string     `json:"dosage"`
	Instructions     string     `json:"instructions"`
	Status           Status     `json:"status"`
	RefillsRemaining int        `json:"refills_remaining"`
	CreatedAt        time.Time  `json:"created_at"`
}

// Refillable reports whether a refill may still be requested.
func (p *Prescription) Refillable() bool {
	return p.Status == StatusActive && p.RefillsRemaining > 0
}

type RefillRequest struct {
	ID             uuid.UUID `json:"id"`
	PrescriptionID uuid.UUID `json:"prescription_id"`
	PatientID      uuid.UUID `json:"patient_id"`
	Note           *string   `json:"note,omitempty"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
}

type CreateRequest struct {
	AppointmentID  string `json:"appointmentId,omitempty"`
	PatientID      string `json:"patientId"`
	MedicationName string `json:"medicationName"`
	Dosage         string `json:"dosage"`
	Instructions   string `json:"instructions"`
}

type RefillInput struct {
	PrescriptionID string `json:"prescriptionId"`
	Note           string `json:"note,omitempty"`
}
