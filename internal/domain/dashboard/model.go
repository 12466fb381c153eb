package dashboard

import (
	"github.com/carelink/telehealth/internal/domain/appointment"
	"github.com/carelink/telehealth/internal/domain/doctor"
	"github.com/carelink/telehealth/internal/domain/prescription"
)

// maxRefillReminders caps the refill reminders shown to a patient.
const maxRefillReminders = 3

// DoctorSummary is the doctor detail joined onto a patient's appointment.
type DoctorSummary struct {
	Name      string  `json:"name"`
	Specialty string  `json:"specialty"`
	ImageURL  *string `json:"image_url,omitempty"`
}

type AppointmentView struct {
	appointment.Appointment
	Doctor DoctorSummary `json:"doctor"`
}

type PatientView struct {
	Appointments    []*AppointmentView           `json:"appointments"`
	Prescriptions   []*prescription.Prescription `json:"prescriptions"`
	RefillReminders []*prescription.Prescription `json:"refill_reminders"`
}

type DoctorView struct {
	Doctor *doctor.Doctor             `json:"doctor"`
	Today  []*appointment.Appointment `json:"today"`
	Queue  []*appointment.Appointment `json:"queue"`
}
