package appointment

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusConfirmed Status = "confirmed"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusConfirmed, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no transition leaves s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

type Appointment struct {
	ID          uuid.UUID `json:"id"`
	PatientID   uuid.UUID `json:"patient_id"`
	DoctorID    uuid.UUID `json:"doctor_id"`
	ScheduledAt time.Time `json:"scheduled_at"`
	Status      Status    `json:"status"`
	Notes       string    `json:"notes"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// IsPatient reports whether userID booked the appointment. Doctor
// participation is checked against the doctor profile id instead.
func (a *Appointment) IsPatient(userID uuid.UUID) bool {
	return a.PatientID == userID
}

// BookingRequest is the raw booking payload. PatientID is accepted so old
// clients keep working but is never trusted.
type BookingRequest struct {
	DoctorID  string `json:"doctorId" form:"doctorId"`
	Date      string `json:"date" form:"date"`
	Time      string `json:"time" form:"time"`
	Notes     string `json:"notes" form:"notes"`
	PatientID string `json:"patientId,omitempty" form:"patientId"`
}

// BookingCommand is a booking request that passed input validation.
type BookingCommand struct {
	PatientID   uuid.UUID
	DoctorID    uuid.UUID
	ScheduledAt time.Time
	Notes       string
}

type CompleteRequest struct {
	Notes string `json:"notes" form:"notes"`
}

// Slot is one entry of the booking menu for a day.
type Slot struct {
	Time  string `json:"time"`
	Taken bool   `json:"taken"`
}

type Availability struct {
	DoctorID uuid.UUID `json:"doctor_id"`
	Date     string    `json:"date"`
	Timezone string    `json:"timezone"`
	Slots    []Slot    `json:"slots"`
}

// ListFilter narrows a doctor's appointment listing. Zero values mean no bound.
type ListFilter struct {
	From            time.Time
	To              time.Time
	ExcludeStatuses []Status
}
