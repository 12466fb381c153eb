package appointment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound = errors.New("appointment not found")
	// ErrSlotConflict is returned by Create when the store's uniqueness
	// constraint rejects a second live booking for the same doctor and time.
	ErrSlotConflict = errors.New("slot already booked")
	// ErrUnknownDoctor is returned by Create when the doctor reference is dangling.
	ErrUnknownDoctor = errors.New("doctor does not exist")
)

type Repository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	// ListForDoctorBetween returns the doctor's appointments (any status)
	// with from <= scheduled_at < to.
	ListForDoctorBetween(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]*Appointment, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Appointment, int, error)
	ListByDoctor(ctx context.Context, doctorID uuid.UUID, f ListFilter, limit, offset int) ([]*Appointment, int, error)
	// Transition moves a confirmed appointment to status, optionally replacing
	// its notes. It reports false when the row was no longer confirmed.
	Transition(ctx context.Context, id uuid.UUID, to Status, notes *string) (*Appointment, bool, error)
}
