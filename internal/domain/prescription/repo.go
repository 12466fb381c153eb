package prescription

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("prescription not found")

type Repository interface {
	Create(ctx context.Context, p *Prescription) error
	GetByID(ctx context.Context, id uuid.UUID) (*Prescription, error)
	// ListByPatient returns the patient's prescriptions, newest first.
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Prescription, error)
	CreateRefillRequest(ctx context.Context, r *RefillRequest) error
}
