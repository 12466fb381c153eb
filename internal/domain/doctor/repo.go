package doctor

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrNotFound      = errors.New("doctor not found")
	ErrProfileExists = errors.New("doctor profile already exists")
)

type Repository interface {
	Create(ctx context.Context, d *Doctor) error
	GetByID(ctx context.Context, id uuid.UUID) (*Doctor, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) (*Doctor, error)
	List(ctx context.Context, f ListFilter) ([]*Doctor, int, error)
	Specialties(ctx context.Context) ([]string, error)
}
