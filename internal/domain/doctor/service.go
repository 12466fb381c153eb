package doctor

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/carelink/telehealth/internal/platform/apperr"
	"github.com/carelink/telehealth/internal/platform/auth"
)

type Service struct {
	repo   Repository
	logger zerolog.Logger
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{repo: repo, logger: logger.With().Str("component", "doctor").Logger()}
}

func (s *Service) List(ctx context.Context, f ListFilter) ([]*Doctor, int, error) {
	f.Specialty = strings.TrimSpace(f.Specialty)
	f.Query = strings.TrimSpace(f.Query)
	items, total, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, 0, apperr.Store("list doctors", err)
	}
	return items, total, nil
}

func (s *Service) Specialties(ctx context.Context) ([]string, error) {
	out, err := s.repo.Specialties(ctx)
	if err != nil {
		return nil, apperr.Store("list specialties", err)
	}
	return out, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	d, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, apperr.NotFound("doctor", id.String())
	}
	if err != nil {
		return nil, apperr.Store("get doctor", err)
	}
	return d, nil
}

// Lookup returns the doctor or nil when it does not exist. Booking uses it to
// tell an unknown doctor apart from a store failure.
func (s *Service) Lookup(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	d, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Store("get doctor", err)
	}
	return d, nil
}

// ForUser returns the doctor profile owned by userID, or nil if the user has
// none.
func (s *Service) ForUser(ctx context.Context, userID uuid.UUID) (*Doctor, error) {
	d, err := s.repo.GetByUserID(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Store("get doctor by user", err)
	}
	return d, nil
}

// CreateProfile registers the caller as a bookable doctor. Calling it again
// returns the existing profile.
func (s *Service) CreateProfile(ctx context.Context, caller auth.Identity, req CreateProfileRequest) (*Doctor, bool, error) {
	if !caller.IsAuthenticated() {
		return nil, false, apperr.Unauthenticated("You must be signed in to create a doctor profile.")
	}
	if caller.Role != auth.RoleDoctor && !caller.IsAdmin() {
		return nil, false, apperr.Forbidden("Only doctors can create a doctor profile.")
	}

	fullName := strings.TrimSpace(req.FullName)
	if fullName == "" {
		fullName = strings.TrimSpace(caller.Name)
	}
	if fullName == "" {
		return nil, false, apperr.Validation("full_name", "Full name is required.")
	}
	specialty := strings.TrimSpace(req.Specialty)
	if specialty == "" {
		specialty = DefaultSpecialty
	}

	d := &Doctor{
		UserID:      caller.ID,
		Name:        displayName(fullName),
		Specialty:   specialty,
		Bio:         specialty + " specialist dedicated to providing quality healthcare.",
		IsAvailable: true,
	}
	if u := strings.TrimSpace(req.ImageURL); u != "" {
		d.ImageURL = &u
	}

	err := s.repo.Create(ctx, d)
	if errors.Is(err, ErrProfileExists) {
		existing, gerr := s.ForUser(ctx, caller.ID)
		if gerr != nil {
			return nil, false, gerr
		}
		if existing != nil {
			return existing, false, nil
		}
	}
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", caller.ID.String()).Msg("create doctor profile failed")
		return nil, false, apperr.Store("create doctor profile", err)
	}
	s.logger.Info().Str("doctor_id", d.ID.String()).Str("user_id", caller.ID.String()).Msg("doctor profile created")
	return d, true, nil
}

func displayName(fullName string) string {
	if strings.HasPrefix(strings.ToLower(fullName), "dr. ") {
		return fullName
	}
	return "Dr. " + fullName
}
