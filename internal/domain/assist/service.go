package assist

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"github.com/carelink/telehealth/internal/domain/appointment"
	"github.com/carelink/telehealth/internal/platform/apperr"
	"github.com/carelink/telehealth/internal/platform/auth"
	"github.com/carelink/telehealth/internal/platform/telemetry"
	"github.com/carelink/telehealth/internal/platform/validate"
)

// ParticipantChecker confirms the caller takes part in an appointment.
type ParticipantChecker interface {
	Check(ctx context.Context, caller auth.Identity, appointmentID uuid.UUID) (*appointment.Appointment, error)
}

type Service struct {
	repo         Repository
	drafter      Drafter
	participants ParticipantChecker
	redactor     Redactor
	metrics      *telemetry.Metrics
	logger       zerolog.Logger
}

// NewService wires the assistant. drafter may be nil, in which case every
// summary uses the fallback template.
func NewService(repo Repository, drafter Drafter, participants ParticipantChecker, metrics *telemetry.Metrics, logger zerolog.Logger) *Service {
	return &Service{
		repo:         repo,
		drafter:      drafter,
		participants: participants,
		metrics:      metrics,
		logger:       logger.With().Str("component", "assist").Logger(),
	}
}

// Summarize drafts a note for the caller from free text. Personal details
// are redacted before the text reaches the model, and the draft is saved to
// the caller's records.
func (s *Service) Summarize(ctx context.Context, caller auth.Identity, in SummarizeInput) (*Result, error) {
	if !caller.IsAuthenticated() {
		return nil, apperr.Unauthenticated("You must be signed in to use AI assistance.")
	}
	in.Intent = strings.TrimSpace(in.Intent)
	in.Context = strings.TrimSpace(in.Context)
	in.AppointmentID = strings.TrimSpace(in.AppointmentID)
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	intent := Intent(in.Intent)

	var apptID *uuid.UUID
	if in.AppointmentID != "" {
		id, err := uuid.Parse(in.AppointmentID)
		if err != nil {
			return nil, apperr.Validation("appointmentId", "appointmentId is not a valid id.")
		}
		if _, err := s.participants.Check(ctx, caller, id); err != nil {
			return nil, err
		}
		apptID = &id
	}

	ctx, span := telemetry.StartSpan(ctx, "assist.Summarize", attribute.String("intent", string(intent)))
	defer span.End()

	sanitized := s.redactor.Sanitize(in.Context, Identifiers{
		FullName:  caller.Name,
		Email:     caller.Email,
		PatientID: caller.ID.String(),
	})
	prompt := BuildPrompt(intent, sanitized)

	summary, source := s.draft(ctx, intent, prompt)
	if summary == "" {
		summary, source = Fallback(intent, sanitized), SourceFallback
	}
	if s.metrics != nil {
		s.metrics.AssistDraftsTotal.WithLabelValues(string(intent), source).Inc()
	}

	note := &Note{
		AuthorID:      caller.ID,
		AppointmentID: apptID,
		Intent:        intent,
		Title:         "Gemini " + string(intent) + " note",
		Summary:       summary,
		Prompt:        prompt,
	}
	if err := s.repo.SaveNote(ctx, note); err != nil {
		s.logger.Error().Err(err).Str("user_id", caller.ID.String()).Msg("save ai summary failed")
		return nil, apperr.Store("save summary", err)
	}

	return &Result{Summary: summary, SanitizedContext: sanitized, Source: source}, nil
}

func (s *Service) draft(ctx context.Context, intent Intent, prompt string) (string, string) {
	if s.drafter == nil {
		return "", SourceFallback
	}
	out, err := s.drafter.Draft(ctx, prompt)
	if errors.Is(err, ErrDrafterDisabled) {
		return "", SourceFallback
	}
	if err != nil {
		s.logger.Warn().Err(err).Str("intent", string(intent)).Msg("model draft failed, using fallback template")
		return "", SourceFallback
	}
	return strings.TrimSpace(out), SourceModel
}
