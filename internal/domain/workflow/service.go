package workflow

import (
	"context"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/carelink/telehealth/internal/platform/apperr"
	"github.com/carelink/telehealth/internal/platform/auth"
	"github.com/carelink/telehealth/internal/platform/events"
)

const (
	maxMessageLength      = 2000
	maxTitleLength        = 120
	maxReminderTypeLength = 120
)

type Service struct {
	repo         Repository
	participants *Participants
	events       events.Publisher
	logger       zerolog.Logger
	now          func() time.Time
}

func NewService(repo Repository, participants *Participants, pub events.Publisher, logger zerolog.Logger) *Service {
	return &Service{
		repo:         repo,
		participants: participants,
		events:       pub,
		logger:       logger.With().Str("component", "workflow").Logger(),
		now:          time.Now,
	}
}

func requireSignedIn(caller auth.Identity) error {
	if !caller.IsAuthenticated() {
		return apperr.Unauthenticated("You must be signed in to perform this action.")
	}
	return nil
}

func parseAppointmentID(raw, msg string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, apperr.Validation("appointmentId", msg)
	}
	return id, nil
}

// JoinConsultation returns the consultation room for an appointment,
// opening one on first join.
func (s *Service) JoinConsultation(ctx context.Context, caller auth.Identity, in JoinInput) (*Consultation, error) {
	apptID, err := parseAppointmentID(in.AppointmentID, "Missing appointment for consultation.")
	if err != nil {
		return nil, err
	}
	if err := requireSignedIn(caller); err != nil {
		return nil, err
	}
	if _, err := s.participants.Check(ctx, caller, apptID); err != nil {
		return nil, err
	}

	sessionURL := SessionBaseURL + apptID.String() + "-" + uuid.NewString()
	c, err := s.repo.UpsertConsultation(ctx, apptID, sessionURL)
	if err != nil {
		s.logger.Error().Err(err).Str("appointment_id", apptID.String()).Msg("join consultation failed")
		return nil, apperr.Store("upsert consultation", err)
	}
	s.publish(ctx, events.ConsultationJoined, apptID, map[string]string{
		"appointment_id": apptID.String(),
		"user_id":        caller.ID.String(),
		"session_url":    c.SessionURL,
	})
	return c, nil
}

// PostMessage adds a chat message to an appointment thread.
func (s *Service) PostMessage(ctx context.Context, caller auth.Identity, in MessageInput) (*Message, error) {
	apptID, err := parseAppointmentID(in.AppointmentID, "Missing appointment context.")
	if err != nil {
		return nil, err
	}
	content := strings.TrimSpace(in.Content)
	if content == "" {
		return nil, apperr.Validation("content", "Message cannot be empty.")
	}
	if utf8.RuneCountInString(content) > maxMessageLength {
		return nil, apperr.Validation("content", "Message is too long.")
	}
	if err := requireSignedIn(caller); err != nil {
		return nil, err
	}
	if _, err := s.participants.Check(ctx, caller, apptID); err != nil {
		return nil, err
	}

	m := &Message{AppointmentID: apptID, SenderID: caller.ID, Content: content}
	if err := s.repo.CreateMessage(ctx, m); err != nil {
		s.logger.Error().Err(err).Str("appointment_id", apptID.String()).Msg("post message failed")
		return nil, apperr.Store("create message", err)
	}
	return m, nil
}

// Messages returns an appointment thread, oldest first.
func (s *Service) Messages(ctx context.Context, caller auth.Identity, appointmentID uuid.UUID) ([]*Message, error) {
	if err := requireSignedIn(caller); err != nil {
		return nil, err
	}
	if _, err := s.participants.Check(ctx, caller, appointmentID); err != nil {
		return nil, err
	}
	out, err := s.repo.ListMessages(ctx, appointmentID)
	if err != nil {
		return nil, apperr.Store("list messages", err)
	}
	return out, nil
}

// UploadDocument records a link to a document the caller stored elsewhere.
func (s *Service) UploadDocument(ctx context.Context, caller auth.Identity, in DocumentInput) (*Document, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, apperr.Validation("title", "Document title is required.")
	}
	if utf8.RuneCountInString(title) > maxTitleLength {
		return nil, apperr.Validation("title", "Title is too long.")
	}
	fileURL := strings.TrimSpace(in.FileURL)
	if !validLink(fileURL) {
		return nil, apperr.Validation("fileUrl", "Provide a valid document link.")
	}
	if err := requireSignedIn(caller); err != nil {
		return nil, err
	}

	d := &Document{OwnerID: caller.ID, Title: title, FileURL: &fileURL, DocType: DocTypeUpload}
	if strings.TrimSpace(in.AppointmentID) != "" {
		apptID, err := parseAppointmentID(in.AppointmentID, "Appointment id is not valid.")
		if err != nil {
			return nil, err
		}
		if _, err := s.participants.Check(ctx, caller, apptID); err != nil {
			return nil, err
		}
		d.AppointmentID = &apptID
	}

	if err := s.repo.CreateDocument(ctx, d); err != nil {
		s.logger.Error().Err(err).Str("owner_id", caller.ID.String()).Msg("save document failed")
		return nil, apperr.Store("create document", err)
	}
	return d, nil
}

func (s *Service) Documents(ctx context.Context, caller auth.Identity) ([]*Document, error) {
	if err := requireSignedIn(caller); err != nil {
		return nil, err
	}
	out, err := s.repo.ListDocuments(ctx, caller.ID)
	if err != nil {
		return nil, apperr.Store("list documents", err)
	}
	return out, nil
}

// MarkReminderSent records that a reminder of the given type went out. A
// repeat call moves sent_at forward.
func (s *Service) MarkReminderSent(ctx context.Context, caller auth.Identity, in ReminderInput) (*Reminder, error) {
	apptID, err := parseAppointmentID(in.AppointmentID, "Missing appointment id.")
	if err != nil {
		return nil, err
	}
	kind := strings.TrimSpace(in.ReminderType)
	if kind == "" {
		return nil, apperr.Validation("reminderType", "Reminder type is required.")
	}
	if utf8.RuneCountInString(kind) > maxReminderTypeLength {
		return nil, apperr.Validation("reminderType", "Reminder type is too long.")
	}
	if err := requireSignedIn(caller); err != nil {
		return nil, err
	}
	if _, err := s.participants.Check(ctx, caller, apptID); err != nil {
		return nil, err
	}

	rem, err := s.repo.UpsertReminder(ctx, apptID, kind, s.now().UTC())
	if err != nil {
		s.logger.Error().Err(err).Str("appointment_id", apptID.String()).Msg("mark reminder failed")
		return nil, apperr.Store("upsert reminder", err)
	}
	return rem, nil
}

func (s *Service) publish(ctx context.Context, eventType string, aggregate uuid.UUID, payload interface{}) {
	if s.events == nil {
		return
	}
	evt, err := events.New(eventType, aggregate.String(), payload)
	if err == nil {
		err = s.events.Publish(ctx, evt)
	}
	if err != nil {
		s.logger.Warn().Err(err).Str("event_type", eventType).Msg("publish event failed")
	}
}

func validLink(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
