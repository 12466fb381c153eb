package workflow

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	// UpsertConsultation returns the appointment's consultation, creating it
	// with sessionURL when none exists yet.
	UpsertConsultation(ctx context.Context, appointmentID uuid.UUID, sessionURL string) (*Consultation, error)
	CreateMessage(ctx context.Context, m *Message) error
	ListMessages(ctx context.Context, appointmentID uuid.UUID) ([]*Message, error)
	CreateDocument(ctx context.Context, d *Document) error
	ListDocuments(ctx context.Context, ownerID uuid.UUID) ([]*Document, error)
	UpsertReminder(ctx context.Context, appointmentID uuid.UUID, reminderType string, sentAt time.Time) (*Reminder, error)
}
