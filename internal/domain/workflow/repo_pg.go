package workflow

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carelink/telehealth/internal/platform/db"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

func (r *repoPG) UpsertConsultation(ctx context.Context, appointmentID uuid.UUID, sessionURL string) (*Consultation, error) {
	var c Consultation
	// The no-op update makes RETURNING yield the existing row on conflict.
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO consultations (id, appointment_id, session_url, status)
		VALUES ($1, $2, $3, 'active')
		ON CONFLICT (appointment_id) DO UPDATE SET status = consultations.status
		RETURNING id, appointment_id, session_url, status, started_at`,
		uuid.New(), appointmentID, sessionURL,
	).Scan(&c.ID, &c.AppointmentID, &c.SessionURL, &c.Status, &c.StartedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *repoPG) CreateMessage(ctx context.Context, m *Message) error {
	m.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO messages (id, appointment_id, sender_id, content)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at`,
		m.ID, m.AppointmentID, m.SenderID, m.Content,
	).Scan(&m.CreatedAt)
}

func (r *repoPG) ListMessages(ctx context.Context, appointmentID uuid.UUID) ([]*Message, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, appointment_id, sender_id, content, created_at
		FROM messages WHERE appointment_id = $1 ORDER BY created_at`, appointmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.AppointmentID, &m.SenderID, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}

func (r *repoPG) CreateDocument(ctx context.Context, d *Document) error {
	d.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO documents (id, owner_id, appointment_id, title, file_url, content, doc_type)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at`,
		d.ID, d.OwnerID, d.AppointmentID, d.Title, d.FileURL, d.Content, d.DocType,
	).Scan(&d.CreatedAt)
}

func (r *repoPG) ListDocuments(ctx context.Context, ownerID uuid.UUID) ([]*Document, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, owner_id, appointment_id, title, file_url, content, doc_type, created_at
		FROM documents WHERE owner_id = $1 ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Document
	for rows.Next() {
		var d Document
		if err := rows.Scan(&d.ID, &d.OwnerID, &d.AppointmentID, &d.Title, &d.FileURL, &d.Content, &d.DocType, &d.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &d)
	}
	return out, rows.Err()
}

func (r *repoPG) UpsertReminder(ctx context.Context, appointmentID uuid.UUID, reminderType string, sentAt time.Time) (*Reminder, error) {
	var rem Reminder
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO reminders (id, appointment_id, reminder_type, sent_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (appointment_id, reminder_type) DO UPDATE SET sent_at = EXCLUDED.sent_at
		RETURNING id, appointment_id, reminder_type, sent_at`,
		uuid.New(), appointmentID, reminderType, sentAt,
	).Scan(&rem.ID, &rem.AppointmentID, &rem.ReminderType, &rem.SentAt)
	if err != nil {
		return nil, err
	}
	return &rem, nil
}
