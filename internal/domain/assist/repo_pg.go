package assist

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carelink/telehealth/internal/platform/db"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) SaveNote(ctx context.Context, n *Note) error {
	return db.WithTx(ctx, r.pool, func(ctx context.Context) error {
		q := db.Conn(ctx, r.pool)
		if _, err := q.Exec(ctx, `
			INSERT INTO documents (id, owner_id, appointment_id, title, content, doc_type, prompt)
			VALUES ($1, $2, $3, $4, $5, 'ai_summary', $6)`,
			uuid.New(), n.AuthorID, n.AppointmentID, n.Title, n.Summary, n.Prompt,
		); err != nil {
			return err
		}
		n.ID = uuid.New()
		return q.QueryRow(ctx, `
			INSERT INTO consultation_notes (id, author_id, appointment_id, intent, summary, prompt)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING created_at`,
			n.ID, n.AuthorID, n.AppointmentID, string(n.Intent), n.Summary, n.Prompt,
		).Scan(&n.CreatedAt)
	})
}
