package doctor

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carelink/telehealth/internal/platform/db"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const doctorCols = `id, user_id, name, specialty, bio, image_url, is_available, created_at`

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	err := row.Scan(&d.ID, &d.UserID, &d.Name, &d.Specialty, &d.Bio, &d.ImageURL, &d.IsAvailable, &d.CreatedAt)
	if db.IsNoRows(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *repoPG) Create(ctx context.Context, d *Doctor) error {
	d.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO doctors (id, user_id, name, specialty, bio, image_url, is_available)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at`,
		d.ID, d.UserID, d.Name, d.Specialty, d.Bio, d.ImageURL, d.IsAvailable,
	).Scan(&d.CreatedAt)
	if db.IsUniqueViolation(err, "doctors_user_id_key") {
		return ErrProfileExists
	}
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	return scanDoctor(r.conn(ctx).QueryRow(ctx, `SELECT `+doctorCols+` FROM doctors WHERE id = $1`, id))
}

func (r *repoPG) GetByUserID(ctx context.Context, userID uuid.UUID) (*Doctor, error) {
	return scanDoctor(r.conn(ctx).QueryRow(ctx, `SELECT `+doctorCols+` FROM doctors WHERE user_id = $1`, userID))
}

func (r *repoPG) List(ctx context.Context, f ListFilter) ([]*Doctor, int, error) {
	where := ` WHERE 1=1`
	var args []interface{}
	idx := 1

	if f.Specialty != "" {
		where += fmt.Sprintf(` AND specialty = $%d`, idx)
		args = append(args, f.Specialty)
		idx++
	}
	if f.Query != "" {
		where += fmt.Sprintf(` AND (name ILIKE $%d OR specialty ILIKE $%d OR bio ILIKE $%d)`, idx, idx, idx)
		args = append(args, "%"+escapeLike(f.Query)+"%")
		idx++
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM doctors`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + doctorCols + ` FROM doctors` + where + fmt.Sprintf(` ORDER BY name LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, f.Limit, f.Offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Doctor
	for rows.Next() {
		d, err := scanDoctor(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, d)
	}
	return items, total, rows.Err()
}

func (r *repoPG) Specialties(ctx context.Context) ([]string, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT DISTINCT specialty FROM doctors ORDER BY specialty`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func escapeLike(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if r == '%' || r == '_' || r == '\\' {
			out = append(out, '\\')
		}
		out = append(out, r)
	}
	return string(out)
}
