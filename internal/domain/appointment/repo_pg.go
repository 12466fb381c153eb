package appointment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carelink/telehealth/internal/platform/db"
)

// slotIndex is the partial unique index guarding one live booking per
// doctor and start time.
const slotIndex = "appointments_doctor_slot_uniq"

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const apptCols = `id, patient_id, doctor_id, scheduled_at, status, COALESCE(notes, ''), created_at, updated_at`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(&a.ID, &a.PatientID, &a.DoctorID, &a.ScheduledAt, &a.Status, &a.Notes, &a.CreatedAt, &a.UpdatedAt)
	if db.IsNoRows(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func collect(rows pgx.Rows) ([]*Appointment, error) {
	defer rows.Close()
	var items []*Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}

func (r *repoPG) Create(ctx context.Context, a *Appointment) error {
	a.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO appointments (id, patient_id, doctor_id, scheduled_at, status, notes)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at`,
		a.ID, a.PatientID, a.DoctorID, a.ScheduledAt, a.Status, a.Notes,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
	switch {
	case err == nil:
		return nil
	case db.IsUniqueViolation(err, slotIndex):
		return ErrSlotConflict
	case db.IsForeignKeyViolation(err):
		return ErrUnknownDoctor
	default:
		return err
	}
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return scanAppointment(r.conn(ctx).QueryRow(ctx, `SELECT `+apptCols+` FROM appointments WHERE id = $1`, id))
}

func (r *repoPG) ListForDoctorBetween(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]*Appointment, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+apptCols+` FROM appointments
		WHERE doctor_id = $1 AND scheduled_at >= $2 AND scheduled_at < $3
		ORDER BY scheduled_at`, doctorID, from, to)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM appointments WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+apptCols+` FROM appointments WHERE patient_id = $1
		ORDER BY scheduled_at LIMIT $2 OFFSET $3`, patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	items, err := collect(rows)
	return items, total, err
}

func (r *repoPG) ListByDoctor(ctx context.Context, doctorID uuid.UUID, f ListFilter, limit, offset int) ([]*Appointment, int, error) {
	where := ` WHERE doctor_id = $1`
	args := []interface{}{doctorID}
	idx := 2

	if !f.From.IsZero() {
		where += fmt.Sprintf(` AND scheduled_at >= $%d`, idx)
		args = append(args, f.From)
		idx++
	}
	if !f.To.IsZero() {
		where += fmt.Sprintf(` AND scheduled_at < $%d`, idx)
		args = append(args, f.To)
		idx++
	}
	if len(f.ExcludeStatuses) > 0 {
		excluded := make([]string, len(f.ExcludeStatuses))
		for i, s := range f.ExcludeStatuses {
			excluded[i] = string(s)
		}
		where += fmt.Sprintf(` AND status <> ALL($%d)`, idx)
		args = append(args, excluded)
		idx++
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM appointments`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + apptCols + ` FROM appointments` + where +
		fmt.Sprintf(` ORDER BY scheduled_at LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	items, err := collect(rows)
	return items, total, err
}

func (r *repoPG) Transition(ctx context.Context, id uuid.UUID, to Status, notes *string) (*Appointment, bool, error) {
	a, err := scanAppointment(r.conn(ctx).QueryRow(ctx, `
		UPDATE appointments
		SET status = $2, notes = COALESCE($3, notes), updated_at = NOW()
		WHERE id = $1 AND status = 'confirmed'
		RETURNING `+apptCols, id, to, notes))
	if err == ErrNotFound {
		// Either missing or already terminal; let the caller re-read.
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return a, true, nil
}
