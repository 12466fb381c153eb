package dashboard

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carelink/telehealth/internal/platform/db"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) PatientAppointments(ctx context.Context, patientID uuid.UUID) ([]*AppointmentView, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `
		SELECT a.id, a.patient_id, a.doctor_id, a.scheduled_at, a.status, COALESCE(a.notes, ''),
		       a.created_at, a.updated_at, d.name, d.specialty, d.image_url
		FROM appointments a
		JOIN doctors d ON d.id = a.doctor_id
		WHERE a.patient_id = $1
		ORDER BY a.scheduled_at`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*AppointmentView
	for rows.Next() {
		var v AppointmentView
		if err := rows.Scan(&v.ID, &v.PatientID, &v.DoctorID, &v.ScheduledAt, &v.Status, &v.Notes,
			&v.CreatedAt, &v.UpdatedAt, &v.Doctor.Name, &v.Doctor.Specialty, &v.Doctor.ImageURL); err != nil {
			return nil, err
		}
		out = append(out, &v)
	}
	return out, rows.Err()
}
