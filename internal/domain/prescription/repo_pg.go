package prescription

import (
	"context"

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

const rxCols = `id, patient_id, doctor_id, appointment_id, medication_name, dosage, instructions, status, refills_remaining, created_at`

func scanPrescription(row pgx.Row) (*Prescription, error) {
	var p Prescription
	err := row.Scan(&p.ID, &p.PatientID, &p.DoctorID, &p.AppointmentID, &p.MedicationName,
		&p.Dosage, &p.Instructions, &p.Status, &p.RefillsRemaining, &p.CreatedAt)
	if db.IsNoRows(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *repoPG) Create(ctx context.Context, p *Prescription) error {
	p.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO prescriptions (id, patient_id, doctor_id, appointment_id, medication_name, dosage, instructions, status, refills_remaining)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at`,
		p.ID, p.PatientID, p.DoctorID, p.AppointmentID, p.MedicationName,
		p.Dosage, p.Instructions, p.Status, p.RefillsRemaining,
	).Scan(&p.CreatedAt)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Prescription, error) {
	return scanPrescription(r.conn(ctx).QueryRow(ctx, `SELECT `+rxCols+` FROM prescriptions WHERE id = $1`, id))
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Prescription, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+rxCols+` FROM prescriptions WHERE patient_id = $1 ORDER BY created_at DESC`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Prescription
	for rows.Next() {
		p, err := scanPrescription(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

func (r *repoPG) CreateRefillRequest(ctx context.Context, req *RefillRequest) error {
	req.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO refill_requests (id, prescription_id, patient_id, note, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`,
		req.ID, req.PrescriptionID, req.PatientID, req.Note, req.Status,
	).Scan(&req.CreatedAt)
}
