package medicalrecord

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Peiying0830/Careplus-sub003/internal/platform/db"
)

type recordRepoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &recordRepoPG{pool: pool} }

func (r *recordRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const recCols = `mr.id, mr.patient_id, u.full_name, mr.doctor_id, mr.appointment_id, mr.visit_date,
	mr.symptoms, mr.diagnosis, mr.prescription, mr.lab_results, mr.notes, mr.created_at, mr.updated_at`

const recFrom = ` FROM medical_records mr
	JOIN patients p ON p.id = mr.patient_id
	JOIN users u ON u.id = p.user_id`

func (r *recordRepoPG) scanRecord(row pgx.Row) (*Record, error) {
	var rec Record
	err := row.Scan(&rec.ID, &rec.PatientID, &rec.PatientName, &rec.DoctorID, &rec.AppointmentID, &rec.VisitDate,
		&rec.Symptoms, &rec.Diagnosis, &rec.Prescription, &rec.LabResults, &rec.Notes, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *recordRepoPG) PatientExists(ctx context.Context, patientID int64) (bool, error) {
	var ok bool
	err := r.conn(ctx).QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM patients WHERE id = $1)`, patientID).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("check patient %d: %w", patientID, err)
	}
	return ok, nil
}

func (r *recordRepoPG) LatestCompletedAppointment(ctx context.Context, doctorID, patientID int64, date time.Time) (*int64, error) {
	var id int64
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT id FROM appointments
		WHERE doctor_id = $1 AND patient_id = $2 AND appointment_date = $3 AND status = 'completed'
		ORDER BY appointment_time DESC, id DESC
		LIMIT 1`, doctorID, patientID, date).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find completed appointment: %w", err)
	}
	return &id, nil
}

func (r *recordRepoPG) AppointmentBelongs(ctx context.Context, appointmentID, doctorID, patientID int64) (bool, error) {
	var ok bool
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM appointments WHERE id = $1 AND doctor_id = $2 AND patient_id = $3)`,
		appointmentID, doctorID, patientID).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("check appointment %d: %w", appointmentID, err)
	}
	return ok, nil
}

func (r *recordRepoPG) Insert(ctx context.Context, rec *Record) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO medical_records (patient_id, doctor_id, appointment_id, visit_date, symptoms, diagnosis,
			prescription, lab_results, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at`,
		rec.PatientID, rec.DoctorID, rec.AppointmentID, rec.VisitDate, rec.Symptoms, rec.Diagnosis,
		rec.Prescription, rec.LabResults, rec.Notes,
	).Scan(&rec.ID, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert medical record: %w", err)
	}
	return nil
}

func (r *recordRepoPG) Update(ctx context.Context, rec *Record) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE medical_records SET appointment_id=$3, visit_date=$4, symptoms=$5, diagnosis=$6,
			prescription=$7, lab_results=$8, notes=$9, updated_at=NOW()
		WHERE id = $1 AND doctor_id = $2
		RETURNING updated_at`,
		rec.ID, rec.DoctorID, rec.AppointmentID, rec.VisitDate, rec.Symptoms, rec.Diagnosis,
		rec.Prescription, rec.LabResults, rec.Notes,
	).Scan(&rec.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("update medical record %d: %w", rec.ID, err)
	}
	return nil
}

func (r *recordRepoPG) GetForDoctor(ctx context.Context, id, doctorID int64) (*Record, error) {
	rec, err := r.scanRecord(r.conn(ctx).QueryRow(ctx,
		`SELECT `+recCols+recFrom+` WHERE mr.id = $1 AND mr.doctor_id = $2`, id, doctorID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get medical record %d: %w", id, err)
	}
	return rec, nil
}

func (r *recordRepoPG) List(ctx context.Context, doctorID int64, f ListFilter, limit, offset int) ([]*Record, int, error) {
	where := ` WHERE mr.doctor_id = $1`
	args := []interface{}{doctorID}
	idx := 2
	if f.PatientID > 0 {
		where += fmt.Sprintf(" AND mr.patient_id = $%d", idx)
		args = append(args, f.PatientID)
		idx++
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		where += fmt.Sprintf(" AND (u.full_name ILIKE $%d OR mr.diagnosis ILIKE $%d OR mr.symptoms ILIKE $%d)", idx, idx, idx)
		args = append(args, "%"+s+"%")
		idx++
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, "SELECT COUNT(*)"+recFrom+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count medical records: %w", err)
	}

	query := "SELECT " + recCols + recFrom + where +
		fmt.Sprintf(" ORDER BY mr.visit_date DESC, mr.id DESC LIMIT $%d OFFSET $%d", idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list medical records: %w", err)
	}
	defer rows.Close()

	var items []*Record
	for rows.Next() {
		rec, err := r.scanRecord(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, rec)
	}
	return items, total, rows.Err()
}
