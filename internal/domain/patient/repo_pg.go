package patient

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Peiying0830/Careplus-sub003/internal/platform/db"
)

type patientRepoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &patientRepoPG{pool: pool} }

func (r *patientRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

func (r *patientRepoPG) Roster(ctx context.Context, doctorID int64, search string, limit, offset int) ([]*RosterEntry, int, error) {
	where := ` WHERE a.doctor_id = $1`
	args := []interface{}{doctorID}
	idx := 2
	if s := strings.TrimSpace(search); s != "" {
		where += fmt.Sprintf(" AND (u.full_name ILIKE $%d OR u.email ILIKE $%d OR p.phone ILIKE $%d)", idx, idx, idx)
		args = append(args, "%"+s+"%")
		idx++
	}
	from := ` FROM patients p
		JOIN users u ON u.id = p.user_id
		JOIN appointments a ON a.patient_id = p.id` + where

	var total int
	if err := r.conn(ctx).QueryRow(ctx, "SELECT COUNT(DISTINCT p.id)"+from, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count roster: %w", err)
	}

	query := `SELECT p.id, u.full_name, u.email, p.phone, p.gender, p.date_of_birth, p.blood_type,
			MAX(a.appointment_date) FILTER (WHERE a.status = 'completed'), COUNT(a.id)` + from + `
		GROUP BY p.id, u.full_name, u.email, p.phone, p.gender, p.date_of_birth, p.blood_type
		ORDER BY u.full_name` + fmt.Sprintf(" LIMIT $%d OFFSET $%d", idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list roster: %w", err)
	}
	defer rows.Close()

	var out []*RosterEntry
	for rows.Next() {
		var e RosterEntry
		if err := rows.Scan(&e.ID, &e.FullName, &e.Email, &e.Phone, &e.Gender, &e.DateOfBirth, &e.BloodType,
			&e.LastVisit, &e.AppointmentCount); err != nil {
			return nil, 0, err
		}
		out = append(out, &e)
	}
	return out, total, rows.Err()
}

func (r *patientRepoPG) InRoster(ctx context.Context, doctorID, patientID int64) (bool, error) {
	var ok bool
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM appointments WHERE doctor_id = $1 AND patient_id = $2)`,
		doctorID, patientID).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("check roster: %w", err)
	}
	return ok, nil
}

func (r *patientRepoPG) Profile(ctx context.Context, patientID int64) (*Profile, error) {
	var p Profile
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT p.id, p.user_id, u.full_name, u.email, p.phone, p.gender, p.date_of_birth, p.blood_type,
			p.allergies, p.address, p.emergency_contact
		FROM patients p
		JOIN users u ON u.id = p.user_id
		WHERE p.id = $1`, patientID,
	).Scan(&p.ID, &p.UserID, &p.FullName, &p.Email, &p.Phone, &p.Gender, &p.DateOfBirth, &p.BloodType,
		&p.Allergies, &p.Address, &p.EmergencyContact)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get patient %d: %w", patientID, err)
	}
	return &p, nil
}

func (r *patientRepoPG) Appointments(ctx context.Context, doctorID, patientID int64, limit int) ([]AppointmentSummary, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, to_char(appointment_date, 'YYYY-MM-DD'), to_char(appointment_time, 'HH24:MI'),
			status, reason, checked_in_at
		FROM appointments
		WHERE doctor_id = $1 AND patient_id = $2
		ORDER BY appointment_date DESC, appointment_time DESC
		LIMIT $3`, doctorID, patientID, limit)
	if err != nil {
		return nil, fmt.Errorf("patient appointments: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (AppointmentSummary, error) {
		var a AppointmentSummary
		err := row.Scan(&a.ID, &a.Date, &a.Time, &a.Status, &a.Reason, &a.CheckedInAt)
		return a, err
	})
}

func (r *patientRepoPG) Records(ctx context.Context, doctorID, patientID int64, limit int) ([]RecordSummary, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, visit_date, diagnosis, symptoms
		FROM medical_records
		WHERE doctor_id = $1 AND patient_id = $2
		ORDER BY visit_date DESC, id DESC
		LIMIT $3`, doctorID, patientID, limit)
	if err != nil {
		return nil, fmt.Errorf("patient records: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (RecordSummary, error) {
		var rs RecordSummary
		err := row.Scan(&rs.ID, &rs.VisitDate, &rs.Diagnosis, &rs.Symptoms)
		return rs, err
	})
}

func (r *patientRepoPG) Prescriptions(ctx context.Context, doctorID, patientID int64, limit int) ([]PrescriptionSummary, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, diagnosis, status, verification_code, valid_until, created_at
		FROM prescriptions
		WHERE doctor_id = $1 AND patient_id = $2
		ORDER BY created_at DESC, id DESC
		LIMIT $3`, doctorID, patientID, limit)
	if err != nil {
		return nil, fmt.Errorf("patient prescriptions: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (PrescriptionSummary, error) {
		var ps PrescriptionSummary
		err := row.Scan(&ps.ID, &ps.Diagnosis, &ps.Status, &ps.VerificationCode, &ps.ValidUntil, &ps.CreatedAt)
		return ps, err
	})
}
