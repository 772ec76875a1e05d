package appointment

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

type appointmentRepoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &appointmentRepoPG{pool: pool} }

func (r *appointmentRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const apptCols = `a.id, a.patient_id, a.doctor_id, u.full_name, u.email, p.phone,
	to_char(a.appointment_date, 'YYYY-MM-DD'), to_char(a.appointment_time, 'HH24:MI'),
	a.status, a.reason, a.notes, a.qr_code, a.checked_in_at, a.checked_in_by,
	a.created_at, a.updated_at`

const apptFrom = ` FROM appointments a
	JOIN patients p ON p.id = a.patient_id
	JOIN users u ON u.id = p.user_id`

func (r *appointmentRepoPG) scanAppt(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(&a.ID, &a.PatientID, &a.DoctorID, &a.PatientName, &a.PatientEmail, &a.PatientPhone,
		&a.Date, &a.Time, &a.Status, &a.Reason, &a.Notes, &a.QRCode, &a.CheckedInAt, &a.CheckedInBy,
		&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *appointmentRepoPG) UpdateStatus(ctx context.Context, id, doctorID int64, status, note string) (*StatusChange, error) {
	ch := StatusChange{AppointmentID: id}
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE appointments a SET
			status = $3,
			notes = CASE WHEN $4::text = '' THEN a.notes
				WHEN a.notes = '' THEN $4::text
				ELSE a.notes || E'\n' || $4 END,
			updated_at = NOW()
		FROM patients p
		WHERE a.id = $1 AND a.doctor_id = $2 AND p.id = a.patient_id
		RETURNING p.user_id, a.status, a.appointment_date, to_char(a.appointment_time, 'HH12:MI AM')`,
		id, doctorID, status, note,
	).Scan(&ch.PatientUserID, &ch.Status, &ch.Date, &ch.Time)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update appointment %d status: %w", id, err)
	}
	return &ch, nil
}

func (r *appointmentRepoPG) GetForDoctor(ctx context.Context, id, doctorID int64) (*Appointment, error) {
	a, err := r.scanAppt(r.conn(ctx).QueryRow(ctx,
		`SELECT `+apptCols+apptFrom+` WHERE a.id = $1 AND a.doctor_id = $2`, id, doctorID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get appointment %d: %w", id, err)
	}
	return a, nil
}

func (r *appointmentRepoPG) List(ctx context.Context, doctorID int64, f ListFilter, limit, offset int) ([]*Appointment, int, error) {
	where := ` WHERE a.doctor_id = $1`
	args := []interface{}{doctorID}
	idx := 2

	if f.Status != "" {
		where += fmt.Sprintf(" AND a.status = $%d", idx)
		args = append(args, f.Status)
		idx++
	}
	order := " ORDER BY a.appointment_date DESC, a.appointment_time DESC"
	switch f.Scope {
	case ScopeToday:
		where += fmt.Sprintf(" AND a.appointment_date = $%d", idx)
		args = append(args, dateOnly(f.Today))
		idx++
		order = " ORDER BY a.appointment_time"
	case ScopeUpcoming:
		where += fmt.Sprintf(" AND a.appointment_date >= $%d", idx)
		args = append(args, dateOnly(f.Today))
		idx++
		order = " ORDER BY a.appointment_date, a.appointment_time"
	case ScopePast:
		where += fmt.Sprintf(" AND a.appointment_date < $%d", idx)
		args = append(args, dateOnly(f.Today))
		idx++
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		where += fmt.Sprintf(" AND (u.full_name ILIKE $%d OR u.email ILIKE $%d OR p.phone ILIKE $%d)", idx, idx, idx)
		args = append(args, "%"+s+"%")
		idx++
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, "SELECT COUNT(*)"+apptFrom+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count appointments: %w", err)
	}

	query := "SELECT " + apptCols + apptFrom + where + order + fmt.Sprintf(" LIMIT $%d OFFSET $%d", idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list appointments: %w", err)
	}
	defer rows.Close()

	var items []*Appointment
	for rows.Next() {
		a, err := r.scanAppt(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, a)
	}
	return items, total, rows.Err()
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
