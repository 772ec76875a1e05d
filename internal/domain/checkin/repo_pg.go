package checkin

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Peiying0830/Careplus-sub003/internal/platform/db"
)

type checkinRepoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &checkinRepoPG{pool: pool} }

func (r *checkinRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

func (r *checkinRepoPG) LockByCode(ctx context.Context, qrCode string, doctorID int64) (*Target, error) {
	var t Target
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT a.id, a.doctor_id, p.user_id, u.full_name, a.status, a.appointment_date,
			to_char(a.appointment_time, 'HH12:MI AM'), a.checked_in_at
		FROM appointments a
		JOIN patients p ON p.id = a.patient_id
		JOIN users u ON u.id = p.user_id
		WHERE a.qr_code = $1 AND a.doctor_id = $2
		FOR UPDATE OF a`, qrCode, doctorID,
	).Scan(&t.ID, &t.DoctorID, &t.PatientUserID, &t.PatientName, &t.Status, &t.Date, &t.Time, &t.CheckedInAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lock appointment by code: %w", err)
	}
	return &t, nil
}

func (r *checkinRepoPG) MarkCheckedIn(ctx context.Context, appointmentID, userID int64, at time.Time) (bool, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE appointments
		SET checked_in_at = $3, checked_in_by = $2, status = 'confirmed', updated_at = NOW()
		WHERE id = $1 AND checked_in_at IS NULL AND status NOT IN ('cancelled', 'completed')`,
		appointmentID, userID, at)
	if err != nil {
		return false, fmt.Errorf("mark appointment %d checked in: %w", appointmentID, err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *checkinRepoPG) InsertLog(ctx context.Context, l *ScanLog) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO qr_scan_logs (appointment_id, qr_code, scanned_by, scan_result, notes)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, scanned_at`,
		l.AppointmentID, l.QRCode, l.ScannedBy, l.ScanResult, l.Notes,
	).Scan(&l.ID, &l.ScannedAt)
	if err != nil {
		return fmt.Errorf("insert scan log: %w", err)
	}
	return nil
}

func (r *checkinRepoPG) ListLogs(ctx context.Context, doctorID, userID int64, f LogFilter, limit, offset int) ([]*ScanLog, int, error) {
	from := ` FROM qr_scan_logs l
		LEFT JOIN appointments a ON a.id = l.appointment_id
		LEFT JOIN patients p ON p.id = a.patient_id
		LEFT JOIN users u ON u.id = p.user_id
		WHERE (l.scanned_by = $1 OR a.doctor_id = $2)`
	args := []interface{}{userID, doctorID}
	idx := 3
	if f.Result != "" {
		from += fmt.Sprintf(" AND l.scan_result = $%d", idx)
		args = append(args, f.Result)
		idx++
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, "SELECT COUNT(*)"+from, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count scan logs: %w", err)
	}

	query := `SELECT l.id, l.appointment_id, COALESCE(u.full_name, ''), l.qr_code, l.scanned_by,
		l.scan_result, l.notes, l.scanned_at` + from +
		fmt.Sprintf(" ORDER BY l.scanned_at DESC, l.id DESC LIMIT $%d OFFSET $%d", idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list scan logs: %w", err)
	}
	defer rows.Close()

	var logs []*ScanLog
	for rows.Next() {
		var l ScanLog
		if err := rows.Scan(&l.ID, &l.AppointmentID, &l.PatientName, &l.QRCode, &l.ScannedBy,
			&l.ScanResult, &l.Notes, &l.ScannedAt); err != nil {
			return nil, 0, err
		}
		logs = append(logs, &l)
	}
	return logs, total, rows.Err()
}
