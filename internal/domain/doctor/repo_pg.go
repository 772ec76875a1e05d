package doctor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Peiying0830/Careplus-sub003/internal/platform/db"
)

type doctorRepoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &doctorRepoPG{pool: pool} }

func (r *doctorRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

func (r *doctorRepoPG) IDByUserID(ctx context.Context, userID int64) (int64, error) {
	var id int64
	err := r.conn(ctx).QueryRow(ctx, `SELECT id FROM doctors WHERE user_id = $1`, userID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("resolve doctor for user %d: %w", userID, err)
	}
	return id, nil
}

func (r *doctorRepoPG) GetByID(ctx context.Context, id int64) (*Profile, error) {
	var p Profile
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT d.id, d.user_id, u.full_name, u.email, d.specialization, d.qualification,
			d.experience_years, d.consultation_fee::float8, d.license_number, d.phone, d.bio,
			d.created_at, d.updated_at
		FROM doctors d
		JOIN users u ON u.id = d.user_id
		WHERE d.id = $1`, id).Scan(
		&p.ID, &p.UserID, &p.FullName, &p.Email, &p.Specialization, &p.Qualification,
		&p.ExperienceYears, &p.ConsultationFee, &p.LicenseNumber, &p.Phone, &p.Bio,
		&p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get doctor %d: %w", id, err)
	}
	return &p, nil
}

func (r *doctorRepoPG) Update(ctx context.Context, p *Profile) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE doctors SET specialization=$2, qualification=$3, experience_years=$4,
			consultation_fee=$5, phone=$6, bio=$7, updated_at=NOW()
		WHERE id = $1
		RETURNING updated_at`,
		p.ID, p.Specialization, p.Qualification, p.ExperienceYears,
		p.ConsultationFee, p.Phone, p.Bio).Scan(&p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("update doctor %d: %w", p.ID, err)
	}
	return nil
}

func (r *doctorRepoPG) Dashboard(ctx context.Context, doctorID, userID int64, today time.Time) (*Dashboard, error) {
	var d Dashboard
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM appointments WHERE doctor_id = $1 AND appointment_date = $2),
			(SELECT COUNT(*) FROM appointments WHERE doctor_id = $1 AND status = 'pending' AND appointment_date >= $2),
			(SELECT COUNT(*) FROM appointments WHERE doctor_id = $1 AND appointment_date = $2 AND checked_in_at IS NOT NULL),
			(SELECT COUNT(*) FROM appointments WHERE doctor_id = $1 AND appointment_date = $2 AND status = 'completed'),
			(SELECT COUNT(DISTINCT patient_id) FROM appointments WHERE doctor_id = $1),
			(SELECT COUNT(*) FROM prescriptions WHERE doctor_id = $1 AND status = 'active'),
			(SELECT COUNT(*) FROM qr_scan_logs WHERE scanned_by = $3 AND scanned_at::date = $2)`,
		doctorID, today, userID).Scan(
		&d.TodayAppointments, &d.PendingAppointments, &d.CheckedInToday, &d.CompletedToday,
		&d.TotalPatients, &d.ActivePrescriptions, &d.ScansToday)
	if err != nil {
		return nil, fmt.Errorf("dashboard for doctor %d: %w", doctorID, err)
	}
	return &d, nil
}
