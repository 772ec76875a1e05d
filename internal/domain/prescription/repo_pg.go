package prescription

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Peiying0830/Careplus-sub003/internal/platform/db"
)

const codeConstraint = "prescriptions_verification_code_key"

type prescriptionRepoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &prescriptionRepoPG{pool: pool} }

func (r *prescriptionRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const rxCols = `rx.id, rx.patient_id, u.full_name, rx.doctor_id, du.full_name, rx.diagnosis, rx.notes,
	rx.verification_code, rx.status, rx.valid_until, rx.created_at, rx.updated_at,
	(SELECT COUNT(*) FROM prescription_medications m WHERE m.prescription_id = rx.id)`

const rxFrom = ` FROM prescriptions rx
	JOIN patients p ON p.id = rx.patient_id
	JOIN users u ON u.id = p.user_id
	JOIN doctors d ON d.id = rx.doctor_id
	JOIN users du ON du.id = d.user_id`

func (r *prescriptionRepoPG) scanRx(row pgx.Row) (*Prescription, error) {
	var p Prescription
	err := row.Scan(&p.ID, &p.PatientID, &p.PatientName, &p.DoctorID, &p.DoctorName, &p.Diagnosis, &p.Notes,
		&p.VerificationCode, &p.Status, &p.ValidUntil, &p.CreatedAt, &p.UpdatedAt, &p.MedicationCount)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *prescriptionRepoPG) PatientAllergies(ctx context.Context, patientID int64) (string, error) {
	var allergies string
	err := r.conn(ctx).QueryRow(ctx, `SELECT allergies FROM patients WHERE id = $1`, patientID).Scan(&allergies)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrPatientNotFound
	}
	if err != nil {
		return "", fmt.Errorf("load allergies for patient %d: %w", patientID, err)
	}
	return allergies, nil
}

func (r *prescriptionRepoPG) ActiveMedicationNames(ctx context.Context, patientID, excludeID int64) ([]string, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT DISTINCT m.medication_name
		FROM prescription_medications m
		JOIN prescriptions rx ON rx.id = m.prescription_id
		WHERE rx.patient_id = $1 AND rx.status = 'active' AND rx.id <> $2`, patientID, excludeID)
	if err != nil {
		return nil, fmt.Errorf("active medications for patient %d: %w", patientID, err)
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func (r *prescriptionRepoPG) Interactions(ctx context.Context, names []string) ([]Interaction, error) {
	lowered := make([]string, 0, len(names))
	for _, n := range names {
		lowered = append(lowered, strings.ToLower(strings.TrimSpace(n)))
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT drug_a, drug_b, severity, description
		FROM drug_interactions
		WHERE LOWER(drug_a) = ANY($1) AND LOWER(drug_b) = ANY($1)`, lowered)
	if err != nil {
		return nil, fmt.Errorf("lookup drug interactions: %w", err)
	}
	defer rows.Close()

	var out []Interaction
	for rows.Next() {
		var i Interaction
		if err := rows.Scan(&i.DrugA, &i.DrugB, &i.Severity, &i.Description); err != nil {
			return nil, err
		}
		out = append(out, i)
	}
	return out, rows.Err()
}

// Insert runs under a savepoint so a verification code collision can be
// retried without aborting the surrounding transaction.
func (r *prescriptionRepoPG) Insert(ctx context.Context, p *Prescription) error {
	q := r.conn(ctx)
	if _, err := q.Exec(ctx, "SAVEPOINT rx_insert"); err != nil {
		return fmt.Errorf("savepoint: %w", err)
	}
	err := q.QueryRow(ctx, `
		INSERT INTO prescriptions (patient_id, doctor_id, diagnosis, notes, verification_code, status, valid_until)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`,
		p.PatientID, p.DoctorID, p.Diagnosis, p.Notes, p.VerificationCode, p.Status, p.ValidUntil,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if _, rbErr := q.Exec(ctx, "ROLLBACK TO SAVEPOINT rx_insert"); rbErr != nil {
			return fmt.Errorf("insert prescription: %w (rollback to savepoint: %v)", err, rbErr)
		}
		if db.IsUniqueViolation(err, codeConstraint) {
			return ErrCodeTaken
		}
		return fmt.Errorf("insert prescription: %w", err)
	}
	if _, err := q.Exec(ctx, "RELEASE SAVEPOINT rx_insert"); err != nil {
		return fmt.Errorf("release savepoint: %w", err)
	}
	return nil
}

// InsertLines writes every line in one statement.
func (r *prescriptionRepoPG) InsertLines(ctx context.Context, prescriptionID int64, lines []MedicationLine) error {
	n := len(lines)
	names, dosages, freqs := make([]string, n), make([]string, n), make([]string, n)
	durations, instructions := make([]string, n), make([]string, n)
	quantities := make([]int32, n)
	for i, l := range lines {
		names[i], dosages[i], freqs[i] = l.Name, l.Dosage, l.Frequency
		durations[i], instructions[i] = l.Duration, l.Instructions
		quantities[i] = int32(l.Quantity)
	}
	tag, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO prescription_medications
			(prescription_id, medication_name, dosage, frequency, duration, quantity, instructions)
		SELECT $1, t.name, t.dosage, t.frequency, t.duration, t.quantity, t.instructions
		FROM unnest($2::text[], $3::text[], $4::text[], $5::text[], $6::int[], $7::text[])
			AS t(name, dosage, frequency, duration, quantity, instructions)`,
		prescriptionID, names, dosages, freqs, durations, quantities, instructions)
	if err != nil {
		return fmt.Errorf("insert medication lines for prescription %d: %w", prescriptionID, err)
	}
	if int(tag.RowsAffected()) != n {
		return fmt.Errorf("insert medication lines for prescription %d: wrote %d of %d", prescriptionID, tag.RowsAffected(), n)
	}
	return nil
}

func (r *prescriptionRepoPG) DeleteLines(ctx context.Context, prescriptionID int64) error {
	if _, err := r.conn(ctx).Exec(ctx, `DELETE FROM prescription_medications WHERE prescription_id = $1`, prescriptionID); err != nil {
		return fmt.Errorf("delete medication lines for prescription %d: %w", prescriptionID, err)
	}
	return nil
}

func (r *prescriptionRepoPG) LockForDoctor(ctx context.Context, id, doctorID int64) (*Prescription, error) {
	var p Prescription
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT id, patient_id, doctor_id, diagnosis, notes, verification_code, status, valid_until, created_at, updated_at
		FROM prescriptions
		WHERE id = $1 AND doctor_id = $2
		FOR UPDATE`, id, doctorID,
	).Scan(&p.ID, &p.PatientID, &p.DoctorID, &p.Diagnosis, &p.Notes, &p.VerificationCode,
		&p.Status, &p.ValidUntil, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lock prescription %d: %w", id, err)
	}
	return &p, nil
}

func (r *prescriptionRepoPG) UpdateHeader(ctx context.Context, id int64, diagnosis, notes string) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE prescriptions SET diagnosis = $2, notes = $3, updated_at = NOW()
		WHERE id = $1 AND status = 'active'`, id, diagnosis, notes)
	if err != nil {
		return fmt.Errorf("update prescription %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *prescriptionRepoPG) Cancel(ctx context.Context, id, doctorID int64, note string) (bool, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE prescriptions SET
			status = 'cancelled',
			notes = CASE WHEN notes = '' THEN $3::text ELSE notes || E'\n' || $3::text END,
			updated_at = NOW()
		WHERE id = $1 AND doctor_id = $2 AND status = 'active'`, id, doctorID, note)
	if err != nil {
		return false, fmt.Errorf("cancel prescription %d: %w", id, err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *prescriptionRepoPG) GetForDoctor(ctx context.Context, id, doctorID int64) (*Prescription, error) {
	p, err := r.scanRx(r.conn(ctx).QueryRow(ctx,
		`SELECT `+rxCols+rxFrom+` WHERE rx.id = $1 AND rx.doctor_id = $2`, id, doctorID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get prescription %d: %w", id, err)
	}

	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, prescription_id, medication_name, dosage, frequency, duration, quantity, instructions
		FROM prescription_medications
		WHERE prescription_id = $1
		ORDER BY id`, id)
	if err != nil {
		return nil, fmt.Errorf("load medication lines for prescription %d: %w", id, err)
	}
	defer rows.Close()

	p.Medications = []MedicationLine{}
	for rows.Next() {
		var l MedicationLine
		if err := rows.Scan(&l.ID, &l.PrescriptionID, &l.Name, &l.Dosage, &l.Frequency,
			&l.Duration, &l.Quantity, &l.Instructions); err != nil {
			return nil, err
		}
		p.Medications = append(p.Medications, l)
	}
	return p, rows.Err()
}

func (r *prescriptionRepoPG) List(ctx context.Context, doctorID int64, f ListFilter, limit, offset int) ([]*Prescription, int, error) {
	where := ` WHERE rx.doctor_id = $1`
	args := []interface{}{doctorID}
	idx := 2
	if f.Status != "" {
		where += fmt.Sprintf(" AND rx.status = $%d", idx)
		args = append(args, f.Status)
		idx++
	}
	if f.PatientID > 0 {
		where += fmt.Sprintf(" AND rx.patient_id = $%d", idx)
		args = append(args, f.PatientID)
		idx++
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, "SELECT COUNT(*)"+rxFrom+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count prescriptions: %w", err)
	}

	query := "SELECT " + rxCols + rxFrom + where +
		fmt.Sprintf(" ORDER BY rx.created_at DESC, rx.id DESC LIMIT $%d OFFSET $%d", idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list prescriptions: %w", err)
	}
	defer rows.Close()

	var items []*Prescription
	for rows.Next() {
		p, err := r.scanRx(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	return items, total, rows.Err()
}
