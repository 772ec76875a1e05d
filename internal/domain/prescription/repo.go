package prescription

import (
	"context"
	"errors"
)

var (
	ErrNotFound        = errors.New("prescription not found")
	ErrPatientNotFound = errors.New("patient not found")
	// ErrCodeTaken reports a verification code collision. The failed insert
	// has been rolled back to a savepoint, so the caller may retry.
	ErrCodeTaken = errors.New("verification code already in use")
)

type Repository interface {
	PatientAllergies(ctx context.Context, patientID int64) (string, error)
	// ActiveMedicationNames lists line names on the patient's active
	// prescriptions, skipping excludeID.
	ActiveMedicationNames(ctx context.Context, patientID, excludeID int64) ([]string, error)
	// Interactions returns rules whose both drugs appear in names, compared
	// case-insensitively.
	Interactions(ctx context.Context, names []string) ([]Interaction, error)

	Insert(ctx context.Context, p *Prescription) error
	InsertLines(ctx context.Context, prescriptionID int64, lines []MedicationLine) error
	DeleteLines(ctx context.Context, prescriptionID int64) error
	LockForDoctor(ctx context.Context, id, doctorID int64) (*Prescription, error)
	UpdateHeader(ctx context.Context, id int64, diagnosis, notes string) error
	// Cancel moves an active prescription to cancelled and appends note. It
	// reports false when no active prescription of doctorID matched.
	Cancel(ctx context.Context, id, doctorID int64, note string) (bool, error)

	GetForDoctor(ctx context.Context, id, doctorID int64) (*Prescription, error)
	List(ctx context.Context, doctorID int64, f ListFilter, limit, offset int) ([]*Prescription, int, error)
}
