package patient

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("patient not found")

type Repository interface {
	Roster(ctx context.Context, doctorID int64, search string, limit, offset int) ([]*RosterEntry, int, error)
	// InRoster reports whether the patient has any appointment with doctorID.
	InRoster(ctx context.Context, doctorID, patientID int64) (bool, error)
	Profile(ctx context.Context, patientID int64) (*Profile, error)
	Appointments(ctx context.Context, doctorID, patientID int64, limit int) ([]AppointmentSummary, error)
	Records(ctx context.Context, doctorID, patientID int64, limit int) ([]RecordSummary, error)
	Prescriptions(ctx context.Context, doctorID, patientID int64, limit int) ([]PrescriptionSummary, error)
}
