package medicalrecord

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound        = errors.New("medical record not found")
	ErrPatientNotFound = errors.New("patient not found")
)

type Repository interface {
	PatientExists(ctx context.Context, patientID int64) (bool, error)
	// LatestCompletedAppointment finds the most recent completed appointment
	// of the patient with doctorID on date. It returns nil when none exists.
	LatestCompletedAppointment(ctx context.Context, doctorID, patientID int64, date time.Time) (*int64, error)
	AppointmentBelongs(ctx context.Context, appointmentID, doctorID, patientID int64) (bool, error)

	Insert(ctx context.Context, r *Record) error
	Update(ctx context.Context, r *Record) error
	GetForDoctor(ctx context.Context, id, doctorID int64) (*Record, error)
	List(ctx context.Context, doctorID int64, f ListFilter, limit, offset int) ([]*Record, int, error)
}
