package patient

import (
	"context"
	"errors"

	"github.com/Peiying0830/Careplus-sub003/internal/platform/apperror"
	"github.com/Peiying0830/Careplus-sub003/internal/platform/auth"
)

const historyLimit = 50

type DoctorResolver interface {
	ResolveDoctorID(ctx context.Context, userID int64) (int64, error)
}

type Service struct {
	repo    Repository
	doctors DoctorResolver
}

func NewService(repo Repository, doctors DoctorResolver) *Service {
	return &Service{repo: repo, doctors: doctors}
}

func (s *Service) Roster(ctx context.Context, id auth.Identity, search string, limit, offset int) ([]*RosterEntry, int, error) {
	doctorID, err := s.doctors.ResolveDoctorID(ctx, id.UserID)
	if err != nil {
		return nil, 0, err
	}
	return s.repo.Roster(ctx, doctorID, search, limit, offset)
}

// Detail returns the patient's profile and this doctor's history with them.
// Patients outside the roster are reported as not found.
func (s *Service) Detail(ctx context.Context, id auth.Identity, patientID int64) (*Detail, error) {
	doctorID, err := s.doctors.ResolveDoctorID(ctx, id.UserID)
	if err != nil {
		return nil, err
	}
	notFound := apperror.NotFound(apperror.CodeNotFound, "Patient not found")

	ok, err := s.repo.InRoster(ctx, doctorID, patientID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, notFound
	}
	profile, err := s.repo.Profile(ctx, patientID)
	if errors.Is(err, ErrNotFound) {
		return nil, notFound
	}
	if err != nil {
		return nil, err
	}

	d := &Detail{Profile: profile}
	if d.Appointments, err = s.repo.Appointments(ctx, doctorID, patientID, historyLimit); err != nil {
		return nil, err
	}
	if d.Records, err = s.repo.Records(ctx, doctorID, patientID, historyLimit); err != nil {
		return nil, err
	}
	if d.Prescriptions, err = s.repo.Prescriptions(ctx, doctorID, patientID, historyLimit); err != nil {
		return nil, err
	}
	if d.Appointments == nil {
		d.Appointments = []AppointmentSummary{}
	}
	if d.Records == nil {
		d.Records = []RecordSummary{}
	}
	if d.Prescriptions == nil {
		d.Prescriptions = []PrescriptionSummary{}
	}
	return d, nil
}
