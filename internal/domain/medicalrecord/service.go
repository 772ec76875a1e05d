package medicalrecord

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Peiying0830/Careplus-sub003/internal/platform/apperror"
	"github.com/Peiying0830/Careplus-sub003/internal/platform/auth"
)

type DoctorResolver interface {
	ResolveDoctorID(ctx context.Context, userID int64) (int64, error)
}

type Service struct {
	repo    Repository
	doctors DoctorResolver
	logger  zerolog.Logger
	loc     *time.Location
	now     func() time.Time
}

func NewService(repo Repository, doctors DoctorResolver, loc *time.Location, logger zerolog.Logger) *Service {
	if loc == nil {
		loc = time.Local
	}
	return &Service{repo: repo, doctors: doctors, logger: logger, loc: loc, now: time.Now}
}

func (s *Service) today() time.Time {
	now := s.now().In(s.loc)
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

func parseVisitDate(raw string, fallback time.Time) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, nil
	}
	d, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, apperror.Validation(apperror.CodeInvalidField, "Visit date must be in YYYY-MM-DD format")
	}
	return d, nil
}

func (s *Service) checkLink(ctx context.Context, appointmentID *int64, doctorID, patientID int64) error {
	if appointmentID == nil {
		return nil
	}
	ok, err := s.repo.AppointmentBelongs(ctx, *appointmentID, doctorID, patientID)
	if err != nil {
		return err
	}
	if !ok {
		return apperror.Validation(apperror.CodeInvalidField, "Appointment does not belong to this patient")
	}
	return nil
}

// Create stores a new record. Without an explicit appointment it links the
// patient's latest completed appointment with this doctor on the visit date.
func (s *Service) Create(ctx context.Context, id auth.Identity, req Request) (*Record, error) {
	diagnosis := strings.TrimSpace(req.Diagnosis)
	if req.PatientID <= 0 || diagnosis == "" {
		return nil, apperror.Validation(apperror.CodeMissingFields, "Patient and diagnosis are required")
	}
	visit, err := parseVisitDate(req.VisitDate, s.today())
	if err != nil {
		return nil, err
	}
	doctorID, err := s.doctors.ResolveDoctorID(ctx, id.UserID)
	if err != nil {
		return nil, err
	}

	exists, err := s.repo.PatientExists(ctx, req.PatientID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, apperror.NotFound(apperror.CodeNotFound, "Patient not found")
	}

	link := req.AppointmentID
	if link != nil && *link <= 0 {
		link = nil
	}
	if link == nil {
		if link, err = s.repo.LatestCompletedAppointment(ctx, doctorID, req.PatientID, visit); err != nil {
			return nil, err
		}
	} else if err := s.checkLink(ctx, link, doctorID, req.PatientID); err != nil {
		return nil, err
	}

	rec := &Record{
		PatientID:     req.PatientID,
		DoctorID:      doctorID,
		AppointmentID: link,
		VisitDate:     visit,
		Symptoms:      strings.TrimSpace(req.Symptoms),
		Diagnosis:     diagnosis,
		Prescription:  strings.TrimSpace(req.Prescription),
		LabResults:    strings.TrimSpace(req.LabResults),
		Notes:         strings.TrimSpace(req.Notes),
	}
	if err := s.repo.Insert(ctx, rec); err != nil {
		return nil, err
	}
	s.logger.Info().Int64("record_id", rec.ID).Int64("patient_id", rec.PatientID).
		Bool("linked", rec.AppointmentID != nil).Msg("medical record created")
	return rec, nil
}

// Update rewrites an own record with exactly the submitted values. The
// appointment link is never inferred here.
func (s *Service) Update(ctx context.Context, id auth.Identity, recordID int64, req Request) (*Record, error) {
	diagnosis := strings.TrimSpace(req.Diagnosis)
	if diagnosis == "" {
		return nil, apperror.Validation(apperror.CodeMissingFields, "Diagnosis is required")
	}
	doctorID, err := s.doctors.ResolveDoctorID(ctx, id.UserID)
	if err != nil {
		return nil, err
	}
	rec, err := s.repo.GetForDoctor(ctx, recordID, doctorID)
	if errors.Is(err, ErrNotFound) {
		return nil, apperror.NotFound(apperror.CodeNotFoundOrForbidden, "Medical record not found or access denied")
	}
	if err != nil {
		return nil, err
	}
	if req.PatientID > 0 && req.PatientID != rec.PatientID {
		return nil, apperror.Validation(apperror.CodeInvalidField, "Patient cannot be changed on an existing record")
	}

	visit, err := parseVisitDate(req.VisitDate, rec.VisitDate)
	if err != nil {
		return nil, err
	}
	link := req.AppointmentID
	if link != nil && *link <= 0 {
		link = nil
	}
	if err := s.checkLink(ctx, link, doctorID, rec.PatientID); err != nil {
		return nil, err
	}

	rec.AppointmentID = link
	rec.VisitDate = visit
	rec.Symptoms = strings.TrimSpace(req.Symptoms)
	rec.Diagnosis = diagnosis
	rec.Prescription = strings.TrimSpace(req.Prescription)
	rec.LabResults = strings.TrimSpace(req.LabResults)
	rec.Notes = strings.TrimSpace(req.Notes)

	if err := s.repo.Update(ctx, rec); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, apperror.NotFound(apperror.CodeNotFoundOrForbidden, "Medical record not found or access denied")
		}
		return nil, err
	}
	return rec, nil
}

func (s *Service) Get(ctx context.Context, id auth.Identity, recordID int64) (*Record, error) {
	doctorID, err := s.doctors.ResolveDoctorID(ctx, id.UserID)
	if err != nil {
		return nil, err
	}
	rec, err := s.repo.GetForDoctor(ctx, recordID, doctorID)
	if errors.Is(err, ErrNotFound) {
		return nil, apperror.NotFound(apperror.CodeNotFound, "Medical record not found")
	}
	return rec, err
}

func (s *Service) List(ctx context.Context, id auth.Identity, f ListFilter, limit, offset int) ([]*Record, int, error) {
	doctorID, err := s.doctors.ResolveDoctorID(ctx, id.UserID)
	if err != nil {
		return nil, 0, err
	}
	return s.repo.List(ctx, doctorID, f, limit, offset)
}
