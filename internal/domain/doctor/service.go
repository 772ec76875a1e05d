package doctor

import (
	"context"
	"errors"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/Peiying0830/Careplus-sub003/internal/platform/apperror"
)

type Service struct {
	repo Repository
	loc  *time.Location
	now  func() time.Time
}

func NewService(repo Repository, loc *time.Location) *Service {
	if loc == nil {
		loc = time.Local
	}
	return &Service{repo: repo, loc: loc, now: time.Now}
}

// ResolveDoctorID maps the calling user to the doctor record they own.
func (s *Service) ResolveDoctorID(ctx context.Context, userID int64) (int64, error) {
	id, err := s.repo.IDByUserID(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return 0, apperror.ProfileNotFound()
	}
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (s *Service) GetProfile(ctx context.Context, userID int64) (*Profile, error) {
	id, err := s.ResolveDoctorID(ctx, userID)
	if err != nil {
		return nil, err
	}
	p, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, apperror.ProfileNotFound()
	}
	return p, err
}

func (s *Service) UpdateProfile(ctx context.Context, userID int64, req UpdateProfileRequest) (*Profile, error) {
	p, err := s.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	if req.Specialization != nil {
		p.Specialization = strings.TrimSpace(*req.Specialization)
	}
	if req.Qualification != nil {
		p.Qualification = strings.TrimSpace(*req.Qualification)
	}
	if req.Phone != nil {
		p.Phone = strings.TrimSpace(*req.Phone)
	}
	if req.Bio != nil {
		p.Bio = strings.TrimSpace(*req.Bio)
	}
	if req.ExperienceYears != nil {
		if *req.ExperienceYears < 0 {
			return nil, apperror.Validation(apperror.CodeInvalidField, "Experience years cannot be negative")
		}
		p.ExperienceYears = *req.ExperienceYears
	}
	if req.ConsultationFee != nil {
		fee, err := parseFee(string(*req.ConsultationFee))
		if err != nil {
			return nil, err
		}
		p.ConsultationFee = fee
	}

	if err := s.repo.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func parseFee(raw string) (float64, error) {
	raw = strings.TrimSpace(raw)
	fee, err := strconv.ParseFloat(raw, 64)
	if raw == "" || err != nil || fee < 0 || math.IsNaN(fee) || math.IsInf(fee, 0) {
		return 0, apperror.Validation(apperror.CodeInvalidField, "Consultation fee must be a valid number")
	}
	return math.Round(fee*100) / 100, nil
}

func (s *Service) Dashboard(ctx context.Context, userID int64) (*Dashboard, error) {
	id, err := s.ResolveDoctorID(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := s.now().In(s.loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return s.repo.Dashboard(ctx, id, userID, today)
}
