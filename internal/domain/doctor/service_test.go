package doctor

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/Peiying0830/Careplus-sub003/internal/platform/apperror"
)

type mockDoctorRepo struct {
	profiles  map[int64]*Profile
	byUser    map[int64]int64
	lastToday time.Time
}

func newMockDoctorRepo() *mockDoctorRepo {
	return &mockDoctorRepo{profiles: make(map[int64]*Profile), byUser: make(map[int64]int64)}
}

func (m *mockDoctorRepo) add(p *Profile) {
	m.profiles[p.ID] = p
	m.byUser[p.UserID] = p.ID
}

func (m *mockDoctorRepo) IDByUserID(_ context.Context, userID int64) (int64, error) {
	id, ok := m.byUser[userID]
	if !ok {
		return 0, ErrNotFound
	}
	return id, nil
}

func (m *mockDoctorRepo) GetByID(_ context.Context, id int64) (*Profile, error) {
	p, ok := m.profiles[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *mockDoctorRepo) Update(_ context.Context, p *Profile) error {
	if _, ok := m.profiles[p.ID]; !ok {
		return ErrNotFound
	}
	cp := *p
	m.profiles[p.ID] = &cp
	return nil
}

func (m *mockDoctorRepo) Dashboard(_ context.Context, doctorID, _ int64, today time.Time) (*Dashboard, error) {
	m.lastToday = today
	return &Dashboard{TodayAppointments: int(doctorID)}, nil
}

func newTestService() (*Service, *mockDoctorRepo) {
	repo := newMockDoctorRepo()
	repo.add(&Profile{ID: 5, UserID: 10, FullName: "Dr. Tan", Specialization: "General", ConsultationFee: 50})
	return NewService(repo, time.UTC), repo
}

func TestService_ResolveDoctorID(t *testing.T) {
	svc, _ := newTestService()
	id, err := svc.ResolveDoctorID(context.Background(), 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != 5 {
		t.Errorf("expected doctor 5, got %d", id)
	}
}

func TestService_ResolveDoctorID_NoProfile(t *testing.T) {
	svc, _ := newTestService()
	_, err := svc.ResolveDoctorID(context.Background(), 99)
	if !apperror.Is(err, apperror.CodeProfileNotFound) {
		t.Fatalf("expected ProfileNotFound, got %v", err)
	}
}

func TestService_UpdateProfile(t *testing.T) {
	svc, repo := newTestService()
	specialty := "  Cardiology "
	years := 12
	fee := RawNumber("80.456")
	p, err := svc.UpdateProfile(context.Background(), 10, UpdateProfileRequest{
		Specialization:  &specialty,
		ExperienceYears: &years,
		ConsultationFee: &fee,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Specialization != "Cardiology" || p.ExperienceYears != 12 {
		t.Errorf("unexpected profile: %+v", p)
	}
	if p.ConsultationFee != 80.46 {
		t.Errorf("expected fee rounded to 80.46, got %v", p.ConsultationFee)
	}
	if repo.profiles[5].Specialization != "Cardiology" {
		t.Error("expected update to be persisted")
	}
}

func TestService_UpdateProfile_InvalidFee(t *testing.T) {
	for _, raw := range []string{"abc", "", "-5", "NaN"} {
		svc, repo := newTestService()
		fee := RawNumber(raw)
		_, err := svc.UpdateProfile(context.Background(), 10, UpdateProfileRequest{ConsultationFee: &fee})
		appErr, ok := apperror.As(err)
		if !ok || appErr.Kind != apperror.KindValidation {
			t.Fatalf("fee %q: expected validation error, got %v", raw, err)
		}
		if appErr.Message != "Consultation fee must be a valid number" {
			t.Errorf("fee %q: unexpected message %q", raw, appErr.Message)
		}
		if repo.profiles[5].ConsultationFee != 50 {
			t.Errorf("fee %q: profile should be unchanged", raw)
		}
	}
}

func TestService_UpdateProfile_NegativeExperience(t *testing.T) {
	svc, _ := newTestService()
	years := -1
	_, err := svc.UpdateProfile(context.Background(), 10, UpdateProfileRequest{ExperienceYears: &years})
	if !apperror.Is(err, apperror.CodeInvalidField) {
		t.Fatalf("expected InvalidField, got %v", err)
	}
}

func TestService_Dashboard_UsesLocalDate(t *testing.T) {
	repo := newMockDoctorRepo()
	repo.add(&Profile{ID: 5, UserID: 10})
	kl := time.FixedZone("MYT", 8*3600)
	svc := NewService(repo, kl)
	svc.now = func() time.Time { return time.Date(2024, 1, 1, 20, 0, 0, 0, time.UTC) }

	if _, err := svc.Dashboard(context.Background(), 10); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	if !repo.lastToday.Equal(want) {
		t.Errorf("expected today %v, got %v", want, repo.lastToday)
	}
}

func TestRawNumber_Unmarshal(t *testing.T) {
	var req UpdateProfileRequest
	if err := json.Unmarshal([]byte(`{"consultation_fee":"75.50"}`), &req); err != nil {
		t.Fatalf("unmarshal string: %v", err)
	}
	if string(*req.ConsultationFee) != "75.50" {
		t.Errorf("got %q", *req.ConsultationFee)
	}
	if err := json.Unmarshal([]byte(`{"consultation_fee":120}`), &req); err != nil {
		t.Fatalf("unmarshal number: %v", err)
	}
	if string(*req.ConsultationFee) != "120" {
		t.Errorf("got %q", *req.ConsultationFee)
	}
}
