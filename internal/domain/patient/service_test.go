package patient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/Peiying0830/Careplus-sub003/internal/platform/apperror"
	"github.com/Peiying0830/Careplus-sub003/internal/platform/auth"
)

type mockPatientRepo struct {
	profiles map[int64]*Profile
	visits   map[int64][]int64 // doctor -> patient ids with appointments
	failHist bool
}

func newMockPatientRepo() *mockPatientRepo {
	return &mockPatientRepo{
		profiles: map[int64]*Profile{
			7: {ID: 7, FullName: "Ali Hassan", Allergies: "Penicillin", BloodType: "O+"},
			8: {ID: 8, FullName: "Mei Lin"},
		},
		visits: map[int64][]int64{5: {7}, 6: {8}},
	}
}

func (m *mockPatientRepo) Roster(_ context.Context, doctorID int64, search string, _, _ int) ([]*RosterEntry, int, error) {
	var out []*RosterEntry
	for _, pid := range m.visits[doctorID] {
		p := m.profiles[pid]
		if search == "" || strings.Contains(strings.ToLower(p.FullName), strings.ToLower(search)) {
			out = append(out, &RosterEntry{ID: p.ID, FullName: p.FullName, AppointmentCount: 1})
		}
	}
	return out, len(out), nil
}

func (m *mockPatientRepo) InRoster(_ context.Context, doctorID, patientID int64) (bool, error) {
	for _, pid := range m.visits[doctorID] {
		if pid == patientID {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockPatientRepo) Profile(_ context.Context, patientID int64) (*Profile, error) {
	p, ok := m.profiles[patientID]
	if !ok {
		return nil, ErrNotFound
	}
	return p, nil
}

func (m *mockPatientRepo) Appointments(_ context.Context, _, _ int64, _ int) ([]AppointmentSummary, error) {
	if m.failHist {
		return nil, errors.New("connection refused")
	}
	return []AppointmentSummary{{ID: 42, Date: "2024-01-01", Status: "completed"}}, nil
}

func (m *mockPatientRepo) Records(_ context.Context, _, _ int64, _ int) ([]RecordSummary, error) {
	return nil, nil
}

func (m *mockPatientRepo) Prescriptions(_ context.Context, _, _ int64, _ int) ([]PrescriptionSummary, error) {
	return []PrescriptionSummary{{ID: 3, Status: "active"}}, nil
}

type stubResolver map[int64]int64

func (r stubResolver) ResolveDoctorID(_ context.Context, userID int64) (int64, error) {
	id, ok := r[userID]
	if !ok {
		return 0, apperror.ProfileNotFound()
	}
	return id, nil
}

var doctorUser = auth.Identity{UserID: 10, Role: auth.RoleDoctor}

func newTestService() (*Service, *mockPatientRepo) {
	repo := newMockPatientRepo()
	return NewService(repo, stubResolver{10: 5, 11: 6}), repo
}

func TestRoster_OnlyOwnPatients(t *testing.T) {
	svc, _ := newTestService()
	items, total, err := svc.Roster(context.Background(), doctorUser, "", 20, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 1 || items[0].ID != 7 {
		t.Errorf("expected only patient 7, got %+v", items)
	}
}

func TestDetail(t *testing.T) {
	svc, _ := newTestService()
	d, err := svc.Detail(context.Background(), doctorUser, 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Profile.Allergies != "Penicillin" || len(d.Appointments) != 1 || len(d.Prescriptions) != 1 {
		t.Errorf("unexpected detail %+v", d)
	}
	if d.Records == nil {
		t.Error("empty history should be an empty slice")
	}
}

func TestDetail_OutsideRoster(t *testing.T) {
	svc, _ := newTestService()
	for _, pid := range []int64{8, 999} {
		if _, err := svc.Detail(context.Background(), doctorUser, pid); !apperror.Is(err, apperror.CodeNotFound) {
			t.Errorf("patient %d: expected NotFound, got %v", pid, err)
		}
	}
}

func TestDetail_PropagatesStoreErrors(t *testing.T) {
	svc, repo := newTestService()
	repo.failHist = true
	if _, err := svc.Detail(context.Background(), doctorUser, 7); err == nil {
		t.Fatal("expected error")
	}
}

func TestHandler_Detail(t *testing.T) {
	svc, _ := newTestService()
	h := NewHandler(svc)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(auth.WithIdentity(req.Context(), doctorUser))
	rec := httptest.NewRecorder()
	c := echo.New().NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("7")

	if err := h.Detail(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"medical_records":[]`) || !strings.Contains(rec.Body.String(), `"Ali Hassan"`) {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}
}

func TestHandler_Roster_Search(t *testing.T) {
	svc, _ := newTestService()
	h := NewHandler(svc)
	req := httptest.NewRequest(http.MethodGet, "/?search=zzz", nil)
	req = req.WithContext(auth.WithIdentity(req.Context(), doctorUser))
	rec := httptest.NewRecorder()
	c := echo.New().NewContext(req, rec)

	if err := h.Roster(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"data":[]`) {
		t.Errorf("expected empty roster, got %s", rec.Body.String())
	}
}
