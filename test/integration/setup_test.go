//go:build integration

package integration

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Peiying0830/Careplus-sub003/internal/domain/doctor"
	"github.com/Peiying0830/Careplus-sub003/internal/platform/db"
)

// globalPool is the migrated test database, initialized once in TestMain.
var globalPool *pgxpool.Pool

func TestMain(m *testing.M) {
	ctx := context.Background()

	connStr, cleanup, err := startPostgresContainer(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to setup postgres container: %v\n", err)
		os.Exit(1)
	}

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		cleanup()
		fmt.Fprintf(os.Stderr, "create pool: %v\n", err)
		os.Exit(1)
	}

	if _, err := db.NewMigrator(pool, findMigrationsDir()).Up(ctx); err != nil {
		pool.Close()
		cleanup()
		fmt.Fprintf(os.Stderr, "apply migrations: %v\n", err)
		os.Exit(1)
	}

	globalPool = pool
	code := m.Run()
	pool.Close()
	cleanup()
	os.Exit(code)
}

// findMigrationsDir locates the migrations directory relative to this test file.
func findMigrationsDir() string {
	_, filename, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(filename), "..", "..", "migrations")
}

// todayUTC is the calendar date the engines consider "today" with time.UTC.
func todayUTC() time.Time {
	now := time.Now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

func uniqueSuffix() string {
	return uuid.NewString()[:8]
}

type seededDoctor struct {
	UserID   int64
	DoctorID int64
}

type seededPatient struct {
	UserID    int64
	PatientID int64
}

func createUser(t *testing.T, ctx context.Context, role, name string) int64 {
	t.Helper()
	var id int64
	err := globalPool.QueryRow(ctx,
		`INSERT INTO users (email, role, full_name) VALUES ($1, $2, $3) RETURNING id`,
		fmt.Sprintf("%s-%s@careplus.test", role, uniqueSuffix()), role, name).Scan(&id)
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return id
}

func createDoctor(t *testing.T, ctx context.Context) seededDoctor {
	t.Helper()
	userID := createUser(t, ctx, "doctor", "Dr. Integration")
	var doctorID int64
	err := globalPool.QueryRow(ctx,
		`INSERT INTO doctors (user_id, specialization) VALUES ($1, 'General Practice') RETURNING id`,
		userID).Scan(&doctorID)
	if err != nil {
		t.Fatalf("create doctor: %v", err)
	}
	return seededDoctor{UserID: userID, DoctorID: doctorID}
}

func createPatient(t *testing.T, ctx context.Context, name, allergies string) seededPatient {
	t.Helper()
	userID := createUser(t, ctx, "patient", name)
	var patientID int64
	err := globalPool.QueryRow(ctx,
		`INSERT INTO patients (user_id, allergies) VALUES ($1, $2) RETURNING id`,
		userID, allergies).Scan(&patientID)
	if err != nil {
		t.Fatalf("create patient: %v", err)
	}
	return seededPatient{UserID: userID, PatientID: patientID}
}

// createAppointment books a 10:30 visit and returns its id and QR code.
func createAppointment(t *testing.T, ctx context.Context, d seededDoctor, p seededPatient, date time.Time, status string) (int64, string) {
	t.Helper()
	code := "QR-" + uniqueSuffix()
	var id int64
	err := globalPool.QueryRow(ctx,
		`INSERT INTO appointments (patient_id, doctor_id, appointment_date, appointment_time, status, qr_code)
		 VALUES ($1, $2, $3, '10:30', $4, $5) RETURNING id`,
		p.PatientID, d.DoctorID, date, status, code).Scan(&id)
	if err != nil {
		t.Fatalf("create appointment: %v", err)
	}
	return id, code
}

func countRows(t *testing.T, ctx context.Context, query string, args ...interface{}) int {
	t.Helper()
	var n int
	if err := globalPool.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		t.Fatalf("count rows: %v", err)
	}
	return n
}

func doctorService() *doctor.Service {
	return doctor.NewService(doctor.NewRepoPG(globalPool), time.UTC)
}
