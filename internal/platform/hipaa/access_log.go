package hipaa

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Peiying0830/Careplus-sub003/internal/platform/db"
	"github.com/Peiying0830/Careplus-sub003/internal/platform/middleware"
)

// Outcome codes follow the audit event convention: 0 success, 4 minor
// failure, 8 serious failure, 12 major failure.
const (
	OutcomeSuccess        = "0"
	OutcomeMinorFailure   = "4"
	OutcomeSeriousFailure = "8"
)

// AccessLog is one row of phi_access_log.
type AccessLog struct {
	ID         int64     `json:"id"`
	UserID     *int64    `json:"user_id"`
	Role       string    `json:"role"`
	Resource   string    `json:"resource"`
	ResourceID *int64    `json:"resource_id"`
	PatientID  *int64    `json:"patient_id"`
	Action     string    `json:"action"`
	Outcome    string    `json:"outcome"`
	Method     string    `json:"method"`
	Path       string    `json:"path"`
	StatusCode int       `json:"status_code"`
	IPAddress  string    `json:"ip_address"`
	UserAgent  string    `json:"user_agent"`
	RequestID  string    `json:"request_id"`
	AccessedAt time.Time `json:"accessed_at"`
}

// AccessLogger persists patient data access. It satisfies
// middleware.AuditRecorder.
type AccessLogger struct {
	pool    *pgxpool.Pool
	timeout time.Duration
}

func NewAccessLogger(pool *pgxpool.Pool) *AccessLogger {
	return &AccessLogger{pool: pool, timeout: 2 * time.Second}
}

// LogAccess writes l, using the transaction in ctx when there is one.
func (a *AccessLogger) LogAccess(ctx context.Context, l *AccessLog) error {
	if l.AccessedAt.IsZero() {
		l.AccessedAt = time.Now().UTC()
	}
	err := db.Conn(ctx, a.pool).QueryRow(ctx, `
		INSERT INTO phi_access_log (
			user_id, role, resource, resource_id, patient_id, action, outcome,
			method, path, status_code, ip_address, user_agent, request_id, accessed_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		RETURNING id`,
		l.UserID, l.Role, l.Resource, l.ResourceID, l.PatientID, l.Action, l.Outcome,
		l.Method, l.Path, l.StatusCode, l.IPAddress, l.UserAgent, l.RequestID, l.AccessedAt,
	).Scan(&l.ID)
	if err != nil {
		return fmt.Errorf("hipaa access log: %w", err)
	}
	return nil
}

// RecordAccess runs after the response is written, so it gets its own
// bounded context rather than the request's.
func (a *AccessLogger) RecordAccess(entry middleware.AuditEntry) error {
	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()
	return a.LogAccess(ctx, FromAuditEntry(entry))
}

// FromAuditEntry maps a middleware audit entry onto a log row.
func FromAuditEntry(e middleware.AuditEntry) *AccessLog {
	l := &AccessLog{
		Role:       e.Role,
		Resource:   e.Resource,
		ResourceID: parseID(e.ResourceID),
		PatientID:  parseID(e.PatientID),
		Action:     e.Action,
		Outcome:    OutcomeFor(e.StatusCode),
		Method:     e.Method,
		Path:       e.Path,
		StatusCode: e.StatusCode,
		IPAddress:  e.IPAddress,
		UserAgent:  e.UserAgent,
		RequestID:  e.RequestID,
		AccessedAt: e.Timestamp,
	}
	if e.UserID > 0 {
		uid := e.UserID
		l.UserID = &uid
	}
	return l
}

// OutcomeFor classifies an HTTP status.
func OutcomeFor(status int) string {
	switch {
	case status >= 500:
		return OutcomeSeriousFailure
	case status >= 400:
		return OutcomeMinorFailure
	default:
		return OutcomeSuccess
	}
}

func parseID(s string) *int64 {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return nil
	}
	return &n
}
