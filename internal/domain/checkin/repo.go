package checkin

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("appointment not found for code")

type Repository interface {
	// LockByCode loads the doctor's appointment for qrCode and holds a row
	// lock on it until the surrounding transaction ends.
	LockByCode(ctx context.Context, qrCode string, doctorID int64) (*Target, error)
	// MarkCheckedIn confirms the appointment only if it has not been checked
	// in yet. It reports false when another writer got there first.
	MarkCheckedIn(ctx context.Context, appointmentID, userID int64, at time.Time) (bool, error)
	InsertLog(ctx context.Context, l *ScanLog) error
	ListLogs(ctx context.Context, doctorID, userID int64, f LogFilter, limit, offset int) ([]*ScanLog, int, error)
}
