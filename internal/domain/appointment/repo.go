package appointment

import (
	"context"
	"errors"
)

// ErrNotFound covers both a missing appointment and one owned by another
// doctor; callers cannot tell the two apart.
var ErrNotFound = errors.New("appointment not found")

type Repository interface {
	// UpdateStatus sets the status and appends note (when non-empty) in one
	// statement scoped to doctorID.
	UpdateStatus(ctx context.Context, id, doctorID int64, status, note string) (*StatusChange, error)
	GetForDoctor(ctx context.Context, id, doctorID int64) (*Appointment, error)
	List(ctx context.Context, doctorID int64, f ListFilter, limit, offset int) ([]*Appointment, int, error)
}
