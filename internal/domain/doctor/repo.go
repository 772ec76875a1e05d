package doctor

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when no doctor row matches.
var ErrNotFound = errors.New("doctor not found")

type Repository interface {
	IDByUserID(ctx context.Context, userID int64) (int64, error)
	GetByID(ctx context.Context, id int64) (*Profile, error)
	Update(ctx context.Context, p *Profile) error
	Dashboard(ctx context.Context, doctorID, userID int64, today time.Time) (*Dashboard, error)
}
