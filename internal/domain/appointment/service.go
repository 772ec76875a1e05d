package appointment

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Peiying0830/Careplus-sub003/internal/platform/apperror"
	"github.com/Peiying0830/Careplus-sub003/internal/platform/auth"
	"github.com/Peiying0830/Careplus-sub003/internal/platform/metrics"
	"github.com/Peiying0830/Careplus-sub003/internal/platform/notification"
	"github.com/Peiying0830/Careplus-sub003/internal/platform/websocket"
)

// DoctorResolver maps a user account to the doctor record it owns.
type DoctorResolver interface {
	ResolveDoctorID(ctx context.Context, userID int64) (int64, error)
}

// Notifier delivers a templated message to a user account.
type Notifier interface {
	Send(ctx context.Context, templateID string, userID int64, relatedID *int64, data map[string]string) (*notification.Notification, error)
}

type Service struct {
	repo      Repository
	doctors   DoctorResolver
	notifier  Notifier
	publisher websocket.EventPublisher
	metrics   *metrics.Metrics
	logger    zerolog.Logger
	loc       *time.Location
	now       func() time.Time
}

type Option func(*Service)

func WithPublisher(p websocket.EventPublisher) Option { return func(s *Service) { s.publisher = p } }
func WithMetrics(m *metrics.Metrics) Option          { return func(s *Service) { s.metrics = m } }
func WithLogger(l zerolog.Logger) Option             { return func(s *Service) { s.logger = l } }

func NewService(repo Repository, doctors DoctorResolver, notifier Notifier, loc *time.Location, opts ...Option) *Service {
	if loc == nil {
		loc = time.Local
	}
	s := &Service{
		repo:     repo,
		doctors:  doctors,
		notifier: notifier,
		logger:   zerolog.Nop(),
		loc:      loc,
		now:      time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// UpdateStatus applies a doctor-chosen status. The status write is the unit
// of work; the patient notification that follows is best effort.
func (s *Service) UpdateStatus(ctx context.Context, id auth.Identity, req StatusUpdateRequest) (*StatusChange, error) {
	req.Status = strings.TrimSpace(req.Status)
	if req.AppointmentID <= 0 {
		return nil, apperror.Validation(apperror.CodeMissingFields, "Appointment ID is required")
	}
	if !IsValidStatus(req.Status) {
		return nil, apperror.Validation(apperror.CodeInvalidStatus, "Invalid status")
	}

	doctorID, err := s.doctors.ResolveDoctorID(ctx, id.UserID)
	if err != nil {
		return nil, err
	}

	note := ""
	if text := strings.TrimSpace(req.Notes); text != "" {
		note = "[" + s.now().In(s.loc).Format("2006-01-02 15:04") + "] " + text
	}

	ch, err := s.repo.UpdateStatus(ctx, req.AppointmentID, doctorID, req.Status, note)
	if errors.Is(err, ErrNotFound) {
		return nil, apperror.NotFound(apperror.CodeNotFoundOrForbidden, "Appointment not found or access denied")
	}
	if err != nil {
		return nil, err
	}
	s.metrics.StatusUpdated(ch.Status)

	if tmpl, ok := notification.StatusTemplate(ch.Status); ok && s.notifier != nil {
		apptID := ch.AppointmentID
		data := map[string]string{
			"date": ch.Date.Format("January 02, 2006"),
			"time": ch.Time,
		}
		if _, err := s.notifier.Send(ctx, tmpl, ch.PatientUserID, &apptID, data); err != nil {
			s.logger.Error().Err(err).Int64("appointment_id", apptID).Str("status", ch.Status).
				Msg("failed to notify patient of status change")
		}
	}

	s.publish(ctx, doctorID, ch)
	return ch, nil
}

func (s *Service) publish(ctx context.Context, doctorID int64, ch *StatusChange) {
	if s.publisher == nil {
		return
	}
	ev, err := websocket.NewEvent(websocket.EventAppointmentStatus, websocket.DoctorTopic(doctorID),
		"appointment", ch.AppointmentID, map[string]string{"status": ch.Status})
	if err == nil {
		err = s.publisher.Publish(ctx, ev)
	}
	if err != nil {
		s.logger.Warn().Err(err).Int64("appointment_id", ch.AppointmentID).Msg("failed to publish status event")
	}
}

func (s *Service) Get(ctx context.Context, id auth.Identity, appointmentID int64) (*Appointment, error) {
	doctorID, err := s.doctors.ResolveDoctorID(ctx, id.UserID)
	if err != nil {
		return nil, err
	}
	a, err := s.repo.GetForDoctor(ctx, appointmentID, doctorID)
	if errors.Is(err, ErrNotFound) {
		return nil, apperror.NotFound(apperror.CodeNotFound, "Appointment not found")
	}
	return a, err
}

func (s *Service) List(ctx context.Context, id auth.Identity, f ListFilter, limit, offset int) ([]*Appointment, int, error) {
	if f.Status != "" && !IsValidStatus(f.Status) {
		return nil, 0, apperror.Validation(apperror.CodeInvalidStatus, "Invalid status")
	}
	switch f.Scope {
	case "":
		f.Scope = ScopeAll
	case ScopeToday, ScopeUpcoming, ScopePast, ScopeAll:
	default:
		return nil, 0, apperror.Validation(apperror.CodeInvalidField, "Invalid date filter")
	}
	doctorID, err := s.doctors.ResolveDoctorID(ctx, id.UserID)
	if err != nil {
		return nil, 0, err
	}
	f.Today = s.now().In(s.loc)
	return s.repo.List(ctx, doctorID, f, limit, offset)
}
