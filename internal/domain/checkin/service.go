package checkin

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/Peiying0830/Careplus-sub003/internal/platform/apperror"
	"github.com/Peiying0830/Careplus-sub003/internal/platform/auth"
	"github.com/Peiying0830/Careplus-sub003/internal/platform/db"
	"github.com/Peiying0830/Careplus-sub003/internal/platform/metrics"
	"github.com/Peiying0830/Careplus-sub003/internal/platform/notification"
	"github.com/Peiying0830/Careplus-sub003/internal/platform/websocket"
)

const (
	dateLayout = "January 02, 2006"
	timeLayout = "03:04 PM"

	// maxCodeLen is the widest code an appointment can carry; maxLoggedCodeLen
	// is the qr_scan_logs.qr_code width.
	maxCodeLen       = 64
	maxLoggedCodeLen = 255
)

type DoctorResolver interface {
	ResolveDoctorID(ctx context.Context, userID int64) (int64, error)
}

type Notifier interface {
	Send(ctx context.Context, templateID string, userID int64, relatedID *int64, data map[string]string) (*notification.Notification, error)
}

// Engine turns a scanned QR code into a recorded check-in. Every attempt that
// reaches the appointment lookup leaves exactly one scan log row.
type Engine struct {
	uow       db.UnitOfWork
	repo      Repository
	doctors   DoctorResolver
	notifier  Notifier
	publisher websocket.EventPublisher
	metrics   *metrics.Metrics
	logger    zerolog.Logger
	loc       *time.Location
	now       func() time.Time
}

type Option func(*Engine)

func WithPublisher(p websocket.EventPublisher) Option { return func(e *Engine) { e.publisher = p } }
func WithMetrics(m *metrics.Metrics) Option          { return func(e *Engine) { e.metrics = m } }
func WithLogger(l zerolog.Logger) Option             { return func(e *Engine) { e.logger = l } }

func NewEngine(uow db.UnitOfWork, repo Repository, doctors DoctorResolver, notifier Notifier, loc *time.Location, opts ...Option) *Engine {
	if loc == nil {
		loc = time.Local
	}
	e := &Engine{
		uow:      uow,
		repo:     repo,
		doctors:  doctors,
		notifier: notifier,
		logger:   zerolog.Nop(),
		loc:      loc,
		now:      time.Now,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// rejection is a failed check-in: the error returned to the caller plus what
// the failure audit row records.
type rejection struct {
	appointmentID *int64
	result        string
	err           *apperror.Error
}

func (r *rejection) Error() string { return r.err.Error() }

// CheckIn validates qrCode against the caller's appointments and, when every
// rule passes, confirms the appointment. Rejections and storage failures roll
// back the main transaction and are then logged in their own write.
func (e *Engine) CheckIn(ctx context.Context, id auth.Identity, qrCode string) (*Result, error) {
	qrCode = strings.TrimSpace(qrCode)
	if qrCode == "" {
		return nil, apperror.Validation(apperror.CodeMissingFields, "QR code is required")
	}
	doctorID, err := e.doctors.ResolveDoctorID(ctx, id.UserID)
	if err != nil {
		return nil, err
	}

	if utf8.RuneCountInString(qrCode) > maxCodeLen {
		rej := &rejection{
			result: ResultInvalidCode,
			err:    apperror.NotFound(apperror.CodeInvalidCode, "Invalid QR code or appointment not found"),
		}
		e.metrics.CheckinAttempt(rej.result)
		e.auditFailure(ctx, id.UserID, qrCode, rej)
		return nil, rej.err
	}

	now := e.now().In(e.loc)
	var (
		res    *Result
		target *int64
	)

	err = e.uow.InTx(ctx, func(ctx context.Context) error {
		t, err := e.repo.LockByCode(ctx, qrCode, doctorID)
		if errors.Is(err, ErrNotFound) {
			return &rejection{
				result: ResultInvalidCode,
				err:    apperror.NotFound(apperror.CodeInvalidCode, "Invalid QR code or appointment not found"),
			}
		}
		if err != nil {
			return err
		}
		target = &t.ID
		if rej := validate(t, now, e.loc); rej != nil {
			return rej
		}

		ok, err := e.repo.MarkCheckedIn(ctx, t.ID, id.UserID, now)
		if err != nil {
			return err
		}
		if !ok {
			return &rejection{
				appointmentID: &t.ID,
				result:        ResultAlreadyCheckedIn,
				err:           apperror.Conflict(apperror.CodeAlreadyCheckedIn, "Patient has already been checked in"),
			}
		}

		if err := e.repo.InsertLog(ctx, &ScanLog{
			AppointmentID: &t.ID,
			QRCode:        qrCode,
			ScannedBy:     id.UserID,
			ScanResult:    ResultSuccess,
			Notes:         "Checked in " + t.PatientName,
		}); err != nil {
			return err
		}

		if e.notifier != nil {
			apptID := t.ID
			if _, err := e.notifier.Send(ctx, notification.TemplateCheckedIn, t.PatientUserID, &apptID, map[string]string{
				"date": t.Date.Format(dateLayout),
				"time": t.Time,
			}); err != nil {
				return err
			}
		}

		res = &Result{
			AppointmentID:   t.ID,
			PatientName:     t.PatientName,
			CheckedInAt:     now,
			AppointmentTime: t.Time,
		}
		return nil
	})

	var rej *rejection
	if errors.As(err, &rej) {
		e.metrics.CheckinAttempt(rej.result)
		e.auditFailure(ctx, id.UserID, qrCode, rej)
		return nil, rej.err
	}
	if err != nil {
		e.metrics.CheckinAttempt(ResultError)
		e.logger.Error().Err(err).Int64("user_id", id.UserID).Msg("check-in failed")
		e.auditFailure(ctx, id.UserID, qrCode, &rejection{
			appointmentID: target,
			result:        ResultError,
			err:           apperror.Database("Check-in could not be completed", err),
		})
		return nil, err
	}

	e.metrics.CheckinAttempt(ResultSuccess)
	e.logger.Info().Int64("appointment_id", res.AppointmentID).Int64("user_id", id.UserID).Msg("patient checked in")
	e.publish(ctx, doctorID, res)
	return res, nil
}

// validate applies the check-in rules in order. It never writes.
func validate(t *Target, now time.Time, loc *time.Location) *rejection {
	reject := func(result string, err *apperror.Error) *rejection {
		return &rejection{appointmentID: &t.ID, result: result, err: err}
	}
	switch {
	case t.Status == "cancelled":
		return reject(ResultCancelled, apperror.Conflict(apperror.CodeAlreadyCancelled, "This appointment has been cancelled"))
	case t.Status == "completed":
		return reject(ResultCompleted, apperror.Conflict(apperror.CodeAlreadyCompleted, "This appointment has already been completed"))
	case !sameDay(t.Date, now):
		return reject(ResultWrongDate, apperror.Conflict(apperror.CodeWrongDate,
			"Appointment is scheduled for "+t.Date.Format(dateLayout)))
	case t.CheckedInAt != nil:
		return reject(ResultAlreadyCheckedIn, apperror.Conflict(apperror.CodeAlreadyCheckedIn,
			"Patient already checked in at "+t.CheckedInAt.In(loc).Format(timeLayout)))
	}
	return nil
}

// sameDay compares the stored calendar date with now's date in now's zone.
func sameDay(date, now time.Time) bool {
	y, m, d := now.Date()
	dy, dm, dd := date.Date()
	return y == dy && m == dm && d == dd
}

// auditFailure records a failed scan after the main transaction rolled
// back. Its own failure is logged and counted, never returned.
func (e *Engine) auditFailure(ctx context.Context, userID int64, qrCode string, rej *rejection) {
	if utf8.RuneCountInString(qrCode) > maxLoggedCodeLen {
		qrCode = string([]rune(qrCode)[:maxLoggedCodeLen])
	}
	entry := &ScanLog{
		AppointmentID: rej.appointmentID,
		QRCode:        qrCode,
		ScannedBy:     userID,
		ScanResult:    rej.result,
		Notes:         rej.err.Message,
	}
	if err := e.repo.InsertLog(context.WithoutCancel(ctx), entry); err != nil {
		e.metrics.AuditWriteFailed()
		e.logger.Error().Err(err).Str("scan_result", rej.result).Int64("user_id", userID).
			Msg("failed to write scan audit row")
	}
}

func (e *Engine) publish(ctx context.Context, doctorID int64, res *Result) {
	if e.publisher == nil {
		return
	}
	ev, err := websocket.NewEvent(websocket.EventPatientCheckedIn, websocket.DoctorTopic(doctorID),
		"appointment", res.AppointmentID, res)
	if err == nil {
		err = e.publisher.Publish(ctx, ev)
	}
	if err != nil {
		e.logger.Warn().Err(err).Int64("appointment_id", res.AppointmentID).Msg("failed to publish check-in event")
	}
}

// ListLogs returns scans made by the caller or against their appointments,
// newest first.
func (e *Engine) ListLogs(ctx context.Context, id auth.Identity, f LogFilter, limit, offset int) ([]*ScanLog, int, error) {
	if f.Result != "" && !IsValidResult(f.Result) {
		return nil, 0, apperror.Validation(apperror.CodeInvalidField, "Invalid scan result filter")
	}
	doctorID, err := e.doctors.ResolveDoctorID(ctx, id.UserID)
	if err != nil {
		return nil, 0, err
	}
	return e.repo.ListLogs(ctx, doctorID, id.UserID, f, limit, offset)
}
