package prescription

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/Peiying0830/Careplus-sub003/internal/platform/apperror"
	"github.com/Peiying0830/Careplus-sub003/internal/platform/auth"
	"github.com/Peiying0830/Careplus-sub003/internal/platform/db"
	"github.com/Peiying0830/Careplus-sub003/internal/platform/metrics"
	"github.com/Peiying0830/Careplus-sub003/internal/platform/websocket"
)

const (
	defaultValidDays = 30
	maxCodeAttempts  = 3
)

type DoctorResolver interface {
	ResolveDoctorID(ctx context.Context, userID int64) (int64, error)
}

// Engine issues, edits and cancels prescriptions.
type Engine struct {
	uow       db.UnitOfWork
	repo      Repository
	doctors   DoctorResolver
	safety    *SafetyChecker
	codes     CodeGenerator
	publisher websocket.EventPublisher
	metrics   *metrics.Metrics
	logger    zerolog.Logger
	loc       *time.Location
	now       func() time.Time
	validDays int
}

type Option func(*Engine)

func WithPublisher(p websocket.EventPublisher) Option { return func(e *Engine) { e.publisher = p } }
func WithMetrics(m *metrics.Metrics) Option          { return func(e *Engine) { e.metrics = m } }
func WithLogger(l zerolog.Logger) Option             { return func(e *Engine) { e.logger = l } }
func WithCodeGenerator(g CodeGenerator) Option       { return func(e *Engine) { e.codes = g } }

// WithValidDays sets how long a new prescription stays valid.
func WithValidDays(days int) Option {
	return func(e *Engine) {
		if days > 0 {
			e.validDays = days
		}
	}
}

func NewEngine(uow db.UnitOfWork, repo Repository, doctors DoctorResolver, loc *time.Location, opts ...Option) *Engine {
	if loc == nil {
		loc = time.Local
	}
	e := &Engine{
		uow:       uow,
		repo:      repo,
		doctors:   doctors,
		safety:    NewSafetyChecker(repo),
		codes:     RandomCode,
		logger:    zerolog.Nop(),
		loc:       loc,
		now:       time.Now,
		validDays: defaultValidDays,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

var errMissingFields = apperror.Validation(apperror.CodeMissingFields,
	"Patient, diagnosis and at least one medication with name and dosage are required")

// Column widths of prescription_medications.
const (
	maxNameLen   = 255
	maxDetailLen = 100
)

// normalizeLines drops lines without a name or dosage and defaults quantity
// to 1. Values that cannot be stored are rejected with a field message.
func normalizeLines(in []MedicationInput) ([]MedicationLine, error) {
	out := make([]MedicationLine, 0, len(in))
	for _, m := range in {
		l := MedicationLine{
			Name:         strings.TrimSpace(m.Name),
			Dosage:       strings.TrimSpace(m.Dosage),
			Frequency:    strings.TrimSpace(m.Frequency),
			Duration:     strings.TrimSpace(m.Duration),
			Instructions: strings.TrimSpace(m.Instructions),
		}
		if l.Name == "" || l.Dosage == "" {
			continue
		}
		if int64(m.Quantity) > math.MaxInt32 {
			return nil, apperror.Validation(apperror.CodeInvalidField, "Quantity for "+l.Name+" is out of range")
		}
		l.Quantity = int(m.Quantity)
		if l.Quantity <= 0 {
			l.Quantity = 1
		}
		if err := checkLengths(l); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, nil
}

func checkLengths(l MedicationLine) error {
	if utf8.RuneCountInString(l.Name) > maxNameLen {
		return apperror.Validation(apperror.CodeInvalidField,
			fmt.Sprintf("Medication name must be at most %d characters", maxNameLen))
	}
	fields := []struct{ label, value string }{
		{"Dosage", l.Dosage},
		{"Frequency", l.Frequency},
		{"Duration", l.Duration},
	}
	for _, f := range fields {
		if utf8.RuneCountInString(f.value) > maxDetailLen {
			return apperror.Validation(apperror.CodeInvalidField,
				fmt.Sprintf("%s for %s must be at most %d characters", f.label, l.Name, maxDetailLen))
		}
	}
	return nil
}

// Create issues a new prescription. Without override, any safety warning
// stops it before a single row is written.
func (e *Engine) Create(ctx context.Context, id auth.Identity, req Request) (*Issued, error) {
	patientID := int64(req.PatientID)
	diagnosis := strings.TrimSpace(req.Diagnosis)
	lines, err := normalizeLines(req.Medications)
	if err != nil {
		e.metrics.Prescription("create", "rejected")
		return nil, err
	}
	if patientID <= 0 || diagnosis == "" || len(lines) == 0 {
		e.metrics.Prescription("create", "rejected")
		return nil, errMissingFields
	}

	doctorID, err := e.doctors.ResolveDoctorID(ctx, id.UserID)
	if err != nil {
		return nil, err
	}

	if req.OverrideWarnings {
		_, err = e.repo.PatientAllergies(ctx, patientID)
	} else {
		var warnings []Warning
		warnings, err = e.safety.Check(ctx, patientID, 0, lines)
		if err == nil && len(warnings) > 0 {
			return nil, e.confirm("create", warnings)
		}
	}
	if errors.Is(err, ErrPatientNotFound) {
		e.metrics.Prescription("create", "rejected")
		return nil, apperror.NotFound(apperror.CodeNotFound, "Patient not found")
	}
	if err != nil {
		return nil, e.failed("create", err)
	}

	now := e.now().In(e.loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	p := &Prescription{
		PatientID:  patientID,
		DoctorID:   doctorID,
		Diagnosis:  diagnosis,
		Notes:      strings.TrimSpace(req.Notes),
		Status:     StatusActive,
		ValidUntil: today.AddDate(0, 0, e.validDays),
	}

	err = e.uow.InTx(ctx, func(ctx context.Context) error {
		if err := e.insertWithCode(ctx, p); err != nil {
			return err
		}
		return e.repo.InsertLines(ctx, p.ID, lines)
	})
	if err != nil {
		return nil, e.failed("create", err)
	}

	e.metrics.Prescription("create", "ok")
	e.logger.Info().Int64("prescription_id", p.ID).Int64("patient_id", patientID).
		Int("medications", len(lines)).Bool("override", bool(req.OverrideWarnings)).Msg("prescription issued")
	e.publish(ctx, websocket.EventPrescriptionIssued, doctorID, p.ID)
	return &Issued{PrescriptionID: p.ID, VerificationCode: p.VerificationCode}, nil
}

func (e *Engine) insertWithCode(ctx context.Context, p *Prescription) error {
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := e.codes()
		if err != nil {
			return fmt.Errorf("generate verification code: %w", err)
		}
		p.VerificationCode = code
		err = e.repo.Insert(ctx, p)
		if errors.Is(err, ErrCodeTaken) {
			e.logger.Warn().Int("attempt", attempt+1).Msg("verification code collision, retrying")
			continue
		}
		return err
	}
	return fmt.Errorf("no unique verification code after %d attempts", maxCodeAttempts)
}

// Update replaces diagnosis, notes and the full line set of an active
// prescription. The patient never changes.
func (e *Engine) Update(ctx context.Context, id auth.Identity, req Request) (*Issued, error) {
	rxID := int64(req.PrescriptionID)
	if rxID <= 0 {
		return nil, apperror.Validation(apperror.CodeMissingFields, "Prescription ID is required")
	}
	diagnosis := strings.TrimSpace(req.Diagnosis)
	lines, err := normalizeLines(req.Medications)
	if err != nil {
		e.metrics.Prescription("update", "rejected")
		return nil, err
	}
	if diagnosis == "" || len(lines) == 0 {
		e.metrics.Prescription("update", "rejected")
		return nil, errMissingFields
	}

	doctorID, err := e.doctors.ResolveDoctorID(ctx, id.UserID)
	if err != nil {
		return nil, err
	}

	var issued *Issued
	err = e.uow.InTx(ctx, func(ctx context.Context) error {
		cur, err := e.repo.LockForDoctor(ctx, rxID, doctorID)
		if errors.Is(err, ErrNotFound) {
			return apperror.NotFound(apperror.CodeNotFoundOrForbidden, "Prescription not found or access denied")
		}
		if err != nil {
			return err
		}
		if cur.Status != StatusActive {
			return apperror.Conflict(apperror.CodeNotEditable, "Only active prescriptions can be edited. This one is "+cur.Status)
		}
		if req.PatientID > 0 && int64(req.PatientID) != cur.PatientID {
			return apperror.Validation(apperror.CodeInvalidField, "Patient cannot be changed on an existing prescription")
		}

		if !req.OverrideWarnings {
			warnings, err := e.safety.Check(ctx, cur.PatientID, cur.ID, lines)
			if err != nil {
				return err
			}
			if len(warnings) > 0 {
				return e.confirm("update", warnings)
			}
		}

		if err := e.repo.UpdateHeader(ctx, cur.ID, diagnosis, strings.TrimSpace(req.Notes)); err != nil {
			return err
		}
		if err := e.repo.DeleteLines(ctx, cur.ID); err != nil {
			return err
		}
		if err := e.repo.InsertLines(ctx, cur.ID, lines); err != nil {
			return err
		}
		issued = &Issued{PrescriptionID: cur.ID, VerificationCode: cur.VerificationCode}
		return nil
	})
	if err != nil {
		if appErr, ok := apperror.As(err); ok {
			if appErr.Kind != apperror.KindConfirmationRequired {
				e.metrics.Prescription("update", "rejected")
			}
			return nil, appErr
		}
		return nil, e.failed("update", err)
	}

	e.metrics.Prescription("update", "ok")
	e.logger.Info().Int64("prescription_id", issued.PrescriptionID).Int("medications", len(lines)).Msg("prescription updated")
	e.publish(ctx, websocket.EventPrescriptionUpdated, doctorID, issued.PrescriptionID)
	return issued, nil
}

// Cancel retires an active prescription and appends the reason to its
// notes. A cancelled prescription stays cancelled.
func (e *Engine) Cancel(ctx context.Context, id auth.Identity, prescriptionID int64, reason string) error {
	reason = strings.TrimSpace(reason)
	if prescriptionID <= 0 || reason == "" {
		e.metrics.Prescription("cancel", "rejected")
		return apperror.Validation(apperror.CodeMissingFields, "Prescription ID and cancellation reason are required")
	}
	doctorID, err := e.doctors.ResolveDoctorID(ctx, id.UserID)
	if err != nil {
		return err
	}

	note := fmt.Sprintf("[Cancelled %s] %s", e.now().In(e.loc).Format("2006-01-02 15:04"), reason)
	ok, err := e.repo.Cancel(ctx, prescriptionID, doctorID, note)
	if err != nil {
		return e.failed("cancel", err)
	}
	if !ok {
		e.metrics.Prescription("cancel", "rejected")
		p, err := e.repo.GetForDoctor(ctx, prescriptionID, doctorID)
		if errors.Is(err, ErrNotFound) {
			return apperror.NotFound(apperror.CodeNotFoundOrForbidden, "Prescription not found or access denied")
		}
		if err != nil {
			return e.failed("cancel", err)
		}
		return apperror.Conflict(apperror.CodeNotEditable, "Prescription is already "+p.Status)
	}

	e.metrics.Prescription("cancel", "ok")
	e.logger.Info().Int64("prescription_id", prescriptionID).Msg("prescription cancelled")
	e.publish(ctx, websocket.EventPrescriptionCanceled, doctorID, prescriptionID)
	return nil
}

func (e *Engine) Get(ctx context.Context, id auth.Identity, prescriptionID int64) (*Prescription, error) {
	doctorID, err := e.doctors.ResolveDoctorID(ctx, id.UserID)
	if err != nil {
		return nil, err
	}
	p, err := e.repo.GetForDoctor(ctx, prescriptionID, doctorID)
	if errors.Is(err, ErrNotFound) {
		return nil, apperror.NotFound(apperror.CodeNotFound, "Prescription not found")
	}
	return p, err
}

func (e *Engine) List(ctx context.Context, id auth.Identity, f ListFilter, limit, offset int) ([]*Prescription, int, error) {
	switch f.Status {
	case "", StatusActive, StatusCancelled, StatusExpired, StatusFulfilled:
	default:
		return nil, 0, apperror.Validation(apperror.CodeInvalidStatus, "Invalid status")
	}
	doctorID, err := e.doctors.ResolveDoctorID(ctx, id.UserID)
	if err != nil {
		return nil, 0, err
	}
	return e.repo.List(ctx, doctorID, f, limit, offset)
}

func (e *Engine) confirm(action string, warnings []Warning) *apperror.Error {
	for _, w := range warnings {
		e.metrics.SafetyWarning(w.Type, w.Severity)
	}
	e.metrics.Prescription(action, "confirmation_required")
	e.logger.Info().Str("action", action).Int("warnings", len(warnings)).Msg("prescription held for safety confirmation")
	return apperror.ConfirmationRequired("Safety warnings detected. Review them and confirm to proceed.", warnings)
}

func (e *Engine) failed(action string, err error) error {
	if appErr, ok := apperror.As(err); ok {
		return appErr
	}
	e.metrics.Prescription(action, "error")
	e.logger.Error().Err(err).Str("action", action).Msg("prescription write failed")
	return apperror.Database("Failed to save prescription", err)
}

func (e *Engine) publish(ctx context.Context, eventType string, doctorID, prescriptionID int64) {
	if e.publisher == nil {
		return
	}
	ev, err := websocket.NewEvent(eventType, websocket.DoctorTopic(doctorID), "prescription", prescriptionID, nil)
	if err == nil {
		err = e.publisher.Publish(ctx, ev)
	}
	if err != nil {
		e.logger.Warn().Err(err).Int64("prescription_id", prescriptionID).Msg("failed to publish prescription event")
	}
}
