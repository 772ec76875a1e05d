package checkin

import "time"

// Scan result tags written to qr_scan_logs.
const (
	ResultSuccess          = "success"
	ResultInvalidCode      = "invalid_code"
	ResultCancelled        = "cancelled"
	ResultCompleted        = "completed"
	ResultWrongDate        = "wrong_date"
	ResultAlreadyCheckedIn = "already_checked_in"
	ResultError            = "error"
)

var validResults = map[string]bool{
	ResultSuccess:          true,
	ResultInvalidCode:      true,
	ResultCancelled:        true,
	ResultCompleted:        true,
	ResultWrongDate:        true,
	ResultAlreadyCheckedIn: true,
	ResultError:            true,
}

// IsValidResult reports whether r is a known scan result tag.
func IsValidResult(r string) bool {
	return validResults[r]
}

type Request struct {
	QRCode string `json:"qr_code"`
}

// Result is returned to the scanner on success.
type Result struct {
	AppointmentID   int64     `json:"appointment_id"`
	PatientName     string    `json:"patient_name"`
	CheckedInAt     time.Time `json:"checked_in_at"`
	AppointmentTime string    `json:"appointment_time"`
}

// Target is the appointment row locked for the duration of a check-in.
type Target struct {
	ID            int64
	DoctorID      int64
	PatientUserID int64
	PatientName   string
	Status        string
	Date          time.Time
	Time          string
	CheckedInAt   *time.Time
}

// ScanLog is one immutable audit row. AppointmentID is nil when the code
// matched nothing.
type ScanLog struct {
	ID            int64     `json:"id"`
	AppointmentID *int64    `json:"appointment_id"`
	PatientName   string    `json:"patient_name"`
	QRCode        string    `json:"qr_code"`
	ScannedBy     int64     `json:"scanned_by"`
	ScanResult    string    `json:"scan_result"`
	Notes         string    `json:"notes"`
	ScannedAt     time.Time `json:"scanned_at"`
}

type LogFilter struct {
	Result string
}
