package appointment

import "time"

// Appointment statuses. Any of them may be set by the doctor; no predecessor
// state is enforced.
const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
	StatusNoShow    = "no-show"
)

var validStatuses = map[string]bool{
	StatusPending:   true,
	StatusConfirmed: true,
	StatusCompleted: true,
	StatusCancelled: true,
	StatusNoShow:    true,
}

// IsValidStatus reports whether s is one of the five appointment statuses.
func IsValidStatus(s string) bool {
	return validStatuses[s]
}

// Date scopes accepted by List.
const (
	ScopeToday    = "today"
	ScopeUpcoming = "upcoming"
	ScopePast     = "past"
	ScopeAll      = "all"
)

// Appointment is the doctor's view of a visit. Date is YYYY-MM-DD and Time is
// HH:MM, both as stored.
type Appointment struct {
	ID           int64      `json:"id"`
	PatientID    int64      `json:"patient_id"`
	DoctorID     int64      `json:"doctor_id"`
	PatientName  string     `json:"patient_name"`
	PatientEmail string     `json:"patient_email"`
	PatientPhone string     `json:"patient_phone"`
	Date         string     `json:"appointment_date"`
	Time         string     `json:"appointment_time"`
	Status       string     `json:"status"`
	Reason       string     `json:"reason"`
	Notes        string     `json:"notes"`
	QRCode       string     `json:"qr_code"`
	CheckedInAt  *time.Time `json:"checked_in_at,omitempty"`
	CheckedInBy  *int64     `json:"checked_in_by,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

type StatusUpdateRequest struct {
	AppointmentID int64  `json:"appointment_id"`
	Status        string `json:"status"`
	Notes         string `json:"notes"`
}

// StatusChange is what a successful status write reports back: enough to
// address the patient notification.
type StatusChange struct {
	AppointmentID int64
	PatientUserID int64
	Status        string
	Date          time.Time
	Time          string
}

type ListFilter struct {
	Status string
	Scope  string
	Search string
	Today  time.Time
}
