package doctor

import (
	"bytes"
	"encoding/json"
	"time"
)

type Profile struct {
	ID              int64     `json:"id"`
	UserID          int64     `json:"user_id"`
	FullName        string    `json:"full_name"`
	Email           string    `json:"email"`
	Specialization  string    `json:"specialization"`
	Qualification   string    `json:"qualification"`
	ExperienceYears int       `json:"experience_years"`
	ConsultationFee float64   `json:"consultation_fee"`
	LicenseNumber   string    `json:"license_number"`
	Phone           string    `json:"phone"`
	Bio             string    `json:"bio"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// UpdateProfileRequest carries only the fields the doctor may edit. Nil
// pointers leave the stored value unchanged.
type UpdateProfileRequest struct {
	Specialization  *string    `json:"specialization"`
	Qualification   *string    `json:"qualification"`
	ExperienceYears *int       `json:"experience_years"`
	ConsultationFee *RawNumber `json:"consultation_fee"`
	Phone           *string    `json:"phone"`
	Bio             *string    `json:"bio"`
}

// RawNumber keeps a JSON number or string verbatim so the service can reject
// non-numeric input with its own message instead of a bind error.
type RawNumber string

func (n *RawNumber) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*n = RawNumber(s)
		return nil
	}
	*n = RawNumber(data)
	return nil
}

// Dashboard summarizes the doctor's day.
type Dashboard struct {
	TodayAppointments   int `json:"today_appointments"`
	PendingAppointments int `json:"pending_appointments"`
	CheckedInToday      int `json:"checked_in_today"`
	CompletedToday      int `json:"completed_today"`
	TotalPatients       int `json:"total_patients"`
	ActivePrescriptions int `json:"active_prescriptions"`
	ScansToday          int `json:"scans_today"`
}
