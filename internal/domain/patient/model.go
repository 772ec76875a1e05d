package patient

import "time"

// RosterEntry is one patient who has booked with the doctor at least once.
type RosterEntry struct {
	ID               int64      `json:"id"`
	FullName         string     `json:"full_name"`
	Email            string     `json:"email"`
	Phone            string     `json:"phone"`
	Gender           string     `json:"gender"`
	DateOfBirth      *time.Time `json:"date_of_birth"`
	BloodType        string     `json:"blood_type"`
	LastVisit        *time.Time `json:"last_visit"`
	AppointmentCount int        `json:"appointment_count"`
}

type Profile struct {
	ID               int64      `json:"id"`
	UserID           int64      `json:"user_id"`
	FullName         string     `json:"full_name"`
	Email            string     `json:"email"`
	Phone            string     `json:"phone"`
	Gender           string     `json:"gender"`
	DateOfBirth      *time.Time `json:"date_of_birth"`
	BloodType        string     `json:"blood_type"`
	Allergies        string     `json:"allergies"`
	Address          string     `json:"address"`
	EmergencyContact string     `json:"emergency_contact"`
}

type AppointmentSummary struct {
	ID          int64      `json:"id"`
	Date        string     `json:"appointment_date"`
	Time        string     `json:"appointment_time"`
	Status      string     `json:"status"`
	Reason      string     `json:"reason"`
	CheckedInAt *time.Time `json:"checked_in_at,omitempty"`
}

type RecordSummary struct {
	ID        int64     `json:"id"`
	VisitDate time.Time `json:"visit_date"`
	Diagnosis string    `json:"diagnosis"`
	Symptoms  string    `json:"symptoms"`
}

type PrescriptionSummary struct {
	ID               int64     `json:"id"`
	Diagnosis        string    `json:"diagnosis"`
	Status           string    `json:"status"`
	VerificationCode string    `json:"verification_code"`
	ValidUntil       time.Time `json:"valid_until"`
	CreatedAt        time.Time `json:"created_at"`
}

// Detail is everything the doctor sees on a patient page. Only this
// doctor's own history is included.
type Detail struct {
	Profile       *Profile              `json:"profile"`
	Appointments  []AppointmentSummary  `json:"appointments"`
	Records       []RecordSummary       `json:"medical_records"`
	Prescriptions []PrescriptionSummary `json:"prescriptions"`
}
