package medicalrecord

import "time"

// Record is a clinical note written by a doctor for one visit.
type Record struct {
	ID            int64     `json:"id"`
	PatientID     int64     `json:"patient_id"`
	PatientName   string    `json:"patient_name"`
	DoctorID      int64     `json:"doctor_id"`
	AppointmentID *int64    `json:"appointment_id"`
	VisitDate     time.Time `json:"visit_date"`
	Symptoms      string    `json:"symptoms"`
	Diagnosis     string    `json:"diagnosis"`
	Prescription  string    `json:"prescription"`
	LabResults    string    `json:"lab_results"`
	Notes         string    `json:"notes"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Request is the create/update body. VisitDate is YYYY-MM-DD.
type Request struct {
	PatientID     int64  `json:"patient_id"`
	AppointmentID *int64 `json:"appointment_id"`
	VisitDate     string `json:"visit_date"`
	Symptoms      string `json:"symptoms"`
	Diagnosis     string `json:"diagnosis"`
	Prescription  string `json:"prescription"`
	LabResults    string `json:"lab_results"`
	Notes         string `json:"notes"`
}

type ListFilter struct {
	PatientID int64
	Search    string
}
