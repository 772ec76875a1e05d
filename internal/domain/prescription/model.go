package prescription

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

const (
	StatusActive    = "active"
	StatusCancelled = "cancelled"
	StatusExpired   = "expired"
	StatusFulfilled = "fulfilled"
)

// Actions accepted by POST /prescriptions.
const (
	ActionCreate = "create_prescription"
	ActionUpdate = "update_prescription"
	ActionCancel = "cancel_prescription"
)

const (
	WarningAllergy     = "allergy"
	WarningInteraction = "interaction"
	SeverityHigh       = "high"
)

type Prescription struct {
	ID               int64            `json:"id"`
	PatientID        int64            `json:"patient_id"`
	PatientName      string           `json:"patient_name"`
	DoctorID         int64            `json:"doctor_id"`
	DoctorName       string           `json:"doctor_name"`
	Diagnosis        string           `json:"diagnosis"`
	Notes            string           `json:"notes"`
	VerificationCode string           `json:"verification_code"`
	Status           string           `json:"status"`
	ValidUntil       time.Time        `json:"valid_until"`
	MedicationCount  int              `json:"medication_count"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
	Medications      []MedicationLine `json:"medications,omitempty"`
}

type MedicationLine struct {
	ID             int64  `json:"id,omitempty"`
	PrescriptionID int64  `json:"prescription_id,omitempty"`
	Name           string `json:"name"`
	Dosage         string `json:"dosage"`
	Frequency      string `json:"frequency"`
	Duration       string `json:"duration"`
	Quantity       int    `json:"quantity"`
	Instructions   string `json:"instructions"`
}

// MedicationInput is one submitted line; browser forms send quantity as a
// string.
type MedicationInput struct {
	Name         string  `json:"name"`
	Dosage       string  `json:"dosage"`
	Frequency    string  `json:"frequency"`
	Duration     string  `json:"duration"`
	Quantity     FlexInt `json:"quantity"`
	Instructions string  `json:"instructions"`
}

// Request is the body of POST /prescriptions for every action.
type Request struct {
	Action           string            `json:"action"`
	PrescriptionID   FlexInt           `json:"prescription_id"`
	PatientID        FlexInt           `json:"patient_id"`
	Diagnosis        string            `json:"diagnosis"`
	Notes            string            `json:"notes"`
	Medications      []MedicationInput `json:"medications"`
	OverrideWarnings FlexBool          `json:"override_warnings"`
	Reason           string            `json:"reason"`
}

// Warning is one safety finding shown to the doctor before they override.
type Warning struct {
	Type     string `json:"type"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
}

// Interaction is a row of the drug_interactions rule table.
type Interaction struct {
	DrugA       string
	DrugB       string
	Severity    string
	Description string
}

// Issued is returned after a successful create or update.
type Issued struct {
	PrescriptionID   int64  `json:"prescription_id"`
	VerificationCode string `json:"verification_code"`
}

type ListFilter struct {
	Status    string
	PatientID int64
}

// FlexInt accepts a JSON number, a numeric string, or an empty string.
type FlexInt int64

func (f *FlexInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = 0
		return nil
	}
	s := string(data)
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*f = 0
			return nil
		}
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return err
	}
	*f = FlexInt(n)
	return nil
}

// FlexBool accepts true/false as JSON booleans or as the strings "true",
// "1", "on" that form posts send.
type FlexBool bool

func (f *FlexBool) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "true", "1", "on", "yes":
			*f = true
		default:
			*f = false
		}
		return nil
	}
	var b bool
	if err := json.Unmarshal(data, &b); err != nil {
		return err
	}
	*f = FlexBool(b)
	return nil
}
