package prescription

import (
	"encoding/json"
	"testing"
)

func TestSplitAllergies(t *testing.T) {
	got := splitAllergies(" Penicillin, Sulfa drugs;  ;None\nLatex ")
	want := []string{"penicillin", "sulfa drugs", "latex"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("index %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}

func TestAllergyWarnings(t *testing.T) {
	lines := []MedicationLine{
		{Name: "Penicillin V"},
		{Name: "Sulfa"},
		{Name: "Paracetamol"},
	}
	w := allergyWarnings("penicillin, sulfa drugs", lines)
	if len(w) != 2 {
		t.Fatalf("expected 2 warnings, got %+v", w)
	}
	for _, warning := range w {
		if warning.Type != WarningAllergy || warning.Severity != SeverityHigh {
			t.Errorf("unexpected warning %+v", warning)
		}
	}
	if len(allergyWarnings("", lines)) != 0 {
		t.Error("no allergies should mean no warnings")
	}
}

func TestInteractionWarnings(t *testing.T) {
	rules := []Interaction{
		{DrugA: "Warfarin", DrugB: "Aspirin", Severity: "high"},
		{DrugA: "aspirin", DrugB: "warfarin", Severity: "high"},
		{DrugA: "Metformin", DrugB: "Alcohol", Severity: "low"},
		{DrugA: "Lisinopril", DrugB: "Potassium", Severity: ""},
	}
	lines := []MedicationLine{{Name: "Aspirin"}, {Name: "Lisinopril"}}
	existing := []string{"Warfarin", "Potassium", "Metformin"}

	w := interactionWarnings(rules, lines, existing)
	if len(w) != 2 {
		t.Fatalf("expected 2 deduplicated warnings, got %+v", w)
	}
	if w[1].Severity != SeverityHigh {
		t.Errorf("missing severity should default to high, got %q", w[1].Severity)
	}
}

func TestInteractionWarnings_ExistingPairIgnored(t *testing.T) {
	rules := []Interaction{{DrugA: "Warfarin", DrugB: "Aspirin", Severity: "high"}}
	w := interactionWarnings(rules, []MedicationLine{{Name: "Paracetamol"}}, []string{"Warfarin", "Aspirin"})
	if len(w) != 0 {
		t.Errorf("a pair already on file without a new line should not warn, got %+v", w)
	}
}

func TestFlexTypes(t *testing.T) {
	var req Request
	body := `{"patient_id":"7","prescription_id":12,"override_warnings":"true","medications":[{"name":"A","dosage":"1","quantity":"3"}]}`
	if err := json.Unmarshal([]byte(body), &req); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if req.PatientID != 7 || req.PrescriptionID != 12 || !req.OverrideWarnings || req.Medications[0].Quantity != 3 {
		t.Errorf("unexpected request %+v", req)
	}

	var empty Request
	if err := json.Unmarshal([]byte(`{"patient_id":"","override_warnings":false,"medications":[{"quantity":""}]}`), &empty); err != nil {
		t.Fatalf("unmarshal empty: %v", err)
	}
	if empty.PatientID != 0 || empty.OverrideWarnings || empty.Medications[0].Quantity != 0 {
		t.Errorf("unexpected request %+v", empty)
	}

	var bad Request
	if err := json.Unmarshal([]byte(`{"patient_id":"seven"}`), &bad); err == nil {
		t.Error("expected error for non-numeric patient_id")
	}
}

func TestRandomCode(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		code, err := RandomCode()
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		if !IsVerificationCode(code) {
			t.Fatalf("invalid code %q", code)
		}
		seen[code] = true
	}
	if len(seen) < 199 {
		t.Errorf("codes should not repeat in practice, got %d unique of 200", len(seen))
	}
}

func TestIsVerificationCode(t *testing.T) {
	for _, c := range []string{"ABCD1234", "ZZZZZZZZ", "00000000"} {
		if !IsVerificationCode(c) {
			t.Errorf("%q should be valid", c)
		}
	}
	for _, c := range []string{"abcd1234", "ABC123", "ABCD12345", "ABCD-123"} {
		if IsVerificationCode(c) {
			t.Errorf("%q should be invalid", c)
		}
	}
}
