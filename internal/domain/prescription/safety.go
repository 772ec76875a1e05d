package prescription

import (
	"context"
	"fmt"
	"strings"
)

// SafetyChecker evaluates new medication lines against a patient's recorded
// allergies and their other active prescriptions.
type SafetyChecker struct {
	repo Repository
}

func NewSafetyChecker(repo Repository) *SafetyChecker {
	return &SafetyChecker{repo: repo}
}

// Check returns every warning for lines. excludeID is the prescription being
// edited, whose current lines must not count as "other" medication.
func (c *SafetyChecker) Check(ctx context.Context, patientID, excludeID int64, lines []MedicationLine) ([]Warning, error) {
	allergies, err := c.repo.PatientAllergies(ctx, patientID)
	if err != nil {
		return nil, err
	}
	warnings := allergyWarnings(allergies, lines)

	existing, err := c.repo.ActiveMedicationNames(ctx, patientID, excludeID)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(lines)+len(existing))
	for _, l := range lines {
		names = append(names, l.Name)
	}
	names = append(names, existing...)
	rules, err := c.repo.Interactions(ctx, names)
	if err != nil {
		return nil, err
	}
	return append(warnings, interactionWarnings(rules, lines, existing)...), nil
}

// splitAllergies turns the free-text allergies column into lowercase terms.
func splitAllergies(raw string) []string {
	fields := strings.FieldsFunc(raw, func(r rune) bool { return r == ',' || r == ';' || r == '\n' })
	var out []string
	for _, f := range fields {
		f = strings.ToLower(strings.TrimSpace(f))
		if f != "" && f != "none" && f != "nil" && f != "n/a" {
			out = append(out, f)
		}
	}
	return out
}

func allergyWarnings(allergies string, lines []MedicationLine) []Warning {
	terms := splitAllergies(allergies)
	var out []Warning
	for _, l := range lines {
		name := strings.ToLower(strings.TrimSpace(l.Name))
		for _, term := range terms {
			if strings.Contains(name, term) || strings.Contains(term, name) {
				out = append(out, Warning{
					Type:     WarningAllergy,
					Severity: SeverityHigh,
					Message:  fmt.Sprintf("Patient is allergic to %s. %s may cause an allergic reaction.", term, l.Name),
				})
				break
			}
		}
	}
	return out
}

// interactionWarnings reports each rule once when at least one side is a new
// line and the other side is a different new line or an existing drug.
func interactionWarnings(rules []Interaction, lines []MedicationLine, existing []string) []Warning {
	newCount := map[string]int{}
	display := map[string]string{}
	for _, l := range lines {
		k := strings.ToLower(strings.TrimSpace(l.Name))
		newCount[k]++
		display[k] = l.Name
	}
	onFile := map[string]bool{}
	for _, n := range existing {
		k := strings.ToLower(strings.TrimSpace(n))
		onFile[k] = true
		if _, ok := display[k]; !ok {
			display[k] = n
		}
	}
	present := func(k string) bool { return newCount[k] > 0 || onFile[k] }

	seen := map[string]bool{}
	var out []Warning
	for _, rule := range rules {
		a := strings.ToLower(strings.TrimSpace(rule.DrugA))
		b := strings.ToLower(strings.TrimSpace(rule.DrugB))
		if a == b || !present(a) || !present(b) {
			continue
		}
		if newCount[a] == 0 && newCount[b] == 0 {
			continue
		}
		key := a + "|" + b
		if b < a {
			key = b + "|" + a
		}
		if seen[key] {
			continue
		}
		seen[key] = true

		severity := rule.Severity
		if severity == "" {
			severity = SeverityHigh
		}
		msg := fmt.Sprintf("Drug interaction between %s and %s", display[a], display[b])
		if rule.Description != "" {
			msg += ": " + rule.Description
		}
		out = append(out, Warning{Type: WarningInteraction, Severity: severity, Message: msg})
	}
	return out
}
