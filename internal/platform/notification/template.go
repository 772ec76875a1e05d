// Package notification renders patient-facing messages from templates and
// stores them in the notifications table.
package notification

import (
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/viper"
)

// Built-in template ids.
const (
	TemplateCheckedIn = "appointment-checked-in"
	TemplateCompleted = "appointment-completed"
	TemplateCancelled = "appointment-cancelled"
)

// Template defines a reusable notification with {{key}} placeholders.
type Template struct {
	ID    string
	Title string
	Body  string
	Type  string
}

// TemplateEngine manages notification templates and renders them with data.
type TemplateEngine struct {
	mu        sync.RWMutex
	templates map[string]*Template
}

// NewTemplateEngine creates a TemplateEngine with the built-in templates pre-registered.
func NewTemplateEngine() *TemplateEngine {
	e := &TemplateEngine{
		templates: make(map[string]*Template),
	}
	e.registerBuiltIn()
	return e
}

func (e *TemplateEngine) registerBuiltIn() {
	builtIn := []Template{
		{
			ID:    TemplateCheckedIn,
			Title: "Checked In",
			Body:  "You have been checked in for your appointment on {{date}} at {{time}}. Please wait to be called.",
			Type:  "appointment",
		},
		{
			ID:    TemplateCompleted,
			Title: "Appointment Completed",
			Body:  "Your appointment on {{date}} at {{time}} has been marked as completed. Thank you for visiting.",
			Type:  "appointment",
		},
		{
			ID:    TemplateCancelled,
			Title: "Appointment Cancelled",
			Body:  "Your appointment on {{date}} at {{time}} has been cancelled by the doctor. Please book a new appointment if needed.",
			Type:  "appointment",
		},
	}
	for i := range builtIn {
		t := builtIn[i]
		e.templates[t.ID] = &t
	}
}

// RegisterTemplate replaces the wording of a built-in template. Ids nothing
// sends are rejected, and an empty Type keeps the built-in one.
func (e *TemplateEngine) RegisterTemplate(t Template) error {
	if strings.TrimSpace(t.Title) == "" || strings.TrimSpace(t.Body) == "" {
		return fmt.Errorf("template %q: title and body are required", t.ID)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	cur, ok := e.templates[t.ID]
	if !ok {
		return fmt.Errorf("template %q is not a known notification", t.ID)
	}
	if t.Type == "" {
		t.Type = cur.Type
	}
	e.templates[t.ID] = &t
	return nil
}

// LoadFile registers every template listed under "templates" in a YAML, JSON
// or TOML file, e.g.
//
//	templates:
//	  - id: appointment-cancelled
//	    title: Visit cancelled
//	    body: Dr. Tan cancelled your {{date}} {{time}} visit.
func (e *TemplateEngine) LoadFile(path string) error {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read notification templates: %w", err)
	}
	var file struct {
		Templates []Template `mapstructure:"templates"`
	}
	if err := v.Unmarshal(&file); err != nil {
		return fmt.Errorf("decode notification templates: %w", err)
	}
	for _, t := range file.Templates {
		if err := e.RegisterTemplate(t); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	}
	return nil
}

// Render looks up a template by ID and performs {{key}} replacement using the
// supplied data map. Keys present in the template but absent from data are left
// as-is.
func (e *TemplateEngine) Render(templateID string, data map[string]string) (title, body, typ string, err error) {
	e.mu.RLock()
	t, ok := e.templates[templateID]
	e.mu.RUnlock()
	if !ok {
		return "", "", "", fmt.Errorf("template %q not found", templateID)
	}

	title = t.Title
	body = t.Body
	for k, v := range data {
		placeholder := "{{" + k + "}}"
		title = strings.ReplaceAll(title, placeholder, v)
		body = strings.ReplaceAll(body, placeholder, v)
	}
	return title, body, t.Type, nil
}

// StatusTemplate maps an appointment status to the patient notification it
// triggers. pending and no-show notify nobody.
func StatusTemplate(status string) (string, bool) {
	switch status {
	case "confirmed":
		return TemplateCheckedIn, true
	case "completed":
		return TemplateCompleted, true
	case "cancelled":
		return TemplateCancelled, true
	default:
		return "", false
	}
}
