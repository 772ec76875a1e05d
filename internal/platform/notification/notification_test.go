package notification

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

type memStore struct {
	mu   sync.Mutex
	rows []*Notification
	err  error
}

func (m *memStore) Insert(_ context.Context, n *Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	n.ID = int64(len(m.rows) + 1)
	m.rows = append(m.rows, n)
	return nil
}

func TestTemplateEngine_BuiltIns(t *testing.T) {
	e := NewTemplateEngine()
	for _, id := range []string{TemplateCheckedIn, TemplateCompleted, TemplateCancelled} {
		title, body, typ, err := e.Render(id, map[string]string{"date": "March 04, 2024", "time": "09:30 AM"})
		if err != nil {
			t.Fatalf("Render(%s) error: %v", id, err)
		}
		if title == "" || typ != "appointment" {
			t.Errorf("Render(%s): unexpected title %q type %q", id, title, typ)
		}
		if !strings.Contains(body, "March 04, 2024") || !strings.Contains(body, "09:30 AM") {
			t.Errorf("Render(%s): placeholders not filled: %q", id, body)
		}
		if strings.Contains(body, "{{") {
			t.Errorf("Render(%s): leftover placeholder in %q", id, body)
		}
	}
}

func TestTemplateEngine_MissingKeyLeftAsIs(t *testing.T) {
	e := NewTemplateEngine()
	_, body, _, err := e.Render(TemplateCancelled, map[string]string{"date": "today"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(body, "{{time}}") {
		t.Errorf("expected unfilled {{time}} to remain, got %q", body)
	}
}

func TestTemplateEngine_Unknown(t *testing.T) {
	if _, _, _, err := NewTemplateEngine().Render("nope", nil); err == nil {
		t.Fatal("expected error for unknown template")
	}
}

func TestTemplateEngine_RegisterTemplate(t *testing.T) {
	e := NewTemplateEngine()
	if err := e.RegisterTemplate(Template{ID: TemplateCancelled, Title: "Visit cancelled", Body: "Your {{date}} visit was cancelled."}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	title, body, typ, err := e.Render(TemplateCancelled, map[string]string{"date": "March 10, 2024"})
	if err != nil || title != "Visit cancelled" || body != "Your March 10, 2024 visit was cancelled." || typ != "appointment" {
		t.Errorf("unexpected render %q %q %q %v", title, body, typ, err)
	}

	if err := e.RegisterTemplate(Template{ID: "custom", Title: "Hi", Body: "Body"}); err == nil {
		t.Error("expected unknown template id to be rejected")
	}
	if err := e.RegisterTemplate(Template{ID: TemplateCompleted, Title: "Done"}); err == nil {
		t.Error("expected empty body to be rejected")
	}
}

func TestTemplateEngine_LoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "templates.yaml")
	content := `templates:
  - id: appointment-checked-in
    title: Welcome
    body: "You are checked in for {{time}}. Take a seat."
    type: checkin
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}

	e := NewTemplateEngine()
	if err := e.LoadFile(path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	title, body, typ, err := e.Render(TemplateCheckedIn, map[string]string{"time": "09:30 AM"})
	if err != nil || title != "Welcome" || body != "You are checked in for 09:30 AM. Take a seat." || typ != "checkin" {
		t.Errorf("unexpected render %q %q %q %v", title, body, typ, err)
	}

	if err := e.LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestStatusTemplate(t *testing.T) {
	tests := []struct {
		status string
		want   string
		ok     bool
	}{
		{"confirmed", TemplateCheckedIn, true},
		{"completed", TemplateCompleted, true},
		{"cancelled", TemplateCancelled, true},
		{"pending", "", false},
		{"no-show", "", false},
		{"bogus", "", false},
	}
	for _, tt := range tests {
		got, ok := StatusTemplate(tt.status)
		if got != tt.want || ok != tt.ok {
			t.Errorf("StatusTemplate(%q) = %q, %v; want %q, %v", tt.status, got, ok, tt.want, tt.ok)
		}
	}
}

func TestNotifier_Send(t *testing.T) {
	store := &memStore{}
	n := NewNotifier(store, NewTemplateEngine())
	related := int64(42)

	msg, err := n.Send(context.Background(), TemplateCompleted, 11, &related, map[string]string{"date": "d", "time": "t"})
	if err != nil {
		t.Fatalf("Send error: %v", err)
	}
	if msg.ID != 1 || msg.UserID != 11 || *msg.RelatedID != 42 {
		t.Errorf("unexpected notification %+v", msg)
	}
	if len(store.rows) != 1 {
		t.Errorf("expected 1 stored row, got %d", len(store.rows))
	}
}

func TestNotifier_StoreError(t *testing.T) {
	store := &memStore{err: errors.New("insert failed")}
	n := NewNotifier(store, NewTemplateEngine())

	if _, err := n.Send(context.Background(), TemplateCancelled, 11, nil, nil); err == nil {
		t.Fatal("expected store error to propagate")
	}
}
