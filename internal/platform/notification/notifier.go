package notification

import (
	"context"
	"fmt"
)

// Notifier renders a template and stores the result for one user.
type Notifier struct {
	store     Store
	templates *TemplateEngine
}

func NewNotifier(store Store, templates *TemplateEngine) *Notifier {
	return &Notifier{store: store, templates: templates}
}

// Send renders templateID with data and inserts it for userID. relatedID is
// usually the appointment the message is about.
func (n *Notifier) Send(ctx context.Context, templateID string, userID int64, relatedID *int64, data map[string]string) (*Notification, error) {
	title, body, typ, err := n.templates.Render(templateID, data)
	if err != nil {
		return nil, err
	}

	msg := &Notification{
		UserID:    userID,
		Title:     title,
		Message:   body,
		Type:      typ,
		RelatedID: relatedID,
	}
	if err := n.store.Insert(ctx, msg); err != nil {
		return nil, fmt.Errorf("send %s to user %d: %w", templateID, userID, err)
	}
	return msg, nil
}
