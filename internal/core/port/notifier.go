package port

import (
	"context"

	"github.com/taskflowpro/taskflow-api/internal/core/domain"
)

// MailMessage is a rendered email ready for delivery.
type MailMessage struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

// Mailer delivers rendered messages.
type Mailer interface {
	Send(ctx context.Context, msg MailMessage) error
}

// Notifier accepts notifications for asynchronous delivery. Enqueue never blocks
// and reports whether the notification was accepted.
type Notifier interface {
	Enqueue(notification domain.Notification) bool
}

// MailRenderer turns a notification into a deliverable message.
type MailRenderer interface {
	Render(notification domain.Notification) (MailMessage, error)
}
