package mailer

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/taskflowpro/taskflow-api/internal/core/domain"
	"github.com/taskflowpro/taskflow-api/internal/core/port"
)

//go:embed templates/*.html
var templateFS embed.FS

type layout struct {
	subject     func(n domain.Notification) string
	heading     string
	tagline     string
	accent      string
	actionLabel string
	actionPath  string
	text        func(n domain.Notification, data templateData) string
}

var layouts = map[domain.NotificationKind]layout{
	domain.NotificationSignupOTP: {
		subject: func(domain.Notification) string { return "Your TaskFlow Pro signup code" },
		heading: "Verify your email",
		tagline: "Complete your TaskFlow Pro signup",
		accent:  "#1D4ED8",
		text: func(_ domain.Notification, d templateData) string {
			return fmt.Sprintf("Your TaskFlow Pro signup code is %s.\nIt is valid for %s. Do not share it with anyone.", d.Code, d.ExpiresIn)
		},
	},
	domain.NotificationLoginOTP: {
		subject: func(domain.Notification) string { return "Your TaskFlow Pro login code" },
		heading: "Login verification",
		tagline: "Enter this code to sign in",
		accent:  "#0369A1",
		text: func(_ domain.Notification, d templateData) string {
			return fmt.Sprintf("Your TaskFlow Pro login code is %s.\nIt is valid for %s. If you did not attempt to log in, ignore this email.", d.Code, d.ExpiresIn)
		},
	},
	domain.NotificationAccountCreated: {
		subject:     func(domain.Notification) string { return "Your TaskFlow Pro account is ready" },
		heading:     "Welcome to TaskFlow Pro",
		tagline:     "Your account has been created",
		accent:      "#1D4ED8",
		actionLabel: "Open Dashboard",
		actionPath:  "/dashboard",
		text: func(_ domain.Notification, d templateData) string {
			name := d.FullName
			if name == "" {
				name = "there"
			}
			return fmt.Sprintf("Hi %s,\nThanks for signing up for TaskFlow Pro. Your workspace is ready.\n%s", name, d.ActionURL)
		},
	},
	domain.NotificationLoginAlert: {
		subject: func(domain.Notification) string { return "New login to your TaskFlow Pro account" },
		heading: "New Login to TaskFlow Pro",
		accent:  "#0369A1",
		text: func(domain.Notification, templateData) string {
			return "Your TaskFlow Pro account was just used to sign in.\nIf you don't recognize this activity, reset your password immediately."
		},
	},
	domain.NotificationTaskCreated: {
		subject:     func(n domain.Notification) string { return "New Task: " + n.TaskTitle },
		heading:     "TaskFlow Pro",
		tagline:     "New Task Created!",
		accent:      "#1D4ED8",
		actionLabel: "View All Tasks",
		actionPath:  "/tasks",
		text: func(_ domain.Notification, d templateData) string {
			var b strings.Builder
			b.WriteString("New task: " + d.TaskTitle)
			if d.TaskBody != "" {
				b.WriteString("\n" + d.TaskBody)
			}
			if d.DueDate != "" {
				b.WriteString("\nDue: " + d.DueDate)
			}
			return b.String()
		},
	},
	domain.NotificationTaskCompleted: {
		subject:     func(n domain.Notification) string { return "Task Completed: " + n.TaskTitle },
		heading:     "TaskFlow Pro",
		tagline:     "Task Completed!",
		accent:      "#059669",
		actionLabel: "View Analytics",
		actionPath:  "/analytics",
		text: func(_ domain.Notification, d templateData) string {
			return "Task completed: " + d.TaskTitle + "\nGreat job! Keep it up!"
		},
	},
	domain.NotificationTaskDeleted: {
		subject:     func(n domain.Notification) string { return "Task Deleted: " + n.TaskTitle },
		heading:     "TaskFlow Pro",
		tagline:     "Task Deleted",
		accent:      "#DC2626",
		actionLabel: "View All Tasks",
		actionPath:  "/tasks",
		text: func(_ domain.Notification, d templateData) string {
			return "Task deleted: " + d.TaskTitle + "\nThis task has been removed from your list."
		},
	},
	domain.NotificationTaskReminder: {
		subject:     func(n domain.Notification) string { return "Reminder: " + n.TaskTitle },
		heading:     "TaskFlow Pro",
		tagline:     "Task Reminder",
		accent:      "#D97706",
		actionLabel: "View Task",
		actionPath:  "/tasks",
		text: func(_ domain.Notification, d templateData) string {
			text := "Reminder: " + d.TaskTitle
			if d.TaskBody != "" {
				text += "\n" + d.TaskBody
			}
			return text + "\nDon't forget to complete this task!"
		},
	},
}

type templateData struct {
	Heading     string
	Tagline     string
	Accent      string
	ActionLabel string
	ActionURL   string
	FullName    string
	Code        string
	ExpiresIn   string
	TaskTitle   string
	TaskBody    string
	DueDate     string
}

// Templates renders notifications into HTML and plain-text mail.
type Templates struct {
	pages       map[domain.NotificationKind]*template.Template
	frontendURL string
	otpTTL      time.Duration
}

// NewTemplates parses the embedded templates. frontendURL prefixes action
// links; otpTTL is quoted in code emails.
func NewTemplates(frontendURL string, otpTTL time.Duration) (*Templates, error) {
	base, err := template.ParseFS(templateFS, "templates/layout.html")
	if err != nil {
		return nil, fmt.Errorf("parse layout template: %w", err)
	}

	pages := make(map[domain.NotificationKind]*template.Template, len(layouts))
	for kind := range layouts {
		page, err := base.Clone()
		if err != nil {
			return nil, fmt.Errorf("clone layout for %s: %w", kind, err)
		}
		if _, err := page.ParseFS(templateFS, "templates/"+string(kind)+".html"); err != nil {
			return nil, fmt.Errorf("parse %s template: %w", kind, err)
		}
		pages[kind] = page
	}

	return &Templates{
		pages:       pages,
		frontendURL: strings.TrimRight(frontendURL, "/"),
		otpTTL:      otpTTL,
	}, nil
}

// Render implements port.MailRenderer.
func (t *Templates) Render(n domain.Notification) (port.MailMessage, error) {
	entry, ok := layouts[n.Kind]
	if !ok {
		return port.MailMessage{}, fmt.Errorf("unknown notification kind %q", n.Kind)
	}
	if n.To == "" {
		return port.MailMessage{}, fmt.Errorf("notification %s has no recipient", n.Kind)
	}

	data := templateData{
		Heading:     entry.heading,
		Tagline:     entry.tagline,
		Accent:      entry.accent,
		ActionLabel: entry.actionLabel,
		FullName:    n.FullName,
		Code:        n.Code,
		ExpiresIn:   t.expiresIn(n),
		TaskTitle:   n.TaskTitle,
		TaskBody:    n.TaskBody,
	}
	if entry.actionPath != "" && t.frontendURL != "" {
		data.ActionURL = t.frontendURL + entry.actionPath
	}
	if n.DueDate != nil {
		data.DueDate = n.DueDate.Format(domain.DateLayout)
	}

	var html bytes.Buffer
	if err := t.pages[n.Kind].ExecuteTemplate(&html, "layout", data); err != nil {
		return port.MailMessage{}, fmt.Errorf("render %s template: %w", n.Kind, err)
	}

	return port.MailMessage{
		To:      n.To,
		Subject: entry.subject(n),
		HTML:    html.String(),
		Text:    entry.text(n, data),
	}, nil
}

func (t *Templates) expiresIn(n domain.Notification) string {
	ttl := t.otpTTL
	if !n.ExpiresAt.IsZero() && !n.CreatedAt.IsZero() && n.ExpiresAt.After(n.CreatedAt) {
		ttl = n.ExpiresAt.Sub(n.CreatedAt)
	}
	minutes := int(ttl.Round(time.Minute) / time.Minute)
	if minutes == 1 {
		return "1 minute"
	}
	return fmt.Sprintf("%d minutes", minutes)
}

var _ port.MailRenderer = (*Templates)(nil)
