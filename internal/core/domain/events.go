package domain

import "time"

// NotificationKind names a transactional email template.
type NotificationKind string

const (
	NotificationSignupOTP      NotificationKind = "signup_otp"
	NotificationLoginOTP       NotificationKind = "login_otp"
	NotificationAccountCreated NotificationKind = "account_created"
	NotificationLoginAlert     NotificationKind = "login_alert"
	NotificationTaskCreated    NotificationKind = "task_created"
	NotificationTaskCompleted  NotificationKind = "task_completed"
	NotificationTaskDeleted    NotificationKind = "task_deleted"
	NotificationTaskReminder   NotificationKind = "task_reminder"
)

// OTPNotificationKind selects the code template for a challenge purpose.
func OTPNotificationKind(purpose OTPPurpose) NotificationKind {
	if purpose == OTPPurposeSignup {
		return NotificationSignupOTP
	}
	return NotificationLoginOTP
}

// Notification is a request to deliver one templated email.
type Notification struct {
	ID        string
	Kind      NotificationKind
	To        string
	UserID    int64
	FullName  string
	Code      string
	ExpiresAt time.Time
	TaskID    int64
	TaskTitle string
	TaskBody  string
	DueDate   *time.Time
	CreatedAt time.Time
}

// NotificationEvent is the payload for taskflow.notification.* messages.
type NotificationEvent struct {
	EventID   string
	Kind      NotificationKind
	UserID    int64
	TaskID    int64
	Delivered bool
	Error     string
	SentAt    time.Time
}

// UserRegisteredEvent represents the payload for taskflow.user.registered messages.
type UserRegisteredEvent struct {
	EventID            string
	UserID             int64
	Email              string
	FullName           string
	RegisteredAt       time.Time
	RegistrationMethod string
}

// Reminder is a delayed task reminder waiting in the queue.
type Reminder struct {
	TaskID      int64     `json:"task_id"`
	UserID      int64     `json:"user_id"`
	Email       string    `json:"email"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	DueAt       time.Time `json:"due_at"`
}
