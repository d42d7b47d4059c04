package port

import (
	"context"
	"time"

	"github.com/taskflowpro/taskflow-api/internal/core/domain"
)

// ReminderQueue stores delayed reminders ordered by due time.
type ReminderQueue interface {
	Schedule(ctx context.Context, reminder domain.Reminder) error
	Cancel(ctx context.Context, taskID int64) error
	Due(ctx context.Context, at time.Time, limit int64) ([]int64, error)
	// Claim removes the reminder and returns it; ok is false when another
	// poller claimed it first.
	Claim(ctx context.Context, taskID int64) (*domain.Reminder, bool, error)
}
