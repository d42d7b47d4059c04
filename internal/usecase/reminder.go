package usecase

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/taskflowpro/taskflow-api/internal/core/domain"
	"github.com/taskflowpro/taskflow-api/internal/core/port"
)

const (
	defaultReminderPollInterval = 5 * time.Second
	defaultReminderBatchSize    = 100
)

// ReminderConfig controls the reminder poll loop.
type ReminderConfig struct {
	PollInterval time.Duration
	BatchSize    int64
}

// ReminderService keeps delayed task reminders in a shared queue and turns
// due ones into notifications. Claims are atomic, so several replicas can
// poll the same queue without sending a reminder twice.
type ReminderService struct {
	queue    port.ReminderQueue
	notifier port.Notifier
	cfg      ReminderConfig
	logger   *zap.Logger
	now      func() time.Time
}

// NewReminderService constructs a ReminderService.
func NewReminderService(queue port.ReminderQueue, notifier port.Notifier, cfg ReminderConfig, log *zap.Logger) *ReminderService {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultReminderPollInterval
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultReminderBatchSize
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &ReminderService{queue: queue, notifier: notifier, cfg: cfg, logger: log, now: time.Now}
}

// Schedule stores the reminder, replacing any earlier one for the same task.
func (s *ReminderService) Schedule(ctx context.Context, reminder domain.Reminder) error {
	if err := s.queue.Schedule(ctx, reminder); err != nil {
		return fmt.Errorf("schedule reminder: %w", err)
	}
	return nil
}

// Cancel drops the pending reminder of a task, if any.
func (s *ReminderService) Cancel(ctx context.Context, taskID int64) error {
	if err := s.queue.Cancel(ctx, taskID); err != nil {
		return fmt.Errorf("cancel reminder: %w", err)
	}
	return nil
}

// Run polls the queue until ctx is cancelled.
func (s *ReminderService) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	s.logger.Info("Reminder poller started", zap.Duration("poll_interval", s.cfg.PollInterval))
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Reminder poller stopped")
			return
		case <-ticker.C:
			if _, err := s.DispatchDue(ctx); err != nil && ctx.Err() == nil {
				s.logger.Warn("Reminder dispatch failed", zap.Error(err))
			}
		}
	}
}

// DispatchDue claims every reminder due now (up to the batch size) and
// enqueues its notification. It returns the number dispatched.
func (s *ReminderService) DispatchDue(ctx context.Context) (int, error) {
	ids, err := s.queue.Due(ctx, s.now().UTC(), s.cfg.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("list due reminders: %w", err)
	}

	dispatched := 0
	for _, taskID := range ids {
		reminder, ok, err := s.queue.Claim(ctx, taskID)
		if err != nil {
			return dispatched, fmt.Errorf("claim reminder %d: %w", taskID, err)
		}
		if !ok {
			continue
		}

		enqueue(ctx, s.notifier, s.logger, s.now, domain.Notification{
			Kind:      domain.NotificationTaskReminder,
			To:        reminder.Email,
			UserID:    reminder.UserID,
			TaskID:    reminder.TaskID,
			TaskTitle: reminder.Title,
			TaskBody:  reminder.Description,
		})
		dispatched++
	}

	return dispatched, nil
}
