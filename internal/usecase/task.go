package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/taskflowpro/taskflow-api/internal/core/domain"
	"github.com/taskflowpro/taskflow-api/internal/core/port"
	"github.com/taskflowpro/taskflow-api/internal/infra/logger"
	"github.com/taskflowpro/taskflow-api/internal/repository"
)

const defaultReminderDelay = time.Minute

// ReminderScheduler schedules and cancels delayed task reminders.
type ReminderScheduler interface {
	Schedule(ctx context.Context, reminder domain.Reminder) error
	Cancel(ctx context.Context, taskID int64) error
}

// TaskService manages the caller's task list. Every operation is scoped to
// the owning user; other users' tasks are reported as not found.
type TaskService struct {
	tasks         port.TaskRepository
	users         port.UserRepository
	notifier      port.Notifier
	reminders     ReminderScheduler
	reminderDelay time.Duration
	logger        *zap.Logger
	now           func() time.Time
}

// NewTaskService constructs a TaskService. reminders may be nil to disable reminders.
func NewTaskService(tasks port.TaskRepository, users port.UserRepository, notifier port.Notifier, reminders ReminderScheduler, reminderDelay time.Duration, log *zap.Logger) *TaskService {
	if reminderDelay <= 0 {
		reminderDelay = defaultReminderDelay
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &TaskService{
		tasks:         tasks,
		users:         users,
		notifier:      notifier,
		reminders:     reminders,
		reminderDelay: reminderDelay,
		logger:        log,
		now:           time.Now,
	}
}

// List returns the user's tasks, newest first.
func (s *TaskService) List(ctx context.Context, userID int64) ([]domain.Task, error) {
	tasks, err := s.tasks.List(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}

// Get returns one task owned by the user.
func (s *TaskService) Get(ctx context.Context, userID, taskID int64) (*domain.Task, error) {
	task, err := s.tasks.Get(ctx, userID, taskID)
	if err != nil {
		return nil, taskError("load task", err)
	}
	return task, nil
}

// Create stores a task, announces it by email and schedules its reminder.
func (s *TaskService) Create(ctx context.Context, userID int64, input domain.TaskInput) (*domain.Task, error) {
	input = input.WithDefaults()
	if err := validateTaskInput(input); err != nil {
		return nil, err
	}

	task, err := s.tasks.Create(ctx, userID, input, s.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}

	owner := s.owner(ctx, userID)
	if owner != nil {
		s.notify(ctx, domain.NotificationTaskCreated, owner, task)
		if !task.IsCompleted() {
			s.scheduleReminder(ctx, owner, task)
		}
	}

	return task, nil
}

// Update applies patch. An empty patch returns the task unchanged. Moving a
// task into completed notifies once and cancels its reminder.
func (s *TaskService) Update(ctx context.Context, userID, taskID int64, patch domain.TaskPatch) (*domain.Task, error) {
	if patch.IsEmpty() {
		return s.Get(ctx, userID, taskID)
	}
	patch, err := normalizeTaskPatch(patch)
	if err != nil {
		return nil, err
	}

	task, previous, err := s.tasks.Update(ctx, userID, taskID, patch, s.now().UTC())
	if err != nil {
		return nil, taskError("update task", err)
	}

	if patch.CompletesFrom(previous) {
		s.cancelReminder(ctx, task.ID)
		if owner := s.owner(ctx, userID); owner != nil {
			s.notify(ctx, domain.NotificationTaskCompleted, owner, task)
		}
	}

	return task, nil
}

// Delete removes a task, cancels its reminder and announces the deletion.
func (s *TaskService) Delete(ctx context.Context, userID, taskID int64) (*domain.Task, error) {
	task, err := s.tasks.Delete(ctx, userID, taskID)
	if err != nil {
		return nil, taskError("delete task", err)
	}

	s.cancelReminder(ctx, task.ID)
	if owner := s.owner(ctx, userID); owner != nil {
		s.notify(ctx, domain.NotificationTaskDeleted, owner, task)
	}

	return task, nil
}

func validateTaskInput(input domain.TaskInput) error {
	if input.Title == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidTaskInput)
	}
	if !input.Priority.Valid() {
		return fmt.Errorf("%w: unknown priority %q", ErrInvalidTaskInput, input.Priority)
	}
	if !input.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidTaskInput, input.Status)
	}
	return nil
}

func normalizeTaskPatch(patch domain.TaskPatch) (domain.TaskPatch, error) {
	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if title == "" {
			return patch, fmt.Errorf("%w: title cannot be blank", ErrInvalidTaskInput)
		}
		patch.Title = &title
	}
	if patch.Priority != nil && !patch.Priority.Valid() {
		return patch, fmt.Errorf("%w: unknown priority %q", ErrInvalidTaskInput, *patch.Priority)
	}
	if patch.Status != nil && !patch.Status.Valid() {
		return patch, fmt.Errorf("%w: unknown status %q", ErrInvalidTaskInput, *patch.Status)
	}
	return patch, nil
}

func taskError(op string, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrTaskNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}

// owner loads the recipient of task emails; failures only cost the email.
func (s *TaskService) owner(ctx context.Context, userID int64) *domain.User {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		logger.FromContext(ctx, s.logger).Warn("Task owner lookup failed, skipping notification",
			zap.Int64("user_id", userID),
			zap.Error(err),
		)
		return nil
	}
	return user
}

func (s *TaskService) notify(ctx context.Context, kind domain.NotificationKind, owner *domain.User, task *domain.Task) {
	n := domain.Notification{
		Kind:      kind,
		To:        owner.Email,
		UserID:    owner.ID,
		FullName:  owner.FullName,
		TaskID:    task.ID,
		TaskTitle: task.Title,
		DueDate:   task.DueDate,
	}
	if task.Description != nil {
		n.TaskBody = *task.Description
	}
	enqueue(ctx, s.notifier, s.logger, s.now, n)
}

func (s *TaskService) scheduleReminder(ctx context.Context, owner *domain.User, task *domain.Task) {
	if s.reminders == nil {
		return
	}
	reminder := domain.Reminder{
		TaskID: task.ID,
		UserID: owner.ID,
		Email:  owner.Email,
		Title:  task.Title,
		DueAt:  s.now().UTC().Add(s.reminderDelay),
	}
	if task.Description != nil {
		reminder.Description = *task.Description
	}
	if err := s.reminders.Schedule(ctx, reminder); err != nil {
		logger.FromContext(ctx, s.logger).Warn("Failed to schedule task reminder",
			zap.Int64("task_id", task.ID),
			zap.Error(err),
		)
	}
}

func (s *TaskService) cancelReminder(ctx context.Context, taskID int64) {
	if s.reminders == nil {
		return
	}
	if err := s.reminders.Cancel(ctx, taskID); err != nil {
		logger.FromContext(ctx, s.logger).Warn("Failed to cancel task reminder",
			zap.Int64("task_id", taskID),
			zap.Error(err),
		)
	}
}
