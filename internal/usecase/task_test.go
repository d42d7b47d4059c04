package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/taskflowpro/taskflow-api/internal/core/domain"
	"github.com/taskflowpro/taskflow-api/internal/usecase/usecasetest"
)

type recordingScheduler struct {
	mu        sync.Mutex
	scheduled []domain.Reminder
	cancelled []int64
}

func (s *recordingScheduler) Schedule(_ context.Context, reminder domain.Reminder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scheduled = append(s.scheduled, reminder)
	return nil
}

func (s *recordingScheduler) Cancel(_ context.Context, taskID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelled = append(s.cancelled, taskID)
	return nil
}

type taskFixture struct {
	svc       *TaskService
	tasks     *usecasetest.TaskRepo
	notifier  *usecasetest.Notifier
	scheduler *recordingScheduler
	clock     *usecasetest.Clock
	adaID     int64
	graceID   int64
}

func newTaskFixture(t *testing.T) *taskFixture {
	t.Helper()
	users := usecasetest.NewUserRepo()
	ada, _ := users.Create(context.Background(), domain.User{Email: "ada@example.com", FullName: "Ada Lovelace"})
	grace, _ := users.Create(context.Background(), domain.User{Email: "grace@example.com", FullName: "Grace Hopper"})

	f := &taskFixture{
		tasks:     usecasetest.NewTaskRepo(),
		notifier:  &usecasetest.Notifier{},
		scheduler: &recordingScheduler{},
		clock:     usecasetest.NewClock(),
		adaID:     ada.ID,
		graceID:   grace.ID,
	}
	f.svc = NewTaskService(f.tasks, users, f.notifier, f.scheduler, time.Minute, zaptest.NewLogger(t))
	f.svc.now = f.clock.Now
	return f
}

func TestCreateTaskAppliesDefaultsAndNotifies(t *testing.T) {
	f := newTaskFixture(t)
	ctx := context.Background()
	due := time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC)

	task, err := f.svc.Create(ctx, f.adaID, domain.TaskInput{Title: "  Write report ", Description: strPtr("Q4 numbers"), DueDate: &due})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if task.Title != "Write report" || task.Priority != domain.TaskPriorityMedium || task.Status != domain.TaskStatusInProgress {
		t.Fatalf("unexpected task: %+v", task)
	}
	if task.UserID != f.adaID {
		t.Fatalf("expected task owned by %d, got %d", f.adaID, task.UserID)
	}

	created, ok := f.notifier.Last(domain.NotificationTaskCreated)
	if !ok {
		t.Fatal("expected task created notification")
	}
	if created.To != "ada@example.com" || created.TaskID != task.ID || created.TaskBody != "Q4 numbers" || created.DueDate == nil {
		t.Fatalf("unexpected notification: %+v", created)
	}

	if len(f.scheduler.scheduled) != 1 {
		t.Fatalf("expected one scheduled reminder, got %d", len(f.scheduler.scheduled))
	}
	reminder := f.scheduler.scheduled[0]
	if reminder.TaskID != task.ID || !reminder.DueAt.Equal(f.clock.Now().Add(time.Minute)) {
		t.Fatalf("unexpected reminder: %+v", reminder)
	}
}

func TestCreateCompletedTaskSkipsReminder(t *testing.T) {
	f := newTaskFixture(t)

	if _, err := f.svc.Create(context.Background(), f.adaID, domain.TaskInput{Title: "Done already", Status: domain.TaskStatusCompleted}); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if len(f.scheduler.scheduled) != 0 {
		t.Fatalf("expected no reminder, got %+v", f.scheduler.scheduled)
	}
}

func TestCreateTaskValidation(t *testing.T) {
	f := newTaskFixture(t)
	ctx := context.Background()

	cases := []domain.TaskInput{
		{Title: "   "},
		{Title: "x", Priority: "urgent"},
		{Title: "x", Status: "todo"},
	}
	for _, input := range cases {
		if _, err := f.svc.Create(ctx, f.adaID, input); !errors.Is(err, ErrInvalidTaskInput) {
			t.Fatalf("input %+v: expected ErrInvalidTaskInput, got %v", input, err)
		}
	}
	if len(f.notifier.OfKind(domain.NotificationTaskCreated)) != 0 {
		t.Fatal("rejected tasks must not notify")
	}
}

func TestTasksAreScopedToOwner(t *testing.T) {
	f := newTaskFixture(t)
	ctx := context.Background()

	task, err := f.svc.Create(ctx, f.adaID, domain.TaskInput{Title: "Private"})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	if _, err := f.svc.Get(ctx, f.graceID, task.ID); !errors.Is(err, ErrTaskNotFound) {
		t.Fatalf("expected ErrTaskNotFound on get, got %v", err)
	}
	title := "Stolen"
	if _, err := f.svc.Update(ctx, f.graceID, task.ID, domain.TaskPatch{Title: &title}); !errors.Is(err, ErrTaskNotFound) {
		t.Fatalf("expected ErrTaskNotFound on update, got %v", err)
	}
	if _, err := f.svc.Delete(ctx, f.graceID, task.ID); !errors.Is(err, ErrTaskNotFound) {
		t.Fatalf("expected ErrTaskNotFound on delete, got %v", err)
	}

	list, err := f.svc.List(ctx, f.graceID)
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("expected empty list for other user, got %+v", list)
	}
}

func TestCompletingTaskNotifiesOnce(t *testing.T) {
	f := newTaskFixture(t)
	ctx := context.Background()

	task, err := f.svc.Create(ctx, f.adaID, domain.TaskInput{Title: "Ship it"})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	completed := domain.TaskStatusCompleted
	for i := 0; i < 2; i++ {
		updated, err := f.svc.Update(ctx, f.adaID, task.ID, domain.TaskPatch{Status: &completed})
		if err != nil {
			t.Fatalf("Update returned error: %v", err)
		}
		if !updated.IsCompleted() {
			t.Fatalf("expected completed task, got %+v", updated)
		}
	}

	if got := len(f.notifier.OfKind(domain.NotificationTaskCompleted)); got != 1 {
		t.Fatalf("expected one completion notification, got %d", got)
	}
	if len(f.scheduler.cancelled) != 1 || f.scheduler.cancelled[0] != task.ID {
		t.Fatalf("expected reminder cancelled once, got %v", f.scheduler.cancelled)
	}
}

func TestUpdateTask(t *testing.T) {
	f := newTaskFixture(t)
	ctx := context.Background()
	due := time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC)

	task, err := f.svc.Create(ctx, f.adaID, domain.TaskInput{Title: "Draft", Description: strPtr("notes"), DueDate: &due})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	unchanged, err := f.svc.Update(ctx, f.adaID, task.ID, domain.TaskPatch{})
	if err != nil {
		t.Fatalf("empty Update returned error: %v", err)
	}
	if unchanged.Title != "Draft" {
		t.Fatalf("empty patch changed task: %+v", unchanged)
	}

	high := domain.TaskPriorityHigh
	updated, err := f.svc.Update(ctx, f.adaID, task.ID, domain.TaskPatch{
		Priority:    &high,
		Description: domain.Present[string](nil),
		DueDate:     domain.Present[time.Time](nil),
	})
	if err != nil {
		t.Fatalf("Update returned error: %v", err)
	}
	if updated.Priority != high || updated.Description != nil || updated.DueDate != nil {
		t.Fatalf("unexpected update result: %+v", updated)
	}

	blank := "  "
	if _, err := f.svc.Update(ctx, f.adaID, task.ID, domain.TaskPatch{Title: &blank}); !errors.Is(err, ErrInvalidTaskInput) {
		t.Fatalf("expected ErrInvalidTaskInput, got %v", err)
	}
	if len(f.notifier.OfKind(domain.NotificationTaskCompleted)) != 0 {
		t.Fatal("non-completing updates must not notify")
	}
}

func TestDeleteTask(t *testing.T) {
	f := newTaskFixture(t)
	ctx := context.Background()

	task, err := f.svc.Create(ctx, f.adaID, domain.TaskInput{Title: "Temporary"})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	deleted, err := f.svc.Delete(ctx, f.adaID, task.ID)
	if err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	if deleted.ID != task.ID {
		t.Fatalf("unexpected deleted task: %+v", deleted)
	}
	if _, err := f.svc.Get(ctx, f.adaID, task.ID); !errors.Is(err, ErrTaskNotFound) {
		t.Fatalf("expected deleted task to be gone, got %v", err)
	}
	if _, err := f.svc.Delete(ctx, f.adaID, task.ID); !errors.Is(err, ErrTaskNotFound) {
		t.Fatalf("expected second delete to fail, got %v", err)
	}

	if _, ok := f.notifier.Last(domain.NotificationTaskDeleted); !ok {
		t.Fatal("expected task deleted notification")
	}
	if len(f.scheduler.cancelled) != 1 {
		t.Fatalf("expected reminder cancelled, got %v", f.scheduler.cancelled)
	}
}
