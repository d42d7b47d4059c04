package domain

import (
	"strings"
	"time"
)

// TaskStatus enumerates task progress states.
type TaskStatus string

const (
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusCompleted  TaskStatus = "completed"
)

// Valid reports whether the status is known.
func (s TaskStatus) Valid() bool {
	return s == TaskStatusInProgress || s == TaskStatusCompleted
}

// TaskPriority enumerates task priorities.
type TaskPriority string

const (
	TaskPriorityLow    TaskPriority = "low"
	TaskPriorityMedium TaskPriority = "medium"
	TaskPriorityHigh   TaskPriority = "high"
)

// Valid reports whether the priority is known.
func (p TaskPriority) Valid() bool {
	switch p {
	case TaskPriorityLow, TaskPriorityMedium, TaskPriorityHigh:
		return true
	}
	return false
}

// DateLayout is the wire and storage format of task due dates.
const DateLayout = "2006-01-02"

// Task mirrors the persisted representation in the tasks table.
type Task struct {
	ID          int64
	UserID      int64
	Title       string
	Description *string
	Priority    TaskPriority
	Status      TaskStatus
	DueDate     *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// IsCompleted reports whether the task is in the completed state.
func (t Task) IsCompleted() bool {
	return t.Status == TaskStatusCompleted
}

// TaskInput captures the fields accepted when creating a task.
type TaskInput struct {
	Title       string
	Description *string
	Priority    TaskPriority
	Status      TaskStatus
	DueDate     *time.Time
}

// WithDefaults fills the priority and status defaults and trims the title.
func (in TaskInput) WithDefaults() TaskInput {
	in.Title = strings.TrimSpace(in.Title)
	if in.Priority == "" {
		in.Priority = TaskPriorityMedium
	}
	if in.Status == "" {
		in.Status = TaskStatusInProgress
	}
	return in
}

// TaskPatch lists the task fields an update may change.
//
// Description and DueDate are nullable columns, so presence is tracked apart
// from the value: Set with a nil value clears the column.
type TaskPatch struct {
	Title       *string
	Description NullableField[string]
	Priority    *TaskPriority
	Status      *TaskStatus
	DueDate     NullableField[time.Time]
}

// IsEmpty reports whether the patch carries no field to apply.
func (p TaskPatch) IsEmpty() bool {
	return p.Title == nil && !p.Description.Set && p.Priority == nil && p.Status == nil && !p.DueDate.Set
}

// CompletesFrom reports whether applying the patch moves a task with the
// given status into completed.
func (p TaskPatch) CompletesFrom(previous TaskStatus) bool {
	return p.Status != nil && *p.Status == TaskStatusCompleted && previous != TaskStatusCompleted
}

// NullableField tracks presence of an optional, nullable value.
type NullableField[T any] struct {
	Set   bool
	Value *T
}

// Present builds a field that is set to value (nil clears it).
func Present[T any](value *T) NullableField[T] {
	return NullableField[T]{Set: true, Value: value}
}
