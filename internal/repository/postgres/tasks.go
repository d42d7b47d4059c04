package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/taskflowpro/taskflow-api/internal/core/domain"
	"github.com/taskflowpro/taskflow-api/internal/core/port"
	"github.com/taskflowpro/taskflow-api/internal/repository"
)

var taskColumns = []string{
	"id",
	"user_id",
	"title",
	"description",
	"priority",
	"status",
	"due_date",
	"created_at",
	"updated_at",
}

const taskReturning = "RETURNING id, user_id, title, description, priority, status, due_date, created_at, updated_at"

// TaskRepository implements port.TaskRepository using PostgreSQL.
type TaskRepository struct {
	db      pgTxStarter
	builder squirrel.StatementBuilderType
}

// NewTaskRepository constructs a task repository. Updates run in their own transaction.
func NewTaskRepository(db pgTxStarter) *TaskRepository {
	return &TaskRepository{
		db:      db,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// List returns the user's tasks, newest first.
func (r *TaskRepository) List(ctx context.Context, userID int64) ([]domain.Task, error) {
	stmt, args, err := r.builder.Select(taskColumns...).
		From("tasks").
		Where(squirrel.Eq{"user_id": userID}).
		OrderBy("created_at DESC", "id DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list tasks sql: %w", err)
	}

	rows, err := r.db.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	tasks := make([]domain.Task, 0)
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, *task)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}

	return tasks, nil
}

// Get returns a single task owned by userID.
func (r *TaskRepository) Get(ctx context.Context, userID, taskID int64) (*domain.Task, error) {
	stmt, args, err := r.builder.Select(taskColumns...).
		From("tasks").
		Where(squirrel.Eq{"id": taskID}).
		Where(squirrel.Eq{"user_id": userID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select task sql: %w", err)
	}

	task, err := scanTask(r.db.QueryRow(ctx, stmt, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan task: %w", err)
	}

	return task, nil
}

// Create inserts a task for userID.
func (r *TaskRepository) Create(ctx context.Context, userID int64, input domain.TaskInput, at time.Time) (*domain.Task, error) {
	stmt, args, err := r.builder.Insert("tasks").
		Columns("user_id", "title", "description", "priority", "status", "due_date", "created_at", "updated_at").
		Values(userID, input.Title, input.Description, string(input.Priority), string(input.Status), input.DueDate, at, at).
		Suffix(taskReturning).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build insert task sql: %w", err)
	}

	task, err := scanTask(r.db.QueryRow(ctx, stmt, args...))
	if err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}

	return task, nil
}

// Update locks the row, applies patch and returns the new row together with
// the status the task had before the change.
func (r *TaskRepository) Update(ctx context.Context, userID, taskID int64, patch domain.TaskPatch, at time.Time) (*domain.Task, domain.TaskStatus, error) {
	lockStmt, lockArgs, err := r.builder.Select("status").
		From("tasks").
		Where(squirrel.Eq{"id": taskID}).
		Where(squirrel.Eq{"user_id": userID}).
		Suffix("FOR UPDATE").
		ToSql()
	if err != nil {
		return nil, "", fmt.Errorf("build lock task sql: %w", err)
	}

	update := r.builder.Update("tasks")
	if patch.Title != nil {
		update = update.Set("title", *patch.Title)
	}
	if patch.Description.Set {
		update = update.Set("description", patch.Description.Value)
	}
	if patch.Priority != nil {
		update = update.Set("priority", string(*patch.Priority))
	}
	if patch.Status != nil {
		update = update.Set("status", string(*patch.Status))
	}
	if patch.DueDate.Set {
		update = update.Set("due_date", patch.DueDate.Value)
	}
	updateStmt, updateArgs, err := update.
		Set("updated_at", at).
		Where(squirrel.Eq{"id": taskID}).
		Where(squirrel.Eq{"user_id": userID}).
		Suffix(taskReturning).
		ToSql()
	if err != nil {
		return nil, "", fmt.Errorf("build update task sql: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, "", fmt.Errorf("begin update task: %w", err)
	}
	defer tx.Rollback(ctx)

	var previous string
	if err := tx.QueryRow(ctx, lockStmt, lockArgs...).Scan(&previous); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, "", repository.ErrNotFound
		}
		return nil, "", fmt.Errorf("lock task: %w", err)
	}

	task, err := scanTask(tx.QueryRow(ctx, updateStmt, updateArgs...))
	if err != nil {
		return nil, "", fmt.Errorf("update task: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, "", fmt.Errorf("commit update task: %w", err)
	}

	return task, domain.TaskStatus(previous), nil
}

// Delete removes the task and returns the deleted row.
func (r *TaskRepository) Delete(ctx context.Context, userID, taskID int64) (*domain.Task, error) {
	stmt, args, err := r.builder.Delete("tasks").
		Where(squirrel.Eq{"id": taskID}).
		Where(squirrel.Eq{"user_id": userID}).
		Suffix(taskReturning).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build delete task sql: %w", err)
	}

	task, err := scanTask(r.db.QueryRow(ctx, stmt, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("delete task: %w", err)
	}

	return task, nil
}

func scanTask(row pgx.Row) (*domain.Task, error) {
	var (
		task     domain.Task
		priority string
		status   string
	)
	if err := row.Scan(
		&task.ID,
		&task.UserID,
		&task.Title,
		&task.Description,
		&priority,
		&status,
		&task.DueDate,
		&task.CreatedAt,
		&task.UpdatedAt,
	); err != nil {
		return nil, err
	}
	task.Priority = domain.TaskPriority(priority)
	task.Status = domain.TaskStatus(status)
	return &task, nil
}

var _ port.TaskRepository = (*TaskRepository)(nil)
