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

var userColumns = []string{
	"id",
	"email",
	"password_hash",
	"full_name",
	"created_at",
	"updated_at",
}

const userReturning = "RETURNING id, email, password_hash, full_name, created_at, updated_at"

// UserRepository implements port.UserRepository using PostgreSQL.
type UserRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewUserRepository wires a PostgreSQL-backed user repository.
func NewUserRepository(exec pgExecutor) *UserRepository {
	return &UserRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Create inserts a new user row and returns it with its generated id.
func (r *UserRepository) Create(ctx context.Context, user domain.User) (*domain.User, error) {
	stmt, args, err := r.builder.Insert("users").
		Columns("email", "password_hash", "full_name", "created_at", "updated_at").
		Values(user.Email, user.PasswordHash, user.FullName, user.CreatedAt, user.CreatedAt).
		Suffix(userReturning).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build insert user sql: %w", err)
	}

	created, err := scanUser(r.exec.QueryRow(ctx, stmt, args...))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, repository.ErrDuplicate
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}

	return created, nil
}

// GetByID retrieves a user by identifier.
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	stmt, args, err := r.builder.
		Select(userColumns...).
		From("users").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select user sql: %w", err)
	}

	user, err := scanUser(r.exec.QueryRow(ctx, stmt, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}

	return user, nil
}

// GetByEmail retrieves a user by exact email match.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	stmt, args, err := r.builder.
		Select(userColumns...).
		From("users").
		Where(squirrel.Eq{"email": email}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select user by email sql: %w", err)
	}

	user, err := scanUser(r.exec.QueryRow(ctx, stmt, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan user by email: %w", err)
	}

	return user, nil
}

// ExistsByEmail reports whether any user owns email.
func (r *UserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	const stmt = `SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)`

	var exists bool
	if err := r.exec.QueryRow(ctx, stmt, email).Scan(&exists); err != nil {
		return false, fmt.Errorf("check user email exists: %w", err)
	}
	return exists, nil
}

// EmailTakenByOther reports whether a user other than userID owns email.
func (r *UserRepository) EmailTakenByOther(ctx context.Context, email string, userID int64) (bool, error) {
	const stmt = `SELECT EXISTS(SELECT 1 FROM users WHERE email = $1 AND id <> $2)`

	var taken bool
	if err := r.exec.QueryRow(ctx, stmt, email, userID).Scan(&taken); err != nil {
		return false, fmt.Errorf("check user email taken: %w", err)
	}
	return taken, nil
}

// UpdateProfile applies the present fields of patch and returns the updated row.
func (r *UserRepository) UpdateProfile(ctx context.Context, id int64, patch domain.ProfilePatch, at time.Time) (*domain.User, error) {
	query := r.builder.Update("users")
	if patch.FullName != nil {
		query = query.Set("full_name", *patch.FullName)
	}
	if patch.Email != nil {
		query = query.Set("email", *patch.Email)
	}

	stmt, args, err := query.
		Set("updated_at", at).
		Where(squirrel.Eq{"id": id}).
		Suffix(userReturning).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build update user sql: %w", err)
	}

	updated, err := scanUser(r.exec.QueryRow(ctx, stmt, args...))
	if err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			return nil, repository.ErrNotFound
		case isUniqueViolation(err):
			return nil, repository.ErrDuplicate
		}
		return nil, fmt.Errorf("update user: %w", err)
	}

	return updated, nil
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var user domain.User
	if err := row.Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.FullName,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &user, nil
}

var _ port.UserRepository = (*UserRepository)(nil)
