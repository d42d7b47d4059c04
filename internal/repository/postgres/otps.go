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

var otpColumns = []string{
	"id",
	"email",
	"code",
	"purpose",
	"expires_at",
	"used",
	"created_at",
}

// OTPRepository implements port.OTPRepository using PostgreSQL.
type OTPRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewOTPRepository constructs a repository backed by any executor that satisfies pgExecutor.
func NewOTPRepository(exec pgExecutor) *OTPRepository {
	return &OTPRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Create inserts a fresh challenge. Used is always stored as false.
func (r *OTPRepository) Create(ctx context.Context, challenge domain.OTPChallenge) (*domain.OTPChallenge, error) {
	stmt, args, err := r.builder.Insert("otps").
		Columns("email", "code", "purpose", "expires_at", "used", "created_at").
		Values(challenge.Email, challenge.Code, string(challenge.Purpose), challenge.ExpiresAt, false, challenge.CreatedAt).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build insert otp sql: %w", err)
	}

	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(&challenge.ID); err != nil {
		return nil, fmt.Errorf("insert otp: %w", err)
	}

	challenge.Used = false
	return &challenge, nil
}

// GetByID retrieves a challenge regardless of purpose or state.
func (r *OTPRepository) GetByID(ctx context.Context, id int64) (*domain.OTPChallenge, error) {
	return r.Find(ctx, port.OTPLookup{ID: id})
}

// Find retrieves a challenge by id, narrowed by purpose and email when given.
func (r *OTPRepository) Find(ctx context.Context, lookup port.OTPLookup) (*domain.OTPChallenge, error) {
	query := r.builder.Select(otpColumns...).
		From("otps").
		Where(squirrel.Eq{"id": lookup.ID})
	if lookup.Purpose != "" {
		query = query.Where(squirrel.Eq{"purpose": string(lookup.Purpose)})
	}
	if lookup.Email != "" {
		query = query.Where(squirrel.Eq{"email": lookup.Email})
	}

	stmt, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select otp sql: %w", err)
	}

	var (
		challenge domain.OTPChallenge
		purpose   string
	)
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(
		&challenge.ID,
		&challenge.Email,
		&challenge.Code,
		&purpose,
		&challenge.ExpiresAt,
		&challenge.Used,
		&challenge.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan otp: %w", err)
	}
	challenge.Purpose = domain.OTPPurpose(purpose)

	return &challenge, nil
}

// Consume flips used to true in a single conditional statement so that two
// concurrent verifications of the same challenge cannot both succeed.
func (r *OTPRepository) Consume(ctx context.Context, id int64, code string, at time.Time) (bool, error) {
	stmt, args, err := r.builder.Update("otps").
		Set("used", true).
		Where(squirrel.Eq{"id": id}).
		Where(squirrel.Eq{"used": false}).
		Where(squirrel.Gt{"expires_at": at}).
		Where(squirrel.Eq{"code": code}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build consume otp sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return false, fmt.Errorf("consume otp: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}

// Refresh rewrites the code and expiry of a still-pending challenge.
func (r *OTPRepository) Refresh(ctx context.Context, id int64, code string, expiresAt time.Time, at time.Time) (bool, error) {
	stmt, args, err := r.builder.Update("otps").
		Set("code", code).
		Set("expires_at", expiresAt).
		Where(squirrel.Eq{"id": id}).
		Where(squirrel.Eq{"used": false}).
		Where(squirrel.Gt{"expires_at": at}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build refresh otp sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return false, fmt.Errorf("refresh otp: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}

// DeleteStale removes challenges whose expiry is older than before. Consumed
// challenges expire on the same schedule, so they are swept too.
func (r *OTPRepository) DeleteStale(ctx context.Context, before time.Time) (int64, error) {
	stmt, args, err := r.builder.Delete("otps").
		Where(squirrel.Lt{"expires_at": before}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build delete stale otps sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return 0, fmt.Errorf("delete stale otps: %w", err)
	}

	return tag.RowsAffected(), nil
}

var _ port.OTPRepository = (*OTPRepository)(nil)
