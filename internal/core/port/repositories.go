package port

import (
	"context"
	"time"

	"github.com/taskflowpro/taskflow-api/internal/core/domain"
)

// UserRepository exposes persistence behavior for users.
type UserRepository interface {
	Create(ctx context.Context, user domain.User) (*domain.User, error)
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	EmailTakenByOther(ctx context.Context, email string, userID int64) (bool, error)
	UpdateProfile(ctx context.Context, id int64, patch domain.ProfilePatch, at time.Time) (*domain.User, error)
}

// OTPLookup narrows a challenge lookup. An empty Email matches any address.
type OTPLookup struct {
	ID      int64
	Purpose domain.OTPPurpose
	Email   string
}

// OTPRepository persists one-time passcode challenges.
type OTPRepository interface {
	Create(ctx context.Context, challenge domain.OTPChallenge) (*domain.OTPChallenge, error)
	GetByID(ctx context.Context, id int64) (*domain.OTPChallenge, error)
	Find(ctx context.Context, lookup OTPLookup) (*domain.OTPChallenge, error)
	// Consume marks the challenge used only while it is unused, unexpired at
	// `at` and its code equals code. It reports whether a row changed.
	Consume(ctx context.Context, id int64, code string, at time.Time) (bool, error)
	// Refresh rewrites code and expiry of a pending challenge and reports whether a row changed.
	Refresh(ctx context.Context, id int64, code string, expiresAt time.Time, at time.Time) (bool, error)
	DeleteStale(ctx context.Context, before time.Time) (int64, error)
}

// TaskRepository persists tasks scoped to their owner.
type TaskRepository interface {
	List(ctx context.Context, userID int64) ([]domain.Task, error)
	Get(ctx context.Context, userID, taskID int64) (*domain.Task, error)
	Create(ctx context.Context, userID int64, input domain.TaskInput, at time.Time) (*domain.Task, error)
	// Update applies patch and returns the new row with the status it had before.
	Update(ctx context.Context, userID, taskID int64, patch domain.TaskPatch, at time.Time) (*domain.Task, domain.TaskStatus, error)
	Delete(ctx context.Context, userID, taskID int64) (*domain.Task, error)
}
