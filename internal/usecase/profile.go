package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/taskflowpro/taskflow-api/internal/core/domain"
	"github.com/taskflowpro/taskflow-api/internal/core/port"
	"github.com/taskflowpro/taskflow-api/internal/infra/logger"
	"github.com/taskflowpro/taskflow-api/internal/repository"
)

// ProfileService reads and edits the caller's own account.
type ProfileService struct {
	users  port.UserRepository
	logger *zap.Logger
	now    func() time.Time
}

// NewProfileService constructs a ProfileService.
func NewProfileService(users port.UserRepository, log *zap.Logger) *ProfileService {
	if log == nil {
		log = zap.NewNop()
	}
	return &ProfileService{users: users, logger: log, now: time.Now}
}

// GetProfile returns the account without its password hash.
func (s *ProfileService) GetProfile(ctx context.Context, userID int64) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	sanitized := user.Sanitized()
	return &sanitized, nil
}

// UpdateProfile applies the non-blank fields of patch. A new email must not
// belong to another account.
func (s *ProfileService) UpdateProfile(ctx context.Context, userID int64, patch domain.ProfilePatch) (*domain.User, error) {
	patch = patch.Normalize()
	if patch.IsEmpty() {
		return nil, ErrNoFieldsToUpdate
	}

	if patch.Email != nil {
		taken, err := s.users.EmailTakenByOther(ctx, *patch.Email, userID)
		if err != nil {
			return nil, fmt.Errorf("check email: %w", err)
		}
		if taken {
			return nil, ErrEmailTaken
		}
	}

	user, err := s.users.UpdateProfile(ctx, userID, patch, s.now().UTC())
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return nil, ErrUserNotFound
		case errors.Is(err, repository.ErrDuplicate):
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("update profile: %w", err)
	}

	logger.FromContext(ctx, s.logger).Info("Profile updated",
		zap.Int64("user_id", user.ID),
		zap.Bool("email_changed", patch.Email != nil),
	)
	sanitized := user.Sanitized()
	return &sanitized, nil
}
