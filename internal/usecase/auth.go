package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/taskflowpro/taskflow-api/internal/core/domain"
	"github.com/taskflowpro/taskflow-api/internal/core/port"
	"github.com/taskflowpro/taskflow-api/internal/infra/logger"
	"github.com/taskflowpro/taskflow-api/internal/infra/security"
	"github.com/taskflowpro/taskflow-api/internal/repository"
)

const (
	registrationMethodPassword = "password"
	registrationMethodOTP      = "otp"
)

// AuthResult is returned by every flow that ends in an authenticated session.
type AuthResult struct {
	User  domain.User
	Token domain.AccessToken
}

// Credentials carries the fields submitted at registration.
type Credentials struct {
	Email    string
	Password string
	FullName string
}

// AuthService coordinates password registration and login, and owns the
// account primitives the OTP flows reuse.
type AuthService struct {
	users    port.UserRepository
	hasher   port.PasswordHasher
	tokens   port.TokenIssuer
	policy   port.PasswordPolicy
	notifier port.Notifier
	events   port.EventPublisher
	logger   *zap.Logger
	now      func() time.Time
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(
	users port.UserRepository,
	hasher port.PasswordHasher,
	tokens port.TokenIssuer,
	policy port.PasswordPolicy,
	notifier port.Notifier,
	events port.EventPublisher,
	log *zap.Logger,
) *AuthService {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthService{
		users:    users,
		hasher:   hasher,
		tokens:   tokens,
		policy:   policy,
		notifier: notifier,
		events:   events,
		logger:   log,
		now:      time.Now,
	}
}

// Register creates an account with a password and signs the user in.
func (s *AuthService) Register(ctx context.Context, creds Credentials) (*AuthResult, error) {
	creds, err := s.validateCredentials(creds)
	if err != nil {
		return nil, err
	}

	taken, err := s.users.ExistsByEmail(ctx, creds.Email)
	if err != nil {
		return nil, fmt.Errorf("check email: %w", err)
	}
	if taken {
		return nil, ErrEmailTaken
	}

	user, err := s.createUser(ctx, creds, registrationMethodPassword)
	if err != nil {
		return nil, err
	}

	return s.completeSignup(ctx, user)
}

// Login verifies the password and issues a token.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	user, err := s.authenticate(ctx, email, password)
	if err != nil {
		return nil, err
	}
	return s.completeLogin(ctx, user)
}

// Me returns the account behind an authenticated request.
func (s *AuthService) Me(ctx context.Context, userID int64) (*domain.User, error) {
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

// ValidateAccessToken resolves a bearer token to the user id it was issued for.
func (s *AuthService) ValidateAccessToken(_ context.Context, raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, ErrInvalidAccessToken
	}

	userID, err := s.tokens.Parse(raw)
	if err != nil {
		if errors.Is(err, security.ErrTokenExpired) {
			return 0, ErrExpiredAccessToken
		}
		return 0, ErrInvalidAccessToken
	}
	return userID, nil
}

func (s *AuthService) validateCredentials(creds Credentials) (Credentials, error) {
	creds.Email = strings.TrimSpace(creds.Email)
	creds.FullName = strings.TrimSpace(creds.FullName)
	if creds.Email == "" {
		return creds, fmt.Errorf("%w: email is required", ErrInvalidInput)
	}
	if creds.FullName == "" {
		return creds, fmt.Errorf("%w: full name is required", ErrInvalidInput)
	}
	if s.policy != nil {
		if err := s.policy.Validate(creds.Password, creds.Email, creds.FullName); err != nil {
			return creds, fmt.Errorf("%w: %v", ErrPasswordPolicyViolation, err)
		}
	}
	return creds, nil
}

// authenticate returns ErrInvalidCredentials for unknown emails and wrong
// passwords alike.
func (s *AuthService) authenticate(ctx context.Context, email, password string) (*domain.User, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	ok, err := s.hasher.Verify(password, user.PasswordHash)
	if err != nil {
		logger.FromContext(ctx, s.logger).Warn("Stored password hash could not be verified",
			zap.Int64("user_id", user.ID),
			zap.Error(err),
		)
		return nil, ErrInvalidCredentials
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

func (s *AuthService) createUser(ctx context.Context, creds Credentials, method string) (*domain.User, error) {
	hash, err := s.hasher.Hash(creds.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := s.now().UTC()
	user, err := s.users.Create(ctx, domain.User{
		Email:        creds.Email,
		PasswordHash: hash,
		FullName:     creds.FullName,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	if s.events != nil {
		event := domain.UserRegisteredEvent{
			EventID:            uuid.NewString(),
			UserID:             user.ID,
			Email:              user.Email,
			FullName:           user.FullName,
			RegisteredAt:       now,
			RegistrationMethod: method,
		}
		if err := s.events.PublishUserRegistered(ctx, event); err != nil {
			logger.FromContext(ctx, s.logger).Warn("Failed to publish user registered event",
				zap.Int64("user_id", user.ID),
				zap.Error(err),
			)
		}
	}

	return user, nil
}

func (s *AuthService) issueToken(user *domain.User) (*AuthResult, error) {
	token, expiresAt, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}
	return &AuthResult{
		User:  user.Sanitized(),
		Token: domain.AccessToken{Token: token, ExpiresAt: expiresAt},
	}, nil
}

func (s *AuthService) completeSignup(ctx context.Context, user *domain.User) (*AuthResult, error) {
	result, err := s.issueToken(user)
	if err != nil {
		return nil, err
	}
	s.notify(ctx, domain.Notification{
		Kind:     domain.NotificationAccountCreated,
		To:       user.Email,
		UserID:   user.ID,
		FullName: user.FullName,
	})
	return result, nil
}

func (s *AuthService) completeLogin(ctx context.Context, user *domain.User) (*AuthResult, error) {
	result, err := s.issueToken(user)
	if err != nil {
		return nil, err
	}
	s.notify(ctx, domain.Notification{
		Kind:     domain.NotificationLoginAlert,
		To:       user.Email,
		UserID:   user.ID,
		FullName: user.FullName,
	})
	return result, nil
}

func (s *AuthService) notify(ctx context.Context, n domain.Notification) {
	enqueue(ctx, s.notifier, s.logger, s.now, n)
}

// enqueue hands n to the notifier without ever failing the caller.
func enqueue(ctx context.Context, notifier port.Notifier, log *zap.Logger, now func() time.Time, n domain.Notification) {
	if notifier == nil {
		return
	}
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = now().UTC()
	}
	if !notifier.Enqueue(n) {
		logger.FromContext(ctx, log).Warn("Notification not accepted",
			zap.String("kind", string(n.Kind)),
			zap.Int64("user_id", n.UserID),
		)
	}
}
