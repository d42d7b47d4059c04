package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/taskflowpro/taskflow-api/internal/core/domain"
	"github.com/taskflowpro/taskflow-api/internal/core/port"
	"github.com/taskflowpro/taskflow-api/internal/infra/logger"
	"github.com/taskflowpro/taskflow-api/internal/infra/security"
	"github.com/taskflowpro/taskflow-api/internal/repository"
)

const (
	defaultOTPTTL       = 10 * time.Minute
	defaultOTPRetention = 24 * time.Hour

	tracerName = "github.com/taskflowpro/taskflow-api/internal/usecase"
)

// OTPConfig tunes challenge lifetimes.
type OTPConfig struct {
	TTL       time.Duration
	Retention time.Duration
}

// OTPIssue describes a freshly issued or resent challenge.
type OTPIssue struct {
	ChallengeID int64
	Purpose     domain.OTPPurpose
	ExpiresAt   time.Time
}

// SignupVerification carries the fields submitted to finish an OTP signup.
type SignupVerification struct {
	ChallengeID int64
	Code        string
	Credentials
}

// OTPService is the ledger of emailed one-time passcodes. Consumption is a
// single conditional update, so a challenge verifies at most once even under
// concurrent requests.
type OTPService struct {
	otps     port.OTPRepository
	users    port.UserRepository
	accounts *AuthService
	notifier port.Notifier
	cfg      OTPConfig
	logger   *zap.Logger
	tracer   trace.Tracer
	now      func() time.Time
	newCode  func() (string, error)
}

// NewOTPService wires the ledger to the account primitives of accounts.
func NewOTPService(otps port.OTPRepository, users port.UserRepository, accounts *AuthService, notifier port.Notifier, cfg OTPConfig, log *zap.Logger) *OTPService {
	if cfg.TTL <= 0 {
		cfg.TTL = defaultOTPTTL
	}
	if cfg.Retention <= 0 {
		cfg.Retention = defaultOTPRetention
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &OTPService{
		otps:     otps,
		users:    users,
		accounts: accounts,
		notifier: notifier,
		cfg:      cfg,
		logger:   log,
		tracer:   otel.Tracer(tracerName),
		now:      time.Now,
		newCode: func() (string, error) {
			return security.GenerateNumericCode(security.OTPCodeLength)
		},
	}
}

// IssueSignupChallenge emails a signup code to an address that has no account yet.
// The password and full name are validated here but only persisted on verify.
func (s *OTPService) IssueSignupChallenge(ctx context.Context, creds Credentials) (issue *OTPIssue, err error) {
	ctx, span := s.tracer.Start(ctx, "otp.IssueSignupChallenge", trace.WithAttributes(
		attribute.String("otp.purpose", string(domain.OTPPurposeSignup)),
	))
	defer func() { endSpan(span, err) }()

	creds, err = s.accounts.validateCredentials(creds)
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

	return s.issue(ctx, creds.Email, domain.OTPPurposeSignup, creds.FullName, 0)
}

// VerifySignupChallenge consumes a signup code and creates the account.
// The challenge stays consumed even if account creation then fails.
func (s *OTPService) VerifySignupChallenge(ctx context.Context, req SignupVerification) (result *AuthResult, err error) {
	ctx, span := s.tracer.Start(ctx, "otp.VerifySignupChallenge", trace.WithAttributes(
		attribute.Int64("otp.id", req.ChallengeID),
		attribute.String("otp.purpose", string(domain.OTPPurposeSignup)),
	))
	defer func() { endSpan(span, err) }()

	creds, err := s.accounts.validateCredentials(req.Credentials)
	if err != nil {
		return nil, err
	}

	challenge, err := s.otps.Find(ctx, port.OTPLookup{
		ID:      req.ChallengeID,
		Purpose: domain.OTPPurposeSignup,
		Email:   creds.Email,
	})
	if err != nil {
		return nil, s.lookupError(err)
	}

	if err := s.consume(ctx, challenge, req.Code); err != nil {
		return nil, err
	}

	taken, err := s.users.ExistsByEmail(ctx, creds.Email)
	if err != nil {
		return nil, fmt.Errorf("check email: %w", err)
	}
	if taken {
		return nil, ErrEmailTaken
	}

	user, err := s.accounts.createUser(ctx, creds, registrationMethodOTP)
	if err != nil {
		return nil, err
	}

	logger.FromContext(ctx, s.logger).Info("Signup verified",
		zap.Int64("user_id", user.ID),
		zap.Int64("otp_id", challenge.ID),
	)
	return s.accounts.completeSignup(ctx, user)
}

// IssueLoginChallenge checks the password and emails a login code.
func (s *OTPService) IssueLoginChallenge(ctx context.Context, email, password string) (issue *OTPIssue, err error) {
	ctx, span := s.tracer.Start(ctx, "otp.IssueLoginChallenge", trace.WithAttributes(
		attribute.String("otp.purpose", string(domain.OTPPurposeLogin)),
	))
	defer func() { endSpan(span, err) }()

	user, err := s.accounts.authenticate(ctx, email, password)
	if err != nil {
		return nil, err
	}

	return s.issue(ctx, user.Email, domain.OTPPurposeLogin, user.FullName, user.ID)
}

// VerifyLoginChallenge consumes a login code. The email stored on the
// challenge identifies the account.
func (s *OTPService) VerifyLoginChallenge(ctx context.Context, challengeID int64, code string) (result *AuthResult, err error) {
	ctx, span := s.tracer.Start(ctx, "otp.VerifyLoginChallenge", trace.WithAttributes(
		attribute.Int64("otp.id", challengeID),
		attribute.String("otp.purpose", string(domain.OTPPurposeLogin)),
	))
	defer func() { endSpan(span, err) }()

	challenge, err := s.otps.Find(ctx, port.OTPLookup{ID: challengeID, Purpose: domain.OTPPurposeLogin})
	if err != nil {
		return nil, s.lookupError(err)
	}

	if err := s.consume(ctx, challenge, code); err != nil {
		return nil, err
	}

	user, err := s.users.GetByEmail(ctx, challenge.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("load user: %w", err)
	}

	return s.accounts.completeLogin(ctx, user)
}

// ResendChallenge rotates the code of a pending challenge and pushes its
// expiry out by a full TTL. Purpose, email and id never change.
func (s *OTPService) ResendChallenge(ctx context.Context, challengeID int64) (issue *OTPIssue, err error) {
	ctx, span := s.tracer.Start(ctx, "otp.ResendChallenge", trace.WithAttributes(
		attribute.Int64("otp.id", challengeID),
	))
	defer func() { endSpan(span, err) }()

	challenge, err := s.otps.GetByID(ctx, challengeID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrOTPExpired
		}
		return nil, fmt.Errorf("load otp: %w", err)
	}

	now := s.now().UTC()
	if !challenge.IsPending(now) || !challenge.Purpose.Valid() {
		return nil, ErrOTPExpired
	}

	code, err := s.newCode()
	if err != nil {
		return nil, fmt.Errorf("generate otp: %w", err)
	}
	expiresAt := now.Add(s.cfg.TTL)

	refreshed, err := s.otps.Refresh(ctx, challenge.ID, code, expiresAt, now)
	if err != nil {
		return nil, fmt.Errorf("refresh otp: %w", err)
	}
	if !refreshed {
		return nil, ErrOTPExpired
	}

	s.dispatchCode(ctx, challenge.Email, challenge.Purpose, code, now, expiresAt, "", 0)

	return &OTPIssue{ChallengeID: challenge.ID, Purpose: challenge.Purpose, ExpiresAt: expiresAt}, nil
}

// PurgeExpired deletes challenges whose expiry is older than the retention window.
func (s *OTPService) PurgeExpired(ctx context.Context) (int64, error) {
	cutoff := s.now().UTC().Add(-s.cfg.Retention)
	removed, err := s.otps.DeleteStale(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge otps: %w", err)
	}
	if removed > 0 {
		s.logger.Info("Purged stale OTP challenges", zap.Int64("removed", removed), zap.Time("cutoff", cutoff))
	}
	return removed, nil
}

func (s *OTPService) issue(ctx context.Context, email string, purpose domain.OTPPurpose, fullName string, userID int64) (*OTPIssue, error) {
	code, err := s.newCode()
	if err != nil {
		return nil, fmt.Errorf("generate otp: %w", err)
	}

	now := s.now().UTC()
	challenge, err := s.otps.Create(ctx, domain.OTPChallenge{
		Email:     email,
		Code:      code,
		Purpose:   purpose,
		ExpiresAt: now.Add(s.cfg.TTL),
		CreatedAt: now,
	})
	if err != nil {
		return nil, fmt.Errorf("store otp: %w", err)
	}

	s.dispatchCode(ctx, email, purpose, code, now, challenge.ExpiresAt, fullName, userID)

	return &OTPIssue{ChallengeID: challenge.ID, Purpose: purpose, ExpiresAt: challenge.ExpiresAt}, nil
}

// consume applies the validity predicate and then the conditional update;
// losing the update race is reported like any other invalid code.
func (s *OTPService) consume(ctx context.Context, challenge *domain.OTPChallenge, code string) error {
	code = strings.TrimSpace(code)
	now := s.now().UTC()
	if !security.IsNumericCode(code, security.OTPCodeLength) || !challenge.Consumable(code, now) {
		return ErrOTPInvalidOrExpired
	}

	consumed, err := s.otps.Consume(ctx, challenge.ID, code, now)
	if err != nil {
		return fmt.Errorf("consume otp: %w", err)
	}
	if !consumed {
		return ErrOTPInvalidOrExpired
	}
	return nil
}

func (s *OTPService) lookupError(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrOTPInvalidOrExpired
	}
	return fmt.Errorf("load otp: %w", err)
}

func (s *OTPService) dispatchCode(ctx context.Context, email string, purpose domain.OTPPurpose, code string, issuedAt, expiresAt time.Time, fullName string, userID int64) {
	enqueue(ctx, s.notifier, s.logger, s.now, domain.Notification{
		Kind:      domain.OTPNotificationKind(purpose),
		To:        email,
		UserID:    userID,
		FullName:  fullName,
		Code:      code,
		ExpiresAt: expiresAt,
		CreatedAt: issuedAt,
	})
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
