package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/taskflowpro/taskflow-api/internal/core/domain"
)

var adaSignup = Credentials{Email: "ada@example.com", Password: "analytical", FullName: "Ada Lovelace"}

func issuedCode(t *testing.T, h *authHarness, kind domain.NotificationKind) string {
	t.Helper()
	n, ok := h.notifier.Last(kind)
	if !ok {
		t.Fatalf("expected a %s notification", kind)
	}
	if len(n.Code) != 6 {
		t.Fatalf("expected six digit code, got %q", n.Code)
	}
	return n.Code
}

func TestSignupChallengeIssueThenVerify(t *testing.T) {
	h := newAuthHarness(t)
	ctx := context.Background()

	issue, err := h.otp.IssueSignupChallenge(ctx, adaSignup)
	if err != nil {
		t.Fatalf("IssueSignupChallenge returned error: %v", err)
	}
	if !issue.ExpiresAt.Equal(h.clock.Now().Add(10 * time.Minute)) {
		t.Fatalf("unexpected expiry: %v", issue.ExpiresAt)
	}
	if h.users.Count() != 0 {
		t.Fatal("issuing a signup challenge must not create a user")
	}

	code := issuedCode(t, h, domain.NotificationSignupOTP)
	result, err := h.otp.VerifySignupChallenge(ctx, SignupVerification{
		ChallengeID: issue.ChallengeID,
		Code:        code,
		Credentials: adaSignup,
	})
	if err != nil {
		t.Fatalf("VerifySignupChallenge returned error: %v", err)
	}

	if h.users.Count() != 1 {
		t.Fatalf("expected exactly one user, got %d", h.users.Count())
	}
	userID, err := h.auth.ValidateAccessToken(ctx, result.Token.Token)
	if err != nil || userID != result.User.ID {
		t.Fatalf("token does not carry the new user: id=%d err=%v", userID, err)
	}
	if !h.otps.Challenge(issue.ChallengeID).Used {
		t.Fatal("expected challenge to be consumed")
	}
	if _, ok := h.notifier.Last(domain.NotificationAccountCreated); !ok {
		t.Fatal("expected account created notification")
	}
	if len(h.events.Registered) != 1 || h.events.Registered[0].RegistrationMethod != registrationMethodOTP {
		t.Fatalf("unexpected registration events: %+v", h.events.Registered)
	}
}

func TestSignupChallengeCannotBeReplayed(t *testing.T) {
	h := newAuthHarness(t)
	ctx := context.Background()

	issue, err := h.otp.IssueSignupChallenge(ctx, adaSignup)
	if err != nil {
		t.Fatalf("IssueSignupChallenge returned error: %v", err)
	}
	req := SignupVerification{ChallengeID: issue.ChallengeID, Code: issuedCode(t, h, domain.NotificationSignupOTP), Credentials: adaSignup}

	if _, err := h.otp.VerifySignupChallenge(ctx, req); err != nil {
		t.Fatalf("first verify returned error: %v", err)
	}
	if _, err := h.otp.VerifySignupChallenge(ctx, req); !errors.Is(err, ErrOTPInvalidOrExpired) {
		t.Fatalf("expected replay to fail with ErrOTPInvalidOrExpired, got %v", err)
	}
	if h.users.Count() != 1 {
		t.Fatalf("replay must not create users, got %d", h.users.Count())
	}
}

func TestSignupChallengeRejections(t *testing.T) {
	h := newAuthHarness(t)
	ctx := context.Background()

	issue, err := h.otp.IssueSignupChallenge(ctx, adaSignup)
	if err != nil {
		t.Fatalf("IssueSignupChallenge returned error: %v", err)
	}
	code := issuedCode(t, h, domain.NotificationSignupOTP)

	otherEmail := adaSignup
	otherEmail.Email = "eve@example.com"

	cases := []struct {
		name string
		req  SignupVerification
	}{
		{"wrong code", SignupVerification{ChallengeID: issue.ChallengeID, Code: "000000", Credentials: adaSignup}},
		{"wrong email", SignupVerification{ChallengeID: issue.ChallengeID, Code: code, Credentials: otherEmail}},
		{"unknown challenge", SignupVerification{ChallengeID: issue.ChallengeID + 100, Code: code, Credentials: adaSignup}},
	}
	for _, tc := range cases {
		if _, err := h.otp.VerifySignupChallenge(ctx, tc.req); !errors.Is(err, ErrOTPInvalidOrExpired) {
			t.Fatalf("%s: expected ErrOTPInvalidOrExpired, got %v", tc.name, err)
		}
	}
	if h.otps.Challenge(issue.ChallengeID).Used {
		t.Fatal("failed verifies must leave the challenge pending")
	}

	h.clock.Advance(10 * time.Minute)
	if _, err := h.otp.VerifySignupChallenge(ctx, SignupVerification{ChallengeID: issue.ChallengeID, Code: code, Credentials: adaSignup}); !errors.Is(err, ErrOTPInvalidOrExpired) {
		t.Fatalf("expected expired challenge to fail, got %v", err)
	}
	if h.users.Count() != 0 {
		t.Fatalf("expected no users, got %d", h.users.Count())
	}
}

func TestSignupChallengeRequiresFreeEmail(t *testing.T) {
	h := newAuthHarness(t)
	ctx := context.Background()

	if _, err := h.auth.Register(ctx, adaSignup); err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	if _, err := h.otp.IssueSignupChallenge(ctx, adaSignup); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
}

func TestSignupVerifyConflictsWhenEmailRegisteredMeanwhile(t *testing.T) {
	h := newAuthHarness(t)
	ctx := context.Background()

	issue, err := h.otp.IssueSignupChallenge(ctx, adaSignup)
	if err != nil {
		t.Fatalf("IssueSignupChallenge returned error: %v", err)
	}
	code := issuedCode(t, h, domain.NotificationSignupOTP)

	if _, err := h.auth.Register(ctx, adaSignup); err != nil {
		t.Fatalf("Register returned error: %v", err)
	}

	_, err = h.otp.VerifySignupChallenge(ctx, SignupVerification{ChallengeID: issue.ChallengeID, Code: code, Credentials: adaSignup})
	if !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
	if !h.otps.Challenge(issue.ChallengeID).Used {
		t.Fatal("consumption must not be undone by the conflict")
	}
	if h.users.Count() != 1 {
		t.Fatalf("expected only the out-of-band user, got %d", h.users.Count())
	}
}

func TestResendChallenge(t *testing.T) {
	h := newAuthHarness(t)
	ctx := context.Background()

	issue, err := h.otp.IssueSignupChallenge(ctx, adaSignup)
	if err != nil {
		t.Fatalf("IssueSignupChallenge returned error: %v", err)
	}
	before := h.otps.Challenge(issue.ChallengeID)

	h.clock.Advance(3 * time.Minute)
	resent, err := h.otp.ResendChallenge(ctx, issue.ChallengeID)
	if err != nil {
		t.Fatalf("ResendChallenge returned error: %v", err)
	}

	after := h.otps.Challenge(issue.ChallengeID)
	if resent.ChallengeID != before.ID || after.Purpose != before.Purpose || after.Email != before.Email {
		t.Fatalf("resend changed identity: before=%+v after=%+v", before, after)
	}
	if !after.ExpiresAt.After(before.ExpiresAt) || !resent.ExpiresAt.Equal(h.clock.Now().Add(10*time.Minute)) {
		t.Fatalf("expected strictly later expiry, before=%v after=%v", before.ExpiresAt, after.ExpiresAt)
	}
	if after.Code == before.Code {
		t.Fatal("expected a new code")
	}

	codes := h.notifier.OfKind(domain.NotificationSignupOTP)
	if len(codes) != 2 || codes[1].Code != after.Code {
		t.Fatalf("expected the new code to be re-dispatched, got %+v", codes)
	}

	if _, err := h.otp.VerifySignupChallenge(ctx, SignupVerification{ChallengeID: issue.ChallengeID, Code: before.Code, Credentials: adaSignup}); !errors.Is(err, ErrOTPInvalidOrExpired) {
		t.Fatalf("expected old code to fail, got %v", err)
	}
	if _, err := h.otp.VerifySignupChallenge(ctx, SignupVerification{ChallengeID: issue.ChallengeID, Code: after.Code, Credentials: adaSignup}); err != nil {
		t.Fatalf("expected new code to verify, got %v", err)
	}

	if _, err := h.otp.ResendChallenge(ctx, issue.ChallengeID); !errors.Is(err, ErrOTPExpired) {
		t.Fatalf("expected resend of consumed challenge to fail, got %v", err)
	}
}

func TestResendExpiredOrUnknownChallenge(t *testing.T) {
	h := newAuthHarness(t)
	ctx := context.Background()

	issue, err := h.otp.IssueSignupChallenge(ctx, adaSignup)
	if err != nil {
		t.Fatalf("IssueSignupChallenge returned error: %v", err)
	}

	if _, err := h.otp.ResendChallenge(ctx, issue.ChallengeID+1); !errors.Is(err, ErrOTPExpired) {
		t.Fatalf("expected unknown challenge to fail with ErrOTPExpired, got %v", err)
	}

	h.clock.Advance(11 * time.Minute)
	if _, err := h.otp.ResendChallenge(ctx, issue.ChallengeID); !errors.Is(err, ErrOTPExpired) {
		t.Fatalf("expected expired challenge to fail with ErrOTPExpired, got %v", err)
	}
}

func TestResendRejectsUnknownPurpose(t *testing.T) {
	h := newAuthHarness(t)
	ctx := context.Background()

	stored, err := h.otps.Create(ctx, domain.OTPChallenge{
		Email:     "ada@example.com",
		Code:      "123456",
		Purpose:   domain.OTPPurpose("password_reset"),
		ExpiresAt: h.clock.Now().Add(10 * time.Minute),
		CreatedAt: h.clock.Now(),
	})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	if _, err := h.otp.ResendChallenge(ctx, stored.ID); !errors.Is(err, ErrOTPExpired) {
		t.Fatalf("expected ErrOTPExpired for an unknown purpose, got %v", err)
	}
	if got := h.otps.Challenge(stored.ID); got.Code != "123456" {
		t.Fatalf("challenge must be left untouched, code is now %q", got.Code)
	}
	if _, sent := h.notifier.Last(domain.NotificationLoginOTP); sent {
		t.Fatal("no code email may be sent for an unknown purpose")
	}
}

func TestLoginChallengeScenario(t *testing.T) {
	h := newAuthHarness(t)
	ctx := context.Background()

	registered, err := h.auth.Register(ctx, adaSignup)
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}

	if _, err := h.otp.IssueLoginChallenge(ctx, adaSignup.Email, "wrong-password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := h.otp.IssueLoginChallenge(ctx, "nobody@example.com", adaSignup.Password); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown email, got %v", err)
	}

	issue, err := h.otp.IssueLoginChallenge(ctx, adaSignup.Email, adaSignup.Password)
	if err != nil {
		t.Fatalf("IssueLoginChallenge returned error: %v", err)
	}
	if issue.Purpose != domain.OTPPurposeLogin {
		t.Fatalf("unexpected purpose: %s", issue.Purpose)
	}
	code := issuedCode(t, h, domain.NotificationLoginOTP)

	if _, err := h.otp.VerifyLoginChallenge(ctx, issue.ChallengeID, "000000"); !errors.Is(err, ErrOTPInvalidOrExpired) {
		t.Fatalf("expected wrong code to fail, got %v", err)
	}

	result, err := h.otp.VerifyLoginChallenge(ctx, issue.ChallengeID, code)
	if err != nil {
		t.Fatalf("VerifyLoginChallenge returned error: %v", err)
	}
	if result.User.ID != registered.User.ID {
		t.Fatalf("expected user %d, got %d", registered.User.ID, result.User.ID)
	}

	if _, err := h.otp.VerifyLoginChallenge(ctx, issue.ChallengeID, code); !errors.Is(err, ErrOTPInvalidOrExpired) {
		t.Fatalf("expected replay to fail, got %v", err)
	}
	if got := len(h.notifier.OfKind(domain.NotificationLoginAlert)); got != 1 {
		t.Fatalf("expected one login alert, got %d", got)
	}
}

func TestLoginChallengeNotUsableForSignup(t *testing.T) {
	h := newAuthHarness(t)
	ctx := context.Background()

	if _, err := h.auth.Register(ctx, adaSignup); err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	issue, err := h.otp.IssueLoginChallenge(ctx, adaSignup.Email, adaSignup.Password)
	if err != nil {
		t.Fatalf("IssueLoginChallenge returned error: %v", err)
	}
	code := issuedCode(t, h, domain.NotificationLoginOTP)

	_, err = h.otp.VerifySignupChallenge(ctx, SignupVerification{ChallengeID: issue.ChallengeID, Code: code, Credentials: adaSignup})
	if !errors.Is(err, ErrOTPInvalidOrExpired) {
		t.Fatalf("expected purpose mismatch to fail, got %v", err)
	}
}

func TestConcurrentVerifySucceedsAtMostOnce(t *testing.T) {
	h := newAuthHarness(t)
	ctx := context.Background()

	if _, err := h.auth.Register(ctx, adaSignup); err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	issue, err := h.otp.IssueLoginChallenge(ctx, adaSignup.Email, adaSignup.Password)
	if err != nil {
		t.Fatalf("IssueLoginChallenge returned error: %v", err)
	}
	code := issuedCode(t, h, domain.NotificationLoginOTP)

	const attempts = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	wg.Add(attempts)
	for i := 0; i < attempts; i++ {
		go func() {
			defer wg.Done()
			if _, err := h.otp.VerifyLoginChallenge(ctx, issue.ChallengeID, code); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			} else if !errors.Is(err, ErrOTPInvalidOrExpired) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if successes != 1 {
		t.Fatalf("expected exactly one successful verify, got %d", successes)
	}
}

func TestPurgeExpiredKeepsRecentChallenges(t *testing.T) {
	h := newAuthHarness(t)
	ctx := context.Background()

	old, err := h.otp.IssueSignupChallenge(ctx, adaSignup)
	if err != nil {
		t.Fatalf("IssueSignupChallenge returned error: %v", err)
	}

	h.clock.Advance(25 * time.Hour)
	recentCreds := adaSignup
	recentCreds.Email = "grace@example.com"
	recent, err := h.otp.IssueSignupChallenge(ctx, recentCreds)
	if err != nil {
		t.Fatalf("IssueSignupChallenge returned error: %v", err)
	}

	removed, err := h.otp.PurgeExpired(ctx)
	if err != nil {
		t.Fatalf("PurgeExpired returned error: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected one purged challenge, got %d", removed)
	}
	if _, err := h.otps.GetByID(ctx, old.ChallengeID); err == nil {
		t.Fatal("expected stale challenge to be removed")
	}
	if _, err := h.otps.GetByID(ctx, recent.ChallengeID); err != nil {
		t.Fatalf("expected recent challenge to remain: %v", err)
	}
}
