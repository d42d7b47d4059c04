package usecase

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/taskflowpro/taskflow-api/internal/infra/security"
	"github.com/taskflowpro/taskflow-api/internal/usecase/usecasetest"
)

type authHarness struct {
	users    *usecasetest.UserRepo
	otps     *usecasetest.OTPRepo
	notifier *usecasetest.Notifier
	events   *usecasetest.Publisher
	clock    *usecasetest.Clock
	tokens   *security.TokenIssuer
	auth     *AuthService
	otp      *OTPService
}

func newAuthHarness(t *testing.T) *authHarness {
	t.Helper()

	h := &authHarness{
		users:    usecasetest.NewUserRepo(),
		otps:     usecasetest.NewOTPRepo(),
		notifier: &usecasetest.Notifier{},
		events:   &usecasetest.Publisher{},
		clock:    usecasetest.NewClock(),
	}

	tokens, err := security.NewTokenIssuer(security.TokenIssuerConfig{
		Secret: "test-secret",
		Issuer: "taskflow-test",
		TTL:    time.Hour,
	})
	if err != nil {
		t.Fatalf("NewTokenIssuer: %v", err)
	}
	h.tokens = tokens.WithClock(h.clock.Now)

	log := zaptest.NewLogger(t)
	policy := security.NewPasswordPolicy(security.PasswordPolicyConfig{MinLength: 6})

	h.auth = NewAuthService(h.users, usecasetest.PlainHasher{}, h.tokens, policy, h.notifier, h.events, log)
	h.auth.now = h.clock.Now

	h.otp = NewOTPService(h.otps, h.users, h.auth, h.notifier, OTPConfig{TTL: 10 * time.Minute}, log)
	h.otp.now = h.clock.Now

	var (
		mu   sync.Mutex
		next int
	)
	h.otp.newCode = func() (string, error) {
		mu.Lock()
		defer mu.Unlock()
		next++
		return fmt.Sprintf("%06d", next*111111%1000000), nil
	}

	return h
}
