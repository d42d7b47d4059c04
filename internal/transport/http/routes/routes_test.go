package routes_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap/zaptest"

	"github.com/taskflowpro/taskflow-api/internal/core/domain"
	"github.com/taskflowpro/taskflow-api/internal/infra/config"
	"github.com/taskflowpro/taskflow-api/internal/infra/security"
	httproutes "github.com/taskflowpro/taskflow-api/internal/transport/http/routes"
	"github.com/taskflowpro/taskflow-api/internal/usecase"
	"github.com/taskflowpro/taskflow-api/internal/usecase/usecasetest"
)

type apiFixture struct {
	router   *gin.Engine
	notifier *usecasetest.Notifier
}

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("connection refused") }

func newAPI(t *testing.T) *apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := zaptest.NewLogger(t)
	users := usecasetest.NewUserRepo()
	notifier := &usecasetest.Notifier{}
	events := &usecasetest.Publisher{}

	tokens, err := security.NewTokenIssuer(security.TokenIssuerConfig{Secret: "routes-secret", Issuer: "taskflow-test", TTL: time.Hour})
	if err != nil {
		t.Fatalf("NewTokenIssuer: %v", err)
	}
	policy := security.NewPasswordPolicy(security.PasswordPolicyConfig{MinLength: 6})

	auth := usecase.NewAuthService(users, usecasetest.PlainHasher{}, tokens, policy, notifier, events, log)
	otp := usecase.NewOTPService(usecasetest.NewOTPRepo(), users, auth, notifier, usecase.OTPConfig{}, log)
	profiles := usecase.NewProfileService(users, log)
	tasks := usecase.NewTaskService(usecasetest.NewTaskRepo(), users, notifier, nil, 0, log)

	cfg := &config.AppConfig{App: config.AppSettings{Env: "test", Version: "1.0.0"}}

	router := httproutes.Register(httproutes.Dependencies{
		Config:   cfg,
		Logger:   log,
		Services: httproutes.ServiceSet{Auth: auth, OTP: otp, Profiles: profiles, Tasks: tasks},
		Database: failingPinger{},
	})

	return &apiFixture{router: router, notifier: notifier}
}

func (f *apiFixture) do(t *testing.T, method, path, token string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	var payload bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&payload).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &payload)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)

	var decoded map[string]any
	if rr.Body.Len() > 0 && rr.Body.Bytes()[0] == '{' {
		if err := json.Unmarshal(rr.Body.Bytes(), &decoded); err != nil {
			t.Fatalf("%s %s: decode response: %v", method, path, err)
		}
	}
	return rr, decoded
}

func (f *apiFixture) register(t *testing.T, email string) string {
	t.Helper()
	rr, body := f.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"full_name": "Ada Lovelace",
		"email":     email,
		"password":  "analytical",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("register: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	token, _ := body["access_token"].(string)
	if token == "" || body["token_type"] != "bearer" {
		t.Fatalf("register: unexpected body %v", body)
	}
	return token
}

func expectError(t *testing.T, rr *httptest.ResponseRecorder, body map[string]any, status int, detail string) {
	t.Helper()
	if rr.Code != status {
		t.Fatalf("expected %d, got %d: %s", status, rr.Code, rr.Body.String())
	}
	if body["detail"] != detail || body["error"] != detail {
		t.Fatalf("expected detail %q, got %v", detail, body)
	}
}

func TestServiceEndpoints(t *testing.T) {
	f := newAPI(t)

	rr, body := f.do(t, http.MethodGet, "/", "", nil)
	if rr.Code != http.StatusOK || body["message"] != "TaskFlow Pro API" || body["version"] != "1.0.0" || body["status"] != "active" {
		t.Fatalf("unexpected info response %d %v", rr.Code, body)
	}

	rr, body = f.do(t, http.MethodGet, "/api/health", "", nil)
	if rr.Code != http.StatusOK || body["status"] != "healthy" || body["timestamp"] == nil {
		t.Fatalf("unexpected health response %d %v", rr.Code, body)
	}

	if rr, _ = f.do(t, http.MethodGet, "/healthz", "", nil); rr.Code != http.StatusOK {
		t.Fatalf("expected liveness 200, got %d", rr.Code)
	}

	rr, body = f.do(t, http.MethodGet, "/readyz", "", nil)
	if rr.Code != http.StatusServiceUnavailable || body["status"] != "unavailable" {
		t.Fatalf("expected failing readiness, got %d %v", rr.Code, body)
	}
}

func TestPasswordAuthEndpoints(t *testing.T) {
	f := newAPI(t)
	token := f.register(t, "ada@example.com")

	rr, body := f.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"full_name": "Impostor", "email": "ada@example.com", "password": "analytical",
	})
	expectError(t, rr, body, http.StatusConflict, "Email already registered")

	rr, body = f.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "ada@example.com", "password": "wrong-password"})
	expectError(t, rr, body, http.StatusBadRequest, "Incorrect email or password")

	rr, body = f.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "ada@example.com", "password": "analytical"})
	if rr.Code != http.StatusOK || body["access_token"] == "" {
		t.Fatalf("expected login to succeed, got %d %v", rr.Code, body)
	}

	rr, body = f.do(t, http.MethodGet, "/api/auth/me", token, nil)
	if rr.Code != http.StatusOK || body["email"] != "ada@example.com" || body["fullName"] != "Ada Lovelace" {
		t.Fatalf("unexpected me response %d %v", rr.Code, body)
	}

	if rr, _ = f.do(t, http.MethodGet, "/api/auth/me", "", nil); rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rr.Code)
	}

	rr, body = f.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{"email": "not-an-email"})
	expectError(t, rr, body, http.StatusBadRequest, "Invalid request payload")
}

func TestOTPSignupEndpoints(t *testing.T) {
	f := newAPI(t)
	signup := map[string]any{"full_name": "Grace Hopper", "email": "grace@example.com", "password": "compiler"}

	rr, body := f.do(t, http.MethodPost, "/api/auth/request-signup-otp", "", signup)
	if rr.Code != http.StatusOK || body["message"] != "OTP sent to your email for signup verification" {
		t.Fatalf("unexpected request response %d %v", rr.Code, body)
	}
	otpID, _ := body["otpId"].(float64)
	if otpID == 0 || body["expiresAt"] == nil {
		t.Fatalf("expected otpId and expiresAt, got %v", body)
	}

	sent, ok := f.notifier.Last(domain.NotificationSignupOTP)
	if !ok {
		t.Fatal("expected signup code email")
	}

	verify := map[string]any{"otp_id": int64(otpID), "code": sent.Code}
	for k, v := range signup {
		verify[k] = v
	}

	rr, body = f.do(t, http.MethodPost, "/api/auth/verify-signup-otp", "", verify)
	if rr.Code != http.StatusOK || body["token_type"] != "bearer" {
		t.Fatalf("unexpected verify response %d %v", rr.Code, body)
	}
	user, _ := body["user"].(map[string]any)
	if user["email"] != "grace@example.com" {
		t.Fatalf("unexpected user %v", user)
	}

	rr, body = f.do(t, http.MethodPost, "/api/auth/verify-signup-otp", "", verify)
	expectError(t, rr, body, http.StatusBadRequest, "Invalid or expired OTP")

	rr, body = f.do(t, http.MethodPost, "/api/auth/resend-otp", "", map[string]any{"otp_id": int64(otpID)})
	expectError(t, rr, body, http.StatusBadRequest, "OTP expired. Please start again.")

	rr, body = f.do(t, http.MethodPost, "/api/auth/request-signup-otp", "", signup)
	expectError(t, rr, body, http.StatusConflict, "Email already registered")
}

func TestOTPLoginEndpoints(t *testing.T) {
	f := newAPI(t)
	f.register(t, "ada@example.com")

	rr, body := f.do(t, http.MethodPost, "/api/auth/request-login-otp", "", map[string]string{"email": "ada@example.com", "password": "nope-nope"})
	expectError(t, rr, body, http.StatusBadRequest, "Incorrect email or password")

	rr, body = f.do(t, http.MethodPost, "/api/auth/request-login-otp", "", map[string]string{"email": "ada@example.com", "password": "analytical"})
	if rr.Code != http.StatusOK || body["message"] != "OTP sent to your email for login verification" {
		t.Fatalf("unexpected request response %d %v", rr.Code, body)
	}
	otpID := int64(body["otpId"].(float64))

	rr, body = f.do(t, http.MethodPost, "/api/auth/resend-otp", "", map[string]any{"otp_id": otpID})
	if rr.Code != http.StatusOK || body["message"] != "OTP resent to your email" {
		t.Fatalf("unexpected resend response %d %v", rr.Code, body)
	}

	sent, _ := f.notifier.Last(domain.NotificationLoginOTP)
	rr, body = f.do(t, http.MethodPost, "/api/auth/verify-login-otp", "", map[string]any{"otp_id": otpID, "code": sent.Code})
	if rr.Code != http.StatusOK || body["access_token"] == "" {
		t.Fatalf("unexpected verify response %d %v", rr.Code, body)
	}

	rr, body = f.do(t, http.MethodPost, "/api/auth/verify-login-otp", "", map[string]any{"otp_id": otpID, "code": sent.Code})
	expectError(t, rr, body, http.StatusBadRequest, "Invalid or expired OTP")
}

func TestProfileEndpoints(t *testing.T) {
	f := newAPI(t)
	token := f.register(t, "ada@example.com")
	f.register(t, "grace@example.com")

	rr, body := f.do(t, http.MethodGet, "/api/auth/profile", token, nil)
	user, _ := body["user"].(map[string]any)
	if rr.Code != http.StatusOK || user["email"] != "ada@example.com" {
		t.Fatalf("unexpected profile %d %v", rr.Code, body)
	}

	rr, body = f.do(t, http.MethodPut, "/api/auth/profile", token, map[string]string{"full_name": "  "})
	expectError(t, rr, body, http.StatusBadRequest, "No fields to update")

	rr, body = f.do(t, http.MethodPut, "/api/auth/profile", token, map[string]string{"email": "grace@example.com"})
	expectError(t, rr, body, http.StatusConflict, "Email already taken")

	rr, body = f.do(t, http.MethodPut, "/api/auth/profile", token, map[string]string{"full_name": "Countess of Lovelace"})
	user, _ = body["user"].(map[string]any)
	if rr.Code != http.StatusOK || body["message"] != "Profile updated successfully" || user["fullName"] != "Countess of Lovelace" {
		t.Fatalf("unexpected update %d %v", rr.Code, body)
	}
}

func TestTaskEndpoints(t *testing.T) {
	f := newAPI(t)
	ada := f.register(t, "ada@example.com")
	grace := f.register(t, "grace@example.com")

	rr, body := f.do(t, http.MethodPost, "/api/tasks", ada, map[string]any{
		"title": "Write report", "description": "Q4", "due_date": "2025-11-01",
	})
	if rr.Code != http.StatusOK || body["priority"] != "medium" || body["status"] != "in_progress" || body["due_date"] != "2025-11-01" {
		t.Fatalf("unexpected create %d %v", rr.Code, body)
	}
	taskPath := fmt.Sprintf("/api/tasks/%d", int64(body["id"].(float64)))

	rr, body = f.do(t, http.MethodPost, "/api/tasks", ada, map[string]any{"title": "Bad", "priority": "urgent"})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected invalid priority to be rejected, got %d %v", rr.Code, body)
	}

	rr, body = f.do(t, http.MethodGet, taskPath, grace, nil)
	expectError(t, rr, body, http.StatusNotFound, "Task not found")

	for i := 0; i < 2; i++ {
		rr, body = f.do(t, http.MethodPut, taskPath, ada, map[string]any{"status": "completed", "due_date": nil})
		if rr.Code != http.StatusOK || body["status"] != "completed" || body["due_date"] != nil {
			t.Fatalf("unexpected update %d %v", rr.Code, body)
		}
	}
	if got := len(f.notifier.OfKind(domain.NotificationTaskCompleted)); got != 1 {
		t.Fatalf("expected one completion email, got %d", got)
	}

	rr, _ = f.do(t, http.MethodGet, "/api/tasks", ada, nil)
	var list []map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &list); err != nil || len(list) != 1 {
		t.Fatalf("unexpected list %d %s", rr.Code, rr.Body.String())
	}

	rr, body = f.do(t, http.MethodDelete, taskPath, ada, nil)
	if rr.Code != http.StatusOK || body["deleted"] != true || body["message"] != "Task deleted successfully" {
		t.Fatalf("unexpected delete %d %v", rr.Code, body)
	}

	rr, body = f.do(t, http.MethodDelete, taskPath, ada, nil)
	expectError(t, rr, body, http.StatusNotFound, "Task not found")

	if rr, _ = f.do(t, http.MethodGet, "/api/tasks", "", nil); rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rr.Code)
	}
}
