package handlers

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/taskflowpro/taskflow-api/internal/core/domain"
	"github.com/taskflowpro/taskflow-api/internal/usecase"
)

// ErrorResponse represents a generic error payload with trace ID for debugging.
// Detail repeats Error for clients that read the FastAPI-style field.
type ErrorResponse struct {
	Error   string `json:"error"`
	Detail  string `json:"detail"`
	TraceID string `json:"trace_id,omitempty"`
}

// NewErrorResponse creates an error response with trace ID from context
func NewErrorResponse(c *gin.Context, errorMsg string) ErrorResponse {
	traceID, _ := c.Get("trace_id")
	traceIDStr, _ := traceID.(string)

	return ErrorResponse{
		Error:   errorMsg,
		Detail:  errorMsg,
		TraceID: traceIDStr,
	}
}

// UserSummary is the public view of an account.
type UserSummary struct {
	ID       int64  `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"fullName"`
}

func newUserSummary(user domain.User) UserSummary {
	return UserSummary{ID: user.ID, Email: user.Email, FullName: user.FullName}
}

// RegisterRequest is the payload of password registration and signup OTP requests.
type RegisterRequest struct {
	FullName string `json:"full_name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

func (r RegisterRequest) credentials() usecase.Credentials {
	return usecase.Credentials{Email: r.Email, Password: r.Password, FullName: r.FullName}
}

// LoginRequest is the payload of password login and login OTP requests.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// AuthResponse is returned by every endpoint that signs a user in.
type AuthResponse struct {
	AccessToken string      `json:"access_token"`
	TokenType   string      `json:"token_type"`
	ExpiresAt   time.Time   `json:"expires_at"`
	User        UserSummary `json:"user"`
}

func newAuthResponse(result *usecase.AuthResult) AuthResponse {
	return AuthResponse{
		AccessToken: result.Token.Token,
		TokenType:   domain.AccessTokenType,
		ExpiresAt:   result.Token.ExpiresAt.UTC(),
		User:        newUserSummary(result.User),
	}
}

// VerifySignupOTPRequest completes an OTP signup.
type VerifySignupOTPRequest struct {
	OTPID    int64  `json:"otp_id" binding:"required"`
	Code     string `json:"code" binding:"required"`
	FullName string `json:"full_name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// VerifyLoginOTPRequest completes an OTP login.
type VerifyLoginOTPRequest struct {
	OTPID int64  `json:"otp_id" binding:"required"`
	Code  string `json:"code" binding:"required"`
}

// ResendOTPRequest asks for a fresh code on a pending challenge.
type ResendOTPRequest struct {
	OTPID int64 `json:"otp_id" binding:"required"`
}

// OTPIssuedResponse is returned when a challenge is created.
type OTPIssuedResponse struct {
	OTPID     int64     `json:"otpId"`
	ExpiresAt time.Time `json:"expiresAt"`
	Message   string    `json:"message"`
}

// OTPResentResponse is returned when a challenge code is rotated.
type OTPResentResponse struct {
	Message   string    `json:"message"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// ProfileUpdateRequest carries optional profile fields; blank values are ignored.
type ProfileUpdateRequest struct {
	FullName *string `json:"full_name"`
	Email    *string `json:"email" binding:"omitempty,email"`
}

// ProfileResponse wraps the caller's account.
type ProfileResponse struct {
	User    UserSummary `json:"user"`
	Message string      `json:"message,omitempty"`
}

// TaskCreateRequest is the payload for creating a task. due_date is YYYY-MM-DD.
type TaskCreateRequest struct {
	Title       string  `json:"title" binding:"required"`
	Description *string `json:"description"`
	Priority    string  `json:"priority"`
	Status      string  `json:"status"`
	DueDate     *string `json:"due_date"`
}

// TaskUpdateRequest distinguishes absent fields from explicit nulls so that
// description and due_date can be cleared.
type TaskUpdateRequest struct {
	Title       *string          `json:"title"`
	Description optional[string] `json:"description"`
	Priority    *string          `json:"priority"`
	Status      *string          `json:"status"`
	DueDate     optional[string] `json:"due_date"`
}

// TaskResponse is the wire form of a task.
type TaskResponse struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description *string   `json:"description"`
	Priority    string    `json:"priority"`
	Status      string    `json:"status"`
	DueDate     *string   `json:"due_date"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	UserID      int64     `json:"user_id"`
}

func newTaskResponse(task domain.Task) TaskResponse {
	resp := TaskResponse{
		ID:          task.ID,
		Title:       task.Title,
		Description: task.Description,
		Priority:    string(task.Priority),
		Status:      string(task.Status),
		CreatedAt:   task.CreatedAt.UTC(),
		UpdatedAt:   task.UpdatedAt.UTC(),
		UserID:      task.UserID,
	}
	if task.DueDate != nil {
		due := task.DueDate.Format(domain.DateLayout)
		resp.DueDate = &due
	}
	return resp
}

// TaskDeletedResponse confirms a deletion.
type TaskDeletedResponse struct {
	Message string `json:"message"`
	Deleted bool   `json:"deleted"`
}

// ServiceInfoResponse describes the API at its root path.
type ServiceInfoResponse struct {
	Message string `json:"message"`
	Version string `json:"version"`
	Status  string `json:"status"`
}

// HealthResponse describes the service health payload.
type HealthResponse struct {
	Status    string     `json:"status"`
	StartedAt *time.Time `json:"started_at,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}

// ReadyResponse describes readiness probe results with dependency checks.
type ReadyResponse struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// optional records whether a JSON field was present at all; an explicit
// null leaves Value nil with Set true.
type optional[T any] struct {
	Set   bool
	Value *T
}

func (o *optional[T]) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		o.Value = nil
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	o.Value = &v
	return nil
}
