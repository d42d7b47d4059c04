package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/taskflowpro/taskflow-api/internal/transport/http/middleware"
	"github.com/taskflowpro/taskflow-api/internal/usecase"
)

const (
	msgEmailRegistered    = "Email already registered"
	msgIncorrectLogin     = "Incorrect email or password"
	msgUserNotFound       = "User not found"
	msgInvalidPayload     = "Invalid request payload"
	msgNotAuthenticated   = "Not authenticated"
	msgInternalAuthFailed = "Authentication failed"
)

// credentialErrorCases covers the validation failures shared by every flow
// that accepts a new password.
var credentialErrorCases = []ErrorCase{
	{Err: usecase.ErrEmailTaken, Status: http.StatusConflict, Message: msgEmailRegistered},
	{Err: usecase.ErrInvalidInput, Status: http.StatusBadRequest},
	{Err: usecase.ErrPasswordPolicyViolation, Status: http.StatusBadRequest},
}

// AuthHandler exposes password registration, login and the current-user endpoint.
type AuthHandler struct {
	auth   *usecase.AuthService
	logger *zap.Logger
}

// NewAuthHandler constructs AuthHandler.
func NewAuthHandler(auth *usecase.AuthService, log *zap.Logger) *AuthHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthHandler{auth: auth, logger: log}
}

// Register creates an account and signs the user in.
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, msgInvalidPayload)
		return
	}

	result, err := h.auth.Register(c.Request.Context(), req.credentials())
	if err != nil {
		RespondWithMappedError(c, h.logger, err, credentialErrorCases, http.StatusInternalServerError, "failed to register user")
		return
	}

	c.JSON(http.StatusOK, newAuthResponse(result))
}

// Login signs a user in with email and password.
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, msgInvalidPayload)
		return
	}

	result, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		RespondWithMappedError(c, h.logger, err, []ErrorCase{
			{Err: usecase.ErrInvalidCredentials, Status: http.StatusBadRequest, Message: msgIncorrectLogin},
		}, http.StatusInternalServerError, msgInternalAuthFailed)
		return
	}

	c.JSON(http.StatusOK, newAuthResponse(result))
}

// Me returns the authenticated user.
func (h *AuthHandler) Me(c *gin.Context) {
	userID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, msgNotAuthenticated))
		return
	}

	user, err := h.auth.Me(c.Request.Context(), userID)
	if err != nil {
		RespondWithMappedError(c, h.logger, err, []ErrorCase{
			{Err: usecase.ErrUserNotFound, Status: http.StatusNotFound, Message: msgUserNotFound},
		}, http.StatusInternalServerError, "failed to load user")
		return
	}

	c.JSON(http.StatusOK, newUserSummary(*user))
}
