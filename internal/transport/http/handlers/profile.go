package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/taskflowpro/taskflow-api/internal/core/domain"
	"github.com/taskflowpro/taskflow-api/internal/transport/http/middleware"
	"github.com/taskflowpro/taskflow-api/internal/usecase"
)

const (
	msgProfileUpdated = "Profile updated successfully"
	msgEmailTaken     = "Email already taken"
	msgNoFields       = "No fields to update"
)

// ProfileHandler lets users read and edit their own account.
type ProfileHandler struct {
	profiles *usecase.ProfileService
	logger   *zap.Logger
}

// NewProfileHandler constructs ProfileHandler.
func NewProfileHandler(profiles *usecase.ProfileService, log *zap.Logger) *ProfileHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &ProfileHandler{profiles: profiles, logger: log}
}

// Get returns the caller's profile.
func (h *ProfileHandler) Get(c *gin.Context) {
	userID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, msgNotAuthenticated))
		return
	}

	user, err := h.profiles.GetProfile(c.Request.Context(), userID)
	if err != nil {
		RespondWithMappedError(c, h.logger, err, []ErrorCase{
			{Err: usecase.ErrUserNotFound, Status: http.StatusNotFound, Message: msgUserNotFound},
		}, http.StatusInternalServerError, "failed to load profile")
		return
	}

	c.JSON(http.StatusOK, ProfileResponse{User: newUserSummary(*user)})
}

// Update applies the non-blank fields of the request.
func (h *ProfileHandler) Update(c *gin.Context) {
	userID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, msgNotAuthenticated))
		return
	}

	var req ProfileUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, msgInvalidPayload)
		return
	}

	user, err := h.profiles.UpdateProfile(c.Request.Context(), userID, domain.ProfilePatch{
		FullName: req.FullName,
		Email:    req.Email,
	})
	if err != nil {
		RespondWithMappedError(c, h.logger, err, []ErrorCase{
			{Err: usecase.ErrNoFieldsToUpdate, Status: http.StatusBadRequest, Message: msgNoFields},
			{Err: usecase.ErrEmailTaken, Status: http.StatusConflict, Message: msgEmailTaken},
			{Err: usecase.ErrUserNotFound, Status: http.StatusNotFound, Message: msgUserNotFound},
		}, http.StatusInternalServerError, "failed to update profile")
		return
	}

	c.JSON(http.StatusOK, ProfileResponse{User: newUserSummary(*user), Message: msgProfileUpdated})
}
