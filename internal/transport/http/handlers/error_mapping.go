package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/taskflowpro/taskflow-api/internal/infra/logger"
)

// ErrorCase maps a sentinel error to an HTTP status code and response message.
// An empty Message exposes the error text itself, for validation errors whose
// wrapped detail is meant for the client.
type ErrorCase struct {
	Err     error
	Status  int
	Message string
}

// RespondWithMappedError resolves err against cases or falls back to a generic
// response. Fallbacks are logged since they usually mean a storage failure.
func RespondWithMappedError(c *gin.Context, log *zap.Logger, err error, cases []ErrorCase, fallbackStatus int, fallbackMessage string) {
	if err == nil {
		c.Status(http.StatusOK)
		return
	}

	for _, cs := range cases {
		if cs.Err == nil || !errors.Is(err, cs.Err) {
			continue
		}
		msg := cs.Message
		if msg == "" {
			msg = err.Error()
		}
		c.JSON(cs.Status, NewErrorResponse(c, msg))
		return
	}

	_ = c.Error(err)
	logger.FromContext(c.Request.Context(), log).Error(fallbackMessage, zap.Error(err))
	c.JSON(fallbackStatus, NewErrorResponse(c, fallbackMessage))
}

func respondBadRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, NewErrorResponse(c, msg))
}
