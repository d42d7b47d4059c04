package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/taskflowpro/taskflow-api/internal/core/domain"
	"github.com/taskflowpro/taskflow-api/internal/transport/http/middleware"
	"github.com/taskflowpro/taskflow-api/internal/usecase"
)

const (
	msgTaskNotFound = "Task not found"
	msgTaskDeleted  = "Task deleted successfully"
)

var (
	errInvalidDueDate = errors.New("due_date must be YYYY-MM-DD")

	taskErrorCases = []ErrorCase{
		{Err: usecase.ErrTaskNotFound, Status: http.StatusNotFound, Message: msgTaskNotFound},
		{Err: usecase.ErrInvalidTaskInput, Status: http.StatusBadRequest},
	}
)

// TaskHandler exposes the caller's task list.
type TaskHandler struct {
	tasks  *usecase.TaskService
	logger *zap.Logger
}

// NewTaskHandler constructs TaskHandler.
func NewTaskHandler(tasks *usecase.TaskService, log *zap.Logger) *TaskHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &TaskHandler{tasks: tasks, logger: log}
}

// RegisterRoutes binds task endpoints; the group must already require auth.
func (h *TaskHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("", h.List)
	r.POST("", h.Create)
	r.GET("/:id", h.Get)
	r.PUT("/:id", h.Update)
	r.DELETE("/:id", h.Delete)
}

// List returns the caller's tasks, newest first.
func (h *TaskHandler) List(c *gin.Context) {
	userID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, msgNotAuthenticated))
		return
	}

	tasks, err := h.tasks.List(c.Request.Context(), userID)
	if err != nil {
		RespondWithMappedError(c, h.logger, err, nil, http.StatusInternalServerError, "failed to list tasks")
		return
	}

	resp := make([]TaskResponse, 0, len(tasks))
	for _, task := range tasks {
		resp = append(resp, newTaskResponse(task))
	}
	c.JSON(http.StatusOK, resp)
}

// Get returns one task.
func (h *TaskHandler) Get(c *gin.Context) {
	userID, taskID, ok := h.identify(c)
	if !ok {
		return
	}

	task, err := h.tasks.Get(c.Request.Context(), userID, taskID)
	if err != nil {
		RespondWithMappedError(c, h.logger, err, taskErrorCases, http.StatusInternalServerError, "failed to load task")
		return
	}

	c.JSON(http.StatusOK, newTaskResponse(*task))
}

// Create adds a task for the caller.
func (h *TaskHandler) Create(c *gin.Context) {
	userID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, msgNotAuthenticated))
		return
	}

	var req TaskCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, msgInvalidPayload)
		return
	}

	due, err := parseDueDate(req.DueDate)
	if err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	task, err := h.tasks.Create(c.Request.Context(), userID, domain.TaskInput{
		Title:       req.Title,
		Description: req.Description,
		Priority:    domain.TaskPriority(strings.TrimSpace(req.Priority)),
		Status:      domain.TaskStatus(strings.TrimSpace(req.Status)),
		DueDate:     due,
	})
	if err != nil {
		RespondWithMappedError(c, h.logger, err, taskErrorCases, http.StatusInternalServerError, "failed to create task")
		return
	}

	c.JSON(http.StatusOK, newTaskResponse(*task))
}

// Update applies a partial update. Explicit nulls clear description and due_date.
func (h *TaskHandler) Update(c *gin.Context) {
	userID, taskID, ok := h.identify(c)
	if !ok {
		return
	}

	var req TaskUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, msgInvalidPayload)
		return
	}

	patch, err := req.patch()
	if err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	task, err := h.tasks.Update(c.Request.Context(), userID, taskID, patch)
	if err != nil {
		RespondWithMappedError(c, h.logger, err, taskErrorCases, http.StatusInternalServerError, "failed to update task")
		return
	}

	c.JSON(http.StatusOK, newTaskResponse(*task))
}

// Delete removes a task.
func (h *TaskHandler) Delete(c *gin.Context) {
	userID, taskID, ok := h.identify(c)
	if !ok {
		return
	}

	if _, err := h.tasks.Delete(c.Request.Context(), userID, taskID); err != nil {
		RespondWithMappedError(c, h.logger, err, taskErrorCases, http.StatusInternalServerError, "failed to delete task")
		return
	}

	c.JSON(http.StatusOK, TaskDeletedResponse{Message: msgTaskDeleted, Deleted: true})
}

func (h *TaskHandler) identify(c *gin.Context) (int64, int64, bool) {
	userID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, msgNotAuthenticated))
		return 0, 0, false
	}

	taskID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || taskID <= 0 {
		c.JSON(http.StatusNotFound, NewErrorResponse(c, msgTaskNotFound))
		return 0, 0, false
	}

	return userID, taskID, true
}

func (r TaskUpdateRequest) patch() (domain.TaskPatch, error) {
	patch := domain.TaskPatch{Title: r.Title}

	if r.Priority != nil {
		priority := domain.TaskPriority(strings.TrimSpace(*r.Priority))
		patch.Priority = &priority
	}
	if r.Status != nil {
		status := domain.TaskStatus(strings.TrimSpace(*r.Status))
		patch.Status = &status
	}
	if r.Description.Set {
		patch.Description = domain.Present(r.Description.Value)
	}
	if r.DueDate.Set {
		due, err := parseDueDate(r.DueDate.Value)
		if err != nil {
			return patch, err
		}
		patch.DueDate = domain.Present(due)
	}

	return patch, nil
}

// parseDueDate accepts a calendar date or an RFC 3339 timestamp, keeping
// only the date. Blank means no due date.
func parseDueDate(raw *string) (*time.Time, error) {
	if raw == nil {
		return nil, nil
	}
	value := strings.TrimSpace(*raw)
	if value == "" {
		return nil, nil
	}

	if day, err := time.Parse(domain.DateLayout, value); err == nil {
		return &day, nil
	}
	if ts, err := time.Parse(time.RFC3339, value); err == nil {
		day := time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC)
		return &day, nil
	}
	return nil, fmt.Errorf("%w, got %q", errInvalidDueDate, value)
}
