package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	serviceTitle    = "TaskFlow Pro API"
	readinessBudget = 2 * time.Second
)

// ReadinessCheck probes one dependency.
type ReadinessCheck func(ctx context.Context) error

// HealthOption configures optional HealthHandler behaviour.
type HealthOption func(*HealthHandler)

type namedCheck struct {
	name  string
	check ReadinessCheck
}

// WithReadinessCheck adds a dependency probe to /readyz.
func WithReadinessCheck(name string, check ReadinessCheck) HealthOption {
	return func(h *HealthHandler) {
		if check != nil {
			h.checks = append(h.checks, namedCheck{name: name, check: check})
		}
	}
}

// HealthHandler exposes liveness, readiness and service information.
type HealthHandler struct {
	version   string
	startedAt time.Time
	checks    []namedCheck
	now       func() time.Time
}

// NewHealthHandler builds a new health handler instance.
func NewHealthHandler(version string, opts ...HealthOption) *HealthHandler {
	h := &HealthHandler{version: version, startedAt: time.Now().UTC(), now: time.Now}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Info describes the API at "/".
func (h *HealthHandler) Info(c *gin.Context) {
	c.JSON(http.StatusOK, ServiceInfoResponse{
		Message: serviceTitle,
		Version: h.version,
		Status:  "active",
	})
}

// Health answers the client-facing /api/health probe.
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:    "healthy",
		Timestamp: h.now().UTC(),
	})
}

// Status is the liveness probe.
func (h *HealthHandler) Status(c *gin.Context) {
	started := h.startedAt
	c.JSON(http.StatusOK, HealthResponse{
		Status:    "ok",
		StartedAt: &started,
		Timestamp: h.now().UTC(),
	})
}

// Readiness runs every dependency probe and reports 503 if any fails.
func (h *HealthHandler) Readiness(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), readinessBudget)
	defer cancel()

	status := http.StatusOK
	resp := ReadyResponse{Status: "ready", Checks: make(map[string]string, len(h.checks))}
	for _, nc := range h.checks {
		if err := nc.check(ctx); err != nil {
			resp.Checks[nc.name] = err.Error()
			resp.Status = "unavailable"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[nc.name] = "ok"
	}
	resp.Timestamp = h.now().UTC()

	c.JSON(status, resp)
}
