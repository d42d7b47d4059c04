package middleware

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/taskflowpro/taskflow-api/internal/core/port"
	appLogger "github.com/taskflowpro/taskflow-api/internal/infra/logger"
)

// IdentifierFunc extracts the caller identity a limit is counted against.
type IdentifierFunc func(*gin.Context) (string, bool)

// RateLimitRule is a sliding-window limit for one route.
type RateLimitRule struct {
	Name       string
	Limit      int
	Window     time.Duration
	Identifier IdentifierFunc
}

// RateLimitedResponse is the 429 body. Error and detail carry the same text,
// like every other error the API returns.
type RateLimitedResponse struct {
	Error      string `json:"error"`
	Detail     string `json:"detail"`
	TraceID    string `json:"trace_id,omitempty"`
	RetryAfter int    `json:"retry_after"`
}

// RateLimiter counts attempts in a shared store so limits hold across replicas.
// Store failures let the request through.
type RateLimiter struct {
	store  port.RateLimitStore
	logger *zap.Logger
	now    func() time.Time
}

type windowDecision struct {
	allowed   bool
	remaining int
	resetAt   time.Time
}

// NewRateLimiter builds a limiter over store.
func NewRateLimiter(store port.RateLimitStore, logger *zap.Logger) *RateLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RateLimiter{store: store, logger: logger, now: time.Now}
}

// WithClock replaces the limiter's clock.
func (rl *RateLimiter) WithClock(now func() time.Time) *RateLimiter {
	if now != nil {
		rl.now = now
	}
	return rl
}

// ClientIPIdentifier counts attempts per client IP.
func ClientIPIdentifier() IdentifierFunc {
	return func(c *gin.Context) (string, bool) {
		ip := c.ClientIP()
		return ip, ip != ""
	}
}

// RateLimit enforces rule. Disabled rules (no limit, window or identifier)
// pass every request through.
func (rl *RateLimiter) RateLimit(rule RateLimitRule) gin.HandlerFunc {
	if rule.Name == "" {
		rule.Name = "default"
	}
	if rl.store == nil || rule.Identifier == nil || rule.Limit <= 0 || rule.Window <= 0 {
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		identifier, ok := rule.Identifier(c)
		if !ok {
			c.Next()
			return
		}

		log := appLogger.FromContext(c.Request.Context(), rl.logger).With(
			zap.String("rule", rule.Name),
			zap.String("identifier", appLogger.MaskIP(identifier)),
		)

		now := rl.now()
		decision, err := rl.decide(c.Request.Context(), rule, rule.Name+":"+identifier, now)
		if err != nil {
			log.Warn("rate limit check failed", zap.Error(err))
			c.Next()
			return
		}

		retryAfter := secondsUntil(decision.resetAt, now)
		headers := c.Writer.Header()
		headers.Set("X-RateLimit-Limit", strconv.Itoa(rule.Limit))
		headers.Set("X-RateLimit-Remaining", strconv.Itoa(decision.remaining))
		headers.Set("X-RateLimit-Reset", strconv.FormatInt(decision.resetAt.Unix(), 10))

		if decision.allowed {
			c.Next()
			return
		}

		headers.Set("Retry-After", strconv.Itoa(retryAfter))
		log.Info("rate limit exceeded", zap.Int("retry_after", retryAfter))

		msg := fmt.Sprintf("Too many attempts. Try again in %d seconds.", retryAfter)
		c.AbortWithStatusJSON(http.StatusTooManyRequests, RateLimitedResponse{
			Error:      msg,
			Detail:     msg,
			TraceID:    GetTraceID(c),
			RetryAfter: retryAfter,
		})
	}
}

// decide trims the window, then records the attempt only when it fits. The
// window resets when its oldest attempt ages out.
func (rl *RateLimiter) decide(ctx context.Context, rule RateLimitRule, key string, now time.Time) (windowDecision, error) {
	if err := rl.store.TrimWindow(ctx, key, rule.Window, now); err != nil {
		return windowDecision{}, err
	}
	count, err := rl.store.CountAttempts(ctx, key, rule.Window, now)
	if err != nil {
		return windowDecision{}, err
	}
	oldest, hasAttempts, err := rl.store.OldestAttempt(ctx, key, rule.Window, now)
	if err != nil {
		return windowDecision{}, err
	}

	decision := windowDecision{resetAt: now.Add(rule.Window)}
	if hasAttempts {
		decision.resetAt = oldest.Add(rule.Window)
	}
	if count >= rule.Limit {
		return decision, nil
	}

	if err := rl.store.RecordAttempt(ctx, key, now); err != nil {
		return windowDecision{}, err
	}
	decision.allowed = true
	decision.remaining = max(rule.Limit-count-1, 0)
	return decision, nil
}

func secondsUntil(at, now time.Time) int {
	return max(int(math.Ceil(at.Sub(now).Seconds())), 0)
}
