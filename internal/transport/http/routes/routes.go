package routes

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/taskflowpro/taskflow-api/internal/infra/config"
	"github.com/taskflowpro/taskflow-api/internal/transport/http/handlers"
	"github.com/taskflowpro/taskflow-api/internal/transport/http/middleware"
	"github.com/taskflowpro/taskflow-api/internal/usecase"
)

// ServiceSet groups the services the HTTP layer depends on.
type ServiceSet struct {
	Auth     *usecase.AuthService
	OTP      *usecase.OTPService
	Profiles *usecase.ProfileService
	Tasks    *usecase.TaskService
}

// Dependencies encapsulates the objects required to register routes.
type Dependencies struct {
	Config      *config.AppConfig
	Logger      *zap.Logger
	RateLimiter *middleware.RateLimiter
	Metrics     *middleware.HTTPMetrics
	Tracing     bool
	Services    ServiceSet
	Database    DatabaseChecker
	Cache       CacheChecker
}

// DatabaseChecker exposes readiness behaviour for database connections.
type DatabaseChecker interface {
	Ping(ctx context.Context) error
}

// CacheChecker exposes readiness behaviour for cache backends.
type CacheChecker interface {
	HealthCheck(ctx context.Context) error
}

// Register configures the Gin engine with routes and middleware.
func Register(deps Dependencies) *gin.Engine {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Config.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	if deps.Tracing {
		r.Use(middleware.Tracing(deps.Config.Telemetry.ServiceName))
	}
	r.Use(middleware.EnrichContext())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(deps.Logger))
	r.Use(deps.Metrics.Handler())
	originPattern, err := deps.Config.HTTP.CORSOriginPattern()
	if err != nil {
		deps.Logger.Warn("cors origin regex ignored", zap.Error(err))
	}
	r.Use(middleware.CORS(deps.Config.HTTP.CORSAllowedOrigins, originPattern))

	healthOptions := make([]handlers.HealthOption, 0, 2)
	if deps.Database != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("database", deps.Database.Ping))
	}
	if deps.Cache != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("redis", deps.Cache.HealthCheck))
	}
	healthHandler := handlers.NewHealthHandler(deps.Config.App.Version, healthOptions...)

	r.GET("/", healthHandler.Info)
	r.GET("/healthz", healthHandler.Status)
	r.GET("/readyz", healthHandler.Readiness)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	api.GET("/health", healthHandler.Health)

	if deps.Services.Auth == nil {
		return r
	}

	requireAuth := middleware.RequireAuth(deps.Services.Auth)
	limits := deps.Config.RateLimit

	authGroup := api.Group("/auth")
	{
		authHandler := handlers.NewAuthHandler(deps.Services.Auth, deps.Logger)
		authGroup.POST("/register", chain(rateLimit(deps, "auth_register_ip", limits.RegisterMaxAttempts), authHandler.Register)...)
		authGroup.POST("/login", chain(rateLimit(deps, "auth_login_ip", limits.LoginMaxAttempts), authHandler.Login)...)
		authGroup.GET("/me", requireAuth, authHandler.Me)

		if deps.Services.OTP != nil {
			otpHandler := handlers.NewOTPHandler(deps.Services.OTP, deps.Logger)
			otpLimit := rateLimit(deps, "auth_otp_ip", limits.OTPMaxAttempts)
			authGroup.POST("/request-signup-otp", chain(otpLimit, otpHandler.RequestSignup)...)
			authGroup.POST("/verify-signup-otp", chain(otpLimit, otpHandler.VerifySignup)...)
			authGroup.POST("/request-login-otp", chain(otpLimit, otpHandler.RequestLogin)...)
			authGroup.POST("/verify-login-otp", chain(otpLimit, otpHandler.VerifyLogin)...)
			authGroup.POST("/resend-otp", chain(rateLimit(deps, "auth_otp_resend_ip", limits.ResendMaxAttempts), otpHandler.Resend)...)
		}

		if deps.Services.Profiles != nil {
			profileHandler := handlers.NewProfileHandler(deps.Services.Profiles, deps.Logger)
			authGroup.GET("/profile", requireAuth, profileHandler.Get)
			authGroup.PUT("/profile", requireAuth, profileHandler.Update)
		}
	}

	if deps.Services.Tasks != nil {
		taskGroup := api.Group("/tasks")
		taskGroup.Use(requireAuth)
		handlers.NewTaskHandler(deps.Services.Tasks, deps.Logger).RegisterRoutes(taskGroup)
	}

	return r
}

func chain(limit gin.HandlerFunc, handler gin.HandlerFunc) []gin.HandlerFunc {
	if limit == nil {
		return []gin.HandlerFunc{handler}
	}
	return []gin.HandlerFunc{limit, handler}
}

// rateLimit builds a per-IP sliding-window limiter, or nil when limiting is
// disabled for the rule.
func rateLimit(deps Dependencies, name string, limit int) gin.HandlerFunc {
	if deps.RateLimiter == nil || limit <= 0 {
		return nil
	}

	window := deps.Config.RateLimit.WindowDuration
	if window <= 0 {
		window = time.Minute
	}

	return deps.RateLimiter.RateLimit(middleware.RateLimitRule{
		Name:       name,
		Limit:      limit,
		Window:     window,
		Identifier: middleware.ClientIPIdentifier(),
	})
}
