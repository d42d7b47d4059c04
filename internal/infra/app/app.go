package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/taskflowpro/taskflow-api/internal/core/port"
	"github.com/taskflowpro/taskflow-api/internal/infra/config"
	"github.com/taskflowpro/taskflow-api/internal/infra/database"
	kafkainfra "github.com/taskflowpro/taskflow-api/internal/infra/kafka"
	"github.com/taskflowpro/taskflow-api/internal/infra/logger"
	"github.com/taskflowpro/taskflow-api/internal/infra/mailer"
	redisinfra "github.com/taskflowpro/taskflow-api/internal/infra/redis"
	"github.com/taskflowpro/taskflow-api/internal/infra/security"
	"github.com/taskflowpro/taskflow-api/internal/infra/telemetry"
	postgresrepo "github.com/taskflowpro/taskflow-api/internal/repository/postgres"
	redisrepo "github.com/taskflowpro/taskflow-api/internal/repository/redis"
	"github.com/taskflowpro/taskflow-api/internal/transport/http/middleware"
	"github.com/taskflowpro/taskflow-api/internal/transport/http/routes"
	"github.com/taskflowpro/taskflow-api/internal/usecase"
)

const defaultShutdownTimeout = 10 * time.Second

// Application owns every long-lived resource of the API process.
type Application struct {
	cfg       *config.AppConfig
	engine    *gin.Engine
	logger    *zap.Logger
	pool      *pgxpool.Pool
	redis     *redisinfra.Client
	producer  *kafkainfra.Producer
	tracer    *telemetry.TracerProvider
	notifier  *usecase.NotificationService
	reminders *usecase.ReminderService
	otps      *usecase.OTPService
}

func New(ctx context.Context, cfg *config.AppConfig) (*Application, error) {
	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	a := &Application{cfg: cfg, logger: log}
	ok := false
	defer func() {
		if !ok {
			a.release(context.Background())
		}
	}()

	if cfg.Telemetry.OTLPEndpoint != "" {
		a.tracer, err = telemetry.NewTracerProvider(ctx, cfg.Telemetry, cfg.App.Version, log)
		if err != nil {
			return nil, fmt.Errorf("init telemetry: %w", err)
		}
	}

	a.pool, err = database.NewPostgresPool(ctx, cfg.Postgres, log)
	if err != nil {
		return nil, fmt.Errorf("init postgres: %w", err)
	}
	if cfg.Postgres.AutoMigrate {
		if err := database.Migrate(ctx, a.pool, log); err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}

	a.redis, err = redisinfra.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		return nil, fmt.Errorf("init redis: %w", err)
	}

	hasher, err := security.NewPasswordHasher(security.Argon2Config{
		Memory:      cfg.Argon2.Memory,
		Iterations:  cfg.Argon2.Iterations,
		Parallelism: cfg.Argon2.Parallelism,
		SaltLength:  cfg.Argon2.SaltLength,
		KeyLength:   cfg.Argon2.KeyLength,
	})
	if err != nil {
		return nil, fmt.Errorf("configure argon2: %w", err)
	}

	tokens, err := security.NewTokenIssuer(security.TokenIssuerConfig{
		Secret: cfg.JWT.Secret,
		Issuer: cfg.JWT.Issuer,
		TTL:    cfg.JWT.AccessTokenTTL,
	})
	if err != nil {
		return nil, fmt.Errorf("init token issuer: %w", err)
	}
	if tokens.SecretGenerated() {
		log.Warn("jwt secret not configured, generated an ephemeral one; tokens will not survive a restart")
	}

	policy := security.NewPasswordPolicy(security.PasswordPolicyConfig{
		MinLength:      cfg.Password.MinLength,
		MinZxcvbnScore: cfg.Password.MinZxcvbnScore,
		RequireLetter:  cfg.Password.RequireLetter,
	})

	events := a.eventPublisher()

	mail, err := a.mailer()
	if err != nil {
		return nil, err
	}
	templates, err := mailer.NewTemplates(cfg.App.FrontendURL, cfg.OTP.TTL)
	if err != nil {
		return nil, fmt.Errorf("load mail templates: %w", err)
	}
	notificationMetrics, err := telemetry.NewNotificationMetrics(nil)
	if err != nil {
		return nil, fmt.Errorf("register notification metrics: %w", err)
	}
	a.notifier = usecase.NewNotificationService(usecase.NotificationConfig{
		Workers:     cfg.Notifications.Workers,
		QueueSize:   cfg.Notifications.QueueSize,
		SendTimeout: cfg.Notifications.SendTimeout,
	}, templates, mail, events, notificationMetrics, log)

	reminderQueue := redisrepo.NewReminderQueue(a.redis.Client(), cfg.Redis.ReminderPrefix)
	a.reminders = usecase.NewReminderService(reminderQueue, a.notifier, usecase.ReminderConfig{
		PollInterval: cfg.Reminder.PollInterval,
		BatchSize:    cfg.Reminder.BatchSize,
	}, log)

	repos := postgresrepo.NewRepositories(a.pool)

	authService := usecase.NewAuthService(repos.Users, hasher, tokens, policy, a.notifier, events, log)
	a.otps = usecase.NewOTPService(repos.OTPs, repos.Users, authService, a.notifier, usecase.OTPConfig{
		TTL:       cfg.OTP.TTL,
		Retention: cfg.OTP.Retention,
	}, log)
	profileService := usecase.NewProfileService(repos.Users, log)
	taskService := usecase.NewTaskService(repos.Tasks, repos.Users, a.notifier, a.reminders, cfg.Reminder.Delay, log)

	rateLimitWindow := cfg.RateLimit.WindowDuration
	if rateLimitWindow <= 0 {
		rateLimitWindow = time.Minute
	}
	rateLimitStore := redisrepo.NewRateLimitRepository(a.redis.Client(), redisrepo.SlidingWindowConfig{
		KeyPrefix: cfg.Redis.RateLimitPrefix,
		TTL:       rateLimitWindow * 2,
	})

	httpMetrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{})
	if err != nil {
		return nil, fmt.Errorf("register http metrics: %w", err)
	}

	a.engine = routes.Register(routes.Dependencies{
		Config:      cfg,
		Logger:      log,
		RateLimiter: middleware.NewRateLimiter(rateLimitStore, log),
		Metrics:     httpMetrics,
		Tracing:     a.tracer != nil,
		Database:    a.pool,
		Cache:       a.redis,
		Services: routes.ServiceSet{
			Auth:     authService,
			OTP:      a.otps,
			Profiles: profileService,
			Tasks:    taskService,
		},
	})

	ok = true
	return a, nil
}

func (a *Application) eventPublisher() port.EventPublisher {
	if len(a.cfg.Kafka.Brokers) == 0 {
		a.logger.Info("kafka brokers not configured, using stub publisher")
		return kafkainfra.NewStubPublisher(a.logger)
	}

	producer, err := kafkainfra.NewProducer(a.cfg.Kafka, a.logger)
	if err != nil {
		a.logger.Warn("failed to init kafka producer, using stub publisher", zap.Error(err))
		return kafkainfra.NewStubPublisher(a.logger)
	}
	a.producer = producer
	a.logger.Info("kafka event publisher initialized", zap.Strings("brokers", a.cfg.Kafka.Brokers))
	return kafkainfra.NewEventPublisher(producer, a.cfg.App, a.logger)
}

func (a *Application) mailer() (port.Mailer, error) {
	if a.cfg.SMTP.Host == "" {
		a.logger.Info("smtp host not configured, emails will only be logged")
		return mailer.NewLogMailer(a.logger), nil
	}
	smtpMailer, err := mailer.NewSMTPMailer(a.cfg.SMTP, a.logger)
	if err != nil {
		return nil, fmt.Errorf("init smtp mailer: %w", err)
	}
	return smtpMailer, nil
}

func (a *Application) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.cfg.App.Host, a.cfg.App.Port),
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       a.cfg.HTTP.ReadTimeout,
		WriteTimeout:      a.cfg.HTTP.WriteTimeout,
		IdleTimeout:       a.cfg.HTTP.IdleTimeout,
	}

	a.logger.Info("starting TaskFlow API",
		zap.String("env", a.cfg.App.Env),
		zap.String("version", a.cfg.App.Version),
		zap.String("address", srv.Addr),
	)

	bgCtx, stopBackground := context.WithCancel(context.Background())
	var background sync.WaitGroup
	background.Add(2)
	go func() {
		defer background.Done()
		a.reminders.Run(bgCtx)
	}()
	go func() {
		defer background.Done()
		a.purgeOTPs(bgCtx)
	}()

	serverErrCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- fmt.Errorf("run server: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-serverErrCh:
	}

	timeout := a.cfg.HTTP.ShutdownTimeout
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http shutdown failed", zap.Error(err))
		if runErr == nil {
			runErr = fmt.Errorf("shutdown server: %w", err)
		}
	}

	stopBackground()
	background.Wait()

	a.release(shutdownCtx)
	return runErr
}

func (a *Application) purgeOTPs(ctx context.Context) {
	interval := a.cfg.OTP.PurgeInterval
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := a.otps.PurgeExpired(ctx); err != nil && !errors.Is(err, context.Canceled) {
				a.logger.Warn("otp purge failed", zap.Error(err))
			}
		}
	}
}

// release closes resources in reverse dependency order. Queued emails are
// drained before the event producer goes away.
func (a *Application) release(ctx context.Context) {
	if a.notifier != nil {
		if err := a.notifier.Close(ctx); err != nil {
			a.logger.Warn("notification queue not drained", zap.Error(err))
		}
	}
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Warn("close kafka producer", zap.Error(err))
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("close redis", zap.Error(err))
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
	if a.tracer != nil {
		if err := a.tracer.Shutdown(ctx); err != nil {
			a.logger.Warn("shutdown tracer", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}
