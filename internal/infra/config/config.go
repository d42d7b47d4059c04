package config

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type AppConfig struct {
	App           AppSettings          `mapstructure:"app"`
	HTTP          HTTPSettings         `mapstructure:"http"`
	Postgres      PostgresSettings     `mapstructure:"postgres"`
	Redis         RedisSettings        `mapstructure:"redis"`
	Kafka         KafkaSettings        `mapstructure:"kafka"`
	JWT           JWTSettings          `mapstructure:"jwt"`
	OTP           OTPSettings          `mapstructure:"otp"`
	Reminder      ReminderSettings     `mapstructure:"reminder"`
	Notifications NotificationSettings `mapstructure:"notifications"`
	SMTP          SMTPSettings         `mapstructure:"smtp"`
	Telemetry     TelemetrySettings    `mapstructure:"telemetry"`
	RateLimit     RateLimitSettings    `mapstructure:"rate_limit"`
	Argon2        Argon2Settings       `mapstructure:"argon2"`
	Password      PasswordSettings     `mapstructure:"password"`
}

type AppSettings struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Env         string `mapstructure:"env"`
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	FrontendURL string `mapstructure:"frontend_url"`
}

// HTTPSettings configures the HTTP server surface.
type HTTPSettings struct {
	CORSAllowedOrigins     []string      `mapstructure:"cors_allowed_origins"`
	CORSAllowedOriginRegex string        `mapstructure:"cors_allowed_origin_regex"`
	ReadTimeout            time.Duration `mapstructure:"read_timeout"`
	WriteTimeout           time.Duration `mapstructure:"write_timeout"`
	IdleTimeout            time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout        time.Duration `mapstructure:"shutdown_timeout"`
}

// CORSOriginPattern compiles the origin regex so that it must match the whole
// Origin header. An empty setting returns nil.
func (s HTTPSettings) CORSOriginPattern() (*regexp.Regexp, error) {
	pattern := strings.TrimSpace(s.CORSAllowedOriginRegex)
	if pattern == "" {
		return nil, nil
	}
	re, err := regexp.Compile("^(?:" + pattern + ")$")
	if err != nil {
		return nil, fmt.Errorf("invalid cors origin regex %q: %w", pattern, err)
	}
	return re, nil
}

type PostgresSettings struct {
	URL               string        `mapstructure:"url"`
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	User              string        `mapstructure:"user"`
	Password          string        `mapstructure:"password"`
	Database          string        `mapstructure:"database"`
	SSLMode           string        `mapstructure:"ssl_mode"`
	MaxConns          int32         `mapstructure:"max_conns"`
	MinConns          int32         `mapstructure:"min_conns"`
	MaxConnLifetime   time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime   time.Duration `mapstructure:"max_conn_idle_time"`
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
	AutoMigrate       bool          `mapstructure:"auto_migrate"`
}

// DSN returns the connection string, preferring an explicit URL.
func (s PostgresSettings) DSN() string {
	if strings.TrimSpace(s.URL) != "" {
		return s.URL
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(s.User, s.Password),
		Host:     fmt.Sprintf("%s:%d", s.Host, s.Port),
		Path:     "/" + s.Database,
		RawQuery: "sslmode=" + url.QueryEscape(s.SSLMode),
	}
	return u.String()
}

// RedisSettings configures Redis connection and TLS
type RedisSettings struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	DB              int    `mapstructure:"db"`
	Password        string `mapstructure:"password"`
	TLSEnabled      bool   `mapstructure:"tls_enabled"`
	ReminderPrefix  string `mapstructure:"reminder_prefix"`
	RateLimitPrefix string `mapstructure:"rate_limit_prefix"`
}

// KafkaSettings configures the Kafka producer. No brokers means events are only logged.
type KafkaSettings struct {
	Brokers     []string `mapstructure:"brokers"`
	TopicPrefix string   `mapstructure:"topic_prefix"`
}

type JWTSettings struct {
	Secret         string        `mapstructure:"secret"`
	Issuer         string        `mapstructure:"issuer"`
	AccessTokenTTL time.Duration `mapstructure:"access_token_ttl"`
}

// OTPSettings configures the emailed passcode ledger.
type OTPSettings struct {
	TTL           time.Duration `mapstructure:"ttl"`
	PurgeInterval time.Duration `mapstructure:"purge_interval"`
	Retention     time.Duration `mapstructure:"retention"`
}

// ReminderSettings configures delayed task reminders.
type ReminderSettings struct {
	Delay        time.Duration `mapstructure:"delay"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	BatchSize    int64         `mapstructure:"batch_size"`
}

// NotificationSettings sizes the email worker pool.
type NotificationSettings struct {
	Workers     int           `mapstructure:"workers"`
	QueueSize   int           `mapstructure:"queue_size"`
	SendTimeout time.Duration `mapstructure:"send_timeout"`
}

// SMTPSettings configures outbound mail. An empty host selects the logging mailer.
type SMTPSettings struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

type TelemetrySettings struct {
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	ServiceName  string  `mapstructure:"service_name"`
	SamplingRate float64 `mapstructure:"sampling_rate"`
}

// RateLimitSettings configures rate limiting windows and max attempts per endpoint
type RateLimitSettings struct {
	WindowDuration      time.Duration `mapstructure:"window_duration"`
	LoginMaxAttempts    int           `mapstructure:"login_max_attempts"`
	RegisterMaxAttempts int           `mapstructure:"register_max_attempts"`
	OTPMaxAttempts      int           `mapstructure:"otp_max_attempts"`
	ResendMaxAttempts   int           `mapstructure:"resend_max_attempts"`
}

// Argon2Settings configures Argon2id password hashing parameters
type Argon2Settings struct {
	Memory      uint32 `mapstructure:"memory"`
	Iterations  uint32 `mapstructure:"iterations"`
	Parallelism uint8  `mapstructure:"parallelism"`
	SaltLength  uint32 `mapstructure:"salt_length"`
	KeyLength   uint32 `mapstructure:"key_length"`
}

// PasswordSettings configures the registration password policy.
type PasswordSettings struct {
	MinLength      int  `mapstructure:"min_length"`
	MinZxcvbnScore int  `mapstructure:"min_zxcvbn_score"`
	RequireLetter  bool `mapstructure:"require_letter"`
}

const envPrefix = "TASKFLOW"

var envKeys = []string{
	"app.name",
	"app.version",
	"app.env",
	"app.host",
	"app.port",
	"app.frontend_url",
	"http.read_timeout",
	"http.write_timeout",
	"http.idle_timeout",
	"http.shutdown_timeout",
	"postgres.host",
	"postgres.port",
	"postgres.user",
	"postgres.password",
	"postgres.database",
	"postgres.ssl_mode",
	"postgres.max_conns",
	"postgres.min_conns",
	"postgres.max_conn_lifetime",
	"postgres.max_conn_idle_time",
	"postgres.health_check_period",
	"postgres.auto_migrate",
	"redis.host",
	"redis.port",
	"redis.db",
	"redis.password",
	"redis.tls_enabled",
	"redis.reminder_prefix",
	"redis.rate_limit_prefix",
	"kafka.brokers",
	"kafka.topic_prefix",
	"jwt.issuer",
	"jwt.access_token_ttl",
	"otp.ttl",
	"otp.purge_interval",
	"otp.retention",
	"reminder.delay",
	"reminder.poll_interval",
	"reminder.batch_size",
	"notifications.workers",
	"notifications.queue_size",
	"notifications.send_timeout",
	"smtp.host",
	"smtp.port",
	"smtp.username",
	"smtp.password",
	"smtp.from",
	"telemetry.otlp_endpoint",
	"telemetry.service_name",
	"telemetry.sampling_rate",
	"rate_limit.window_duration",
	"rate_limit.login_max_attempts",
	"rate_limit.register_max_attempts",
	"rate_limit.otp_max_attempts",
	"rate_limit.resend_max_attempts",
	"argon2.memory",
	"argon2.iterations",
	"argon2.parallelism",
	"argon2.salt_length",
	"argon2.key_length",
	"password.min_length",
	"password.min_zxcvbn_score",
	"password.require_letter",
}

func Load() (*AppConfig, error) {
	v := viper.New()

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix(envPrefix)

	setDefaults(v)

	if err := bindEnvs(v, envKeys); err != nil {
		return nil, err
	}

	// Names kept from earlier deployments of the service.
	if err := v.BindEnv("postgres.url", envPrefix+"_POSTGRES_URL", "DATABASE_URL"); err != nil {
		return nil, fmt.Errorf("bind env for postgres.url: %w", err)
	}
	if err := v.BindEnv("jwt.secret", envPrefix+"_JWT_SECRET", "JWT_SECRET", "SECRET_KEY"); err != nil {
		return nil, fmt.Errorf("bind env for jwt.secret: %w", err)
	}
	if err := v.BindEnv("http.cors_allowed_origins", envPrefix+"_HTTP_CORS_ALLOWED_ORIGINS", "HTTP_CORS_ALLOWED_ORIGINS", "CORS_ORIGINS"); err != nil {
		return nil, fmt.Errorf("bind env for http.cors_allowed_origins: %w", err)
	}
	if err := v.BindEnv("http.cors_allowed_origin_regex", envPrefix+"_HTTP_CORS_ALLOWED_ORIGIN_REGEX", "HTTP_CORS_ALLOWED_ORIGIN_REGEX", "CORS_ORIGIN_REGEX"); err != nil {
		return nil, fmt.Errorf("bind env for http.cors_allowed_origin_regex: %w", err)
	}

	v.AutomaticEnv()

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if _, err := cfg.HTTP.CORSOriginPattern(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "taskflow-api")
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.host", "0.0.0.0")
	v.SetDefault("app.port", 8000)
	v.SetDefault("app.frontend_url", "http://localhost:3000")

	v.SetDefault("http.cors_allowed_origins", []string{"http://localhost:3000", "http://127.0.0.1:3000"})
	v.SetDefault("http.cors_allowed_origin_regex", `https://.*\.vercel\.app`)
	v.SetDefault("http.read_timeout", "15s")
	v.SetDefault("http.write_timeout", "15s")
	v.SetDefault("http.idle_timeout", "60s")
	v.SetDefault("http.shutdown_timeout", "15s")

	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "taskflow")
	v.SetDefault("postgres.password", "taskflow_password")
	v.SetDefault("postgres.database", "taskflow")
	v.SetDefault("postgres.ssl_mode", "disable")
	v.SetDefault("postgres.max_conns", 10)
	v.SetDefault("postgres.min_conns", 2)
	v.SetDefault("postgres.max_conn_lifetime", "60m")
	v.SetDefault("postgres.max_conn_idle_time", "15m")
	v.SetDefault("postgres.health_check_period", "30s")
	v.SetDefault("postgres.auto_migrate", true)

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.tls_enabled", false)
	v.SetDefault("redis.reminder_prefix", "taskflow:reminders")
	v.SetDefault("redis.rate_limit_prefix", "taskflow:rate_limit")

	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic_prefix", "taskflow")

	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.issuer", "taskflow-api")
	v.SetDefault("jwt.access_token_ttl", "720h")

	v.SetDefault("otp.ttl", "10m")
	v.SetDefault("otp.purge_interval", "1h")
	v.SetDefault("otp.retention", "24h")

	v.SetDefault("reminder.delay", "1m")
	v.SetDefault("reminder.poll_interval", "5s")
	v.SetDefault("reminder.batch_size", 100)

	v.SetDefault("notifications.workers", 4)
	v.SetDefault("notifications.queue_size", 256)
	v.SetDefault("notifications.send_timeout", "10s")

	v.SetDefault("smtp.host", "")
	v.SetDefault("smtp.port", 587)
	v.SetDefault("smtp.from", "TaskFlow Pro <noreply@taskflow.local>")

	v.SetDefault("telemetry.otlp_endpoint", "")
	v.SetDefault("telemetry.service_name", "taskflow-api")
	v.SetDefault("telemetry.sampling_rate", 1.0)

	v.SetDefault("rate_limit.window_duration", "1m")
	v.SetDefault("rate_limit.login_max_attempts", 5)
	v.SetDefault("rate_limit.register_max_attempts", 3)
	v.SetDefault("rate_limit.otp_max_attempts", 5)
	v.SetDefault("rate_limit.resend_max_attempts", 3)

	v.SetDefault("argon2.memory", 65536) // 64 MB
	v.SetDefault("argon2.iterations", 3)
	v.SetDefault("argon2.parallelism", 4)
	v.SetDefault("argon2.salt_length", 16)
	v.SetDefault("argon2.key_length", 32)

	v.SetDefault("password.min_length", 6)
	v.SetDefault("password.min_zxcvbn_score", 0)
	v.SetDefault("password.require_letter", false)
}

func bindEnvs(v *viper.Viper, keys []string) error {
	for _, key := range keys {
		envKey := strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, envPrefix+"_"+envKey, envKey); err != nil {
			return fmt.Errorf("bind env for %s: %w", key, err)
		}
	}
	return nil
}
