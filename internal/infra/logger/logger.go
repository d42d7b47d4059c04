package logger

import (
	"context"
	"regexp"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	lg   *zap.Logger
	once sync.Once
)

// New returns a singleton zap.Logger: JSON in production, colored console otherwise.
func New(env string) (*zap.Logger, error) {
	var err error
	once.Do(func() {
		cfg := zap.NewProductionConfig()
		if env != "production" {
			cfg = zap.NewDevelopmentConfig()
			cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		}
		cfg.InitialFields = map[string]interface{}{"env": env}

		lg, err = cfg.Build()
	})

	return lg, err
}

// RequestIDKey is used to store a request identifier on the context.
type RequestIDKey struct{}

// TraceIDKey is used to store the trace identifier on the context.
type TraceIDKey struct{}

// WithContext attaches request scoped fields to the base logger.
func WithContext(ctx context.Context) *zap.Logger {
	base := lg
	if base == nil {
		base = zap.NewNop()
	}
	return FromContext(ctx, base)
}

// FromContext decorates log with the request and trace identifiers found on ctx.
func FromContext(ctx context.Context, log *zap.Logger) *zap.Logger {
	if log == nil {
		log = zap.NewNop()
	}
	if ctx == nil {
		return log
	}

	fields := make([]zap.Field, 0, 2)
	if val, ok := ctx.Value(RequestIDKey{}).(string); ok && val != "" {
		fields = append(fields, zap.String("request_id", val))
	}
	if val, ok := ctx.Value(TraceIDKey{}).(string); ok && val != "" {
		fields = append(fields, zap.String("trace_id", val))
	}
	if len(fields) == 0 {
		return log
	}
	return log.With(fields...)
}

var emailRegex = regexp.MustCompile(`^([^@]{1,3})[^@]*(@.+)$`)

// MaskEmail masks email addresses, showing first 3 characters and domain
// Example: john.doe@example.com -> joh***@example.com
func MaskEmail(email string) string {
	if email == "" {
		return ""
	}

	matches := emailRegex.FindStringSubmatch(email)
	if len(matches) == 3 {
		return matches[1] + "***" + matches[2]
	}

	if _, domain, ok := strings.Cut(email, "@"); ok {
		return "***@" + domain
	}

	return "***"
}

// MaskIP performs partial IP masking, showing first 2 octets for IPv4
// and the first 4 groups for IPv6.
func MaskIP(ip string) string {
	if ip == "" {
		return ""
	}

	if strings.Contains(ip, ".") {
		parts := strings.Split(ip, ".")
		if len(parts) == 4 {
			return parts[0] + "." + parts[1] + ".*.*"
		}
	}

	if strings.Contains(ip, ":") {
		parts := strings.Split(ip, ":")
		if len(parts) >= 4 {
			return strings.Join(parts[:4], ":") + ":*:*:*:*"
		}
	}

	return "***"
}

// MaskString shows the first and last 2 characters with *** in between.
func MaskString(s string) string {
	length := len(s)
	switch {
	case length == 0:
		return ""
	case length <= 4:
		return "***"
	}

	return s[:2] + "***" + s[length-2:]
}
