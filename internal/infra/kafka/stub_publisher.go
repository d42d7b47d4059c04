package kafka

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/taskflowpro/taskflow-api/internal/core/domain"
	"github.com/taskflowpro/taskflow-api/internal/core/port"
)

// StubPublisher logs events instead of sending them to Kafka. Used when no brokers are configured.
type StubPublisher struct {
	logger *zap.Logger
}

// NewStubPublisher constructs a development-friendly event publisher.
func NewStubPublisher(logger *zap.Logger) *StubPublisher {
	return &StubPublisher{logger: logger}
}

func (p *StubPublisher) logEvent(eventType string, userID int64, at time.Time, fields ...zap.Field) {
	if at.IsZero() {
		at = time.Now().UTC()
	}

	fields = append([]zap.Field{
		zap.String("event_type", eventType),
		zap.Int64("user_id", userID),
		zap.Time("timestamp", at.UTC()),
	}, fields...)
	p.logger.Debug("Stub event published", fields...)
}

// PublishUserRegistered logs taskflow.user.registered events.
func (p *StubPublisher) PublishUserRegistered(_ context.Context, event domain.UserRegisteredEvent) error {
	p.logEvent(eventUserRegistered, event.UserID, event.RegisteredAt,
		zap.String("registration_method", event.RegistrationMethod),
	)
	return nil
}

// PublishNotification logs taskflow.notification.<kind> events.
func (p *StubPublisher) PublishNotification(_ context.Context, event domain.NotificationEvent) error {
	p.logEvent(eventNotificationPrefix+string(event.Kind), event.UserID, event.SentAt,
		zap.Int64("task_id", event.TaskID),
		zap.Bool("delivered", event.Delivered),
	)
	return nil
}

var _ port.EventPublisher = (*StubPublisher)(nil)
