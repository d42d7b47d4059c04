package port

import (
	"context"

	"github.com/taskflowpro/taskflow-api/internal/core/domain"
)

// EventPublisher publishes domain events to the message bus.
type EventPublisher interface {
	PublishUserRegistered(ctx context.Context, event domain.UserRegisteredEvent) error
	PublishNotification(ctx context.Context, event domain.NotificationEvent) error
}
