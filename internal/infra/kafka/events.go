package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/taskflowpro/taskflow-api/internal/core/domain"
	"github.com/taskflowpro/taskflow-api/internal/core/port"
	"github.com/taskflowpro/taskflow-api/internal/infra/config"
)

const schemaVersion = "1.0"

const (
	eventUserRegistered     = "taskflow.user.registered"
	eventNotificationPrefix = "taskflow.notification."
)

// EventPublisher implements port.EventPublisher using Kafka.
type EventPublisher struct {
	producer *Producer
	logger   *zap.Logger
	appCfg   config.AppSettings
}

// NewEventPublisher constructs a Kafka-backed event publisher.
func NewEventPublisher(producer *Producer, appCfg config.AppSettings, logger *zap.Logger) *EventPublisher {
	return &EventPublisher{producer: producer, appCfg: appCfg, logger: logger}
}

type envelopeMetadata map[string]string

type eventEnvelope struct {
	EventID   string           `json:"event_id"`
	EventType string           `json:"event_type"`
	UserID    string           `json:"user_id,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
	Version   string           `json:"version"`
	Payload   any              `json:"payload"`
	Metadata  envelopeMetadata `json:"metadata,omitempty"`
}

func formatUserID(id int64) string {
	if id <= 0 {
		return ""
	}
	return strconv.FormatInt(id, 10)
}

func (p *EventPublisher) publish(ctx context.Context, eventID, eventType string, userID int64, ts time.Time, payload any) error {
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	id := eventID
	if id == "" {
		id = uuid.NewString()
	}

	metadata := envelopeMetadata{
		"service":     p.appCfg.Name,
		"environment": p.appCfg.Env,
	}

	if sc := trace.SpanFromContext(ctx).SpanContext(); sc.IsValid() {
		metadata["trace_id"] = sc.TraceID().String()
	}

	envelope := eventEnvelope{
		EventID:   id,
		EventType: eventType,
		UserID:    formatUserID(userID),
		Timestamp: ts.UTC(),
		Version:   schemaVersion,
		Payload:   payload,
		Metadata:  metadata,
	}

	bytes, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: p.producer.TopicName(eventType),
		Value: sarama.ByteEncoder(bytes),
	}
	// Keying by user keeps one user's events on a single partition.
	if envelope.UserID != "" {
		message.Key = sarama.StringEncoder(envelope.UserID)
	}

	select {
	case p.producer.Producer().Input() <- message:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PublishUserRegistered publishes taskflow.user.registered events.
func (p *EventPublisher) PublishUserRegistered(ctx context.Context, event domain.UserRegisteredEvent) error {
	payload := struct {
		UserID             int64     `json:"user_id"`
		Email              string    `json:"email"`
		FullName           string    `json:"full_name"`
		RegisteredAt       time.Time `json:"registered_at"`
		RegistrationMethod string    `json:"registration_method"`
	}{
		UserID:             event.UserID,
		Email:              event.Email,
		FullName:           event.FullName,
		RegisteredAt:       event.RegisteredAt.UTC(),
		RegistrationMethod: event.RegistrationMethod,
	}

	return p.publish(ctx, event.EventID, eventUserRegistered, event.UserID, event.RegisteredAt, payload)
}

// PublishNotification publishes taskflow.notification.<kind> events once a
// notification has been attempted.
func (p *EventPublisher) PublishNotification(ctx context.Context, event domain.NotificationEvent) error {
	payload := struct {
		Kind      string    `json:"kind"`
		UserID    int64     `json:"user_id,omitempty"`
		TaskID    int64     `json:"task_id,omitempty"`
		Delivered bool      `json:"delivered"`
		Error     string    `json:"error,omitempty"`
		SentAt    time.Time `json:"sent_at"`
	}{
		Kind:      string(event.Kind),
		UserID:    event.UserID,
		TaskID:    event.TaskID,
		Delivered: event.Delivered,
		Error:     event.Error,
		SentAt:    event.SentAt.UTC(),
	}

	return p.publish(ctx, event.EventID, eventNotificationPrefix+string(event.Kind), event.UserID, event.SentAt, payload)
}

var _ port.EventPublisher = (*EventPublisher)(nil)
