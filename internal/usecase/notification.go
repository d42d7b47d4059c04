package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/taskflowpro/taskflow-api/internal/core/domain"
	"github.com/taskflowpro/taskflow-api/internal/core/port"
	"github.com/taskflowpro/taskflow-api/internal/infra/logger"
	"github.com/taskflowpro/taskflow-api/internal/infra/telemetry"
)

const (
	defaultNotificationWorkers     = 4
	defaultNotificationQueueSize   = 256
	defaultNotificationSendTimeout = 10 * time.Second
)

// NotificationConfig sizes the delivery worker pool.
type NotificationConfig struct {
	Workers     int
	QueueSize   int
	SendTimeout time.Duration
}

// NotificationRecorder records delivery outcomes.
type NotificationRecorder interface {
	Observe(kind, result string)
}

// NotificationService delivers notifications on a bounded worker pool.
// Enqueue never blocks; when the queue is full the notification is dropped.
type NotificationService struct {
	renderer port.MailRenderer
	mailer   port.Mailer
	events   port.EventPublisher
	metrics  NotificationRecorder
	cfg      NotificationConfig
	logger   *zap.Logger
	now      func() time.Time

	jobs   chan domain.Notification
	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
}

// NewNotificationService starts cfg.Workers delivery goroutines. Call Close to drain them.
func NewNotificationService(cfg NotificationConfig, renderer port.MailRenderer, mailer port.Mailer, events port.EventPublisher, metrics NotificationRecorder, log *zap.Logger) *NotificationService {
	if cfg.Workers <= 0 {
		cfg.Workers = defaultNotificationWorkers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultNotificationQueueSize
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = defaultNotificationSendTimeout
	}
	if log == nil {
		log = zap.NewNop()
	}

	s := &NotificationService{
		renderer: renderer,
		mailer:   mailer,
		events:   events,
		metrics:  metrics,
		cfg:      cfg,
		logger:   log,
		now:      time.Now,
		jobs:     make(chan domain.Notification, cfg.QueueSize),
	}

	s.wg.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go s.worker()
	}

	return s
}

// Enqueue implements port.Notifier.
func (s *NotificationService) Enqueue(n domain.Notification) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		s.observe(n.Kind, telemetry.ResultDropped)
		return false
	}

	if n.ID == "" {
		n.ID = uuid.NewString()
	}

	select {
	case s.jobs <- n:
		return true
	default:
		s.observe(n.Kind, telemetry.ResultDropped)
		s.logger.Warn("Notification queue full, dropping notification",
			zap.String("kind", string(n.Kind)),
			zap.String("to", logger.MaskEmail(n.To)),
		)
		return false
	}
}

// Close stops intake and waits for queued notifications to be delivered or
// for ctx to end, whichever comes first.
func (s *NotificationService) Close(ctx context.Context) error {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.jobs)
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *NotificationService) worker() {
	defer s.wg.Done()
	for n := range s.jobs {
		s.deliver(n)
	}
}

func (s *NotificationService) deliver(n domain.Notification) {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.SendTimeout)
	defer cancel()

	log := s.logger.With(
		zap.String("notification_id", n.ID),
		zap.String("kind", string(n.Kind)),
		zap.String("to", logger.MaskEmail(n.To)),
	)

	var sendErr error
	msg, err := s.renderer.Render(n)
	if err != nil {
		sendErr = err
	} else {
		sendErr = s.mailer.Send(ctx, msg)
	}

	event := domain.NotificationEvent{
		EventID:   n.ID,
		Kind:      n.Kind,
		UserID:    n.UserID,
		TaskID:    n.TaskID,
		Delivered: sendErr == nil,
		SentAt:    s.now().UTC(),
	}
	if sendErr != nil {
		event.Error = sendErr.Error()
		s.observe(n.Kind, telemetry.ResultFailed)
		log.Error("Notification delivery failed", zap.Error(sendErr))
	} else {
		s.observe(n.Kind, telemetry.ResultSent)
		log.Debug("Notification delivered")
	}

	if s.events != nil {
		if err := s.events.PublishNotification(ctx, event); err != nil {
			log.Warn("Failed to publish notification event", zap.Error(err))
		}
	}
}

func (s *NotificationService) observe(kind domain.NotificationKind, result string) {
	if s.metrics != nil {
		s.metrics.Observe(string(kind), result)
	}
}

var _ port.Notifier = (*NotificationService)(nil)
