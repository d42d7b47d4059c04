package telemetry

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Notification delivery results recorded by NotificationMetrics.
const (
	ResultSent    = "sent"
	ResultFailed  = "failed"
	ResultDropped = "dropped"
)

// NotificationMetrics counts notification outcomes per template kind.
type NotificationMetrics struct {
	total *prometheus.CounterVec
}

// NewNotificationMetrics registers taskflow_notifications_total on registerer.
// A nil registerer falls back to the default registry. Registering twice
// reuses the existing collector.
func NewNotificationMetrics(registerer prometheus.Registerer) (*NotificationMetrics, error) {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	total := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "taskflow",
		Name:      "notifications_total",
		Help:      "Notifications processed by kind and result",
	}, []string{"kind", "result"})

	if err := registerer.Register(total); err != nil {
		var already prometheus.AlreadyRegisteredError
		if !errors.As(err, &already) {
			return nil, err
		}
		existing, ok := already.ExistingCollector.(*prometheus.CounterVec)
		if !ok {
			return nil, err
		}
		total = existing
	}

	return &NotificationMetrics{total: total}, nil
}

// Observe increments the counter for kind and result.
func (m *NotificationMetrics) Observe(kind, result string) {
	if m == nil {
		return
	}
	m.total.WithLabelValues(kind, result).Inc()
}
