package mailer

import (
	"context"

	"go.uber.org/zap"

	"github.com/taskflowpro/taskflow-api/internal/core/port"
	"github.com/taskflowpro/taskflow-api/internal/infra/logger"
)

// LogMailer writes messages to the log instead of sending them. It is wired
// when no SMTP host is configured so OTP codes stay reachable in development.
type LogMailer struct {
	logger *zap.Logger
}

func NewLogMailer(log *zap.Logger) *LogMailer {
	return &LogMailer{logger: log}
}

func (m *LogMailer) Send(ctx context.Context, msg port.MailMessage) error {
	logger.FromContext(ctx, m.logger).Info("Email (log mailer)",
		zap.String("to", logger.MaskEmail(msg.To)),
		zap.String("subject", msg.Subject),
		zap.String("body", msg.Text),
	)
	return nil
}

var _ port.Mailer = (*LogMailer)(nil)
