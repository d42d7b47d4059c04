package mailer

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net"
	"net/mail"
	"net/smtp"
	"net/textproto"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/taskflowpro/taskflow-api/internal/core/port"
	"github.com/taskflowpro/taskflow-api/internal/infra/config"
	"github.com/taskflowpro/taskflow-api/internal/infra/logger"
)

const implicitTLSPort = 465

// SMTPMailer delivers messages through an SMTP relay. Port 465 uses implicit
// TLS; any other port upgrades with STARTTLS when the server offers it.
type SMTPMailer struct {
	cfg    config.SMTPSettings
	from   *mail.Address
	logger *zap.Logger
	now    func() time.Time
}

// NewSMTPMailer validates the relay settings and returns a mailer.
func NewSMTPMailer(cfg config.SMTPSettings, log *zap.Logger) (*SMTPMailer, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("smtp host is required")
	}
	if cfg.Port <= 0 {
		return nil, fmt.Errorf("smtp port must be positive")
	}

	from, err := mail.ParseAddress(cfg.From)
	if err != nil {
		return nil, fmt.Errorf("parse smtp from address: %w", err)
	}

	return &SMTPMailer{cfg: cfg, from: from, logger: log, now: time.Now}, nil
}

// Send implements port.Mailer.
func (m *SMTPMailer) Send(ctx context.Context, msg port.MailMessage) error {
	to, err := mail.ParseAddress(msg.To)
	if err != nil {
		return fmt.Errorf("parse recipient: %w", err)
	}

	body, err := m.buildMessage(to, msg)
	if err != nil {
		return err
	}

	client, err := m.dial(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	if m.cfg.Username != "" {
		if ok, _ := client.Extension("AUTH"); ok {
			auth := smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
			if err := client.Auth(auth); err != nil {
				return fmt.Errorf("smtp auth: %w", err)
			}
		}
	}
	if err := client.Mail(m.from.Address); err != nil {
		return fmt.Errorf("smtp mail from: %w", err)
	}
	if err := client.Rcpt(to.Address); err != nil {
		return fmt.Errorf("smtp rcpt: %w", err)
	}

	writer, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := writer.Write(body); err != nil {
		_ = writer.Close()
		return fmt.Errorf("smtp write body: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("smtp finish data: %w", err)
	}

	if err := client.Quit(); err != nil {
		m.logger.Debug("SMTP quit failed", zap.Error(err))
	}

	logger.FromContext(ctx, m.logger).Debug("Email delivered",
		zap.String("to", logger.MaskEmail(to.Address)),
		zap.String("subject", msg.Subject),
	)
	return nil
}

func (m *SMTPMailer) dial(ctx context.Context) (*smtp.Client, error) {
	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))
	tlsConfig := &tls.Config{ServerName: m.cfg.Host, MinVersion: tls.VersionTLS12}

	var (
		conn net.Conn
		err  error
	)
	if m.cfg.Port == implicitTLSPort {
		dialer := &tls.Dialer{Config: tlsConfig}
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	} else {
		var dialer net.Dialer
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return nil, fmt.Errorf("dial smtp %s: %w", addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, m.cfg.Host)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("smtp handshake: %w", err)
	}

	if m.cfg.Port != implicitTLSPort {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(tlsConfig); err != nil {
				_ = client.Close()
				return nil, fmt.Errorf("smtp starttls: %w", err)
			}
		}
	}

	return client, nil
}

// buildMessage renders a multipart/alternative message with a plain-text and
// an HTML part, both quoted-printable.
func (m *SMTPMailer) buildMessage(to *mail.Address, msg port.MailMessage) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	headers := []struct{ key, value string }{
		{"From", m.from.String()},
		{"To", to.String()},
		{"Subject", mime.QEncoding.Encode("utf-8", msg.Subject)},
		{"Date", m.now().UTC().Format(time.RFC1123Z)},
		{"Message-ID", "<" + uuid.NewString() + "@" + m.cfg.Host + ">"},
		{"MIME-Version", "1.0"},
		{"Content-Type", "multipart/alternative; boundary=" + writer.Boundary()},
	}
	for _, h := range headers {
		fmt.Fprintf(&buf, "%s: %s\r\n", h.key, h.value)
	}
	buf.WriteString("\r\n")

	parts := []struct{ contentType, body string }{
		{"text/plain; charset=utf-8", msg.Text},
		{"text/html; charset=utf-8", msg.HTML},
	}
	for _, part := range parts {
		if part.body == "" {
			continue
		}
		header := textproto.MIMEHeader{}
		header.Set("Content-Type", part.contentType)
		header.Set("Content-Transfer-Encoding", "quoted-printable")

		pw, err := writer.CreatePart(header)
		if err != nil {
			return nil, fmt.Errorf("create mime part: %w", err)
		}
		qp := quotedprintable.NewWriter(pw)
		if _, err := qp.Write([]byte(part.body)); err != nil {
			return nil, fmt.Errorf("encode mime part: %w", err)
		}
		if err := qp.Close(); err != nil {
			return nil, fmt.Errorf("encode mime part: %w", err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close mime writer: %w", err)
	}
	return buf.Bytes(), nil
}

var _ port.Mailer = (*SMTPMailer)(nil)
