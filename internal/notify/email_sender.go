package notify

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	gomail "gopkg.in/mail.v2"

	"github.com/shanehull/bottlescraper/internal/types"
)

var ErrNoRecipients = errors.New("no recipients configured")

// EmailConfig holds SMTP configuration for sending emails.
type EmailConfig struct {
	SMTPServer string
	SMTPPort   int
	SMTPUser   string
	SMTPPass   string
	FromEmail  string
	Enabled    bool
}

// EmailSender delivers messages over a single SMTP session per send.
type EmailSender struct {
	cfg  EmailConfig
	dial func() (gomail.SendCloser, error)
}

// NewEmailSender creates a sender with the given SMTP configuration.
func NewEmailSender(cfg EmailConfig) *EmailSender {
	dialer := gomail.NewDialer(cfg.SMTPServer, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass)
	dialer.Timeout = 10 * time.Second
	return &EmailSender{cfg: cfg, dial: dialer.Dial}
}

// SendReport e-mails a run report to recipients.
func (s *EmailSender) SendReport(report *types.Report, recipients []string) error {
	return s.Send(RenderReport(report), recipients)
}

// Send opens one SMTP connection, sends msg to all recipients and closes
// the connection. Failures are logged and returned.
func (s *EmailSender) Send(msg *RenderedMessage, recipients []string) error {
	if !s.cfg.Enabled {
		slog.Info("Email disabled, skipping notification", "subject", msg.Subject)
		return nil
	}
	if len(recipients) == 0 {
		slog.Error("Email error: no recipients", "subject", msg.Subject)
		return ErrNoRecipients
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.cfg.FromEmail)
	m.SetHeader("To", recipients...)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.Text)

	conn, err := s.dial()
	if err != nil {
		slog.Error("Email error: failed to connect", "server", s.cfg.SMTPServer, "port", s.cfg.SMTPPort, "error", err)
		return fmt.Errorf("failed to connect to %s:%d: %w", s.cfg.SMTPServer, s.cfg.SMTPPort, err)
	}
	defer func() {
		if closeErr := conn.Close(); closeErr != nil {
			slog.Warn("Email warning: failed to close SMTP connection", "error", closeErr)
		}
	}()

	if err := gomail.Send(conn, m); err != nil {
		slog.Error("Email error: failed to send", "to", strings.Join(recipients, ", "), "subject", msg.Subject, "error", err)
		return fmt.Errorf("failed to send %q: %w", msg.Subject, err)
	}

	slog.Info("Email sent", "subject", msg.Subject, "recipients", len(recipients))
	return nil
}
