package notify

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"
)

// SMTPSender sends confirmation email over plain SMTP.
type SMTPSender struct {
	addr string // host:port
	host string
	from string
	auth smtp.Auth
}

// NewSMTPSender creates an SMTP email sender. Username and password are
// optional; when empty the connection is unauthenticated.
func NewSMTPSender(host string, port int, from, username, password string) *SMTPSender {
	s := &SMTPSender{
		addr: fmt.Sprintf("%s:%d", host, port),
		host: host,
		from: from,
	}
	if username != "" {
		s.auth = smtp.PlainAuth("", username, password, host)
	}
	return s
}

// SendEmail sends one message, attempted once.
func (s *SMTPSender) SendEmail(ctx context.Context, to string, subject string, body string) error {
	msg := strings.Join([]string{
		"From: " + s.from,
		"To: " + to,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=\"utf-8\"",
		"",
		body,
	}, "\r\n")

	if err := smtp.SendMail(s.addr, s.auth, s.from, []string{to}, []byte(msg)); err != nil {
		slog.Error("SMTP SendEmail failed", "to", to, "error", err)
		return fmt.Errorf("failed to send email to %s: %w", to, err)
	}
	slog.Debug("SMTP email sent", "to", to)
	return nil
}
