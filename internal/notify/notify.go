// Package notify delivers the best-effort notification side effects fired
// when a conversation completes: an SMS to the visitor and a confirmation
// email. Delivery failures are logged, never retried, and never block
// session completion.
package notify

import (
	"context"
	"log/slog"
)

// SMSSender sends a text message to a phone number (digits only).
type SMSSender interface {
	SendSMS(ctx context.Context, to string, body string) error
}

// EmailSender sends an email.
type EmailSender interface {
	SendEmail(ctx context.Context, to string, subject string, body string) error
}

// Service fans completion notifications out to the configured senders. Either
// sender may be nil, in which case that channel is silently unavailable.
type Service struct {
	sms   SMSSender
	email EmailSender
}

// NewService creates a notification service. Nil senders disable the channel.
func NewService(sms SMSSender, email EmailSender) *Service {
	return &Service{sms: sms, email: email}
}

// SendSMS delivers a text message, attempted once.
func (s *Service) SendSMS(ctx context.Context, to string, body string) error {
	if s.sms == nil {
		slog.Debug("Notify SendSMS skipped, no SMS sender configured", "to", to)
		return nil
	}
	return s.sms.SendSMS(ctx, to, body)
}

// SendConfirmationEmail delivers the lead confirmation email, attempted once.
func (s *Service) SendConfirmationEmail(ctx context.Context, to string, subject string, body string) error {
	if s.email == nil {
		slog.Debug("Notify SendConfirmationEmail skipped, no email sender configured", "to", to)
		return nil
	}
	return s.email.SendEmail(ctx, to, subject, body)
}
