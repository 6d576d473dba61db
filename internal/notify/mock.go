package notify

import (
	"context"
	"errors"
)

// SentSMS records one mock SMS delivery.
type SentSMS struct {
	To   string
	Body string
}

// SentEmail records one mock email delivery.
type SentEmail struct {
	To      string
	Subject string
	Body    string
}

// MockSMSSender records sends for tests and can be made to fail.
type MockSMSSender struct {
	Sent []SentSMS
	Fail bool
}

// SendSMS records the message, or fails when configured to.
func (m *MockSMSSender) SendSMS(ctx context.Context, to string, body string) error {
	if m.Fail {
		return errors.New("mock SMS failure")
	}
	m.Sent = append(m.Sent, SentSMS{To: to, Body: body})
	return nil
}

// MockEmailSender records sends for tests and can be made to fail.
type MockEmailSender struct {
	Sent []SentEmail
	Fail bool
}

// SendEmail records the message, or fails when configured to.
func (m *MockEmailSender) SendEmail(ctx context.Context, to string, subject string, body string) error {
	if m.Fail {
		return errors.New("mock email failure")
	}
	m.Sent = append(m.Sent, SentEmail{To: to, Subject: subject, Body: body})
	return nil
}
