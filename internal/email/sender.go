package email

import (
	"context"

	"marketplace_backend/platform/config"
)

// Message is a rendered notification email.
type Message struct {
	To       string
	Subject  string
	Heading  string
	Body     string
	CTALabel string
	CTAURL   string
}

type Sender interface {
	SendNotificationEmail(ctx context.Context, msg Message) error
}

// NewSender returns the SMTP sender, or a NoopSender when email is disabled.
func NewSender(cfg config.SMTPConfig) Sender {
	if !cfg.IsEmailEnabled() {
		return NoopSender{}
	}
	return NewSMTPSender(
		cfg.GetSMTPHost(),
		cfg.GetSMTPPort(),
		cfg.GetSMTPUsername(),
		cfg.GetSMTPPassword(),
		cfg.GetEmailFromAddress(),
		cfg.GetEmailFromName(),
	)
}

type NoopSender struct{}

func (NoopSender) SendNotificationEmail(context.Context, Message) error {
	return nil
}
