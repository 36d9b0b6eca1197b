package mailer

import (
	"context"

	"github.com/diagnosis/studio-bookings/pkg/config"
)

type Message struct {
	ToEmail string
	ToName  string
	Subject string
	Text    string
	HTML    string
}

// Service sends one email and returns the provider message id when there is one.
type Service interface {
	Send(ctx context.Context, msg Message) (string, error)
}

// New picks the transport: dev logging, MailerSend when an API key is set, SMTP otherwise.
func New(cfg config.EmailConfig) Service {
	switch {
	case cfg.DevMode:
		return NewDevMailer()
	case cfg.MailerSendKey != "":
		return NewMailerSend(cfg.MailerSendKey, cfg.FromName, cfg.FromEmail)
	default:
		return NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.FromEmail, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPUseTLS)
	}
}
