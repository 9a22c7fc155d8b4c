package mailer

import (
	"context"
	"fmt"

	"github.com/wneessen/go-mail"
)

// SMTPConfig holds the relay settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
}

// SMTPSender delivers through an SMTP relay, upgrading to TLS when offered.
type SMTPSender struct {
	client *mail.Client
}

func NewSMTPSender(cfg SMTPConfig) (*SMTPSender, error) {
	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}
	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("smtp client: %w", err)
	}
	return &SMTPSender{client: client}, nil
}

func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	m := mail.NewMsg()
	if err := m.From(msg.From); err != nil {
		return fmt.Errorf("smtp from: %w", err)
	}
	if err := m.To(msg.To); err != nil {
		return fmt.Errorf("smtp to: %w", err)
	}
	m.Subject(msg.Subject)
	m.SetBodyString(mail.TypeTextHTML, msg.HTML)

	if err := s.client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}
