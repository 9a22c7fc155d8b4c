package mailer

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/resend/resend-go/v2"
)

// ResendSender delivers through the Resend HTTPS API.
type ResendSender struct {
	client *resend.Client
}

// NewResendSender returns a sender for apiKey. baseURL overrides the API
// endpoint; empty keeps the SDK default.
func NewResendSender(baseURL, apiKey string) (*ResendSender, error) {
	client := resend.NewClient(apiKey)
	if baseURL != "" {
		u, err := url.Parse(strings.TrimRight(baseURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("resend base url: %w", err)
		}
		client.BaseURL = u
	}
	return &ResendSender{client: client}, nil
}

func (s *ResendSender) Send(ctx context.Context, msg Message) error {
	_, err := s.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    msg.From,
		To:      []string{msg.To},
		Subject: msg.Subject,
		Html:    msg.HTML,
	})
	if err != nil {
		return fmt.Errorf("resend send: %w", err)
	}
	return nil
}
