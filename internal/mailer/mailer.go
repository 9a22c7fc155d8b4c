// Package mailer renders and sends the account emails.
package mailer

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"net/url"

	"golang.org/x/time/rate"
)

const (
	verifySubject = "Verify your email address - Crop Care"
	resetSubject  = "Reset your password - Crop Care"
)

// Message is one outgoing email.
type Message struct {
	From    string
	To      string
	Subject string
	HTML    string
	// Link is the action URL embedded in HTML, kept for senders that only log.
	Link string
}

// Sender delivers a rendered message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Mailer builds verification and reset emails and hands them to a Sender,
// throttled to the provider's send rate.
type Mailer struct {
	sender  Sender
	from    string
	baseURL string
	limiter *rate.Limiter
	log     *slog.Logger
}

// New returns a Mailer sending at most perSecond messages per second. A
// non-positive rate disables throttling.
func New(sender Sender, from, baseURL string, perSecond float64, log *slog.Logger) *Mailer {
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	return &Mailer{
		sender:  sender,
		from:    from,
		baseURL: baseURL,
		limiter: rate.NewLimiter(limit, 1),
		log:     log,
	}
}

// SendVerificationEmail emails the link that confirms the address.
func (m *Mailer) SendVerificationEmail(ctx context.Context, to, token string) error {
	return m.send(ctx, to, verifySubject, verifyTmpl, m.link("/verify-email", token))
}

// SendPasswordResetEmail emails the link that opens the reset form.
func (m *Mailer) SendPasswordResetEmail(ctx context.Context, to, token string) error {
	return m.send(ctx, to, resetSubject, resetTmpl, m.link("/reset-password", token))
}

func (m *Mailer) link(path, token string) string {
	return m.baseURL + path + "?token=" + url.QueryEscape(token)
}

func (m *Mailer) send(ctx context.Context, to, subject string, tmpl *template.Template, link string) error {
	var body bytes.Buffer
	if err := tmpl.Execute(&body, emailData{Link: link}); err != nil {
		return fmt.Errorf("render %q: %w", subject, err)
	}

	if err := m.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("mail throttle: %w", err)
	}

	msg := Message{From: m.from, To: to, Subject: subject, HTML: body.String(), Link: link}
	if err := m.sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("send %q to %s: %w", subject, to, err)
	}
	m.log.DebugContext(ctx, "email sent", "to", to, "subject", subject)
	return nil
}
