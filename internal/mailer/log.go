package mailer

import (
	"context"
	"log/slog"
)

// LogSender writes messages to the log instead of sending them. It is meant
// for local development.
type LogSender struct {
	log *slog.Logger
}

func NewLogSender(log *slog.Logger) *LogSender {
	return &LogSender{log: log}
}

func (s *LogSender) Send(ctx context.Context, msg Message) error {
	s.log.InfoContext(ctx, "email (not sent)", "to", msg.To, "subject", msg.Subject, "link", msg.Link)
	return nil
}
