// Package audit records account lifecycle events.
package audit

import (
	"context"
	"log/slog"
	"time"
)

// Actions recorded by the account service.
const (
	ActionSignup         = "SIGNUP"
	ActionEmailVerified  = "EMAIL_VERIFIED"
	ActionResetRequested = "PASSWORD_RESET_REQUESTED"
	ActionPasswordReset  = "PASSWORD_RESET"
	ActionLoginSuccess   = "LOGIN_SUCCESS"
	ActionLoginFailed    = "LOGIN_FAILED"
	ActionAccountLocked  = "ACCOUNT_LOCKED"
	ActionLogout         = "LOGOUT"
)

// Event is one account event.
type Event struct {
	UserID  string    `json:"-"`
	Email   string    `json:"-"`
	Action  string    `json:"action"`
	IP      string    `json:"ip,omitempty"`
	Success bool      `json:"success"`
	Detail  string    `json:"detail,omitempty"`
	At      time.Time `json:"at"`
}

// Recorder persists events.
type Recorder interface {
	Record(ctx context.Context, ev Event) error
}

// LogRecorder writes events to the structured log. It is used when no
// PostgreSQL DSN is configured.
type LogRecorder struct {
	log *slog.Logger
}

func NewLogRecorder(log *slog.Logger) *LogRecorder {
	return &LogRecorder{log: log}
}

func (r *LogRecorder) Record(ctx context.Context, ev Event) error {
	r.log.InfoContext(ctx, "account event",
		"action", ev.Action,
		"user_id", ev.UserID,
		"email", ev.Email,
		"ip", ev.IP,
		"success", ev.Success,
		"detail", ev.Detail,
	)
	return nil
}

type ipKey struct{}

// WithClientIP attaches the caller address so recorders can include it.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, ipKey{}, ip)
}

// ClientIP returns the address stored by WithClientIP.
func ClientIP(ctx context.Context) string {
	ip, _ := ctx.Value(ipKey{}).(string)
	return ip
}
