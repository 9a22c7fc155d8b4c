package auth

import (
	"context"
	"net/http"
	"strings"
)

// CookieName is the cookie carrying the session token.
const CookieName = "auth-token"

type ctxKey int

const (
	userIDKey ctxKey = iota
	claimsKey
)

// WithClaims stores the verified token claims in ctx.
func WithClaims(ctx context.Context, c *Claims) context.Context {
	ctx = context.WithValue(ctx, claimsKey, c)
	return context.WithValue(ctx, userIDKey, c.UserID)
}

// UserIDFrom returns the authenticated user id, if any.
func UserIDFrom(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	return id, ok && id != ""
}

// ClaimsFrom returns the verified token claims, if any.
func ClaimsFrom(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(claimsKey).(*Claims)
	return c, ok
}

// TokenFromRequest reads the session token from the auth cookie or a Bearer
// Authorization header.
func TokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie(CookieName); err == nil && c.Value != "" {
		return c.Value
	}
	h := r.Header.Get("Authorization")
	if strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return ""
}
