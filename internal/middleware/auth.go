package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/ayush/cropcare/backend/internal/auth"
	"github.com/ayush/cropcare/backend/internal/httpx"
)

// RevocationChecker reports whether a token id was logged out.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// RequireAuth is middleware that validates the session token from the
// auth-token cookie or Bearer header and injects its claims into the
// request context.
func RequireAuth(tokens *auth.TokenIssuer, revocations RevocationChecker, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := auth.TokenFromRequest(r)
			if raw == "" {
				httpx.Error(w, http.StatusUnauthorized, "Unauthorized")
				return
			}

			claims, err := tokens.Verify(raw)
			if err != nil {
				httpx.Error(w, http.StatusUnauthorized, "Unauthorized")
				return
			}

			revoked, err := revocations.IsRevoked(r.Context(), claims.ID)
			if err != nil {
				httpx.Internal(w, r, log, "revocation check failed", err)
				return
			}
			if revoked {
				httpx.Error(w, http.StatusUnauthorized, "Unauthorized")
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.WithClaims(r.Context(), claims)))
		})
	}
}
