package middleware

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/ayush/cropcare/backend/internal/httpx"
	"github.com/ayush/cropcare/backend/internal/ratelimit"
)

// RateLimit allows limit requests per window for each client IP on the
// route called name. Rejected callers get 429 with message. If the limiter
// itself fails the request is let through.
func RateLimit(limiter ratelimit.Limiter, log *slog.Logger, name string, limit int, window time.Duration, message string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := httpx.ClientIP(r)
			res, err := limiter.Allow(r.Context(), name+":"+ip, limit, window)
			if err != nil {
				log.WarnContext(r.Context(), "rate limiter unavailable, allowing request",
					"route", name, "ip", ip, "error", err)
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
			h.Set("X-RateLimit-Reset", res.Reset.UTC().Format(time.RFC3339))

			if !res.Allowed {
				retry := res.RetryAfter(time.Now())
				secs := int((retry + time.Second - 1) / time.Second)
				h.Set("Retry-After", strconv.Itoa(secs))
				log.InfoContext(r.Context(), "rate limit exceeded", "route", name, "ip", ip)
				httpx.Error(w, http.StatusTooManyRequests, message)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
