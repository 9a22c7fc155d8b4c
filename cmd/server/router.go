package main

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/ayush/cropcare/backend/internal/auth"
	"github.com/ayush/cropcare/backend/internal/config"
	"github.com/ayush/cropcare/backend/internal/httpx"
	"github.com/ayush/cropcare/backend/internal/middleware"
	"github.com/ayush/cropcare/backend/internal/profile"
	"github.com/ayush/cropcare/backend/internal/ratelimit"
	"github.com/ayush/cropcare/backend/internal/share"
)

// Per-IP quotas for the public account routes.
const authWindow = 15 * time.Minute

type routerDeps struct {
	cfg         *config.Config
	log         *slog.Logger
	limiter     ratelimit.Limiter
	tokens      *auth.TokenIssuer
	revocations middleware.RevocationChecker
	auth        *auth.Handler
	profile     *profile.Handler
	share       *share.Handler
}

func newRouter(d routerDeps) http.Handler {
	limit := func(name string, n int, msg string) func(http.Handler) http.Handler {
		return middleware.RateLimit(d.limiter, d.log, name, n, authWindow, msg)
	}
	requireAuth := middleware.RequireAuth(d.tokens, d.revocations, d.log)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(d.log))
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Auth routes (public, rate limited per IP)
	r.Route("/api/auth", func(r chi.Router) {
		r.With(limit("signup", 5, "Too many signup attempts. Please try again later.")).
			Post("/signup", d.auth.Signup)
		r.Post("/verify-email", d.auth.VerifyEmail)
		r.With(limit("forgot-password", 3, "Too many password reset attempts. Please try again later.")).
			Post("/forgot-password", d.auth.ForgotPassword)
		r.With(limit("reset-password", 5, "Too many password reset attempts. Please try again later.")).
			Post("/reset-password", d.auth.ResetPassword)
		r.With(limit("login", 10, "Too many login attempts. Please try again later.")).
			Post("/login", d.auth.Login)
		r.Post("/logout", d.auth.Logout)
		r.With(requireAuth).Get("/me", d.auth.Me)
	})

	// Profile routes (protected)
	r.Route("/api/profile", func(r chi.Router) {
		r.Use(requireAuth)
		r.Get("/", d.profile.Get)
		r.Post("/", d.profile.Save)
		r.Get("/avatar", d.profile.DownloadAvatar)
		r.Post("/avatar", d.profile.UploadAvatar)
	})

	// Shared reports (public)
	r.Post("/api/share", d.share.Create)
	r.Get("/api/share/{id}", d.share.Get)

	return r
}
