package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/ayush/cropcare/backend/internal/audit"
	"github.com/ayush/cropcare/backend/internal/httpx"
	"github.com/ayush/cropcare/backend/internal/models"
)

// Revoker remembers logged-out session tokens.
type Revoker interface {
	Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error
}

// ActivityReader lists a user's latest account events.
type ActivityReader interface {
	RecentEvents(ctx context.Context, userID string, limit int) ([]audit.Event, error)
}

// recentActivityLimit is how many events Me returns.
const recentActivityLimit = 10

// Handler holds auth-related HTTP handlers.
type Handler struct {
	svc          *Service
	tokens       *TokenIssuer
	revocations  Revoker
	activity     ActivityReader
	secureCookie bool
	log          *slog.Logger
}

func NewHandler(svc *Service, tokens *TokenIssuer, revocations Revoker, secureCookie bool, log *slog.Logger) *Handler {
	return &Handler{svc: svc, tokens: tokens, revocations: revocations, secureCookie: secureCookie, log: log}
}

// WithActivity makes Me include the caller's recent account events.
func (h *Handler) WithActivity(a ActivityReader) *Handler {
	h.activity = a
	return h
}

type messageResponse struct {
	Message string `json:"message"`
}

type userResponse struct {
	Message        string             `json:"message,omitempty"`
	User           models.UserSummary `json:"user"`
	Token          string             `json:"token,omitempty"`
	RecentActivity []audit.Event      `json:"recentActivity,omitempty"`
}

// Signup creates a new unverified user.
func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var req models.SignupRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, err := h.svc.Signup(withIP(r), &req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, userResponse{
		Message: "Account created successfully! Please check your email to verify your account.",
		User:    user.Summary(),
	})
}

// VerifyEmail consumes an email verification token.
func (h *Handler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req models.VerifyEmailRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil || req.Token == "" {
		httpx.Error(w, http.StatusBadRequest, "Verification token is required")
		return
	}

	if err := h.svc.VerifyEmail(withIP(r), req.Token); err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, messageResponse{Message: "Email verified successfully! You can now log in."})
}

// ForgotPassword starts a password reset. The response never reveals
// whether the email is registered.
func (h *Handler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req models.ForgotPasswordRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.svc.ForgotPassword(withIP(r), &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, messageResponse{
		Message: "If an account with that email exists, we have sent a password reset link.",
	})
}

// ResetPassword sets a new password using a reset token.
func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req models.ResetPasswordRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.svc.ResetPassword(withIP(r), &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, messageResponse{
		Message: "Password reset successfully! You can now log in with your new password.",
	})
}

// Login authenticates a user and sets the session cookie.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	res, err := h.svc.Login(withIP(r), &req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    res.Token,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
		Expires:  res.Claims.ExpiresAt.Time,
		MaxAge:   int(time.Until(res.Claims.ExpiresAt.Time) / time.Second),
	})

	httpx.WriteJSON(w, http.StatusOK, userResponse{
		Message: "Login successful",
		User:    res.User.Summary(),
		Token:   res.Token,
	})
}

// Logout revokes the presented token, if it is still valid, and clears the
// cookie.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if raw := TokenFromRequest(r); raw != "" {
		if claims, err := h.tokens.Verify(raw); err == nil {
			if err := h.revocations.Revoke(r.Context(), claims.ID, claims.ExpiresAt.Time); err != nil {
				httpx.Internal(w, r, h.log, "failed to revoke token", err)
				return
			}
			h.svc.record(withIP(r), audit.Event{
				UserID: claims.UserID, Email: claims.Email, Action: audit.ActionLogout, Success: true,
			})
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
	httpx.WriteJSON(w, http.StatusOK, messageResponse{Message: "Logged out successfully"})
}

// Me returns the currently authenticated user and, when an event log is
// configured, their latest account events.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFrom(r.Context())
	if !ok {
		httpx.Error(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	user, err := h.svc.CurrentUser(r.Context(), claims.UserID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	resp := userResponse{User: user.Summary()}
	if h.activity != nil {
		events, err := h.activity.RecentEvents(r.Context(), claims.UserID, recentActivityLimit)
		if err != nil {
			h.log.WarnContext(r.Context(), "failed to load recent activity", "user_id", claims.UserID, "error", err)
		} else {
			resp.RecentActivity = events
		}
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

// writeError maps service errors onto status codes and messages.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		verrs ValidationErrors
		dup   *DuplicateFieldError
	)
	switch {
	case errors.As(err, &verrs):
		httpx.ValidationFailed(w, verrs)
	case errors.As(err, &dup):
		httpx.Error(w, http.StatusBadRequest, "This "+dup.Field+" is already registered")
	case errors.Is(err, ErrEmailTaken):
		httpx.Error(w, http.StatusBadRequest, "An account with this email already exists")
	case errors.Is(err, ErrUsernameTaken):
		httpx.Error(w, http.StatusBadRequest, "This username is already taken")
	case errors.Is(err, ErrInvalidVerificationToken):
		httpx.Error(w, http.StatusBadRequest, "Invalid or expired verification token")
	case errors.Is(err, ErrInvalidResetToken):
		httpx.Error(w, http.StatusBadRequest, "Invalid or expired reset token")
	case errors.Is(err, ErrInvalidCredentials):
		httpx.Error(w, http.StatusUnauthorized, "Invalid email or password")
	case errors.Is(err, ErrAccountLocked):
		httpx.Error(w, http.StatusLocked, "Account temporarily locked due to too many failed login attempts. Please try again later.")
	case errors.Is(err, ErrEmailNotVerified):
		httpx.Error(w, http.StatusForbidden, "Please verify your email address before logging in")
	case errors.Is(err, ErrUserNotFound):
		httpx.Error(w, http.StatusUnauthorized, "Unauthorized")
	default:
		httpx.Internal(w, r, h.log, "auth request failed", err)
	}
}

func withIP(r *http.Request) context.Context {
	return audit.WithClientIP(r.Context(), httpx.ClientIP(r))
}
