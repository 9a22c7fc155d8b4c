package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"

	"github.com/ayush/cropcare/backend/internal/audit"
	"github.com/ayush/cropcare/backend/internal/models"
	"github.com/ayush/cropcare/backend/internal/store"
)

const (
	VerificationTTL = 24 * time.Hour
	ResetTTL        = time.Hour

	maxLoginAttempts = 5
	lockDuration     = 2 * time.Hour
)

// UserStore defines the interface for user persistence. Lookups return
// store.ErrNotFound when nothing matches.
type UserStore interface {
	CreateUser(ctx context.Context, u *models.User) error
	FindByEmailOrUsername(ctx context.Context, email, username string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	SetResetToken(ctx context.Context, id primitive.ObjectID, tokenHash string, expires time.Time) error
	ConsumeVerificationToken(ctx context.Context, tokenHash string, now time.Time) (*models.User, error)
	ConsumeResetToken(ctx context.Context, tokenHash, passwordHash string, now time.Time) (*models.User, error)
	IncrementLoginAttempts(ctx context.Context, id primitive.ObjectID) (int, error)
	LockUser(ctx context.Context, id primitive.ObjectID, until time.Time) error
	ResetLoginAttempts(ctx context.Context, id primitive.ObjectID) error
}

// Notifier delivers account emails.
type Notifier interface {
	SendVerificationEmail(ctx context.Context, to, token string) error
	SendPasswordResetEmail(ctx context.Context, to, token string) error
}

// Service implements the account lifecycle.
type Service struct {
	users    UserStore
	notifier Notifier
	tokens   *TokenIssuer
	events   audit.Recorder
	log      *slog.Logger

	now      func() time.Time
	hashCost int
}

func NewService(users UserStore, notifier Notifier, tokens *TokenIssuer, events audit.Recorder, log *slog.Logger) *Service {
	return &Service{
		users:    users,
		notifier: notifier,
		tokens:   tokens,
		events:   events,
		log:      log,
		now:      time.Now,
		hashCost: bcrypt.DefaultCost,
	}
}

// LoginResult is a successful login.
type LoginResult struct {
	User   *models.User
	Token  string
	Claims *Claims
}

// Signup validates req, creates an unverified user and emails the
// verification link.
func (s *Service) Signup(ctx context.Context, req *models.SignupRequest) (*models.User, error) {
	req.Email = normalizeEmail(req.Email)
	req.Username = strings.TrimSpace(req.Username)
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	if err := validateSignup(req); err != nil {
		return nil, err
	}

	existing, err := s.users.FindByEmailOrUsername(ctx, req.Email, req.Username)
	switch {
	case err == nil && existing.Email == req.Email:
		return nil, ErrEmailTaken
	case err == nil:
		return nil, ErrUsernameTaken
	case !errors.Is(err, store.ErrNotFound):
		return nil, fmt.Errorf("lookup existing user: %w", err)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.hashCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	token, tokenHash, err := newToken()
	if err != nil {
		return nil, err
	}

	now := s.now()
	expires := now.Add(VerificationTTL)
	user := &models.User{
		FirstName:                req.FirstName,
		LastName:                 req.LastName,
		Username:                 req.Username,
		Email:                    req.Email,
		Password:                 string(hashed),
		EmailVerificationToken:   tokenHash,
		EmailVerificationExpires: &expires,
		CreatedAt:                now,
		UpdatedAt:                now,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		var dup *store.DuplicateKeyError
		if errors.As(err, &dup) {
			return nil, &DuplicateFieldError{Field: dup.Field}
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	if err := s.notifier.SendVerificationEmail(ctx, user.Email, token); err != nil {
		s.log.ErrorContext(ctx, "failed to send verification email", "user_id", user.ID.Hex(), "error", err)
	}
	s.record(ctx, audit.Event{UserID: user.ID.Hex(), Email: user.Email, Action: audit.ActionSignup, Success: true})
	return user, nil
}

// VerifyEmail consumes a verification token.
func (s *Service) VerifyEmail(ctx context.Context, token string) error {
	if token == "" {
		return ErrInvalidVerificationToken
	}
	user, err := s.users.ConsumeVerificationToken(ctx, hashToken(token), s.now())
	if errors.Is(err, store.ErrNotFound) {
		return ErrInvalidVerificationToken
	}
	if err != nil {
		return fmt.Errorf("consume verification token: %w", err)
	}
	s.record(ctx, audit.Event{UserID: user.ID.Hex(), Email: user.Email, Action: audit.ActionEmailVerified, Success: true})
	return nil
}

// ForgotPassword issues a reset token when the email belongs to a user. It
// returns nil for unknown emails so callers cannot tell which accounts exist.
func (s *Service) ForgotPassword(ctx context.Context, req *models.ForgotPasswordRequest) error {
	req.Email = normalizeEmail(req.Email)
	if err := validateForgotPassword(req); err != nil {
		return err
	}

	user, err := s.users.GetUserByEmail(ctx, req.Email)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("lookup user: %w", err)
	}

	token, tokenHash, err := newToken()
	if err != nil {
		return err
	}
	if err := s.users.SetResetToken(ctx, user.ID, tokenHash, s.now().Add(ResetTTL)); err != nil {
		return fmt.Errorf("store reset token: %w", err)
	}

	if err := s.notifier.SendPasswordResetEmail(ctx, user.Email, token); err != nil {
		s.log.ErrorContext(ctx, "failed to send password reset email", "user_id", user.ID.Hex(), "error", err)
	}
	s.record(ctx, audit.Event{UserID: user.ID.Hex(), Email: user.Email, Action: audit.ActionResetRequested, Success: true})
	return nil
}

// ResetPassword consumes a reset token, replaces the password and clears any
// login lockout.
func (s *Service) ResetPassword(ctx context.Context, req *models.ResetPasswordRequest) error {
	if err := validateResetPassword(req); err != nil {
		return err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.hashCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	user, err := s.users.ConsumeResetToken(ctx, hashToken(req.Token), string(hashed), s.now())
	if errors.Is(err, store.ErrNotFound) {
		return ErrInvalidResetToken
	}
	if err != nil {
		return fmt.Errorf("consume reset token: %w", err)
	}
	s.record(ctx, audit.Event{UserID: user.ID.Hex(), Email: user.Email, Action: audit.ActionPasswordReset, Success: true})
	return nil
}

// Login checks credentials, enforces lockout and issues a session token.
func (s *Service) Login(ctx context.Context, req *models.LoginRequest) (*LoginResult, error) {
	req.Email = normalizeEmail(req.Email)
	if err := validateLogin(req); err != nil {
		return nil, err
	}

	user, err := s.users.GetUserByEmail(ctx, req.Email)
	if errors.Is(err, store.ErrNotFound) {
		s.record(ctx, audit.Event{Email: req.Email, Action: audit.ActionLoginFailed, Detail: "unknown email"})
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	now := s.now()
	if user.IsLocked(now) {
		s.record(ctx, audit.Event{UserID: user.ID.Hex(), Email: user.Email, Action: audit.ActionLoginFailed, Detail: "locked"})
		return nil, ErrAccountLocked
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, s.loginFailed(ctx, user, now)
	}

	if !user.IsEmailVerified {
		return nil, ErrEmailNotVerified
	}

	if user.LoginAttempts > 0 || user.LockUntil != nil {
		if err := s.users.ResetLoginAttempts(ctx, user.ID); err != nil {
			return nil, fmt.Errorf("reset login attempts: %w", err)
		}
	}

	ttl := s.tokens.TTL()
	if req.RememberMe {
		ttl = RememberMeTTL
	}
	token, claims, err := s.tokens.Issue(user, ttl)
	if err != nil {
		return nil, err
	}

	s.record(ctx, audit.Event{UserID: user.ID.Hex(), Email: user.Email, Action: audit.ActionLoginSuccess, Success: true})
	return &LoginResult{User: user, Token: token, Claims: claims}, nil
}

func (s *Service) loginFailed(ctx context.Context, user *models.User, now time.Time) error {
	attempts, err := s.users.IncrementLoginAttempts(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("increment login attempts: %w", err)
	}
	s.record(ctx, audit.Event{UserID: user.ID.Hex(), Email: user.Email, Action: audit.ActionLoginFailed, Detail: "bad password"})

	if attempts >= maxLoginAttempts {
		if err := s.users.LockUser(ctx, user.ID, now.Add(lockDuration)); err != nil {
			return fmt.Errorf("lock user: %w", err)
		}
		s.record(ctx, audit.Event{
			UserID: user.ID.Hex(), Email: user.Email, Action: audit.ActionAccountLocked,
			Detail: fmt.Sprintf("locked after %d failed attempts", attempts),
		})
	}
	return ErrInvalidCredentials
}

// CurrentUser loads the authenticated user.
func (s *Service) CurrentUser(ctx context.Context, id string) (*models.User, error) {
	user, err := s.users.GetUserByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	return user, nil
}

func (s *Service) record(ctx context.Context, ev audit.Event) {
	ev.At = s.now()
	if ev.IP == "" {
		ev.IP = audit.ClientIP(ctx)
	}
	if err := s.events.Record(ctx, ev); err != nil {
		s.log.WarnContext(ctx, "failed to record account event", "action", ev.Action, "error", err)
	}
}

// newToken returns a random 32-byte hex token and the digest that is stored.
func newToken() (string, string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("generate token: %w", err)
	}
	token := hex.EncodeToString(buf)
	return token, hashToken(token), nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
