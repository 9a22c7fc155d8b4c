package auth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ayush/cropcare/backend/internal/httpx"
)

var (
	ErrEmailTaken               = errors.New("email already registered")
	ErrUsernameTaken            = errors.New("username already taken")
	ErrInvalidVerificationToken = errors.New("invalid or expired verification token")
	ErrInvalidResetToken        = errors.New("invalid or expired reset token")
	ErrInvalidCredentials       = errors.New("invalid credentials")
	ErrAccountLocked            = errors.New("account temporarily locked")
	ErrEmailNotVerified         = errors.New("email not verified")
	ErrUserNotFound             = errors.New("user not found")
	ErrInvalidToken             = errors.New("invalid token")
)

// DuplicateFieldError reports a unique-index collision that slipped past the
// up-front existence check.
type DuplicateFieldError struct {
	Field string
}

func (e *DuplicateFieldError) Error() string {
	return fmt.Sprintf("%s already registered", e.Field)
}

// ValidationErrors collects every failed input rule of a request.
type ValidationErrors []httpx.FieldError

func (v ValidationErrors) Error() string {
	parts := make([]string, 0, len(v))
	for _, fe := range v {
		parts = append(parts, fe.Field+": "+fe.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (v *ValidationErrors) add(field, msg string) {
	*v = append(*v, httpx.FieldError{Field: field, Message: msg})
}

func (v ValidationErrors) orNil() error {
	if len(v) == 0 {
		return nil
	}
	return v
}
