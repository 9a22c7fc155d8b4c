package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User is a document in the MongoDB users collection.
// Token fields hold the SHA-256 hex digest of the token that was emailed.
type User struct {
	ID                       primitive.ObjectID `json:"id"              bson:"_id,omitempty"`
	FirstName                string             `json:"firstName"       bson:"first_name"`
	LastName                 string             `json:"lastName"        bson:"last_name"`
	Username                 string             `json:"username"        bson:"username"`
	Email                    string             `json:"email"           bson:"email"`
	Password                 string             `json:"-"               bson:"password"` // never serialize
	IsEmailVerified          bool               `json:"isEmailVerified" bson:"is_email_verified"`
	EmailVerificationToken   string             `json:"-"               bson:"email_verification_token,omitempty"`
	EmailVerificationExpires *time.Time         `json:"-"               bson:"email_verification_expires,omitempty"`
	ResetPasswordToken       string             `json:"-"               bson:"reset_password_token,omitempty"`
	ResetPasswordExpires     *time.Time         `json:"-"               bson:"reset_password_expires,omitempty"`
	LoginAttempts            int                `json:"-"               bson:"login_attempts"`
	LockUntil                *time.Time         `json:"-"               bson:"lock_until,omitempty"`
	CreatedAt                time.Time          `json:"createdAt"       bson:"created_at"`
	UpdatedAt                time.Time          `json:"updatedAt"       bson:"updated_at"`
}

// IsLocked reports whether the account is inside a login lockout at now.
func (u *User) IsLocked(now time.Time) bool {
	return u.LockUntil != nil && u.LockUntil.After(now)
}

// Summary returns the client-safe view of the user.
func (u *User) Summary() UserSummary {
	return UserSummary{
		ID:              u.ID.Hex(),
		FirstName:       u.FirstName,
		LastName:        u.LastName,
		Username:        u.Username,
		Email:           u.Email,
		IsEmailVerified: u.IsEmailVerified,
	}
}

// UserSummary is what account endpoints return instead of the full document.
type UserSummary struct {
	ID              string `json:"id"`
	FirstName       string `json:"firstName"`
	LastName        string `json:"lastName"`
	Username        string `json:"username"`
	Email           string `json:"email"`
	IsEmailVerified bool   `json:"isEmailVerified"`
}

// SignupRequest is the JSON body for POST /api/auth/signup.
type SignupRequest struct {
	FirstName       string `json:"firstName"`
	LastName        string `json:"lastName"`
	Username        string `json:"username"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
	AcceptTerms     bool   `json:"acceptTerms"`
}

// LoginRequest is the JSON body for POST /api/auth/login.
type LoginRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	RememberMe bool   `json:"rememberMe"`
}

// VerifyEmailRequest is the JSON body for POST /api/auth/verify-email.
type VerifyEmailRequest struct {
	Token string `json:"token"`
}

// ForgotPasswordRequest is the JSON body for POST /api/auth/forgot-password.
type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

// ResetPasswordRequest is the JSON body for POST /api/auth/reset-password.
type ResetPasswordRequest struct {
	Token           string `json:"token"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}
