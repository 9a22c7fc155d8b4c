package auth

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/ayush/cropcare/backend/internal/models"
)

var (
	nameRegex     = regexp.MustCompile(`^[a-zA-Z\s]+$`)
	usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)
	emailRegex    = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
)

const (
	passwordSpecials = "@$!%*?&"
	passwordRuleMsg  = "Password must contain at least one uppercase letter, one lowercase letter, one number, and one special character"
)

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateSignup(req *models.SignupRequest) error {
	var errs ValidationErrors

	validateName(&errs, "firstName", "First name", req.FirstName)
	validateName(&errs, "lastName", "Last name", req.LastName)

	switch n := utf8.RuneCountInString(req.Username); {
	case n < 3:
		errs.add("username", "Username must be at least 3 characters")
	case n > 30:
		errs.add("username", "Username cannot exceed 30 characters")
	case !usernameRegex.MatchString(req.Username):
		errs.add("username", "Username can only contain letters, numbers, and underscores")
	}

	validateEmail(&errs, req.Email)
	if len(req.Email) > 100 {
		errs.add("email", "Email cannot exceed 100 characters")
	}

	validatePassword(&errs, req.Password)
	if req.Password != req.ConfirmPassword {
		errs.add("confirmPassword", "Passwords don't match")
	}
	if !req.AcceptTerms {
		errs.add("acceptTerms", "You must accept the terms and conditions")
	}
	return errs.orNil()
}

func validateResetPassword(req *models.ResetPasswordRequest) error {
	var errs ValidationErrors
	if req.Token == "" {
		errs.add("token", "Reset token is required")
	}
	validatePassword(&errs, req.Password)
	if req.Password != req.ConfirmPassword {
		errs.add("confirmPassword", "Passwords don't match")
	}
	return errs.orNil()
}

func validateForgotPassword(req *models.ForgotPasswordRequest) error {
	var errs ValidationErrors
	validateEmail(&errs, req.Email)
	return errs.orNil()
}

func validateLogin(req *models.LoginRequest) error {
	var errs ValidationErrors
	validateEmail(&errs, req.Email)
	if req.Password == "" {
		errs.add("password", "Password is required")
	}
	return errs.orNil()
}

func validateName(errs *ValidationErrors, field, label, v string) {
	switch n := utf8.RuneCountInString(v); {
	case n == 0:
		errs.add(field, label+" is required")
	case n > 50:
		errs.add(field, label+" cannot exceed 50 characters")
	case !nameRegex.MatchString(v):
		errs.add(field, label+" can only contain letters and spaces")
	}
}

func validateEmail(errs *ValidationErrors, email string) {
	if !emailRegex.MatchString(email) {
		errs.add("email", "Please enter a valid email address")
	}
}

// validatePassword requires 8+ characters with at least one lowercase
// letter, uppercase letter, digit and one of @$!%*?&. Other characters are
// allowed.
func validatePassword(errs *ValidationErrors, pw string) {
	if len(pw) < 8 {
		errs.add("password", "Password must be at least 8 characters")
		return
	}

	var lower, upper, digit, special bool
	for _, c := range pw {
		switch {
		case c >= 'a' && c <= 'z':
			lower = true
		case c >= 'A' && c <= 'Z':
			upper = true
		case c >= '0' && c <= '9':
			digit = true
		case strings.ContainsRune(passwordSpecials, c):
			special = true
		}
	}
	if !lower || !upper || !digit || !special {
		errs.add("password", passwordRuleMsg)
	}
}
