package session

import (
	"strings"
	"unicode"

	"github.com/matt-steen/timeline-tracker/pkg/apperr"
	"github.com/matt-steen/timeline-tracker/pkg/model"
)

// MinPasswordLength is the shortest password sign-up accepts.
const MinPasswordLength = 8

const specialChars = `!@#$%^&*(),.?":{}|<>`

// ValidatePassword applies the sign-up password policy. It reports the first rule the
// password breaks.
func ValidatePassword(password string) error {
	var upper, lower, digit, special bool

	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case strings.ContainsRune(specialChars, r):
			special = true
		}
	}

	var message string

	switch {
	case len([]rune(password)) < MinPasswordLength:
		message = "Password must be at least 8 characters long"
	case !upper:
		message = "Password must contain at least one uppercase letter"
	case !lower:
		message = "Password must contain at least one lowercase letter"
	case !digit:
		message = "Password must contain at least one number"
	case !special:
		message = "Password must contain at least one special character"
	default:
		return nil
	}

	return apperr.New(apperr.ValidationFailed, "validate password", &model.ValidationError{
		Field:   "password",
		Code:    "policy",
		Message: message,
	})
}
