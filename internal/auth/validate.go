package auth

import (
	"regexp"
	"strings"
)

// Input format rules shared by the signup paths.
var (
	emailPattern    = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.(com|net|org|edu|gov|mil|in|co|io|tech)$`)
	phonePattern    = regexp.MustCompile(`^[0-9]{10}$`)
	usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]{3,20}$`)
)

const (
	passwordMinLen   = 8
	passwordMaxLen   = 16
	passwordSpecials = "@*."
)

// validPassword enforces the password policy: 8-16 characters, at least one
// uppercase letter, one digit and one of the allowed special characters, and
// nothing outside letters, digits and those specials.
func validPassword(password string) bool {
	if len(password) < passwordMinLen || len(password) > passwordMaxLen {
		return false
	}
	var hasUpper, hasDigit, hasSpecial bool
	for _, c := range password {
		switch {
		case c >= 'A' && c <= 'Z':
			hasUpper = true
		case c >= 'a' && c <= 'z':
		case c >= '0' && c <= '9':
			hasDigit = true
		case strings.ContainsRune(passwordSpecials, c):
			hasSpecial = true
		default:
			return false
		}
	}
	return hasUpper && hasDigit && hasSpecial
}

// validateSignup aggregates all field problems so the client can display
// every one at once. Returns nil when the input is well-formed.
func validateSignup(email, phone, password string) error {
	fields := make(map[string]string)
	if !emailPattern.MatchString(email) {
		fields["email"] = "invalid email format"
	}
	if !phonePattern.MatchString(phone) {
		fields["phone"] = "phone number must be 10 digits"
	}
	if !validPassword(password) {
		fields["password"] = "password must be 8-16 characters with 1 uppercase, 1 digit, and 1 special character (@ * .)"
	}
	return newValidationError(fields)
}

// MaskIdentifier masks an email or phone number for logging, keeping only the
// first and last two characters.
func MaskIdentifier(identifier string) string {
	if len(identifier) <= 4 {
		return "****"
	}
	return identifier[:2] + strings.Repeat("*", len(identifier)-4) + identifier[len(identifier)-2:]
}
