package auth

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrConflict is returned when a unique identifier (email, phone or
	// username) is already taken.
	ErrConflict = errors.New("already exists")

	// ErrInvalidCredentials is returned for any failed login. Deliberately
	// generic: callers must not learn whether the identifier exists.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrUnauthenticated is returned when a session cannot be established
	// from the presented token.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrOtpInvalid covers unknown identifiers, mismatched codes and expired
	// codes alike, so a caller cannot probe which identifiers have a pending
	// code.
	ErrOtpInvalid = errors.New("invalid or expired OTP")

	// ErrOtpRateLimited is returned when too many codes were requested for
	// one identifier in the rate window.
	ErrOtpRateLimited = errors.New("rate limit exceeded")

	// ErrTokenExpired is returned when a session token is past its TTL.
	ErrTokenExpired = errors.New("token expired")

	// ErrTokenInvalid is returned for malformed tokens or signature mismatch.
	ErrTokenInvalid = errors.New("token invalid")

	// ErrTokenMissing is returned when no token was presented.
	ErrTokenMissing = errors.New("token missing")

	// ErrInvalidHashFormat is returned when a stored password hash cannot be
	// parsed.
	ErrInvalidHashFormat = errors.New("invalid hash format")
)

// ValidationError aggregates per-field input problems so the client can show
// all of them at once.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// newValidationError returns nil when no fields are set.
func newValidationError(fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}
	return &ValidationError{Fields: fields}
}
