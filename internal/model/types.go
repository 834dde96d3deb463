package model

import (
	"time"

	"github.com/google/uuid"
)

// User represents a registered account. Either the email or the phone number
// can be used to authenticate; the username is claimed once after signup.
type User struct {
	ID           uuid.UUID
	Email        string
	PhoneNumber  string
	PasswordHash string
	Username     *string
	CreatedAt    time.Time
}

// PublicUser is the client-facing projection of a User. The password hash
// never leaves the server.
type PublicUser struct {
	ID          string  `json:"id"`
	Email       string  `json:"email"`
	PhoneNumber string  `json:"phone"`
	Username    *string `json:"username,omitempty"`
}

// Public returns the projection of the user safe to send to clients.
func (u User) Public() PublicUser {
	return PublicUser{
		ID:          u.ID.String(),
		Email:       u.Email,
		PhoneNumber: u.PhoneNumber,
		Username:    u.Username,
	}
}

// OtpCode is a pending one-time code for a single identifier (email or phone).
// Only the salted hash of the code is stored.
type OtpCode struct {
	ID            uuid.UUID
	Identifier    string
	CodeHash      []byte
	ExpiresAt     time.Time
	ConsumedAt    *time.Time
	CreatedAt     time.Time
	AttemptCount  int
	LastAttemptAt *time.Time
}
