package auth

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"

	"github.com/codeandrun/server/internal/model"
	"github.com/codeandrun/server/internal/repo"
)

// dummyPasswordHash is compared when a login identifier matches no account, so
// the request costs the same as a wrong password against a real account. It is
// a hash of a throwaway string, not a credential.
const dummyPasswordHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// RegisterInput is the raw signup payload.
type RegisterInput struct {
	Email    string
	Phone    string
	Password string
}

// OtpRegisterInput is the OTP-verified signup payload. Both channel codes must
// verify before any write happens.
type OtpRegisterInput struct {
	Email    string
	Phone    string
	Password string
	OtpEmail string
	OtpPhone string
}

// OtpCodes holds the plaintext codes issued for each channel. Delivery to the
// user is out of band; dev mode surfaces them directly.
type OtpCodes struct {
	Email string
	Phone string
}

// Service orchestrates registration, authentication and session verification.
type Service struct {
	users  repo.UserRepo
	hasher PasswordHasher
	tokens *TokenService
	otp    *OtpIssuer
}

// NewService creates a new auth service.
func NewService(users repo.UserRepo, hasher PasswordHasher, tokens *TokenService, otp *OtpIssuer) *Service {
	return &Service{users: users, hasher: hasher, tokens: tokens, otp: otp}
}

// Register validates the input, creates the user and issues a session token.
// The store's unique constraints are the race-safety net: a duplicate insert
// surfaces as ErrConflict even when the pre-check passed.
func (s *Service) Register(ctx context.Context, in RegisterInput) (model.User, string, error) {
	in.Email = strings.TrimSpace(in.Email)
	in.Phone = strings.TrimSpace(in.Phone)

	if err := validateSignup(in.Email, in.Phone, in.Password); err != nil {
		return model.User{}, "", err
	}

	exists, err := s.users.Exists(ctx, in.Email, in.Phone)
	if err != nil {
		return model.User{}, "", fmt.Errorf("check existing user: %w", err)
	}
	if exists {
		return model.User{}, "", ErrConflict
	}

	return s.createUserSession(ctx, in.Email, in.Phone, in.Password)
}

// Authenticate verifies the identifier/password pair and issues a session
// token. Missing account and wrong password are indistinguishable to the
// caller, in both response and timing.
func (s *Service) Authenticate(ctx context.Context, identifier, password string) (model.User, string, error) {
	identifier = strings.TrimSpace(identifier)
	fields := make(map[string]string)
	if identifier == "" {
		fields["identifier"] = "identifier is required"
	}
	if password == "" {
		fields["password"] = "password is required"
	}
	if err := newValidationError(fields); err != nil {
		return model.User{}, "", err
	}

	user, lookupErr := s.users.GetByEmailOrPhone(ctx, identifier)
	targetHash := user.PasswordHash
	userExists := true
	if lookupErr != nil {
		if !errors.Is(lookupErr, repo.ErrNotFound) {
			return model.User{}, "", fmt.Errorf("look up user: %w", lookupErr)
		}
		targetHash = dummyPasswordHash
		userExists = false
	}

	match, err := s.hasher.Verify(password, targetHash)
	if err != nil && userExists {
		return model.User{}, "", fmt.Errorf("verify password: %w", err)
	}
	if !userExists || !match {
		return model.User{}, "", ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return model.User{}, "", fmt.Errorf("issue token: %w", err)
	}
	return user, token, nil
}

// VerifySession verifies the session token and re-fetches the user it was
// issued for. Any token problem, and a vanished user, map to
// ErrUnauthenticated.
func (s *Service) VerifySession(ctx context.Context, token string) (model.User, error) {
	userID, err := s.tokens.Verify(token)
	if err != nil {
		return model.User{}, ErrUnauthenticated
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return model.User{}, ErrUnauthenticated
		}
		return model.User{}, fmt.Errorf("fetch user: %w", err)
	}
	return user, nil
}

// CheckUser reports whether an account with the email or phone exists. This is
// a deliberate existence probe used by the signup flow.
func (s *Service) CheckUser(ctx context.Context, email, phone string) (bool, error) {
	exists, err := s.users.Exists(ctx, strings.TrimSpace(email), strings.TrimSpace(phone))
	if err != nil {
		return false, fmt.Errorf("check existing user: %w", err)
	}
	return exists, nil
}

// SendOtp issues one code per channel for an OTP-verified signup. Actual
// delivery is an external concern; this stub logs the dispatch with masked
// identifiers and never logs the codes.
func (s *Service) SendOtp(ctx context.Context, email, phone string) (OtpCodes, error) {
	email = strings.TrimSpace(email)
	phone = strings.TrimSpace(phone)

	fields := make(map[string]string)
	if !emailPattern.MatchString(email) {
		fields["email"] = "invalid email format"
	}
	if !phonePattern.MatchString(phone) {
		fields["phone"] = "phone number must be 10 digits"
	}
	if err := newValidationError(fields); err != nil {
		return OtpCodes{}, err
	}

	emailCode, err := s.otp.Issue(ctx, email)
	if err != nil {
		return OtpCodes{}, err
	}
	phoneCode, err := s.otp.Issue(ctx, phone)
	if err != nil {
		return OtpCodes{}, err
	}

	log.Printf("OTP dispatch (stub): email=%s phone=%s", MaskIdentifier(email), MaskIdentifier(phone))

	return OtpCodes{Email: emailCode, Phone: phoneCode}, nil
}

// VerifyOtpAndRegister requires both channel codes to verify before any write.
// On success both codes are consumed so they cannot be replayed.
func (s *Service) VerifyOtpAndRegister(ctx context.Context, in OtpRegisterInput) (model.User, string, error) {
	in.Email = strings.TrimSpace(in.Email)
	in.Phone = strings.TrimSpace(in.Phone)

	if err := validateSignup(in.Email, in.Phone, in.Password); err != nil {
		return model.User{}, "", err
	}

	if err := s.otp.Verify(ctx, in.Email, in.OtpEmail); err != nil {
		return model.User{}, "", err
	}
	if err := s.otp.Verify(ctx, in.Phone, in.OtpPhone); err != nil {
		return model.User{}, "", err
	}

	user, token, err := s.createUserSession(ctx, in.Email, in.Phone, in.Password)
	if err != nil {
		return model.User{}, "", err
	}

	if err := s.otp.Consume(ctx, in.Email); err != nil {
		log.Printf("consume email OTP for %s: %v", MaskIdentifier(in.Email), err)
	}
	if err := s.otp.Consume(ctx, in.Phone); err != nil {
		log.Printf("consume phone OTP for %s: %v", MaskIdentifier(in.Phone), err)
	}

	return user, token, nil
}

// ClaimUsername sets the account's username. The username is unique and
// immutable once set.
func (s *Service) ClaimUsername(ctx context.Context, userID uuid.UUID, username string) (model.User, error) {
	username = strings.TrimSpace(username)
	if !usernamePattern.MatchString(username) {
		return model.User{}, newValidationError(map[string]string{
			"username": "username must be 3-20 characters: letters, digits, underscore",
		})
	}

	user, err := s.users.ClaimUsername(ctx, userID, username)
	if err != nil {
		switch {
		case errors.Is(err, repo.ErrDuplicate):
			return model.User{}, ErrConflict
		case errors.Is(err, repo.ErrNotFound):
			// Either the user vanished or the username is already set;
			// distinguish so the client gets the right status.
			if _, getErr := s.users.GetByID(ctx, userID); getErr == nil {
				return model.User{}, ErrConflict
			}
			return model.User{}, ErrUnauthenticated
		}
		return model.User{}, fmt.Errorf("claim username: %w", err)
	}
	return user, nil
}

// createUserSession hashes the password, inserts the user and issues a token.
func (s *Service) createUserSession(ctx context.Context, email, phone, password string) (model.User, string, error) {
	hashed, err := s.hasher.Hash(password)
	if err != nil {
		return model.User{}, "", fmt.Errorf("hash password: %w", err)
	}

	user, err := s.users.Create(ctx, email, phone, hashed)
	if err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return model.User{}, "", ErrConflict
		}
		return model.User{}, "", fmt.Errorf("create user: %w", err)
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return model.User{}, "", fmt.Errorf("issue token: %w", err)
	}
	return user, token, nil
}
