package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/codeandrun/server/internal/repo"
)

const (
	otpExpiry          = 5 * time.Minute
	otpMaxAttempts     = 5
	otpMinAttemptDelay = 2 * time.Second
	otpRequestWindow   = 10 * time.Minute
	otpMaxPerWindow    = 3
	devOtpCode         = "123456"
)

// OtpIssuer generates, verifies and consumes one-time codes. Codes are keyed
// by identifier (email or phone), stored only as a salted hash, and expire
// lazily: an expired or superseded code is simply never returned by the store.
type OtpIssuer struct {
	otpRepo repo.OtpRepo
	salt    string
	devMode bool
}

// NewOtpIssuer creates a new OTP issuer. In dev mode every issued code is the
// fixed devOtpCode so local clients can complete signup without delivery.
func NewOtpIssuer(otpRepo repo.OtpRepo, salt string, devMode bool) *OtpIssuer {
	return &OtpIssuer{otpRepo: otpRepo, salt: salt, devMode: devMode}
}

// Issue generates a 6-digit code for the identifier, replacing any live code.
// Rate limit: max 3 issues per 10 minutes per identifier, enforced against
// the store so it holds across instances. Returns the plaintext code; the
// caller is responsible for dispatch.
func (p *OtpIssuer) Issue(ctx context.Context, identifier string) (string, error) {
	since := time.Now().Add(-otpRequestWindow)
	count, err := p.otpRepo.CountRecent(ctx, identifier, since)
	if err != nil {
		return "", fmt.Errorf("rate limit check: %w", err)
	}
	if count >= otpMaxPerWindow {
		return "", ErrOtpRateLimited
	}

	code := devOtpCode
	if !p.devMode {
		code, err = generateOtpCode()
		if err != nil {
			return "", fmt.Errorf("generate code: %w", err)
		}
	}

	expiresAt := time.Now().Add(otpExpiry)
	hashHex := hashOtpHex(identifier, code, p.salt)
	if _, err := p.otpRepo.CreateOrReplace(ctx, identifier, hashHex, expiresAt); err != nil {
		return "", fmt.Errorf("store code: %w", err)
	}
	return code, nil
}

// Verify checks the code against the live entry for the identifier. It does
// not consume on success; call Consume after the registration it guards has
// committed. All failure modes report ErrOtpInvalid.
func (p *OtpIssuer) Verify(ctx context.Context, identifier, code string) error {
	entry, err := p.otpRepo.GetActive(ctx, identifier)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrOtpInvalid
		}
		return fmt.Errorf("load code: %w", err)
	}

	if entry.LastAttemptAt != nil && time.Since(*entry.LastAttemptAt) < otpMinAttemptDelay {
		return ErrOtpInvalid
	}

	attempts, err := p.otpRepo.IncrementAttempt(ctx, entry.ID)
	if err != nil {
		return fmt.Errorf("record attempt: %w", err)
	}
	if attempts >= otpMaxAttempts {
		_ = p.otpRepo.MarkConsumed(ctx, entry.ID)
		return ErrOtpInvalid
	}

	provided := hashOtpBytes(identifier, code, p.salt)
	if subtle.ConstantTimeCompare(provided, entry.CodeHash) != 1 {
		return ErrOtpInvalid
	}
	return nil
}

// Consume removes the live code for the identifier so it cannot be replayed.
func (p *OtpIssuer) Consume(ctx context.Context, identifier string) error {
	entry, err := p.otpRepo.GetActive(ctx, identifier)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrOtpInvalid
		}
		return fmt.Errorf("load code: %w", err)
	}
	if err := p.otpRepo.MarkConsumed(ctx, entry.ID); err != nil {
		return fmt.Errorf("consume code: %w", err)
	}
	return nil
}

// generateOtpCode returns a uniformly random 6-digit decimal code.
func generateOtpCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// hashOtpHex returns SHA-256(identifier:code:salt) as hex for storage.
func hashOtpHex(identifier, code, salt string) string {
	return hex.EncodeToString(hashOtpBytes(identifier, code, salt))
}

func hashOtpBytes(identifier, code, salt string) []byte {
	sum := sha256.Sum256([]byte(identifier + ":" + code + ":" + salt))
	return sum[:]
}
