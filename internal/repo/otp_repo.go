package repo

import (
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/codeandrun/server/internal/model"
)

// OtpRepo defines the interface for one-time code storage.
type OtpRepo interface {
	CreateOrReplace(ctx context.Context, identifier, codeHashHex string, expiresAt time.Time) (uuid.UUID, error)
	GetActive(ctx context.Context, identifier string) (model.OtpCode, error)
	MarkConsumed(ctx context.Context, id uuid.UUID) error
	IncrementAttempt(ctx context.Context, id uuid.UUID) (int, error)
	CountRecent(ctx context.Context, identifier string, since time.Time) (int, error)
}

type otpRepo struct {
	db *sql.DB
}

// NewOtpRepo creates a new OtpRepo instance.
func NewOtpRepo(db *sql.DB) OtpRepo {
	return &otpRepo{db: db}
}

// CreateOrReplace ensures only one live code per identifier: atomically consumes
// any existing unconsumed code and inserts a new one. An advisory lock
// serializes concurrent issues for the same identifier so the partial unique
// index never trips.
func (r *otpRepo) CreateOrReplace(ctx context.Context, identifier, codeHashHex string, expiresAt time.Time) (uuid.UUID, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return uuid.Nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(1, hashtext($1))`, identifier)
	if err != nil {
		return uuid.Nil, fmt.Errorf("advisory lock: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE otp_codes
		SET consumed_at = now()
		WHERE identifier = $1 AND consumed_at IS NULL
	`, identifier)
	if err != nil {
		return uuid.Nil, fmt.Errorf("consume existing codes: %w", err)
	}

	var idStr string
	err = tx.QueryRowContext(ctx, `
		INSERT INTO otp_codes (identifier, code_hash, expires_at)
		VALUES ($1, $2, $3)
		RETURNING id
	`, identifier, codeHashHex, expiresAt).Scan(&idStr)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert code: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return uuid.Nil, fmt.Errorf("commit: %w", err)
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		return uuid.Nil, fmt.Errorf("parse code ID: %w", err)
	}
	return id, nil
}

// GetActive returns the live (unconsumed, unexpired, attempt_count < 5) code
// for the identifier. Expired codes are never returned, which is the lazy
// eviction policy for the table.
func (r *otpRepo) GetActive(ctx context.Context, identifier string) (model.OtpCode, error) {
	query := `
		SELECT id, identifier, code_hash, expires_at, consumed_at, created_at,
		       attempt_count, last_attempt_at
		FROM otp_codes
		WHERE identifier = $1
		  AND consumed_at IS NULL
		  AND expires_at > now()
		  AND attempt_count < 5
		ORDER BY created_at DESC
		LIMIT 1
	`
	var code model.OtpCode
	var idStr string
	var codeHashHex string
	err := r.db.QueryRowContext(ctx, query, identifier).Scan(
		&idStr,
		&code.Identifier,
		&codeHashHex,
		&code.ExpiresAt,
		&code.ConsumedAt,
		&code.CreatedAt,
		&code.AttemptCount,
		&code.LastAttemptAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.OtpCode{}, ErrNotFound
		}
		return model.OtpCode{}, fmt.Errorf("query code: %w", err)
	}

	code.ID, err = uuid.Parse(idStr)
	if err != nil {
		return model.OtpCode{}, fmt.Errorf("parse code ID: %w", err)
	}
	code.CodeHash, err = hex.DecodeString(codeHashHex)
	if err != nil {
		return model.OtpCode{}, fmt.Errorf("decode code_hash: %w", err)
	}
	return code, nil
}

// MarkConsumed sets consumed_at = now() for the code.
func (r *otpRepo) MarkConsumed(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE otp_codes SET consumed_at = now() WHERE id = $1
	`, id.String())
	if err != nil {
		return fmt.Errorf("mark consumed: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// IncrementAttempt bumps attempt_count and last_attempt_at; returns the new count.
func (r *otpRepo) IncrementAttempt(ctx context.Context, id uuid.UUID) (int, error) {
	var newCount int
	err := r.db.QueryRowContext(ctx, `
		UPDATE otp_codes
		SET attempt_count = attempt_count + 1, last_attempt_at = now()
		WHERE id = $1
		RETURNING attempt_count
	`, id.String()).Scan(&newCount)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("increment attempt: %w", err)
	}
	return newCount, nil
}

// CountRecent returns the number of codes issued for the identifier since the
// given time, for issue rate limiting.
func (r *otpRepo) CountRecent(ctx context.Context, identifier string, since time.Time) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM otp_codes
		WHERE identifier = $1 AND created_at >= $2
	`, identifier, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count recent codes: %w", err)
	}
	return count, nil
}
