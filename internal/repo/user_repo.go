package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/codeandrun/server/internal/model"
)

var (
	// ErrNotFound is returned when no row matches the query.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when an insert or update violates a unique
	// constraint. The constraints are the source of truth for identifier
	// uniqueness under concurrent registration.
	ErrDuplicate = errors.New("duplicate")
)

// isUniqueViolation reports whether err is a Postgres unique_violation.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// UserRepo defines the interface for user repository operations.
type UserRepo interface {
	Create(ctx context.Context, email, phone, passwordHash string) (model.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (model.User, error)
	GetByEmailOrPhone(ctx context.Context, identifier string) (model.User, error)
	Exists(ctx context.Context, email, phone string) (bool, error)
	ClaimUsername(ctx context.Context, id uuid.UUID, username string) (model.User, error)
}

type userRepo struct {
	db *sql.DB
}

// NewUserRepo creates a new UserRepo instance.
func NewUserRepo(db *sql.DB) UserRepo {
	return &userRepo{db: db}
}

const userColumns = `id, email, phone_number, password_hash, username, created_at`

func scanUser(row *sql.Row) (model.User, error) {
	var user model.User
	var idStr string
	err := row.Scan(
		&idStr,
		&user.Email,
		&user.PhoneNumber,
		&user.PasswordHash,
		&user.Username,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, ErrNotFound
		}
		return model.User{}, fmt.Errorf("scan user: %w", err)
	}
	user.ID, err = uuid.Parse(idStr)
	if err != nil {
		return model.User{}, fmt.Errorf("parse user ID: %w", err)
	}
	return user, nil
}

// Create inserts a new user. A unique-constraint violation on email or phone
// is reported as ErrDuplicate.
func (r *userRepo) Create(ctx context.Context, email, phone, passwordHash string) (model.User, error) {
	query := `
		INSERT INTO users (email, phone_number, password_hash)
		VALUES ($1, $2, $3)
		RETURNING ` + userColumns
	user, err := scanUser(r.db.QueryRowContext(ctx, query, email, phone, passwordHash))
	if err != nil {
		if isUniqueViolation(err) {
			return model.User{}, ErrDuplicate
		}
		return model.User{}, fmt.Errorf("insert user: %w", err)
	}
	return user, nil
}

// GetByID retrieves a user by ID.
func (r *userRepo) GetByID(ctx context.Context, id uuid.UUID) (model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.db.QueryRowContext(ctx, query, id.String()))
}

// GetByEmailOrPhone retrieves a user whose email or phone number equals the
// given identifier.
func (r *userRepo) GetByEmailOrPhone(ctx context.Context, identifier string) (model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1 OR phone_number = $1`
	return scanUser(r.db.QueryRowContext(ctx, query, identifier))
}

// Exists reports whether a user with the given email or phone number exists.
func (r *userRepo) Exists(ctx context.Context, email, phone string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM users WHERE email = $1 OR phone_number = $2)`
	var exists bool
	if err := r.db.QueryRowContext(ctx, query, email, phone).Scan(&exists); err != nil {
		return false, fmt.Errorf("check user exists: %w", err)
	}
	return exists, nil
}

// ClaimUsername sets the username if it is still unset. Returns ErrDuplicate
// if the username is taken by another user, ErrNotFound if the user does not
// exist or already has a username.
func (r *userRepo) ClaimUsername(ctx context.Context, id uuid.UUID, username string) (model.User, error) {
	query := `
		UPDATE users
		SET username = $2
		WHERE id = $1 AND username IS NULL
		RETURNING ` + userColumns
	user, err := scanUser(r.db.QueryRowContext(ctx, query, id.String(), username))
	if err != nil {
		if isUniqueViolation(err) {
			return model.User{}, ErrDuplicate
		}
		return model.User{}, err
	}
	return user, nil
}
