package auth

import (
	"context"
	"encoding/hex"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/codeandrun/server/internal/model"
	"github.com/codeandrun/server/internal/repo"
)

// memUserRepo is an in-memory UserRepo that enforces the same uniqueness rules
// as the database constraints, atomically under its lock.
type memUserRepo struct {
	mu    sync.Mutex
	users map[uuid.UUID]model.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: make(map[uuid.UUID]model.User)}
}

func (r *memUserRepo) Create(ctx context.Context, email, phone, passwordHash string) (model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email || u.PhoneNumber == phone {
			return model.User{}, repo.ErrDuplicate
		}
	}
	user := model.User{
		ID:           uuid.New(),
		Email:        email,
		PhoneNumber:  phone,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now(),
	}
	r.users[user.ID] = user
	return user, nil
}

func (r *memUserRepo) GetByID(ctx context.Context, id uuid.UUID) (model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return model.User{}, repo.ErrNotFound
	}
	return user, nil
}

func (r *memUserRepo) GetByEmailOrPhone(ctx context.Context, identifier string) (model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == identifier || u.PhoneNumber == identifier {
			return u, nil
		}
	}
	return model.User{}, repo.ErrNotFound
}

func (r *memUserRepo) Exists(ctx context.Context, email, phone string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email || u.PhoneNumber == phone {
			return true, nil
		}
	}
	return false, nil
}

func (r *memUserRepo) ClaimUsername(ctx context.Context, id uuid.UUID, username string) (model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username != nil && *u.Username == username {
			return model.User{}, repo.ErrDuplicate
		}
	}
	user, ok := r.users[id]
	if !ok || user.Username != nil {
		return model.User{}, repo.ErrNotFound
	}
	user.Username = &username
	r.users[id] = user
	return user, nil
}

func (r *memUserRepo) delete(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.users, id)
}

// memOtpRepo is an in-memory OtpRepo with the same live-code semantics as the
// otp_codes table, including lazy expiry on read.
type memOtpRepo struct {
	mu    sync.Mutex
	codes []*model.OtpCode
}

func newMemOtpRepo() *memOtpRepo {
	return &memOtpRepo{}
}

func (r *memOtpRepo) CreateOrReplace(ctx context.Context, identifier, codeHashHex string, expiresAt time.Time) (uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	for _, c := range r.codes {
		if c.Identifier == identifier && c.ConsumedAt == nil {
			t := now
			c.ConsumedAt = &t
		}
	}
	hash, err := hex.DecodeString(codeHashHex)
	if err != nil {
		return uuid.Nil, err
	}
	code := &model.OtpCode{
		ID:         uuid.New(),
		Identifier: identifier,
		CodeHash:   hash,
		ExpiresAt:  expiresAt,
		CreatedAt:  now,
	}
	r.codes = append(r.codes, code)
	return code.ID, nil
}

func (r *memOtpRepo) GetActive(ctx context.Context, identifier string) (model.OtpCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	for i := len(r.codes) - 1; i >= 0; i-- {
		c := r.codes[i]
		if c.Identifier == identifier && c.ConsumedAt == nil && c.ExpiresAt.After(now) && c.AttemptCount < 5 {
			return *c, nil
		}
	}
	return model.OtpCode{}, repo.ErrNotFound
}

func (r *memOtpRepo) MarkConsumed(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.codes {
		if c.ID == id {
			t := time.Now()
			c.ConsumedAt = &t
			return nil
		}
	}
	return repo.ErrNotFound
}

func (r *memOtpRepo) IncrementAttempt(ctx context.Context, id uuid.UUID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.codes {
		if c.ID == id {
			c.AttemptCount++
			t := time.Now()
			c.LastAttemptAt = &t
			return c.AttemptCount, nil
		}
	}
	return 0, repo.ErrNotFound
}

func (r *memOtpRepo) CountRecent(ctx context.Context, identifier string, since time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, c := range r.codes {
		if c.Identifier == identifier && !c.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

// clearAttemptDelay resets last_attempt_at for every code so tests can verify
// repeatedly without tripping the minimum-delay rule.
func (r *memOtpRepo) clearAttemptDelay() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.codes {
		c.LastAttemptAt = nil
	}
}
