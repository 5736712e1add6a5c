// Package memory provides in-memory implementations of the domain
// repositories. They mirror the conditional-update guards of the postgres
// repositories and back the service and consumer unit tests.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"meridian/internal/domain/user"
	"meridian/pkg/errors"
)

// Compile-time check
var _ user.Repository = (*UserRepository)(nil)

// UserRepository is a map-backed user store
type UserRepository struct {
	mu    sync.Mutex
	users map[uuid.UUID]user.User

	// FailWith maps a method name to an error returned instead of executing
	FailWith map[string]error
}

// NewUserRepository creates an empty user repository
func NewUserRepository() *UserRepository {
	return &UserRepository{
		users:    make(map[uuid.UUID]user.User),
		FailWith: make(map[string]error),
	}
}

func (r *UserRepository) fail(method string) error {
	return r.FailWith[method]
}

func (r *UserRepository) Create(ctx context.Context, u *user.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail("Create"); err != nil {
		return err
	}
	for _, existing := range r.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return errors.Wrapf(errors.ErrAlreadyExists, "user with email %s", u.Email)
		}
	}
	r.users[u.ID] = *u
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail("GetByID"); err != nil {
		return nil, err
	}
	u, ok := r.users[id]
	if !ok {
		return nil, errors.Wrapf(errors.ErrNotFound, "user %s", id)
	}
	return &u, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail("GetByEmail"); err != nil {
		return nil, err
	}
	for _, u := range r.users {
		if strings.EqualFold(u.Email, email) {
			out := u
			return &out, nil
		}
	}
	return nil, errors.Wrapf(errors.ErrNotFound, "user with email %s", email)
}

func (r *UserRepository) GetByWallet(ctx context.Context, wallet string) (*user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail("GetByWallet"); err != nil {
		return nil, err
	}
	for _, u := range r.users {
		if u.WalletAddress != "" && strings.EqualFold(u.WalletAddress, wallet) {
			out := u
			return &out, nil
		}
	}
	return nil, errors.Wrapf(errors.ErrNotFound, "user with wallet %s", wallet)
}

func (r *UserRepository) UpdateWallet(ctx context.Context, id uuid.UUID, wallet string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail("UpdateWallet"); err != nil {
		return err
	}
	u, ok := r.users[id]
	if !ok {
		return errors.Wrapf(errors.ErrNotFound, "user %s", id)
	}
	u.WalletAddress = wallet
	u.UpdatedAt = time.Now().UTC()
	r.users[id] = u
	return nil
}
