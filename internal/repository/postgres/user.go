package postgres

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"meridian/internal/domain/user"
	"meridian/pkg/errors"
)

// Compile-time check that we implement the interface
var _ user.Repository = (*UserRepository)(nil)

// UserRepository implements user.Repository using sqlx
type UserRepository struct {
	db DBTX
}

// NewUserRepository creates a new user repository
func NewUserRepository(db DBTX) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, email, role, wallet_address, created_at, updated_at`

// Create inserts a new user
func (r *UserRepository) Create(ctx context.Context, u *user.User) error {
	query := `
		INSERT INTO users (id, email, role, wallet_address, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.db.ExecContext(ctx, query,
		u.ID, u.Email, u.Role, u.WalletAddress, u.CreatedAt, u.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return errors.Wrap(errors.ErrAlreadyExists, "user with this email already exists")
	}
	return err
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*user.User, error) {
	var u user.User

	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	err := r.db.GetContext(ctx, &u, query, id)
	if err == sql.ErrNoRows {
		return nil, errors.Wrap(errors.ErrNotFound, "user not found")
	}
	if err != nil {
		return nil, err
	}

	return &u, nil
}

// GetByEmail retrieves a user by email
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	var u user.User

	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`

	err := r.db.GetContext(ctx, &u, query, email)
	if err == sql.ErrNoRows {
		return nil, errors.Wrap(errors.ErrNotFound, "user not found")
	}
	if err != nil {
		return nil, err
	}

	return &u, nil
}

// GetByWallet retrieves a user by wallet address, case-insensitive
func (r *UserRepository) GetByWallet(ctx context.Context, wallet string) (*user.User, error) {
	var u user.User

	query := `SELECT ` + userColumns + ` FROM users WHERE LOWER(wallet_address) = LOWER($1)`

	err := r.db.GetContext(ctx, &u, query, wallet)
	if err == sql.ErrNoRows {
		return nil, errors.Wrap(errors.ErrNotFound, "user not found")
	}
	if err != nil {
		return nil, err
	}

	return &u, nil
}

// UpdateWallet sets the user's wallet address
func (r *UserRepository) UpdateWallet(ctx context.Context, id uuid.UUID, wallet string) error {
	query := `UPDATE users SET wallet_address = $2, updated_at = NOW() WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query, id, wallet)
	if err != nil {
		return err
	}
	return checkAffected(res, "user not found")
}
