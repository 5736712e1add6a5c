package user

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines user persistence operations
type Repository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)

	// GetByWallet matches wallet addresses case-insensitively
	GetByWallet(ctx context.Context, wallet string) (*User, error)

	UpdateWallet(ctx context.Context, id uuid.UUID, wallet string) error
}
