package user

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// User is a platform principal: a fund manager (GP), an investor (LP) or an
// operator. Wallet addresses are stored as given but always compared
// case-insensitively.
type User struct {
	ID            uuid.UUID `db:"id"`
	Email         string    `db:"email"`
	Role          Role      `db:"role"`
	WalletAddress string    `db:"wallet_address"`
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
}

// HasWallet reports whether a wallet address is on record
func (u *User) HasWallet() bool {
	return u.WalletAddress != ""
}

// NormalizedWallet returns the wallet address lowered for comparison
func (u *User) NormalizedWallet() string {
	return strings.ToLower(u.WalletAddress)
}

// Role defines what a user may do on the platform
type Role string

const (
	RoleGP    Role = "gp"
	RoleLP    Role = "lp"
	RoleAdmin Role = "admin"
)

// Valid checks if the role is valid
func (r Role) Valid() bool {
	return r == RoleGP || r == RoleLP || r == RoleAdmin
}

// String returns string representation
func (r Role) String() string {
	return string(r)
}
