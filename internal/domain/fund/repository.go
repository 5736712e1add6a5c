package fund

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Repository defines fund persistence. Activate and the raised-amount
// mutators are conditional updates so concurrent workflows cannot double
// apply a transition.
type Repository interface {
	Create(ctx context.Context, f *Fund) error
	GetByID(ctx context.Context, id uuid.UUID) (*Fund, error)
	GetByOnChainID(ctx context.Context, onChainFundID string) (*Fund, error)
	List(ctx context.Context, status Status, limit, offset int) ([]*Fund, error)
	ListByManager(ctx context.Context, managerID uuid.UUID) ([]*Fund, error)

	// Activate writes active status plus ledger linkage iff the row is
	// still draft. Returns ErrInvalidState when the guard misses.
	Activate(ctx context.Context, id uuid.UUID, contractAddress, onChainFundID, tokenSymbol string) error

	UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) error

	// LinkContract repairs ledger linkage on a fund whose deployment
	// succeeded on chain but whose local write was lost. No-op when the
	// fund is already linked.
	LinkContract(ctx context.Context, id uuid.UUID, contractAddress, onChainFundID string) error

	// AddRaised atomically bumps raised_amount iff raised + delta stays
	// within target. Negative deltas roll back cancelled investments and
	// are floored at zero.
	AddRaised(ctx context.Context, id uuid.UUID, delta decimal.Decimal) error

	Delete(ctx context.Context, id uuid.UUID) error
}
