package investment

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Repository defines investment persistence
type Repository interface {
	Create(ctx context.Context, inv *Investment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Investment, error)
	GetByOnChainID(ctx context.Context, onChainID string) (*Investment, error)
	ListByFund(ctx context.Context, fundID uuid.UUID) ([]*Investment, error)
	ListByInvestor(ctx context.Context, investorID uuid.UUID) ([]*Investment, error)
	CountByFund(ctx context.Context, fundID uuid.UUID) (int, error)

	// Confirm writes the issuance result iff the row is still pending
	Confirm(ctx context.Context, id uuid.UUID, tokensIssued decimal.Decimal, onChainID, txHash string) error

	// Cancel transitions pending → cancelled. Returns ErrInvalidState
	// when the row already left pending.
	Cancel(ctx context.Context, id uuid.UUID) error

	// LinkOnChain fills on_chain_id and transaction_hash on a row whose
	// ledger write was acknowledged on chain but lost locally
	LinkOnChain(ctx context.Context, id uuid.UUID, onChainID, txHash string) error
}
