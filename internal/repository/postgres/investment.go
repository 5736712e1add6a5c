package postgres

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"meridian/internal/domain/investment"
	"meridian/pkg/errors"
)

// Compile-time check that we implement the interface
var _ investment.Repository = (*InvestmentRepository)(nil)

// InvestmentRepository implements investment.Repository using sqlx
type InvestmentRepository struct {
	db DBTX
}

// NewInvestmentRepository creates a new investment repository
func NewInvestmentRepository(db DBTX) *InvestmentRepository {
	return &InvestmentRepository{db: db}
}

const investmentColumns = `id, fund_id, investor_id, amount, tokens_issued, status,
	on_chain_id, on_chain_tx_hash, transaction_hash, created_at, updated_at, confirmed_at, cancelled_at`

// Create inserts a new investment
func (r *InvestmentRepository) Create(ctx context.Context, inv *investment.Investment) error {
	query := `
		INSERT INTO investments (
			id, fund_id, investor_id, amount, tokens_issued, status,
			on_chain_id, on_chain_tx_hash, transaction_hash, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11
		)`

	_, err := r.db.ExecContext(ctx, query,
		inv.ID, inv.FundID, inv.InvestorID, inv.Amount, inv.TokensIssued, inv.Status,
		inv.OnChainID, inv.OnChainTxHash, inv.TransactionHash, inv.CreatedAt, inv.UpdatedAt,
	)

	return err
}

// GetByID retrieves an investment by ID
func (r *InvestmentRepository) GetByID(ctx context.Context, id uuid.UUID) (*investment.Investment, error) {
	var inv investment.Investment

	query := `SELECT ` + investmentColumns + ` FROM investments WHERE id = $1`

	err := r.db.GetContext(ctx, &inv, query, id)
	if err == sql.ErrNoRows {
		return nil, errors.Wrap(errors.ErrNotFound, "investment not found")
	}
	if err != nil {
		return nil, err
	}

	return &inv, nil
}

// GetByOnChainID retrieves an investment by its ledger-side identifier
func (r *InvestmentRepository) GetByOnChainID(ctx context.Context, onChainID string) (*investment.Investment, error) {
	var inv investment.Investment

	query := `SELECT ` + investmentColumns + ` FROM investments WHERE on_chain_id = $1`

	err := r.db.GetContext(ctx, &inv, query, onChainID)
	if err == sql.ErrNoRows {
		return nil, errors.Wrap(errors.ErrNotFound, "investment not found")
	}
	if err != nil {
		return nil, err
	}

	return &inv, nil
}

// ListByFund retrieves all investments into a fund
func (r *InvestmentRepository) ListByFund(ctx context.Context, fundID uuid.UUID) ([]*investment.Investment, error) {
	var invs []*investment.Investment

	query := `SELECT ` + investmentColumns + ` FROM investments WHERE fund_id = $1 ORDER BY created_at DESC`

	if err := r.db.SelectContext(ctx, &invs, query, fundID); err != nil {
		return nil, err
	}
	return invs, nil
}

// ListByInvestor retrieves all investments made by a user
func (r *InvestmentRepository) ListByInvestor(ctx context.Context, investorID uuid.UUID) ([]*investment.Investment, error) {
	var invs []*investment.Investment

	query := `SELECT ` + investmentColumns + ` FROM investments WHERE investor_id = $1 ORDER BY created_at DESC`

	if err := r.db.SelectContext(ctx, &invs, query, investorID); err != nil {
		return nil, err
	}
	return invs, nil
}

// CountByFund returns the number of investments into a fund
func (r *InvestmentRepository) CountByFund(ctx context.Context, fundID uuid.UUID) (int, error) {
	var count int

	query := `SELECT COUNT(*) FROM investments WHERE fund_id = $1`

	if err := r.db.GetContext(ctx, &count, query, fundID); err != nil {
		return 0, err
	}
	return count, nil
}

// Confirm writes the issuance result iff the row is still pending
func (r *InvestmentRepository) Confirm(ctx context.Context, id uuid.UUID, tokensIssued decimal.Decimal, onChainID, txHash string) error {
	query := `
		UPDATE investments SET
			status = $2,
			tokens_issued = $3,
			on_chain_id = $4,
			transaction_hash = $5,
			confirmed_at = NOW(),
			updated_at = NOW()
		WHERE id = $1 AND status = $6`

	res, err := r.db.ExecContext(ctx, query,
		id, investment.StatusConfirmed, tokensIssued, onChainID, txHash, investment.StatusPending,
	)
	if err != nil {
		return err
	}
	return checkGuarded(res, "investment is not pending")
}

// Cancel transitions pending → cancelled
func (r *InvestmentRepository) Cancel(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE investments SET
			status = $2,
			cancelled_at = NOW(),
			updated_at = NOW()
		WHERE id = $1 AND status = $3`

	res, err := r.db.ExecContext(ctx, query, id, investment.StatusCancelled, investment.StatusPending)
	if err != nil {
		return err
	}
	return checkGuarded(res, "investment is not pending")
}

// LinkOnChain fills the ledger linkage on a row whose record call was
// acknowledged on chain but lost locally. Only fills empty linkage; the
// transaction_hash column belongs to confirmation and is never touched.
func (r *InvestmentRepository) LinkOnChain(ctx context.Context, id uuid.UUID, onChainID, txHash string) error {
	query := `
		UPDATE investments SET
			on_chain_id = $2,
			on_chain_tx_hash = $3,
			updated_at = NOW()
		WHERE id = $1 AND on_chain_id = ''`

	_, err := r.db.ExecContext(ctx, query, id, onChainID, txHash)
	return err
}
