package postgres

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"meridian/internal/domain/fund"
	"meridian/pkg/errors"
)

// Compile-time check that we implement the interface
var _ fund.Repository = (*FundRepository)(nil)

// FundRepository implements fund.Repository using sqlx
type FundRepository struct {
	db DBTX
}

// NewFundRepository creates a new fund repository
func NewFundRepository(db DBTX) *FundRepository {
	return &FundRepository{db: db}
}

const fundColumns = `id, name, manager_id, target_amount, raised_amount, minimum_amount,
	management_fee_pct, performance_fee_pct, risk_level, status, funding_deadline,
	contract_address, on_chain_fund_id, token_symbol, created_at, updated_at`

// Create inserts a new fund
func (r *FundRepository) Create(ctx context.Context, f *fund.Fund) error {
	query := `
		INSERT INTO funds (
			id, name, manager_id, target_amount, raised_amount, minimum_amount,
			management_fee_pct, performance_fee_pct, risk_level, status, funding_deadline,
			contract_address, on_chain_fund_id, token_symbol, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16
		)`

	_, err := r.db.ExecContext(ctx, query,
		f.ID, f.Name, f.ManagerID, f.TargetAmount, f.RaisedAmount, f.MinimumAmount,
		f.ManagementFeePct, f.PerformanceFeePct, f.RiskLevel, f.Status, f.Deadline,
		f.ContractAddress, f.OnChainFundID, f.TokenSymbol, f.CreatedAt, f.UpdatedAt,
	)

	return err
}

// GetByID retrieves a fund by ID
func (r *FundRepository) GetByID(ctx context.Context, id uuid.UUID) (*fund.Fund, error) {
	var f fund.Fund

	query := `SELECT ` + fundColumns + ` FROM funds WHERE id = $1`

	err := r.db.GetContext(ctx, &f, query, id)
	if err == sql.ErrNoRows {
		return nil, errors.Wrap(errors.ErrNotFound, "fund not found")
	}
	if err != nil {
		return nil, err
	}

	return &f, nil
}

// GetByOnChainID retrieves a fund by its ledger-side identifier
func (r *FundRepository) GetByOnChainID(ctx context.Context, onChainFundID string) (*fund.Fund, error) {
	var f fund.Fund

	query := `SELECT ` + fundColumns + ` FROM funds WHERE on_chain_fund_id = $1`

	err := r.db.GetContext(ctx, &f, query, onChainFundID)
	if err == sql.ErrNoRows {
		return nil, errors.Wrap(errors.ErrNotFound, "fund not found")
	}
	if err != nil {
		return nil, err
	}

	return &f, nil
}

// List retrieves paginated funds, optionally filtered by status
func (r *FundRepository) List(ctx context.Context, status fund.Status, limit, offset int) ([]*fund.Fund, error) {
	var funds []*fund.Fund

	if status == "" {
		query := `SELECT ` + fundColumns + ` FROM funds ORDER BY created_at DESC LIMIT $1 OFFSET $2`
		if err := r.db.SelectContext(ctx, &funds, query, limit, offset); err != nil {
			return nil, err
		}
		return funds, nil
	}

	query := `SELECT ` + fundColumns + ` FROM funds WHERE status = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	if err := r.db.SelectContext(ctx, &funds, query, status, limit, offset); err != nil {
		return nil, err
	}
	return funds, nil
}

// ListByManager retrieves all funds managed by a user
func (r *FundRepository) ListByManager(ctx context.Context, managerID uuid.UUID) ([]*fund.Fund, error) {
	var funds []*fund.Fund

	query := `SELECT ` + fundColumns + ` FROM funds WHERE manager_id = $1 ORDER BY created_at DESC`

	if err := r.db.SelectContext(ctx, &funds, query, managerID); err != nil {
		return nil, err
	}
	return funds, nil
}

// Activate writes the active status and ledger linkage iff the fund is
// still draft. The status guard in the WHERE clause makes concurrent
// activations lose cleanly instead of overwriting the linkage.
func (r *FundRepository) Activate(ctx context.Context, id uuid.UUID, contractAddress, onChainFundID, tokenSymbol string) error {
	query := `
		UPDATE funds SET
			status = $2,
			contract_address = $3,
			on_chain_fund_id = $4,
			token_symbol = $5,
			updated_at = NOW()
		WHERE id = $1 AND status = $6`

	res, err := r.db.ExecContext(ctx, query,
		id, fund.StatusActive, contractAddress, onChainFundID, tokenSymbol, fund.StatusDraft,
	)
	if err != nil {
		return err
	}
	return checkGuarded(res, "fund is not draft")
}

// UpdateStatus transitions the fund between lifecycle states with a guard
// on the expected current state
func (r *FundRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to fund.Status) error {
	query := `UPDATE funds SET status = $3, updated_at = NOW() WHERE id = $1 AND status = $2`

	res, err := r.db.ExecContext(ctx, query, id, from, to)
	if err != nil {
		return err
	}
	return checkGuarded(res, "fund is not "+from.String())
}

// LinkContract repairs ledger linkage on a fund whose local activation
// write was lost. Only fills empty linkage, never overwrites.
func (r *FundRepository) LinkContract(ctx context.Context, id uuid.UUID, contractAddress, onChainFundID string) error {
	query := `
		UPDATE funds SET
			contract_address = $2,
			on_chain_fund_id = $3,
			status = $4,
			updated_at = NOW()
		WHERE id = $1 AND contract_address = ''`

	_, err := r.db.ExecContext(ctx, query, id, contractAddress, onChainFundID, fund.StatusActive)
	return err
}

// AddRaised atomically adjusts raised_amount. Positive deltas are capped
// by the target, negative deltas floor at zero; either guard missing means
// the caller raced a concurrent adjustment.
func (r *FundRepository) AddRaised(ctx context.Context, id uuid.UUID, delta decimal.Decimal) error {
	query := `
		UPDATE funds SET
			raised_amount = raised_amount + $2,
			updated_at = NOW()
		WHERE id = $1
		  AND raised_amount + $2 <= target_amount
		  AND raised_amount + $2 >= 0`

	res, err := r.db.ExecContext(ctx, query, id, delta)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return errors.Wrap(errors.ErrTargetExceeded, "raised amount adjustment out of bounds")
	}
	return nil
}

// Delete removes a fund. The service layer enforces the draft-only rule.
func (r *FundRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM funds WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	return checkAffected(res, "fund not found")
}
