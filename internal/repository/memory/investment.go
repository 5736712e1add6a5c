package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"meridian/internal/domain/investment"
	"meridian/pkg/errors"
)

// Compile-time check
var _ investment.Repository = (*InvestmentRepository)(nil)

// InvestmentRepository is a map-backed investment store
type InvestmentRepository struct {
	mu          sync.Mutex
	investments map[uuid.UUID]investment.Investment

	FailWith map[string]error
}

// NewInvestmentRepository creates an empty investment repository
func NewInvestmentRepository() *InvestmentRepository {
	return &InvestmentRepository{
		investments: make(map[uuid.UUID]investment.Investment),
		FailWith:    make(map[string]error),
	}
}

func (r *InvestmentRepository) fail(method string) error {
	return r.FailWith[method]
}

func (r *InvestmentRepository) Create(ctx context.Context, inv *investment.Investment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail("Create"); err != nil {
		return err
	}
	r.investments[inv.ID] = *inv
	return nil
}

func (r *InvestmentRepository) GetByID(ctx context.Context, id uuid.UUID) (*investment.Investment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail("GetByID"); err != nil {
		return nil, err
	}
	inv, ok := r.investments[id]
	if !ok {
		return nil, errors.Wrapf(errors.ErrNotFound, "investment %s", id)
	}
	return &inv, nil
}

func (r *InvestmentRepository) GetByOnChainID(ctx context.Context, onChainID string) (*investment.Investment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail("GetByOnChainID"); err != nil {
		return nil, err
	}
	for _, inv := range r.investments {
		if inv.OnChainID == onChainID && onChainID != "" {
			out := inv
			return &out, nil
		}
	}
	return nil, errors.Wrapf(errors.ErrNotFound, "investment with on-chain id %s", onChainID)
}

func (r *InvestmentRepository) ListByFund(ctx context.Context, fundID uuid.UUID) ([]*investment.Investment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail("ListByFund"); err != nil {
		return nil, err
	}
	var out []*investment.Investment
	for _, inv := range r.investments {
		if inv.FundID == fundID {
			copied := inv
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *InvestmentRepository) ListByInvestor(ctx context.Context, investorID uuid.UUID) ([]*investment.Investment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail("ListByInvestor"); err != nil {
		return nil, err
	}
	var out []*investment.Investment
	for _, inv := range r.investments {
		if inv.InvestorID == investorID {
			copied := inv
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *InvestmentRepository) CountByFund(ctx context.Context, fundID uuid.UUID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail("CountByFund"); err != nil {
		return 0, err
	}
	count := 0
	for _, inv := range r.investments {
		if inv.FundID == fundID {
			count++
		}
	}
	return count, nil
}

func (r *InvestmentRepository) Confirm(ctx context.Context, id uuid.UUID, tokensIssued decimal.Decimal, onChainID, txHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail("Confirm"); err != nil {
		return err
	}
	inv, ok := r.investments[id]
	if !ok {
		return errors.Wrapf(errors.ErrNotFound, "investment %s", id)
	}
	if inv.Status != investment.StatusPending {
		return errors.Wrapf(errors.ErrInvalidState, "investment is %s, not pending", inv.Status)
	}
	now := time.Now().UTC()
	inv.Status = investment.StatusConfirmed
	inv.TokensIssued = tokensIssued
	inv.OnChainID = onChainID
	inv.TransactionHash = txHash
	inv.ConfirmedAt = &now
	inv.UpdatedAt = now
	r.investments[id] = inv
	return nil
}

func (r *InvestmentRepository) Cancel(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail("Cancel"); err != nil {
		return err
	}
	inv, ok := r.investments[id]
	if !ok {
		return errors.Wrapf(errors.ErrNotFound, "investment %s", id)
	}
	if inv.Status != investment.StatusPending {
		return errors.Wrapf(errors.ErrInvalidState, "investment is %s, not pending", inv.Status)
	}
	now := time.Now().UTC()
	inv.Status = investment.StatusCancelled
	inv.CancelledAt = &now
	inv.UpdatedAt = now
	r.investments[id] = inv
	return nil
}

func (r *InvestmentRepository) LinkOnChain(ctx context.Context, id uuid.UUID, onChainID, txHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail("LinkOnChain"); err != nil {
		return err
	}
	inv, ok := r.investments[id]
	if !ok {
		return errors.Wrapf(errors.ErrNotFound, "investment %s", id)
	}
	if inv.OnChainID != "" {
		// Only fills empty linkage, never overwrites
		return nil
	}
	inv.OnChainID = onChainID
	inv.OnChainTxHash = txHash
	inv.UpdatedAt = time.Now().UTC()
	r.investments[id] = inv
	return nil
}
