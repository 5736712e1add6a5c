package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"meridian/internal/domain/fund"
	"meridian/pkg/errors"
)

// Compile-time check
var _ fund.Repository = (*FundRepository)(nil)

// FundRepository is a map-backed fund store with the same guard semantics
// as the postgres conditional updates
type FundRepository struct {
	mu    sync.Mutex
	funds map[uuid.UUID]fund.Fund

	FailWith map[string]error
}

// NewFundRepository creates an empty fund repository
func NewFundRepository() *FundRepository {
	return &FundRepository{
		funds:    make(map[uuid.UUID]fund.Fund),
		FailWith: make(map[string]error),
	}
}

func (r *FundRepository) fail(method string) error {
	return r.FailWith[method]
}

func (r *FundRepository) Create(ctx context.Context, f *fund.Fund) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail("Create"); err != nil {
		return err
	}
	for _, existing := range r.funds {
		if existing.Name == f.Name {
			return errors.Wrapf(errors.ErrAlreadyExists, "fund named %q", f.Name)
		}
	}
	r.funds[f.ID] = *f
	return nil
}

func (r *FundRepository) GetByID(ctx context.Context, id uuid.UUID) (*fund.Fund, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail("GetByID"); err != nil {
		return nil, err
	}
	f, ok := r.funds[id]
	if !ok {
		return nil, errors.Wrapf(errors.ErrNotFound, "fund %s", id)
	}
	return &f, nil
}

func (r *FundRepository) GetByOnChainID(ctx context.Context, onChainFundID string) (*fund.Fund, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail("GetByOnChainID"); err != nil {
		return nil, err
	}
	for _, f := range r.funds {
		if f.OnChainFundID == onChainFundID && onChainFundID != "" {
			out := f
			return &out, nil
		}
	}
	return nil, errors.Wrapf(errors.ErrNotFound, "fund with on-chain id %s", onChainFundID)
}

func (r *FundRepository) List(ctx context.Context, status fund.Status, limit, offset int) ([]*fund.Fund, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail("List"); err != nil {
		return nil, err
	}
	var out []*fund.Fund
	for _, f := range r.funds {
		if status != "" && f.Status != status {
			continue
		}
		copied := f
		out = append(out, &copied)
	}
	return out, nil
}

func (r *FundRepository) ListByManager(ctx context.Context, managerID uuid.UUID) ([]*fund.Fund, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail("ListByManager"); err != nil {
		return nil, err
	}
	var out []*fund.Fund
	for _, f := range r.funds {
		if f.ManagerID == managerID {
			copied := f
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *FundRepository) Activate(ctx context.Context, id uuid.UUID, contractAddress, onChainFundID, tokenSymbol string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail("Activate"); err != nil {
		return err
	}
	f, ok := r.funds[id]
	if !ok {
		return errors.Wrapf(errors.ErrNotFound, "fund %s", id)
	}
	if f.Status != fund.StatusDraft {
		return errors.Wrap(errors.ErrInvalidState, "fund is not draft")
	}
	f.Status = fund.StatusActive
	f.ContractAddress = contractAddress
	f.OnChainFundID = onChainFundID
	f.TokenSymbol = tokenSymbol
	f.UpdatedAt = time.Now().UTC()
	r.funds[id] = f
	return nil
}

func (r *FundRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to fund.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail("UpdateStatus"); err != nil {
		return err
	}
	f, ok := r.funds[id]
	if !ok {
		return errors.Wrapf(errors.ErrNotFound, "fund %s", id)
	}
	if f.Status != from {
		return errors.Wrapf(errors.ErrInvalidState, "fund is %s, not %s", f.Status, from)
	}
	f.Status = to
	f.UpdatedAt = time.Now().UTC()
	r.funds[id] = f
	return nil
}

func (r *FundRepository) LinkContract(ctx context.Context, id uuid.UUID, contractAddress, onChainFundID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail("LinkContract"); err != nil {
		return err
	}
	f, ok := r.funds[id]
	if !ok {
		return errors.Wrapf(errors.ErrNotFound, "fund %s", id)
	}
	if f.ContractAddress != "" {
		// Only fills empty linkage, never overwrites
		return nil
	}
	f.ContractAddress = contractAddress
	f.OnChainFundID = onChainFundID
	f.Status = fund.StatusActive
	f.UpdatedAt = time.Now().UTC()
	r.funds[id] = f
	return nil
}

func (r *FundRepository) AddRaised(ctx context.Context, id uuid.UUID, delta decimal.Decimal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail("AddRaised"); err != nil {
		return err
	}
	f, ok := r.funds[id]
	if !ok {
		return errors.Wrapf(errors.ErrNotFound, "fund %s", id)
	}
	next := f.RaisedAmount.Add(delta)
	if next.IsNegative() || next.GreaterThan(f.TargetAmount) {
		return errors.Wrap(errors.ErrTargetExceeded, "raised amount adjustment out of bounds")
	}
	f.RaisedAmount = next
	f.UpdatedAt = time.Now().UTC()
	r.funds[id] = f
	return nil
}

func (r *FundRepository) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail("Delete"); err != nil {
		return err
	}
	if _, ok := r.funds[id]; !ok {
		return errors.Wrapf(errors.ErrNotFound, "fund %s", id)
	}
	delete(r.funds, id)
	return nil
}
