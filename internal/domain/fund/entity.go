package fund

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"meridian/pkg/errors"
)

// Fund is the aggregate a manager raises capital into. The relational row
// owns the business state; contract_address/on_chain_fund_id mirror the
// ledger and are written only by the activation workflow or the event
// ingestor repairing a lost write.
type Fund struct {
	ID        uuid.UUID `db:"id"`
	Name      string    `db:"name"`
	ManagerID uuid.UUID `db:"manager_id"`

	TargetAmount  decimal.Decimal `db:"target_amount"`
	RaisedAmount  decimal.Decimal `db:"raised_amount"`
	MinimumAmount decimal.Decimal `db:"minimum_amount"`

	ManagementFeePct  decimal.Decimal `db:"management_fee_pct"`
	PerformanceFeePct decimal.Decimal `db:"performance_fee_pct"`

	RiskLevel RiskLevel  `db:"risk_level"`
	Status    Status     `db:"status"`
	Deadline  *time.Time `db:"funding_deadline"`

	// Ledger linkage: ContractAddress and OnChainFundID are set together or
	// both absent
	ContractAddress string `db:"contract_address"`
	OnChainFundID   string `db:"on_chain_fund_id"`
	TokenSymbol     string `db:"token_symbol"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// Status defines the fund lifecycle state
type Status string

const (
	StatusDraft      Status = "draft"
	StatusActive     Status = "active"
	StatusClosed     Status = "closed"
	StatusLiquidated Status = "liquidated"
)

// Valid checks if the status is valid
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusActive, StatusClosed, StatusLiquidated:
		return true
	}
	return false
}

// String returns string representation
func (s Status) String() string {
	return string(s)
}

// RiskLevel classifies a fund's risk profile
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Valid checks if the risk level is valid
func (r RiskLevel) Valid() bool {
	return r == RiskLow || r == RiskMedium || r == RiskHigh
}

// String returns string representation
func (r RiskLevel) String() string {
	return string(r)
}

// Deployed reports whether the fund has a token contract on the ledger
func (f *Fund) Deployed() bool {
	return f.ContractAddress != "" && f.OnChainFundID != ""
}

// CanActivate checks the preconditions for activation without mutating
func (f *Fund) CanActivate() error {
	if f.Status != StatusDraft {
		return errors.Wrapf(errors.ErrInvalidState, "fund %s is %s, only draft funds activate", f.ID, f.Status)
	}
	if !f.TargetAmount.IsPositive() || !f.MinimumAmount.IsPositive() {
		return errors.Wrap(errors.ErrValidation, "target and minimum amounts must be set before activation")
	}
	return nil
}

// Activate transitions draft → active, recording the deployment result.
// The activation workflow is the sole caller.
func (f *Fund) Activate(contractAddress, onChainFundID, tokenSymbol string) error {
	if err := f.CanActivate(); err != nil {
		return err
	}
	if contractAddress == "" || onChainFundID == "" {
		return errors.Wrap(errors.ErrValidation, "contract address and on-chain fund id are set together")
	}
	f.Status = StatusActive
	f.ContractAddress = contractAddress
	f.OnChainFundID = onChainFundID
	f.TokenSymbol = tokenSymbol
	return nil
}

// Close transitions active → closed
func (f *Fund) Close() error {
	if f.Status != StatusActive {
		return errors.Wrapf(errors.ErrInvalidState, "cannot close %s fund", f.Status)
	}
	f.Status = StatusClosed
	return nil
}

// Liquidate transitions active|closed → liquidated
func (f *Fund) Liquidate() error {
	if f.Status != StatusActive && f.Status != StatusClosed {
		return errors.Wrapf(errors.ErrInvalidState, "cannot liquidate %s fund", f.Status)
	}
	f.Status = StatusLiquidated
	return nil
}

// Deletable reports whether the fund may be removed: drafts with no
// investments only
func (f *Fund) Deletable(investmentCount int) error {
	if f.Status != StatusDraft {
		return errors.Wrapf(errors.ErrInvalidState, "only draft funds may be deleted")
	}
	if investmentCount > 0 {
		return errors.Wrap(errors.ErrInvalidState, "fund has investments")
	}
	return nil
}

// AcceptsInvestments reports whether new investments may be created
func (f *Fund) AcceptsInvestments() bool {
	return f.Status == StatusActive && f.Deployed()
}

// ValidateInvestmentAmount checks an incoming amount against the fund's
// minimum and remaining capacity. Decimal comparisons throughout; the
// raised ≤ target invariant is never checked in floating point.
func (f *Fund) ValidateInvestmentAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return errors.Wrap(errors.ErrValidation, "amount must be positive")
	}
	if amount.LessThan(f.MinimumAmount) {
		return errors.Wrapf(errors.ErrBelowMinimum, "minimum investment is %s", f.MinimumAmount)
	}
	if f.RaisedAmount.Add(amount).GreaterThan(f.TargetAmount) {
		return errors.Wrapf(errors.ErrTargetExceeded, "amount %s would exceed fund target %s (raised %s)",
			amount, f.TargetAmount, f.RaisedAmount)
	}
	return nil
}

// Remaining returns the capacity left before the target is hit
func (f *Fund) Remaining() decimal.Decimal {
	return f.TargetAmount.Sub(f.RaisedAmount)
}
