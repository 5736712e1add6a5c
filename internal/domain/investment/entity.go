package investment

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"meridian/pkg/errors"
)

// Investment records an LP commitment into a fund. Token issuance fields
// are filled by the confirmation workflow after the mint lands on the
// ledger.
type Investment struct {
	ID         uuid.UUID `db:"id"`
	FundID     uuid.UUID `db:"fund_id"`
	InvestorID uuid.UUID `db:"investor_id"`

	Amount       decimal.Decimal `db:"amount"`
	TokensIssued decimal.Decimal `db:"tokens_issued"`

	Status Status `db:"status"`

	// OnChainID and OnChainTxHash identify the record call on the ledger,
	// empty until the ledger write is acknowledged
	OnChainID     string `db:"on_chain_id"`
	OnChainTxHash string `db:"on_chain_tx_hash"`

	// TransactionHash is the mint transaction, written together with
	// TokensIssued exactly once at confirmation
	TransactionHash string `db:"transaction_hash"`

	CreatedAt   time.Time  `db:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at"`
	ConfirmedAt *time.Time `db:"confirmed_at"`
	CancelledAt *time.Time `db:"cancelled_at"`
}

// Status defines the investment lifecycle state
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
)

// Valid checks if the status is valid
func (s Status) Valid() bool {
	return s == StatusPending || s == StatusConfirmed || s == StatusCancelled
}

// String returns string representation
func (s Status) String() string {
	return string(s)
}

// Settled reports whether confirmation already issued tokens and recorded
// the ledger transaction. A confirmed investment with both set is a
// terminal success and re-confirmation is a no-op.
func (i *Investment) Settled() bool {
	return i.Status == StatusConfirmed && i.TokensIssued.IsPositive() && i.TransactionHash != ""
}

// Confirm transitions pending → confirmed with the issuance result
func (i *Investment) Confirm(tokensIssued decimal.Decimal, txHash string, now time.Time) error {
	if i.Settled() {
		return nil
	}
	if i.Status == StatusCancelled {
		return errors.Wrap(errors.ErrInvalidState, "cancelled investment cannot be confirmed")
	}
	if !tokensIssued.IsPositive() {
		return errors.Wrap(errors.ErrValidation, "tokens issued must be positive")
	}
	i.Status = StatusConfirmed
	i.TokensIssued = tokensIssued
	i.TransactionHash = txHash
	i.ConfirmedAt = &now
	return nil
}

// Cancel transitions pending → cancelled
func (i *Investment) Cancel(now time.Time) error {
	if i.Status != StatusPending {
		return errors.Wrapf(errors.ErrInvalidState, "cannot cancel %s investment", i.Status)
	}
	i.Status = StatusCancelled
	i.CancelledAt = &now
	return nil
}
