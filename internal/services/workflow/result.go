// Package workflow defines the shared outcome vocabulary for the
// reconciliation workflows. Workflows distinguish business refusals
// (reported as a Reason, the entity stays in a well-defined state) from
// infrastructure failures (reported as an error).
package workflow

import (
	"meridian/pkg/errors"
)

// Reason classifies why a workflow refused or degraded an operation
type Reason string

const (
	ReasonNone Reason = ""

	// Fund activation
	ReasonGPNoWallet       Reason = "gp_no_wallet"
	ReasonGPApprovalFailed Reason = "gp_approval_failed"
	ReasonDeploymentFailed Reason = "deployment_failed"

	// Investment
	ReasonNoWalletAddress     Reason = "no_wallet_address"
	ReasonIdentityNotVerified Reason = "identity_not_verified"
	ReasonMintFailed          Reason = "mint_failed"
	ReasonBlockchainError     Reason = "blockchain_error"

	// Request validation, mapped from domain sentinels
	ReasonValidation     Reason = "VALIDATION_ERROR"
	ReasonForbidden      Reason = "FORBIDDEN"
	ReasonNotFound       Reason = "NOT_FOUND"
	ReasonInvalidState   Reason = "INVALID_STATE"
	ReasonUnavailable    Reason = "SERVICE_UNAVAILABLE"
	ReasonKYCNotApproved Reason = "KYC_NOT_APPROVED"
	ReasonInternal       Reason = "INTERNAL"
)

// Classify maps a domain error onto its workflow reason
func Classify(err error) Reason {
	switch {
	case err == nil:
		return ReasonNone
	case errors.Is(err, errors.ErrKYCNotApproved):
		return ReasonKYCNotApproved
	// Capacity and minimum violations are input validation failures
	case errors.Is(err, errors.ErrTargetExceeded), errors.Is(err, errors.ErrBelowMinimum):
		return ReasonValidation
	case errors.Is(err, errors.ErrValidation):
		return ReasonValidation
	case errors.Is(err, errors.ErrForbidden):
		return ReasonForbidden
	case errors.Is(err, errors.ErrNotFound):
		return ReasonNotFound
	case errors.Is(err, errors.ErrInvalidState):
		return ReasonInvalidState
	case errors.Is(err, errors.ErrUnavailable), errors.Is(err, errors.ErrLedgerNotReady):
		return ReasonUnavailable
	default:
		return ReasonInternal
	}
}

// LedgerOutcome reports how far a workflow got on the ledger side.
// Workflows that tolerate ledger degradation return it alongside the
// entity so callers can tell a full success from a local-only one.
type LedgerOutcome struct {
	// Synced is true when the ledger write completed
	Synced bool
	// Reason is set when Synced is false
	Reason Reason
	// TxHash is the ledger transaction that carried the write
	TxHash string
}

// SyncedOutcome returns a successful ledger outcome
func SyncedOutcome(txHash string) LedgerOutcome {
	return LedgerOutcome{Synced: true, TxHash: txHash}
}

// DegradedOutcome returns a failed ledger outcome with its reason
func DegradedOutcome(reason Reason) LedgerOutcome {
	return LedgerOutcome{Reason: reason}
}
