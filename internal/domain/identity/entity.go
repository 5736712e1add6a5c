package identity

import (
	"time"

	"github.com/google/uuid"

	"meridian/pkg/errors"
)

// Document is one piece of submitted verification evidence. The list is
// append-only: resubmissions add documents, they never replace earlier
// ones.
type Document struct {
	Type       string    `json:"type"`
	Ref        string    `json:"ref"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// KYCRecord tracks one user's verification lifecycle. OnChainSyncedAt
// marks whether the approved status has been pushed to the on-chain
// identity registry; the reconciler re-drives approved records left
// unsynced.
type KYCRecord struct {
	ID     uuid.UUID `db:"id"`
	UserID uuid.UUID `db:"user_id"`

	Status      Status     `db:"status"`
	ProviderRef string     `db:"provider_ref"`
	Documents   []Document `db:"documents"`

	RejectionReason string `db:"rejection_reason"`

	OnChainTxHash   string     `db:"on_chain_tx_hash"`
	OnChainSyncedAt *time.Time `db:"on_chain_synced_at"`

	SubmittedAt *time.Time `db:"submitted_at"`
	ReviewedAt  *time.Time `db:"reviewed_at"`
	CreatedAt   time.Time  `db:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at"`
}

// Status defines the KYC review state
type Status string

const (
	StatusPending   Status = "pending"
	StatusSubmitted Status = "submitted"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
)

// Valid checks if the status is valid
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusSubmitted, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// String returns string representation
func (s Status) String() string {
	return string(s)
}

// LedgerSynced reports whether the approval reached the identity registry
func (k *KYCRecord) LedgerSynced() bool {
	return k.OnChainSyncedAt != nil
}

// Submit moves the record into review. Rejected records may resubmit.
func (k *KYCRecord) Submit(providerRef string, doc Document, now time.Time) error {
	if k.Status != StatusPending && k.Status != StatusRejected {
		return errors.Wrapf(errors.ErrInvalidState, "kyc record is %s, cannot submit", k.Status)
	}
	if doc.Type == "" || doc.Ref == "" {
		return errors.Wrap(errors.ErrValidation, "document type and reference are required")
	}
	doc.UploadedAt = now
	k.Status = StatusSubmitted
	if providerRef != "" {
		k.ProviderRef = providerRef
	}
	k.Documents = append(k.Documents, doc)
	k.RejectionReason = ""
	k.SubmittedAt = &now
	k.OnChainTxHash = ""
	k.OnChainSyncedAt = nil
	return nil
}

// Approve transitions submitted → approved
func (k *KYCRecord) Approve(now time.Time) error {
	if k.Status != StatusSubmitted {
		return errors.Wrapf(errors.ErrInvalidState, "kyc record is %s, only submitted records adjudicate", k.Status)
	}
	k.Status = StatusApproved
	k.RejectionReason = ""
	k.ReviewedAt = &now
	return nil
}

// Reject transitions submitted → rejected
func (k *KYCRecord) Reject(reason string, now time.Time) error {
	if k.Status != StatusSubmitted {
		return errors.Wrapf(errors.ErrInvalidState, "kyc record is %s, only submitted records adjudicate", k.Status)
	}
	k.Status = StatusRejected
	k.RejectionReason = reason
	k.ReviewedAt = &now
	return nil
}

// Revoke demotes an approved record to rejected. Driven by the event
// ingestor when the ledger removes the verification claim.
func (k *KYCRecord) Revoke(reason string) error {
	if k.Status != StatusApproved {
		return errors.Wrapf(errors.ErrInvalidState, "kyc record is %s, only approved records revoke", k.Status)
	}
	k.Status = StatusRejected
	k.RejectionReason = reason
	k.OnChainTxHash = ""
	k.OnChainSyncedAt = nil
	return nil
}

// MarkSynced records the ledger acknowledgement of the approval
func (k *KYCRecord) MarkSynced(txHash string, now time.Time) {
	k.OnChainTxHash = txHash
	k.OnChainSyncedAt = &now
}
