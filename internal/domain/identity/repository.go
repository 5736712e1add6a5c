package identity

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository defines KYC record persistence
type Repository interface {
	Create(ctx context.Context, rec *KYCRecord) error
	GetByID(ctx context.Context, id uuid.UUID) (*KYCRecord, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) (*KYCRecord, error)
	Update(ctx context.Context, rec *KYCRecord) error

	// ListSubmittedBefore returns submitted records whose submission is
	// older than the cutoff, for the scheduled review worker
	ListSubmittedBefore(ctx context.Context, cutoff time.Time, limit int) ([]*KYCRecord, error)

	// ListUnsynced returns approved records not yet acknowledged by the
	// ledger, for the reconciler
	ListUnsynced(ctx context.Context, limit int) ([]*KYCRecord, error)

	MarkSynced(ctx context.Context, id uuid.UUID, txHash string) error
}
