package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"meridian/internal/domain/identity"
	"meridian/pkg/errors"
)

// Compile-time check that we implement the interface
var _ identity.Repository = (*IdentityRepository)(nil)

// IdentityRepository implements identity.Repository. The documents
// metadata list is stored as jsonb and marshalled here.
type IdentityRepository struct {
	db DBTX
}

// NewIdentityRepository creates a new KYC record repository
func NewIdentityRepository(db DBTX) *IdentityRepository {
	return &IdentityRepository{db: db}
}

const kycColumns = `id, user_id, status, provider_ref, documents, rejection_reason,
	on_chain_tx_hash, on_chain_synced_at, submitted_at, reviewed_at, created_at, updated_at`

// Create inserts a new KYC record. One record per user.
func (r *IdentityRepository) Create(ctx context.Context, rec *identity.KYCRecord) error {
	docsJSON, err := json.Marshal(rec.Documents)
	if err != nil {
		return errors.Wrap(err, "failed to marshal documents")
	}

	query := `
		INSERT INTO kyc_records (
			id, user_id, status, provider_ref, documents, rejection_reason,
			on_chain_tx_hash, on_chain_synced_at, submitted_at, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11
		)`

	_, err = r.db.ExecContext(ctx, query,
		rec.ID, rec.UserID, rec.Status, rec.ProviderRef, docsJSON, rec.RejectionReason,
		rec.OnChainTxHash, rec.OnChainSyncedAt, rec.SubmittedAt, rec.CreatedAt, rec.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return errors.Wrap(errors.ErrAlreadyExists, "kyc record already exists for user")
	}
	return err
}

// GetByID retrieves a KYC record by ID
func (r *IdentityRepository) GetByID(ctx context.Context, id uuid.UUID) (*identity.KYCRecord, error) {
	query := `SELECT ` + kycColumns + ` FROM kyc_records WHERE id = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

// GetByUserID retrieves a user's KYC record
func (r *IdentityRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*identity.KYCRecord, error) {
	query := `SELECT ` + kycColumns + ` FROM kyc_records WHERE user_id = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, userID))
}

// Update persists the full record state
func (r *IdentityRepository) Update(ctx context.Context, rec *identity.KYCRecord) error {
	docsJSON, err := json.Marshal(rec.Documents)
	if err != nil {
		return errors.Wrap(err, "failed to marshal documents")
	}

	query := `
		UPDATE kyc_records SET
			status = $2,
			provider_ref = $3,
			documents = $4,
			rejection_reason = $5,
			on_chain_tx_hash = $6,
			on_chain_synced_at = $7,
			submitted_at = $8,
			reviewed_at = $9,
			updated_at = NOW()
		WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query,
		rec.ID, rec.Status, rec.ProviderRef, docsJSON, rec.RejectionReason,
		rec.OnChainTxHash, rec.OnChainSyncedAt, rec.SubmittedAt, rec.ReviewedAt,
	)
	if err != nil {
		return err
	}
	return checkAffected(res, "kyc record not found")
}

// ListSubmittedBefore returns submitted records older than the cutoff
func (r *IdentityRepository) ListSubmittedBefore(ctx context.Context, cutoff time.Time, limit int) ([]*identity.KYCRecord, error) {
	query := `
		SELECT ` + kycColumns + `
		FROM kyc_records
		WHERE status = $1 AND submitted_at < $2
		ORDER BY submitted_at ASC
		LIMIT $3`

	return r.list(ctx, query, identity.StatusSubmitted, cutoff, limit)
}

// ListUnsynced returns approved records the ledger has not acknowledged
func (r *IdentityRepository) ListUnsynced(ctx context.Context, limit int) ([]*identity.KYCRecord, error) {
	query := `
		SELECT ` + kycColumns + `
		FROM kyc_records
		WHERE status = $1 AND on_chain_synced_at IS NULL
		ORDER BY reviewed_at ASC
		LIMIT $2`

	return r.list(ctx, query, identity.StatusApproved, limit)
}

// MarkSynced records the ledger acknowledgement of an approval
func (r *IdentityRepository) MarkSynced(ctx context.Context, id uuid.UUID, txHash string) error {
	query := `
		UPDATE kyc_records SET
			on_chain_tx_hash = $2,
			on_chain_synced_at = NOW(),
			updated_at = NOW()
		WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query, id, txHash)
	if err != nil {
		return err
	}
	return checkAffected(res, "kyc record not found")
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (r *IdentityRepository) scanOne(row rowScanner) (*identity.KYCRecord, error) {
	rec, err := scanKYCRecord(row)
	if err == sql.ErrNoRows {
		return nil, errors.Wrap(errors.ErrNotFound, "kyc record not found")
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (r *IdentityRepository) list(ctx context.Context, query string, args ...interface{}) ([]*identity.KYCRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []*identity.KYCRecord
	for rows.Next() {
		rec, err := scanKYCRecord(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

func scanKYCRecord(row rowScanner) (*identity.KYCRecord, error) {
	var rec identity.KYCRecord
	var docsJSON []byte

	err := row.Scan(
		&rec.ID, &rec.UserID, &rec.Status, &rec.ProviderRef, &docsJSON, &rec.RejectionReason,
		&rec.OnChainTxHash, &rec.OnChainSyncedAt, &rec.SubmittedAt, &rec.ReviewedAt,
		&rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(docsJSON) > 0 {
		if err := json.Unmarshal(docsJSON, &rec.Documents); err != nil {
			return nil, errors.Wrap(err, "failed to unmarshal documents")
		}
	}
	return &rec, nil
}
