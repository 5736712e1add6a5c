package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"meridian/internal/domain/identity"
	"meridian/pkg/errors"
)

// Compile-time check
var _ identity.Repository = (*IdentityRepository)(nil)

// IdentityRepository is a map-backed KYC record store
type IdentityRepository struct {
	mu      sync.Mutex
	records map[uuid.UUID]identity.KYCRecord

	FailWith map[string]error
}

// NewIdentityRepository creates an empty KYC record repository
func NewIdentityRepository() *IdentityRepository {
	return &IdentityRepository{
		records:  make(map[uuid.UUID]identity.KYCRecord),
		FailWith: make(map[string]error),
	}
}

func (r *IdentityRepository) fail(method string) error {
	return r.FailWith[method]
}

// cloneRecord copies the record so callers never share the stored
// documents slice
func cloneRecord(rec identity.KYCRecord) *identity.KYCRecord {
	out := rec
	out.Documents = append([]identity.Document(nil), rec.Documents...)
	return &out
}

func (r *IdentityRepository) Create(ctx context.Context, rec *identity.KYCRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail("Create"); err != nil {
		return err
	}
	for _, existing := range r.records {
		if existing.UserID == rec.UserID {
			return errors.Wrapf(errors.ErrAlreadyExists, "kyc record for user %s", rec.UserID)
		}
	}
	r.records[rec.ID] = *cloneRecord(*rec)
	return nil
}

func (r *IdentityRepository) GetByID(ctx context.Context, id uuid.UUID) (*identity.KYCRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail("GetByID"); err != nil {
		return nil, err
	}
	rec, ok := r.records[id]
	if !ok {
		return nil, errors.Wrapf(errors.ErrNotFound, "kyc record %s", id)
	}
	return cloneRecord(rec), nil
}

func (r *IdentityRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*identity.KYCRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail("GetByUserID"); err != nil {
		return nil, err
	}
	for _, rec := range r.records {
		if rec.UserID == userID {
			return cloneRecord(rec), nil
		}
	}
	return nil, errors.Wrapf(errors.ErrNotFound, "kyc record for user %s", userID)
}

func (r *IdentityRepository) Update(ctx context.Context, rec *identity.KYCRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail("Update"); err != nil {
		return err
	}
	if _, ok := r.records[rec.ID]; !ok {
		return errors.Wrapf(errors.ErrNotFound, "kyc record %s", rec.ID)
	}
	rec.UpdatedAt = time.Now().UTC()
	r.records[rec.ID] = *cloneRecord(*rec)
	return nil
}

func (r *IdentityRepository) ListSubmittedBefore(ctx context.Context, cutoff time.Time, limit int) ([]*identity.KYCRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail("ListSubmittedBefore"); err != nil {
		return nil, err
	}
	var out []*identity.KYCRecord
	for _, rec := range r.records {
		if rec.Status == identity.StatusSubmitted && rec.SubmittedAt != nil && rec.SubmittedAt.Before(cutoff) {
			out = append(out, cloneRecord(rec))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubmittedAt.Before(*out[j].SubmittedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *IdentityRepository) ListUnsynced(ctx context.Context, limit int) ([]*identity.KYCRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail("ListUnsynced"); err != nil {
		return nil, err
	}
	var out []*identity.KYCRecord
	for _, rec := range r.records {
		if rec.Status == identity.StatusApproved && rec.OnChainSyncedAt == nil {
			out = append(out, cloneRecord(rec))
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *IdentityRepository) MarkSynced(ctx context.Context, id uuid.UUID, txHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail("MarkSynced"); err != nil {
		return err
	}
	rec, ok := r.records[id]
	if !ok {
		return errors.Wrapf(errors.ErrNotFound, "kyc record %s", id)
	}
	now := time.Now().UTC()
	rec.OnChainTxHash = txHash
	rec.OnChainSyncedAt = &now
	rec.UpdatedAt = now
	r.records[id] = rec
	return nil
}
