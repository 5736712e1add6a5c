package kyc

import (
	"context"
	"time"

	"github.com/google/uuid"

	"meridian/internal/adapters/ledger"
	"meridian/internal/domain/identity"
	"meridian/internal/domain/user"
	"meridian/internal/events"
	"meridian/internal/metrics"
	"meridian/internal/services/workflow"
	"meridian/pkg/errors"
	"meridian/pkg/logger"
)

// Service handles the KYC review lifecycle and pushes approvals to the
// on-chain identity registry
type Service struct {
	records   identity.Repository
	users     user.Repository
	gateway   *ledger.Gateway
	publisher *events.Publisher
	log       *logger.Logger
}

// NewService creates a new KYC service
func NewService(
	records identity.Repository,
	users user.Repository,
	gateway *ledger.Gateway,
	publisher *events.Publisher,
	log *logger.Logger,
) *Service {
	return &Service{
		records:   records,
		users:     users,
		gateway:   gateway,
		publisher: publisher,
		log:       log.With("component", "kyc_service"),
	}
}

// Submit moves a user's KYC record into review, creating the record on
// first submission. Rejected records may resubmit.
func (s *Service) Submit(ctx context.Context, userID uuid.UUID, providerRef, documentType, documentRef string) (*identity.KYCRecord, error) {
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return nil, errors.Wrap(err, "failed to resolve user")
	}

	now := time.Now().UTC()
	doc := identity.Document{Type: documentType, Ref: documentRef}

	rec, err := s.records.GetByUserID(ctx, userID)
	if errors.Is(err, errors.ErrNotFound) {
		rec = &identity.KYCRecord{
			ID:        uuid.New(),
			UserID:    userID,
			Status:    identity.StatusPending,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := rec.Submit(providerRef, doc, now); err != nil {
			return nil, err
		}
		if err := s.records.Create(ctx, rec); err != nil {
			return nil, errors.Wrap(err, "failed to create kyc record")
		}
	} else if err != nil {
		return nil, err
	} else {
		if err := rec.Submit(providerRef, doc, now); err != nil {
			return nil, err
		}
		if err := s.records.Update(ctx, rec); err != nil {
			return nil, errors.Wrap(err, "failed to update kyc record")
		}
	}

	s.publisher.KYCStatusChanged(ctx, events.KYCStatusEvent{
		RecordID: rec.ID,
		UserID:   userID,
		Status:   rec.Status.String(),
	})

	s.log.Infow("KYC documents submitted",
		"record_id", rec.ID,
		"user_id", userID,
		"document_type", documentType,
	)

	return rec, nil
}

// Decision is an adjudication verdict
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

// AdjudicateOutcome reports the adjudication result and, for approvals,
// how the ledger sync went. A failed sync never reverses the approval;
// the reconciler re-drives unsynced approvals.
type AdjudicateOutcome struct {
	Success bool
	Reason  workflow.Reason
	Err     error
	Record  *identity.KYCRecord
	Ledger  workflow.LedgerOutcome
}

func adjudicateFailure(reason workflow.Reason, err error) *AdjudicateOutcome {
	metrics.WorkflowExecutions.WithLabelValues("kyc_adjudication", string(reason)).Inc()
	return &AdjudicateOutcome{Reason: reason, Err: err}
}

// Adjudicate records a review decision on a submitted record. The
// reason is stored on rejections; approval triggers the ledger sync
// workflow.
func (s *Service) Adjudicate(ctx context.Context, recordID uuid.UUID, decision Decision, reason string) *AdjudicateOutcome {
	rec, err := s.records.GetByID(ctx, recordID)
	if err != nil {
		return adjudicateFailure(workflow.Classify(err), err)
	}

	now := time.Now().UTC()
	switch decision {
	case DecisionApprove:
		err = rec.Approve(now)
	case DecisionReject:
		err = rec.Reject(reason, now)
	default:
		err = errors.Wrapf(errors.ErrValidation, "unknown decision %q", decision)
	}
	if err != nil {
		return adjudicateFailure(workflow.Classify(err), err)
	}

	if err := s.records.Update(ctx, rec); err != nil {
		return adjudicateFailure(workflow.ReasonInternal, err)
	}

	outcome := &AdjudicateOutcome{Success: true, Record: rec}
	if rec.Status == identity.StatusApproved {
		outcome.Ledger = s.syncApproved(ctx, rec)
	}

	s.publisher.KYCStatusChanged(ctx, events.KYCStatusEvent{
		RecordID:     rec.ID,
		UserID:       rec.UserID,
		Status:       rec.Status.String(),
		LedgerSynced: rec.LedgerSynced(),
		TxHash:       rec.OnChainTxHash,
	})

	s.log.Infow("KYC record adjudicated",
		"record_id", rec.ID,
		"user_id", rec.UserID,
		"decision", decision,
		"ledger_synced", rec.LedgerSynced(),
	)
	metrics.WorkflowExecutions.WithLabelValues("kyc_adjudication", "success").Inc()

	return outcome
}

// SyncToLedger pushes an approved record's verification to the identity
// registry. Idempotent: an already-verified identity is a no-op success.
func (s *Service) SyncToLedger(ctx context.Context, recordID uuid.UUID) workflow.LedgerOutcome {
	rec, err := s.records.GetByID(ctx, recordID)
	if err != nil {
		return workflow.DegradedOutcome(workflow.Classify(err))
	}
	if rec.Status != identity.StatusApproved {
		return workflow.DegradedOutcome(workflow.ReasonInvalidState)
	}
	return s.syncApproved(ctx, rec)
}

func (s *Service) syncApproved(ctx context.Context, rec *identity.KYCRecord) workflow.LedgerOutcome {
	u, err := s.users.GetByID(ctx, rec.UserID)
	if err != nil {
		s.log.Warnw("KYC approved but user lookup failed", "record_id", rec.ID, "error", err)
		return workflow.DegradedOutcome(workflow.Classify(err))
	}
	if !u.HasWallet() {
		s.log.Warnw("KYC approved but user has no wallet, sync deferred",
			"record_id", rec.ID,
			"user_id", u.ID,
		)
		return workflow.DegradedOutcome(workflow.ReasonNoWalletAddress)
	}

	if err := s.gateway.EnsureReady(ctx); err != nil {
		s.log.Warnw("KYC approved but ledger unavailable, sync deferred",
			"record_id", rec.ID,
			"error", err,
		)
		return workflow.DegradedOutcome(workflow.ReasonUnavailable)
	}

	synced, err := s.gateway.SyncIdentity(ctx, u.WalletAddress)
	if err != nil {
		s.log.Warnw("Identity sync failed, reconciler will retry",
			"record_id", rec.ID,
			"wallet", u.WalletAddress,
			"error", err,
		)
		return workflow.DegradedOutcome(workflow.ReasonBlockchainError)
	}

	rec.MarkSynced(synced.TxHash, time.Now().UTC())
	if err := s.records.MarkSynced(ctx, rec.ID, synced.TxHash); err != nil {
		s.log.Errorw("Identity synced on ledger but local write failed",
			"record_id", rec.ID,
			"tx_hash", synced.TxHash,
			"error", err,
		)
		return workflow.DegradedOutcome(workflow.ReasonInternal)
	}

	s.log.Infow("Identity synced to ledger",
		"record_id", rec.ID,
		"wallet", u.WalletAddress,
		"tx_hash", synced.TxHash,
		"already_verified", synced.AlreadyVerified,
	)

	return workflow.SyncedOutcome(synced.TxHash)
}

// Get retrieves a user's KYC record
func (s *Service) Get(ctx context.Context, userID uuid.UUID) (*identity.KYCRecord, error) {
	return s.records.GetByUserID(ctx, userID)
}
