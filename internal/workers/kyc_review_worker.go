package workers

import (
	"context"
	"time"

	"meridian/internal/domain/identity"
	kycservice "meridian/internal/services/kyc"
)

// KYCReviewWorker periodically scans submitted KYC records that have
// aged past the review delay. In auto-approve mode (demo environments)
// it approves them; otherwise it only reports the backlog. A scheduled
// scan survives restarts, unlike an in-process timer armed at
// submission time.
type KYCReviewWorker struct {
	*BaseWorker
	records     identity.Repository
	kyc         *kycservice.Service
	reviewDelay time.Duration
	autoApprove bool
	batchSize   int
}

// NewKYCReviewWorker creates a new KYC review worker
func NewKYCReviewWorker(
	records identity.Repository,
	kyc *kycservice.Service,
	interval, reviewDelay time.Duration,
	autoApprove, enabled bool,
) *KYCReviewWorker {
	return &KYCReviewWorker{
		BaseWorker:  NewBaseWorker("kyc_review", interval, enabled),
		records:     records,
		kyc:         kyc,
		reviewDelay: reviewDelay,
		autoApprove: autoApprove,
		batchSize:   50,
	}
}

// Run processes one batch of aged submissions
func (w *KYCReviewWorker) Run(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-w.reviewDelay)

	recs, err := w.records.ListSubmittedBefore(ctx, cutoff, w.batchSize)
	if err != nil {
		w.RecordError(err)
		return err
	}
	if len(recs) == 0 {
		w.RecordRun()
		return nil
	}

	if !w.autoApprove {
		w.Log().Infow("KYC review backlog awaiting manual adjudication",
			"count", len(recs),
			"oldest_submitted_at", recs[0].SubmittedAt,
		)
		w.RecordRun()
		return nil
	}

	approved := 0
	for _, rec := range recs {
		if ctx.Err() != nil {
			break
		}

		outcome := w.kyc.Adjudicate(ctx, rec.ID, kycservice.DecisionApprove, "")
		if !outcome.Success {
			w.Log().Warnw("Auto-approval failed",
				"record_id", rec.ID,
				"reason", outcome.Reason,
				"error", outcome.Err,
			)
			continue
		}
		approved++
	}

	w.Log().Infow("KYC review sweep completed",
		"scanned", len(recs),
		"approved", approved,
	)
	w.RecordRun()
	return nil
}
