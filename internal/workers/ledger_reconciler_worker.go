package workers

import (
	"context"
	"time"

	"meridian/internal/adapters/ledger"
	"meridian/internal/domain/fund"
	"meridian/internal/domain/identity"
	"meridian/internal/domain/investment"
	"meridian/internal/domain/user"
	redisrepo "meridian/internal/repository/redis"
	kycservice "meridian/internal/services/kyc"
)

// LedgerReconcilerWorker periodically converges local state toward the
// ledger: re-drives approved KYC records the ledger has not
// acknowledged, refreshes cached token balances for active funds and
// reports invariant drift.
type LedgerReconcilerWorker struct {
	*BaseWorker
	kyc       *kycservice.Service
	records   identity.Repository
	funds     fund.Repository
	invs      investment.Repository
	users     user.Repository
	gateway   *ledger.Gateway
	balances  *redisrepo.BalanceCache
	batchSize int
}

// NewLedgerReconcilerWorker creates a new reconciler worker
func NewLedgerReconcilerWorker(
	kyc *kycservice.Service,
	records identity.Repository,
	funds fund.Repository,
	invs investment.Repository,
	users user.Repository,
	gateway *ledger.Gateway,
	balances *redisrepo.BalanceCache,
	interval time.Duration,
	batchSize int,
	enabled bool,
) *LedgerReconcilerWorker {
	if batchSize <= 0 {
		batchSize = 50
	}
	return &LedgerReconcilerWorker{
		BaseWorker: NewBaseWorker("ledger_reconciler", interval, enabled),
		kyc:        kyc,
		records:    records,
		funds:      funds,
		invs:       invs,
		users:      users,
		gateway:    gateway,
		balances:   balances,
		batchSize:  batchSize,
	}
}

// Run performs one reconciliation sweep. Ledger calls block until
// inclusion, so the sweep is bounded by batch size rather than time.
func (w *LedgerReconcilerWorker) Run(ctx context.Context) error {
	if err := w.gateway.EnsureReady(ctx); err != nil {
		w.Log().Warnw("Ledger unavailable, skipping reconciliation sweep", "error", err)
		w.RecordError(err)
		return nil
	}

	w.resyncApprovals(ctx)
	w.refreshBalances(ctx)
	w.checkDrift(ctx)

	w.RecordRun()
	return nil
}

// resyncApprovals re-drives approved records whose ledger sync never
// landed. SyncIdentity is idempotent against already-verified wallets.
func (w *LedgerReconcilerWorker) resyncApprovals(ctx context.Context) {
	recs, err := w.records.ListUnsynced(ctx, w.batchSize)
	if err != nil {
		w.Log().Errorw("Failed to list unsynced KYC records", "error", err)
		return
	}

	synced := 0
	for _, rec := range recs {
		if ctx.Err() != nil {
			return
		}
		outcome := w.kyc.SyncToLedger(ctx, rec.ID)
		if outcome.Synced {
			synced++
		}
	}
	if len(recs) > 0 {
		w.Log().Infow("Re-drove unsynced KYC approvals",
			"scanned", len(recs),
			"synced", synced,
		)
	}
}

// refreshBalances re-reads on-chain balances for confirmed investors of
// active funds into the cache
func (w *LedgerReconcilerWorker) refreshBalances(ctx context.Context) {
	if w.balances == nil {
		return
	}

	funds, err := w.funds.List(ctx, fund.StatusActive, w.batchSize, 0)
	if err != nil {
		w.Log().Errorw("Failed to list active funds", "error", err)
		return
	}

	for _, f := range funds {
		if ctx.Err() != nil {
			return
		}
		if !f.Deployed() {
			continue
		}

		invs, err := w.invs.ListByFund(ctx, f.ID)
		if err != nil {
			w.Log().Errorw("Failed to list investments", "fund_id", f.ID, "error", err)
			continue
		}

		for _, inv := range invs {
			if inv.Status != investment.StatusConfirmed {
				continue
			}
			investor, err := w.users.GetByID(ctx, inv.InvestorID)
			if err != nil || !investor.HasWallet() {
				continue
			}

			balance, err := w.gateway.GetFundTokenBalance(ctx, investor.WalletAddress, f.ContractAddress)
			if err != nil {
				w.Log().Debugw("Failed to read token balance",
					"wallet", investor.WalletAddress,
					"fund_id", f.ID,
					"error", err,
				)
				continue
			}
			if err := w.balances.Set(ctx, f.ContractAddress, investor.WalletAddress, balance); err != nil {
				w.Log().Debugw("Failed to cache token balance",
					"wallet", investor.WalletAddress,
					"error", err,
				)
			}
		}
	}
}

// checkDrift reports funds violating the raised ≤ target invariant
func (w *LedgerReconcilerWorker) checkDrift(ctx context.Context) {
	funds, err := w.funds.List(ctx, fund.StatusActive, w.batchSize, 0)
	if err != nil {
		return
	}
	for _, f := range funds {
		if f.RaisedAmount.GreaterThan(f.TargetAmount) {
			w.Log().Errorw("Fund raised amount exceeds target",
				"fund_id", f.ID,
				"raised", f.RaisedAmount,
				"target", f.TargetAmount,
			)
		}
	}
}
