package bootstrap

import (
	"meridian/internal/workers"
)

// registerWorkers wires the scheduled background workers
func (c *Container) registerWorkers() {
	wcfg := c.Config.Workers

	c.Background.WorkerScheduler.RegisterWorker(workers.NewKYCReviewWorker(
		c.Repos.Identity,
		c.Services.KYC,
		wcfg.KYCReviewInterval,
		wcfg.KYCReviewDelay,
		wcfg.KYCAutoApprove,
		wcfg.KYCReviewEnabled,
	))

	c.Background.WorkerScheduler.RegisterWorker(workers.NewLedgerReconcilerWorker(
		c.Services.KYC,
		c.Repos.Identity,
		c.Repos.Fund,
		c.Repos.Investment,
		c.Repos.User,
		c.Gateway,
		c.Repos.Balances,
		wcfg.ReconcileInterval,
		wcfg.ReconcileBatch,
		wcfg.ReconcileEnabled,
	))
}
