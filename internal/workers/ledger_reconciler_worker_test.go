package workers

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meridian/internal/adapters/config"
	"meridian/internal/adapters/ledger"
	"meridian/internal/adapters/ledger/ledgertest"
	"meridian/internal/domain/identity"
	"meridian/internal/domain/user"
	"meridian/internal/events"
	"meridian/internal/repository/memory"
	kycservice "meridian/internal/services/kyc"
	"meridian/pkg/logger"
)

func newReconciler(t *testing.T) (*LedgerReconcilerWorker, *memory.IdentityRepository, *memory.UserRepository, *ledgertest.Client) {
	t.Helper()
	records := memory.NewIdentityRepository()
	users := memory.NewUserRepository()
	funds := memory.NewFundRepository()
	invs := memory.NewInvestmentRepository()
	client := ledgertest.NewClient()
	gateway := ledger.NewGateway(client, config.LedgerConfig{OperatorAddress: "0xoperator"})
	svc := kycservice.NewService(records, users, gateway, events.NewPublisher(nil, logger.Get()), logger.Get())

	w := NewLedgerReconcilerWorker(svc, records, funds, invs, users, gateway, nil, time.Minute, 50, true)
	return w, records, users, client
}

func TestLedgerReconcilerWorker_ResyncsUnsyncedApprovals(t *testing.T) {
	ctx := context.Background()
	w, records, users, client := newReconciler(t)

	u := &user.User{ID: uuid.New(), Email: "lp@example.com", Role: user.RoleLP, WalletAddress: "0xinvestor"}
	require.NoError(t, users.Create(ctx, u))

	// An approval whose ledger sync never landed
	now := time.Now().UTC()
	rec := &identity.KYCRecord{
		ID:          uuid.New(),
		UserID:      u.ID,
		Status:      identity.StatusApproved,
		SubmittedAt: &now,
		ReviewedAt:  &now,
	}
	require.NoError(t, records.Create(ctx, rec))

	require.NoError(t, w.Run(ctx))

	stored, err := records.GetByID(ctx, rec.ID)
	require.NoError(t, err)
	assert.True(t, stored.LedgerSynced())

	verified, err := client.IsKycVerified(ctx, "0xinvestor")
	require.NoError(t, err)
	assert.True(t, verified)

	// Nothing left to re-drive
	unsynced, err := records.ListUnsynced(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, unsynced)
}

func TestLedgerReconcilerWorker_SkipsSweepWhenLedgerDown(t *testing.T) {
	ctx := context.Background()
	w, records, users, client := newReconciler(t)
	client.Unreachable = true

	u := &user.User{ID: uuid.New(), Email: "lp@example.com", Role: user.RoleLP, WalletAddress: "0xinvestor"}
	require.NoError(t, users.Create(ctx, u))
	now := time.Now().UTC()
	rec := &identity.KYCRecord{
		ID:          uuid.New(),
		UserID:      u.ID,
		Status:      identity.StatusApproved,
		SubmittedAt: &now,
		ReviewedAt:  &now,
	}
	require.NoError(t, records.Create(ctx, rec))

	// The sweep degrades without erroring, the record stays queued
	require.NoError(t, w.Run(ctx))

	stored, err := records.GetByID(ctx, rec.ID)
	require.NoError(t, err)
	assert.False(t, stored.LedgerSynced())

	health := w.Health()
	assert.Equal(t, int64(1), health.ErrorCount)
	assert.Error(t, health.LastError)
}
