package kyc

import (
	"context"
	"testing"

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
	"meridian/internal/services/workflow"
	"meridian/pkg/errors"
	"meridian/pkg/logger"
)

type fixture struct {
	svc     *Service
	records *memory.IdentityRepository
	users   *memory.UserRepository
	client  *ledgertest.Client

	investor *user.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	records := memory.NewIdentityRepository()
	users := memory.NewUserRepository()
	client := ledgertest.NewClient()
	gateway := ledger.NewGateway(client, config.LedgerConfig{OperatorAddress: "0xoperator"})
	publisher := events.NewPublisher(nil, logger.Get())

	investor := &user.User{
		ID:            uuid.New(),
		Email:         "lp@example.com",
		Role:          user.RoleLP,
		WalletAddress: "0xinvestor",
	}
	require.NoError(t, users.Create(context.Background(), investor))

	return &fixture{
		svc:      NewService(records, users, gateway, publisher, logger.Get()),
		records:  records,
		users:    users,
		client:   client,
		investor: investor,
	}
}

func (fx *fixture) submitted(t *testing.T) *identity.KYCRecord {
	t.Helper()
	rec, err := fx.svc.Submit(context.Background(), fx.investor.ID, "onfido-42", "passport", "doc-123")
	require.NoError(t, err)
	return rec
}

func TestService_Submit_CreatesRecord(t *testing.T) {
	fx := newFixture(t)

	rec := fx.submitted(t)
	assert.Equal(t, identity.StatusSubmitted, rec.Status)
	assert.Equal(t, fx.investor.ID, rec.UserID)

	stored, err := fx.records.GetByUserID(context.Background(), fx.investor.ID)
	require.NoError(t, err)
	assert.Equal(t, identity.StatusSubmitted, stored.Status)
	assert.Equal(t, "onfido-42", stored.ProviderRef)
	require.Len(t, stored.Documents, 1)
	assert.Equal(t, "doc-123", stored.Documents[0].Ref)
}

func TestService_Submit_ResubmitAfterRejection(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	rec := fx.submitted(t)

	outcome := fx.svc.Adjudicate(ctx, rec.ID, DecisionReject, "blurry scan")
	require.True(t, outcome.Success)

	resubmitted, err := fx.svc.Submit(ctx, fx.investor.ID, "", "passport", "doc-456")
	require.NoError(t, err)
	assert.Equal(t, identity.StatusSubmitted, resubmitted.Status)
	assert.Equal(t, rec.ID, resubmitted.ID)
	assert.Empty(t, resubmitted.RejectionReason)
	require.Len(t, resubmitted.Documents, 2)
	assert.Equal(t, "doc-456", resubmitted.Documents[1].Ref)
}

func TestService_Submit_WhileUnderReview(t *testing.T) {
	fx := newFixture(t)
	fx.submitted(t)

	_, err := fx.svc.Submit(context.Background(), fx.investor.ID, "", "passport", "doc-456")
	assert.ErrorIs(t, err, errors.ErrInvalidState)
}

func TestService_Adjudicate_ApproveSyncsToLedger(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	rec := fx.submitted(t)

	outcome := fx.svc.Adjudicate(ctx, rec.ID, DecisionApprove, "looks good")
	require.True(t, outcome.Success)

	assert.Equal(t, identity.StatusApproved, outcome.Record.Status)
	assert.True(t, outcome.Ledger.Synced)
	assert.NotEmpty(t, outcome.Ledger.TxHash)

	stored, err := fx.records.GetByID(ctx, rec.ID)
	require.NoError(t, err)
	assert.True(t, stored.LedgerSynced())
	assert.Equal(t, outcome.Ledger.TxHash, stored.OnChainTxHash)
	require.NotNil(t, stored.OnChainSyncedAt)

	verified, err := fx.client.IsKycVerified(ctx, "0xinvestor")
	require.NoError(t, err)
	assert.True(t, verified)
}

func TestService_Adjudicate_Reject(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	rec := fx.submitted(t)

	outcome := fx.svc.Adjudicate(ctx, rec.ID, DecisionReject, "document expired")
	require.True(t, outcome.Success)
	assert.Equal(t, identity.StatusRejected, outcome.Record.Status)
	assert.Equal(t, "document expired", outcome.Record.RejectionReason)
	assert.False(t, outcome.Ledger.Synced)

	// Nothing reached the ledger
	verified, err := fx.client.IsKycVerified(ctx, "0xinvestor")
	require.NoError(t, err)
	assert.False(t, verified)
}

func TestService_Adjudicate_UnknownDecision(t *testing.T) {
	fx := newFixture(t)
	rec := fx.submitted(t)

	outcome := fx.svc.Adjudicate(context.Background(), rec.ID, Decision("defer"), "")
	assert.False(t, outcome.Success)
	assert.Equal(t, workflow.ReasonValidation, outcome.Reason)
}

func TestService_Adjudicate_NotSubmitted(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	rec := fx.submitted(t)
	require.True(t, fx.svc.Adjudicate(ctx, rec.ID, DecisionApprove, "").Success)

	outcome := fx.svc.Adjudicate(ctx, rec.ID, DecisionApprove, "")
	assert.False(t, outcome.Success)
	assert.Equal(t, workflow.ReasonInvalidState, outcome.Reason)
}

func TestService_Adjudicate_NoWalletDefersSync(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	rec := fx.submitted(t)
	require.NoError(t, fx.users.UpdateWallet(ctx, fx.investor.ID, ""))

	outcome := fx.svc.Adjudicate(ctx, rec.ID, DecisionApprove, "")
	require.True(t, outcome.Success, "approval must hold even when the sync is deferred")

	assert.Equal(t, identity.StatusApproved, outcome.Record.Status)
	assert.False(t, outcome.Ledger.Synced)
	assert.Equal(t, workflow.ReasonNoWalletAddress, outcome.Ledger.Reason)

	// The reconciler finds the record by its unsynced state
	unsynced, err := fx.records.ListUnsynced(ctx, 10)
	require.NoError(t, err)
	require.Len(t, unsynced, 1)
	assert.Equal(t, rec.ID, unsynced[0].ID)
}

func TestService_Adjudicate_LedgerDownDefersSync(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	rec := fx.submitted(t)
	fx.client.Unreachable = true

	outcome := fx.svc.Adjudicate(ctx, rec.ID, DecisionApprove, "")
	require.True(t, outcome.Success)
	assert.Equal(t, identity.StatusApproved, outcome.Record.Status)
	assert.False(t, outcome.Ledger.Synced)
	assert.Equal(t, workflow.ReasonUnavailable, outcome.Ledger.Reason)
}

func TestService_SyncToLedger(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	rec := fx.submitted(t)

	// Approve while the node is down, then re-drive the sync
	fx.client.Unreachable = true
	require.True(t, fx.svc.Adjudicate(ctx, rec.ID, DecisionApprove, "").Success)
	fx.client.Unreachable = false

	result := fx.svc.SyncToLedger(ctx, rec.ID)
	require.True(t, result.Synced)
	assert.NotEmpty(t, result.TxHash)

	stored, err := fx.records.GetByID(ctx, rec.ID)
	require.NoError(t, err)
	assert.True(t, stored.LedgerSynced())
}

func TestService_SyncToLedger_AlreadyVerifiedIsNoOp(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	rec := fx.submitted(t)
	fx.client.SetVerified("0xinvestor", true)

	require.True(t, fx.svc.Adjudicate(ctx, rec.ID, DecisionApprove, "").Success)

	result := fx.svc.SyncToLedger(ctx, rec.ID)
	assert.True(t, result.Synced)
}

func TestService_SyncToLedger_RequiresApproval(t *testing.T) {
	fx := newFixture(t)
	rec := fx.submitted(t)

	result := fx.svc.SyncToLedger(context.Background(), rec.ID)
	assert.False(t, result.Synced)
	assert.Equal(t, workflow.ReasonInvalidState, result.Reason)
}
