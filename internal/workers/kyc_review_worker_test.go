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

func newKYCService(t *testing.T) (*kycservice.Service, *memory.IdentityRepository, *memory.UserRepository, *ledgertest.Client) {
	t.Helper()
	records := memory.NewIdentityRepository()
	users := memory.NewUserRepository()
	client := ledgertest.NewClient()
	gateway := ledger.NewGateway(client, config.LedgerConfig{OperatorAddress: "0xoperator"})
	publisher := events.NewPublisher(nil, logger.Get())
	return kycservice.NewService(records, users, gateway, publisher, logger.Get()), records, users, client
}

func submitRecord(t *testing.T, records *memory.IdentityRepository, userID uuid.UUID, submittedAt time.Time) *identity.KYCRecord {
	t.Helper()
	rec := &identity.KYCRecord{
		ID:        uuid.New(),
		UserID:    userID,
		Status:    identity.StatusPending,
		CreatedAt: submittedAt,
		UpdatedAt: submittedAt,
	}
	require.NoError(t, rec.Submit("", identity.Document{Type: "passport", Ref: "doc-123"}, submittedAt))
	require.NoError(t, records.Create(context.Background(), rec))
	return rec
}

func TestKYCReviewWorker_AutoApprovesAgedSubmissions(t *testing.T) {
	ctx := context.Background()
	svc, records, users, _ := newKYCService(t)

	aged := &user.User{ID: uuid.New(), Email: "aged@example.com", Role: user.RoleLP, WalletAddress: "0xaged"}
	fresh := &user.User{ID: uuid.New(), Email: "fresh@example.com", Role: user.RoleLP, WalletAddress: "0xfresh"}
	require.NoError(t, users.Create(ctx, aged))
	require.NoError(t, users.Create(ctx, fresh))

	agedRec := submitRecord(t, records, aged.ID, time.Now().UTC().Add(-time.Hour))
	freshRec := submitRecord(t, records, fresh.ID, time.Now().UTC())

	w := NewKYCReviewWorker(records, svc, time.Minute, 10*time.Minute, true, true)
	require.NoError(t, w.Run(ctx))

	stored, err := records.GetByID(ctx, agedRec.ID)
	require.NoError(t, err)
	assert.Equal(t, identity.StatusApproved, stored.Status)
	assert.True(t, stored.LedgerSynced(), "approval syncs to the ledger")

	// Submissions younger than the review delay wait for the next sweep
	stored, err = records.GetByID(ctx, freshRec.ID)
	require.NoError(t, err)
	assert.Equal(t, identity.StatusSubmitted, stored.Status)
}

func TestKYCReviewWorker_ManualModeLeavesBacklog(t *testing.T) {
	ctx := context.Background()
	svc, records, users, _ := newKYCService(t)

	u := &user.User{ID: uuid.New(), Email: "lp@example.com", Role: user.RoleLP, WalletAddress: "0xinvestor"}
	require.NoError(t, users.Create(ctx, u))
	rec := submitRecord(t, records, u.ID, time.Now().UTC().Add(-time.Hour))

	w := NewKYCReviewWorker(records, svc, time.Minute, 10*time.Minute, false, true)
	require.NoError(t, w.Run(ctx))

	stored, err := records.GetByID(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, identity.StatusSubmitted, stored.Status)
}
