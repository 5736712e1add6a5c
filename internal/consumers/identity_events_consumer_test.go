package consumers

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meridian/internal/adapters/ledger"
	"meridian/internal/domain/identity"
	"meridian/internal/domain/user"
	"meridian/internal/repository/memory"
	"meridian/pkg/logger"
)

// eventMessage wraps a ledger event the way the stream consumer publishes
// it to kafka
func eventMessage(t *testing.T, event ledger.Event) kafkago.Message {
	t.Helper()
	value, err := json.Marshal(event)
	require.NoError(t, err)
	return kafkago.Message{Value: value}
}

func seedUser(t *testing.T, users *memory.UserRepository, wallet string) *user.User {
	t.Helper()
	u := &user.User{
		ID:            uuid.New(),
		Email:         wallet + "@example.com",
		Role:          user.RoleLP,
		WalletAddress: wallet,
	}
	require.NoError(t, users.Create(context.Background(), u))
	return u
}

func TestIdentityEventsConsumer_ClaimAddedPromotesSubmitted(t *testing.T) {
	ctx := context.Background()
	users := memory.NewUserRepository()
	records := memory.NewIdentityRepository()
	c := NewIdentityEventsConsumer(nil, users, records, logger.Get())

	u := seedUser(t, users, "0xinvestor")
	now := time.Now().UTC()
	rec := &identity.KYCRecord{
		ID:          uuid.New(),
		UserID:      u.ID,
		Status:      identity.StatusSubmitted,
		SubmittedAt: &now,
	}
	require.NoError(t, records.Create(ctx, rec))

	msg := eventMessage(t, ledger.Event{
		Name:   ledger.EventClaimAdded,
		TxHash: "0xclaim",
		Fields: map[string]string{
			ledger.FieldWallet: "0xinvestor",
			ledger.FieldTopic:  "1",
		},
	})
	require.NoError(t, c.handleMessage(ctx, msg))

	stored, err := records.GetByID(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, identity.StatusApproved, stored.Status)
	assert.True(t, stored.LedgerSynced())
	assert.Equal(t, "0xclaim", stored.OnChainTxHash)
	require.NotNil(t, stored.ReviewedAt)
}

func TestIdentityEventsConsumer_ClaimAddedCreatesRecord(t *testing.T) {
	ctx := context.Background()
	users := memory.NewUserRepository()
	records := memory.NewIdentityRepository()
	c := NewIdentityEventsConsumer(nil, users, records, logger.Get())

	u := seedUser(t, users, "0xinvestor")

	msg := eventMessage(t, ledger.Event{
		Name:   ledger.EventClaimAdded,
		TxHash: "0xclaim",
		Fields: map[string]string{
			ledger.FieldWallet: "0xinvestor",
			ledger.FieldTopic:  "1",
		},
	})
	require.NoError(t, c.handleMessage(ctx, msg))

	stored, err := records.GetByUserID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, identity.StatusApproved, stored.Status)
	assert.True(t, stored.LedgerSynced())
}

func TestIdentityEventsConsumer_ClaimAddedIgnoresOtherTopics(t *testing.T) {
	ctx := context.Background()
	users := memory.NewUserRepository()
	records := memory.NewIdentityRepository()
	c := NewIdentityEventsConsumer(nil, users, records, logger.Get())

	u := seedUser(t, users, "0xinvestor")

	msg := eventMessage(t, ledger.Event{
		Name:   ledger.EventClaimAdded,
		TxHash: "0xclaim",
		Fields: map[string]string{
			ledger.FieldWallet: "0xinvestor",
			ledger.FieldTopic:  "7",
		},
	})
	require.NoError(t, c.handleMessage(ctx, msg))

	_, err := records.GetByUserID(ctx, u.ID)
	assert.Error(t, err, "a non-KYC claim must not create a record")
}

func TestIdentityEventsConsumer_ClaimAddedIdempotent(t *testing.T) {
	ctx := context.Background()
	users := memory.NewUserRepository()
	records := memory.NewIdentityRepository()
	c := NewIdentityEventsConsumer(nil, users, records, logger.Get())

	u := seedUser(t, users, "0xinvestor")
	msg := eventMessage(t, ledger.Event{
		Name:   ledger.EventClaimAdded,
		TxHash: "0xclaim",
		Fields: map[string]string{
			ledger.FieldWallet: "0xinvestor",
			ledger.FieldTopic:  "1",
		},
	})
	require.NoError(t, c.handleMessage(ctx, msg))
	first, err := records.GetByUserID(ctx, u.ID)
	require.NoError(t, err)

	// A replayed event leaves the already-synced approval untouched
	require.NoError(t, c.handleMessage(ctx, msg))
	second, err := records.GetByUserID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, first.OnChainTxHash, second.OnChainTxHash)
	assert.Equal(t, first.ID, second.ID)
}

func TestIdentityEventsConsumer_ClaimRemovedDemotes(t *testing.T) {
	ctx := context.Background()
	users := memory.NewUserRepository()
	records := memory.NewIdentityRepository()
	c := NewIdentityEventsConsumer(nil, users, records, logger.Get())

	u := seedUser(t, users, "0xinvestor")
	now := time.Now().UTC()
	rec := &identity.KYCRecord{
		ID:              uuid.New(),
		UserID:          u.ID,
		Status:          identity.StatusApproved,
		OnChainTxHash:   "0xsync",
		OnChainSyncedAt: &now,
		SubmittedAt:     &now,
		ReviewedAt:      &now,
	}
	require.NoError(t, records.Create(ctx, rec))

	msg := eventMessage(t, ledger.Event{
		Name:   ledger.EventClaimRemoved,
		TxHash: "0xremove",
		Fields: map[string]string{
			ledger.FieldWallet: "0xinvestor",
			ledger.FieldTopic:  "1",
		},
	})
	require.NoError(t, c.handleMessage(ctx, msg))

	stored, err := records.GetByID(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, identity.StatusRejected, stored.Status)
	assert.False(t, stored.LedgerSynced())
	assert.NotEmpty(t, stored.RejectionReason)
}

func TestIdentityEventsConsumer_ClaimRemovedIgnoresUnapproved(t *testing.T) {
	ctx := context.Background()
	users := memory.NewUserRepository()
	records := memory.NewIdentityRepository()
	c := NewIdentityEventsConsumer(nil, users, records, logger.Get())

	u := seedUser(t, users, "0xinvestor")
	now := time.Now().UTC()
	rec := &identity.KYCRecord{
		ID:          uuid.New(),
		UserID:      u.ID,
		Status:      identity.StatusSubmitted,
		SubmittedAt: &now,
	}
	require.NoError(t, records.Create(ctx, rec))

	msg := eventMessage(t, ledger.Event{
		Name:   ledger.EventClaimRemoved,
		TxHash: "0xremove",
		Fields: map[string]string{
			ledger.FieldWallet: "0xinvestor",
			ledger.FieldTopic:  "1",
		},
	})
	require.NoError(t, c.handleMessage(ctx, msg))

	stored, err := records.GetByID(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, identity.StatusSubmitted, stored.Status)
}

func TestIdentityEventsConsumer_RegisteredNeverApproves(t *testing.T) {
	ctx := context.Background()
	users := memory.NewUserRepository()
	records := memory.NewIdentityRepository()
	c := NewIdentityEventsConsumer(nil, users, records, logger.Get())

	u := seedUser(t, users, "0xinvestor")

	msg := eventMessage(t, ledger.Event{
		Name:   ledger.EventIdentityRegistered,
		TxHash: "0xregister",
		Fields: map[string]string{
			ledger.FieldWallet: "0xinvestor",
		},
	})
	require.NoError(t, c.handleMessage(ctx, msg))

	stored, err := records.GetByUserID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, identity.StatusPending, stored.Status)
	assert.Equal(t, "0xregister", stored.OnChainTxHash)
	assert.False(t, stored.LedgerSynced())
}

func TestIdentityEventsConsumer_UnknownWalletIsNotOurs(t *testing.T) {
	ctx := context.Background()
	users := memory.NewUserRepository()
	records := memory.NewIdentityRepository()
	c := NewIdentityEventsConsumer(nil, users, records, logger.Get())

	msg := eventMessage(t, ledger.Event{
		Name:   ledger.EventClaimAdded,
		TxHash: "0xclaim",
		Fields: map[string]string{
			ledger.FieldWallet: "0xstranger",
			ledger.FieldTopic:  "1",
		},
	})
	assert.NoError(t, c.handleMessage(ctx, msg))
}

func TestIdentityEventsConsumer_MalformedPayload(t *testing.T) {
	c := NewIdentityEventsConsumer(nil, memory.NewUserRepository(), memory.NewIdentityRepository(), logger.Get())

	err := c.handleMessage(context.Background(), kafkago.Message{Value: []byte("not json")})
	assert.Error(t, err)
}
