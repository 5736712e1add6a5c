package consumers

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meridian/internal/adapters/ledger"
	"meridian/internal/domain/fund"
	"meridian/internal/repository/memory"
	"meridian/pkg/logger"
)

func seedDraftFund(t *testing.T, funds *memory.FundRepository) *fund.Fund {
	t.Helper()
	now := time.Now().UTC()
	f := &fund.Fund{
		ID:            uuid.New(),
		Name:          "Pacific Growth Fund",
		ManagerID:     uuid.New(),
		TargetAmount:  decimal.New(10000, 0),
		RaisedAmount:  decimal.Zero,
		MinimumAmount: decimal.New(1000, 0),
		RiskLevel:     fund.RiskMedium,
		Status:        fund.StatusDraft,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	require.NoError(t, funds.Create(context.Background(), f))
	return f
}

func TestFundEventsConsumer_RelinksOrphanedDeployment(t *testing.T) {
	ctx := context.Background()
	funds := memory.NewFundRepository()
	c := NewFundEventsConsumer(nil, funds, logger.Get())

	// The token deployed but the local activation write was lost: the
	// fund sits in draft with no linkage
	f := seedDraftFund(t, funds)

	msg := eventMessage(t, ledger.Event{
		Name:   ledger.EventFundTokenCreated,
		TxHash: "0xdeploy",
		Fields: map[string]string{
			ledger.FieldSalt:         f.ID.String(),
			ledger.FieldTokenAddress: "0xtoken",
			ledger.FieldFundID:       "1",
		},
	})
	require.NoError(t, c.handleMessage(ctx, msg))

	stored, err := funds.GetByID(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, fund.StatusActive, stored.Status)
	assert.Equal(t, "0xtoken", stored.ContractAddress)
	assert.Equal(t, "1", stored.OnChainFundID)
}

func TestFundEventsConsumer_LinkedFundIsNoOp(t *testing.T) {
	ctx := context.Background()
	funds := memory.NewFundRepository()
	c := NewFundEventsConsumer(nil, funds, logger.Get())

	f := seedDraftFund(t, funds)
	require.NoError(t, funds.Activate(ctx, f.ID, "0xoriginal", "1", "PGF"))

	msg := eventMessage(t, ledger.Event{
		Name:   ledger.EventFundTokenCreated,
		TxHash: "0xdeploy",
		Fields: map[string]string{
			ledger.FieldSalt:         f.ID.String(),
			ledger.FieldTokenAddress: "0xother",
			ledger.FieldFundID:       "2",
		},
	})
	require.NoError(t, c.handleMessage(ctx, msg))

	// Existing linkage is never overwritten
	stored, err := funds.GetByID(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, "0xoriginal", stored.ContractAddress)
	assert.Equal(t, "1", stored.OnChainFundID)
}

func TestFundEventsConsumer_ForeignSaltIsNotOurs(t *testing.T) {
	ctx := context.Background()
	funds := memory.NewFundRepository()
	c := NewFundEventsConsumer(nil, funds, logger.Get())
	seedDraftFund(t, funds)

	msg := eventMessage(t, ledger.Event{
		Name:   ledger.EventFundTokenCreated,
		TxHash: "0xdeploy",
		Fields: map[string]string{
			ledger.FieldSalt:         "not-a-uuid",
			ledger.FieldTokenAddress: "0xtoken",
			ledger.FieldFundID:       "1",
		},
	})
	assert.NoError(t, c.handleMessage(ctx, msg))
}

func TestFundEventsConsumer_UnknownFund(t *testing.T) {
	ctx := context.Background()
	c := NewFundEventsConsumer(nil, memory.NewFundRepository(), logger.Get())

	msg := eventMessage(t, ledger.Event{
		Name:   ledger.EventFundTokenCreated,
		TxHash: "0xdeploy",
		Fields: map[string]string{
			ledger.FieldSalt:         uuid.New().String(),
			ledger.FieldTokenAddress: "0xtoken",
			ledger.FieldFundID:       "1",
		},
	})
	assert.NoError(t, c.handleMessage(ctx, msg))
}
