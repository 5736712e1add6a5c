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
	"meridian/internal/domain/investment"
	"meridian/internal/repository/memory"
	"meridian/pkg/logger"
)

type investmentConsumerFixture struct {
	c           *InvestmentEventsConsumer
	investments *memory.InvestmentRepository
	funds       *memory.FundRepository

	fund *fund.Fund
	inv  *investment.Investment
}

// newInvestmentConsumerFixture seeds a deployed fund with one pending
// investment of 5000 whose capacity is already reserved
func newInvestmentConsumerFixture(t *testing.T) *investmentConsumerFixture {
	t.Helper()
	ctx := context.Background()

	investments := memory.NewInvestmentRepository()
	funds := memory.NewFundRepository()
	now := time.Now().UTC()

	f := &fund.Fund{
		ID:              uuid.New(),
		Name:            "Pacific Growth Fund",
		ManagerID:       uuid.New(),
		TargetAmount:    decimal.New(10000, 0),
		RaisedAmount:    decimal.New(5000, 0),
		MinimumAmount:   decimal.New(1000, 0),
		RiskLevel:       fund.RiskMedium,
		Status:          fund.StatusActive,
		ContractAddress: "0xtoken",
		OnChainFundID:   "1",
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	require.NoError(t, funds.Create(ctx, f))

	inv := &investment.Investment{
		ID:         uuid.New(),
		FundID:     f.ID,
		InvestorID: uuid.New(),
		Amount:     decimal.New(5000, 0),
		Status:     investment.StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	require.NoError(t, investments.Create(ctx, inv))

	return &investmentConsumerFixture{
		c:           NewInvestmentEventsConsumer(nil, investments, funds, nil, logger.Get()),
		investments: investments,
		funds:       funds,
		fund:        f,
		inv:         inv,
	}
}

func TestInvestmentEventsConsumer_RecordedRelinks(t *testing.T) {
	fx := newInvestmentConsumerFixture(t)
	ctx := context.Background()

	msg := eventMessage(t, ledger.Event{
		Name:   ledger.EventInvestmentRecorded,
		TxHash: "0xrecord",
		Fields: map[string]string{
			ledger.FieldIdempotencyKey: fx.inv.ID.String(),
			ledger.FieldInvestmentID:   "42",
		},
	})
	require.NoError(t, fx.c.handleMessage(ctx, msg))

	stored, err := fx.investments.GetByID(ctx, fx.inv.ID)
	require.NoError(t, err)
	assert.Equal(t, "42", stored.OnChainID)
	assert.Equal(t, "0xrecord", stored.OnChainTxHash)
	assert.Equal(t, investment.StatusPending, stored.Status, "re-linking never confirms")
	assert.Empty(t, stored.TransactionHash, "the mint hash is written only at confirmation")
}

func TestInvestmentEventsConsumer_ConfirmedRepairsLostWrite(t *testing.T) {
	fx := newInvestmentConsumerFixture(t)
	ctx := context.Background()

	msg := eventMessage(t, ledger.Event{
		Name:   ledger.EventInvestmentConfirmed,
		TxHash: "0xconfirm",
		Fields: map[string]string{
			ledger.FieldIdempotencyKey: fx.inv.ID.String(),
			ledger.FieldInvestmentID:   "42",
			ledger.FieldTokenAmount:    "5000",
		},
	})
	require.NoError(t, fx.c.handleMessage(ctx, msg))

	stored, err := fx.investments.GetByID(ctx, fx.inv.ID)
	require.NoError(t, err)
	assert.Equal(t, investment.StatusConfirmed, stored.Status)
	assert.True(t, stored.TokensIssued.Equal(decimal.New(5000, 0)))
	assert.Equal(t, "0xconfirm", stored.TransactionHash)
}

func TestInvestmentEventsConsumer_ConfirmedFallsBackToAmount(t *testing.T) {
	fx := newInvestmentConsumerFixture(t)
	ctx := context.Background()

	msg := eventMessage(t, ledger.Event{
		Name:   ledger.EventInvestmentConfirmed,
		TxHash: "0xconfirm",
		Fields: map[string]string{
			ledger.FieldIdempotencyKey: fx.inv.ID.String(),
		},
	})
	require.NoError(t, fx.c.handleMessage(ctx, msg))

	// No issuance amount in the event, tokens default to 1:1
	stored, err := fx.investments.GetByID(ctx, fx.inv.ID)
	require.NoError(t, err)
	assert.True(t, stored.TokensIssued.Equal(fx.inv.Amount))
}

func TestInvestmentEventsConsumer_ConfirmedAlreadyConfirmed(t *testing.T) {
	fx := newInvestmentConsumerFixture(t)
	ctx := context.Background()
	require.NoError(t, fx.investments.Confirm(ctx, fx.inv.ID, decimal.New(5000, 0), "42", "0xfirst"))

	msg := eventMessage(t, ledger.Event{
		Name:   ledger.EventInvestmentConfirmed,
		TxHash: "0xreplay",
		Fields: map[string]string{
			ledger.FieldIdempotencyKey: fx.inv.ID.String(),
			ledger.FieldTokenAmount:    "5000",
		},
	})
	require.NoError(t, fx.c.handleMessage(ctx, msg))

	stored, err := fx.investments.GetByID(ctx, fx.inv.ID)
	require.NoError(t, err)
	assert.Equal(t, "0xfirst", stored.TransactionHash)
}

func TestInvestmentEventsConsumer_CancelledReleasesCapacity(t *testing.T) {
	fx := newInvestmentConsumerFixture(t)
	ctx := context.Background()

	msg := eventMessage(t, ledger.Event{
		Name:   ledger.EventInvestmentCancelled,
		TxHash: "0xcancel",
		Fields: map[string]string{
			ledger.FieldIdempotencyKey: fx.inv.ID.String(),
		},
	})
	require.NoError(t, fx.c.handleMessage(ctx, msg))

	stored, err := fx.investments.GetByID(ctx, fx.inv.ID)
	require.NoError(t, err)
	assert.Equal(t, investment.StatusCancelled, stored.Status)

	f, err := fx.funds.GetByID(ctx, fx.fund.ID)
	require.NoError(t, err)
	assert.True(t, f.RaisedAmount.IsZero())
}

func TestInvestmentEventsConsumer_CancelledConfirmedIsNoOp(t *testing.T) {
	fx := newInvestmentConsumerFixture(t)
	ctx := context.Background()
	require.NoError(t, fx.investments.Confirm(ctx, fx.inv.ID, decimal.New(5000, 0), "42", "0xconfirm"))

	msg := eventMessage(t, ledger.Event{
		Name:   ledger.EventInvestmentCancelled,
		TxHash: "0xcancel",
		Fields: map[string]string{
			ledger.FieldIdempotencyKey: fx.inv.ID.String(),
		},
	})
	require.NoError(t, fx.c.handleMessage(ctx, msg))

	stored, err := fx.investments.GetByID(ctx, fx.inv.ID)
	require.NoError(t, err)
	assert.Equal(t, investment.StatusConfirmed, stored.Status)

	// The raised total still carries the settled investment
	f, err := fx.funds.GetByID(ctx, fx.fund.ID)
	require.NoError(t, err)
	assert.True(t, f.RaisedAmount.Equal(decimal.New(5000, 0)))
}

func TestInvestmentEventsConsumer_UnknownKeyIsNotOurs(t *testing.T) {
	fx := newInvestmentConsumerFixture(t)
	ctx := context.Background()

	msg := eventMessage(t, ledger.Event{
		Name:   ledger.EventInvestmentRecorded,
		TxHash: "0xrecord",
		Fields: map[string]string{
			ledger.FieldIdempotencyKey: uuid.New().String(),
			ledger.FieldInvestmentID:   "42",
		},
	})
	assert.NoError(t, fx.c.handleMessage(ctx, msg))

	stored, err := fx.investments.GetByID(ctx, fx.inv.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.OnChainID)
}
