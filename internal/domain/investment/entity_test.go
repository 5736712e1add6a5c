package investment

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meridian/pkg/errors"
)

func pendingInvestment() *Investment {
	return &Investment{
		ID:         uuid.New(),
		FundID:     uuid.New(),
		InvestorID: uuid.New(),
		Amount:     decimal.NewFromInt(5000),
		Status:     StatusPending,
	}
}

func TestInvestment_Confirm(t *testing.T) {
	inv := pendingInvestment()
	now := time.Now().UTC()

	err := inv.Confirm(decimal.NewFromInt(5000), "0xabc", now)
	require.NoError(t, err)

	assert.Equal(t, StatusConfirmed, inv.Status)
	assert.True(t, inv.TokensIssued.Equal(decimal.NewFromInt(5000)))
	assert.Equal(t, "0xabc", inv.TransactionHash)
	require.NotNil(t, inv.ConfirmedAt)
	assert.True(t, inv.Settled())
}

func TestInvestment_Confirm_Idempotent(t *testing.T) {
	inv := pendingInvestment()
	now := time.Now().UTC()
	require.NoError(t, inv.Confirm(decimal.NewFromInt(5000), "0xabc", now))

	// Second confirmation changes nothing
	err := inv.Confirm(decimal.NewFromInt(9999), "0xother", now.Add(time.Hour))
	require.NoError(t, err)

	assert.True(t, inv.TokensIssued.Equal(decimal.NewFromInt(5000)))
	assert.Equal(t, "0xabc", inv.TransactionHash)
}

func TestInvestment_Confirm_Cancelled(t *testing.T) {
	inv := pendingInvestment()
	require.NoError(t, inv.Cancel(time.Now().UTC()))

	err := inv.Confirm(decimal.NewFromInt(5000), "0xabc", time.Now().UTC())
	assert.ErrorIs(t, err, errors.ErrInvalidState)
}

func TestInvestment_Confirm_RequiresTokens(t *testing.T) {
	inv := pendingInvestment()

	err := inv.Confirm(decimal.Zero, "0xabc", time.Now().UTC())
	assert.ErrorIs(t, err, errors.ErrValidation)
	assert.Equal(t, StatusPending, inv.Status)
}

func TestInvestment_Cancel(t *testing.T) {
	inv := pendingInvestment()
	now := time.Now().UTC()

	require.NoError(t, inv.Cancel(now))
	assert.Equal(t, StatusCancelled, inv.Status)
	require.NotNil(t, inv.CancelledAt)

	// Terminal, cannot cancel twice or confirm after
	assert.ErrorIs(t, inv.Cancel(now), errors.ErrInvalidState)
}

func TestInvestment_Cancel_ConfirmedRejected(t *testing.T) {
	inv := pendingInvestment()
	require.NoError(t, inv.Confirm(decimal.NewFromInt(5000), "0xabc", time.Now().UTC()))

	assert.ErrorIs(t, inv.Cancel(time.Now().UTC()), errors.ErrInvalidState)
}

func TestInvestment_Settled_RequiresBothFields(t *testing.T) {
	inv := pendingInvestment()
	inv.Status = StatusConfirmed
	inv.TokensIssued = decimal.NewFromInt(5000)

	// No transaction hash yet
	assert.False(t, inv.Settled())

	inv.TransactionHash = "0xabc"
	assert.True(t, inv.Settled())
}
