package fund

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meridian/pkg/errors"
)

func draftFund() *Fund {
	return &Fund{
		ID:            uuid.New(),
		Name:          "Global Growth",
		ManagerID:     uuid.New(),
		TargetAmount:  decimal.NewFromInt(100000),
		RaisedAmount:  decimal.Zero,
		MinimumAmount: decimal.NewFromInt(1000),
		RiskLevel:     RiskMedium,
		Status:        StatusDraft,
	}
}

func TestFund_Activate(t *testing.T) {
	f := draftFund()

	err := f.Activate("0xtoken", "42", "GG")
	require.NoError(t, err)

	assert.Equal(t, StatusActive, f.Status)
	assert.Equal(t, "0xtoken", f.ContractAddress)
	assert.Equal(t, "42", f.OnChainFundID)
	assert.Equal(t, "GG", f.TokenSymbol)
	assert.True(t, f.Deployed())
}

func TestFund_Activate_OnlyFromDraft(t *testing.T) {
	for _, status := range []Status{StatusActive, StatusClosed, StatusLiquidated} {
		f := draftFund()
		f.Status = status

		err := f.Activate("0xtoken", "42", "GG")
		assert.ErrorIs(t, err, errors.ErrInvalidState, "status %s", status)
	}
}

func TestFund_Activate_RequiresAmounts(t *testing.T) {
	f := draftFund()
	f.TargetAmount = decimal.Zero

	err := f.Activate("0xtoken", "42", "GG")
	assert.ErrorIs(t, err, errors.ErrValidation)
}

func TestFund_Activate_RequiresLinkage(t *testing.T) {
	f := draftFund()

	err := f.Activate("", "42", "GG")
	assert.ErrorIs(t, err, errors.ErrValidation)
	assert.Equal(t, StatusDraft, f.Status)
}

func TestFund_CloseAndLiquidate(t *testing.T) {
	f := draftFund()
	require.NoError(t, f.Activate("0xtoken", "42", "GG"))

	require.NoError(t, f.Close())
	assert.Equal(t, StatusClosed, f.Status)

	require.NoError(t, f.Liquidate())
	assert.Equal(t, StatusLiquidated, f.Status)

	assert.ErrorIs(t, f.Close(), errors.ErrInvalidState)
	assert.ErrorIs(t, f.Liquidate(), errors.ErrInvalidState)
}

func TestFund_LiquidateFromActive(t *testing.T) {
	f := draftFund()
	require.NoError(t, f.Activate("0xtoken", "42", "GG"))

	assert.NoError(t, f.Liquidate())
}

func TestFund_Deletable(t *testing.T) {
	f := draftFund()

	assert.NoError(t, f.Deletable(0))
	assert.ErrorIs(t, f.Deletable(3), errors.ErrInvalidState)

	require.NoError(t, f.Activate("0xtoken", "42", "GG"))
	assert.ErrorIs(t, f.Deletable(0), errors.ErrInvalidState)
}

func TestFund_ValidateInvestmentAmount(t *testing.T) {
	f := draftFund()
	f.TargetAmount = decimal.NewFromInt(10000)
	f.RaisedAmount = decimal.NewFromInt(8000)
	f.MinimumAmount = decimal.NewFromInt(1000)

	// Below minimum
	err := f.ValidateInvestmentAmount(decimal.NewFromInt(500))
	assert.ErrorIs(t, err, errors.ErrBelowMinimum)

	// 8000 + 5000 > 10000
	err = f.ValidateInvestmentAmount(decimal.NewFromInt(5000))
	assert.ErrorIs(t, err, errors.ErrTargetExceeded)

	// Exactly to the target is allowed
	assert.NoError(t, f.ValidateInvestmentAmount(decimal.NewFromInt(2000)))

	// Non-positive
	err = f.ValidateInvestmentAmount(decimal.Zero)
	assert.ErrorIs(t, err, errors.ErrValidation)
}

func TestFund_AcceptsInvestments(t *testing.T) {
	f := draftFund()
	assert.False(t, f.AcceptsInvestments())

	require.NoError(t, f.Activate("0xtoken", "42", "GG"))
	assert.True(t, f.AcceptsInvestments())

	require.NoError(t, f.Close())
	assert.False(t, f.AcceptsInvestments())
}

func TestFund_Remaining(t *testing.T) {
	f := draftFund()
	f.RaisedAmount = decimal.NewFromInt(30000)

	assert.True(t, f.Remaining().Equal(decimal.NewFromInt(70000)))
}
