package ledger_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meridian/internal/adapters/config"
	"meridian/internal/adapters/ledger"
	"meridian/internal/adapters/ledger/ledgertest"
	"meridian/pkg/errors"
)

func testLedgerConfig() config.LedgerConfig {
	return config.LedgerConfig{
		OperatorAddress:         "0xoperator",
		FundFactoryAddress:      "0xfactory",
		IdentityRegistryAddress: "0xregistry",
		DefaultFundTokenAddress: "0xdefaulttoken",
		DefaultCountryCode:      840,
	}
}

func newTestGateway(t *testing.T) (*ledger.Gateway, *ledgertest.Client) {
	t.Helper()
	client := ledgertest.NewClient()
	return ledger.NewGateway(client, testLedgerConfig()), client
}

func TestGateway_Initialize_FailsSoftWhenUnreachable(t *testing.T) {
	ctx := context.Background()
	gw, client := newTestGateway(t)
	client.Unreachable = true

	err := gw.Initialize(ctx)
	assert.ErrorIs(t, err, errors.ErrLedgerNotReady)
	assert.False(t, gw.Ready())

	// Node comes back: the next operation re-attempts initialization
	client.Unreachable = false
	err = gw.EnsureGPApproved(ctx, "0xmanager")
	require.NoError(t, err)
	assert.True(t, gw.Ready())
}

func TestGateway_Initialize_RequiresOperator(t *testing.T) {
	cfg := testLedgerConfig()
	cfg.OperatorAddress = ""
	gw := ledger.NewGateway(ledgertest.NewClient(), cfg)

	err := gw.Initialize(context.Background())
	assert.ErrorIs(t, err, errors.ErrLedgerNotReady)
}

func TestGateway_OperationsFailFastWhenNotReady(t *testing.T) {
	ctx := context.Background()
	gw, client := newTestGateway(t)
	client.Unreachable = true

	_, err := gw.DeployFundToken(ctx, "fund-1", "Fund", "FND", "0xmanager", decimal.New(10000, 0), decimal.New(1000, 0))
	assert.ErrorIs(t, err, errors.ErrLedgerNotReady)
	assert.Zero(t, client.DeployCalls)

	_, err = gw.SyncIdentity(ctx, "0xinvestor")
	assert.ErrorIs(t, err, errors.ErrLedgerNotReady)
}

func TestGateway_EnsureGPApproved(t *testing.T) {
	ctx := context.Background()
	gw, client := newTestGateway(t)

	require.NoError(t, gw.EnsureGPApproved(ctx, "0xManager"))
	assert.Equal(t, 1, client.ApproveCalls)

	// Already approved on chain: check short-circuits, no second transaction
	require.NoError(t, gw.EnsureGPApproved(ctx, "0xmanager"))
	assert.Equal(t, 1, client.ApproveCalls)
}

func TestGateway_EnsureGPApproved_DuplicateRejectionIsSuccess(t *testing.T) {
	ctx := context.Background()
	gw, client := newTestGateway(t)

	// The check misses but the contract already holds the approval
	client.FailWith["ApproveGP"] = errors.Wrap(errors.ErrAlreadyExists, "gp already approved")
	require.NoError(t, gw.EnsureGPApproved(ctx, "0xmanager"))
	assert.Zero(t, client.ApproveCalls)
}

func TestGateway_SyncIdentity_RegistersAndClaims(t *testing.T) {
	ctx := context.Background()
	gw, client := newTestGateway(t)

	result, err := gw.SyncIdentity(ctx, "0xInvestor")
	require.NoError(t, err)
	assert.False(t, result.AlreadyVerified)
	assert.NotEmpty(t, result.TxHash)

	verified, err := client.IsKycVerified(ctx, "0xinvestor")
	require.NoError(t, err)
	assert.True(t, verified)
}

func TestGateway_SyncIdentity_AlreadyVerified(t *testing.T) {
	ctx := context.Background()
	gw, client := newTestGateway(t)
	client.SetVerified("0xinvestor", true)

	result, err := gw.SyncIdentity(ctx, "0xinvestor")
	require.NoError(t, err)
	assert.True(t, result.AlreadyVerified)
	assert.Empty(t, result.TxHash)
}

func TestGateway_SyncIdentity_RegisteredButUnverified(t *testing.T) {
	ctx := context.Background()
	gw, client := newTestGateway(t)
	client.SetVerified("0xinvestor", false)

	result, err := gw.SyncIdentity(ctx, "0xinvestor")
	require.NoError(t, err)
	assert.False(t, result.AlreadyVerified)

	verified, err := client.IsKycVerified(ctx, "0xinvestor")
	require.NoError(t, err)
	assert.True(t, verified)
}

func TestGateway_DeployFundToken_CarriesSalt(t *testing.T) {
	ctx := context.Background()
	gw, client := newTestGateway(t)

	result, err := gw.DeployFundToken(ctx, "fund-uuid-1", "Growth Fund", "GF", "0xmanager", decimal.New(10000, 0), decimal.New(1000, 0))
	require.NoError(t, err)
	assert.NotEmpty(t, result.TokenAddress)
	assert.NotEmpty(t, result.OnChainFundID)
	assert.Equal(t, 1, client.DeployCalls)
}

func TestGateway_DeployFundToken_WrapsFailure(t *testing.T) {
	ctx := context.Background()
	gw, client := newTestGateway(t)
	require.NoError(t, gw.Initialize(ctx))
	client.FailWith["DeployFundToken"] = errors.New("out of gas")

	_, err := gw.DeployFundToken(ctx, "fund-uuid-1", "Growth Fund", "GF", "0xmanager", decimal.New(10000, 0), decimal.New(1000, 0))
	assert.ErrorIs(t, err, errors.ErrDeployFailed)
}

func TestGateway_RecordInvestment_Deduplicates(t *testing.T) {
	ctx := context.Background()
	gw, _ := newTestGateway(t)
	amount := decimal.New(5000, 0)

	first, err := gw.RecordInvestment(ctx, "1", "0xinvestor", "inv-uuid-1", amount, amount)
	require.NoError(t, err)

	second, err := gw.RecordInvestment(ctx, "1", "0xinvestor", "inv-uuid-1", amount, amount)
	require.NoError(t, err)
	assert.Equal(t, first.OnChainInvestmentID, second.OnChainInvestmentID)
	assert.Equal(t, first.TxHash, second.TxHash)
}

func TestGateway_MintFundTokens_DefaultTokenFallback(t *testing.T) {
	ctx := context.Background()
	gw, client := newTestGateway(t)
	amount := decimal.New(100, 0)

	txHash, err := gw.MintFundTokens(ctx, "", "0xinvestor", amount)
	require.NoError(t, err)
	assert.NotEmpty(t, txHash)

	balance, err := gw.GetFundTokenBalance(ctx, "0xinvestor", "")
	require.NoError(t, err)
	assert.True(t, balance.Equal(amount))
	assert.Equal(t, 1, client.MintCalls)
}

func TestGateway_MintFundTokens_WrapsFailure(t *testing.T) {
	ctx := context.Background()
	gw, client := newTestGateway(t)
	require.NoError(t, gw.Initialize(ctx))
	client.FailWith["MintTokens"] = errors.New("compliance module rejected mint")

	_, err := gw.MintFundTokens(ctx, "0xtoken", "0xinvestor", decimal.New(100, 0))
	assert.ErrorIs(t, err, errors.ErrMintFailed)
}
