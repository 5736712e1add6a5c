package ledger

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"meridian/internal/adapters/config"
	"meridian/internal/metrics"
	"meridian/pkg/errors"
	"meridian/pkg/logger"
)

// Gateway is the process-wide entry point for all ledger operations. It owns
// a single Client, tracks readiness explicitly, and layers the idempotency
// semantics the raw contracts lack: duplicate GP approvals and identity
// registrations are success, deployments carry a re-link salt, investment
// records carry an idempotency key.
//
// The ledger node may simply not be running; initialization therefore fails
// soft. Every operation checks readiness first and returns ErrLedgerNotReady
// (surfaced to callers as SERVICE_UNAVAILABLE) instead of crashing, and a
// later call re-attempts initialization.
type Gateway struct {
	client Client
	cfg    config.LedgerConfig

	mu    sync.Mutex
	ready bool

	log *logger.Logger
}

// NewGateway creates a gateway around a ledger client. No connection is
// attempted until Initialize or the first operation.
func NewGateway(client Client, cfg config.LedgerConfig) *Gateway {
	return &Gateway{
		client: client,
		cfg:    cfg,
		log:    logger.Get().With("component", "ledger_gateway"),
	}
}

// Initialize verifies the node is reachable and the contract identities are
// configured. Concurrent first callers converge on one attempt under the
// lock. Failure leaves the gateway not-ready and is not fatal.
func (g *Gateway) Initialize(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.initializeLocked(ctx)
}

func (g *Gateway) initializeLocked(ctx context.Context) error {
	if g.ready {
		return nil
	}

	if g.cfg.OperatorAddress == "" {
		g.log.Warn("Ledger operator address not configured, gateway not ready")
		return errors.ErrLedgerNotReady
	}

	if err := g.client.Ping(ctx); err != nil {
		g.log.Warnw("Ledger node not reachable, gateway not ready", "error", err)
		return errors.Wrap(errors.ErrLedgerNotReady, err.Error())
	}

	g.ready = true
	g.log.Infow("Ledger gateway initialized",
		"operator", g.cfg.OperatorAddress,
		"fund_factory", g.cfg.FundFactoryAddress,
		"identity_registry", g.cfg.IdentityRegistryAddress,
	)
	return nil
}

// Ready reports whether the gateway has been initialized
func (g *Gateway) Ready() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.ready
}

// EnsureReady initializes on demand and returns ErrLedgerNotReady when the
// node is still unreachable. Callers surface this as retryable.
func (g *Gateway) EnsureReady(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.ready {
		return nil
	}
	if err := g.initializeLocked(ctx); err != nil {
		return errors.ErrLedgerNotReady
	}
	return nil
}

// IsApprovedGP checks the manager allow-list
func (g *Gateway) IsApprovedGP(ctx context.Context, address string) (bool, error) {
	if err := g.EnsureReady(ctx); err != nil {
		return false, err
	}
	return g.client.IsApprovedGP(ctx, address)
}

// EnsureGPApproved approves a manager on the ledger if not already approved.
// Approval is not idempotent at the contract level, so this checks first and
// treats a duplicate-approval rejection as success.
func (g *Gateway) EnsureGPApproved(ctx context.Context, address string) error {
	if err := g.EnsureReady(ctx); err != nil {
		return err
	}

	approved, err := g.client.IsApprovedGP(ctx, address)
	if err != nil {
		return errors.Wrap(err, "check gp approval")
	}
	if approved {
		return nil
	}

	txHash, err := g.client.ApproveGP(ctx, address)
	if err != nil {
		if IsDuplicate(err) {
			g.log.Debugw("GP already approved", "address", address)
			return nil
		}
		return errors.Wrap(err, "approve gp")
	}

	metrics.LedgerTransactions.WithLabelValues("approve_gp").Inc()
	g.log.Infow("GP approved on ledger", "address", address, "tx_hash", txHash)
	return nil
}

// IsKycVerified checks the on-chain KYC claim for a wallet
func (g *Gateway) IsKycVerified(ctx context.Context, address string) (bool, error) {
	if err := g.EnsureReady(ctx); err != nil {
		return false, err
	}
	return g.client.IsKycVerified(ctx, address)
}

// SyncResult is the outcome of pushing a KYC approval to the ledger
type SyncResult struct {
	TxHash          string
	AlreadyVerified bool
}

// SyncIdentity mirrors a local KYC approval onto the ledger: register the
// identity and add the KYC claim when unregistered, or set the verified flag
// directly when the identity already exists. Re-running against an
// already-verified identity is a no-op success.
func (g *Gateway) SyncIdentity(ctx context.Context, wallet string) (*SyncResult, error) {
	if err := g.EnsureReady(ctx); err != nil {
		return nil, err
	}

	verified, err := g.client.IsKycVerified(ctx, wallet)
	if err != nil {
		return nil, errors.Wrap(err, "check kyc verification")
	}
	if verified {
		return &SyncResult{AlreadyVerified: true}, nil
	}

	registered, err := g.client.IsIdentityRegistered(ctx, wallet)
	if err != nil {
		return nil, errors.Wrap(err, "check identity registration")
	}

	var txHash string
	if !registered {
		if _, err := g.client.RegisterIdentity(ctx, wallet, g.cfg.DefaultCountryCode); err != nil && !IsDuplicate(err) {
			return nil, errors.Wrap(err, "register identity")
		}
		// The claim is the authorization act; registration alone verifies nothing
		txHash, err = g.client.AddIdentityClaim(ctx, wallet, ClaimTopicKYC)
		if err != nil && !IsDuplicate(err) {
			return nil, errors.Wrap(err, "add kyc claim")
		}
	} else {
		txHash, err = g.client.SetKycVerified(ctx, wallet, true)
		if err != nil && !IsDuplicate(err) {
			return nil, errors.Wrap(err, "set kyc verified")
		}
	}

	metrics.LedgerTransactions.WithLabelValues("sync_identity").Inc()
	g.log.Infow("Identity synced to ledger", "wallet", wallet, "tx_hash", txHash)
	return &SyncResult{TxHash: txHash}, nil
}

// RevokeIdentity clears the verified flag for a wallet
func (g *Gateway) RevokeIdentity(ctx context.Context, wallet string) (string, error) {
	if err := g.EnsureReady(ctx); err != nil {
		return "", err
	}

	txHash, err := g.client.SetKycVerified(ctx, wallet, false)
	if err != nil {
		return "", errors.Wrap(err, "revoke kyc verification")
	}

	metrics.LedgerTransactions.WithLabelValues("revoke_identity").Inc()
	return txHash, nil
}

// DeployFundToken deploys the fund's token contract. One-shot: the caller
// must persist the result before ever considering a retry, because a second
// deployment creates a second token. The fund id travels as the deployment
// salt so the creation event can be re-linked if the local write is lost.
func (g *Gateway) DeployFundToken(ctx context.Context, fundID, name, symbol, manager string, target, minimum decimal.Decimal) (*DeployResult, error) {
	if err := g.EnsureReady(ctx); err != nil {
		return nil, err
	}

	result, err := g.client.DeployFundToken(ctx, DeployFundTokenRequest{
		Name:    name,
		Symbol:  symbol,
		Target:  target,
		Minimum: minimum,
		Manager: manager,
		Salt:    fundID,
	})
	if err != nil {
		return nil, errors.Wrap(errors.ErrDeployFailed, err.Error())
	}

	metrics.LedgerTransactions.WithLabelValues("deploy_fund_token").Inc()
	g.log.Infow("Fund token deployed",
		"fund_id", fundID,
		"token_address", result.TokenAddress,
		"on_chain_fund_id", result.OnChainFundID,
		"tx_hash", result.TxHash,
	)
	return result, nil
}

// RecordInvestment writes an investment record keyed by the local
// investment id; a retried call with the same key is de-duplicated on-chain.
func (g *Gateway) RecordInvestment(ctx context.Context, onChainFundID, investor, investmentID string, amount, tokenAmount decimal.Decimal) (*RecordResult, error) {
	if err := g.EnsureReady(ctx); err != nil {
		return nil, err
	}

	result, err := g.client.RecordInvestment(ctx, RecordInvestmentRequest{
		OnChainFundID:  onChainFundID,
		Investor:       investor,
		Amount:         amount,
		TokenAmount:    tokenAmount,
		IdempotencyKey: investmentID,
	})
	if err != nil {
		return nil, errors.Wrap(err, "record investment")
	}

	metrics.LedgerTransactions.WithLabelValues("record_investment").Inc()
	return result, nil
}

// MintFundTokens mints tokens to an investor wallet, targeting the fund's
// own token when deployed or the platform default token otherwise. Mint
// deliberately bypasses the transfer compliance check (owner mints from a
// zero balance); the identity verification check is never bypassed and must
// be enforced by the caller before minting.
func (g *Gateway) MintFundTokens(ctx context.Context, tokenAddress, to string, amount decimal.Decimal) (string, error) {
	if err := g.EnsureReady(ctx); err != nil {
		return "", err
	}

	if tokenAddress == "" {
		tokenAddress = g.cfg.DefaultFundTokenAddress
	}

	txHash, err := g.client.MintTokens(ctx, tokenAddress, to, amount)
	if err != nil {
		return "", errors.Wrap(errors.ErrMintFailed, err.Error())
	}

	metrics.LedgerTransactions.WithLabelValues("mint_tokens").Inc()
	g.log.Infow("Fund tokens minted",
		"token", tokenAddress,
		"to", to,
		"amount", amount.String(),
		"tx_hash", txHash,
	)
	return txHash, nil
}

// GetFundTokenBalance returns a wallet's balance of a fund token, falling
// back to the default token when no address is given
func (g *Gateway) GetFundTokenBalance(ctx context.Context, holder, tokenAddress string) (decimal.Decimal, error) {
	if err := g.EnsureReady(ctx); err != nil {
		return decimal.Zero, err
	}

	if tokenAddress == "" {
		tokenAddress = g.cfg.DefaultFundTokenAddress
	}
	return g.client.GetTokenBalance(ctx, holder, tokenAddress)
}

// SubscribeEvents opens a long-lived event subscription for one stream
func (g *Gateway) SubscribeEvents(ctx context.Context, stream string) (<-chan Event, error) {
	if err := g.EnsureReady(ctx); err != nil {
		return nil, err
	}
	return g.client.SubscribeEvents(ctx, stream)
}

// Close releases the underlying ledger connection
func (g *Gateway) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.ready = false
	return g.client.Close()
}
