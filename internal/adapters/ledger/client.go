package ledger

import (
	"context"

	"github.com/shopspring/decimal"
)

// Client is the low-level contract surface of the ledger node. Implementations
// translate each call into a signed transaction or query against the deployed
// contracts; all mutating calls block until inclusion and return a tx hash.
//
// Client carries no idempotency or readiness semantics of its own; the
// Gateway layers those on top.
type Client interface {
	// Ping reports whether the node is reachable and the contracts resolve
	Ping(ctx context.Context) error

	// GP allow-listing
	IsApprovedGP(ctx context.Context, address string) (bool, error)
	ApproveGP(ctx context.Context, address string) (string, error)

	// Identity registry
	IsIdentityRegistered(ctx context.Context, address string) (bool, error)
	IsKycVerified(ctx context.Context, address string) (bool, error)
	RegisterIdentity(ctx context.Context, address string, countryCode int) (string, error)
	AddIdentityClaim(ctx context.Context, address string, topic int) (string, error)
	SetKycVerified(ctx context.Context, address string, verified bool) (string, error)

	// Fund factory and investment ledger
	DeployFundToken(ctx context.Context, req DeployFundTokenRequest) (*DeployResult, error)
	RecordInvestment(ctx context.Context, req RecordInvestmentRequest) (*RecordResult, error)

	// Token operations. MintTokens is owner-only and is executed without the
	// transfer compliance module: a mint originates from the owner's zero
	// balance and would always fail a balance-sufficiency compliance check.
	// Transfers keep full compliance; only mint bypasses it.
	MintTokens(ctx context.Context, tokenAddress, to string, amount decimal.Decimal) (string, error)
	GetTokenBalance(ctx context.Context, holder, tokenAddress string) (decimal.Decimal, error)

	// SubscribeEvents opens a long-lived subscription for one stream
	// (identity, fund, investment). The returned channel is closed when ctx
	// is cancelled or the subscription terminally fails.
	SubscribeEvents(ctx context.Context, stream string) (<-chan Event, error)

	Close() error
}
