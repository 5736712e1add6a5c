package ledgertest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"meridian/internal/adapters/ledger"
	"meridian/pkg/errors"
)

// Compile-time check
var _ ledger.Client = (*Client)(nil)

// Client is an in-memory ledger used by tests. It tracks call counts for
// one-shot operations and can be scripted to fail per method.
type Client struct {
	mu sync.Mutex

	approvedGPs  map[string]bool
	registered   map[string]bool
	verified     map[string]bool
	balances     map[string]decimal.Decimal
	recordedKeys map[string]*ledger.RecordResult

	DeployCalls  int
	MintCalls    int
	ApproveCalls int

	// FailWith maps a method name to an error returned instead of executing
	FailWith map[string]error

	// Unreachable makes every call fail as if the node were down
	Unreachable bool

	events chan ledger.Event
	nextID int
}

// NewClient creates an empty fake ledger
func NewClient() *Client {
	return &Client{
		approvedGPs:  make(map[string]bool),
		registered:   make(map[string]bool),
		verified:     make(map[string]bool),
		balances:     make(map[string]decimal.Decimal),
		recordedKeys: make(map[string]*ledger.RecordResult),
		FailWith:     make(map[string]error),
		events:       make(chan ledger.Event, 64),
	}
}

func (c *Client) fail(method string) error {
	if c.Unreachable {
		return errors.Wrap(errors.ErrUnavailable, "fake ledger unreachable")
	}
	if err, ok := c.FailWith[method]; ok {
		return err
	}
	return nil
}

func (c *Client) txHash() string {
	c.nextID++
	return fmt.Sprintf("0xtx%04d", c.nextID)
}

func (c *Client) Ping(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fail("Ping")
}

func (c *Client) IsApprovedGP(ctx context.Context, address string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.fail("IsApprovedGP"); err != nil {
		return false, err
	}
	return c.approvedGPs[strings.ToLower(address)], nil
}

func (c *Client) ApproveGP(ctx context.Context, address string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.fail("ApproveGP"); err != nil {
		return "", err
	}
	c.ApproveCalls++
	key := strings.ToLower(address)
	if c.approvedGPs[key] {
		return "", errors.Wrap(errors.ErrAlreadyExists, "gp already approved")
	}
	c.approvedGPs[key] = true
	return c.txHash(), nil
}

func (c *Client) IsIdentityRegistered(ctx context.Context, address string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.fail("IsIdentityRegistered"); err != nil {
		return false, err
	}
	return c.registered[strings.ToLower(address)], nil
}

func (c *Client) IsKycVerified(ctx context.Context, address string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.fail("IsKycVerified"); err != nil {
		return false, err
	}
	return c.verified[strings.ToLower(address)], nil
}

func (c *Client) RegisterIdentity(ctx context.Context, address string, countryCode int) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.fail("RegisterIdentity"); err != nil {
		return "", err
	}
	key := strings.ToLower(address)
	if c.registered[key] {
		return "", errors.Wrap(errors.ErrAlreadyExists, "identity already registered")
	}
	c.registered[key] = true
	return c.txHash(), nil
}

func (c *Client) AddIdentityClaim(ctx context.Context, address string, topic int) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.fail("AddIdentityClaim"); err != nil {
		return "", err
	}
	if topic == ledger.ClaimTopicKYC {
		c.verified[strings.ToLower(address)] = true
	}
	return c.txHash(), nil
}

func (c *Client) SetKycVerified(ctx context.Context, address string, verified bool) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.fail("SetKycVerified"); err != nil {
		return "", err
	}
	c.verified[strings.ToLower(address)] = verified
	return c.txHash(), nil
}

func (c *Client) DeployFundToken(ctx context.Context, req ledger.DeployFundTokenRequest) (*ledger.DeployResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.fail("DeployFundToken"); err != nil {
		return nil, err
	}
	c.DeployCalls++
	return &ledger.DeployResult{
		TokenAddress:  fmt.Sprintf("0xtoken%04d", c.DeployCalls),
		OnChainFundID: fmt.Sprintf("%d", c.DeployCalls),
		TxHash:        c.txHash(),
	}, nil
}

func (c *Client) RecordInvestment(ctx context.Context, req ledger.RecordInvestmentRequest) (*ledger.RecordResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.fail("RecordInvestment"); err != nil {
		return nil, err
	}
	// De-duplicate by idempotency key like the real contract
	if existing, ok := c.recordedKeys[req.IdempotencyKey]; ok {
		return existing, nil
	}
	result := &ledger.RecordResult{
		OnChainInvestmentID: fmt.Sprintf("%d", len(c.recordedKeys)+1),
		TxHash:              c.txHash(),
	}
	c.recordedKeys[req.IdempotencyKey] = result
	return result, nil
}

func (c *Client) MintTokens(ctx context.Context, tokenAddress, to string, amount decimal.Decimal) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.fail("MintTokens"); err != nil {
		return "", err
	}
	c.MintCalls++
	key := strings.ToLower(to) + "/" + tokenAddress
	c.balances[key] = c.balances[key].Add(amount)
	return c.txHash(), nil
}

func (c *Client) GetTokenBalance(ctx context.Context, holder, tokenAddress string) (decimal.Decimal, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.fail("GetTokenBalance"); err != nil {
		return decimal.Zero, err
	}
	return c.balances[strings.ToLower(holder)+"/"+tokenAddress], nil
}

func (c *Client) SubscribeEvents(ctx context.Context, stream string) (<-chan ledger.Event, error) {
	return c.events, nil
}

// EmitEvent pushes an event to subscribers, as if the chain emitted it
func (c *Client) EmitEvent(event ledger.Event) {
	c.events <- event
}

// SetVerified seeds a wallet's verification state
func (c *Client) SetVerified(address string, verified bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.registered[strings.ToLower(address)] = true
	c.verified[strings.ToLower(address)] = verified
}

// SetApprovedGP seeds the GP allow-list
func (c *Client) SetApprovedGP(address string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.approvedGPs[strings.ToLower(address)] = true
}

func (c *Client) Close() error {
	return nil
}
