package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"

	"meridian/internal/adapters/config"
	"meridian/internal/adapters/ledger"
	"meridian/internal/adapters/ledger/ratelimit"
	"meridian/internal/adapters/ledger/retry"
	"meridian/internal/metrics"
	"meridian/pkg/errors"
	"meridian/pkg/logger"
)

// Compile-time check
var _ ledger.Client = (*Client)(nil)

// Client talks JSON-RPC 2.0 to the ledger node over HTTP and receives event
// subscriptions over websocket. Mutating methods are submitted with the
// operator identity and block server-side until the transaction is included,
// so a returned tx hash is always final.
type Client struct {
	cfg        config.LedgerConfig
	httpClient *http.Client
	limiter    *ratelimit.Limiter
	retrier    *retry.Middleware
	reqID      atomic.Int64
	log        *logger.Logger
}

// NewClient creates a new ledger RPC client
func NewClient(cfg config.LedgerConfig) *Client {
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			// Inclusion can take many blocks; the HTTP timeout must outlive it
			Timeout: cfg.InclusionTimeout,
		},
		limiter: ratelimit.NewLimiter("ledger", cfg.RequestsPerMinute),
		retrier: retry.New(retry.DefaultConfig()),
		log:     logger.Get().With("component", "ledger_rpc"),
	}
}

type rpcRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params"`
	ID      int64       `json:"id"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcError       `json:"error"`
	ID      int64           `json:"id"`
}

// call performs a single JSON-RPC request. Transport failures map to
// ErrUnavailable; node-side rejections map to ErrAlreadyExists or
// ErrTxRejected so the gateway can classify them.
func (c *Client) call(ctx context.Context, method string, params interface{}, result interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	timer := prometheus.NewTimer(metrics.LedgerCallDuration.WithLabelValues(method))
	defer timer.ObserveDuration()

	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      c.reqID.Add(1),
	})
	if err != nil {
		return errors.Wrap(err, "marshal rpc request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.RPCURL, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "build rpc request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrapf(errors.ErrUnavailable, "ledger node unreachable: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return errors.Wrapf(errors.ErrUnavailable, "ledger node returned %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "read rpc response")
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(raw, &rpcResp); err != nil {
		return errors.Wrap(err, "decode rpc response")
	}

	if rpcResp.Error != nil {
		return classifyRPCError(method, rpcResp.Error)
	}

	if result != nil {
		if err := json.Unmarshal(rpcResp.Result, result); err != nil {
			return errors.Wrapf(err, "decode %s result", method)
		}
	}
	return nil
}

// query wraps read-only calls with retry; mutating calls go through call directly
func (c *Client) query(ctx context.Context, method string, params interface{}, result interface{}) error {
	return c.retrier.Do(ctx, func() error {
		return c.call(ctx, method, params, result)
	})
}

func classifyRPCError(method string, rpcErr *rpcError) error {
	msg := strings.ToLower(rpcErr.Message)
	switch {
	case strings.Contains(msg, "already") || strings.Contains(msg, "duplicate"):
		return errors.Wrapf(errors.ErrAlreadyExists, "%s: %s", method, rpcErr.Message)
	case strings.Contains(msg, "rejected") || strings.Contains(msg, "reverted"):
		return errors.Wrapf(errors.ErrTxRejected, "%s: %s", method, rpcErr.Message)
	default:
		return errors.Wrapf(errors.ErrLedger, "%s: code %d: %s", method, rpcErr.Code, rpcErr.Message)
	}
}

// Ping reports whether the node is reachable and the contracts resolve
func (c *Client) Ping(ctx context.Context) error {
	var ready bool
	if err := c.query(ctx, "node_ready", nil, &ready); err != nil {
		return err
	}
	if !ready {
		return errors.Wrap(errors.ErrUnavailable, "ledger node not ready")
	}
	return nil
}

// IsApprovedGP checks the GP allow-list
func (c *Client) IsApprovedGP(ctx context.Context, address string) (bool, error) {
	var approved bool
	err := c.query(ctx, "gp_isApproved", []string{address}, &approved)
	return approved, err
}

// ApproveGP adds a manager to the GP allow-list
func (c *Client) ApproveGP(ctx context.Context, address string) (string, error) {
	var txHash string
	err := c.call(ctx, "gp_approve", []string{address}, &txHash)
	return txHash, err
}

// IsIdentityRegistered checks the identity registry
func (c *Client) IsIdentityRegistered(ctx context.Context, address string) (bool, error) {
	var registered bool
	err := c.query(ctx, "identity_isRegistered", []string{address}, &registered)
	return registered, err
}

// IsKycVerified checks whether the KYC claim is present
func (c *Client) IsKycVerified(ctx context.Context, address string) (bool, error) {
	var verified bool
	err := c.query(ctx, "identity_isVerified", []string{address}, &verified)
	return verified, err
}

// RegisterIdentity registers a wallet in the identity registry
func (c *Client) RegisterIdentity(ctx context.Context, address string, countryCode int) (string, error) {
	var txHash string
	err := c.call(ctx, "identity_register", map[string]interface{}{
		"address": address,
		"country": countryCode,
	}, &txHash)
	return txHash, err
}

// AddIdentityClaim adds a claim with the given topic to an identity
func (c *Client) AddIdentityClaim(ctx context.Context, address string, topic int) (string, error) {
	var txHash string
	err := c.call(ctx, "identity_addClaim", map[string]interface{}{
		"address": address,
		"topic":   topic,
	}, &txHash)
	return txHash, err
}

// SetKycVerified flips the verified flag on an already-registered identity
func (c *Client) SetKycVerified(ctx context.Context, address string, verified bool) (string, error) {
	var txHash string
	err := c.call(ctx, "identity_setVerified", map[string]interface{}{
		"address":  address,
		"verified": verified,
	}, &txHash)
	return txHash, err
}

type deployResultPayload struct {
	TokenAddress string `json:"tokenAddress"`
	FundID       string `json:"fundId"`
	TxHash       string `json:"txHash"`
}

// DeployFundToken deploys a compliance-wrapped fund token via the factory.
// Never retried here or anywhere: a second call creates a second token.
func (c *Client) DeployFundToken(ctx context.Context, req ledger.DeployFundTokenRequest) (*ledger.DeployResult, error) {
	var payload deployResultPayload
	err := c.call(ctx, "fund_deployToken", map[string]interface{}{
		"name":    req.Name,
		"symbol":  req.Symbol,
		"target":  req.Target.String(),
		"minimum": req.Minimum.String(),
		"manager": req.Manager,
		"salt":    req.Salt,
	}, &payload)
	if err != nil {
		return nil, err
	}
	return &ledger.DeployResult{
		TokenAddress:  payload.TokenAddress,
		OnChainFundID: payload.FundID,
		TxHash:        payload.TxHash,
	}, nil
}

type recordResultPayload struct {
	InvestmentID string `json:"investmentId"`
	TxHash       string `json:"txHash"`
}

// RecordInvestment writes an investment record; the contract de-duplicates
// by idempotency key so this call is safe to repeat.
func (c *Client) RecordInvestment(ctx context.Context, req ledger.RecordInvestmentRequest) (*ledger.RecordResult, error) {
	var payload recordResultPayload
	err := c.call(ctx, "investment_record", map[string]interface{}{
		"fundId":         req.OnChainFundID,
		"investor":       req.Investor,
		"amount":         req.Amount.String(),
		"tokenAmount":    req.TokenAmount.String(),
		"idempotencyKey": req.IdempotencyKey,
	}, &payload)
	if err != nil {
		return nil, err
	}
	return &ledger.RecordResult{
		OnChainInvestmentID: payload.InvestmentID,
		TxHash:              payload.TxHash,
	}, nil
}

// MintTokens mints fund tokens to an investor wallet, compliance bypassed
// for the mint leg only (owner mints from a zero balance).
func (c *Client) MintTokens(ctx context.Context, tokenAddress, to string, amount decimal.Decimal) (string, error) {
	var txHash string
	err := c.call(ctx, "token_mint", map[string]interface{}{
		"token":      tokenAddress,
		"to":         to,
		"amount":     amount.String(),
		"compliance": false,
	}, &txHash)
	return txHash, err
}

// GetTokenBalance returns the holder's balance of the given token
func (c *Client) GetTokenBalance(ctx context.Context, holder, tokenAddress string) (decimal.Decimal, error) {
	var raw string
	if err := c.query(ctx, "token_balanceOf", map[string]interface{}{
		"holder": holder,
		"token":  tokenAddress,
	}, &raw); err != nil {
		return decimal.Zero, err
	}

	balance, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "parse balance %q", raw)
	}
	return balance, nil
}

// Close releases client resources
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}
