package ledger

import (
	"github.com/shopspring/decimal"
)

// Claim topics recorded against on-chain identities
const (
	// ClaimTopicKYC is the claim topic whose presence authorizes investing
	ClaimTopicKYC = 1
)

// Event stream names accepted by SubscribeEvents
const (
	StreamIdentity   = "identity"
	StreamFund       = "fund"
	StreamInvestment = "investment"
)

// Ledger event names as emitted by the deployed contracts
const (
	EventIdentityRegistered  = "IdentityRegistered"
	EventClaimAdded          = "ClaimAdded"
	EventClaimRemoved        = "ClaimRemoved"
	EventFundTokenCreated    = "FundTokenCreated"
	EventInvestmentRecorded  = "InvestmentRecorded"
	EventInvestmentConfirmed = "InvestmentConfirmed"
	EventInvestmentCancelled = "InvestmentCancelled"
	EventTokensMinted        = "TokensMinted"
)

// Event is a decoded ledger event as delivered by a subscription
type Event struct {
	Name        string            `json:"name"`
	Fields      map[string]string `json:"fields"`
	BlockNumber uint64            `json:"block_number"`
	TxHash      string            `json:"tx_hash"`
}

// Field returns a named event field, empty string when absent
func (e Event) Field(key string) string {
	return e.Fields[key]
}

// Well-known event field keys
const (
	FieldWallet         = "wallet"
	FieldTopic          = "topic"
	FieldFundID         = "fundId"
	FieldTokenAddress   = "tokenAddress"
	FieldSalt           = "salt"
	FieldInvestor       = "investor"
	FieldAmount         = "amount"
	FieldTokenAmount    = "tokenAmount"
	FieldInvestmentID   = "investmentId"
	FieldIdempotencyKey = "idempotencyKey"
	FieldName           = "name"
	FieldSymbol         = "symbol"
)

// DeployFundTokenRequest describes a fund token deployment.
// Salt is the local fund id; the factory embeds it in the creation event so
// an orphaned deployment can be re-linked to its relational row.
type DeployFundTokenRequest struct {
	Name    string
	Symbol  string
	Target  decimal.Decimal
	Minimum decimal.Decimal
	Manager string
	Salt    string
}

// DeployResult is the outcome of a fund token deployment
type DeployResult struct {
	TokenAddress  string
	OnChainFundID string
	TxHash        string
}

// RecordInvestmentRequest describes an on-chain investment record.
// IdempotencyKey is the local investment id; the contract de-duplicates
// a retried call carrying the same key.
type RecordInvestmentRequest struct {
	OnChainFundID  string
	Investor       string
	Amount         decimal.Decimal
	TokenAmount    decimal.Decimal
	IdempotencyKey string
}

// RecordResult is the outcome of recording an investment
type RecordResult struct {
	OnChainInvestmentID string
	TxHash              string
}
