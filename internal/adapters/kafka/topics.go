package kafka

// Topic definitions for event streaming.
//
// Ledger topics carry raw chain events bridged from the websocket
// subscription; keys are chosen so records of the same entity land on the
// same partition and preserve per-entity order. Domain topics carry
// notifications emitted after local state transitions commit.
const (
	// Raw ledger events, one topic per subscription
	TopicLedgerIdentityEvents   = "ledger.identity.events"
	TopicLedgerFundEvents       = "ledger.fund.events"
	TopicLedgerInvestmentEvents = "ledger.investment.events"

	// Domain notifications
	TopicFundEvents       = "funds.lifecycle"
	TopicInvestmentEvents = "investments.lifecycle"
	TopicKYCEvents        = "kyc.status"
)
