// Package events publishes domain lifecycle events to kafka for
// downstream consumers. Publishing is best-effort: a failed publish is
// logged, never fails the workflow that produced it.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"meridian/internal/adapters/kafka"
	"meridian/pkg/logger"
)

// Publisher emits typed domain events
type Publisher struct {
	producer *kafka.Producer
	log      *logger.Logger
}

// NewPublisher creates a new event publisher
func NewPublisher(producer *kafka.Producer, log *logger.Logger) *Publisher {
	return &Publisher{
		producer: producer,
		log:      log.With("component", "event_publisher"),
	}
}

// FundActivatedEvent is emitted when a fund's token deployment completes
type FundActivatedEvent struct {
	FundID          uuid.UUID `json:"fund_id"`
	ContractAddress string    `json:"contract_address"`
	OnChainFundID   string    `json:"on_chain_fund_id"`
	TokenSymbol     string    `json:"token_symbol"`
	TxHash          string    `json:"tx_hash"`
	OccurredAt      time.Time `json:"occurred_at"`
}

// FundStatusChangedEvent is emitted on close/liquidate/delete transitions
type FundStatusChangedEvent struct {
	FundID     uuid.UUID `json:"fund_id"`
	From       string    `json:"from"`
	To         string    `json:"to"`
	OccurredAt time.Time `json:"occurred_at"`
}

// InvestmentEvent covers investment lifecycle transitions
type InvestmentEvent struct {
	InvestmentID uuid.UUID       `json:"investment_id"`
	FundID       uuid.UUID       `json:"fund_id"`
	InvestorID   uuid.UUID       `json:"investor_id"`
	Status       string          `json:"status"`
	Amount       decimal.Decimal `json:"amount"`
	TokensIssued decimal.Decimal `json:"tokens_issued,omitempty"`
	TxHash       string          `json:"tx_hash,omitempty"`
	OccurredAt   time.Time       `json:"occurred_at"`
}

// KYCStatusEvent is emitted on KYC adjudication and ledger sync
type KYCStatusEvent struct {
	RecordID     uuid.UUID `json:"record_id"`
	UserID       uuid.UUID `json:"user_id"`
	Status       string    `json:"status"`
	LedgerSynced bool      `json:"ledger_synced"`
	TxHash       string    `json:"tx_hash,omitempty"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// FundActivated publishes a fund activation event
func (p *Publisher) FundActivated(ctx context.Context, event FundActivatedEvent) {
	event.OccurredAt = time.Now().UTC()
	p.publish(ctx, kafka.TopicFundEvents, event.FundID.String(), event)
}

// FundStatusChanged publishes a fund status transition
func (p *Publisher) FundStatusChanged(ctx context.Context, event FundStatusChangedEvent) {
	event.OccurredAt = time.Now().UTC()
	p.publish(ctx, kafka.TopicFundEvents, event.FundID.String(), event)
}

// InvestmentChanged publishes an investment lifecycle event
func (p *Publisher) InvestmentChanged(ctx context.Context, event InvestmentEvent) {
	event.OccurredAt = time.Now().UTC()
	p.publish(ctx, kafka.TopicInvestmentEvents, event.InvestmentID.String(), event)
}

// KYCStatusChanged publishes a KYC status event
func (p *Publisher) KYCStatusChanged(ctx context.Context, event KYCStatusEvent) {
	event.OccurredAt = time.Now().UTC()
	p.publish(ctx, kafka.TopicKYCEvents, event.UserID.String(), event)
}

func (p *Publisher) publish(ctx context.Context, topic, key string, event interface{}) {
	if p.producer == nil {
		return
	}
	if err := p.producer.Publish(ctx, topic, key, event); err != nil {
		p.log.Warnw("Failed to publish event",
			"topic", topic,
			"key", key,
			"error", err,
		)
	}
}
