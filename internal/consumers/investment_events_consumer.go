package consumers

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"

	"meridian/internal/adapters/kafka"
	"meridian/internal/adapters/ledger"
	"meridian/internal/domain/fund"
	"meridian/internal/domain/investment"
	"meridian/internal/metrics"
	redisrepo "meridian/internal/repository/redis"
	"meridian/pkg/errors"
	"meridian/pkg/logger"
)

// InvestmentEventsConsumer folds on-chain investment events back into
// local rows, repairing the window between a ledger write and its local
// persistence. Rows are matched by the idempotency key, which is the
// local investment id.
type InvestmentEventsConsumer struct {
	consumer    *kafka.Consumer
	investments investment.Repository
	funds       fund.Repository
	balances    *redisrepo.BalanceCache
	log         *logger.Logger
}

// NewInvestmentEventsConsumer creates a new investment events consumer
func NewInvestmentEventsConsumer(
	consumer *kafka.Consumer,
	investments investment.Repository,
	funds fund.Repository,
	balances *redisrepo.BalanceCache,
	log *logger.Logger,
) *InvestmentEventsConsumer {
	return &InvestmentEventsConsumer{
		consumer:    consumer,
		investments: investments,
		funds:       funds,
		balances:    balances,
		log:         log.With("component", "investment_events_consumer"),
	}
}

// Start begins consuming investment events
func (c *InvestmentEventsConsumer) Start(ctx context.Context) error {
	c.log.Info("Starting investment events consumer...")

	defer func() {
		if err := c.consumer.Close(); err != nil {
			c.log.Errorw("Failed to close investment events consumer", "error", err)
		}
	}()

	for {
		msg, err := c.consumer.ReadMessageWithShutdownCheck(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.log.Info("Investment events consumer stopping (context cancelled)")
				return nil
			}
			c.log.Debugw("Failed to read investment event", "error", err)
			continue
		}

		processCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := c.handleMessage(processCtx, msg); err != nil {
			c.log.Errorw("Failed to handle investment event",
				"topic", msg.Topic,
				"error", err,
			)
		}
		cancel()

		if ctx.Err() != nil {
			c.log.Info("Investment events consumer stopping after current message")
			return nil
		}
	}
}

func (c *InvestmentEventsConsumer) handleMessage(ctx context.Context, msg kafkago.Message) error {
	var event ledger.Event
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		metrics.EventsIngested.WithLabelValues("unknown", "decode_failed").Inc()
		return errors.Wrap(err, "unmarshal investment event")
	}

	var err error
	switch event.Name {
	case ledger.EventInvestmentRecorded:
		err = c.handleRecorded(ctx, event)
	case ledger.EventInvestmentConfirmed:
		err = c.handleConfirmed(ctx, event)
	case ledger.EventInvestmentCancelled:
		err = c.handleCancelled(ctx, event)
	case ledger.EventTokensMinted:
		err = c.handleMinted(ctx, event)
	default:
		c.log.Debugw("Unhandled investment event", "event", event.Name)
		return nil
	}
	if err != nil {
		metrics.EventsIngested.WithLabelValues(event.Name, "failed").Inc()
		return err
	}
	metrics.EventsIngested.WithLabelValues(event.Name, "applied").Inc()
	return nil
}

// handleRecorded fills the on-chain linkage on the local row
func (c *InvestmentEventsConsumer) handleRecorded(ctx context.Context, event ledger.Event) error {
	inv, err := c.byIdempotencyKey(ctx, event)
	if err != nil || inv == nil {
		return err
	}

	if inv.OnChainID != "" {
		return nil
	}

	onChainID := event.Field(ledger.FieldInvestmentID)
	if onChainID == "" {
		return nil
	}
	if err := c.investments.LinkOnChain(ctx, inv.ID, onChainID, event.TxHash); err != nil {
		return errors.Wrap(err, "re-link investment")
	}

	c.log.Infow("Re-linked on-chain investment record",
		"investment_id", inv.ID,
		"on_chain_id", onChainID,
		"tx_hash", event.TxHash,
	)
	return nil
}

// handleConfirmed repairs a confirmation whose local write was lost
func (c *InvestmentEventsConsumer) handleConfirmed(ctx context.Context, event ledger.Event) error {
	inv, err := c.byIdempotencyKey(ctx, event)
	if err != nil || inv == nil {
		return err
	}

	if inv.Status != investment.StatusPending {
		return nil
	}

	tokenAmount, err := decimal.NewFromString(event.Field(ledger.FieldTokenAmount))
	if err != nil || !tokenAmount.IsPositive() {
		// Issuance amount unknown, fall back to the 1:1 rule
		tokenAmount = inv.Amount
	}

	onChainID := event.Field(ledger.FieldInvestmentID)
	if onChainID == "" {
		onChainID = inv.OnChainID
	}

	if err := c.investments.Confirm(ctx, inv.ID, tokenAmount, onChainID, event.TxHash); err != nil {
		if errors.Is(err, errors.ErrInvalidState) {
			return nil
		}
		return errors.Wrap(err, "apply on-chain confirmation")
	}

	c.log.Infow("Applied on-chain investment confirmation",
		"investment_id", inv.ID,
		"tokens_issued", tokenAmount,
		"tx_hash", event.TxHash,
	)
	return nil
}

// handleCancelled applies a ledger-side cancellation, releasing the
// fund capacity the pending row reserved
func (c *InvestmentEventsConsumer) handleCancelled(ctx context.Context, event ledger.Event) error {
	inv, err := c.byIdempotencyKey(ctx, event)
	if err != nil || inv == nil {
		return err
	}

	if inv.Status != investment.StatusPending {
		return nil
	}

	if err := c.investments.Cancel(ctx, inv.ID); err != nil {
		if errors.Is(err, errors.ErrInvalidState) {
			return nil
		}
		return errors.Wrap(err, "apply on-chain cancellation")
	}

	if err := c.funds.AddRaised(ctx, inv.FundID, inv.Amount.Neg()); err != nil {
		c.log.Errorw("Applied cancellation but failed to roll back raised amount",
			"investment_id", inv.ID,
			"fund_id", inv.FundID,
			"error", err,
		)
	}

	c.log.Infow("Applied on-chain investment cancellation",
		"investment_id", inv.ID,
		"tx_hash", event.TxHash,
	)
	return nil
}

// handleMinted drops the minted wallet's cached balance
func (c *InvestmentEventsConsumer) handleMinted(ctx context.Context, event ledger.Event) error {
	wallet := event.Field(ledger.FieldWallet)
	token := event.Field(ledger.FieldTokenAddress)
	if wallet == "" || c.balances == nil {
		return nil
	}
	if err := c.balances.Invalidate(ctx, token, wallet); err != nil {
		c.log.Debugw("Failed to invalidate balance cache",
			"wallet", wallet,
			"error", err,
		)
	}
	return nil
}

// byIdempotencyKey resolves the local row from the event's idempotency
// key. Events without a parseable key are not ours.
func (c *InvestmentEventsConsumer) byIdempotencyKey(ctx context.Context, event ledger.Event) (*investment.Investment, error) {
	id, err := uuid.Parse(event.Field(ledger.FieldIdempotencyKey))
	if err != nil {
		c.log.Debugw("Investment event without a local idempotency key",
			"event", event.Name,
			"tx_hash", event.TxHash,
		)
		return nil, nil
	}

	inv, err := c.investments.GetByID(ctx, id)
	if errors.Is(err, errors.ErrNotFound) {
		c.log.Warnw("Investment event for unknown investment",
			"investment_id", id,
			"event", event.Name,
		)
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "load investment")
	}
	return inv, nil
}
