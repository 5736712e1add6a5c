package consumers

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"

	"meridian/internal/adapters/kafka"
	"meridian/internal/adapters/ledger"
	"meridian/internal/domain/fund"
	"meridian/internal/metrics"
	"meridian/pkg/errors"
	"meridian/pkg/logger"
)

// FundEventsConsumer repairs the deployment crash window: a
// FundTokenCreated event whose salt matches a local fund that never got
// its contract linkage re-links and activates that fund.
type FundEventsConsumer struct {
	consumer *kafka.Consumer
	funds    fund.Repository
	log      *logger.Logger
}

// NewFundEventsConsumer creates a new fund events consumer
func NewFundEventsConsumer(
	consumer *kafka.Consumer,
	funds fund.Repository,
	log *logger.Logger,
) *FundEventsConsumer {
	return &FundEventsConsumer{
		consumer: consumer,
		funds:    funds,
		log:      log.With("component", "fund_events_consumer"),
	}
}

// Start begins consuming fund events
func (c *FundEventsConsumer) Start(ctx context.Context) error {
	c.log.Info("Starting fund events consumer...")

	defer func() {
		if err := c.consumer.Close(); err != nil {
			c.log.Errorw("Failed to close fund events consumer", "error", err)
		}
	}()

	for {
		msg, err := c.consumer.ReadMessageWithShutdownCheck(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.log.Info("Fund events consumer stopping (context cancelled)")
				return nil
			}
			c.log.Debugw("Failed to read fund event", "error", err)
			continue
		}

		processCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := c.handleMessage(processCtx, msg); err != nil {
			c.log.Errorw("Failed to handle fund event",
				"topic", msg.Topic,
				"error", err,
			)
		}
		cancel()

		if ctx.Err() != nil {
			c.log.Info("Fund events consumer stopping after current message")
			return nil
		}
	}
}

func (c *FundEventsConsumer) handleMessage(ctx context.Context, msg kafkago.Message) error {
	var event ledger.Event
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		metrics.EventsIngested.WithLabelValues("unknown", "decode_failed").Inc()
		return errors.Wrap(err, "unmarshal fund event")
	}

	if event.Name != ledger.EventFundTokenCreated {
		c.log.Debugw("Unhandled fund event", "event", event.Name)
		return nil
	}

	if err := c.handleFundTokenCreated(ctx, event); err != nil {
		metrics.EventsIngested.WithLabelValues(event.Name, "failed").Inc()
		return err
	}
	metrics.EventsIngested.WithLabelValues(event.Name, "applied").Inc()
	return nil
}

func (c *FundEventsConsumer) handleFundTokenCreated(ctx context.Context, event ledger.Event) error {
	// The salt carries the local fund id the gateway embeds in every
	// deployment, it is the re-link key
	fundID, err := uuid.Parse(event.Field(ledger.FieldSalt))
	if err != nil {
		c.log.Debugw("Fund creation event without a local salt",
			"salt", event.Field(ledger.FieldSalt),
			"tx_hash", event.TxHash,
		)
		return nil
	}

	f, err := c.funds.GetByID(ctx, fundID)
	if errors.Is(err, errors.ErrNotFound) {
		c.log.Warnw("Fund creation event for unknown fund",
			"fund_id", fundID,
			"tx_hash", event.TxHash,
		)
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "load fund")
	}

	if f.Deployed() {
		// Activation workflow already persisted the linkage
		return nil
	}

	tokenAddress := event.Field(ledger.FieldTokenAddress)
	onChainFundID := event.Field(ledger.FieldFundID)
	if tokenAddress == "" || onChainFundID == "" {
		c.log.Warnw("Fund creation event missing linkage fields",
			"fund_id", fundID,
			"tx_hash", event.TxHash,
		)
		return nil
	}

	if err := c.funds.LinkContract(ctx, fundID, tokenAddress, onChainFundID); err != nil {
		return errors.Wrap(err, "re-link fund contract")
	}

	c.log.Infow("Re-linked orphaned fund deployment",
		"fund_id", fundID,
		"contract_address", tokenAddress,
		"on_chain_fund_id", onChainFundID,
		"tx_hash", event.TxHash,
	)
	return nil
}
