package consumers

import (
	"context"
	"encoding/json"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"meridian/internal/adapters/clickhouse"
	"meridian/internal/adapters/kafka"
	"meridian/internal/adapters/ledger"
	"meridian/internal/metrics"
	"meridian/pkg/errors"
	"meridian/pkg/logger"
)

const auditInsertQuery = `
	INSERT INTO ledger_events_audit
		(event_name, stream, fields, block_number, tx_hash, received_at)
	VALUES (?, ?, ?, ?, ?, ?)`

// AuditConsumer appends every raw ledger event to the ClickHouse audit
// table. The audit trail is append-only and independent of whether any
// other consumer could apply the event.
type AuditConsumer struct {
	consumer *kafka.Consumer
	ch       *clickhouse.Client
	log      *logger.Logger
}

// NewAuditConsumer creates a new audit consumer. It reads all ledger
// topics through one group subscription.
func NewAuditConsumer(
	consumer *kafka.Consumer,
	ch *clickhouse.Client,
	log *logger.Logger,
) *AuditConsumer {
	return &AuditConsumer{
		consumer: consumer,
		ch:       ch,
		log:      log.With("component", "audit_consumer"),
	}
}

// Start begins consuming ledger events for audit
func (c *AuditConsumer) Start(ctx context.Context) error {
	c.log.Info("Starting audit consumer...")

	defer func() {
		if err := c.consumer.Close(); err != nil {
			c.log.Errorw("Failed to close audit consumer", "error", err)
		}
	}()

	for {
		msg, err := c.consumer.ReadMessageWithShutdownCheck(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.log.Info("Audit consumer stopping (context cancelled)")
				return nil
			}
			c.log.Debugw("Failed to read ledger event", "error", err)
			continue
		}

		processCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := c.handleMessage(processCtx, msg); err != nil {
			c.log.Errorw("Failed to audit ledger event",
				"topic", msg.Topic,
				"error", err,
			)
		}
		cancel()

		if ctx.Err() != nil {
			c.log.Info("Audit consumer stopping after current message")
			return nil
		}
	}
}

func (c *AuditConsumer) handleMessage(ctx context.Context, msg kafkago.Message) error {
	var event ledger.Event
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return errors.Wrap(err, "unmarshal ledger event")
	}

	fields, err := json.Marshal(event.Fields)
	if err != nil {
		return errors.Wrap(err, "marshal event fields")
	}

	err = c.ch.Exec(ctx, auditInsertQuery,
		event.Name,
		string(msg.Key),
		string(fields),
		event.BlockNumber,
		event.TxHash,
		time.Now().UTC(),
	)
	if err != nil {
		return errors.Wrap(err, "insert audit row")
	}

	metrics.EventsIngested.WithLabelValues(event.Name, "audited").Inc()
	return nil
}
