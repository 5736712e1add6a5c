package consumers

import (
	"context"

	"meridian/internal/adapters/kafka"
	"meridian/internal/adapters/ledger"
	"meridian/internal/metrics"
	"meridian/pkg/logger"
)

// streamTopics maps each ledger subscription to its kafka topic
var streamTopics = map[string]string{
	ledger.StreamIdentity:   kafka.TopicLedgerIdentityEvents,
	ledger.StreamFund:       kafka.TopicLedgerFundEvents,
	ledger.StreamInvestment: kafka.TopicLedgerInvestmentEvents,
}

// LedgerStreamConsumer bridges one ledger websocket subscription onto a
// kafka topic. Events keep their delivery order within the stream; the
// downstream handlers are idempotent so cross-stream order is free.
type LedgerStreamConsumer struct {
	gateway  *ledger.Gateway
	producer *kafka.Producer
	stream   string
	topic    string
	log      *logger.Logger
}

// NewLedgerStreamConsumer creates a stream consumer for one subscription
func NewLedgerStreamConsumer(
	gateway *ledger.Gateway,
	producer *kafka.Producer,
	stream string,
	log *logger.Logger,
) *LedgerStreamConsumer {
	return &LedgerStreamConsumer{
		gateway:  gateway,
		producer: producer,
		stream:   stream,
		topic:    streamTopics[stream],
		log:      log.With("component", "ledger_stream_consumer", "stream", stream),
	}
}

// Start subscribes and forwards events until the context is cancelled.
// The subscription channel handles reconnects internally; a closed
// channel means the circuit opened or shutdown began.
func (c *LedgerStreamConsumer) Start(ctx context.Context) error {
	c.log.Info("Starting ledger stream consumer...")

	events, err := c.gateway.SubscribeEvents(ctx, c.stream)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			c.log.Info("Ledger stream consumer stopping (context cancelled)")
			return nil
		case event, ok := <-events:
			if !ok {
				c.log.Warn("Ledger event channel closed")
				return nil
			}
			// The stream name keys the message so one partition carries
			// the whole stream and delivery order survives kafka
			if err := c.producer.Publish(ctx, c.topic, c.stream, event); err != nil {
				c.log.Errorw("Failed to forward ledger event",
					"event", event.Name,
					"tx_hash", event.TxHash,
					"error", err,
				)
				metrics.EventsIngested.WithLabelValues(event.Name, "publish_failed").Inc()
				continue
			}
			metrics.EventsIngested.WithLabelValues(event.Name, "forwarded").Inc()
		}
	}
}
