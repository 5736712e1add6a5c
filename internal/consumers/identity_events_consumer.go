package consumers

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"

	"meridian/internal/adapters/kafka"
	"meridian/internal/adapters/ledger"
	"meridian/internal/domain/identity"
	"meridian/internal/domain/user"
	"meridian/internal/metrics"
	"meridian/pkg/errors"
	"meridian/pkg/logger"
)

// IdentityEventsConsumer folds on-chain identity events into KYC records.
// ClaimAdded is the authoritative repair path: a verification the ledger
// holds becomes an approved record locally even when the workflow that
// requested it crashed before persisting.
type IdentityEventsConsumer struct {
	consumer *kafka.Consumer
	users    user.Repository
	records  identity.Repository
	log      *logger.Logger
}

// NewIdentityEventsConsumer creates a new identity events consumer
func NewIdentityEventsConsumer(
	consumer *kafka.Consumer,
	users user.Repository,
	records identity.Repository,
	log *logger.Logger,
) *IdentityEventsConsumer {
	return &IdentityEventsConsumer{
		consumer: consumer,
		users:    users,
		records:  records,
		log:      log.With("component", "identity_events_consumer"),
	}
}

// Start begins consuming identity events
func (c *IdentityEventsConsumer) Start(ctx context.Context) error {
	c.log.Info("Starting identity events consumer...")

	defer func() {
		if err := c.consumer.Close(); err != nil {
			c.log.Errorw("Failed to close identity events consumer", "error", err)
		}
	}()

	for {
		msg, err := c.consumer.ReadMessageWithShutdownCheck(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.log.Info("Identity events consumer stopping (context cancelled)")
				return nil
			}
			c.log.Debugw("Failed to read identity event", "error", err)
			continue
		}

		processCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := c.handleMessage(processCtx, msg); err != nil {
			// Poisoned events are logged and skipped, the subscription
			// never halts
			c.log.Errorw("Failed to handle identity event",
				"topic", msg.Topic,
				"error", err,
			)
		}
		cancel()

		if ctx.Err() != nil {
			c.log.Info("Identity events consumer stopping after current message")
			return nil
		}
	}
}

func (c *IdentityEventsConsumer) handleMessage(ctx context.Context, msg kafkago.Message) error {
	var event ledger.Event
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		metrics.EventsIngested.WithLabelValues("unknown", "decode_failed").Inc()
		return errors.Wrap(err, "unmarshal identity event")
	}

	var err error
	switch event.Name {
	case ledger.EventIdentityRegistered:
		err = c.handleIdentityRegistered(ctx, event)
	case ledger.EventClaimAdded:
		err = c.handleClaimAdded(ctx, event)
	case ledger.EventClaimRemoved:
		err = c.handleClaimRemoved(ctx, event)
	default:
		c.log.Debugw("Unhandled identity event", "event", event.Name)
		return nil
	}
	if err != nil {
		metrics.EventsIngested.WithLabelValues(event.Name, "failed").Inc()
		return err
	}
	metrics.EventsIngested.WithLabelValues(event.Name, "applied").Inc()
	return nil
}

// handleIdentityRegistered refreshes the sync marker on the wallet
// owner's KYC record. Registration alone never approves.
func (c *IdentityEventsConsumer) handleIdentityRegistered(ctx context.Context, event ledger.Event) error {
	u, rec, err := c.resolve(ctx, event.Field(ledger.FieldWallet))
	if err != nil || u == nil {
		return err
	}

	if rec == nil {
		rec = newPendingRecord(u.ID)
		rec.OnChainTxHash = event.TxHash
		if err := c.records.Create(ctx, rec); err != nil && !errors.Is(err, errors.ErrAlreadyExists) {
			return errors.Wrap(err, "create kyc record")
		}
		c.log.Infow("Created KYC record from on-chain registration",
			"user_id", u.ID,
			"tx_hash", event.TxHash,
		)
		return nil
	}

	rec.OnChainTxHash = event.TxHash
	if err := c.records.Update(ctx, rec); err != nil {
		return errors.Wrap(err, "refresh kyc sync marker")
	}
	return nil
}

// handleClaimAdded promotes the record to approved when the ledger
// asserts the KYC claim
func (c *IdentityEventsConsumer) handleClaimAdded(ctx context.Context, event ledger.Event) error {
	if !isKYCTopic(event.Field(ledger.FieldTopic)) {
		return nil
	}

	u, rec, err := c.resolve(ctx, event.Field(ledger.FieldWallet))
	if err != nil || u == nil {
		return err
	}

	now := time.Now().UTC()
	if rec == nil {
		rec = newPendingRecord(u.ID)
		rec.Status = identity.StatusApproved
		rec.ReviewedAt = &now
		rec.MarkSynced(event.TxHash, now)
		if err := c.records.Create(ctx, rec); err != nil && !errors.Is(err, errors.ErrAlreadyExists) {
			return errors.Wrap(err, "create approved kyc record")
		}
		c.log.Infow("Created approved KYC record from on-chain claim",
			"user_id", u.ID,
			"tx_hash", event.TxHash,
		)
		return nil
	}

	if rec.Status == identity.StatusApproved && rec.LedgerSynced() {
		return nil
	}

	rec.Status = identity.StatusApproved
	rec.ReviewedAt = &now
	rec.MarkSynced(event.TxHash, now)
	if err := c.records.Update(ctx, rec); err != nil {
		return errors.Wrap(err, "promote kyc record")
	}

	c.log.Infow("Promoted KYC record from on-chain claim",
		"user_id", u.ID,
		"record_id", rec.ID,
		"tx_hash", event.TxHash,
	)
	return nil
}

// handleClaimRemoved demotes an approved record when the ledger revokes
// the KYC claim
func (c *IdentityEventsConsumer) handleClaimRemoved(ctx context.Context, event ledger.Event) error {
	if !isKYCTopic(event.Field(ledger.FieldTopic)) {
		return nil
	}

	u, rec, err := c.resolve(ctx, event.Field(ledger.FieldWallet))
	if err != nil || u == nil || rec == nil {
		return err
	}

	if err := rec.Revoke("verification claim removed on ledger"); err != nil {
		// Not approved locally, nothing to demote
		return nil
	}
	if err := c.records.Update(ctx, rec); err != nil {
		return errors.Wrap(err, "demote kyc record")
	}

	c.log.Warnw("Revoked KYC approval from on-chain claim removal",
		"user_id", u.ID,
		"record_id", rec.ID,
		"tx_hash", event.TxHash,
	)
	return nil
}

// resolve finds the wallet owner and their record. A wallet without a
// local user is not an error, the event is simply not ours.
func (c *IdentityEventsConsumer) resolve(ctx context.Context, wallet string) (*user.User, *identity.KYCRecord, error) {
	if wallet == "" {
		return nil, nil, nil
	}

	u, err := c.users.GetByWallet(ctx, wallet)
	if errors.Is(err, errors.ErrNotFound) {
		c.log.Debugw("Identity event for unknown wallet", "wallet", wallet)
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, errors.Wrap(err, "find user by wallet")
	}

	rec, err := c.records.GetByUserID(ctx, u.ID)
	if errors.Is(err, errors.ErrNotFound) {
		return u, nil, nil
	}
	if err != nil {
		return nil, nil, errors.Wrap(err, "load kyc record")
	}
	return u, rec, nil
}

func newPendingRecord(userID uuid.UUID) *identity.KYCRecord {
	now := time.Now().UTC()
	return &identity.KYCRecord{
		ID:        uuid.New(),
		UserID:    userID,
		Status:    identity.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func isKYCTopic(topic string) bool {
	n, err := strconv.Atoi(topic)
	return err == nil && n == ledger.ClaimTopicKYC
}
