// Package analytics streams settlement events into BigQuery for reporting.
package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-settlement/pkg/bigquery"
	"github.com/angelmondragon/storefront-settlement/pkg/enums"
	"github.com/angelmondragon/storefront-settlement/pkg/logger"
	"github.com/angelmondragon/storefront-settlement/pkg/outbox"
	"github.com/angelmondragon/storefront-settlement/pkg/outbox/idempotency"
)

const consumerName = "settlement-analytics"

type tableInserter interface {
	InsertRows(ctx context.Context, table string, rows []bigquery.Row) error
}

type idempotencyChecker interface {
	Claim(ctx context.Context, consumer string, eventID uuid.UUID) (idempotency.Claim, error)
	Complete(ctx context.Context, consumer string, eventID uuid.UUID) error
	Release(ctx context.Context, consumer string, eventID uuid.UUID) error
}

// errEventBusy asks for redelivery while another worker holds the event.
var errEventBusy = errors.New("event claimed by another delivery")

// Consumer writes settlement events to BigQuery while honoring Redis idempotency.
type Consumer struct {
	client       tableInserter
	table        string
	manager      idempotencyChecker
	subscription *gcppubsub.Subscriber
	logg         *logger.Logger
}

// NewConsumer builds a settlement analytics consumer. subscription may be nil
// when the caller drives Process directly.
func NewConsumer(client tableInserter, table string, manager idempotencyChecker, subscription *gcppubsub.Subscriber, logg *logger.Logger) (*Consumer, error) {
	if client == nil {
		return nil, fmt.Errorf("bigquery client required")
	}
	if strings.TrimSpace(table) == "" {
		return nil, fmt.Errorf("bigquery table name required")
	}
	if manager == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		client:       client,
		table:        strings.TrimSpace(table),
		manager:      manager,
		subscription: subscription,
		logg:         logg,
	}, nil
}

// Run consumes the analytics subscription until ctx is canceled. Failed
// inserts are nacked for redelivery.
func (c *Consumer) Run(ctx context.Context) error {
	if c.subscription == nil {
		return fmt.Errorf("analytics subscription required")
	}
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *gcppubsub.Message) {
		var envelope outbox.PayloadEnvelope
		if err := json.Unmarshal(msg.Data, &envelope); err != nil {
			c.logg.Error(c.logg.WithField(ctx, "message_id", msg.ID), "failed to decode envelope", err)
			msg.Ack()
			return
		}
		eventType := enums.OutboxEventType(msg.Attributes["event_type"])
		if err := c.Process(ctx, eventType, envelope); err != nil {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

// Process ingests the outbox envelope into BigQuery if the event is a
// settlement event.
func (c *Consumer) Process(ctx context.Context, eventType enums.OutboxEventType, envelope outbox.PayloadEnvelope) error {
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"event_id":   envelope.EventID,
		"event_type": string(eventType),
	})

	if !eventType.IsValid() {
		c.logg.Debug(logCtx, "event not handled by analytics consumer")
		return nil
	}

	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		return fmt.Errorf("parse event id: %w", err)
	}

	claim, err := c.manager.Claim(ctx, consumerName, eventID)
	if err != nil {
		return fmt.Errorf("idempotency claim: %w", err)
	}
	switch claim {
	case idempotency.Processed:
		c.logg.Info(logCtx, "event already processed")
		return nil
	case idempotency.Busy:
		c.logg.Warn(logCtx, "event in flight elsewhere")
		return errEventBusy
	}

	row, err := buildRow(eventType, envelope)
	if err != nil {
		c.logg.Error(logCtx, "failed to build settlement row", err)
		c.release(logCtx, eventID)
		return err
	}

	if err := c.client.InsertRows(ctx, c.table, []bigquery.Row{{InsertID: envelope.EventID, Value: row}}); err != nil {
		c.logg.Error(logCtx, "failed to insert settlement row", err)
		c.release(logCtx, eventID)
		return err
	}

	// The row is in; a lost marker only costs a deduplicated reinsert.
	if err := c.manager.Complete(ctx, consumerName, eventID); err != nil {
		c.logg.Warn(logCtx, "failed to record processed marker: "+err.Error())
	}
	c.logg.Info(logCtx, "settlement event ingested")
	return nil
}

func (c *Consumer) release(ctx context.Context, eventID uuid.UUID) {
	if err := c.manager.Release(ctx, consumerName, eventID); err != nil {
		c.logg.Error(ctx, "failed to release idempotency claim", err)
	}
}
