package notifications

import (
	"context"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-settlement/pkg/enums"
	"github.com/angelmondragon/storefront-settlement/pkg/logger"
	"github.com/angelmondragon/storefront-settlement/pkg/outbox/idempotency"
	"github.com/angelmondragon/storefront-settlement/pkg/outbox/payloads"
	"github.com/angelmondragon/storefront-settlement/pkg/outbox/registry"
)

const consumerName = "order-notifications"

type idempotencyGuard interface {
	Claim(ctx context.Context, consumer string, eventID uuid.UUID) (idempotency.Claim, error)
	Complete(ctx context.Context, consumer string, eventID uuid.UUID) error
	Release(ctx context.Context, consumer string, eventID uuid.UUID) error
}

type eventDecoder interface {
	Decode(eventType enums.OutboxEventType, data []byte) (*registry.ResolvedEvent, error)
}

// FormatFunc renders a minor-unit amount in a currency.
type FormatFunc func(amountMinor int64, currency string) string

// ConsumerParams wires the notification consumer.
type ConsumerParams struct {
	Subscription *pubsub.Subscriber
	Events       eventDecoder
	Idempotency  idempotencyGuard
	Dispatcher   Dispatcher
	AdminEmails  []string
	Format       FormatFunc
	Logger       *logger.Logger
}

// Consumer turns order events into buyer and admin notifications. Delivery is
// best effort: a failed dispatch nacks the message for redelivery and never
// touches the order.
type Consumer struct {
	subscription *pubsub.Subscriber
	events       eventDecoder
	idempotency  idempotencyGuard
	dispatcher   Dispatcher
	adminEmails  []string
	format       FormatFunc
	logg         *logger.Logger
}

// NewConsumer builds an order notification consumer.
func NewConsumer(params ConsumerParams) (*Consumer, error) {
	if params.Subscription == nil {
		return nil, fmt.Errorf("notification subscription required")
	}
	if params.Events == nil {
		return nil, fmt.Errorf("event decoder required")
	}
	if params.Idempotency == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if params.Dispatcher == nil {
		return nil, fmt.Errorf("dispatcher required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		subscription: params.Subscription,
		events:       params.Events,
		idempotency:  params.Idempotency,
		dispatcher:   params.Dispatcher,
		adminEmails:  params.AdminEmails,
		format:       params.Format,
		logg:         params.Logger,
	}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if c.process(ctx, msg.ID, msg.Attributes["event_type"], msg.Data).nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	nack bool
}

func (c *Consumer) process(ctx context.Context, messageID, eventType string, data []byte) processResult {
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": messageID,
		"event_type": eventType,
	})

	switch enums.OutboxEventType(eventType) {
	case enums.EventOrderCreated, enums.EventOrderStatusChanged:
	default:
		return processResult{}
	}

	// Undecodable messages are acked: redelivery cannot fix them.
	resolved, err := c.events.Decode(enums.OutboxEventType(eventType), data)
	if err != nil {
		c.logg.Error(logCtx, "failed to decode event", err)
		return processResult{}
	}
	eventID := uuid.MustParse(resolved.Envelope.EventID)
	logCtx = c.logg.WithEventID(logCtx, eventID.String())

	// Audiences are claimed separately; a redelivery only retries unsent messages.
	for _, msg := range c.render(resolved.Payload) {
		msgCtx := c.logg.WithFields(logCtx, map[string]any{
			"audience":     string(msg.Audience),
			"order_number": msg.OrderNumber,
		})
		if nack := c.deliver(msgCtx, eventID, msg); nack {
			return processResult{nack: true}
		}
	}
	return processResult{}
}

func audienceKey(audience enums.NotificationAudience) string {
	return consumerName + ":" + string(audience)
}

func (c *Consumer) deliver(ctx context.Context, eventID uuid.UUID, msg Message) (nack bool) {
	key := audienceKey(msg.Audience)
	claim, err := c.idempotency.Claim(ctx, key, eventID)
	if err != nil {
		c.logg.Error(ctx, "idempotency claim failed", err)
		return true
	}
	switch claim {
	case idempotency.Processed:
		c.logg.Info(ctx, "notification already sent")
		return false
	case idempotency.Busy:
		c.logg.Warn(ctx, "notification in flight elsewhere")
		return true
	}

	if err := c.dispatcher.Dispatch(ctx, msg); err != nil {
		c.logg.Error(ctx, "notification dispatch failed", err)
		if err := c.idempotency.Release(ctx, key, eventID); err != nil {
			c.logg.Error(ctx, "failed to release idempotency claim", err)
		}
		return true
	}
	c.logg.Info(ctx, "notification sent")
	if err := c.idempotency.Complete(ctx, key, eventID); err != nil {
		c.logg.Warn(ctx, "failed to record processed marker: "+err.Error())
	}
	return false
}

func (c *Consumer) render(payload any) []Message {
	switch p := payload.(type) {
	case *payloads.OrderCreatedEvent:
		return OrderCreatedMessages(*p, c.adminEmails, c.format)
	case *payloads.OrderStatusChangedEvent:
		if msg, ok := StatusChangedMessage(*p); ok {
			return []Message{msg}
		}
	}
	return nil
}
