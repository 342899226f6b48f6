// Package registry maps outbox event types to their aggregate, topic and
// payload schema, and decodes envelopes on both the publish and consume side.
package registry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-settlement/pkg/config"
	"github.com/angelmondragon/storefront-settlement/pkg/db/models"
	"github.com/angelmondragon/storefront-settlement/pkg/enums"
	"github.com/angelmondragon/storefront-settlement/pkg/outbox"
	"github.com/angelmondragon/storefront-settlement/pkg/outbox/payloads"
)

// currentVersion is the newest envelope version this build understands.
const currentVersion = 1

type EventDescriptor struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	Topic         string
	MaxVersion    int

	newPayload func() any
}

// ResolvedEvent is an envelope whose data has been decoded into the
// payload type registered for its event.
type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    any
}

// NonRetryableError marks an event that will fail the same way on every
// attempt. Publishers park it; consumers ack it.
type NonRetryableError struct {
	Err error
}

func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

func (e NonRetryableError) Unwrap() error { return e.Err }

func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}

func IsNonRetryable(err error) bool {
	var target NonRetryableError
	return errors.As(err, &target)
}

func fatalf(format string, args ...any) error {
	return NewNonRetryableError(fmt.Errorf(format, args...))
}

type EventRegistry struct {
	entries map[enums.OutboxEventType]EventDescriptor
}

func describe[T any](eventType enums.OutboxEventType, aggregate enums.OutboxAggregateType, topic string) EventDescriptor {
	return EventDescriptor{
		EventType:     eventType,
		AggregateType: aggregate,
		Topic:         topic,
		MaxVersion:    currentVersion,
		newPayload:    func() any { return new(T) },
	}
}

// NewEventRegistry routes every settlement event to the settlement topic.
// Consumers fan out through their own subscriptions.
func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	topic := cfg.SettlementTopic
	if topic == "" {
		return nil, fmt.Errorf("settlement topic is required")
	}
	reg := &EventRegistry{entries: map[enums.OutboxEventType]EventDescriptor{}}
	for _, desc := range []EventDescriptor{
		describe[payloads.OrderCreatedEvent](enums.EventOrderCreated, enums.AggregateOrder, topic),
		describe[payloads.OrderStatusChangedEvent](enums.EventOrderStatusChanged, enums.AggregateOrder, topic),
		describe[payloads.PayoutPaidEvent](enums.EventPayoutPaid, enums.AggregateCommissionTransaction, topic),
		describe[payloads.PayoutRejectedEvent](enums.EventPayoutRejected, enums.AggregateCommissionTransaction, topic),
		describe[payloads.CommissionBackfilledEvent](enums.EventCommissionBackfill, enums.AggregateCommissionTransaction, topic),
	} {
		reg.entries[desc.EventType] = desc
	}
	return reg, nil
}

func (r *EventRegistry) lookup(eventType enums.OutboxEventType) (EventDescriptor, error) {
	desc, ok := r.entries[eventType]
	if !ok {
		return EventDescriptor{}, fatalf("unsupported event type %s", eventType)
	}
	return desc, nil
}

// Resolve checks an outbox row against its descriptor before publishing.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	desc, err := r.lookup(event.EventType)
	if err != nil {
		return nil, err
	}
	switch {
	case desc.AggregateType != event.AggregateType:
		return nil, fatalf("aggregate mismatch: expected %s got %s", desc.AggregateType, event.AggregateType)
	case event.AggregateID == uuid.Nil:
		return nil, fatalf("missing aggregate_id")
	}
	resolved, err := decode(desc, event.Payload)
	if err != nil {
		return nil, err
	}
	if resolved.Envelope.EventID != event.ID.String() {
		return nil, fatalf("envelope event id %q does not match row %s", resolved.Envelope.EventID, event.ID)
	}
	return resolved, nil
}

// Decode parses a published message body. Consumers call it on Pub/Sub
// message data with the event_type attribute.
func (r *EventRegistry) Decode(eventType enums.OutboxEventType, data []byte) (*ResolvedEvent, error) {
	desc, err := r.lookup(eventType)
	if err != nil {
		return nil, err
	}
	return decode(desc, data)
}

func decode(desc EventDescriptor, data []byte) (*ResolvedEvent, error) {
	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fatalf("decode envelope: %w", err)
	}
	if envelope.Version < 1 || envelope.Version > desc.MaxVersion {
		return nil, fatalf("%s envelope version %d not supported", desc.EventType, envelope.Version)
	}
	if _, err := uuid.Parse(envelope.EventID); err != nil {
		return nil, fatalf("envelope event id: %w", err)
	}
	trimmed := bytes.TrimSpace(envelope.Data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, fatalf("payload missing for %s", desc.EventType)
	}
	payload := desc.newPayload()
	if err := json.Unmarshal(trimmed, payload); err != nil {
		return nil, fatalf("decode %s payload: %w", desc.EventType, err)
	}
	return &ResolvedEvent{Descriptor: desc, Envelope: envelope, Payload: payload}, nil
}
