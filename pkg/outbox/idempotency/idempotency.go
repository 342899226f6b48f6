// Package idempotency guards Pub/Sub consumers against redelivered outbox
// events. A consumer claims an event with a short lease, then either marks it
// done for the long TTL or releases it so redelivery can retry.
package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/angelmondragon/storefront-settlement/pkg/redis"
)

const (
	// DefaultLease bounds how long a crashed worker can hold an event.
	DefaultLease = 5 * time.Minute

	markerInFlight = "processing"
	markerDone     = "done"
)

// Claim is the outcome of trying to take an event.
type Claim int

const (
	// Acquired means the caller owns the event and must Complete or Release it.
	Acquired Claim = iota
	// Processed means an earlier delivery finished; ack without work.
	Processed
	// Busy means another delivery holds the lease; nack so it comes back.
	Busy
)

func (c Claim) String() string {
	switch c {
	case Acquired:
		return "acquired"
	case Processed:
		return "processed"
	case Busy:
		return "busy"
	}
	return fmt.Sprintf("claim(%d)", int(c))
}

// Store is the Redis surface the manager needs.
type Store interface {
	redis.IdempotencyStore
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
}

type Manager struct {
	store Store
	ttl   time.Duration
	lease time.Duration
}

// NewManager keeps done markers for ttl. A zero ttl keeps them forever.
func NewManager(store Store, ttl time.Duration) (*Manager, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	lease := DefaultLease
	if ttl > 0 && ttl < lease {
		lease = ttl
	}
	return &Manager{store: store, ttl: ttl, lease: lease}, nil
}

// Claim takes eventID for consumer unless it is done or leased elsewhere.
func (m *Manager) Claim(ctx context.Context, consumer string, eventID uuid.UUID) (Claim, error) {
	key, err := m.key(consumer, eventID)
	if err != nil {
		return Busy, err
	}
	ok, err := m.store.SetNX(ctx, key, markerInFlight, m.lease)
	if err != nil {
		return Busy, fmt.Errorf("claim %s: %w", key, err)
	}
	if ok {
		return Acquired, nil
	}
	marker, err := m.store.Get(ctx, key)
	switch {
	case errors.Is(err, goredis.Nil):
		// lease expired between SETNX and GET; let redelivery try again
		return Busy, nil
	case err != nil:
		return Busy, fmt.Errorf("read %s: %w", key, err)
	case marker == markerDone:
		return Processed, nil
	default:
		return Busy, nil
	}
}

// Complete records eventID as processed for the configured TTL.
func (m *Manager) Complete(ctx context.Context, consumer string, eventID uuid.UUID) error {
	key, err := m.key(consumer, eventID)
	if err != nil {
		return err
	}
	if err := m.store.Set(ctx, key, markerDone, m.ttl); err != nil {
		return fmt.Errorf("complete %s: %w", key, err)
	}
	return nil
}

// Release drops the claim so a redelivery can process the event.
func (m *Manager) Release(ctx context.Context, consumer string, eventID uuid.UUID) error {
	key, err := m.key(consumer, eventID)
	if err != nil {
		return err
	}
	return m.store.Del(ctx, key)
}

func (m *Manager) key(consumer string, eventID uuid.UUID) (string, error) {
	if consumer == "" {
		return "", errors.New("consumer name is required")
	}
	if eventID == uuid.Nil {
		return "", errors.New("event id is required")
	}
	return m.store.IdempotencyKey("evt:"+consumer, eventID.String()), nil
}
