package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-settlement/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-settlement/pkg/errors"
	"github.com/angelmondragon/storefront-settlement/pkg/logger"
	"github.com/angelmondragon/storefront-settlement/pkg/outbox"
	"github.com/angelmondragon/storefront-settlement/pkg/outbox/payloads"
	"github.com/angelmondragon/storefront-settlement/pkg/security"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service drives the delivery lifecycle of orders.
type Service interface {
	AdvanceOrderStatus(ctx context.Context, input AdvanceStatusInput) (*payloads.OrderStatusChangedEvent, error)
	TrackOrder(ctx context.Context, token string) (*TrackedOrder, error)
}

type service struct {
	repo   Repository
	tx     txRunner
	outbox outboxPublisher
	logg   *logger.Logger
	now    func() time.Time
}

// NewService builds the order status service.
func NewService(repo Repository, tx txRunner, publisher outboxPublisher, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{
		repo:   repo,
		tx:     tx,
		outbox: publisher,
		logg:   logg,
		now:    func() time.Time { return time.Now().UTC() },
	}, nil
}

// AdvanceOrderStatus applies one transition from the order status table. The
// buyer notification is queued in the same transaction and delivered after
// commit, so a delivery failure never undoes the change.
func (s *service) AdvanceOrderStatus(ctx context.Context, input AdvanceStatusInput) (*payloads.OrderStatusChangedEvent, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.ActorUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if !input.Target.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown order status %q", input.Target))
	}

	var event *payloads.OrderStatusChangedEvent
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.Get(ctx, input.OrderID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
		}
		if !order.Status.CanTransitionTo(input.Target) {
			return invalidTransition(order.Status, input.Target)
		}

		now := s.now()
		changed, err := repo.TransitionStatus(ctx, order.ID, order.Status, input.Target, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update order status")
		}
		if !changed {
			return invalidTransition(order.Status, input.Target)
		}

		event = &payloads.OrderStatusChangedEvent{
			OrderID:         order.ID,
			OrderNumber:     order.OrderNumber,
			PreviousStatus:  order.Status,
			NewStatus:       input.Target,
			CustomerName:    order.CustomerName,
			CustomerEmail:   order.CustomerEmail,
			CustomerPhone:   order.CustomerPhone,
			ShippingAddress: order.ShippingAddress,
			ChangedAt:       now,
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderStatusChanged,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{UserID: input.ActorUserID, Role: input.ActorRole},
			Data:          event,
			OccurredAt:    now,
		})
	})
	if err != nil {
		return nil, err
	}

	if s.logg != nil {
		logCtx := s.logg.WithOrderID(ctx, input.OrderID.String())
		logCtx = s.logg.WithFields(logCtx, map[string]any{
			"previous_status": event.PreviousStatus,
			"new_status":      event.NewStatus,
		})
		s.logg.Info(logCtx, "order status advanced")
	}
	return event, nil
}

func (s *service) TrackOrder(ctx context.Context, token string) (*TrackedOrder, error) {
	hash, err := security.HashTrackingToken(token)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "tracking token required")
	}
	order, err := s.repo.GetByTrackingHash(ctx, hash)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
	}
	return newTrackedOrder(order), nil
}

func invalidTransition(from, to enums.OrderStatus) error {
	message := fmt.Sprintf("cannot move order from %s to %s", from, to)
	if from.IsTerminal() {
		message = fmt.Sprintf("order is already %s", from)
	}
	return pkgerrors.NewWithReason(pkgerrors.CodeStateConflict, pkgerrors.ReasonInvalidStateTransition, message,
		pkgerrors.ReasonDetails{Field: "status", Expected: to, Actual: from})
}
