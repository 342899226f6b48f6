package outbox

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-settlement/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-settlement/pkg/errors"
	"github.com/angelmondragon/storefront-settlement/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// DeadLetters lets operators inspect parked events and send them back
// through the publisher once the cause is fixed.
type DeadLetters struct {
	tx     txRunner
	events *Repository
	dlq    *DLQRepository
	logg   *logger.Logger
}

func NewDeadLetters(tx txRunner, events *Repository, dlq *DLQRepository, logg *logger.Logger) *DeadLetters {
	return &DeadLetters{tx: tx, events: events, dlq: dlq, logg: logg}
}

func (d *DeadLetters) List(ctx context.Context, filter DLQFilter, limit int) ([]models.OutboxDLQ, error) {
	rows, err := d.dlq.List(ctx, filter, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list dead letters")
	}
	return rows, nil
}

// Replay requeues eventID and removes its dead letter in one transaction.
// An outbox row that no longer exists is restored from the dead letter copy
// under the same id, so consumers still deduplicate it.
func (d *DeadLetters) Replay(ctx context.Context, eventID uuid.UUID) (*models.OutboxDLQ, error) {
	var replayed *models.OutboxDLQ
	err := d.tx.WithTx(ctx, func(tx *gorm.DB) error {
		entry, err := d.dlq.GetTx(tx, eventID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load dead letter")
		}
		if entry == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "dead letter not found")
		}

		found, err := d.events.RequeueTx(tx, eventID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "requeue outbox event")
		}
		if !found {
			restored := models.OutboxEvent{
				ID:            entry.EventID,
				EventType:     entry.EventType,
				AggregateType: entry.AggregateType,
				AggregateID:   entry.AggregateID,
				Payload:       entry.Payload,
			}
			if err := d.events.Insert(tx, restored); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "restore outbox event")
			}
		}
		if err := d.dlq.DeleteTx(tx, eventID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete dead letter")
		}
		replayed = entry
		return nil
	})
	if err != nil {
		return nil, err
	}
	d.logg.Info(d.logg.WithFields(ctx, map[string]any{
		logger.FieldEventID: eventID.String(),
		"event_type":        string(replayed.EventType),
		"error_reason":      string(replayed.ErrorReason),
	}), "dead letter requeued")
	return replayed, nil
}

