package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-settlement/api/responses"
	"github.com/angelmondragon/storefront-settlement/api/validators"
	"github.com/angelmondragon/storefront-settlement/pkg/db/models"
	"github.com/angelmondragon/storefront-settlement/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-settlement/pkg/errors"
	"github.com/angelmondragon/storefront-settlement/pkg/logger"
	"github.com/angelmondragon/storefront-settlement/pkg/outbox"
)

const maxDeadLetterPage = 200

// DeadLetterService is the operator view over parked outbox events.
type DeadLetterService interface {
	List(ctx context.Context, filter outbox.DLQFilter, limit int) ([]models.OutboxDLQ, error)
	Replay(ctx context.Context, eventID uuid.UUID) (*models.OutboxDLQ, error)
}

type deadLetterView struct {
	EventID       uuid.UUID                  `json:"event_id"`
	EventType     enums.OutboxEventType      `json:"event_type"`
	AggregateType enums.OutboxAggregateType  `json:"aggregate_type"`
	AggregateID   uuid.UUID                  `json:"aggregate_id"`
	Reason        enums.OutboxDLQErrorReason `json:"reason"`
	Message       string                     `json:"message,omitempty"`
	AttemptCount  int                        `json:"attempt_count"`
	FailedAt      time.Time                  `json:"failed_at"`
	Payload       json.RawMessage            `json:"payload,omitempty"`
}

func newDeadLetterView(entry models.OutboxDLQ, withPayload bool) deadLetterView {
	view := deadLetterView{
		EventID:       entry.EventID,
		EventType:     entry.EventType,
		AggregateType: entry.AggregateType,
		AggregateID:   entry.AggregateID,
		Reason:        entry.ErrorReason,
		AttemptCount:  entry.AttemptCount,
		FailedAt:      entry.FailedAt,
	}
	if entry.ErrorMessage != nil {
		view.Message = *entry.ErrorMessage
	}
	if withPayload {
		view.Payload = entry.Payload
	}
	return view
}

// AdminListDeadLetters lists parked events, newest failure first.
func AdminListDeadLetters(svc DeadLetterService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "dead letter service unavailable"))
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", 50, 1, maxDeadLetterPage)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var filter outbox.DLQFilter
		if filter.EventType, err = validators.QueryEnum(r, "event_type", enums.OutboxEventType.IsValid); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if filter.Reason, err = validators.QueryEnum(r, "reason", enums.OutboxDLQErrorReason.IsValid); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rows, err := svc.List(r.Context(), filter, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		views := make([]deadLetterView, 0, len(rows))
		for _, row := range rows {
			views = append(views, newDeadLetterView(row, false))
		}
		responses.WriteSuccess(w, views)
	}
}

// AdminReplayDeadLetter sends a parked event back to the publisher.
func AdminReplayDeadLetter(svc DeadLetterService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "dead letter service unavailable"))
			return
		}
		eventID, err := uuidParam(r, "eventId", "event id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		entry, err := svc.Replay(r.Context(), eventID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newDeadLetterView(*entry, true))
	}
}
