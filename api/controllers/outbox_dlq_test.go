package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-settlement/pkg/db/models"
	"github.com/angelmondragon/storefront-settlement/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-settlement/pkg/errors"
	"github.com/angelmondragon/storefront-settlement/pkg/outbox"
)

type stubDeadLetters struct {
	listFn   func(ctx context.Context, filter outbox.DLQFilter, limit int) ([]models.OutboxDLQ, error)
	replayFn func(ctx context.Context, eventID uuid.UUID) (*models.OutboxDLQ, error)
}

func (s stubDeadLetters) List(ctx context.Context, filter outbox.DLQFilter, limit int) ([]models.OutboxDLQ, error) {
	return s.listFn(ctx, filter, limit)
}

func (s stubDeadLetters) Replay(ctx context.Context, eventID uuid.UUID) (*models.OutboxDLQ, error) {
	return s.replayFn(ctx, eventID)
}

func TestAdminListDeadLettersPassesFilter(t *testing.T) {
	msg := "publish: topic not found"
	svc := stubDeadLetters{listFn: func(_ context.Context, filter outbox.DLQFilter, limit int) ([]models.OutboxDLQ, error) {
		require.Equal(t, enums.EventPayoutPaid, filter.EventType)
		require.Equal(t, enums.OutboxDLQReasonMaxAttempts, filter.Reason)
		require.Equal(t, 20, limit)
		return []models.OutboxDLQ{{
			EventID:      uuid.New(),
			EventType:    enums.EventPayoutPaid,
			ErrorReason:  enums.OutboxDLQReasonMaxAttempts,
			ErrorMessage: &msg,
			AttemptCount: 10,
			Payload:      json.RawMessage(`{"secret":"x"}`),
		}}, nil
	}}

	req := newRequest(http.MethodGet, "/?event_type=payout.paid&reason=max_attempts&limit=20", nil, nil, uuid.New(), enums.RoleAdmin)
	resp := httptest.NewRecorder()
	AdminListDeadLetters(svc, nil).ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	var views []deadLetterView
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, resp).Data, &views))
	require.Len(t, views, 1)
	require.Equal(t, msg, views[0].Message)
	require.Empty(t, views[0].Payload)
}

func TestAdminListDeadLettersRejectsUnknownReason(t *testing.T) {
	svc := stubDeadLetters{listFn: func(context.Context, outbox.DLQFilter, int) ([]models.OutboxDLQ, error) {
		t.Fatal("service must not be called")
		return nil, nil
	}}

	req := newRequest(http.MethodGet, "/?reason=cosmic_rays", nil, nil, uuid.New(), enums.RoleAdmin)
	resp := httptest.NewRecorder()
	AdminListDeadLetters(svc, nil).ServeHTTP(resp, req)
	require.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestAdminReplayDeadLetter(t *testing.T) {
	eventID := uuid.New()
	svc := stubDeadLetters{replayFn: func(_ context.Context, id uuid.UUID) (*models.OutboxDLQ, error) {
		require.Equal(t, eventID, id)
		return &models.OutboxDLQ{EventID: id, EventType: enums.EventOrderCreated, Payload: json.RawMessage(`{"version":1}`)}, nil
	}}

	req := newRequest(http.MethodPost, "/", nil, map[string]string{"eventId": eventID.String()}, uuid.New(), enums.RoleAdmin)
	resp := httptest.NewRecorder()
	AdminReplayDeadLetter(svc, nil).ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	var view deadLetterView
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, resp).Data, &view))
	require.Equal(t, eventID, view.EventID)
	require.JSONEq(t, `{"version":1}`, string(view.Payload))
}

func TestAdminReplayDeadLetterNotFound(t *testing.T) {
	svc := stubDeadLetters{replayFn: func(context.Context, uuid.UUID) (*models.OutboxDLQ, error) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "dead letter not found")
	}}

	req := newRequest(http.MethodPost, "/", nil, map[string]string{"eventId": uuid.NewString()}, uuid.New(), enums.RoleAdmin)
	resp := httptest.NewRecorder()
	AdminReplayDeadLetter(svc, nil).ServeHTTP(resp, req)
	require.Equal(t, http.StatusNotFound, resp.Code)
}
