package responses

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/storefront-settlement/pkg/errors"
	"github.com/angelmondragon/storefront-settlement/pkg/logger"
)

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorEnvelope {
	t.Helper()
	var body ErrorEnvelope
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	return body
}

func TestWriteSuccessStatus(t *testing.T) {
	w := httptest.NewRecorder()
	WriteSuccessStatus(w, http.StatusCreated, map[string]string{"order_number": "ORD-20260301-0001"})

	require.Equal(t, http.StatusCreated, w.Code)
	require.Equal(t, "application/json", w.Header().Get("Content-Type"))
	var body SuccessEnvelope
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	require.Equal(t, "ORD-20260301-0001", body.Data.(map[string]any)["order_number"])
}

func TestWriteErrorShowsClientMessageAndDetails(t *testing.T) {
	w := httptest.NewRecorder()
	err := pkgerrors.New(pkgerrors.CodeValidation, "total_cents does not match items").
		WithDetails(map[string]string{"field": "total_cents"})
	WriteError(context.Background(), nil, w, err)

	require.Equal(t, http.StatusBadRequest, w.Code)
	body := decodeError(t, w)
	require.Equal(t, string(pkgerrors.CodeValidation), body.Error.Code)
	require.Equal(t, "total_cents does not match items", body.Error.Message)
	require.NotNil(t, body.Error.Details)
}

func TestWriteErrorHidesInternalMessages(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(context.Background(), nil, w, errors.New("dial tcp 10.0.0.3:5432: connection refused"))

	require.Equal(t, http.StatusInternalServerError, w.Code)
	body := decodeError(t, w)
	require.Equal(t, string(pkgerrors.CodeInternal), body.Error.Code)
	require.NotContains(t, body.Error.Message, "10.0.0.3")
	require.Nil(t, body.Error.Details)
}

func TestWriteErrorHidesDependencyMessages(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(context.Background(), nil, w, pkgerrors.New(pkgerrors.CodeDependency, "square: 502 from payments api"))

	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	require.NotContains(t, decodeError(t, w).Error.Message, "square")
}

func TestWriteErrorKeepsStateConflictDetails(t *testing.T) {
	w := httptest.NewRecorder()
	err := pkgerrors.NewWithReason(pkgerrors.CodeStateConflict, pkgerrors.ReasonInvalidStateTransition, "payout already paid", pkgerrors.ReasonDetails{})
	WriteError(context.Background(), nil, w, err)

	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	body := decodeError(t, w)
	require.Equal(t, "payout already paid", body.Error.Message)
	require.NotNil(t, body.Error.Details)
}

func TestWriteErrorLogLevelFollowsStatus(t *testing.T) {
	buf := &bytes.Buffer{}
	logg := logger.New(logger.Options{ServiceName: "api", Format: logger.FormatJSON, Output: buf})

	WriteError(context.Background(), logg, httptest.NewRecorder(), pkgerrors.New(pkgerrors.CodeNotFound, "order not found"))
	require.Contains(t, buf.String(), `"level":"warn"`)
	require.NotContains(t, buf.String(), `"stack"`)

	buf.Reset()
	WriteError(context.Background(), logg, httptest.NewRecorder(), errors.New("boom"))
	require.Contains(t, buf.String(), `"level":"error"`)
	require.Contains(t, buf.String(), `"status":500`)
}
