package controllers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-settlement/api/middleware"
	checkoutsvc "github.com/angelmondragon/storefront-settlement/internal/checkout"
	"github.com/angelmondragon/storefront-settlement/internal/commission"
	ordersvc "github.com/angelmondragon/storefront-settlement/internal/orders"
	payoutsvc "github.com/angelmondragon/storefront-settlement/internal/payouts"
	"github.com/angelmondragon/storefront-settlement/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-settlement/pkg/errors"
	"github.com/angelmondragon/storefront-settlement/pkg/outbox/payloads"
	"github.com/angelmondragon/storefront-settlement/pkg/pagination"
	"github.com/angelmondragon/storefront-settlement/pkg/types"
)

type stubCheckout struct {
	submitFn func(ctx context.Context, buyerID uuid.UUID, req checkoutsvc.OrderRequest) (*checkoutsvc.CreateOrderResult, error)
}

func (s stubCheckout) CreateOrder(context.Context, uuid.UUID, checkoutsvc.CreateOrderInput) (*checkoutsvc.CreateOrderResult, error) {
	return nil, pkgerrors.New(pkgerrors.CodeInternal, "minor-unit entry point is not served over HTTP")
}

func (s stubCheckout) SubmitOrder(ctx context.Context, buyerID uuid.UUID, req checkoutsvc.OrderRequest) (*checkoutsvc.CreateOrderResult, error) {
	return s.submitFn(ctx, buyerID, req)
}

type stubOrders struct {
	advanceFn func(ctx context.Context, input ordersvc.AdvanceStatusInput) (*payloads.OrderStatusChangedEvent, error)
	trackFn   func(ctx context.Context, token string) (*ordersvc.TrackedOrder, error)
}

func (s stubOrders) AdvanceOrderStatus(ctx context.Context, input ordersvc.AdvanceStatusInput) (*payloads.OrderStatusChangedEvent, error) {
	return s.advanceFn(ctx, input)
}

func (s stubOrders) TrackOrder(ctx context.Context, token string) (*ordersvc.TrackedOrder, error) {
	return s.trackFn(ctx, token)
}

type stubPayouts struct {
	approveFn func(ctx context.Context, input payoutsvc.ApproveInput) (*payoutsvc.Payout, error)
	rejectFn  func(ctx context.Context, input payoutsvc.RejectInput) (*payoutsvc.Payout, error)
	verifyFn  func(ctx context.Context, sellerID uuid.UUID) (*payoutsvc.BankCheck, error)
	listFn    func(ctx context.Context, filter commission.Filter, params pagination.Params) (pagination.Page[payoutsvc.Payout], error)
}

func (s stubPayouts) ApprovePayout(ctx context.Context, input payoutsvc.ApproveInput) (*payoutsvc.Payout, error) {
	return s.approveFn(ctx, input)
}

func (s stubPayouts) RejectPayout(ctx context.Context, input payoutsvc.RejectInput) (*payoutsvc.Payout, error) {
	return s.rejectFn(ctx, input)
}

func (s stubPayouts) VerifyBankAccount(ctx context.Context, sellerID uuid.UUID) (*payoutsvc.BankCheck, error) {
	return s.verifyFn(ctx, sellerID)
}

func (s stubPayouts) ListPayouts(ctx context.Context, filter commission.Filter, params pagination.Params) (pagination.Page[payoutsvc.Payout], error) {
	return s.listFn(ctx, filter, params)
}

// newRequest attaches chi URL params and an authenticated caller.
func newRequest(method, target string, body io.Reader, params map[string]string, userID uuid.UUID, role enums.Role) *http.Request {
	req := httptest.NewRequest(method, target, body)
	rc := chi.NewRouteContext()
	for k, v := range params {
		rc.URLParams.Add(k, v)
	}
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rc)
	if userID != uuid.Nil {
		ctx = middleware.WithUserID(ctx, userID.String())
		ctx = middleware.WithRole(ctx, string(role))
	}
	return req.WithContext(ctx)
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string          `json:"code"`
		Message string          `json:"message"`
		Details json.RawMessage `json:"details"`
	} `json:"error"`
}

func decodeEnvelope(t *testing.T, resp *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return env
}

func sampleAddress() *types.ShippingAddress {
	return &types.ShippingAddress{Line1: "12 Marina Road", City: "Lagos", State: "LA", Country: "NG"}
}
