package routes

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-settlement/api/middleware"
	checkoutsvc "github.com/angelmondragon/storefront-settlement/internal/checkout"
	"github.com/angelmondragon/storefront-settlement/internal/commission"
	"github.com/angelmondragon/storefront-settlement/internal/orders"
	"github.com/angelmondragon/storefront-settlement/internal/payouts"
	pkgAuth "github.com/angelmondragon/storefront-settlement/pkg/auth"
	"github.com/angelmondragon/storefront-settlement/pkg/config"
	"github.com/angelmondragon/storefront-settlement/pkg/db/models"
	"github.com/angelmondragon/storefront-settlement/pkg/enums"
	"github.com/angelmondragon/storefront-settlement/pkg/outbox"
	"github.com/angelmondragon/storefront-settlement/pkg/outbox/payloads"
	"github.com/angelmondragon/storefront-settlement/pkg/pagination"
)

type memoryStore struct {
	mu   sync.Mutex
	data map[string]string
}

func (m *memoryStore) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.data[key]; ok {
		return v, nil
	}
	return "", redis.Nil
}

func (m *memoryStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	m.data[key] = fmt.Sprint(value)
	return true, nil
}

func (m *memoryStore) Set(_ context.Context, key string, value any, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = fmt.Sprint(value)
	return nil
}

func (m *memoryStore) IdempotencyKey(scope, id string) string {
	return "idem:" + scope + ":" + id
}

func (m *memoryStore) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.data, key)
	}
	return nil
}

type countingCheckout struct {
	mu    sync.Mutex
	calls int
}

func (c *countingCheckout) CreateOrder(context.Context, uuid.UUID, checkoutsvc.CreateOrderInput) (*checkoutsvc.CreateOrderResult, error) {
	return nil, fmt.Errorf("unexpected minor-unit checkout")
}

func (c *countingCheckout) SubmitOrder(context.Context, uuid.UUID, checkoutsvc.OrderRequest) (*checkoutsvc.CreateOrderResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return &checkoutsvc.CreateOrderResult{Success: true, OrderID: uuid.New(), OrderNumber: fmt.Sprintf("ORD-%d", c.calls), TrackingToken: "tok"}, nil
}

type fakeOrders struct{}

func (fakeOrders) AdvanceOrderStatus(_ context.Context, input orders.AdvanceStatusInput) (*payloads.OrderStatusChangedEvent, error) {
	return &payloads.OrderStatusChangedEvent{OrderID: input.OrderID, PreviousStatus: enums.OrderStatusPending, NewStatus: input.Target}, nil
}

func (fakeOrders) TrackOrder(context.Context, string) (*orders.TrackedOrder, error) {
	return &orders.TrackedOrder{OrderNumber: "ORD-1", Status: enums.OrderStatusPending}, nil
}

type fakePayouts struct{}

func (fakePayouts) ApprovePayout(_ context.Context, input payouts.ApproveInput) (*payouts.Payout, error) {
	return &payouts.Payout{ID: input.CommissionID, Status: enums.CommissionStatusPaid}, nil
}

func (fakePayouts) RejectPayout(_ context.Context, input payouts.RejectInput) (*payouts.Payout, error) {
	return &payouts.Payout{ID: input.CommissionID, Status: enums.CommissionStatusRejected}, nil
}

func (fakePayouts) VerifyBankAccount(_ context.Context, sellerID uuid.UUID) (*payouts.BankCheck, error) {
	return &payouts.BankCheck{SellerID: sellerID}, nil
}

func (fakePayouts) ListPayouts(context.Context, commission.Filter, pagination.Params) (pagination.Page[payouts.Payout], error) {
	return pagination.Page[payouts.Payout]{Items: []payouts.Payout{}}, nil
}

type fakeDeadLetters struct {
	mu       sync.Mutex
	replayed []uuid.UUID
}

func (f *fakeDeadLetters) List(context.Context, outbox.DLQFilter, int) ([]models.OutboxDLQ, error) {
	return []models.OutboxDLQ{}, nil
}

func (f *fakeDeadLetters) Replay(_ context.Context, eventID uuid.UUID) (*models.OutboxDLQ, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replayed = append(f.replayed, eventID)
	return &models.OutboxDLQ{EventID: eventID, EventType: enums.EventPayoutPaid}, nil
}

type routerHarness struct {
	tokens   *pkgAuth.Tokens
	handler  http.Handler
	checkout *countingCheckout
	dlq      *fakeDeadLetters
}

func newHarness(t *testing.T) *routerHarness {
	t.Helper()
	cfg := &config.Config{
		App: config.AppConfig{Env: "test"},
		JWT: config.JWTConfig{Secret: "router-secret", Issuer: "storefront-test"},
	}
	checkout := &countingCheckout{}
	dlq := &fakeDeadLetters{}
	tokens, err := pkgAuth.NewTokens(cfg.JWT)
	require.NoError(t, err)
	handler := NewRouter(cfg, nil, Dependencies{
		Tokens:      tokens,
		Idempotency: &memoryStore{data: map[string]string{}},
		Gatherer:    prometheus.NewRegistry(),
		Checkout:    checkout,
		Orders:      fakeOrders{},
		Payouts:     fakePayouts{},
		DeadLetters: dlq,
	})
	return &routerHarness{tokens: tokens, handler: handler, checkout: checkout, dlq: dlq}
}

func (h *routerHarness) token(t *testing.T, role enums.Role) string {
	t.Helper()
	token, err := h.tokens.Mint(time.Now(), time.Hour, pkgAuth.AccessTokenPayload{UserID: uuid.New(), Role: role})
	require.NoError(t, err)
	return token
}

func (h *routerHarness) do(method, path, token, idemKey, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if idemKey != "" {
		req.Header.Set("Idempotency-Key", idemKey)
	}
	resp := httptest.NewRecorder()
	h.handler.ServeHTTP(resp, req)
	return resp
}

const orderPayload = `{
	"customer_name": "Ada Obi",
	"customer_email": "ada@example.com",
	"customer_phone": "+2348000000000",
	"shipping_address": {"line1": "12 Marina Road", "city": "Lagos", "state": "LA", "country": "NG"},
	"payment_method": "cash_on_delivery",
	"items": [{"product_id": "5f0c3b7e-8a44-4b4e-9a55-0b7c6f1d2e3a", "quantity": 1, "price": 10}],
	"total_amount": 10
}`

func TestHealthAndMetricsArePublic(t *testing.T) {
	h := newHarness(t)
	require.Equal(t, http.StatusOK, h.do(http.MethodGet, "/health/live", "", "", "").Code)
	require.Equal(t, http.StatusOK, h.do(http.MethodGet, "/health/ready", "", "", "").Code)
	require.Equal(t, http.StatusOK, h.do(http.MethodGet, "/metrics", "", "", "").Code)
	require.Equal(t, http.StatusOK, h.do(http.MethodGet, "/api/v1/orders/track/abc", "", "", "").Code)
}

func TestCreateOrderRequiresAuthAndIdempotencyKey(t *testing.T) {
	h := newHarness(t)
	buyer := h.token(t, enums.RoleBuyer)

	require.Equal(t, http.StatusUnauthorized, h.do(http.MethodPost, "/api/v1/orders", "", "k1", orderPayload).Code)
	require.Equal(t, http.StatusBadRequest, h.do(http.MethodPost, "/api/v1/orders", buyer, "", orderPayload).Code)

	first := h.do(http.MethodPost, "/api/v1/orders", buyer, "k1", orderPayload)
	require.Equal(t, http.StatusCreated, first.Code)
	replay := h.do(http.MethodPost, "/api/v1/orders", buyer, "k1", orderPayload)
	require.Equal(t, http.StatusCreated, replay.Code)
	require.Equal(t, first.Body.String(), replay.Body.String())
	require.Equal(t, "true", replay.Header().Get(middleware.IdempotencyReplayedHeader))
	require.Equal(t, 1, h.checkout.calls)
}

func TestAdminRoutesRequireAdminRole(t *testing.T) {
	h := newHarness(t)
	seller := h.token(t, enums.RoleSeller)
	admin := h.token(t, enums.RoleAdmin)
	commissionID := uuid.NewString()

	require.Equal(t, http.StatusUnauthorized, h.do(http.MethodGet, "/api/v1/admin/payouts", "", "", "").Code)
	require.Equal(t, http.StatusForbidden, h.do(http.MethodGet, "/api/v1/admin/payouts", seller, "", "").Code)
	require.Equal(t, http.StatusOK, h.do(http.MethodGet, "/api/v1/admin/payouts", admin, "", "").Code)

	path := "/api/v1/admin/payouts/" + commissionID + "/approve"
	require.Equal(t, http.StatusBadRequest, h.do(http.MethodPost, path, admin, "", "").Code)
	require.Equal(t, http.StatusOK, h.do(http.MethodPost, path, admin, "approve-1", "").Code)

	reject := "/api/v1/admin/payouts/" + commissionID + "/reject"
	require.Equal(t, http.StatusOK, h.do(http.MethodPost, reject, admin, "reject-1", `{"reason":"duplicate"}`).Code)

	status := "/api/v1/admin/orders/" + uuid.NewString() + "/status"
	require.Equal(t, http.StatusOK, h.do(http.MethodPost, status, admin, "status-1", `{"status":"confirmed"}`).Code)

	verify := "/api/v1/admin/sellers/" + uuid.NewString() + "/verify-bank"
	require.Equal(t, http.StatusOK, h.do(http.MethodPost, verify, admin, "verify-1", "").Code)
}

func TestDeadLetterReplayIsAdminOnlyAndIdempotent(t *testing.T) {
	h := newHarness(t)
	seller := h.token(t, enums.RoleSeller)
	admin := h.token(t, enums.RoleAdmin)

	require.Equal(t, http.StatusForbidden, h.do(http.MethodGet, "/api/v1/admin/outbox/dlq", seller, "", "").Code)
	require.Equal(t, http.StatusOK, h.do(http.MethodGet, "/api/v1/admin/outbox/dlq?reason=max_attempts", admin, "", "").Code)

	path := "/api/v1/admin/outbox/dlq/" + uuid.NewString() + "/replay"
	require.Equal(t, http.StatusBadRequest, h.do(http.MethodPost, path, admin, "", "").Code)
	require.Equal(t, http.StatusOK, h.do(http.MethodPost, path, admin, "replay-1", "").Code)
	replay := h.do(http.MethodPost, path, admin, "replay-1", "")
	require.Equal(t, http.StatusOK, replay.Code)
	require.Equal(t, "true", replay.Header().Get(middleware.IdempotencyReplayedHeader))
	require.Len(t, h.dlq.replayed, 1)
}
