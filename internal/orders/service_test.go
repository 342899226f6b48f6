package orders

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-settlement/internal/testdb"
	pkgdb "github.com/angelmondragon/storefront-settlement/pkg/db"
	"github.com/angelmondragon/storefront-settlement/pkg/db/models"
	"github.com/angelmondragon/storefront-settlement/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-settlement/pkg/errors"
	"github.com/angelmondragon/storefront-settlement/pkg/outbox"
	"github.com/angelmondragon/storefront-settlement/pkg/outbox/payloads"
	"github.com/angelmondragon/storefront-settlement/pkg/security"
	"github.com/angelmondragon/storefront-settlement/pkg/types"
)

func seedOrder(t *testing.T, db *gorm.DB, status enums.OrderStatus) (models.Order, string) {
	t.Helper()
	token, hash, err := security.NewTrackingToken()
	require.NoError(t, err)
	sellerID := uuid.New()
	order := models.Order{
		OrderNumber:       "ORD-20260301-" + uuid.NewString()[:8],
		BuyerUserID:       uuid.New(),
		CustomerName:      "Amaka Obi",
		CustomerEmail:     "amaka@example.com",
		CustomerPhone:     "+2348000000000",
		ShippingAddress:   &types.ShippingAddress{Line1: "12 Marina", City: "Lagos", State: "LA", Country: "NG"},
		PaymentMethod:     enums.PaymentMethodCashOnDelivery,
		PaymentStatus:     enums.PaymentStatusPending,
		Status:            status,
		Currency:          "NGN",
		SubtotalCents:     10000,
		TaxCents:          800,
		TotalCents:        10800,
		TrackingTokenHash: hash,
		Items: []models.OrderItem{{
			ProductID:      uuid.New(),
			SellerID:       &sellerID,
			ProductName:    "Ankara tote",
			Quantity:       2,
			UnitPriceCents: 5000,
			LineTotalCents: 10000,
		}},
	}
	require.NoError(t, NewRepository(db).Create(context.Background(), &order))
	return order, token
}

func newTestService(t *testing.T, db *gorm.DB) Service {
	t.Helper()
	svc, err := NewService(NewRepository(db), pkgdb.NewFromConn(db), outbox.NewService(outbox.NewRepository(db), nil), nil)
	require.NoError(t, err)
	return svc
}

func TestAdvanceOrderStatusQueuesNotification(t *testing.T) {
	db := testdb.Open(t)
	svc := newTestService(t, db)
	order, _ := seedOrder(t, db, enums.OrderStatusPending)
	actor := uuid.New()

	event, err := svc.AdvanceOrderStatus(context.Background(), AdvanceStatusInput{
		OrderID:     order.ID,
		Target:      enums.OrderStatusConfirmed,
		ActorUserID: actor,
		ActorRole:   "admin",
	})
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusPending, event.PreviousStatus)
	require.Equal(t, enums.OrderStatusConfirmed, event.NewStatus)

	stored, err := NewRepository(db).Get(context.Background(), order.ID)
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusConfirmed, stored.Status)
	require.Equal(t, int64(10800), stored.TotalCents)

	var rows []models.OutboxEvent
	require.NoError(t, db.Where("aggregate_id = ?", order.ID).Find(&rows).Error)
	require.Len(t, rows, 1)
	require.Equal(t, enums.EventOrderStatusChanged, rows[0].EventType)

	var envelope outbox.PayloadEnvelope
	require.NoError(t, json.Unmarshal(rows[0].Payload, &envelope))
	require.Equal(t, rows[0].ID.String(), envelope.EventID)
	var data payloads.OrderStatusChangedEvent
	require.NoError(t, json.Unmarshal(envelope.Data, &data))
	require.Equal(t, order.OrderNumber, data.OrderNumber)
	require.Equal(t, "amaka@example.com", data.CustomerEmail)
	require.Equal(t, "Lagos", data.ShippingAddress.City)
}

func TestAdvanceOrderStatusRejectsSkipsAndTerminal(t *testing.T) {
	db := testdb.Open(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	actor := uuid.New()

	pending, _ := seedOrder(t, db, enums.OrderStatusPending)
	_, err := svc.AdvanceOrderStatus(ctx, AdvanceStatusInput{OrderID: pending.ID, Target: enums.OrderStatusShipped, ActorUserID: actor})
	require.True(t, pkgerrors.HasReason(err, pkgerrors.ReasonInvalidStateTransition))
	require.Equal(t, pkgerrors.CodeStateConflict, pkgerrors.As(err).Code())

	delivered, _ := seedOrder(t, db, enums.OrderStatusDelivered)
	_, err = svc.AdvanceOrderStatus(ctx, AdvanceStatusInput{OrderID: delivered.ID, Target: enums.OrderStatusCancelled, ActorUserID: actor})
	require.ErrorContains(t, err, "already delivered")

	_, err = svc.AdvanceOrderStatus(ctx, AdvanceStatusInput{OrderID: uuid.New(), Target: enums.OrderStatusConfirmed, ActorUserID: actor})
	require.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())

	_, err = svc.AdvanceOrderStatus(ctx, AdvanceStatusInput{OrderID: pending.ID, Target: "lost", ActorUserID: actor})
	require.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())

	var count int64
	require.NoError(t, db.Model(&models.OutboxEvent{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestCancelReachableFromEveryOpenStatus(t *testing.T) {
	db := testdb.Open(t)
	svc := newTestService(t, db)
	for _, status := range []enums.OrderStatus{
		enums.OrderStatusPending,
		enums.OrderStatusConfirmed,
		enums.OrderStatusProcessing,
		enums.OrderStatusShipped,
	} {
		order, _ := seedOrder(t, db, status)
		_, err := svc.AdvanceOrderStatus(context.Background(), AdvanceStatusInput{
			OrderID:     order.ID,
			Target:      enums.OrderStatusCancelled,
			ActorUserID: uuid.New(),
		})
		require.NoError(t, err, "cancel from %s", status)
	}
}

func TestTrackOrder(t *testing.T) {
	db := testdb.Open(t)
	svc := newTestService(t, db)
	order, token := seedOrder(t, db, enums.OrderStatusPending)

	tracked, err := svc.TrackOrder(context.Background(), token)
	require.NoError(t, err)
	require.Equal(t, order.OrderNumber, tracked.OrderNumber)
	require.Len(t, tracked.Items, 1)
	require.Equal(t, "Ankara tote", tracked.Items[0].ProductName)

	_, err = svc.TrackOrder(context.Background(), "not-a-token")
	require.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())

	_, err = svc.TrackOrder(context.Background(), " ")
	require.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}

func TestListMissingCommission(t *testing.T) {
	db := testdb.Open(t)
	repo := NewRepository(db)
	ctx := context.Background()

	missing, _ := seedOrder(t, db, enums.OrderStatusConfirmed)
	covered, _ := seedOrder(t, db, enums.OrderStatusPending)
	seedOrder(t, db, enums.OrderStatusCancelled)

	require.NoError(t, db.Create(&models.CommissionTransaction{
		ID:                uuid.New(),
		OrderID:           covered.ID,
		SellerID:          *covered.Items[0].SellerID,
		Currency:          "NGN",
		TotalCents:        10000,
		CommissionCents:   1500,
		SellerAmountCents: 8500,
		Status:            enums.CommissionStatusPending,
	}).Error)

	got, err := repo.ListMissingCommission(ctx, time.Now().Add(time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, missing.ID, got[0].ID)
	require.Len(t, got[0].Items, 1)

	none, err := repo.ListMissingCommission(ctx, time.Now().Add(-time.Hour), 10)
	require.NoError(t, err)
	require.Empty(t, none)
}
