package checkout

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-settlement/internal/catalog"
	"github.com/angelmondragon/storefront-settlement/internal/commission"
	"github.com/angelmondragon/storefront-settlement/internal/ledger"
	"github.com/angelmondragon/storefront-settlement/internal/orders"
	"github.com/angelmondragon/storefront-settlement/internal/sellers"
	"github.com/angelmondragon/storefront-settlement/internal/settings"
	"github.com/angelmondragon/storefront-settlement/internal/testdb"
	"github.com/angelmondragon/storefront-settlement/pkg/config"
	pkgdb "github.com/angelmondragon/storefront-settlement/pkg/db"
	"github.com/angelmondragon/storefront-settlement/pkg/db/models"
	"github.com/angelmondragon/storefront-settlement/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-settlement/pkg/errors"
	"github.com/angelmondragon/storefront-settlement/pkg/gateway"
	"github.com/angelmondragon/storefront-settlement/pkg/outbox"
	"github.com/angelmondragon/storefront-settlement/pkg/security"
	"github.com/angelmondragon/storefront-settlement/pkg/types"
)

type harness struct {
	db      *gorm.DB
	svc     Service
	gateway *stubGateway
	metrics *recordingMetrics
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := testdb.Open(t)
	catalogRepo := catalog.NewRepository(db)
	validator, err := NewValidator(catalogRepo)
	require.NoError(t, err)
	gw := &stubGateway{results: map[string]gateway.Verification{}}
	metrics := &recordingMetrics{}
	payments, err := NewPaymentVerifier(PaymentVerifierParams{Gateway: gw, Metrics: metrics})
	require.NoError(t, err)
	ledgerSvc, err := ledger.NewService(ledger.NewRepository(db))
	require.NoError(t, err)

	svc, err := NewService(ServiceParams{
		Tx:          pkgdb.NewFromConn(db),
		Validator:   validator,
		Payments:    payments,
		Stock:       catalogRepo,
		Orders:      orders.NewRepository(db),
		Commissions: commission.NewRepository(db),
		Sellers:     sellers.NewRepository(db),
		Ledger:      ledgerSvc,
		Outbox:      outbox.NewService(outbox.NewRepository(db), nil),
		Settings:    settings.NewStore(db, config.CheckoutConfig{Currency: "NGN", DefaultCommissionRate: "15"}),
		Metrics:     metrics,
	})
	require.NoError(t, err)
	return &harness{db: db, svc: svc, gateway: gw, metrics: metrics}
}

func baseInput(items ...LineInput) CreateOrderInput {
	return CreateOrderInput{
		CustomerName:    "Ngozi Eze",
		CustomerEmail:   "Ngozi@Example.com",
		CustomerPhone:   "+2348011111111",
		ShippingAddress: &types.ShippingAddress{Line1: "4 Allen Ave", City: "Ikeja", State: "LA", Country: "NG"},
		PaymentMethod:   enums.PaymentMethodCashOnDelivery,
		Items:           items,
	}
}

func count(t *testing.T, db *gorm.DB, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(model).Count(&n).Error)
	return n
}

func TestCreateOrderWritesEverythingAtomically(t *testing.T) {
	h := newHarness(t)
	seller := testdb.SeedSeller(t, h.db, "Ada Crafts", testdb.Rate("15"))
	p := testdb.SeedProduct(t, h.db, &seller.ID, "Raffia basket", 5000, 3)
	buyer := uuid.New()

	input := baseInput(LineInput{ProductID: p.ID, ProductName: "Raffia basket", Quantity: 2, UnitPriceCents: 5000})
	input.TaxCents = 800
	input.TotalCents = 10800

	result, err := h.svc.CreateOrder(context.Background(), buyer, input)
	require.NoError(t, err)
	require.Regexp(t, `^ORD-\d{8}-[A-Z2-7]{8}$`, result.OrderNumber)
	require.NotEmpty(t, result.TrackingToken)

	order, err := orders.NewRepository(h.db).Get(context.Background(), result.OrderID)
	require.NoError(t, err)
	require.Equal(t, int64(10800), order.TotalCents)
	require.Equal(t, int64(1500), order.CommissionCents)
	require.Equal(t, int64(8500), order.SellerAmountCents)
	require.Equal(t, seller.ID, *order.SellerID)
	require.Equal(t, "ngozi@example.com", order.CustomerEmail)
	require.Equal(t, enums.PaymentStatusPending, order.PaymentStatus)
	require.True(t, security.VerifyTrackingToken(result.TrackingToken, order.TrackingTokenHash))
	require.Len(t, order.Items, 1)
	require.NotNil(t, order.Items[0].CommissionRate)
	require.True(t, order.Items[0].CommissionRate.Equal(decimal.RequireFromString("15")))

	var stock models.Product
	require.NoError(t, h.db.First(&stock, "id = ?", p.ID).Error)
	require.Equal(t, 1, stock.StockQuantity)

	var split models.CommissionTransaction
	require.NoError(t, h.db.First(&split, "order_id = ?", order.ID).Error)
	require.Equal(t, int64(10000), split.TotalCents)
	require.Equal(t, int64(1500), split.CommissionCents)
	require.Equal(t, int64(8500), split.SellerAmountCents)
	require.Equal(t, enums.CommissionStatusPending, split.Status)

	wallet, err := sellers.NewRepository(h.db).GetWallet(context.Background(), "NGN")
	require.NoError(t, err)
	require.Equal(t, int64(1500), wallet.TotalCommissionCents)
	require.Equal(t, int64(8500), wallet.WithdrawableBalanceCents)

	require.EqualValues(t, 1, count(t, h.db, &models.PaymentTransaction{}))
	require.EqualValues(t, 1, count(t, h.db, &models.LedgerEvent{}))

	var event models.OutboxEvent
	require.NoError(t, h.db.First(&event, "aggregate_id = ?", order.ID).Error)
	require.Equal(t, enums.EventOrderCreated, event.EventType)
	require.Equal(t, []string{string(enums.PaymentMethodCashOnDelivery)}, h.metrics.created)
}

func TestSubmitOrderConvertsMajorUnits(t *testing.T) {
	h := newHarness(t)
	seller := testdb.SeedSeller(t, h.db, "Ada Crafts", testdb.Rate("15"))
	p := testdb.SeedProduct(t, h.db, &seller.ID, "Raffia basket", 5000, 3)
	base := baseInput()

	result, err := h.svc.SubmitOrder(context.Background(), uuid.New(), OrderRequest{
		CustomerName:    base.CustomerName,
		CustomerEmail:   base.CustomerEmail,
		CustomerPhone:   base.CustomerPhone,
		ShippingAddress: base.ShippingAddress,
		PaymentMethod:   base.PaymentMethod,
		Items:           []LineRequest{{ProductID: p.ID, ProductName: "Raffia basket", Quantity: 2, Price: decimal.RequireFromString("50.00")}},
		TaxAmount:       decimal.RequireFromString("8"),
		TotalAmount:     decimal.RequireFromString("108.00"),
	})
	require.NoError(t, err)
	require.True(t, result.Success)

	order, err := orders.NewRepository(h.db).Get(context.Background(), result.OrderID)
	require.NoError(t, err)
	require.Equal(t, int64(10800), order.TotalCents)
	require.Equal(t, int64(800), order.TaxCents)
	require.Equal(t, int64(5000), order.Items[0].UnitPriceCents)
}

func TestSubmitOrderRejectsNegativeAmounts(t *testing.T) {
	h := newHarness(t)
	p := testdb.SeedProduct(t, h.db, nil, "Raffia basket", 5000, 3)
	base := baseInput()

	_, err := h.svc.SubmitOrder(context.Background(), uuid.New(), OrderRequest{
		CustomerName:    base.CustomerName,
		CustomerEmail:   base.CustomerEmail,
		CustomerPhone:   base.CustomerPhone,
		ShippingAddress: base.ShippingAddress,
		PaymentMethod:   base.PaymentMethod,
		Items:           []LineRequest{{ProductID: p.ID, Quantity: 1, Price: decimal.RequireFromString("50")}},
		DiscountAmount:  decimal.RequireFromString("-5"),
		TotalAmount:     decimal.RequireFromString("55"),
	})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	require.EqualValues(t, 0, count(t, h.db, &models.Order{}))
}

func TestCreateOrderSnapshotsSellerRate(t *testing.T) {
	h := newHarness(t)
	seller := testdb.SeedSeller(t, h.db, "Bisi Beads", testdb.Rate("15"))
	p := testdb.SeedProduct(t, h.db, &seller.ID, "Bead set", 1000, 5)

	input := baseInput(LineInput{ProductID: p.ID, Quantity: 1, UnitPriceCents: 1000})
	input.TotalCents = 1000
	result, err := h.svc.CreateOrder(context.Background(), uuid.New(), input)
	require.NoError(t, err)

	require.NoError(t, h.db.Model(&models.SellerProfile{}).Where("id = ?", seller.ID).
		Update("commission_rate", testdb.Rate("30")).Error)

	var split models.CommissionTransaction
	require.NoError(t, h.db.First(&split, "order_id = ?", result.OrderID).Error)
	require.Equal(t, int64(150), split.CommissionCents)
	require.Equal(t, int64(850), split.SellerAmountCents)
	require.Equal(t, "15", split.CommissionRate.String())
}

func TestCreateOrderMultiSeller(t *testing.T) {
	h := newHarness(t)
	a := testdb.SeedSeller(t, h.db, "A", nil)
	b := testdb.SeedSeller(t, h.db, "B", testdb.Rate("10"))
	pa := testdb.SeedProduct(t, h.db, &a.ID, "Pot", 2000, 5)
	pb := testdb.SeedProduct(t, h.db, &b.ID, "Rug", 3000, 5)

	input := baseInput(
		LineInput{ProductID: pa.ID, Quantity: 1, UnitPriceCents: 2000},
		LineInput{ProductID: pb.ID, Quantity: 1, UnitPriceCents: 3000},
	)
	input.ShippingFeeCents = 500
	input.TotalCents = 5500

	result, err := h.svc.CreateOrder(context.Background(), uuid.New(), input)
	require.NoError(t, err)

	order, err := orders.NewRepository(h.db).Get(context.Background(), result.OrderID)
	require.NoError(t, err)
	require.Nil(t, order.SellerID)
	require.Equal(t, int64(300+300), order.CommissionCents)
	require.Equal(t, int64(1700+2700), order.SellerAmountCents)
	require.EqualValues(t, 2, count(t, h.db, &models.CommissionTransaction{}))
}

func TestCreateOrderGatewayPaymentAndReplay(t *testing.T) {
	h := newHarness(t)
	seller := testdb.SeedSeller(t, h.db, "Chidi Shoes", nil)
	p := testdb.SeedProduct(t, h.db, &seller.ID, "Loafers", 10000, 5)
	h.gateway.results["PSK_REF_1"] = successful("PSK_REF_1", 10000)

	input := baseInput(LineInput{ProductID: p.ID, Quantity: 1, UnitPriceCents: 10000})
	input.PaymentMethod = enums.PaymentMethodGateway
	input.PaymentReference = "PSK_REF_1"
	input.TotalCents = 10000

	result, err := h.svc.CreateOrder(context.Background(), uuid.New(), input)
	require.NoError(t, err)

	order, err := orders.NewRepository(h.db).Get(context.Background(), result.OrderID)
	require.NoError(t, err)
	require.Equal(t, enums.PaymentStatusCompleted, order.PaymentStatus)
	require.Equal(t, "PSK_REF_1", *order.PaymentReference)

	var payment models.PaymentTransaction
	require.NoError(t, h.db.First(&payment, "order_id = ?", order.ID).Error)
	require.NotNil(t, payment.VerifiedAt)
	require.Equal(t, enums.PaymentStatusCompleted, payment.Status)

	_, err = h.svc.CreateOrder(context.Background(), uuid.New(), input)
	require.True(t, pkgerrors.HasReason(err, pkgerrors.ReasonPaymentReplay))
	require.Equal(t, pkgerrors.CodeConflict, pkgerrors.As(err).Code())
	require.EqualValues(t, 1, count(t, h.db, &models.Order{}))
}

func TestCreateOrderRejectsBeforeAnyWrite(t *testing.T) {
	h := newHarness(t)
	seller := testdb.SeedSeller(t, h.db, "Dayo Art", nil)
	p := testdb.SeedProduct(t, h.db, &seller.ID, "Canvas", 10000, 5)
	h.gateway.results["PSK_LOW"] = successful("PSK_LOW", 100)

	totalMismatch := baseInput(LineInput{ProductID: p.ID, Quantity: 1, UnitPriceCents: 10000})
	totalMismatch.TaxCents = 800
	totalMismatch.TotalCents = 10000
	_, err := h.svc.CreateOrder(context.Background(), uuid.New(), totalMismatch)
	require.True(t, pkgerrors.HasReason(err, pkgerrors.ReasonTotalMismatch))

	underpaid := baseInput(LineInput{ProductID: p.ID, Quantity: 1, UnitPriceCents: 10000})
	underpaid.PaymentMethod = enums.PaymentMethodGateway
	underpaid.PaymentReference = "PSK_LOW"
	underpaid.TotalCents = 10000
	_, err = h.svc.CreateOrder(context.Background(), uuid.New(), underpaid)
	require.True(t, pkgerrors.HasReason(err, pkgerrors.ReasonPaymentAmountMismatch))

	noIdentity := baseInput(LineInput{ProductID: p.ID, Quantity: 1, UnitPriceCents: 10000})
	noIdentity.TotalCents = 10000
	_, err = h.svc.CreateOrder(context.Background(), uuid.Nil, noIdentity)
	require.Equal(t, pkgerrors.CodeUnauthorized, pkgerrors.As(err).Code())

	require.Zero(t, count(t, h.db, &models.Order{}))
	require.Zero(t, count(t, h.db, &models.OutboxEvent{}))
	var stock models.Product
	require.NoError(t, h.db.First(&stock, "id = ?", p.ID).Error)
	require.Equal(t, 5, stock.StockQuantity)
	require.ElementsMatch(t, []string{"TOTAL_MISMATCH", "PAYMENT_AMOUNT_MISMATCH"}, h.metrics.failures)
}

func TestCreateOrderLastUnitRace(t *testing.T) {
	h := newHarness(t)
	seller := testdb.SeedSeller(t, h.db, "Efe Ceramics", nil)
	p := testdb.SeedProduct(t, h.db, &seller.ID, "Vase", 4000, 1)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		shortages int
	)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			input := baseInput(LineInput{ProductID: p.ID, Quantity: 1, UnitPriceCents: 4000})
			input.TotalCents = 4000
			_, err := h.svc.CreateOrder(context.Background(), uuid.New(), input)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case pkgerrors.HasReason(err, pkgerrors.ReasonInsufficientStock):
				shortages++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 1, successes)
	require.Equal(t, 1, shortages)
	require.EqualValues(t, 1, count(t, h.db, &models.Order{}))
	require.EqualValues(t, 1, count(t, h.db, &models.CommissionTransaction{}))

	var stock models.Product
	require.NoError(t, h.db.First(&stock, "id = ?", p.ID).Error)
	require.Equal(t, 0, stock.StockQuantity)
}

func TestCreateOrderRollsBackWhenSellerMissing(t *testing.T) {
	h := newHarness(t)
	ghost := uuid.New()
	p := testdb.SeedProduct(t, h.db, &ghost, "Orphan", 1000, 2)

	input := baseInput(LineInput{ProductID: p.ID, Quantity: 1, UnitPriceCents: 1000})
	input.TotalCents = 1000
	_, err := h.svc.CreateOrder(context.Background(), uuid.New(), input)
	require.Error(t, err)

	require.Zero(t, count(t, h.db, &models.Order{}))
	var stock models.Product
	require.NoError(t, h.db.First(&stock, "id = ?", p.ID).Error)
	require.Equal(t, 2, stock.StockQuantity)
}
