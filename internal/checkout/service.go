package checkout

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-settlement/internal/catalog"
	"github.com/angelmondragon/storefront-settlement/internal/commission"
	"github.com/angelmondragon/storefront-settlement/internal/ledger"
	"github.com/angelmondragon/storefront-settlement/internal/orders"
	"github.com/angelmondragon/storefront-settlement/internal/sellers"
	"github.com/angelmondragon/storefront-settlement/internal/settings"
	"github.com/angelmondragon/storefront-settlement/pkg/db"
	"github.com/angelmondragon/storefront-settlement/pkg/db/models"
	"github.com/angelmondragon/storefront-settlement/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-settlement/pkg/errors"
	"github.com/angelmondragon/storefront-settlement/pkg/gateway"
	"github.com/angelmondragon/storefront-settlement/pkg/logger"
	"github.com/angelmondragon/storefront-settlement/pkg/outbox"
	"github.com/angelmondragon/storefront-settlement/pkg/outbox/payloads"
	"github.com/angelmondragon/storefront-settlement/pkg/security"
)

const orderNumberAttempts = 3

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type paymentConfirmer interface {
	Confirm(ctx context.Context, reference string, expectedCents int64, currency string) (gateway.Verification, error)
}

type checkoutMetrics interface {
	IncOrderCreated(paymentMethod string)
	IncValidationFailure(reason string)
}

// Service turns a checkout submission into a committed order. SubmitOrder
// takes major-unit amounts; CreateOrder takes minor units of the settlement
// currency.
type Service interface {
	CreateOrder(ctx context.Context, buyerID uuid.UUID, input CreateOrderInput) (*CreateOrderResult, error)
	SubmitOrder(ctx context.Context, buyerID uuid.UUID, req OrderRequest) (*CreateOrderResult, error)
}

// ServiceParams wires the checkout service. Metrics and Logger are optional.
type ServiceParams struct {
	Tx          txRunner
	Validator   *Validator
	Payments    paymentConfirmer
	Stock       catalog.StockAdjuster
	Orders      orders.Repository
	Commissions commission.Repository
	Sellers     sellers.Repository
	Ledger      ledger.Service
	Outbox      outboxPublisher
	Settings    settings.Resolver
	Metrics     checkoutMetrics
	Logger      *logger.Logger
}

type service struct {
	tx          txRunner
	validator   *Validator
	payments    paymentConfirmer
	stock       catalog.StockAdjuster
	orders      orders.Repository
	commissions commission.Repository
	sellers     sellers.Repository
	ledger      ledger.Service
	outbox      outboxPublisher
	settings    settings.Resolver
	metrics     checkoutMetrics
	logg        *logger.Logger
	now         func() time.Time
}

// NewService validates params and builds the checkout service.
func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.Tx == nil:
		return nil, fmt.Errorf("tx runner required")
	case params.Validator == nil:
		return nil, fmt.Errorf("order validator required")
	case params.Payments == nil:
		return nil, fmt.Errorf("payment verifier required")
	case params.Stock == nil:
		return nil, fmt.Errorf("stock adjuster required")
	case params.Orders == nil:
		return nil, fmt.Errorf("orders repository required")
	case params.Commissions == nil:
		return nil, fmt.Errorf("commission repository required")
	case params.Sellers == nil:
		return nil, fmt.Errorf("sellers repository required")
	case params.Ledger == nil:
		return nil, fmt.Errorf("ledger service required")
	case params.Outbox == nil:
		return nil, fmt.Errorf("outbox publisher required")
	case params.Settings == nil:
		return nil, fmt.Errorf("settings resolver required")
	}
	return &service{
		tx:          params.Tx,
		validator:   params.Validator,
		payments:    params.Payments,
		stock:       params.Stock,
		orders:      params.Orders,
		commissions: params.Commissions,
		sellers:     params.Sellers,
		ledger:      params.Ledger,
		outbox:      params.Outbox,
		settings:    params.Settings,
		metrics:     params.Metrics,
		logg:        params.Logger,
		now:         func() time.Time { return time.Now().UTC() },
	}, nil
}

// CreateOrder validates the cart against the catalog, confirms gateway
// payment, then writes the order, its items, the payment record, stock
// decrements, commission splits, wallet accrual, ledger rows and the
// order.created event in one transaction. Nothing is written on failure.
func (s *service) CreateOrder(ctx context.Context, buyerID uuid.UUID, input CreateOrderInput) (*CreateOrderResult, error) {
	cfg, err := s.settings.Resolve(ctx)
	if err != nil {
		s.observeFailure(ctx, err)
		return nil, err
	}
	return s.place(ctx, buyerID, input, cfg)
}

// SubmitOrder converts req into minor units of the settlement currency in
// force and then behaves as CreateOrder.
func (s *service) SubmitOrder(ctx context.Context, buyerID uuid.UUID, req OrderRequest) (*CreateOrderResult, error) {
	cfg, err := s.settings.Resolve(ctx)
	if err != nil {
		s.observeFailure(ctx, err)
		return nil, err
	}
	input, err := req.minorUnits(cfg.Currency)
	if err != nil {
		s.observeFailure(ctx, err)
		return nil, err
	}
	return s.place(ctx, buyerID, input, cfg)
}

func (s *service) place(ctx context.Context, buyerID uuid.UUID, input CreateOrderInput, cfg settings.Settings) (*CreateOrderResult, error) {
	result, err := s.createOrder(ctx, buyerID, input, cfg)
	if err != nil {
		s.observeFailure(ctx, err)
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.IncOrderCreated(string(input.PaymentMethod))
	}
	if s.logg != nil {
		logCtx := s.logg.WithOrderID(ctx, result.OrderID.String())
		logCtx = s.logg.WithField(logCtx, "order_number", result.OrderNumber)
		s.logg.Info(logCtx, "order created")
	}
	return result, nil
}

func (s *service) createOrder(ctx context.Context, buyerID uuid.UUID, input CreateOrderInput, cfg settings.Settings) (*CreateOrderResult, error) {
	if buyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	input = normalizeInput(input)
	if err := validateContact(input); err != nil {
		return nil, err
	}

	quote, err := s.validator.Validate(ctx, input)
	if err != nil {
		return nil, err
	}

	var verification *gateway.Verification
	if input.PaymentMethod.RequiresVerification() {
		used, err := s.orders.PaymentReferenceUsed(ctx, input.PaymentReference)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check payment reference")
		}
		if used {
			return nil, paymentReplay(input.PaymentReference)
		}
		confirmed, err := s.payments.Confirm(ctx, input.PaymentReference, quote.TotalCents, cfg.Currency)
		if err != nil {
			return nil, err
		}
		verification = &confirmed
	}

	var lastErr error
	for attempt := 0; attempt < orderNumberAttempts; attempt++ {
		result, err := s.write(ctx, buyerID, input, quote, cfg, verification)
		if err == nil {
			return result, nil
		}
		if !db.IsUniqueViolation(err, "order_number") && !db.IsUniqueViolation(err, "tracking_token_hash") {
			return nil, s.classifyWriteError(err, input.PaymentReference)
		}
		lastErr = err
	}
	return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, lastErr, "could not allocate order number")
}

func (s *service) write(
	ctx context.Context,
	buyerID uuid.UUID,
	input CreateOrderInput,
	quote *Quote,
	cfg settings.Settings,
	verification *gateway.Verification,
) (*CreateOrderResult, error) {
	now := s.now()
	number, err := NewOrderNumber(now)
	if err != nil {
		return nil, err
	}
	token, tokenHash, err := security.NewTrackingToken()
	if err != nil {
		return nil, err
	}

	order := &models.Order{
		ID:                uuid.New(),
		OrderNumber:       number,
		BuyerUserID:       buyerID,
		CustomerName:      input.CustomerName,
		CustomerEmail:     input.CustomerEmail,
		CustomerPhone:     input.CustomerPhone,
		ShippingAddress:   input.ShippingAddress,
		PaymentMethod:     input.PaymentMethod,
		PaymentStatus:     enums.PaymentStatusPending,
		Status:            enums.OrderStatusPending,
		Currency:          cfg.Currency,
		SubtotalCents:     quote.SubtotalCents,
		ShippingFeeCents:  quote.ShippingFeeCents,
		TaxCents:          quote.TaxCents,
		DiscountCents:     quote.DiscountCents,
		TotalCents:        quote.TotalCents,
		TrackingTokenHash: tokenHash,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if input.PaymentReference != "" {
		ref := input.PaymentReference
		order.PaymentReference = &ref
	}
	if verification != nil {
		order.PaymentStatus = enums.PaymentStatusCompleted
	}
	for _, line := range quote.Lines {
		order.Items = append(order.Items, models.OrderItem{
			ID:             uuid.New(),
			ProductID:      line.ProductID,
			SellerID:       line.SellerID,
			ProductName:    line.ProductName,
			Quantity:       line.Quantity,
			UnitPriceCents: line.UnitPriceCents,
			LineTotalCents: line.LineTotalCents,
			CreatedAt:      now,
		})
	}

	shares := quote.SellerShares()
	if len(shares) == 1 {
		sellerID := shares[0].SellerID
		order.SellerID = &sellerID
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		splits, err := s.splitShares(ctx, tx, shares, cfg)
		if err != nil {
			return err
		}
		rates := make(map[uuid.UUID]decimal.Decimal, len(splits))
		for _, split := range splits {
			order.CommissionCents += split.CommissionCents
			order.SellerAmountCents += split.SellerAmountCents
			rates[split.SellerID] = split.CommissionRate
		}
		for i := range order.Items {
			if sellerID := order.Items[i].SellerID; sellerID != nil {
				if rate, ok := rates[*sellerID]; ok {
					order.Items[i].CommissionRate = &rate
				}
			}
		}

		ordersRepo := s.orders.WithTx(tx)
		if err := ordersRepo.Create(ctx, order); err != nil {
			return err
		}
		if err := ordersRepo.CreatePayment(ctx, paymentRecord(order, verification, now)); err != nil {
			return err
		}
		for _, line := range quote.Lines {
			if err := s.stock.Decrement(ctx, tx, line.ProductID, line.Quantity); err != nil {
				return err
			}
		}

		commissions := s.commissions.WithTx(tx)
		for i := range splits {
			splits[i].OrderID = order.ID
			splits[i].CreatedAt = now
			splits[i].UpdatedAt = now
			if err := commissions.Create(ctx, &splits[i]); err != nil {
				return err
			}
			if err := s.sellers.WithTx(tx).AccrueWallet(ctx, cfg.Currency, splits[i].CommissionCents, splits[i].SellerAmountCents); err != nil {
				return err
			}
			if _, err := s.ledger.Record(ctx, tx, ledger.RecordInput{
				OrderID:      order.ID,
				CommissionID: splits[i].ID,
				SellerID:     splits[i].SellerID,
				ActorUserID:  &buyerID,
				Type:         enums.LedgerEventTypeCommissionAccrued,
				AmountCents:  splits[i].CommissionCents,
				Metadata: map[string]any{
					"commission_rate":     splits[i].CommissionRate.String(),
					"seller_amount_cents": splits[i].SellerAmountCents,
				},
			}); err != nil {
				return err
			}
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{UserID: buyerID, Role: string(enums.RoleBuyer)},
			Data:          orderCreatedEvent(order, splits),
			OccurredAt:    now,
		})
	})
	if err != nil {
		return nil, err
	}

	return &CreateOrderResult{
		Success:       true,
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		TrackingToken: token,
	}, nil
}

// splitShares snapshots each seller's current rate onto a new commission row.
func (s *service) splitShares(ctx context.Context, tx *gorm.DB, shares []SellerShare, cfg settings.Settings) ([]models.CommissionTransaction, error) {
	if len(shares) == 0 {
		return nil, nil
	}
	ids := make([]uuid.UUID, 0, len(shares))
	for _, share := range shares {
		ids = append(ids, share.SellerID)
	}
	profiles, err := s.sellers.WithTx(tx).GetMany(ctx, ids)
	if err != nil {
		return nil, err
	}

	splits := make([]models.CommissionTransaction, 0, len(shares))
	for _, share := range shares {
		profile, ok := profiles[share.SellerID]
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "product seller is not registered").
				WithDetails(pkgerrors.ReasonDetails{Reason: pkgerrors.ReasonProductUnavailable, Field: "seller_id"})
		}
		rate := commission.ResolveRate(profile.CommissionRate, cfg.DefaultCommissionRate)
		commissionCents, sellerCents, err := commission.Split(share.SubtotalCents, rate)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "split commission")
		}
		splits = append(splits, models.CommissionTransaction{
			ID:                uuid.New(),
			SellerID:          share.SellerID,
			Currency:          cfg.Currency,
			TotalCents:        share.SubtotalCents,
			CommissionRate:    rate,
			CommissionCents:   commissionCents,
			SellerAmountCents: sellerCents,
			Status:            enums.CommissionStatusPending,
		})
	}
	return splits, nil
}

func (s *service) classifyWriteError(err error, reference string) error {
	if db.IsUniqueViolation(err, "payment_reference") {
		return paymentReplay(reference)
	}
	if db.IsCheckViolation(err, "stock") {
		return pkgerrors.NewWithReason(pkgerrors.CodeValidation, pkgerrors.ReasonInsufficientStock,
			"insufficient stock", pkgerrors.ReasonDetails{})
	}
	if pkgerrors.As(err) != nil {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "order write timed out")
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "persist order")
}

func (s *service) observeFailure(ctx context.Context, err error) {
	typed := pkgerrors.As(err)
	if typed == nil {
		return
	}
	if typed.Code() == pkgerrors.CodeValidation || typed.Code() == pkgerrors.CodeConflict {
		if s.metrics != nil {
			reason := string(pkgerrors.ReasonOf(err))
			if reason == "" {
				reason = "INVALID_INPUT"
			}
			s.metrics.IncValidationFailure(reason)
		}
		return
	}
	if s.logg != nil {
		s.logg.Error(ctx, "checkout failed", err)
	}
}

func paymentReplay(reference string) error {
	return pkgerrors.NewWithReason(pkgerrors.CodeConflict, pkgerrors.ReasonPaymentReplay,
		"payment reference already used", pkgerrors.ReasonDetails{Field: "payment_reference", Actual: reference})
}

func paymentRecord(order *models.Order, verification *gateway.Verification, now time.Time) *models.PaymentTransaction {
	record := &models.PaymentTransaction{
		ID:          uuid.New(),
		OrderID:     order.ID,
		Method:      order.PaymentMethod,
		Status:      order.PaymentStatus,
		Reference:   order.PaymentReference,
		AmountCents: order.TotalCents,
		Currency:    order.Currency,
		CreatedAt:   now,
	}
	if verification != nil {
		status := verification.GatewayStatus
		if status == "" {
			status = verification.Status
		}
		record.GatewayStatus = &status
		record.AmountCents = verification.AmountMinor
		record.VerifiedAt = &now
	}
	return record
}

func orderCreatedEvent(order *models.Order, splits []models.CommissionTransaction) payloads.OrderCreatedEvent {
	sellerIDs := make([]uuid.UUID, 0, len(splits))
	for _, split := range splits {
		sellerIDs = append(sellerIDs, split.SellerID)
	}
	return payloads.OrderCreatedEvent{
		OrderID:           order.ID,
		OrderNumber:       order.OrderNumber,
		Currency:          order.Currency,
		TotalCents:        order.TotalCents,
		CommissionCents:   order.CommissionCents,
		SellerAmountCents: order.SellerAmountCents,
		PaymentMethod:     order.PaymentMethod,
		CustomerName:      order.CustomerName,
		CustomerEmail:     order.CustomerEmail,
		CustomerPhone:     order.CustomerPhone,
		SellerIDs:         sellerIDs,
		CreatedAt:         order.CreatedAt,
	}
}

func normalizeInput(input CreateOrderInput) CreateOrderInput {
	input.CustomerName = strings.TrimSpace(input.CustomerName)
	input.CustomerEmail = strings.ToLower(strings.TrimSpace(input.CustomerEmail))
	input.CustomerPhone = strings.TrimSpace(input.CustomerPhone)
	input.PaymentReference = strings.TrimSpace(input.PaymentReference)
	return input
}

func validateContact(input CreateOrderInput) error {
	if input.CustomerName == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "customer_name is required").
			WithDetails(pkgerrors.ReasonDetails{Field: "customer_name"})
	}
	if _, err := mail.ParseAddress(input.CustomerEmail); err != nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "customer_email is invalid").
			WithDetails(pkgerrors.ReasonDetails{Field: "customer_email"})
	}
	if input.CustomerPhone == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "customer_phone is required").
			WithDetails(pkgerrors.ReasonDetails{Field: "customer_phone"})
	}
	if !input.PaymentMethod.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment_method is invalid").
			WithDetails(pkgerrors.ReasonDetails{Field: "payment_method"})
	}
	if input.PaymentMethod.RequiresVerification() && input.PaymentReference == "" {
		return pkgerrors.NewWithReason(pkgerrors.CodeValidation, pkgerrors.ReasonPaymentVerificationFailed,
			"payment_reference is required for gateway payments", pkgerrors.ReasonDetails{Field: "payment_reference"})
	}
	return nil
}
