package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-settlement/pkg/enums"
	"github.com/angelmondragon/storefront-settlement/pkg/types"
)

// OrderCreatedEvent is emitted when an order and its commission split commit.
type OrderCreatedEvent struct {
	OrderID           uuid.UUID           `json:"order_id"`
	OrderNumber       string              `json:"order_number"`
	Currency          string              `json:"currency"`
	TotalCents        int64               `json:"total_cents"`
	CommissionCents   int64               `json:"commission_cents"`
	SellerAmountCents int64               `json:"seller_amount_cents"`
	PaymentMethod     enums.PaymentMethod `json:"payment_method"`
	CustomerName      string              `json:"customer_name"`
	CustomerEmail     string              `json:"customer_email"`
	CustomerPhone     string              `json:"customer_phone"`
	SellerIDs         []uuid.UUID         `json:"seller_ids"`
	CreatedAt         time.Time           `json:"created_at"`
}

// OrderStatusChangedEvent carries everything the buyer notification needs.
type OrderStatusChangedEvent struct {
	OrderID         uuid.UUID              `json:"order_id"`
	OrderNumber     string                 `json:"order_number"`
	PreviousStatus  enums.OrderStatus      `json:"previous_status"`
	NewStatus       enums.OrderStatus      `json:"new_status"`
	CustomerName    string                 `json:"customer_name"`
	CustomerEmail   string                 `json:"customer_email"`
	CustomerPhone   string                 `json:"customer_phone"`
	ShippingAddress *types.ShippingAddress `json:"shipping_address,omitempty"`
	ChangedAt       time.Time              `json:"changed_at"`
}

// PayoutPaidEvent is emitted when an admin settles a commission transaction.
type PayoutPaidEvent struct {
	CommissionID      uuid.UUID `json:"commission_id"`
	OrderID           uuid.UUID `json:"order_id"`
	SellerID          uuid.UUID `json:"seller_id"`
	Currency          string    `json:"currency"`
	TotalCents        int64     `json:"total_cents"`
	CommissionCents   int64     `json:"commission_cents"`
	SellerAmountCents int64     `json:"seller_amount_cents"`
	PaymentReference  string    `json:"payment_reference"`
	PaidAt            time.Time `json:"paid_at"`
}

// PayoutRejectedEvent is emitted when an admin rejects a pending payout.
type PayoutRejectedEvent struct {
	CommissionID uuid.UUID `json:"commission_id"`
	OrderID      uuid.UUID `json:"order_id"`
	SellerID     uuid.UUID `json:"seller_id"`
	Reason       string    `json:"reason,omitempty"`
	RejectedAt   time.Time `json:"rejected_at"`
}

// CommissionBackfilledEvent reports a split written by the reconciliation job.
type CommissionBackfilledEvent struct {
	CommissionID      uuid.UUID `json:"commission_id"`
	OrderID           uuid.UUID `json:"order_id"`
	SellerID          uuid.UUID `json:"seller_id"`
	CommissionCents   int64     `json:"commission_cents"`
	SellerAmountCents int64     `json:"seller_amount_cents"`
}
