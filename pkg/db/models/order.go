package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-settlement/pkg/enums"
	"github.com/angelmondragon/storefront-settlement/pkg/types"
)

// Order is one buyer checkout with snapshotted line items and totals.
type Order struct {
	ID                uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	OrderNumber       string                 `gorm:"column:order_number;not null;uniqueIndex:ux_orders_order_number"`
	BuyerUserID       uuid.UUID              `gorm:"column:buyer_user_id;type:uuid;not null"`
	CustomerName      string                 `gorm:"column:customer_name;not null"`
	CustomerEmail     string                 `gorm:"column:customer_email;not null"`
	CustomerPhone     string                 `gorm:"column:customer_phone;not null"`
	ShippingAddress   *types.ShippingAddress `gorm:"column:shipping_address;type:jsonb;serializer:json"`
	PaymentMethod     enums.PaymentMethod    `gorm:"column:payment_method;type:text;not null"`
	PaymentStatus     enums.PaymentStatus    `gorm:"column:payment_status;type:text;not null;default:'pending'"`
	Status            enums.OrderStatus      `gorm:"column:status;type:text;not null;default:'pending'"`
	Currency          string                 `gorm:"column:currency;type:text;not null"`
	SubtotalCents     int64                  `gorm:"column:subtotal_cents;not null"`
	ShippingFeeCents  int64                  `gorm:"column:shipping_fee_cents;not null;default:0"`
	TaxCents          int64                  `gorm:"column:tax_cents;not null;default:0"`
	DiscountCents     int64                  `gorm:"column:discount_cents;not null;default:0"`
	TotalCents        int64                  `gorm:"column:total_cents;not null"`
	PaymentReference  *string                `gorm:"column:payment_reference;uniqueIndex:ux_orders_payment_reference"`
	CommissionCents   int64                  `gorm:"column:commission_cents;not null;default:0"`
	SellerAmountCents int64                  `gorm:"column:seller_amount_cents;not null;default:0"`
	SellerID          *uuid.UUID             `gorm:"column:seller_id;type:uuid"`
	TrackingTokenHash string                 `gorm:"column:tracking_token_hash;not null;uniqueIndex:ux_orders_tracking_token_hash"`
	Items             []OrderItem            `gorm:"foreignKey:OrderID;constraint:OnDelete:RESTRICT"`
	CreatedAt         time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}

func (Order) TableName() string { return "orders" }

// PaymentLocked reports whether the order's total and reference may no longer change.
func (o *Order) PaymentLocked() bool {
	return o != nil && o.PaymentStatus == enums.PaymentStatusCompleted
}
