package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-settlement/pkg/enums"
)

// CommissionTransaction is the platform/seller split of one seller's share of an
// order. Its pending -> paid transition is the seller payout.
type CommissionTransaction struct {
	ID                uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	OrderID           uuid.UUID              `gorm:"column:order_id;type:uuid;not null;uniqueIndex:ux_commission_order_seller"`
	SellerID          uuid.UUID              `gorm:"column:seller_id;type:uuid;not null;uniqueIndex:ux_commission_order_seller"`
	Currency          string                 `gorm:"column:currency;type:text;not null"`
	TotalCents        int64                  `gorm:"column:total_cents;not null"`
	CommissionRate    decimal.Decimal        `gorm:"column:commission_rate;type:numeric(5,2);not null"`
	CommissionCents   int64                  `gorm:"column:commission_cents;not null"`
	SellerAmountCents int64                  `gorm:"column:seller_amount_cents;not null"`
	Status            enums.CommissionStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	PaymentReference  *string                `gorm:"column:payment_reference"`
	RejectionReason   *string                `gorm:"column:rejection_reason"`
	PaidAt            *time.Time             `gorm:"column:paid_at"`
	RejectedAt        *time.Time             `gorm:"column:rejected_at"`
	CreatedAt         time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}

func (CommissionTransaction) TableName() string { return "commission_transactions" }
