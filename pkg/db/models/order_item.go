package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderItem snapshots one purchased product at checkout time. Insert-only.
// CommissionRate is the seller's rate when the order was written.
type OrderItem struct {
	ID             uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	OrderID        uuid.UUID        `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID      uuid.UUID        `gorm:"column:product_id;type:uuid;not null"`
	SellerID       *uuid.UUID       `gorm:"column:seller_id;type:uuid"`
	ProductName    string           `gorm:"column:product_name;not null"`
	Quantity       int              `gorm:"column:quantity;not null"`
	UnitPriceCents int64            `gorm:"column:unit_price_cents;not null"`
	LineTotalCents int64            `gorm:"column:line_total_cents;not null"`
	CommissionRate *decimal.Decimal `gorm:"column:commission_rate;type:numeric(5,2)"`
	CreatedAt      time.Time        `gorm:"column:created_at;autoCreateTime"`
}

func (OrderItem) TableName() string { return "order_items" }
