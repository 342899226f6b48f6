package models

import (
	"time"

	"github.com/google/uuid"
)

// Product is the settlement read model of a catalog listing. Only stock is
// written by this service.
type Product struct {
	ID            uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	SellerID      *uuid.UUID `gorm:"column:seller_id;type:uuid"`
	Name          string     `gorm:"column:name;not null"`
	PriceCents    int64      `gorm:"column:price_cents;not null"`
	StockQuantity int        `gorm:"column:stock_quantity;not null;default:0"`
	IsActive      bool       `gorm:"column:is_active;not null;default:true"`
	CreatedAt     time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (Product) TableName() string { return "products" }
