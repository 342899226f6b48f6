package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SellerProfile holds a seller's commission configuration, cumulative payout
// counters and payout destination.
type SellerProfile struct {
	ID                   uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	UserID               uuid.UUID        `gorm:"column:user_id;type:uuid;not null;uniqueIndex"`
	DisplayName          string           `gorm:"column:display_name;not null"`
	CommissionRate       *decimal.Decimal `gorm:"column:commission_rate;type:numeric(5,2)"`
	TotalSalesCents      int64            `gorm:"column:total_sales_cents;not null;default:0"`
	TotalCommissionCents int64            `gorm:"column:total_commission_cents;not null;default:0"`
	BankName             *string          `gorm:"column:bank_name"`
	BankCode             *string          `gorm:"column:bank_code"`
	AccountNumber        *string          `gorm:"column:account_number"`
	AccountName          *string          `gorm:"column:account_name"`
	BankVerifiedAt       *time.Time       `gorm:"column:bank_verified_at"`
	CreatedAt            time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

func (SellerProfile) TableName() string { return "seller_profiles" }
