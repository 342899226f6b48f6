package models

import (
	"time"

	"github.com/google/uuid"
)

// PlatformWallet mirrors commission collected and funds held for seller payouts.
type PlatformWallet struct {
	ID                       uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Currency                 string    `gorm:"column:currency;type:text;not null;uniqueIndex"`
	TotalCommissionCents     int64     `gorm:"column:total_commission_cents;not null;default:0"`
	WithdrawableBalanceCents int64     `gorm:"column:withdrawable_balance_cents;not null;default:0"`
	UpdatedAt                time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (PlatformWallet) TableName() string { return "platform_wallets" }
