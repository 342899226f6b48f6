package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-settlement/pkg/enums"
)

// PaymentTransaction records how an order was paid and what the gateway reported.
type PaymentTransaction struct {
	ID            uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	OrderID       uuid.UUID           `gorm:"column:order_id;type:uuid;not null;index"`
	Method        enums.PaymentMethod `gorm:"column:method;type:text;not null"`
	Status        enums.PaymentStatus `gorm:"column:status;type:text;not null"`
	Reference     *string             `gorm:"column:reference"`
	AmountCents   int64               `gorm:"column:amount_cents;not null"`
	Currency      string              `gorm:"column:currency;type:text;not null"`
	GatewayStatus *string             `gorm:"column:gateway_status"`
	VerifiedAt    *time.Time          `gorm:"column:verified_at"`
	CreatedAt     time.Time           `gorm:"column:created_at;autoCreateTime"`
}

func (PaymentTransaction) TableName() string { return "payment_transactions" }
