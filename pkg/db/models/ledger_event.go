package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-settlement/pkg/enums"
)

// LedgerEvent records an immutable settlement money movement.
type LedgerEvent struct {
	ID                      uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	OrderID                 uuid.UUID             `gorm:"column:order_id;type:uuid;not null;index"`
	CommissionTransactionID uuid.UUID             `gorm:"column:commission_transaction_id;type:uuid;not null;index"`
	SellerID                uuid.UUID             `gorm:"column:seller_id;type:uuid;not null"`
	ActorUserID             *uuid.UUID            `gorm:"column:actor_user_id;type:uuid"`
	Type                    enums.LedgerEventType `gorm:"column:type;type:text;not null"`
	AmountCents             int64                 `gorm:"column:amount_cents;not null"`
	Metadata                json.RawMessage       `gorm:"column:metadata;type:jsonb"`
	CreatedAt               time.Time             `gorm:"column:created_at;autoCreateTime"`
}

func (LedgerEvent) TableName() string { return "ledger_events" }
