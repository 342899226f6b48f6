package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// SiteSetting is one immutable version of the storefront configuration.
type SiteSetting struct {
	ID        uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	Version   int64           `gorm:"column:version;not null;uniqueIndex"`
	Payload   json.RawMessage `gorm:"column:payload;type:jsonb;not null"`
	CreatedBy *uuid.UUID      `gorm:"column:created_by;type:uuid"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (SiteSetting) TableName() string { return "site_settings" }
