package models

import (
	"time"

	"github.com/google/uuid"
)

// Cart is the persisted cart map of one user, keyed "productId|variantId".
type Cart struct {
	UserID    uuid.UUID      `gorm:"column:user_id;type:uuid;primaryKey"`
	Items     map[string]int `gorm:"column:items;type:jsonb;serializer:json;not null"`
	UpdatedAt time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}
