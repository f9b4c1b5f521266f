package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// UserRank is the loyalty state of one user.
type UserRank struct {
	UserID         uuid.UUID       `gorm:"column:user_id;type:uuid;primaryKey"`
	Points         int64           `gorm:"column:points;not null;default:0"`
	Tier           enums.RankTier  `gorm:"column:tier;not null;default:'MEMBER'"`
	SpinsRemaining int             `gorm:"column:spins_remaining;not null;default:0"`
	TotalSpent     decimal.Decimal `gorm:"column:total_spent;type:numeric(14,2);not null;default:0"`
	CreatedAt      time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

// SpinHistory records one wheel spin and what it granted.
type SpinHistory struct {
	ID          uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	UserID      uuid.UUID  `gorm:"column:user_id;type:uuid;not null;index"`
	RewardIndex int        `gorm:"column:reward_index;not null"`
	RewardName  string     `gorm:"column:reward_name;not null"`
	CouponID    *uuid.UUID `gorm:"column:coupon_id;type:uuid"`
	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime"`
}

func (s *SpinHistory) BeforeCreate(*gorm.DB) error {
	ensureID(&s.ID)
	return nil
}
