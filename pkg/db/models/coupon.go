package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// Coupon is a discount definition. UsageLimit 0 means unlimited.
type Coupon struct {
	ID             uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	Code           string           `gorm:"column:code;not null;uniqueIndex"`
	Description    string           `gorm:"column:description"`
	Type           enums.CouponType `gorm:"column:type;not null"`
	Value          decimal.Decimal  `gorm:"column:value;type:numeric(14,2);not null"`
	MinOrderAmount decimal.Decimal  `gorm:"column:min_order_amount;type:numeric(14,2);not null;default:0"`
	StartDate      time.Time        `gorm:"column:start_date;not null"`
	EndDate        time.Time        `gorm:"column:end_date;not null"`
	UsageLimit     int              `gorm:"column:usage_limit;not null;default:0"`
	UsedCount      int              `gorm:"column:used_count;not null;default:0"`
	IsActive       bool             `gorm:"column:is_active;not null"`
	CreatedAt      time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

func (c *Coupon) BeforeCreate(*gorm.DB) error {
	ensureID(&c.ID)
	return nil
}

// UserCoupon is a voucher: one user's claim on a coupon.
type UserCoupon struct {
	ID        uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	UserID    uuid.UUID              `gorm:"column:user_id;type:uuid;not null;index"`
	CouponID  uuid.UUID              `gorm:"column:coupon_id;type:uuid;not null;index"`
	Coupon    *Coupon                `gorm:"foreignKey:CouponID"`
	Status    enums.UserCouponStatus `gorm:"column:status;not null;default:'UNUSED'"`
	Source    enums.UserCouponSource `gorm:"column:source;not null;default:'GRANT'"`
	OrderID   *uuid.UUID             `gorm:"column:order_id;type:uuid"`
	UsedAt    *time.Time             `gorm:"column:used_at"`
	CreatedAt time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}

func (u *UserCoupon) BeforeCreate(*gorm.DB) error {
	ensureID(&u.ID)
	return nil
}
