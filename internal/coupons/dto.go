package coupons

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/pricing"
)

type CouponDTO struct {
	ID             uuid.UUID        `json:"id"`
	Code           string           `json:"code"`
	Description    string           `json:"description,omitempty"`
	Type           enums.CouponType `json:"type"`
	Value          int64            `json:"value"`
	MinOrderAmount int64            `json:"minOrderAmount"`
	StartDate      time.Time        `json:"startDate"`
	EndDate        time.Time        `json:"endDate"`
	UsageLimit     int              `json:"usageLimit"`
	UsedCount      int              `json:"usedCount"`
	IsActive       bool             `json:"isActive"`
}

// VoucherDTO is a coupon held by the caller.
type VoucherDTO struct {
	ID        uuid.UUID              `json:"id"`
	Status    enums.UserCouponStatus `json:"status"`
	Source    enums.UserCouponSource `json:"source"`
	UsedAt    *time.Time             `json:"usedAt,omitempty"`
	CreatedAt time.Time              `json:"createdAt"`
	Coupon    CouponDTO              `json:"coupon"`
}

// CouponInput is the seller payload for creating or updating a coupon.
type CouponInput struct {
	Code           string    `json:"code" validate:"required,max=40"`
	Description    string    `json:"description" validate:"max=255"`
	Type           string    `json:"type" validate:"required,oneof=PERCENTAGE FIXED_AMOUNT"`
	Value          int64     `json:"value" validate:"gt=0"`
	MinOrderAmount int64     `json:"minOrderAmount" validate:"gte=0"`
	StartDate      time.Time `json:"startDate" validate:"required"`
	EndDate        time.Time `json:"endDate" validate:"required"`
	UsageLimit     int       `json:"usageLimit" validate:"gte=0"`
	IsActive       *bool     `json:"isActive"`
}

// Reward describes a coupon minted for a wheel win.
type Reward struct {
	Type      enums.CouponType
	Value     int64
	ValidDays int
	Label     string
}

// ToCouponDTO converts a stored coupon to its wire form.
func ToCouponDTO(c models.Coupon) CouponDTO {
	return CouponDTO{
		ID:             c.ID,
		Code:           c.Code,
		Description:    c.Description,
		Type:           c.Type,
		Value:          pricing.VND(c.Value),
		MinOrderAmount: pricing.VND(c.MinOrderAmount),
		StartDate:      c.StartDate,
		EndDate:        c.EndDate,
		UsageLimit:     c.UsageLimit,
		UsedCount:      c.UsedCount,
		IsActive:       c.IsActive,
	}
}

func toVoucherDTO(v models.UserCoupon) VoucherDTO {
	out := VoucherDTO{
		ID:        v.ID,
		Status:    v.Status,
		Source:    v.Source,
		UsedAt:    v.UsedAt,
		CreatedAt: v.CreatedAt,
	}
	if v.Coupon != nil {
		out.Coupon = ToCouponDTO(*v.Coupon)
	}
	return out
}

// PricingCoupon is the view of c the pricing engine needs.
func PricingCoupon(c CouponDTO) *pricing.Coupon {
	return &pricing.Coupon{Code: c.Code, Type: c.Type, Value: decimalFromVND(c.Value)}
}
