package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

// Order is a placed order with its priced lines.
type Order struct {
	ID              uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	UserID          uuid.UUID           `gorm:"column:user_id;type:uuid;not null;index"`
	ShippingAddress types.Address       `gorm:"column:shipping_address;type:jsonb;serializer:json;not null"`
	Items           []OrderItem         `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	Subtotal        decimal.Decimal     `gorm:"column:subtotal;type:numeric(14,2);not null"`
	Discount        decimal.Decimal     `gorm:"column:discount;type:numeric(14,2);not null;default:0"`
	Total           decimal.Decimal     `gorm:"column:total;type:numeric(14,2);not null"`
	CouponID        *uuid.UUID          `gorm:"column:coupon_id;type:uuid"`
	CouponCode      *string             `gorm:"column:coupon_code"`
	PaymentMethod   enums.PaymentMethod `gorm:"column:payment_method;not null"`
	PaymentStatus   enums.PaymentStatus `gorm:"column:payment_status;not null;default:'PENDING'"`
	Status          enums.OrderStatus   `gorm:"column:status;not null;default:'PENDING'"`
	PaymentRef      *string             `gorm:"column:payment_ref"`
	PaidAt          *time.Time          `gorm:"column:paid_at"`
	DeliveredAt     *time.Time          `gorm:"column:delivered_at"`
	CancelledAt     *time.Time          `gorm:"column:cancelled_at"`
	CreatedAt       time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	ensureID(&o.ID)
	return nil
}

// OrderItem is one priced line. Name and UnitPrice are copied at order time.
type OrderItem struct {
	ID         uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	OrderID    uuid.UUID         `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID  uuid.UUID         `gorm:"column:product_id;type:uuid;not null;index"`
	VariantID  *uuid.UUID        `gorm:"column:variant_id;type:uuid"`
	Name       string            `gorm:"column:name;not null"`
	Attributes map[string]string `gorm:"column:attributes;type:jsonb;serializer:json"`
	UnitPrice  decimal.Decimal   `gorm:"column:unit_price;type:numeric(14,2);not null"`
	Quantity   int               `gorm:"column:quantity;not null"`
	LineTotal  decimal.Decimal   `gorm:"column:line_total;type:numeric(14,2);not null"`
	CreatedAt  time.Time         `gorm:"column:created_at;autoCreateTime"`
}

func (i *OrderItem) BeforeCreate(*gorm.DB) error {
	ensureID(&i.ID)
	return nil
}
