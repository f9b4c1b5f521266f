package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Product is a catalog listing. OfferPrice is what customers pay when no
// variant is selected; Price is the list price shown struck through.
type Product struct {
	ID          uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	Name        string           `gorm:"column:name;not null"`
	Description string           `gorm:"column:description"`
	CategoryID  *uuid.UUID       `gorm:"column:category_id;type:uuid;index"`
	BrandID     *uuid.UUID       `gorm:"column:brand_id;type:uuid;index"`
	Price       decimal.Decimal  `gorm:"column:price;type:numeric(14,2);not null"`
	OfferPrice  decimal.Decimal  `gorm:"column:offer_price;type:numeric(14,2);not null"`
	Images      []string         `gorm:"column:images;type:jsonb;serializer:json"`
	Stock       int              `gorm:"column:stock;not null;default:0"`
	IsActive    bool             `gorm:"column:is_active;not null"`
	Variants    []ProductVariant `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	CreatedAt   time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Product) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	return nil
}

// ProductVariant is a purchasable configuration of a product.
type ProductVariant struct {
	ID         uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	ProductID  uuid.UUID         `gorm:"column:product_id;type:uuid;not null;index"`
	SKU        string            `gorm:"column:sku"`
	Price      decimal.Decimal   `gorm:"column:price;type:numeric(14,2);not null"`
	OfferPrice decimal.Decimal   `gorm:"column:offer_price;type:numeric(14,2);not null"`
	Attributes map[string]string `gorm:"column:attributes;type:jsonb;serializer:json"`
	Images     []string          `gorm:"column:images;type:jsonb;serializer:json"`
	Stock      int               `gorm:"column:stock;not null;default:0"`
	CreatedAt  time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

func (v *ProductVariant) BeforeCreate(*gorm.DB) error {
	ensureID(&v.ID)
	return nil
}
