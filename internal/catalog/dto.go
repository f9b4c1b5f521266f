package catalog

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
	"github.com/angelmondragon/storefront-backend/pkg/pricing"
)

// Sort orders accepted by product filtering.
const (
	SortNewest    = "newest"
	SortPriceAsc  = "price_asc"
	SortPriceDesc = "price_desc"
)

// ProductQuery drives list, filter and search.
type ProductQuery struct {
	CategoryID      *uuid.UUID
	BrandID         *uuid.UUID
	MinPrice        *int64
	MaxPrice        *int64
	Search          string
	Sort            string
	Page            pagination.Page
	IncludeInactive bool
}

type VariantDTO struct {
	ID         uuid.UUID         `json:"id"`
	SKU        string            `json:"sku,omitempty"`
	Price      int64             `json:"price"`
	OfferPrice int64             `json:"offerPrice"`
	Attributes map[string]string `json:"attributes,omitempty"`
	Images     []string          `json:"images,omitempty"`
	Stock      int               `json:"stock"`
}

type ProductDTO struct {
	ID          uuid.UUID    `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	CategoryID  *uuid.UUID   `json:"categoryId,omitempty"`
	BrandID     *uuid.UUID   `json:"brandId,omitempty"`
	Price       int64        `json:"price"`
	OfferPrice  int64        `json:"offerPrice"`
	Images      []string     `json:"images"`
	Stock       int          `json:"stock"`
	IsActive    bool         `json:"isActive"`
	Variants    []VariantDTO `json:"variants"`
	CreatedAt   time.Time    `json:"createdAt"`
}

type ProductPage struct {
	Products   []ProductDTO        `json:"products"`
	Pagination pagination.PageMeta `json:"pagination"`
}

// VariantInput is a variant as submitted by the seller. Variants are replaced
// as a set on update.
type VariantInput struct {
	SKU        string            `json:"sku"`
	Price      int64             `json:"price" validate:"gte=0"`
	OfferPrice int64             `json:"offerPrice" validate:"gte=0"`
	Attributes map[string]string `json:"attributes"`
	Images     []string          `json:"images"`
	Stock      int               `json:"stock" validate:"gte=0"`
}

type ProductInput struct {
	Name        string         `json:"name" validate:"required,max=200"`
	Description string         `json:"description"`
	CategoryID  *uuid.UUID     `json:"categoryId"`
	BrandID     *uuid.UUID     `json:"brandId"`
	Price       int64          `json:"price" validate:"gte=0"`
	OfferPrice  int64          `json:"offerPrice" validate:"gte=0"`
	Images      []string       `json:"images"`
	Stock       int            `json:"stock" validate:"gte=0"`
	IsActive    *bool          `json:"isActive"`
	Variants    []VariantInput `json:"variants" validate:"dive"`
}

type CategoryDTO struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description string    `json:"description,omitempty"`
}

type CategoryInput struct {
	Name        string `json:"name" validate:"required,max=120"`
	Description string `json:"description"`
}

type BrandDTO struct {
	ID      uuid.UUID `json:"id"`
	Name    string    `json:"name"`
	Slug    string    `json:"slug"`
	LogoURL string    `json:"logoUrl,omitempty"`
}

type BrandInput struct {
	Name    string `json:"name" validate:"required,max=120"`
	LogoURL string `json:"logoUrl"`
}

type AttributeDTO struct {
	ID     uuid.UUID `json:"id"`
	Name   string    `json:"name"`
	Values []string  `json:"values"`
}

type AttributeInput struct {
	Name   string   `json:"name" validate:"required,max=120"`
	Values []string `json:"values" validate:"required,min=1,dive,required"`
}

func toProductDTO(p models.Product) ProductDTO {
	variants := make([]VariantDTO, 0, len(p.Variants))
	for _, v := range p.Variants {
		variants = append(variants, VariantDTO{
			ID:         v.ID,
			SKU:        v.SKU,
			Price:      pricing.VND(v.Price),
			OfferPrice: pricing.VND(v.OfferPrice),
			Attributes: v.Attributes,
			Images:     v.Images,
			Stock:      v.Stock,
		})
	}
	images := p.Images
	if images == nil {
		images = []string{}
	}
	return ProductDTO{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		CategoryID:  p.CategoryID,
		BrandID:     p.BrandID,
		Price:       pricing.VND(p.Price),
		OfferPrice:  pricing.VND(p.OfferPrice),
		Images:      images,
		Stock:       p.Stock,
		IsActive:    p.IsActive,
		Variants:    variants,
		CreatedAt:   p.CreatedAt,
	}
}

// toPricingProduct is the view the pricing engine resolves cart keys against.
func toPricingProduct(p models.Product) pricing.Product {
	out := pricing.Product{
		ID:         p.ID.String(),
		Name:       p.Name,
		OfferPrice: p.OfferPrice,
	}
	for _, v := range p.Variants {
		out.Variants = append(out.Variants, pricing.Variant{
			ID:         v.ID.String(),
			OfferPrice: v.OfferPrice,
			Attributes: v.Attributes,
		})
	}
	return out
}

func (in ProductInput) toModel() models.Product {
	offer := in.OfferPrice
	if offer == 0 {
		offer = in.Price
	}
	active := true
	if in.IsActive != nil {
		active = *in.IsActive
	}
	p := models.Product{
		Name:        in.Name,
		Description: in.Description,
		CategoryID:  in.CategoryID,
		BrandID:     in.BrandID,
		Price:       decimal.NewFromInt(in.Price),
		OfferPrice:  decimal.NewFromInt(offer),
		Images:      in.Images,
		Stock:       in.Stock,
		IsActive:    active,
	}
	for _, v := range in.Variants {
		vOffer := v.OfferPrice
		if vOffer == 0 {
			vOffer = v.Price
		}
		p.Variants = append(p.Variants, models.ProductVariant{
			SKU:        v.SKU,
			Price:      decimal.NewFromInt(v.Price),
			OfferPrice: decimal.NewFromInt(vOffer),
			Attributes: v.Attributes,
			Images:     v.Images,
			Stock:      v.Stock,
		})
	}
	return p
}
