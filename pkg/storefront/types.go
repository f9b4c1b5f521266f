package storefront

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/pricing"
)

type Variant struct {
	ID         string            `json:"id"`
	SKU        string            `json:"sku,omitempty"`
	Price      int64             `json:"price"`
	OfferPrice int64             `json:"offerPrice"`
	Attributes map[string]string `json:"attributes,omitempty"`
	Images     []string          `json:"images,omitempty"`
	Stock      int               `json:"stock"`
}

type Product struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CategoryID  string    `json:"categoryId,omitempty"`
	BrandID     string    `json:"brandId,omitempty"`
	Price       int64     `json:"price"`
	OfferPrice  int64     `json:"offerPrice"`
	Images      []string  `json:"images"`
	Stock       int       `json:"stock"`
	IsActive    bool      `json:"isActive"`
	Variants    []Variant `json:"variants"`
}

func (p Product) pricing() pricing.Product {
	out := pricing.Product{
		ID:         p.ID,
		Name:       p.Name,
		OfferPrice: decimal.NewFromInt(p.OfferPrice),
		Variants:   make([]pricing.Variant, 0, len(p.Variants)),
	}
	for _, v := range p.Variants {
		out.Variants = append(out.Variants, pricing.Variant{
			ID:         v.ID,
			OfferPrice: decimal.NewFromInt(v.OfferPrice),
			Attributes: v.Attributes,
		})
	}
	return out
}

func catalogOf(products []Product) pricing.Catalog {
	list := make([]pricing.Product, 0, len(products))
	for _, p := range products {
		list = append(list, p.pricing())
	}
	return pricing.NewCatalog(list)
}

type Coupon struct {
	ID             string           `json:"id"`
	Code           string           `json:"code"`
	Description    string           `json:"description,omitempty"`
	Type           enums.CouponType `json:"type"`
	Value          int64            `json:"value"`
	MinOrderAmount int64            `json:"minOrderAmount"`
	StartDate      time.Time        `json:"startDate"`
	EndDate        time.Time        `json:"endDate"`
	IsActive       bool             `json:"isActive"`
}

func (c *Coupon) pricing() *pricing.Coupon {
	if c == nil {
		return nil
	}
	return &pricing.Coupon{Code: c.Code, Type: c.Type, Value: decimal.NewFromInt(c.Value)}
}

// Voucher is a coupon the signed-in user holds.
type Voucher struct {
	ID        string                 `json:"id"`
	Status    enums.UserCouponStatus `json:"status"`
	Source    enums.UserCouponSource `json:"source"`
	UsedAt    *time.Time             `json:"usedAt,omitempty"`
	CreatedAt time.Time              `json:"createdAt"`
	Coupon    Coupon                 `json:"coupon"`
}

// Usable reports whether the voucher can still be applied at now.
func (v Voucher) Usable(now time.Time) bool {
	return v.Status == enums.UserCouponUnused && now.Before(v.Coupon.EndDate)
}

type Address struct {
	ID        string `json:"id"`
	Recipient string `json:"recipient"`
	Phone     string `json:"phone"`
	Line      string `json:"line"`
	Ward      string `json:"ward,omitempty"`
	District  string `json:"district,omitempty"`
	City      string `json:"city"`
	IsDefault bool   `json:"isDefault"`
}

// OrderItem is one requested order line.
type OrderItem struct {
	Product  string `json:"product"`
	Variant  string `json:"variant,omitempty"`
	Quantity int    `json:"quantity"`
}

type OrderRequest struct {
	Address       string              `json:"address"`
	Items         []OrderItem         `json:"items"`
	PaymentMethod enums.PaymentMethod `json:"paymentMethod"`
	CouponCode    string              `json:"couponCode,omitempty"`
}

type OrderLine struct {
	ProductID string `json:"productId"`
	VariantID string `json:"variantId,omitempty"`
	Name      string `json:"name"`
	UnitPrice int64  `json:"unitPrice"`
	Quantity  int    `json:"quantity"`
	LineTotal int64  `json:"lineTotal"`
}

type Order struct {
	ID            string              `json:"id"`
	Items         []OrderLine         `json:"items"`
	Subtotal      int64               `json:"subtotal"`
	Discount      int64               `json:"discount"`
	Total         int64               `json:"total"`
	CouponCode    string              `json:"couponCode,omitempty"`
	PaymentMethod enums.PaymentMethod `json:"paymentMethod"`
	PaymentStatus enums.PaymentStatus `json:"paymentStatus"`
	Status        enums.OrderStatus   `json:"orderStatus"`
	CreatedAt     time.Time           `json:"createdAt"`
}

// PaymentReturn is the server's verdict on a gateway return.
type PaymentReturn struct {
	OrderID      string `json:"orderId"`
	ResponseCode string `json:"responseCode"`
	Message      string `json:"message"`
}

type Rank struct {
	Points           int64          `json:"points"`
	Tier             enums.RankTier `json:"tier"`
	SpinsRemaining   int            `json:"spinsRemaining"`
	TotalSpent       int64          `json:"totalSpent"`
	NextTier         enums.RankTier `json:"nextTier,omitempty"`
	PointsToNextTier int64          `json:"pointsToNextTier,omitempty"`
}

// Reward is one wheel segment.
type Reward struct {
	Index       int              `json:"index"`
	Name        string           `json:"name"`
	Type        enums.CouponType `json:"type,omitempty"`
	Value       int64            `json:"value,omitempty"`
	Probability int              `json:"probability"`
	Color       string           `json:"color"`
}

type SpinResult struct {
	Reward         Reward  `json:"reward"`
	RewardIndex    int     `json:"rewardIndex"`
	Coupon         *Coupon `json:"coupon"`
	SpinsRemaining int     `json:"spinsRemaining"`
}
