package orders

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
	"github.com/angelmondragon/storefront-backend/pkg/pricing"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

// ItemInput is one requested line. Variant is empty for products without variants.
type ItemInput struct {
	ProductID uuid.UUID  `json:"product" validate:"required"`
	VariantID *uuid.UUID `json:"variant,omitempty"`
	Quantity  int        `json:"quantity" validate:"gte=0"`
}

// CreateOrderInput is the checkout submission.
type CreateOrderInput struct {
	AddressID     uuid.UUID   `json:"address" validate:"required"`
	Items         []ItemInput `json:"items" validate:"required,dive"`
	PaymentMethod string      `json:"paymentMethod" validate:"required"`
	CouponCode    *string     `json:"couponCode,omitempty"`
}

type UpdateStatusInput struct {
	Status string `json:"status" validate:"required"`
	Reason string `json:"reason" validate:"max=255"`
}

type OrderItemDTO struct {
	ID         uuid.UUID         `json:"id"`
	ProductID  uuid.UUID         `json:"productId"`
	VariantID  *uuid.UUID        `json:"variantId,omitempty"`
	Name       string            `json:"name"`
	Attributes map[string]string `json:"attributes,omitempty"`
	UnitPrice  int64             `json:"unitPrice"`
	Quantity   int               `json:"quantity"`
	LineTotal  int64             `json:"lineTotal"`
}

type OrderDTO struct {
	ID              uuid.UUID           `json:"id"`
	UserID          uuid.UUID           `json:"userId"`
	ShippingAddress types.Address       `json:"shippingAddress"`
	Items           []OrderItemDTO      `json:"items"`
	Subtotal        int64               `json:"subtotal"`
	Discount        int64               `json:"discount"`
	Total           int64               `json:"total"`
	CouponCode      *string             `json:"couponCode,omitempty"`
	PaymentMethod   enums.PaymentMethod `json:"paymentMethod"`
	PaymentStatus   enums.PaymentStatus `json:"paymentStatus"`
	Status          enums.OrderStatus   `json:"orderStatus"`
	PaidAt          *time.Time          `json:"paidAt,omitempty"`
	DeliveredAt     *time.Time          `json:"deliveredAt,omitempty"`
	CancelledAt     *time.Time          `json:"cancelledAt,omitempty"`
	CreatedAt       time.Time           `json:"createdAt"`
}

// OrderFeed is a cursor page of the caller's orders, newest first.
type OrderFeed struct {
	Orders     []OrderDTO `json:"orders"`
	NextCursor string     `json:"nextCursor,omitempty"`
}

// SellerQuery filters the back-office order list.
type SellerQuery struct {
	Status        *enums.OrderStatus
	PaymentStatus *enums.PaymentStatus
	Page          pagination.Page
}

type SellerPage struct {
	Orders     []OrderDTO          `json:"orders"`
	Pagination pagination.PageMeta `json:"pagination"`
}

type TopProduct struct {
	ProductID uuid.UUID `json:"productId"`
	Name      string    `json:"name"`
	Quantity  int64     `json:"quantity"`
	Revenue   int64     `json:"revenue"`
}

// Dashboard summarizes sales for the seller back office.
type Dashboard struct {
	TotalOrders    int64            `json:"totalOrders"`
	OrdersByStatus map[string]int64 `json:"ordersByStatus"`
	PaidRevenue    int64            `json:"paidRevenue"`
	PendingPayment int64            `json:"pendingPayment"`
	TopProducts    []TopProduct     `json:"topProducts"`
}

// ToOrderDTO converts a stored order and its items to the wire form.
func ToOrderDTO(o models.Order) OrderDTO {
	items := make([]OrderItemDTO, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, OrderItemDTO{
			ID:         it.ID,
			ProductID:  it.ProductID,
			VariantID:  it.VariantID,
			Name:       it.Name,
			Attributes: it.Attributes,
			UnitPrice:  pricing.VND(it.UnitPrice),
			Quantity:   it.Quantity,
			LineTotal:  pricing.VND(it.LineTotal),
		})
	}
	return OrderDTO{
		ID:              o.ID,
		UserID:          o.UserID,
		ShippingAddress: o.ShippingAddress,
		Items:           items,
		Subtotal:        pricing.VND(o.Subtotal),
		Discount:        pricing.VND(o.Discount),
		Total:           pricing.VND(o.Total),
		CouponCode:      o.CouponCode,
		PaymentMethod:   o.PaymentMethod,
		PaymentStatus:   o.PaymentStatus,
		Status:          o.Status,
		PaidAt:          o.PaidAt,
		DeliveredAt:     o.DeliveredAt,
		CancelledAt:     o.CancelledAt,
		CreatedAt:       o.CreatedAt,
	}
}
