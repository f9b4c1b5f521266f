package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// Line is one resolved cart line.
type Line struct {
	Key        CartKey
	ProductID  string
	VariantID  string
	Name       string
	Attributes map[string]string
	UnitPrice  decimal.Decimal
	Quantity   int
	LineTotal  decimal.Decimal
}

// Coupon is the part of a coupon that affects the price.
type Coupon struct {
	Code  string
	Type  enums.CouponType
	Value decimal.Decimal
}

// Summary is the full price breakdown of a cart.
type Summary struct {
	Count    int
	Subtotal int64
	Discount int64
	Total    int64
}

// Amount is the floored sum of offer price times quantity. Lines whose product
// or variant is missing from the catalog contribute nothing; see StaleKeys.
func Amount(cart Cart, catalog Catalog) int64 {
	sum := decimal.Zero
	for key, qty := range cart {
		if qty <= 0 {
			continue
		}
		_, _, price, ok := catalog.resolve(key)
		if !ok {
			continue
		}
		sum = sum.Add(price.Mul(decimal.NewFromInt(int64(qty))))
	}
	return sum.Floor().IntPart()
}

// StaleKeys lists positive lines that no longer resolve against the catalog.
func StaleKeys(cart Cart, catalog Catalog) []CartKey {
	var stale []CartKey
	for _, key := range cart.Keys() {
		if _, _, _, ok := catalog.resolve(key); !ok {
			stale = append(stale, key)
		}
	}
	return stale
}

// PruneStale returns a copy of cart without the stale lines.
func PruneStale(cart Cart, catalog Catalog) Cart {
	out := cart.Clone()
	for _, key := range StaleKeys(out, catalog) {
		delete(out, key)
	}
	return out
}

// Lines resolves every positive, non-stale line in key order.
func Lines(cart Cart, catalog Catalog) []Line {
	keys := cart.Keys()
	lines := make([]Line, 0, len(keys))
	for _, key := range keys {
		p, v, price, ok := catalog.resolve(key)
		if !ok {
			continue
		}
		qty := cart[key]
		line := Line{
			Key:       key,
			ProductID: p.ID,
			Name:      p.Name,
			UnitPrice: price,
			Quantity:  qty,
			LineTotal: price.Mul(decimal.NewFromInt(int64(qty))),
		}
		if v != nil {
			line.VariantID = v.ID
			line.Attributes = v.Attributes
		}
		lines = append(lines, line)
	}
	return lines
}

// Discount applies coupon to subtotal. PERCENTAGE takes floor(s*v/100);
// FIXED_AMOUNT takes v as is, even on an empty cart; Total does the
// clamping. A nil coupon or unknown type discounts nothing.
func Discount(subtotal int64, coupon *Coupon) int64 {
	if coupon == nil {
		return 0
	}
	switch coupon.Type {
	case enums.CouponTypePercentage:
		d := decimal.NewFromInt(subtotal).Mul(coupon.Value).Div(decimal.NewFromInt(100))
		return nonNegative(d.Floor().IntPart())
	case enums.CouponTypeFixedAmount:
		return nonNegative(coupon.Value.Floor().IntPart())
	default:
		return 0
	}
}

// Total never goes below zero, even when a fixed discount exceeds the subtotal.
func Total(subtotal, discount int64) int64 {
	if discount >= subtotal {
		return 0
	}
	return subtotal - discount
}

// Summarize prices the cart with an optional coupon.
func Summarize(cart Cart, catalog Catalog, coupon *Coupon) Summary {
	subtotal := Amount(cart, catalog)
	discount := Discount(subtotal, coupon)
	return Summary{
		Count:    Count(cart),
		Subtotal: subtotal,
		Discount: discount,
		Total:    Total(subtotal, discount),
	}
}

func nonNegative(v int64) int64 {
	if v < 0 {
		return 0
	}
	return v
}
