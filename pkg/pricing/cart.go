// Package pricing computes cart counts, subtotals, discounts and totals. The
// same functions price the storefront display and the server-side order, so
// the amount a customer sees is the amount they are charged.
package pricing

import (
	"errors"
	"sort"
	"strings"
)

const keySeparator = "|"

// ErrNegativeQuantity is returned when a cart line is set below zero.
var ErrNegativeQuantity = errors.New("quantity must not be negative")

// CartKey identifies a cart line as "productId|variantId". The variant part is
// empty for products without variants.
type CartKey string

// Key builds the cart key for a product and optional variant.
func Key(productID, variantID string) CartKey {
	return CartKey(productID + keySeparator + variantID)
}

// Split returns the product and variant ids. A key without a separator is
// treated as a bare product id.
func (k CartKey) Split() (productID, variantID string) {
	productID, variantID, _ = strings.Cut(string(k), keySeparator)
	return productID, variantID
}

// Cart maps line keys to quantities. Absent keys and zero quantities mean the
// same thing.
type Cart map[CartKey]int

// Set writes qty for key. Zero removes the line.
func Set(cart Cart, key CartKey, qty int) error {
	if qty < 0 {
		return ErrNegativeQuantity
	}
	if qty == 0 {
		delete(cart, key)
		return nil
	}
	cart[key] = qty
	return nil
}

// Clone returns an independent copy with zero and negative lines dropped.
func (c Cart) Clone() Cart {
	out := make(Cart, len(c))
	for k, q := range c {
		if q > 0 {
			out[k] = q
		}
	}
	return out
}

// Keys returns the keys with a positive quantity in stable order.
func (c Cart) Keys() []CartKey {
	keys := make([]CartKey, 0, len(c))
	for k, q := range c {
		if q > 0 {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Count is the total number of units across positive lines.
func Count(cart Cart) int {
	total := 0
	for _, q := range cart {
		if q > 0 {
			total += q
		}
	}
	return total
}
