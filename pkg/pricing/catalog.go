package pricing

import "github.com/shopspring/decimal"

// Variant is the pricing view of a product variant.
type Variant struct {
	ID         string
	OfferPrice decimal.Decimal
	Attributes map[string]string
}

// Product is the pricing view of a catalog product.
type Product struct {
	ID         string
	Name       string
	OfferPrice decimal.Decimal
	Variants   []Variant
}

// Catalog indexes products by id.
type Catalog map[string]Product

// NewCatalog indexes the given products. Later duplicates win.
func NewCatalog(products []Product) Catalog {
	c := make(Catalog, len(products))
	for _, p := range products {
		c[p.ID] = p
	}
	return c
}

// resolve returns the unit price for a cart key. ok is false when the product
// or the requested variant no longer exists.
func (c Catalog) resolve(key CartKey) (Product, *Variant, decimal.Decimal, bool) {
	productID, variantID := key.Split()
	p, found := c[productID]
	if !found {
		return Product{}, nil, decimal.Zero, false
	}
	if variantID == "" {
		return p, nil, p.OfferPrice, true
	}
	for i := range p.Variants {
		if p.Variants[i].ID == variantID {
			v := p.Variants[i]
			return p, &v, v.OfferPrice, true
		}
	}
	return p, nil, decimal.Zero, false
}

// VND reduces a stored amount to whole dong for the wire.
func VND(d decimal.Decimal) int64 {
	return d.Floor().IntPart()
}
