package catalog

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
	"github.com/angelmondragon/storefront-backend/pkg/pricing"
)

func newTestService(t *testing.T) Service {
	t.Helper()
	conn := dbtest.Open(t, &models.Category{}, &models.Brand{}, &models.Attribute{}, &models.Product{}, &models.ProductVariant{})
	svc, err := NewService(NewRepository(conn), db.NewFromGorm(conn))
	require.NoError(t, err)
	return svc
}

func requireCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	typed := pkgerrors.As(err)
	require.NotNil(t, typed, "expected typed error, got %v", err)
	assert.Equal(t, code, typed.Code())
}

func TestProductLifecycle(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	created, err := svc.CreateProduct(ctx, ProductInput{
		Name:       "Phone X",
		Price:      300000,
		OfferPrice: 250000,
		Variants: []VariantInput{
			{SKU: "X-BLK", Price: 300000, OfferPrice: 260000, Attributes: map[string]string{"color": "black"}},
		},
	})
	require.NoError(t, err)
	assert.True(t, created.IsActive)
	assert.Equal(t, int64(250000), created.OfferPrice)
	require.Len(t, created.Variants, 1)
	assert.Equal(t, "black", created.Variants[0].Attributes["color"])

	updated, err := svc.UpdateProduct(ctx, created.ID, ProductInput{
		Name:  "Phone X Pro",
		Price: 320000,
		Variants: []VariantInput{
			{SKU: "X-WHT", Price: 320000},
			{SKU: "X-GRN", Price: 330000, OfferPrice: 310000},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "Phone X Pro", updated.Name)
	assert.Equal(t, int64(320000), updated.OfferPrice, "offer price defaults to price")
	require.Len(t, updated.Variants, 2)
	skus := []string{updated.Variants[0].SKU, updated.Variants[1].SKU}
	assert.ElementsMatch(t, []string{"X-WHT", "X-GRN"}, skus)

	require.NoError(t, svc.DeleteProduct(ctx, created.ID))
	_, err = svc.GetProduct(ctx, created.ID)
	requireCode(t, err, pkgerrors.CodeNotFound)
	requireCode(t, svc.DeleteProduct(ctx, created.ID), pkgerrors.CodeNotFound)
}

func TestListProductsFiltersAndPaginates(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	phones, err := svc.SaveCategory(ctx, nil, CategoryInput{Name: "Phones"})
	require.NoError(t, err)

	for _, in := range []ProductInput{
		{Name: "Budget phone", Price: 100000, CategoryID: &phones.ID},
		{Name: "Flagship phone", Price: 900000, CategoryID: &phones.ID},
		{Name: "Laptop", Price: 500000, Description: "thin and light"},
	} {
		_, err := svc.CreateProduct(ctx, in)
		require.NoError(t, err)
	}
	inactive := false
	_, err = svc.CreateProduct(ctx, ProductInput{Name: "Hidden phone", Price: 1, IsActive: &inactive})
	require.NoError(t, err)

	page, err := svc.ListProducts(ctx, ProductQuery{CategoryID: &phones.ID, Sort: SortPriceDesc})
	require.NoError(t, err)
	require.Len(t, page.Products, 2)
	assert.Equal(t, "Flagship phone", page.Products[0].Name)
	assert.Equal(t, int64(2), page.Pagination.Total)

	minPrice := int64(200000)
	page, err = svc.ListProducts(ctx, ProductQuery{MinPrice: &minPrice, Sort: SortPriceAsc})
	require.NoError(t, err)
	require.Len(t, page.Products, 2)
	assert.Equal(t, "Laptop", page.Products[0].Name)

	page, err = svc.ListProducts(ctx, ProductQuery{Search: "PHONE"})
	require.NoError(t, err)
	assert.Len(t, page.Products, 2, "inactive products stay hidden")

	page, err = svc.ListProducts(ctx, ProductQuery{Search: "light"})
	require.NoError(t, err)
	require.Len(t, page.Products, 1)
	assert.Equal(t, "Laptop", page.Products[0].Name)

	page, err = svc.ListProducts(ctx, ProductQuery{Page: pagination.Page{Page: 2, Limit: 2}, Sort: SortPriceAsc})
	require.NoError(t, err)
	require.Len(t, page.Products, 1)
	assert.Equal(t, 2, page.Pagination.TotalPages)
}

func TestListProductsRejectsBadQuery(t *testing.T) {
	svc := newTestService(t)
	lo, hi := int64(10), int64(5)

	_, err := svc.ListProducts(context.Background(), ProductQuery{MinPrice: &lo, MaxPrice: &hi})
	requireCode(t, err, pkgerrors.CodeValidation)

	_, err = svc.ListProducts(context.Background(), ProductQuery{Sort: "rating"})
	requireCode(t, err, pkgerrors.CodeValidation)
}

func TestCreateProductUnknownCategory(t *testing.T) {
	svc := newTestService(t)
	missing := uuid.New()
	_, err := svc.CreateProduct(context.Background(), ProductInput{Name: "x", Price: 1, CategoryID: &missing})
	requireCode(t, err, pkgerrors.CodeValidation)
}

func TestDeleteCategoryInUseConflicts(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	cat, err := svc.SaveCategory(ctx, nil, CategoryInput{Name: "Điện thoại di động"})
	require.NoError(t, err)
	assert.Equal(t, "dien-thoai-di-dong", cat.Slug)

	_, err = svc.CreateProduct(ctx, ProductInput{Name: "p", Price: 1, CategoryID: &cat.ID})
	require.NoError(t, err)

	requireCode(t, svc.DeleteCategory(ctx, cat.ID), pkgerrors.CodeConflict)

	_, err = svc.SaveCategory(ctx, nil, CategoryInput{Name: "Điện thoại di động"})
	requireCode(t, err, pkgerrors.CodeConflict)
}

func TestBrandAndAttributeCRUD(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	brand, err := svc.SaveBrand(ctx, nil, BrandInput{Name: "Acme Corp"})
	require.NoError(t, err)
	assert.Equal(t, "acme-corp", brand.Slug)

	renamed, err := svc.SaveBrand(ctx, &brand.ID, BrandInput{Name: "Acme"})
	require.NoError(t, err)
	assert.Equal(t, brand.ID, renamed.ID)

	brands, err := svc.ListBrands(ctx)
	require.NoError(t, err)
	require.Len(t, brands, 1)
	assert.Equal(t, "Acme", brands[0].Name)
	require.NoError(t, svc.DeleteBrand(ctx, brand.ID))

	attr, err := svc.SaveAttribute(ctx, nil, AttributeInput{Name: "color", Values: []string{"red", " red ", "blue", ""}})
	require.NoError(t, err)
	assert.Equal(t, []string{"red", "blue"}, attr.Values)
	require.NoError(t, svc.DeleteAttribute(ctx, attr.ID))
	requireCode(t, svc.DeleteAttribute(ctx, attr.ID), pkgerrors.CodeNotFound)
}

func TestCatalogFeedsPricing(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	p1, err := svc.CreateProduct(ctx, ProductInput{Name: "P1", Price: 100000})
	require.NoError(t, err)
	p2, err := svc.CreateProduct(ctx, ProductInput{
		Name:     "P2",
		Price:    300000,
		Variants: []VariantInput{{SKU: "V1", Price: 250000}},
	})
	require.NoError(t, err)

	catalog, err := svc.Catalog(ctx, []uuid.UUID{p1.ID, p2.ID})
	require.NoError(t, err)

	cart := pricing.Cart{}
	require.NoError(t, pricing.Set(cart, pricing.Key(p1.ID.String(), ""), 2))
	require.NoError(t, pricing.Set(cart, pricing.Key(p2.ID.String(), p2.Variants[0].ID.String()), 1))
	assert.Equal(t, int64(450000), pricing.Amount(cart, catalog))
}
