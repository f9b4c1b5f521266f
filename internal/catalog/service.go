package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/pricing"
)

// Service exposes catalog reads for shoppers and catalog management for sellers.
type Service interface {
	ListProducts(ctx context.Context, q ProductQuery) (*ProductPage, error)
	GetProduct(ctx context.Context, id uuid.UUID) (*ProductDTO, error)
	CreateProduct(ctx context.Context, input ProductInput) (*ProductDTO, error)
	UpdateProduct(ctx context.Context, id uuid.UUID, input ProductInput) (*ProductDTO, error)
	DeleteProduct(ctx context.Context, id uuid.UUID) error

	ListCategories(ctx context.Context) ([]CategoryDTO, error)
	SaveCategory(ctx context.Context, id *uuid.UUID, input CategoryInput) (*CategoryDTO, error)
	DeleteCategory(ctx context.Context, id uuid.UUID) error
	ListBrands(ctx context.Context) ([]BrandDTO, error)
	SaveBrand(ctx context.Context, id *uuid.UUID, input BrandInput) (*BrandDTO, error)
	DeleteBrand(ctx context.Context, id uuid.UUID) error
	ListAttributes(ctx context.Context) ([]AttributeDTO, error)
	SaveAttribute(ctx context.Context, id *uuid.UUID, input AttributeInput) (*AttributeDTO, error)
	DeleteAttribute(ctx context.Context, id uuid.UUID) error

	// Catalog loads the pricing view of the given products, active or not.
	Catalog(ctx context.Context, ids []uuid.UUID) (pricing.Catalog, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type service struct {
	repo Repository
	tx   txRunner
}

// NewService constructs the catalog service.
func NewService(repo Repository, tx txRunner) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	return &service{repo: repo, tx: tx}, nil
}

func (s *service) ListProducts(ctx context.Context, q ProductQuery) (*ProductPage, error) {
	if q.MinPrice != nil && q.MaxPrice != nil && *q.MinPrice > *q.MaxPrice {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "minPrice cannot exceed maxPrice")
	}
	switch q.Sort {
	case "", SortNewest, SortPriceAsc, SortPriceDesc:
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unsupported sort").
			WithDetails(map[string]any{"sort": q.Sort})
	}
	q.Page = q.Page.Normalize()

	rows, total, err := s.repo.ListProducts(ctx, q)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list products")
	}
	out := make([]ProductDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, toProductDTO(row))
	}
	return &ProductPage{Products: out, Pagination: q.Page.Meta(total)}, nil
}

func (s *service) GetProduct(ctx context.Context, id uuid.UUID) (*ProductDTO, error) {
	product, err := s.repo.FindProduct(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	if product == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	dto := toProductDTO(*product)
	return &dto, nil
}

func (s *service) CreateProduct(ctx context.Context, input ProductInput) (*ProductDTO, error) {
	if err := s.checkRefs(ctx, input); err != nil {
		return nil, err
	}
	product := input.toModel()
	if err := s.repo.CreateProduct(ctx, &product); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert product")
	}
	return s.GetProduct(ctx, product.ID)
}

func (s *service) UpdateProduct(ctx context.Context, id uuid.UUID, input ProductInput) (*ProductDTO, error) {
	if err := s.checkRefs(ctx, input); err != nil {
		return nil, err
	}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		existing, err := txRepo.FindProduct(ctx, id)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
		}
		if existing == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}

		next := input.toModel()
		next.ID = existing.ID
		next.CreatedAt = existing.CreatedAt
		if err := txRepo.SaveProduct(ctx, &next); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update product")
		}
		if err := txRepo.ReplaceVariants(ctx, id, next.Variants); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "replace variants")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetProduct(ctx, id)
}

func (s *service) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		deleted, err := s.repo.WithTx(tx).DeleteProduct(ctx, id)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete product")
		}
		if !deleted {
			return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil
	})
}

func (s *service) checkRefs(ctx context.Context, input ProductInput) error {
	if input.OfferPrice > input.Price && input.Price > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "offerPrice cannot exceed price")
	}
	if input.CategoryID != nil {
		category, err := s.repo.FindCategory(ctx, *input.CategoryID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load category")
		}
		if category == nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "category not found")
		}
	}
	if input.BrandID != nil {
		brand, err := s.repo.FindBrand(ctx, *input.BrandID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load brand")
		}
		if brand == nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "brand not found")
		}
	}
	return nil
}

func (s *service) ListCategories(ctx context.Context) ([]CategoryDTO, error) {
	rows, err := s.repo.ListCategories(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list categories")
	}
	out := make([]CategoryDTO, 0, len(rows))
	for _, c := range rows {
		out = append(out, CategoryDTO{ID: c.ID, Name: c.Name, Slug: c.Slug, Description: c.Description})
	}
	return out, nil
}

// SaveCategory creates a category when id is nil and updates it otherwise.
func (s *service) SaveCategory(ctx context.Context, id *uuid.UUID, input CategoryInput) (*CategoryDTO, error) {
	row := &models.Category{}
	if id != nil {
		found, err := s.repo.FindCategory(ctx, *id)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load category")
		}
		if found == nil {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "category not found")
		}
		row = found
	}
	row.Name = strings.TrimSpace(input.Name)
	row.Slug = Slugify(row.Name)
	row.Description = input.Description
	if err := s.repo.SaveCategory(ctx, row); err != nil {
		return nil, saveError(err, "category")
	}
	return &CategoryDTO{ID: row.ID, Name: row.Name, Slug: row.Slug, Description: row.Description}, nil
}

func (s *service) DeleteCategory(ctx context.Context, id uuid.UUID) error {
	found, err := s.repo.FindCategory(ctx, id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load category")
	}
	if found == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "category not found")
	}
	if err := s.ensureUnused(ctx, "category_id", id, "category"); err != nil {
		return err
	}
	if err := s.repo.DeleteCategory(ctx, id); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete category")
	}
	return nil
}

func (s *service) ListBrands(ctx context.Context) ([]BrandDTO, error) {
	rows, err := s.repo.ListBrands(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list brands")
	}
	out := make([]BrandDTO, 0, len(rows))
	for _, b := range rows {
		out = append(out, BrandDTO{ID: b.ID, Name: b.Name, Slug: b.Slug, LogoURL: b.LogoURL})
	}
	return out, nil
}

func (s *service) SaveBrand(ctx context.Context, id *uuid.UUID, input BrandInput) (*BrandDTO, error) {
	row := &models.Brand{}
	if id != nil {
		found, err := s.repo.FindBrand(ctx, *id)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load brand")
		}
		if found == nil {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "brand not found")
		}
		row = found
	}
	row.Name = strings.TrimSpace(input.Name)
	row.Slug = Slugify(row.Name)
	row.LogoURL = input.LogoURL
	if err := s.repo.SaveBrand(ctx, row); err != nil {
		return nil, saveError(err, "brand")
	}
	return &BrandDTO{ID: row.ID, Name: row.Name, Slug: row.Slug, LogoURL: row.LogoURL}, nil
}

func (s *service) DeleteBrand(ctx context.Context, id uuid.UUID) error {
	found, err := s.repo.FindBrand(ctx, id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load brand")
	}
	if found == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "brand not found")
	}
	if err := s.ensureUnused(ctx, "brand_id", id, "brand"); err != nil {
		return err
	}
	if err := s.repo.DeleteBrand(ctx, id); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete brand")
	}
	return nil
}

func (s *service) ListAttributes(ctx context.Context) ([]AttributeDTO, error) {
	rows, err := s.repo.ListAttributes(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list attributes")
	}
	out := make([]AttributeDTO, 0, len(rows))
	for _, a := range rows {
		out = append(out, AttributeDTO{ID: a.ID, Name: a.Name, Values: a.Values})
	}
	return out, nil
}

func (s *service) SaveAttribute(ctx context.Context, id *uuid.UUID, input AttributeInput) (*AttributeDTO, error) {
	row := &models.Attribute{}
	if id != nil {
		found, err := s.repo.FindAttribute(ctx, *id)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load attribute")
		}
		if found == nil {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "attribute not found")
		}
		row = found
	}
	row.Name = strings.TrimSpace(input.Name)
	row.Values = dedupe(input.Values)
	if err := s.repo.SaveAttribute(ctx, row); err != nil {
		return nil, saveError(err, "attribute")
	}
	return &AttributeDTO{ID: row.ID, Name: row.Name, Values: row.Values}, nil
}

func (s *service) DeleteAttribute(ctx context.Context, id uuid.UUID) error {
	found, err := s.repo.FindAttribute(ctx, id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load attribute")
	}
	if found == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "attribute not found")
	}
	if err := s.repo.DeleteAttribute(ctx, id); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete attribute")
	}
	return nil
}

func (s *service) Catalog(ctx context.Context, ids []uuid.UUID) (pricing.Catalog, error) {
	rows, err := s.repo.FindProducts(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load catalog")
	}
	products := make([]pricing.Product, 0, len(rows))
	for _, row := range rows {
		if !row.IsActive {
			continue
		}
		products = append(products, toPricingProduct(row))
	}
	return pricing.NewCatalog(products), nil
}

func (s *service) ensureUnused(ctx context.Context, column string, id uuid.UUID, label string) error {
	n, err := s.repo.CountProductsBy(ctx, column, id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count products")
	}
	if n > 0 {
		return pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf("%s is used by %d products", label, n))
	}
	return nil
}

func saveError(err error, label string) error {
	if db.IsUniqueViolation(err) {
		return pkgerrors.Wrap(pkgerrors.CodeConflict, err, label+" already exists")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save "+label)
}

func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
