package catalog

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
)

// Repository handles catalog persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	ListProducts(ctx context.Context, q ProductQuery) ([]models.Product, int64, error)
	FindProduct(ctx context.Context, id uuid.UUID) (*models.Product, error)
	FindProducts(ctx context.Context, ids []uuid.UUID) ([]models.Product, error)
	CreateProduct(ctx context.Context, product *models.Product) error
	SaveProduct(ctx context.Context, product *models.Product) error
	ReplaceVariants(ctx context.Context, productID uuid.UUID, variants []models.ProductVariant) error
	DeleteProduct(ctx context.Context, id uuid.UUID) (bool, error)

	ListCategories(ctx context.Context) ([]models.Category, error)
	FindCategory(ctx context.Context, id uuid.UUID) (*models.Category, error)
	SaveCategory(ctx context.Context, category *models.Category) error
	DeleteCategory(ctx context.Context, id uuid.UUID) error
	ListBrands(ctx context.Context) ([]models.Brand, error)
	FindBrand(ctx context.Context, id uuid.UUID) (*models.Brand, error)
	SaveBrand(ctx context.Context, brand *models.Brand) error
	DeleteBrand(ctx context.Context, id uuid.UUID) error
	ListAttributes(ctx context.Context) ([]models.Attribute, error)
	FindAttribute(ctx context.Context, id uuid.UUID) (*models.Attribute, error)
	SaveAttribute(ctx context.Context, attribute *models.Attribute) error
	DeleteAttribute(ctx context.Context, id uuid.UUID) error
	CountProductsBy(ctx context.Context, column string, id uuid.UUID) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a catalog repository bound to db.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) ListProducts(ctx context.Context, q ProductQuery) ([]models.Product, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Product{})
	if !q.IncludeInactive {
		query = query.Where("is_active = ?", true)
	}
	if q.CategoryID != nil {
		query = query.Where("category_id = ?", *q.CategoryID)
	}
	if q.BrandID != nil {
		query = query.Where("brand_id = ?", *q.BrandID)
	}
	if q.MinPrice != nil {
		query = query.Where("offer_price >= ?", *q.MinPrice)
	}
	if q.MaxPrice != nil {
		query = query.Where("offer_price <= ?", *q.MaxPrice)
	}
	if term := strings.ToLower(strings.TrimSpace(q.Search)); term != "" {
		like := "%" + term + "%"
		query = query.Where("(LOWER(name) LIKE ? OR LOWER(description) LIKE ?)", like, like)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page := q.Page.Normalize()
	var products []models.Product
	err := query.
		Preload("Variants", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		Order(orderClause(q.Sort)).
		Order("id ASC").
		Limit(page.Limit).
		Offset(page.Offset()).
		Find(&products).Error
	if err != nil {
		return nil, 0, err
	}
	return products, total, nil
}

func orderClause(sort string) string {
	switch sort {
	case SortPriceAsc:
		return "offer_price ASC"
	case SortPriceDesc:
		return "offer_price DESC"
	default:
		return "created_at DESC"
	}
}

func (r *repository) FindProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).
		Preload("Variants", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		Where("id = ?", id).
		First(&product).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &product, nil
}

func (r *repository) FindProducts(ctx context.Context, ids []uuid.UUID) ([]models.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var products []models.Product
	err := r.db.WithContext(ctx).
		Preload("Variants").
		Where("id IN ?", ids).
		Find(&products).Error
	if err != nil {
		return nil, err
	}
	return products, nil
}

func (r *repository) CreateProduct(ctx context.Context, product *models.Product) error {
	return r.db.WithContext(ctx).Create(product).Error
}

func (r *repository) SaveProduct(ctx context.Context, product *models.Product) error {
	return r.db.WithContext(ctx).Omit("Variants").Save(product).Error
}

func (r *repository) ReplaceVariants(ctx context.Context, productID uuid.UUID, variants []models.ProductVariant) error {
	if err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Delete(&models.ProductVariant{}).Error; err != nil {
		return err
	}
	if len(variants) == 0 {
		return nil
	}
	for i := range variants {
		variants[i].ProductID = productID
	}
	return r.db.WithContext(ctx).Create(&variants).Error
}

func (r *repository) DeleteProduct(ctx context.Context, id uuid.UUID) (bool, error) {
	if err := r.db.WithContext(ctx).
		Where("product_id = ?", id).
		Delete(&models.ProductVariant{}).Error; err != nil {
		return false, err
	}
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Product{})
	return res.RowsAffected > 0, res.Error
}

func (r *repository) ListCategories(ctx context.Context) ([]models.Category, error) {
	var rows []models.Category
	err := r.db.WithContext(ctx).Order("name ASC").Find(&rows).Error
	return rows, err
}

func (r *repository) FindCategory(ctx context.Context, id uuid.UUID) (*models.Category, error) {
	var row models.Category
	if err := findByID(ctx, r.db, id, &row); err != nil || row.ID == uuid.Nil {
		return nil, err
	}
	return &row, nil
}

func (r *repository) SaveCategory(ctx context.Context, category *models.Category) error {
	return r.db.WithContext(ctx).Save(category).Error
}

func (r *repository) DeleteCategory(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Category{}).Error
}

func (r *repository) ListBrands(ctx context.Context) ([]models.Brand, error) {
	var rows []models.Brand
	err := r.db.WithContext(ctx).Order("name ASC").Find(&rows).Error
	return rows, err
}

func (r *repository) FindBrand(ctx context.Context, id uuid.UUID) (*models.Brand, error) {
	var row models.Brand
	if err := findByID(ctx, r.db, id, &row); err != nil || row.ID == uuid.Nil {
		return nil, err
	}
	return &row, nil
}

func (r *repository) SaveBrand(ctx context.Context, brand *models.Brand) error {
	return r.db.WithContext(ctx).Save(brand).Error
}

func (r *repository) DeleteBrand(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Brand{}).Error
}

func (r *repository) ListAttributes(ctx context.Context) ([]models.Attribute, error) {
	var rows []models.Attribute
	err := r.db.WithContext(ctx).Order("name ASC").Find(&rows).Error
	return rows, err
}

func (r *repository) FindAttribute(ctx context.Context, id uuid.UUID) (*models.Attribute, error) {
	var row models.Attribute
	if err := findByID(ctx, r.db, id, &row); err != nil || row.ID == uuid.Nil {
		return nil, err
	}
	return &row, nil
}

func (r *repository) SaveAttribute(ctx context.Context, attribute *models.Attribute) error {
	return r.db.WithContext(ctx).Save(attribute).Error
}

func (r *repository) DeleteAttribute(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Attribute{}).Error
}

// CountProductsBy counts products referencing id through column (category_id or brand_id).
func (r *repository) CountProductsBy(ctx context.Context, column string, id uuid.UUID) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where(column+" = ?", id).
		Count(&n).Error
	return n, err
}

func findByID(ctx context.Context, db *gorm.DB, id uuid.UUID, dest any) error {
	err := db.WithContext(ctx).Where("id = ?", id).First(dest).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	return err
}
