package reviews

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

type Repository interface {
	ProductExists(ctx context.Context, productID uuid.UUID) (bool, error)

	ListReviews(ctx context.Context, productID uuid.UUID, page pagination.Page) ([]models.Review, int64, error)
	RatingAverage(ctx context.Context, productID uuid.UUID) (float64, error)
	CreateReview(ctx context.Context, review *models.Review) error

	ListComments(ctx context.Context, productID uuid.UUID, page pagination.Page) ([]models.Comment, int64, error)
	FindComment(ctx context.Context, id uuid.UUID) (*models.Comment, error)
	CreateComment(ctx context.Context, comment *models.Comment) error
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) ProductExists(ctx context.Context, productID uuid.UUID) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ? AND is_active = ?", productID, true).
		Count(&n).Error
	return n > 0, err
}

func (r *repository) ListReviews(ctx context.Context, productID uuid.UUID, page pagination.Page) ([]models.Review, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.Review{}).Where("product_id = ?", productID)
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []models.Review
	err := q.Order("created_at DESC, id DESC").
		Offset(page.Offset()).
		Limit(page.Normalize().Limit).
		Find(&rows).Error
	return rows, total, err
}

func (r *repository) RatingAverage(ctx context.Context, productID uuid.UUID) (float64, error) {
	var avg sql.NullFloat64
	err := r.db.WithContext(ctx).
		Model(&models.Review{}).
		Select("AVG(rating)").
		Where("product_id = ?", productID).
		Row().
		Scan(&avg)
	if err != nil {
		return 0, err
	}
	return avg.Float64, nil
}

func (r *repository) CreateReview(ctx context.Context, review *models.Review) error {
	return r.db.WithContext(ctx).Create(review).Error
}

func (r *repository) ListComments(ctx context.Context, productID uuid.UUID, page pagination.Page) ([]models.Comment, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.Comment{}).Where("product_id = ?", productID)
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []models.Comment
	err := q.Order("created_at ASC, id ASC").
		Offset(page.Offset()).
		Limit(page.Normalize().Limit).
		Find(&rows).Error
	return rows, total, err
}

func (r *repository) FindComment(ctx context.Context, id uuid.UUID) (*models.Comment, error) {
	var comment models.Comment
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&comment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &comment, nil
}

func (r *repository) CreateComment(ctx context.Context, comment *models.Comment) error {
	return r.db.WithContext(ctx).Create(comment).Error
}
