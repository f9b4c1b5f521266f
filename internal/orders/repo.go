package orders

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

// Repository handles order persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.Order, error)
	ListForSeller(ctx context.Context, q SellerQuery) ([]models.Order, int64, error)
	// TransitionStatus moves an order from one status to another, returning
	// false when the order is no longer in from.
	TransitionStatus(ctx context.Context, id uuid.UUID, from enums.OrderStatus, updates map[string]any) (bool, error)
	ListStalePending(ctx context.Context, method enums.PaymentMethod, before time.Time, limit int) ([]models.Order, error)

	CountByStatus(ctx context.Context) (map[string]int64, error)
	SumTotals(ctx context.Context, paymentStatus enums.PaymentStatus) (decimal.Decimal, error)
	TopProducts(ctx context.Context, limit int) ([]TopProductRow, error)
}

// TopProductRow is a raw aggregate row for the dashboard.
type TopProductRow struct {
	ProductID uuid.UUID
	Name      string
	Quantity  int64
	Revenue   decimal.Decimal
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC, id ASC") }).
		Where("id = ?", id).
		First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) ListByUser(ctx context.Context, userID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.Order, error) {
	query := r.db.WithContext(ctx).
		Preload("Items").
		Where("user_id = ?", userID)
	if cursor != nil {
		at := cursor.CreatedAt.UTC()
		query = query.Where("(created_at < ? OR (created_at = ? AND id < ?))", at, at, cursor.ID)
	}
	var rows []models.Order
	err := query.
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *repository) ListForSeller(ctx context.Context, q SellerQuery) ([]models.Order, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Order{})
	if q.Status != nil {
		query = query.Where("status = ?", *q.Status)
	}
	if q.PaymentStatus != nil {
		query = query.Where("payment_status = ?", *q.PaymentStatus)
	}
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	page := q.Page.Normalize()
	var rows []models.Order
	err := query.
		Preload("Items").
		Order("created_at DESC").
		Order("id DESC").
		Limit(page.Limit).
		Offset(page.Offset()).
		Find(&rows).Error
	return rows, total, err
}

func (r *repository) TransitionStatus(ctx context.Context, id uuid.UUID, from enums.OrderStatus, updates map[string]any) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	return res.RowsAffected == 1, res.Error
}

func (r *repository) ListStalePending(ctx context.Context, method enums.PaymentMethod, before time.Time, limit int) ([]models.Order, error) {
	var rows []models.Order
	err := r.db.WithContext(ctx).
		Where("payment_method = ? AND payment_status IN ? AND status = ? AND created_at < ?",
			method,
			[]enums.PaymentStatus{enums.PaymentStatusPending, enums.PaymentStatusFailed},
			enums.OrderStatusPending,
			before.UTC()).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *repository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	var rows []struct {
		Status string
		N      int64
	}
	err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Select("status, COUNT(*) AS n").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.Status] = row.N
	}
	return out, nil
}

func (r *repository) SumTotals(ctx context.Context, paymentStatus enums.PaymentStatus) (decimal.Decimal, error) {
	var sum decimal.NullDecimal
	row := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Select("SUM(total)").
		Where("payment_status = ? AND status <> ?", paymentStatus, enums.OrderStatusCancelled).
		Row()
	if err := row.Scan(&sum); err != nil {
		return decimal.Zero, err
	}
	if !sum.Valid {
		return decimal.Zero, nil
	}
	return sum.Decimal, nil
}

func (r *repository) TopProducts(ctx context.Context, limit int) ([]TopProductRow, error) {
	var rows []TopProductRow
	err := r.db.WithContext(ctx).
		Table("order_items AS oi").
		Select("oi.product_id AS product_id, MAX(oi.name) AS name, SUM(oi.quantity) AS quantity, SUM(oi.line_total) AS revenue").
		Joins("JOIN orders o ON o.id = oi.order_id").
		Where("o.status <> ?", enums.OrderStatusCancelled).
		Group("oi.product_id").
		Order("quantity DESC").
		Order("revenue DESC").
		Limit(limit).
		Scan(&rows).Error
	return rows, err
}
