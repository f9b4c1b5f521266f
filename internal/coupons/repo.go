package coupons

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByCode(ctx context.Context, code string) (*models.Coupon, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Coupon, error)
	List(ctx context.Context) ([]models.Coupon, error)
	Create(ctx context.Context, coupon *models.Coupon) error
	Save(ctx context.Context, coupon *models.Coupon) error
	Delete(ctx context.Context, id uuid.UUID) error
	// IncrementUsage bumps used_count unless the usage cap is reached.
	IncrementUsage(ctx context.Context, id uuid.UUID) (bool, error)
	DecrementUsage(ctx context.Context, id uuid.UUID) error

	CreateVoucher(ctx context.Context, voucher *models.UserCoupon) error
	ListVouchers(ctx context.Context, userID uuid.UUID) ([]models.UserCoupon, error)
	VouchersForCoupon(ctx context.Context, couponID uuid.UUID) ([]models.UserCoupon, error)
	MarkVoucherUsed(ctx context.Context, voucherID, orderID uuid.UUID, at time.Time) (bool, error)
	RestoreVouchersForOrder(ctx context.Context, orderID uuid.UUID) (int64, error)
	ExpireVouchers(ctx context.Context, now time.Time) (int64, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindByCode(ctx context.Context, code string) (*models.Coupon, error) {
	return r.first(ctx, "code = ?", code)
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Coupon, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *repository) first(ctx context.Context, query string, arg any) (*models.Coupon, error) {
	var row models.Coupon
	err := r.db.WithContext(ctx).Where(query, arg).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *repository) List(ctx context.Context) ([]models.Coupon, error) {
	var rows []models.Coupon
	err := r.db.WithContext(ctx).Order("created_at DESC").Find(&rows).Error
	return rows, err
}

func (r *repository) Create(ctx context.Context, coupon *models.Coupon) error {
	return r.db.WithContext(ctx).Create(coupon).Error
}

func (r *repository) Save(ctx context.Context, coupon *models.Coupon) error {
	return r.db.WithContext(ctx).Save(coupon).Error
}

func (r *repository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Coupon{}).Error
}

func (r *repository) IncrementUsage(ctx context.Context, id uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Coupon{}).
		Where("id = ? AND (usage_limit = 0 OR used_count < usage_limit)", id).
		UpdateColumn("used_count", gorm.Expr("used_count + 1"))
	return res.RowsAffected == 1, res.Error
}

func (r *repository) DecrementUsage(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.Coupon{}).
		Where("id = ? AND used_count > 0", id).
		UpdateColumn("used_count", gorm.Expr("used_count - 1")).Error
}

func (r *repository) CreateVoucher(ctx context.Context, voucher *models.UserCoupon) error {
	return r.db.WithContext(ctx).Create(voucher).Error
}

func (r *repository) ListVouchers(ctx context.Context, userID uuid.UUID) ([]models.UserCoupon, error) {
	var rows []models.UserCoupon
	err := r.db.WithContext(ctx).
		Preload("Coupon").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&rows).Error
	return rows, err
}

func (r *repository) VouchersForCoupon(ctx context.Context, couponID uuid.UUID) ([]models.UserCoupon, error) {
	var rows []models.UserCoupon
	err := r.db.WithContext(ctx).
		Where("coupon_id = ?", couponID).
		Order("created_at ASC").
		Find(&rows).Error
	return rows, err
}

// MarkVoucherUsed reports false when the voucher was no longer unused.
func (r *repository) MarkVoucherUsed(ctx context.Context, voucherID, orderID uuid.UUID, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.UserCoupon{}).
		Where("id = ? AND status = ?", voucherID, enums.UserCouponUnused).
		Updates(map[string]any{
			"status":   enums.UserCouponUsed,
			"order_id": orderID,
			"used_at":  at,
		})
	return res.RowsAffected == 1, res.Error
}

func (r *repository) RestoreVouchersForOrder(ctx context.Context, orderID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.UserCoupon{}).
		Where("order_id = ? AND status = ?", orderID, enums.UserCouponUsed).
		Updates(map[string]any{
			"status":   enums.UserCouponUnused,
			"order_id": nil,
			"used_at":  nil,
		})
	return res.RowsAffected, res.Error
}

// ExpireVouchers flips unused vouchers whose coupon ended before now.
func (r *repository) ExpireVouchers(ctx context.Context, now time.Time) (int64, error) {
	ended := r.db.Model(&models.Coupon{}).Select("id").Where("end_date < ?", now.UTC())
	res := r.db.WithContext(ctx).
		Model(&models.UserCoupon{}).
		Where("status = ? AND coupon_id IN (?)", enums.UserCouponUnused, ended).
		Update("status", enums.UserCouponExpired)
	return res.RowsAffected, res.Error
}
