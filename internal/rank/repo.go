package rank

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	// Ensure inserts a MEMBER row with spins welcome spins unless one exists.
	Ensure(ctx context.Context, userID uuid.UUID, spins int) error
	Find(ctx context.Context, userID uuid.UUID) (*models.UserRank, error)
	TakeSpin(ctx context.Context, userID uuid.UUID) (bool, error)
	Credit(ctx context.Context, userID uuid.UUID, points int64, spent decimal.Decimal, spins int) error
	SetTier(ctx context.Context, userID uuid.UUID, tier enums.RankTier) error
	InsertHistory(ctx context.Context, row *models.SpinHistory) error
	ListHistory(ctx context.Context, userID uuid.UUID, limit int) ([]models.SpinHistory, error)
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

func (r *repository) Ensure(ctx context.Context, userID uuid.UUID, spins int) error {
	row := models.UserRank{
		UserID:         userID,
		Tier:           enums.RankMember,
		SpinsRemaining: spins,
		TotalSpent:     decimal.Zero,
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "user_id"}}, DoNothing: true}).
		Create(&row).Error
}

func (r *repository) Find(ctx context.Context, userID uuid.UUID) (*models.UserRank, error) {
	var row models.UserRank
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// TakeSpin decrements spins_remaining only while it is positive.
func (r *repository) TakeSpin(ctx context.Context, userID uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.UserRank{}).
		Where("user_id = ? AND spins_remaining > 0", userID).
		UpdateColumn("spins_remaining", gorm.Expr("spins_remaining - 1"))
	return res.RowsAffected == 1, res.Error
}

func (r *repository) Credit(ctx context.Context, userID uuid.UUID, points int64, spent decimal.Decimal, spins int) error {
	return r.db.WithContext(ctx).
		Model(&models.UserRank{}).
		Where("user_id = ?", userID).
		Updates(map[string]any{
			"points":          gorm.Expr("points + ?", points),
			"total_spent":     gorm.Expr("total_spent + ?", spent),
			"spins_remaining": gorm.Expr("spins_remaining + ?", spins),
		}).Error
}

func (r *repository) SetTier(ctx context.Context, userID uuid.UUID, tier enums.RankTier) error {
	return r.db.WithContext(ctx).
		Model(&models.UserRank{}).
		Where("user_id = ?", userID).
		Update("tier", tier).Error
}

func (r *repository) InsertHistory(ctx context.Context, row *models.SpinHistory) error {
	return r.db.WithContext(ctx).Create(row).Error
}

func (r *repository) ListHistory(ctx context.Context, userID uuid.UUID, limit int) ([]models.SpinHistory, error) {
	var rows []models.SpinHistory
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}
