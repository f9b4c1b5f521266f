package cart

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
)

// Repository stores the cart as a single jsonb row keyed by user.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx scopes the repository to tx. A nil tx keeps the current handle.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// Items returns the stored lines, or an empty map for a user with no cart.
func (r *Repository) Items(ctx context.Context, userID uuid.UUID) (map[string]int, error) {
	var row models.Cart
	err := r.db.WithContext(ctx).Take(&row, "user_id = ?", userID).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return map[string]int{}, nil
	case err != nil:
		return nil, err
	case row.Items == nil:
		return map[string]int{}, nil
	}
	return row.Items, nil
}

// Replace overwrites the user's lines in one statement.
func (r *Repository) Replace(ctx context.Context, userID uuid.UUID, items map[string]int, at time.Time) error {
	row := models.Cart{UserID: userID, Items: items, UpdatedAt: at}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"items", "updated_at"}),
		}).
		Create(&row).Error
}

func (r *Repository) Clear(ctx context.Context, userID uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.Cart{}, "user_id = ?", userID).Error
}
