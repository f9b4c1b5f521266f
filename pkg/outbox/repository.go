package outbox

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// lastErrorLimit caps the broker error kept on a row and in the DLQ.
const lastErrorLimit = 1024

var errNoTx = errors.New("outbox: transaction required")

// Repository reads and writes outbox rows. Every method takes the caller's
// transaction so queueing commits or rolls back with the business write.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Insert(tx *gorm.DB, row models.OutboxEvent) error {
	if tx == nil {
		return errNoTx
	}
	return tx.Create(&row).Error
}

// Exists reports whether the aggregate already has a queued event of this type.
func (r *Repository) Exists(tx *gorm.DB, eventType enums.OutboxEventType, aggregateType enums.OutboxAggregateType, aggregateID uuid.UUID) (bool, error) {
	if tx == nil {
		return false, errNoTx
	}
	var hit []uuid.UUID
	err := tx.Model(&models.OutboxEvent{}).
		Where(map[string]any{
			"event_type":     eventType,
			"aggregate_type": aggregateType,
			"aggregate_id":   aggregateID,
		}).
		Limit(1).
		Pluck("id", &hit).Error
	return len(hit) > 0, err
}

// Claim returns the oldest unpublished rows that still have attempts left.
// On postgres the rows stay locked until tx ends and other publishers skip them.
func (r *Repository) Claim(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error) {
	q := tx.Model(&models.OutboxEvent{}).
		Where("published_at IS NULL").
		Where("attempt_count < ?", maxAttempts).
		Order(clause.OrderBy{Columns: []clause.OrderByColumn{
			{Column: clause.Column{Name: "created_at"}},
			{Column: clause.Column{Name: "id"}},
		}}).
		Limit(limit)
	if tx.Dialector.Name() == "postgres" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
	}
	var rows []models.OutboxEvent
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *Repository) MarkPublished(tx *gorm.DB, id uuid.UUID, at time.Time) error {
	return r.update(tx, id, map[string]any{
		"published_at": at.UTC(),
		"last_error":   nil,
	})
}

// RecordFailure bumps the attempt counter and keeps the broker error.
func (r *Repository) RecordFailure(tx *gorm.DB, id uuid.UUID, cause error) error {
	return r.update(tx, id, map[string]any{
		"attempt_count": gorm.Expr("attempt_count + ?", 1),
		"last_error":    clip(cause),
	})
}

// Park pins the row at attempts so Claim never returns it again.
func (r *Repository) Park(tx *gorm.DB, id uuid.UUID, cause error, attempts int) error {
	return r.update(tx, id, map[string]any{
		"attempt_count": attempts,
		"last_error":    clip(cause),
	})
}

// PurgePublished deletes rows relayed before cutoff and reports how many went.
func (r *Repository) PurgePublished(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error) {
	res := tx.WithContext(ctx).
		Where("published_at IS NOT NULL").
		Where("published_at < ?", cutoff.UTC()).
		Delete(&models.OutboxEvent{})
	return res.RowsAffected, res.Error
}

func (r *Repository) update(tx *gorm.DB, id uuid.UUID, cols map[string]any) error {
	if tx == nil {
		return errNoTx
	}
	return tx.Model(&models.OutboxEvent{}).Where("id = ?", id).Updates(cols).Error
}

func clip(cause error) *string {
	if cause == nil {
		return nil
	}
	msg := cause.Error()
	if len(msg) > lastErrorLimit {
		msg = msg[:lastErrorLimit]
	}
	return &msg
}
