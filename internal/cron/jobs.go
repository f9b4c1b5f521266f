package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type voucherExpirer interface {
	ExpireVouchers(ctx context.Context, now time.Time) (int64, error)
}

type stalePaymentCanceller interface {
	CancelStalePayments(ctx context.Context, cutoff time.Time, limit int) (int, error)
}

type outboxPruner interface {
	PurgePublished(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
}

// VoucherExpiryJob marks unused vouchers of ended coupons as expired.
type VoucherExpiryJob struct {
	logg    *logger.Logger
	tx      txRunner
	coupons voucherExpirer
	outbox  outbox.Emitter
	now     func() time.Time
}

func NewVoucherExpiryJob(logg *logger.Logger, tx txRunner, coupons voucherExpirer, emitter outbox.Emitter) (*VoucherExpiryJob, error) {
	switch {
	case logg == nil:
		return nil, fmt.Errorf("logger required")
	case tx == nil:
		return nil, fmt.Errorf("tx runner required")
	case coupons == nil:
		return nil, fmt.Errorf("voucher expirer required")
	case emitter == nil:
		return nil, fmt.Errorf("outbox emitter required")
	}
	return &VoucherExpiryJob{logg: logg, tx: tx, coupons: coupons, outbox: emitter, now: time.Now}, nil
}

func (j *VoucherExpiryJob) Name() string { return "voucher-expiry" }

func (j *VoucherExpiryJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	n, err := j.coupons.ExpireVouchers(ctx, now)
	if err != nil {
		return err
	}
	j.logg.Info(j.logg.WithField(ctx, "vouchers_expired", n), "voucher expiry sweep complete")
	if n == 0 {
		return nil
	}
	return j.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return j.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventVouchersExpired,
			AggregateType: enums.AggregateCoupon,
			AggregateID:   uuid.New(),
			Actor:         &outbox.ActorRef{Role: "system"},
			Data:          payloads.VouchersExpiredEvent{Count: n, Cutoff: now},
		})
	})
}

// PendingPaymentJob cancels gateway orders left unpaid past the TTL.
type PendingPaymentJob struct {
	logg      *logger.Logger
	orders    stalePaymentCanceller
	ttl       time.Duration
	batchSize int
	now       func() time.Time
}

func NewPendingPaymentJob(logg *logger.Logger, orders stalePaymentCanceller, ttl time.Duration) (*PendingPaymentJob, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if orders == nil {
		return nil, fmt.Errorf("orders service required")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &PendingPaymentJob{logg: logg, orders: orders, ttl: ttl, batchSize: 200, now: time.Now}, nil
}

func (j *PendingPaymentJob) Name() string { return "pending-payment-expiry" }

func (j *PendingPaymentJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.ttl)
	n, err := j.orders.CancelStalePayments(ctx, cutoff, j.batchSize)
	logCtx := j.logg.WithFields(ctx, map[string]any{"cutoff": cutoff, "orders_cancelled": n})
	if err != nil {
		return err
	}
	j.logg.Info(logCtx, "unpaid gateway orders cancelled")
	return nil
}

// OutboxRetentionJob deletes relayed outbox rows older than the retention.
type OutboxRetentionJob struct {
	logg      *logger.Logger
	tx        txRunner
	repo      outboxPruner
	retention time.Duration
	now       func() time.Time
}

func NewOutboxRetentionJob(logg *logger.Logger, tx txRunner, repo outboxPruner, retention time.Duration) (*OutboxRetentionJob, error) {
	switch {
	case logg == nil:
		return nil, fmt.Errorf("logger required")
	case tx == nil:
		return nil, fmt.Errorf("tx runner required")
	case repo == nil:
		return nil, fmt.Errorf("outbox repository required")
	}
	if retention <= 0 {
		retention = 30 * 24 * time.Hour
	}
	return &OutboxRetentionJob{logg: logg, tx: tx, repo: repo, retention: retention, now: time.Now}, nil
}

func (j *OutboxRetentionJob) Name() string { return "outbox-retention" }

func (j *OutboxRetentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.retention)
	var deleted int64
	err := j.tx.WithTx(ctx, func(tx *gorm.DB) error {
		n, err := j.repo.PurgePublished(ctx, tx, cutoff)
		deleted = n
		return err
	})
	if err != nil {
		return fmt.Errorf("prune outbox: %w", err)
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":       cutoff,
		"rows_deleted": deleted,
	}), "outbox retention cleanup complete")
	return nil
}
