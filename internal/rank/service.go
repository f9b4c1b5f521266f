package rank

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/coupons"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/storefront-backend/pkg/pricing"
	"github.com/angelmondragon/storefront-backend/pkg/redis"
)

const spinLockTTL = 10 * time.Second

// RankDTO is the caller's loyalty state.
type RankDTO struct {
	Points           int64          `json:"points"`
	Tier             enums.RankTier `json:"tier"`
	SpinsRemaining   int            `json:"spinsRemaining"`
	TotalSpent       int64          `json:"totalSpent"`
	NextTier         enums.RankTier `json:"nextTier,omitempty"`
	PointsToNextTier int64          `json:"pointsToNextTier,omitempty"`
}

// SpinResult is the server-decided outcome of one spin.
type SpinResult struct {
	Reward         RewardDTO          `json:"reward"`
	RewardIndex    int                `json:"rewardIndex"`
	Coupon         *coupons.CouponDTO `json:"coupon"`
	SpinsRemaining int                `json:"spinsRemaining"`
}

// Service owns loyalty points, tiers and the reward wheel.
type Service interface {
	MyRank(ctx context.Context, userID uuid.UUID) (*RankDTO, error)
	Rewards() []RewardDTO
	Spin(ctx context.Context, userID uuid.UUID) (*SpinResult, error)
	// CreditOrder adds the loyalty effects of a delivered order inside tx.
	CreditOrder(ctx context.Context, tx *gorm.DB, userID uuid.UUID, total int64) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type rewardMinter interface {
	MintReward(ctx context.Context, tx *gorm.DB, userID uuid.UUID, reward coupons.Reward) (*models.Coupon, error)
}

// ServiceParams groups dependencies for the rank service.
type ServiceParams struct {
	Repo    Repository
	Tx      txRunner
	Coupons rewardMinter
	Outbox  outbox.Emitter
	Locker  redis.Locker
	Metrics *metrics.DomainMetrics
	Logger  *logger.Logger
	Config  config.RewardsConfig
}

type service struct {
	repo    Repository
	tx      txRunner
	coupons rewardMinter
	outbox  outbox.Emitter
	locker  redis.Locker
	metrics *metrics.DomainMetrics
	logg    *logger.Logger
	cfg     config.RewardsConfig
	roll    func(n int) int
}

func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.Repo == nil:
		return nil, fmt.Errorf("rank repository required")
	case params.Tx == nil:
		return nil, fmt.Errorf("tx runner required")
	case params.Coupons == nil:
		return nil, fmt.Errorf("coupon minter required")
	case params.Outbox == nil:
		return nil, fmt.Errorf("outbox emitter required")
	case params.Locker == nil:
		return nil, fmt.Errorf("locker required")
	}
	cfg := params.Config
	if cfg.PointUnit <= 0 {
		cfg.PointUnit = 10000
	}
	return &service{
		repo:    params.Repo,
		tx:      params.Tx,
		coupons: params.Coupons,
		outbox:  params.Outbox,
		locker:  params.Locker,
		metrics: params.Metrics,
		logg:    params.Logger,
		cfg:     cfg,
		roll:    randomRoll,
	}, nil
}

func (s *service) MyRank(ctx context.Context, userID uuid.UUID) (*RankDTO, error) {
	if err := s.repo.Ensure(ctx, userID, s.cfg.WelcomeSpins); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "ensure rank")
	}
	row, err := s.repo.Find(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load rank")
	}
	if row == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "rank row missing after ensure")
	}
	return toRankDTO(*row), nil
}

func (s *service) Rewards() []RewardDTO {
	out := make([]RewardDTO, 0, len(Segments))
	for i, seg := range Segments {
		out = append(out, rewardDTO(i, seg))
	}
	return out
}

// Spin consumes one spin and draws a segment. A per-user lock keeps two
// concurrent requests from the same account from racing.
func (s *service) Spin(ctx context.Context, userID uuid.UUID) (*SpinResult, error) {
	release, err := s.locker.AcquireLock(ctx, "spin:"+userID.String(), spinLockTTL)
	if errors.Is(err, redis.ErrLockHeld) {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "A spin is already in progress")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "acquire spin lock")
	}
	defer func() {
		if relErr := release(context.WithoutCancel(ctx)); relErr != nil && s.logg != nil {
			s.logg.Warn(s.logg.WithField(ctx, "error", relErr.Error()), "release spin lock failed")
		}
	}()

	var result SpinResult
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.Ensure(ctx, userID, s.cfg.WelcomeSpins); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "ensure rank")
		}
		ok, err := repo.TakeSpin(ctx, userID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "take spin")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeValidation, "You have no spins left")
		}

		index := pickWeighted(Segments, s.roll(totalWeight(Segments)))
		seg := Segments[index]
		history := &models.SpinHistory{UserID: userID, RewardIndex: index, RewardName: seg.Name}

		if seg.Grants() {
			coupon, err := s.coupons.MintReward(ctx, tx, userID, coupons.Reward{
				Type:      seg.Type,
				Value:     seg.Value,
				ValidDays: s.cfg.CouponValidDays,
				Label:     seg.Name,
			})
			if err != nil {
				return err
			}
			dto := coupons.ToCouponDTO(*coupon)
			result.Coupon = &dto
			history.CouponID = &coupon.ID
		}
		if err := repo.InsertHistory(ctx, history); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert spin history")
		}

		row, err := repo.Find(ctx, userID)
		if err != nil || row == nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload rank")
		}
		result.Reward = rewardDTO(index, seg)
		result.RewardIndex = index
		result.SpinsRemaining = row.SpinsRemaining

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventSpinCompleted,
			AggregateType: enums.AggregateUserRank,
			AggregateID:   userID,
			Actor:         &outbox.ActorRef{UserID: userID, Role: string(enums.RoleCustomer)},
			Data: payloads.SpinCompletedEvent{
				UserID:         userID,
				RewardIndex:    index,
				RewardName:     seg.Name,
				CouponID:       history.CouponID,
				SpinsRemaining: row.SpinsRemaining,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	s.metrics.SpinResolved(result.Reward.Name)
	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"user_id":      userID.String(),
			"reward_index": result.RewardIndex,
			"reward":       result.Reward.Name,
		})
		s.logg.Info(logCtx, "wheel spin resolved")
	}
	return &result, nil
}

func (s *service) CreditOrder(ctx context.Context, tx *gorm.DB, userID uuid.UUID, total int64) error {
	if total <= 0 {
		return nil
	}
	repo := s.repo.WithTx(tx)
	if err := repo.Ensure(ctx, userID, s.cfg.WelcomeSpins); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "ensure rank")
	}
	spins := 0
	if s.cfg.SpinMinOrderAmount > 0 && total >= s.cfg.SpinMinOrderAmount {
		spins = 1
	}
	if err := repo.Credit(ctx, userID, total/s.cfg.PointUnit, decimal.NewFromInt(total), spins); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "credit rank")
	}
	row, err := repo.Find(ctx, userID)
	if err != nil || row == nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload rank")
	}
	if tier := enums.TierForPoints(row.Points); tier != row.Tier {
		if err := repo.SetTier(ctx, userID, tier); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update tier")
		}
	}
	return nil
}

func toRankDTO(row models.UserRank) *RankDTO {
	out := &RankDTO{
		Points:         row.Points,
		Tier:           row.Tier,
		SpinsRemaining: row.SpinsRemaining,
		TotalSpent:     pricing.VND(row.TotalSpent),
	}
	if next, minPoints, ok := enums.NextTier(row.Tier); ok {
		out.NextTier = next
		out.PointsToNextTier = minPoints - row.Points
	}
	return out
}
