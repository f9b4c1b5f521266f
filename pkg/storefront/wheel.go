package storefront

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/angelmondragon/storefront-backend/pkg/wheel"
)

// wheelBackend feeds a wheel.Spinner from the rank endpoints. The spin
// balance is always re-read from the server, never decremented locally.
type wheelBackend struct {
	store   *Store
	granted atomic.Bool
}

func (b *wheelBackend) Spin(ctx context.Context) (wheel.Outcome, error) {
	ctx, done, err := b.store.scope(ctx)
	if err != nil {
		return wheel.Outcome{}, err
	}
	defer done()

	result, err := b.store.client.Spin(ctx)
	if err != nil {
		return wheel.Outcome{}, b.store.fail(ctx, err)
	}
	outcome := wheel.Outcome{Index: result.RewardIndex, RewardName: result.Reward.Name}
	if result.Coupon != nil {
		outcome.CouponCode = result.Coupon.Code
		b.granted.Store(true)
	}
	return outcome, nil
}

// SpinsRemaining refreshes the rank, and the vouchers when the last spin
// granted a coupon.
func (b *wheelBackend) SpinsRemaining(ctx context.Context) (int, error) {
	if err := b.store.RefreshRank(ctx); err != nil {
		return 0, err
	}
	if b.granted.CompareAndSwap(true, false) {
		_ = b.store.RefreshVouchers(ctx)
	}
	rank, ok := b.store.Rank()
	if !ok {
		return 0, nil
	}
	return rank.SpinsRemaining, nil
}

// NewSpinner builds a reward wheel over the server's segments and loads the
// current spin balance.
func (s *Store) NewSpinner(ctx context.Context, opts ...wheel.Option) (*wheel.Spinner, error) {
	if len(s.Rewards()) == 0 {
		if err := s.run(ctx, s.refreshRewards); err != nil {
			return nil, err
		}
	}
	rewards := s.Rewards()
	if len(rewards) == 0 {
		return nil, errors.New("storefront: no wheel segments configured")
	}
	segments := make([]wheel.Segment, 0, len(rewards))
	for _, r := range rewards {
		segments = append(segments, wheel.Segment{Name: r.Name, Color: r.Color})
	}
	spinner, err := wheel.NewSpinner(&wheelBackend{store: s}, segments, opts...)
	if err != nil {
		return nil, err
	}
	if err := spinner.Refresh(ctx); err != nil {
		return nil, err
	}
	return spinner, nil
}
