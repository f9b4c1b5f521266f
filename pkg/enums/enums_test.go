package enums

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderStatusTransitions(t *testing.T) {
	cases := []struct {
		from, to OrderStatus
		allowed  bool
	}{
		{OrderStatusPending, OrderStatusProcessing, true},
		{OrderStatusPending, OrderStatusCancelled, true},
		{OrderStatusProcessing, OrderStatusDelivered, true},
		{OrderStatusProcessing, OrderStatusCancelled, true},
		{OrderStatusPending, OrderStatusDelivered, false},
		{OrderStatusDelivered, OrderStatusCancelled, false},
		{OrderStatusCancelled, OrderStatusPending, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.allowed, tc.from.CanTransitionTo(tc.to), "%s -> %s", tc.from, tc.to)
	}
	assert.True(t, OrderStatusDelivered.IsTerminal())
	assert.True(t, OrderStatusCancelled.IsTerminal())
	assert.False(t, OrderStatusPending.IsTerminal())
}

func TestFoldedParsers(t *testing.T) {
	method, err := ParsePaymentMethod(" vnpay ")
	require.NoError(t, err)
	assert.Equal(t, PaymentMethodVNPay, method)
	assert.True(t, method.RedirectsToGateway())
	assert.False(t, PaymentMethodCOD.RedirectsToGateway())

	coupon, err := ParseCouponType("percentage")
	require.NoError(t, err)
	assert.Equal(t, CouponTypePercentage, coupon)

	status, err := ParseOrderStatus("delivered")
	require.NoError(t, err)
	assert.Equal(t, OrderStatusDelivered, status)

	_, err = ParsePaymentMethod("paypal")
	assert.EqualError(t, err, `invalid payment method "paypal"`)
	_, err = ParseCouponType("BOGO")
	assert.Error(t, err)
}

func TestExactParsers(t *testing.T) {
	role, err := ParseRole("seller")
	require.NoError(t, err)
	assert.Equal(t, RoleSeller, role)

	_, err = ParseRole("SELLER")
	assert.Error(t, err, "roles are case sensitive")

	reason, err := ParseOutboxDLQErrorReason("max_attempts")
	require.NoError(t, err)
	assert.Equal(t, OutboxDLQReasonMaxAttempts, reason)

	_, err = ParseOutboxEventType("order_shipped")
	assert.EqualError(t, err, `invalid event type "order_shipped"`)
}

func TestTierForPoints(t *testing.T) {
	cases := map[int64]RankTier{
		0:     RankMember,
		999:   RankMember,
		1000:  RankSilver,
		4999:  RankSilver,
		5000:  RankGold,
		20000: RankDiamond,
		99999: RankDiamond,
	}
	for points, want := range cases {
		assert.Equal(t, want, TierForPoints(points), "points %d", points)
	}

	next, min, ok := NextTier(RankMember)
	require.True(t, ok)
	assert.Equal(t, RankSilver, next)
	assert.EqualValues(t, 1000, min)

	_, _, ok = NextTier(RankDiamond)
	assert.False(t, ok)
}
