package coupons

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

var fixedNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) (*service, *gorm.DB) {
	t.Helper()
	conn := dbtest.Open(t, &models.Coupon{}, &models.UserCoupon{})
	svc, err := NewService(NewRepository(conn))
	require.NoError(t, err)
	impl := svc.(*service)
	impl.now = func() time.Time { return fixedNow }
	return impl, conn
}

func couponInput(code string) CouponInput {
	return CouponInput{
		Code:      code,
		Type:      "PERCENTAGE",
		Value:     10,
		StartDate: fixedNow.Add(-24 * time.Hour),
		EndDate:   fixedNow.Add(24 * time.Hour),
	}
}

func assertMessage(t *testing.T, err error, code pkgerrors.Code, fragment string) {
	t.Helper()
	typed := pkgerrors.As(err)
	require.NotNil(t, typed, "expected typed error, got %v", err)
	assert.Equal(t, code, typed.Code())
	assert.Contains(t, typed.Message(), fragment)
}

func TestCreateNormalizesAndRejectsDuplicates(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	created, err := svc.Create(ctx, couponInput("  summer10 "))
	require.NoError(t, err)
	assert.Equal(t, "SUMMER10", created.Code)
	assert.True(t, created.IsActive)

	_, err = svc.Create(ctx, couponInput("SUMMER10"))
	assertMessage(t, err, pkgerrors.CodeConflict, "already exists")

	bad := couponInput("BAD")
	bad.Value = 150
	_, err = svc.Create(ctx, bad)
	assertMessage(t, err, pkgerrors.CodeValidation, "100")
}

func TestValidateRules(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	user := uuid.New()
	inactive := false

	mk := func(mut func(*CouponInput)) {
		in := couponInput("X")
		mut(&in)
		_, err := svc.Create(ctx, in)
		require.NoError(t, err)
	}
	mk(func(in *CouponInput) {
		in.Code = "OK10"
		in.MinOrderAmount = 200000
	})
	mk(func(in *CouponInput) {
		in.Code = "OFF"
		in.IsActive = &inactive
	})
	mk(func(in *CouponInput) {
		in.Code = "LATER"
		in.StartDate = fixedNow.Add(time.Hour)
		in.EndDate = fixedNow.Add(48 * time.Hour)
	})
	mk(func(in *CouponInput) {
		in.Code = "OLD"
		in.StartDate = fixedNow.Add(-48 * time.Hour)
		in.EndDate = fixedNow.Add(-time.Hour)
	})
	mk(func(in *CouponInput) {
		in.Code = "ONCE"
		in.UsageLimit = 1
	})

	got, err := svc.Validate(ctx, user, "ok10", 450000)
	require.NoError(t, err)
	assert.Equal(t, enums.CouponTypePercentage, got.Type)
	assert.Equal(t, int64(10), got.Value)

	_, err = svc.Validate(ctx, user, "ok10", 100000)
	assertMessage(t, err, pkgerrors.CodeValidation, "200.000đ")

	_, err = svc.Validate(ctx, user, "nope", 1)
	assertMessage(t, err, pkgerrors.CodeNotFound, "does not exist")
	_, err = svc.Validate(ctx, user, "OFF", 1)
	assertMessage(t, err, pkgerrors.CodeValidation, "no longer active")
	_, err = svc.Validate(ctx, user, "LATER", 1)
	assertMessage(t, err, pkgerrors.CodeValidation, "not yet valid")
	_, err = svc.Validate(ctx, user, "OLD", 1)
	assertMessage(t, err, pkgerrors.CodeValidation, "expired")

	once, err := svc.repo.FindByCode(ctx, "ONCE")
	require.NoError(t, err)
	require.NoError(t, svc.Redeem(ctx, nil, user, uuid.New(), once))
	_, err = svc.Validate(ctx, user, "ONCE", 1)
	assertMessage(t, err, pkgerrors.CodeValidation, "usage limit")
	assertMessage(t, svc.Redeem(ctx, nil, user, uuid.New(), once), pkgerrors.CodeValidation, "usage limit")
}

func TestRewardVoucherLifecycle(t *testing.T) {
	ctx := context.Background()
	svc, conn := newTestService(t)
	owner, stranger := uuid.New(), uuid.New()

	var coupon *models.Coupon
	require.NoError(t, conn.Transaction(func(tx *gorm.DB) error {
		var err error
		coupon, err = svc.MintReward(ctx, tx, owner, Reward{Type: enums.CouponTypeFixedAmount, Value: 20000, ValidDays: 30, Label: "20.000đ"})
		return err
	}))
	assert.True(t, strings.HasPrefix(coupon.Code, RewardCodePrefix))
	assert.Len(t, coupon.Code, len(RewardCodePrefix)+8)
	assert.Equal(t, 1, coupon.UsageLimit)
	assert.Equal(t, fixedNow.AddDate(0, 0, 30), coupon.EndDate)

	vouchers, err := svc.MyVouchers(ctx, owner)
	require.NoError(t, err)
	require.Len(t, vouchers, 1)
	assert.Equal(t, enums.UserCouponUnused, vouchers[0].Status)
	assert.Equal(t, enums.UserCouponSourceSpin, vouchers[0].Source)
	assert.Equal(t, coupon.Code, vouchers[0].Coupon.Code)

	_, err = svc.Validate(ctx, stranger, coupon.Code, 100000)
	assertMessage(t, err, pkgerrors.CodeNotFound, "does not exist")

	orderID := uuid.New()
	require.NoError(t, conn.Transaction(func(tx *gorm.DB) error {
		return svc.Redeem(ctx, tx, owner, orderID, coupon)
	}))
	vouchers, err = svc.MyVouchers(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, enums.UserCouponUsed, vouchers[0].Status)

	require.NoError(t, conn.Transaction(func(tx *gorm.DB) error {
		return svc.Release(ctx, tx, orderID, coupon.ID)
	}))
	vouchers, err = svc.MyVouchers(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, enums.UserCouponUnused, vouchers[0].Status)
	assert.Equal(t, 0, vouchers[0].Coupon.UsedCount)
	_, err = svc.Validate(ctx, owner, coupon.Code, 100000)
	require.NoError(t, err)
}

func TestRedeemSpentVoucherFails(t *testing.T) {
	ctx := context.Background()
	svc, conn := newTestService(t)
	user := uuid.New()

	created, err := svc.Create(ctx, couponInput("VIP50"))
	require.NoError(t, err)
	require.Zero(t, created.UsageLimit, "unlimited coupon")
	require.NoError(t, svc.repo.CreateVoucher(ctx, &models.UserCoupon{
		UserID:   user,
		CouponID: created.ID,
		Status:   enums.UserCouponUnused,
		Source:   enums.UserCouponSourceGrant,
	}))
	coupon, err := svc.repo.FindByID(ctx, created.ID)
	require.NoError(t, err)

	// Both checkouts validated before either redeemed.
	_, err = svc.Validate(ctx, user, "VIP50", 100000)
	require.NoError(t, err)
	_, err = svc.Validate(ctx, user, "VIP50", 100000)
	require.NoError(t, err)

	require.NoError(t, conn.Transaction(func(tx *gorm.DB) error {
		return svc.Redeem(ctx, tx, user, uuid.New(), coupon)
	}))
	err = conn.Transaction(func(tx *gorm.DB) error {
		return svc.Redeem(ctx, tx, user, uuid.New(), coupon)
	})
	assertMessage(t, err, pkgerrors.CodeValidation, "already used")

	stored, err := svc.repo.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.UsedCount, "the failed redeem rolled back its usage bump")

	// Anyone without a voucher can still use the public code.
	require.NoError(t, conn.Transaction(func(tx *gorm.DB) error {
		return svc.Redeem(ctx, tx, uuid.New(), uuid.New(), coupon)
	}))
}

func TestExpireVouchers(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	user := uuid.New()

	coupon, err := svc.MintReward(ctx, nil, user, Reward{Type: enums.CouponTypePercentage, Value: 5, ValidDays: 1})
	require.NoError(t, err)

	n, err := svc.ExpireVouchers(ctx, fixedNow)
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = svc.ExpireVouchers(ctx, fixedNow.Add(48*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	svc.now = func() time.Time { return fixedNow.Add(time.Hour) }
	_, err = svc.Validate(ctx, user, coupon.Code, 1)
	assertMessage(t, err, pkgerrors.CodeValidation, "voucher has expired")
}

func TestDeleteUsedCouponConflicts(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	created, err := svc.Create(ctx, couponInput("GONE"))
	require.NoError(t, err)
	coupon, err := svc.repo.FindByID(ctx, created.ID)
	require.NoError(t, err)
	require.NoError(t, svc.Redeem(ctx, nil, uuid.New(), uuid.New(), coupon))

	assertMessage(t, svc.Delete(ctx, created.ID), pkgerrors.CodeConflict, "deactivate")

	fresh, err := svc.Create(ctx, couponInput("FRESH"))
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, fresh.ID))
}
