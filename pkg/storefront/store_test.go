package storefront

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/pkg/pricing"
)

func TestLoadPricesCartFromCatalog(t *testing.T) {
	api, srv := newFakeAPI(t)
	api.cart = map[string]int{"P1|": 2, "P2|V1": 1}
	store, _ := newSignedInStore(t, srv)

	require.NoError(t, store.Load(context.Background()))

	assert.Equal(t, 3, store.Count())
	assert.Equal(t, int64(450000), store.Amount())
	addr, ok := store.SelectedAddress()
	require.True(t, ok, "default address should be preselected")
	assert.Equal(t, "A1", addr.ID)
	assert.Len(t, store.Rewards(), 4)

	_, err := store.ApplyCode(context.Background(), "sale10")
	require.NoError(t, err)
	summary := store.Summary()
	assert.Equal(t, pricing.Summary{Count: 3, Subtotal: 450000, Discount: 45000, Total: 405000}, summary)

	store.ClearCoupon()
	summary = store.Summary()
	assert.Equal(t, int64(0), summary.Discount)
	assert.Equal(t, int64(450000), summary.Total)
}

func TestFixedCouponLargerThanSubtotalClampsTotal(t *testing.T) {
	api, srv := newFakeAPI(t)
	api.cart = map[string]int{"P1|": 2, "P2|V1": 1}
	store, _ := newSignedInStore(t, srv)
	require.NoError(t, store.Load(context.Background()))

	_, err := store.ApplyCode(context.Background(), "BIGOFF")
	require.NoError(t, err)

	summary := store.Summary()
	assert.Equal(t, int64(1000000), summary.Discount)
	assert.Equal(t, int64(0), summary.Total)
}

func TestZeroQuantitiesEmptyTheCart(t *testing.T) {
	api, srv := newFakeAPI(t)
	api.cart = map[string]int{"P1|": 2, "P2|V1": 1}
	store, _ := newSignedInStore(t, srv)
	require.NoError(t, store.Load(context.Background()))

	ctx := context.Background()
	require.NoError(t, store.Set(ctx, pricing.Key("P1", ""), 0))
	require.NoError(t, store.Add(ctx, "P2", "V1", -5))

	assert.Equal(t, 0, store.Count())
	assert.Equal(t, int64(0), store.Amount())
	assert.Empty(t, store.Cart())
	api.mu.Lock()
	assert.Empty(t, api.cart, "server cart should follow local edits")
	api.mu.Unlock()
}

func TestSetRejectsNegativeQuantityLocally(t *testing.T) {
	api, srv := newFakeAPI(t)
	store, rec := newSignedInStore(t, srv)

	err := store.Set(context.Background(), pricing.Key("P1", ""), -1)
	require.ErrorIs(t, err, pricing.ErrNegativeQuantity)
	assert.Equal(t, 0, api.count("POST /api/cart/update"))
	assert.NotEmpty(t, rec.lastNotice())
}

func TestGuestCartStaysLocal(t *testing.T) {
	api, srv := newFakeAPI(t)
	client, err := NewClient(srv.URL+"/api", WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	store, err := NewStore(client)
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Load(context.Background()))
	require.NoError(t, store.Add(context.Background(), "P1", "", 1))

	assert.Equal(t, int64(100000), store.Amount())
	assert.Equal(t, 0, api.count("GET /api/cart"))
	assert.Equal(t, 0, api.count("POST /api/cart/update"))
}

func TestApplyCodeRefusedWhileVoucherSelected(t *testing.T) {
	api, srv := newFakeAPI(t)
	api.cart = map[string]int{"P1|": 1}
	store, rec := newSignedInStore(t, srv)
	require.NoError(t, store.Load(context.Background()))

	vouchers := store.AvailableVouchers(time.Now())
	require.Len(t, vouchers, 1)
	_, err := store.SelectVoucher(context.Background(), vouchers[0].ID)
	require.NoError(t, err)
	coupon, source := store.AppliedCoupon()
	require.NotNil(t, coupon)
	assert.Equal(t, SourceVoucher, source)

	before := api.count("POST /api/coupons/validate")
	_, err = store.ApplyCode(context.Background(), "SALE10")
	require.ErrorIs(t, err, ErrVoucherSelected)
	assert.Equal(t, before, api.count("POST /api/coupons/validate"), "no request may be sent")
	assert.Equal(t, ErrVoucherSelected.Error(), rec.lastNotice())

	coupon, source = store.AppliedCoupon()
	assert.Equal(t, "SPIN5", coupon.Code)
	assert.Equal(t, SourceVoucher, source)
}

func TestSelectVoucherReplacesTypedCode(t *testing.T) {
	api, srv := newFakeAPI(t)
	api.cart = map[string]int{"P1|": 1}
	store, _ := newSignedInStore(t, srv)
	require.NoError(t, store.Load(context.Background()))

	_, err := store.ApplyCode(context.Background(), "SALE10")
	require.NoError(t, err)
	_, err = store.SelectVoucher(context.Background(), "UC1")
	require.NoError(t, err)

	coupon, source := store.AppliedCoupon()
	assert.Equal(t, "SPIN5", coupon.Code)
	assert.Equal(t, SourceVoucher, source)
}

func TestRejectedCodeClearsSlotAndNotifies(t *testing.T) {
	api, srv := newFakeAPI(t)
	api.cart = map[string]int{"P1|": 1}
	store, rec := newSignedInStore(t, srv)
	require.NoError(t, store.Load(context.Background()))

	_, err := store.ApplyCode(context.Background(), "SALE10")
	require.NoError(t, err)
	_, err = store.ApplyCode(context.Background(), "NOPE")
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "Coupon code does not exist", apiErr.Message)
	assert.Equal(t, "Coupon code does not exist", rec.lastNotice())
	coupon, source := store.AppliedCoupon()
	assert.Nil(t, coupon)
	assert.Equal(t, SourceNone, source)
}

func TestStaleKeysAndPrune(t *testing.T) {
	api, srv := newFakeAPI(t)
	api.cart = map[string]int{"P1|": 1, "GONE|": 3, "P2|V9": 1}
	store, _ := newSignedInStore(t, srv)
	require.NoError(t, store.Load(context.Background()))

	assert.Equal(t, int64(100000), store.Amount())
	assert.ElementsMatch(t, []pricing.CartKey{"GONE|", "P2|V9"}, store.StaleKeys())

	require.NoError(t, store.PruneStale(context.Background()))
	assert.Empty(t, store.StaleKeys())
	assert.Equal(t, 1, store.Count())
}

func TestSessionExpirySignsOut(t *testing.T) {
	api, srv := newFakeAPI(t)
	api.cart = map[string]int{"P1|": 1}
	signedOut := make(chan struct{}, 1)
	store, rec := newSignedInStore(t, srv, OnSignOut(func() { signedOut <- struct{}{} }))
	require.NoError(t, store.Load(context.Background()))
	require.Equal(t, 1, store.Count())

	api.mu.Lock()
	api.expired = true
	api.mu.Unlock()

	err := store.RefreshCart(context.Background())
	require.Error(t, err)
	assert.True(t, IsSessionExpired(err))
	assert.False(t, store.client.SignedIn())
	assert.Equal(t, 0, store.Count())
	_, ok := store.Rank()
	assert.False(t, ok)
	assert.Contains(t, rec.notices, "Your session has expired, please sign in again")

	select {
	case <-signedOut:
	default:
		t.Fatal("sign-out hook not invoked")
	}
}

func TestCloseCancelsInFlightRequests(t *testing.T) {
	api, srv := newFakeAPI(t)
	api.block = make(chan struct{})
	api.entered = make(chan struct{})
	store, _ := newSignedInStore(t, srv)

	errc := make(chan error, 1)
	go func() { errc <- store.RefreshRank(context.Background()) }()

	<-api.entered
	store.Close()

	select {
	case err := <-errc:
		require.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("request was not cancelled by Close")
	}
	_, ok := store.Rank()
	assert.False(t, ok, "late responses must not update state")
	assert.ErrorIs(t, store.RefreshCart(context.Background()), ErrClosed)
	close(api.block)
}
