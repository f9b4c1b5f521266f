package orders

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/address"
	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/catalog"
	"github.com/angelmondragon/storefront-backend/internal/coupons"
	"github.com/angelmondragon/storefront-backend/internal/rank"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

type noLock struct{}

func (noLock) AcquireLock(context.Context, string, time.Duration) (func(context.Context) error, error) {
	return func(context.Context) error { return nil }, nil
}

type fixture struct {
	svc       *service
	conn      *gorm.DB
	catalog   catalog.Service
	addresses address.Service
	coupons   coupons.Service
	cart      cart.Service
	rank      rank.Service

	user      uuid.UUID
	addressID uuid.UUID
	p1        uuid.UUID
	p2        uuid.UUID
	v1        uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	conn := dbtest.Open(t, models.All()...)
	txr := db.NewFromGorm(conn)
	emitter := outbox.NewService(outbox.NewRepository(conn), nil)

	catalogSvc, err := catalog.NewService(catalog.NewRepository(conn), txr)
	require.NoError(t, err)
	addressSvc, err := address.NewService(address.NewRepository(conn), txr)
	require.NoError(t, err)
	couponSvc, err := coupons.NewService(coupons.NewRepository(conn))
	require.NoError(t, err)
	cartSvc, err := cart.NewService(cart.NewRepository(conn))
	require.NoError(t, err)
	rankSvc, err := rank.NewService(rank.ServiceParams{
		Repo:    rank.NewRepository(conn),
		Tx:      txr,
		Coupons: couponSvc,
		Outbox:  emitter,
		Locker:  noLock{},
		Config:  config.RewardsConfig{CouponValidDays: 30, SpinMinOrderAmount: 200000, PointUnit: 10000},
	})
	require.NoError(t, err)

	svc, err := NewService(ServiceParams{
		Repo:      NewRepository(conn),
		Tx:        txr,
		Addresses: addressSvc,
		Catalog:   catalogSvc,
		Coupons:   couponSvc,
		Rank:      rankSvc,
		Cart:      cartSvc,
		Outbox:    emitter,
	})
	require.NoError(t, err)

	f := &fixture{
		svc:       svc.(*service),
		conn:      conn,
		catalog:   catalogSvc,
		addresses: addressSvc,
		coupons:   couponSvc,
		cart:      cartSvc,
		rank:      rankSvc,
		user:      uuid.New(),
	}

	addr, err := addressSvc.Create(ctx, f.user, address.CreateInput{Recipient: "Minh", Phone: "0911", Line: "12 Lê Lợi", City: "Đà Nẵng"})
	require.NoError(t, err)
	f.addressID = addr.ID

	p1, err := catalogSvc.CreateProduct(ctx, catalog.ProductInput{Name: "P1", Price: 120000, OfferPrice: 100000})
	require.NoError(t, err)
	p2, err := catalogSvc.CreateProduct(ctx, catalog.ProductInput{
		Name:     "P2",
		Price:    300000,
		Variants: []catalog.VariantInput{{SKU: "V1", Price: 280000, OfferPrice: 250000, Attributes: map[string]string{"color": "red"}}},
	})
	require.NoError(t, err)
	f.p1, f.p2, f.v1 = p1.ID, p2.ID, p2.Variants[0].ID

	_, err = couponSvc.Create(ctx, coupons.CouponInput{
		Code:      "TEN",
		Type:      "PERCENTAGE",
		Value:     10,
		StartDate: time.Now().Add(-time.Hour),
		EndDate:   time.Now().Add(24 * time.Hour),
	})
	require.NoError(t, err)
	return f
}

func (f *fixture) input(method string, coupon *string) CreateOrderInput {
	return CreateOrderInput{
		AddressID: f.addressID,
		Items: []ItemInput{
			{ProductID: f.p1, Quantity: 2},
			{ProductID: f.p2, VariantID: &f.v1, Quantity: 1},
			{ProductID: uuid.New(), Quantity: 0},
		},
		PaymentMethod: method,
		CouponCode:    coupon,
	}
}

func codeOf(err error) pkgerrors.Code {
	if typed := pkgerrors.As(err); typed != nil {
		return typed.Code()
	}
	return ""
}

func TestCreateCODPricesAppliesCouponAndClearsCart(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.cart.Update(ctx, f.user, map[string]int{f.p1.String() + "|": 2})
	require.NoError(t, err)

	code := "ten"
	order, err := f.svc.Create(ctx, f.user, f.input("cod", &code))
	require.NoError(t, err)

	assert.Equal(t, int64(450000), order.Subtotal)
	assert.Equal(t, int64(45000), order.Discount)
	assert.Equal(t, int64(405000), order.Total)
	assert.Equal(t, enums.PaymentMethodCOD, order.PaymentMethod)
	assert.Equal(t, enums.OrderStatusPending, order.Status)
	require.NotNil(t, order.CouponCode)
	assert.Equal(t, "TEN", *order.CouponCode)
	require.Len(t, order.Items, 2)
	assert.Equal(t, "12 Lê Lợi", order.ShippingAddress.Line)

	persisted, err := f.cart.Get(ctx, f.user)
	require.NoError(t, err)
	assert.Empty(t, persisted, "COD clears the persisted cart")

	var coupon models.Coupon
	require.NoError(t, f.conn.Where("code = ?", "TEN").First(&coupon).Error)
	assert.Equal(t, 1, coupon.UsedCount)

	var events int64
	require.NoError(t, f.conn.Model(&models.OutboxEvent{}).Where("event_type = ?", enums.EventOrderCreated).Count(&events).Error)
	assert.Equal(t, int64(1), events)

	got, err := f.svc.Get(ctx, f.user, order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.Total, got.Total)
	_, err = f.svc.Get(ctx, uuid.New(), order.ID)
	assert.Equal(t, pkgerrors.CodeNotFound, codeOf(err))
}

func TestCreateVNPayKeepsCart(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.cart.Update(ctx, f.user, map[string]int{f.p1.String() + "|": 2})
	require.NoError(t, err)

	order, err := f.svc.Create(ctx, f.user, f.input("VNPAY", nil))
	require.NoError(t, err)
	assert.Equal(t, int64(450000), order.Total)
	assert.Equal(t, enums.PaymentStatusPending, order.PaymentStatus)

	persisted, err := f.cart.Get(ctx, f.user)
	require.NoError(t, err)
	assert.Len(t, persisted, 1)
}

func TestCreateRejectsBadSubmissions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	in := f.input("COD", nil)
	in.Items = []ItemInput{{ProductID: f.p1, Quantity: 0}}
	_, err := f.svc.Create(ctx, f.user, in)
	assert.Equal(t, pkgerrors.CodeValidation, codeOf(err))

	in = f.input("COD", nil)
	in.AddressID = uuid.New()
	_, err = f.svc.Create(ctx, f.user, in)
	assert.Equal(t, pkgerrors.CodeValidation, codeOf(err))

	in = f.input("COD", nil)
	in.Items = append(in.Items, ItemInput{ProductID: uuid.New(), Quantity: 1})
	_, err = f.svc.Create(ctx, f.user, in)
	assert.Equal(t, pkgerrors.CodeValidation, codeOf(err))

	_, err = f.svc.Create(ctx, f.user, f.input("PAYPAL", nil))
	assert.Equal(t, pkgerrors.CodeValidation, codeOf(err))

	unknown := "NOPE"
	_, err = f.svc.Create(ctx, f.user, f.input("COD", &unknown))
	assert.Equal(t, pkgerrors.CodeNotFound, codeOf(err))

	var n int64
	require.NoError(t, f.conn.Model(&models.Order{}).Count(&n).Error)
	assert.Zero(t, n, "rejected submissions leave no orders behind")
}

func TestStatusTransitions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	seller := outbox.ActorRef{UserID: uuid.New(), Role: string(enums.RoleSeller)}

	order, err := f.svc.Create(ctx, f.user, f.input("COD", nil))
	require.NoError(t, err)

	_, err = f.svc.UpdateStatus(ctx, seller, order.ID, UpdateStatusInput{Status: "DELIVERED"})
	assert.Equal(t, pkgerrors.CodeStateConflict, codeOf(err))

	updated, err := f.svc.UpdateStatus(ctx, seller, order.ID, UpdateStatusInput{Status: "processing"})
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusProcessing, updated.Status)

	updated, err = f.svc.UpdateStatus(ctx, seller, order.ID, UpdateStatusInput{Status: "DELIVERED"})
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusDelivered, updated.Status)
	assert.Equal(t, enums.PaymentStatusPaid, updated.PaymentStatus, "cash is collected on delivery")
	assert.NotNil(t, updated.DeliveredAt)

	r, err := f.rank.MyRank(ctx, f.user)
	require.NoError(t, err)
	assert.Equal(t, int64(45), r.Points)
	assert.Equal(t, 1, r.SpinsRemaining)

	_, err = f.svc.UpdateStatus(ctx, seller, order.ID, UpdateStatusInput{Status: "CANCELLED"})
	assert.Equal(t, pkgerrors.CodeStateConflict, codeOf(err))
}

func TestCancelReleasesCoupon(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	seller := outbox.ActorRef{UserID: uuid.New(), Role: string(enums.RoleSeller)}
	code := "TEN"

	order, err := f.svc.Create(ctx, f.user, f.input("COD", &code))
	require.NoError(t, err)
	_, err = f.svc.UpdateStatus(ctx, seller, order.ID, UpdateStatusInput{Status: "CANCELLED", Reason: "customer request"})
	require.NoError(t, err)

	var coupon models.Coupon
	require.NoError(t, f.conn.Where("code = ?", "TEN").First(&coupon).Error)
	assert.Equal(t, 0, coupon.UsedCount)
}

func TestVNPayOrderCannotProcessUnpaid(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	order, err := f.svc.Create(ctx, f.user, f.input("VNPAY", nil))
	require.NoError(t, err)

	_, err = f.svc.UpdateStatus(ctx, outbox.ActorRef{}, order.ID, UpdateStatusInput{Status: "PROCESSING"})
	assert.Equal(t, pkgerrors.CodeStateConflict, codeOf(err))
}

func TestCancelStalePayments(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	vnpay, err := f.svc.Create(ctx, f.user, f.input("VNPAY", nil))
	require.NoError(t, err)
	cod, err := f.svc.Create(ctx, f.user, f.input("COD", nil))
	require.NoError(t, err)

	n, err := f.svc.CancelStalePayments(ctx, time.Now().Add(-time.Hour), 10)
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = f.svc.CancelStalePayments(ctx, time.Now().Add(time.Hour), 10)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := f.svc.Get(ctx, f.user, vnpay.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusCancelled, got.Status)
	got, err = f.svc.Get(ctx, f.user, cod.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPending, got.Status)
}

func TestListMinePagesWithCursor(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		order, err := f.svc.Create(ctx, f.user, f.input("COD", nil))
		require.NoError(t, err)
		ids = append(ids, order.ID)
	}

	first, err := f.svc.ListMine(ctx, f.user, pagination.Params{Limit: 2})
	require.NoError(t, err)
	require.Len(t, first.Orders, 2)
	require.NotEmpty(t, first.NextCursor)

	second, err := f.svc.ListMine(ctx, f.user, pagination.Params{Limit: 2, Cursor: first.NextCursor})
	require.NoError(t, err)
	require.Len(t, second.Orders, 1)
	assert.Empty(t, second.NextCursor)

	seen := map[uuid.UUID]bool{}
	for _, o := range append(first.Orders, second.Orders...) {
		seen[o.ID] = true
	}
	for _, id := range ids {
		assert.True(t, seen[id])
	}

	_, err = f.svc.ListMine(ctx, f.user, pagination.Params{Cursor: "%%%"})
	assert.Equal(t, pkgerrors.CodeValidation, codeOf(err))
}

func TestSellerListAndDashboard(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	seller := outbox.ActorRef{Role: string(enums.RoleSeller)}

	delivered, err := f.svc.Create(ctx, f.user, f.input("COD", nil))
	require.NoError(t, err)
	for _, status := range []string{"PROCESSING", "DELIVERED"} {
		_, err = f.svc.UpdateStatus(ctx, seller, delivered.ID, UpdateStatusInput{Status: status})
		require.NoError(t, err)
	}
	_, err = f.svc.Create(ctx, f.user, f.input("COD", nil))
	require.NoError(t, err)

	pending := enums.OrderStatusPending
	page, err := f.svc.List(ctx, SellerQuery{Status: &pending})
	require.NoError(t, err)
	require.Len(t, page.Orders, 1)
	assert.Equal(t, int64(1), page.Pagination.Total)

	dash, err := f.svc.Dashboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), dash.TotalOrders)
	assert.Equal(t, int64(1), dash.OrdersByStatus["DELIVERED"])
	assert.Equal(t, int64(450000), dash.PaidRevenue)
	assert.Equal(t, int64(450000), dash.PendingPayment)
	require.Len(t, dash.TopProducts, 2)
	assert.Equal(t, f.p1, dash.TopProducts[0].ProductID)
	assert.Equal(t, int64(4), dash.TopProducts[0].Quantity)
	assert.Equal(t, int64(400000), dash.TopProducts[0].Revenue)
}
