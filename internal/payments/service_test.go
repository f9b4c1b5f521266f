package payments

import (
	"context"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
)

type fixture struct {
	svc    *service
	conn   *gorm.DB
	cart   cart.Service
	signer *Signer
	user   uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn := dbtest.Open(t, models.All()...)
	signer, err := NewSigner(testVNPayConfig())
	require.NoError(t, err)
	cartSvc, err := cart.NewService(cart.NewRepository(conn))
	require.NoError(t, err)

	svc, err := NewService(ServiceParams{
		Repo:   NewRepository(conn),
		Tx:     db.NewFromGorm(conn),
		Signer: signer,
		Cart:   cartSvc,
		Outbox: outbox.NewService(outbox.NewRepository(conn), nil),
	})
	require.NoError(t, err)

	return &fixture{svc: svc.(*service), conn: conn, cart: cartSvc, signer: signer, user: uuid.New()}
}

func (f *fixture) order(t *testing.T, method enums.PaymentMethod, total int64) models.Order {
	t.Helper()
	order := models.Order{
		UserID:        f.user,
		Subtotal:      decimal.NewFromInt(total),
		Total:         decimal.NewFromInt(total),
		PaymentMethod: method,
		PaymentStatus: enums.PaymentStatusPending,
		Status:        enums.OrderStatusPending,
	}
	require.NoError(t, f.conn.Create(&order).Error)
	return order
}

func (f *fixture) callback(orderID uuid.UUID, amount int64, code string) url.Values {
	query := url.Values{}
	query.Set("vnp_TxnRef", orderID.String())
	query.Set("vnp_Amount", strconv.FormatInt(amount*100, 10))
	query.Set("vnp_ResponseCode", code)
	query.Set("vnp_TransactionStatus", code)
	query.Set("vnp_TransactionNo", "14226112")
	query.Set("vnp_TmnCode", "DEMO0001")
	query.Set("vnp_SecureHash", f.signer.sign(canonicalQuery(query)))
	return query
}

func (f *fixture) reload(t *testing.T, id uuid.UUID) models.Order {
	t.Helper()
	var order models.Order
	require.NoError(t, f.conn.First(&order, "id = ?", id).Error)
	return order
}

func (f *fixture) countEvents(t *testing.T, eventType enums.OutboxEventType) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.conn.Model(&models.OutboxEvent{}).Where("event_type = ?", eventType).Count(&n).Error)
	return n
}

func codeOf(err error) pkgerrors.Code {
	if typed := pkgerrors.As(err); typed != nil {
		return typed.Code()
	}
	return ""
}

func TestCreateVNPayURL(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.order(t, enums.PaymentMethodVNPay, 405000)

	raw, err := f.svc.CreateVNPayURL(ctx, f.user, CreateURLInput{OrderID: order.ID, Amount: 405000}, "10.0.0.1")
	require.NoError(t, err)
	parsed, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, order.ID.String(), parsed.Query().Get("vnp_TxnRef"))
	assert.Equal(t, "40500000", parsed.Query().Get("vnp_Amount"))
	assert.True(t, f.signer.Verify(parsed.Query()))
}

func TestCreateVNPayURLRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	vnpay := f.order(t, enums.PaymentMethodVNPay, 405000)
	cod := f.order(t, enums.PaymentMethodCOD, 405000)

	_, err := f.svc.CreateVNPayURL(ctx, uuid.New(), CreateURLInput{OrderID: vnpay.ID, Amount: 405000}, "")
	assert.Equal(t, pkgerrors.CodeNotFound, codeOf(err))

	_, err = f.svc.CreateVNPayURL(ctx, f.user, CreateURLInput{OrderID: cod.ID, Amount: 405000}, "")
	assert.Equal(t, pkgerrors.CodeValidation, codeOf(err))

	_, err = f.svc.CreateVNPayURL(ctx, f.user, CreateURLInput{OrderID: vnpay.ID, Amount: 400000}, "")
	assert.Equal(t, pkgerrors.CodeValidation, codeOf(err))

	require.NoError(t, f.conn.Model(&models.Order{}).Where("id = ?", vnpay.ID).
		Update("payment_status", enums.PaymentStatusPaid).Error)
	_, err = f.svc.CreateVNPayURL(ctx, f.user, CreateURLInput{OrderID: vnpay.ID, Amount: 405000}, "")
	assert.Equal(t, pkgerrors.CodeStateConflict, codeOf(err))
}

func TestHandleReturnSuccessIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.order(t, enums.PaymentMethodVNPay, 405000)
	_, err := f.cart.Update(ctx, f.user, map[string]int{uuid.NewString() + "|": 2})
	require.NoError(t, err)

	query := f.callback(order.ID, 405000, ResponseSuccess)
	result, err := f.svc.HandleReturn(ctx, query)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, order.ID, result.OrderID)

	got := f.reload(t, order.ID)
	assert.Equal(t, enums.PaymentStatusPaid, got.PaymentStatus)
	require.NotNil(t, got.PaymentRef)
	assert.Equal(t, "14226112", *got.PaymentRef)
	assert.NotNil(t, got.PaidAt)

	items, err := f.cart.Get(ctx, f.user)
	require.NoError(t, err)
	assert.Empty(t, items)

	ipn := f.svc.HandleIPN(ctx, query)
	assert.Equal(t, IPNAlreadyConfirmed, ipn.RspCode)
	again, err := f.svc.HandleReturn(ctx, query)
	require.NoError(t, err)
	assert.True(t, again.Success)
	assert.EqualValues(t, 1, f.countEvents(t, enums.EventOrderPaid))
}

func TestHandleReturnFailureKeepsCart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.order(t, enums.PaymentMethodVNPay, 405000)
	_, err := f.cart.Update(ctx, f.user, map[string]int{uuid.NewString() + "|": 1})
	require.NoError(t, err)

	result, err := f.svc.HandleReturn(ctx, f.callback(order.ID, 405000, "24"))
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, "Payment was cancelled", result.Message)
	assert.Equal(t, enums.PaymentStatusFailed, f.reload(t, order.ID).PaymentStatus)

	items, err := f.cart.Get(ctx, f.user)
	require.NoError(t, err)
	assert.Len(t, items, 1)
	assert.EqualValues(t, 1, f.countEvents(t, enums.EventOrderPaymentFailed))

	// a retried payment may still succeed
	ipn := f.svc.HandleIPN(ctx, f.callback(order.ID, 405000, ResponseSuccess))
	assert.Equal(t, IPNConfirmed, ipn.RspCode)
	assert.Equal(t, enums.PaymentStatusPaid, f.reload(t, order.ID).PaymentStatus)
}

func TestHandleIPNRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.order(t, enums.PaymentMethodVNPay, 405000)

	tampered := f.callback(order.ID, 405000, ResponseSuccess)
	tampered.Set("vnp_Amount", "100")
	assert.Equal(t, IPNInvalidSignature, f.svc.HandleIPN(ctx, tampered).RspCode)

	assert.Equal(t, IPNInvalidAmount, f.svc.HandleIPN(ctx, f.callback(order.ID, 1000, ResponseSuccess)).RspCode)
	assert.Equal(t, IPNOrderNotFound, f.svc.HandleIPN(ctx, f.callback(uuid.New(), 405000, ResponseSuccess)).RspCode)
	assert.Equal(t, enums.PaymentStatusPending, f.reload(t, order.ID).PaymentStatus)

	_, err := f.svc.HandleReturn(ctx, tampered)
	assert.Equal(t, pkgerrors.CodeValidation, codeOf(err))
}

func TestHandleIPNIgnoresCancelledOrders(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.order(t, enums.PaymentMethodVNPay, 405000)
	now := time.Now().UTC()
	require.NoError(t, f.conn.Model(&models.Order{}).Where("id = ?", order.ID).
		Updates(map[string]any{"status": enums.OrderStatusCancelled, "cancelled_at": now}).Error)

	assert.Equal(t, IPNAlreadyConfirmed, f.svc.HandleIPN(ctx, f.callback(order.ID, 405000, ResponseSuccess)).RspCode)
	assert.Equal(t, enums.PaymentStatusPending, f.reload(t, order.ID).PaymentStatus)
}
