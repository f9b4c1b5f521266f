package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/api/middleware"
	"github.com/angelmondragon/storefront-backend/internal/catalog"
	"github.com/angelmondragon/storefront-backend/internal/coupons"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/internal/payments"
	"github.com/angelmondragon/storefront-backend/internal/rank"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
)

var testLogger = logger.New(logger.Options{ServiceName: "controllers-test", Output: io.Discard})

type stubCatalog struct {
	catalog.Service
	lastQuery catalog.ProductQuery
	savedID   *uuid.UUID
}

func (s *stubCatalog) ListProducts(ctx context.Context, q catalog.ProductQuery) (*catalog.ProductPage, error) {
	s.lastQuery = q
	return &catalog.ProductPage{Products: []catalog.ProductDTO{}, Pagination: q.Page.Meta(0)}, nil
}

func (s *stubCatalog) GetProduct(ctx context.Context, id uuid.UUID) (*catalog.ProductDTO, error) {
	return &catalog.ProductDTO{ID: id, Name: "Ao thun"}, nil
}

func (s *stubCatalog) SaveCategory(ctx context.Context, id *uuid.UUID, input catalog.CategoryInput) (*catalog.CategoryDTO, error) {
	s.savedID = id
	return &catalog.CategoryDTO{ID: uuid.New(), Name: input.Name, Slug: "ao"}, nil
}

type stubCoupons struct {
	coupons.Service
	err error
}

func (s stubCoupons) Validate(ctx context.Context, userID uuid.UUID, code string, orderAmount int64) (*coupons.CouponDTO, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &coupons.CouponDTO{Code: code, Type: enums.CouponTypePercentage, Value: 10}, nil
}

type stubOrders struct {
	orders.Service
	actor outbox.ActorRef
	input orders.CreateOrderInput
}

func (s *stubOrders) Create(ctx context.Context, userID uuid.UUID, input orders.CreateOrderInput) (*orders.OrderDTO, error) {
	s.input = input
	return &orders.OrderDTO{ID: uuid.New(), UserID: userID, Total: 180000}, nil
}

func (s *stubOrders) UpdateStatus(ctx context.Context, actor outbox.ActorRef, orderID uuid.UUID, input orders.UpdateStatusInput) (*orders.OrderDTO, error) {
	s.actor = actor
	return &orders.OrderDTO{ID: orderID, Status: enums.OrderStatus(input.Status)}, nil
}

type stubPayments struct {
	payments.Service
	result *payments.ReturnResult
	ipn    payments.IPNResponse
}

func (s stubPayments) HandleReturn(ctx context.Context, query url.Values) (*payments.ReturnResult, error) {
	return s.result, nil
}

func (s stubPayments) HandleIPN(ctx context.Context, query url.Values) payments.IPNResponse {
	return s.ipn
}

type stubRank struct {
	rank.Service
}

func (stubRank) Spin(ctx context.Context, userID uuid.UUID) (*rank.SpinResult, error) {
	return &rank.SpinResult{Reward: rank.RewardDTO{Index: 3, Name: "Better luck"}, RewardIndex: 3, SpinsRemaining: 1}, nil
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body
}

func asCustomer(req *http.Request) *http.Request {
	return req.WithContext(middleware.WithIdentity(req.Context(), uuid.New(), enums.RoleCustomer))
}

func TestProductFilterParsesQuery(t *testing.T) {
	svc := &stubCatalog{}
	category := uuid.New()
	req := httptest.NewRequest(http.MethodGet, "/api/products/filter?category="+category.String()+"&minPrice=1000&maxPrice=5000&sort=price_asc&page=2&limit=10", nil)
	rec := httptest.NewRecorder()

	ProductFilter(svc, testLogger).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, svc.lastQuery.CategoryID)
	assert.Equal(t, category, *svc.lastQuery.CategoryID)
	assert.Equal(t, int64(1000), *svc.lastQuery.MinPrice)
	assert.Equal(t, int64(5000), *svc.lastQuery.MaxPrice)
	assert.Equal(t, catalog.SortPriceAsc, svc.lastQuery.Sort)
	assert.Equal(t, 2, svc.lastQuery.Page.Page)
	assert.Equal(t, 10, svc.lastQuery.Page.Limit)
	assert.False(t, svc.lastQuery.IncludeInactive)
	assert.Equal(t, true, decodeBody(t, rec)["success"])
}

func TestProductFilterRejectsInvertedPriceBand(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/products/filter?minPrice=9000&maxPrice=10", nil)
	rec := httptest.NewRecorder()

	ProductFilter(&stubCatalog{}, testLogger).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, string(pkgerrors.CodeValidation), decodeBody(t, rec)["code"])
}

func TestProductSearchRequiresTerm(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/products/search?q=%20%20", nil)
	rec := httptest.NewRecorder()

	ProductSearch(&stubCatalog{}, testLogger).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProductGetReadsPathParam(t *testing.T) {
	router := chi.NewRouter()
	router.Get("/products/{productId}", ProductGet(&stubCatalog{}, testLogger))
	id := uuid.New()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/products/"+id.String(), nil))

	require.Equal(t, http.StatusOK, rec.Code)
	product := decodeBody(t, rec)["product"].(map[string]any)
	assert.Equal(t, id.String(), product["id"])

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/products/not-a-uuid", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCartRequiresIdentity(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/cart", nil)
	rec := httptest.NewRecorder()

	CartGet(nil, testLogger).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	rec = httptest.NewRecorder()
	CartUpdate(cartStub{}, testLogger).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/cart/update", strings.NewReader(`{"cart":{}}`)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCouponValidateSurfacesServerMessage(t *testing.T) {
	svc := stubCoupons{err: pkgerrors.New(pkgerrors.CodeValidation, "Order amount is below the minimum for this coupon")}
	req := asCustomer(httptest.NewRequest(http.MethodPost, "/api/coupons/validate", strings.NewReader(`{"code":"SALE10","orderAmount":1000}`)))
	rec := httptest.NewRecorder()

	CouponValidate(svc, testLogger).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "Order amount is below the minimum for this coupon", body["message"])
}

func TestCouponValidateSuccess(t *testing.T) {
	req := asCustomer(httptest.NewRequest(http.MethodPost, "/api/coupons/validate", strings.NewReader(`{"code":" SALE10 ","orderAmount":300000}`)))
	rec := httptest.NewRecorder()

	CouponValidate(stubCoupons{}, testLogger).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	coupon := decodeBody(t, rec)["coupon"].(map[string]any)
	assert.Equal(t, "SALE10", coupon["code"])
}

func TestOrderCreateDecodesItems(t *testing.T) {
	svc := &stubOrders{}
	addressID, productID := uuid.New(), uuid.New()
	payload := `{"address":"` + addressID.String() + `","items":[{"product":"` + productID.String() + `","quantity":2}],"paymentMethod":"COD"}`
	req := asCustomer(httptest.NewRequest(http.MethodPost, "/api/orders/create", strings.NewReader(payload)))
	rec := httptest.NewRecorder()

	OrderCreate(svc, testLogger).ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, addressID, svc.input.AddressID)
	require.Len(t, svc.input.Items, 1)
	assert.Equal(t, 2, svc.input.Items[0].Quantity)
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Contains(t, body, "order")
}

func TestOrderCreateRejectsUnknownFields(t *testing.T) {
	req := asCustomer(httptest.NewRequest(http.MethodPost, "/api/orders/create", strings.NewReader(`{"total":1}`)))
	rec := httptest.NewRecorder()

	OrderCreate(&stubOrders{}, testLogger).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestVNPayReturnReportsFailureAsRecoverable(t *testing.T) {
	orderID := uuid.New()
	svc := stubPayments{result: &payments.ReturnResult{OrderID: orderID, ResponseCode: "24", Message: "Payment was cancelled"}}
	rec := httptest.NewRecorder()

	VNPayReturn(svc, testLogger).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/payments/vnpay-return?vnp_ResponseCode=24", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "Payment was cancelled", body["message"])
	assert.Equal(t, orderID.String(), body["orderId"])
}

func TestVNPayReturnSuccess(t *testing.T) {
	svc := stubPayments{result: &payments.ReturnResult{Success: true, OrderID: uuid.New(), ResponseCode: "00", Message: "Payment successful"}}
	rec := httptest.NewRecorder()

	VNPayReturn(svc, testLogger).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/payments/vnpay-return", nil))

	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "00", body["responseCode"])
}

func TestVNPayIPNWritesGatewayFormat(t *testing.T) {
	svc := stubPayments{ipn: payments.IPNResponse{RspCode: payments.IPNAlreadyConfirmed, Message: "Order already confirmed"}}
	rec := httptest.NewRecorder()

	VNPayIPN(svc, testLogger).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/payments/vnpay-ipn", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "02", body["RspCode"])
	assert.NotContains(t, body, "success")
}

func TestRankSpinFlattensOutcome(t *testing.T) {
	rec := httptest.NewRecorder()
	RankSpin(stubRank{}, testLogger).ServeHTTP(rec, asCustomer(httptest.NewRequest(http.MethodPost, "/api/user-rank/spin", nil)))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, float64(3), body["rewardIndex"])
	assert.Contains(t, body, "reward")
	assert.Contains(t, body, "coupon")
}

func TestSellerOrderStatusPassesActor(t *testing.T) {
	svc := &stubOrders{}
	router := chi.NewRouter()
	router.Post("/orders/{orderId}/status", SellerOrderStatus(svc, testLogger))
	sellerID := uuid.New()
	req := httptest.NewRequest(http.MethodPost, "/orders/"+uuid.NewString()+"/status", strings.NewReader(`{"status":"PROCESSING"}`))
	req = req.WithContext(middleware.WithIdentity(req.Context(), sellerID, enums.RoleSeller))
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, sellerID, svc.actor.UserID)
	assert.Equal(t, "seller", svc.actor.Role)
}

func TestSellerOrderListRejectsUnknownStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	SellerOrderList(&stubOrders{}, testLogger).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/seller/orders?status=SHIPPED", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSellerCategorySaveCreatesOrUpdates(t *testing.T) {
	svc := &stubCatalog{}
	router := chi.NewRouter()
	router.Post("/categories", SellerCategorySave(svc, testLogger))
	router.Put("/categories/{categoryId}", SellerCategorySave(svc, testLogger))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/categories", strings.NewReader(`{"name":"Ao"}`)))
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Nil(t, svc.savedID)

	id := uuid.New()
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/categories/"+id.String(), strings.NewReader(`{"name":"Ao"}`)))
	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, svc.savedID)
	assert.Equal(t, id, *svc.savedID)
}

func TestHealthReady(t *testing.T) {
	rec := httptest.NewRecorder()
	HealthReady(stubPinger{}, stubPinger{}, testLogger).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	HealthReady(stubPinger{}, stubPinger{err: errors.New("dial tcp: refused")}, testLogger).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, string(pkgerrors.CodeDependency), body["code"])
	assert.Equal(t, map[string]any{"database": "ok", "redis": "unavailable"}, body["details"])

	rec = httptest.NewRecorder()
	HealthReady(stubPinger{}, nil, testLogger).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"redis":"skipped"`)
}

type cartStub struct{}

func (cartStub) Get(ctx context.Context, userID uuid.UUID) (map[string]int, error) {
	return map[string]int{}, nil
}

func (cartStub) Update(ctx context.Context, userID uuid.UUID, items map[string]int) (map[string]int, error) {
	return items, nil
}

func (cartStub) Clear(ctx context.Context, tx *gorm.DB, userID uuid.UUID) error {
	return nil
}
