package storefront

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// fakeAPI is an in-memory storefront server speaking the JSON envelope.
type fakeAPI struct {
	mu        sync.Mutex
	calls     map[string]int
	headers   map[string]http.Header
	keys      map[string][]string
	products  []Product
	cart      map[string]int
	addresses []Address
	vouchers  []Voucher
	coupons   map[string]Coupon
	rank      Rank
	rewards   []Reward
	spin      SpinResult
	orderErr  string
	// paymentFailures makes the next n payment link requests fail.
	paymentFailures int
	lastOrder OrderRequest
	expired   bool
	block     chan struct{}
	entered   chan struct{}
}

func newFakeAPI(t *testing.T) (*fakeAPI, *httptest.Server) {
	t.Helper()
	api := &fakeAPI{
		calls:   map[string]int{},
		headers: map[string]http.Header{},
		keys:    map[string][]string{},
		products: []Product{
			{ID: "P1", Name: "Phone case", OfferPrice: 100000, IsActive: true},
			{ID: "P2", Name: "Phone", OfferPrice: 9000000, IsActive: true, Variants: []Variant{
				{ID: "V1", OfferPrice: 250000, Attributes: map[string]string{"color": "black"}},
			}},
		},
		cart:      map[string]int{},
		addresses: []Address{{ID: "A1", Recipient: "Lan", Phone: "0900000000", Line: "1 Le Loi", City: "HCMC", IsDefault: true}},
		coupons: map[string]Coupon{
			"SALE10": {ID: "C1", Code: "SALE10", Type: enums.CouponTypePercentage, Value: 10},
			"BIGOFF": {ID: "C2", Code: "BIGOFF", Type: enums.CouponTypeFixedAmount, Value: 1000000},
			"SPIN5":  {ID: "C3", Code: "SPIN5", Type: enums.CouponTypePercentage, Value: 5, EndDate: time.Now().Add(24 * time.Hour)},
		},
		rank: Rank{Tier: enums.RankMember, SpinsRemaining: 1},
		rewards: []Reward{
			{Index: 0, Name: "5% off", Color: "#f87171"},
			{Index: 1, Name: "Better luck", Color: "#fbbf24"},
			{Index: 2, Name: "10% off", Color: "#34d399"},
			{Index: 3, Name: "50k off", Color: "#60a5fa"},
		},
	}
	api.vouchers = []Voucher{{ID: "UC1", Status: enums.UserCouponUnused, Source: enums.UserCouponSourceSpin, Coupon: api.coupons["SPIN5"]}}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/products/list", func(w http.ResponseWriter, r *http.Request) {
		api.mu.Lock()
		defer api.mu.Unlock()
		writeEnvelope(w, http.StatusOK, map[string]any{"products": api.products, "pagination": map[string]any{"page": 1}})
	})
	mux.HandleFunc("GET /api/user-rank/rewards", func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusOK, map[string]any{"rewards": api.rewards})
	})
	mux.HandleFunc("GET /api/cart", func(w http.ResponseWriter, r *http.Request) {
		api.mu.Lock()
		defer api.mu.Unlock()
		writeEnvelope(w, http.StatusOK, map[string]any{"cart": api.cart})
	})
	mux.HandleFunc("POST /api/cart/update", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Cart map[string]int `json:"cart"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		api.mu.Lock()
		defer api.mu.Unlock()
		api.cart = body.Cart
		writeEnvelope(w, http.StatusOK, map[string]any{"cart": api.cart})
	})
	mux.HandleFunc("GET /api/addresses", func(w http.ResponseWriter, r *http.Request) {
		api.mu.Lock()
		defer api.mu.Unlock()
		writeEnvelope(w, http.StatusOK, map[string]any{"addresses": api.addresses})
	})
	mux.HandleFunc("GET /api/user-coupons/my", func(w http.ResponseWriter, r *http.Request) {
		api.mu.Lock()
		defer api.mu.Unlock()
		writeEnvelope(w, http.StatusOK, map[string]any{"userCoupons": api.vouchers})
	})
	mux.HandleFunc("GET /api/user-rank/my-rank", func(w http.ResponseWriter, r *http.Request) {
		if api.block != nil {
			close(api.entered)
			select {
			case <-api.block:
			case <-r.Context().Done():
				return
			}
		}
		api.mu.Lock()
		defer api.mu.Unlock()
		writeEnvelope(w, http.StatusOK, map[string]any{"rank": api.rank})
	})
	mux.HandleFunc("POST /api/user-rank/spin", func(w http.ResponseWriter, r *http.Request) {
		api.mu.Lock()
		defer api.mu.Unlock()
		api.rank.SpinsRemaining--
		writeEnvelope(w, http.StatusOK, api.spin)
	})
	mux.HandleFunc("POST /api/coupons/validate", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Code        string `json:"code"`
			OrderAmount int64  `json:"orderAmount"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		api.mu.Lock()
		defer api.mu.Unlock()
		coupon, ok := api.coupons[strings.ToUpper(body.Code)]
		if !ok {
			writeEnvelope(w, http.StatusBadRequest, map[string]any{"success": false, "code": "VALIDATION_ERROR", "message": "Coupon code does not exist"})
			return
		}
		if body.OrderAmount < coupon.MinOrderAmount {
			writeEnvelope(w, http.StatusBadRequest, map[string]any{"success": false, "code": "VALIDATION_ERROR", "message": fmt.Sprintf("Minimum order amount is %d", coupon.MinOrderAmount)})
			return
		}
		writeEnvelope(w, http.StatusOK, map[string]any{"coupon": coupon})
	})
	mux.HandleFunc("POST /api/orders/create", func(w http.ResponseWriter, r *http.Request) {
		var body OrderRequest
		_ = json.NewDecoder(r.Body).Decode(&body)
		api.mu.Lock()
		defer api.mu.Unlock()
		api.lastOrder = body
		if api.orderErr != "" {
			writeEnvelope(w, http.StatusBadRequest, map[string]any{"success": false, "code": "VALIDATION_ERROR", "message": api.orderErr})
			return
		}
		order := Order{ID: "O1", PaymentMethod: body.PaymentMethod, Subtotal: 450000, Total: 450000}
		writeEnvelope(w, http.StatusCreated, map[string]any{"order": order})
	})
	mux.HandleFunc("POST /api/payments/create-vnpay-payment", func(w http.ResponseWriter, r *http.Request) {
		api.mu.Lock()
		failing := api.paymentFailures > 0
		if failing {
			api.paymentFailures--
		}
		api.mu.Unlock()
		if failing {
			writeEnvelope(w, http.StatusBadGateway, map[string]any{"success": false, "code": "DEPENDENCY_ERROR", "message": "Payment gateway unavailable"})
			return
		}
		writeEnvelope(w, http.StatusOK, map[string]any{"paymentUrl": "https://sandbox.vnpayment.vn/paymentv2/vpcpay.html?vnp_TxnRef=O1"})
	})
	mux.HandleFunc("GET /api/payments/vnpay-return", func(w http.ResponseWriter, r *http.Request) {
		orderID := r.URL.Query().Get("vnp_TxnRef")
		if r.URL.Query().Get("vnp_ResponseCode") != "00" {
			writeEnvelope(w, http.StatusOK, map[string]any{"success": false, "message": "Payment failed", "orderId": orderID, "responseCode": "24"})
			return
		}
		writeEnvelope(w, http.StatusOK, map[string]any{"orderId": orderID, "responseCode": "00", "message": "Payment successful"})
	})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Method + " " + r.URL.Path
		api.mu.Lock()
		api.calls[key]++
		api.headers[key] = r.Header.Clone()
		if k := r.Header.Get("Idempotency-Key"); k != "" {
			api.keys[key] = append(api.keys[key], k)
		}
		expired := api.expired
		api.mu.Unlock()
		if expired && r.Header.Get("Authorization") != "" {
			writeEnvelope(w, http.StatusUnauthorized, map[string]any{"success": false, "code": "SESSION_EXPIRED", "message": "Session expired"})
			return
		}
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)
	return api, srv
}

func (a *fakeAPI) count(key string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls[key]
}

func (a *fakeAPI) header(key, name string) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.headers[key].Get(name)
}

func (a *fakeAPI) idempotencyKeys(key string) []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.keys[key]...)
}

func writeEnvelope(w http.ResponseWriter, status int, payload any) {
	body := map[string]any{"success": true}
	raw, _ := json.Marshal(payload)
	_ = json.Unmarshal(raw, &body)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

type recorder struct {
	mu      sync.Mutex
	notices []string
	targets []string
}

func (r *recorder) Notify(_ NoticeLevel, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, message)
}

func (r *recorder) Navigate(target string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.targets = append(r.targets, target)
}

func (r *recorder) lastNotice() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.notices) == 0 {
		return ""
	}
	return r.notices[len(r.notices)-1]
}

func (r *recorder) lastTarget() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.targets) == 0 {
		return ""
	}
	return r.targets[len(r.targets)-1]
}

// newSignedInStore returns a loaded store for a signed-in shopper.
func newSignedInStore(t *testing.T, srv *httptest.Server, opts ...StoreOption) (*Store, *recorder) {
	t.Helper()
	client, err := NewClient(srv.URL+"/api", WithToken("token"), WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	rec := &recorder{}
	opts = append([]StoreOption{WithNotifier(rec), WithNavigator(rec)}, opts...)
	store, err := NewStore(client, opts...)
	require.NoError(t, err)
	t.Cleanup(store.Close)
	return store, rec
}
