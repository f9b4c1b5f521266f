// Package storefront is the Go client for the storefront API. Client speaks
// the JSON envelope; Store holds the shopping state a storefront session
// needs (catalog, cart, applied coupon, addresses, rank) and Checkout drives
// order submission on top of it.
package storefront

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

const (
	defaultTimeout          = 15 * time.Second
	responseReadLimit int64 = 1 << 20
	idempotencyHeader       = "Idempotency-Key"

	codeSessionExpired = "SESSION_EXPIRED"
)

var errBaseURLRequired = errors.New("storefront base url is required")

// APIError is a failed call as reported by the server, or a transport failure
// with Status 0.
type APIError struct {
	Status  int
	Code    string
	Message string
	Err     error
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("request failed with status %d", e.Status)
}

func (e *APIError) Unwrap() error { return e.Err }

// IsSessionExpired reports whether err is the server's expired-session answer.
func IsSessionExpired(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == codeSessionExpired
}

// ClientOption configures optional client behavior.
type ClientOption func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithToken sets the bearer token issued by the identity provider.
func WithToken(token string) ClientOption {
	return func(c *Client) { c.token = strings.TrimSpace(token) }
}

func WithClientLogger(logg *logger.Logger) ClientOption {
	return func(c *Client) { c.logg = logg }
}

// WithKeyGenerator replaces the Idempotency-Key source.
func WithKeyGenerator(fn func() string) ClientOption {
	return func(c *Client) {
		if fn != nil {
			c.newKey = fn
		}
	}
}

// Client calls the storefront REST API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	logg       *logger.Logger
	newKey     func() string

	mu        sync.RWMutex
	token     string
	onExpired []func()
}

// NewClient builds a client rooted at baseURL, e.g. "https://shop.example/api".
func NewClient(baseURL string, opts ...ClientOption) (*Client, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		return nil, errBaseURLRequired
	}
	if _, err := url.Parse(trimmed); err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	c := &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
		baseURL:    trimmed,
		newKey:     uuid.NewString,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// SetToken replaces the bearer token. An empty token signs the client out.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = strings.TrimSpace(token)
	c.mu.Unlock()
}

func (c *Client) SignedIn() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token != ""
}

// OnSessionExpired registers fn to run after an expired session clears the
// token. Hooks run in registration order.
func (c *Client) OnSessionExpired(fn func()) {
	if fn == nil {
		return
	}
	c.mu.Lock()
	c.onExpired = append(c.onExpired, fn)
	c.mu.Unlock()
}

func (c *Client) expireSession() {
	c.mu.Lock()
	c.token = ""
	hooks := append([]func(){}, c.onExpired...)
	c.mu.Unlock()
	for _, fn := range hooks {
		fn()
	}
}

type request struct {
	method         string
	path           string
	query          url.Values
	body           any
	idempotencyKey string
}

type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// do sends req and decodes a successful envelope into out. success:false and
// non-2xx answers become *APIError.
func (c *Client) do(ctx context.Context, req request, out any) error {
	target := c.baseURL + req.path
	if len(req.query) > 0 {
		target += "?" + req.query.Encode()
	}

	var body io.Reader
	if req.body != nil {
		payload, err := json.Marshal(req.body)
		if err != nil {
			return &APIError{Message: "could not encode request", Err: err}
		}
		body = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, target, body)
	if err != nil {
		return &APIError{Message: "could not build request", Err: err}
	}
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if req.idempotencyKey != "" {
		httpReq.Header.Set(idempotencyHeader, req.idempotencyKey)
	}
	c.mu.RLock()
	token := c.token
	c.mu.RUnlock()
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return &APIError{Message: "network error, please try again", Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, responseReadLimit))
	if err != nil {
		return &APIError{Status: resp.StatusCode, Message: "could not read response", Err: err}
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return &APIError{Status: resp.StatusCode, Message: "unexpected response from server", Err: err}
	}

	if resp.StatusCode == http.StatusUnauthorized && env.Code == codeSessionExpired {
		if c.logg != nil {
			c.logg.Warn(ctx, "storefront session expired")
		}
		c.expireSession()
	}
	if resp.StatusCode >= 300 || !env.Success {
		msg := env.Message
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return &APIError{Status: resp.StatusCode, Code: env.Code, Message: msg}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &APIError{Status: resp.StatusCode, Message: "unexpected response from server", Err: err}
	}
	return nil
}

// ProductQuery narrows a product listing. Zero fields are not sent.
type ProductQuery struct {
	Category string
	Brand    string
	MinPrice int64
	MaxPrice int64
	Sort     string
	Page     int
	Limit    int
}

func (q ProductQuery) values() url.Values {
	v := url.Values{}
	setIf := func(key, value string) {
		if value != "" {
			v.Set(key, value)
		}
	}
	setIf("category", q.Category)
	setIf("brand", q.Brand)
	setIf("sort", q.Sort)
	if q.MinPrice > 0 {
		v.Set("minPrice", fmt.Sprint(q.MinPrice))
	}
	if q.MaxPrice > 0 {
		v.Set("maxPrice", fmt.Sprint(q.MaxPrice))
	}
	if q.Page > 0 {
		v.Set("page", fmt.Sprint(q.Page))
	}
	if q.Limit > 0 {
		v.Set("limit", fmt.Sprint(q.Limit))
	}
	return v
}

func (c *Client) Products(ctx context.Context, q ProductQuery) ([]Product, error) {
	path := "/products/list"
	if q.Category != "" || q.Brand != "" || q.MinPrice > 0 || q.MaxPrice > 0 || q.Sort != "" {
		path = "/products/filter"
	}
	var out struct {
		Products []Product `json:"products"`
	}
	if err := c.do(ctx, request{method: http.MethodGet, path: path, query: q.values()}, &out); err != nil {
		return nil, err
	}
	return out.Products, nil
}

func (c *Client) SearchProducts(ctx context.Context, term string) ([]Product, error) {
	var out struct {
		Products []Product `json:"products"`
	}
	query := url.Values{"q": {term}}
	if err := c.do(ctx, request{method: http.MethodGet, path: "/products/search", query: query}, &out); err != nil {
		return nil, err
	}
	return out.Products, nil
}

func (c *Client) Product(ctx context.Context, id string) (*Product, error) {
	var out struct {
		Product Product `json:"product"`
	}
	if err := c.do(ctx, request{method: http.MethodGet, path: "/products/" + url.PathEscape(id)}, &out); err != nil {
		return nil, err
	}
	return &out.Product, nil
}

func (c *Client) Cart(ctx context.Context) (map[string]int, error) {
	var out struct {
		Cart map[string]int `json:"cart"`
	}
	if err := c.do(ctx, request{method: http.MethodGet, path: "/cart"}, &out); err != nil {
		return nil, err
	}
	return out.Cart, nil
}

// UpdateCart replaces the persisted cart.
func (c *Client) UpdateCart(ctx context.Context, cart map[string]int) (map[string]int, error) {
	var out struct {
		Cart map[string]int `json:"cart"`
	}
	body := map[string]any{"cart": cart}
	if err := c.do(ctx, request{method: http.MethodPost, path: "/cart/update", body: body}, &out); err != nil {
		return nil, err
	}
	return out.Cart, nil
}

// ValidateCoupon asks the server whether code applies to orderAmount.
func (c *Client) ValidateCoupon(ctx context.Context, code string, orderAmount int64) (*Coupon, error) {
	var out struct {
		Coupon Coupon `json:"coupon"`
	}
	body := map[string]any{"code": code, "orderAmount": orderAmount}
	if err := c.do(ctx, request{method: http.MethodPost, path: "/coupons/validate", body: body}, &out); err != nil {
		return nil, err
	}
	return &out.Coupon, nil
}

func (c *Client) MyVouchers(ctx context.Context) ([]Voucher, error) {
	var out struct {
		UserCoupons []Voucher `json:"userCoupons"`
	}
	if err := c.do(ctx, request{method: http.MethodGet, path: "/user-coupons/my"}, &out); err != nil {
		return nil, err
	}
	return out.UserCoupons, nil
}

func (c *Client) Addresses(ctx context.Context) ([]Address, error) {
	var out struct {
		Addresses []Address `json:"addresses"`
	}
	if err := c.do(ctx, request{method: http.MethodGet, path: "/addresses"}, &out); err != nil {
		return nil, err
	}
	return out.Addresses, nil
}

// CreateOrder places an order. Each call carries a fresh Idempotency-Key
// unless key is set.
func (c *Client) CreateOrder(ctx context.Context, in OrderRequest, key string) (*Order, error) {
	if key == "" {
		key = c.newKey()
	}
	var out struct {
		Order Order `json:"order"`
	}
	if err := c.do(ctx, request{method: http.MethodPost, path: "/orders/create", body: in, idempotencyKey: key}, &out); err != nil {
		return nil, err
	}
	return &out.Order, nil
}

func (c *Client) MyOrders(ctx context.Context, cursor string) ([]Order, string, error) {
	var out struct {
		Orders     []Order `json:"orders"`
		NextCursor string  `json:"nextCursor"`
	}
	query := url.Values{}
	if cursor != "" {
		query.Set("cursor", cursor)
	}
	if err := c.do(ctx, request{method: http.MethodGet, path: "/orders/my", query: query}, &out); err != nil {
		return nil, "", err
	}
	return out.Orders, out.NextCursor, nil
}

// CreateVNPayPayment returns the gateway URL the shopper should be sent to.
func (c *Client) CreateVNPayPayment(ctx context.Context, orderID string, amount int64, key string) (string, error) {
	if key == "" {
		key = c.newKey()
	}
	var out struct {
		PaymentURL string `json:"paymentUrl"`
	}
	body := map[string]any{"orderId": orderID, "amount": amount}
	if err := c.do(ctx, request{method: http.MethodPost, path: "/payments/create-vnpay-payment", body: body, idempotencyKey: key}, &out); err != nil {
		return "", err
	}
	if out.PaymentURL == "" {
		return "", &APIError{Message: "payment link missing from response"}
	}
	return out.PaymentURL, nil
}

// VNPayReturn forwards the gateway's return query string for verification.
func (c *Client) VNPayReturn(ctx context.Context, rawQuery string) (*PaymentReturn, error) {
	query, err := url.ParseQuery(strings.TrimPrefix(rawQuery, "?"))
	if err != nil {
		return nil, &APIError{Message: "invalid payment return", Err: err}
	}
	var out PaymentReturn
	if err := c.do(ctx, request{method: http.MethodGet, path: "/payments/vnpay-return", query: query}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) MyRank(ctx context.Context) (*Rank, error) {
	var out struct {
		Rank Rank `json:"rank"`
	}
	if err := c.do(ctx, request{method: http.MethodGet, path: "/user-rank/my-rank"}, &out); err != nil {
		return nil, err
	}
	return &out.Rank, nil
}

func (c *Client) Rewards(ctx context.Context) ([]Reward, error) {
	var out struct {
		Rewards []Reward `json:"rewards"`
	}
	if err := c.do(ctx, request{method: http.MethodGet, path: "/user-rank/rewards"}, &out); err != nil {
		return nil, err
	}
	return out.Rewards, nil
}

// Spin asks the server to resolve one wheel spin.
func (c *Client) Spin(ctx context.Context) (*SpinResult, error) {
	var out SpinResult
	if err := c.do(ctx, request{method: http.MethodPost, path: "/user-rank/spin"}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
