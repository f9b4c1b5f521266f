package storefront

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/pricing"
)

var (
	ErrAddressRequired  = errors.New("please select a shipping address")
	ErrEmptyCart        = errors.New("your cart is empty")
	ErrSubmitInProgress = errors.New("your order is already being submitted")
)

// CheckoutState is where an order submission stands.
type CheckoutState int

const (
	CheckoutEditing CheckoutState = iota
	CheckoutSubmitting
	CheckoutRedirecting
	CheckoutConfirmed
	CheckoutFailed
)

func (s CheckoutState) String() string {
	switch s {
	case CheckoutEditing:
		return "editing"
	case CheckoutSubmitting:
		return "submitting"
	case CheckoutRedirecting:
		return "redirecting-to-gateway"
	case CheckoutConfirmed:
		return "confirmed"
	case CheckoutFailed:
		return "failed"
	default:
		return fmt.Sprintf("checkout(%d)", int(s))
	}
}

// ConfirmationPath is the page a confirmed order lands on.
func ConfirmationPath(orderID string) string {
	return "/order-confirmation/" + orderID
}

type CheckoutOption func(*Checkout)

// OnStateChange observes every transition, including the transient failed
// state.
func OnStateChange(fn func(CheckoutState)) CheckoutOption {
	return func(c *Checkout) { c.onState = fn }
}

// Checkout submits the store's cart as an order.
type Checkout struct {
	store   *Store
	onState func(CheckoutState)

	mu      sync.Mutex
	state   CheckoutState
	lastErr error
	order   *Order
	attempt *attempt
}

// attempt pins idempotency keys to one submission. Retrying the same
// request reuses them, so a lost response never places a second order.
type attempt struct {
	request    string
	orderKey   string
	paymentKey string
	// order is set once the server accepted the order; a retry then only
	// asks for the payment link again.
	order *Order
}

func NewCheckout(store *Store, opts ...CheckoutOption) *Checkout {
	c := &Checkout{store: store}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

func (c *Checkout) State() CheckoutState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// LastError is the message of the most recent failed submission.
func (c *Checkout) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

func (c *Checkout) Order() (*Order, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order, c.order != nil
}

// Reset returns a finished checkout to editing for the next order.
func (c *Checkout) Reset() {
	c.mu.Lock()
	c.order = nil
	c.lastErr = nil
	c.attempt = nil
	c.mu.Unlock()
	c.transition(CheckoutEditing)
}

func (c *Checkout) transition(next CheckoutState) {
	c.mu.Lock()
	c.state = next
	c.mu.Unlock()
	if c.onState != nil {
		c.onState(next)
	}
}

// Submit places the order. Preconditions are checked locally before any
// request: a selected address and at least one cart line. The applied coupon
// is re-validated against the live subtotal, then the order is created. VNPAY
// orders continue to the gateway with the cart intact; COD orders clear the
// local cart and open the confirmation page.
//
// Submitting the same cart again after a failure reuses the attempt's
// idempotency keys. If the order already exists and only the payment link
// failed, just the payment link is requested.
func (c *Checkout) Submit(ctx context.Context, method enums.PaymentMethod) (*Order, error) {
	s := c.store

	if c.State() != CheckoutEditing {
		return nil, ErrSubmitInProgress
	}
	address, ok := s.SelectedAddress()
	if !ok {
		return nil, s.fail(ctx, ErrAddressRequired)
	}
	items := orderItems(s.Cart())
	if len(items) == 0 {
		return nil, s.fail(ctx, ErrEmptyCart)
	}

	c.mu.Lock()
	if c.state != CheckoutEditing {
		c.mu.Unlock()
		return nil, ErrSubmitInProgress
	}
	c.state = CheckoutSubmitting
	c.mu.Unlock()
	if c.onState != nil {
		c.onState(CheckoutSubmitting)
	}

	ctx, done, err := s.scope(ctx)
	if err != nil {
		c.transition(CheckoutEditing)
		return nil, err
	}
	defer done()

	req := OrderRequest{Address: address.ID, Items: items, PaymentMethod: method}
	if coupon, _ := s.AppliedCoupon(); coupon != nil {
		req.CouponCode = coupon.Code
	}
	at := c.attemptFor(req)

	order := at.order
	if order == nil {
		if err := s.revalidate(ctx); err != nil {
			c.mu.Lock()
			c.lastErr = err
			c.mu.Unlock()
			c.transition(CheckoutEditing)
			return nil, s.fail(ctx, err)
		}
		order, err = s.client.CreateOrder(ctx, req, at.orderKey)
		if err != nil {
			if settled(err) {
				c.dropAttempt(at)
			}
			return nil, c.failed(ctx, err)
		}
		c.mu.Lock()
		at.order = order
		c.order = order
		c.mu.Unlock()
	}

	if method.RedirectsToGateway() {
		paymentURL, err := s.client.CreateVNPayPayment(ctx, order.ID, order.Total, at.paymentKey)
		if err != nil {
			if settled(err) {
				c.mu.Lock()
				at.paymentKey = s.client.newKey()
				c.mu.Unlock()
			}
			return order, c.failed(ctx, err)
		}
		c.dropAttempt(at)
		c.transition(CheckoutRedirecting)
		s.nav.Navigate(paymentURL)
		return order, nil
	}

	c.dropAttempt(at)
	s.clearLocalCart()
	s.ClearCoupon()
	c.transition(CheckoutConfirmed)
	s.notifier.Notify(NoticeSuccess, "Order placed successfully")
	s.nav.Navigate(ConfirmationPath(order.ID))
	return order, nil
}

// CompleteGatewayReturn hands the gateway's return query to the server. The
// local cart is cleared only when the server confirms payment.
func (c *Checkout) CompleteGatewayReturn(ctx context.Context, rawQuery string) (*PaymentReturn, error) {
	s := c.store
	ctx, done, err := s.scope(ctx)
	if err != nil {
		return nil, err
	}
	defer done()

	result, err := s.client.VNPayReturn(ctx, rawQuery)
	if err != nil {
		return nil, c.failed(ctx, err)
	}
	s.clearLocalCart()
	s.ClearCoupon()
	c.transition(CheckoutConfirmed)
	s.notifier.Notify(NoticeSuccess, result.Message)
	s.nav.Navigate(ConfirmationPath(result.OrderID))
	return result, nil
}

// failed records err, passes through the failed state and settles in editing.
func (c *Checkout) failed(ctx context.Context, err error) error {
	c.mu.Lock()
	c.lastErr = err
	c.mu.Unlock()
	c.transition(CheckoutFailed)
	c.transition(CheckoutEditing)
	return c.store.fail(ctx, err)
}

// attemptFor returns the open attempt when req matches it, otherwise a new
// attempt with fresh keys. A changed cart, address or coupon starts over.
func (c *Checkout) attemptFor(req OrderRequest) *attempt {
	fingerprint := fmt.Sprintf("%+v", req)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.attempt != nil && c.attempt.request == fingerprint {
		return c.attempt
	}
	newKey := c.store.client.newKey
	c.attempt = &attempt{request: fingerprint, orderKey: newKey(), paymentKey: newKey()}
	return c.attempt
}

func (c *Checkout) dropAttempt(at *attempt) {
	c.mu.Lock()
	if c.attempt == at {
		c.attempt = nil
	}
	c.mu.Unlock()
}

// settled reports whether the server gave a final answer to the request.
// Transport failures, 5xx and an in-flight duplicate leave the outcome
// unknown, so the key must be kept for the retry.
func settled(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	if apiErr.Status < http.StatusBadRequest || apiErr.Status >= http.StatusInternalServerError {
		return false
	}
	return apiErr.Code != "CONFLICT"
}

func orderItems(cart pricing.Cart) []OrderItem {
	keys := cart.Keys()
	items := make([]OrderItem, 0, len(keys))
	for _, key := range keys {
		productID, variantID := key.Split()
		items = append(items, OrderItem{Product: productID, Variant: variantID, Quantity: cart[key]})
	}
	return items
}
