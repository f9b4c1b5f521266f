package storefront

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/pricing"
)

var (
	// ErrClosed is returned once Close has been called. Responses that arrive
	// after Close are dropped.
	ErrClosed         = errors.New("storefront: store closed")
	ErrUnknownAddress = errors.New("storefront: address not found")
)

// NoticeLevel classifies a user-facing notice.
type NoticeLevel int

const (
	NoticeInfo NoticeLevel = iota
	NoticeSuccess
	NoticeError
)

// Notifier shows short messages to the shopper, typically as toasts.
type Notifier interface {
	Notify(level NoticeLevel, message string)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(level NoticeLevel, message string)

func (f NotifierFunc) Notify(level NoticeLevel, message string) { f(level, message) }

// Navigator moves the shopper to another page or an external URL.
type Navigator interface {
	Navigate(target string)
}

type NavigatorFunc func(target string)

func (f NavigatorFunc) Navigate(target string) { f(target) }

type nopNotifier struct{}

func (nopNotifier) Notify(NoticeLevel, string) {}

type nopNavigator struct{}

func (nopNavigator) Navigate(string) {}

type StoreOption func(*Store)

func WithNotifier(n Notifier) StoreOption {
	return func(s *Store) {
		if n != nil {
			s.notifier = n
		}
	}
}

func WithNavigator(n Navigator) StoreOption {
	return func(s *Store) {
		if n != nil {
			s.nav = n
		}
	}
}

func WithLogger(logg *logger.Logger) StoreOption {
	return func(s *Store) { s.logg = logg }
}

func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// OnSignOut runs after an expired session has reset the store.
func OnSignOut(fn func()) StoreOption {
	return func(s *Store) { s.onSignOut = fn }
}

// Store is the shopping state of one storefront session. All methods are safe
// for concurrent use; each response updates only the slice of state it owns.
type Store struct {
	client    *Client
	notifier  Notifier
	nav       Navigator
	logg      *logger.Logger
	now       func() time.Time
	onSignOut func()

	life context.Context
	stop context.CancelFunc

	mu        sync.Mutex
	closed    bool
	products  []Product
	catalog   pricing.Catalog
	cart      pricing.Cart
	addresses []Address
	addressID string
	vouchers  []Voucher
	rank      *Rank
	rewards   []Reward
	applied   *Coupon
	source    DiscountSource
	voucherID string
}

func NewStore(client *Client, opts ...StoreOption) (*Store, error) {
	if client == nil {
		return nil, errors.New("storefront client required")
	}
	life, stop := context.WithCancel(context.Background())
	s := &Store{
		client:   client,
		notifier: nopNotifier{},
		nav:      nopNavigator{},
		now:      time.Now,
		life:     life,
		stop:     stop,
		catalog:  pricing.Catalog{},
		cart:     pricing.Cart{},
		source:   SourceNone,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	client.OnSessionExpired(s.signOut)
	return s, nil
}

// Close cancels every in-flight request. The store keeps its last state but
// accepts no further updates.
func (s *Store) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.stop()
}

// scope derives a request context that ends with either ctx or the store.
func (s *Store) scope(ctx context.Context) (context.Context, context.CancelFunc, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil, nil, ErrClosed
	}
	reqCtx, cancel := context.WithCancel(ctx)
	release := context.AfterFunc(s.life, cancel)
	return reqCtx, func() {
		release()
		cancel()
	}, nil
}

// apply runs fn under the state lock unless the store was closed meanwhile.
func (s *Store) apply(fn func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	fn()
	return nil
}

// fail reports err to the shopper and passes it through. Close-time
// cancellations stay quiet.
func (s *Store) fail(ctx context.Context, err error) error {
	if err == nil || errors.Is(err, ErrClosed) || errors.Is(err, context.Canceled) {
		return err
	}
	s.notifier.Notify(NoticeError, err.Error())
	if s.logg != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "storefront request failed")
	}
	return err
}

// Load fetches the catalog and wheel segments, plus the shopper's cart,
// addresses, vouchers and rank when signed in. Requests run concurrently.
func (s *Store) Load(ctx context.Context) error {
	ctx, done, err := s.scope(ctx)
	if err != nil {
		return err
	}
	defer done()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.refreshProducts(gctx) })
	g.Go(func() error { return s.refreshRewards(gctx) })
	if s.client.SignedIn() {
		g.Go(func() error { return s.refreshCart(gctx) })
		g.Go(func() error { return s.refreshAddresses(gctx) })
		g.Go(func() error { return s.refreshVouchers(gctx) })
		g.Go(func() error { return s.refreshRank(gctx) })
	}
	return s.fail(ctx, g.Wait())
}

func (s *Store) RefreshProducts(ctx context.Context) error {
	return s.run(ctx, s.refreshProducts)
}

func (s *Store) RefreshCart(ctx context.Context) error {
	return s.run(ctx, s.refreshCart)
}

func (s *Store) RefreshAddresses(ctx context.Context) error {
	return s.run(ctx, s.refreshAddresses)
}

func (s *Store) RefreshVouchers(ctx context.Context) error {
	return s.run(ctx, s.refreshVouchers)
}

func (s *Store) RefreshRank(ctx context.Context) error {
	return s.run(ctx, s.refreshRank)
}

func (s *Store) run(ctx context.Context, fn func(context.Context) error) error {
	ctx, done, err := s.scope(ctx)
	if err != nil {
		return err
	}
	defer done()
	return s.fail(ctx, fn(ctx))
}

func (s *Store) refreshProducts(ctx context.Context) error {
	products, err := s.client.Products(ctx, ProductQuery{Limit: 100})
	if err != nil {
		return err
	}
	return s.apply(func() {
		s.products = products
		s.catalog = catalogOf(products)
	})
}

func (s *Store) refreshRewards(ctx context.Context) error {
	rewards, err := s.client.Rewards(ctx)
	if err != nil {
		return err
	}
	return s.apply(func() { s.rewards = rewards })
}

func (s *Store) refreshCart(ctx context.Context) error {
	remote, err := s.client.Cart(ctx)
	if err != nil {
		return err
	}
	return s.apply(func() { s.cart = fromWire(remote) })
}

func (s *Store) refreshAddresses(ctx context.Context) error {
	addresses, err := s.client.Addresses(ctx)
	if err != nil {
		return err
	}
	return s.apply(func() {
		s.addresses = addresses
		if s.addressID != "" && s.findAddress(s.addressID) != nil {
			return
		}
		s.addressID = ""
		for _, a := range addresses {
			if a.IsDefault {
				s.addressID = a.ID
				break
			}
		}
	})
}

func (s *Store) refreshVouchers(ctx context.Context) error {
	vouchers, err := s.client.MyVouchers(ctx)
	if err != nil {
		return err
	}
	return s.apply(func() { s.vouchers = vouchers })
}

func (s *Store) refreshRank(ctx context.Context) error {
	rank, err := s.client.MyRank(ctx)
	if err != nil {
		return err
	}
	return s.apply(func() { s.rank = rank })
}

// signOut drops everything tied to the shopper. The catalog stays.
func (s *Store) signOut() {
	s.mu.Lock()
	s.cart = pricing.Cart{}
	s.addresses = nil
	s.addressID = ""
	s.vouchers = nil
	s.rank = nil
	s.clearCouponLocked()
	s.mu.Unlock()

	s.notifier.Notify(NoticeError, "Your session has expired, please sign in again")
	if s.onSignOut != nil {
		s.onSignOut()
	}
}

func (s *Store) Products() []Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Product(nil), s.products...)
}

func (s *Store) Rewards() []Reward {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Reward(nil), s.rewards...)
}

func (s *Store) Rank() (Rank, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rank == nil {
		return Rank{}, false
	}
	return *s.rank, true
}

func (s *Store) Addresses() []Address {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Address(nil), s.addresses...)
}

// SelectAddress picks the shipping address for checkout.
func (s *Store) SelectAddress(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findAddress(id) == nil {
		return ErrUnknownAddress
	}
	s.addressID = id
	return nil
}

func (s *Store) SelectedAddress() (Address, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a := s.findAddress(s.addressID); a != nil {
		return *a, true
	}
	return Address{}, false
}

func (s *Store) findAddress(id string) *Address {
	if id == "" {
		return nil
	}
	for i := range s.addresses {
		if s.addresses[i].ID == id {
			return &s.addresses[i]
		}
	}
	return nil
}

// Cart returns a copy of the local cart.
func (s *Store) Cart() pricing.Cart {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.Clone()
}

func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return pricing.Count(s.cart)
}

// Amount is recomputed from current catalog prices on every call.
func (s *Store) Amount() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return pricing.Amount(s.cart, s.catalog)
}

// Summary prices the cart with the applied coupon, if any.
func (s *Store) Summary() pricing.Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return pricing.Summarize(s.cart, s.catalog, s.applied.pricing())
}

func (s *Store) Lines() []pricing.Line {
	s.mu.Lock()
	defer s.mu.Unlock()
	return pricing.Lines(s.cart, s.catalog)
}

// StaleKeys lists cart lines whose product or variant left the catalog.
func (s *Store) StaleKeys() []pricing.CartKey {
	s.mu.Lock()
	defer s.mu.Unlock()
	return pricing.StaleKeys(s.cart, s.catalog)
}

// PruneStale drops stale lines and saves the cart.
func (s *Store) PruneStale(ctx context.Context) error {
	return s.mutateCart(ctx, func(cart pricing.Cart, catalog pricing.Catalog) (pricing.Cart, error) {
		return pricing.PruneStale(cart, catalog), nil
	})
}

// Set writes the quantity of one line; zero removes it.
func (s *Store) Set(ctx context.Context, key pricing.CartKey, qty int) error {
	return s.mutateCart(ctx, func(cart pricing.Cart, _ pricing.Catalog) (pricing.Cart, error) {
		if err := pricing.Set(cart, key, qty); err != nil {
			return nil, err
		}
		return cart, nil
	})
}

// Add changes a line by delta, never going below zero.
func (s *Store) Add(ctx context.Context, productID, variantID string, delta int) error {
	key := pricing.Key(productID, variantID)
	return s.mutateCart(ctx, func(cart pricing.Cart, _ pricing.Catalog) (pricing.Cart, error) {
		_ = pricing.Set(cart, key, max(0, cart[key]+delta))
		return cart, nil
	})
}

// ClearCart empties the cart locally and on the server.
func (s *Store) ClearCart(ctx context.Context) error {
	return s.mutateCart(ctx, func(pricing.Cart, pricing.Catalog) (pricing.Cart, error) {
		return pricing.Cart{}, nil
	})
}

func (s *Store) clearLocalCart() {
	_ = s.apply(func() { s.cart = pricing.Cart{} })
}

// mutateCart applies edit locally and, when signed in, saves the result.
// A failed save keeps the local edit and reports the error.
func (s *Store) mutateCart(ctx context.Context, edit func(pricing.Cart, pricing.Catalog) (pricing.Cart, error)) error {
	var next pricing.Cart
	var editErr error
	if err := s.apply(func() {
		next, editErr = edit(s.cart.Clone(), s.catalog)
		if editErr == nil {
			s.cart = next
		}
	}); err != nil {
		return err
	}
	if editErr != nil {
		return s.fail(ctx, editErr)
	}
	if !s.client.SignedIn() {
		return nil
	}

	ctx, done, err := s.scope(ctx)
	if err != nil {
		return err
	}
	defer done()
	if _, err := s.client.UpdateCart(ctx, toWire(next)); err != nil {
		return s.fail(ctx, err)
	}
	return nil
}

func toWire(cart pricing.Cart) map[string]int {
	out := make(map[string]int, len(cart))
	for k, q := range cart {
		if q > 0 {
			out[string(k)] = q
		}
	}
	return out
}

func fromWire(items map[string]int) pricing.Cart {
	out := make(pricing.Cart, len(items))
	for k, q := range items {
		_ = pricing.Set(out, pricing.CartKey(k), q)
	}
	return out
}
