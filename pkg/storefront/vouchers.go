package storefront

import (
	"context"
	"errors"
	"strings"
	"time"
)

// DiscountSource records which input filled the applied coupon slot.
type DiscountSource string

const (
	SourceNone    DiscountSource = "none"
	SourceVoucher DiscountSource = "voucher"
	SourceCode    DiscountSource = "code"
)

var (
	// ErrVoucherSelected rejects a typed code while a voucher is applied.
	ErrVoucherSelected = errors.New("remove the selected voucher before entering a code")
	ErrCodeRequired    = errors.New("please enter a coupon code")
	ErrUnknownVoucher  = errors.New("this voucher is no longer available")
)

// AvailableVouchers lists unused vouchers whose coupon has not ended at now.
func (s *Store) AvailableVouchers(now time.Time) []Voucher {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Voucher, 0, len(s.vouchers))
	for _, v := range s.vouchers {
		if v.Usable(now) {
			out = append(out, v)
		}
	}
	return out
}

// AppliedCoupon returns the coupon in the slot and where it came from.
func (s *Store) AppliedCoupon() (*Coupon, DiscountSource) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.applied == nil {
		return nil, SourceNone
	}
	c := *s.applied
	return &c, s.source
}

// SelectVoucher validates one of the shopper's vouchers against the current
// subtotal and applies it, replacing any typed code.
func (s *Store) SelectVoucher(ctx context.Context, userCouponID string) (*Coupon, error) {
	s.mu.Lock()
	var code string
	for _, v := range s.vouchers {
		if v.ID == userCouponID && v.Usable(s.now()) {
			code = v.Coupon.Code
			break
		}
	}
	s.mu.Unlock()
	if code == "" {
		return nil, s.fail(ctx, ErrUnknownVoucher)
	}
	return s.validateInto(ctx, code, SourceVoucher, userCouponID)
}

// ApplyCode validates a typed code. It is refused without a network call
// while a voucher occupies the slot.
func (s *Store) ApplyCode(ctx context.Context, code string) (*Coupon, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, s.fail(ctx, ErrCodeRequired)
	}
	s.mu.Lock()
	source := s.source
	s.mu.Unlock()
	if source == SourceVoucher {
		return nil, s.fail(ctx, ErrVoucherSelected)
	}
	return s.validateInto(ctx, code, SourceCode, "")
}

// ClearCoupon empties the slot. The next Summary has no discount.
func (s *Store) ClearCoupon() {
	s.mu.Lock()
	s.clearCouponLocked()
	s.mu.Unlock()
}

func (s *Store) clearCouponLocked() {
	s.applied = nil
	s.source = SourceNone
	s.voucherID = ""
}

func (s *Store) validateInto(ctx context.Context, code string, source DiscountSource, voucherID string) (*Coupon, error) {
	ctx, done, err := s.scope(ctx)
	if err != nil {
		return nil, err
	}
	defer done()

	coupon, err := s.client.ValidateCoupon(ctx, code, s.Amount())
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		_ = s.apply(s.clearCouponLocked)
		return nil, s.fail(ctx, err)
	}
	if err := s.apply(func() {
		s.applied = coupon
		s.source = source
		s.voucherID = voucherID
	}); err != nil {
		return nil, err
	}
	s.notifier.Notify(NoticeSuccess, "Coupon "+coupon.Code+" applied")
	return coupon, nil
}

// revalidate checks the applied coupon against the live subtotal. A rejected
// coupon is cleared.
func (s *Store) revalidate(ctx context.Context) error {
	s.mu.Lock()
	applied, source, voucherID := s.applied, s.source, s.voucherID
	s.mu.Unlock()
	if applied == nil {
		return nil
	}
	coupon, err := s.client.ValidateCoupon(ctx, applied.Code, s.Amount())
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			_ = s.apply(s.clearCouponLocked)
		}
		return err
	}
	return s.apply(func() {
		s.applied = coupon
		s.source = source
		s.voucherID = voucherID
	})
}
