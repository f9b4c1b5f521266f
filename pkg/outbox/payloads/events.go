package payloads

import (
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/google/uuid"
)

// OrderCreatedEvent is emitted when an order row is committed.
type OrderCreatedEvent struct {
	OrderID       uuid.UUID           `json:"order_id"`
	UserID        uuid.UUID           `json:"user_id"`
	Total         string              `json:"total"`
	Discount      string              `json:"discount"`
	CouponCode    *string             `json:"coupon_code,omitempty"`
	PaymentMethod enums.PaymentMethod `json:"payment_method"`
	ItemCount     int                 `json:"item_count"`
}

// OrderStatusChangedEvent tracks seller or system status transitions.
type OrderStatusChangedEvent struct {
	OrderID uuid.UUID         `json:"order_id"`
	UserID  uuid.UUID         `json:"user_id"`
	From    enums.OrderStatus `json:"from"`
	To      enums.OrderStatus `json:"to"`
	Reason  string            `json:"reason,omitempty"`
}

// OrderPaidEvent is emitted once per order when the gateway confirms payment.
type OrderPaidEvent struct {
	OrderID    uuid.UUID `json:"order_id"`
	UserID     uuid.UUID `json:"user_id"`
	Amount     string    `json:"amount"`
	PaymentRef string    `json:"payment_ref"`
	PaidAt     time.Time `json:"paid_at"`
}

// OrderPaymentFailedEvent carries the gateway response code of a failed payment.
type OrderPaymentFailedEvent struct {
	OrderID      uuid.UUID `json:"order_id"`
	UserID       uuid.UUID `json:"user_id"`
	ResponseCode string    `json:"response_code"`
}

// SpinCompletedEvent records a reward-wheel outcome.
type SpinCompletedEvent struct {
	UserID         uuid.UUID  `json:"user_id"`
	RewardIndex    int        `json:"reward_index"`
	RewardName     string     `json:"reward_name"`
	CouponID       *uuid.UUID `json:"coupon_id,omitempty"`
	SpinsRemaining int        `json:"spins_remaining"`
}

// VouchersExpiredEvent summarizes one voucher expiry sweep.
type VouchersExpiredEvent struct {
	Count  int64     `json:"count"`
	Cutoff time.Time `json:"cutoff"`
}
