package enums

// PaymentStatus tracks settlement of an order. FAILED can go back to PENDING
// when the shopper retries the gateway.
type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "PENDING"
	PaymentStatusPaid    PaymentStatus = "PAID"
	PaymentStatusFailed  PaymentStatus = "FAILED"
)

var paymentStatuses = []PaymentStatus{PaymentStatusPending, PaymentStatusPaid, PaymentStatusFailed}

func (s PaymentStatus) String() string { return string(s) }
func (s PaymentStatus) IsValid() bool  { return known(s, paymentStatuses) }

func ParsePaymentStatus(raw string) (PaymentStatus, error) {
	return parseFold("payment status", raw, paymentStatuses)
}
