package enums

// PaymentMethod is how the shopper settles an order.
type PaymentMethod string

const (
	PaymentMethodCOD   PaymentMethod = "COD"
	PaymentMethodVNPay PaymentMethod = "VNPAY"
)

var paymentMethods = []PaymentMethod{PaymentMethodCOD, PaymentMethodVNPay}

func (p PaymentMethod) String() string { return string(p) }
func (p PaymentMethod) IsValid() bool  { return known(p, paymentMethods) }

// RedirectsToGateway is true when the order only counts as confirmed after
// the shopper comes back from an external payment page.
func (p PaymentMethod) RedirectsToGateway() bool {
	return p == PaymentMethodVNPay
}

// ParsePaymentMethod accepts "cod", " VNPay " and so on.
func ParsePaymentMethod(raw string) (PaymentMethod, error) {
	return parseFold("payment method", raw, paymentMethods)
}
