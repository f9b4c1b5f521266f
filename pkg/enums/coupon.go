package enums

// CouponType selects how a coupon value turns into a discount.
type CouponType string

const (
	CouponTypePercentage  CouponType = "PERCENTAGE"
	CouponTypeFixedAmount CouponType = "FIXED_AMOUNT"
)

var validCouponTypes = []CouponType{
	CouponTypePercentage,
	CouponTypeFixedAmount,
}

func (c CouponType) String() string { return string(c) }
func (c CouponType) IsValid() bool  { return known(c, validCouponTypes) }

func ParseCouponType(raw string) (CouponType, error) {
	return parseFold("coupon type", raw, validCouponTypes)
}

// UserCouponStatus is the lifecycle of a voucher owned by one user.
type UserCouponStatus string

const (
	UserCouponUnused  UserCouponStatus = "UNUSED"
	UserCouponUsed    UserCouponStatus = "USED"
	UserCouponExpired UserCouponStatus = "EXPIRED"
)

var validUserCouponStatuses = []UserCouponStatus{
	UserCouponUnused,
	UserCouponUsed,
	UserCouponExpired,
}

func (s UserCouponStatus) String() string { return string(s) }
func (s UserCouponStatus) IsValid() bool  { return known(s, validUserCouponStatuses) }

// UserCouponSource records how a voucher reached the user.
type UserCouponSource string

const (
	UserCouponSourceSpin  UserCouponSource = "SPIN"
	UserCouponSourceGrant UserCouponSource = "GRANT"
)
