package domain

import (
	"strings"
	"time"
)

// CouponRejection enumerates the reasons a coupon fails eligibility, in the
// order the checks run.
type CouponRejection string

const (
	// CouponRejectionNone indicates the coupon passed every check.
	CouponRejectionNone CouponRejection = ""
	// CouponRejectionNotFound indicates the code is unknown or inactive.
	CouponRejectionNotFound CouponRejection = "not_found"
	// CouponRejectionExpired indicates the expiry timestamp has passed.
	CouponRejectionExpired CouponRejection = "expired"
	// CouponRejectionLimitReached indicates the global usage limit is exhausted.
	CouponRejectionLimitReached CouponRejection = "limit_reached"
	// CouponRejectionAlreadyUsed indicates this customer already consumed the code.
	CouponRejectionAlreadyUsed CouponRejection = "already_used"
	// CouponRejectionBelowMinimum indicates the cart total is under the minimum.
	CouponRejectionBelowMinimum CouponRejection = "below_minimum"
)

// Message returns the customer-facing wording for a rejection. These strings
// surface directly in checkout UI.
func (r CouponRejection) Message() string {
	switch r {
	case CouponRejectionNotFound:
		return "Invalid coupon code"
	case CouponRejectionExpired:
		return "Coupon has expired"
	case CouponRejectionLimitReached:
		return "Coupon usage limit reached"
	case CouponRejectionAlreadyUsed:
		return "Coupon has already been used"
	case CouponRejectionBelowMinimum:
		return "Order amount does not meet the coupon minimum"
	default:
		return ""
	}
}

// NormalizeCouponCode upper-cases and trims a coupon code for storage and lookup.
func NormalizeCouponCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// CheckEligibility runs the ordered rule sequence against the coupon state.
// usedByCustomer reflects whether a usage record already exists for the
// caller; anonymous checkouts pass false and thereby skip only that check.
// The first failing check wins.
func (c Coupon) CheckEligibility(now time.Time, cartTotal int64, usedByCustomer bool) CouponRejection {
	if !c.IsActive {
		return CouponRejectionNotFound
	}
	if c.ExpiresAt != nil && !c.ExpiresAt.After(now) {
		return CouponRejectionExpired
	}
	if c.UsageLimit != nil && c.UsedCount >= *c.UsageLimit {
		return CouponRejectionLimitReached
	}
	if usedByCustomer {
		return CouponRejectionAlreadyUsed
	}
	if cartTotal < c.MinOrderAmount {
		return CouponRejectionBelowMinimum
	}
	return CouponRejectionNone
}

// Discount computes the discount amount for the given cart total. Percentage
// coupons clamp to MaxDiscountAmount when set; both types clamp to the cart
// total so the resulting order total can never go negative.
func (c Coupon) Discount(cartTotal int64) int64 {
	var discount int64
	switch c.Type {
	case DiscountTypePercentage:
		discount = cartTotal * c.Value / 100
		if c.MaxDiscountAmount != nil && discount > *c.MaxDiscountAmount {
			discount = *c.MaxDiscountAmount
		}
	case DiscountTypeFixed:
		discount = c.Value
	}
	if discount > cartTotal {
		discount = cartTotal
	}
	if discount < 0 {
		discount = 0
	}
	return discount
}
