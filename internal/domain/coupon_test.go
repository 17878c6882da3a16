package domain

import (
	"testing"
	"time"
)

func TestNormalizeCouponCode(t *testing.T) {
	if got := NormalizeCouponCode("  save10 "); got != "SAVE10" {
		t.Fatalf("expected SAVE10, got %q", got)
	}
	if got := NormalizeCouponCode(""); got != "" {
		t.Fatalf("expected empty code, got %q", got)
	}
}

func TestCouponCheckEligibilityOrdering(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(24 * time.Hour)
	limit := 2

	cases := []struct {
		name      string
		coupon    Coupon
		cartTotal int64
		used      bool
		want      CouponRejection
	}{
		{
			name:   "inactive coupon reads as not found",
			coupon: Coupon{IsActive: false, ExpiresAt: &past},
			want:   CouponRejectionNotFound,
		},
		{
			name:   "expired beats limit",
			coupon: Coupon{IsActive: true, ExpiresAt: &past, UsageLimit: &limit, UsedCount: 5},
			want:   CouponRejectionExpired,
		},
		{
			name:   "expiry boundary is exclusive",
			coupon: Coupon{IsActive: true, ExpiresAt: &now},
			want:   CouponRejectionExpired,
		},
		{
			name:   "limit beats already used",
			coupon: Coupon{IsActive: true, UsageLimit: &limit, UsedCount: 2},
			used:   true,
			want:   CouponRejectionLimitReached,
		},
		{
			name:      "already used beats below minimum",
			coupon:    Coupon{IsActive: true, MinOrderAmount: 1000},
			cartTotal: 500,
			used:      true,
			want:      CouponRejectionAlreadyUsed,
		},
		{
			name:      "below minimum",
			coupon:    Coupon{IsActive: true, MinOrderAmount: 1000},
			cartTotal: 500,
			want:      CouponRejectionBelowMinimum,
		},
		{
			name:      "minimum boundary is inclusive",
			coupon:    Coupon{IsActive: true, MinOrderAmount: 1000},
			cartTotal: 1000,
			want:      CouponRejectionNone,
		},
		{
			name:      "eligible with headroom",
			coupon:    Coupon{IsActive: true, ExpiresAt: &future, UsageLimit: &limit, UsedCount: 1},
			cartTotal: 100,
			want:      CouponRejectionNone,
		},
		{
			name:   "nil limit never exhausts",
			coupon: Coupon{IsActive: true, UsedCount: 100000},
			want:   CouponRejectionNone,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.coupon.CheckEligibility(now, tc.cartTotal, tc.used); got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestCouponDiscountClamps(t *testing.T) {
	cap50 := int64(50)

	cases := []struct {
		name      string
		coupon    Coupon
		cartTotal int64
		want      int64
	}{
		{
			name:      "percentage capped at max discount",
			coupon:    Coupon{Type: DiscountTypePercentage, Value: 10, MaxDiscountAmount: &cap50},
			cartTotal: 1000,
			want:      50,
		},
		{
			name:      "percentage under cap stays exact",
			coupon:    Coupon{Type: DiscountTypePercentage, Value: 10, MaxDiscountAmount: &cap50},
			cartTotal: 400,
			want:      40,
		},
		{
			name:      "fixed clamps to cart total",
			coupon:    Coupon{Type: DiscountTypeFixed, Value: 30},
			cartTotal: 20,
			want:      20,
		},
		{
			name:      "fixed within total",
			coupon:    Coupon{Type: DiscountTypeFixed, Value: 30},
			cartTotal: 200,
			want:      30,
		},
		{
			name:      "unknown type yields zero",
			coupon:    Coupon{Type: DiscountType("mystery"), Value: 30},
			cartTotal: 200,
			want:      0,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.coupon.Discount(tc.cartTotal); got != tc.want {
				t.Fatalf("expected discount %d, got %d", tc.want, got)
			}
		})
	}
}

func TestCouponRejectionMessages(t *testing.T) {
	rejections := []CouponRejection{
		CouponRejectionNotFound,
		CouponRejectionExpired,
		CouponRejectionLimitReached,
		CouponRejectionAlreadyUsed,
		CouponRejectionBelowMinimum,
	}
	for _, rejection := range rejections {
		if rejection.Message() == "" {
			t.Fatalf("expected message for %q", rejection)
		}
	}
	if CouponRejectionNone.Message() != "" {
		t.Fatal("expected empty message for no rejection")
	}
}
