package domain

import (
	"time"
)

// Pagination defines standard cursor-based paging inputs for list operations.
type Pagination struct {
	PageSize  int
	PageToken string
}

// RangeQuery represents inclusive range filters for numeric or timestamp fields.
type RangeQuery[T comparable] struct {
	From *T
	To   *T
}

// CursorPage packages list results with an encoded next token.
type CursorPage[T any] struct {
	Items         []T
	NextPageToken string
}

// Variant is a specific (color, size) configuration of a product with its own
// price and stock counter.
type Variant struct {
	Color string
	Size  string
	Price int64
	Stock int
}

// VariantKey identifies a variant within a product. Matching is exact on both
// fields; there is no fallback to the product-level counter.
type VariantKey struct {
	Color string
	Size  string
}

// Product carries catalog data plus the product-level stock counter. Stock is
// mutated only through the inventory repository.
type Product struct {
	ID          string
	Name        string
	Description string
	Price       int64
	Stock       int
	Variants    []Variant
	IsPublished bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// FindVariant returns the variant matching key by exact color+size equality.
func (p Product) FindVariant(key VariantKey) (Variant, bool) {
	for _, v := range p.Variants {
		if v.Color == key.Color && v.Size == key.Size {
			return v, true
		}
	}
	return Variant{}, false
}

// StockLine addresses one stock counter and a quantity for reserve/release.
type StockLine struct {
	ProductID string
	Variant   *VariantKey
	Quantity  int
}

// Cart aggregates the stored cart state for an authenticated user.
type Cart struct {
	ID        string
	UserID    string
	Items     []CartItem
	UpdatedAt time.Time
}

// CartItem stores a single product entry within a cart.
type CartItem struct {
	ProductID string
	Variant   *VariantKey
	Quantity  int
}

// PaymentMethod enumerates accepted payment methods.
type PaymentMethod string

const (
	// PaymentMethodCOD indicates cash on delivery; orders start pending.
	PaymentMethodCOD PaymentMethod = "cod"
	// PaymentMethodOnline indicates a pre-verified online payment; orders start paid.
	PaymentMethodOnline PaymentMethod = "online"
)

// PaymentStatus tracks the payment side of an order.
type PaymentStatus string

const (
	// PaymentStatusPending indicates payment has not been collected yet.
	PaymentStatusPending PaymentStatus = "pending"
	// PaymentStatusPaid indicates payment has been captured.
	PaymentStatusPaid PaymentStatus = "paid"
)

// OrderLineItem mirrors the purchased configuration at creation time. Unit
// prices are frozen here and never recomputed from the live catalog.
type OrderLineItem struct {
	ProductRef string
	Name       string
	Variant    *VariantKey
	Quantity   int
	UnitPrice  int64
	Total      int64
}

// OrderTotals holds rolled-up monetary fields in the smallest currency unit.
type OrderTotals struct {
	Subtotal int64
	Discount int64
	Total    int64
}

// OrderCoupon captures the applied coupon snapshot on an order.
type OrderCoupon struct {
	Code           string
	DiscountAmount int64
}

// Order captures order headers returned to handlers/services. UserID is empty
// for guest checkouts.
type Order struct {
	ID              string
	OrderNumber     string
	UserID          string
	Status          OrderStatus
	Items           []OrderLineItem
	Totals          OrderTotals
	PaymentMethod   PaymentMethod
	PaymentStatus   PaymentStatus
	PaymentRef      string
	ShippingAddress Address
	Coupon          *OrderCoupon
	CancelReason    *string
	ReturnReason    *string
	AdminNotes      *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	CancelledAt     *time.Time
	DeliveredAt     *time.Time
}

// Address represents the postal address snapshot stored on an order.
type Address struct {
	Recipient  string
	Line1      string
	Line2      *string
	City       string
	State      *string
	PostalCode string
	Country    string
	Phone      *string
}

// DiscountType enumerates coupon discount semantics.
type DiscountType string

const (
	// DiscountTypePercentage computes value percent of the cart total.
	DiscountTypePercentage DiscountType = "percentage"
	// DiscountTypeFixed subtracts value directly from the cart total.
	DiscountTypeFixed DiscountType = "fixed"
)

// Coupon describes a discount code and its eligibility rules. Codes are
// stored case-normalized upper.
type Coupon struct {
	Code              string
	Type              DiscountType
	Value             int64
	MinOrderAmount    int64
	MaxDiscountAmount *int64
	IsActive          bool
	ExpiresAt         *time.Time
	UsageLimit        *int
	UsedCount         int
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// CouponUsage is the durable fact preventing a customer from applying the
// same code twice across orders.
type CouponUsage struct {
	UserID   string
	Code     string
	OrderRef string
	UsedAt   time.Time
}

// RecipientKind distinguishes the administrator group from a single customer.
type RecipientKind string

const (
	// RecipientKindAdmin addresses every administrator.
	RecipientKindAdmin RecipientKind = "admin"
	// RecipientKindUser addresses a single customer by id.
	RecipientKindUser RecipientKind = "user"
)

// Recipient is the tagged notification target: the admin group or one user.
type Recipient struct {
	Kind   RecipientKind
	UserID string
}

// AdminRecipient addresses the administrator group.
func AdminRecipient() Recipient {
	return Recipient{Kind: RecipientKindAdmin}
}

// UserRecipient addresses a single customer.
func UserRecipient(userID string) Recipient {
	return Recipient{Kind: RecipientKindUser, UserID: userID}
}

// Notification is the durable in-app record created by the dispatcher; only
// the read flag mutates after creation.
type Notification struct {
	ID        string
	Recipient Recipient
	Type      string
	Title     string
	Message   string
	Link      string
	Read      bool
	CreatedAt time.Time
}

// PushToken stores a registered push endpoint for a user's device.
type PushToken struct {
	ID        string
	UserID    string
	Token     string
	Platform  string
	IsAdmin   bool
	CreatedAt time.Time
}

const (
	// HealthStatusOK indicates all dependencies are healthy.
	HealthStatusOK = "ok"
	// HealthStatusError indicates a critical dependency is unavailable.
	HealthStatusError = "error"
)
