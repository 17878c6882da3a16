package repositories

import (
	"context"
	"time"

	domain "github.com/meridianmart/api/internal/domain"
)

// Registry exposes typed repository accessors and lifecycle hooks for dependency injection.
type Registry interface {
	Close(ctx context.Context) error

	Catalog() CatalogRepository
	Inventory() InventoryRepository
	Orders() OrderRepository
	Coupons() CouponRepository
	Carts() CartRepository
	Notifications() NotificationRepository
	PushTokens() PushTokenRepository
	Counters() CounterRepository
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// CatalogRepository provides read access to the product catalog. Catalog CRUD
// lives in the back office; the order core only resolves prices and variants.
type CatalogRepository interface {
	GetProduct(ctx context.Context, productID string) (domain.Product, error)
	UpsertProduct(ctx context.Context, product domain.Product) (domain.Product, error)
}

// InventoryRepository mutates stock counters with transactional guarantees.
// Reserve is all-or-nothing across the line list; Release increments
// unconditionally and must be invoked at most once per reservation, which the
// order service guarantees via status-transition guards.
type InventoryRepository interface {
	Reserve(ctx context.Context, req InventoryReserveRequest) (InventoryMutationResult, error)
	Release(ctx context.Context, req InventoryReleaseRequest) (InventoryMutationResult, error)
}

// InventoryReserveRequest decrements each addressed counter conditioned on
// sufficient stock.
type InventoryReserveRequest struct {
	Lines []domain.StockLine
	Now   time.Time
}

// InventoryReleaseRequest restores previously reserved stock.
type InventoryReleaseRequest struct {
	Lines []domain.StockLine
	Now   time.Time
}

// InventoryMutationResult reports the post-mutation stock per product id.
type InventoryMutationResult struct {
	Stocks map[string]domain.Product
}

// OrderRepository persists order headers and provides query helpers.
// UpdateStatus is a transactional compare-and-set keyed on the expected prior
// status so concurrent transitions cannot race.
type OrderRepository interface {
	Insert(ctx context.Context, order domain.Order) error
	Delete(ctx context.Context, orderID string) error
	FindByID(ctx context.Context, orderID string) (domain.Order, error)
	ListByUser(ctx context.Context, filter OrderListFilter) (domain.CursorPage[domain.Order], error)
	UpdateStatus(ctx context.Context, req OrderStatusUpdate) (domain.Order, error)
}

// OrderListFilter scopes order listings to a user with optional status filters.
type OrderListFilter struct {
	UserID     string
	Status     []domain.OrderStatus
	DateRange  domain.RangeQuery[time.Time]
	Pagination domain.Pagination
}

// OrderStatusUpdate describes a conditional status transition plus the
// lifecycle fields written alongside it.
type OrderStatusUpdate struct {
	OrderID        string
	ExpectedStatus domain.OrderStatus
	TargetStatus   domain.OrderStatus
	CancelReason   *string
	ReturnReason   *string
	AdminNotes     *string
	Now            time.Time
}

// CouponRepository maintains coupon definitions and usage records. Apply runs
// the commit-time re-validation, the usedCount increment, and the usage-record
// creation in one transaction; the usage record's identity enforces the
// one-use-per-customer constraint at the storage layer.
type CouponRepository interface {
	Insert(ctx context.Context, coupon domain.Coupon) error
	Update(ctx context.Context, coupon domain.Coupon) error
	Delete(ctx context.Context, code string) error
	FindByCode(ctx context.Context, code string) (domain.Coupon, error)
	List(ctx context.Context, filter CouponListFilter) (domain.CursorPage[domain.Coupon], error)
	HasUsage(ctx context.Context, userID string, code string) (bool, error)
	Apply(ctx context.Context, req CouponApplyRequest) (domain.Coupon, error)
}

// CouponListFilter controls pagination and active-only filtering for listings.
type CouponListFilter struct {
	ActiveOnly bool
	Pagination domain.Pagination
}

// CouponApplyRequest consumes one usage of a code for a customer and order.
// UserID is empty for guest checkouts, which consume the global limit only.
type CouponApplyRequest struct {
	Code      string
	UserID    string
	OrderRef  string
	CartTotal int64
	Now       time.Time
}

// CartRepository owns stored cart persistence for authenticated users.
type CartRepository interface {
	Get(ctx context.Context, userID string) (domain.Cart, error)
	Put(ctx context.Context, cart domain.Cart) (domain.Cart, error)
	Clear(ctx context.Context, userID string) error
}

// NotificationRepository stores in-app notifications; only the read flag
// mutates after insert.
type NotificationRepository interface {
	Insert(ctx context.Context, notification domain.Notification) error
	Find(ctx context.Context, notificationID string) (domain.Notification, error)
	ListByRecipient(ctx context.Context, filter NotificationListFilter) (domain.CursorPage[domain.Notification], error)
	MarkRead(ctx context.Context, notificationID string, now time.Time) (domain.Notification, error)
}

// NotificationListFilter scopes listings to one recipient.
type NotificationListFilter struct {
	Recipient  domain.Recipient
	UnreadOnly bool
	Pagination domain.Pagination
}

// PushTokenRepository stores registered push endpoints per user.
type PushTokenRepository interface {
	Save(ctx context.Context, token domain.PushToken) (domain.PushToken, error)
	Delete(ctx context.Context, tokenID string) error
	ListAdmin(ctx context.Context) ([]domain.PushToken, error)
	ListByUser(ctx context.Context, userID string) ([]domain.PushToken, error)
}

// CounterRepository provides transaction-safe sequence numbers.
type CounterRepository interface {
	Next(ctx context.Context, counterID string, step int64) (int64, error)
}
