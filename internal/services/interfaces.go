package services

import (
	"context"
	"time"

	domain "github.com/meridianmart/api/internal/domain"
	"github.com/meridianmart/api/internal/repositories"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	Pagination      = domain.Pagination
	Product         = domain.Product
	Variant         = domain.Variant
	VariantKey      = domain.VariantKey
	StockLine       = domain.StockLine
	Cart            = domain.Cart
	CartItem        = domain.CartItem
	Order           = domain.Order
	OrderStatus     = domain.OrderStatus
	OrderLineItem   = domain.OrderLineItem
	OrderTotals     = domain.OrderTotals
	OrderCoupon     = domain.OrderCoupon
	Address         = domain.Address
	PaymentMethod   = domain.PaymentMethod
	PaymentStatus   = domain.PaymentStatus
	Coupon          = domain.Coupon
	CouponRejection = domain.CouponRejection
	Notification    = domain.Notification
	Recipient       = domain.Recipient
	PushToken       = domain.PushToken
)

// InventoryService centralizes all-or-nothing stock reservation and release.
type InventoryService interface {
	Reserve(ctx context.Context, cmd InventoryReserveCommand) (InventoryMutation, error)
	Release(ctx context.Context, cmd InventoryReleaseCommand) (InventoryMutation, error)
}

// CouponService runs coupon eligibility, discount computation, and admin CRUD.
type CouponService interface {
	Validate(ctx context.Context, cmd ValidateCouponCommand) (CouponValidation, error)
	ListAvailable(ctx context.Context, userID string, pager Pagination) (domain.CursorPage[Coupon], error)
	Create(ctx context.Context, cmd UpsertCouponCommand) (Coupon, error)
	Update(ctx context.Context, cmd UpsertCouponCommand) (Coupon, error)
	Delete(ctx context.Context, code string) error
	List(ctx context.Context, filter CouponAdminFilter) (domain.CursorPage[Coupon], error)
}

// OrderService encapsulates the order lifecycle: creation with its
// compensation saga, customer cancellation and returns, and admin progression.
type OrderService interface {
	Create(ctx context.Context, cmd CreateOrderCommand) (Order, error)
	List(ctx context.Context, filter OrderListFilter) (domain.CursorPage[Order], error)
	Get(ctx context.Context, cmd GetOrderCommand) (Order, error)
	Cancel(ctx context.Context, cmd CancelOrderCommand) (Order, error)
	RequestReturn(ctx context.Context, cmd RequestReturnCommand) (Order, error)
	TransitionStatus(ctx context.Context, cmd OrderStatusTransitionCommand) (Order, error)
}

// NotificationService persists in-app notifications and fans out best-effort
// pushes to registered devices.
type NotificationService interface {
	NotifyAdmins(ctx context.Context, cmd NotifyCommand) (Notification, error)
	NotifyCustomer(ctx context.Context, userID string, cmd NotifyCommand) (Notification, error)
	List(ctx context.Context, cmd ListNotificationsCommand) (domain.CursorPage[Notification], error)
	MarkRead(ctx context.Context, cmd MarkReadCommand) (Notification, error)
	RegisterPushToken(ctx context.Context, cmd RegisterPushTokenCommand) (PushToken, error)
	RemovePushToken(ctx context.Context, cmd RemovePushTokenCommand) error
}

// OrderEventPublisher publishes order domain events for downstream consumers.
type OrderEventPublisher interface {
	PublishOrderEvent(ctx context.Context, event OrderEvent) error
}

// OrderEvent captures metadata for emitted order domain events.
type OrderEvent struct {
	Type           string
	OrderID        string
	OrderNumber    string
	UserID         string
	PreviousStatus OrderStatus
	CurrentStatus  OrderStatus
	OccurredAt     time.Time
	Metadata       map[string]any
}

// Command and DTO definitions ------------------------------------------------

type InventoryReserveCommand struct {
	Lines []StockLine
}

type InventoryReleaseCommand struct {
	Lines []StockLine
}

// InventoryMutation reports post-mutation stock per product id.
type InventoryMutation struct {
	Stocks map[string]Product
}

type ValidateCouponCommand struct {
	Code      string
	UserID    string
	CartTotal int64
}

// CouponValidation reports the eligibility verdict and the clamped discount.
// Discount and FinalTotal are zero-valued unless Eligible.
type CouponValidation struct {
	Coupon     Coupon
	Eligible   bool
	Rejection  CouponRejection
	Discount   int64
	FinalTotal int64
}

type UpsertCouponCommand struct {
	Coupon  Coupon
	ActorID string
}

type CouponAdminFilter struct {
	ActiveOnly bool
	Pagination Pagination
}

type OrderListFilter = repositories.OrderListFilter

// OrderItemInput names a purchasable configuration for order creation. For
// authenticated callers Name and UnitPrice are ignored and resolved from the
// live catalog; guest checkouts carry them verbatim, with the total still
// computed server-side.
type OrderItemInput struct {
	ProductID string
	Name      string
	Variant   *VariantKey
	Quantity  int
	UnitPrice int64
}

type CreateOrderCommand struct {
	UserID          string
	Items           []OrderItemInput
	ShippingAddress Address
	PaymentMethod   PaymentMethod
	CouponCode      string
	PaymentIntentID string
}

type GetOrderCommand struct {
	OrderID string
	ActorID string
	IsAdmin bool
}

type CancelOrderCommand struct {
	OrderID string
	ActorID string
	IsAdmin bool
	Reason  string
}

type RequestReturnCommand struct {
	OrderID string
	ActorID string
	IsAdmin bool
	Reason  string
}

type OrderStatusTransitionCommand struct {
	OrderID        string
	TargetStatus   OrderStatus
	ExpectedStatus *OrderStatus
	ActorID        string
	AdminNotes     string
}

type NotifyCommand struct {
	Type    string
	Title   string
	Message string
	Link    string
}

type ListNotificationsCommand struct {
	ActorID    string
	IsAdmin    bool
	UnreadOnly bool
	Pagination Pagination
}

type MarkReadCommand struct {
	NotificationID string
	ActorID        string
	IsAdmin        bool
}

type RegisterPushTokenCommand struct {
	UserID   string
	Token    string
	Platform string
	IsAdmin  bool
}

type RemovePushTokenCommand struct {
	TokenID string
	UserID  string
}
