package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/meridianmart/api/internal/domain"
	"github.com/meridianmart/api/internal/payments"
	"github.com/meridianmart/api/internal/repositories"
)

const (
	orderEventCreated       = "order.created"
	orderEventStatusChanged = "order.status.changed"

	orderIDPrefix = "ord_"

	defaultOrderNumberPrefix = "MM"
	defaultOrderCounterID    = "orders"
)

var (
	// ErrOrderInvalidInput signals the caller provided invalid data.
	ErrOrderInvalidInput = errors.New("order: invalid input")
	// ErrOrderNotFound indicates the order could not be located.
	ErrOrderNotFound = errors.New("order: not found")
	// ErrOrderForbidden indicates the actor is not entitled to the order.
	ErrOrderForbidden = errors.New("order: forbidden")
	// ErrOrderInvalidState indicates the state machine rejects the requested move.
	ErrOrderInvalidState = errors.New("order: invalid status transition")
	// ErrOrderConflict indicates a concurrent transition won the race.
	ErrOrderConflict = errors.New("order: conflict")
	// ErrOrderCouponRejected indicates the coupon failed pre-validation.
	ErrOrderCouponRejected = errors.New("order: coupon rejected")
	// ErrOrderCouponConflict indicates coupon application failed at commit time
	// after pre-validation passed; reserved stock has been released.
	ErrOrderCouponConflict = errors.New("order: coupon conflict")
	// ErrOrderPaymentNotCaptured indicates the referenced payment intent has not succeeded.
	ErrOrderPaymentNotCaptured = errors.New("order: payment not captured")
)

// OrderServiceDeps bundles collaborators required to construct the order service.
type OrderServiceDeps struct {
	Orders       repositories.OrderRepository
	Catalog      repositories.CatalogRepository
	Carts        repositories.CartRepository
	Coupons      repositories.CouponRepository
	Counters     repositories.CounterRepository
	Inventory    InventoryService
	CouponRules  CouponService
	Payments     payments.Provider
	Notifier     NotificationService
	Events       OrderEventPublisher
	NumberPrefix string
	CounterID    string
	Clock        func() time.Time
	IDGenerator  func() string
	Logger       func(ctx context.Context, event string, fields map[string]any)
}

type orderService struct {
	orders       repositories.OrderRepository
	catalog      repositories.CatalogRepository
	carts        repositories.CartRepository
	coupons      repositories.CouponRepository
	counters     repositories.CounterRepository
	inventory    InventoryService
	couponRules  CouponService
	payments     payments.Provider
	notifier     NotificationService
	events       OrderEventPublisher
	numberPrefix string
	counterID    string
	clock        func() time.Time
	newID        func() string
	logger       func(context.Context, string, map[string]any)
}

// NewOrderService wires dependencies into a concrete OrderService implementation.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Orders == nil {
		return nil, errors.New("order service: order repository is required")
	}
	if deps.Catalog == nil {
		return nil, errors.New("order service: catalog repository is required")
	}
	if deps.Coupons == nil {
		return nil, errors.New("order service: coupon repository is required")
	}
	if deps.Counters == nil {
		return nil, errors.New("order service: counter repository is required")
	}
	if deps.Inventory == nil {
		return nil, errors.New("order service: inventory service is required")
	}
	if deps.CouponRules == nil {
		return nil, errors.New("order service: coupon service is required")
	}

	numberPrefix := strings.TrimSpace(deps.NumberPrefix)
	if numberPrefix == "" {
		numberPrefix = defaultOrderNumberPrefix
	}
	counterID := strings.TrimSpace(deps.CounterID)
	if counterID == "" {
		counterID = defaultOrderCounterID
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return ulid.Make().String()
		}
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &orderService{
		orders:       deps.Orders,
		catalog:      deps.Catalog,
		carts:        deps.Carts,
		coupons:      deps.Coupons,
		counters:     deps.Counters,
		inventory:    deps.Inventory,
		couponRules:  deps.CouponRules,
		payments:     deps.Payments,
		notifier:     deps.Notifier,
		events:       deps.Events,
		numberPrefix: numberPrefix,
		counterID:    counterID,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:  idGen,
		logger: logger,
	}, nil
}

// Create runs the checkout saga: price lines from the catalog, pre-validate
// the coupon, reserve stock, persist the order, then consume the coupon
// usage. A coupon failure after reservation compensates by deleting the order
// and releasing the stock before surfacing the conflict.
func (s *orderService) Create(ctx context.Context, cmd CreateOrderCommand) (Order, error) {
	userID := strings.TrimSpace(cmd.UserID)

	if err := validateShippingAddress(cmd.ShippingAddress); err != nil {
		return Order{}, err
	}

	switch cmd.PaymentMethod {
	case domain.PaymentMethodCOD, domain.PaymentMethodOnline:
	default:
		return Order{}, fmt.Errorf("%w: unknown payment method %q", ErrOrderInvalidInput, cmd.PaymentMethod)
	}

	inputs, fromCart, err := s.resolveItemInputs(ctx, userID, cmd.Items)
	if err != nil {
		return Order{}, err
	}

	items, err := s.priceLineItems(ctx, userID, inputs)
	if err != nil {
		return Order{}, err
	}

	var subtotal int64
	for _, item := range items {
		subtotal += item.Total
	}

	now := s.clock()

	var orderCoupon *domain.OrderCoupon
	discount := int64(0)
	couponCode := domain.NormalizeCouponCode(cmd.CouponCode)
	if couponCode != "" {
		verdict, err := s.couponRules.Validate(ctx, ValidateCouponCommand{
			Code:      couponCode,
			UserID:    userID,
			CartTotal: subtotal,
		})
		if err != nil {
			return Order{}, err
		}
		if !verdict.Eligible {
			return Order{}, fmt.Errorf("%w: %s", ErrOrderCouponRejected, verdict.Rejection.Message())
		}
		discount = verdict.Discount
		orderCoupon = &domain.OrderCoupon{
			Code:           couponCode,
			DiscountAmount: discount,
		}
	}

	total := subtotal - discount

	status := domain.OrderStatusPending
	paymentStatus := domain.PaymentStatusPending
	paymentRef := ""
	if cmd.PaymentMethod == domain.PaymentMethodOnline {
		intentID := strings.TrimSpace(cmd.PaymentIntentID)
		if intentID == "" {
			return Order{}, fmt.Errorf("%w: payment intent id is required for online payment", ErrOrderInvalidInput)
		}
		if s.payments == nil {
			return Order{}, payments.ErrProviderUnavailable
		}
		details, err := s.payments.VerifyIntent(ctx, intentID)
		if err != nil {
			return Order{}, fmt.Errorf("order: verify payment: %w", err)
		}
		if !details.Captured {
			return Order{}, fmt.Errorf("%w: intent %s is %s", ErrOrderPaymentNotCaptured, intentID, details.Status)
		}
		if details.Amount < total {
			return Order{}, fmt.Errorf("%w: captured amount %d below order total %d", ErrOrderPaymentNotCaptured, details.Amount, total)
		}
		status = domain.OrderStatusPaid
		paymentStatus = domain.PaymentStatusPaid
		paymentRef = intentID
	}

	lines := stockLinesFromItems(items)
	if _, err := s.inventory.Reserve(ctx, InventoryReserveCommand{Lines: lines}); err != nil {
		return Order{}, err
	}

	number, err := s.generateOrderNumber(ctx, now)
	if err != nil {
		s.compensateStock(ctx, lines, "order.create.number.failed")
		return Order{}, err
	}

	order := Order{
		ID:              orderIDPrefix + s.newID(),
		OrderNumber:     number,
		UserID:          userID,
		Status:          status,
		Items:           items,
		Totals:          OrderTotals{Subtotal: subtotal, Discount: discount, Total: total},
		PaymentMethod:   cmd.PaymentMethod,
		PaymentStatus:   paymentStatus,
		PaymentRef:      paymentRef,
		ShippingAddress: cmd.ShippingAddress,
		Coupon:          orderCoupon,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.orders.Insert(ctx, order); err != nil {
		s.compensateStock(ctx, lines, "order.create.insert.failed")
		return Order{}, mapOrderError(err)
	}

	if orderCoupon != nil {
		if _, err := s.coupons.Apply(ctx, repositories.CouponApplyRequest{
			Code:      couponCode,
			UserID:    userID,
			OrderRef:  order.ID,
			CartTotal: subtotal,
			Now:       now,
		}); err != nil {
			if deleteErr := s.orders.Delete(ctx, order.ID); deleteErr != nil {
				s.logger(ctx, "order.create.rollback.delete.failed", map[string]any{
					"order": order.ID,
					"error": deleteErr.Error(),
				})
			}
			s.compensateStock(ctx, lines, "order.create.coupon.failed")
			return Order{}, couponConflictError(err)
		}
	}

	if fromCart {
		if err := s.carts.Clear(ctx, userID); err != nil {
			s.logger(ctx, "order.create.cart.clear.failed", map[string]any{
				"order": order.ID,
				"user":  userID,
				"error": err.Error(),
			})
		}
	}

	s.notifyAdmins(ctx, NotifyCommand{
		Type:    "order_created",
		Title:   "New order placed",
		Message: fmt.Sprintf("Order %s for %d items", order.OrderNumber, len(order.Items)),
		Link:    "/admin/orders/" + order.ID,
	})

	s.publishEvent(ctx, OrderEvent{
		Type:          orderEventCreated,
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		UserID:        userID,
		CurrentStatus: order.Status,
		OccurredAt:    now,
	})

	return order, nil
}

func (s *orderService) List(ctx context.Context, filter OrderListFilter) (domain.CursorPage[Order], error) {
	if strings.TrimSpace(filter.UserID) == "" {
		return domain.CursorPage[Order]{}, fmt.Errorf("%w: user id is required", ErrOrderInvalidInput)
	}
	page, err := s.orders.ListByUser(ctx, filter)
	if err != nil {
		return domain.CursorPage[Order]{}, mapOrderError(err)
	}
	return page, nil
}

func (s *orderService) Get(ctx context.Context, cmd GetOrderCommand) (Order, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, mapOrderError(err)
	}

	if err := authorizeOrderAccess(order, cmd.ActorID, cmd.IsAdmin); err != nil {
		return Order{}, err
	}

	return order, nil
}

// Cancel transitions a customer-cancellable order to cancelled and releases
// its stock. The conditional status update guards the release from running
// twice: a losing concurrent cancel fails the compare-and-set.
func (s *orderService) Cancel(ctx context.Context, cmd CancelOrderCommand) (Order, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, mapOrderError(err)
	}

	if err := authorizeOrderAccess(order, cmd.ActorID, cmd.IsAdmin); err != nil {
		return Order{}, err
	}

	if !domain.IsCustomerCancellable(order.Status) {
		return Order{}, fmt.Errorf("%w: order cannot be cancelled at this stage", ErrOrderInvalidState)
	}

	now := s.clock()
	reason := strings.TrimSpace(cmd.Reason)

	updated, err := s.orders.UpdateStatus(ctx, repositories.OrderStatusUpdate{
		OrderID:        order.ID,
		ExpectedStatus: order.Status,
		TargetStatus:   domain.OrderStatusCancelled,
		CancelReason:   optionalString(reason),
		Now:            now,
	})
	if err != nil {
		return Order{}, mapOrderError(err)
	}

	if _, err := s.inventory.Release(ctx, InventoryReleaseCommand{
		Lines: stockLinesFromItems(updated.Items),
	}); err != nil {
		s.logger(ctx, "order.cancel.release.failed", map[string]any{
			"order": updated.ID,
			"error": err.Error(),
		})
		return Order{}, fmt.Errorf("order: stock release after cancellation: %w", err)
	}

	message := fmt.Sprintf("Order %s was cancelled", updated.OrderNumber)
	if reason != "" {
		message = fmt.Sprintf("Order %s was cancelled: %s", updated.OrderNumber, reason)
	}
	s.notifyAdmins(ctx, NotifyCommand{
		Type:    "order_cancelled",
		Title:   "Order cancelled",
		Message: message,
		Link:    "/admin/orders/" + updated.ID,
	})

	s.publishEvent(ctx, OrderEvent{
		Type:           orderEventStatusChanged,
		OrderID:        updated.ID,
		OrderNumber:    updated.OrderNumber,
		UserID:         updated.UserID,
		PreviousStatus: order.Status,
		CurrentStatus:  updated.Status,
		OccurredAt:     now,
		Metadata:       reasonMetadata(reason),
	})

	return updated, nil
}

// RequestReturn flags a delivered order for return. No stock moves here;
// physical return and inspection resolve through the admin progression.
func (s *orderService) RequestReturn(ctx context.Context, cmd RequestReturnCommand) (Order, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	reason := strings.TrimSpace(cmd.Reason)
	if reason == "" {
		return Order{}, fmt.Errorf("%w: return reason is required", ErrOrderInvalidInput)
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, mapOrderError(err)
	}

	if err := authorizeOrderAccess(order, cmd.ActorID, cmd.IsAdmin); err != nil {
		return Order{}, err
	}

	if !domain.IsReturnable(order.Status) {
		return Order{}, fmt.Errorf("%w: only delivered orders can be returned", ErrOrderInvalidState)
	}

	now := s.clock()
	updated, err := s.orders.UpdateStatus(ctx, repositories.OrderStatusUpdate{
		OrderID:        order.ID,
		ExpectedStatus: order.Status,
		TargetStatus:   domain.OrderStatusReturnRequested,
		ReturnReason:   optionalString(reason),
		Now:            now,
	})
	if err != nil {
		return Order{}, mapOrderError(err)
	}

	s.notifyAdmins(ctx, NotifyCommand{
		Type:    "order_return_requested",
		Title:   "Return requested",
		Message: fmt.Sprintf("Order %s return requested: %s", updated.OrderNumber, reason),
		Link:    "/admin/orders/" + updated.ID,
	})

	s.publishEvent(ctx, OrderEvent{
		Type:           orderEventStatusChanged,
		OrderID:        updated.ID,
		OrderNumber:    updated.OrderNumber,
		UserID:         updated.UserID,
		PreviousStatus: order.Status,
		CurrentStatus:  updated.Status,
		OccurredAt:     now,
		Metadata:       reasonMetadata(reason),
	})

	return updated, nil
}

// TransitionStatus performs an admin-driven progression using the same
// conditional update as customer flows. Transitions into cancelled release
// the order's stock.
func (s *orderService) TransitionStatus(ctx context.Context, cmd OrderStatusTransitionCommand) (Order, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	if !domain.ValidOrderStatus(cmd.TargetStatus) {
		return Order{}, fmt.Errorf("%w: unknown status %q", ErrOrderInvalidInput, cmd.TargetStatus)
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, mapOrderError(err)
	}

	expected := order.Status
	if cmd.ExpectedStatus != nil {
		expected = *cmd.ExpectedStatus
	}

	if !domain.CanTransition(expected, cmd.TargetStatus) {
		return Order{}, fmt.Errorf("%w: %s to %s", ErrOrderInvalidState, expected, cmd.TargetStatus)
	}

	now := s.clock()
	updated, err := s.orders.UpdateStatus(ctx, repositories.OrderStatusUpdate{
		OrderID:        order.ID,
		ExpectedStatus: expected,
		TargetStatus:   cmd.TargetStatus,
		AdminNotes:     optionalString(strings.TrimSpace(cmd.AdminNotes)),
		Now:            now,
	})
	if err != nil {
		return Order{}, mapOrderError(err)
	}

	if cmd.TargetStatus == domain.OrderStatusCancelled && expected != domain.OrderStatusCancelled {
		if _, err := s.inventory.Release(ctx, InventoryReleaseCommand{
			Lines: stockLinesFromItems(updated.Items),
		}); err != nil {
			s.logger(ctx, "order.transition.release.failed", map[string]any{
				"order": updated.ID,
				"error": err.Error(),
			})
			return Order{}, fmt.Errorf("order: stock release after cancellation: %w", err)
		}
	}

	if updated.UserID != "" {
		s.notifyCustomer(ctx, updated.UserID, NotifyCommand{
			Type:    "order_status",
			Title:   "Order update",
			Message: fmt.Sprintf("Order %s is now %s", updated.OrderNumber, updated.Status),
			Link:    "/orders/" + updated.ID,
		})
	}

	s.publishEvent(ctx, OrderEvent{
		Type:           orderEventStatusChanged,
		OrderID:        updated.ID,
		OrderNumber:    updated.OrderNumber,
		UserID:         updated.UserID,
		PreviousStatus: expected,
		CurrentStatus:  updated.Status,
		OccurredAt:     now,
	})

	return updated, nil
}

// resolveItemInputs returns the line inputs and whether they came from the
// caller's stored cart.
func (s *orderService) resolveItemInputs(ctx context.Context, userID string, items []OrderItemInput) ([]OrderItemInput, bool, error) {
	if len(items) > 0 {
		return items, false, nil
	}
	if userID == "" {
		return nil, false, fmt.Errorf("%w: guest checkout requires items", ErrOrderInvalidInput)
	}
	if s.carts == nil {
		return nil, false, fmt.Errorf("%w: cart is empty", ErrOrderInvalidInput)
	}

	cart, err := s.carts.Get(ctx, userID)
	if err != nil {
		return nil, false, mapOrderError(err)
	}
	if len(cart.Items) == 0 {
		return nil, false, fmt.Errorf("%w: cart is empty", ErrOrderInvalidInput)
	}

	inputs := make([]OrderItemInput, 0, len(cart.Items))
	for _, item := range cart.Items {
		inputs = append(inputs, OrderItemInput{
			ProductID: item.ProductID,
			Variant:   item.Variant,
			Quantity:  item.Quantity,
		})
	}
	return inputs, true, nil
}

// priceLineItems freezes unit prices onto line items. Authenticated callers
// always get catalog prices; guest lines carry the caller's price with the
// total still computed here.
func (s *orderService) priceLineItems(ctx context.Context, userID string, inputs []OrderItemInput) ([]OrderLineItem, error) {
	items := make([]OrderLineItem, 0, len(inputs))
	products := make(map[string]Product)

	for i, input := range inputs {
		productID := strings.TrimSpace(input.ProductID)
		if productID == "" {
			return nil, fmt.Errorf("%w: item %d product id is required", ErrOrderInvalidInput, i)
		}
		if input.Quantity <= 0 {
			return nil, fmt.Errorf("%w: item %d quantity must be positive", ErrOrderInvalidInput, i)
		}

		line := OrderLineItem{
			ProductRef: productID,
			Name:       strings.TrimSpace(input.Name),
			Variant:    input.Variant,
			Quantity:   input.Quantity,
		}

		if userID == "" {
			if input.UnitPrice < 0 {
				return nil, fmt.Errorf("%w: item %d price cannot be negative", ErrOrderInvalidInput, i)
			}
			line.UnitPrice = input.UnitPrice
		} else {
			product, ok := products[productID]
			if !ok {
				var err error
				product, err = s.catalog.GetProduct(ctx, productID)
				if err != nil {
					return nil, mapOrderError(err)
				}
				products[productID] = product
			}
			if !product.IsPublished {
				return nil, fmt.Errorf("%w: product %s is not available", ErrOrderInvalidInput, productID)
			}
			line.Name = product.Name
			line.UnitPrice = product.Price
			if input.Variant != nil {
				variant, ok := product.FindVariant(*input.Variant)
				if !ok {
					return nil, fmt.Errorf("%w: product %s has no variant %s/%s", ErrOrderInvalidInput, productID, input.Variant.Color, input.Variant.Size)
				}
				line.UnitPrice = variant.Price
			}
		}

		line.Total = line.UnitPrice * int64(line.Quantity)
		items = append(items, line)
	}

	return items, nil
}

func (s *orderService) compensateStock(ctx context.Context, lines []StockLine, event string) {
	if _, err := s.inventory.Release(ctx, InventoryReleaseCommand{Lines: lines}); err != nil {
		s.logger(ctx, event, map[string]any{
			"error": err.Error(),
		})
	}
}

func (s *orderService) generateOrderNumber(ctx context.Context, now time.Time) (string, error) {
	seq, err := s.counters.Next(ctx, s.counterID, 1)
	if err != nil {
		return "", fmt.Errorf("order: next order number: %w", err)
	}
	return fmt.Sprintf("%s-%04d-%06d", s.numberPrefix, now.Year(), seq), nil
}

func (s *orderService) notifyAdmins(ctx context.Context, cmd NotifyCommand) {
	if s.notifier == nil {
		return
	}
	if _, err := s.notifier.NotifyAdmins(ctx, cmd); err != nil {
		s.logger(ctx, "order.notify.admins.failed", map[string]any{
			"type":  cmd.Type,
			"error": err.Error(),
		})
	}
}

func (s *orderService) notifyCustomer(ctx context.Context, userID string, cmd NotifyCommand) {
	if s.notifier == nil {
		return
	}
	if _, err := s.notifier.NotifyCustomer(ctx, userID, cmd); err != nil {
		s.logger(ctx, "order.notify.customer.failed", map[string]any{
			"type":  cmd.Type,
			"user":  userID,
			"error": err.Error(),
		})
	}
}

func (s *orderService) publishEvent(ctx context.Context, event OrderEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishOrderEvent(ctx, event); err != nil {
		s.logger(ctx, "order.event.publish.failed", map[string]any{
			"type":   event.Type,
			"order":  event.OrderID,
			"error":  err.Error(),
			"status": string(event.CurrentStatus),
		})
	}
}

func validateShippingAddress(addr Address) error {
	missing := make([]string, 0, 5)
	if strings.TrimSpace(addr.Recipient) == "" {
		missing = append(missing, "recipient")
	}
	if strings.TrimSpace(addr.Line1) == "" {
		missing = append(missing, "line1")
	}
	if strings.TrimSpace(addr.City) == "" {
		missing = append(missing, "city")
	}
	if strings.TrimSpace(addr.PostalCode) == "" {
		missing = append(missing, "postal code")
	}
	if strings.TrimSpace(addr.Country) == "" {
		missing = append(missing, "country")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: shipping address missing %s", ErrOrderInvalidInput, strings.Join(missing, ", "))
	}
	return nil
}

func authorizeOrderAccess(order Order, actorID string, isAdmin bool) error {
	if isAdmin {
		return nil
	}
	actorID = strings.TrimSpace(actorID)
	if actorID == "" || order.UserID == "" || order.UserID != actorID {
		return fmt.Errorf("%w: order %s", ErrOrderForbidden, order.ID)
	}
	return nil
}

func stockLinesFromItems(items []OrderLineItem) []StockLine {
	lines := make([]StockLine, 0, len(items))
	for _, item := range items {
		lines = append(lines, StockLine{
			ProductID: item.ProductRef,
			Variant:   item.Variant,
			Quantity:  item.Quantity,
		})
	}
	return lines
}

func couponConflictError(err error) error {
	var couponErr *repositories.CouponError
	if errors.As(err, &couponErr) && couponErr.Code == repositories.CouponErrorRejected {
		return fmt.Errorf("%w: %s", ErrOrderCouponConflict, couponErr.Rejection.Message())
	}
	if isRepoConflict(err) {
		return fmt.Errorf("%w: %s", ErrOrderCouponConflict, domain.CouponRejectionAlreadyUsed.Message())
	}
	return fmt.Errorf("%w: %v", ErrOrderCouponConflict, err)
}

func reasonMetadata(reason string) map[string]any {
	if reason == "" {
		return nil
	}
	return map[string]any{"reason": reason}
}

func optionalString(v string) *string {
	if v == "" {
		return nil
	}
	ref := v
	return &ref
}

func isRepoConflict(err error) bool {
	var repoErr repositories.RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsConflict()
}

func mapOrderError(err error) error {
	if err == nil {
		return nil
	}

	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrOrderNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrOrderConflict, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("order: repository unavailable: %w", err)
		}
	}

	return err
}
