package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/meridianmart/api/internal/domain"
	"github.com/meridianmart/api/internal/platform/auth"
	"github.com/meridianmart/api/internal/platform/httpx"
	"github.com/meridianmart/api/internal/services"
)

const (
	defaultOrderPageSize = 20
	maxOrderPageSize     = 100
	maxOrderBodySize     = 32 * 1024
	maxOrderReasonBody   = 4 * 1024
)

// OrderHandlers exposes the order lifecycle endpoints. Creation admits guests
// when enabled; every other endpoint requires an authenticated caller.
type OrderHandlers struct {
	authn  *auth.Authenticator
	orders services.OrderService

	limiter         rateLimiter
	allowGuest      bool
	defaultPageSize int
	maxPageSize     int
}

// OrderHandlersOption customises OrderHandlers construction.
type OrderHandlersOption func(*OrderHandlers)

// WithGuestCheckout toggles unauthenticated order creation.
func WithGuestCheckout(enabled bool) OrderHandlersOption {
	return func(h *OrderHandlers) {
		h.allowGuest = enabled
	}
}

// WithCheckoutRateLimit throttles guest order creation per client address.
// A non-positive limit or window disables throttling.
func WithCheckoutRateLimit(limit int, window time.Duration) OrderHandlersOption {
	return func(h *OrderHandlers) {
		h.limiter = newWindowRateLimiter(limit, window, nil)
	}
}

// WithOrderPageSizes overrides listing pagination bounds.
func WithOrderPageSizes(defaultSize, maxSize int) OrderHandlersOption {
	return func(h *OrderHandlers) {
		if defaultSize > 0 {
			h.defaultPageSize = defaultSize
		}
		if maxSize >= h.defaultPageSize {
			h.maxPageSize = maxSize
		}
	}
}

// NewOrderHandlers constructs a new OrderHandlers instance.
func NewOrderHandlers(authn *auth.Authenticator, orders services.OrderService, opts ...OrderHandlersOption) *OrderHandlers {
	h := &OrderHandlers{
		authn:           authn,
		orders:          orders,
		allowGuest:      true,
		defaultPageSize: defaultOrderPageSize,
		maxPageSize:     maxOrderPageSize,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Routes registers the /orders endpoints.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}

	create := chi.Router(r)
	authed := chi.Router(r)
	if h.authn != nil {
		create = r.With(h.authn.OptionalFirebaseAuth())
		authed = r.With(h.authn.RequireFirebaseAuth())
	}

	create.Post("/", h.createOrder)
	authed.Get("/", h.listOrders)
	authed.Get("/{orderID}", h.getOrder)
	authed.Put("/{orderID}/cancel", h.cancelOrder)
	authed.Put("/{orderID}/return", h.requestReturn)
}

type orderItemRequest struct {
	ProductID string             `json:"product_id"`
	Name      string             `json:"name"`
	Color     string             `json:"color"`
	Size      string             `json:"size"`
	Quantity  int                `json:"quantity"`
	UnitPrice int64              `json:"unit_price"`
	Variant   *variantKeyPayload `json:"variant"`
}

type variantKeyPayload struct {
	Color string `json:"color"`
	Size  string `json:"size"`
}

type createOrderRequest struct {
	Items           []orderItemRequest `json:"items"`
	ShippingAddress addressPayload     `json:"shipping_address"`
	PaymentMethod   string             `json:"payment_method"`
	Coupon          string             `json:"coupon"`
	PaymentIntentID string             `json:"payment_intent_id"`
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

func (h *OrderHandlers) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	userID := ""
	if identity, ok := auth.IdentityFromContext(ctx); ok {
		userID = strings.TrimSpace(identity.UID)
	}

	if userID == "" {
		if !h.allowGuest {
			httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
			return
		}
		if h.limiter != nil && !h.limiter.Allow(clientAddress(r)) {
			httpx.WriteError(ctx, w, httpx.NewError("rate_limited", "too many checkout attempts, try again later", http.StatusTooManyRequests))
			return
		}
	}

	body, err := readLimitedBody(r, maxOrderBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	var req createOrderRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return
	}

	items := make([]services.OrderItemInput, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, services.OrderItemInput{
			ProductID: strings.TrimSpace(item.ProductID),
			Name:      strings.TrimSpace(item.Name),
			Variant:   variantKeyFromRequest(item),
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}

	order, err := h.orders.Create(ctx, services.CreateOrderCommand{
		UserID:          userID,
		Items:           items,
		ShippingAddress: req.ShippingAddress.toAddress(),
		PaymentMethod:   domain.PaymentMethod(strings.ToLower(strings.TrimSpace(req.PaymentMethod))),
		CouponCode:      req.Coupon,
		PaymentIntentID: req.PaymentIntentID,
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, orderResponse{Order: buildOrderPayload(order)})
}

func (h *OrderHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return
	}

	query := r.URL.Query()

	statuses, err := parseStatusFilters(query["status"])
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	var dateRange domain.RangeQuery[time.Time]
	if raw := strings.TrimSpace(query.Get("created_after")); raw != "" {
		ts, err := parseTimeParam(raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "created_after must be a valid RFC3339 timestamp", http.StatusBadRequest))
			return
		}
		dateRange.From = &ts
	}
	if raw := strings.TrimSpace(query.Get("created_before")); raw != "" {
		ts, err := parseTimeParam(raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "created_before must be a valid RFC3339 timestamp", http.StatusBadRequest))
			return
		}
		dateRange.To = &ts
	}

	pageSize, err := parsePageSize(query.Get("page_size"), h.defaultPageSize, h.maxPageSize)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	page, err := h.orders.List(ctx, services.OrderListFilter{
		UserID:    strings.TrimSpace(identity.UID),
		Status:    statuses,
		DateRange: dateRange,
		Pagination: services.Pagination{
			PageSize:  pageSize,
			PageToken: strings.TrimSpace(query.Get("page_token")),
		},
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	items := make([]orderSummaryPayload, 0, len(page.Items))
	for _, order := range page.Items {
		items = append(items, buildOrderSummary(order))
	}

	writeJSONResponse(w, http.StatusOK, orderListResponse{
		Items:         items,
		NextPageToken: strings.TrimSpace(page.NextPageToken),
	})
}

func (h *OrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return
	}

	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if orderID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order id is required", http.StatusBadRequest))
		return
	}

	order, err := h.orders.Get(ctx, services.GetOrderCommand{
		OrderID: orderID,
		ActorID: identity.UID,
		IsAdmin: identity.IsAdmin(),
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

func (h *OrderHandlers) cancelOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return
	}

	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if orderID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order id is required", http.StatusBadRequest))
		return
	}

	reason, err := readReason(r)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	order, err := h.orders.Cancel(ctx, services.CancelOrderCommand{
		OrderID: orderID,
		ActorID: identity.UID,
		IsAdmin: identity.IsAdmin(),
		Reason:  reason,
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, orderMessageResponse{
		Message: "Order cancelled successfully",
		Order:   buildOrderPayload(order),
	})
}

func (h *OrderHandlers) requestReturn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return
	}

	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if orderID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order id is required", http.StatusBadRequest))
		return
	}

	reason, err := readReason(r)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	order, err := h.orders.RequestReturn(ctx, services.RequestReturnCommand{
		OrderID: orderID,
		ActorID: identity.UID,
		IsAdmin: identity.IsAdmin(),
		Reason:  reason,
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, orderMessageResponse{
		Message: "Return requested successfully",
		Order:   buildOrderPayload(order),
	})
}

type orderListResponse struct {
	Items         []orderSummaryPayload `json:"items"`
	NextPageToken string                `json:"next_page_token,omitempty"`
}

type orderSummaryPayload struct {
	ID          string `json:"id"`
	OrderNumber string `json:"order_number"`
	Status      string `json:"status"`
	Total       int64  `json:"total"`
	ItemCount   int    `json:"item_count"`
	CreatedAt   string `json:"created_at"`
}

type orderResponse struct {
	Order orderPayload `json:"order"`
}

type orderMessageResponse struct {
	Message string       `json:"message"`
	Order   orderPayload `json:"order"`
}

type orderPayload struct {
	ID              string              `json:"id"`
	OrderNumber     string              `json:"order_number"`
	UserID          string              `json:"user_id,omitempty"`
	Status          string              `json:"status"`
	Items           []orderItemPayload  `json:"items"`
	Totals          orderTotalsPayload  `json:"totals"`
	PaymentMethod   string              `json:"payment_method"`
	PaymentStatus   string              `json:"payment_status"`
	PaymentRef      string              `json:"payment_ref,omitempty"`
	ShippingAddress addressPayload      `json:"shipping_address"`
	Coupon          *orderCouponPayload `json:"coupon,omitempty"`
	CancelReason    *string             `json:"cancel_reason,omitempty"`
	ReturnReason    *string             `json:"return_reason,omitempty"`
	CreatedAt       string              `json:"created_at"`
	UpdatedAt       string              `json:"updated_at,omitempty"`
	DeliveredAt     string              `json:"delivered_at,omitempty"`
	CancelledAt     string              `json:"cancelled_at,omitempty"`
}

type orderTotalsPayload struct {
	Subtotal int64 `json:"subtotal"`
	Discount int64 `json:"discount"`
	Total    int64 `json:"total"`
}

type orderCouponPayload struct {
	Code           string `json:"code"`
	DiscountAmount int64  `json:"discount_amount"`
}

type orderItemPayload struct {
	ProductRef string             `json:"product_ref"`
	Name       string             `json:"name,omitempty"`
	Variant    *variantKeyPayload `json:"variant,omitempty"`
	Quantity   int                `json:"quantity"`
	UnitPrice  int64              `json:"unit_price"`
	Total      int64              `json:"total"`
}

func buildOrderSummary(order services.Order) orderSummaryPayload {
	return orderSummaryPayload{
		ID:          order.ID,
		OrderNumber: order.OrderNumber,
		Status:      string(order.Status),
		Total:       order.Totals.Total,
		ItemCount:   len(order.Items),
		CreatedAt:   formatTime(order.CreatedAt),
	}
}

func buildOrderPayload(order services.Order) orderPayload {
	payload := orderPayload{
		ID:          order.ID,
		OrderNumber: order.OrderNumber,
		UserID:      order.UserID,
		Status:      string(order.Status),
		Items:       make([]orderItemPayload, 0, len(order.Items)),
		Totals: orderTotalsPayload{
			Subtotal: order.Totals.Subtotal,
			Discount: order.Totals.Discount,
			Total:    order.Totals.Total,
		},
		PaymentMethod:   string(order.PaymentMethod),
		PaymentStatus:   string(order.PaymentStatus),
		PaymentRef:      order.PaymentRef,
		ShippingAddress: buildAddressPayload(order.ShippingAddress),
		CancelReason:    cloneStringPointer(order.CancelReason),
		ReturnReason:    cloneStringPointer(order.ReturnReason),
		CreatedAt:       formatTime(order.CreatedAt),
		UpdatedAt:       formatTime(order.UpdatedAt),
		DeliveredAt:     formatTime(pointerTime(order.DeliveredAt)),
		CancelledAt:     formatTime(pointerTime(order.CancelledAt)),
	}

	if order.Coupon != nil {
		payload.Coupon = &orderCouponPayload{
			Code:           order.Coupon.Code,
			DiscountAmount: order.Coupon.DiscountAmount,
		}
	}

	for _, item := range order.Items {
		entry := orderItemPayload{
			ProductRef: item.ProductRef,
			Name:       item.Name,
			Quantity:   item.Quantity,
			UnitPrice:  item.UnitPrice,
			Total:      item.Total,
		}
		if item.Variant != nil {
			entry.Variant = &variantKeyPayload{Color: item.Variant.Color, Size: item.Variant.Size}
		}
		payload.Items = append(payload.Items, entry)
	}

	return payload
}

func readReason(r *http.Request) (string, error) {
	body, err := readLimitedBody(r, maxOrderReasonBody)
	if err != nil {
		if errors.Is(err, errEmptyBody) {
			return "", nil
		}
		return "", err
	}
	var req reasonRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return "", errors.New("request body must be valid JSON")
	}
	return strings.TrimSpace(req.Reason), nil
}

func variantKeyFromRequest(item orderItemRequest) *domain.VariantKey {
	if item.Variant != nil {
		key := domain.VariantKey{
			Color: strings.TrimSpace(item.Variant.Color),
			Size:  strings.TrimSpace(item.Variant.Size),
		}
		if key.Color != "" || key.Size != "" {
			return &key
		}
	}
	color := strings.TrimSpace(item.Color)
	size := strings.TrimSpace(item.Size)
	if color == "" && size == "" {
		return nil
	}
	return &domain.VariantKey{Color: color, Size: size}
}

func parseStatusFilters(values []string) ([]domain.OrderStatus, error) {
	if len(values) == 0 {
		return nil, nil
	}
	seen := make(map[domain.OrderStatus]struct{})
	statuses := make([]domain.OrderStatus, 0, len(values))
	for _, raw := range values {
		for _, part := range strings.Split(raw, ",") {
			trimmed := strings.ToLower(strings.TrimSpace(part))
			if trimmed == "" {
				continue
			}
			status := domain.OrderStatus(trimmed)
			if !domain.ValidOrderStatus(status) {
				return nil, errors.New("status filter contains an unknown order status")
			}
			if _, exists := seen[status]; exists {
				continue
			}
			seen[status] = struct{}{}
			statuses = append(statuses, status)
		}
	}
	return statuses, nil
}

func clientAddress(r *http.Request) string {
	addr := strings.TrimSpace(r.RemoteAddr)
	if idx := strings.LastIndex(addr, ":"); idx > 0 {
		addr = addr[:idx]
	}
	return addr
}

func writeBodyError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errBodyTooLarge):
		httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	}
}

func writeOrderError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrOrderCouponRejected):
		httpx.WriteError(ctx, w, httpx.NewError("coupon_rejected", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderCouponConflict):
		httpx.WriteError(ctx, w, httpx.NewError("coupon_conflict", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrOrderPaymentNotCaptured):
		httpx.WriteError(ctx, w, httpx.NewError("payment_not_captured", err.Error(), http.StatusPaymentRequired))
	case errors.Is(err, services.ErrInventoryInsufficientStock):
		httpx.WriteError(ctx, w, httpx.NewError("insufficient_stock", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrInventoryProductNotFound),
		errors.Is(err, services.ErrInventoryVariantNotFound),
		errors.Is(err, services.ErrInventoryInvalidInput),
		errors.Is(err, services.ErrOrderInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderInvalidState):
		httpx.WriteError(ctx, w, httpx.NewError("order_invalid_state", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderForbidden):
		httpx.WriteError(ctx, w, httpx.NewError("forbidden", "you do not have access to this order", http.StatusForbidden))
	case errors.Is(err, services.ErrOrderNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "order not found", http.StatusNotFound))
	case errors.Is(err, services.ErrOrderConflict):
		httpx.WriteError(ctx, w, httpx.NewError("order_conflict", err.Error(), http.StatusConflict))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("order_error", "failed to process order request", http.StatusInternalServerError))
	}
}
