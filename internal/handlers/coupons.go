package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/meridianmart/api/internal/domain"
	"github.com/meridianmart/api/internal/platform/auth"
	"github.com/meridianmart/api/internal/platform/httpx"
	"github.com/meridianmart/api/internal/services"
)

const (
	maxCouponBodySize     = 8 * 1024
	defaultCouponPageSize = 20
	maxCouponPageSize     = 100
)

// CouponHandlers exposes coupon validation for shoppers and CRUD for admins.
type CouponHandlers struct {
	authn   *auth.Authenticator
	coupons services.CouponService
}

// NewCouponHandlers constructs a new CouponHandlers instance.
func NewCouponHandlers(authn *auth.Authenticator, coupons services.CouponService) *CouponHandlers {
	return &CouponHandlers{
		authn:   authn,
		coupons: coupons,
	}
}

// Routes registers the /coupons endpoints.
func (h *CouponHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}

	optional := chi.Router(r)
	admin := chi.Router(r)
	if h.authn != nil {
		optional = r.With(h.authn.OptionalFirebaseAuth())
		admin = r.With(h.authn.RequireFirebaseAuth(auth.RoleAdmin))
	}

	optional.Post("/validate", h.validateCoupon)
	optional.Get("/", h.listCoupons)
	admin.Post("/", h.createCoupon)
	admin.Put("/{code}", h.updateCoupon)
	admin.Delete("/{code}", h.deleteCoupon)
}

type validateCouponRequest struct {
	Code      string `json:"code"`
	CartTotal int64  `json:"cart_total"`
}

type validateCouponResponse struct {
	Success        bool   `json:"success"`
	Code           string `json:"code"`
	DiscountType   string `json:"discount_type"`
	Value          int64  `json:"value"`
	DiscountAmount int64  `json:"discount_amount"`
	FinalTotal     int64  `json:"final_total"`
}

type couponPayload struct {
	Code              string `json:"code"`
	Type              string `json:"type"`
	Value             int64  `json:"value"`
	MinOrderAmount    int64  `json:"min_order_amount"`
	MaxDiscountAmount *int64 `json:"max_discount_amount,omitempty"`
	IsActive          bool   `json:"is_active"`
	ExpiresAt         string `json:"expires_at,omitempty"`
	UsageLimit        *int   `json:"usage_limit,omitempty"`
	UsedCount         int    `json:"used_count"`
	CreatedAt         string `json:"created_at,omitempty"`
	UpdatedAt         string `json:"updated_at,omitempty"`
}

type upsertCouponRequest struct {
	Code              string `json:"code"`
	Type              string `json:"type"`
	Value             int64  `json:"value"`
	MinOrderAmount    int64  `json:"min_order_amount"`
	MaxDiscountAmount *int64 `json:"max_discount_amount"`
	IsActive          *bool  `json:"is_active"`
	ExpiresAt         string `json:"expires_at"`
	UsageLimit        *int   `json:"usage_limit"`
}

func (h *CouponHandlers) validateCoupon(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.coupons == nil {
		httpx.WriteError(ctx, w, httpx.NewError("coupon_service_unavailable", "coupon service unavailable", http.StatusServiceUnavailable))
		return
	}

	body, err := readLimitedBody(r, maxCouponBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	var req validateCouponRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return
	}
	if strings.TrimSpace(req.Code) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "coupon code is required", http.StatusBadRequest))
		return
	}
	if req.CartTotal < 0 {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "cart_total cannot be negative", http.StatusBadRequest))
		return
	}

	userID := ""
	if identity, ok := auth.IdentityFromContext(ctx); ok {
		userID = strings.TrimSpace(identity.UID)
	}

	verdict, err := h.coupons.Validate(ctx, services.ValidateCouponCommand{
		Code:      req.Code,
		UserID:    userID,
		CartTotal: req.CartTotal,
	})
	if err != nil {
		writeCouponError(ctx, w, err)
		return
	}

	if !verdict.Eligible {
		status := http.StatusBadRequest
		if verdict.Rejection == domain.CouponRejectionNotFound {
			status = http.StatusNotFound
		}
		httpx.WriteError(ctx, w, httpx.NewError("coupon_"+string(verdict.Rejection), verdict.Rejection.Message(), status))
		return
	}

	writeJSONResponse(w, http.StatusOK, validateCouponResponse{
		Success:        true,
		Code:           verdict.Coupon.Code,
		DiscountType:   string(verdict.Coupon.Type),
		Value:          verdict.Coupon.Value,
		DiscountAmount: verdict.Discount,
		FinalTotal:     verdict.FinalTotal,
	})
}

func (h *CouponHandlers) listCoupons(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.coupons == nil {
		httpx.WriteError(ctx, w, httpx.NewError("coupon_service_unavailable", "coupon service unavailable", http.StatusServiceUnavailable))
		return
	}

	query := r.URL.Query()
	pageSize, err := parsePageSize(query.Get("page_size"), defaultCouponPageSize, maxCouponPageSize)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}
	pager := services.Pagination{
		PageSize:  pageSize,
		PageToken: strings.TrimSpace(query.Get("page_token")),
	}

	identity, _ := auth.IdentityFromContext(ctx)

	if strings.EqualFold(strings.TrimSpace(query.Get("available")), "true") {
		userID := ""
		if identity != nil {
			userID = strings.TrimSpace(identity.UID)
		}
		page, err := h.coupons.ListAvailable(ctx, userID, pager)
		if err != nil {
			writeCouponError(ctx, w, err)
			return
		}
		writeCouponList(w, page)
		return
	}

	// The unfiltered listing exposes inactive and exhausted codes; admins only.
	if identity == nil || !identity.IsAdmin() {
		httpx.WriteError(ctx, w, httpx.NewError("forbidden", "admin role required to list all coupons", http.StatusForbidden))
		return
	}

	page, err := h.coupons.List(ctx, services.CouponAdminFilter{
		ActiveOnly: strings.EqualFold(strings.TrimSpace(query.Get("active")), "true"),
		Pagination: pager,
	})
	if err != nil {
		writeCouponError(ctx, w, err)
		return
	}
	writeCouponList(w, page)
}

func (h *CouponHandlers) createCoupon(w http.ResponseWriter, r *http.Request) {
	h.upsertCoupon(w, r, false)
}

func (h *CouponHandlers) updateCoupon(w http.ResponseWriter, r *http.Request) {
	h.upsertCoupon(w, r, true)
}

func (h *CouponHandlers) upsertCoupon(w http.ResponseWriter, r *http.Request, update bool) {
	ctx := r.Context()
	if h.coupons == nil {
		httpx.WriteError(ctx, w, httpx.NewError("coupon_service_unavailable", "coupon service unavailable", http.StatusServiceUnavailable))
		return
	}

	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return
	}

	body, err := readLimitedBody(r, maxCouponBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	var req upsertCouponRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return
	}

	coupon, err := couponFromRequest(req)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	if update {
		code := strings.TrimSpace(chi.URLParam(r, "code"))
		if code == "" {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "coupon code is required", http.StatusBadRequest))
			return
		}
		coupon.Code = code
	}

	cmd := services.UpsertCouponCommand{Coupon: coupon, ActorID: identity.UID}

	var (
		saved  services.Coupon
		status int
	)
	if update {
		saved, err = h.coupons.Update(ctx, cmd)
		status = http.StatusOK
	} else {
		saved, err = h.coupons.Create(ctx, cmd)
		status = http.StatusCreated
	}
	if err != nil {
		writeCouponError(ctx, w, err)
		return
	}

	writeJSONResponse(w, status, map[string]any{"coupon": buildCouponPayload(saved)})
}

func (h *CouponHandlers) deleteCoupon(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.coupons == nil {
		httpx.WriteError(ctx, w, httpx.NewError("coupon_service_unavailable", "coupon service unavailable", http.StatusServiceUnavailable))
		return
	}

	code := strings.TrimSpace(chi.URLParam(r, "code"))
	if code == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "coupon code is required", http.StatusBadRequest))
		return
	}

	if err := h.coupons.Delete(ctx, code); err != nil {
		writeCouponError(ctx, w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func writeCouponList(w http.ResponseWriter, page domain.CursorPage[services.Coupon]) {
	items := make([]couponPayload, 0, len(page.Items))
	for _, coupon := range page.Items {
		items = append(items, buildCouponPayload(coupon))
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{
		"items":           items,
		"next_page_token": strings.TrimSpace(page.NextPageToken),
	})
}

func buildCouponPayload(coupon services.Coupon) couponPayload {
	payload := couponPayload{
		Code:              coupon.Code,
		Type:              string(coupon.Type),
		Value:             coupon.Value,
		MinOrderAmount:    coupon.MinOrderAmount,
		MaxDiscountAmount: coupon.MaxDiscountAmount,
		IsActive:          coupon.IsActive,
		UsageLimit:        coupon.UsageLimit,
		UsedCount:         coupon.UsedCount,
		CreatedAt:         formatTime(coupon.CreatedAt),
		UpdatedAt:         formatTime(coupon.UpdatedAt),
	}
	if coupon.ExpiresAt != nil {
		payload.ExpiresAt = formatTime(*coupon.ExpiresAt)
	}
	return payload
}

func couponFromRequest(req upsertCouponRequest) (services.Coupon, error) {
	coupon := services.Coupon{
		Code:              req.Code,
		Type:              domain.DiscountType(strings.ToLower(strings.TrimSpace(req.Type))),
		Value:             req.Value,
		MinOrderAmount:    req.MinOrderAmount,
		MaxDiscountAmount: req.MaxDiscountAmount,
		IsActive:          true,
		UsageLimit:        req.UsageLimit,
	}
	if req.IsActive != nil {
		coupon.IsActive = *req.IsActive
	}
	if raw := strings.TrimSpace(req.ExpiresAt); raw != "" {
		ts, err := parseTimeParam(raw)
		if err != nil {
			return services.Coupon{}, errors.New("expires_at must be a valid RFC3339 timestamp")
		}
		coupon.ExpiresAt = &ts
	}
	return coupon, nil
}

func writeCouponError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrCouponInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrCouponNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("coupon_not_found", "coupon not found", http.StatusNotFound))
	case errors.Is(err, services.ErrCouponConflict):
		httpx.WriteError(ctx, w, httpx.NewError("coupon_conflict", err.Error(), http.StatusConflict))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("coupon_error", "failed to process coupon request", http.StatusInternalServerError))
	}
}
