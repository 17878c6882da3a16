package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/meridianmart/api/internal/domain"
	"github.com/meridianmart/api/internal/repositories"
)

var (
	// ErrCouponInvalidInput signals the caller provided invalid data.
	ErrCouponInvalidInput = errors.New("coupon: invalid input")
	// ErrCouponNotFound indicates the coupon could not be located.
	ErrCouponNotFound = errors.New("coupon: not found")
	// ErrCouponConflict indicates a duplicate code or concurrent modification.
	ErrCouponConflict = errors.New("coupon: conflict")
)

// CouponServiceDeps bundles collaborators required to construct the coupon service.
type CouponServiceDeps struct {
	Coupons repositories.CouponRepository
	Clock   func() time.Time
	Logger  func(ctx context.Context, event string, fields map[string]any)
}

type couponService struct {
	coupons repositories.CouponRepository
	clock   func() time.Time
	logger  func(context.Context, string, map[string]any)
}

// NewCouponService wires dependencies into a concrete CouponService implementation.
func NewCouponService(deps CouponServiceDeps) (CouponService, error) {
	if deps.Coupons == nil {
		return nil, errors.New("coupon service: coupon repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &couponService{
		coupons: deps.Coupons,
		clock: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

// Validate runs the ordered eligibility checks and computes the clamped
// discount. An ineligible coupon is reported through the Rejection field, not
// as an error; errors are reserved for malformed input and storage failures.
func (s *couponService) Validate(ctx context.Context, cmd ValidateCouponCommand) (CouponValidation, error) {
	code := domain.NormalizeCouponCode(cmd.Code)
	if code == "" {
		return CouponValidation{}, fmt.Errorf("%w: code is required", ErrCouponInvalidInput)
	}
	if cmd.CartTotal < 0 {
		return CouponValidation{}, fmt.Errorf("%w: cart total cannot be negative", ErrCouponInvalidInput)
	}

	coupon, err := s.coupons.FindByCode(ctx, code)
	if err != nil {
		if isRepoNotFound(err) {
			return CouponValidation{Rejection: domain.CouponRejectionNotFound}, nil
		}
		return CouponValidation{}, mapCouponError(err)
	}

	used := false
	if userID := strings.TrimSpace(cmd.UserID); userID != "" {
		used, err = s.coupons.HasUsage(ctx, userID, code)
		if err != nil {
			return CouponValidation{}, mapCouponError(err)
		}
	}

	if rejection := coupon.CheckEligibility(s.clock(), cmd.CartTotal, used); rejection != domain.CouponRejectionNone {
		return CouponValidation{Coupon: coupon, Rejection: rejection}, nil
	}

	discount := coupon.Discount(cmd.CartTotal)
	return CouponValidation{
		Coupon:     coupon,
		Eligible:   true,
		Discount:   discount,
		FinalTotal: cmd.CartTotal - discount,
	}, nil
}

// ListAvailable returns active, unexpired, under-limit coupons the caller has
// not yet consumed.
func (s *couponService) ListAvailable(ctx context.Context, userID string, pager Pagination) (domain.CursorPage[Coupon], error) {
	page, err := s.coupons.List(ctx, repositories.CouponListFilter{
		ActiveOnly: true,
		Pagination: pager,
	})
	if err != nil {
		return domain.CursorPage[Coupon]{}, mapCouponError(err)
	}

	now := s.clock()
	userID = strings.TrimSpace(userID)

	available := make([]Coupon, 0, len(page.Items))
	for _, coupon := range page.Items {
		used := false
		if userID != "" {
			used, err = s.coupons.HasUsage(ctx, userID, coupon.Code)
			if err != nil {
				return domain.CursorPage[Coupon]{}, mapCouponError(err)
			}
		}
		if coupon.CheckEligibility(now, coupon.MinOrderAmount, used) != domain.CouponRejectionNone {
			continue
		}
		available = append(available, coupon)
	}

	return domain.CursorPage[Coupon]{
		Items:         available,
		NextPageToken: page.NextPageToken,
	}, nil
}

func (s *couponService) Create(ctx context.Context, cmd UpsertCouponCommand) (Coupon, error) {
	coupon, err := normalizeCoupon(cmd.Coupon)
	if err != nil {
		return Coupon{}, err
	}

	now := s.clock()
	coupon.UsedCount = 0
	coupon.CreatedAt = now
	coupon.UpdatedAt = now

	if err := s.coupons.Insert(ctx, coupon); err != nil {
		return Coupon{}, mapCouponError(err)
	}

	s.logger(ctx, "coupon.created", map[string]any{
		"code":  coupon.Code,
		"actor": strings.TrimSpace(cmd.ActorID),
	})

	return coupon, nil
}

func (s *couponService) Update(ctx context.Context, cmd UpsertCouponCommand) (Coupon, error) {
	coupon, err := normalizeCoupon(cmd.Coupon)
	if err != nil {
		return Coupon{}, err
	}

	existing, err := s.coupons.FindByCode(ctx, coupon.Code)
	if err != nil {
		return Coupon{}, mapCouponError(err)
	}

	// UsedCount mutates only through Apply.
	coupon.UsedCount = existing.UsedCount
	coupon.CreatedAt = existing.CreatedAt
	coupon.UpdatedAt = s.clock()

	if err := s.coupons.Update(ctx, coupon); err != nil {
		return Coupon{}, mapCouponError(err)
	}

	s.logger(ctx, "coupon.updated", map[string]any{
		"code":  coupon.Code,
		"actor": strings.TrimSpace(cmd.ActorID),
	})

	return coupon, nil
}

func (s *couponService) Delete(ctx context.Context, code string) error {
	code = domain.NormalizeCouponCode(code)
	if code == "" {
		return fmt.Errorf("%w: code is required", ErrCouponInvalidInput)
	}
	if _, err := s.coupons.FindByCode(ctx, code); err != nil {
		return mapCouponError(err)
	}
	if err := s.coupons.Delete(ctx, code); err != nil {
		return mapCouponError(err)
	}
	s.logger(ctx, "coupon.deleted", map[string]any{"code": code})
	return nil
}

func (s *couponService) List(ctx context.Context, filter CouponAdminFilter) (domain.CursorPage[Coupon], error) {
	page, err := s.coupons.List(ctx, repositories.CouponListFilter{
		ActiveOnly: filter.ActiveOnly,
		Pagination: filter.Pagination,
	})
	if err != nil {
		return domain.CursorPage[Coupon]{}, mapCouponError(err)
	}
	return page, nil
}

func normalizeCoupon(coupon Coupon) (Coupon, error) {
	coupon.Code = domain.NormalizeCouponCode(coupon.Code)
	if coupon.Code == "" {
		return Coupon{}, fmt.Errorf("%w: code is required", ErrCouponInvalidInput)
	}

	switch coupon.Type {
	case domain.DiscountTypePercentage:
		if coupon.Value <= 0 || coupon.Value > 100 {
			return Coupon{}, fmt.Errorf("%w: percentage value must be within (0, 100]", ErrCouponInvalidInput)
		}
	case domain.DiscountTypeFixed:
		if coupon.Value <= 0 {
			return Coupon{}, fmt.Errorf("%w: fixed value must be positive", ErrCouponInvalidInput)
		}
	default:
		return Coupon{}, fmt.Errorf("%w: unknown discount type %q", ErrCouponInvalidInput, coupon.Type)
	}

	if coupon.MinOrderAmount < 0 {
		return Coupon{}, fmt.Errorf("%w: minimum order amount cannot be negative", ErrCouponInvalidInput)
	}
	if coupon.MaxDiscountAmount != nil && *coupon.MaxDiscountAmount <= 0 {
		return Coupon{}, fmt.Errorf("%w: max discount amount must be positive", ErrCouponInvalidInput)
	}
	if coupon.UsageLimit != nil && *coupon.UsageLimit <= 0 {
		return Coupon{}, fmt.Errorf("%w: usage limit must be positive", ErrCouponInvalidInput)
	}

	return coupon, nil
}

func mapCouponError(err error) error {
	if err == nil {
		return nil
	}

	var couponErr *repositories.CouponError
	if errors.As(err, &couponErr) {
		switch couponErr.Code {
		case repositories.CouponErrorAlreadyExists:
			return fmt.Errorf("%w: %v", ErrCouponConflict, err)
		}
	}

	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrCouponNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrCouponConflict, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("coupon: repository unavailable: %w", err)
		}
	}

	return err
}

func isRepoNotFound(err error) bool {
	var repoErr repositories.RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsNotFound()
}
