package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/meridianmart/api/internal/domain"
	pfirestore "github.com/meridianmart/api/internal/platform/firestore"
	"github.com/meridianmart/api/internal/repositories"
)

const (
	couponsCollection      = "coupons"
	couponUsagesCollection = "couponUsages"
)

type couponDocument struct {
	Code              string     `firestore:"code"`
	Type              string     `firestore:"type"`
	Value             int64      `firestore:"value"`
	MinOrderAmount    int64      `firestore:"minOrderAmount"`
	MaxDiscountAmount *int64     `firestore:"maxDiscountAmount,omitempty"`
	IsActive          bool       `firestore:"isActive"`
	ExpiresAt         *time.Time `firestore:"expiresAt,omitempty"`
	UsageLimit        *int       `firestore:"usageLimit,omitempty"`
	UsedCount         int        `firestore:"usedCount"`
	CreatedAt         time.Time  `firestore:"createdAt"`
	UpdatedAt         time.Time  `firestore:"updatedAt"`
}

type couponUsageDocument struct {
	UserID   string    `firestore:"userId"`
	Code     string    `firestore:"code"`
	OrderRef string    `firestore:"orderRef"`
	UsedAt   time.Time `firestore:"usedAt"`
}

// CouponRepository implements repositories.CouponRepository backed by
// Firestore. Coupon documents are keyed by the normalized code; usage
// documents are keyed by "<userID>_<CODE>" so a second application of the
// same code by the same customer collides at create time.
type CouponRepository struct {
	provider *pfirestore.Provider
	coupons  *pfirestore.BaseRepository[couponDocument]
	usages   *pfirestore.BaseRepository[couponUsageDocument]
}

// NewCouponRepository constructs a Firestore-backed coupon repository.
func NewCouponRepository(provider *pfirestore.Provider) (*CouponRepository, error) {
	if provider == nil {
		return nil, errors.New("coupon repository: firestore provider is required")
	}
	return &CouponRepository{
		provider: provider,
		coupons:  pfirestore.NewBaseRepository[couponDocument](provider, couponsCollection, nil, nil),
		usages:   pfirestore.NewBaseRepository[couponUsageDocument](provider, couponUsagesCollection, nil, nil),
	}, nil
}

// Insert stores a new coupon definition keyed by its normalized code.
func (r *CouponRepository) Insert(ctx context.Context, coupon domain.Coupon) error {
	if r == nil || r.coupons == nil {
		return errors.New("coupon repository not initialised")
	}
	code := domain.NormalizeCouponCode(coupon.Code)
	if code == "" {
		return errors.New("coupon repository: coupon code is required")
	}
	coupon.Code = code
	if _, err := r.coupons.Create(ctx, code, encodeCouponDocument(coupon)); err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsConflict() {
			return repositories.NewCouponError(repositories.CouponErrorAlreadyExists, fmt.Sprintf("coupon %s already exists", code), err)
		}
		return err
	}
	return nil
}

// Update replaces the stored coupon definition.
func (r *CouponRepository) Update(ctx context.Context, coupon domain.Coupon) error {
	if r == nil || r.coupons == nil {
		return errors.New("coupon repository not initialised")
	}
	code := domain.NormalizeCouponCode(coupon.Code)
	if code == "" {
		return errors.New("coupon repository: coupon code is required")
	}
	coupon.Code = code
	if _, err := r.coupons.Set(ctx, code, encodeCouponDocument(coupon)); err != nil {
		return err
	}
	return nil
}

// Delete removes the coupon definition. Usage records are retained.
func (r *CouponRepository) Delete(ctx context.Context, code string) error {
	if r == nil || r.coupons == nil {
		return errors.New("coupon repository not initialised")
	}
	code = domain.NormalizeCouponCode(code)
	if code == "" {
		return errors.New("coupon repository: coupon code is required")
	}
	if _, err := r.coupons.Delete(ctx, code); err != nil {
		return err
	}
	return nil
}

// FindByCode fetches a coupon by normalized code.
func (r *CouponRepository) FindByCode(ctx context.Context, code string) (domain.Coupon, error) {
	if r == nil || r.coupons == nil {
		return domain.Coupon{}, errors.New("coupon repository not initialised")
	}
	code = domain.NormalizeCouponCode(code)
	if code == "" {
		return domain.Coupon{}, errors.New("coupon repository: coupon code is required")
	}
	doc, err := r.coupons.Get(ctx, code)
	if err != nil {
		return domain.Coupon{}, err
	}
	return decodeCouponDocument(code, doc.Data), nil
}

// List returns coupon definitions ordered by code.
func (r *CouponRepository) List(ctx context.Context, filter repositories.CouponListFilter) (domain.CursorPage[domain.Coupon], error) {
	if r == nil || r.coupons == nil {
		return domain.CursorPage[domain.Coupon]{}, errors.New("coupon repository not initialised")
	}

	limit := filter.Pagination.PageSize
	if limit < 0 {
		limit = 0
	}
	fetchLimit := limit
	if limit > 0 {
		fetchLimit = limit + 1
	}

	startAfter := strings.TrimSpace(filter.Pagination.PageToken)

	docs, err := r.coupons.Query(ctx, func(q firestore.Query) firestore.Query {
		if filter.ActiveOnly {
			q = q.Where("isActive", "==", true)
		}
		q = q.OrderBy(firestore.DocumentID, firestore.Asc)
		if startAfter != "" {
			q = q.StartAfter(startAfter)
		}
		if fetchLimit > 0 {
			q = q.Limit(fetchLimit)
		}
		return q
	})
	if err != nil {
		return domain.CursorPage[domain.Coupon]{}, err
	}

	valueDocs := docs
	nextToken := ""
	if limit > 0 && len(valueDocs) == fetchLimit {
		nextToken = valueDocs[len(valueDocs)-1].ID
		valueDocs = valueDocs[:len(valueDocs)-1]
	}

	items := make([]domain.Coupon, 0, len(valueDocs))
	for _, doc := range valueDocs {
		items = append(items, decodeCouponDocument(doc.ID, doc.Data))
	}

	return domain.CursorPage[domain.Coupon]{
		Items:         items,
		NextPageToken: nextToken,
	}, nil
}

// HasUsage reports whether the customer has already consumed the code.
func (r *CouponRepository) HasUsage(ctx context.Context, userID string, code string) (bool, error) {
	if r == nil || r.usages == nil {
		return false, errors.New("coupon repository not initialised")
	}
	userID = strings.TrimSpace(userID)
	code = domain.NormalizeCouponCode(code)
	if userID == "" || code == "" {
		return false, nil
	}
	_, err := r.usages.Get(ctx, couponUsageDocID(userID, code))
	if err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsNotFound() {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Apply consumes one usage of the code inside a single transaction: the
// coupon is re-validated against the committed state, the usage counter is
// incremented, and for registered customers the usage record is created. Any
// failure leaves the coupon untouched.
func (r *CouponRepository) Apply(ctx context.Context, req repositories.CouponApplyRequest) (domain.Coupon, error) {
	if r == nil || r.provider == nil {
		return domain.Coupon{}, errors.New("coupon repository not initialised")
	}
	code := domain.NormalizeCouponCode(req.Code)
	if code == "" {
		return domain.Coupon{}, errors.New("coupon repository: coupon code is required")
	}
	userID := strings.TrimSpace(req.UserID)
	now := req.Now
	if now.IsZero() {
		now = time.Now()
	}
	now = now.UTC()

	var applied domain.Coupon
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		couponRef, err := r.coupons.DocumentRef(ctx, code)
		if err != nil {
			return err
		}
		snapshot, err := tx.Get(couponRef)
		if status.Code(err) == codes.NotFound {
			return repositories.NewCouponRejection(domain.CouponRejectionNotFound, fmt.Sprintf("coupon %s not found", code))
		}
		if err != nil {
			return err
		}
		var doc couponDocument
		if err := snapshot.DataTo(&doc); err != nil {
			return fmt.Errorf("firestore coupons decode %s: %w", code, err)
		}
		coupon := decodeCouponDocument(code, doc)

		used := false
		var usageRef *firestore.DocumentRef
		if userID != "" {
			usageRef, err = r.usages.DocumentRef(ctx, couponUsageDocID(userID, code))
			if err != nil {
				return err
			}
			if _, err := tx.Get(usageRef); err == nil {
				used = true
			} else if status.Code(err) != codes.NotFound {
				return err
			}
		}

		if rejection := coupon.CheckEligibility(now, req.CartTotal, used); rejection != domain.CouponRejectionNone {
			return repositories.NewCouponRejection(rejection, fmt.Sprintf("coupon %s rejected: %s", code, rejection))
		}

		doc.UsedCount++
		doc.UpdatedAt = now
		if err := tx.Set(couponRef, doc); err != nil {
			return err
		}

		if usageRef != nil {
			usage := couponUsageDocument{
				UserID:   userID,
				Code:     code,
				OrderRef: strings.TrimSpace(req.OrderRef),
				UsedAt:   now,
			}
			if err := tx.Create(usageRef, usage); err != nil {
				if status.Code(err) == codes.AlreadyExists {
					return repositories.NewCouponRejection(domain.CouponRejectionAlreadyUsed, fmt.Sprintf("coupon %s already used by %s", code, userID))
				}
				return err
			}
		}

		applied = decodeCouponDocument(code, doc)
		return nil
	})
	if err != nil {
		var couponErr *repositories.CouponError
		if errors.As(err, &couponErr) {
			return domain.Coupon{}, couponErr
		}
		return domain.Coupon{}, pfirestore.WrapError("coupons.apply", err)
	}
	return applied, nil
}

func couponUsageDocID(userID, code string) string {
	return fmt.Sprintf("%s_%s", userID, code)
}

func encodeCouponDocument(coupon domain.Coupon) couponDocument {
	return couponDocument{
		Code:              coupon.Code,
		Type:              string(coupon.Type),
		Value:             coupon.Value,
		MinOrderAmount:    coupon.MinOrderAmount,
		MaxDiscountAmount: cloneInt64Pointer(coupon.MaxDiscountAmount),
		IsActive:          coupon.IsActive,
		ExpiresAt:         normalizeTimePointer(coupon.ExpiresAt),
		UsageLimit:        cloneIntPointer(coupon.UsageLimit),
		UsedCount:         coupon.UsedCount,
		CreatedAt:         coupon.CreatedAt.UTC(),
		UpdatedAt:         coupon.UpdatedAt.UTC(),
	}
}

func decodeCouponDocument(code string, doc couponDocument) domain.Coupon {
	return domain.Coupon{
		Code:              domain.NormalizeCouponCode(code),
		Type:              domain.DiscountType(strings.TrimSpace(doc.Type)),
		Value:             doc.Value,
		MinOrderAmount:    doc.MinOrderAmount,
		MaxDiscountAmount: cloneInt64Pointer(doc.MaxDiscountAmount),
		IsActive:          doc.IsActive,
		ExpiresAt:         normalizeTimePointer(doc.ExpiresAt),
		UsageLimit:        cloneIntPointer(doc.UsageLimit),
		UsedCount:         doc.UsedCount,
		CreatedAt:         doc.CreatedAt.UTC(),
		UpdatedAt:         doc.UpdatedAt.UTC(),
	}
}

func cloneInt64Pointer(value *int64) *int64 {
	if value == nil {
		return nil
	}
	copied := *value
	return &copied
}

func cloneIntPointer(value *int) *int {
	if value == nil {
		return nil
	}
	copied := *value
	return &copied
}
