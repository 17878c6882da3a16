package firestore

import (
	"context"
	"encoding/base64"
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

const ordersCollection = "orders"

type orderDocument struct {
	OrderNumber     string              `firestore:"orderNumber"`
	UserID          string              `firestore:"userId,omitempty"`
	Status          string              `firestore:"status"`
	Items           []orderItemDocument `firestore:"items"`
	Subtotal        int64               `firestore:"subtotal"`
	Discount        int64               `firestore:"discount"`
	Total           int64               `firestore:"total"`
	PaymentMethod   string              `firestore:"paymentMethod"`
	PaymentStatus   string              `firestore:"paymentStatus"`
	PaymentRef      string              `firestore:"paymentRef,omitempty"`
	ShippingAddress addressDocument     `firestore:"shippingAddress"`
	CouponCode      string              `firestore:"couponCode,omitempty"`
	CouponDiscount  int64               `firestore:"couponDiscount,omitempty"`
	CancelReason    *string             `firestore:"cancelReason,omitempty"`
	ReturnReason    *string             `firestore:"returnReason,omitempty"`
	AdminNotes      *string             `firestore:"adminNotes,omitempty"`
	CreatedAt       time.Time           `firestore:"createdAt"`
	UpdatedAt       time.Time           `firestore:"updatedAt"`
	CancelledAt     *time.Time          `firestore:"cancelledAt,omitempty"`
	DeliveredAt     *time.Time          `firestore:"deliveredAt,omitempty"`
}

type orderItemDocument struct {
	ProductRef   string `firestore:"productRef"`
	Name         string `firestore:"name"`
	VariantColor string `firestore:"variantColor,omitempty"`
	VariantSize  string `firestore:"variantSize,omitempty"`
	HasVariant   bool   `firestore:"hasVariant"`
	Quantity     int    `firestore:"quantity"`
	UnitPrice    int64  `firestore:"unitPrice"`
	Total        int64  `firestore:"total"`
}

type addressDocument struct {
	Recipient  string  `firestore:"recipient"`
	Line1      string  `firestore:"line1"`
	Line2      *string `firestore:"line2,omitempty"`
	City       string  `firestore:"city"`
	State      *string `firestore:"state,omitempty"`
	PostalCode string  `firestore:"postalCode"`
	Country    string  `firestore:"country"`
	Phone      *string `firestore:"phone,omitempty"`
}

// OrderRepository implements repositories.OrderRepository backed by Firestore.
type OrderRepository struct {
	provider *pfirestore.Provider
	base     *pfirestore.BaseRepository[orderDocument]
}

// NewOrderRepository constructs a Firestore-backed order repository.
func NewOrderRepository(provider *pfirestore.Provider) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository: firestore provider is required")
	}
	base := pfirestore.NewBaseRepository[orderDocument](provider, ordersCollection, nil, nil)
	return &OrderRepository{provider: provider, base: base}, nil
}

// Insert stores a new order document. The ID must be unique.
func (r *OrderRepository) Insert(ctx context.Context, order domain.Order) error {
	if r == nil || r.base == nil {
		return errors.New("order repository not initialised")
	}
	orderID := strings.TrimSpace(order.ID)
	if orderID == "" {
		return errors.New("order repository: order id is required")
	}
	if _, err := r.base.Create(ctx, orderID, encodeOrderDocument(order)); err != nil {
		return err
	}
	return nil
}

// Delete removes the order document. Used only to unwind a failed checkout.
func (r *OrderRepository) Delete(ctx context.Context, orderID string) error {
	if r == nil || r.base == nil {
		return errors.New("order repository not initialised")
	}
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return errors.New("order repository: order id is required")
	}
	if _, err := r.base.Delete(ctx, orderID); err != nil {
		return err
	}
	return nil
}

// FindByID fetches a single order.
func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	if r == nil || r.base == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return domain.Order{}, errors.New("order repository: order id is required")
	}
	doc, err := r.base.Get(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	return decodeOrderDocument(orderID, doc.Data), nil
}

// ListByUser returns a user's orders ordered by most recent creation.
func (r *OrderRepository) ListByUser(ctx context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	if r == nil || r.base == nil {
		return domain.CursorPage[domain.Order]{}, errors.New("order repository not initialised")
	}
	userID := strings.TrimSpace(filter.UserID)
	if userID == "" {
		return domain.CursorPage[domain.Order]{}, errors.New("order repository: user id is required")
	}

	limit := filter.Pagination.PageSize
	if limit < 0 {
		limit = 0
	}
	fetchLimit := limit
	if limit > 0 {
		fetchLimit = limit + 1
	}

	var startAfter []any
	if token := strings.TrimSpace(filter.Pagination.PageToken); token != "" {
		tokenTime, tokenID, err := decodeOrderListToken(token)
		if err != nil {
			return domain.CursorPage[domain.Order]{}, fmt.Errorf("order repository: invalid page token: %w", err)
		}
		startAfter = []any{tokenTime, tokenID}
	}

	statusFilters := make([]string, 0, len(filter.Status))
	for _, st := range filter.Status {
		trimmed := strings.TrimSpace(string(st))
		if trimmed != "" {
			statusFilters = append(statusFilters, trimmed)
		}
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		q = q.Where("userId", "==", userID)

		if len(statusFilters) == 1 {
			q = q.Where("status", "==", statusFilters[0])
		} else if len(statusFilters) > 1 {
			// Firestore in clause supports up to 10 values.
			if len(statusFilters) > 10 {
				statusFilters = statusFilters[:10]
			}
			q = q.Where("status", "in", statusFilters)
		}

		if filter.DateRange.From != nil {
			q = q.Where("createdAt", ">=", filter.DateRange.From.UTC())
		}
		if filter.DateRange.To != nil {
			q = q.Where("createdAt", "<=", filter.DateRange.To.UTC())
		}

		q = q.OrderBy("createdAt", firestore.Desc).OrderBy(firestore.DocumentID, firestore.Desc)
		if len(startAfter) == 2 {
			q = q.StartAfter(startAfter...)
		}
		if fetchLimit > 0 {
			q = q.Limit(fetchLimit)
		}
		return q
	})
	if err != nil {
		return domain.CursorPage[domain.Order]{}, err
	}

	valueDocs := docs
	nextToken := ""
	if limit > 0 && len(valueDocs) == fetchLimit {
		last := valueDocs[len(valueDocs)-1]
		tokenTime := last.Data.CreatedAt
		if tokenTime.IsZero() {
			tokenTime = last.CreateTime
		}
		nextToken = encodeOrderListToken(tokenTime, last.ID)
		valueDocs = valueDocs[:len(valueDocs)-1]
	}

	items := make([]domain.Order, 0, len(valueDocs))
	for _, doc := range valueDocs {
		items = append(items, decodeOrderDocument(doc.ID, doc.Data))
	}

	return domain.CursorPage[domain.Order]{
		Items:         items,
		NextPageToken: nextToken,
	}, nil
}

// UpdateStatus transitions the order inside a transaction. The write only
// happens when the stored status still equals ExpectedStatus and the state
// machine allows the move, so two racing transitions cannot both win.
func (r *OrderRepository) UpdateStatus(ctx context.Context, req repositories.OrderStatusUpdate) (domain.Order, error) {
	if r == nil || r.provider == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	orderID := strings.TrimSpace(req.OrderID)
	if orderID == "" {
		return domain.Order{}, errors.New("order repository: order id is required")
	}
	now := req.Now
	if now.IsZero() {
		now = time.Now()
	}
	now = now.UTC()

	var updated domain.Order
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		ref, err := r.base.DocumentRef(ctx, orderID)
		if err != nil {
			return err
		}
		snapshot, err := tx.Get(ref)
		if status.Code(err) == codes.NotFound {
			return pfirestore.WrapError("orders.update_status", err)
		}
		if err != nil {
			return err
		}

		var doc orderDocument
		if err := snapshot.DataTo(&doc); err != nil {
			return fmt.Errorf("firestore orders decode %s: %w", orderID, err)
		}

		current := domain.OrderStatus(doc.Status)
		if current != req.ExpectedStatus {
			return status.Errorf(codes.FailedPrecondition, "order %s is %s, expected %s", orderID, current, req.ExpectedStatus)
		}
		if !domain.CanTransition(current, req.TargetStatus) {
			return status.Errorf(codes.FailedPrecondition, "order %s cannot move from %s to %s", orderID, current, req.TargetStatus)
		}

		doc.Status = string(req.TargetStatus)
		doc.UpdatedAt = now
		if req.CancelReason != nil {
			doc.CancelReason = cloneStringPointer(req.CancelReason)
		}
		if req.ReturnReason != nil {
			doc.ReturnReason = cloneStringPointer(req.ReturnReason)
		}
		if req.AdminNotes != nil {
			doc.AdminNotes = cloneStringPointer(req.AdminNotes)
		}
		switch req.TargetStatus {
		case domain.OrderStatusCancelled:
			ts := now
			doc.CancelledAt = &ts
		case domain.OrderStatusDelivered:
			ts := now
			doc.DeliveredAt = &ts
		}

		if err := tx.Set(ref, doc); err != nil {
			return err
		}
		updated = decodeOrderDocument(orderID, doc)
		return nil
	})
	if err != nil {
		return domain.Order{}, pfirestore.WrapError("orders.update_status", err)
	}
	return updated, nil
}

func encodeOrderDocument(order domain.Order) orderDocument {
	doc := orderDocument{
		OrderNumber:   strings.TrimSpace(order.OrderNumber),
		UserID:        strings.TrimSpace(order.UserID),
		Status:        string(order.Status),
		Subtotal:      order.Totals.Subtotal,
		Discount:      order.Totals.Discount,
		Total:         order.Totals.Total,
		PaymentMethod: string(order.PaymentMethod),
		PaymentStatus: string(order.PaymentStatus),
		PaymentRef:    strings.TrimSpace(order.PaymentRef),
		ShippingAddress: addressDocument{
			Recipient:  strings.TrimSpace(order.ShippingAddress.Recipient),
			Line1:      strings.TrimSpace(order.ShippingAddress.Line1),
			Line2:      cloneStringPointer(order.ShippingAddress.Line2),
			City:       strings.TrimSpace(order.ShippingAddress.City),
			State:      cloneStringPointer(order.ShippingAddress.State),
			PostalCode: strings.TrimSpace(order.ShippingAddress.PostalCode),
			Country:    strings.TrimSpace(order.ShippingAddress.Country),
			Phone:      cloneStringPointer(order.ShippingAddress.Phone),
		},
		CancelReason: cloneStringPointer(order.CancelReason),
		ReturnReason: cloneStringPointer(order.ReturnReason),
		AdminNotes:   cloneStringPointer(order.AdminNotes),
		CreatedAt:    order.CreatedAt.UTC(),
		UpdatedAt:    order.UpdatedAt.UTC(),
		CancelledAt:  normalizeTimePointer(order.CancelledAt),
		DeliveredAt:  normalizeTimePointer(order.DeliveredAt),
	}
	if order.Coupon != nil {
		doc.CouponCode = strings.TrimSpace(order.Coupon.Code)
		doc.CouponDiscount = order.Coupon.DiscountAmount
	}
	doc.Items = make([]orderItemDocument, 0, len(order.Items))
	for _, item := range order.Items {
		encoded := orderItemDocument{
			ProductRef: strings.TrimSpace(item.ProductRef),
			Name:       strings.TrimSpace(item.Name),
			Quantity:   item.Quantity,
			UnitPrice:  item.UnitPrice,
			Total:      item.Total,
		}
		if item.Variant != nil {
			encoded.HasVariant = true
			encoded.VariantColor = item.Variant.Color
			encoded.VariantSize = item.Variant.Size
		}
		doc.Items = append(doc.Items, encoded)
	}
	return doc
}

func decodeOrderDocument(id string, doc orderDocument) domain.Order {
	order := domain.Order{
		ID:            strings.TrimSpace(id),
		OrderNumber:   strings.TrimSpace(doc.OrderNumber),
		UserID:        strings.TrimSpace(doc.UserID),
		Status:        domain.OrderStatus(strings.TrimSpace(doc.Status)),
		Totals:        domain.OrderTotals{Subtotal: doc.Subtotal, Discount: doc.Discount, Total: doc.Total},
		PaymentMethod: domain.PaymentMethod(strings.TrimSpace(doc.PaymentMethod)),
		PaymentStatus: domain.PaymentStatus(strings.TrimSpace(doc.PaymentStatus)),
		PaymentRef:    strings.TrimSpace(doc.PaymentRef),
		ShippingAddress: domain.Address{
			Recipient:  strings.TrimSpace(doc.ShippingAddress.Recipient),
			Line1:      strings.TrimSpace(doc.ShippingAddress.Line1),
			Line2:      cloneStringPointer(doc.ShippingAddress.Line2),
			City:       strings.TrimSpace(doc.ShippingAddress.City),
			State:      cloneStringPointer(doc.ShippingAddress.State),
			PostalCode: strings.TrimSpace(doc.ShippingAddress.PostalCode),
			Country:    strings.TrimSpace(doc.ShippingAddress.Country),
			Phone:      cloneStringPointer(doc.ShippingAddress.Phone),
		},
		CancelReason: cloneStringPointer(doc.CancelReason),
		ReturnReason: cloneStringPointer(doc.ReturnReason),
		AdminNotes:   cloneStringPointer(doc.AdminNotes),
		CreatedAt:    doc.CreatedAt.UTC(),
		UpdatedAt:    doc.UpdatedAt.UTC(),
		CancelledAt:  normalizeTimePointer(doc.CancelledAt),
		DeliveredAt:  normalizeTimePointer(doc.DeliveredAt),
	}
	if doc.CouponCode != "" {
		order.Coupon = &domain.OrderCoupon{
			Code:           strings.TrimSpace(doc.CouponCode),
			DiscountAmount: doc.CouponDiscount,
		}
	}
	order.Items = make([]domain.OrderLineItem, 0, len(doc.Items))
	for _, item := range doc.Items {
		decoded := domain.OrderLineItem{
			ProductRef: strings.TrimSpace(item.ProductRef),
			Name:       strings.TrimSpace(item.Name),
			Quantity:   item.Quantity,
			UnitPrice:  item.UnitPrice,
			Total:      item.Total,
		}
		if item.HasVariant {
			decoded.Variant = &domain.VariantKey{Color: item.VariantColor, Size: item.VariantSize}
		}
		order.Items = append(order.Items, decoded)
	}
	return order
}

func encodeOrderListToken(createdAt time.Time, docID string) string {
	payload := fmt.Sprintf("%s|%s", createdAt.UTC().Format(time.RFC3339Nano), docID)
	return base64.RawURLEncoding.EncodeToString([]byte(payload))
}

func decodeOrderListToken(token string) (time.Time, string, error) {
	data, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return time.Time{}, "", err
	}
	parts := strings.SplitN(string(data), "|", 2)
	if len(parts) != 2 {
		return time.Time{}, "", errors.New("invalid token structure")
	}
	ts, err := time.Parse(time.RFC3339Nano, parts[0])
	if err != nil {
		return time.Time{}, "", err
	}
	return ts, parts[1], nil
}

func cloneStringPointer(value *string) *string {
	if value == nil {
		return nil
	}
	copied := *value
	return &copied
}

func normalizeTimePointer(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	if value.IsZero() {
		return nil
	}
	ts := value.UTC()
	return &ts
}
