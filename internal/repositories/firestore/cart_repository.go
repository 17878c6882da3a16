package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	domain "github.com/meridianmart/api/internal/domain"
	pfirestore "github.com/meridianmart/api/internal/platform/firestore"
	"github.com/meridianmart/api/internal/repositories"
)

const cartsCollection = "carts"

type cartDocument struct {
	UserID    string             `firestore:"userId"`
	Items     []cartItemDocument `firestore:"items"`
	UpdatedAt time.Time          `firestore:"updatedAt"`
}

type cartItemDocument struct {
	ProductID    string `firestore:"productId"`
	VariantColor string `firestore:"variantColor,omitempty"`
	VariantSize  string `firestore:"variantSize,omitempty"`
	HasVariant   bool   `firestore:"hasVariant"`
	Quantity     int    `firestore:"quantity"`
}

// CartRepository implements repositories.CartRepository backed by Firestore.
// Carts are keyed by user id, one document per customer.
type CartRepository struct {
	base *pfirestore.BaseRepository[cartDocument]
}

// NewCartRepository constructs a Firestore-backed cart repository.
func NewCartRepository(provider *pfirestore.Provider) (*CartRepository, error) {
	if provider == nil {
		return nil, errors.New("cart repository: firestore provider is required")
	}
	base := pfirestore.NewBaseRepository[cartDocument](provider, cartsCollection, nil, nil)
	return &CartRepository{base: base}, nil
}

// Get fetches the stored cart. A missing document decodes to an empty cart.
func (r *CartRepository) Get(ctx context.Context, userID string) (domain.Cart, error) {
	if r == nil || r.base == nil {
		return domain.Cart{}, errors.New("cart repository not initialised")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return domain.Cart{}, errors.New("cart repository: user id is required")
	}
	doc, err := r.base.Get(ctx, userID)
	if err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsNotFound() {
			return domain.Cart{ID: userID, UserID: userID}, nil
		}
		return domain.Cart{}, err
	}
	return decodeCartDocument(userID, doc.Data), nil
}

// Put replaces the stored cart state.
func (r *CartRepository) Put(ctx context.Context, cart domain.Cart) (domain.Cart, error) {
	if r == nil || r.base == nil {
		return domain.Cart{}, errors.New("cart repository not initialised")
	}
	userID := strings.TrimSpace(cart.UserID)
	if userID == "" {
		return domain.Cart{}, errors.New("cart repository: user id is required")
	}
	doc := encodeCartDocument(cart)
	if _, err := r.base.Set(ctx, userID, doc); err != nil {
		return domain.Cart{}, err
	}
	return decodeCartDocument(userID, doc), nil
}

// Clear removes the stored cart after a successful checkout.
func (r *CartRepository) Clear(ctx context.Context, userID string) error {
	if r == nil || r.base == nil {
		return errors.New("cart repository not initialised")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return errors.New("cart repository: user id is required")
	}
	if _, err := r.base.Delete(ctx, userID); err != nil {
		return err
	}
	return nil
}

func encodeCartDocument(cart domain.Cart) cartDocument {
	doc := cartDocument{
		UserID:    strings.TrimSpace(cart.UserID),
		UpdatedAt: cart.UpdatedAt.UTC(),
	}
	doc.Items = make([]cartItemDocument, 0, len(cart.Items))
	for _, item := range cart.Items {
		encoded := cartItemDocument{
			ProductID: strings.TrimSpace(item.ProductID),
			Quantity:  item.Quantity,
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

func decodeCartDocument(userID string, doc cartDocument) domain.Cart {
	cart := domain.Cart{
		ID:        strings.TrimSpace(userID),
		UserID:    strings.TrimSpace(userID),
		UpdatedAt: doc.UpdatedAt.UTC(),
	}
	cart.Items = make([]domain.CartItem, 0, len(doc.Items))
	for _, item := range doc.Items {
		decoded := domain.CartItem{
			ProductID: strings.TrimSpace(item.ProductID),
			Quantity:  item.Quantity,
		}
		if item.HasVariant {
			decoded.Variant = &domain.VariantKey{Color: item.VariantColor, Size: item.VariantSize}
		}
		cart.Items = append(cart.Items, decoded)
	}
	return cart
}
