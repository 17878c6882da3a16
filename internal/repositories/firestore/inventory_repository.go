package firestore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/meridianmart/api/internal/domain"
	pfirestore "github.com/meridianmart/api/internal/platform/firestore"
	"github.com/meridianmart/api/internal/repositories"
)

// InventoryRepository implements repositories.InventoryRepository on top of the
// product documents. All lines of a request are applied inside one Firestore
// transaction so a failure on any line leaves every counter untouched.
type InventoryRepository struct {
	provider *pfirestore.Provider
	products *pfirestore.BaseRepository[productDocument]
}

// NewInventoryRepository constructs a Firestore-backed inventory repository.
func NewInventoryRepository(provider *pfirestore.Provider) (*InventoryRepository, error) {
	if provider == nil {
		return nil, errors.New("inventory repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[productDocument](provider, productsCollection, nil, nil)
	return &InventoryRepository{
		provider: provider,
		products: base,
	}, nil
}

// Reserve decrements the addressed counters, failing the whole batch when any
// product or variant is missing or short on stock.
func (r *InventoryRepository) Reserve(ctx context.Context, req repositories.InventoryReserveRequest) (repositories.InventoryMutationResult, error) {
	return r.mutate(ctx, "inventory.reserve", req.Lines, req.Now, false)
}

// Release restores previously reserved stock. Increments are unconditional;
// callers must not release the same reservation twice.
func (r *InventoryRepository) Release(ctx context.Context, req repositories.InventoryReleaseRequest) (repositories.InventoryMutationResult, error) {
	return r.mutate(ctx, "inventory.release", req.Lines, req.Now, true)
}

func (r *InventoryRepository) mutate(ctx context.Context, op string, lines []domain.StockLine, now time.Time, release bool) (repositories.InventoryMutationResult, error) {
	if r == nil || r.provider == nil {
		return repositories.InventoryMutationResult{}, errors.New("inventory repository not initialised")
	}
	if len(lines) == 0 {
		return repositories.InventoryMutationResult{}, repositories.NewInventoryError(repositories.InventoryErrorInvalidQuantity, "no stock lines provided", nil)
	}
	for _, line := range lines {
		if strings.TrimSpace(line.ProductID) == "" {
			return repositories.InventoryMutationResult{}, repositories.NewInventoryError(repositories.InventoryErrorProductNotFound, "product id is required", nil)
		}
		if line.Quantity <= 0 {
			return repositories.InventoryMutationResult{}, repositories.NewInventoryError(repositories.InventoryErrorInvalidQuantity, fmt.Sprintf("quantity must be positive, got %d", line.Quantity), nil)
		}
	}
	if now.IsZero() {
		now = time.Now()
	}
	now = now.UTC()

	var result repositories.InventoryMutationResult
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		// Load each distinct product once so multi-line requests touching the
		// same document accumulate their deltas before the single write.
		loaded := make(map[string]productDocument)
		for _, productID := range distinctProductIDs(lines) {
			ref, err := r.products.DocumentRef(ctx, productID)
			if err != nil {
				return err
			}
			snapshot, err := tx.Get(ref)
			if status.Code(err) == codes.NotFound {
				return &repositories.InventoryError{
					Code:      repositories.InventoryErrorProductNotFound,
					ProductID: productID,
					Message:   fmt.Sprintf("product %s not found", productID),
				}
			}
			if err != nil {
				return err
			}
			var doc productDocument
			if err := snapshot.DataTo(&doc); err != nil {
				return fmt.Errorf("firestore products decode %s: %w", productID, err)
			}
			loaded[productID] = doc
		}

		for _, line := range lines {
			productID := strings.TrimSpace(line.ProductID)
			doc := loaded[productID]
			delta := line.Quantity
			if !release {
				delta = -delta
			}
			if line.Variant == nil {
				next := doc.Stock + delta
				if next < 0 {
					return &repositories.InventoryError{
						Code:      repositories.InventoryErrorInsufficientStock,
						ProductID: productID,
						Message:   fmt.Sprintf("product %s has %d in stock, requested %d", productID, doc.Stock, line.Quantity),
					}
				}
				doc.Stock = next
			} else {
				idx := findVariantIndex(doc.Variants, *line.Variant)
				if idx < 0 {
					return &repositories.InventoryError{
						Code:      repositories.InventoryErrorVariantNotFound,
						ProductID: productID,
						Message:   fmt.Sprintf("product %s has no variant %s/%s", productID, line.Variant.Color, line.Variant.Size),
					}
				}
				next := doc.Variants[idx].Stock + delta
				if next < 0 {
					return &repositories.InventoryError{
						Code:      repositories.InventoryErrorInsufficientStock,
						ProductID: productID,
						Message:   fmt.Sprintf("variant %s/%s of product %s has %d in stock, requested %d", line.Variant.Color, line.Variant.Size, productID, doc.Variants[idx].Stock, line.Quantity),
					}
				}
				doc.Variants[idx].Stock = next
			}
			loaded[productID] = doc
		}

		stocks := make(map[string]domain.Product, len(loaded))
		for productID, doc := range loaded {
			doc.UpdatedAt = now
			ref, err := r.products.DocumentRef(ctx, productID)
			if err != nil {
				return err
			}
			if err := tx.Set(ref, doc); err != nil {
				return err
			}
			stocks[productID] = decodeProductDocument(productID, doc)
		}
		result = repositories.InventoryMutationResult{Stocks: stocks}
		return nil
	})
	if err != nil {
		var invErr *repositories.InventoryError
		if errors.As(err, &invErr) {
			return repositories.InventoryMutationResult{}, invErr
		}
		return repositories.InventoryMutationResult{}, pfirestore.WrapError(op, err)
	}
	return result, nil
}

func distinctProductIDs(lines []domain.StockLine) []string {
	seen := make(map[string]struct{}, len(lines))
	ids := make([]string, 0, len(lines))
	for _, line := range lines {
		id := strings.TrimSpace(line.ProductID)
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func findVariantIndex(variants []variantDocument, key domain.VariantKey) int {
	for i, variant := range variants {
		if variant.Color == key.Color && variant.Size == key.Size {
			return i
		}
	}
	return -1
}
