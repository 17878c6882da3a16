package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	domain "github.com/meridianmart/api/internal/domain"
	pfirestore "github.com/meridianmart/api/internal/platform/firestore"
)

const productsCollection = "products"

type productDocument struct {
	Name        string            `firestore:"name"`
	Description string            `firestore:"description,omitempty"`
	Price       int64             `firestore:"price"`
	Stock       int               `firestore:"stock"`
	Variants    []variantDocument `firestore:"variants,omitempty"`
	IsPublished bool              `firestore:"isPublished"`
	CreatedAt   time.Time         `firestore:"createdAt"`
	UpdatedAt   time.Time         `firestore:"updatedAt"`
}

type variantDocument struct {
	Color string `firestore:"color"`
	Size  string `firestore:"size"`
	Price int64  `firestore:"price"`
	Stock int    `firestore:"stock"`
}

// CatalogRepository implements repositories.CatalogRepository backed by Firestore.
type CatalogRepository struct {
	base *pfirestore.BaseRepository[productDocument]
}

// NewCatalogRepository constructs a Firestore-backed catalog repository.
func NewCatalogRepository(provider *pfirestore.Provider) (*CatalogRepository, error) {
	if provider == nil {
		return nil, errors.New("catalog repository: firestore provider is required")
	}
	base := pfirestore.NewBaseRepository[productDocument](provider, productsCollection, nil, nil)
	return &CatalogRepository{base: base}, nil
}

// GetProduct fetches a single product with its variant stock.
func (r *CatalogRepository) GetProduct(ctx context.Context, productID string) (domain.Product, error) {
	if r == nil || r.base == nil {
		return domain.Product{}, errors.New("catalog repository not initialised")
	}
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return domain.Product{}, errors.New("catalog repository: product id is required")
	}
	doc, err := r.base.Get(ctx, productID)
	if err != nil {
		return domain.Product{}, err
	}
	return decodeProductDocument(productID, doc.Data), nil
}

// UpsertProduct stores the product snapshot under its ID.
func (r *CatalogRepository) UpsertProduct(ctx context.Context, product domain.Product) (domain.Product, error) {
	if r == nil || r.base == nil {
		return domain.Product{}, errors.New("catalog repository not initialised")
	}
	productID := strings.TrimSpace(product.ID)
	if productID == "" {
		return domain.Product{}, errors.New("catalog repository: product id is required")
	}
	doc := encodeProductDocument(product)
	if _, err := r.base.Set(ctx, productID, doc); err != nil {
		return domain.Product{}, err
	}
	return decodeProductDocument(productID, doc), nil
}

func encodeProductDocument(product domain.Product) productDocument {
	doc := productDocument{
		Name:        strings.TrimSpace(product.Name),
		Description: strings.TrimSpace(product.Description),
		Price:       product.Price,
		Stock:       product.Stock,
		IsPublished: product.IsPublished,
		CreatedAt:   product.CreatedAt.UTC(),
		UpdatedAt:   product.UpdatedAt.UTC(),
	}
	if len(product.Variants) > 0 {
		doc.Variants = make([]variantDocument, 0, len(product.Variants))
		for _, variant := range product.Variants {
			doc.Variants = append(doc.Variants, variantDocument{
				Color: strings.TrimSpace(variant.Color),
				Size:  strings.TrimSpace(variant.Size),
				Price: variant.Price,
				Stock: variant.Stock,
			})
		}
	}
	return doc
}

func decodeProductDocument(id string, doc productDocument) domain.Product {
	product := domain.Product{
		ID:          strings.TrimSpace(id),
		Name:        strings.TrimSpace(doc.Name),
		Description: strings.TrimSpace(doc.Description),
		Price:       doc.Price,
		Stock:       doc.Stock,
		IsPublished: doc.IsPublished,
		CreatedAt:   doc.CreatedAt.UTC(),
		UpdatedAt:   doc.UpdatedAt.UTC(),
	}
	if len(doc.Variants) > 0 {
		product.Variants = make([]domain.Variant, 0, len(doc.Variants))
		for _, variant := range doc.Variants {
			product.Variants = append(product.Variants, domain.Variant{
				Color: strings.TrimSpace(variant.Color),
				Size:  strings.TrimSpace(variant.Size),
				Price: variant.Price,
				Stock: variant.Stock,
			})
		}
	}
	return product
}
