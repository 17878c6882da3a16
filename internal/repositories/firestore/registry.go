package firestore

import (
	"context"
	"errors"

	pfirestore "github.com/meridianmart/api/internal/platform/firestore"
	"github.com/meridianmart/api/internal/repositories"
)

// Registry wires the Firestore-backed repositories over a shared provider.
type Registry struct {
	provider *pfirestore.Provider

	catalog       *CatalogRepository
	inventory     *InventoryRepository
	orders        *OrderRepository
	coupons       *CouponRepository
	carts         *CartRepository
	notifications *NotificationRepository
	pushTokens    *PushTokenRepository
	counters      *CounterRepository
}

// NewRegistry constructs every repository against the shared provider.
func NewRegistry(provider *pfirestore.Provider) (*Registry, error) {
	if provider == nil {
		return nil, errors.New("registry: firestore provider is required")
	}

	catalog, err := NewCatalogRepository(provider)
	if err != nil {
		return nil, err
	}
	inventory, err := NewInventoryRepository(provider)
	if err != nil {
		return nil, err
	}
	orders, err := NewOrderRepository(provider)
	if err != nil {
		return nil, err
	}
	coupons, err := NewCouponRepository(provider)
	if err != nil {
		return nil, err
	}
	carts, err := NewCartRepository(provider)
	if err != nil {
		return nil, err
	}
	notifications, err := NewNotificationRepository(provider)
	if err != nil {
		return nil, err
	}
	pushTokens, err := NewPushTokenRepository(provider)
	if err != nil {
		return nil, err
	}
	counters, err := NewCounterRepository(provider)
	if err != nil {
		return nil, err
	}

	return &Registry{
		provider:      provider,
		catalog:       catalog,
		inventory:     inventory,
		orders:        orders,
		coupons:       coupons,
		carts:         carts,
		notifications: notifications,
		pushTokens:    pushTokens,
		counters:      counters,
	}, nil
}

// Close releases the shared Firestore client.
func (r *Registry) Close(ctx context.Context) error {
	if r == nil || r.provider == nil {
		return nil
	}
	return r.provider.Close(ctx)
}

// Catalog returns the product catalog repository.
func (r *Registry) Catalog() repositories.CatalogRepository { return r.catalog }

// Inventory returns the stock counter repository.
func (r *Registry) Inventory() repositories.InventoryRepository { return r.inventory }

// Orders returns the order repository.
func (r *Registry) Orders() repositories.OrderRepository { return r.orders }

// Coupons returns the coupon repository.
func (r *Registry) Coupons() repositories.CouponRepository { return r.coupons }

// Carts returns the stored cart repository.
func (r *Registry) Carts() repositories.CartRepository { return r.carts }

// Notifications returns the notification repository.
func (r *Registry) Notifications() repositories.NotificationRepository { return r.notifications }

// PushTokens returns the push endpoint repository.
func (r *Registry) PushTokens() repositories.PushTokenRepository { return r.pushTokens }

// Counters returns the sequence counter repository.
func (r *Registry) Counters() repositories.CounterRepository { return r.counters }
