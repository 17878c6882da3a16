package services

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/meridianmart/api/internal/domain"
	"github.com/meridianmart/api/internal/repositories"
)

type stubInventoryRepo struct {
	reserveFn func(ctx context.Context, req repositories.InventoryReserveRequest) (repositories.InventoryMutationResult, error)
	releaseFn func(ctx context.Context, req repositories.InventoryReleaseRequest) (repositories.InventoryMutationResult, error)
}

func (s *stubInventoryRepo) Reserve(ctx context.Context, req repositories.InventoryReserveRequest) (repositories.InventoryMutationResult, error) {
	if s.reserveFn != nil {
		return s.reserveFn(ctx, req)
	}
	return repositories.InventoryMutationResult{}, nil
}

func (s *stubInventoryRepo) Release(ctx context.Context, req repositories.InventoryReleaseRequest) (repositories.InventoryMutationResult, error) {
	if s.releaseFn != nil {
		return s.releaseFn(ctx, req)
	}
	return repositories.InventoryMutationResult{}, nil
}

func TestInventoryServiceReservePassesNormalizedLines(t *testing.T) {
	now := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	repo := &stubInventoryRepo{}
	repo.reserveFn = func(_ context.Context, req repositories.InventoryReserveRequest) (repositories.InventoryMutationResult, error) {
		if !req.Now.Equal(now) {
			t.Fatalf("expected clock time, got %v", req.Now)
		}
		if len(req.Lines) != 2 {
			t.Fatalf("expected 2 lines, got %d", len(req.Lines))
		}
		if req.Lines[0].ProductID != "prod-1" {
			t.Fatalf("expected trimmed product id, got %q", req.Lines[0].ProductID)
		}
		return repositories.InventoryMutationResult{
			Stocks: map[string]domain.Product{
				"prod-1": {ID: "prod-1", Stock: 7},
			},
		}, nil
	}

	svc, err := NewInventoryService(InventoryServiceDeps{
		Inventory: repo,
		Clock:     func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("new inventory service: %v", err)
	}

	result, err := svc.Reserve(context.Background(), InventoryReserveCommand{
		Lines: []StockLine{
			{ProductID: " prod-1 ", Quantity: 3},
			{ProductID: "prod-2", Variant: &VariantKey{Color: "red", Size: "M"}, Quantity: 1},
		},
	})
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if result.Stocks["prod-1"].Stock != 7 {
		t.Fatalf("unexpected stocks %+v", result.Stocks)
	}
}

func TestInventoryServiceReserveValidatesInput(t *testing.T) {
	svc, err := NewInventoryService(InventoryServiceDeps{Inventory: &stubInventoryRepo{}})
	if err != nil {
		t.Fatalf("new inventory service: %v", err)
	}

	if _, err := svc.Reserve(context.Background(), InventoryReserveCommand{}); !errors.Is(err, ErrInventoryInvalidInput) {
		t.Fatalf("expected invalid input for empty lines, got %v", err)
	}
	if _, err := svc.Reserve(context.Background(), InventoryReserveCommand{
		Lines: []StockLine{{ProductID: "prod-1", Quantity: 0}},
	}); !errors.Is(err, ErrInventoryInvalidInput) {
		t.Fatalf("expected invalid input for zero quantity, got %v", err)
	}
	if _, err := svc.Reserve(context.Background(), InventoryReserveCommand{
		Lines: []StockLine{{ProductID: "  ", Quantity: 1}},
	}); !errors.Is(err, ErrInventoryInvalidInput) {
		t.Fatalf("expected invalid input for blank product id, got %v", err)
	}
}

func TestInventoryServiceReserveMapsTypedErrors(t *testing.T) {
	cases := []struct {
		name string
		code repositories.InventoryErrorCode
		want error
	}{
		{"insufficient stock", repositories.InventoryErrorInsufficientStock, ErrInventoryInsufficientStock},
		{"product missing", repositories.InventoryErrorProductNotFound, ErrInventoryProductNotFound},
		{"variant missing", repositories.InventoryErrorVariantNotFound, ErrInventoryVariantNotFound},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo := &stubInventoryRepo{}
			repo.reserveFn = func(context.Context, repositories.InventoryReserveRequest) (repositories.InventoryMutationResult, error) {
				return repositories.InventoryMutationResult{}, repositories.NewInventoryError(tc.code, "boom", nil)
			}
			svc, err := NewInventoryService(InventoryServiceDeps{Inventory: repo})
			if err != nil {
				t.Fatalf("new inventory service: %v", err)
			}
			_, err = svc.Reserve(context.Background(), InventoryReserveCommand{
				Lines: []StockLine{{ProductID: "prod-1", Quantity: 1}},
			})
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestInventoryServiceReleaseDelegates(t *testing.T) {
	repo := &stubInventoryRepo{}
	var released []StockLine
	repo.releaseFn = func(_ context.Context, req repositories.InventoryReleaseRequest) (repositories.InventoryMutationResult, error) {
		released = req.Lines
		return repositories.InventoryMutationResult{}, nil
	}

	svc, err := NewInventoryService(InventoryServiceDeps{Inventory: repo})
	if err != nil {
		t.Fatalf("new inventory service: %v", err)
	}

	if _, err := svc.Release(context.Background(), InventoryReleaseCommand{
		Lines: []StockLine{{ProductID: "prod-1", Quantity: 2}},
	}); err != nil {
		t.Fatalf("release: %v", err)
	}
	if len(released) != 1 || released[0].Quantity != 2 {
		t.Fatalf("unexpected released lines %+v", released)
	}
}
