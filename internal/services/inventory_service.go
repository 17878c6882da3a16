package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/meridianmart/api/internal/repositories"
)

var (
	// ErrInventoryInvalidInput signals the caller provided invalid data.
	ErrInventoryInvalidInput = errors.New("inventory: invalid input")
	// ErrInventoryProductNotFound indicates a referenced product does not exist.
	ErrInventoryProductNotFound = errors.New("inventory: product not found")
	// ErrInventoryVariantNotFound indicates no variant matches the requested color and size.
	ErrInventoryVariantNotFound = errors.New("inventory: variant not found")
	// ErrInventoryInsufficientStock indicates at least one line exceeds availability.
	ErrInventoryInsufficientStock = errors.New("inventory: insufficient stock")
)

// InventoryServiceDeps bundles collaborators required to construct the inventory service.
type InventoryServiceDeps struct {
	Inventory repositories.InventoryRepository
	Clock     func() time.Time
	Logger    func(ctx context.Context, event string, fields map[string]any)
}

type inventoryService struct {
	inventory repositories.InventoryRepository
	clock     func() time.Time
	logger    func(context.Context, string, map[string]any)
}

// NewInventoryService wires dependencies into a concrete InventoryService implementation.
func NewInventoryService(deps InventoryServiceDeps) (InventoryService, error) {
	if deps.Inventory == nil {
		return nil, errors.New("inventory service: inventory repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &inventoryService{
		inventory: deps.Inventory,
		clock: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

func (s *inventoryService) Reserve(ctx context.Context, cmd InventoryReserveCommand) (InventoryMutation, error) {
	lines, err := normalizeStockLines(cmd.Lines)
	if err != nil {
		return InventoryMutation{}, err
	}

	result, err := s.inventory.Reserve(ctx, repositories.InventoryReserveRequest{
		Lines: lines,
		Now:   s.clock(),
	})
	if err != nil {
		return InventoryMutation{}, mapInventoryError(err)
	}

	s.logger(ctx, "inventory.reserved", map[string]any{
		"lines": len(lines),
	})

	return InventoryMutation{Stocks: result.Stocks}, nil
}

func (s *inventoryService) Release(ctx context.Context, cmd InventoryReleaseCommand) (InventoryMutation, error) {
	lines, err := normalizeStockLines(cmd.Lines)
	if err != nil {
		return InventoryMutation{}, err
	}

	result, err := s.inventory.Release(ctx, repositories.InventoryReleaseRequest{
		Lines: lines,
		Now:   s.clock(),
	})
	if err != nil {
		return InventoryMutation{}, mapInventoryError(err)
	}

	s.logger(ctx, "inventory.released", map[string]any{
		"lines": len(lines),
	})

	return InventoryMutation{Stocks: result.Stocks}, nil
}

func normalizeStockLines(lines []StockLine) ([]StockLine, error) {
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: at least one line is required", ErrInventoryInvalidInput)
	}

	normalized := make([]StockLine, 0, len(lines))
	for i, line := range lines {
		productID := strings.TrimSpace(line.ProductID)
		if productID == "" {
			return nil, fmt.Errorf("%w: line %d product id is required", ErrInventoryInvalidInput, i)
		}
		if line.Quantity <= 0 {
			return nil, fmt.Errorf("%w: line %d quantity must be positive", ErrInventoryInvalidInput, i)
		}
		normalized = append(normalized, StockLine{
			ProductID: productID,
			Variant:   line.Variant,
			Quantity:  line.Quantity,
		})
	}
	return normalized, nil
}

func mapInventoryError(err error) error {
	if err == nil {
		return nil
	}

	var invErr *repositories.InventoryError
	if errors.As(err, &invErr) {
		switch invErr.Code {
		case repositories.InventoryErrorProductNotFound:
			return fmt.Errorf("%w: %s", ErrInventoryProductNotFound, invErr.ProductID)
		case repositories.InventoryErrorVariantNotFound:
			return fmt.Errorf("%w: %s", ErrInventoryVariantNotFound, invErr.ProductID)
		case repositories.InventoryErrorInsufficientStock:
			return fmt.Errorf("%w: %s", ErrInventoryInsufficientStock, invErr.ProductID)
		case repositories.InventoryErrorInvalidQuantity:
			return fmt.Errorf("%w: %v", ErrInventoryInvalidInput, invErr.Message)
		}
	}

	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		if repoErr.IsNotFound() {
			return fmt.Errorf("%w: %v", ErrInventoryProductNotFound, err)
		}
		if repoErr.IsUnavailable() {
			return fmt.Errorf("inventory: repository unavailable: %w", err)
		}
	}

	return err
}
