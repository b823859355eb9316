package interfaces

import (
	"context"

	"stock-ledger-service/internal/models"
)

// LedgerService defines the contract for stock mutations. Every
// successful call commits exactly one movement record alongside the
// quantity change.
type LedgerService interface {
	Create(ctx context.Context, req *models.CreateItemRequest) (*models.InventoryItem, error)
	Adjust(ctx context.Context, productID string, delta int, reason string) (*models.InventoryItem, error)
	SetQuantity(ctx context.Context, productID string, quantity int, reason string, location *string) (*models.InventoryItem, error)
}

// CatalogService defines the contract for paginated item reads
type CatalogService interface {
	GetItem(ctx context.Context, productID string) (*models.InventoryItem, error)
	List(ctx context.Context, page, pageSize int, productIDFilter string) (*models.PaginatedItemsResponse, error)
}

// AvailabilityService defines the contract for stock-sufficiency checks
type AvailabilityService interface {
	Check(ctx context.Context, productID string, requiredQuantity int) (*models.AvailabilityResult, error)
	CheckBulk(ctx context.Context, items []models.AvailabilityCheckRequest) (*models.BulkAvailabilityResponse, error)
}
