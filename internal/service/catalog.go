package service

import (
	"context"
	"fmt"

	"stock-ledger-service/internal/interfaces"
	"stock-ledger-service/internal/models"
)

// CatalogConfig holds pagination bounds for catalog reads
type CatalogConfig struct {
	DefaultPageSize int
	MaxPageSize     int
}

// Validate validates the catalog configuration
func (c CatalogConfig) Validate() error {
	if c.DefaultPageSize < 1 {
		return fmt.Errorf("default page size must be positive, got %d", c.DefaultPageSize)
	}
	if c.MaxPageSize < c.DefaultPageSize {
		return fmt.Errorf("max page size %d must be at least the default %d", c.MaxPageSize, c.DefaultPageSize)
	}
	return nil
}

// CatalogService provides paginated, filterable read access over items
type CatalogService struct {
	items  interfaces.ItemRepository
	config CatalogConfig
}

// NewCatalogService creates a new catalog service
func NewCatalogService(items interfaces.ItemRepository, config CatalogConfig) (*CatalogService, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid catalog configuration: %w", err)
	}
	return &CatalogService{items: items, config: config}, nil
}

// GetItem returns a single item or *models.NotFoundError
func (s *CatalogService) GetItem(ctx context.Context, productID string) (*models.InventoryItem, error) {
	item, err := s.items.Get(ctx, productID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, &models.NotFoundError{ProductID: productID}
	}
	return item, nil
}

// List returns one 1-based page of items. Pages beyond the last yield an
// empty data slice with the total unchanged, never an error.
func (s *CatalogService) List(ctx context.Context, page, pageSize int, productIDFilter string) (*models.PaginatedItemsResponse, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = s.config.DefaultPageSize
	}
	if pageSize > s.config.MaxPageSize {
		pageSize = s.config.MaxPageSize
	}

	offset := (page - 1) * pageSize
	items, total, err := s.items.List(ctx, productIDFilter, offset, pageSize)
	if err != nil {
		return nil, err
	}

	lastPage := (total + pageSize - 1) / pageSize
	if lastPage < 1 {
		lastPage = 1
	}

	return &models.PaginatedItemsResponse{
		CurrentPage: page,
		PerPage:     pageSize,
		Total:       total,
		LastPage:    lastPage,
		Data:        items,
	}, nil
}
