package service

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"stock-ledger-service/internal/interfaces"
	"stock-ledger-service/internal/models"
)

// AvailabilityService answers read-only stock-sufficiency checks for
// order-placement collaborators. Reads go through the item cache first
// and fall back to the database.
type AvailabilityService struct {
	items interfaces.ItemRepository
	cache interfaces.CacheRepository
}

// NewAvailabilityService creates a new availability service
func NewAvailabilityService(items interfaces.ItemRepository, cache interfaces.CacheRepository) *AvailabilityService {
	return &AvailabilityService{items: items, cache: cache}
}

// Check reports whether current stock covers the required quantity.
// Fails with *models.NotFoundError when the product is unknown.
func (s *AvailabilityService) Check(ctx context.Context, productID string, requiredQuantity int) (*models.AvailabilityResult, error) {
	item, err := s.lookup(ctx, productID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, &models.NotFoundError{ProductID: productID}
	}

	return &models.AvailabilityResult{
		ProductID:        productID,
		Available:        item.Quantity >= requiredQuantity,
		Found:            true,
		CurrentQuantity:  item.Quantity,
		RequiredQuantity: requiredQuantity,
	}, nil
}

// CheckBulk checks several products, preserving input order. An unknown
// product fails its own entry instead of aborting the batch; unresolved
// entries count as unavailable for the aggregate flag.
func (s *AvailabilityService) CheckBulk(ctx context.Context, items []models.AvailabilityCheckRequest) (*models.BulkAvailabilityResponse, error) {
	results := make([]models.AvailabilityResult, 0, len(items))
	allAvailable := true

	for _, req := range items {
		item, err := s.lookup(ctx, req.ProductID)
		if err != nil {
			return nil, err
		}

		result := models.AvailabilityResult{
			ProductID:        req.ProductID,
			RequiredQuantity: req.RequiredQuantity,
		}
		if item == nil {
			allAvailable = false
		} else {
			result.Found = true
			result.CurrentQuantity = item.Quantity
			result.Available = item.Quantity >= req.RequiredQuantity
			if !result.Available {
				allAvailable = false
			}
		}

		results = append(results, result)
	}

	return &models.BulkAvailabilityResponse{
		AllAvailable: allAvailable,
		Results:      results,
	}, nil
}

// lookup reads an item cache-first, filling the cache asynchronously on a
// database hit. Cache errors degrade to a database read.
func (s *AvailabilityService) lookup(ctx context.Context, productID string) (*models.InventoryItem, error) {
	if s.cache != nil {
		item, err := s.cache.GetItem(ctx, productID)
		if err != nil {
			log.Error().Err(err).Str("product_id", productID).Msg("Cache error, falling back to database")
		}
		if item != nil {
			return item, nil
		}
	}

	item, err := s.items.Get(ctx, productID)
	if err != nil {
		return nil, err
	}

	if item != nil && s.cache != nil {
		cached := *item
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			if err := s.cache.SetItem(ctx, &cached); err != nil {
				log.Error().Err(err).Str("product_id", cached.ProductID).Msg("Failed to update item cache")
			}
		}()
	}

	return item, nil
}
