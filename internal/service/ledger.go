package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"stock-ledger-service/internal/interfaces"
	"stock-ledger-service/internal/models"
	"stock-ledger-service/internal/repository"
)

// initialStockReason is recorded on the movement that seeds a new item
const initialStockReason = "initial stock"

// LedgerConfig holds ledger service configuration
type LedgerConfig struct {
	// MaxRetries bounds the compare-and-set retry loop under contention
	MaxRetries int
}

// Validate validates the ledger configuration
func (c LedgerConfig) Validate() error {
	if c.MaxRetries < 1 {
		return fmt.Errorf("max retries must be positive, got %d", c.MaxRetries)
	}
	return nil
}

// LedgerService applies validated quantity changes to inventory items and
// records every change as one immutable stock movement. It is the only
// component that mutates item state.
type LedgerService struct {
	items  interfaces.ItemRepository
	ledger interfaces.MovementLedger
	outbox interfaces.OutboxStore
	cache  interfaces.CacheRepository
	config LedgerConfig
}

// NewLedgerService creates a new ledger service with dependency injection
// and configuration validation
func NewLedgerService(
	items interfaces.ItemRepository,
	ledger interfaces.MovementLedger,
	outbox interfaces.OutboxStore,
	cache interfaces.CacheRepository,
	config LedgerConfig,
) (*LedgerService, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid ledger configuration: %w", err)
	}

	return &LedgerService{
		items:  items,
		ledger: ledger,
		outbox: outbox,
		cache:  cache,
		config: config,
	}, nil
}

// Create inserts a new inventory item. A positive initial quantity is
// recorded as the item's first movement so the ledger replays from zero.
func (s *LedgerService) Create(ctx context.Context, req *models.CreateItemRequest) (*models.InventoryItem, error) {
	if req.Quantity < 0 {
		return nil, &models.InvalidQuantityError{Quantity: req.Quantity}
	}

	item := &models.InventoryItem{
		ProductID:         req.ProductID,
		Quantity:          req.Quantity,
		WarehouseLocation: req.WarehouseLocation,
	}

	tx, err := s.items.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if err := s.items.InsertIfAbsent(ctx, tx, item); err != nil {
		return nil, err
	}

	if req.Quantity > 0 {
		movement := &models.StockMovement{
			MovementID:     uuid.New(),
			ProductID:      req.ProductID,
			QuantityChange: req.Quantity,
			NewQuantity:    req.Quantity,
			Reason:         initialStockReason,
		}
		if err := s.ledger.Append(ctx, tx, movement); err != nil {
			return nil, err
		}
		if err := s.stageMovementEvent(ctx, tx, movement); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, &models.PersistenceError{Op: "commit create", Cause: err}
	}

	log.Info().
		Str("product_id", item.ProductID).
		Int("quantity", item.Quantity).
		Str("warehouse_location", item.WarehouseLocation).
		Msg("Created inventory item")

	s.invalidateCache(item.ProductID)
	return item, nil
}

// Adjust applies a relative delta to an item's quantity. The commit is a
// conditional update keyed on the observed quantity; a losing concurrent
// writer re-reads and re-validates up to the configured retry bound.
func (s *LedgerService) Adjust(ctx context.Context, productID string, delta int, reason string) (*models.InventoryItem, error) {
	if delta == 0 {
		return nil, &models.InvalidDeltaError{}
	}

	for attempt := 1; attempt <= s.config.MaxRetries; attempt++ {
		item, err := s.items.Get(ctx, productID)
		if err != nil {
			return nil, err
		}
		if item == nil {
			return nil, &models.NotFoundError{ProductID: productID}
		}

		candidate := item.Quantity + delta
		if candidate < 0 {
			return nil, &models.NegativeStockError{ProductID: productID, Current: item.Quantity, Delta: delta}
		}

		updated, err := s.commit(ctx, productID, item.Quantity, candidate, delta, reason, nil)
		if errors.Is(err, repository.ErrQuantityConflict) {
			log.Debug().
				Str("product_id", productID).
				Int("attempt", attempt).
				Msg("Adjustment lost compare-and-set race, retrying")
			continue
		}
		if err != nil {
			return nil, err
		}

		log.Info().
			Str("product_id", productID).
			Int("delta", delta).
			Int("new_quantity", updated.Quantity).
			Str("reason", reason).
			Msg("Adjusted stock")

		s.invalidateCache(productID)
		return updated, nil
	}

	return nil, &models.ConflictError{ProductID: productID, Attempts: s.config.MaxRetries}
}

// SetQuantity sets an item's quantity to an absolute non-negative value,
// recording the implied delta as a movement exactly as Adjust does. An
// unchanged quantity stages no movement; a location-only change still
// updates the row.
func (s *LedgerService) SetQuantity(ctx context.Context, productID string, quantity int, reason string, location *string) (*models.InventoryItem, error) {
	if quantity < 0 {
		return nil, &models.InvalidQuantityError{Quantity: quantity}
	}

	for attempt := 1; attempt <= s.config.MaxRetries; attempt++ {
		item, err := s.items.Get(ctx, productID)
		if err != nil {
			return nil, err
		}
		if item == nil {
			return nil, &models.NotFoundError{ProductID: productID}
		}

		delta := quantity - item.Quantity
		if delta == 0 && (location == nil || *location == item.WarehouseLocation) {
			return item, nil
		}

		updated, err := s.commit(ctx, productID, item.Quantity, quantity, delta, reason, location)
		if errors.Is(err, repository.ErrQuantityConflict) {
			log.Debug().
				Str("product_id", productID).
				Int("attempt", attempt).
				Msg("Quantity set lost compare-and-set race, retrying")
			continue
		}
		if err != nil {
			return nil, err
		}

		log.Info().
			Str("product_id", productID).
			Int("quantity", quantity).
			Str("reason", reason).
			Msg("Set stock quantity")

		s.invalidateCache(productID)
		return updated, nil
	}

	return nil, &models.ConflictError{ProductID: productID, Attempts: s.config.MaxRetries}
}

// commit performs the atomic unit of an adjustment: the conditional
// quantity update, the ledger append, and the outbox staging either all
// become durable or none do. A zero delta commits the row change alone.
func (s *LedgerService) commit(ctx context.Context, productID string, expected, target, delta int, reason string, location *string) (*models.InventoryItem, error) {
	tx, err := s.items.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	updated, err := s.items.ConditionalUpdate(ctx, tx, productID, expected, target, location)
	if err != nil {
		return nil, err
	}

	if delta != 0 {
		movement := &models.StockMovement{
			MovementID:     uuid.New(),
			ProductID:      productID,
			QuantityChange: delta,
			NewQuantity:    target,
			Reason:         reason,
		}
		if err := s.ledger.Append(ctx, tx, movement); err != nil {
			return nil, err
		}
		if err := s.stageMovementEvent(ctx, tx, movement); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, &models.PersistenceError{Op: "commit adjustment", Cause: err}
	}

	return updated, nil
}

// stageMovementEvent writes the movement to the outbox inside the same
// transaction, keyed by product id for per-product ordering downstream
func (s *LedgerService) stageMovementEvent(ctx context.Context, tx interfaces.Tx, movement *models.StockMovement) error {
	event := &models.MovementEvent{
		EventID:        movement.MovementID.String(),
		EventType:      models.EventTypeStockMovement,
		ProductID:      movement.ProductID,
		QuantityChange: movement.QuantityChange,
		NewQuantity:    movement.NewQuantity,
		Reason:         movement.Reason,
		Timestamp:      time.Now().UTC(),
	}
	return s.outbox.InsertEvent(ctx, tx, models.EventTypeStockMovement, movement.ProductID, event)
}

// invalidateCache drops the cached item asynchronously so reads converge
// on the committed state
func (s *LedgerService) invalidateCache(productID string) {
	if s.cache == nil {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := s.cache.DeleteItem(ctx, productID); err != nil {
			log.Error().Err(err).Str("product_id", productID).Msg("Failed to invalidate item cache")
		}
	}()
}
