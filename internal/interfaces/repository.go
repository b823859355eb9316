package interfaces

import (
	"context"

	"stock-ledger-service/internal/models"
)

// Tx is the transaction handle shared by the storage contracts. The
// Postgres implementations hand out *sqlx.Tx behind it; tests substitute
// lightweight fakes.
type Tx interface {
	Commit() error
	Rollback() error
}

// ItemRepository defines the contract for inventory item storage.
// ConditionalUpdate is the single primitive that makes an adjustment
// commit atomic: it succeeds only while the row still holds the quantity
// the caller observed.
type ItemRepository interface {
	BeginTx(ctx context.Context) (Tx, error)

	// Get returns (nil, nil) when no item exists for the product id
	Get(ctx context.Context, productID string) (*models.InventoryItem, error)

	// InsertIfAbsent fails with *models.DuplicateProductError when the
	// product id is already taken
	InsertIfAbsent(ctx context.Context, tx Tx, item *models.InventoryItem) error

	// ConditionalUpdate sets the quantity (and optionally the warehouse
	// location) only if the current quantity equals expectedQuantity.
	// Returns ErrQuantityConflict when a concurrent writer got there first.
	ConditionalUpdate(ctx context.Context, tx Tx, productID string, expectedQuantity, newQuantity int, newLocation *string) (*models.InventoryItem, error)

	// List returns one page of items ordered by updated_at descending,
	// plus the total count matching the filter
	List(ctx context.Context, productIDFilter string, offset, limit int) ([]models.InventoryItem, int, error)
}

// MovementLedger defines the contract for the append-only audit trail
type MovementLedger interface {
	// Append inserts one movement as part of the caller's transaction
	Append(ctx context.Context, tx Tx, movement *models.StockMovement) error

	// ListByProduct returns the full movement history for a product in
	// commit order. Each call issues a fresh query.
	ListByProduct(ctx context.Context, productID string) ([]models.StockMovement, error)
}

// OutboxStore defines the contract for transactional event staging
type OutboxStore interface {
	InsertEvent(ctx context.Context, tx Tx, eventType, key string, payload interface{}) error
}

// CacheRepository defines the contract for the item read cache
type CacheRepository interface {
	GetItem(ctx context.Context, productID string) (*models.InventoryItem, error)
	SetItem(ctx context.Context, item *models.InventoryItem) error
	DeleteItem(ctx context.Context, productID string) error
	Close() error
}
