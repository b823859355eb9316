package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"stock-ledger-service/internal/interfaces"
	"stock-ledger-service/internal/models"
)

// ErrQuantityConflict is returned by ConditionalUpdate when the row no
// longer holds the quantity the caller observed. The caller re-reads and
// retries.
var ErrQuantityConflict = errors.New("quantity changed since last read")

// uniqueViolation is the Postgres error code for unique constraint breaches
const uniqueViolation = "23505"

// ItemRepository handles database operations for inventory items
type ItemRepository struct {
	db *sqlx.DB
}

// NewItemRepository creates a new item repository
func NewItemRepository(db *sqlx.DB) *ItemRepository {
	return &ItemRepository{db: db}
}

// BeginTx starts a new database transaction
func (r *ItemRepository) BeginTx(ctx context.Context) (interfaces.Tx, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		log.Error().Err(err).Msg("Failed to begin transaction")
		return nil, &models.PersistenceError{Op: "begin transaction", Cause: err}
	}
	return tx, nil
}

// Get retrieves an item by product id, returning (nil, nil) when absent
func (r *ItemRepository) Get(ctx context.Context, productID string) (*models.InventoryItem, error) {
	var item models.InventoryItem
	query := `SELECT product_id, quantity, warehouse_location, created_at, updated_at
			  FROM inventory_items WHERE product_id = $1`

	err := r.db.GetContext(ctx, &item, query, productID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		log.Error().Err(err).Str("product_id", productID).Msg("Failed to get inventory item")
		return nil, &models.PersistenceError{Op: "get item", Cause: err}
	}

	return &item, nil
}

// InsertIfAbsent inserts a new item, relying on the primary key to reject
// duplicates atomically rather than on a read-then-insert check
func (r *ItemRepository) InsertIfAbsent(ctx context.Context, tx interfaces.Tx, item *models.InventoryItem) error {
	query := `INSERT INTO inventory_items (product_id, quantity, warehouse_location, created_at, updated_at)
			  VALUES ($1, $2, $3, NOW(), NOW())
			  RETURNING created_at, updated_at`

	sqlTx := tx.(*sqlx.Tx)
	err := sqlTx.QueryRowxContext(ctx, query, item.ProductID, item.Quantity, item.WarehouseLocation).
		Scan(&item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return &models.DuplicateProductError{ProductID: item.ProductID}
		}
		log.Error().Err(err).Str("product_id", item.ProductID).Msg("Failed to insert inventory item")
		return &models.PersistenceError{Op: "insert item", Cause: err}
	}

	return nil
}

// ConditionalUpdate commits a new quantity only while the row still holds
// expectedQuantity. A zero-row update means a concurrent writer won the
// race, reported as ErrQuantityConflict so the caller can re-read.
func (r *ItemRepository) ConditionalUpdate(ctx context.Context, tx interfaces.Tx, productID string, expectedQuantity, newQuantity int, newLocation *string) (*models.InventoryItem, error) {
	var item models.InventoryItem
	query := `UPDATE inventory_items
			  SET quantity = $3,
			      warehouse_location = COALESCE($4, warehouse_location),
			      updated_at = NOW()
			  WHERE product_id = $1 AND quantity = $2
			  RETURNING product_id, quantity, warehouse_location, created_at, updated_at`

	sqlTx := tx.(*sqlx.Tx)
	err := sqlTx.GetContext(ctx, &item, query, productID, expectedQuantity, newQuantity, newLocation)
	if err != nil {
		if err == sql.ErrNoRows {
			log.Debug().
				Str("product_id", productID).
				Int("expected_quantity", expectedQuantity).
				Msg("Conditional update lost the race")
			return nil, ErrQuantityConflict
		}
		log.Error().Err(err).Str("product_id", productID).Msg("Failed to update inventory item")
		return nil, &models.PersistenceError{Op: "conditional update", Cause: err}
	}

	return &item, nil
}

// List returns a page of items ordered by updated_at descending plus the
// total count matching the filter. An empty filter matches everything.
func (r *ItemRepository) List(ctx context.Context, productIDFilter string, offset, limit int) ([]models.InventoryItem, int, error) {
	var total int
	countQuery := `SELECT COUNT(*) FROM inventory_items WHERE ($1 = '' OR product_id = $1)`
	if err := r.db.GetContext(ctx, &total, countQuery, productIDFilter); err != nil {
		log.Error().Err(err).Msg("Failed to count inventory items")
		return nil, 0, &models.PersistenceError{Op: "count items", Cause: err}
	}

	items := []models.InventoryItem{}
	query := `SELECT product_id, quantity, warehouse_location, created_at, updated_at
			  FROM inventory_items
			  WHERE ($1 = '' OR product_id = $1)
			  ORDER BY updated_at DESC
			  OFFSET $2 LIMIT $3`

	if err := r.db.SelectContext(ctx, &items, query, productIDFilter, offset, limit); err != nil {
		log.Error().Err(err).Msg("Failed to list inventory items")
		return nil, 0, &models.PersistenceError{Op: "list items", Cause: err}
	}

	return items, total, nil
}

// Ping verifies database connectivity for health checks
func (r *ItemRepository) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}
