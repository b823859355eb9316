package repository

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"stock-ledger-service/internal/interfaces"
	"stock-ledger-service/internal/models"
)

// MovementRepository is the append-only store of stock movements. Nothing
// here mutates or deletes existing rows.
type MovementRepository struct {
	db *sqlx.DB
}

// NewMovementRepository creates a new movement repository
func NewMovementRepository(db *sqlx.DB) *MovementRepository {
	return &MovementRepository{db: db}
}

// Append inserts one movement within the caller's transaction so the
// ledger entry and the quantity update become durable together. The
// position sequence is drawn while the conditional update still holds the
// row lock, so positions follow commit order for a product even when
// transaction timestamps do not.
func (r *MovementRepository) Append(ctx context.Context, tx interfaces.Tx, movement *models.StockMovement) error {
	query := `INSERT INTO stock_movements (movement_id, product_id, quantity_change, new_quantity, reason, created_at)
			  VALUES ($1, $2, $3, $4, $5, NOW())
			  RETURNING position, created_at`

	sqlTx := tx.(*sqlx.Tx)
	err := sqlTx.QueryRowxContext(ctx, query,
		movement.MovementID, movement.ProductID, movement.QuantityChange, movement.NewQuantity, movement.Reason).
		Scan(&movement.Position, &movement.CreatedAt)
	if err != nil {
		log.Error().Err(err).
			Str("product_id", movement.ProductID).
			Int("quantity_change", movement.QuantityChange).
			Msg("Failed to append stock movement")
		return &models.PersistenceError{Op: "append movement", Cause: err}
	}

	log.Debug().
		Str("product_id", movement.ProductID).
		Int("quantity_change", movement.QuantityChange).
		Int("new_quantity", movement.NewQuantity).
		Msg("Appended stock movement")

	return nil
}

// ListByProduct returns the movement history for a product in commit
// order. Each call runs a fresh query so the sequence is restartable.
func (r *MovementRepository) ListByProduct(ctx context.Context, productID string) ([]models.StockMovement, error) {
	movements := []models.StockMovement{}
	query := `SELECT position, movement_id, product_id, quantity_change, new_quantity, reason, created_at
			  FROM stock_movements
			  WHERE product_id = $1
			  ORDER BY position ASC`

	if err := r.db.SelectContext(ctx, &movements, query, productID); err != nil {
		log.Error().Err(err).Str("product_id", productID).Msg("Failed to list stock movements")
		return nil, &models.PersistenceError{Op: "list movements", Cause: err}
	}

	return movements, nil
}
