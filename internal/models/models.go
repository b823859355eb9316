package models

import (
	"time"

	"github.com/google/uuid"
)

// Event types published through the outbox
const (
	EventTypeStockMovement = "stock_movement"
)

// Domain Models

// InventoryItem represents a row in the inventory_items table
type InventoryItem struct {
	ProductID         string    `db:"product_id" json:"product_id"`
	Quantity          int       `db:"quantity" json:"quantity"`
	WarehouseLocation string    `db:"warehouse_location" json:"warehouse_location"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time `db:"updated_at" json:"updated_at"`
}

// StockMovement is one immutable entry in the movement ledger. Rows are
// append-only: they are never updated or deleted after insertion.
// Position is assigned by the database in commit order per product and
// is the only field the trail is ordered by.
type StockMovement struct {
	Position       int64     `db:"position" json:"position"`
	MovementID     uuid.UUID `db:"movement_id" json:"movement_id"`
	ProductID      string    `db:"product_id" json:"product_id"`
	QuantityChange int       `db:"quantity_change" json:"quantity_change"`
	NewQuantity    int       `db:"new_quantity" json:"new_quantity"`
	Reason         string    `db:"reason" json:"reason,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// MovementEvent is the payload published to the movements topic
type MovementEvent struct {
	EventID        string    `json:"event_id"`
	EventType      string    `json:"event_type"`
	ProductID      string    `json:"product_id"`
	QuantityChange int       `json:"quantity_change"`
	NewQuantity    int       `json:"new_quantity"`
	Reason         string    `json:"reason,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// API Request Models

// CreateItemRequest creates a new inventory record
type CreateItemRequest struct {
	ProductID         string `json:"product_id" binding:"required"`
	Quantity          int    `json:"quantity" binding:"min=0"`
	WarehouseLocation string `json:"warehouse_location" binding:"required"`
}

// UpdateItemRequest sets the quantity to an absolute value. Quantity is a
// pointer so that binding can distinguish an explicit zero from a missing
// field.
type UpdateItemRequest struct {
	Quantity          *int    `json:"quantity" binding:"required"`
	Reason            string  `json:"reason"`
	WarehouseLocation *string `json:"warehouse_location"`
}

// AdjustStockRequest applies a relative delta. Zero deltas are rejected by
// the ledger service, not by binding, so the error carries a stable code.
type AdjustStockRequest struct {
	Quantity int    `json:"quantity"`
	Reason   string `json:"reason"`
}

// AvailabilityCheckRequest asks whether the current stock covers a
// required quantity
type AvailabilityCheckRequest struct {
	ProductID        string `json:"product_id" binding:"required"`
	RequiredQuantity int    `json:"required_quantity" binding:"min=0"`
}

// BulkAvailabilityRequest checks several products in one call
type BulkAvailabilityRequest struct {
	Items []AvailabilityCheckRequest `json:"items" binding:"required,min=1,dive"`
}

// API Response Models

// AvailabilityResult is the outcome for a single product check
type AvailabilityResult struct {
	ProductID        string `json:"product_id"`
	Available        bool   `json:"available"`
	Found            bool   `json:"found"`
	CurrentQuantity  int    `json:"current_quantity"`
	RequiredQuantity int    `json:"required_quantity"`
}

// BulkAvailabilityResponse preserves the input order of the request items
type BulkAvailabilityResponse struct {
	AllAvailable bool                 `json:"all_available"`
	Results      []AvailabilityResult `json:"results"`
}

// PaginatedItemsResponse is the envelope for item listings
type PaginatedItemsResponse struct {
	CurrentPage int             `json:"current_page"`
	PerPage     int             `json:"per_page"`
	Total       int             `json:"total"`
	LastPage    int             `json:"last_page"`
	Data        []InventoryItem `json:"data"`
}

// HealthResponse reports service and database status
type HealthResponse struct {
	Status      string    `json:"status"`
	Environment string    `json:"environment"`
	Database    string    `json:"database"`
	Timestamp   time.Time `json:"timestamp"`
}

// ErrorBody is the uniform error shape: a human-readable detail (string or
// nested object for field violations) plus a stable machine-readable code.
type ErrorBody struct {
	Detail any       `json:"detail"`
	Code   ErrorCode `json:"code"`
}
