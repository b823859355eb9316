package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"stock-ledger-service/internal/interfaces"
	"stock-ledger-service/internal/models"
)

// DatabasePinger reports persistence-layer reachability for health checks
type DatabasePinger interface {
	Ping(ctx context.Context) error
}

// HandlerConfig holds the handler's environment metadata and bounds
type HandlerConfig struct {
	ServiceName string
	Environment string
	MaxPageSize int
}

// Handler wires the HTTP surface to the ledger, catalog, and availability
// services. It holds no business logic beyond parameter parsing and error
// mapping.
type Handler struct {
	ledger       interfaces.LedgerService
	catalog      interfaces.CatalogService
	availability interfaces.AvailabilityService
	movements    interfaces.MovementLedger
	db           DatabasePinger
	config       HandlerConfig
}

// NewHandler creates a new API handler
func NewHandler(
	ledger interfaces.LedgerService,
	catalog interfaces.CatalogService,
	availability interfaces.AvailabilityService,
	movements interfaces.MovementLedger,
	db DatabasePinger,
	config HandlerConfig,
) *Handler {
	return &Handler{
		ledger:       ledger,
		catalog:      catalog,
		availability: availability,
		movements:    movements,
		db:           db,
		config:       config,
	}
}

// SetupRoutes builds the gin engine with all routes and middleware
func (h *Handler) SetupRoutes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(CORSMiddleware())

	r.GET("/health/live", h.liveness)
	r.GET("/health/ready", h.readiness)

	api := r.Group("/api/v1")
	{
		api.GET("/health", h.healthCheck)

		api.GET("/inventory/items", h.listItems)
		api.POST("/inventory/items", h.createItem)
		api.GET("/inventory/items/:product_id", h.getItem)
		api.PUT("/inventory/items/:product_id", h.updateItem)
		api.POST("/inventory/items/:product_id/adjust", h.adjustStock)
		api.GET("/inventory/items/:product_id/movements", h.listMovements)

		api.POST("/inventory/check-availability", h.checkAvailability)
		api.POST("/inventory/check-availability/bulk", h.checkAvailabilityBulk)
	}

	return r
}

// healthCheck verifies service and database connectivity
func (h *Handler) healthCheck(c *gin.Context) {
	status := http.StatusOK
	dbStatus := "connected"
	overall := "healthy"

	if err := h.db.Ping(c.Request.Context()); err != nil {
		log.Error().Err(err).Msg("Database health check failed")
		status = http.StatusInternalServerError
		dbStatus = "disconnected"
		overall = "degraded"
	}

	c.JSON(status, models.HealthResponse{
		Status:      overall,
		Environment: h.config.Environment,
		Database:    dbStatus,
		Timestamp:   time.Now().UTC(),
	})
}

// liveness always succeeds while the process runs
func (h *Handler) liveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}

// readiness fails with 503 while the database is unreachable
func (h *Handler) readiness(c *gin.Context) {
	if err := h.db.Ping(c.Request.Context()); err != nil {
		log.Error().Err(err).Msg("Readiness check failed")
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "database": "disconnected"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready", "database": "connected"})
}

// listItems handles paginated item listing with an optional product filter
func (h *Handler) listItems(c *gin.Context) {
	page, ok := h.positiveIntQuery(c, "page", 1)
	if !ok {
		return
	}

	limit, ok := h.positiveIntQuery(c, "limit", 0)
	if !ok {
		return
	}
	if limit > h.config.MaxPageSize {
		Response.ValidationError(c, "limit", "exceeds the maximum page size")
		return
	}

	result, err := h.catalog.List(c.Request.Context(), page, limit, c.Query("product_id"))
	if err != nil {
		Response.InternalError(c, err)
		return
	}

	Response.Success(c, result)
}

// getItem handles single item reads
func (h *Handler) getItem(c *gin.Context) {
	productID := c.Param("product_id")

	item, err := h.catalog.GetItem(c.Request.Context(), productID)
	if err != nil {
		var notFound *models.NotFoundError
		if errors.As(err, &notFound) {
			Response.Error(c, 404, models.ErrorCodeProductNotFound, err.Error())
			return
		}
		Response.InternalError(c, err)
		return
	}

	Response.Success(c, item)
}

// createItem handles item creation
func (h *Handler) createItem(c *gin.Context) {
	var req models.CreateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Response.BindingError(c, err)
		return
	}

	item, err := h.ledger.Create(c.Request.Context(), &req)
	if err != nil {
		var (
			duplicate  *models.DuplicateProductError
			invalidQty *models.InvalidQuantityError
		)
		switch {
		case errors.As(err, &duplicate):
			Response.Error(c, 400, models.ErrorCodeDuplicateProduct, err.Error())
		case errors.As(err, &invalidQty):
			Response.Error(c, 422, models.ErrorCodeInvalidQuantity, err.Error())
		default:
			Response.InternalError(c, err)
		}
		return
	}

	Response.Created(c, item)
}

// updateItem handles absolute quantity sets
func (h *Handler) updateItem(c *gin.Context) {
	productID := c.Param("product_id")

	var req models.UpdateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Response.BindingError(c, err)
		return
	}

	item, err := h.ledger.SetQuantity(c.Request.Context(), productID, *req.Quantity, req.Reason, req.WarehouseLocation)
	if err != nil {
		var (
			notFound   *models.NotFoundError
			invalidQty *models.InvalidQuantityError
			conflict   *models.ConflictError
		)
		switch {
		case errors.As(err, &notFound):
			Response.Error(c, 404, models.ErrorCodeProductNotFound, err.Error())
		case errors.As(err, &invalidQty):
			Response.Error(c, 400, models.ErrorCodeInvalidQuantity, err.Error())
		case errors.As(err, &conflict):
			Response.Error(c, 409, models.ErrorCodeConflict, err.Error())
		default:
			Response.InternalError(c, err)
		}
		return
	}

	Response.Success(c, item)
}

// adjustStock handles relative stock adjustments
func (h *Handler) adjustStock(c *gin.Context) {
	productID := c.Param("product_id")

	var req models.AdjustStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Response.BindingError(c, err)
		return
	}

	item, err := h.ledger.Adjust(c.Request.Context(), productID, req.Quantity, req.Reason)
	if err != nil {
		var (
			notFound     *models.NotFoundError
			invalidDelta *models.InvalidDeltaError
			negative     *models.NegativeStockError
			conflict     *models.ConflictError
		)
		switch {
		case errors.As(err, &notFound):
			Response.Error(c, 404, models.ErrorCodeProductNotFound, err.Error())
		case errors.As(err, &invalidDelta):
			Response.Error(c, 422, models.ErrorCodeInvalidDelta, err.Error())
		case errors.As(err, &negative):
			Response.Error(c, 400, models.ErrorCodeNegativeStock, err.Error())
		case errors.As(err, &conflict):
			Response.Error(c, 409, models.ErrorCodeConflict, err.Error())
		default:
			Response.InternalError(c, err)
		}
		return
	}

	Response.Success(c, item)
}

// listMovements returns the audit trail for one product
func (h *Handler) listMovements(c *gin.Context) {
	productID := c.Param("product_id")

	// The trail of a missing product is a 404, not an empty list
	if _, err := h.catalog.GetItem(c.Request.Context(), productID); err != nil {
		var notFound *models.NotFoundError
		if errors.As(err, &notFound) {
			Response.Error(c, 404, models.ErrorCodeProductNotFound, err.Error())
			return
		}
		Response.InternalError(c, err)
		return
	}

	movements, err := h.movements.ListByProduct(c.Request.Context(), productID)
	if err != nil {
		Response.InternalError(c, err)
		return
	}

	Response.Success(c, gin.H{"product_id": productID, "movements": movements})
}

// checkAvailability handles single stock-sufficiency checks
func (h *Handler) checkAvailability(c *gin.Context) {
	var req models.AvailabilityCheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Response.BindingError(c, err)
		return
	}

	result, err := h.availability.Check(c.Request.Context(), req.ProductID, req.RequiredQuantity)
	if err != nil {
		var notFound *models.NotFoundError
		if errors.As(err, &notFound) {
			Response.Error(c, 404, models.ErrorCodeProductNotFound, err.Error())
			return
		}
		Response.InternalError(c, err)
		return
	}

	Response.Success(c, result)
}

// checkAvailabilityBulk handles batched checks; unknown products fail
// their own entry rather than the whole batch
func (h *Handler) checkAvailabilityBulk(c *gin.Context) {
	var req models.BulkAvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Response.BindingError(c, err)
		return
	}

	result, err := h.availability.CheckBulk(c.Request.Context(), req.Items)
	if err != nil {
		Response.InternalError(c, err)
		return
	}

	Response.Success(c, result)
}

// positiveIntQuery parses an optional positive integer query parameter,
// writing a 422 and returning ok=false when it is malformed. A zero
// fallback lets the service apply its own default.
func (h *Handler) positiveIntQuery(c *gin.Context, name string, fallback int) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return fallback, true
	}

	value, err := strconv.Atoi(raw)
	if err != nil || value < 1 {
		Response.ValidationError(c, name, "must be a positive integer")
		return 0, false
	}

	return value, true
}
