package api

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"stock-ledger-service/internal/models"
)

// RequestIDMiddleware adds a unique request ID to each request
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}

		c.Header("X-Request-ID", requestID)
		c.Set("request_id", requestID)
		c.Next()
	}
}

// CORSMiddleware handles CORS headers
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT")
		c.Header("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, Authorization, X-Request-ID")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

// ResponseHelpers writes responses in the service's uniform shapes
type ResponseHelpers struct{}

// Response is the shared helper instance used by all handlers
var Response = &ResponseHelpers{}

// Success sends the resource directly with 200
func (h *ResponseHelpers) Success(c *gin.Context, resource interface{}) {
	c.JSON(200, resource)
}

// Created sends a 201 with the created resource
func (h *ResponseHelpers) Created(c *gin.Context, resource interface{}) {
	c.JSON(201, resource)
}

// Error sends the uniform error body {"detail": ..., "code": ...}
func (h *ResponseHelpers) Error(c *gin.Context, status int, code models.ErrorCode, detail any) {
	c.JSON(status, models.ErrorBody{Detail: detail, Code: code})
}

// ValidationError sends a 422 for a single invalid field or parameter
func (h *ResponseHelpers) ValidationError(c *gin.Context, field, message string) {
	h.Error(c, 422, models.ErrorCodeValidation, map[string]string{"field": field, "message": message})
}

// BindingError unpacks gin binding failures into field-level details
func (h *ResponseHelpers) BindingError(c *gin.Context, err error) {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		violations := make([]map[string]string, 0, len(validationErrors))
		for _, fieldErr := range validationErrors {
			violations = append(violations, map[string]string{
				"field":   strings.ToLower(fieldErr.Field()),
				"message": validationMessage(fieldErr),
			})
		}
		h.Error(c, 422, models.ErrorCodeValidation, violations)
		return
	}

	h.Error(c, 422, models.ErrorCodeValidation, "invalid request body")
}

// InternalError sends a 500 without echoing storage internals
func (h *ResponseHelpers) InternalError(c *gin.Context, err error) {
	requestID := requestIDFrom(c)
	log.Error().
		Err(err).
		Str("request_id", requestID).
		Str("path", c.FullPath()).
		Msg("Internal server error")

	code := models.ErrorCodeInternal
	var persistence *models.PersistenceError
	if errors.As(err, &persistence) {
		code = models.ErrorCodePersistence
	}

	h.Error(c, 500, code, "an unexpected error occurred")
}

func requestIDFrom(c *gin.Context) string {
	if requestID, exists := c.Get("request_id"); exists {
		return requestID.(string)
	}
	return ""
}

func validationMessage(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return "this field is required"
	case "min":
		return "value is too small"
	case "max":
		return "value is too large"
	default:
		return "invalid value"
	}
}
