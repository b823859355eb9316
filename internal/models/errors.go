package models

import (
	"errors"
	"fmt"
)

// ErrorCode represents standardized machine-readable error codes
type ErrorCode string

const (
	ErrorCodeProductNotFound  ErrorCode = "PRODUCT_NOT_FOUND"
	ErrorCodeDuplicateProduct ErrorCode = "DUPLICATE_PRODUCT"
	ErrorCodeInvalidQuantity  ErrorCode = "INVALID_QUANTITY"
	ErrorCodeInvalidDelta     ErrorCode = "INVALID_DELTA"
	ErrorCodeNegativeStock    ErrorCode = "NEGATIVE_STOCK"
	ErrorCodeConflict         ErrorCode = "CONFLICT"
	ErrorCodePersistence      ErrorCode = "PERSISTENCE_ERROR"
	ErrorCodeValidation       ErrorCode = "VALIDATION_ERROR"
	ErrorCodeInternal         ErrorCode = "INTERNAL_ERROR"
)

// NotFoundError signals that no item exists for the product id
type NotFoundError struct {
	ProductID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("product %s not found", e.ProductID)
}

// DuplicateProductError signals a create against an existing product id
type DuplicateProductError struct {
	ProductID string
}

func (e *DuplicateProductError) Error() string {
	return fmt.Sprintf("product %s already exists", e.ProductID)
}

// InvalidQuantityError signals a negative absolute quantity
type InvalidQuantityError struct {
	Quantity int
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be non-negative, got %d", e.Quantity)
}

// InvalidDeltaError signals a zero adjustment delta
type InvalidDeltaError struct{}

func (e *InvalidDeltaError) Error() string {
	return "adjustment delta must be non-zero"
}

// NegativeStockError signals an adjustment that would drive stock below zero
type NegativeStockError struct {
	ProductID string
	Current   int
	Delta     int
}

func (e *NegativeStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: current %d, requested change %d, would result in %d",
		e.ProductID, e.Current, e.Delta, e.Current+e.Delta)
}

// ConflictError signals that the compare-and-set retry budget was exhausted
// under concurrent writers
type ConflictError struct {
	ProductID string
	Attempts  int
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("concurrent update conflict on product %s after %d attempts", e.ProductID, e.Attempts)
}

// PersistenceError wraps a storage-layer failure. The cause is logged but
// never echoed to callers.
type PersistenceError struct {
	Op    string
	Cause error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure during %s: %v", e.Op, e.Cause)
}

func (e *PersistenceError) Unwrap() error {
	return e.Cause
}

// ErrorCodeOf maps a domain error to its stable code
func ErrorCodeOf(err error) ErrorCode {
	var (
		notFound    *NotFoundError
		duplicate   *DuplicateProductError
		invalidQty  *InvalidQuantityError
		invalidDlt  *InvalidDeltaError
		negative    *NegativeStockError
		conflict    *ConflictError
		persistence *PersistenceError
	)

	switch {
	case errors.As(err, &notFound):
		return ErrorCodeProductNotFound
	case errors.As(err, &duplicate):
		return ErrorCodeDuplicateProduct
	case errors.As(err, &invalidQty):
		return ErrorCodeInvalidQuantity
	case errors.As(err, &invalidDlt):
		return ErrorCodeInvalidDelta
	case errors.As(err, &negative):
		return ErrorCodeNegativeStock
	case errors.As(err, &conflict):
		return ErrorCodeConflict
	case errors.As(err, &persistence):
		return ErrorCodePersistence
	default:
		return ErrorCodeInternal
	}
}
