package interfaces

import (
	"context"

	"stock-ledger-service/internal/models"
)

// MessagePublisher defines the contract for publishing movement events
type MessagePublisher interface {
	PublishMovement(ctx context.Context, event *models.MovementEvent) error
	Close() error
}
