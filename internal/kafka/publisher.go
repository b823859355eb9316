package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"stock-ledger-service/internal/interfaces"
	"stock-ledger-service/internal/models"
	"stock-ledger-service/internal/repository"
)

// OutboxWorkerConfig tunes the outbox drain loop
type OutboxWorkerConfig struct {
	LockKey      int64
	BatchSize    int
	PollInterval time.Duration
}

// Publisher delivers stock movement events to Kafka. Messages are keyed
// by product id so a hash balancer keeps per-product ordering.
type Publisher struct {
	writer *kafka.Writer
}

// NewPublisher creates a new Kafka publisher for the movements topic
func NewPublisher(brokers []string, topic string) *Publisher {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		Async:                  false,
		AllowAutoTopicCreation: true,

		BatchTimeout: 10 * time.Millisecond,
		BatchSize:    1,
		MaxAttempts:  3,
		WriteTimeout: 10 * time.Second,
	}

	return &Publisher{writer: writer}
}

// PublishMovement publishes one movement event
func (p *Publisher) PublishMovement(ctx context.Context, event *models.MovementEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal movement event: %w", err)
	}

	message := kafka.Message{
		Key:   []byte(event.ProductID),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(event.EventType)},
			{Key: "event-id", Value: []byte(event.EventID)},
		},
	}

	if err := p.writer.WriteMessages(ctx, message); err != nil {
		log.Error().Err(err).
			Str("product_id", event.ProductID).
			Str("event_id", event.EventID).
			Msg("Failed to publish movement event")
		return fmt.Errorf("failed to publish movement event: %w", err)
	}

	log.Debug().
		Str("product_id", event.ProductID).
		Int("quantity_change", event.QuantityChange).
		Int("new_quantity", event.NewQuantity).
		Msg("Published movement event")

	return nil
}

// Close closes the Kafka writer
func (p *Publisher) Close() error {
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("failed to close movements writer: %w", err)
	}
	return nil
}

// OutboxSource is the slice of the outbox repository the worker drains
type OutboxSource interface {
	TryAcquireLock(ctx context.Context, lockKey int64) (bool, error)
	ReleaseLock(ctx context.Context, lockKey int64) error
	FetchBatchOrdered(ctx context.Context, limit int) ([]repository.OutboxEvent, error)
	MarkPublished(ctx context.Context, ids []int64) error
	IncrementPublishAttempts(ctx context.Context, id int64, lastError string) error
}

// OutboxWorker drains staged movement events and delivers them through a
// MessagePublisher. An advisory lock keeps concurrent instances from
// double-publishing.
type OutboxWorker struct {
	publisher interfaces.MessagePublisher
	outbox    OutboxSource
	cfg       OutboxWorkerConfig
}

// NewOutboxWorker creates a new outbox worker
func NewOutboxWorker(publisher interfaces.MessagePublisher, outbox OutboxSource, cfg OutboxWorkerConfig) *OutboxWorker {
	return &OutboxWorker{publisher: publisher, outbox: outbox, cfg: cfg}
}

// Run drains the outbox on a fixed interval until the context is cancelled
func (w *OutboxWorker) Run(ctx context.Context) {
	log.Info().
		Int64("lock_key", w.cfg.LockKey).
		Int("batch_size", w.cfg.BatchSize).
		Dur("poll_interval", w.cfg.PollInterval).
		Msg("Starting outbox worker")

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Stopping outbox worker")
			return
		case <-ticker.C:
			if err := w.Drain(ctx); err != nil {
				log.Error().Err(err).Msg("Failed to process outbox batch")
			}
		}
	}
}

// Drain publishes one ordered batch of staged events. Delivery stops at
// the first failure so per-product ordering is preserved.
func (w *OutboxWorker) Drain(ctx context.Context) error {
	acquired, err := w.outbox.TryAcquireLock(ctx, w.cfg.LockKey)
	if err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !acquired {
		log.Debug().Msg("Outbox lock held by another worker, skipping batch")
		return nil
	}
	defer func() {
		if err := w.outbox.ReleaseLock(ctx, w.cfg.LockKey); err != nil {
			log.Error().Err(err).Msg("Failed to release outbox lock")
		}
	}()

	events, err := w.outbox.FetchBatchOrdered(ctx, w.cfg.BatchSize)
	if err != nil {
		return fmt.Errorf("failed to fetch outbox batch: %w", err)
	}
	if len(events) == 0 {
		return nil
	}

	var publishedIDs []int64
	for _, event := range events {
		var movement models.MovementEvent
		if err := json.Unmarshal([]byte(event.Payload), &movement); err != nil {
			log.Error().Err(err).
				Int64("outbox_id", event.ID).
				Str("key", event.Key).
				Msg("Malformed outbox payload")

			if incErr := w.outbox.IncrementPublishAttempts(ctx, event.ID, err.Error()); incErr != nil {
				log.Error().Err(incErr).Int64("outbox_id", event.ID).Msg("Failed to record publish attempt")
			}
			break
		}

		if err := w.publisher.PublishMovement(ctx, &movement); err != nil {
			log.Error().Err(err).
				Int64("outbox_id", event.ID).
				Str("key", event.Key).
				Msg("Failed to publish outbox event")

			if incErr := w.outbox.IncrementPublishAttempts(ctx, event.ID, err.Error()); incErr != nil {
				log.Error().Err(incErr).Int64("outbox_id", event.ID).Msg("Failed to record publish attempt")
			}
			break
		}

		publishedIDs = append(publishedIDs, event.ID)
	}

	if len(publishedIDs) > 0 {
		if err := w.outbox.MarkPublished(ctx, publishedIDs); err != nil {
			return fmt.Errorf("failed to mark events as published: %w", err)
		}
		log.Info().
			Int("published_count", len(publishedIDs)).
			Int("batch_count", len(events)).
			Msg("Outbox batch processed")
	}

	return nil
}
