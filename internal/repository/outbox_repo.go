package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"stock-ledger-service/internal/interfaces"
	"stock-ledger-service/internal/models"
)

// OutboxEvent represents a staged event in the outbox table
type OutboxEvent struct {
	ID              int64     `db:"id" json:"id"`
	EventType       string    `db:"event_type" json:"event_type"`
	Key             string    `db:"key" json:"key"`
	Payload         string    `db:"payload" json:"payload"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	Published       bool      `db:"published" json:"published"`
	PublishAttempts int       `db:"publish_attempts" json:"publish_attempts"`
	LastError       *string   `db:"last_error" json:"last_error,omitempty"`
}

// OutboxRepository stages movement events in the same transaction as the
// state change and hands batches to the publisher under an advisory lock
type OutboxRepository struct {
	db *sqlx.DB
}

// NewOutboxRepository creates a new outbox repository
func NewOutboxRepository(db *sqlx.DB) *OutboxRepository {
	return &OutboxRepository{db: db}
}

// InsertEvent stages an event inside the caller's transaction. Falls back
// to the pool when no transaction is supplied.
func (r *OutboxRepository) InsertEvent(ctx context.Context, tx interfaces.Tx, eventType, key string, payload interface{}) error {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return &models.PersistenceError{Op: "marshal outbox payload", Cause: err}
	}

	query := `INSERT INTO outbox (event_type, key, payload, created_at)
			  VALUES ($1, $2, $3, NOW())`

	var executor interface {
		ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	}
	if tx != nil {
		executor = tx.(*sqlx.Tx)
	} else {
		executor = r.db
	}

	if _, err := executor.ExecContext(ctx, query, eventType, key, string(payloadJSON)); err != nil {
		log.Error().Err(err).
			Str("event_type", eventType).
			Str("key", key).
			Msg("Failed to insert outbox event")
		return &models.PersistenceError{Op: "insert outbox event", Cause: err}
	}

	return nil
}

// TryAcquireLock attempts a Postgres advisory lock so only one publisher
// instance drains the outbox at a time
func (r *OutboxRepository) TryAcquireLock(ctx context.Context, lockKey int64) (bool, error) {
	var acquired bool
	if err := r.db.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", lockKey).Scan(&acquired); err != nil {
		log.Error().Err(err).Int64("lock_key", lockKey).Msg("Failed to acquire advisory lock")
		return false, &models.PersistenceError{Op: "acquire advisory lock", Cause: err}
	}
	return acquired, nil
}

// ReleaseLock releases the advisory lock
func (r *OutboxRepository) ReleaseLock(ctx context.Context, lockKey int64) error {
	var released bool
	if err := r.db.QueryRowContext(ctx, "SELECT pg_advisory_unlock($1)", lockKey).Scan(&released); err != nil {
		log.Error().Err(err).Int64("lock_key", lockKey).Msg("Failed to release advisory lock")
		return &models.PersistenceError{Op: "release advisory lock", Cause: err}
	}
	if !released {
		log.Warn().Int64("lock_key", lockKey).Msg("Advisory lock was not held when releasing")
	}
	return nil
}

// FetchBatchOrdered returns unpublished events in insertion order so
// per-product event ordering survives the outbox hop
func (r *OutboxRepository) FetchBatchOrdered(ctx context.Context, limit int) ([]OutboxEvent, error) {
	events := []OutboxEvent{}
	query := `SELECT id, event_type, key, payload, created_at, published, publish_attempts, last_error
			  FROM outbox
			  WHERE published = FALSE
			  ORDER BY id ASC
			  LIMIT $1`

	if err := r.db.SelectContext(ctx, &events, query, limit); err != nil {
		log.Error().Err(err).Msg("Failed to fetch outbox batch")
		return nil, &models.PersistenceError{Op: "fetch outbox batch", Cause: err}
	}

	return events, nil
}

// MarkPublished flags events as delivered
func (r *OutboxRepository) MarkPublished(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	query := `UPDATE outbox
			  SET published = TRUE, published_at = NOW()
			  WHERE id = ANY($1)`

	if _, err := r.db.ExecContext(ctx, query, pq.Array(ids)); err != nil {
		log.Error().Err(err).Ints64("ids", ids).Msg("Failed to mark outbox events as published")
		return &models.PersistenceError{Op: "mark outbox published", Cause: err}
	}

	return nil
}

// IncrementPublishAttempts records a failed delivery attempt
func (r *OutboxRepository) IncrementPublishAttempts(ctx context.Context, id int64, lastError string) error {
	query := `UPDATE outbox
			  SET publish_attempts = publish_attempts + 1, last_error = $2
			  WHERE id = $1`

	if _, err := r.db.ExecContext(ctx, query, id, lastError); err != nil {
		log.Error().Err(err).Int64("id", id).Msg("Failed to increment publish attempts")
		return &models.PersistenceError{Op: "increment publish attempts", Cause: err}
	}

	return nil
}
