package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"stock-ledger-service/internal/models"
)

// CacheClient wraps Redis for item read caching with cluster support
type CacheClient struct {
	client    redis.UniversalClient
	ttl       time.Duration
	keyPrefix string
}

// NewCacheClient creates a new Redis cache client. With clusterMode set
// it connects to a Redis cluster, otherwise to a single instance.
func NewCacheClient(addrs []string, password string, clusterMode bool, ttl time.Duration, keyPrefix string) *CacheClient {
	var client redis.UniversalClient

	if clusterMode {
		client = redis.NewClusterClient(&redis.ClusterOptions{
			Addrs:          addrs,
			Password:       password,
			MaxRetries:     3,
			PoolSize:       50,
			MinIdleConns:   5,
			PoolTimeout:    30 * time.Second,
			MaxRedirects:   8,
			RouteByLatency: true,
		})
	} else {
		addr := "localhost:6379"
		if len(addrs) > 0 {
			addr = addrs[0]
		}
		client = redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       0,
			PoolSize: 10,
		})
	}

	return &CacheClient{
		client:    client,
		ttl:       ttl,
		keyPrefix: keyPrefix,
	}
}

// GetItem retrieves an item from cache, returning (nil, nil) on a miss
func (c *CacheClient) GetItem(ctx context.Context, productID string) (*models.InventoryItem, error) {
	key := c.itemKey(productID)

	val, err := c.client.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		log.Error().Err(err).Str("product_id", productID).Msg("Failed to get item from cache")
		return nil, fmt.Errorf("failed to get item from cache: %w", err)
	}

	var item models.InventoryItem
	if err := json.Unmarshal([]byte(val), &item); err != nil {
		log.Error().Err(err).Str("product_id", productID).Msg("Failed to unmarshal cached item")
		return nil, fmt.Errorf("failed to unmarshal cached item: %w", err)
	}

	log.Debug().Str("product_id", productID).Msg("Cache hit for item")
	return &item, nil
}

// SetItem stores an item in cache with the configured TTL
func (c *CacheClient) SetItem(ctx context.Context, item *models.InventoryItem) error {
	key := c.itemKey(item.ProductID)

	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("failed to marshal item: %w", err)
	}

	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		log.Error().Err(err).Str("product_id", item.ProductID).Msg("Failed to set item in cache")
		return fmt.Errorf("failed to set item in cache: %w", err)
	}

	log.Debug().Str("product_id", item.ProductID).Msg("Cached item")
	return nil
}

// DeleteItem removes an item from cache
func (c *CacheClient) DeleteItem(ctx context.Context, productID string) error {
	key := c.itemKey(productID)

	if err := c.client.Del(ctx, key).Err(); err != nil {
		log.Error().Err(err).Str("product_id", productID).Msg("Failed to delete item from cache")
		return fmt.Errorf("failed to delete item from cache: %w", err)
	}

	log.Debug().Str("product_id", productID).Msg("Deleted item from cache")
	return nil
}

// Ping checks if Redis is available
func (c *CacheClient) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (c *CacheClient) Close() error {
	return c.client.Close()
}

func (c *CacheClient) itemKey(productID string) string {
	return fmt.Sprintf("%sitem:%s", c.keyPrefix, productID)
}
