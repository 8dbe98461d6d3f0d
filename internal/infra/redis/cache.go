package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/kislikjeka/moneyledger/internal/platform/exchange"
	"github.com/kislikjeka/moneyledger/pkg/logger"
)

const (
	// DefaultTTL bounds how long a latest rate is served without a database read
	DefaultTTL = 24 * time.Hour

	// KeyPrefix is the prefix for rate cache keys
	KeyPrefix = "rate:"
)

// Cache is a Redis-backed cache of the latest rate per (source, pair)
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	logger *logger.Logger
}

// NewCache creates a new rate cache
func NewCache(client *redis.Client, log *logger.Logger) *Cache {
	return NewCacheWithTTL(client, DefaultTTL, log)
}

// NewCacheWithTTL creates a new rate cache with custom TTL
func NewCacheWithTTL(client *redis.Client, ttl time.Duration, log *logger.Logger) *Cache {
	return &Cache{
		client: client,
		ttl:    ttl,
		logger: log.WithField("component", "cache"),
	}
}

// CachedRate is the JSON shape of a cached rate. Decimals travel as strings.
type CachedRate struct {
	ID          uuid.UUID              `json:"id"`
	PairID      uuid.UUID              `json:"pair_id"`
	SourceID    uuid.UUID              `json:"source_id"`
	Rate        string                 `json:"rate"`
	EffectiveAt time.Time              `json:"effective_at"`
	RetrievedAt time.Time              `json:"retrieved_at"`
	IsEstimated bool                   `json:"is_estimated"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
}

func rateKey(sourceKey, pairKey string) string {
	return fmt.Sprintf("%s%s:%s", KeyPrefix, sourceKey, pairKey)
}

// GetRate retrieves the cached latest rate
func (c *Cache) GetRate(ctx context.Context, sourceKey, pairKey string) (*exchange.Rate, bool, error) {
	val, err := c.client.Get(ctx, rateKey(sourceKey, pairKey)).Result()
	if errors.Is(err, redis.Nil) {
		c.logger.Debug("cache miss", "source", sourceKey, "pair", pairKey)
		return nil, false, nil
	}
	if err != nil {
		c.logger.Error("cache error", "operation", "get", "source", sourceKey, "pair", pairKey, "error", err)
		return nil, false, fmt.Errorf("failed to get cached rate: %w", err)
	}

	var cached CachedRate
	if err := json.Unmarshal([]byte(val), &cached); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal cached rate: %w", err)
	}

	rate, err := decimal.NewFromString(cached.Rate)
	if err != nil {
		return nil, false, fmt.Errorf("failed to parse cached rate: %w", err)
	}

	c.logger.Debug("cache hit", "source", sourceKey, "pair", pairKey)
	return &exchange.Rate{
		ID:          cached.ID,
		PairID:      cached.PairID,
		SourceID:    cached.SourceID,
		Rate:        rate,
		EffectiveAt: cached.EffectiveAt,
		RetrievedAt: cached.RetrievedAt,
		IsEstimated: cached.IsEstimated,
		Metadata:    cached.Metadata,
		CreatedAt:   cached.CreatedAt,
		UpdatedAt:   cached.UpdatedAt,
	}, true, nil
}

// SetRate stores the latest rate with the default TTL
func (c *Cache) SetRate(ctx context.Context, sourceKey, pairKey string, r *exchange.Rate) error {
	data, err := json.Marshal(CachedRate{
		ID:          r.ID,
		PairID:      r.PairID,
		SourceID:    r.SourceID,
		Rate:        r.Rate.String(),
		EffectiveAt: r.EffectiveAt,
		RetrievedAt: r.RetrievedAt,
		IsEstimated: r.IsEstimated,
		Metadata:    r.Metadata,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal rate: %w", err)
	}

	if err := c.client.Set(ctx, rateKey(sourceKey, pairKey), data, c.ttl).Err(); err != nil {
		c.logger.Error("cache error", "operation", "set", "source", sourceKey, "pair", pairKey, "error", err)
		return fmt.Errorf("failed to set cached rate: %w", err)
	}
	return nil
}

// Delete removes a cached rate
func (c *Cache) Delete(ctx context.Context, sourceKey, pairKey string) error {
	return c.client.Del(ctx, rateKey(sourceKey, pairKey)).Err()
}

// Clear removes all cached rates
func (c *Cache) Clear(ctx context.Context) error {
	pattern := fmt.Sprintf("%s*", KeyPrefix)
	iter := c.client.Scan(ctx, 0, pattern, 0).Iterator()

	pipe := c.client.Pipeline()
	count := 0
	for iter.Next(ctx) {
		pipe.Del(ctx, iter.Val())
		count++
		if count >= 100 {
			if _, err := pipe.Exec(ctx); err != nil {
				return fmt.Errorf("failed to clear cache: %w", err)
			}
			pipe = c.client.Pipeline()
			count = 0
		}
	}

	if count > 0 {
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("failed to clear cache: %w", err)
		}
	}

	return iter.Err()
}

var _ exchange.RateCache = (*Cache)(nil)
