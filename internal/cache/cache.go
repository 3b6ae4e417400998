// Package cache is a read-through Redis cache for latest-quote lookups.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/b3quotes/b3-quote-service/internal/config"
	"github.com/b3quotes/b3-quote-service/internal/models"
)

// ErrMiss is returned when no cached entry exists for a ticker
var ErrMiss = errors.New("cache miss")

// QuoteCache caches latest quotes per ticker with a TTL
type QuoteCache struct {
	client *redis.Client
	ttl    time.Duration
}

// New creates a QuoteCache from configuration
func New(cfg config.RedisConfig) *QuoteCache {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &QuoteCache{client: client, ttl: cfg.TTL}
}

func latestKey(ticker string) string {
	return "quotes:latest:" + ticker
}

// GetLatest returns the cached latest quote for a ticker, or ErrMiss
func (c *QuoteCache) GetLatest(ctx context.Context, ticker string) (*models.Quote, error) {
	data, err := c.client.Get(ctx, latestKey(ticker)).Bytes()
	if err == redis.Nil {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read quote cache: %w", err)
	}

	var q models.Quote
	if err := json.Unmarshal(data, &q); err != nil {
		return nil, fmt.Errorf("failed to decode cached quote: %w", err)
	}
	return &q, nil
}

// SetLatest caches the latest quote for a ticker
func (c *QuoteCache) SetLatest(ctx context.Context, q *models.Quote) error {
	data, err := json.Marshal(q)
	if err != nil {
		return fmt.Errorf("failed to encode quote for cache: %w", err)
	}
	if err := c.client.Set(ctx, latestKey(q.Ticker), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write quote cache: %w", err)
	}
	return nil
}

// Close closes the Redis client
func (c *QuoteCache) Close() error {
	return c.client.Close()
}
