package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Priya8975/showing-webhooks/internal/ingest"
)

const cacheGenerationKey = "stats_cache:generation"

// Cache stores JSON read models in Redis. Keys are namespaced by a generation
// counter, so Invalidate drops every entry with a single INCR.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

func NewCache(client *redis.Client, ttl time.Duration, logger zerolog.Logger) *Cache {
	return &Cache{
		client: client,
		ttl:    ttl,
		logger: logger.With().Str("component", "cache").Logger(),
	}
}

func (c *Cache) key(ctx context.Context, name string) (string, error) {
	gen, err := c.client.Get(ctx, cacheGenerationKey).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return "", fmt.Errorf("reading cache generation: %w", err)
	}
	return fmt.Sprintf("stats_cache:%d:%s", gen, name), nil
}

// Get decodes the cached value for name into dest. It reports false on a miss.
func (c *Cache) Get(ctx context.Context, name string, dest any) (bool, error) {
	key, err := c.key(ctx, name)
	if err != nil {
		return false, err
	}
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("reading cache entry %s: %w", name, err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("decoding cache entry %s: %w", name, err)
	}
	return true, nil
}

func (c *Cache) Set(ctx context.Context, name string, value any) error {
	key, err := c.key(ctx, name)
	if err != nil {
		return err
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encoding cache entry %s: %w", name, err)
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("writing cache entry %s: %w", name, err)
	}
	return nil
}

func (c *Cache) Invalidate(ctx context.Context) error {
	if err := c.client.Incr(ctx, cacheGenerationKey).Err(); err != nil {
		return fmt.Errorf("bumping cache generation: %w", err)
	}
	return nil
}

// Notify drops cached stats after any committed change. Duplicates change
// nothing and leave the cache alone.
func (c *Cache) Notify(ctx context.Context, r ingest.Receipt) {
	if r.Status == ingest.StatusDuplicate {
		return
	}
	if err := c.Invalidate(ctx); err != nil {
		c.logger.Warn().Err(err).Str("event_id", r.EventID).Msg("failed to invalidate stats cache")
	}
}
