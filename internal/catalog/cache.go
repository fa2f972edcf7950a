package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const defaultCacheTTL = 5 * time.Minute

// Cache is a read-through JSON cache for product lookups. A nil Cache (or
// one without a client) is a no-op, so callers never branch on it.
type Cache struct {
	R   *redis.Client
	TTL time.Duration
}

func (c *Cache) ttl() time.Duration {
	if c == nil || c.TTL <= 0 {
		return defaultCacheTTL
	}
	return c.TTL
}

func productKey(id uuid.UUID) string {
	return "kasir:catalog:product:" + id.String()
}

// GetJSON loads key into dest. The second return reports a cache hit.
func (c *Cache) GetJSON(ctx context.Context, key string, dest any) (bool, error) {
	if c == nil || c.R == nil {
		return false, nil
	}
	raw, err := c.R.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, err
	}
	return true, nil
}

func (c *Cache) SetJSON(ctx context.Context, key string, v any) error {
	if c == nil || c.R == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.R.Set(ctx, key, raw, c.ttl()).Err()
}

func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	if c == nil || c.R == nil || len(keys) == 0 {
		return nil
	}
	return c.R.Del(ctx, keys...).Err()
}
