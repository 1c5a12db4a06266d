package cache

import (
	"context"
	"encoding/json"
	"time"
)

// GetJSON retrieves a cached value and unmarshals it into out. A payload
// that no longer unmarshals is treated as corrupt: it is purged and
// reported as a miss, never as an error.
func GetJSON(ctx context.Context, c Cache, key string, out interface{}) error {
	data, err := c.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		_ = c.Remove(ctx, key)
		return ErrCacheMiss
	}
	return nil
}

// SetJSON marshals value and stores it under key with the given TTL.
func SetJSON(ctx context.Context, c Cache, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.Set(ctx, key, data, ttl)
}
