package cache

import (
	"context"
	"time"

	"go.uber.org/zap"

	"clinicsync/internal/localstore"
)

// StoreCache is the durable sqlite-backed implementation of Cache. It is
// the only defense against data loss perceived by the user when offline,
// so a Set that returned nil must survive a process restart.
type StoreCache struct {
	store     *localstore.Store
	namespace string
	logger    *zap.Logger

	// now is swapped in tests to control expiry.
	now func() time.Time
}

// NewStoreCache creates a durable cache on top of the local store. All
// keys are namespaced with prefix so unrelated datasets can be cleared
// independently.
func NewStoreCache(store *localstore.Store, namespace string, logger *zap.Logger) *StoreCache {
	return &StoreCache{
		store:     store,
		namespace: namespace,
		logger:    logger,
		now:       time.Now,
	}
}

// Get retrieves a value by key. Expired entries are purged on read, not
// proactively. Unreadable persisted rows are treated as a miss and purged
// rather than surfaced: a corrupt cache must never break the read path.
func (c *StoreCache) Get(ctx context.Context, key string) ([]byte, error) {
	fullKey := c.namespace + key

	entry, found, err := c.store.GetEntry(ctx, fullKey)
	if err != nil {
		c.logger.Warn("cache read failed, treating as miss",
			zap.String("key", key), zap.Error(err))
		return nil, ErrCacheMiss
	}
	if !found {
		return nil, ErrCacheMiss
	}

	if entry.TTLMillis < 0 || len(entry.Payload) == 0 {
		c.logger.Warn("purging corrupt cache entry", zap.String("key", key))
		_ = c.store.DeleteEntry(ctx, fullKey)
		return nil, ErrCacheMiss
	}

	expiresAt := entry.StoredAt + entry.TTLMillis
	if c.now().UnixMilli() > expiresAt {
		_ = c.store.DeleteEntry(ctx, fullKey)
		return nil, ErrCacheMiss
	}

	return entry.Payload, nil
}

// Set stores a value with the given TTL. Persists synchronously.
func (c *StoreCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.store.PutEntry(ctx, localstore.Entry{
		Key:       c.namespace + key,
		Payload:   value,
		StoredAt:  c.now().UnixMilli(),
		TTLMillis: ttl.Milliseconds(),
	})
}

// Remove deletes a value by key.
func (c *StoreCache) Remove(ctx context.Context, key string) error {
	return c.store.DeleteEntry(ctx, c.namespace+key)
}

// ClearPrefix removes all entries whose key starts with prefix.
func (c *StoreCache) ClearPrefix(ctx context.Context, prefix string) error {
	return c.store.DeleteEntriesByPrefix(ctx, c.namespace+prefix)
}
