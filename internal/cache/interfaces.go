package cache

import (
	"context"
	"time"
)

// Cache is the expiring key-value store used as the read fallback when the
// remote service cannot be reached. This abstraction allows swapping
// between the memory cache (tests, cache-less dev runs) and the durable
// sqlite-backed cache (production) without changing business logic.
type Cache interface {
	// Get retrieves a value by key. Returns ErrCacheMiss if the key is
	// absent or expired; an expired entry is purged as a side effect.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value with the given TTL, overwriting any existing
	// entry. The write is synchronous.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Remove deletes a value by key.
	Remove(ctx context.Context, key string) error

	// ClearPrefix removes all entries whose key starts with prefix.
	ClearPrefix(ctx context.Context, prefix string) error
}

// CacheError is a sentinel cache error.
type CacheError string

func (e CacheError) Error() string { return string(e) }

const (
	// ErrCacheMiss indicates the key was not found or had expired.
	ErrCacheMiss CacheError = "cache miss"
)
