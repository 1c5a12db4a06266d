package localstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Entry is one persisted cache row. Expiry is the cache's concern; the
// store only records what it was given.
type Entry struct {
	Key       string
	Payload   []byte
	StoredAt  int64 // epoch millis
	TTLMillis int64
}

// GetEntry loads a cache entry. The second return value is false when the
// key does not exist.
func (s *Store) GetEntry(ctx context.Context, key string) (Entry, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var e Entry
	row := s.db.QueryRowContext(ctx,
		`SELECT key, payload, stored_at, ttl_millis FROM cache_entries WHERE key = ?`, key)
	if err := row.Scan(&e.Key, &e.Payload, &e.StoredAt, &e.TTLMillis); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Entry{}, false, nil
		}
		return Entry{}, false, fmt.Errorf("failed to read cache entry: %w", err)
	}
	return e, true, nil
}

// PutEntry inserts or overwrites a cache entry. The write is synchronous:
// once PutEntry returns, the entry is durable.
func (s *Store) PutEntry(ctx context.Context, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cache_entries (key, payload, stored_at, ttl_millis)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			payload = excluded.payload,
			stored_at = excluded.stored_at,
			ttl_millis = excluded.ttl_millis`,
		e.Key, e.Payload, e.StoredAt, e.TTLMillis)
	if err != nil {
		return fmt.Errorf("failed to write cache entry: %w", err)
	}
	return nil
}

// DeleteEntry removes a cache entry by key.
func (s *Store) DeleteEntry(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete cache entry: %w", err)
	}
	return nil
}

// DeleteEntriesByPrefix removes all cache entries whose key starts with prefix.
func (s *Store) DeleteEntriesByPrefix(ctx context.Context, prefix string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM cache_entries WHERE key LIKE ? ESCAPE '\'`, escapeLike(prefix)+"%"); err != nil {
		return fmt.Errorf("failed to delete cache entries by prefix: %w", err)
	}
	return nil
}

// escapeLike escapes LIKE wildcards so a prefix matches literally.
func escapeLike(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '%', '_', '\\':
			out = append(out, '\\')
		}
		out = append(out, s[i])
	}
	return string(out)
}
