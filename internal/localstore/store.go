package localstore

import (
	"database/sql"
	"fmt"
	"sync"

	"go.uber.org/zap"

	_ "modernc.org/sqlite" // Pure Go SQLite driver - no CGO required
)

// Store is the durable local store shared by the TTL cache and the
// pending-mutation queue. Thread-safe with WAL mode; SQLite allows a
// single writer, so writes serialize through one connection.
type Store struct {
	db     *sql.DB
	mu     sync.RWMutex
	logger *zap.Logger
}

// Open opens (or creates) the local store at dbPath.
func Open(dbPath string, logger *zap.Logger) (*Store, error) {
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000", dbPath)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open local store: %w", err)
	}

	// SQLite only supports 1 writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := createTables(db); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	logger.Info("local store opened", zap.String("path", dbPath))
	return &Store{db: db, logger: logger}, nil
}

func createTables(db *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS cache_entries (
		key TEXT PRIMARY KEY,
		payload BLOB NOT NULL,
		stored_at INTEGER NOT NULL,
		ttl_millis INTEGER NOT NULL
	);
	CREATE TABLE IF NOT EXISTS pending_mutations (
		id TEXT PRIMARY KEY,
		entity_type TEXT NOT NULL,
		action TEXT NOT NULL,
		payload BLOB NOT NULL,
		enqueued_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_pending_entity ON pending_mutations(entity_type, enqueued_at, id);
	`
	_, err := db.Exec(query)
	return err
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
