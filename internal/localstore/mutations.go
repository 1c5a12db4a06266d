package localstore

import (
	"context"
	"fmt"
	"time"

	"clinicsync/internal/model"
)

// AppendMutation appends one pending mutation to the durable log.
func (s *Store) AppendMutation(ctx context.Context, item model.QueueItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pending_mutations (id, entity_type, action, payload, enqueued_at)
		VALUES (?, ?, ?, ?, ?)`,
		item.ID, item.EntityType, string(item.Action), []byte(item.Payload), item.EnqueuedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to append mutation: %w", err)
	}
	return nil
}

// ListMutations returns all pending mutations for an entity type in
// enqueue order.
func (s *Store) ListMutations(ctx context.Context, entityType string) ([]model.QueueItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, entity_type, action, payload, enqueued_at
		FROM pending_mutations
		WHERE entity_type = ?
		ORDER BY enqueued_at ASC, id ASC`, entityType)
	if err != nil {
		return nil, fmt.Errorf("failed to list mutations: %w", err)
	}
	defer rows.Close()

	var items []model.QueueItem
	for rows.Next() {
		var item model.QueueItem
		var action string
		var enqueuedAt int64
		if err := rows.Scan(&item.ID, &item.EntityType, &action, (*[]byte)(&item.Payload), &enqueuedAt); err != nil {
			return nil, fmt.Errorf("failed to scan mutation: %w", err)
		}
		item.Action = model.Action(action)
		item.EnqueuedAt = time.UnixMilli(enqueuedAt)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate mutations: %w", err)
	}
	return items, nil
}

// DeleteMutation removes one mutation by id. Called only after a
// successful replay.
func (s *Store) DeleteMutation(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, `DELETE FROM pending_mutations WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete mutation: %w", err)
	}
	return nil
}

// CountMutations counts pending mutations, optionally filtered by entity
// type (empty string counts all).
func (s *Store) CountMutations(ctx context.Context, entityType string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		count int
		err   error
	)
	if entityType == "" {
		err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM pending_mutations`).Scan(&count)
	} else {
		err = s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM pending_mutations WHERE entity_type = ?`, entityType).Scan(&count)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to count mutations: %w", err)
	}
	return count, nil
}
