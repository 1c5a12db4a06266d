package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"clinicsync/internal/localstore"
	"clinicsync/internal/model"
	"clinicsync/pkg/syncerror"
	"clinicsync/pkg/uid"
)

// StatusSource reports the current connectivity status.
type StatusSource interface {
	Status() model.ConnectivityStatus
}

// PendingSink receives pending-count updates after queue changes. Satisfied
// by the signal hub.
type PendingSink interface {
	NotifyPending(count int)
}

// ApplyFunc replays one queued item against the remote service.
type ApplyFunc func(ctx context.Context, item model.QueueItem) error

// Result summarizes one replay pass.
type Result struct {
	Processed int `json:"processed"`
	Failed    int `json:"failed"`
}

// Queue is the durable, ordered log of writes that could not be applied
// remotely. Items are appended without touching the network and removed
// only after a successful replay.
type Queue struct {
	store   *localstore.Store
	monitor StatusSource
	signals PendingSink
	logger  *zap.Logger
}

// New creates a pending-mutation queue. signals may be nil.
func New(store *localstore.Store, monitor StatusSource, signals PendingSink, logger *zap.Logger) *Queue {
	return &Queue{
		store:   store,
		monitor: monitor,
		signals: signals,
		logger:  logger,
	}
}

// Enqueue appends one mutation to the durable log and returns its id.
// Never blocks on the network.
func (q *Queue) Enqueue(ctx context.Context, entityType string, action model.Action, payload interface{}) (string, error) {
	if entityType == "" {
		return "", fmt.Errorf("entity type is required")
	}
	if !action.Valid() {
		return "", fmt.Errorf("unknown action %q", action)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to encode payload: %w", err)
	}

	item := model.QueueItem{
		ID:         uid.NewOrdered(),
		EntityType: entityType,
		Action:     action,
		Payload:    data,
		EnqueuedAt: time.Now(),
	}
	if err := q.store.AppendMutation(ctx, item); err != nil {
		return "", err
	}

	q.logger.Info("mutation queued",
		zap.String("id", item.ID),
		zap.String("entity_type", entityType),
		zap.String("action", string(action)))
	q.notifyPending(ctx)

	return item.ID, nil
}

// ReplayAll replays queued items for entityType in enqueue order. A
// successful apply removes the item; a failed apply leaves it queued and
// moves on, so one bad item cannot block unrelated pending writes. Without
// a reachable server it returns a zero Result and ErrCannotSyncNow.
func (q *Queue) ReplayAll(ctx context.Context, entityType string, apply ApplyFunc) (Result, error) {
	if q.monitor.Status().State != model.StateOnlineReachable {
		return Result{}, syncerror.ErrCannotSyncNow
	}

	items, err := q.store.ListMutations(ctx, entityType)
	if err != nil {
		return Result{}, err
	}

	var res Result
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		if !item.Action.Valid() {
			// Corrupt row: purge it so it cannot wedge the queue.
			q.logger.Warn("purging corrupt queue item", zap.String("id", item.ID))
			_ = q.store.DeleteMutation(ctx, item.ID)
			res.Failed++
			continue
		}

		if err := apply(ctx, item); err != nil {
			q.logger.Warn("replay failed, item stays queued",
				zap.String("id", item.ID), zap.Error(err))
			res.Failed++
			continue
		}

		if err := q.store.DeleteMutation(ctx, item.ID); err != nil {
			q.logger.Error("failed to remove replayed item",
				zap.String("id", item.ID), zap.Error(err))
			res.Failed++
			continue
		}
		res.Processed++
	}

	if res.Processed > 0 {
		q.logger.Info("replay finished",
			zap.String("entity_type", entityType),
			zap.Int("processed", res.Processed),
			zap.Int("failed", res.Failed))
	}
	q.notifyPending(ctx)

	return res, nil
}

// Count returns the number of pending items, optionally filtered by entity
// type (empty string counts all). Diagnostic, used to surface "N changes
// pending" to the user.
func (q *Queue) Count(ctx context.Context, entityType string) (int, error) {
	return q.store.CountMutations(ctx, entityType)
}

func (q *Queue) notifyPending(ctx context.Context) {
	if q.signals == nil {
		return
	}
	count, err := q.store.CountMutations(ctx, "")
	if err != nil {
		q.logger.Warn("failed to count pending mutations", zap.Error(err))
		return
	}
	q.signals.NotifyPending(count)
}
