package service

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"clinicsync/internal/model"
	"clinicsync/internal/queue"
	"clinicsync/internal/retry"
	"clinicsync/pkg/syncerror"
)

// Applier pushes one mutation to the remote service. Satisfied by the
// remote client.
type Applier interface {
	Apply(ctx context.Context, item model.QueueItem) error
}

// SubmitResult reports what happened to a submitted write.
type SubmitResult struct {
	// ID identifies the mutation; when queued it is the queue item id.
	ID string `json:"id"`

	// Queued is true when the write was stored for later replay instead
	// of being applied remotely.
	Queued bool `json:"queued"`
}

// WriteService is the single write path: apply remotely when the server is
// reachable, otherwise queue durably and report "will sync when online".
type WriteService struct {
	monitor   retry.StatusSource
	exec      *retry.Executor
	queue     *queue.Queue
	applier   Applier
	retryOpts retry.Options
	logger    *zap.Logger
}

// NewWriteService creates a write service. retryOpts bound the remote
// attempt of a submitted write.
func NewWriteService(monitor retry.StatusSource, exec *retry.Executor, q *queue.Queue, applier Applier, retryOpts retry.Options, logger *zap.Logger) *WriteService {
	return &WriteService{
		monitor:   monitor,
		exec:      exec,
		queue:     q,
		applier:   applier,
		retryOpts: retryOpts,
		logger:    logger,
	}
}

// Submit applies one write. While the server is reachable the mutation
// goes straight to the remote through the retry executor; a
// connectivity-class failure falls back to the queue. Any other remote
// failure (validation and friends) surfaces immediately with its message
// intact. Without a reachable server the write is queued without touching
// the network.
func (s *WriteService) Submit(ctx context.Context, entityType string, action model.Action, payload json.RawMessage) (SubmitResult, error) {
	if !action.Valid() {
		return SubmitResult{}, syncerror.NewValidation("unknown action " + string(action))
	}

	if s.monitor.Status().State == model.StateOnlineReachable {
		item := model.QueueItem{
			EntityType: entityType,
			Action:     action,
			Payload:    payload,
		}
		err := s.exec.DoWithOptions(ctx, s.retryOpts, func(ctx context.Context) error {
			return s.applier.Apply(ctx, item)
		})
		if err == nil {
			return SubmitResult{}, nil
		}
		if !syncerror.IsConnectivity(err) {
			return SubmitResult{}, err
		}
		s.logger.Info("remote write failed, queueing",
			zap.String("entity_type", entityType), zap.Error(err))
	}

	id, err := s.queue.Enqueue(ctx, entityType, action, payload)
	if err != nil {
		return SubmitResult{}, err
	}
	return SubmitResult{ID: id, Queued: true}, nil
}

// Replay replays all queued mutations for one entity type against the
// remote service.
func (s *WriteService) Replay(ctx context.Context, entityType string) (queue.Result, error) {
	return s.queue.ReplayAll(ctx, entityType, s.applier.Apply)
}

// Pending returns the number of queued mutations for an entity type
// (empty string counts all).
func (s *WriteService) Pending(ctx context.Context, entityType string) (int, error) {
	return s.queue.Count(ctx, entityType)
}
