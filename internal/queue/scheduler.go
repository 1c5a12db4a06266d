package queue

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"clinicsync/internal/model"
)

// Subscribable is the slice of the connectivity monitor the scheduler
// needs: status change notifications.
type Subscribable interface {
	Subscribe(fn func(model.ConnectivityStatus)) func()
}

// ReplayScheduler replays the queue whenever connectivity returns. Entity
// types are registered up front with the apply function that pushes them
// to the remote service; a transition to OnlineReachable kicks one replay
// pass over all of them.
type ReplayScheduler struct {
	queue  *Queue
	logger *zap.Logger

	mu          sync.Mutex
	applyFns    map[string]ApplyFunc
	order       []string
	unsubscribe func()
	lastState   model.State
	running     bool

	// replayTimeout bounds one full replay pass.
	replayTimeout time.Duration
}

// NewReplayScheduler creates a replay scheduler.
func NewReplayScheduler(q *Queue, logger *zap.Logger) *ReplayScheduler {
	return &ReplayScheduler{
		queue:         q,
		logger:        logger,
		applyFns:      make(map[string]ApplyFunc),
		replayTimeout: 2 * time.Minute,
	}
}

// Register binds an entity type to its replay function. Registration order
// is preserved across replay passes; ordering within a type is the queue's
// guarantee, cross-type ordering is not promised.
func (s *ReplayScheduler) Register(entityType string, apply ApplyFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.applyFns[entityType]; !ok {
		s.order = append(s.order, entityType)
	}
	s.applyFns[entityType] = apply
}

// Start subscribes to the connectivity monitor. Replays fire on every
// transition into OnlineReachable, including the initial callback when the
// process starts already connected with items left over from a prior run.
func (s *ReplayScheduler) Start(monitor Subscribable) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	s.unsubscribe = monitor.Subscribe(func(status model.ConnectivityStatus) {
		s.mu.Lock()
		prev := s.lastState
		s.lastState = status.State
		s.mu.Unlock()

		if status.State == model.StateOnlineReachable && prev != model.StateOnlineReachable {
			go s.Trigger()
		}
	})

	s.logger.Info("replay scheduler started")
}

// Stop removes the monitor subscription.
func (s *ReplayScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
	s.running = false
}

// Trigger runs one replay pass over all registered entity types.
func (s *ReplayScheduler) Trigger() {
	ctx, cancel := context.WithTimeout(context.Background(), s.replayTimeout)
	defer cancel()

	s.mu.Lock()
	types := make([]string, len(s.order))
	copy(types, s.order)
	fns := make(map[string]ApplyFunc, len(s.applyFns))
	for k, v := range s.applyFns {
		fns[k] = v
	}
	s.mu.Unlock()

	for _, entityType := range types {
		res, err := s.queue.ReplayAll(ctx, entityType, fns[entityType])
		if err != nil {
			s.logger.Warn("scheduled replay aborted",
				zap.String("entity_type", entityType), zap.Error(err))
			return
		}
		if res.Failed > 0 {
			s.logger.Warn("scheduled replay left items queued",
				zap.String("entity_type", entityType), zap.Int("failed", res.Failed))
		}
	}
}
