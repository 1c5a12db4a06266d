package signal

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"clinicsync/internal/model"
)

// Kind names a user-visible signal.
type Kind string

const (
	KindReconnected     Kind = "reconnected"
	KindOffline         Kind = "offline"
	KindUsingCachedData Kind = "using_cached_data"
	KindPendingChanges  Kind = "pending_changes"
)

// Signal is one user-visible notification.
type Signal struct {
	Kind    Kind      `json:"kind"`
	Message string    `json:"message"`
	Count   int       `json:"count,omitempty"`
	At      time.Time `json:"at"`
}

// Listener receives published signals.
type Listener func(Signal)

// Hub collects the "reconnected", "offline", "using cached data" and
// "N changes pending" signals and fires each at most once per underlying
// state transition, so a burst of failed requests does not become a burst
// of notifications.
type Hub struct {
	logger *zap.Logger

	mu            sync.Mutex
	listeners     map[int]Listener
	nextID        int
	lastState     model.State
	haveState     bool
	cacheNotified bool
	lastPending   int
	havePending   bool
	last          []Signal
}

// NewHub creates a signal hub.
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		logger:    logger,
		listeners: make(map[int]Listener),
	}
}

// Subscribe registers a listener for future signals. The returned function
// removes the subscription.
func (h *Hub) Subscribe(fn Listener) func() {
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.listeners[id] = fn
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		delete(h.listeners, id)
		h.mu.Unlock()
	}
}

// Recent returns the most recent signal per kind, for the status API.
func (h *Hub) Recent() []Signal {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Signal, len(h.last))
	copy(out, h.last)
	return out
}

// ObserveConnectivity is wired as a connectivity monitor subscriber. It
// translates state transitions into at-most-once signals and re-arms the
// "using cached data" signal when the server becomes reachable again.
func (h *Hub) ObserveConnectivity(status model.ConnectivityStatus) {
	h.mu.Lock()
	prev, had := h.lastState, h.haveState
	h.lastState, h.haveState = status.State, true
	if status.State == model.StateOnlineReachable {
		h.cacheNotified = false
	}
	h.mu.Unlock()

	if had && prev == status.State {
		return
	}

	switch status.State {
	case model.StateOffline:
		h.publish(Signal{Kind: KindOffline, Message: "device is offline", At: time.Now()})
	case model.StateOnlineReachable:
		// The initial optimistic state is not a reconnection.
		if had {
			h.publish(Signal{Kind: KindReconnected, Message: "reconnected", At: time.Now()})
		}
	}
}

// NotifyCacheFallback fires "using cached data" once per offline episode.
func (h *Hub) NotifyCacheFallback() {
	h.mu.Lock()
	if h.cacheNotified {
		h.mu.Unlock()
		return
	}
	h.cacheNotified = true
	h.mu.Unlock()

	h.publish(Signal{Kind: KindUsingCachedData, Message: "using cached data, possibly stale", At: time.Now()})
}

// NotifyPending fires "N changes pending" only when the count changes.
func (h *Hub) NotifyPending(count int) {
	h.mu.Lock()
	if h.havePending && h.lastPending == count {
		h.mu.Unlock()
		return
	}
	h.lastPending, h.havePending = count, true
	h.mu.Unlock()

	h.publish(Signal{
		Kind:    KindPendingChanges,
		Message: fmt.Sprintf("%d changes pending sync", count),
		Count:   count,
		At:      time.Now(),
	})
}

func (h *Hub) publish(sig Signal) {
	h.mu.Lock()
	replaced := false
	for i := range h.last {
		if h.last[i].Kind == sig.Kind {
			h.last[i] = sig
			replaced = true
			break
		}
	}
	if !replaced {
		h.last = append(h.last, sig)
	}
	listeners := make([]Listener, 0, len(h.listeners))
	for _, l := range h.listeners {
		listeners = append(listeners, l)
	}
	h.mu.Unlock()

	h.logger.Info("signal", zap.String("kind", string(sig.Kind)), zap.String("message", sig.Message))

	for _, fn := range listeners {
		h.invoke(fn, sig)
	}
}

func (h *Hub) invoke(fn Listener, sig Signal) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("signal listener panicked", zap.Any("panic", r))
		}
	}()
	fn(sig)
}
