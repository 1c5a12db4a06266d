package connectivity

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"clinicsync/internal/model"
)

// Prober issues the minimal read-only remote call used to decide whether
// the server is reachable. Any error means unreachable; probe errors are
// never surfaced as application errors.
type Prober interface {
	Ping(ctx context.Context) error
}

// Listener receives connectivity status updates.
type Listener func(model.ConnectivityStatus)

// Config holds monitor settings.
type Config struct {
	// ProbeInterval is how often the server is re-probed while the
	// network is up. Default: 60s.
	ProbeInterval time.Duration

	// ProbeTimeout bounds a single probe. Default: 5s.
	ProbeTimeout time.Duration
}

// Monitor is the single source of truth for "can we talk to the network"
// and "can we talk to the server". One instance is constructed at process
// start and injected into every component that needs it; it lives for the
// lifetime of the process.
type Monitor struct {
	prober Prober
	cfg    Config
	logger *zap.Logger

	mu        sync.RWMutex
	status    model.ConnectivityStatus
	listeners map[int]Listener
	nextID    int
}

// NewMonitor creates a connectivity monitor with optimistic defaults:
// online, server reachability unknown until the first probe.
func NewMonitor(prober Prober, cfg Config, logger *zap.Logger) *Monitor {
	if cfg.ProbeInterval == 0 {
		cfg.ProbeInterval = 60 * time.Second
	}
	if cfg.ProbeTimeout == 0 {
		cfg.ProbeTimeout = 5 * time.Second
	}

	return &Monitor{
		prober: prober,
		cfg:    cfg,
		logger: logger,
		status: model.ConnectivityStatus{
			State:           model.StateOnlineReachable,
			Online:          true,
			ServerReachable: nil,
		},
		listeners: make(map[int]Listener),
	}
}

// Status returns the current connectivity status. Pure read.
func (m *Monitor) Status() model.ConnectivityStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// Probe issues a short-timeout probe against the server and updates the
// status. Returns false without probing while the raw network is down.
func (m *Monitor) Probe(ctx context.Context) bool {
	if !m.Status().Online {
		return false
	}

	probeCtx, cancel := context.WithTimeout(ctx, m.cfg.ProbeTimeout)
	defer cancel()

	err := m.prober.Ping(probeCtx)
	reachable := err == nil
	if err != nil {
		m.logger.Debug("probe failed", zap.Error(err))
	}

	m.update(func(s *model.ConnectivityStatus) {
		if !s.Online {
			// Network dropped while the probe was in flight.
			return
		}
		s.ServerReachable = boolPtr(reachable)
		s.LastCheckedAt = time.Now()
		if reachable {
			s.State = model.StateOnlineReachable
		} else {
			s.State = model.StateOnlineUnreachable
		}
	})

	return reachable
}

// SetNetworkDown records a raw network-down event. Forces Offline without
// probing: no network implies no reachable server.
func (m *Monitor) SetNetworkDown() {
	m.update(func(s *model.ConnectivityStatus) {
		s.Online = false
		s.ServerReachable = boolPtr(false)
		s.State = model.StateOffline
		s.LastCheckedAt = time.Now()
	})
}

// SetNetworkUp records a raw network-up event and immediately probes the
// server to decide between OnlineReachable and OnlineUnreachable.
func (m *Monitor) SetNetworkUp(ctx context.Context) {
	m.update(func(s *model.ConnectivityStatus) {
		s.Online = true
		// Reachability stays as last probed until the probe below lands.
		s.State = model.StateOnlineUnreachable
		s.LastCheckedAt = time.Now()
	})
	m.Probe(ctx)
}

// Subscribe registers a listener. The listener is invoked once immediately
// with the current status, then on every status change. The returned
// function removes the subscription.
func (m *Monitor) Subscribe(fn func(model.ConnectivityStatus)) func() {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = fn
	current := m.status
	m.mu.Unlock()

	m.invoke(fn, current)

	return func() {
		m.mu.Lock()
		delete(m.listeners, id)
		m.mu.Unlock()
	}
}

// Run drives the periodic re-probe loop until ctx is cancelled. Probes are
// skipped while Offline; a network-up event is what brings the monitor
// back, not the timer.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.ProbeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if m.Status().Online {
				m.Probe(ctx)
			}
		case <-ctx.Done():
			return
		}
	}
}

// update applies fn to the status under the lock and broadcasts when the
// visible state changed.
func (m *Monitor) update(fn func(*model.ConnectivityStatus)) {
	m.mu.Lock()
	before := m.status
	fn(&m.status)
	after := m.status
	listeners := make([]Listener, 0, len(m.listeners))
	for _, l := range m.listeners {
		listeners = append(listeners, l)
	}
	m.mu.Unlock()

	if statusEqual(before, after) {
		return
	}

	if before.State != after.State {
		m.logger.Info("connectivity state changed",
			zap.String("from", string(before.State)),
			zap.String("to", string(after.State)))
	}

	for _, l := range listeners {
		m.invoke(l, after)
	}
}

// invoke calls a listener, recovering panics so a misbehaving subscriber
// cannot take the monitor down.
func (m *Monitor) invoke(fn Listener, status model.ConnectivityStatus) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("connectivity listener panicked", zap.Any("panic", r))
		}
	}()
	fn(status)
}

func statusEqual(a, b model.ConnectivityStatus) bool {
	if a.State != b.State || a.Online != b.Online || !a.LastCheckedAt.Equal(b.LastCheckedAt) {
		return false
	}
	if (a.ServerReachable == nil) != (b.ServerReachable == nil) {
		return false
	}
	if a.ServerReachable != nil && *a.ServerReachable != *b.ServerReachable {
		return false
	}
	return true
}

func boolPtr(b bool) *bool { return &b }
