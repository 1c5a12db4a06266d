package signal

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"clinicsync/internal/model"
)

type signalCollector struct {
	mu      sync.Mutex
	signals []Signal
}

func (c *signalCollector) record(sig Signal) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.signals = append(c.signals, sig)
}

func (c *signalCollector) kinds() []Kind {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Kind, 0, len(c.signals))
	for _, s := range c.signals {
		out = append(out, s.Kind)
	}
	return out
}

func status(state model.State) model.ConnectivityStatus {
	return model.ConnectivityStatus{State: state, Online: state != model.StateOffline}
}

func newTestHub(t *testing.T) (*Hub, *signalCollector) {
	t.Helper()
	h := NewHub(zap.NewNop())
	col := &signalCollector{}
	unsub := h.Subscribe(col.record)
	t.Cleanup(unsub)
	return h, col
}

func TestOfflineSignalFiresOncePerTransition(t *testing.T) {
	h, col := newTestHub(t)

	h.ObserveConnectivity(status(model.StateOffline))
	h.ObserveConnectivity(status(model.StateOffline))
	h.ObserveConnectivity(status(model.StateOffline))

	assert.Equal(t, []Kind{KindOffline}, col.kinds())
}

func TestInitialReachableStateIsNotAReconnection(t *testing.T) {
	h, col := newTestHub(t)

	h.ObserveConnectivity(status(model.StateOnlineReachable))
	assert.Empty(t, col.kinds(), "starting connected is the normal case, not news")

	h.ObserveConnectivity(status(model.StateOffline))
	h.ObserveConnectivity(status(model.StateOnlineReachable))
	assert.Equal(t, []Kind{KindOffline, KindReconnected}, col.kinds())
}

func TestReconnectedFiresPerOfflineEpisode(t *testing.T) {
	h, col := newTestHub(t)

	h.ObserveConnectivity(status(model.StateOffline))
	h.ObserveConnectivity(status(model.StateOnlineReachable))
	h.ObserveConnectivity(status(model.StateOffline))
	h.ObserveConnectivity(status(model.StateOnlineReachable))

	assert.Equal(t, []Kind{KindOffline, KindReconnected, KindOffline, KindReconnected}, col.kinds())
}

func TestCacheFallbackFiresOncePerEpisode(t *testing.T) {
	h, col := newTestHub(t)

	h.ObserveConnectivity(status(model.StateOffline))
	h.NotifyCacheFallback()
	h.NotifyCacheFallback()
	h.NotifyCacheFallback()

	assert.Equal(t, []Kind{KindOffline, KindUsingCachedData}, col.kinds())

	// Reconnecting re-arms the signal for the next episode.
	h.ObserveConnectivity(status(model.StateOnlineReachable))
	h.ObserveConnectivity(status(model.StateOffline))
	h.NotifyCacheFallback()

	kinds := col.kinds()
	assert.Equal(t, KindUsingCachedData, kinds[len(kinds)-1])
}

func TestPendingSignalFiresOnlyOnCountChange(t *testing.T) {
	h, col := newTestHub(t)

	h.NotifyPending(1)
	h.NotifyPending(1)
	h.NotifyPending(2)
	h.NotifyPending(2)
	h.NotifyPending(0)

	counts := []int{}
	col.mu.Lock()
	for _, s := range col.signals {
		counts = append(counts, s.Count)
	}
	col.mu.Unlock()
	assert.Equal(t, []int{1, 2, 0}, counts)
}

func TestRecentKeepsLatestSignalPerKind(t *testing.T) {
	h, _ := newTestHub(t)

	h.NotifyPending(1)
	h.NotifyPending(3)
	h.ObserveConnectivity(status(model.StateOffline))

	recent := h.Recent()
	require.Len(t, recent, 2)

	byKind := map[Kind]Signal{}
	for _, s := range recent {
		byKind[s.Kind] = s
	}
	assert.Equal(t, 3, byKind[KindPendingChanges].Count)
	assert.Contains(t, byKind[KindOffline].Message, "offline")
}

func TestUnsubscribedListenerStopsReceiving(t *testing.T) {
	h := NewHub(zap.NewNop())
	col := &signalCollector{}
	unsub := h.Subscribe(col.record)

	h.NotifyPending(1)
	unsub()
	h.NotifyPending(2)

	assert.Equal(t, []Kind{KindPendingChanges}, col.kinds())
}

func TestPanickingListenerDoesNotBreakOthers(t *testing.T) {
	h := NewHub(zap.NewNop())
	h.Subscribe(func(Signal) { panic("listener bug") })
	col := &signalCollector{}
	h.Subscribe(col.record)

	assert.NotPanics(t, func() { h.NotifyPending(1) })
	assert.Equal(t, []Kind{KindPendingChanges}, col.kinds())
}
