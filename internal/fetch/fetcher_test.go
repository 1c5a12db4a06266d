package fetch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"clinicsync/internal/cache"
	"clinicsync/internal/model"
	"clinicsync/internal/retry"
	"clinicsync/pkg/syncerror"
)

type stubMonitor struct {
	mu    sync.Mutex
	state model.State
}

func (s *stubMonitor) Status() model.ConnectivityStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return model.ConnectivityStatus{State: s.state, Online: s.state != model.StateOffline}
}

func (s *stubMonitor) setState(state model.State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
}

type fallbackRecorder struct {
	mu    sync.Mutex
	fired int
}

func (r *fallbackRecorder) NotifyCacheFallback() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fired++
}

func (r *fallbackRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fired
}

func newTestFetcher(t *testing.T, monitor *stubMonitor) (*Fetcher, cache.Cache, *fallbackRecorder) {
	t.Helper()
	mem := cache.NewMemoryCache()
	t.Cleanup(func() { mem.Close() })

	rec := &fallbackRecorder{}
	exec := retry.New(monitor, zap.NewNop())
	f := New(mem, exec, monitor, rec, Config{
		DefaultTTL: time.Minute,
		Retry:      retry.Options{MaxRetries: 1, InitialDelay: time.Millisecond},
	}, zap.NewNop())
	return f, mem, rec
}

func TestFetchOnlineCachesFreshData(t *testing.T) {
	monitor := &stubMonitor{state: model.StateOnlineReachable}
	f, c, rec := newTestFetcher(t, monitor)
	ctx := context.Background()

	calls := 0
	data, err := f.Fetch(ctx, "professionals-list", func(ctx context.Context) ([]byte, error) {
		calls++
		return []byte(`["p1","p2"]`), nil
	}, Options{})
	require.NoError(t, err)

	assert.Equal(t, []byte(`["p1","p2"]`), data)
	assert.Equal(t, 1, calls)
	assert.Zero(t, rec.count(), "fresh data is not a cache fallback")

	cached, err := c.Get(ctx, "professionals-list")
	require.NoError(t, err)
	assert.Equal(t, data, cached)
}

func TestFetchOfflineServesCacheWithoutCallingRemote(t *testing.T) {
	monitor := &stubMonitor{state: model.StateOnlineReachable}
	f, _, rec := newTestFetcher(t, monitor)
	ctx := context.Background()

	_, err := f.Fetch(ctx, "professionals-list", func(ctx context.Context) ([]byte, error) {
		return []byte(`["p1"]`), nil
	}, Options{})
	require.NoError(t, err)

	monitor.setState(model.StateOffline)

	calls := 0
	data, err := f.Fetch(ctx, "professionals-list", func(ctx context.Context) ([]byte, error) {
		calls++
		return nil, errors.New("must not be reached")
	}, Options{})
	require.NoError(t, err)

	assert.Equal(t, []byte(`["p1"]`), data)
	assert.Zero(t, calls, "remote is never consulted while offline")
	assert.Equal(t, 1, rec.count(), "cache fallback is flagged")
}

func TestFetchOfflineWithoutCacheFails(t *testing.T) {
	monitor := &stubMonitor{state: model.StateOffline}
	f, _, _ := newTestFetcher(t, monitor)

	_, err := f.Fetch(context.Background(), "professionals-list", func(ctx context.Context) ([]byte, error) {
		t.Fatal("remote must not be reached")
		return nil, nil
	}, Options{})
	assert.ErrorIs(t, err, syncerror.ErrNoDataOffline)
}

func TestFetchServerFailureFallsBackToCache(t *testing.T) {
	monitor := &stubMonitor{state: model.StateOnlineReachable}
	f, c, rec := newTestFetcher(t, monitor)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "slots-p1", []byte(`[{"time":"09:00"}]`), time.Minute))

	data, err := f.Fetch(ctx, "slots-p1", func(ctx context.Context) ([]byte, error) {
		return nil, syncerror.ErrServerUnreachable
	}, Options{})
	require.NoError(t, err)

	assert.Equal(t, []byte(`[{"time":"09:00"}]`), data)
	assert.Equal(t, 1, rec.count())
}

func TestFetchLastResortPropagatesErrorVerbatim(t *testing.T) {
	monitor := &stubMonitor{state: model.StateOnlineReachable}
	f, _, _ := newTestFetcher(t, monitor)

	rejection := syncerror.NewValidation("date must not be in the past")
	calls := 0
	_, err := f.Fetch(context.Background(), "bookings-p1-2026-09-01", func(ctx context.Context) ([]byte, error) {
		calls++
		return nil, rejection
	}, Options{})

	var vErr *syncerror.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "date must not be in the past", vErr.Message)

	// 2 retried attempts plus the one direct last-resort call.
	assert.Equal(t, 3, calls)
}

func TestForceRefreshSkipsCacheFallback(t *testing.T) {
	monitor := &stubMonitor{state: model.StateOnlineReachable}
	f, c, rec := newTestFetcher(t, monitor)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "slots-p1", []byte(`["stale"]`), time.Minute))

	// A reachable remote always wins, forced or not.
	data, err := f.Fetch(ctx, "slots-p1", func(ctx context.Context) ([]byte, error) {
		return []byte(`["fresh"]`), nil
	}, Options{ForceRefresh: true})
	require.NoError(t, err)
	assert.Equal(t, []byte(`["fresh"]`), data)

	// When forced and the remote fails, the stale value is not served.
	remoteErr := errors.New("boom")
	_, err = f.Fetch(ctx, "slots-p1", func(ctx context.Context) ([]byte, error) {
		return nil, remoteErr
	}, Options{ForceRefresh: true})
	assert.ErrorIs(t, err, remoteErr)
	assert.Zero(t, rec.count())
}

func TestFetchHonorsTTLOverride(t *testing.T) {
	monitor := &stubMonitor{state: model.StateOnlineReachable}
	f, c, _ := newTestFetcher(t, monitor)
	ctx := context.Background()

	_, err := f.Fetch(ctx, "blackouts-p1", func(ctx context.Context) ([]byte, error) {
		return []byte(`[]`), nil
	}, Options{TTL: 30 * time.Millisecond})
	require.NoError(t, err)

	time.Sleep(60 * time.Millisecond)
	_, err = c.Get(ctx, "blackouts-p1")
	assert.ErrorIs(t, err, cache.ErrCacheMiss)
}

type professional struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func TestJSONFetchRoundTrip(t *testing.T) {
	monitor := &stubMonitor{state: model.StateOnlineReachable}
	f, _, _ := newTestFetcher(t, monitor)
	ctx := context.Background()

	got, err := JSON(ctx, f, "professionals-list", func(ctx context.Context) ([]professional, error) {
		return []professional{{ID: "p1", Name: "Dr. Reyes"}}, nil
	}, Options{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Dr. Reyes", got[0].Name)

	// Served from cache once offline, decoded into the same type.
	monitor.setState(model.StateOffline)
	got, err = JSON(ctx, f, "professionals-list", func(ctx context.Context) ([]professional, error) {
		t.Fatal("remote must not be reached")
		return nil, nil
	}, Options{})
	require.NoError(t, err)
	assert.Equal(t, "p1", got[0].ID)
}

func TestJSONPurgesUndecodableCachedPayload(t *testing.T) {
	monitor := &stubMonitor{state: model.StateOffline}
	f, c, _ := newTestFetcher(t, monitor)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "professionals-list", []byte(`{not json`), time.Minute))

	_, err := JSON(ctx, f, "professionals-list", func(ctx context.Context) ([]professional, error) {
		return nil, nil
	}, Options{})
	assert.ErrorIs(t, err, syncerror.ErrNoDataOffline)

	_, err = c.Get(ctx, "professionals-list")
	assert.ErrorIs(t, err, cache.ErrCacheMiss, "corrupt payload is purged")
}
