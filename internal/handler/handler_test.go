package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"clinicsync/internal/availability"
	"clinicsync/internal/cache"
	"clinicsync/internal/fetch"
	"clinicsync/internal/localstore"
	"clinicsync/internal/model"
	"clinicsync/internal/queue"
	"clinicsync/internal/retry"
	"clinicsync/internal/service"
	"clinicsync/internal/signal"
)

type stubMonitor struct {
	state model.State
}

func (s *stubMonitor) Status() model.ConnectivityStatus {
	return model.ConnectivityStatus{State: s.state, Online: s.state != model.StateOffline}
}

type stubRemote struct {
	slots  []model.TimeSlotConfig
	counts model.BookingCounts
}

func (s *stubRemote) TimeSlots(ctx context.Context, professionalID string) ([]model.TimeSlotConfig, error) {
	return s.slots, nil
}

func (s *stubRemote) BlackoutDays(ctx context.Context, professionalID string) ([]model.BlackoutDay, error) {
	return nil, nil
}

func (s *stubRemote) BookingCounts(ctx context.Context, professionalID, date string) (model.BookingCounts, error) {
	return s.counts, nil
}

type noopApplier struct{}

func (noopApplier) Apply(ctx context.Context, item model.QueueItem) error { return nil }

// testServer wires the handlers the way cmd/syncd does, against stubs.
func testServer(t *testing.T, monitor *stubMonitor, remote *stubRemote) *httptest.Server {
	t.Helper()

	store, err := localstore.Open(t.TempDir()+"/handler.db", zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	mem := cache.NewMemoryCache()
	t.Cleanup(func() { mem.Close() })

	logger := zap.NewNop()
	exec := retry.New(monitor, logger)
	opts := retry.Options{MaxRetries: 1, InitialDelay: time.Millisecond}
	fetcher := fetch.New(mem, exec, monitor, nil, fetch.Config{DefaultTTL: time.Minute, Retry: opts}, logger)
	calc := availability.NewCalculator(fetcher, remote, logger)

	q := queue.New(store, monitor, nil, logger)
	writes := service.NewWriteService(monitor, exec, q, noopApplier{}, opts, logger)
	signals := signal.NewHub(logger)

	statusH := NewStatusHandler(monitor, writes, signals, "test")
	availH := NewAvailabilityHandler(calc)
	syncH := NewSyncHandler(writes)

	r := chi.NewRouter()
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", statusH.Health)
		r.Get("/status", statusH.Status)
		r.Get("/availability/{professionalID}", availH.Compute)
		r.Post("/mutations/{entityType}", syncH.Submit)
		r.Post("/sync/{entityType}", syncH.Replay)
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func decodeBody(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	defer resp.Body.Close()
	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func TestHealthEndpoint(t *testing.T) {
	srv := testServer(t, &stubMonitor{state: model.StateOnlineReachable}, &stubRemote{})

	resp, err := http.Get(srv.URL + "/api/v1/health")
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, true, body["success"])
}

func TestStatusReportsConnectivityAndPending(t *testing.T) {
	srv := testServer(t, &stubMonitor{state: model.StateOffline}, &stubRemote{})

	// Queue one write first so pending_count is non-zero.
	resp, err := http.Post(srv.URL+"/api/v1/mutations/bookings", "application/json",
		strings.NewReader(`{"action":"create","payload":{"time":"09:00"}}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	body := decodeBody(t, resp)
	data := body["data"].(map[string]interface{})
	assert.Equal(t, true, data["queued"])
	assert.NotEmpty(t, data["id"])

	resp, err = http.Get(srv.URL + "/api/v1/status")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body = decodeBody(t, resp)
	data = body["data"].(map[string]interface{})
	assert.Equal(t, float64(1), data["pending_count"])

	conn := data["connectivity"].(map[string]interface{})
	assert.Equal(t, string(model.StateOffline), conn["state"])
}

func TestSubmitAppliedDirectlyReturnsOK(t *testing.T) {
	srv := testServer(t, &stubMonitor{state: model.StateOnlineReachable}, &stubRemote{})

	resp, err := http.Post(srv.URL+"/api/v1/mutations/bookings", "application/json",
		strings.NewReader(`{"action":"create","payload":{"time":"09:00"}}`))
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	data := body["data"].(map[string]interface{})
	assert.NotEqual(t, true, data["queued"])
}

func TestSubmitRejectsMalformedRequests(t *testing.T) {
	srv := testServer(t, &stubMonitor{state: model.StateOnlineReachable}, &stubRemote{})

	resp, err := http.Post(srv.URL+"/api/v1/mutations/bookings", "application/json",
		strings.NewReader(`{not json`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp, err = http.Post(srv.URL+"/api/v1/mutations/bookings", "application/json",
		strings.NewReader(`{"action":"merge","payload":{}}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	body := decodeBody(t, resp)
	errBody := body["error"].(map[string]interface{})
	assert.Equal(t, "VALIDATION_ERROR", errBody["code"])
}

func TestReplayWithoutReachableServerReturns503(t *testing.T) {
	srv := testServer(t, &stubMonitor{state: model.StateOffline}, &stubRemote{})

	resp, err := http.Post(srv.URL+"/api/v1/sync/bookings", "application/json", nil)
	require.NoError(t, err)

	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	body := decodeBody(t, resp)
	errBody := body["error"].(map[string]interface{})
	assert.Equal(t, "CANNOT_SYNC_NOW", errBody["code"])
}

func TestAvailabilityEndpoint(t *testing.T) {
	remote := &stubRemote{
		slots:  []model.TimeSlotConfig{{Time: "09:00", MaxAppointments: 2}},
		counts: model.BookingCounts{"09:00": 2},
	}
	srv := testServer(t, &stubMonitor{state: model.StateOnlineReachable}, remote)

	resp, err := http.Get(srv.URL + "/api/v1/availability/p1?date=2026-09-01")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	slots := body["data"].([]interface{})
	require.Len(t, slots, 1)
	slot := slots[0].(map[string]interface{})
	assert.Equal(t, "09:00", slot["time"])
	assert.Equal(t, false, slot["available"])
}

func TestAvailabilityRejectsBadDate(t *testing.T) {
	srv := testServer(t, &stubMonitor{state: model.StateOnlineReachable}, &stubRemote{})

	resp, err := http.Get(srv.URL + "/api/v1/availability/p1?date=tomorrow")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
