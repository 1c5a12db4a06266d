package handler

import (
	"net/http"
	"time"

	"clinicsync/internal/model"
	"clinicsync/internal/retry"
	"clinicsync/internal/service"
	"clinicsync/internal/signal"
	"clinicsync/pkg/response"
)

// StatusHandler serves connectivity and sync status to the embedding UI.
type StatusHandler struct {
	monitor   retry.StatusSource
	writes    *service.WriteService
	signals   *signal.Hub
	version   string
	startTime time.Time
}

// NewStatusHandler creates a status handler.
func NewStatusHandler(monitor retry.StatusSource, writes *service.WriteService, signals *signal.Hub, version string) *StatusHandler {
	return &StatusHandler{
		monitor:   monitor,
		writes:    writes,
		signals:   signals,
		version:   version,
		startTime: time.Now(),
	}
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
}

// Health handles GET /api/v1/health
func (h *StatusHandler) Health(w http.ResponseWriter, r *http.Request) {
	response.OK(w, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Version:   h.version,
	})
}

// StatusResponse represents the sync status response.
type StatusResponse struct {
	Connectivity  model.ConnectivityStatus `json:"connectivity"`
	PendingCount  int                      `json:"pending_count"`
	Signals       []signal.Signal          `json:"signals"`
	UptimeSeconds int64                    `json:"uptime_seconds"`
}

// Status handles GET /api/v1/status
func (h *StatusHandler) Status(w http.ResponseWriter, r *http.Request) {
	pending, err := h.writes.Pending(r.Context(), "")
	if err != nil {
		response.Error(w, err)
		return
	}

	response.OK(w, StatusResponse{
		Connectivity:  h.monitor.Status(),
		PendingCount:  pending,
		Signals:       h.signals.Recent(),
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
	})
}
