package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"clinicsync/internal/model"
	"clinicsync/internal/service"
	"clinicsync/pkg/response"
	"clinicsync/pkg/syncerror"
)

// SyncHandler serves the write path and manual replay triggers.
type SyncHandler struct {
	writes *service.WriteService
}

// NewSyncHandler creates a sync handler.
func NewSyncHandler(writes *service.WriteService) *SyncHandler {
	return &SyncHandler{writes: writes}
}

// mutationRequest is the body of a submitted write.
type mutationRequest struct {
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload"`
}

// Submit handles POST /api/v1/mutations/{entityType}
func (h *SyncHandler) Submit(w http.ResponseWriter, r *http.Request) {
	entityType := chi.URLParam(r, "entityType")
	if entityType == "" {
		response.Error(w, syncerror.NewValidation("entity type is required"))
		return
	}

	var req mutationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, syncerror.NewValidation("invalid request body"))
		return
	}

	action, err := model.ParseAction(req.Action)
	if err != nil {
		response.Error(w, syncerror.NewValidation(err.Error()))
		return
	}

	result, err := h.writes.Submit(r.Context(), entityType, action, req.Payload)
	if err != nil {
		response.Error(w, err)
		return
	}

	if result.Queued {
		response.JSON(w, http.StatusAccepted, result)
		return
	}
	response.OK(w, result)
}

// Replay handles POST /api/v1/sync/{entityType}
func (h *SyncHandler) Replay(w http.ResponseWriter, r *http.Request) {
	entityType := chi.URLParam(r, "entityType")
	if entityType == "" {
		response.Error(w, syncerror.NewValidation("entity type is required"))
		return
	}

	result, err := h.writes.Replay(r.Context(), entityType)
	if err != nil {
		response.Error(w, err)
		return
	}

	response.OK(w, result)
}
