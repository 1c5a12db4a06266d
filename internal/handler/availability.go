package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"clinicsync/internal/availability"
	"clinicsync/pkg/response"
	"clinicsync/pkg/syncerror"
)

// AvailabilityHandler serves computed slot availability.
type AvailabilityHandler struct {
	calc *availability.Calculator
}

// NewAvailabilityHandler creates an availability handler.
func NewAvailabilityHandler(calc *availability.Calculator) *AvailabilityHandler {
	return &AvailabilityHandler{calc: calc}
}

// Compute handles GET /api/v1/availability/{professionalID}?date=YYYY-MM-DD
func (h *AvailabilityHandler) Compute(w http.ResponseWriter, r *http.Request) {
	professionalID := chi.URLParam(r, "professionalID")
	if professionalID == "" {
		response.Error(w, syncerror.NewValidation("professional id is required"))
		return
	}

	date := r.URL.Query().Get("date")
	if _, err := time.Parse("2006-01-02", date); err != nil {
		response.Error(w, syncerror.NewValidation("date must be YYYY-MM-DD"))
		return
	}

	slots, err := h.calc.Compute(r.Context(), professionalID, date)
	if err != nil {
		response.Error(w, err)
		return
	}

	response.OK(w, slots)
}
