package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/vigilo/platform/internal/domain"
	"github.com/vigilo/platform/internal/monitor"
)

// MonitorHandler handles session reevaluation and monitoring endpoints.
type MonitorHandler struct {
	monitor      *monitor.Monitor
	sweepWorkers int64
}

// NewMonitorHandler creates a new MonitorHandler.
func NewMonitorHandler(m *monitor.Monitor, sweepWorkers int64) *MonitorHandler {
	return &MonitorHandler{monitor: m, sweepWorkers: sweepWorkers}
}

func sessionIDParam(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "sessionID"))
	if err != nil {
		return uuid.Nil, domain.ErrValidation("invalid session id")
	}
	return id, nil
}

// Reevaluate handles POST /sessions/{sessionID}/reevaluate.
func (h *MonitorHandler) Reevaluate(w http.ResponseWriter, r *http.Request) {
	id, err := sessionIDParam(r)
	if err != nil {
		RespondError(w, err)
		return
	}

	var update domain.ContextUpdate
	if r.ContentLength > 0 {
		if err := DecodeJSON(r, &update); err != nil {
			RespondJSON(w, http.StatusBadRequest, map[string]string{
				"code":    "VALIDATION_ERROR",
				"message": "invalid request body",
			})
			return
		}
	}

	result, err := h.monitor.Reevaluate(r.Context(), id, update)
	if err != nil {
		RespondError(w, err)
		return
	}

	RespondJSON(w, http.StatusOK, result)
}

// Health handles GET /sessions/{sessionID}/health.
func (h *MonitorHandler) Health(w http.ResponseWriter, r *http.Request) {
	id, err := sessionIDParam(r)
	if err != nil {
		RespondError(w, err)
		return
	}

	health, err := h.monitor.Health(r.Context(), id)
	if err != nil {
		RespondError(w, err)
		return
	}

	RespondJSON(w, http.StatusOK, health)
}

// Summary handles GET /sessions/summary.
func (h *MonitorHandler) Summary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.monitor.Summary(r.Context())
	if err != nil {
		RespondError(w, err)
		return
	}

	RespondJSON(w, http.StatusOK, summary)
}

type sweepRequest struct {
	Threshold *float64 `json:"risk_threshold,omitempty"`
}

// Sweep handles POST /sessions/sweep.
func (h *MonitorHandler) Sweep(w http.ResponseWriter, r *http.Request) {
	threshold := monitor.DefaultSweepThreshold
	if r.ContentLength > 0 {
		var req sweepRequest
		if err := DecodeJSON(r, &req); err != nil {
			RespondJSON(w, http.StatusBadRequest, map[string]string{
				"code":    "VALIDATION_ERROR",
				"message": "invalid request body",
			})
			return
		}
		if req.Threshold != nil {
			threshold = *req.Threshold
		}
	}

	report, err := h.monitor.Sweep(r.Context(), threshold, h.sweepWorkers)
	if err != nil {
		RespondError(w, err)
		return
	}

	RespondJSON(w, http.StatusOK, report)
}
