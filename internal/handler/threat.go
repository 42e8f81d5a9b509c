package handler

import (
	"encoding/json"
	"log/slog"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/vigilo/platform/internal/domain"
	"github.com/vigilo/platform/internal/service"
	"github.com/vigilo/platform/internal/threatintel"
)

// ThreatHandler handles threat intelligence endpoints.
type ThreatHandler struct {
	gateway   *threatintel.Gateway
	audit     service.EventRecorder
	publisher service.Publisher
	logger    *slog.Logger
}

// NewThreatHandler creates a new ThreatHandler.
func NewThreatHandler(gateway *threatintel.Gateway, audit service.EventRecorder, publisher service.Publisher, logger *slog.Logger) *ThreatHandler {
	return &ThreatHandler{gateway: gateway, audit: audit, publisher: publisher, logger: logger}
}

type threatCheckRequest struct {
	IPAddress string               `json:"ip_address"`
	UserAgent string               `json:"user_agent"`
	Context   domain.ThreatContext `json:"context"`
}

// Check handles POST /threat/check.
func (h *ThreatHandler) Check(w http.ResponseWriter, r *http.Request) {
	var req threatCheckRequest
	if err := DecodeJSON(r, &req); err != nil {
		RespondJSON(w, http.StatusBadRequest, map[string]string{
			"code":    "VALIDATION_ERROR",
			"message": "invalid request body",
		})
		return
	}
	if net.ParseIP(req.IPAddress) == nil {
		RespondError(w, domain.ErrValidation("a valid ip_address is required"))
		return
	}
	if req.UserAgent == "" {
		req.UserAgent = r.UserAgent()
	}

	assessment := h.gateway.CheckIP(r.Context(), req.IPAddress, req.UserAgent, req.Context)
	h.recordCheck(r, assessment)

	RespondJSON(w, http.StatusOK, assessment)
}

// Reputation handles GET /threat/reputation/{ip}.
func (h *ThreatHandler) Reputation(w http.ResponseWriter, r *http.Request) {
	ip := chi.URLParam(r, "ip")
	if net.ParseIP(ip) == nil {
		RespondError(w, domain.ErrValidation("a valid ip address is required"))
		return
	}

	summary := h.gateway.Reputation(r.Context(), ip)
	RespondJSON(w, http.StatusOK, summary)
}

// Enrich handles POST /sessions/{sessionID}/enrich.
func (h *ThreatHandler) Enrich(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "sessionID"))
	if err != nil {
		RespondError(w, domain.ErrValidation("invalid session id"))
		return
	}

	enrichment, err := h.gateway.EnrichSession(r.Context(), id)
	if err != nil {
		RespondError(w, err)
		return
	}

	RespondJSON(w, http.StatusOK, enrichment)
}

// recordCheck appends the check to the audit trail and publishes it. Both are
// best effort; the assessment is already decided.
func (h *ThreatHandler) recordCheck(r *http.Request, assessment domain.ThreatAssessment) {
	data, _ := json.Marshal(map[string]any{
		"threat_score": assessment.Score,
		"is_malicious": assessment.IsMalicious,
		"indicators":   assessment.Indicators,
	})
	event := &domain.AuditEvent{
		ID:        uuid.New(),
		EventType: domain.EventThreatCheck,
		EventData: data,
		IPAddress: assessment.IPAddress,
		Timestamp: assessment.CheckedAt,
	}
	if err := h.audit.RecordEvent(r.Context(), event); err != nil {
		h.logger.Error("audit record failed", "event_type", domain.EventThreatCheck, "ip", assessment.IPAddress, "error", err)
	}

	engineEvent := domain.NewThreatCheckEvent(assessment)
	value, _ := json.Marshal(engineEvent)
	if err := h.publisher.Publish(r.Context(), domain.TopicThreatChecks, []byte(assessment.IPAddress), value); err != nil {
		h.logger.Error("publish threat check failed", "ip", assessment.IPAddress, "error", err)
	}
}
