package handler

import (
	"net"
	"net/http"
	"strings"

	"github.com/vigilo/platform/internal/service"
)

// AccessHandler handles access evaluation and step-up verification endpoints.
type AccessHandler struct {
	accessSvc *service.AccessService
}

// NewAccessHandler creates a new AccessHandler.
func NewAccessHandler(accessSvc *service.AccessService) *AccessHandler {
	return &AccessHandler{accessSvc: accessSvc}
}

// Evaluate handles POST /access/evaluate.
func (h *AccessHandler) Evaluate(w http.ResponseWriter, r *http.Request) {
	var input service.EvaluateInput
	if err := DecodeJSON(r, &input); err != nil {
		RespondJSON(w, http.StatusBadRequest, map[string]string{
			"code":    "VALIDATION_ERROR",
			"message": "invalid request body",
		})
		return
	}
	if input.IPAddress == "" {
		input.IPAddress = clientIP(r)
	}
	if input.UserAgent == "" {
		input.UserAgent = r.UserAgent()
	}

	result, err := h.accessSvc.Evaluate(r.Context(), input)
	if err != nil {
		RespondError(w, err)
		return
	}

	RespondJSON(w, http.StatusOK, result)
}

type verifyStepUpRequest struct {
	Token string `json:"stepup_token"`
	Code  string `json:"code"`
}

// VerifyStepUp handles POST /access/stepup/verify.
func (h *AccessHandler) VerifyStepUp(w http.ResponseWriter, r *http.Request) {
	var req verifyStepUpRequest
	if err := DecodeJSON(r, &req); err != nil {
		RespondJSON(w, http.StatusBadRequest, map[string]string{
			"code":    "VALIDATION_ERROR",
			"message": "invalid request body",
		})
		return
	}
	if req.Token == "" || req.Code == "" {
		RespondJSON(w, http.StatusBadRequest, map[string]string{
			"code":    "VALIDATION_ERROR",
			"message": "stepup_token and code are required",
		})
		return
	}

	userID, err := h.accessSvc.VerifyStepUp(r.Context(), req.Token, req.Code)
	if err != nil {
		RespondError(w, err)
		return
	}

	RespondJSON(w, http.StatusOK, map[string]string{
		"status":  "verified",
		"user_id": userID.String(),
	})
}

// clientIP extracts the originating client address, honoring the proxy header.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
