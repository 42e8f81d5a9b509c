// Package admin exposes the policy administration endpoints.
package admin

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/vigilo/platform/internal/domain"
	"github.com/vigilo/platform/internal/handler"
	"github.com/vigilo/platform/internal/policy"
)

// PoliciesHandler handles the policy CRUD endpoints.
type PoliciesHandler struct {
	admin *policy.Admin
}

// NewPoliciesHandler creates a new PoliciesHandler.
func NewPoliciesHandler(admin *policy.Admin) *PoliciesHandler {
	return &PoliciesHandler{admin: admin}
}

func policyIDParam(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "policyID"))
	if err != nil {
		return uuid.Nil, domain.ErrValidation("invalid policy id")
	}
	return id, nil
}

// List handles GET /admin/policies.
func (h *PoliciesHandler) List(w http.ResponseWriter, r *http.Request) {
	policies, err := h.admin.List(r.Context())
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	handler.RespondJSON(w, http.StatusOK, map[string]any{
		"policies": policies,
		"count":    len(policies),
	})
}

// Get handles GET /admin/policies/{policyID}.
func (h *PoliciesHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := policyIDParam(r)
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	p, err := h.admin.Get(r.Context(), id)
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	handler.RespondJSON(w, http.StatusOK, p)
}

// Create handles POST /admin/policies.
func (h *PoliciesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var input policy.CreateInput
	if err := handler.DecodeJSON(r, &input); err != nil {
		handler.RespondJSON(w, http.StatusBadRequest, map[string]string{
			"code":    "VALIDATION_ERROR",
			"message": "invalid request body",
		})
		return
	}

	p, err := h.admin.Create(r.Context(), input)
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	handler.RespondJSON(w, http.StatusCreated, p)
}

// Update handles PATCH /admin/policies/{policyID}.
func (h *PoliciesHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := policyIDParam(r)
	if err != nil {
		handler.RespondError(w, err)
		return
	}

	var input policy.UpdateInput
	if err := handler.DecodeJSON(r, &input); err != nil {
		handler.RespondJSON(w, http.StatusBadRequest, map[string]string{
			"code":    "VALIDATION_ERROR",
			"message": "invalid request body",
		})
		return
	}

	p, err := h.admin.Update(r.Context(), id, input)
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	handler.RespondJSON(w, http.StatusOK, p)
}

// Toggle handles POST /admin/policies/{policyID}/toggle.
func (h *PoliciesHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	id, err := policyIDParam(r)
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	p, err := h.admin.Toggle(r.Context(), id)
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	handler.RespondJSON(w, http.StatusOK, p)
}

// Delete handles DELETE /admin/policies/{policyID}.
func (h *PoliciesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := policyIDParam(r)
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	if err := h.admin.Delete(r.Context(), id); err != nil {
		handler.RespondError(w, err)
		return
	}
	handler.RespondJSON(w, http.StatusNoContent, nil)
}
