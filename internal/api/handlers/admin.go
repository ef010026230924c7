// admin.go — обработчики административных операций:
// управление ролями, pause-флаг, статистика реестра.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/uyinene-ledger/registry/internal/api/errors"
	"github.com/uyinene-ledger/registry/internal/api/middleware"
)

// roleRequest — тело запроса выдачи роли.
type roleRequest struct {
	Role      string `json:"role"`
	Principal string `json:"principal"`
}

// GrantRole — POST /api/v1/admin/roles.
func (h *APIHandler) GrantRole(w http.ResponseWriter, r *http.Request) {
	caller := middleware.PrincipalFromContext(r.Context())

	var req roleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "некорректное тело запроса")
		return
	}

	if err := h.admin.GrantRole(r.Context(), caller, req.Role, req.Principal); err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"role":      req.Role,
		"principal": req.Principal,
	})
}

// RevokeRole — DELETE /api/v1/admin/roles/{role}/{principal}.
func (h *APIHandler) RevokeRole(w http.ResponseWriter, r *http.Request) {
	caller := middleware.PrincipalFromContext(r.Context())
	role := chi.URLParam(r, "role")
	principal := chi.URLParam(r, "principal")

	if err := h.admin.RevokeRole(r.Context(), caller, role, principal); err != nil {
		h.writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// CheckRole — GET /api/v1/admin/roles/{role}/{principal}.
func (h *APIHandler) CheckRole(w http.ResponseWriter, r *http.Request) {
	role := chi.URLParam(r, "role")
	principal := chi.URLParam(r, "principal")

	has, err := h.admin.HasRole(r.Context(), role, principal)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"role":      role,
		"principal": principal,
		"granted":   has,
	})
}

// PauseRegistry — POST /api/v1/admin/pause.
func (h *APIHandler) PauseRegistry(w http.ResponseWriter, r *http.Request) {
	caller := middleware.PrincipalFromContext(r.Context())

	if err := h.admin.Pause(r.Context(), caller); err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"paused": true})
}

// UnpauseRegistry — POST /api/v1/admin/unpause.
func (h *APIHandler) UnpauseRegistry(w http.ResponseWriter, r *http.Request) {
	caller := middleware.PrincipalFromContext(r.Context())

	if err := h.admin.Unpause(r.Context(), caller); err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"paused": false})
}

// GetStats — GET /api/v1/admin/stats (только привилегированные роли).
func (h *APIHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	caller := middleware.PrincipalFromContext(r.Context())

	stats, err := h.registry.Stats(r.Context(), caller)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, stats)
}
