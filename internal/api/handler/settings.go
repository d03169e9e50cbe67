package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/richboost/boosting-core/internal/service"
)

// SettingsHandler exposes the hot-reloadable pricing configuration to
// admins.
type SettingsHandler struct {
	settings *service.SettingsService
}

func NewSettingsHandler(settings *service.SettingsService) *SettingsHandler {
	return &SettingsHandler{settings: settings}
}

// List handles GET /v1/settings (admin only).
func (h *SettingsHandler) List(w http.ResponseWriter, r *http.Request) {
	settings, err := h.settings.List(r.Context())
	if err != nil {
		zap.L().Error("list settings failed", zap.Error(err))
		RespondError(w, r, http.StatusInternalServerError, "settings/list-failed", "Failed to list settings")
		return
	}

	RespondJSON(w, http.StatusOK, map[string]any{
		"items": settings,
		"count": len(settings),
	})
}

type updateSettingRequest struct {
	Value json.RawMessage `json:"value"`
}

// Update handles PUT /v1/settings/{key} (admin only). The new value takes
// effect on the next snapshot reload.
func (h *SettingsHandler) Update(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if key == "" {
		RespondError(w, r, http.StatusBadRequest, "request/missing-key", "setting key is required")
		return
	}

	var req updateSettingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return
	}
	if len(req.Value) == 0 {
		RespondError(w, r, http.StatusBadRequest, "request/missing-value", "value is required")
		return
	}

	if err := h.settings.Update(r.Context(), key, req.Value); err != nil {
		RespondError(w, r, http.StatusBadRequest, "settings/invalid-value", err.Error())
		return
	}

	RespondJSON(w, http.StatusOK, map[string]any{"key": key, "value": req.Value})
}
