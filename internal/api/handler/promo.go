package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/richboost/boosting-core/internal/domain"
	"github.com/richboost/boosting-core/internal/service"
)

// PromoHandler handles promo code activation and administration.
type PromoHandler struct {
	promos *service.PromoService
}

func NewPromoHandler(promos *service.PromoService) *PromoHandler {
	return &PromoHandler{promos: promos}
}

type activatePromoRequest struct {
	Code string `json:"code"`
}

// Activate handles POST /v1/promos/activate (customer only).
func (h *PromoHandler) Activate(w http.ResponseWriter, r *http.Request) {
	actorID, _, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized")
		return
	}

	var req activatePromoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return
	}

	effect, err := h.promos.Activate(r.Context(), actorID, req.Code)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrPromoNotFound):
			RespondError(w, r, http.StatusNotFound, "promo/not-found", "Promo code not found")
		case errors.Is(err, domain.ErrPromoExpired):
			RespondError(w, r, http.StatusGone, "promo/expired", "Promo code expired")
		case errors.Is(err, domain.ErrPromoExhausted):
			RespondError(w, r, http.StatusConflict, "promo/exhausted", "Promo code activation limit reached")
		case errors.Is(err, domain.ErrPromoAlreadyActivated):
			RespondError(w, r, http.StatusConflict, "promo/already-activated", "Promo code already activated")
		default:
			zap.L().Error("promo activation failed", zap.Error(err))
			RespondError(w, r, http.StatusInternalServerError, "promo/activate-failed", "Failed to activate promo code")
		}
		return
	}

	RespondJSON(w, http.StatusOK, effect)
}

type createPromoRequest struct {
	Code           string `json:"code"`
	Effect         string `json:"effect"`
	Percent        int32  `json:"percent,omitempty"`
	AmountMicros   int64  `json:"amount_micros,omitempty"`
	Currency       string `json:"currency,omitempty"`
	MaxActivations *int32 `json:"max_activations,omitempty"`
	ExpiresAt      string `json:"expires_at,omitempty"`
	Comment        string `json:"comment,omitempty"`
}

// Create handles POST /v1/promos (admin only).
func (h *PromoHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createPromoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return
	}

	params := service.CreatePromoParams{
		Code:           req.Code,
		Effect:         req.Effect,
		Percent:        req.Percent,
		AmountMicros:   req.AmountMicros,
		MaxActivations: req.MaxActivations,
		Comment:        req.Comment,
	}
	if req.Currency != "" {
		currency, err := domain.ParseCurrency(req.Currency)
		if err != nil {
			RespondError(w, r, http.StatusBadRequest, "request/invalid-currency", err.Error())
			return
		}
		params.Currency = currency
	}
	if req.ExpiresAt != "" {
		expires, err := time.Parse(time.RFC3339, req.ExpiresAt)
		if err != nil {
			RespondError(w, r, http.StatusBadRequest, "request/invalid-expires-at", "expires_at must be RFC 3339")
			return
		}
		params.ExpiresAt = &expires
	}

	promo, err := h.promos.Create(r.Context(), params)
	if err != nil {
		if status, problemType, message, ok := mapDBError(err); ok {
			RespondError(w, r, status, problemType, message)
			return
		}
		if strings.Contains(err.Error(), "already exists") {
			RespondError(w, r, http.StatusConflict, "promo/duplicate-code", err.Error())
			return
		}
		RespondError(w, r, http.StatusBadRequest, "promo/invalid-params", err.Error())
		return
	}

	RespondJSON(w, http.StatusCreated, promo)
}

// List handles GET /v1/promos (admin only).
func (h *PromoHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := parseListWindow(r)
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-pagination", err.Error())
		return
	}

	promos, err := h.promos.List(r.Context(), limit, offset)
	if err != nil {
		zap.L().Error("list promos failed", zap.Error(err))
		RespondError(w, r, http.StatusInternalServerError, "promo/list-failed", "Failed to list promo codes")
		return
	}

	RespondJSON(w, http.StatusOK, map[string]any{
		"items":  promos,
		"limit":  limit,
		"offset": offset,
		"count":  len(promos),
	})
}

type setPromoActiveRequest struct {
	Active bool `json:"active"`
}

// SetActive handles PATCH /v1/promos/{id}/active (admin only). Promo codes
// are never deleted, only deactivated, so past activations stay auditable.
func (h *PromoHandler) SetActive(w http.ResponseWriter, r *http.Request) {
	promoID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-promo-id", "Invalid promo ID")
		return
	}

	var req setPromoActiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return
	}

	if err := h.promos.SetActive(r.Context(), promoID, req.Active); err != nil {
		if errors.Is(err, domain.ErrPromoNotFound) {
			RespondError(w, r, http.StatusNotFound, "promo/not-found", "Promo code not found")
			return
		}
		zap.L().Error("set promo active failed", zap.Error(err), zap.String("promo_id", promoID.String()))
		RespondError(w, r, http.StatusInternalServerError, "promo/update-failed", "Failed to update promo code")
		return
	}

	RespondJSON(w, http.StatusOK, map[string]any{"id": promoID, "active": req.Active})
}
