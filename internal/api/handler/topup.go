package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/richboost/boosting-core/internal/domain"
	"github.com/richboost/boosting-core/internal/service"
)

// TopupHandler handles customer deposit endpoints.
type TopupHandler struct {
	topups *service.TopupService
}

func NewTopupHandler(topups *service.TopupService) *TopupHandler {
	return &TopupHandler{topups: topups}
}

type createTopupRequest struct {
	AmountMicros int64  `json:"amount_micros"`
	Currency     string `json:"currency"`
	ReceiptRef   string `json:"receipt_ref"`
}

// Create handles POST /v1/topups (customer only). The balance is credited
// when an admin accepts the request.
func (h *TopupHandler) Create(w http.ResponseWriter, r *http.Request) {
	actorID, _, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized")
		return
	}

	var req createTopupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return
	}
	currency, err := domain.ParseCurrency(req.Currency)
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-currency", err.Error())
		return
	}

	topup, err := h.topups.Request(r.Context(), actorID, req.AmountMicros, currency, req.ReceiptRef)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrTopupTooSmall):
			RespondError(w, r, http.StatusBadRequest, "topup/below-minimum", err.Error())
		case strings.Contains(err.Error(), "not found"), strings.Contains(err.Error(), "required"), strings.Contains(err.Error(), "invalid"):
			RespondError(w, r, http.StatusBadRequest, "topup/invalid-request", err.Error())
		default:
			zap.L().Error("create topup failed", zap.Error(err))
			RespondError(w, r, http.StatusInternalServerError, "topup/create-failed", "Failed to create top-up request")
		}
		return
	}

	RespondJSON(w, http.StatusAccepted, topup)
}

// Get handles GET /v1/topups/{id}.
func (h *TopupHandler) Get(w http.ResponseWriter, r *http.Request) {
	actorID, isAdmin, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized")
		return
	}

	topupID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-topup-id", "Invalid top-up ID")
		return
	}

	topup, err := h.topups.Get(r.Context(), topupID)
	if err != nil {
		if errors.Is(err, service.ErrTopupNotFound) {
			RespondError(w, r, http.StatusNotFound, "topup/not-found", "Top-up request not found")
			return
		}
		zap.L().Error("get topup failed", zap.Error(err), zap.String("topup_id", topupID.String()))
		RespondError(w, r, http.StatusInternalServerError, "topup/read-failed", "Failed to get top-up request")
		return
	}
	if !isAdmin && topup.CustomerID != actorID {
		RespondError(w, r, http.StatusForbidden, "auth/insufficient-permissions", "insufficient permissions")
		return
	}

	RespondJSON(w, http.StatusOK, topup)
}

// ListPending handles GET /v1/topups/pending (admin only).
func (h *TopupHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := parseListWindow(r)
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-pagination", err.Error())
		return
	}

	topups, err := h.topups.ListByStatus(r.Context(), domain.TopupStatusPending, limit, offset)
	if err != nil {
		zap.L().Error("list pending topups failed", zap.Error(err))
		RespondError(w, r, http.StatusInternalServerError, "topup/list-failed", "Failed to list top-up requests")
		return
	}

	RespondJSON(w, http.StatusOK, map[string]any{
		"items":  topups,
		"limit":  limit,
		"offset": offset,
		"count":  len(topups),
	})
}

type acceptTopupRequest struct {
	AdminComment string `json:"admin_comment,omitempty"`
}

// Accept handles POST /v1/topups/{id}/accept (admin only). The credit and
// the status flip share one transaction, so a retried accept cannot
// double-credit.
func (h *TopupHandler) Accept(w http.ResponseWriter, r *http.Request) {
	topupID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-topup-id", "Invalid top-up ID")
		return
	}

	var req acceptTopupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return
	}

	topup, err := h.topups.Accept(r.Context(), topupID, req.AdminComment)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrTopupNotFound):
			RespondError(w, r, http.StatusNotFound, "topup/not-found", "Top-up request not found")
		case errors.Is(err, service.ErrTopupNotPending):
			RespondError(w, r, http.StatusConflict, "topup/not-pending", "Top-up request is not pending")
		default:
			zap.L().Error("accept topup failed", zap.Error(err), zap.String("topup_id", topupID.String()))
			RespondError(w, r, http.StatusInternalServerError, "topup/accept-failed", "Failed to accept top-up request")
		}
		return
	}

	RespondJSON(w, http.StatusOK, topup)
}

// Reject handles POST /v1/topups/{id}/reject (admin only).
func (h *TopupHandler) Reject(w http.ResponseWriter, r *http.Request) {
	topupID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-topup-id", "Invalid top-up ID")
		return
	}

	var req reasonRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return
	}

	topup, err := h.topups.Reject(r.Context(), topupID, req.Reason)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrTopupNotFound):
			RespondError(w, r, http.StatusNotFound, "topup/not-found", "Top-up request not found")
		case errors.Is(err, service.ErrTopupNotPending):
			RespondError(w, r, http.StatusConflict, "topup/not-pending", "Top-up request is not pending")
		case errors.Is(err, service.ErrReasonRequired):
			RespondError(w, r, http.StatusBadRequest, "request/missing-reason", "reason is required")
		default:
			zap.L().Error("reject topup failed", zap.Error(err), zap.String("topup_id", topupID.String()))
			RespondError(w, r, http.StatusInternalServerError, "topup/reject-failed", "Failed to reject top-up request")
		}
		return
	}

	RespondJSON(w, http.StatusOK, topup)
}
