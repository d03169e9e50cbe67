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

// PayoutHandler handles worker withdrawal endpoints.
type PayoutHandler struct {
	payouts *service.PayoutService
}

func NewPayoutHandler(payouts *service.PayoutService) *PayoutHandler {
	return &PayoutHandler{payouts: payouts}
}

type createPayoutRequest struct {
	AmountMicros   int64  `json:"amount_micros"`
	Currency       string `json:"currency"`
	PaymentDetails string `json:"payment_details"`
}

// Create handles POST /v1/payouts (worker only). Funds are not reserved;
// the authoritative balance check happens at admin approval.
func (h *PayoutHandler) Create(w http.ResponseWriter, r *http.Request) {
	actorID, _, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized")
		return
	}

	var req createPayoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return
	}
	if req.AmountMicros <= 0 {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-amount", "Amount must be greater than zero")
		return
	}
	currency, err := domain.ParseCurrency(req.Currency)
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-currency", err.Error())
		return
	}

	payout, err := h.payouts.Request(r.Context(), actorID, req.AmountMicros, currency, req.PaymentDetails)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInsufficientFunds):
			RespondError(w, r, http.StatusBadRequest, "payout/insufficient-funds", err.Error())
		case strings.Contains(err.Error(), "not found"), strings.Contains(err.Error(), "required"), strings.Contains(err.Error(), "invalid"):
			RespondError(w, r, http.StatusBadRequest, "payout/invalid-request", err.Error())
		default:
			zap.L().Error("create payout failed", zap.Error(err))
			RespondError(w, r, http.StatusInternalServerError, "payout/create-failed", "Failed to create payout request")
		}
		return
	}

	RespondJSON(w, http.StatusAccepted, payout)
}

// Get handles GET /v1/payouts/{id}.
func (h *PayoutHandler) Get(w http.ResponseWriter, r *http.Request) {
	actorID, isAdmin, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized")
		return
	}

	payoutID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-payout-id", "Invalid payout ID")
		return
	}

	payout, err := h.payouts.Get(r.Context(), payoutID)
	if err != nil {
		if errors.Is(err, service.ErrPayoutNotFound) {
			RespondError(w, r, http.StatusNotFound, "payout/not-found", "Payout request not found")
			return
		}
		zap.L().Error("get payout failed", zap.Error(err), zap.String("payout_id", payoutID.String()))
		RespondError(w, r, http.StatusInternalServerError, "payout/read-failed", "Failed to get payout request")
		return
	}
	if !isAdmin && payout.WorkerID != actorID {
		RespondError(w, r, http.StatusForbidden, "auth/insufficient-permissions", "insufficient permissions")
		return
	}

	RespondJSON(w, http.StatusOK, payout)
}

// ListPending handles GET /v1/payouts/pending (admin only).
func (h *PayoutHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := parseListWindow(r)
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-pagination", err.Error())
		return
	}

	payouts, err := h.payouts.ListByStatus(r.Context(), domain.PayoutStatusPending, limit, offset)
	if err != nil {
		zap.L().Error("list pending payouts failed", zap.Error(err))
		RespondError(w, r, http.StatusInternalServerError, "payout/list-failed", "Failed to list payout requests")
		return
	}
	total, err := h.payouts.PendingQueueSize(r.Context())
	if err != nil {
		zap.L().Warn("failed to compute payout queue size", zap.Error(err))
		total = int64(len(payouts))
	}

	RespondJSON(w, http.StatusOK, map[string]any{
		"items":       payouts,
		"limit":       limit,
		"offset":      offset,
		"count":       len(payouts),
		"total_count": total,
	})
}

type approvePayoutRequest struct {
	ReceiptRef   string `json:"receipt_ref"`
	AdminComment string `json:"admin_comment,omitempty"`
}

// Approve handles POST /v1/payouts/{id}/approve (admin only).
func (h *PayoutHandler) Approve(w http.ResponseWriter, r *http.Request) {
	payoutID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-payout-id", "Invalid payout ID")
		return
	}

	var req approvePayoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return
	}

	payout, err := h.payouts.Approve(r.Context(), payoutID, req.ReceiptRef, req.AdminComment)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrPayoutNotFound):
			RespondError(w, r, http.StatusNotFound, "payout/not-found", "Payout request not found")
		case errors.Is(err, service.ErrPayoutNotPending):
			RespondError(w, r, http.StatusConflict, "payout/not-pending", "Payout request is not pending")
		case errors.Is(err, service.ErrReceiptRequired):
			RespondError(w, r, http.StatusBadRequest, "request/missing-receipt", "receipt_ref is required")
		case errors.Is(err, domain.ErrInsufficientFunds):
			RespondError(w, r, http.StatusConflict, "payout/insufficient-funds", "Worker balance no longer covers the payout")
		default:
			zap.L().Error("approve payout failed", zap.Error(err), zap.String("payout_id", payoutID.String()))
			RespondError(w, r, http.StatusInternalServerError, "payout/approve-failed", "Failed to approve payout request")
		}
		return
	}

	RespondJSON(w, http.StatusOK, payout)
}

// Reject handles POST /v1/payouts/{id}/reject (admin only).
func (h *PayoutHandler) Reject(w http.ResponseWriter, r *http.Request) {
	payoutID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-payout-id", "Invalid payout ID")
		return
	}

	var req reasonRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return
	}

	payout, err := h.payouts.Reject(r.Context(), payoutID, req.Reason)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrPayoutNotFound):
			RespondError(w, r, http.StatusNotFound, "payout/not-found", "Payout request not found")
		case errors.Is(err, service.ErrPayoutNotPending):
			RespondError(w, r, http.StatusConflict, "payout/not-pending", "Payout request is not pending")
		case errors.Is(err, service.ErrReasonRequired):
			RespondError(w, r, http.StatusBadRequest, "request/missing-reason", "reason is required")
		default:
			zap.L().Error("reject payout failed", zap.Error(err), zap.String("payout_id", payoutID.String()))
			RespondError(w, r, http.StatusInternalServerError, "payout/reject-failed", "Failed to reject payout request")
		}
		return
	}

	RespondJSON(w, http.StatusOK, payout)
}

type convertBalanceRequest struct {
	From         string `json:"from"`
	To           string `json:"to"`
	AmountMicros int64  `json:"amount_micros"`
}

// ConvertBalance handles POST /v1/workers/balance/convert (worker only).
func (h *PayoutHandler) ConvertBalance(w http.ResponseWriter, r *http.Request) {
	actorID, _, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized")
		return
	}

	var req convertBalanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return
	}
	from, err := domain.ParseCurrency(req.From)
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-currency", err.Error())
		return
	}
	to, err := domain.ParseCurrency(req.To)
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-currency", err.Error())
		return
	}

	worker, err := h.payouts.ConvertBalance(r.Context(), actorID, from, to, req.AmountMicros)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInsufficientFunds):
			RespondError(w, r, http.StatusBadRequest, "payout/insufficient-funds", err.Error())
		case errors.Is(err, domain.ErrConversionUnavailable):
			RespondError(w, r, http.StatusServiceUnavailable, "payout/conversion-unavailable", "Currency conversion is unavailable")
		case strings.Contains(err.Error(), "invalid"), strings.Contains(err.Error(), "must differ"):
			RespondError(w, r, http.StatusBadRequest, "payout/invalid-conversion", err.Error())
		default:
			zap.L().Error("convert balance failed", zap.Error(err), zap.String("worker_id", actorID.String()))
			RespondError(w, r, http.StatusInternalServerError, "payout/convert-failed", "Failed to convert balance")
		}
		return
	}

	RespondJSON(w, http.StatusOK, worker)
}
