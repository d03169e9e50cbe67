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

// AccountHandler handles customer and worker account endpoints.
type AccountHandler struct {
	accounts *service.AccountService
	ledger   *service.LedgerService
}

func NewAccountHandler(accounts *service.AccountService, ledger *service.LedgerService) *AccountHandler {
	return &AccountHandler{accounts: accounts, ledger: ledger}
}

type registerCustomerRequest struct {
	Username   string  `json:"username"`
	Region     string  `json:"region"`
	ReferrerID *string `json:"referrer_id,omitempty"`
}

// RegisterCustomer handles POST /v1/customers.
func (h *AccountHandler) RegisterCustomer(w http.ResponseWriter, r *http.Request) {
	var req registerCustomerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return
	}

	region, err := domain.ParseRegion(req.Region)
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-region", err.Error())
		return
	}

	var referrerID *uuid.UUID
	if req.ReferrerID != nil && strings.TrimSpace(*req.ReferrerID) != "" {
		parsed, err := uuid.Parse(*req.ReferrerID)
		if err != nil {
			RespondError(w, r, http.StatusBadRequest, "request/invalid-referrer-id", "Invalid referrer_id")
			return
		}
		referrerID = &parsed
	}

	customer, err := h.accounts.RegisterCustomer(r.Context(), req.Username, region, referrerID)
	if err != nil {
		if status, problemType, message, ok := mapDBError(err); ok {
			RespondError(w, r, status, problemType, message)
			return
		}
		if strings.Contains(err.Error(), "already taken") || strings.Contains(err.Error(), "not found") || strings.Contains(err.Error(), "required") {
			RespondError(w, r, http.StatusBadRequest, "account/invalid-registration", err.Error())
			return
		}
		zap.L().Error("register customer failed", zap.Error(err))
		RespondError(w, r, http.StatusInternalServerError, "account/create-failed", "Failed to register customer")
		return
	}

	RespondJSON(w, http.StatusCreated, customer)
}

// GetCustomer handles GET /v1/customers/{id}. Customers may only read
// their own profile.
func (h *AccountHandler) GetCustomer(w http.ResponseWriter, r *http.Request) {
	actorID, isAdmin, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized")
		return
	}

	customerID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-customer-id", "Invalid customer ID")
		return
	}
	if !isAdmin && actorID != customerID {
		RespondError(w, r, http.StatusForbidden, "auth/insufficient-permissions", "insufficient permissions")
		return
	}

	customer, err := h.accounts.GetCustomer(r.Context(), customerID)
	if err != nil {
		if errors.Is(err, service.ErrCustomerNotFound) {
			RespondError(w, r, http.StatusNotFound, "account/customer-not-found", "Customer not found")
			return
		}
		zap.L().Error("get customer failed", zap.Error(err), zap.String("customer_id", customerID.String()))
		RespondError(w, r, http.StatusInternalServerError, "account/read-failed", "Failed to get customer")
		return
	}

	RespondJSON(w, http.StatusOK, customer)
}

// BonusHistory handles GET /v1/customers/{id}/bonus-history.
func (h *AccountHandler) BonusHistory(w http.ResponseWriter, r *http.Request) {
	actorID, isAdmin, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized")
		return
	}

	customerID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-customer-id", "Invalid customer ID")
		return
	}
	if !isAdmin && actorID != customerID {
		RespondError(w, r, http.StatusForbidden, "auth/insufficient-permissions", "insufficient permissions")
		return
	}

	limit, offset, err := parseListWindow(r)
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-pagination", err.Error())
		return
	}

	entries, err := h.ledger.BonusHistory(r.Context(), customerID, limit, offset)
	if err != nil {
		zap.L().Error("bonus history failed", zap.Error(err), zap.String("customer_id", customerID.String()))
		RespondError(w, r, http.StatusInternalServerError, "account/bonus-history-failed", "Failed to list bonus history")
		return
	}

	RespondJSON(w, http.StatusOK, map[string]any{
		"items":  entries,
		"limit":  limit,
		"offset": offset,
		"count":  len(entries),
	})
}

type adjustBalanceRequest struct {
	Target       string `json:"target"`
	Currency     string `json:"currency"`
	AmountMicros int64  `json:"amount_micros"`
	Comment      string `json:"comment"`
}

// AdjustBalance handles POST /v1/customers/{id}/adjustments (admin only).
// A positive amount credits, a negative amount debits; target picks the
// cash balance or the bonus balance. Bonus adjustments land in the bonus
// ledger under the admin source.
func (h *AccountHandler) AdjustBalance(w http.ResponseWriter, r *http.Request) {
	customerID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-customer-id", "Invalid customer ID")
		return
	}

	var req adjustBalanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return
	}
	if req.AmountMicros == 0 {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-amount", "amount_micros must be non-zero")
		return
	}
	currency, err := domain.ParseCurrency(req.Currency)
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-currency", err.Error())
		return
	}

	ctx := r.Context()
	switch req.Target {
	case "balance":
		if req.AmountMicros > 0 {
			err = h.ledger.Credit(ctx, customerID, currency, req.AmountMicros)
		} else {
			err = h.ledger.Debit(ctx, customerID, currency, -req.AmountMicros)
		}
	case "bonus":
		if req.AmountMicros > 0 {
			err = h.ledger.CreditBonus(ctx, customerID, currency, req.AmountMicros, domain.BonusSourceAdmin, req.Comment)
		} else {
			err = h.ledger.DebitBonus(ctx, customerID, currency, -req.AmountMicros, domain.BonusSourceAdmin, req.Comment)
		}
	default:
		RespondError(w, r, http.StatusBadRequest, "request/invalid-target", "target must be balance or bonus")
		return
	}
	if err != nil {
		if errors.Is(err, domain.ErrInsufficientFunds) {
			RespondError(w, r, http.StatusConflict, "account/insufficient-funds", "Insufficient funds")
			return
		}
		if strings.Contains(err.Error(), "affected 0 rows") {
			RespondError(w, r, http.StatusNotFound, "account/customer-not-found", "Customer not found")
			return
		}
		zap.L().Error("balance adjustment failed", zap.Error(err), zap.String("customer_id", customerID.String()))
		RespondError(w, r, http.StatusInternalServerError, "account/adjustment-failed", "Failed to adjust balance")
		return
	}

	customer, err := h.accounts.GetCustomer(ctx, customerID)
	if err != nil {
		zap.L().Error("get customer failed", zap.Error(err), zap.String("customer_id", customerID.String()))
		RespondError(w, r, http.StatusInternalServerError, "account/read-failed", "Failed to get customer")
		return
	}
	RespondJSON(w, http.StatusOK, customer)
}

type registerWorkerRequest struct {
	Username string `json:"username"`
	Region   string `json:"region"`
}

// RegisterWorker handles POST /v1/workers (admin only).
func (h *AccountHandler) RegisterWorker(w http.ResponseWriter, r *http.Request) {
	var req registerWorkerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return
	}

	region, err := domain.ParseRegion(req.Region)
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-region", err.Error())
		return
	}

	worker, err := h.accounts.RegisterWorker(r.Context(), req.Username, region)
	if err != nil {
		if status, problemType, message, ok := mapDBError(err); ok {
			RespondError(w, r, status, problemType, message)
			return
		}
		if strings.Contains(err.Error(), "already taken") || strings.Contains(err.Error(), "required") {
			RespondError(w, r, http.StatusBadRequest, "account/invalid-registration", err.Error())
			return
		}
		zap.L().Error("register worker failed", zap.Error(err))
		RespondError(w, r, http.StatusInternalServerError, "account/create-failed", "Failed to register worker")
		return
	}

	RespondJSON(w, http.StatusCreated, worker)
}

// GetWorker handles GET /v1/workers/{id}. Workers may only read their own
// profile.
func (h *AccountHandler) GetWorker(w http.ResponseWriter, r *http.Request) {
	actorID, isAdmin, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized")
		return
	}

	workerID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-worker-id", "Invalid worker ID")
		return
	}
	if !isAdmin && actorID != workerID {
		RespondError(w, r, http.StatusForbidden, "auth/insufficient-permissions", "insufficient permissions")
		return
	}

	worker, err := h.accounts.GetWorker(r.Context(), workerID)
	if err != nil {
		if errors.Is(err, service.ErrWorkerNotFound) {
			RespondError(w, r, http.StatusNotFound, "account/worker-not-found", "Worker not found")
			return
		}
		zap.L().Error("get worker failed", zap.Error(err), zap.String("worker_id", workerID.String()))
		RespondError(w, r, http.StatusInternalServerError, "account/read-failed", "Failed to get worker")
		return
	}

	RespondJSON(w, http.StatusOK, worker)
}

// ListWorkers handles GET /v1/workers. Only active workers are returned.
func (h *AccountHandler) ListWorkers(w http.ResponseWriter, r *http.Request) {
	workers, err := h.accounts.ListActiveWorkers(r.Context())
	if err != nil {
		zap.L().Error("list workers failed", zap.Error(err))
		RespondError(w, r, http.StatusInternalServerError, "account/list-failed", "Failed to list workers")
		return
	}

	RespondJSON(w, http.StatusOK, map[string]any{
		"items": workers,
		"count": len(workers),
	})
}
