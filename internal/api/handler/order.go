package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/richboost/boosting-core/internal/api/middleware"
	"github.com/richboost/boosting-core/internal/domain"
	"github.com/richboost/boosting-core/internal/models"
	"github.com/richboost/boosting-core/internal/service"
)

// OrderHandler handles the order lifecycle endpoints.
type OrderHandler struct {
	orders *service.OrderService
}

func NewOrderHandler(orders *service.OrderService) *OrderHandler {
	return &OrderHandler{orders: orders}
}

type createOrderRequest struct {
	ServiceType   string               `json:"service_type"`
	DeliveryMode  string               `json:"delivery_mode"`
	Region        string               `json:"region"`
	Current       service.RankPosition `json:"current"`
	Target        service.RankPosition `json:"target"`
	CoachingHours int32                `json:"coaching_hours,omitempty"`
	BonusMicros   int64                `json:"bonus_micros,omitempty"`
	Details       string               `json:"details,omitempty"`
	CustomerID    string               `json:"customer_id,omitempty"` // admin only
}

// Create handles POST /v1/orders. Customers order for themselves; admins
// may order on behalf of a customer by setting customer_id.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	actorID, isAdmin, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized")
		return
	}

	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return
	}

	region, err := domain.ParseRegion(req.Region)
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-region", err.Error())
		return
	}

	customerID := actorID
	if req.CustomerID != "" {
		if !isAdmin {
			RespondError(w, r, http.StatusForbidden, "auth/insufficient-permissions", "only admins may order for another customer")
			return
		}
		customerID, err = uuid.Parse(req.CustomerID)
		if err != nil {
			RespondError(w, r, http.StatusBadRequest, "request/invalid-customer-id", "Invalid customer_id")
			return
		}
	}
	if req.BonusMicros < 0 {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-amount", "bonus_micros must not be negative")
		return
	}

	order, err := h.orders.Create(r.Context(), service.CreateOrderRequest{
		CustomerID:    customerID,
		ServiceType:   req.ServiceType,
		DeliveryMode:  req.DeliveryMode,
		Region:        region,
		Current:       req.Current,
		Target:        req.Target,
		CoachingHours: req.CoachingHours,
		BonusMicros:   req.BonusMicros,
		Details:       req.Details,
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrPricingInput):
			RespondError(w, r, http.StatusBadRequest, "order/invalid-input", err.Error())
		case errors.Is(err, domain.ErrInsufficientFunds):
			RespondError(w, r, http.StatusBadRequest, "order/insufficient-funds", err.Error())
		case strings.Contains(err.Error(), "not found"):
			RespondError(w, r, http.StatusBadRequest, "order/unknown-customer", err.Error())
		default:
			zap.L().Error("create order failed", zap.Error(err))
			RespondError(w, r, http.StatusInternalServerError, "order/create-failed", "Failed to create order")
		}
		return
	}

	RespondJSON(w, http.StatusCreated, order)
}

// Get handles GET /v1/orders/{id}.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	order, ok := h.loadAuthorized(w, r)
	if !ok {
		return
	}
	RespondJSON(w, http.StatusOK, order)
}

// History handles GET /v1/orders/{id}/history.
func (h *OrderHandler) History(w http.ResponseWriter, r *http.Request) {
	order, ok := h.loadAuthorized(w, r)
	if !ok {
		return
	}

	history, err := h.orders.History(r.Context(), order.ID)
	if err != nil {
		zap.L().Error("order history failed", zap.Error(err), zap.String("order_id", order.ID.String()))
		RespondError(w, r, http.StatusInternalServerError, "order/history-failed", "Failed to load order history")
		return
	}

	RespondJSON(w, http.StatusOK, map[string]any{
		"items": history,
		"count": len(history),
	})
}

// List handles GET /v1/orders. Customers see their own orders, workers
// their assignments. Admins filter by status.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	actorID, isAdmin, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized")
		return
	}

	limit, offset, err := parseListWindow(r)
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-pagination", err.Error())
		return
	}

	var orders []models.Order
	switch {
	case isAdmin:
		status := strings.TrimSpace(r.URL.Query().Get("status"))
		if status == "" {
			RespondError(w, r, http.StatusBadRequest, "request/missing-status", "status query parameter is required")
			return
		}
		orders, err = h.orders.ListByStatus(r.Context(), status, limit, offset)
	case middleware.UserRoleFromContext(r.Context()) == domain.RoleWorker:
		orders, err = h.orders.ListByWorker(r.Context(), actorID, limit, offset)
	default:
		orders, err = h.orders.ListByCustomer(r.Context(), actorID, limit, offset)
	}
	if err != nil {
		zap.L().Error("list orders failed", zap.Error(err))
		RespondError(w, r, http.StatusInternalServerError, "order/list-failed", "Failed to list orders")
		return
	}

	RespondJSON(w, http.StatusOK, map[string]any{
		"items":  orders,
		"limit":  limit,
		"offset": offset,
		"count":  len(orders),
	})
}

type assignOrderRequest struct {
	WorkerID string `json:"worker_id"`
}

// Assign handles POST /v1/orders/{id}/assign (admin only).
func (h *OrderHandler) Assign(w http.ResponseWriter, r *http.Request) {
	actorID, _, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized")
		return
	}
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-order-id", "Invalid order ID")
		return
	}

	var req assignOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return
	}
	workerID, err := uuid.Parse(req.WorkerID)
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-worker-id", "Invalid worker_id")
		return
	}

	order, err := h.orders.Assign(r.Context(), orderID, workerID, &actorID)
	if err != nil {
		h.respondTransitionError(w, r, err, orderID)
		return
	}

	RespondJSON(w, http.StatusOK, order)
}

// Start handles POST /v1/orders/{id}/start.
func (h *OrderHandler) Start(w http.ResponseWriter, r *http.Request) {
	h.workerTransition(w, r, h.orders.Start)
}

// Pause handles POST /v1/orders/{id}/pause.
func (h *OrderHandler) Pause(w http.ResponseWriter, r *http.Request) {
	h.workerTransition(w, r, h.orders.Pause)
}

// Resume handles POST /v1/orders/{id}/resume.
func (h *OrderHandler) Resume(w http.ResponseWriter, r *http.Request) {
	h.workerTransition(w, r, h.orders.Resume)
}

// SubmitReview handles POST /v1/orders/{id}/submit-review.
func (h *OrderHandler) SubmitReview(w http.ResponseWriter, r *http.Request) {
	h.workerTransition(w, r, h.orders.SubmitReview)
}

// Complete handles POST /v1/orders/{id}/complete (admin only). The worker
// share is credited inside the same transaction.
func (h *OrderHandler) Complete(w http.ResponseWriter, r *http.Request) {
	actorID, _, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized")
		return
	}
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-order-id", "Invalid order ID")
		return
	}

	order, err := h.orders.Complete(r.Context(), orderID, &actorID)
	if err != nil {
		h.respondTransitionError(w, r, err, orderID)
		return
	}

	RespondJSON(w, http.StatusOK, order)
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

// RejectReview handles POST /v1/orders/{id}/reject-review (admin only).
func (h *OrderHandler) RejectReview(w http.ResponseWriter, r *http.Request) {
	actorID, _, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized")
		return
	}
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-order-id", "Invalid order ID")
		return
	}

	var req reasonRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Reason) == "" {
		RespondError(w, r, http.StatusBadRequest, "request/missing-reason", "reason is required")
		return
	}

	order, err := h.orders.RejectReview(r.Context(), orderID, &actorID, req.Reason)
	if err != nil {
		h.respondTransitionError(w, r, err, orderID)
		return
	}

	RespondJSON(w, http.StatusOK, order)
}

// Cancel handles POST /v1/orders/{id}/cancel. Paid funds are refunded in
// the same transaction.
func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	actorID, isAdmin, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized")
		return
	}
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-order-id", "Invalid order ID")
		return
	}

	var req reasonRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return
	}

	if !isAdmin {
		order, err := h.orders.Get(r.Context(), orderID)
		if err != nil {
			if errors.Is(err, service.ErrOrderNotFound) {
				RespondError(w, r, http.StatusNotFound, "order/not-found", "Order not found")
				return
			}
			RespondError(w, r, http.StatusInternalServerError, "order/read-failed", "Failed to get order")
			return
		}
		if order.CustomerID != actorID {
			RespondError(w, r, http.StatusForbidden, "auth/insufficient-permissions", "insufficient permissions")
			return
		}
	}

	order, err := h.orders.Cancel(r.Context(), orderID, &actorID, req.Reason, isAdmin)
	if err != nil {
		h.respondTransitionError(w, r, err, orderID)
		return
	}

	RespondJSON(w, http.StatusOK, order)
}

// workerTransition runs a reason-less transition after checking the actor
// is the assigned worker or an admin.
func (h *OrderHandler) workerTransition(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, orderID uuid.UUID, actorID *uuid.UUID) (*models.Order, error)) {
	actorID, isAdmin, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized")
		return
	}
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-order-id", "Invalid order ID")
		return
	}

	if !isAdmin {
		order, err := h.orders.Get(r.Context(), orderID)
		if err != nil {
			if errors.Is(err, service.ErrOrderNotFound) {
				RespondError(w, r, http.StatusNotFound, "order/not-found", "Order not found")
				return
			}
			RespondError(w, r, http.StatusInternalServerError, "order/read-failed", "Failed to get order")
			return
		}
		if order.AssignedWorkerID == nil || *order.AssignedWorkerID != actorID {
			RespondError(w, r, http.StatusForbidden, "auth/insufficient-permissions", "insufficient permissions")
			return
		}
	}

	order, err := fn(r.Context(), orderID, &actorID)
	if err != nil {
		h.respondTransitionError(w, r, err, orderID)
		return
	}

	RespondJSON(w, http.StatusOK, order)
}

// loadAuthorized fetches the order and enforces read access: the owning
// customer, the assigned worker, or an admin.
func (h *OrderHandler) loadAuthorized(w http.ResponseWriter, r *http.Request) (*models.Order, bool) {
	actorID, isAdmin, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized")
		return nil, false
	}

	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-order-id", "Invalid order ID")
		return nil, false
	}

	order, err := h.orders.Get(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, service.ErrOrderNotFound) {
			RespondError(w, r, http.StatusNotFound, "order/not-found", "Order not found")
			return nil, false
		}
		zap.L().Error("get order failed", zap.Error(err), zap.String("order_id", orderID.String()))
		RespondError(w, r, http.StatusInternalServerError, "order/read-failed", "Failed to get order")
		return nil, false
	}

	if !isAdmin && order.CustomerID != actorID &&
		(order.AssignedWorkerID == nil || *order.AssignedWorkerID != actorID) {
		RespondError(w, r, http.StatusForbidden, "auth/insufficient-permissions", "insufficient permissions")
		return nil, false
	}

	return order, true
}

func (h *OrderHandler) respondTransitionError(w http.ResponseWriter, r *http.Request, err error, orderID uuid.UUID) {
	switch {
	case errors.Is(err, service.ErrOrderNotFound):
		RespondError(w, r, http.StatusNotFound, "order/not-found", "Order not found")
	case errors.Is(err, domain.ErrInvalidTransition):
		RespondError(w, r, http.StatusConflict, "order/invalid-transition", err.Error())
	case errors.Is(err, domain.ErrInsufficientFunds):
		RespondError(w, r, http.StatusConflict, "order/insufficient-funds", err.Error())
	case strings.Contains(err.Error(), "not found"), strings.Contains(err.Error(), "not active"), strings.Contains(err.Error(), "required"):
		RespondError(w, r, http.StatusBadRequest, "order/invalid-request", err.Error())
	default:
		zap.L().Error("order transition failed", zap.Error(err), zap.String("order_id", orderID.String()))
		RespondError(w, r, http.StatusInternalServerError, "order/transition-failed", "Failed to update order")
	}
}
