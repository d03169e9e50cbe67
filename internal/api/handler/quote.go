package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/richboost/boosting-core/internal/domain"
	"github.com/richboost/boosting-core/internal/service"
)

// QuoteHandler prices orders without creating them.
type QuoteHandler struct {
	pricing *service.PricingService
}

func NewQuoteHandler(pricing *service.PricingService) *QuoteHandler {
	return &QuoteHandler{pricing: pricing}
}

type quoteRequest struct {
	ServiceType   string               `json:"service_type"`
	DeliveryMode  string               `json:"delivery_mode"`
	Region        string               `json:"region"`
	Current       service.RankPosition `json:"current"`
	Target        service.RankPosition `json:"target"`
	CoachingHours int32                `json:"coaching_hours,omitempty"`
}

// Quote handles POST /v1/quotes.
func (h *QuoteHandler) Quote(w http.ResponseWriter, r *http.Request) {
	var req quoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return
	}

	region, err := domain.ParseRegion(req.Region)
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-region", err.Error())
		return
	}

	quote, err := h.pricing.Quote(service.QuoteParams{
		ServiceType:   req.ServiceType,
		DeliveryMode:  req.DeliveryMode,
		Region:        region,
		Current:       req.Current,
		Target:        req.Target,
		CoachingHours: req.CoachingHours,
	})
	if err != nil {
		if errors.Is(err, domain.ErrPricingInput) {
			RespondError(w, r, http.StatusBadRequest, "quote/invalid-input", err.Error())
			return
		}
		zap.L().Error("quote failed", zap.Error(err))
		RespondError(w, r, http.StatusInternalServerError, "quote/failed", "Failed to compute quote")
		return
	}

	RespondJSON(w, http.StatusOK, quote)
}
