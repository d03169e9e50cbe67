package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/richboost/boosting-core/internal/domain"
	"github.com/richboost/boosting-core/internal/models"
	"github.com/richboost/boosting-core/internal/observability"
	"github.com/richboost/boosting-core/internal/repository"
)

// PromoService validates and applies promo code activations.
type PromoService struct {
	store QueryStore
}

func NewPromoService(store QueryStore) *PromoService {
	return &PromoService{store: store}
}

// Effect describes what a successful activation did, for user messaging.
type Effect struct {
	Kind            string          `json:"kind"`
	DiscountPercent int32           `json:"discount_percent,omitempty"`
	BonusMicros     int64           `json:"bonus_micros,omitempty"`
	Currency        domain.Currency `json:"currency,omitempty"`
}

// Activate applies a promo code to a customer. Checks run in a fixed order
// so callers get stable error variants: unknown or inactive, then expired,
// then exhausted, then already activated. The activation row insert and the
// counter increment share one transaction; the unique constraint on
// (customer, code) is the authority on repeat activations.
func (s *PromoService) Activate(ctx context.Context, customerID uuid.UUID, code string) (*Effect, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, domain.ErrPromoNotFound
	}

	var effect Effect
	err := s.store.RunInTx(ctx, func(q repository.Queries) error {
		promo, err := q.GetPromoCodeByCode(ctx, code)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return domain.ErrPromoNotFound
			}
			return fmt.Errorf("load promo code: %w", err)
		}

		promo, err = q.GetPromoCodeForUpdate(ctx, promo.ID)
		if err != nil {
			return fmt.Errorf("lock promo code: %w", err)
		}
		if !promo.Active {
			return domain.ErrPromoNotFound
		}
		if promo.ExpiresAt != nil && !promo.ExpiresAt.UTC().After(time.Now().UTC()) {
			return domain.ErrPromoExpired
		}

		rows, err := q.IncrementPromoActivations(ctx, promo.ID)
		if err != nil {
			return fmt.Errorf("increment promo activations: %w", err)
		}
		if rows == 0 {
			return domain.ErrPromoExhausted
		}

		if err := q.InsertPromoActivation(ctx, &models.PromoActivation{
			ID:          uuid.New(),
			PromoCodeID: promo.ID,
			CustomerID:  customerID,
		}); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return domain.ErrPromoAlreadyActivated
			}
			return fmt.Errorf("insert promo activation: %w", err)
		}

		switch promo.Effect {
		case domain.PromoEffectDiscountPercent:
			rows, err := q.SetCustomerDiscount(ctx, customerID, promo.Percent)
			if err != nil {
				return fmt.Errorf("arm customer discount: %w", err)
			}
			if err := requireExactlyOne(rows, "arm customer discount"); err != nil {
				return err
			}
			effect = Effect{Kind: domain.PromoEffectDiscountPercent, DiscountPercent: promo.Percent}
		case domain.PromoEffectBonusAmount:
			if err := creditCustomerBonus(ctx, q, customerID, promo.Currency, promo.AmountMicros,
				domain.BonusSourcePromo, "promo "+promo.Code); err != nil {
				return err
			}
			effect = Effect{Kind: domain.PromoEffectBonusAmount, BonusMicros: promo.AmountMicros, Currency: promo.Currency}
		default:
			return fmt.Errorf("promo %s has unknown effect %q", promo.Code, promo.Effect)
		}
		return nil
	})
	if err != nil {
		observability.IncrementPromoActivation(activationOutcome(err))
		return nil, err
	}

	observability.IncrementPromoActivation("ok")
	return &effect, nil
}

func activationOutcome(err error) string {
	switch {
	case errors.Is(err, domain.ErrPromoNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrPromoExpired):
		return "expired"
	case errors.Is(err, domain.ErrPromoExhausted):
		return "exhausted"
	case errors.Is(err, domain.ErrPromoAlreadyActivated):
		return "already_activated"
	default:
		return "error"
	}
}

// CreatePromoParams holds the admin inputs for a new code.
type CreatePromoParams struct {
	Code           string
	Effect         string
	Percent        int32
	AmountMicros   int64
	Currency       domain.Currency
	MaxActivations *int32
	ExpiresAt      *time.Time
	Comment        string
}

// Create registers a new promo code.
func (s *PromoService) Create(ctx context.Context, params CreatePromoParams) (*models.PromoCode, error) {
	code := strings.TrimSpace(params.Code)
	if code == "" {
		return nil, errors.New("code is required")
	}
	switch params.Effect {
	case domain.PromoEffectDiscountPercent:
		if params.Percent < 1 || params.Percent > 100 {
			return nil, fmt.Errorf("discount percent must be 1..100, got %d", params.Percent)
		}
	case domain.PromoEffectBonusAmount:
		if params.AmountMicros <= 0 {
			return nil, errors.New("bonus amount must be positive")
		}
		if _, err := domain.ParseCurrency(string(params.Currency)); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown promo effect %q", params.Effect)
	}
	if params.MaxActivations != nil && *params.MaxActivations < 1 {
		return nil, errors.New("max activations must be positive when set")
	}

	promo := &models.PromoCode{
		ID:             uuid.New(),
		Code:           code,
		Effect:         params.Effect,
		Percent:        params.Percent,
		AmountMicros:   params.AmountMicros,
		Currency:       params.Currency,
		MaxActivations: params.MaxActivations,
		Active:         true,
		ExpiresAt:      params.ExpiresAt,
		Comment:        params.Comment,
	}
	if err := s.store.Queries().CreatePromoCode(ctx, promo); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, fmt.Errorf("promo code %q already exists", code)
		}
		return nil, fmt.Errorf("create promo code: %w", err)
	}
	return promo, nil
}

// List pages through the registered codes.
func (s *PromoService) List(ctx context.Context, limit, offset int32) ([]models.PromoCode, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}
	if offset < 0 {
		offset = 0
	}
	return s.store.Queries().ListPromoCodes(ctx, limit, offset)
}

// SetActive toggles a code. Deactivation is also how codes are retired;
// activation rows stay behind as the audit trail.
func (s *PromoService) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	rows, err := s.store.Queries().SetPromoCodeActive(ctx, id, active)
	if err != nil {
		return fmt.Errorf("set promo active: %w", err)
	}
	if rows == 0 {
		return domain.ErrPromoNotFound
	}
	return nil
}

// SweepExpired deactivates codes whose expiry has passed. Run periodically
// by the background worker.
func (s *PromoService) SweepExpired(ctx context.Context) (int64, error) {
	count, err := s.store.Queries().DeactivateExpiredPromoCodes(ctx, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("deactivate expired promo codes: %w", err)
	}
	if count > 0 {
		zap.L().Info("expired promo codes deactivated", zap.Int64("count", count))
	}
	return count, nil
}
