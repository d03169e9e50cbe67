package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/richboost/boosting-core/internal/domain"
	"github.com/richboost/boosting-core/internal/models"
	"github.com/richboost/boosting-core/internal/repository"
)

var (
	ErrTopupNotFound   = errors.New("top-up request not found")
	ErrTopupNotPending = errors.New("top-up request is not pending")
	ErrTopupTooSmall   = errors.New("top-up amount below minimum")
)

// TopupService handles customer deposits. Accepting a top-up is the cash
// credit that can fire the referral trigger.
type TopupService struct {
	store    QueryStore
	settings *SettingsService
}

func NewTopupService(store QueryStore, settings *SettingsService) *TopupService {
	return &TopupService{store: store, settings: settings}
}

// Request files a deposit for admin review.
func (s *TopupService) Request(ctx context.Context, customerID uuid.UUID, amountMicros int64, currency domain.Currency, receiptRef string) (*models.TopupRequest, error) {
	if amountMicros <= 0 {
		return nil, fmt.Errorf("invalid amount: %d", amountMicros)
	}
	if _, err := domain.ParseCurrency(string(currency)); err != nil {
		return nil, err
	}
	if minAmount := s.settings.Snapshot().MinTopupMicros[currency]; amountMicros < minAmount {
		return nil, fmt.Errorf("%w: minimum is %s", ErrTopupTooSmall, domain.NewMoney(minAmount, currency))
	}
	if _, err := s.store.Queries().GetCustomer(ctx, customerID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("customer %s not found", customerID)
		}
		return nil, fmt.Errorf("load customer: %w", err)
	}

	topup := &models.TopupRequest{
		ID:           uuid.New(),
		CustomerID:   customerID,
		AmountMicros: amountMicros,
		Currency:     currency,
		Status:       domain.TopupStatusPending,
		ReceiptRef:   optionalText(receiptRef),
	}
	if err := s.store.Queries().CreateTopupRequest(ctx, topup); err != nil {
		return nil, fmt.Errorf("create top-up request: %w", err)
	}
	return topup, nil
}

// Accept credits the customer's cash balance inside the pending->accepted
// compare-and-set, firing the referral trigger when applicable.
func (s *TopupService) Accept(ctx context.Context, topupID uuid.UUID, adminComment string) (*models.TopupRequest, error) {
	snap := s.settings.Snapshot()
	err := s.store.RunInTx(ctx, func(q repository.Queries) error {
		topup, err := q.GetTopupRequestForUpdate(ctx, topupID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrTopupNotFound
			}
			return fmt.Errorf("load top-up request: %w", err)
		}
		if topup.Status != domain.TopupStatusPending {
			return ErrTopupNotPending
		}

		rows, err := q.UpdateTopupRequest(ctx, repository.UpdateTopupRequestParams{
			ID:           topupID,
			FromStatus:   domain.TopupStatusPending,
			ToStatus:     domain.TopupStatusAccepted,
			AdminComment: optionalText(adminComment),
		})
		if err != nil {
			return fmt.Errorf("accept top-up request: %w", err)
		}
		if err := requireExactlyOne(rows, "accept top-up request"); err != nil {
			return err
		}

		return creditWithReferralTrigger(ctx, q, snap, topup.CustomerID, topup.Currency, topup.AmountMicros)
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("top-up accepted", zap.String("topup_id", topupID.String()))
	return s.Get(ctx, topupID)
}

// Reject declines a pending deposit; reason is mandatory.
func (s *TopupService) Reject(ctx context.Context, topupID uuid.UUID, reason string) (*models.TopupRequest, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, ErrReasonRequired
	}

	rows, err := s.store.Queries().UpdateTopupRequest(ctx, repository.UpdateTopupRequestParams{
		ID:           topupID,
		FromStatus:   domain.TopupStatusPending,
		ToStatus:     domain.TopupStatusRejected,
		AdminComment: &reason,
	})
	if err != nil {
		return nil, fmt.Errorf("reject top-up request: %w", err)
	}
	if rows == 0 {
		if _, err := s.Get(ctx, topupID); err != nil {
			return nil, err
		}
		return nil, ErrTopupNotPending
	}
	return s.Get(ctx, topupID)
}

// Get loads one top-up request.
func (s *TopupService) Get(ctx context.Context, topupID uuid.UUID) (*models.TopupRequest, error) {
	topup, err := s.store.Queries().GetTopupRequest(ctx, topupID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTopupNotFound
		}
		return nil, fmt.Errorf("get top-up request: %w", err)
	}
	return topup, nil
}

// ListByStatus pages top-up requests, oldest first.
func (s *TopupService) ListByStatus(ctx context.Context, status string, limit, offset int32) ([]models.TopupRequest, error) {
	return s.store.Queries().ListTopupsByStatus(ctx, status, clampLimit(limit), max(offset, 0))
}
