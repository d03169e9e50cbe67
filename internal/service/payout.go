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
	"github.com/richboost/boosting-core/internal/observability"
	"github.com/richboost/boosting-core/internal/repository"
)

var (
	ErrPayoutNotFound   = errors.New("payout request not found")
	ErrPayoutNotPending = errors.New("payout request is not pending")
	ErrReceiptRequired  = errors.New("receipt reference is required")
	ErrReasonRequired   = errors.New("a reason is required")
)

// PayoutService handles worker withdrawal requests. Funds stay on the
// worker balance until an admin approves; approval debits atomically inside
// the pending->approved compare-and-set.
type PayoutService struct {
	store     QueryStore
	converter Converter
}

func NewPayoutService(store QueryStore, converter Converter) *PayoutService {
	return &PayoutService{store: store, converter: converter}
}

// Request files a withdrawal. The balance check here is advisory (funds are
// not reserved); the authoritative check happens at approval.
func (s *PayoutService) Request(ctx context.Context, workerID uuid.UUID, amountMicros int64, currency domain.Currency, paymentDetails string) (*models.PayoutRequest, error) {
	if amountMicros <= 0 {
		return nil, fmt.Errorf("invalid amount: %d", amountMicros)
	}
	if strings.TrimSpace(paymentDetails) == "" {
		return nil, errors.New("payment details are required")
	}
	if _, err := domain.ParseCurrency(string(currency)); err != nil {
		return nil, err
	}

	worker, err := s.store.Queries().GetWorker(ctx, workerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("worker %s not found", workerID)
		}
		return nil, fmt.Errorf("load worker: %w", err)
	}
	if worker.Balance(currency) < amountMicros {
		return nil, domain.ErrInsufficientFunds
	}

	payout := &models.PayoutRequest{
		ID:             uuid.New(),
		WorkerID:       workerID,
		AmountMicros:   amountMicros,
		Currency:       currency,
		Status:         domain.PayoutStatusPending,
		PaymentDetails: paymentDetails,
	}
	if err := s.store.Queries().CreatePayoutRequest(ctx, payout); err != nil {
		return nil, fmt.Errorf("create payout request: %w", err)
	}

	zap.L().Info("payout requested",
		zap.String("payout_id", payout.ID.String()),
		zap.String("worker_id", workerID.String()),
		zap.Int64("amount_micros", amountMicros),
		zap.String("currency", string(currency)))
	return payout, nil
}

// Approve settles a pending request: it debits the worker balance and
// records the transfer receipt, all in one transaction. A request that is
// no longer pending returns ErrPayoutNotPending, so admin retries cannot
// double-debit. Insufficient funds at approval time leaves the request
// pending.
func (s *PayoutService) Approve(ctx context.Context, payoutID uuid.UUID, receiptRef, adminComment string) (*models.PayoutRequest, error) {
	receiptRef = strings.TrimSpace(receiptRef)
	if receiptRef == "" {
		return nil, ErrReceiptRequired
	}

	err := s.store.RunInTx(ctx, func(q repository.Queries) error {
		payout, err := q.GetPayoutRequestForUpdate(ctx, payoutID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrPayoutNotFound
			}
			return fmt.Errorf("load payout request: %w", err)
		}
		if payout.Status != domain.PayoutStatusPending {
			return ErrPayoutNotPending
		}

		if err := debitWorker(ctx, q, payout.WorkerID, payout.Currency, payout.AmountMicros); err != nil {
			return err
		}

		rows, err := q.UpdatePayoutRequest(ctx, repository.UpdatePayoutRequestParams{
			ID:           payoutID,
			FromStatus:   domain.PayoutStatusPending,
			ToStatus:     domain.PayoutStatusApproved,
			ReceiptRef:   &receiptRef,
			AdminComment: optionalText(adminComment),
		})
		if err != nil {
			return fmt.Errorf("approve payout request: %w", err)
		}
		return requireExactlyOne(rows, "approve payout request")
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("payout approved", zap.String("payout_id", payoutID.String()), zap.String("receipt_ref", receiptRef))
	return s.Get(ctx, payoutID)
}

// Reject declines a pending request; the balance is untouched.
func (s *PayoutService) Reject(ctx context.Context, payoutID uuid.UUID, reason string) (*models.PayoutRequest, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, ErrReasonRequired
	}

	rows, err := s.store.Queries().UpdatePayoutRequest(ctx, repository.UpdatePayoutRequestParams{
		ID:           payoutID,
		FromStatus:   domain.PayoutStatusPending,
		ToStatus:     domain.PayoutStatusRejected,
		AdminComment: &reason,
	})
	if err != nil {
		return nil, fmt.Errorf("reject payout request: %w", err)
	}
	if rows == 0 {
		if _, err := s.Get(ctx, payoutID); err != nil {
			return nil, err
		}
		return nil, ErrPayoutNotPending
	}
	return s.Get(ctx, payoutID)
}

// Get loads one payout request.
func (s *PayoutService) Get(ctx context.Context, payoutID uuid.UUID) (*models.PayoutRequest, error) {
	payout, err := s.store.Queries().GetPayoutRequest(ctx, payoutID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPayoutNotFound
		}
		return nil, fmt.Errorf("get payout request: %w", err)
	}
	return payout, nil
}

// ListByStatus pages payout requests, oldest first.
func (s *PayoutService) ListByStatus(ctx context.Context, status string, limit, offset int32) ([]models.PayoutRequest, error) {
	return s.store.Queries().ListPayoutsByStatus(ctx, status, clampLimit(limit), max(offset, 0))
}

// PendingQueueSize reports the review backlog and feeds the gauge.
func (s *PayoutService) PendingQueueSize(ctx context.Context) (int64, error) {
	count, err := s.store.Queries().CountPayoutsByStatus(ctx, domain.PayoutStatusPending)
	if err != nil {
		return 0, fmt.Errorf("count pending payouts: %w", err)
	}
	observability.SetPayoutQueueSize(count)
	return count, nil
}

// ConvertBalance moves part of a worker's balance from one currency to
// another through the rate cache, as one atomic debit plus converted
// credit.
func (s *PayoutService) ConvertBalance(ctx context.Context, workerID uuid.UUID, from, to domain.Currency, amountMicros int64) (*models.Worker, error) {
	if amountMicros <= 0 {
		return nil, fmt.Errorf("invalid amount: %d", amountMicros)
	}
	if from == to {
		return nil, errors.New("source and target currency must differ")
	}
	if _, err := domain.ParseCurrency(string(from)); err != nil {
		return nil, err
	}
	if _, err := domain.ParseCurrency(string(to)); err != nil {
		return nil, err
	}

	converted, usedFallback, err := s.converter.Convert(ctx, domain.NewMoney(amountMicros, from), to)
	if err != nil {
		return nil, fmt.Errorf("convert amount: %w", err)
	}

	err = s.store.RunInTx(ctx, func(q repository.Queries) error {
		if err := debitWorker(ctx, q, workerID, from, amountMicros); err != nil {
			return err
		}
		return creditWorker(ctx, q, workerID, to, converted.Amount)
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("worker balance converted",
		zap.String("worker_id", workerID.String()),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
		zap.Int64("debited_micros", amountMicros),
		zap.Int64("credited_micros", converted.Amount),
		zap.Bool("fallback_rate", usedFallback))

	worker, err := s.store.Queries().GetWorker(ctx, workerID)
	if err != nil {
		return nil, fmt.Errorf("reload worker: %w", err)
	}
	return worker, nil
}

func optionalText(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}
