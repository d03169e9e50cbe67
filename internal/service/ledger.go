package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/richboost/boosting-core/internal/domain"
	"github.com/richboost/boosting-core/internal/models"
	"github.com/richboost/boosting-core/internal/repository"
)

// LedgerService exposes the atomic balance and bonus mutation primitives.
// Sufficiency checks live in the conditional SQL updates, so two concurrent
// debits can never both pass against stale reads.
type LedgerService struct {
	store    QueryStore
	settings *SettingsService
}

func NewLedgerService(store QueryStore, settings *SettingsService) *LedgerService {
	return &LedgerService{store: store, settings: settings}
}

// Debit removes cash from a customer balance. Insufficient funds leaves the
// balance untouched and returns domain.ErrInsufficientFunds.
func (s *LedgerService) Debit(ctx context.Context, customerID uuid.UUID, currency domain.Currency, amountMicros int64) error {
	if amountMicros <= 0 {
		return fmt.Errorf("invalid amount: %d", amountMicros)
	}
	return s.store.RunInTx(ctx, func(q repository.Queries) error {
		return debitCustomerCash(ctx, q, customerID, currency, amountMicros)
	})
}

// Credit adds cash to a customer balance without side effects. Top-up
// acceptance goes through CreditWithReferral instead.
func (s *LedgerService) Credit(ctx context.Context, customerID uuid.UUID, currency domain.Currency, amountMicros int64) error {
	if amountMicros <= 0 {
		return fmt.Errorf("invalid amount: %d", amountMicros)
	}
	return s.store.RunInTx(ctx, func(q repository.Queries) error {
		rows, err := q.CreditCustomerBalance(ctx, customerID, currency, amountMicros)
		if err != nil {
			return fmt.Errorf("credit customer balance: %w", err)
		}
		return requireExactlyOne(rows, "credit customer balance")
	})
}

// CreditWithReferral adds cash and, when this is the first credit that
// lifts the customer's balances off zero, pays the referrer bonus exactly
// once.
func (s *LedgerService) CreditWithReferral(ctx context.Context, customerID uuid.UUID, currency domain.Currency, amountMicros int64) error {
	if amountMicros <= 0 {
		return fmt.Errorf("invalid amount: %d", amountMicros)
	}
	snap := s.settings.Snapshot()
	return s.store.RunInTx(ctx, func(q repository.Queries) error {
		return creditWithReferralTrigger(ctx, q, snap, customerID, currency, amountMicros)
	})
}

// CreditBonus adds bonus credits and appends the matching ledger entry.
func (s *LedgerService) CreditBonus(ctx context.Context, customerID uuid.UUID, currency domain.Currency, amountMicros int64, source, comment string) error {
	if amountMicros <= 0 {
		return fmt.Errorf("invalid amount: %d", amountMicros)
	}
	return s.store.RunInTx(ctx, func(q repository.Queries) error {
		return creditCustomerBonus(ctx, q, customerID, currency, amountMicros, source, comment)
	})
}

// DebitBonus removes bonus credits and appends a negative ledger entry.
func (s *LedgerService) DebitBonus(ctx context.Context, customerID uuid.UUID, currency domain.Currency, amountMicros int64, source, comment string) error {
	if amountMicros <= 0 {
		return fmt.Errorf("invalid amount: %d", amountMicros)
	}
	return s.store.RunInTx(ctx, func(q repository.Queries) error {
		return debitCustomerBonus(ctx, q, customerID, currency, amountMicros, source, comment)
	})
}

// BonusHistory lists a customer's bonus ledger entries, newest first.
func (s *LedgerService) BonusHistory(ctx context.Context, customerID uuid.UUID, limit, offset int32) ([]models.BonusLedgerEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}
	if offset < 0 {
		offset = 0
	}
	return s.store.Queries().ListBonusLedger(ctx, customerID, limit, offset)
}

// Transaction-scoped helpers shared by the order, promo, top-up and payout
// services.

func debitCustomerCash(ctx context.Context, q repository.Queries, customerID uuid.UUID, currency domain.Currency, amountMicros int64) error {
	rows, err := q.DebitCustomerBalance(ctx, customerID, currency, amountMicros)
	if err != nil {
		return fmt.Errorf("debit customer balance: %w", err)
	}
	if rows == 0 {
		return domain.ErrInsufficientFunds
	}
	return nil
}

func creditCustomerBonus(ctx context.Context, q repository.Queries, customerID uuid.UUID, currency domain.Currency, amountMicros int64, source, comment string) error {
	rows, err := q.CreditCustomerBonus(ctx, customerID, currency, amountMicros)
	if err != nil {
		return fmt.Errorf("credit customer bonus: %w", err)
	}
	if err := requireExactlyOne(rows, "credit customer bonus"); err != nil {
		return err
	}
	return q.InsertBonusLedgerEntry(ctx, &models.BonusLedgerEntry{
		ID:           uuid.New(),
		CustomerID:   customerID,
		AmountMicros: amountMicros,
		Currency:     currency,
		Source:       source,
		Comment:      comment,
	})
}

func debitCustomerBonus(ctx context.Context, q repository.Queries, customerID uuid.UUID, currency domain.Currency, amountMicros int64, source, comment string) error {
	rows, err := q.DebitCustomerBonus(ctx, customerID, currency, amountMicros)
	if err != nil {
		return fmt.Errorf("debit customer bonus: %w", err)
	}
	if rows == 0 {
		return domain.ErrInsufficientFunds
	}
	return q.InsertBonusLedgerEntry(ctx, &models.BonusLedgerEntry{
		ID:           uuid.New(),
		CustomerID:   customerID,
		AmountMicros: -amountMicros,
		Currency:     currency,
		Source:       source,
		Comment:      comment,
	})
}

// creditWithReferralTrigger credits cash inside the caller's transaction and
// fires the one-shot referral bonus when the credit lifts the customer off
// all-zero balances for the first time. The referral_credited flag update is
// the serialization point: only the transaction that flips it pays out.
func creditWithReferralTrigger(ctx context.Context, q repository.Queries, snap *Snapshot, customerID uuid.UUID, currency domain.Currency, amountMicros int64) error {
	customer, err := q.GetCustomerForUpdate(ctx, customerID)
	if err != nil {
		return fmt.Errorf("load customer: %w", err)
	}

	wasZero := customer.AllBalancesZero()

	rows, err := q.CreditCustomerBalance(ctx, customerID, currency, amountMicros)
	if err != nil {
		return fmt.Errorf("credit customer balance: %w", err)
	}
	if err := requireExactlyOne(rows, "credit customer balance"); err != nil {
		return err
	}

	if !wasZero || customer.ReferrerID == nil || customer.ReferralCredited {
		return nil
	}

	flipped, err := q.SetReferralCredited(ctx, customerID)
	if err != nil {
		return fmt.Errorf("mark referral credited: %w", err)
	}
	if flipped == 0 {
		return nil
	}

	bonusCurrency, err := domain.CurrencyForRegion(customer.Region)
	if err != nil {
		return err
	}
	bonus := snap.ReferralBonusMicros[bonusCurrency]
	if bonus <= 0 {
		return nil
	}

	if err := creditCustomerBonus(ctx, q, *customer.ReferrerID, bonusCurrency, bonus,
		domain.BonusSourceReferral, "referral bonus for "+customer.Username); err != nil {
		return err
	}
	zap.L().Info("referral bonus credited",
		zap.String("referrer_id", customer.ReferrerID.String()),
		zap.String("referred_id", customerID.String()),
		zap.Int64("amount_micros", bonus),
		zap.String("currency", string(bonusCurrency)))
	return nil
}

func creditWorker(ctx context.Context, q repository.Queries, workerID uuid.UUID, currency domain.Currency, amountMicros int64) error {
	rows, err := q.CreditWorkerBalance(ctx, workerID, currency, amountMicros)
	if err != nil {
		return fmt.Errorf("credit worker balance: %w", err)
	}
	return requireExactlyOne(rows, "credit worker balance")
}

func debitWorker(ctx context.Context, q repository.Queries, workerID uuid.UUID, currency domain.Currency, amountMicros int64) error {
	rows, err := q.DebitWorkerBalance(ctx, workerID, currency, amountMicros)
	if err != nil {
		return fmt.Errorf("debit worker balance: %w", err)
	}
	if rows == 0 {
		return domain.ErrInsufficientFunds
	}
	return nil
}
