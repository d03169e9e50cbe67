package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/richboost/boosting-core/internal/domain"
	"github.com/richboost/boosting-core/internal/observability"
)

// ReconciliationService verifies accounting integrity invariants.
type ReconciliationService struct {
	store QueryStore
}

func NewReconciliationService(store QueryStore) *ReconciliationService {
	return &ReconciliationService{store: store}
}

// Run checks that every currency's bonus balances equal the net of the
// bonus ledger, that no account holds a negative balance, that every
// order's payment legs sum to its total, and that no promo activation
// counter drifted from its activation rows. Divergences are logged and
// counted, not repaired.
func (s *ReconciliationService) Run(ctx context.Context) error {
	queries := s.store.Queries()

	clean := true
	for _, currency := range domain.Currencies() {
		balances, err := queries.SumCustomerBonuses(ctx, currency)
		if err != nil {
			return fmt.Errorf("sum bonus balances for %s: %w", currency, err)
		}
		ledger, err := queries.SumBonusLedger(ctx, currency)
		if err != nil {
			return fmt.Errorf("sum bonus ledger for %s: %w", currency, err)
		}
		if balances != ledger {
			clean = false
			observability.IncrementLedgerImbalance(string(currency))
			zap.L().Error("CRITICAL: bonus ledger imbalance detected",
				zap.String("currency", string(currency)),
				zap.Int64("balance_sum_micros", balances),
				zap.Int64("ledger_sum_micros", ledger))
		}

		customerCash, err := queries.SumCustomerBalances(ctx, currency)
		if err != nil {
			return fmt.Errorf("sum customer balances for %s: %w", currency, err)
		}
		workerCash, err := queries.SumWorkerBalances(ctx, currency)
		if err != nil {
			return fmt.Errorf("sum worker balances for %s: %w", currency, err)
		}
		if customerCash < 0 || workerCash < 0 {
			clean = false
			observability.IncrementLedgerImbalance(string(currency))
			zap.L().Error("CRITICAL: negative balance total detected",
				zap.String("currency", string(currency)),
				zap.Int64("customer_sum_micros", customerCash),
				zap.Int64("worker_sum_micros", workerCash))
		}
	}

	negatives, err := queries.CountNegativeBalances(ctx)
	if err != nil {
		return fmt.Errorf("count negative balances: %w", err)
	}
	if negatives > 0 {
		clean = false
		observability.IncrementLedgerImbalance("negative_balance")
		zap.L().Error("CRITICAL: accounts with negative balances detected",
			zap.Int64("accounts", negatives))
	}

	mismatchedOrders, err := queries.ListPaymentMismatchedOrders(ctx)
	if err != nil {
		return fmt.Errorf("check order payment splits: %w", err)
	}
	for _, order := range mismatchedOrders {
		clean = false
		observability.IncrementLedgerImbalance("order:" + order.Code)
		zap.L().Error("order payment legs do not sum to order total",
			zap.String("code", order.Code),
			zap.Int64("total_micros", order.TotalMicros),
			zap.Int64("bonus_paid_micros", order.BonusPaidMicros),
			zap.Int64("balance_paid_micros", order.BalancePaidMicros))
	}

	mismatched, err := queries.ListActivationCountMismatches(ctx)
	if err != nil {
		return fmt.Errorf("check promo activation counts: %w", err)
	}
	for _, promo := range mismatched {
		clean = false
		observability.IncrementLedgerImbalance("promo:" + promo.Code)
		zap.L().Error("promo activation count drifted from activation rows",
			zap.String("code", promo.Code),
			zap.Int32("activation_count", promo.ActivationCount))
	}

	if clean {
		zap.L().Info("reconciliation clean")
	}
	return nil
}
