package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/richboost/boosting-core/internal/domain"
)

func TestReconciliationCleanAfterBonusTraffic(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	settings := NewSettingsService(store)
	ledger := NewLedgerService(store, settings)
	recon := NewReconciliationService(store)

	customer := seedCustomer(store, domain.RegionKG, 0, 0)
	require.NoError(t, ledger.CreditBonus(ctx, customer.ID, domain.KGS, 40_000_000, domain.BonusSourceAdmin, "gift"))
	require.NoError(t, ledger.DebitBonus(ctx, customer.ID, domain.KGS, 10_000_000, domain.BonusSourceAdmin, "correction"))

	assert.NoError(t, recon.Run(ctx))
}

func TestReconciliationSurvivesDrift(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	recon := NewReconciliationService(store)

	// A bonus balance with no ledger backing and a drifted promo counter.
	customer := seedCustomer(store, domain.RegionKG, 0, 0)
	store.customers[customer.ID].BonusKGS = 99_000_000

	promos := NewPromoService(store)
	promo, err := promos.Create(ctx, CreatePromoParams{Code: "DRIFT", Effect: domain.PromoEffectDiscountPercent, Percent: 5})
	require.NoError(t, err)
	store.promos[promo.ID].ActivationCount = 3

	// Divergences are reported, not treated as run failures.
	assert.NoError(t, recon.Run(ctx))

	mismatched, err := store.Queries().ListActivationCountMismatches(ctx)
	require.NoError(t, err)
	require.Len(t, mismatched, 1)
	assert.Equal(t, "DRIFT", mismatched[0].Code)
}

func TestReconciliationFlagsNegativeBalances(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	recon := NewReconciliationService(store)

	customer := seedCustomer(store, domain.RegionKG, 0, 0)
	store.customers[customer.ID].BalanceKGS = -5_000_000
	worker := seedWorker(store, domain.RegionKZ, 0)
	store.workers[worker.ID].BalanceKZT = -1

	assert.NoError(t, recon.Run(ctx))

	negatives, err := store.Queries().CountNegativeBalances(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), negatives)
}

func TestReconciliationFlagsOrderPaymentDrift(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	settings := NewSettingsService(store)
	pricing := NewPricingService(settings)
	orders := NewOrderService(store, pricing, settings, &staticConverter{})
	recon := NewReconciliationService(store)

	customer := seedCustomer(store, domain.RegionKG, 1_000_000_000, 0)
	req := boostRequest()
	req.CustomerID = customer.ID
	order, err := orders.Create(ctx, req)
	require.NoError(t, err)

	// A freshly paid order splits cleanly.
	drifted, err := store.Queries().ListPaymentMismatchedOrders(ctx)
	require.NoError(t, err)
	assert.Empty(t, drifted)

	store.orders[order.ID].BalancePaidMicros -= 1_000_000
	assert.NoError(t, recon.Run(ctx))

	drifted, err = store.Queries().ListPaymentMismatchedOrders(ctx)
	require.NoError(t, err)
	require.Len(t, drifted, 1)
	assert.Equal(t, order.Code, drifted[0].Code)
}
