package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/richboost/boosting-core/internal/domain"
)

func TestLedgerDebitInsufficientFunds(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	ledger := NewLedgerService(store, NewSettingsService(store))
	customer := seedCustomer(store, domain.RegionKG, 50_000_000, 0)

	err := ledger.Debit(ctx, customer.ID, domain.KGS, 80_000_000)
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)

	reloaded, err := store.Queries().GetCustomer(ctx, customer.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(50_000_000), reloaded.BalanceKGS)
}

func TestLedgerDebitAndCredit(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	ledger := NewLedgerService(store, NewSettingsService(store))
	customer := seedCustomer(store, domain.RegionKG, 100_000_000, 0)

	require.NoError(t, ledger.Debit(ctx, customer.ID, domain.KGS, 30_000_000))
	require.NoError(t, ledger.Credit(ctx, customer.ID, domain.KGS, 10_000_000))

	reloaded, err := store.Queries().GetCustomer(ctx, customer.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(80_000_000), reloaded.BalanceKGS)
}

func TestLedgerRejectsNonPositiveAmounts(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	ledger := NewLedgerService(store, NewSettingsService(store))
	customer := seedCustomer(store, domain.RegionKG, 100_000_000, 0)

	assert.Error(t, ledger.Debit(ctx, customer.ID, domain.KGS, 0))
	assert.Error(t, ledger.Credit(ctx, customer.ID, domain.KGS, -5))
	assert.Error(t, ledger.CreditBonus(ctx, customer.ID, domain.KGS, 0, domain.BonusSourceAdmin, ""))
}

func TestLedgerBonusMovesMatchLedgerEntries(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	ledger := NewLedgerService(store, NewSettingsService(store))
	customer := seedCustomer(store, domain.RegionKG, 0, 0)

	require.NoError(t, ledger.CreditBonus(ctx, customer.ID, domain.KGS, 40_000_000, domain.BonusSourceAdmin, "welcome gift"))
	require.NoError(t, ledger.DebitBonus(ctx, customer.ID, domain.KGS, 15_000_000, domain.BonusSourceAdmin, "correction"))

	reloaded, err := store.Queries().GetCustomer(ctx, customer.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(25_000_000), reloaded.BonusKGS)

	sum, err := store.Queries().SumBonusLedger(ctx, domain.KGS)
	require.NoError(t, err)
	assert.Equal(t, reloaded.BonusKGS, sum)

	entries, err := ledger.BonusHistory(ctx, customer.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, int64(-15_000_000), entries[0].AmountMicros)
	assert.Equal(t, int64(40_000_000), entries[1].AmountMicros)
}

func TestLedgerDebitBonusInsufficientLeavesNoEntry(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	ledger := NewLedgerService(store, NewSettingsService(store))
	customer := seedCustomer(store, domain.RegionKG, 0, 10_000_000)

	err := ledger.DebitBonus(ctx, customer.ID, domain.KGS, 20_000_000, domain.BonusSourceAdmin, "correction")
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)

	entries, err := ledger.BonusHistory(ctx, customer.ID, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestLedgerReferralBonusFiresOnce(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	ledger := NewLedgerService(store, NewSettingsService(store))

	referrer := seedCustomer(store, domain.RegionKG, 0, 0)
	referred := seedCustomer(store, domain.RegionKG, 0, 0)
	store.customers[referred.ID].ReferrerID = &referrer.ID

	require.NoError(t, ledger.CreditWithReferral(ctx, referred.ID, domain.KGS, 200_000_000))

	// The default referral bonus for a KG customer is 100 in KGS.
	ref, err := store.Queries().GetCustomer(ctx, referrer.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(100_000_000), ref.BonusKGS)

	entries, err := ledger.BonusHistory(ctx, referrer.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, domain.BonusSourceReferral, entries[0].Source)

	// A second credit pays nothing more.
	require.NoError(t, ledger.CreditWithReferral(ctx, referred.ID, domain.KGS, 50_000_000))
	ref, err = store.Queries().GetCustomer(ctx, referrer.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(100_000_000), ref.BonusKGS)
}

func TestLedgerReferralSkippedWhenBalanceNotZero(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	ledger := NewLedgerService(store, NewSettingsService(store))

	referrer := seedCustomer(store, domain.RegionKG, 0, 0)
	referred := seedCustomer(store, domain.RegionKG, 5_000_000, 0)
	store.customers[referred.ID].ReferrerID = &referrer.ID

	require.NoError(t, ledger.CreditWithReferral(ctx, referred.ID, domain.KGS, 200_000_000))

	ref, err := store.Queries().GetCustomer(ctx, referrer.ID)
	require.NoError(t, err)
	assert.Zero(t, ref.BonusKGS)
}

func TestLedgerReferralWithoutReferrer(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	ledger := NewLedgerService(store, NewSettingsService(store))
	customer := seedCustomer(store, domain.RegionKG, 0, 0)

	require.NoError(t, ledger.CreditWithReferral(ctx, customer.ID, domain.KGS, 200_000_000))

	reloaded, err := store.Queries().GetCustomer(ctx, customer.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(200_000_000), reloaded.BalanceKGS)
	assert.False(t, reloaded.ReferralCredited)
}
