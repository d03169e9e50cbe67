package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/richboost/boosting-core/internal/domain"
)

func int32Ptr(v int32) *int32 { return &v }

func TestPromoActivateUnknownCode(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	promos := NewPromoService(store)
	customer := seedCustomer(store, domain.RegionKG, 0, 0)

	_, err := promos.Activate(ctx, customer.ID, "NOPE")
	assert.ErrorIs(t, err, domain.ErrPromoNotFound)

	_, err = promos.Activate(ctx, customer.ID, "  ")
	assert.ErrorIs(t, err, domain.ErrPromoNotFound)
}

func TestPromoActivateDiscountArmsCustomer(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	promos := NewPromoService(store)
	customer := seedCustomer(store, domain.RegionKG, 0, 0)

	_, err := promos.Create(ctx, CreatePromoParams{
		Code:    "SAVE10",
		Effect:  domain.PromoEffectDiscountPercent,
		Percent: 10,
	})
	require.NoError(t, err)

	effect, err := promos.Activate(ctx, customer.ID, "SAVE10")
	require.NoError(t, err)
	assert.Equal(t, domain.PromoEffectDiscountPercent, effect.Kind)
	assert.Equal(t, int32(10), effect.DiscountPercent)

	reloaded, err := store.Queries().GetCustomer(ctx, customer.ID)
	require.NoError(t, err)
	assert.Equal(t, int32(10), reloaded.DiscountPercent)
}

func TestPromoActivateBonusCreditsCustomer(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	promos := NewPromoService(store)
	customer := seedCustomer(store, domain.RegionKG, 0, 0)

	_, err := promos.Create(ctx, CreatePromoParams{
		Code:         "GIFT",
		Effect:       domain.PromoEffectBonusAmount,
		AmountMicros: 25_000_000,
		Currency:     domain.KGS,
	})
	require.NoError(t, err)

	effect, err := promos.Activate(ctx, customer.ID, "GIFT")
	require.NoError(t, err)
	assert.Equal(t, int64(25_000_000), effect.BonusMicros)

	reloaded, err := store.Queries().GetCustomer(ctx, customer.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(25_000_000), reloaded.BonusKGS)

	sum, err := store.Queries().SumBonusLedger(ctx, domain.KGS)
	require.NoError(t, err)
	assert.Equal(t, int64(25_000_000), sum)
}

func TestPromoActivateTwiceByOneCustomer(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	promos := NewPromoService(store)
	customer := seedCustomer(store, domain.RegionKG, 0, 0)

	promo, err := promos.Create(ctx, CreatePromoParams{
		Code:    "ONCE",
		Effect:  domain.PromoEffectDiscountPercent,
		Percent: 5,
	})
	require.NoError(t, err)

	_, err = promos.Activate(ctx, customer.ID, "ONCE")
	require.NoError(t, err)

	_, err = promos.Activate(ctx, customer.ID, "ONCE")
	assert.ErrorIs(t, err, domain.ErrPromoAlreadyActivated)

	// The failed attempt rolled back its counter bump.
	reloaded, err := store.Queries().GetPromoCodeForUpdate(ctx, promo.ID)
	require.NoError(t, err)
	assert.Equal(t, int32(1), reloaded.ActivationCount)
}

func TestPromoActivateExhausted(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	promos := NewPromoService(store)
	first := seedCustomer(store, domain.RegionKG, 0, 0)
	second := seedCustomer(store, domain.RegionKG, 0, 0)

	_, err := promos.Create(ctx, CreatePromoParams{
		Code:           "LIMITED",
		Effect:         domain.PromoEffectDiscountPercent,
		Percent:        5,
		MaxActivations: int32Ptr(1),
	})
	require.NoError(t, err)

	_, err = promos.Activate(ctx, first.ID, "LIMITED")
	require.NoError(t, err)

	_, err = promos.Activate(ctx, second.ID, "LIMITED")
	assert.ErrorIs(t, err, domain.ErrPromoExhausted)
}

func TestPromoActivateExpired(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	promos := NewPromoService(store)
	customer := seedCustomer(store, domain.RegionKG, 0, 0)

	past := time.Now().Add(-time.Hour)
	_, err := promos.Create(ctx, CreatePromoParams{
		Code:      "OLD",
		Effect:    domain.PromoEffectDiscountPercent,
		Percent:   5,
		ExpiresAt: &past,
	})
	require.NoError(t, err)

	_, err = promos.Activate(ctx, customer.ID, "OLD")
	assert.ErrorIs(t, err, domain.ErrPromoExpired)
}

func TestPromoActivateDeactivatedCode(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	promos := NewPromoService(store)
	customer := seedCustomer(store, domain.RegionKG, 0, 0)

	promo, err := promos.Create(ctx, CreatePromoParams{
		Code:    "RETIRED",
		Effect:  domain.PromoEffectDiscountPercent,
		Percent: 5,
	})
	require.NoError(t, err)
	require.NoError(t, promos.SetActive(ctx, promo.ID, false))

	_, err = promos.Activate(ctx, customer.ID, "RETIRED")
	assert.ErrorIs(t, err, domain.ErrPromoNotFound)
}

func TestPromoCreateValidation(t *testing.T) {
	ctx := context.Background()
	promos := NewPromoService(newMemStore())

	cases := map[string]CreatePromoParams{
		"empty code":           {Effect: domain.PromoEffectDiscountPercent, Percent: 10},
		"unknown effect":       {Code: "X", Effect: "cashback"},
		"percent too high":     {Code: "X", Effect: domain.PromoEffectDiscountPercent, Percent: 120},
		"zero bonus":           {Code: "X", Effect: domain.PromoEffectBonusAmount, Currency: domain.KGS},
		"bad bonus currency":   {Code: "X", Effect: domain.PromoEffectBonusAmount, AmountMicros: 1, Currency: "EUR"},
		"zero max activations": {Code: "X", Effect: domain.PromoEffectDiscountPercent, Percent: 10, MaxActivations: int32Ptr(0)},
	}

	for name, params := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := promos.Create(ctx, params)
			assert.Error(t, err)
		})
	}
}

func TestPromoCreateDuplicateCode(t *testing.T) {
	ctx := context.Background()
	promos := NewPromoService(newMemStore())

	_, err := promos.Create(ctx, CreatePromoParams{Code: "TWIN", Effect: domain.PromoEffectDiscountPercent, Percent: 5})
	require.NoError(t, err)

	_, err = promos.Create(ctx, CreatePromoParams{Code: "TWIN", Effect: domain.PromoEffectDiscountPercent, Percent: 5})
	assert.ErrorContains(t, err, "already exists")
}

func TestPromoSetActiveUnknownID(t *testing.T) {
	err := NewPromoService(newMemStore()).SetActive(context.Background(), uuid.New(), false)
	assert.ErrorIs(t, err, domain.ErrPromoNotFound)
}

func TestPromoSweepExpired(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	promos := NewPromoService(store)

	past := time.Now().Add(-time.Minute)
	future := time.Now().Add(time.Hour)
	expired, err := promos.Create(ctx, CreatePromoParams{Code: "GONE", Effect: domain.PromoEffectDiscountPercent, Percent: 5, ExpiresAt: &past})
	require.NoError(t, err)
	alive, err := promos.Create(ctx, CreatePromoParams{Code: "STILL", Effect: domain.PromoEffectDiscountPercent, Percent: 5, ExpiresAt: &future})
	require.NoError(t, err)

	count, err := promos.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	reloadedExpired, err := store.Queries().GetPromoCodeForUpdate(ctx, expired.ID)
	require.NoError(t, err)
	assert.False(t, reloadedExpired.Active)

	reloadedAlive, err := store.Queries().GetPromoCodeForUpdate(ctx, alive.ID)
	require.NoError(t, err)
	assert.True(t, reloadedAlive.Active)
}
