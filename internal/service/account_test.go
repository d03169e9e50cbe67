package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/richboost/boosting-core/internal/domain"
)

func TestRegisterCustomer(t *testing.T) {
	ctx := context.Background()
	accounts := NewAccountService(newMemStore())

	customer, err := accounts.RegisterCustomer(ctx, "  alice  ", domain.RegionKG, nil)
	require.NoError(t, err)
	assert.Equal(t, "alice", customer.Username)
	assert.Equal(t, domain.RegionKG, customer.Region)
	assert.True(t, customer.AllBalancesZero())

	reloaded, err := accounts.GetCustomer(ctx, customer.ID)
	require.NoError(t, err)
	assert.Equal(t, customer.ID, reloaded.ID)
}

func TestRegisterCustomerWithReferrer(t *testing.T) {
	ctx := context.Background()
	accounts := NewAccountService(newMemStore())

	referrer, err := accounts.RegisterCustomer(ctx, "alice", domain.RegionKG, nil)
	require.NoError(t, err)

	referred, err := accounts.RegisterCustomer(ctx, "bob", domain.RegionKG, &referrer.ID)
	require.NoError(t, err)
	require.NotNil(t, referred.ReferrerID)
	assert.Equal(t, referrer.ID, *referred.ReferrerID)

	unknown := uuid.New()
	_, err = accounts.RegisterCustomer(ctx, "carol", domain.RegionKG, &unknown)
	assert.ErrorContains(t, err, "referrer")
}

func TestRegisterCustomerValidation(t *testing.T) {
	ctx := context.Background()
	accounts := NewAccountService(newMemStore())

	_, err := accounts.RegisterCustomer(ctx, "  ", domain.RegionKG, nil)
	assert.Error(t, err)

	_, err = accounts.RegisterCustomer(ctx, "alice", domain.Region("US"), nil)
	assert.ErrorIs(t, err, domain.ErrPricingInput)

	_, err = accounts.RegisterCustomer(ctx, "alice", domain.RegionKG, nil)
	require.NoError(t, err)
	_, err = accounts.RegisterCustomer(ctx, "alice", domain.RegionRU, nil)
	assert.ErrorContains(t, err, "already taken")
}

func TestRegisterWorkerAndList(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	accounts := NewAccountService(store)

	worker, err := accounts.RegisterWorker(ctx, "booster", domain.RegionRU)
	require.NoError(t, err)
	assert.True(t, worker.Active)

	idle, err := accounts.RegisterWorker(ctx, "idle", domain.RegionRU)
	require.NoError(t, err)
	store.workers[idle.ID].Active = false

	active, err := accounts.ListActiveWorkers(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, worker.ID, active[0].ID)
}

func TestAccountNotFound(t *testing.T) {
	ctx := context.Background()
	accounts := NewAccountService(newMemStore())

	_, err := accounts.GetCustomer(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrCustomerNotFound)

	_, err = accounts.GetWorker(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrWorkerNotFound)
}
