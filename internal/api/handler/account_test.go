package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/richboost/boosting-core/internal/domain"
	"github.com/richboost/boosting-core/internal/models"
	"github.com/richboost/boosting-core/internal/repository"
	"github.com/richboost/boosting-core/internal/service"
)

// adjustQueries backs the adjustment endpoint with a single KGS customer.
// The embedded interface panics on anything the endpoint should not touch.
type adjustQueries struct {
	repository.Queries
	customer  *models.Customer
	bonusRows []models.BonusLedgerEntry
}

func (q *adjustQueries) GetCustomer(ctx context.Context, id uuid.UUID) (*models.Customer, error) {
	if q.customer == nil || q.customer.ID != id {
		return nil, pgx.ErrNoRows
	}
	c := *q.customer
	return &c, nil
}

func (q *adjustQueries) CreditCustomerBalance(ctx context.Context, id uuid.UUID, cur domain.Currency, amount int64) (int64, error) {
	if q.customer == nil || q.customer.ID != id {
		return 0, nil
	}
	q.customer.BalanceKGS += amount
	return 1, nil
}

func (q *adjustQueries) DebitCustomerBalance(ctx context.Context, id uuid.UUID, cur domain.Currency, amount int64) (int64, error) {
	if q.customer == nil || q.customer.ID != id || q.customer.BalanceKGS < amount {
		return 0, nil
	}
	q.customer.BalanceKGS -= amount
	return 1, nil
}

func (q *adjustQueries) CreditCustomerBonus(ctx context.Context, id uuid.UUID, cur domain.Currency, amount int64) (int64, error) {
	if q.customer == nil || q.customer.ID != id {
		return 0, nil
	}
	q.customer.BonusKGS += amount
	return 1, nil
}

func (q *adjustQueries) DebitCustomerBonus(ctx context.Context, id uuid.UUID, cur domain.Currency, amount int64) (int64, error) {
	if q.customer == nil || q.customer.ID != id || q.customer.BonusKGS < amount {
		return 0, nil
	}
	q.customer.BonusKGS -= amount
	return 1, nil
}

func (q *adjustQueries) InsertBonusLedgerEntry(ctx context.Context, e *models.BonusLedgerEntry) error {
	q.bonusRows = append(q.bonusRows, *e)
	return nil
}

type adjustStore struct {
	q *adjustQueries
}

func (s *adjustStore) Queries() repository.Queries { return s.q }

func (s *adjustStore) RunInTx(ctx context.Context, fn func(q repository.Queries) error) error {
	return fn(s.q)
}

func adjustFixture() (*adjustQueries, http.Handler) {
	queries := &adjustQueries{
		customer: &models.Customer{
			ID:         uuid.New(),
			Username:   "adjustme",
			Region:     domain.RegionKG,
			BalanceKGS: 100_000_000,
		},
	}
	store := &adjustStore{q: queries}
	h := NewAccountHandler(service.NewAccountService(store), service.NewLedgerService(store, service.NewSettingsService(store)))
	r := chi.NewRouter()
	r.Post("/v1/customers/{id}/adjustments", h.AdjustBalance)
	return queries, r
}

func postAdjustment(t *testing.T, router http.Handler, customerID, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/customers/"+customerID+"/adjustments", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestAdjustBalanceCashCreditAndDebit(t *testing.T) {
	queries, router := adjustFixture()
	id := queries.customer.ID.String()

	rec := postAdjustment(t, router, id, `{"target":"balance","currency":"KGS","amount_micros":50000000}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"balance_kgs":150000000`)

	rec = postAdjustment(t, router, id, `{"target":"balance","currency":"KGS","amount_micros":-30000000}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, int64(120_000_000), queries.customer.BalanceKGS)

	// A debit past the balance changes nothing.
	rec = postAdjustment(t, router, id, `{"target":"balance","currency":"KGS","amount_micros":-900000000}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, int64(120_000_000), queries.customer.BalanceKGS)
}

func TestAdjustBalanceBonusWritesLedger(t *testing.T) {
	queries, router := adjustFixture()
	id := queries.customer.ID.String()

	rec := postAdjustment(t, router, id, `{"target":"bonus","currency":"KGS","amount_micros":30000000,"comment":"goodwill"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = postAdjustment(t, router, id, `{"target":"bonus","currency":"KGS","amount_micros":-10000000,"comment":"correction"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	require.Len(t, queries.bonusRows, 2)
	assert.Equal(t, domain.BonusSourceAdmin, queries.bonusRows[0].Source)
	assert.Equal(t, int64(30_000_000), queries.bonusRows[0].AmountMicros)
	assert.Equal(t, "goodwill", queries.bonusRows[0].Comment)
	assert.Equal(t, int64(-10_000_000), queries.bonusRows[1].AmountMicros)
	assert.Equal(t, int64(20_000_000), queries.customer.BonusKGS)
}

func TestAdjustBalanceRejectsBadInput(t *testing.T) {
	queries, router := adjustFixture()
	id := queries.customer.ID.String()

	rec := postAdjustment(t, router, id, `{"target":"balance","currency":"KGS","amount_micros":0}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postAdjustment(t, router, id, `{"target":"balance","currency":"USD","amount_micros":1000}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postAdjustment(t, router, id, `{"target":"escrow","currency":"KGS","amount_micros":1000}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postAdjustment(t, router, uuid.NewString(), `{"target":"balance","currency":"KGS","amount_micros":1000}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
