package rates

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/richboost/boosting-core/internal/domain"
	"github.com/richboost/boosting-core/internal/observability"
)

// fallbackUSDRates is the static last-resort table, used when the provider
// is unreachable and no cached snapshot exists yet.
var fallbackUSDRates = map[domain.Currency]decimal.Decimal{
	domain.KGS: decimal.NewFromFloat(84.0),
	domain.KZT: decimal.NewFromFloat(460.0),
	domain.RUB: decimal.NewFromFloat(95.0),
}

type snapshot struct {
	usdRates  map[domain.Currency]decimal.Decimal
	fetchedAt time.Time
	fallback  bool
}

// Cache serves cross-currency rates from a TTL-bounded snapshot of
// USD-pivot rates. Concurrent refreshes collapse into one provider call;
// a stale snapshot keeps serving until a refresh succeeds.
type Cache struct {
	source Source
	ttl    time.Duration

	mu   sync.RWMutex
	snap *snapshot

	group singleflight.Group
}

func NewCache(source Source, ttl time.Duration) *Cache {
	return &Cache{source: source, ttl: ttl}
}

// Rate returns the multiplier converting from into to, and whether the
// value came from the static fallback table. Same-currency conversions
// short-circuit to 1 without touching the snapshot.
func (c *Cache) Rate(ctx context.Context, from, to domain.Currency) (decimal.Decimal, bool, error) {
	if from == to {
		return decimal.NewFromInt(1), false, nil
	}

	snap := c.current(ctx)

	fromRate, err := usdRate(snap.usdRates, from)
	if err != nil {
		return decimal.Zero, false, err
	}
	toRate, err := usdRate(snap.usdRates, to)
	if err != nil {
		return decimal.Zero, false, err
	}

	if snap.fallback {
		observability.IncrementRateFallback(string(to))
	}
	return toRate.Div(fromRate), snap.fallback, nil
}

// Convert re-denominates m into target. The boolean reports fallback use
// so callers can flag approximate amounts.
func (c *Cache) Convert(ctx context.Context, m domain.Money, target domain.Currency) (domain.Money, bool, error) {
	rate, usedFallback, err := c.Rate(ctx, m.Currency, target)
	if err != nil {
		return domain.Money{}, false, err
	}
	return m.Convert(target, rate), usedFallback, nil
}

// current returns a usable snapshot, refreshing through singleflight when
// the cached one is missing or past its TTL.
func (c *Cache) current(ctx context.Context) *snapshot {
	c.mu.RLock()
	snap := c.snap
	c.mu.RUnlock()

	if snap != nil && time.Since(snap.fetchedAt) < c.ttl {
		return snap
	}

	fresh, _, _ := c.group.Do("usd", func() (interface{}, error) {
		// Re-check under the flight: another caller may have refreshed
		// between our read and joining the group.
		c.mu.RLock()
		cur := c.snap
		c.mu.RUnlock()
		if cur != nil && time.Since(cur.fetchedAt) < c.ttl {
			return cur, nil
		}

		rates, err := c.source.FetchUSDRates(ctx)
		if err != nil {
			observability.IncrementRateRefresh("error")
			if cur != nil {
				zap.L().Warn("rate refresh failed, serving stale snapshot",
					zap.Error(err),
					zap.Time("fetched_at", cur.fetchedAt))
				return cur, nil
			}
			zap.L().Warn("rate refresh failed with no snapshot, using fallback table", zap.Error(err))
			return &snapshot{usdRates: fallbackUSDRates, fetchedAt: time.Now(), fallback: true}, nil
		}

		observability.IncrementRateRefresh("ok")
		next := &snapshot{usdRates: rates, fetchedAt: time.Now()}
		c.mu.Lock()
		c.snap = next
		c.mu.Unlock()
		return next, nil
	})
	return fresh.(*snapshot)
}

func usdRate(table map[domain.Currency]decimal.Decimal, cur domain.Currency) (decimal.Decimal, error) {
	if cur == domain.USD {
		return decimal.NewFromInt(1), nil
	}
	r, ok := table[cur]
	if !ok || !r.IsPositive() {
		return decimal.Zero, fmt.Errorf("no rate for currency %q", cur)
	}
	return r, nil
}
