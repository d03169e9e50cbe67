package rates

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/richboost/boosting-core/internal/domain"
)

// Source fetches USD-pivot exchange rates from an external provider.
type Source interface {
	// FetchUSDRates returns the rate from USD into every supported
	// balance currency.
	FetchUSDRates(ctx context.Context) (map[domain.Currency]decimal.Decimal, error)
}

// HTTPSource pulls rates from an exchangerate-api style endpoint that
// returns {"rates": {"KGS": 84.0, ...}} relative to USD.
type HTTPSource struct {
	url    string
	client *http.Client
}

func NewHTTPSource(url string, timeout time.Duration) *HTTPSource {
	return &HTTPSource{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

func (s *HTTPSource) FetchUSDRates(ctx context.Context) (map[domain.Currency]decimal.Decimal, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build rate request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrConversionUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: rate provider returned %d", domain.ErrConversionUnavailable, resp.StatusCode)
	}

	var payload struct {
		Rates map[string]float64 `json:"rates"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: decode rate payload: %v", domain.ErrConversionUnavailable, err)
	}

	out := make(map[domain.Currency]decimal.Decimal, len(domain.Currencies()))
	for _, cur := range domain.Currencies() {
		raw, ok := payload.Rates[string(cur)]
		if !ok || raw <= 0 {
			return nil, fmt.Errorf("%w: provider payload missing %s", domain.ErrConversionUnavailable, cur)
		}
		out[cur] = decimal.NewFromFloat(raw)
	}
	return out, nil
}

// StaticSource returns a fixed rate table. Used in tests and as a stand-in
// when no provider is configured.
type StaticSource struct {
	Rates map[domain.Currency]decimal.Decimal
	Err   error
}

func (s *StaticSource) FetchUSDRates(ctx context.Context) (map[domain.Currency]decimal.Decimal, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	out := make(map[domain.Currency]decimal.Decimal, len(s.Rates))
	for k, v := range s.Rates {
		out[k] = v
	}
	return out, nil
}
