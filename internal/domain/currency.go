package domain

import "fmt"

// Currency is an ISO 4217 currency code supported by the platform.
type Currency string

const (
	KGS Currency = "KGS"
	KZT Currency = "KZT"
	RUB Currency = "RUB"

	// USD is the pivot for FX rate lookups; no balances are held in it.
	USD Currency = "USD"
)

// Region identifies a service region. Each region settles in exactly one
// currency.
type Region string

const (
	RegionKG Region = "KG"
	RegionKZ Region = "KZ"
	RegionRU Region = "RU"
)

var regionCurrencies = map[Region]Currency{
	RegionKG: KGS,
	RegionKZ: KZT,
	RegionRU: RUB,
}

// Currencies lists every currency balances are held in, in a stable order.
func Currencies() []Currency {
	return []Currency{KGS, KZT, RUB}
}

// Regions lists every supported region in a stable order.
func Regions() []Region {
	return []Region{RegionKG, RegionKZ, RegionRU}
}

// CurrencyForRegion resolves the settlement currency of a region.
func CurrencyForRegion(region Region) (Currency, error) {
	c, ok := regionCurrencies[region]
	if !ok {
		return "", fmt.Errorf("%w: unknown region %q", ErrPricingInput, region)
	}
	return c, nil
}

// ParseRegion validates a region string.
func ParseRegion(s string) (Region, error) {
	r := Region(s)
	if _, ok := regionCurrencies[r]; !ok {
		return "", fmt.Errorf("%w: unknown region %q", ErrPricingInput, s)
	}
	return r, nil
}

// ParseCurrency validates a currency string against the balance currencies.
func ParseCurrency(s string) (Currency, error) {
	c := Currency(s)
	for _, known := range Currencies() {
		if c == known {
			return c, nil
		}
	}
	return "", fmt.Errorf("unsupported currency %q", s)
}
