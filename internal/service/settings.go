package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/richboost/boosting-core/internal/domain"
	"github.com/richboost/boosting-core/internal/models"
	"github.com/richboost/boosting-core/internal/repository"
)

// Setting keys. Values are JSON documents; amounts are in major currency
// units and converted to micros when the snapshot is built.
const (
	SettingWorkerSharePercent = "worker_share_percent"
	SettingReferralBonus      = "referral_bonus"
	SettingMinTopup           = "min_topup"
	SettingModeMultipliers    = "mode_multipliers"
	SettingTierPrices         = "tier_prices"
	SettingMythicBandPrices   = "mythic_band_prices"
	SettingCoachingHourPrice  = "coaching_hour_price"
)

// Snapshot is an immutable view of the runtime settings. Pricing and the
// money-moving services read from a snapshot so a mid-operation reload
// cannot mix old and new values.
type Snapshot struct {
	WorkerSharePercent  int32
	ReferralBonusMicros map[domain.Currency]int64
	MinTopupMicros      map[domain.Currency]int64
	ModeMultipliers     map[string]decimal.Decimal
	// TierUnitMicros is the per-star price for each non-mythic tier.
	TierUnitMicros map[domain.Region]map[string]int64
	// MythicBandMicros holds four per-star band prices, cheapest first.
	MythicBandMicros   map[domain.Region][]int64
	CoachingHourMicros map[domain.Region]int64
}

func defaultSnapshot() *Snapshot {
	mkTier := func(scale float64) map[string]int64 {
		out := make(map[string]int64, len(rankTiers))
		base := map[string]float64{
			TierWarrior:     30,
			TierElite:       35,
			TierMaster:      40,
			TierGrandmaster: 50,
			TierEpic:        65,
			TierLegend:      80,
		}
		for tier, price := range base {
			out[tier] = toMicros(price * scale)
		}
		return out
	}
	mkBands := func(scale float64) []int64 {
		return []int64{
			toMicros(100 * scale),
			toMicros(130 * scale),
			toMicros(170 * scale),
			toMicros(220 * scale),
		}
	}

	// Scales approximate the fallback FX table so defaults are comparable
	// across regions.
	const kgScale, kzScale, ruScale = 1.0, 5.5, 1.1

	return &Snapshot{
		WorkerSharePercent: 70,
		ReferralBonusMicros: map[domain.Currency]int64{
			domain.KGS: toMicros(100),
			domain.KZT: toMicros(550),
			domain.RUB: toMicros(110),
		},
		MinTopupMicros: map[domain.Currency]int64{
			domain.KGS: toMicros(100),
			domain.KZT: toMicros(500),
			domain.RUB: toMicros(100),
		},
		ModeMultipliers: map[string]decimal.Decimal{
			domain.ModeAccount:  decimal.NewFromInt(1),
			domain.ModeShared:   decimal.NewFromFloat(2.5),
			domain.ModeWinrate:  decimal.NewFromFloat(1.5),
			domain.ModeMMR:      decimal.NewFromInt(1),
			domain.ModeCoaching: decimal.NewFromInt(1),
		},
		TierUnitMicros: map[domain.Region]map[string]int64{
			domain.RegionKG: mkTier(kgScale),
			domain.RegionKZ: mkTier(kzScale),
			domain.RegionRU: mkTier(ruScale),
		},
		MythicBandMicros: map[domain.Region][]int64{
			domain.RegionKG: mkBands(kgScale),
			domain.RegionKZ: mkBands(kzScale),
			domain.RegionRU: mkBands(ruScale),
		},
		CoachingHourMicros: map[domain.Region]int64{
			domain.RegionKG: toMicros(400),
			domain.RegionKZ: toMicros(2200),
			domain.RegionRU: toMicros(450),
		},
	}
}

func toMicros(major float64) int64 {
	return domain.FromDecimal(decimal.NewFromFloat(major))
}

// SettingsService keeps the settings table mirrored into an in-memory
// snapshot. Absent or malformed rows fall back to compiled defaults.
type SettingsService struct {
	store QueryStore

	mu   sync.RWMutex
	snap *Snapshot
}

func NewSettingsService(store QueryStore) *SettingsService {
	return &SettingsService{store: store, snap: defaultSnapshot()}
}

// Snapshot returns the current settings view. The returned value must be
// treated as read-only.
func (s *SettingsService) Snapshot() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// Reload rebuilds the snapshot from the settings table.
func (s *SettingsService) Reload(ctx context.Context) error {
	rows, err := s.store.Queries().ListSettings(ctx)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	snap := defaultSnapshot()
	for _, row := range rows {
		if err := applySetting(snap, row.Key, row.Value); err != nil {
			zap.L().Warn("skipping malformed setting", zap.String("key", row.Key), zap.Error(err))
		}
	}

	s.mu.Lock()
	s.snap = snap
	s.mu.Unlock()
	return nil
}

// Update validates and persists a setting, then reloads the snapshot.
func (s *SettingsService) Update(ctx context.Context, key string, value json.RawMessage) error {
	// Validate against a scratch snapshot before touching the table.
	if err := applySetting(defaultSnapshot(), key, value); err != nil {
		return fmt.Errorf("invalid setting %q: %w", key, err)
	}

	if err := s.store.Queries().UpsertSetting(ctx, &models.Setting{Key: key, Value: value}); err != nil {
		return fmt.Errorf("persist setting %q: %w", key, err)
	}
	return s.Reload(ctx)
}

// List returns the persisted settings rows.
func (s *SettingsService) List(ctx context.Context) ([]models.Setting, error) {
	return s.store.Queries().ListSettings(ctx)
}

// Seed writes default rows for keys that have no persisted value yet, so
// operators see and edit the full surface.
func (s *SettingsService) Seed(ctx context.Context) error {
	existing := make(map[string]struct{})
	rows, err := s.store.Queries().ListSettings(ctx)
	if err != nil {
		return fmt.Errorf("list settings for seed: %w", err)
	}
	for _, row := range rows {
		existing[row.Key] = struct{}{}
	}

	return s.store.RunInTx(ctx, func(q repository.Queries) error {
		for _, seed := range defaultSettingRows() {
			if _, ok := existing[seed.Key]; ok {
				continue
			}
			if err := q.UpsertSetting(ctx, &seed); err != nil {
				return fmt.Errorf("seed setting %q: %w", seed.Key, err)
			}
		}
		return nil
	})
}

func applySetting(snap *Snapshot, key string, value json.RawMessage) error {
	switch key {
	case SettingWorkerSharePercent:
		var pct int32
		if err := json.Unmarshal(value, &pct); err != nil {
			return err
		}
		if pct < 0 || pct > 100 {
			return fmt.Errorf("percent out of range: %d", pct)
		}
		snap.WorkerSharePercent = pct
	case SettingReferralBonus:
		return decodeCurrencyAmounts(value, snap.ReferralBonusMicros)
	case SettingMinTopup:
		return decodeCurrencyAmounts(value, snap.MinTopupMicros)
	case SettingModeMultipliers:
		var raw map[string]float64
		if err := json.Unmarshal(value, &raw); err != nil {
			return err
		}
		for mode, mult := range raw {
			if _, ok := snap.ModeMultipliers[mode]; !ok {
				return fmt.Errorf("unknown delivery mode %q", mode)
			}
			if mult <= 0 {
				return fmt.Errorf("multiplier for %q must be positive", mode)
			}
			snap.ModeMultipliers[mode] = decimal.NewFromFloat(mult)
		}
	case SettingTierPrices:
		var raw map[domain.Region]map[string]float64
		if err := json.Unmarshal(value, &raw); err != nil {
			return err
		}
		for region, tiers := range raw {
			dst, ok := snap.TierUnitMicros[region]
			if !ok {
				return fmt.Errorf("unknown region %q", region)
			}
			for tier, price := range tiers {
				if _, ok := dst[tier]; !ok {
					return fmt.Errorf("unknown tier %q", tier)
				}
				if price <= 0 {
					return fmt.Errorf("price for %s/%s must be positive", region, tier)
				}
				dst[tier] = toMicros(price)
			}
		}
	case SettingMythicBandPrices:
		var raw map[domain.Region][]float64
		if err := json.Unmarshal(value, &raw); err != nil {
			return err
		}
		for region, bands := range raw {
			if _, ok := snap.MythicBandMicros[region]; !ok {
				return fmt.Errorf("unknown region %q", region)
			}
			if len(bands) != len(mythicBandUpper)+1 {
				return fmt.Errorf("expected %d band prices, got %d", len(mythicBandUpper)+1, len(bands))
			}
			out := make([]int64, len(bands))
			for i, price := range bands {
				if price <= 0 {
					return fmt.Errorf("band price must be positive")
				}
				out[i] = toMicros(price)
			}
			snap.MythicBandMicros[region] = out
		}
	case SettingCoachingHourPrice:
		var raw map[domain.Region]float64
		if err := json.Unmarshal(value, &raw); err != nil {
			return err
		}
		for region, price := range raw {
			if _, ok := snap.CoachingHourMicros[region]; !ok {
				return fmt.Errorf("unknown region %q", region)
			}
			if price <= 0 {
				return fmt.Errorf("hourly price must be positive")
			}
			snap.CoachingHourMicros[region] = toMicros(price)
		}
	default:
		return fmt.Errorf("unknown setting key")
	}
	return nil
}

func decodeCurrencyAmounts(value json.RawMessage, dst map[domain.Currency]int64) error {
	var raw map[domain.Currency]float64
	if err := json.Unmarshal(value, &raw); err != nil {
		return err
	}
	for cur, amount := range raw {
		if _, ok := dst[cur]; !ok {
			return fmt.Errorf("unknown currency %q", cur)
		}
		if amount < 0 {
			return fmt.Errorf("amount for %s must not be negative", cur)
		}
		dst[cur] = toMicros(amount)
	}
	return nil
}

func defaultSettingRows() []models.Setting {
	snap := defaultSnapshot()

	mustJSON := func(v any) []byte {
		b, err := json.Marshal(v)
		if err != nil {
			panic(err)
		}
		return b
	}
	toMajor := func(micros int64) float64 {
		f, _ := domain.NewMoney(micros, "").ToDecimal().Float64()
		return f
	}
	currencyMajor := func(m map[domain.Currency]int64) map[domain.Currency]float64 {
		out := make(map[domain.Currency]float64, len(m))
		for k, v := range m {
			out[k] = toMajor(v)
		}
		return out
	}

	multipliers := make(map[string]float64, len(snap.ModeMultipliers))
	for mode, mult := range snap.ModeMultipliers {
		f, _ := mult.Float64()
		multipliers[mode] = f
	}
	tierPrices := make(map[domain.Region]map[string]float64, len(snap.TierUnitMicros))
	for region, tiers := range snap.TierUnitMicros {
		out := make(map[string]float64, len(tiers))
		for tier, micros := range tiers {
			out[tier] = toMajor(micros)
		}
		tierPrices[region] = out
	}
	bands := make(map[domain.Region][]float64, len(snap.MythicBandMicros))
	for region, prices := range snap.MythicBandMicros {
		out := make([]float64, len(prices))
		for i, micros := range prices {
			out[i] = toMajor(micros)
		}
		bands[region] = out
	}
	coaching := make(map[domain.Region]float64, len(snap.CoachingHourMicros))
	for region, micros := range snap.CoachingHourMicros {
		coaching[region] = toMajor(micros)
	}

	return []models.Setting{
		{Key: SettingWorkerSharePercent, Value: mustJSON(snap.WorkerSharePercent), Category: "payouts", Description: "Share of an order total credited to the worker on completion."},
		{Key: SettingReferralBonus, Value: mustJSON(currencyMajor(snap.ReferralBonusMicros)), Category: "bonuses", Description: "One-time referrer bonus per currency."},
		{Key: SettingMinTopup, Value: mustJSON(currencyMajor(snap.MinTopupMicros)), Category: "payments", Description: "Minimum accepted top-up amount per currency."},
		{Key: SettingModeMultipliers, Value: mustJSON(multipliers), Category: "pricing", Description: "Total-cost multiplier per delivery mode."},
		{Key: SettingTierPrices, Value: mustJSON(tierPrices), Category: "pricing", Description: "Per-star price for each tier, per region."},
		{Key: SettingMythicBandPrices, Value: mustJSON(bands), Category: "pricing", Description: "Per-star mythic prices per band, cheapest first."},
		{Key: SettingCoachingHourPrice, Value: mustJSON(coaching), Category: "pricing", Description: "Coaching price per hour, per region."},
	}
}
