package service

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/richboost/boosting-core/internal/domain"
)

// Rank tiers, lowest first. Every tier below mythic has divisions V..I;
// mythic progress is counted in stars.
const (
	TierWarrior     = "warrior"
	TierElite       = "elite"
	TierMaster      = "master"
	TierGrandmaster = "grandmaster"
	TierEpic        = "epic"
	TierLegend      = "legend"
	TierMythic      = "mythic"
)

var rankTiers = []string{TierWarrior, TierElite, TierMaster, TierGrandmaster, TierEpic, TierLegend}

const divisionsPerTier = 5

// mythicBandUpper holds the inclusive upper star bound of each mythic band
// except the open-ended last one.
var mythicBandUpper = []int32{25, 50, 100}

const maxMythicStars = 1000

// RankPosition locates an account on the ladder. Division runs 5 (V, the
// entry division) down to 1 (I); it is zero for mythic, where Stars is used
// instead.
type RankPosition struct {
	Tier     string `json:"tier"`
	Division int32  `json:"division,omitempty"`
	Stars    int32  `json:"stars,omitempty"`
}

// QuoteParams are the order parameters a price is computed from.
type QuoteParams struct {
	ServiceType   string
	DeliveryMode  string
	Region        domain.Region
	Current       RankPosition
	Target        RankPosition
	CoachingHours int32
}

// Quote is a priced order.
type Quote struct {
	BaseMicros  int64           `json:"base_micros"`
	Multiplier  decimal.Decimal `json:"multiplier"`
	TotalMicros int64           `json:"total_micros"`
	Currency    domain.Currency `json:"currency"`
}

// PricingService computes order costs from a settings snapshot.
type PricingService struct {
	settings *SettingsService
}

func NewPricingService(settings *SettingsService) *PricingService {
	return &PricingService{settings: settings}
}

// Quote prices an order. The cost of a rank boost is the sum of per-step
// prices along the ladder between the current and target positions; mythic
// stars are priced by the band the destination star falls into.
func (s *PricingService) Quote(params QuoteParams) (*Quote, error) {
	snap := s.settings.Snapshot()

	currency, err := domain.CurrencyForRegion(params.Region)
	if err != nil {
		return nil, err
	}

	var base int64
	switch params.ServiceType {
	case domain.ServiceRankBoost:
		base, err = s.rankBoostBase(snap, params)
	case domain.ServiceCoaching:
		base, err = s.coachingBase(snap, params)
	default:
		err = fmt.Errorf("%w: unknown service type %q", domain.ErrPricingInput, params.ServiceType)
	}
	if err != nil {
		return nil, err
	}

	multiplier, ok := snap.ModeMultipliers[params.DeliveryMode]
	if !ok {
		return nil, fmt.Errorf("%w: unknown delivery mode %q", domain.ErrPricingInput, params.DeliveryMode)
	}

	total := domain.NewMoney(base, currency).Multiply(multiplier)
	return &Quote{
		BaseMicros:  base,
		Multiplier:  multiplier,
		TotalMicros: total.Amount,
		Currency:    currency,
	}, nil
}

func (s *PricingService) rankBoostBase(snap *Snapshot, params QuoteParams) (int64, error) {
	from, err := ladderIndex(params.Current)
	if err != nil {
		return 0, fmt.Errorf("current rank: %w", err)
	}
	to, err := ladderIndex(params.Target)
	if err != nil {
		return 0, fmt.Errorf("target rank: %w", err)
	}
	if to <= from {
		return 0, fmt.Errorf("%w: target rank must be above current rank", domain.ErrPricingInput)
	}

	tierUnits, ok := snap.TierUnitMicros[params.Region]
	if !ok {
		return 0, fmt.Errorf("%w: no tier prices for region %q", domain.ErrPricingInput, params.Region)
	}
	bands, ok := snap.MythicBandMicros[params.Region]
	if !ok {
		return 0, fmt.Errorf("%w: no mythic prices for region %q", domain.ErrPricingInput, params.Region)
	}

	var base int64
	for step := from + 1; step <= to; step++ {
		price, err := stepPrice(step, tierUnits, bands)
		if err != nil {
			return 0, err
		}
		base += price
	}
	return base, nil
}

func (s *PricingService) coachingBase(snap *Snapshot, params QuoteParams) (int64, error) {
	if params.CoachingHours <= 0 {
		return 0, fmt.Errorf("%w: coaching hours must be positive", domain.ErrPricingInput)
	}
	hourly, ok := snap.CoachingHourMicros[params.Region]
	if !ok {
		return 0, fmt.Errorf("%w: no coaching price for region %q", domain.ErrPricingInput, params.Region)
	}
	return hourly * int64(params.CoachingHours), nil
}

// ladderIndex flattens a rank position into a single ordinal: divisions of
// the non-mythic tiers count up from zero, then mythic stars continue the
// sequence (mythic with zero stars immediately follows legend I).
func ladderIndex(p RankPosition) (int32, error) {
	if p.Tier == TierMythic {
		if p.Division != 0 {
			return 0, fmt.Errorf("%w: mythic has no divisions", domain.ErrPricingInput)
		}
		if p.Stars < 0 || p.Stars > maxMythicStars {
			return 0, fmt.Errorf("%w: mythic stars out of range: %d", domain.ErrPricingInput, p.Stars)
		}
		return int32(len(rankTiers))*divisionsPerTier + p.Stars, nil
	}

	for i, tier := range rankTiers {
		if tier != p.Tier {
			continue
		}
		if p.Division < 1 || p.Division > divisionsPerTier {
			return 0, fmt.Errorf("%w: division must be 1..%d, got %d", domain.ErrPricingInput, divisionsPerTier, p.Division)
		}
		if p.Stars != 0 {
			return 0, fmt.Errorf("%w: stars only apply to mythic", domain.ErrPricingInput)
		}
		return int32(i)*divisionsPerTier + (divisionsPerTier - p.Division), nil
	}
	return 0, fmt.Errorf("%w: unknown tier %q", domain.ErrPricingInput, p.Tier)
}

// stepPrice prices the single step that lands on ladder ordinal dest.
// Within the tiers the step into division D costs D stars at the tier's
// unit price; each mythic step costs the per-star price of the band the
// destination star falls into (the step onto mythic itself is priced by
// the first band).
func stepPrice(dest int32, tierUnits map[string]int64, bands []int64) (int64, error) {
	mythicStart := int32(len(rankTiers)) * divisionsPerTier
	if dest < mythicStart {
		tier := rankTiers[dest/divisionsPerTier]
		division := divisionsPerTier - dest%divisionsPerTier
		unit, ok := tierUnits[tier]
		if !ok {
			return 0, fmt.Errorf("%w: no unit price for tier %q", domain.ErrPricingInput, tier)
		}
		return unit * int64(division), nil
	}

	star := dest - mythicStart
	if star < 1 {
		star = 1
	}
	for i, upper := range mythicBandUpper {
		if star <= upper {
			return bands[i], nil
		}
	}
	return bands[len(bands)-1], nil
}
