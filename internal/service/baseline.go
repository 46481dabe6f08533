package service

import (
	"context"
	"math"
	"strings"

	"github.com/nori/caliper/internal/domain"
)

// categoryDefaultPrices is the per-unit USD price range assumed when no market
// benchmark is available. Matching mirrors the classification fallback table:
// case-insensitive substring against the report category.
var categoryDefaultPrices = []struct {
	keyword string
	price   domain.CostRange
}{
	{"candy", domain.CostRange{Min: 0.10, Mid: 0.35, Max: 1.20}},
	{"chocolate", domain.CostRange{Min: 0.20, Mid: 0.60, Max: 2.50}},
	{"toy", domain.CostRange{Min: 0.50, Mid: 2.00, Max: 8.00}},
	{"plush", domain.CostRange{Min: 0.80, Mid: 2.50, Max: 9.00}},
	{"electronic", domain.CostRange{Min: 1.50, Mid: 6.00, Max: 30.00}},
	{"apparel", domain.CostRange{Min: 1.00, Mid: 3.50, Max: 15.00}},
	{"clothing", domain.CostRange{Min: 1.00, Mid: 3.50, Max: 15.00}},
	{"kitchen", domain.CostRange{Min: 0.60, Mid: 2.20, Max: 10.00}},
	{"cosmetic", domain.CostRange{Min: 0.40, Mid: 1.80, Max: 8.00}},
	{"jewelry", domain.CostRange{Min: 0.30, Mid: 1.50, Max: 12.00}},
	{"stationery", domain.CostRange{Min: 0.10, Mid: 0.50, Max: 2.00}},
	{"footwear", domain.CostRange{Min: 2.00, Mid: 6.00, Max: 20.00}},
}

// defaultUnitPrice is the last-resort unit price when even the category is
// unknown. Wide on purpose.
var defaultUnitPrice = domain.CostRange{Min: 0.25, Mid: 2.00, Max: 20.00}

// conservativeDutyMultiplier widens the duty estimate when an anti-dumping or
// countervailing duty order may apply.
const conservativeDutyMultiplier = 2.5

// BaselineInput carries everything the baseline computation draws on.
type BaselineInput struct {
	Params     domain.RequestParams
	Facts      domain.FastFacts
	Market     *domain.MarketEstimate
	Candidates []domain.ClassificationCandidate
}

// ComputeBaseline builds the cost and risk baseline from the market estimate
// (or category defaults when market data is missing) and the request
// parameters. All surfaced ranges are normalized before return.
// Parameters:
//   - ctx: context used only for adjustment logging.
//   - in: request parameters, identification facts, market estimate, and
//     resolved classification candidates.
//
// Returns:
//   - *domain.Baseline: conservative and standard breakdowns plus risk
//     scores and flags.
func ComputeBaseline(ctx context.Context, in BaselineInput) *domain.Baseline {
	unitPrice := resolveUnitPrice(in)

	quantity := in.Params.Quantity
	if quantity <= 0 {
		quantity = 1
	}

	standard := buildBreakdown(in.Params, unitPrice, in.Params.DutyRate, quantity)

	conservativeUnit := domain.CostRange{
		Min: unitPrice.Mid,
		Mid: unitPrice.Max,
		Max: unitPrice.Max * 1.25,
	}
	conservativeRate := in.Params.DutyRate
	if in.Market != nil && in.Market.ADCVDPossible {
		conservativeRate *= conservativeDutyMultiplier
	}
	conservative := buildBreakdown(in.Params, conservativeUnit, conservativeRate, quantity)

	b := &domain.Baseline{
		Conservative: conservative,
		Standard:     standard,
		Risk:         computeRiskScores(in),
		Flags:        buildRiskFlags(in),
	}
	NormalizeBaseline(ctx, b)
	return b
}

func resolveUnitPrice(in BaselineInput) domain.CostRange {
	if m := in.Market; m != nil && m.UnitPriceMid > 0 {
		return domain.CostRange{Min: m.UnitPriceLow, Mid: m.UnitPriceMid, Max: m.UnitPriceHigh}
	}
	category := strings.ToLower(in.Facts.Category)
	for _, entry := range categoryDefaultPrices {
		if strings.Contains(category, entry.keyword) {
			return entry.price
		}
	}
	return defaultUnitPrice
}

func buildBreakdown(params domain.RequestParams, unitPrice domain.CostRange, dutyRate float64, quantity int) domain.CostBreakdown {
	duty := unitPrice.Scale(dutyRate)
	shipping := flatRange(params.ShippingCost)
	fee := flatRange(params.Fee)

	total := unitPrice.Add(duty).Scale(float64(quantity)).Add(shipping).Add(fee)

	return domain.CostBreakdown{
		UnitPrice:   unitPrice,
		Shipping:    shipping,
		Duty:        duty,
		Fee:         fee,
		TotalLanded: total,
	}
}

func flatRange(v float64) domain.CostRange {
	return domain.CostRange{Min: v, Mid: v, Max: v}
}

func computeRiskScores(in BaselineInput) domain.RiskScores {
	var s domain.RiskScores

	s.Tariff = 0.15
	if len(in.Candidates) > 1 {
		s.Tariff += 0.20
	}
	if len(in.Candidates) > 0 && in.Candidates[0].Source == domain.SourceUnknown {
		s.Tariff += 0.30
	}

	s.Compliance = 0.10
	s.Supply = 0.20
	if m := in.Market; m != nil {
		if m.ADCVDPossible {
			s.Tariff += 0.35
		}
		if m.OriginSensitive {
			s.Tariff += 0.10
		}
		s.Compliance += 0.15 * float64(len(m.RequiredCerts))
		s.Compliance += 0.10 * float64(len(m.LabelingRisks))
		if m.MOQLow > 0 && in.Params.Quantity > 0 && in.Params.Quantity < m.MOQLow {
			s.Supply += 0.25
		}
		if m.LeadTimeDaysHigh > 45 {
			s.Supply += 0.15
		}
	}

	s.Tariff = clamp01(s.Tariff)
	s.Compliance = clamp01(s.Compliance)
	s.Supply = clamp01(s.Supply)
	s.Total = clamp01(0.5*s.Tariff + 0.3*s.Compliance + 0.2*s.Supply)
	return s
}

func buildRiskFlags(in BaselineInput) domain.RiskFlags {
	var flags domain.RiskFlags

	if n := len(in.Candidates); n > 0 {
		flags.CodeRange = in.Candidates[0].Code
		if n > 1 {
			flags.CodeRange += ".." + in.Candidates[n-1].Code
		}
	}

	if m := in.Market; m != nil {
		flags.ADCVDPossible = m.ADCVDPossible
		flags.OriginSensitive = m.OriginSensitive
		flags.RequiredCerts = m.RequiredCerts
		flags.LabelingRisks = m.LabelingRisks
		flags.MOQ = domain.IntRange{Low: m.MOQLow, High: m.MOQHigh}
		flags.LeadTimeDays = domain.IntRange{Low: m.LeadTimeDaysLow, High: m.LeadTimeDaysHigh}
	}
	return flags
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
