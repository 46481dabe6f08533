package service

import (
	"context"
	"testing"

	"github.com/nori/caliper/internal/domain"
)

func TestComputeBaseline_MarketPricing(t *testing.T) {
	in := BaselineInput{
		Params: validParams(),
		Facts:  domain.FastFacts{Category: "candy"},
		Market: &domain.MarketEstimate{
			UnitPriceLow:  1,
			UnitPriceMid:  2,
			UnitPriceHigh: 4,
		},
	}

	b := ComputeBaseline(context.Background(), in)

	std := b.Standard
	if std.UnitPrice != (domain.CostRange{Min: 1, Mid: 2, Max: 4}) {
		t.Errorf("standard unit price = %+v, want the market range", std.UnitPrice)
	}
	// duty = unit * rate; total = (unit + duty) * qty + shipping + fee.
	wantDutyMid := 2 * 0.05
	if std.Duty.Mid != wantDutyMid {
		t.Errorf("duty mid = %v, want %v", std.Duty.Mid, wantDutyMid)
	}
	wantTotalMid := (2+wantDutyMid)*100 + 20 + 2
	if std.TotalLanded.Mid != wantTotalMid {
		t.Errorf("total landed mid = %v, want %v", std.TotalLanded.Mid, wantTotalMid)
	}

	cons := b.Conservative
	if cons.UnitPrice.Min != 2 || cons.UnitPrice.Mid != 4 || cons.UnitPrice.Max != 5 {
		t.Errorf("conservative unit price = %+v, want shifted to the worse end", cons.UnitPrice)
	}
	if cons.TotalLanded.Mid <= std.TotalLanded.Mid {
		t.Error("conservative total must exceed the standard total")
	}
}

func TestComputeBaseline_FallsBackToCategoryDefaults(t *testing.T) {
	in := BaselineInput{
		Params: validParams(),
		Facts:  domain.FastFacts{Category: "Candy and Sweets"},
	}
	b := ComputeBaseline(context.Background(), in)
	if b.Standard.UnitPrice.Mid != 0.35 {
		t.Errorf("unit price mid = %v, want the candy default", b.Standard.UnitPrice.Mid)
	}

	in.Facts.Category = "unmapped widget"
	b = ComputeBaseline(context.Background(), in)
	if b.Standard.UnitPrice != defaultUnitPrice {
		t.Errorf("unit price = %+v, want the generic default", b.Standard.UnitPrice)
	}
}

func TestComputeBaseline_ADCVDWidensConservativeDuty(t *testing.T) {
	in := BaselineInput{
		Params: validParams(),
		Market: &domain.MarketEstimate{
			UnitPriceLow:  1,
			UnitPriceMid:  2,
			UnitPriceHigh: 4,
			ADCVDPossible: true,
		},
	}
	b := ComputeBaseline(context.Background(), in)

	// Standard keeps the caller's rate; conservative multiplies it.
	if b.Standard.Duty.Mid != 2*0.05 {
		t.Errorf("standard duty mid = %v", b.Standard.Duty.Mid)
	}
	wantConsDutyMid := 4 * (0.05 * conservativeDutyMultiplier)
	if b.Conservative.Duty.Mid != wantConsDutyMid {
		t.Errorf("conservative duty mid = %v, want %v", b.Conservative.Duty.Mid, wantConsDutyMid)
	}
	if !b.Flags.ADCVDPossible {
		t.Error("ADCVD flag must be surfaced")
	}
}

func TestComputeBaseline_RiskScores(t *testing.T) {
	calm := ComputeBaseline(context.Background(), BaselineInput{
		Params: validParams(),
		Market: &domain.MarketEstimate{UnitPriceLow: 1, UnitPriceMid: 2, UnitPriceHigh: 3},
		Candidates: []domain.ClassificationCandidate{
			{Code: "1704.90.35", Source: domain.SourceVisionDirect, Confidence: 0.95},
		},
	})
	risky := ComputeBaseline(context.Background(), BaselineInput{
		Params: validParams(),
		Market: &domain.MarketEstimate{
			UnitPriceLow:  1,
			UnitPriceMid:  2,
			UnitPriceHigh: 3,
			ADCVDPossible: true,
			RequiredCerts: []string{"FDA", "FCC"},
			LabelingRisks: []string{"country of origin marking"},
			MOQLow:        5000,
		},
		Candidates: []domain.ClassificationCandidate{
			{Code: UnknownClassificationCode, Source: domain.SourceUnknown, Confidence: 0.2},
		},
	})

	for name, r := range map[string]domain.RiskScores{"calm": calm.Risk, "risky": risky.Risk} {
		for dim, v := range map[string]float64{"tariff": r.Tariff, "compliance": r.Compliance, "supply": r.Supply, "total": r.Total} {
			if v < 0 || v > 1 {
				t.Errorf("%s %s score %v out of [0,1]", name, dim, v)
			}
		}
	}
	if risky.Risk.Total <= calm.Risk.Total {
		t.Errorf("risky total %v should exceed calm total %v", risky.Risk.Total, calm.Risk.Total)
	}
}

func TestComputeBaseline_CodeRangeFlag(t *testing.T) {
	b := ComputeBaseline(context.Background(), BaselineInput{
		Params: validParams(),
		Candidates: []domain.ClassificationCandidate{
			{Code: "1704.90.35", Source: domain.SourceVisionDirect, Confidence: 0.95},
			{Code: "1806.90.90", Source: domain.SourceMarketEstimate, Confidence: 0.5},
		},
	})
	if b.Flags.CodeRange != "1704.90.35..1806.90.90" {
		t.Errorf("code range = %q", b.Flags.CodeRange)
	}

	single := ComputeBaseline(context.Background(), BaselineInput{
		Params:     validParams(),
		Candidates: []domain.ClassificationCandidate{{Code: "1704.90.35", Source: domain.SourceVisionDirect, Confidence: 0.95}},
	})
	if single.Flags.CodeRange != "1704.90.35" {
		t.Errorf("single-candidate code range = %q", single.Flags.CodeRange)
	}
}
