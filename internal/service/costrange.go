package service

import (
	"context"

	"github.com/nori/caliper/internal/domain"
	"github.com/nori/caliper/internal/logger"
)

// NormalizeRange enforces min <= mid <= max on one cost range and logs every
// correction with the caller's label. An adjustment here means upstream
// computation produced an invalid range, so corrections log at warn.
func NormalizeRange(ctx context.Context, label string, r domain.CostRange) domain.CostRange {
	out, adjustments := r.Normalized()
	for _, adj := range adjustments {
		logger.With(logger.Fields{
			"range":  label,
			"kind":   adj.Kind,
			"before": adj.Before,
			"after":  adj.After,
		}).Warn(ctx, "Adjusted invalid cost range")
	}
	return out
}

// NormalizeBreakdown normalizes every range in a cost breakdown.
func NormalizeBreakdown(ctx context.Context, label string, b domain.CostBreakdown) domain.CostBreakdown {
	return domain.CostBreakdown{
		UnitPrice:   NormalizeRange(ctx, label+".unit_price", b.UnitPrice),
		Shipping:    NormalizeRange(ctx, label+".shipping", b.Shipping),
		Duty:        NormalizeRange(ctx, label+".duty", b.Duty),
		Fee:         NormalizeRange(ctx, label+".fee", b.Fee),
		TotalLanded: NormalizeRange(ctx, label+".total_landed", b.TotalLanded),
	}
}

// NormalizeBaseline normalizes both breakdowns of a baseline in place.
func NormalizeBaseline(ctx context.Context, b *domain.Baseline) {
	if b == nil {
		return
	}
	b.Conservative = NormalizeBreakdown(ctx, "conservative", b.Conservative)
	b.Standard = NormalizeBreakdown(ctx, "standard", b.Standard)
}
