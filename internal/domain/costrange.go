package domain

// CostRange is a money range in the report currency. Every surfaced range must
// satisfy Min <= Mid <= Max.
type CostRange struct {
	Min float64 `json:"min"`
	Mid float64 `json:"mid"`
	Max float64 `json:"max"`
}

// RangeAdjustment describes one correction applied while normalizing a range.
type RangeAdjustment struct {
	Kind   string    `json:"kind"` // swapped_min_max | clamped_mid_to_min | clamped_mid_to_max
	Before CostRange `json:"before"`
	After  CostRange `json:"after"`
}

// Adjustment kinds reported by Normalized.
const (
	AdjustSwappedMinMax   = "swapped_min_max"
	AdjustClampedMidToMin = "clamped_mid_to_min"
	AdjustClampedMidToMax = "clamped_mid_to_max"
)

// Normalized enforces Min <= Mid <= Max and reports every correction it had to
// apply. It is idempotent: normalizing an already valid range returns it
// unchanged with no adjustments. Callers are expected to log the adjustments;
// upstream computation producing an invalid range is a bug, not an expected
// input.
func (r CostRange) Normalized() (CostRange, []RangeAdjustment) {
	var adjustments []RangeAdjustment
	out := r

	if out.Min > out.Max {
		before := out
		out.Min, out.Max = out.Max, out.Min
		adjustments = append(adjustments, RangeAdjustment{Kind: AdjustSwappedMinMax, Before: before, After: out})
	}
	if out.Mid < out.Min {
		before := out
		out.Mid = out.Min
		adjustments = append(adjustments, RangeAdjustment{Kind: AdjustClampedMidToMin, Before: before, After: out})
	}
	if out.Mid > out.Max {
		before := out
		out.Mid = out.Max
		adjustments = append(adjustments, RangeAdjustment{Kind: AdjustClampedMidToMax, Before: before, After: out})
	}

	return out, adjustments
}

// Valid reports whether the range already satisfies Min <= Mid <= Max.
func (r CostRange) Valid() bool {
	return r.Min <= r.Mid && r.Mid <= r.Max
}

// Scale returns the range multiplied by factor. Used to derive per-order totals
// from per-unit ranges.
func (r CostRange) Scale(factor float64) CostRange {
	return CostRange{Min: r.Min * factor, Mid: r.Mid * factor, Max: r.Max * factor}
}

// Add returns the element-wise sum of two ranges.
func (r CostRange) Add(o CostRange) CostRange {
	return CostRange{Min: r.Min + o.Min, Mid: r.Mid + o.Mid, Max: r.Max + o.Max}
}
