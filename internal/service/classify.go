package service

import (
	"strings"

	"github.com/nori/caliper/internal/domain"
)

// UnknownClassificationCode is the last-resort sentinel candidate code.
const UnknownClassificationCode = "9999.99"

// categoryFallbackCodes is the deterministic category-keyword lookup used when
// neither vision nor market data produced a candidate. Matching is
// case-insensitive substring matching against the report category.
var categoryFallbackCodes = []struct {
	keyword string
	code    string
}{
	{"candy", "1704.90.35"},
	{"chocolate", "1806.90.90"},
	{"toy", "9503.00.00"},
	{"plush", "9503.00.00"},
	{"electronic", "8543.70.99"},
	{"apparel", "6109.10.00"},
	{"clothing", "6109.10.00"},
	{"kitchen", "3924.10.40"},
	{"cosmetic", "3304.99.50"},
	{"jewelry", "7117.90.90"},
	{"stationery", "4820.10.20"},
	{"footwear", "6404.19.90"},
}

// ClassifyInput carries everything the resolver can draw on.
type ClassifyInput struct {
	VisionCode       string
	MarketCandidates []domain.MarketCandidate
	Category         string
}

// ResolveClassification resolves the prioritized classification-code candidate
// list. Priority is descending trust: direct vision code, market-estimate
// candidates deduplicated by code in first-seen order, the category-keyword
// fallback table, and finally the unknown sentinel. The result is never empty.
// Parameters:
//   - in: vision code, market candidates, and category.
// Returns:
//   - []domain.ClassificationCandidate: at least one candidate, best first.
func ResolveClassification(in ClassifyInput) []domain.ClassificationCandidate {
	var out []domain.ClassificationCandidate
	seen := map[string]bool{}

	if code := strings.TrimSpace(in.VisionCode); len(code) >= 4 {
		out = append(out, domain.ClassificationCandidate{
			Code:       code,
			Confidence: 0.95,
			Source:     domain.SourceVisionDirect,
			Reason:     "read directly from product analysis",
		})
		seen[code] = true
	}

	for _, mc := range in.MarketCandidates {
		code := strings.TrimSpace(mc.Code)
		if code == "" || seen[code] {
			continue
		}
		seen[code] = true
		out = append(out, domain.ClassificationCandidate{
			Code:       code,
			Confidence: mc.Confidence,
			Source:     domain.SourceMarketEstimate,
			Reason:     mc.Reason,
		})
	}

	if len(out) > 0 {
		return out
	}

	category := strings.ToLower(in.Category)
	for _, entry := range categoryFallbackCodes {
		if strings.Contains(category, entry.keyword) {
			return []domain.ClassificationCandidate{{
				Code:       entry.code,
				Confidence: 0.35,
				Source:     domain.SourceCategoryFallback,
				Reason:     "category keyword match: " + entry.keyword,
			}}
		}
	}

	return []domain.ClassificationCandidate{{
		Code:       UnknownClassificationCode,
		Confidence: 0.2,
		Source:     domain.SourceUnknown,
		Reason:     "no classification signal available",
	}}
}
