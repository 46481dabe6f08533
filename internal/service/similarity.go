package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/nori/caliper/internal/domain"
	"github.com/nori/caliper/internal/repository"
)

const similarSearchTopK = 5

// SimilarityService maintains the similar-report vector index and computes the
// similar-records signal the tier engine consumes.
type SimilarityService struct {
	embedder  Embedder
	index     VectorIndex
	threshold float32
}

// NewSimilarityService creates a new similarity service.
func NewSimilarityService(embedder Embedder, index VectorIndex, threshold float32) *SimilarityService {
	return &SimilarityService{
		embedder:  embedder,
		index:     index,
		threshold: threshold,
	}
}

// IndexReport embeds the report's identification facts and upserts its point.
// Re-upgrading a report replaces the point in place.
func (s *SimilarityService) IndexReport(ctx context.Context, report *domain.Report) error {
	text := buildReportEmbeddingText(report)
	if text == "" {
		return nil
	}

	vector, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return fmt.Errorf("failed to embed report: %w", err)
	}

	return s.index.Upsert(ctx, report.ID, vector, &repository.ReportPayload{
		ReportID: report.ID,
		Category: report.FastFacts.Category,
		Keywords: report.FastFacts.Keywords,
	})
}

// CountSimilar returns how many prior reports score above the similarity
// threshold for this report's identification facts, excluding the report
// itself.
func (s *SimilarityService) CountSimilar(ctx context.Context, report *domain.Report) (int, error) {
	text := buildReportEmbeddingText(report)
	if text == "" {
		return 0, nil
	}

	vector, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return 0, fmt.Errorf("failed to embed report: %w", err)
	}

	neighbors, err := s.index.SearchSimilar(ctx, vector, similarSearchTopK, s.threshold, report.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to search similar reports: %w", err)
	}
	return len(neighbors), nil
}

// buildReportEmbeddingText assembles the text embedded per report. Segments are
// prefixed so products with the same keywords in different roles embed apart.
func buildReportEmbeddingText(report *domain.Report) string {
	segments := make([]string, 0, 3)
	if name := strings.TrimSpace(report.FastFacts.ProductName); name != "" {
		segments = append(segments, "name:"+name)
	}
	if category := strings.TrimSpace(report.FastFacts.Category); category != "" {
		segments = append(segments, "category:"+category)
	}
	if keywords := dedupeStrings(report.FastFacts.Keywords); len(keywords) > 0 {
		segments = append(segments, "keywords:"+strings.Join(keywords, " "))
	}
	return strings.Join(segments, "\n")
}

func dedupeStrings(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	result := make([]string, 0, len(items))
	for _, item := range items {
		trimmed := strings.TrimSpace(item)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		result = append(result, trimmed)
	}
	return result
}
