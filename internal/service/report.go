package service

import (
	"context"
	"strings"
	"time"

	"github.com/nori/caliper/internal/apperr"
	"github.com/nori/caliper/internal/domain"
	"github.com/nori/caliper/internal/logger"
)

// ReportView is the read projection of a report: the stored row plus every
// derived value, recomputed on read.
type ReportView struct {
	Report     *domain.Report                  `json:"report"`
	Tier       domain.TierResult               `json:"tier"`
	Candidates []domain.ClassificationCandidate `json:"classification_candidates"`
}

// ReportService serves the report read path and the evidence maintenance
// operations: evidence upgrades, manual label corrections, and quote
// verification write-back.
type ReportService struct {
	reports  ReportStore
	jobs     JobStore
	market   MarketClient
	cooldown time.Duration
}

// NewReportService creates a new ReportService.
func NewReportService(reports ReportStore, jobs JobStore, market MarketClient, cooldown time.Duration) *ReportService {
	if cooldown <= 0 {
		cooldown = 10 * time.Minute
	}
	return &ReportService{
		reports:  reports,
		jobs:     jobs,
		market:   market,
		cooldown: cooldown,
	}
}

// GetReport loads a report and recomputes everything derived: quality tier,
// classification candidates, and normalized baseline ranges. Stored derived
// values are never trusted.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: report ID.
//
// Returns:
//   - *ReportView: report plus derived values.
//   - error: apperr.NotFoundError if the report does not exist.
func (s *ReportService) GetReport(ctx context.Context, id string) (*ReportView, error) {
	report, err := s.reports.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.project(ctx, report), nil
}

func (s *ReportService) project(ctx context.Context, report *domain.Report) *ReportView {
	ctx = logger.SetReportID(ctx, report.ID)

	if report.Baseline != nil {
		NormalizeBaseline(ctx, report.Baseline)
	}

	tier := domain.ComputeTier(report.Evidence, signalsFor(report), report.Verification)
	candidates := ResolveClassification(classifyInputFor(report))

	return &ReportView{
		Report:     report,
		Tier:       tier,
		Candidates: candidates,
	}
}

func signalsFor(report *domain.Report) domain.Signals {
	var sig domain.Signals
	if m := report.PipelineResult.Market; m != nil {
		sig.HasImportEvidence = m.HasImportEvidence
	}
	sig.HasSimilarRecords = report.PipelineResult.SimilarReports > 0
	return sig
}

// EvidenceUpgrade re-runs the market lookup and refreshes the evidence set for
// a settled report. Two independent guards apply, checked in a fixed order:
// an active sourcing job blocks the upgrade outright, then the per-report
// cooldown rejects with the remaining wait.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: report ID.
//
// Returns:
//   - *ReportView: refreshed projection.
//   - error: apperr.ValidationError (verification active), apperr.CooldownError
//     (cooldown running), apperr.NotFoundError, or storage failure.
func (s *ReportService) EvidenceUpgrade(ctx context.Context, id string) (*ReportView, error) {
	report, err := s.reports.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	ctx = logger.SetReportID(ctx, report.ID)

	if report.Status != domain.ReportStatusComplete {
		return nil, apperr.Validation("REPORT_NOT_COMPLETE", "evidence upgrade requires a complete report, status is %s", report.Status)
	}

	// Guard order is fixed: verification first, cooldown second, so a caller
	// blocked by both learns about the stronger condition.
	job, err := s.jobs.GetActiveJobByReport(ctx, report.ID)
	if err != nil {
		return nil, err
	}
	if job != nil {
		return nil, apperr.Validation("VERIFICATION_ACTIVE", "sourcing job %s is active; close it before upgrading evidence", job.ID)
	}

	if last := report.LastEvidenceUpgradeAt; last != nil {
		elapsed := time.Since(*last)
		if elapsed < s.cooldown {
			return nil, apperr.Cooldown(s.cooldown - elapsed)
		}
	}

	s.refreshMarket(ctx, report)
	s.recompute(ctx, report)

	now := time.Now().UTC()
	report.LastEvidenceUpgradeAt = &now
	if err := s.reports.Update(ctx, report); err != nil {
		return nil, err
	}

	logger.CtxInfo(ctx, "Evidence upgrade completed")
	return s.project(ctx, report), nil
}

// ManualLabel records operator-confirmed label fields on a report. The
// correction overrides any prior OCR outcome: the resulting label evidence is
// both extracted and confirmed, and the baseline is recomputed against the
// corrected facts.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: report ID.
//   - fields: confirmed key/value label fields (e.g. weight_grams, case_pack).
//
// Returns:
//   - *ReportView: refreshed projection.
//   - error: apperr.ValidationError on empty input, apperr.NotFoundError, or
//     storage failure.
func (s *ReportService) ManualLabel(ctx context.Context, id string, fields map[string]string) (*ReportView, error) {
	if len(fields) == 0 {
		return nil, apperr.Validation("EMPTY_LABEL_FIELDS", "at least one label field is required")
	}

	report, err := s.reports.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	ctx = logger.SetReportID(ctx, report.ID)

	if report.LabelConfirmedFields == nil {
		report.LabelConfirmedFields = domain.StringMap{}
	}
	for k, v := range fields {
		key := strings.TrimSpace(k)
		if key == "" {
			continue
		}
		report.LabelConfirmedFields[key] = strings.TrimSpace(v)
	}

	s.recompute(ctx, report)

	if err := s.reports.Update(ctx, report); err != nil {
		return nil, err
	}
	logger.With(logger.Fields{logger.FieldCount: len(fields)}).
		Info(ctx, "Manual label fields recorded")
	return s.project(ctx, report), nil
}

// RecordVerification writes a confirmed supplier quote onto the report.
// Verification is append-only: once quoted, later calls only refresh the quote
// data, never clear it. The tier flips to verified on the next read.
func (s *ReportService) RecordVerification(ctx context.Context, reportID string, price float64, date time.Time) error {
	report, err := s.reports.GetByID(ctx, reportID)
	if err != nil {
		return err
	}
	ctx = logger.SetReportID(ctx, report.ID)

	report.Verification = domain.Verification{
		Quoted:     true,
		QuoteDate:  &date,
		QuotePrice: price,
	}
	if err := s.reports.Update(ctx, report); err != nil {
		return err
	}
	logger.CtxInfo(ctx, "Verified quote recorded on report")
	return nil
}

// refreshMarket re-runs the market lookup and overlays the result. A lookup
// failure keeps the previous market data.
func (s *ReportService) refreshMarket(ctx context.Context, report *domain.Report) {
	estimate, err := s.market.Lookup(ctx, MarketLookupInput{
		ProductName: report.FastFacts.ProductName,
		Category:    report.FastFacts.Category,
		Keywords:    report.FastFacts.Keywords,
		Barcode:     report.FastFacts.Barcode,
		Destination: report.Params.Destination,
	})
	if err != nil {
		report.PipelineResult.RecordStep(domain.StepMarket, domain.ExtractionFailed, err.Error())
		logger.CtxWarn(ctx, "Market refresh failed, keeping prior data: %v", err)
		return
	}
	if estimate == nil {
		return
	}
	report.PipelineResult.Market = estimate
	report.PipelineResult.RecordStep(domain.StepMarket, domain.ExtractionOK, "")
}

// recompute rebuilds evidence and baseline from the current pipeline result and
// confirmed fields.
func (s *ReportService) recompute(ctx context.Context, report *domain.Report) {
	report.Evidence = NormalizeEvidence(report.PipelineResult, report.Images, report.LabelConfirmedFields)

	candidates := ResolveClassification(classifyInputFor(report))
	report.Baseline = ComputeBaseline(ctx, BaselineInput{
		Params:     report.Params,
		Facts:      report.FastFacts,
		Market:     report.PipelineResult.Market,
		Candidates: candidates,
	})
}
