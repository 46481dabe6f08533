package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/nori/caliper/internal/apperr"
	"github.com/nori/caliper/internal/domain"
	"github.com/nori/caliper/internal/logger"
	"github.com/nori/caliper/internal/storage"
)

// UpgradeConfig tunes the outbox consumer.
type UpgradeConfig struct {
	Workers      int
	PollInterval time.Duration
	StaleAfter   time.Duration
	MaxAttempts  int
}

// UpgradeService consumes the upgrade-task outbox and runs the deep pipeline:
// deep vision, label OCR, barcode read, market lookup, baseline, evidence, and
// the similar-report index. Upgrade is idempotent; a report that already moved
// past partial is left alone.
type UpgradeService struct {
	reports    ReportStore
	tasks      TaskStore
	photos     storage.PhotoStorage
	vision     VisionClient
	market     MarketClient
	similarity SimilarityClient
	cfg        UpgradeConfig
}

// NewUpgradeService creates a new UpgradeService.
func NewUpgradeService(reports ReportStore, tasks TaskStore, photos storage.PhotoStorage, vision VisionClient, market MarketClient, similarity SimilarityClient, cfg UpgradeConfig) *UpgradeService {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = 5 * time.Minute
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	return &UpgradeService{
		reports:    reports,
		tasks:      tasks,
		photos:     photos,
		vision:     vision,
		market:     market,
		similarity: similarity,
		cfg:        cfg,
	}
}

// Run polls the outbox with a worker pool until ctx is cancelled.
func (s *UpgradeService) Run(ctx context.Context) {
	ctx = logger.SetComponent(ctx, "upgrader")
	logger.With(logger.Fields{"workers": s.cfg.Workers}).Info(ctx, "Starting upgrade consumers")

	var wg sync.WaitGroup
	for i := 0; i < s.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.consume(ctx)
		}()
	}
	wg.Wait()
	logger.CtxInfo(ctx, "Upgrade consumers stopped")
}

func (s *UpgradeService) consume(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		task, err := s.tasks.ClaimNext(ctx, s.cfg.StaleAfter)
		if err != nil {
			logger.CtxError(ctx, "Failed to claim upgrade task: %v", err)
			task = nil
		}
		if task == nil {
			select {
			case <-ctx.Done():
				return
			case <-time.After(s.cfg.PollInterval):
			}
			continue
		}

		s.processTask(ctx, task)
	}
}

func (s *UpgradeService) processTask(ctx context.Context, task *domain.UpgradeTask) {
	ctx = logger.WithFields(ctx, logger.Fields{
		logger.FieldTaskID:   task.ID,
		logger.FieldReportID: task.ReportID,
	})

	started := time.Now()
	err := s.Upgrade(ctx, task.ReportID)
	elapsed := time.Since(started).Milliseconds()

	if err != nil {
		final := task.Attempts >= s.cfg.MaxAttempts
		logger.With(logger.Fields{logger.FieldDurationMs: elapsed, "attempt": task.Attempts, "final": final}).
			Error(ctx, "Upgrade failed: %v", err)
		if failErr := s.tasks.Fail(ctx, task.ID, err, final); failErr != nil {
			logger.CtxError(ctx, "Failed to record task failure: %v", failErr)
		}
		if final {
			s.markReportFailed(ctx, task.ReportID, err)
		}
		return
	}

	if ackErr := s.tasks.Ack(ctx, task.ID); ackErr != nil {
		// At-least-once: the stale-claim sweep will redeliver and the
		// idempotent Upgrade will no-op.
		logger.CtxError(ctx, "Failed to ack task: %v", ackErr)
		return
	}
	logger.With(logger.Fields{logger.FieldDurationMs: elapsed}).Info(ctx, "Upgrade completed")
}

// Upgrade runs the deep pipeline for one report. It is a no-op unless the
// report still exists and is still partial, so redelivered tasks and late
// results never clobber a terminal state or a manual correction.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - reportID: report to upgrade.
//
// Returns:
//   - error: non-nil when the deep analysis could not produce a usable result.
func (s *UpgradeService) Upgrade(ctx context.Context, reportID string) error {
	report, err := s.reports.GetByID(ctx, reportID)
	if err != nil {
		if apperr.IsNotFound(err) {
			logger.CtxWarn(ctx, "Report vanished before upgrade, skipping")
			return nil
		}
		return err
	}
	if report.Status != domain.ReportStatusPartial {
		logger.With(logger.Fields{logger.FieldStatus: string(report.Status)}).
			Info(ctx, "Report already settled, skipping upgrade")
		return nil
	}

	deep, err := s.runDeepVision(ctx, report)
	if err != nil {
		return err
	}

	s.runLabelOCR(ctx, report)
	s.runBarcodeRead(ctx, report)
	s.runMarketLookup(ctx, report)

	s.enrichFacts(report, deep)

	candidates := ResolveClassification(classifyInputFor(report))
	report.Baseline = ComputeBaseline(ctx, BaselineInput{
		Params:     report.Params,
		Facts:      report.FastFacts,
		Market:     report.PipelineResult.Market,
		Candidates: candidates,
	})
	report.Evidence = NormalizeEvidence(report.PipelineResult, report.Images, report.LabelConfirmedFields)
	if report.PipelineResult.LabelOCR != nil {
		report.LabelExtractionStatus = report.PipelineResult.LabelOCR.Status
	}

	s.indexSimilar(ctx, report)

	swapped, err := s.reports.CompareAndSwapStatus(ctx, report.ID,
		domain.ReportStatusPartial, domain.ReportStatusComplete,
		map[string]interface{}{
			"fast_facts":              report.FastFacts,
			"pipeline_result":         report.PipelineResult,
			"baseline":                report.Baseline,
			"evidence":                report.Evidence,
			"label_extraction_status": report.LabelExtractionStatus,
		})
	if err != nil {
		return err
	}
	if !swapped {
		logger.CtxWarn(ctx, "Report moved past partial during upgrade, discarding result")
	}
	return nil
}

// markReportFailed settles a report whose upgrade exhausted its attempts. The
// CAS guarantees a report that completed meanwhile is untouched.
func (s *UpgradeService) markReportFailed(ctx context.Context, reportID string, cause error) {
	step := domain.StepDeepVision
	var pf *apperr.PipelineFailure
	if errors.As(cause, &pf) {
		step = pf.Step
	}

	swapped, err := s.reports.CompareAndSwapStatus(ctx, reportID,
		domain.ReportStatusPartial, domain.ReportStatusFailed,
		map[string]interface{}{
			"error_code": ErrCodeUpgradeFailed,
			"error_step": step,
		})
	if err != nil {
		logger.CtxError(ctx, "Failed to mark report failed: %v", err)
		return
	}
	if swapped {
		logger.With(logger.Fields{logger.FieldStep: step}).Warn(ctx, "Report marked failed after exhausted upgrade attempts")
	}
}

func (s *UpgradeService) runDeepVision(ctx context.Context, report *domain.Report) (*domain.VisionExtraction, error) {
	data, format, err := s.downloadPhoto(ctx, report.Images.ProductKey)
	if err != nil {
		report.PipelineResult.RecordStep(domain.StepDeepVision, domain.ExtractionFailed, err.Error())
		return nil, apperr.Pipeline(ErrCodeUpgradeFailed, domain.StepDeepVision, err)
	}

	deep, err := s.vision.AnalyzeProductDeep(ctx, data, format)
	if err != nil {
		report.PipelineResult.RecordStep(domain.StepDeepVision, domain.ExtractionFailed, err.Error())
		return nil, apperr.Pipeline(ErrCodeUpgradeFailed, domain.StepDeepVision, err)
	}

	report.PipelineResult.DeepVision = deep
	report.PipelineResult.RecordStep(domain.StepDeepVision, domain.ExtractionOK, "")
	return deep, nil
}

// runLabelOCR reads the label photo when one was uploaded. Failures are
// absorbed into the evidence set, never escalated.
func (s *UpgradeService) runLabelOCR(ctx context.Context, report *domain.Report) {
	if report.Images.LabelKey == "" {
		return
	}

	data, format, err := s.downloadPhoto(ctx, report.Images.LabelKey)
	if err != nil {
		report.PipelineResult.RecordStep(domain.StepLabelOCR, domain.ExtractionFailed, err.Error())
		report.PipelineResult.LabelOCR = &domain.LabelExtraction{
			Status:        domain.ExtractionFailed,
			FailureReason: err.Error(),
		}
		return
	}

	extraction, err := s.vision.ReadLabel(ctx, data, format)
	if err != nil {
		report.PipelineResult.RecordStep(domain.StepLabelOCR, domain.ExtractionFailed, err.Error())
		report.PipelineResult.LabelOCR = &domain.LabelExtraction{
			Status:        domain.ExtractionFailed,
			FailureReason: err.Error(),
		}
		logger.CtxWarn(ctx, "Label OCR failed: %v", err)
		return
	}

	report.PipelineResult.LabelOCR = extraction
	report.PipelineResult.RecordStep(domain.StepLabelOCR, extraction.Status, extraction.FailureReason)
}

func (s *UpgradeService) runBarcodeRead(ctx context.Context, report *domain.Report) {
	if report.Images.BarcodeKey == "" {
		return
	}

	data, format, err := s.downloadPhoto(ctx, report.Images.BarcodeKey)
	if err != nil {
		report.PipelineResult.RecordStep(domain.StepBarcodeRead, domain.ExtractionFailed, err.Error())
		report.PipelineResult.Barcode = &domain.BarcodeExtraction{
			Status:        domain.ExtractionFailed,
			FailureReason: err.Error(),
		}
		return
	}

	extraction, err := s.vision.ReadBarcode(ctx, data, format)
	if err != nil {
		report.PipelineResult.RecordStep(domain.StepBarcodeRead, domain.ExtractionFailed, err.Error())
		report.PipelineResult.Barcode = &domain.BarcodeExtraction{
			Status:        domain.ExtractionFailed,
			FailureReason: err.Error(),
		}
		logger.CtxWarn(ctx, "Barcode read failed: %v", err)
		return
	}

	report.PipelineResult.Barcode = extraction
	report.PipelineResult.RecordStep(domain.StepBarcodeRead, extraction.Status, extraction.FailureReason)
}

func (s *UpgradeService) runMarketLookup(ctx context.Context, report *domain.Report) {
	barcode := ""
	if bc := report.PipelineResult.Barcode; bc != nil && bc.Status == domain.ExtractionOK {
		barcode = bc.Value
	}

	estimate, err := s.market.Lookup(ctx, MarketLookupInput{
		ProductName: report.FastFacts.ProductName,
		Category:    report.FastFacts.Category,
		Keywords:    report.FastFacts.Keywords,
		Barcode:     barcode,
		Destination: report.Params.Destination,
	})
	if err != nil {
		report.PipelineResult.RecordStep(domain.StepMarket, domain.ExtractionFailed, err.Error())
		logger.CtxWarn(ctx, "Market lookup failed: %v", err)
		return
	}
	if estimate == nil {
		report.PipelineResult.RecordStep(domain.StepMarket, domain.ExtractionSkipped, "market backend not configured")
		return
	}

	report.PipelineResult.Market = estimate
	report.PipelineResult.RecordStep(domain.StepMarket, domain.ExtractionOK, "")
}

// enrichFacts overlays the deep-pass values onto the fast facts, preferring the
// richer signal.
func (s *UpgradeService) enrichFacts(report *domain.Report, deep *domain.VisionExtraction) {
	facts := &report.FastFacts

	if deep.ProductName != "" {
		facts.ProductName = deep.ProductName
	}
	if deep.Category != "" {
		facts.Category = deep.Category
	}
	if len(deep.Keywords) > 0 {
		facts.Keywords = deep.Keywords
	}
	if deep.Confidence > facts.Confidence {
		facts.Confidence = deep.Confidence
	}
	if deep.WeightGrams > 0 {
		facts.WeightGrams = deep.WeightGrams
	}
	if ocr := report.PipelineResult.LabelOCR; ocr != nil && ocr.Status == domain.ExtractionOK {
		facts.LabelText = ocr.Text
		if ocr.WeightGrams > 0 {
			facts.WeightGrams = ocr.WeightGrams
		}
	}
	if bc := report.PipelineResult.Barcode; bc != nil && bc.Status == domain.ExtractionOK {
		facts.Barcode = bc.Value
	}
}

// indexSimilar upserts the report's embedding and stores the similar-records
// count. Index trouble degrades the signal, never the upgrade.
func (s *UpgradeService) indexSimilar(ctx context.Context, report *domain.Report) {
	if s.similarity == nil {
		return
	}

	count, err := s.similarity.CountSimilar(ctx, report)
	if err != nil {
		logger.CtxWarn(ctx, "Similar-report search failed: %v", err)
	} else {
		report.PipelineResult.SimilarReports = count
	}

	if err := s.similarity.IndexReport(ctx, report); err != nil {
		logger.CtxWarn(ctx, "Failed to index report embedding: %v", err)
	}
}

func (s *UpgradeService) downloadPhoto(ctx context.Context, key string) ([]byte, string, error) {
	reader, err := s.photos.Download(ctx, key)
	if err != nil {
		return nil, "", fmt.Errorf("failed to download photo %s: %w", key, err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read photo %s: %w", key, err)
	}
	return data, formatFromKey(key), nil
}

func formatFromKey(key string) string {
	ext := strings.TrimPrefix(path.Ext(key), ".")
	if ext == "" {
		return "jpg"
	}
	return ext
}

func classifyInputFor(report *domain.Report) ClassifyInput {
	in := ClassifyInput{Category: report.FastFacts.Category}
	if dv := report.PipelineResult.DeepVision; dv != nil {
		in.VisionCode = dv.HSCode
	}
	if m := report.PipelineResult.Market; m != nil {
		in.MarketCandidates = m.Candidates
	}
	return in
}
