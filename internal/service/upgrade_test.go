package service

import (
	"context"
	"errors"
	"testing"

	"github.com/nori/caliper/internal/domain"
)

func newUpgradeFixture(t *testing.T) (*UpgradeService, *fakeReportStore, *fakeTaskStore, *fakeVision, *fakePhotoStorage) {
	t.Helper()
	reports := newFakeReportStore()
	tasks := &fakeTaskStore{}
	photos := newFakePhotoStorage()
	vision := &fakeVision{
		deep: &domain.VisionExtraction{
			ProductName: "deluxe gummy bears",
			Category:    "candy",
			Keywords:    []string{"gummy", "candy", "confectionery"},
			HSCode:      "1704.90.35",
			WeightGrams: 150,
			CasePack:    24,
			Confidence:  0.9,
		},
		label: &domain.LabelExtraction{
			Status:      domain.ExtractionOK,
			Text:        "Net Wt 150g",
			WeightGrams: 150,
		},
		barcode: &domain.BarcodeExtraction{
			Status: domain.ExtractionOK,
			Value:  "4901234567894",
		},
	}
	market := &fakeMarket{
		estimate: &domain.MarketEstimate{
			UnitPriceLow:      0.5,
			UnitPriceMid:      1,
			UnitPriceHigh:     1.5,
			HasImportEvidence: true,
		},
	}
	similarity := &fakeSimilarity{count: 3}
	svc := NewUpgradeService(reports, tasks, photos, vision, market, similarity, UpgradeConfig{MaxAttempts: 2})
	return svc, reports, tasks, vision, photos
}

func partialReport(id string) *domain.Report {
	return &domain.Report{
		ID:       id,
		InputKey: "key-" + id,
		OwnerID:  "owner-1",
		Status:   domain.ReportStatusPartial,
		Params:   validParams(),
		Images: domain.ImageRefs{
			ProductKey: "product/aa.png",
			BarcodeKey: "barcode/bb.png",
			LabelKey:   "label/cc.png",
		},
		FastFacts: domain.FastFacts{
			ProductName: "gummy bears",
			Category:    "candy",
			Confidence:  0.6,
		},
	}
}

func seedPhotos(photos *fakePhotoStorage, report *domain.Report) {
	for _, key := range []string{report.Images.ProductKey, report.Images.BarcodeKey, report.Images.LabelKey} {
		if key != "" {
			photos.objects[key] = []byte("image-bytes")
		}
	}
}

func TestUpgrade_CompletesReport(t *testing.T) {
	svc, reports, _, _, photos := newUpgradeFixture(t)
	report := partialReport("r1")
	reports.put(report)
	seedPhotos(photos, report)

	if err := svc.Upgrade(context.Background(), "r1"); err != nil {
		t.Fatalf("Upgrade() error = %v", err)
	}

	got, _ := reports.GetByID(context.Background(), "r1")
	if got.Status != domain.ReportStatusComplete {
		t.Fatalf("status = %s, want complete", got.Status)
	}
	if got.FastFacts.ProductName != "deluxe gummy bears" {
		t.Errorf("deep pass should enrich the product name, got %q", got.FastFacts.ProductName)
	}
	if got.FastFacts.WeightGrams != 150 || got.FastFacts.Barcode != "4901234567894" {
		t.Errorf("facts not enriched from label and barcode: %+v", got.FastFacts)
	}
	if got.Baseline == nil {
		t.Fatal("upgrade must compute a baseline")
	}
	if got.PipelineResult.SimilarReports != 3 {
		t.Errorf("similar reports = %d, want 3", got.PipelineResult.SimilarReports)
	}
	if !got.Evidence.Label.Extracted || got.Evidence.Label.Provenance != domain.ProvenanceLabelConfirmed {
		t.Errorf("label evidence = %+v", got.Evidence.Label)
	}
	if got.LabelExtractionStatus != domain.ExtractionOK {
		t.Errorf("label extraction status = %q", got.LabelExtractionStatus)
	}
}

func TestUpgrade_SkipsSettledReports(t *testing.T) {
	svc, reports, _, _, photos := newUpgradeFixture(t)

	for _, status := range []domain.ReportStatus{domain.ReportStatusComplete, domain.ReportStatusFailed} {
		report := partialReport(string(status))
		report.Status = status
		reports.put(report)
		seedPhotos(photos, report)

		if err := svc.Upgrade(context.Background(), report.ID); err != nil {
			t.Errorf("Upgrade() on %s report = %v, want nil no-op", status, err)
		}
		got, _ := reports.GetByID(context.Background(), report.ID)
		if got.Status != status {
			t.Errorf("settled report status changed to %s", got.Status)
		}
	}

	// A vanished report is a clean no-op, not an error to retry.
	if err := svc.Upgrade(context.Background(), "never-existed"); err != nil {
		t.Errorf("Upgrade() on missing report = %v, want nil", err)
	}
}

func TestUpgrade_AbsorbsOptionalStepFailures(t *testing.T) {
	svc, reports, _, vision, photos := newUpgradeFixture(t)
	report := partialReport("r1")
	reports.put(report)
	seedPhotos(photos, report)
	vision.labelErr = errors.New("ocr backend down")

	if err := svc.Upgrade(context.Background(), "r1"); err != nil {
		t.Fatalf("Upgrade() error = %v, label OCR failure must be absorbed", err)
	}
	got, _ := reports.GetByID(context.Background(), "r1")
	if got.Status != domain.ReportStatusComplete {
		t.Errorf("status = %s, want complete despite OCR failure", got.Status)
	}
	if got.Evidence.Label.Extracted {
		t.Error("failed OCR must not read as extracted")
	}
	if !got.Evidence.Label.Uploaded {
		t.Error("the label photo was uploaded, evidence must say so")
	}
	if got.Evidence.Label.FailureReason == "" {
		t.Error("failure reason must be carried onto the evidence")
	}
}

func TestUpgrade_DeepVisionFailureIsFatal(t *testing.T) {
	svc, reports, _, vision, photos := newUpgradeFixture(t)
	report := partialReport("r1")
	reports.put(report)
	seedPhotos(photos, report)
	vision.deep = nil
	vision.deepErr = errors.New("model unavailable")

	if err := svc.Upgrade(context.Background(), "r1"); err == nil {
		t.Fatal("Upgrade() should fail when the deep pass fails")
	}
	got, _ := reports.GetByID(context.Background(), "r1")
	if got.Status != domain.ReportStatusPartial {
		t.Errorf("status = %s, a retryable failure must leave the report partial", got.Status)
	}
}

func TestProcessTask_ExhaustedAttemptsSettleReport(t *testing.T) {
	svc, reports, tasks, vision, photos := newUpgradeFixture(t)
	svc.cfg.MaxAttempts = 1
	report := partialReport("r1")
	reports.put(report)
	seedPhotos(photos, report)
	vision.deep = nil
	vision.deepErr = errors.New("model unavailable")

	task := &domain.UpgradeTask{ID: "t1", ReportID: "r1", Status: domain.TaskStatusPending}
	if err := tasks.Enqueue(context.Background(), task); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	claimed, err := tasks.ClaimNext(context.Background(), svc.cfg.StaleAfter)
	if err != nil || claimed == nil {
		t.Fatalf("ClaimNext() = %v, %v", claimed, err)
	}

	svc.processTask(context.Background(), claimed)

	if task.Status != domain.TaskStatusFailed {
		t.Errorf("task status = %s, want failed after exhausted attempts", task.Status)
	}
	got, _ := reports.GetByID(context.Background(), "r1")
	if got.Status != domain.ReportStatusFailed {
		t.Errorf("report status = %s, want failed", got.Status)
	}
	if got.ErrorCode != ErrCodeUpgradeFailed || got.ErrorStep != domain.StepDeepVision {
		t.Errorf("failure tags = %s/%s", got.ErrorCode, got.ErrorStep)
	}
}

func TestProcessTask_SuccessAcks(t *testing.T) {
	svc, reports, tasks, _, photos := newUpgradeFixture(t)
	report := partialReport("r1")
	reports.put(report)
	seedPhotos(photos, report)

	task := &domain.UpgradeTask{ID: "t1", ReportID: "r1", Status: domain.TaskStatusPending}
	if err := tasks.Enqueue(context.Background(), task); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	claimed, _ := tasks.ClaimNext(context.Background(), svc.cfg.StaleAfter)

	svc.processTask(context.Background(), claimed)

	if len(tasks.acked) != 1 || tasks.acked[0] != "t1" {
		t.Errorf("acked = %v, want [t1]", tasks.acked)
	}
	got, _ := reports.GetByID(context.Background(), "r1")
	if got.Status != domain.ReportStatusComplete {
		t.Errorf("report status = %s, want complete", got.Status)
	}
}
