package service

import (
	"testing"

	"github.com/nori/caliper/internal/domain"
)

func TestNormalizeEvidence_LabelFailureKeepsReasonVerbatim(t *testing.T) {
	pr := domain.PipelineResult{
		LabelOCR: &domain.LabelExtraction{
			Status:        domain.ExtractionFailed,
			FailureReason: "low-contrast",
		},
	}
	pr.RecordStep(domain.StepLabelOCR, domain.ExtractionFailed, "low-contrast")
	images := domain.ImageRefs{ProductKey: "p", LabelKey: "l"}

	ev := NormalizeEvidence(pr, images, nil)

	if !ev.Label.Uploaded {
		t.Error("label photo was provided, Uploaded should be true")
	}
	if ev.Label.Extracted {
		t.Error("failed OCR must not count as extracted")
	}
	if ev.Label.FailureReason != "low-contrast" {
		t.Errorf("FailureReason = %q, want the verbatim reason", ev.Label.FailureReason)
	}
	if ev.Label.LastAttemptAt == nil {
		t.Error("audit entry should stamp LastAttemptAt")
	}
	if ev.Label.LastSuccessAt != nil {
		t.Error("failed attempt must not stamp LastSuccessAt")
	}
}

func TestNormalizeEvidence_WeightProvenance(t *testing.T) {
	tests := []struct {
		name           string
		pr             domain.PipelineResult
		confirmed      domain.StringMap
		wantProvenance domain.Provenance
		wantSatisfied  bool
	}{
		{
			name: "label-read weight is LABEL_CONFIRMED",
			pr: domain.PipelineResult{
				LabelOCR: &domain.LabelExtraction{Status: domain.ExtractionOK, WeightGrams: 120},
			},
			wantProvenance: domain.ProvenanceLabelConfirmed,
			wantSatisfied:  true,
		},
		{
			name: "vision weight without label read is VISION_INFERENCE",
			pr: domain.PipelineResult{
				DeepVision: &domain.VisionExtraction{WeightGrams: 300},
			},
			wantProvenance: domain.ProvenanceVisionInference,
			wantSatisfied:  true,
		},
		{
			name: "vision weight with failed label read is still VISION_INFERENCE",
			pr: domain.PipelineResult{
				DeepVision: &domain.VisionExtraction{WeightGrams: 300},
				LabelOCR:   &domain.LabelExtraction{Status: domain.ExtractionFailed, FailureReason: "unreadable"},
			},
			wantProvenance: domain.ProvenanceVisionInference,
			wantSatisfied:  true,
		},
		{
			name: "category default fills value but stays unsatisfied",
			pr: domain.PipelineResult{
				FastVision: &domain.VisionExtraction{Category: "plush toys"},
			},
			wantProvenance: domain.ProvenanceCategoryDefault,
			wantSatisfied:  false,
		},
		{
			name:           "manual weight outranks everything",
			pr:             domain.PipelineResult{DeepVision: &domain.VisionExtraction{WeightGrams: 300}},
			confirmed:      domain.StringMap{"weight_grams": "150"},
			wantProvenance: domain.ProvenanceManualEntry,
			wantSatisfied:  true,
		},
	}

	images := domain.ImageRefs{ProductKey: "p", LabelKey: "l"}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := NormalizeEvidence(tt.pr, images, tt.confirmed)
			if ev.Weight.Provenance != tt.wantProvenance {
				t.Errorf("Weight.Provenance = %q, want %q", ev.Weight.Provenance, tt.wantProvenance)
			}
			if ev.Weight.Satisfied() != tt.wantSatisfied {
				t.Errorf("Weight.Satisfied() = %v, want %v", ev.Weight.Satisfied(), tt.wantSatisfied)
			}
		})
	}
}

func TestNormalizeEvidence_ManualEntryOverridesOCRFailure(t *testing.T) {
	pr := domain.PipelineResult{
		LabelOCR: &domain.LabelExtraction{
			Status:        domain.ExtractionFailed,
			FailureReason: "unreadable",
		},
	}
	confirmed := domain.StringMap{"net_weight": "500", "country_of_origin": "CN"}

	ev := NormalizeEvidence(pr, domain.ImageRefs{ProductKey: "p", LabelKey: "l"}, confirmed)

	if !ev.Label.Extracted || !ev.Label.Confirmed {
		t.Errorf("manual entry must set extracted and confirmed, got extracted=%v confirmed=%v",
			ev.Label.Extracted, ev.Label.Confirmed)
	}
	if ev.Label.Provenance != domain.ProvenanceManualEntry {
		t.Errorf("Label.Provenance = %q, want MANUAL_ENTRY", ev.Label.Provenance)
	}
	if ev.Weight.Provenance != domain.ProvenanceManualEntry {
		t.Errorf("Weight.Provenance = %q, want MANUAL_ENTRY from net_weight", ev.Weight.Provenance)
	}
}

func TestNormalizeEvidence_Barcode(t *testing.T) {
	pr := domain.PipelineResult{
		Barcode: &domain.BarcodeExtraction{Status: domain.ExtractionOK, Value: "4901234567894"},
	}
	ev := NormalizeEvidence(pr, domain.ImageRefs{ProductKey: "p", BarcodeKey: "b"}, nil)

	if !ev.Barcode.Uploaded || !ev.Barcode.Extracted {
		t.Error("successful barcode read should be uploaded and extracted")
	}
	if ev.Barcode.Provenance != domain.ProvenanceBarcodeRead {
		t.Errorf("Barcode.Provenance = %q", ev.Barcode.Provenance)
	}
	if ev.Barcode.InferredValue != "4901234567894" {
		t.Errorf("Barcode.InferredValue = %q", ev.Barcode.InferredValue)
	}

	// No barcode photo at all
	ev = NormalizeEvidence(domain.PipelineResult{}, domain.ImageRefs{ProductKey: "p"}, nil)
	if ev.Barcode.Uploaded {
		t.Error("missing barcode photo should not be Uploaded")
	}
}

func TestNormalizeEvidence_ClassificationAndCasePack(t *testing.T) {
	pr := domain.PipelineResult{
		DeepVision: &domain.VisionExtraction{HSCode: "9503.00.00", CasePack: 24},
	}
	ev := NormalizeEvidence(pr, domain.ImageRefs{ProductKey: "p"}, nil)

	if !ev.Classification.Extracted {
		t.Error("vision HS code should extract classification")
	}
	if ev.Classification.Provenance != domain.ProvenanceVisionInference {
		t.Errorf("Classification.Provenance = %q", ev.Classification.Provenance)
	}
	if !ev.CasePackKnown {
		t.Error("deep vision case pack should set CasePackKnown")
	}

	// Market candidate as classification source
	pr = domain.PipelineResult{
		Market: &domain.MarketEstimate{
			Candidates: []domain.MarketCandidate{{Code: "1704.90.35", Confidence: 0.6}},
		},
	}
	ev = NormalizeEvidence(pr, domain.ImageRefs{ProductKey: "p"}, nil)
	if ev.Classification.Provenance != domain.ProvenanceMarketEstimate {
		t.Errorf("Classification.Provenance = %q, want MARKET_ESTIMATE", ev.Classification.Provenance)
	}

	// Manual case pack
	ev = NormalizeEvidence(domain.PipelineResult{}, domain.ImageRefs{ProductKey: "p"}, domain.StringMap{"case_pack": "12"})
	if !ev.CasePackKnown {
		t.Error("confirmed case_pack field should set CasePackKnown")
	}
}
