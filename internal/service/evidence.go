package service

import (
	"strconv"
	"strings"

	"github.com/nori/caliper/internal/domain"
)

// Keys recognized in the manually confirmed label fields.
const (
	FieldWeightGrams = "weight_grams"
	FieldCasePack    = "case_pack"
	FieldNetWeight   = "net_weight"
)

// NormalizeEvidence inspects the raw pipeline output and the audit trail and
// produces the canonical per-signal evidence records the tier engine consumes.
// It computes nothing about the tier itself and performs no I/O.
//
// Rules:
//   - an input image that was provided but failed structured extraction yields
//     uploaded=true, extracted=false with the failure reason verbatim from the
//     audit trail;
//   - a weight present without a successful label read is tagged
//     VISION_INFERENCE, distinct from LABEL_CONFIRMED and CATEGORY_DEFAULT;
//   - manual correction always sets extracted and confirmed, regardless of any
//     prior OCR failure.
func NormalizeEvidence(pr domain.PipelineResult, images domain.ImageRefs, confirmed domain.StringMap) domain.EvidenceSet {
	set := domain.EvidenceSet{
		Label:          normalizeLabel(pr, images, confirmed),
		Weight:         normalizeWeight(pr, images, confirmed),
		Barcode:        normalizeBarcode(pr, images),
		Classification: normalizeClassification(pr),
	}

	set.CasePackKnown = casePackKnown(pr, confirmed)
	return set
}

func normalizeLabel(pr domain.PipelineResult, images domain.ImageRefs, confirmed domain.StringMap) domain.EvidenceRecord {
	rec := domain.EvidenceRecord{
		Uploaded: images.LabelKey != "",
	}
	applyAuditTimes(&rec, pr.AuditFor(domain.StepLabelOCR))

	if ocr := pr.LabelOCR; ocr != nil {
		switch ocr.Status {
		case domain.ExtractionOK:
			rec.Extracted = true
			rec.Provenance = domain.ProvenanceLabelConfirmed
			rec.InferredValue = ocr.Text
		case domain.ExtractionFailed:
			rec.FailureReason = ocr.FailureReason
			if rec.FailureReason == "" {
				if audit := pr.AuditFor(domain.StepLabelOCR); audit != nil {
					rec.FailureReason = audit.FailureReason
				}
			}
		}
	}

	// Manual entry outranks automated extraction.
	if len(confirmed) > 0 {
		rec.Extracted = true
		rec.Confirmed = true
		rec.Provenance = domain.ProvenanceManualEntry
	}

	return rec
}

func normalizeWeight(pr domain.PipelineResult, images domain.ImageRefs, confirmed domain.StringMap) domain.EvidenceRecord {
	rec := domain.EvidenceRecord{
		Uploaded: images.LabelKey != "" || images.ProductKey != "",
	}

	if v, ok := manualWeight(confirmed); ok {
		rec.Extracted = true
		rec.Confirmed = true
		rec.Provenance = domain.ProvenanceManualEntry
		rec.InferredValue = formatWeight(v)
		return rec
	}

	labelOK := pr.LabelOCR != nil && pr.LabelOCR.Status == domain.ExtractionOK
	if labelOK && pr.LabelOCR.WeightGrams > 0 {
		rec.Extracted = true
		rec.Provenance = domain.ProvenanceLabelConfirmed
		rec.InferredValue = formatWeight(pr.LabelOCR.WeightGrams)
		applyAuditTimes(&rec, pr.AuditFor(domain.StepLabelOCR))
		return rec
	}

	if w := visionWeight(pr); w > 0 {
		// Weight without a successful label read is an inference, not a fact.
		rec.Extracted = true
		rec.Provenance = domain.ProvenanceVisionInference
		rec.InferredValue = formatWeight(w)
		return rec
	}

	if pr.LabelOCR != nil && pr.LabelOCR.Status == domain.ExtractionFailed {
		rec.FailureReason = pr.LabelOCR.FailureReason
	}

	// Last resort: a category-typical weight. It fills the value but does not
	// count as extracted, so the input still reads as missing.
	if w := categoryDefaultWeight(extractedCategory(pr)); w > 0 {
		rec.Provenance = domain.ProvenanceCategoryDefault
		rec.InferredValue = formatWeight(w)
	}
	return rec
}

// categoryDefaultWeights are typical per-unit weights used only as display
// defaults when no extraction produced a weight.
var categoryDefaultWeights = []struct {
	keyword string
	grams   float64
}{
	{"candy", 50},
	{"chocolate", 100},
	{"toy", 250},
	{"plush", 300},
	{"electronic", 400},
	{"apparel", 200},
	{"clothing", 200},
	{"kitchen", 350},
	{"cosmetic", 120},
	{"jewelry", 30},
	{"stationery", 80},
	{"footwear", 600},
}

func categoryDefaultWeight(category string) float64 {
	category = strings.ToLower(category)
	for _, entry := range categoryDefaultWeights {
		if strings.Contains(category, entry.keyword) {
			return entry.grams
		}
	}
	return 0
}

func extractedCategory(pr domain.PipelineResult) string {
	if pr.DeepVision != nil && pr.DeepVision.Category != "" {
		return pr.DeepVision.Category
	}
	if pr.FastVision != nil {
		return pr.FastVision.Category
	}
	return ""
}

func normalizeBarcode(pr domain.PipelineResult, images domain.ImageRefs) domain.EvidenceRecord {
	rec := domain.EvidenceRecord{
		Uploaded: images.BarcodeKey != "",
	}
	applyAuditTimes(&rec, pr.AuditFor(domain.StepBarcodeRead))

	if bc := pr.Barcode; bc != nil {
		switch bc.Status {
		case domain.ExtractionOK:
			rec.Extracted = true
			rec.Provenance = domain.ProvenanceBarcodeRead
			rec.InferredValue = bc.Value
		case domain.ExtractionFailed:
			rec.FailureReason = bc.FailureReason
		}
	}
	return rec
}

func normalizeClassification(pr domain.PipelineResult) domain.EvidenceRecord {
	rec := domain.EvidenceRecord{
		// Classification derives from the product photo, which is always present.
		Uploaded: true,
	}

	if dv := pr.DeepVision; dv != nil && len(dv.HSCode) >= 4 {
		rec.Extracted = true
		rec.Provenance = domain.ProvenanceVisionInference
		rec.InferredValue = dv.HSCode
		return rec
	}
	if m := pr.Market; m != nil && len(m.Candidates) > 0 {
		rec.Extracted = true
		rec.Provenance = domain.ProvenanceMarketEstimate
		rec.InferredValue = m.Candidates[0].Code
		return rec
	}
	return rec
}

func casePackKnown(pr domain.PipelineResult, confirmed domain.StringMap) bool {
	if confirmed != nil && confirmed[FieldCasePack] != "" {
		return true
	}
	return pr.DeepVision != nil && pr.DeepVision.CasePack > 0
}

func visionWeight(pr domain.PipelineResult) float64 {
	if pr.DeepVision != nil && pr.DeepVision.WeightGrams > 0 {
		return pr.DeepVision.WeightGrams
	}
	if pr.FastVision != nil && pr.FastVision.WeightGrams > 0 {
		return pr.FastVision.WeightGrams
	}
	return 0
}

func manualWeight(confirmed domain.StringMap) (float64, bool) {
	if confirmed == nil {
		return 0, false
	}
	for _, key := range []string{FieldWeightGrams, FieldNetWeight} {
		if raw := confirmed[key]; raw != "" {
			if v, err := strconv.ParseFloat(raw, 64); err == nil && v > 0 {
				return v, true
			}
		}
	}
	return 0, false
}

func formatWeight(grams float64) string {
	return strconv.FormatFloat(grams, 'f', -1, 64) + "g"
}

func applyAuditTimes(rec *domain.EvidenceRecord, audit *domain.StepAudit) {
	if audit == nil {
		return
	}
	at := audit.At
	rec.LastAttemptAt = &at
	if audit.Status == domain.ExtractionOK {
		rec.LastSuccessAt = &at
	}
}
