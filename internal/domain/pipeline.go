package domain

import (
	"database/sql/driver"
	"time"
)

// Pipeline step tags used in the audit trail and in Report.ErrorStep.
const (
	StepFastVision  = "fast_vision"
	StepDeepVision  = "deep_vision"
	StepLabelOCR    = "label_ocr"
	StepBarcodeRead = "barcode_read"
	StepMarket      = "market_lookup"
	StepBaseline    = "baseline"
)

// Extraction status values for individual pipeline steps.
const (
	ExtractionOK      = "ok"
	ExtractionFailed  = "failed"
	ExtractionSkipped = "skipped"
)

// VisionExtraction is the structured output of a vision pass over the product
// photo. The fast pass and the deep pass share this shape; the deep pass fills
// more fields.
type VisionExtraction struct {
	ProductName string   `json:"product_name"`
	Category    string   `json:"category"`
	Keywords    []string `json:"keywords,omitempty"`
	HSCode      string   `json:"hs_code,omitempty"`
	WeightGrams float64  `json:"weight_grams,omitempty"`
	CasePack    int      `json:"case_pack,omitempty"`
	Confidence  float64  `json:"confidence"`
}

// LabelExtraction is the structured output of the label OCR pass.
type LabelExtraction struct {
	Status        string            `json:"status"` // ok | failed | skipped
	Text          string            `json:"text,omitempty"`
	Fields        map[string]string `json:"fields,omitempty"`
	WeightGrams   float64           `json:"weight_grams,omitempty"`
	FailureReason string            `json:"failure_reason,omitempty"`
}

// BarcodeExtraction is the structured output of the barcode read pass.
type BarcodeExtraction struct {
	Status        string `json:"status"` // ok | failed | skipped
	Value         string `json:"value,omitempty"`
	Symbology     string `json:"symbology,omitempty"`
	FailureReason string `json:"failure_reason,omitempty"`
}

// MarketCandidate is one classification-code candidate from market data.
type MarketCandidate struct {
	Code       string  `json:"code"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason,omitempty"`
}

// MarketEstimate is the market-data lookup result used for the baseline.
type MarketEstimate struct {
	UnitPriceLow      float64           `json:"unit_price_low"`
	UnitPriceMid      float64           `json:"unit_price_mid"`
	UnitPriceHigh     float64           `json:"unit_price_high"`
	Candidates        []MarketCandidate `json:"candidates,omitempty"`
	HasImportEvidence bool              `json:"has_import_evidence"`
	ADCVDPossible     bool              `json:"adcvd_possible"`
	OriginSensitive   bool              `json:"origin_sensitive"`
	RequiredCerts     []string          `json:"required_certs,omitempty"`
	LabelingRisks     []string          `json:"labeling_risks,omitempty"`
	MOQLow            int               `json:"moq_low,omitempty"`
	MOQHigh           int               `json:"moq_high,omitempty"`
	LeadTimeDaysLow   int               `json:"lead_time_days_low,omitempty"`
	LeadTimeDaysHigh  int               `json:"lead_time_days_high,omitempty"`
}

// StepAudit records one pipeline step attempt. The evidence normalizer reads
// failure reasons verbatim from this trail.
type StepAudit struct {
	Step          string    `json:"step"`
	Status        string    `json:"status"`
	FailureReason string    `json:"failure_reason,omitempty"`
	At            time.Time `json:"at"`
}

// PipelineResult holds the raw extraction payloads per pipeline step as tagged
// fields, plus the step audit trail.
type PipelineResult struct {
	FastVision *VisionExtraction  `json:"fast_vision,omitempty"`
	DeepVision *VisionExtraction  `json:"deep_vision,omitempty"`
	LabelOCR   *LabelExtraction   `json:"label_ocr,omitempty"`
	Barcode    *BarcodeExtraction `json:"barcode,omitempty"`
	Market     *MarketEstimate    `json:"market,omitempty"`
	// SimilarReports is the count of prior reports whose embeddings scored
	// above the similarity threshold when this report was upgraded.
	SimilarReports int         `json:"similar_reports,omitempty"`
	Audit          []StepAudit `json:"audit,omitempty"`
}

// Value implements the driver.Valuer interface for database serialization.
func (p PipelineResult) Value() (driver.Value, error) { return jsonValue(p) }

// Scan implements the sql.Scanner interface for database deserialization.
func (p *PipelineResult) Scan(value interface{}) error { return scanJSONOrZero(value, p) }

// RecordStep appends an audit entry for a pipeline step.
func (p *PipelineResult) RecordStep(step, status, failureReason string) {
	p.Audit = append(p.Audit, StepAudit{
		Step:          step,
		Status:        status,
		FailureReason: failureReason,
		At:            time.Now().UTC(),
	})
}

// AuditFor returns the most recent audit entry for the given step.
func (p *PipelineResult) AuditFor(step string) *StepAudit {
	for i := len(p.Audit) - 1; i >= 0; i-- {
		if p.Audit[i].Step == step {
			return &p.Audit[i]
		}
	}
	return nil
}
