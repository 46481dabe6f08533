package domain

import (
	"database/sql/driver"
	"time"
)

// Provenance tags how an evidence value was obtained.
type Provenance string

const (
	ProvenanceLabelConfirmed  Provenance = "LABEL_CONFIRMED"
	ProvenanceVisionInference Provenance = "VISION_INFERENCE"
	ProvenanceCategoryDefault Provenance = "CATEGORY_DEFAULT"
	ProvenanceManualEntry     Provenance = "MANUAL_ENTRY"
	ProvenanceBarcodeRead     Provenance = "BARCODE_READ"
	ProvenanceMarketEstimate  Provenance = "MARKET_ESTIMATE"
)

// SignalKind identifies a tracked evidence signal.
type SignalKind string

const (
	SignalLabel          SignalKind = "label"
	SignalWeight         SignalKind = "weight"
	SignalBarcode        SignalKind = "barcode"
	SignalClassification SignalKind = "classification"
)

// EvidenceRecord is the canonical per-signal evidence used by the tier engine.
// Uploaded means the relevant input image was provided; Extracted means
// structured extraction succeeded. Manual correction sets both Extracted and
// Confirmed regardless of prior extraction failures.
type EvidenceRecord struct {
	Uploaded      bool       `json:"uploaded"`
	Extracted     bool       `json:"extracted"`
	Confirmed     bool       `json:"confirmed"`
	FailureReason string     `json:"failure_reason,omitempty"`
	InferredValue string     `json:"inferred_value,omitempty"`
	Provenance    Provenance `json:"provenance,omitempty"`
	LastAttemptAt *time.Time `json:"last_attempt_at,omitempty"`
	LastSuccessAt *time.Time `json:"last_success_at,omitempty"`
}

// Satisfied reports whether the signal counts as a present input: either
// automated extraction succeeded or a manual entry confirmed it.
func (e EvidenceRecord) Satisfied() bool {
	return e.Extracted || e.Confirmed
}

// EvidenceSet holds one record per tracked signal as tagged fields rather than
// a free-form map, so each signal keeps its explicit provenance.
type EvidenceSet struct {
	Label          EvidenceRecord `json:"label"`
	Weight         EvidenceRecord `json:"weight"`
	Barcode        EvidenceRecord `json:"barcode"`
	Classification EvidenceRecord `json:"classification"`
	CasePackKnown  bool           `json:"case_pack_known"`
}

// Value implements the driver.Valuer interface for database serialization.
func (s EvidenceSet) Value() (driver.Value, error) { return jsonValue(s) }

// Scan implements the sql.Scanner interface for database deserialization.
func (s *EvidenceSet) Scan(value interface{}) error { return scanJSONOrZero(value, s) }

// Get returns the record for the given signal kind.
func (s EvidenceSet) Get(kind SignalKind) EvidenceRecord {
	switch kind {
	case SignalLabel:
		return s.Label
	case SignalWeight:
		return s.Weight
	case SignalBarcode:
		return s.Barcode
	case SignalClassification:
		return s.Classification
	}
	return EvidenceRecord{}
}
