package domain

import (
	"database/sql/driver"
	"time"
)

// ReportSchemaVersion is written into every new report row so the JSON payload
// shape can be migrated forward later.
const ReportSchemaVersion = 2

// ReportStatus represents the lifecycle status of an estimate report.
// The transition is forward-only: partial -> complete | failed.
type ReportStatus string

const (
	ReportStatusPartial  ReportStatus = "partial"
	ReportStatusComplete ReportStatus = "complete"
	ReportStatusFailed   ReportStatus = "failed"
)

// RequestParams are the caller-supplied estimation parameters. Together with the
// image hashes they define the content cache key, and the upgrader re-reads them
// when recomputing the baseline.
type RequestParams struct {
	Quantity     int     `json:"quantity"`
	DutyRate     float64 `json:"duty_rate"`
	ShippingCost float64 `json:"shipping_cost"`
	Fee          float64 `json:"fee"`
	Destination  string  `json:"destination"`
	ShippingMode string  `json:"shipping_mode"`
}

// Value implements the driver.Valuer interface for database serialization.
func (p RequestParams) Value() (driver.Value, error) { return jsonValue(p) }

// Scan implements the sql.Scanner interface for database deserialization.
func (p *RequestParams) Scan(value interface{}) error { return scanJSONOrZero(value, p) }

// ImageRefs holds the object-storage keys of the uploaded photos. Barcode and
// label photos are optional and their keys may be empty.
type ImageRefs struct {
	ProductKey string `json:"product_key"`
	BarcodeKey string `json:"barcode_key,omitempty"`
	LabelKey   string `json:"label_key,omitempty"`
}

// Value implements the driver.Valuer interface for database serialization.
func (r ImageRefs) Value() (driver.Value, error) { return jsonValue(r) }

// Scan implements the sql.Scanner interface for database deserialization.
func (r *ImageRefs) Scan(value interface{}) error { return scanJSONOrZero(value, r) }

// FastFacts is the low-latency partial fact set produced by the fast extraction
// pass. The background upgrader may overwrite it with richer values.
type FastFacts struct {
	ProductName string   `json:"product_name"`
	Category    string   `json:"category"`
	Barcode     string   `json:"barcode,omitempty"`
	LabelText   string   `json:"label_text,omitempty"`
	WeightGrams float64  `json:"weight_grams,omitempty"`
	Keywords    []string `json:"keywords,omitempty"`
	Confidence  float64  `json:"confidence"`
}

// Value implements the driver.Valuer interface for database serialization.
func (f FastFacts) Value() (driver.Value, error) { return jsonValue(f) }

// Scan implements the sql.Scanner interface for database deserialization.
func (f *FastFacts) Scan(value interface{}) error { return scanJSONOrZero(value, f) }

// Verification records a human-verified supplier quote. Once Quoted is true the
// quality tier short-circuits to verified; verification is append-only and never
// revoked.
type Verification struct {
	Quoted     bool       `json:"quoted"`
	QuoteDate  *time.Time `json:"quote_date,omitempty"`
	QuotePrice float64    `json:"quote_price,omitempty"`
}

// Value implements the driver.Valuer interface for database serialization.
func (v Verification) Value() (driver.Value, error) { return jsonValue(v) }

// Scan implements the sql.Scanner interface for database deserialization.
func (v *Verification) Scan(value interface{}) error { return scanJSONOrZero(value, v) }

// Report is the central entity: one landed-cost estimate for one deduplicated
// request. Derived values (quality tier, normalized ranges, classification
// candidates) are recomputed on read and never trusted from storage.
type Report struct {
	ID       string       `gorm:"type:text;primaryKey" json:"id"`
	InputKey string       `gorm:"type:text;not null;uniqueIndex:idx_reports_input_key" json:"input_key"`
	OwnerID  string       `gorm:"type:text;not null;index:idx_reports_owner" json:"owner_id"`
	Status   ReportStatus `gorm:"type:text;index:idx_reports_status;default:partial" json:"status"`

	SchemaVersion int `gorm:"default:2" json:"schema_version"`

	Params RequestParams `gorm:"type:text" json:"params"`
	Images ImageRefs     `gorm:"type:text" json:"images"`

	FastFacts      FastFacts      `gorm:"type:text" json:"fast_facts"`
	PipelineResult PipelineResult `gorm:"type:text" json:"pipeline_result"`
	Baseline       *Baseline      `gorm:"type:text" json:"baseline,omitempty"`
	Evidence       EvidenceSet    `gorm:"type:text" json:"evidence"`
	Verification   Verification   `gorm:"type:text" json:"verification"`

	LabelExtractionStatus string    `gorm:"type:text" json:"label_extraction_status,omitempty"`
	LabelConfirmedFields  StringMap `gorm:"type:text" json:"label_confirmed_fields,omitempty"`

	// ErrorCode and ErrorStep are set when Status is failed.
	ErrorCode string `gorm:"type:text" json:"error_code,omitempty"`
	ErrorStep string `gorm:"type:text" json:"error_step,omitempty"`

	LastEvidenceUpgradeAt *time.Time `json:"last_evidence_upgrade_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for Report.
func (Report) TableName() string {
	return "reports"
}
