package domain

import "database/sql/driver"

// CostBreakdown splits a landed-cost estimate into its components. TotalLanded
// is per order (unit costs scaled by quantity plus fixed costs).
type CostBreakdown struct {
	UnitPrice   CostRange `json:"unit_price"`
	Shipping    CostRange `json:"shipping"`
	Duty        CostRange `json:"duty"`
	Fee         CostRange `json:"fee"`
	TotalLanded CostRange `json:"total_landed"`
}

// RiskScores are 0-1 risk estimates per dimension.
type RiskScores struct {
	Tariff     float64 `json:"tariff"`
	Compliance float64 `json:"compliance"`
	Supply     float64 `json:"supply"`
	Total      float64 `json:"total"`
}

// IntRange is an inclusive integer range (MOQ, lead time days).
type IntRange struct {
	Low  int `json:"low"`
	High int `json:"high"`
}

// RiskFlags are qualitative risk indicators attached to the baseline.
type RiskFlags struct {
	CodeRange       string   `json:"code_range,omitempty"` // candidate classification-code span
	ADCVDPossible   bool     `json:"adcvd_possible"`
	OriginSensitive bool     `json:"origin_sensitive"`
	RequiredCerts   []string `json:"required_certs,omitempty"`
	LabelingRisks   []string `json:"labeling_risks,omitempty"`
	MOQ             IntRange `json:"moq"`
	LeadTimeDays    IntRange `json:"lead_time_days"`
}

// Baseline is the cost and risk estimate computed by the background upgrader.
// Conservative assumes the worse end of classification and pricing; Standard
// uses the mid estimates.
type Baseline struct {
	Conservative CostBreakdown `json:"conservative"`
	Standard     CostBreakdown `json:"standard"`
	Risk         RiskScores    `json:"risk"`
	Flags        RiskFlags     `json:"flags"`
}

// Value implements the driver.Valuer interface for database serialization.
func (b Baseline) Value() (driver.Value, error) { return jsonValue(b) }

// Scan implements the sql.Scanner interface for database deserialization.
func (b *Baseline) Scan(value interface{}) error { return scanJSONOrZero(value, b) }
