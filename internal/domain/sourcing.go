package domain

import (
	"database/sql/driver"
	"time"
)

// JobStatus is the job-level rollup status of a sourcing job. Transitions are
// forward-only; closed is reached only by explicit external action.
type JobStatus string

const (
	JobStatusPending         JobStatus = "pending"
	JobStatusOutreachSent    JobStatus = "outreach_sent"
	JobStatusRepliesReceived JobStatus = "replies_received"
	JobStatusQuotesConfirmed JobStatus = "quotes_confirmed"
	JobStatusClosed          JobStatus = "closed"
)

// jobStatusRank orders job statuses so the rollup never regresses.
var jobStatusRank = map[JobStatus]int{
	JobStatusPending:         0,
	JobStatusOutreachSent:    1,
	JobStatusRepliesReceived: 2,
	JobStatusQuotesConfirmed: 3,
	JobStatusClosed:          4,
}

// Rank returns the status position in the forward-only ordering.
func (s JobStatus) Rank() int {
	if r, ok := jobStatusRank[s]; ok {
		return r
	}
	return -1
}

// SupplierStatus is the per-supplier participation status within a job.
type SupplierStatus string

const (
	SupplierStatusPending      SupplierStatus = "pending"
	SupplierStatusOutreachSent SupplierStatus = "outreach_sent"
	SupplierStatusReplied      SupplierStatus = "replied"
	SupplierStatusNoReply      SupplierStatus = "no_reply"
)

// QuoteValidationStatus classifies an ingested supplier quote.
type QuoteValidationStatus string

const (
	QuoteValidationPending   QuoteValidationStatus = "pending"
	QuoteValidationPlausible QuoteValidationStatus = "plausible"
	QuoteValidationSuspect   QuoteValidationStatus = "suspect"
)

// OutreachPack is the structured outreach content generated per supplier:
// the message, the question checklist, and the product spec summary.
type OutreachPack struct {
	Message     string    `json:"message"`
	Questions   []string  `json:"questions"`
	SpecSummary string    `json:"spec_summary"`
	GeneratedAt time.Time `json:"generated_at"`
}

// Value implements the driver.Valuer interface for database serialization.
func (p OutreachPack) Value() (driver.Value, error) { return jsonValue(p) }

// Scan implements the sql.Scanner interface for database deserialization.
func (p *OutreachPack) Scan(value interface{}) error { return scanJSONOrZero(value, p) }

// SourcingJob is the supplier-outreach workflow spawned from a complete report.
// It is owned by the report but has an independent lifecycle.
type SourcingJob struct {
	ID       string    `gorm:"type:text;primaryKey" json:"id"`
	ReportID string    `gorm:"type:text;not null;index:idx_sourcing_jobs_report" json:"report_id"`
	OwnerID  string    `gorm:"type:text;not null" json:"owner_id"`
	Status   JobStatus `gorm:"type:text;default:pending" json:"status"`

	ClosedAt  *time.Time `json:"closed_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// TableName returns the database table name for SourcingJob.
func (SourcingJob) TableName() string {
	return "sourcing_jobs"
}

// Active reports whether the job still guards its parent report against
// evidence upgrades.
func (j SourcingJob) Active() bool {
	return j.Status != JobStatusClosed
}

// JobSupplier is one supplier's participation record within a sourcing job.
// The pack is persisted before the status flips to outreach_sent, so a reader
// never observes outreach_sent without a pack.
type JobSupplier struct {
	ID         string         `gorm:"type:text;primaryKey" json:"id"`
	JobID      string         `gorm:"type:text;not null;index:idx_job_suppliers_job" json:"job_id"`
	SupplierID string         `gorm:"type:text;not null" json:"supplier_id"`
	Status     SupplierStatus `gorm:"type:text;default:pending" json:"status"`
	Pack       *OutreachPack  `gorm:"type:text" json:"pack,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for JobSupplier.
func (JobSupplier) TableName() string {
	return "job_suppliers"
}

// SupplierQuote is an ingested quote for a job supplier. At most one quote per
// supplier is active; a new quote supersedes the prior one rather than
// appending.
type SupplierQuote struct {
	ID                 string                `gorm:"type:text;primaryKey" json:"id"`
	JobSupplierID      string                `gorm:"type:text;not null;index:idx_supplier_quotes_js" json:"job_supplier_id"`
	Price              float64               `json:"price"`
	MOQ                int                   `json:"moq"`
	LeadTimeDays       int                   `json:"lead_time_days"`
	Incoterm           string                `gorm:"type:text" json:"incoterm"`
	ConfirmedInWriting bool                  `json:"confirmed_in_writing"`
	ValidationStatus   QuoteValidationStatus `gorm:"type:text;default:pending" json:"validation_status"`

	SupersededAt *time.Time `json:"superseded_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// TableName returns the database table name for SupplierQuote.
func (SupplierQuote) TableName() string {
	return "supplier_quotes"
}

// SupplierStatusView is the read-only per-supplier projection returned by the
// status map endpoint, joining the supplier row with its latest active quote.
type SupplierStatusView struct {
	Status             SupplierStatus        `json:"status"`
	HasQuote           bool                  `json:"has_quote"`
	ConfirmedInWriting bool                  `json:"confirmed_in_writing"`
	ValidationStatus   QuoteValidationStatus `json:"validation_status,omitempty"`
}
