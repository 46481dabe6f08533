package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nori/caliper/internal/apperr"
	"github.com/nori/caliper/internal/domain"
	"github.com/nori/caliper/internal/logger"
)

// OutreachDispatcher delivers a generated outreach pack to one supplier.
// Dispatch is fire-and-forget: a delivery failure is logged and isolated, it
// never rolls back the persisted pack.
type OutreachDispatcher interface {
	Dispatch(ctx context.Context, supplierID string, pack *domain.OutreachPack) error
}

// LogDispatcher is the default dispatcher: it only logs the outreach. Real
// delivery channels (email, B2B messaging) plug in behind the same interface.
type LogDispatcher struct{}

// Dispatch logs the outreach message for the supplier.
func (LogDispatcher) Dispatch(ctx context.Context, supplierID string, pack *domain.OutreachPack) error {
	logger.With(logger.Fields{
		logger.FieldSupplierID: supplierID,
		logger.FieldSize:       len(pack.Message),
	}).Info(ctx, "Outreach pack dispatched")
	return nil
}

// VerificationRecorder writes a confirmed quote back onto the parent report.
// The concrete implementation is ReportService.
type VerificationRecorder interface {
	RecordVerification(ctx context.Context, reportID string, price float64, date time.Time) error
}

// SourcingService drives the supplier-outreach workflow spawned from a
// complete report: job creation with per-supplier outreach packs, reply and
// quote tracking, and the forward-only job status rollup.
type SourcingService struct {
	reports    ReportStore
	jobs       JobStore
	dispatcher OutreachDispatcher
	verifier   VerificationRecorder
}

// NewSourcingService creates a new SourcingService.
func NewSourcingService(reports ReportStore, jobs JobStore, dispatcher OutreachDispatcher, verifier VerificationRecorder) *SourcingService {
	if dispatcher == nil {
		dispatcher = LogDispatcher{}
	}
	return &SourcingService{
		reports:    reports,
		jobs:       jobs,
		dispatcher: dispatcher,
		verifier:   verifier,
	}
}

// CreateJob opens a sourcing job for a complete report and runs outreach for
// every supplier: generate pack, persist it, flip the supplier to
// outreach_sent (pack before status, so outreach_sent always has a pack),
// then dispatch. One supplier's failure never blocks the others.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - reportID: parent report, must be complete.
//   - supplierIDs: external supplier identifiers, at least one.
//
// Returns:
//   - *domain.SourcingJob: the created job.
//   - error: apperr.ValidationError on bad input or non-complete report.
func (s *SourcingService) CreateJob(ctx context.Context, reportID string, supplierIDs []string) (*domain.SourcingJob, error) {
	supplierIDs = dedupeStrings(supplierIDs)
	if len(supplierIDs) == 0 {
		return nil, apperr.Validation("EMPTY_SUPPLIER_LIST", "at least one supplier is required")
	}

	report, err := s.reports.GetByID(ctx, reportID)
	if err != nil {
		return nil, err
	}
	if report.Status != domain.ReportStatusComplete {
		return nil, apperr.Validation("REPORT_NOT_COMPLETE", "sourcing requires a complete report, status is %s", report.Status)
	}
	if existing, err := s.jobs.GetActiveJobByReport(ctx, reportID); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, apperr.Validation("JOB_ALREADY_ACTIVE", "report already has active sourcing job %s", existing.ID)
	}

	job := &domain.SourcingJob{
		ID:       uuid.New().String(),
		ReportID: reportID,
		OwnerID:  report.OwnerID,
		Status:   domain.JobStatusPending,
	}
	suppliers := make([]domain.JobSupplier, len(supplierIDs))
	for i, supplierID := range supplierIDs {
		suppliers[i] = domain.JobSupplier{
			ID:         uuid.New().String(),
			JobID:      job.ID,
			SupplierID: supplierID,
			Status:     domain.SupplierStatusPending,
		}
	}

	if err := s.jobs.CreateJob(ctx, job, suppliers); err != nil {
		return nil, err
	}

	ctx = logger.SetJobID(ctx, job.ID)
	logger.With(logger.Fields{logger.FieldCount: len(suppliers)}).
		Info(ctx, "Sourcing job created")

	anySent := false
	for i := range suppliers {
		if s.runOutreach(ctx, report, &suppliers[i]) {
			anySent = true
		}
	}
	if anySent {
		if err := s.jobs.AdvanceJobStatus(ctx, job.ID, domain.JobStatusOutreachSent); err != nil {
			logger.CtxError(ctx, "Failed to advance job status: %v", err)
		} else {
			job.Status = domain.JobStatusOutreachSent
		}
	}
	return job, nil
}

// runOutreach handles one supplier: pack, persist, flip, dispatch. Returns
// whether outreach was sent.
func (s *SourcingService) runOutreach(ctx context.Context, report *domain.Report, supplier *domain.JobSupplier) bool {
	ctx = logger.WithField(ctx, logger.FieldSupplierID, supplier.SupplierID)

	pack := buildOutreachPack(report)
	if err := s.jobs.AttachPack(ctx, supplier.ID, pack); err != nil {
		logger.CtxError(ctx, "Failed to persist outreach pack: %v", err)
		return false
	}
	supplier.Pack = pack
	supplier.Status = domain.SupplierStatusOutreachSent

	if err := s.dispatcher.Dispatch(ctx, supplier.SupplierID, pack); err != nil {
		// Pack is persisted and status flipped; delivery retries are a
		// dispatcher concern.
		logger.CtxError(ctx, "Outreach dispatch failed: %v", err)
	}
	return true
}

// buildOutreachPack assembles the outreach content from the report's facts and
// parameters.
func buildOutreachPack(report *domain.Report) *domain.OutreachPack {
	facts := report.FastFacts
	params := report.Params

	name := facts.ProductName
	if name == "" {
		name = "the product in the attached photos"
	}

	var summary strings.Builder
	fmt.Fprintf(&summary, "Product: %s", name)
	if facts.Category != "" {
		fmt.Fprintf(&summary, "\nCategory: %s", facts.Category)
	}
	if facts.Barcode != "" {
		fmt.Fprintf(&summary, "\nBarcode: %s", facts.Barcode)
	}
	if facts.WeightGrams > 0 {
		fmt.Fprintf(&summary, "\nUnit weight: %.0fg", facts.WeightGrams)
	}
	fmt.Fprintf(&summary, "\nTarget quantity: %d", params.Quantity)
	fmt.Fprintf(&summary, "\nDestination: %s (%s freight)", params.Destination, params.ShippingMode)

	questions := []string{
		fmt.Sprintf("What is your unit price for %d units, EXW and FOB?", params.Quantity),
		"What is your minimum order quantity?",
		"What is the production lead time for this quantity?",
		"Can you share product certifications and test reports?",
		"How many units per case, and what are the case dimensions and weight?",
		"Can you send a sample before the full order?",
	}

	message := fmt.Sprintf(
		"Hello, we are sourcing %s and would like a quotation for %d units shipped to %s. A product summary and our questions are attached. Please confirm pricing in writing.",
		name, params.Quantity, params.Destination)

	return &domain.OutreachPack{
		Message:     message,
		Questions:   questions,
		SpecSummary: summary.String(),
		GeneratedAt: time.Now().UTC(),
	}
}

// MarkReplied records a supplier reply and rolls the job forward to
// replies_received.
func (s *SourcingService) MarkReplied(ctx context.Context, jobSupplierID string) error {
	supplier, err := s.jobs.GetSupplier(ctx, jobSupplierID)
	if err != nil {
		return err
	}
	if supplier.Status != domain.SupplierStatusOutreachSent {
		return apperr.Validation("INVALID_SUPPLIER_STATUS", "reply requires outreach_sent, supplier is %s", supplier.Status)
	}

	if err := s.jobs.UpdateSupplierStatus(ctx, supplier.ID, domain.SupplierStatusReplied); err != nil {
		return err
	}
	return s.jobs.AdvanceJobStatus(ctx, supplier.JobID, domain.JobStatusRepliesReceived)
}

// QuoteInput is one ingested supplier quote.
type QuoteInput struct {
	Price              float64
	MOQ                int
	LeadTimeDays       int
	Incoterm           string
	ConfirmedInWriting bool
}

// RecordQuote ingests a quote for a job supplier. A new quote supersedes the
// prior active one; at most one quote per supplier is live. A quote confirmed
// in writing rolls the job to quotes_confirmed and writes verification onto
// the parent report; an unconfirmed quote never moves the job status.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - jobSupplierID: supplier participation row.
//   - in: quote fields.
//
// Returns:
//   - *domain.SupplierQuote: the stored quote with its validation status.
//   - error: apperr.ValidationError on bad input, apperr.NotFoundError, or
//     storage failure.
func (s *SourcingService) RecordQuote(ctx context.Context, jobSupplierID string, in QuoteInput) (*domain.SupplierQuote, error) {
	if in.Price <= 0 {
		return nil, apperr.Validation("INVALID_QUOTE_PRICE", "quote price must be positive, got %v", in.Price)
	}

	supplier, err := s.jobs.GetSupplier(ctx, jobSupplierID)
	if err != nil {
		return nil, err
	}
	job, err := s.jobs.GetJobByID(ctx, supplier.JobID)
	if err != nil {
		return nil, err
	}
	if !job.Active() {
		return nil, apperr.Validation("JOB_CLOSED", "cannot record a quote on closed job %s", job.ID)
	}
	report, err := s.reports.GetByID(ctx, job.ReportID)
	if err != nil {
		return nil, err
	}

	quote := &domain.SupplierQuote{
		ID:                 uuid.New().String(),
		JobSupplierID:      supplier.ID,
		Price:              in.Price,
		MOQ:                in.MOQ,
		LeadTimeDays:       in.LeadTimeDays,
		Incoterm:           strings.ToUpper(strings.TrimSpace(in.Incoterm)),
		ConfirmedInWriting: in.ConfirmedInWriting,
		ValidationStatus:   validateQuote(report, in),
	}

	if err := s.jobs.SupersedeQuote(ctx, quote); err != nil {
		return nil, err
	}

	ctx = logger.WithFields(ctx, logger.Fields{
		logger.FieldJobID:      job.ID,
		logger.FieldSupplierID: supplier.SupplierID,
	})
	logger.With(logger.Fields{logger.FieldStatus: string(quote.ValidationStatus)}).
		Info(ctx, "Supplier quote recorded")

	if in.ConfirmedInWriting {
		if err := s.jobs.AdvanceJobStatus(ctx, job.ID, domain.JobStatusQuotesConfirmed); err != nil {
			return nil, err
		}
		if s.verifier != nil {
			if err := s.verifier.RecordVerification(ctx, job.ReportID, in.Price, time.Now().UTC()); err != nil {
				logger.CtxError(ctx, "Failed to write verification to report: %v", err)
			}
		}
	}
	return quote, nil
}

// validateQuote classifies a quote against the report's baseline. A price far
// outside the conservative unit range is suspect; without a baseline the quote
// stays pending for manual review.
func validateQuote(report *domain.Report, in QuoteInput) domain.QuoteValidationStatus {
	if report.Baseline == nil {
		return domain.QuoteValidationPending
	}

	low := report.Baseline.Standard.UnitPrice.Min / 3
	high := report.Baseline.Conservative.UnitPrice.Max * 3
	if in.Price < low || in.Price > high {
		return domain.QuoteValidationSuspect
	}
	if in.LeadTimeDays > 365 {
		return domain.QuoteValidationSuspect
	}
	return domain.QuoteValidationPlausible
}

// GetStatuses returns the per-supplier status map for a report's active
// sourcing job, keyed by supplier ID. A report without an active job yields an
// empty map, not an error.
func (s *SourcingService) GetStatuses(ctx context.Context, reportID string) (map[string]domain.SupplierStatusView, error) {
	statuses := map[string]domain.SupplierStatusView{}

	job, err := s.jobs.GetActiveJobByReport(ctx, reportID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return statuses, nil
	}

	suppliers, err := s.jobs.ListSuppliersByJob(ctx, job.ID)
	if err != nil {
		return nil, err
	}
	for _, supplier := range suppliers {
		view := domain.SupplierStatusView{Status: supplier.Status}
		quote, err := s.jobs.GetActiveQuote(ctx, supplier.ID)
		if err != nil {
			return nil, err
		}
		if quote != nil {
			view.HasQuote = true
			view.ConfirmedInWriting = quote.ConfirmedInWriting
			view.ValidationStatus = quote.ValidationStatus
		}
		statuses[supplier.SupplierID] = view
	}
	return statuses, nil
}

// CloseJob closes a sourcing job and sweeps suppliers that never replied to
// no_reply. Closing is the only way a job reaches closed.
func (s *SourcingService) CloseJob(ctx context.Context, jobID string) error {
	job, err := s.jobs.GetJobByID(ctx, jobID)
	if err != nil {
		return err
	}
	if !job.Active() {
		return apperr.Validation("JOB_CLOSED", "job %s is already closed", job.ID)
	}

	suppliers, err := s.jobs.ListSuppliersByJob(ctx, job.ID)
	if err != nil {
		return err
	}
	for _, supplier := range suppliers {
		switch supplier.Status {
		case domain.SupplierStatusPending, domain.SupplierStatusOutreachSent:
			if err := s.jobs.UpdateSupplierStatus(ctx, supplier.ID, domain.SupplierStatusNoReply); err != nil {
				return err
			}
		}
	}

	if err := s.jobs.AdvanceJobStatus(ctx, job.ID, domain.JobStatusClosed); err != nil {
		return err
	}
	logger.With(logger.Fields{logger.FieldJobID: job.ID}).Info(ctx, "Sourcing job closed")
	return nil
}
