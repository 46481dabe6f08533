package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nori/caliper/internal/apperr"
	"github.com/nori/caliper/internal/domain"
)

type failingDispatcher struct{ calls int }

func (d *failingDispatcher) Dispatch(context.Context, string, *domain.OutreachPack) error {
	d.calls++
	return errors.New("smtp unreachable")
}

type recordingVerifier struct {
	reportID string
	price    float64
	calls    int
}

func (v *recordingVerifier) RecordVerification(_ context.Context, reportID string, price float64, _ time.Time) error {
	v.calls++
	v.reportID = reportID
	v.price = price
	return nil
}

func completeReport(id string) *domain.Report {
	return &domain.Report{
		ID:       id,
		InputKey: "key-" + id,
		OwnerID:  "owner-1",
		Status:   domain.ReportStatusComplete,
		Params:   validParams(),
		FastFacts: domain.FastFacts{
			ProductName: "plush bear",
			Category:    "plush toys",
			Confidence:  0.8,
		},
		Baseline: &domain.Baseline{
			Standard: domain.CostBreakdown{
				UnitPrice: domain.CostRange{Min: 2, Mid: 3, Max: 4},
			},
			Conservative: domain.CostBreakdown{
				UnitPrice: domain.CostRange{Min: 3, Mid: 4, Max: 5},
			},
		},
	}
}

func newSourcingFixture(t *testing.T) (*SourcingService, *fakeReportStore, *fakeJobStore, *recordingVerifier) {
	t.Helper()
	reports := newFakeReportStore()
	jobs := newFakeJobStore()
	verifier := &recordingVerifier{}
	svc := NewSourcingService(reports, jobs, LogDispatcher{}, verifier)
	return svc, reports, jobs, verifier
}

func TestSourcingCreateJob(t *testing.T) {
	svc, reports, jobs, _ := newSourcingFixture(t)
	reports.put(completeReport("r1"))

	job, err := svc.CreateJob(context.Background(), "r1", []string{"sup-a", "sup-b", "sup-a"})
	if err != nil {
		t.Fatalf("CreateJob() error = %v", err)
	}
	if job.Status != domain.JobStatusOutreachSent {
		t.Errorf("job status = %s, want outreach_sent after successful outreach", job.Status)
	}

	suppliers, _ := jobs.ListSuppliersByJob(context.Background(), job.ID)
	if len(suppliers) != 2 {
		t.Fatalf("duplicate supplier IDs should collapse, got %d suppliers", len(suppliers))
	}
	for _, sup := range suppliers {
		if sup.Status != domain.SupplierStatusOutreachSent {
			t.Errorf("supplier %s status = %s, want outreach_sent", sup.SupplierID, sup.Status)
		}
		if sup.Pack == nil {
			t.Errorf("supplier %s flipped to outreach_sent without a persisted pack", sup.SupplierID)
		} else {
			if sup.Pack.Message == "" || len(sup.Pack.Questions) == 0 || sup.Pack.SpecSummary == "" {
				t.Errorf("supplier %s pack is incomplete: %+v", sup.SupplierID, sup.Pack)
			}
		}
	}
}

func TestSourcingCreateJob_Rejections(t *testing.T) {
	svc, reports, _, _ := newSourcingFixture(t)
	reports.put(completeReport("r1"))
	partial := completeReport("r2")
	partial.Status = domain.ReportStatusPartial
	reports.put(partial)

	tests := []struct {
		name      string
		reportID  string
		suppliers []string
		setup     func()
		wantCode  string
	}{
		{
			name:      "empty supplier list",
			reportID:  "r1",
			suppliers: nil,
			wantCode:  "EMPTY_SUPPLIER_LIST",
		},
		{
			name:      "report not complete",
			reportID:  "r2",
			suppliers: []string{"sup-a"},
			wantCode:  "REPORT_NOT_COMPLETE",
		},
		{
			name:      "second active job",
			reportID:  "r1",
			suppliers: []string{"sup-b"},
			setup: func() {
				if _, err := svc.CreateJob(context.Background(), "r1", []string{"sup-a"}); err != nil {
					t.Fatalf("setup CreateJob() error = %v", err)
				}
			},
			wantCode: "JOB_ALREADY_ACTIVE",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.setup != nil {
				tt.setup()
			}
			_, err := svc.CreateJob(context.Background(), tt.reportID, tt.suppliers)
			var ve *apperr.ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("CreateJob() error = %v, want ValidationError", err)
			}
			if ve.Code != tt.wantCode {
				t.Errorf("error code = %s, want %s", ve.Code, tt.wantCode)
			}
		})
	}
}

func TestSourcingCreateJob_DispatchFailureDoesNotBlock(t *testing.T) {
	reports := newFakeReportStore()
	jobs := newFakeJobStore()
	reports.put(completeReport("r1"))
	dispatcher := &failingDispatcher{}
	svc := NewSourcingService(reports, jobs, dispatcher, nil)

	job, err := svc.CreateJob(context.Background(), "r1", []string{"sup-a", "sup-b"})
	if err != nil {
		t.Fatalf("CreateJob() error = %v", err)
	}
	if dispatcher.calls != 2 {
		t.Errorf("dispatcher called %d times, want 2", dispatcher.calls)
	}
	// Delivery failure is isolated: the pack is persisted and statuses stand.
	if job.Status != domain.JobStatusOutreachSent {
		t.Errorf("job status = %s, want outreach_sent despite dispatch failures", job.Status)
	}
	suppliers, _ := jobs.ListSuppliersByJob(context.Background(), job.ID)
	for _, sup := range suppliers {
		if sup.Pack == nil || sup.Status != domain.SupplierStatusOutreachSent {
			t.Errorf("supplier %s: pack=%v status=%s", sup.SupplierID, sup.Pack != nil, sup.Status)
		}
	}
}

func TestSourcingMarkReplied(t *testing.T) {
	svc, reports, jobs, _ := newSourcingFixture(t)
	reports.put(completeReport("r1"))
	job, err := svc.CreateJob(context.Background(), "r1", []string{"sup-a", "sup-b"})
	if err != nil {
		t.Fatalf("CreateJob() error = %v", err)
	}
	suppliers, _ := jobs.ListSuppliersByJob(context.Background(), job.ID)

	if err := svc.MarkReplied(context.Background(), suppliers[0].ID); err != nil {
		t.Fatalf("MarkReplied() error = %v", err)
	}
	got, _ := jobs.GetSupplier(context.Background(), suppliers[0].ID)
	if got.Status != domain.SupplierStatusReplied {
		t.Errorf("supplier status = %s, want replied", got.Status)
	}
	j, _ := jobs.GetJobByID(context.Background(), job.ID)
	if j.Status != domain.JobStatusRepliesReceived {
		t.Errorf("job status = %s, want replies_received", j.Status)
	}

	// A second reply from the same supplier is rejected.
	if err := svc.MarkReplied(context.Background(), suppliers[0].ID); err == nil {
		t.Error("replying twice should fail")
	}
}

func TestSourcingRecordQuote_Supersession(t *testing.T) {
	svc, reports, jobs, _ := newSourcingFixture(t)
	reports.put(completeReport("r1"))
	job, err := svc.CreateJob(context.Background(), "r1", []string{"sup-a"})
	if err != nil {
		t.Fatalf("CreateJob() error = %v", err)
	}
	suppliers, _ := jobs.ListSuppliersByJob(context.Background(), job.ID)
	supID := suppliers[0].ID

	first, err := svc.RecordQuote(context.Background(), supID, QuoteInput{Price: 3.2, MOQ: 500, Incoterm: "fob"})
	if err != nil {
		t.Fatalf("RecordQuote() error = %v", err)
	}
	if first.Incoterm != "FOB" {
		t.Errorf("incoterm = %q, want normalized FOB", first.Incoterm)
	}
	if first.ValidationStatus != domain.QuoteValidationPlausible {
		t.Errorf("in-range quote validation = %s, want plausible", first.ValidationStatus)
	}

	second, err := svc.RecordQuote(context.Background(), supID, QuoteInput{Price: 2.8})
	if err != nil {
		t.Fatalf("RecordQuote() second error = %v", err)
	}

	active, _ := jobs.GetActiveQuote(context.Background(), supID)
	if active == nil || active.ID != second.ID {
		t.Fatal("new quote should be the only active one")
	}
	if len(jobs.quotes[supID]) != 2 {
		t.Fatalf("expected 2 stored quotes, got %d", len(jobs.quotes[supID]))
	}
	if jobs.quotes[supID][0].SupersededAt == nil {
		t.Error("first quote should be superseded, not deleted")
	}
}

func TestSourcingRecordQuote_Validation(t *testing.T) {
	svc, reports, jobs, _ := newSourcingFixture(t)
	reports.put(completeReport("r1"))
	noBaseline := completeReport("r2")
	noBaseline.Baseline = nil
	reports.put(noBaseline)

	job1, _ := svc.CreateJob(context.Background(), "r1", []string{"sup-a"})
	job2, _ := svc.CreateJob(context.Background(), "r2", []string{"sup-b"})
	sup1, _ := jobs.ListSuppliersByJob(context.Background(), job1.ID)
	sup2, _ := jobs.ListSuppliersByJob(context.Background(), job2.ID)

	tests := []struct {
		name       string
		supplierID string
		in         QuoteInput
		want       domain.QuoteValidationStatus
	}{
		{"in range", sup1[0].ID, QuoteInput{Price: 3}, domain.QuoteValidationPlausible},
		{"far below range", sup1[0].ID, QuoteInput{Price: 0.1}, domain.QuoteValidationSuspect},
		{"far above range", sup1[0].ID, QuoteInput{Price: 100}, domain.QuoteValidationSuspect},
		{"absurd lead time", sup1[0].ID, QuoteInput{Price: 3, LeadTimeDays: 400}, domain.QuoteValidationSuspect},
		{"no baseline stays pending", sup2[0].ID, QuoteInput{Price: 3}, domain.QuoteValidationPending},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			quote, err := svc.RecordQuote(context.Background(), tt.supplierID, tt.in)
			if err != nil {
				t.Fatalf("RecordQuote() error = %v", err)
			}
			if quote.ValidationStatus != tt.want {
				t.Errorf("validation = %s, want %s", quote.ValidationStatus, tt.want)
			}
		})
	}

	if _, err := svc.RecordQuote(context.Background(), sup1[0].ID, QuoteInput{Price: 0}); err == nil {
		t.Error("non-positive price should be rejected")
	}
}

func TestSourcingRecordQuote_ConfirmedWritesVerification(t *testing.T) {
	svc, reports, jobs, verifier := newSourcingFixture(t)
	reports.put(completeReport("r1"))
	job, _ := svc.CreateJob(context.Background(), "r1", []string{"sup-a"})
	suppliers, _ := jobs.ListSuppliersByJob(context.Background(), job.ID)

	// Unconfirmed quote: no status move, no verification.
	if _, err := svc.RecordQuote(context.Background(), suppliers[0].ID, QuoteInput{Price: 3}); err != nil {
		t.Fatalf("RecordQuote() error = %v", err)
	}
	j, _ := jobs.GetJobByID(context.Background(), job.ID)
	if j.Status != domain.JobStatusOutreachSent {
		t.Errorf("unconfirmed quote moved job to %s", j.Status)
	}
	if verifier.calls != 0 {
		t.Error("unconfirmed quote must not record verification")
	}

	// Confirmed quote rolls the job forward and writes back.
	if _, err := svc.RecordQuote(context.Background(), suppliers[0].ID, QuoteInput{Price: 3.5, ConfirmedInWriting: true}); err != nil {
		t.Fatalf("RecordQuote() confirmed error = %v", err)
	}
	j, _ = jobs.GetJobByID(context.Background(), job.ID)
	if j.Status != domain.JobStatusQuotesConfirmed {
		t.Errorf("job status = %s, want quotes_confirmed", j.Status)
	}
	if verifier.calls != 1 || verifier.reportID != "r1" || verifier.price != 3.5 {
		t.Errorf("verification write-back = %+v, want one call for r1 at 3.5", verifier)
	}
}

func TestSourcingGetStatuses(t *testing.T) {
	svc, reports, jobs, _ := newSourcingFixture(t)
	reports.put(completeReport("r1"))

	// No job at all: empty map, no error.
	statuses, err := svc.GetStatuses(context.Background(), "r1")
	if err != nil {
		t.Fatalf("GetStatuses() error = %v", err)
	}
	if len(statuses) != 0 {
		t.Errorf("expected empty map without a job, got %v", statuses)
	}

	job, _ := svc.CreateJob(context.Background(), "r1", []string{"sup-a", "sup-b"})
	suppliers, _ := jobs.ListSuppliersByJob(context.Background(), job.ID)
	if _, err := svc.RecordQuote(context.Background(), suppliers[0].ID, QuoteInput{Price: 3, ConfirmedInWriting: true}); err != nil {
		t.Fatalf("RecordQuote() error = %v", err)
	}

	statuses, err = svc.GetStatuses(context.Background(), "r1")
	if err != nil {
		t.Fatalf("GetStatuses() error = %v", err)
	}
	if len(statuses) != 2 {
		t.Fatalf("expected 2 supplier entries, got %d", len(statuses))
	}
	quoted := statuses[suppliers[0].SupplierID]
	if !quoted.HasQuote || !quoted.ConfirmedInWriting {
		t.Errorf("quoted supplier view = %+v", quoted)
	}
	unquoted := statuses[suppliers[1].SupplierID]
	if unquoted.HasQuote {
		t.Errorf("supplier without quote reports HasQuote: %+v", unquoted)
	}
}

func TestSourcingCloseJob(t *testing.T) {
	svc, reports, jobs, _ := newSourcingFixture(t)
	reports.put(completeReport("r1"))
	job, _ := svc.CreateJob(context.Background(), "r1", []string{"sup-a", "sup-b", "sup-c"})
	suppliers, _ := jobs.ListSuppliersByJob(context.Background(), job.ID)

	if err := svc.MarkReplied(context.Background(), suppliers[0].ID); err != nil {
		t.Fatalf("MarkReplied() error = %v", err)
	}

	if err := svc.CloseJob(context.Background(), job.ID); err != nil {
		t.Fatalf("CloseJob() error = %v", err)
	}

	j, _ := jobs.GetJobByID(context.Background(), job.ID)
	if j.Status != domain.JobStatusClosed || j.ClosedAt == nil {
		t.Errorf("job = status %s closedAt %v, want closed with timestamp", j.Status, j.ClosedAt)
	}

	after, _ := jobs.ListSuppliersByJob(context.Background(), job.ID)
	for _, sup := range after {
		if sup.ID == suppliers[0].ID {
			if sup.Status != domain.SupplierStatusReplied {
				t.Errorf("replied supplier swept to %s", sup.Status)
			}
			continue
		}
		if sup.Status != domain.SupplierStatusNoReply {
			t.Errorf("silent supplier %s status = %s, want no_reply", sup.SupplierID, sup.Status)
		}
	}

	// Closed job rejects further quotes and a second close.
	if _, err := svc.RecordQuote(context.Background(), suppliers[1].ID, QuoteInput{Price: 3}); err == nil {
		t.Error("quote on closed job should fail")
	}
	if err := svc.CloseJob(context.Background(), job.ID); err == nil {
		t.Error("closing twice should fail")
	}

	// With the job closed the report can start a fresh one.
	if _, err := svc.CreateJob(context.Background(), "r1", []string{"sup-d"}); err != nil {
		t.Errorf("new job after close should succeed, got %v", err)
	}
}
